package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"userhub/internal/cache"
)

// cachedResponse is the versioned envelope stored for each cached
// endpoint response. A version bump invalidates all existing entries on
// read instead of replaying a stale shape.
type cachedResponse struct {
	Version     int    `json:"v"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

const cachedResponseVersion = 1

// endpointPattern is one parsed allow-list entry: method plus path prefix.
type endpointPattern struct {
	method string
	prefix string
}

// CacheMiddlewareConfig holds configuration for the response cache.
type CacheMiddlewareConfig struct {
	// Store is the shared TTL cache store.
	Store cache.Store
	// TTL is the lifetime of stored responses.
	TTL time.Duration
	// Timeout bounds each cache store operation; on timeout the request
	// degrades to pass-through.
	Timeout time.Duration
	// Endpoints is the allow-list, entries of the form "GET /api/users".
	// Only idempotent read endpoints belong here; the allow-list is the
	// sole gate and is trusted as such.
	Endpoints []string
	// Logger receives degradation warnings. Defaults to slog.Default.
	Logger *slog.Logger
	// OnHit and OnMiss are invoked for metrics on allow-listed requests.
	OnHit  func()
	OnMiss func()
}

// CacheMiddleware returns a middleware that serves allow-listed read
// endpoints from the cache store. Hits replay the stored response without
// invoking the downstream handler; misses record successful (2xx)
// responses. Store failures never fail the request: reads degrade to
// misses and writes are fire-and-forget.
func CacheMiddleware(config CacheMiddlewareConfig) gin.HandlerFunc {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.TTL == 0 {
		config.TTL = 60 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 500 * time.Millisecond
	}

	patterns := parseEndpointPatterns(config.Endpoints)

	return gin.HandlerFunc(func(c *gin.Context) {
		if !matchesPattern(patterns, c.Request.Method, c.Request.URL.Path) {
			c.Next()
			return
		}

		key := cacheKey(c.Request.Method, c.Request.URL.Path, c.Request.URL.Query().Encode())

		if entry := readEntry(c.Request.Context(), config, key); entry != nil {
			if config.OnHit != nil {
				config.OnHit()
			}
			c.Header("X-Cache", "HIT")
			c.Data(entry.Status, entry.ContentType, entry.Body)
			c.Abort()
			return
		}

		if config.OnMiss != nil {
			config.OnMiss()
		}
		c.Header("X-Cache", "MISS")

		writer := &captureWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer

		c.Next()

		status := writer.Status()
		if status < http.StatusOK || status >= http.StatusMultipleChoices {
			return
		}

		writeEntry(config, key, &cachedResponse{
			Version:     cachedResponseVersion,
			Status:      status,
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
		})
	})
}

// readEntry fetches and decodes a cached response. Any failure, including
// a version mismatch or a slow store, is a miss.
func readEntry(ctx context.Context, config CacheMiddlewareConfig, key string) *cachedResponse {
	opCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	payload, err := config.Store.Get(opCtx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			config.Logger.Warn("response cache read failed, passing through", "key", key, "error", err)
		}
		return nil
	}

	var entry cachedResponse
	if err := json.Unmarshal(payload, &entry); err != nil || entry.Version != cachedResponseVersion {
		// Stale schema or corrupt payload: drop the entry and treat as miss.
		deleteCtx, deleteCancel := context.WithTimeout(context.Background(), config.Timeout)
		defer deleteCancel()
		_ = config.Store.Delete(deleteCtx, key)
		return nil
	}

	return &entry
}

// writeEntry stores a response. Failures are logged and swallowed; the
// client already has its response.
func writeEntry(config CacheMiddlewareConfig, key string, entry *cachedResponse) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return
	}

	// Detached from the request context: the response is already on its
	// way out and the write must not be canceled with it.
	opCtx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	if err := config.Store.Set(opCtx, key, payload, config.TTL); err != nil {
		config.Logger.Warn("response cache write failed, skipping", "key", key, "error", err)
	}
}

// cacheKey normalizes the request identity. url.Values.Encode sorts query
// parameters, so equivalent requests produce identical keys.
func cacheKey(method, path, sortedQuery string) string {
	key := "resp:" + method + ":" + path
	if sortedQuery != "" {
		key += "?" + sortedQuery
	}
	return key
}

func parseEndpointPatterns(endpoints []string) []endpointPattern {
	patterns := make([]endpointPattern, 0, len(endpoints))
	for _, e := range endpoints {
		parts := strings.SplitN(strings.TrimSpace(e), " ", 2)
		if len(parts) != 2 {
			continue
		}
		patterns = append(patterns, endpointPattern{
			method: strings.ToUpper(parts[0]),
			prefix: strings.TrimSuffix(parts[1], "/"),
		})
	}
	return patterns
}

func matchesPattern(patterns []endpointPattern, method, path string) bool {
	for _, p := range patterns {
		if p.method != method {
			continue
		}
		if path == p.prefix || strings.HasPrefix(path, p.prefix+"/") {
			return true
		}
	}
	return false
}

// captureWriter tees the response body so it can be stored after the
// handler runs.
type captureWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
