// Package middleware provides HTTP middleware functions.
package middleware

import (
	"container/list"
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"userhub/internal/domain"
)

// FixedWindowLimiter counts requests per client in discrete,
// non-overlapping windows. The first request opens a window; once the
// window elapses the counter resets at the boundary, never partially.
type FixedWindowLimiter struct {
	mu          sync.Mutex
	windowStart time.Time
	lastSeen    time.Time
	count       int
	limit       int
	window      time.Duration
}

// NewFixedWindowLimiter creates a limiter admitting `limit` requests per
// `window`.
func NewFixedWindowLimiter(limit int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{
		limit:  limit,
		window: window,
	}
}

// Admit reports whether the request is allowed. On rejection it returns
// the time remaining until the window resets. Check and increment happen
// under one lock so racing requests cannot overrun the limit.
func (l *FixedWindowLimiter) Admit() (allowed bool, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	l.lastSeen = now

	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 0
	}

	if l.count >= l.limit {
		return false, l.windowStart.Add(l.window).Sub(now)
	}

	l.count++
	return true, 0
}

// lruCache bounds the number of per-client limiters held in memory.
type lruCache struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	list     *list.List
	capacity int
}

type lruItem struct {
	limiter *FixedWindowLimiter
	key     string
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		list:     list.New(),
	}
}

// get retrieves the limiter for key, creating it via factory when absent.
func (c *lruCache) get(key string, factory func() *FixedWindowLimiter) *FixedWindowLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.list.MoveToFront(elem)
		return elem.Value.(*lruItem).limiter
	}

	limiter := factory()
	elem := c.list.PushFront(&lruItem{key: key, limiter: limiter})
	c.items[key] = elem

	if c.list.Len() > c.capacity {
		if oldest := c.list.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	return limiter
}

// removeElement removes an element. Callers must hold c.mu.
func (c *lruCache) removeElement(elem *list.Element) {
	c.list.Remove(elem)
	delete(c.items, elem.Value.(*lruItem).key)
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.list.Len()
}

// RateLimitConfig holds configuration for rate limiting.
type RateLimitConfig struct {
	// KeyGenerator derives the client key (e.g. IP address, user ID).
	KeyGenerator func(c *gin.Context) string
	// OnRejected is invoked on every rejection, e.g. for metrics.
	OnRejected func()
	// Requests is the budget per window.
	Requests int
	// Window is the fixed window duration.
	Window time.Duration
	// CacheCapacity bounds the number of per-client limiters (default 10000).
	CacheCapacity int
	// CleanupInterval controls how often stale limiters are evicted (default 5m).
	CleanupInterval time.Duration
	// MaxAge is the inactivity threshold for eviction (default 10m).
	MaxAge time.Duration
}

// RateLimitManager owns the per-client limiters and their lifecycle.
type RateLimitManager struct {
	cache       *lruCache
	config      RateLimitConfig
	ctx         context.Context
	cancel      context.CancelFunc
	cleanupDone chan struct{}
}

// NewRateLimitManager creates a rate limit manager and starts its cleanup
// goroutine. Shut it down to avoid goroutine leaks.
func NewRateLimitManager(ctx context.Context, config RateLimitConfig) *RateLimitManager {
	if config.CacheCapacity == 0 {
		config.CacheCapacity = 10000
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	if config.MaxAge == 0 {
		config.MaxAge = 10 * time.Minute
	}
	if config.Window == 0 {
		config.Window = time.Minute
	}

	managerCtx, cancel := context.WithCancel(ctx)
	manager := &RateLimitManager{
		cache:       newLRUCache(config.CacheCapacity),
		config:      config,
		ctx:         managerCtx,
		cancel:      cancel,
		cleanupDone: make(chan struct{}),
	}

	go manager.cleanup()

	return manager
}

// Admit checks whether a request for the given client key is allowed.
func (rm *RateLimitManager) Admit(key string) (bool, time.Duration) {
	limiter := rm.cache.get(key, func() *FixedWindowLimiter {
		return NewFixedWindowLimiter(rm.config.Requests, rm.config.Window)
	})
	return limiter.Admit()
}

// cleanup periodically evicts limiters that have been inactive longer
// than MaxAge.
func (rm *RateLimitManager) cleanup() {
	defer close(rm.cleanupDone)

	ticker := time.NewTicker(rm.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rm.ctx.Done():
			return
		case <-ticker.C:
			rm.evictStale()
		}
	}
}

func (rm *RateLimitManager) evictStale() {
	rm.cache.mu.Lock()
	defer rm.cache.mu.Unlock()

	now := time.Now()
	var toRemove []*list.Element

	// Walk from back (least recently used) and stop at the first live entry.
	for elem := rm.cache.list.Back(); elem != nil; elem = elem.Prev() {
		limiter := elem.Value.(*lruItem).limiter

		limiter.mu.Lock()
		age := now.Sub(limiter.lastSeen)
		limiter.mu.Unlock()

		if age > rm.config.MaxAge {
			toRemove = append(toRemove, elem)
		} else {
			break
		}
	}

	for _, elem := range toRemove {
		rm.cache.removeElement(elem)
	}
}

// Shutdown stops the cleanup goroutine and waits for it to finish.
func (rm *RateLimitManager) Shutdown() {
	rm.cancel()
	<-rm.cleanupDone
}

// Stats returns statistics about the limiter cache.
func (rm *RateLimitManager) Stats() RateLimitStats {
	return RateLimitStats{
		CacheSize:     rm.cache.len(),
		CacheCapacity: rm.config.CacheCapacity,
	}
}

// RateLimitStats holds statistics about rate limiting.
type RateLimitStats struct {
	CacheSize     int `json:"cache_size"`
	CacheCapacity int `json:"cache_capacity"`
}

// RateLimitMiddleware returns a rate limiting middleware. Rejections
// short-circuit the pipeline with 429 and a Retry-After header carrying
// whole seconds until the window resets.
func RateLimitMiddleware(ctx context.Context, config RateLimitConfig) (gin.HandlerFunc, *RateLimitManager) {
	if config.KeyGenerator == nil {
		config.KeyGenerator = func(c *gin.Context) string {
			return c.ClientIP()
		}
	}

	manager := NewRateLimitManager(ctx, config)

	middleware := gin.HandlerFunc(func(c *gin.Context) {
		allowed, retryAfter := manager.Admit(config.KeyGenerator(c))
		if !allowed {
			if config.OnRejected != nil {
				config.OnRejected()
			}

			seconds := int(retryAfter.Seconds())
			if retryAfter > time.Duration(seconds)*time.Second {
				seconds++ // round up so clients never retry early
			}
			if seconds < 1 {
				seconds = 1
			}

			rateErr := domain.NewRateLimitError(seconds)
			c.Header("Retry-After", strconv.Itoa(seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"type":    string(rateErr.Type),
					"code":    rateErr.Code,
					"message": rateErr.Message,
					"details": rateErr.Details,
				},
			})
			return
		}

		c.Next()
	})

	return middleware, manager
}
