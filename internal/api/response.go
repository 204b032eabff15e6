// Package api provides the HTTP handlers and shared response utilities.
//
// All handlers route failures through SanitizedErrorResponse for
// consistent status mapping, sanitization, and structured logging.
package api

import (
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
)

var (
	defaultSanitizer *ErrorSanitizer
	sanitizerOnce    sync.Once
)

func getDefaultSanitizer() *ErrorSanitizer {
	sanitizerOnce.Do(func() {
		logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
		defaultSanitizer = NewErrorSanitizer(logger)
	})
	return defaultSanitizer
}

// SanitizedErrorResponse handles errors with sanitization and structured logging.
func SanitizedErrorResponse(c *gin.Context, err error) {
	getDefaultSanitizer().SanitizedErrorResponse(c, err)
}

// SuccessResponse returns a standardized success response.
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// CreatedResponse returns a standardized created response.
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    data,
	})
}
