package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"userhub/internal/domain"
)

// ErrorSanitizer converts errors into client responses without leaking
// internals. Domain errors keep their type and code; anything else
// becomes a generic 500. The full error is logged server-side with a
// correlation ID so operators can match client reports to log lines.
type ErrorSanitizer struct {
	logger *slog.Logger
}

// NewErrorSanitizer creates a new error sanitizer with structured logging.
func NewErrorSanitizer(logger *slog.Logger) *ErrorSanitizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorSanitizer{logger: logger}
}

// SanitizedErrorResponse writes the sanitized error response for err.
func (s *ErrorSanitizer) SanitizedErrorResponse(c *gin.Context, err error) {
	correlationID := s.getOrCreateCorrelationID(c)

	var domainErr *domain.Error
	isDomainError := errors.As(err, &domainErr)

	s.logError(c, err, correlationID, domainErr)

	if !isDomainError {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"type":       string(domain.InternalError),
				"code":       "UNEXPECTED_ERROR",
				"message":    "An unexpected error occurred",
				"request_id": correlationID,
			},
		})
		return
	}

	body := gin.H{
		"type":       string(domainErr.Type),
		"code":       domainErr.Code,
		"message":    domainErr.Message,
		"request_id": correlationID,
	}
	if len(domainErr.Details) > 0 {
		body["details"] = domainErr.Details
	}

	c.JSON(mapDomainErrorToHTTPStatus(domainErr.Type), gin.H{
		"success": false,
		"error":   body,
	})
}

func (s *ErrorSanitizer) getOrCreateCorrelationID(c *gin.Context) string {
	if id, exists := c.Get("correlation_id"); exists {
		if strID, ok := id.(string); ok {
			return strID
		}
	}

	if id := c.GetHeader("X-Correlation-ID"); id != "" {
		c.Set("correlation_id", id)
		return id
	}

	correlationID := uuid.New().String()
	c.Set("correlation_id", correlationID)
	c.Header("X-Correlation-ID", correlationID)
	return correlationID
}

func (s *ErrorSanitizer) logError(c *gin.Context, err error, correlationID string, domainErr *domain.Error) {
	args := []any{
		"correlation_id", correlationID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"remote_addr", c.ClientIP(),
	}

	if domainErr != nil {
		args = append(args,
			"error_type", string(domainErr.Type),
			"error_code", domainErr.Code,
			"error_message", domainErr.Message,
		)
		if domainErr.Cause != nil {
			args = append(args, "underlying_error", domainErr.Cause.Error())
		}
		s.logger.Error("request failed", args...)
		return
	}

	args = append(args, "error", err.Error())
	s.logger.Error("unexpected error", args...)
}

// mapDomainErrorToHTTPStatus maps domain error types to HTTP status codes.
func mapDomainErrorToHTTPStatus(errorType domain.ErrorType) int {
	switch errorType {
	case domain.ValidationError:
		return http.StatusBadRequest
	case domain.NotFoundError:
		return http.StatusNotFound
	case domain.ConflictError:
		return http.StatusConflict
	case domain.AuthenticationError:
		return http.StatusUnauthorized
	case domain.RateLimitError:
		return http.StatusTooManyRequests
	case domain.ExternalServiceError:
		return http.StatusBadGateway
	case domain.InternalError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
