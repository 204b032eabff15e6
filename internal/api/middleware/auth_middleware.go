package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"userhub/internal/services"
)

// ClaimsContextKey is the key used to store verified session claims in
// the Gin context.
const ClaimsContextKey = "session_claims"

// AuthMiddleware validates bearer session tokens. The bearer token is the
// only authoritative credential; there is no cookie session.
type AuthMiddleware struct {
	tokens services.TokenService
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(tokens services.TokenService) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// RequireAuth rejects requests without a valid session token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return gin.HandlerFunc(func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			abortUnauthorized(c, "MISSING_TOKEN", "Authentication token required")
			return
		}

		claims, err := m.tokens.Verify(token)
		if err != nil {
			abortUnauthorized(c, "INVALID_TOKEN", "Invalid or expired token")
			return
		}

		c.Set(ClaimsContextKey, claims)
		c.Next()
	})
}

// GetClaims returns the verified session claims stored by RequireAuth.
func GetClaims(c *gin.Context) *services.SessionClaims {
	if value, exists := c.Get(ClaimsContextKey); exists {
		if claims, ok := value.(*services.SessionClaims); ok {
			return claims
		}
	}
	return nil
}

// extractBearerToken pulls the token out of the Authorization header.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func abortUnauthorized(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"type":       "AUTHENTICATION_ERROR",
			"code":       code,
			"message":    message,
			"request_id": GetRequestID(c),
		},
	})
}
