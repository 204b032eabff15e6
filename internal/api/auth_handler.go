package api

import (
	"github.com/gin-gonic/gin"

	"userhub/internal/api/middleware"
	"userhub/internal/domain"
	"userhub/internal/services"
)

// AuthHandler handles password-based authentication requests.
type AuthHandler struct {
	userService services.UserService
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(userService services.UserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

// RegisterRoutes registers authentication routes with the router.
func (h *AuthHandler) RegisterRoutes(router *gin.RouterGroup, authMiddleware *middleware.AuthMiddleware) {
	auth := router.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.GET("/me", authMiddleware.RequireAuth(), h.GetProfile)
	}
}

// Register handles user registration requests.
func (h *AuthHandler) Register(c *gin.Context) {
	var req domain.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SanitizedErrorResponse(c, domain.NewValidationError(
			"INVALID_REQUEST", "Invalid request format", map[string]interface{}{"reason": err.Error()}))
		return
	}

	user, err := h.userService.Register(c.Request.Context(), req)
	if err != nil {
		SanitizedErrorResponse(c, err)
		return
	}

	CreatedResponse(c, gin.H{"user": user})
}

// Login handles password login requests.
func (h *AuthHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SanitizedErrorResponse(c, domain.NewValidationError(
			"INVALID_REQUEST", "Invalid request format", map[string]interface{}{"reason": err.Error()}))
		return
	}

	result, err := h.userService.Login(c.Request.Context(), req)
	if err != nil {
		SanitizedErrorResponse(c, err)
		return
	}

	SuccessResponse(c, result)
}

// GetProfile returns the authenticated user's profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		SanitizedErrorResponse(c, domain.NewAuthenticationError("MISSING_TOKEN", "Authentication token required"))
		return
	}

	user, err := h.userService.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		SanitizedErrorResponse(c, err)
		return
	}

	SuccessResponse(c, gin.H{"user": user})
}
