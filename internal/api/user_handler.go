package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"userhub/internal/domain"
	"userhub/internal/services"
)

// UserHandler handles user read endpoints. These are the allow-listed
// cacheable endpoints; keep them idempotent.
type UserHandler struct {
	userService services.UserService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// RegisterRoutes registers user routes with the router.
func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	users := router.Group("/users")
	{
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
	}
}

// GetUser returns a single user by ID.
func (h *UserHandler) GetUser(c *gin.Context) {
	user, err := h.userService.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		SanitizedErrorResponse(c, err)
		return
	}

	SuccessResponse(c, gin.H{"user": user})
}

// ListUsers returns a page of users.
func (h *UserHandler) ListUsers(c *gin.Context) {
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		SanitizedErrorResponse(c, domain.NewValidationError(
			"INVALID_OFFSET", "Offset must be a non-negative integer", nil))
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		SanitizedErrorResponse(c, domain.NewValidationError(
			"INVALID_LIMIT", "Limit must be between 1 and 100", nil))
		return
	}

	users, listErr := h.userService.ListUsers(c.Request.Context(), offset, limit)
	if listErr != nil {
		SanitizedErrorResponse(c, listErr)
		return
	}

	SuccessResponse(c, gin.H{
		"users":  users,
		"offset": offset,
		"limit":  limit,
	})
}
