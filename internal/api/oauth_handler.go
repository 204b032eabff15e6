package api

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"userhub/internal/domain"
	"userhub/internal/services"
)

// OAuthHandler handles the OAuth login flow and onboarding endpoints.
type OAuthHandler struct {
	oauthService services.OAuthService
	userService  services.UserService
	clientAppURL string
}

// NewOAuthHandler creates a new OAuth handler. clientAppURL is where the
// callback redirects the browser once login completes.
func NewOAuthHandler(oauthService services.OAuthService, userService services.UserService, clientAppURL string) *OAuthHandler {
	return &OAuthHandler{
		oauthService: oauthService,
		userService:  userService,
		clientAppURL: clientAppURL,
	}
}

// RegisterRoutes registers OAuth and onboarding routes with the router.
func (h *OAuthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/auth/login/:provider", h.Login)
	router.GET("/auth/callback/:provider", h.Callback)
	router.POST("/onboarding", h.Onboarding)
}

// Login starts the OAuth flow: issue state, redirect to the provider.
func (h *OAuthHandler) Login(c *gin.Context) {
	authURL, err := h.oauthService.StartLogin(c.Request.Context(), c.Param("provider"))
	if err != nil {
		SanitizedErrorResponse(c, err)
		return
	}

	c.Redirect(http.StatusFound, authURL)
}

// Callback completes the OAuth flow and redirects to the client
// application with the session token.
func (h *OAuthHandler) Callback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		SanitizedErrorResponse(c, domain.NewValidationError(
			"MISSING_CALLBACK_PARAMS", "Callback requires state and code query parameters", nil))
		return
	}

	result, err := h.oauthService.HandleCallback(c.Request.Context(), c.Param("provider"), state, code)
	if err != nil {
		SanitizedErrorResponse(c, err)
		return
	}

	redirect, err := url.Parse(h.clientAppURL)
	if err != nil {
		SanitizedErrorResponse(c, domain.NewInternalError("BAD_CLIENT_URL", "Client application URL is not valid", err))
		return
	}

	query := redirect.Query()
	query.Set("token", result.Token)
	query.Set("user_id", result.UserID)
	query.Set("onboard", strconv.FormatBool(result.OnboardingCompleted))
	redirect.RawQuery = query.Encode()

	c.Redirect(http.StatusFound, redirect.String())
}

// Onboarding completes a user's profile. It is a plain upsert and does
// not touch OAuth state.
func (h *OAuthHandler) Onboarding(c *gin.Context) {
	var req domain.OnboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		SanitizedErrorResponse(c, domain.NewValidationError(
			"INVALID_REQUEST", "Invalid request format", map[string]interface{}{"reason": err.Error()}))
		return
	}

	user, result, err := h.userService.CompleteOnboarding(c.Request.Context(), req)
	if err != nil {
		SanitizedErrorResponse(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":              "Onboarding completed successfully",
		"token":                result.Token,
		"user_id":              user.ID,
		"provider":             user.Provider,
		"onboarding_completed": user.OnboardingCompleted,
	})
}
