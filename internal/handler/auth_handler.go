package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/craft-api/internal/models"
	"github.com/noah-isme/craft-api/internal/service"
	appErrors "github.com/noah-isme/craft-api/pkg/errors"
	"github.com/noah-isme/craft-api/pkg/response"
)

type authService interface {
	Authenticate(ctx context.Context, req models.AuthenticateRequest, ip string) (*models.AuthenticateResponse, error)
	RefreshToken(ctx context.Context, token, ip string) (*models.AuthenticateResponse, error)
	RevokeToken(ctx context.Context, token, ip string) error
	Register(ctx context.Context, req models.RegisterRequest, origin string) error
	VerifyEmail(ctx context.Context, req models.VerifyEmailRequest) (bool, error)
	ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest, origin string) error
	ValidateResetToken(ctx context.Context, req models.ValidateResetTokenRequest) error
	ResetPassword(ctx context.Context, req models.ResetPasswordRequest) error
	RefreshTokenTTL() time.Duration
}

// CookieConfig controls the refresh token cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service   authService
	cookie    CookieConfig
	clientURL string
}

// NewAuthHandler creates a new handler. clientURL is used for email links
// when a request carries no Origin header.
func NewAuthHandler(svc authService, cookie CookieConfig, clientURL string) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = "refreshToken"
	}
	return &AuthHandler{service: svc, cookie: cookie, clientURL: clientURL}
}

// Authenticate godoc
// @Summary Authenticate account
// @Description Verify credentials, issue a JWT and set the refresh token cookie
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body models.AuthenticateRequest true "Credentials"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /accounts/authenticate [post]
func (h *AuthHandler) Authenticate(c *gin.Context) {
	var req models.AuthenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	res, err := h.service.Authenticate(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, res.RefreshToken)
	response.OK(c, service.MessageAuthenticated, res)
}

// RefreshToken godoc
// @Summary Rotate refresh token
// @Description Exchange the refresh token from the cookie or body for a new token pair
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest false "Refresh token when no cookie is sent"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /accounts/refresh-token [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req models.RefreshTokenRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	token := h.cookieToken(c)
	if token == "" {
		token = strings.TrimSpace(req.Token)
	}

	res, err := h.service.RefreshToken(c.Request.Context(), token, c.ClientIP())
	if err != nil {
		response.Error(c, err)
		return
	}

	h.setRefreshCookie(c, res.RefreshToken)
	response.OK(c, service.MessageTokenRefreshed, res)
}

// RevokeToken godoc
// @Summary Revoke refresh token
// @Description Revoke a refresh token owned by the caller; administrators may revoke any token
// @Tags Accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.RevokeTokenRequest false "Token to revoke, defaults to the cookie"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 401 {object} map[string]string
// @Router /accounts/revoke-token [post]
func (h *AuthHandler) RevokeToken(c *gin.Context) {
	var req models.RevokeTokenRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	token := h.refreshToken(c, req.Token)
	if token == "" {
		response.Error(c, appErrors.ErrTokenRequired)
		return
	}

	account := accountFromContext(c)
	if account == nil || (!account.OwnsToken(token) && account.Role != models.RoleAdmin) {
		response.Unauthorized(c)
		return
	}

	if err := h.service.RevokeToken(c.Request.Context(), token, c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, service.MessageTokenRevoked, nil)
}

// Register godoc
// @Summary Register account
// @Description Create an account and send a verification email
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /accounts/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	origin, ok := h.origin(c)
	if !ok {
		return
	}

	if err := h.service.Register(c.Request.Context(), req, origin); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, service.MessageRegistered, nil)
}

// VerifyEmail godoc
// @Summary Verify email
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body models.VerifyEmailRequest true "Verification token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /accounts/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req models.VerifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	verified, err := h.service.VerifyEmail(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !verified {
		response.Failure(c, service.MessageAlreadyVerified)
		return
	}
	response.OK(c, service.MessageVerified, nil)
}

// ForgotPassword godoc
// @Summary Forgot password
// @Description Email a reset link; the response does not reveal whether the email is registered
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body models.ForgotPasswordRequest true "Email"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /accounts/forgot-password [post]
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req models.ForgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}
	origin, ok := h.origin(c)
	if !ok {
		return
	}

	if err := h.service.ForgotPassword(c.Request.Context(), req, origin); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, service.MessageForgotPassword, nil)
}

// ValidateResetToken godoc
// @Summary Validate reset token
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body models.ValidateResetTokenRequest true "Reset token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /accounts/validate-reset-token [post]
func (h *AuthHandler) ValidateResetToken(c *gin.Context) {
	var req models.ValidateResetTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	if err := h.service.ValidateResetToken(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, service.MessageResetTokenValid, nil)
}

// ResetPassword godoc
// @Summary Reset password
// @Tags Accounts
// @Accept json
// @Produce json
// @Param payload body models.ResetPasswordRequest true "New password"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /accounts/reset-password [post]
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req models.ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err))
		return
	}

	if err := h.service.ResetPassword(c.Request.Context(), req); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, service.MessagePasswordReset, nil)
}

// refreshToken prefers an explicit token in the body over the cookie.
func (h *AuthHandler) refreshToken(c *gin.Context, fromBody string) string {
	if token := strings.TrimSpace(fromBody); token != "" {
		return token
	}
	return h.cookieToken(c)
}

func (h *AuthHandler) cookieToken(c *gin.Context) string {
	cookie, err := c.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return cookie
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, token, int(h.service.RefreshTokenTTL().Seconds()), "/", "", h.cookie.Secure, true)
}

// origin returns the base URL for email links and writes a 400 when none is known.
func (h *AuthHandler) origin(c *gin.Context) (string, bool) {
	if origin := strings.TrimSpace(c.GetHeader("Origin")); origin != "" {
		return origin, true
	}
	if h.clientURL != "" {
		return h.clientURL, true
	}
	response.Error(c, appErrors.Clone(appErrors.ErrValidation, "Origin header is required"))
	return "", false
}
