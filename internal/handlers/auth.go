package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/BradenHooton/schoolmis/internal/auth"
	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/services"
	pkghttp "github.com/BradenHooton/schoolmis/pkg/http"
	pkglogger "github.com/BradenHooton/schoolmis/pkg/logger"
)

// AuthServiceInterface is the slice of services.AuthService the auth
// endpoints use.
type AuthServiceInterface interface {
	Login(ctx context.Context, email, password string, meta models.RequestMeta) (*services.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*services.RefreshResult, error)
	Logout(ctx context.Context, account *models.Account, sessionID string, meta models.RequestMeta) error
	Me(ctx context.Context, account *models.Account) (*models.AccountSummary, error)
	ChangePassword(ctx context.Context, account *models.Account, currentPassword, newPassword string, meta models.RequestMeta) error
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string, meta models.RequestMeta) error
}

// AuthHandler serves /api/auth.
type AuthHandler struct {
	authService   AuthServiceInterface
	ips           *pkghttp.ClientIPResolver
	cookies       auth.CookieConfig
	sessionMaxAge time.Duration
	logger        *slog.Logger

	echoResetTokens bool
}

func NewAuthHandler(authService AuthServiceInterface, ips *pkghttp.ClientIPResolver, cookies auth.CookieConfig, sessionMaxAge time.Duration, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		authService:   authService,
		ips:           ips,
		cookies:       cookies,
		sessionMaxAge: sessionMaxAge,
		logger:        logger,
	}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=8"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8"`
}

// Login handles POST /api/auth/login
// @Summary Log in with email and password
// @Description Returns access and refresh tokens and sets the session cookie
// @Router /auth/login [post]
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password, requestMeta(r, h.ips))
	if err != nil {
		h.logger.InfoContext(r.Context(), "login rejected",
			slog.String("email", pkglogger.SanitizedEmail(req.Email)), slog.Any("error", err))
		writeServiceError(w, err)
		return
	}

	auth.SetSessionCookie(w, result.SessionID, h.sessionMaxAge, h.cookies)
	pkghttp.WriteSuccess(w, http.StatusOK, "Login successful", result)
}

// RefreshToken handles POST /api/auth/refresh-token
// @Summary Exchange a refresh token for a new access token
// @Router /auth/refresh-token [post]
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.authService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, result)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	if account == nil {
		writeServiceError(w, models.ErrUnauthenticated)
		return
	}

	if err := h.authService.Logout(r.Context(), account, auth.SessionIDFromRequest(r), requestMeta(r, h.ips)); err != nil {
		writeServiceError(w, err)
		return
	}

	auth.ClearSessionCookie(w, h.cookies)
	pkghttp.WriteSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

// Me handles GET /api/auth/me
// @Summary Current account with role-specific fields
// @Router /auth/me [get]
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	if account == nil {
		writeServiceError(w, models.ErrUnauthenticated)
		return
	}

	summary, err := h.authService.Me(r.Context(), account)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, summary)
}

// ChangePassword handles PUT /api/auth/change-password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	account := auth.AccountFromContext(r.Context())
	if account == nil {
		writeServiceError(w, models.ErrUnauthenticated)
		return
	}

	var req ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.authService.ChangePassword(r.Context(), account, req.CurrentPassword, req.NewPassword, requestMeta(r, h.ips)); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Password changed successfully", nil)
}

// ForgotPassword handles POST /api/auth/forgot-password. The response is
// the same whether or not the email belongs to an account.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	token, err := h.authService.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	var data any
	if h.echoResetTokens && token != "" {
		data = map[string]string{"resetToken": token}
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "If the email is registered, a password reset link has been sent", data)
}

// EchoResetTokens makes ForgotPassword return the raw reset token in the
// response body. Only for development, where no mail is delivered.
func (h *AuthHandler) EchoResetTokens(enabled bool) *AuthHandler {
	h.echoResetTokens = enabled
	return h
}

// ResetPassword handles POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.NewPassword, requestMeta(r, h.ips)); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Password reset successful", nil)
}

// requestMeta captures the caller address and user agent for auditing.
func requestMeta(r *http.Request, ips *pkghttp.ClientIPResolver) models.RequestMeta {
	return models.RequestMeta{
		IPAddress: ips.ClientIP(r),
		UserAgent: pkghttp.UserAgent(r),
	}
}

// actorOf returns the authenticated caller as an audit actor.
func actorOf(r *http.Request) (models.Actor, bool) {
	account := auth.AccountFromContext(r.Context())
	if account == nil {
		return models.Actor{}, false
	}
	return account.Actor(), true
}
