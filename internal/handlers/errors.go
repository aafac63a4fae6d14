package handlers

import (
	"errors"
	"net/http"

	"github.com/BradenHooton/schoolmis/internal/models"
	pkghttp "github.com/BradenHooton/schoolmis/pkg/http"
)

// writeServiceError translates a service error into the response envelope.
// Errors that carry a caller-safe message (DetailError, ValidationError,
// LoginFailure, LockoutError) surface that message; anything unrecognised is
// reported as a generic 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		verr    *models.ValidationError
		lockout *models.LockoutError
		failure *models.LoginFailure
	)

	switch {
	case errors.As(err, &verr):
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "validation_error", "Validation failed", verr.Fields)
	case errors.As(err, &lockout):
		pkghttp.WriteErrorWithDetails(w, http.StatusLocked, "account_locked", lockout.Error(),
			map[string]int{"remainingMinutes": lockout.RemainingMinutes})
	case errors.As(err, &failure):
		pkghttp.WriteErrorWithDetails(w, http.StatusUnauthorized, "invalid_credentials", failure.Error(),
			map[string]int{"attemptsRemaining": failure.AttemptsRemaining})
	case errors.Is(err, models.ErrInvalidCredentials):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
	case errors.Is(err, models.ErrAccountLocked):
		pkghttp.WriteError(w, http.StatusLocked, "account_locked", "Account is temporarily locked")
	case errors.Is(err, models.ErrAccountDeactivated):
		pkghttp.WriteError(w, http.StatusForbidden, "account_deactivated", "Account is deactivated. Contact the administrator")
	case errors.Is(err, models.ErrSessionExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "session_expired", "Session expired due to inactivity. Please log in again")
	case errors.Is(err, models.ErrTokenExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "Token expired")
	case errors.Is(err, models.ErrInvalidToken):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
	case errors.Is(err, models.ErrAuthenticationFailed):
		pkghttp.WriteError(w, http.StatusUnauthorized, "authentication_failed", "Authentication failed")
	case errors.Is(err, models.ErrUnauthenticated):
		pkghttp.WriteUnauthorized(w, "Not authenticated. Please log in")
	case errors.Is(err, models.ErrInvalidOrExpiredToken):
		pkghttp.WriteError(w, http.StatusBadRequest, "invalid_reset_token", "Invalid or expired reset token")
	case errors.Is(err, models.ErrForbidden):
		pkghttp.WriteForbidden(w, messageOr(err, "You do not have permission to perform this action"))
	case errors.Is(err, models.ErrNotFound):
		pkghttp.WriteNotFound(w, messageOr(err, "Resource not found"))
	case errors.Is(err, models.ErrDuplicateEntry):
		pkghttp.WriteError(w, http.StatusConflict, "duplicate_entry", messageOr(err, "Resource already exists"))
	case errors.Is(err, models.ErrConflict):
		pkghttp.WriteConflict(w, messageOr(err, "Request conflicts with current state"))
	case errors.Is(err, models.ErrValidation):
		pkghttp.WriteError(w, http.StatusBadRequest, "validation_error", messageOr(err, "Validation failed"))
	default:
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
	}
}

// messageOr returns the caller-facing message of a DetailError, or fallback.
func messageOr(err error, fallback string) string {
	var detail *models.DetailError
	if errors.As(err, &detail) {
		return detail.Message
	}
	return fallback
}
