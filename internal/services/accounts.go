package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BradenHooton/schoolmis/internal/models"
	pkgauth "github.com/BradenHooton/schoolmis/pkg/auth"
)

// accountWriter holds what StudentService and TeacherService share when they
// create or edit the account behind a profile.
type accountWriter struct {
	accounts     AccountRepository
	passwordCost int
	logger       *slog.Logger
}

// hashInitialPassword checks password against the policy and hashes it.
func (w accountWriter) hashInitialPassword(ctx context.Context, password string) (string, error) {
	if err := pkgauth.ValidatePassword(password); err != nil {
		return "", models.NewValidationError("password", err.Error())
	}
	cost := w.passwordCost
	if cost == 0 {
		cost = pkgauth.BcryptCost
	}
	hash, err := pkgauth.HashPasswordWithCost(password, cost)
	if err != nil {
		w.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		return "", models.ErrInternalServer
	}
	return hash, nil
}

// ensureEmailFree fails with ErrDuplicateEntry when another account than
// ownerID already uses email.
func (w accountWriter) ensureEmailFree(ctx context.Context, email, ownerID string) error {
	existing, err := w.accounts.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil
		}
		w.logger.ErrorContext(ctx, "failed to check email", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if existing.ID == ownerID {
		return nil
	}
	return models.Detail(models.ErrDuplicateEntry, "email %s is already registered", strings.ToLower(strings.TrimSpace(email)))
}

// setActive flips the active flag of the account behind a profile.
func (w accountWriter) setActive(ctx context.Context, id string, active bool, resource string) error {
	if err := w.accounts.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NotFound(resource)
		}
		w.logger.ErrorContext(ctx, "failed to update account status", slog.String("account_id", id), slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

// writeError maps a repository write error to a caller-facing one.
func (w accountWriter) writeError(ctx context.Context, err error, resource, op string) error {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return models.NotFound(resource)
	case errors.Is(err, models.ErrDuplicateEntry):
		return models.Detail(models.ErrDuplicateEntry, "%s already exists", strings.ToLower(resource))
	case errors.Is(err, models.ErrValidation):
		return models.Detail(models.ErrValidation, "invalid %s data", strings.ToLower(resource))
	}
	w.logger.ErrorContext(ctx, "failed to "+op, slog.Any("error", err))
	return models.ErrInternalServer
}
