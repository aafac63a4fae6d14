package services

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BradenHooton/schoolmis/internal/models"
)

// AdminAccountRepository is the subset of the account store needed to seed
// the first admin.
type AdminAccountRepository interface {
	ExistsWithRole(ctx context.Context, role models.Role) (bool, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
}

// AdminService seeds the principal account on first start. Admins are never
// created through the API.
type AdminService struct {
	accounts     AdminAccountRepository
	passwordCost int
	logger       *slog.Logger
}

func NewAdminService(accounts AdminAccountRepository, passwordCost int, logger *slog.Logger) *AdminService {
	return &AdminService{
		accounts:     accounts,
		passwordCost: passwordCost,
		logger:       logger,
	}
}

// EnsureAdmin creates an admin from email and password when no active admin
// exists. It reports whether an account was created. An empty email skips
// bootstrap.
func (s *AdminService) EnsureAdmin(ctx context.Context, email, password, fullName string) (bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return false, nil
	}

	exists, err := s.accounts.ExistsWithRole(ctx, models.RoleAdmin)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to check for admin accounts", slog.Any("error", err))
		return false, models.ErrInternalServer
	}
	if exists {
		return false, nil
	}

	w := accountWriter{passwordCost: s.passwordCost, logger: s.logger}
	hash, err := w.hashInitialPassword(ctx, password)
	if err != nil {
		return false, err
	}
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return false, models.Detail(models.ErrDuplicateEntry, "email %s is already registered", strings.ToLower(email))
	}

	if fullName == "" {
		fullName = "Principal"
	}
	created, err := s.accounts.Create(ctx, &models.Account{
		Email:        email,
		FullName:     fullName,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		Active:       true,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create admin account", slog.Any("error", err))
		return false, models.ErrInternalServer
	}

	s.logger.InfoContext(ctx, "admin account created", slog.String("account_id", created.ID))
	return true, nil
}
