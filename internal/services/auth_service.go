package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/schoolmis/internal/auth"
	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/session"
	pkgauth "github.com/BradenHooton/schoolmis/pkg/auth"
	pkglogger "github.com/BradenHooton/schoolmis/pkg/logger"
)

// AuthPolicy holds the tunables of login, lockout and sessions.
type AuthPolicy struct {
	MaxLoginAttempts   int
	LockoutDuration    time.Duration
	SessionIdleTimeout time.Duration
	ResetTokenExpiry   time.Duration
	LoginDelay         auth.LoginDelay
	// PasswordCost is the bcrypt cost for new hashes; 0 means
	// pkgauth.BcryptCost.
	PasswordCost int
}

// DefaultAuthPolicy returns the standard limits: 5 attempts, a 30 minute
// lock, a 5 minute idle timeout and 10 minute reset tokens.
func DefaultAuthPolicy() AuthPolicy {
	return AuthPolicy{
		MaxLoginAttempts:   5,
		LockoutDuration:    30 * time.Minute,
		SessionIdleTimeout: 5 * time.Minute,
		ResetTokenExpiry:   10 * time.Minute,
	}
}

// AuthService validates credentials, issues tokens and tracks the
// server-side session that backs idle timeout.
type AuthService struct {
	accounts    AccountRepository
	students    StudentRepository
	teachers    TeacherRepository
	sessions    session.Store
	tm          *auth.TokenManager
	audit       AuditRecorder
	email       EmailService
	policy      AuthPolicy
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewAuthService(
	accounts AccountRepository,
	students StudentRepository,
	teachers TeacherRepository,
	sessions session.Store,
	tm *auth.TokenManager,
	audit AuditRecorder,
	email EmailService,
	policy AuthPolicy,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		accounts:    accounts,
		students:    students,
		teachers:    teachers,
		sessions:    sessions,
		tm:          tm,
		audit:       audit,
		email:       email,
		policy:      policy,
		logger:      logger,
		auditLogger: pkglogger.NewAuditLogger(logger),
		now:         time.Now,
	}
}

// LoginResult is returned by a successful Login. SessionID is delivered as a
// cookie, not in the body.
type LoginResult struct {
	AccessToken  string                 `json:"token"`
	RefreshToken string                 `json:"refreshToken"`
	ExpiresIn    int64                  `json:"expiresIn"`
	SessionID    string                 `json:"-"`
	User         *models.AccountSummary `json:"user"`
}

type RefreshResult struct {
	AccessToken string `json:"token"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// Login checks email and password and, on success, issues an access and a
// refresh token and opens a session.
func (s *AuthService) Login(ctx context.Context, email, password string, meta models.RequestMeta) (*LoginResult, error) {
	start := time.Now()
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.auditLogger.LogAuthFailure(ctx, email, meta.IPAddress, "unknown_email")
			s.policy.LoginDelay.WaitFrom(ctx, start)
			return nil, models.ErrInvalidCredentials
		}
		s.logger.ErrorContext(ctx, "failed to get account by email", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	now := s.now()
	if account.IsLocked(now) {
		s.auditLogger.LogAuthFailure(ctx, email, meta.IPAddress, "account_locked")
		return nil, &models.LockoutError{RemainingMinutes: account.LockRemainingMinutes(now)}
	}
	if !account.Active {
		s.auditLogger.LogAuthFailure(ctx, email, meta.IPAddress, "account_deactivated")
		return nil, models.ErrAccountDeactivated
	}

	if err := pkgauth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, s.recordFailure(ctx, account, meta, start)
	}

	if err := s.accounts.RecordSuccessfulLogin(ctx, account.ID, now); err != nil {
		s.logger.ErrorContext(ctx, "failed to record successful login",
			slog.String("account_id", account.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	account.FailedLoginAttempts = 0
	account.LockUntil = nil
	account.LastLoginAt = &now
	account.LastActiveAt = &now

	accessToken, err := s.tm.GenerateAccessToken(account.ID, account.Role)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	refreshToken, err := s.tm.GenerateRefreshToken(account.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate refresh token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	sess := session.New(account.ID, account.Role, now)
	if err := s.sessions.Save(ctx, sess); err != nil {
		s.logger.ErrorContext(ctx, "failed to save session", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, models.NewAuditEvent(account.Actor(), models.AuditLogin, models.ResourceAuth, account.ID, meta))
	s.logger.InfoContext(ctx, "account logged in",
		slog.String("account_id", account.ID), slog.String("role", string(account.Role)))

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int64(s.tm.AccessTokenExpiry().Seconds()),
		SessionID:    sess.ID,
		User:         s.summary(ctx, account),
	}, nil
}

// recordFailure counts a wrong password and returns the error to report.
func (s *AuthService) recordFailure(ctx context.Context, account *models.Account, meta models.RequestMeta, start time.Time) error {
	now := s.now()
	attempts, lockUntil, err := s.accounts.RecordFailedLogin(ctx, account.ID, now, s.policy.MaxLoginAttempts, now.Add(s.policy.LockoutDuration))
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record failed login",
			slog.String("account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.auditLogger.LogAuthFailure(ctx, account.Email, meta.IPAddress, "invalid_password")
	s.policy.LoginDelay.WaitFrom(ctx, start)

	if attempts >= s.policy.MaxLoginAttempts && lockUntil != nil && lockUntil.After(now) {
		s.logger.WarnContext(ctx, "account locked after repeated failures",
			slog.String("account_id", account.ID), slog.Int("attempts", attempts))
		return &models.LockoutError{RemainingMinutes: int(s.policy.LockoutDuration.Minutes())}
	}
	return &models.LoginFailure{AttemptsRemaining: s.policy.MaxLoginAttempts - attempts}
}

// Authenticate resolves the caller of a request. A session id, when given,
// is checked for idle expiry first. The bearer token wins over the session
// as the identity source.
func (s *AuthService) Authenticate(ctx context.Context, bearerToken, sessionID string) (*models.Account, error) {
	now := s.now()

	var sess *session.Session
	if sessionID != "" {
		got, err := s.sessions.Get(ctx, sessionID)
		switch {
		case err == nil:
			if got.IdleExpired(now, s.policy.SessionIdleTimeout) {
				if err := s.sessions.Delete(ctx, got.ID); err != nil {
					s.logger.WarnContext(ctx, "failed to delete idle session", slog.Any("error", err))
				}
				return nil, models.ErrSessionExpired
			}
			sess = got
		case errors.Is(err, session.ErrNotFound):
		default:
			s.logger.ErrorContext(ctx, "failed to load session", slog.Any("error", err))
			return nil, models.ErrAuthenticationFailed
		}
	}

	var accountID string
	switch {
	case bearerToken != "":
		claims, err := s.tm.ValidateAccessToken(bearerToken)
		if err != nil {
			return nil, err
		}
		accountID = claims.Subject
	case sess != nil:
		accountID = sess.AccountID
	default:
		return nil, models.ErrUnauthenticated
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthenticated
		}
		s.logger.ErrorContext(ctx, "failed to load account", slog.Any("error", err))
		return nil, models.ErrAuthenticationFailed
	}
	if !account.Active {
		return nil, fmt.Errorf("%w: account deactivated", models.ErrUnauthenticated)
	}

	if sess != nil && sess.AccountID == account.ID {
		sess.LastActivity = now
		if err := s.sessions.Save(ctx, sess); err != nil {
			s.logger.WarnContext(ctx, "failed to refresh session activity", slog.Any("error", err))
		}
	}
	s.touchIfStale(ctx, account, now)

	return account, nil
}

// touchIfStale writes lastActive only when it is older than the idle
// timeout, so busy clients do not write on every request.
func (s *AuthService) touchIfStale(ctx context.Context, account *models.Account, now time.Time) {
	if account.LastActiveAt != nil && now.Sub(*account.LastActiveAt) <= s.policy.SessionIdleTimeout {
		return
	}
	if err := s.accounts.TouchLastActive(ctx, account.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to stamp last activity", slog.Any("error", err))
		return
	}
	account.LastActiveAt = &now
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	claims, err := s.tm.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthenticated
		}
		s.logger.ErrorContext(ctx, "failed to load account for refresh", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !account.Active {
		return nil, models.ErrUnauthenticated
	}

	// JWT iat has second precision; compare against the truncated change time.
	if account.PasswordChangedAt != nil && claims.IssuedAt != nil &&
		claims.IssuedAt.Time.Before(account.PasswordChangedAt.Truncate(time.Second)) {
		return nil, fmt.Errorf("%w: issued before password change", models.ErrInvalidToken)
	}

	accessToken, err := s.tm.GenerateAccessToken(account.ID, account.Role)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate access token", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &RefreshResult{
		AccessToken: accessToken,
		ExpiresIn:   int64(s.tm.AccessTokenExpiry().Seconds()),
	}, nil
}

// Logout destroys the session, if any, and records the logout.
func (s *AuthService) Logout(ctx context.Context, account *models.Account, sessionID string, meta models.RequestMeta) error {
	if sessionID != "" {
		if err := s.sessions.Delete(ctx, sessionID); err != nil && !errors.Is(err, session.ErrNotFound) {
			s.logger.ErrorContext(ctx, "failed to delete session", slog.Any("error", err))
			return models.ErrInternalServer
		}
	}

	s.audit.Record(ctx, models.NewAuditEvent(account.Actor(), models.AuditLogout, models.ResourceAuth, account.ID, meta))
	s.logger.InfoContext(ctx, "account logged out", slog.String("account_id", account.ID))
	return nil
}

// Me returns the caller's summary and stamps their activity.
func (s *AuthService) Me(ctx context.Context, account *models.Account) (*models.AccountSummary, error) {
	now := s.now()
	if err := s.accounts.TouchLastActive(ctx, account.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to stamp last activity", slog.Any("error", err))
	}
	return s.summary(ctx, account), nil
}

// summary resolves the role-specific fields of account. A missing profile
// leaves them empty.
func (s *AuthService) summary(ctx context.Context, account *models.Account) *models.AccountSummary {
	sum := models.NewAccountSummary(account)

	switch account.Role {
	case models.RoleStudent:
		p, err := s.students.GetByID(ctx, account.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "student profile unavailable",
				slog.String("account_id", account.ID), slog.Any("error", err))
			return sum
		}
		return sum.WithStudent(p)
	case models.RoleTeacher:
		p, err := s.teachers.GetByID(ctx, account.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "teacher profile unavailable",
				slog.String("account_id", account.ID), slog.Any("error", err))
			return sum
		}
		return sum.WithTeacher(p)
	default:
		if sum.FullName == "" {
			sum.FullName = "Principal"
		}
		return sum
	}
}

// ChangePassword replaces the caller's password after checking the current
// one. Tokens issued before the change stop refreshing.
func (s *AuthService) ChangePassword(ctx context.Context, account *models.Account, currentPassword, newPassword string, meta models.RequestMeta) error {
	fresh, err := s.accounts.GetByID(ctx, account.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrUnauthenticated
		}
		s.logger.ErrorContext(ctx, "failed to load account", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := pkgauth.ComparePassword(fresh.PasswordHash, currentPassword); err != nil {
		return models.NewValidationError("currentPassword", "current password is incorrect")
	}
	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError("newPassword", err.Error())
	}
	if currentPassword == newPassword {
		return models.NewValidationError("newPassword", "new password must differ from the current password")
	}

	if err := s.storePassword(ctx, fresh.ID, newPassword); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEvent(fresh.Actor(), models.AuditUpdate, models.ResourcePassword, fresh.ID, meta))
	s.logger.InfoContext(ctx, "password changed", slog.String("account_id", fresh.ID))
	return nil
}

// ForgotPassword stores a fresh reset token for email and returns the raw
// token. An unknown or inactive email yields "" and no error, so callers
// cannot tell whether it exists.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.InfoContext(ctx, "password reset requested for unknown email",
				slog.String("email", pkglogger.SanitizedEmail(email)))
			return "", nil
		}
		s.logger.ErrorContext(ctx, "failed to get account by email", slog.Any("error", err))
		return "", models.ErrInternalServer
	}
	if !account.Active {
		return "", nil
	}

	token, hash, err := pkgauth.GenerateResetToken()
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to generate reset token", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	expiresAt := s.now().Add(s.policy.ResetTokenExpiry)
	if err := s.accounts.SetResetToken(ctx, account.ID, hash, expiresAt); err != nil {
		s.logger.ErrorContext(ctx, "failed to store reset token", slog.Any("error", err))
		return "", models.ErrInternalServer
	}

	if err := s.email.SendPasswordReset(ctx, account.Email, token, expiresAt); err != nil {
		s.logger.WarnContext(ctx, "failed to send password reset email",
			slog.String("account_id", account.ID), slog.Any("error", err))
	}

	return token, nil
}

// ResetPassword sets a new password for the holder of a live reset token and
// clears any lockout. The account itself is recorded as the actor.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string, meta models.RequestMeta) error {
	if token == "" {
		return models.ErrInvalidOrExpiredToken
	}

	account, err := s.accounts.GetByResetTokenHash(ctx, pkgauth.HashResetToken(token), s.now())
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.ErrInvalidOrExpiredToken
		}
		s.logger.ErrorContext(ctx, "failed to look up reset token", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		return models.NewValidationError("password", err.Error())
	}

	if err := s.storePassword(ctx, account.ID, newPassword); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEvent(account.Actor(), models.AuditUpdate, models.ResourcePassword, account.ID, meta).
		WithChanges(models.AuditChanges{"via": "reset-token"}))
	s.logger.InfoContext(ctx, "password reset", slog.String("account_id", account.ID))
	return nil
}

func (s *AuthService) storePassword(ctx context.Context, accountID, password string) error {
	cost := s.policy.PasswordCost
	if cost == 0 {
		cost = pkgauth.BcryptCost
	}
	hash, err := pkgauth.HashPasswordWithCost(password, cost)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to hash password", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if err := s.accounts.UpdatePassword(ctx, accountID, hash, s.now()); err != nil {
		s.logger.ErrorContext(ctx, "failed to update password", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}
