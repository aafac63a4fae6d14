package repositories

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BradenHooton/schoolmis/internal/database"
	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// rowScanner covers pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, email, full_name, password_hash, role, active, failed_login_attempts,
	lock_until, password_changed_at, reset_token_hash, reset_token_expires_at,
	last_login_at, last_active_at, created_at, updated_at`

func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var a models.Account
	var role string

	err := scanner.Scan(
		&a.ID, &a.Email, &a.FullName, &a.PasswordHash, &role, &a.Active, &a.FailedLoginAttempts,
		&a.LockUntil, &a.PasswordChangedAt, &a.ResetTokenHash, &a.ResetTokenExpiresAt,
		&a.LastLoginAt, &a.LastActiveAt, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	a.Role = models.Role(role)

	return &a, nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccountRow(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail matches case-insensitively.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE lower(email) = lower($1)`
	return scanAccountRow(r.pool.QueryRow(ctx, query, strings.TrimSpace(email)))
}

func (r *AccountRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	return insertAccount(ctx, r.pool, account)
}

// insertAccount assigns id and timestamps, lower-cases the email and inserts
// through q so profile repositories can reuse it inside a transaction.
func insertAccount(ctx context.Context, q querier, account *models.Account) (*models.Account, error) {
	account.ID = uuid.New().String()
	account.Email = strings.ToLower(strings.TrimSpace(account.Email))

	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	if account.PasswordChangedAt == nil {
		account.PasswordChangedAt = &now
	}

	query := `
		INSERT INTO accounts (id, email, full_name, password_hash, role, active, password_changed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + accountColumns

	created, err := scanAccountRow(q.QueryRow(ctx, query,
		account.ID, account.Email, account.FullName, account.PasswordHash, string(account.Role),
		account.Active, account.PasswordChangedAt, account.CreatedAt, account.UpdatedAt,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return created, nil
}

func (r *AccountRepository) ExistsWithRole(ctx context.Context, role models.Role) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM accounts WHERE role = $1 AND active)`, string(role),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check accounts: %w", err)
	}
	return exists, nil
}

// RecordFailedLogin increments the failure counter in one statement. An
// expired lock restarts the count before this failure is added. When the
// counter reaches maxAttempts the account is locked until lockUntil.
func (r *AccountRepository) RecordFailedLogin(ctx context.Context, id string, now time.Time, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	query := `
		UPDATE accounts SET
			failed_login_attempts = CASE
				WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN 1
				ELSE failed_login_attempts + 1
			END,
			lock_until = CASE
				WHEN (CASE WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN 1
				           ELSE failed_login_attempts + 1 END) >= $3 THEN $4::timestamptz
				WHEN lock_until IS NOT NULL AND lock_until <= $2 THEN NULL
				ELSE lock_until
			END,
			updated_at = $2
		WHERE id = $1
		RETURNING failed_login_attempts, lock_until
	`

	var attempts int
	var locked *time.Time
	err := r.pool.QueryRow(ctx, query, id, now, maxAttempts, lockUntil).Scan(&attempts, &locked)
	if err != nil {
		return 0, nil, database.MapPostgresError(err)
	}
	return attempts, locked, nil
}

// RecordSuccessfulLogin clears the lockout state and stamps login activity.
func (r *AccountRepository) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	query := `
		UPDATE accounts
		SET failed_login_attempts = 0, lock_until = NULL, last_login_at = $2, last_active_at = $2, updated_at = $2
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, now)
}

func (r *AccountRepository) TouchLastActive(ctx context.Context, id string, now time.Time) error {
	return r.execOne(ctx, `UPDATE accounts SET last_active_at = $2 WHERE id = $1`, id, now)
}

// UpdatePassword stores a new hash, invalidates any reset token and clears
// the lockout.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	query := `
		UPDATE accounts
		SET password_hash = $2, password_changed_at = $3,
			reset_token_hash = NULL, reset_token_expires_at = NULL,
			failed_login_attempts = 0, lock_until = NULL, updated_at = $3
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, passwordHash, changedAt)
}

func (r *AccountRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	query := `
		UPDATE accounts
		SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = NOW()
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, tokenHash, expiresAt)
}

// GetByResetTokenHash only matches tokens that have not expired at now.
func (r *AccountRepository) GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE reset_token_hash = $1 AND reset_token_expires_at > $2`
	return scanAccountRow(r.pool.QueryRow(ctx, query, tokenHash, now))
}

func (r *AccountRepository) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE accounts
		SET reset_token_hash = NULL, reset_token_expires_at = NULL
		WHERE reset_token_expires_at IS NOT NULL AND reset_token_expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to clear expired reset tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetActive toggles the soft-delete flag. Accounts are never removed.
func (r *AccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	return r.execOne(ctx, `UPDATE accounts SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
}

func (r *AccountRepository) execOne(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
