package services

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/schoolmis/internal/auth"
	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/session"
	pkgauth "github.com/BradenHooton/schoolmis/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAccessSecret  = "access-secret-for-service-tests-0123456789"
	testRefreshSecret = "refresh-secret-for-service-tests-987654321"
	testPassword      = "Corr3ct!Horse"
)

// accountStore is an in-memory account table that applies the same lockout
// arithmetic as the SQL repository.
type accountStore struct {
	mu      sync.Mutex
	account models.Account
}

func newAccountStore(t *testing.T, role models.Role) *accountStore {
	t.Helper()
	hash, err := pkgauth.HashPasswordWithCost(testPassword, bcrypt.MinCost)
	require.NoError(t, err)
	a := NewTestAccount(role)
	a.PasswordHash = hash
	changed := time.Now().Add(-time.Hour)
	a.PasswordChangedAt = &changed
	return &accountStore{account: *a}
}

func (s *accountStore) snapshot() models.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account
}

func (s *accountStore) repo() *MockAccountRepository {
	get := func() (*models.Account, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		a := s.account
		return &a, nil
	}
	return &MockAccountRepository{
		GetByIDFunc: func(_ context.Context, id string) (*models.Account, error) {
			if id != s.account.ID {
				return nil, models.ErrNotFound
			}
			return get()
		},
		GetByEmailFunc: func(_ context.Context, email string) (*models.Account, error) {
			if email != s.account.Email {
				return nil, models.ErrNotFound
			}
			return get()
		},
		RecordFailedLoginFunc: func(_ context.Context, _ string, now time.Time, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.account.LockUntil != nil && !s.account.LockUntil.After(now) {
				s.account.FailedLoginAttempts = 0
				s.account.LockUntil = nil
			}
			s.account.FailedLoginAttempts++
			if s.account.FailedLoginAttempts >= maxAttempts {
				s.account.LockUntil = &lockUntil
			}
			return s.account.FailedLoginAttempts, s.account.LockUntil, nil
		},
		RecordSuccessfulLoginFunc: func(_ context.Context, _ string, now time.Time) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.account.FailedLoginAttempts = 0
			s.account.LockUntil = nil
			s.account.LastLoginAt = &now
			return nil
		},
		UpdatePasswordFunc: func(_ context.Context, _ string, hash string, changedAt time.Time) error {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.account.PasswordHash = hash
			s.account.PasswordChangedAt = &changedAt
			return nil
		},
	}
}

type authFixture struct {
	svc      *AuthService
	sessions *session.MemoryStore
	tm       *auth.TokenManager
	auditor  *RecordingAuditor
}

func newAuthFixture(accounts AccountRepository, email EmailService) *authFixture {
	policy := DefaultAuthPolicy()
	policy.PasswordCost = bcrypt.MinCost

	if email == nil {
		email = &MockEmailService{}
	}
	f := &authFixture{
		sessions: session.NewMemoryStore(time.Hour, time.Hour),
		tm:       auth.NewTokenManager(testAccessSecret, testRefreshSecret, 15*time.Minute, 7*24*time.Hour),
		auditor:  &RecordingAuditor{},
	}
	f.svc = NewAuthService(accounts, &MockStudentRepository{}, &MockTeacherRepository{},
		f.sessions, f.tm, f.auditor, email, policy, slog.Default())
	return f
}

// ============================================================================
// Login
// ============================================================================

func TestAuthService_Login_Success(t *testing.T) {
	store := newAccountStore(t, models.RoleTeacher)
	f := newAuthFixture(store.repo(), nil)

	res, err := f.svc.Login(context.Background(), store.account.Email, testPassword, models.RequestMeta{IPAddress: "10.0.0.1"})

	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(900), res.ExpiresIn)
	assert.Equal(t, store.account.ID, res.User.ID)

	sess, err := f.sessions.Get(context.Background(), res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, store.account.ID, sess.AccountID)
	assert.Equal(t, []models.AuditKind{models.AuditLogin}, f.auditor.Kinds())
}

func TestAuthService_Login_EmailIsCaseInsensitive(t *testing.T) {
	store := newAccountStore(t, models.RoleTeacher)
	store.account.Email = "teacher@school.test"
	f := newAuthFixture(store.repo(), nil)

	_, err := f.svc.Login(context.Background(), "  Teacher@School.TEST ", testPassword, models.RequestMeta{})

	assert.NoError(t, err)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	f := newAuthFixture(&MockAccountRepository{}, nil)

	res, err := f.svc.Login(context.Background(), "nobody@school.test", testPassword, models.RequestMeta{})

	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Nil(t, res)
}

func TestAuthService_Login_WrongPasswordReportsRemainingAttempts(t *testing.T) {
	store := newAccountStore(t, models.RoleStudent)
	f := newAuthFixture(store.repo(), nil)

	_, err := f.svc.Login(context.Background(), store.account.Email, "Wr0ng!Password", models.RequestMeta{})

	var failure *models.LoginFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, 4, failure.AttemptsRemaining)
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
}

func TestAuthService_Login_LockoutAndRecovery(t *testing.T) {
	store := newAccountStore(t, models.RoleTeacher)
	f := newAuthFixture(store.repo(), nil)
	ctx := context.Background()
	email := store.account.Email

	for i := 1; i <= 4; i++ {
		_, err := f.svc.Login(ctx, email, "Wr0ng!Password", models.RequestMeta{})
		var failure *models.LoginFailure
		require.ErrorAs(t, err, &failure, "attempt %d", i)
		assert.Equal(t, 5-i, failure.AttemptsRemaining)
	}

	_, err := f.svc.Login(ctx, email, "Wr0ng!Password", models.RequestMeta{})
	var lockout *models.LockoutError
	require.ErrorAs(t, err, &lockout)
	assert.Equal(t, 30, lockout.RemainingMinutes)

	// The right password is refused while the lock holds.
	_, err = f.svc.Login(ctx, email, testPassword, models.RequestMeta{})
	assert.ErrorIs(t, err, models.ErrAccountLocked)

	later := time.Now().Add(31 * time.Minute)
	f.svc.now = func() time.Time { return later }

	res, err := f.svc.Login(ctx, email, testPassword, models.RequestMeta{})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, 0, store.snapshot().FailedLoginAttempts)
	assert.Nil(t, store.snapshot().LockUntil)
}

func TestAuthService_Login_Deactivated(t *testing.T) {
	store := newAccountStore(t, models.RoleStudent)
	store.account.Active = false
	f := newAuthFixture(store.repo(), nil)

	_, err := f.svc.Login(context.Background(), store.account.Email, testPassword, models.RequestMeta{})

	assert.ErrorIs(t, err, models.ErrAccountDeactivated)
}

// ============================================================================
// Authenticate
// ============================================================================

func TestAuthService_Authenticate_BearerToken(t *testing.T) {
	store := newAccountStore(t, models.RoleAdmin)
	f := newAuthFixture(store.repo(), nil)

	token, err := f.tm.GenerateAccessToken(store.account.ID, models.RoleAdmin)
	require.NoError(t, err)

	account, err := f.svc.Authenticate(context.Background(), token, "")

	require.NoError(t, err)
	assert.Equal(t, store.account.ID, account.ID)
}

func TestAuthService_Authenticate_SessionOnlyRefreshesActivity(t *testing.T) {
	store := newAccountStore(t, models.RoleTeacher)
	f := newAuthFixture(store.repo(), nil)
	ctx := context.Background()

	start := time.Now()
	sess := session.New(store.account.ID, models.RoleTeacher, start)
	require.NoError(t, f.sessions.Save(ctx, sess))

	later := start.Add(4 * time.Minute)
	f.svc.now = func() time.Time { return later }

	account, err := f.svc.Authenticate(ctx, "", sess.ID)
	require.NoError(t, err)
	assert.Equal(t, store.account.ID, account.ID)

	got, err := f.sessions.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, got.LastActivity.Equal(later))
}

func TestAuthService_Authenticate_IdleSessionExpires(t *testing.T) {
	store := newAccountStore(t, models.RoleTeacher)
	f := newAuthFixture(store.repo(), nil)
	ctx := context.Background()

	now := time.Now()
	sess := session.New(store.account.ID, models.RoleTeacher, now.Add(-6*time.Minute))
	require.NoError(t, f.sessions.Save(ctx, sess))
	f.svc.now = func() time.Time { return now }

	token, err := f.tm.GenerateAccessToken(store.account.ID, models.RoleTeacher)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(ctx, token, sess.ID)
	assert.ErrorIs(t, err, models.ErrSessionExpired)

	_, err = f.sessions.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestAuthService_Authenticate_NoCredentials(t *testing.T) {
	f := newAuthFixture(&MockAccountRepository{}, nil)

	_, err := f.svc.Authenticate(context.Background(), "", "")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)

	_, err = f.svc.Authenticate(context.Background(), "", "unknown-session")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestAuthService_Authenticate_DeactivatedAccount(t *testing.T) {
	store := newAccountStore(t, models.RoleTeacher)
	store.account.Active = false
	f := newAuthFixture(store.repo(), nil)

	token, err := f.tm.GenerateAccessToken(store.account.ID, models.RoleTeacher)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), token, "")
	assert.ErrorIs(t, err, models.ErrUnauthenticated)
}

func TestAuthService_Authenticate_TouchesStaleActivityOnly(t *testing.T) {
	store := newAccountStore(t, models.RoleTeacher)
	touches := 0
	repo := store.repo()
	repo.TouchLastActiveFunc = func(_ context.Context, _ string, _ time.Time) error {
		touches++
		return nil
	}
	f := newAuthFixture(repo, nil)

	recent := time.Now().Add(-time.Minute)
	store.account.LastActiveAt = &recent
	token, err := f.tm.GenerateAccessToken(store.account.ID, models.RoleTeacher)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), token, "")
	require.NoError(t, err)
	assert.Equal(t, 0, touches)

	stale := time.Now().Add(-10 * time.Minute)
	store.account.LastActiveAt = &stale
	_, err = f.svc.Authenticate(context.Background(), token, "")
	require.NoError(t, err)
	assert.Equal(t, 1, touches)
}

// ============================================================================
// Refresh
// ============================================================================

func TestAuthService_Refresh_Success(t *testing.T) {
	store := newAccountStore(t, models.RoleTeacher)
	f := newAuthFixture(store.repo(), nil)

	refresh, err := f.tm.GenerateRefreshToken(store.account.ID)
	require.NoError(t, err)

	res, err := f.svc.Refresh(context.Background(), refresh)

	require.NoError(t, err)
	claims, err := f.tm.ValidateAccessToken(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, store.account.ID, claims.Subject)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestAuthService_Refresh_RejectsTokenSignedWithAccessSecret(t *testing.T) {
	store := newAccountStore(t, models.RoleTeacher)
	f := newAuthFixture(store.repo(), nil)

	// A manager whose refresh secret is the access secret signs a refresh
	// typed token with the wrong key.
	forger := auth.NewTokenManager(testRefreshSecret, testAccessSecret, time.Minute, time.Hour)
	forged, err := forger.GenerateRefreshToken(store.account.ID)
	require.NoError(t, err)

	_, err = f.svc.Refresh(context.Background(), forged)
	assert.ErrorIs(t, err, models.ErrInvalidToken)

	access, err := f.tm.GenerateAccessToken(store.account.ID, models.RoleTeacher)
	require.NoError(t, err)
	_, err = f.svc.Refresh(context.Background(), access)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

func TestAuthService_Refresh_RejectsTokenIssuedBeforePasswordChange(t *testing.T) {
	store := newAccountStore(t, models.RoleTeacher)
	f := newAuthFixture(store.repo(), nil)

	refresh, err := f.tm.GenerateRefreshToken(store.account.ID)
	require.NoError(t, err)

	changed := time.Now().Add(2 * time.Second)
	store.account.PasswordChangedAt = &changed

	_, err = f.svc.Refresh(context.Background(), refresh)
	assert.ErrorIs(t, err, models.ErrInvalidToken)
}

// ============================================================================
// Logout / Me
// ============================================================================

func TestAuthService_Logout_DestroysSession(t *testing.T) {
	store := newAccountStore(t, models.RoleTeacher)
	f := newAuthFixture(store.repo(), nil)
	ctx := context.Background()

	sess := session.New(store.account.ID, models.RoleTeacher, time.Now())
	require.NoError(t, f.sessions.Save(ctx, sess))

	account := store.snapshot()
	require.NoError(t, f.svc.Logout(ctx, &account, sess.ID, models.RequestMeta{}))

	_, err := f.sessions.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, []models.AuditKind{models.AuditLogout}, f.auditor.Kinds())
}

func TestAuthService_Me_ResolvesRoleFields(t *testing.T) {
	class := NewTestClass()
	student := NewTestStudent(class, "A", 7)

	f := newAuthFixture(&MockAccountRepository{}, nil)
	f.svc.students = &MockStudentRepository{
		GetByIDFunc: func(_ context.Context, _ string) (*models.StudentProfile, error) { return student, nil },
	}

	studentAccount := NewTestAccount(models.RoleStudent)
	sum, err := f.svc.Me(context.Background(), studentAccount)
	require.NoError(t, err)
	assert.Equal(t, student.StudentCode, sum.StudentCode)
	assert.Equal(t, "A", sum.Section)
	assert.Equal(t, 7, sum.RollNumber)

	admin := NewTestAccount(models.RoleAdmin)
	admin.FullName = ""
	sum, err = f.svc.Me(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, "Principal", sum.FullName)
}

// ============================================================================
// Password management
// ============================================================================

func TestAuthService_ChangePassword(t *testing.T) {
	store := newAccountStore(t, models.RoleTeacher)
	f := newAuthFixture(store.repo(), nil)
	ctx := context.Background()
	account := store.snapshot()

	err := f.svc.ChangePassword(ctx, &account, "Wr0ng!Password", "N3w!Password", models.RequestMeta{})
	assert.ErrorIs(t, err, models.ErrValidation)

	err = f.svc.ChangePassword(ctx, &account, testPassword, "weak", models.RequestMeta{})
	assert.ErrorIs(t, err, models.ErrValidation)

	err = f.svc.ChangePassword(ctx, &account, testPassword, testPassword, models.RequestMeta{})
	assert.ErrorIs(t, err, models.ErrValidation)

	require.NoError(t, f.svc.ChangePassword(ctx, &account, testPassword, "N3w!Password", models.RequestMeta{}))
	assert.NoError(t, pkgauth.ComparePassword(store.snapshot().PasswordHash, "N3w!Password"))
	assert.Equal(t, []models.AuditKind{models.AuditUpdate}, f.auditor.Kinds())
}

func TestAuthService_ForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	sent := false
	email := &MockEmailService{
		SendPasswordResetFunc: func(_ context.Context, _, _ string, _ time.Time) error {
			sent = true
			return nil
		},
	}
	f := newAuthFixture(&MockAccountRepository{}, email)

	token, err := f.svc.ForgotPassword(context.Background(), "ghost@school.test")

	require.NoError(t, err)
	assert.Empty(t, token)
	assert.False(t, sent)
}

func TestAuthService_ForgotAndResetPassword(t *testing.T) {
	store := newAccountStore(t, models.RoleStudent)
	repo := store.repo()

	var storedHash string
	var storedExpiry time.Time
	repo.SetResetTokenFunc = func(_ context.Context, _ string, hash string, expiresAt time.Time) error {
		storedHash = hash
		storedExpiry = expiresAt
		return nil
	}
	repo.GetByResetTokenHashFunc = func(_ context.Context, hash string, now time.Time) (*models.Account, error) {
		if hash != storedHash || !now.Before(storedExpiry) {
			return nil, models.ErrNotFound
		}
		a := store.snapshot()
		return &a, nil
	}

	var mailed string
	email := &MockEmailService{
		SendPasswordResetFunc: func(_ context.Context, to, token string, _ time.Time) error {
			assert.Equal(t, store.account.Email, to)
			mailed = token
			return nil
		},
	}
	f := newAuthFixture(repo, email)
	ctx := context.Background()
	meta := models.RequestMeta{IPAddress: "203.0.113.5", UserAgent: "test"}

	token, err := f.svc.ForgotPassword(ctx, store.account.Email)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, token, mailed)
	assert.Equal(t, pkgauth.HashResetToken(token), storedHash)

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "not-the-token", "N3w!Password", meta), models.ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, "", "N3w!Password", meta), models.ErrInvalidOrExpiredToken)
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "weak", meta), models.ErrValidation)

	assert.Empty(t, f.auditor.Kinds())

	require.NoError(t, f.svc.ResetPassword(ctx, token, "N3w!Password", meta))
	assert.NoError(t, pkgauth.ComparePassword(store.snapshot().PasswordHash, "N3w!Password"))

	require.Len(t, f.auditor.Events, 1)
	ev := f.auditor.Events[0]
	assert.Equal(t, models.AuditUpdate, ev.Kind)
	assert.Equal(t, models.ResourcePassword, ev.ResourceType)
	assert.Equal(t, store.account.ID, ev.ResourceID)
	assert.Equal(t, store.account.ID, ev.ActorID)
	assert.Equal(t, "203.0.113.5", ev.IPAddress)

	f.svc.now = func() time.Time { return time.Now().Add(11 * time.Minute) }
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "An0ther!Password", meta), models.ErrInvalidOrExpiredToken)
}
