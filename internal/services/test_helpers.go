package services

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/repositories"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByIDFunc               func(ctx context.Context, id string) (*models.Account, error)
	GetByEmailFunc            func(ctx context.Context, email string) (*models.Account, error)
	RecordFailedLoginFunc     func(ctx context.Context, id string, now time.Time, maxAttempts int, lockUntil time.Time) (int, *time.Time, error)
	RecordSuccessfulLoginFunc func(ctx context.Context, id string, now time.Time) error
	TouchLastActiveFunc       func(ctx context.Context, id string, now time.Time) error
	UpdatePasswordFunc        func(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	SetResetTokenFunc         func(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	GetByResetTokenHashFunc   func(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error)
	SetActiveFunc             func(ctx context.Context, id string, active bool) error
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) RecordFailedLogin(ctx context.Context, id string, now time.Time, maxAttempts int, lockUntil time.Time) (int, *time.Time, error) {
	if m.RecordFailedLoginFunc != nil {
		return m.RecordFailedLoginFunc(ctx, id, now, maxAttempts, lockUntil)
	}
	return 1, nil, nil
}

func (m *MockAccountRepository) RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error {
	if m.RecordSuccessfulLoginFunc != nil {
		return m.RecordSuccessfulLoginFunc(ctx, id, now)
	}
	return nil
}

func (m *MockAccountRepository) TouchLastActive(ctx context.Context, id string, now time.Time) error {
	if m.TouchLastActiveFunc != nil {
		return m.TouchLastActiveFunc(ctx, id, now)
	}
	return nil
}

func (m *MockAccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash, changedAt)
	}
	return nil
}

func (m *MockAccountRepository) SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error {
	if m.SetResetTokenFunc != nil {
		return m.SetResetTokenFunc(ctx, id, tokenHash, expiresAt)
	}
	return nil
}

func (m *MockAccountRepository) GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error) {
	if m.GetByResetTokenHashFunc != nil {
		return m.GetByResetTokenHashFunc(ctx, tokenHash, now)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) SetActive(ctx context.Context, id string, active bool) error {
	if m.SetActiveFunc != nil {
		return m.SetActiveFunc(ctx, id, active)
	}
	return nil
}

// MockStudentRepository implements StudentRepository for testing
type MockStudentRepository struct {
	GetByIDFunc              func(ctx context.Context, accountID string) (*models.StudentProfile, error)
	ListFunc                 func(ctx context.Context, f repositories.StudentFilter) ([]*models.StudentProfile, int, error)
	CreateFunc               func(ctx context.Context, account *models.Account, p *models.StudentProfile) (*models.StudentProfile, error)
	UpdateFunc               func(ctx context.Context, p *models.StudentProfile) (*models.StudentProfile, error)
	RollNumberTakenFunc      func(ctx context.Context, classID, section string, roll int, excludeID string) (bool, error)
	CountActiveInSectionFunc func(ctx context.Context, classID, section string) (int, error)
}

func (m *MockStudentRepository) GetByID(ctx context.Context, accountID string) (*models.StudentProfile, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, accountID)
	}
	return nil, models.ErrNotFound
}

func (m *MockStudentRepository) List(ctx context.Context, f repositories.StudentFilter) ([]*models.StudentProfile, int, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, f)
	}
	return []*models.StudentProfile{}, 0, nil
}

func (m *MockStudentRepository) Create(ctx context.Context, account *models.Account, p *models.StudentProfile) (*models.StudentProfile, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account, p)
	}
	return nil, models.ErrInternalServer
}

func (m *MockStudentRepository) Update(ctx context.Context, p *models.StudentProfile) (*models.StudentProfile, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, p)
	}
	return p, nil
}

func (m *MockStudentRepository) RollNumberTaken(ctx context.Context, classID, section string, roll int, excludeID string) (bool, error) {
	if m.RollNumberTakenFunc != nil {
		return m.RollNumberTakenFunc(ctx, classID, section, roll, excludeID)
	}
	return false, nil
}

func (m *MockStudentRepository) CountActiveInSection(ctx context.Context, classID, section string) (int, error) {
	if m.CountActiveInSectionFunc != nil {
		return m.CountActiveInSectionFunc(ctx, classID, section)
	}
	return 0, nil
}

// MockTeacherRepository implements TeacherRepository for testing
type MockTeacherRepository struct {
	GetByIDFunc func(ctx context.Context, accountID string) (*models.TeacherProfile, error)
	ListFunc    func(ctx context.Context, includeInactive bool) ([]*models.TeacherProfile, error)
	CreateFunc  func(ctx context.Context, account *models.Account, p *models.TeacherProfile) (*models.TeacherProfile, error)
	UpdateFunc  func(ctx context.Context, p *models.TeacherProfile) (*models.TeacherProfile, error)
}

func (m *MockTeacherRepository) GetByID(ctx context.Context, accountID string) (*models.TeacherProfile, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, accountID)
	}
	return nil, models.ErrNotFound
}

func (m *MockTeacherRepository) List(ctx context.Context, includeInactive bool) ([]*models.TeacherProfile, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, includeInactive)
	}
	return []*models.TeacherProfile{}, nil
}

func (m *MockTeacherRepository) Create(ctx context.Context, account *models.Account, p *models.TeacherProfile) (*models.TeacherProfile, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, account, p)
	}
	return nil, models.ErrInternalServer
}

func (m *MockTeacherRepository) Update(ctx context.Context, p *models.TeacherProfile) (*models.TeacherProfile, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, p)
	}
	return p, nil
}

// MockClassRepository implements ClassRepository for testing
type MockClassRepository struct {
	GetByIDFunc              func(ctx context.Context, id string) (*models.Class, error)
	ListFunc                 func(ctx context.Context, academicYear string) ([]*models.Class, error)
	CreateFunc               func(ctx context.Context, c *models.Class) (*models.Class, error)
	UpdateFunc               func(ctx context.Context, c *models.Class) (*models.Class, error)
	DeleteFunc               func(ctx context.Context, id string) error
	SectionStudentCountsFunc func(ctx context.Context, classID string) (map[string]int, error)
}

func (m *MockClassRepository) GetByID(ctx context.Context, id string) (*models.Class, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockClassRepository) List(ctx context.Context, academicYear string) ([]*models.Class, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, academicYear)
	}
	return []*models.Class{}, nil
}

func (m *MockClassRepository) Create(ctx context.Context, c *models.Class) (*models.Class, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, c)
	}
	c.ID = uuid.New().String()
	return c, nil
}

func (m *MockClassRepository) Update(ctx context.Context, c *models.Class) (*models.Class, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, c)
	}
	return c, nil
}

func (m *MockClassRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

func (m *MockClassRepository) SectionStudentCounts(ctx context.Context, classID string) (map[string]int, error) {
	if m.SectionStudentCountsFunc != nil {
		return m.SectionStudentCountsFunc(ctx, classID)
	}
	return map[string]int{}, nil
}

// MockAttendanceRepository implements AttendanceRepository for testing
type MockAttendanceRepository struct {
	UpsertFunc              func(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceUpsert, error)
	GetByIDFunc             func(ctx context.Context, id string) (*models.AttendanceRecord, error)
	UpdateFunc              func(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error)
	ListByClassDayFunc      func(ctx context.Context, classID, section string, day time.Time) ([]models.AttendanceRecord, error)
	ListByClassRangeFunc    func(ctx context.Context, classID, section string, rng models.DateRange) ([]models.AttendanceRecord, error)
	ListByStudentFunc       func(ctx context.Context, studentID string, rng models.DateRange, limit int) ([]models.AttendanceRecord, error)
	MonthlyStatusCountsFunc func(ctx context.Context, studentID string, rng models.DateRange) ([]models.StatusCount, error)
	DayStatusCountsFunc     func(ctx context.Context, day time.Time) (map[models.AttendanceStatus]int, error)
}

func (m *MockAttendanceRepository) Upsert(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceUpsert, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, rec)
	}
	rec.ID = uuid.New().String()
	return &models.AttendanceUpsert{Record: rec, Created: true}, nil
}

func (m *MockAttendanceRepository) GetByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAttendanceRepository) Update(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error) {
	if m.UpdateFunc != nil {
		return m.UpdateFunc(ctx, rec)
	}
	return rec, nil
}

func (m *MockAttendanceRepository) ListByClassDay(ctx context.Context, classID, section string, day time.Time) ([]models.AttendanceRecord, error) {
	if m.ListByClassDayFunc != nil {
		return m.ListByClassDayFunc(ctx, classID, section, day)
	}
	return []models.AttendanceRecord{}, nil
}

func (m *MockAttendanceRepository) ListByClassRange(ctx context.Context, classID, section string, rng models.DateRange) ([]models.AttendanceRecord, error) {
	if m.ListByClassRangeFunc != nil {
		return m.ListByClassRangeFunc(ctx, classID, section, rng)
	}
	return []models.AttendanceRecord{}, nil
}

func (m *MockAttendanceRepository) ListByStudent(ctx context.Context, studentID string, rng models.DateRange, limit int) ([]models.AttendanceRecord, error) {
	if m.ListByStudentFunc != nil {
		return m.ListByStudentFunc(ctx, studentID, rng, limit)
	}
	return []models.AttendanceRecord{}, nil
}

func (m *MockAttendanceRepository) MonthlyStatusCounts(ctx context.Context, studentID string, rng models.DateRange) ([]models.StatusCount, error) {
	if m.MonthlyStatusCountsFunc != nil {
		return m.MonthlyStatusCountsFunc(ctx, studentID, rng)
	}
	return nil, nil
}

func (m *MockAttendanceRepository) DayStatusCounts(ctx context.Context, day time.Time) (map[models.AttendanceStatus]int, error) {
	if m.DayStatusCountsFunc != nil {
		return m.DayStatusCountsFunc(ctx, day)
	}
	return map[models.AttendanceStatus]int{}, nil
}

// MockAuditEventRepository implements AuditEventRepository for testing
type MockAuditEventRepository struct {
	CreateFunc func(ctx context.Context, e *models.AuditEvent) error
	ListFunc   func(ctx context.Context, f models.AuditFilter) ([]*models.AuditEvent, error)
}

func (m *MockAuditEventRepository) Create(ctx context.Context, e *models.AuditEvent) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, e)
	}
	return nil
}

func (m *MockAuditEventRepository) List(ctx context.Context, f models.AuditFilter) ([]*models.AuditEvent, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, f)
	}
	return []*models.AuditEvent{}, nil
}

// RecordingAuditor keeps every recorded event in memory.
type RecordingAuditor struct {
	mu     sync.Mutex
	Events []*models.AuditEvent
}

func (r *RecordingAuditor) Record(_ context.Context, e *models.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, e)
}

// Kinds lists the kinds of the recorded events in order.
func (r *RecordingAuditor) Kinds() []models.AuditKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]models.AuditKind, 0, len(r.Events))
	for _, e := range r.Events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// MockEmailService implements EmailService for testing
type MockEmailService struct {
	SendAbsenteeAlertFunc func(ctx context.Context, parentEmail, studentName, date, className, section string) (bool, error)
	SendPasswordResetFunc func(ctx context.Context, email, token string, expiresAt time.Time) error
}

func (m *MockEmailService) SendAbsenteeAlert(ctx context.Context, parentEmail, studentName, date, className, section string) (bool, error) {
	if m.SendAbsenteeAlertFunc != nil {
		return m.SendAbsenteeAlertFunc(ctx, parentEmail, studentName, date, className, section)
	}
	return true, nil
}

func (m *MockEmailService) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	if m.SendPasswordResetFunc != nil {
		return m.SendPasswordResetFunc(ctx, email, token, expiresAt)
	}
	return nil
}

// MockNotifier implements Notifier for testing
type MockNotifier struct {
	NotifyAbsenceFunc func(ctx context.Context, studentID, classID, section string, date time.Time) error
}

func (m *MockNotifier) NotifyAbsence(ctx context.Context, studentID, classID, section string, date time.Time) error {
	if m.NotifyAbsenceFunc != nil {
		return m.NotifyAbsenceFunc(ctx, studentID, classID, section, date)
	}
	return nil
}

// MockSESClient implements SESAPI for testing
type MockSESClient struct {
	SendEmailFunc func(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

func (m *MockSESClient) SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	if m.SendEmailFunc != nil {
		return m.SendEmailFunc(ctx, params, optFns...)
	}
	return &ses.SendEmailOutput{}, nil
}

// NewTestAccount builds an active account with fake identity fields.
func NewTestAccount(role models.Role) *models.Account {
	now := time.Now()
	return &models.Account{
		ID:                uuid.New().String(),
		Email:             strings.ToLower(gofakeit.Email()),
		FullName:          gofakeit.Name(),
		Role:              role,
		Active:            true,
		PasswordChangedAt: &now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// NewTestClass builds a class with sections A and B.
func NewTestClass() *models.Class {
	now := time.Now()
	return &models.Class{
		ID:           uuid.New().String(),
		ClassName:    "5",
		Sections:     []string{"A", "B"},
		AcademicYear: "2024-2025",
		Capacity:     models.DefaultClassCapacity,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewTestStudent builds an active student enrolled in class section.
func NewTestStudent(class *models.Class, section string, roll int) *models.StudentProfile {
	now := time.Now()
	return &models.StudentProfile{
		AccountID:   uuid.New().String(),
		StudentCode: "STU24" + gofakeit.DigitN(4),
		FullName:    gofakeit.Name(),
		Email:       gofakeit.Email(),
		Active:      true,
		ClassID:     class.ID,
		ClassName:   class.ClassName,
		Section:     section,
		RollNumber:  roll,
		ParentName:  gofakeit.Name(),
		ParentEmail: gofakeit.Email(),
		ParentPhone: gofakeit.Phone(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewTestTeacher builds an active teacher profile.
func NewTestTeacher() *models.TeacherProfile {
	now := time.Now()
	return &models.TeacherProfile{
		AccountID:   uuid.New().String(),
		TeacherCode: "TCH" + gofakeit.DigitN(4),
		FullName:    gofakeit.Name(),
		Email:       gofakeit.Email(),
		Active:      true,
		Subjects:    []string{"Mathematics"},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
