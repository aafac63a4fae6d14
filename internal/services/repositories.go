package services

import (
	"context"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/repositories"
)

// AccountRepository is the credential store used by AuthService.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	RecordFailedLogin(ctx context.Context, id string, now time.Time, maxAttempts int, lockUntil time.Time) (int, *time.Time, error)
	RecordSuccessfulLogin(ctx context.Context, id string, now time.Time) error
	TouchLastActive(ctx context.Context, id string, now time.Time) error
	UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error
	SetResetToken(ctx context.Context, id, tokenHash string, expiresAt time.Time) error
	GetByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*models.Account, error)
	SetActive(ctx context.Context, id string, active bool) error
}

type StudentRepository interface {
	GetByID(ctx context.Context, accountID string) (*models.StudentProfile, error)
	List(ctx context.Context, f repositories.StudentFilter) ([]*models.StudentProfile, int, error)
	Create(ctx context.Context, account *models.Account, p *models.StudentProfile) (*models.StudentProfile, error)
	Update(ctx context.Context, p *models.StudentProfile) (*models.StudentProfile, error)
	RollNumberTaken(ctx context.Context, classID, section string, roll int, excludeID string) (bool, error)
	CountActiveInSection(ctx context.Context, classID, section string) (int, error)
}

type TeacherRepository interface {
	GetByID(ctx context.Context, accountID string) (*models.TeacherProfile, error)
	List(ctx context.Context, includeInactive bool) ([]*models.TeacherProfile, error)
	Create(ctx context.Context, account *models.Account, p *models.TeacherProfile) (*models.TeacherProfile, error)
	Update(ctx context.Context, p *models.TeacherProfile) (*models.TeacherProfile, error)
}

type ClassRepository interface {
	GetByID(ctx context.Context, id string) (*models.Class, error)
	List(ctx context.Context, academicYear string) ([]*models.Class, error)
	Create(ctx context.Context, c *models.Class) (*models.Class, error)
	Update(ctx context.Context, c *models.Class) (*models.Class, error)
	Delete(ctx context.Context, id string) error
	SectionStudentCounts(ctx context.Context, classID string) (map[string]int, error)
}

type AttendanceRepository interface {
	Upsert(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceUpsert, error)
	GetByID(ctx context.Context, id string) (*models.AttendanceRecord, error)
	Update(ctx context.Context, rec *models.AttendanceRecord) (*models.AttendanceRecord, error)
	ListByClassDay(ctx context.Context, classID, section string, day time.Time) ([]models.AttendanceRecord, error)
	ListByClassRange(ctx context.Context, classID, section string, rng models.DateRange) ([]models.AttendanceRecord, error)
	ListByStudent(ctx context.Context, studentID string, rng models.DateRange, limit int) ([]models.AttendanceRecord, error)
	MonthlyStatusCounts(ctx context.Context, studentID string, rng models.DateRange) ([]models.StatusCount, error)
	DayStatusCounts(ctx context.Context, day time.Time) (map[models.AttendanceStatus]int, error)
}

type AuditEventRepository interface {
	Create(ctx context.Context, e *models.AuditEvent) error
	List(ctx context.Context, f models.AuditFilter) ([]*models.AuditEvent, error)
}

// AuditRecorder appends audit events. Recording never fails the caller.
type AuditRecorder interface {
	Record(ctx context.Context, e *models.AuditEvent)
}
