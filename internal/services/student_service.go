package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/repositories"
)

const recentAttendanceLimit = 20

// StudentService manages student accounts and their enrollment.
type StudentService struct {
	accountWriter
	students   StudentRepository
	classes    ClassRepository
	attendance AttendanceRepository
	audit      AuditRecorder
}

func NewStudentService(
	accounts AccountRepository,
	students StudentRepository,
	classes ClassRepository,
	attendance AttendanceRepository,
	audit AuditRecorder,
	passwordCost int,
	logger *slog.Logger,
) *StudentService {
	return &StudentService{
		accountWriter: accountWriter{accounts: accounts, passwordCost: passwordCost, logger: logger},
		students:      students,
		classes:       classes,
		attendance:    attendance,
		audit:         audit,
	}
}

type CreateStudentInput struct {
	FullName    string
	Email       string
	Password    string
	ClassID     string
	Section     string
	RollNumber  int
	DateOfBirth *time.Time
	Gender      string
	ParentName  string
	ParentEmail string
	ParentPhone string
	Address     string
}

// UpdateStudentInput edits profile fields. Nil fields are left unchanged;
// class and section only change through TransferStudent.
type UpdateStudentInput struct {
	FullName    *string
	Email       *string
	RollNumber  *int
	DateOfBirth *time.Time
	Gender      *string
	ParentName  *string
	ParentEmail *string
	ParentPhone *string
	Address     *string
}

type TransferStudentInput struct {
	ClassID    string
	Section    string
	RollNumber int
}

// StudentDetails is a student profile with lifetime attendance totals and
// the most recent marks.
type StudentDetails struct {
	Student          *models.StudentProfile    `json:"student"`
	AttendanceStats  models.AttendanceStats    `json:"attendanceStats"`
	RecentAttendance []models.AttendanceRecord `json:"recentAttendance"`
}

type StudentPage struct {
	Students []*models.StudentProfile `json:"students"`
	Total    int                      `json:"total"`
	Limit    int                      `json:"limit"`
	Offset   int                      `json:"offset"`
}

// checkPlacement verifies that studentID may hold roll in the class section.
// Capacity is only checked when the student is joining the section.
func (s *StudentService) checkPlacement(ctx context.Context, classID, section string, roll int, studentID string, joining bool) error {
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NotFound("Class")
		}
		s.logger.ErrorContext(ctx, "failed to load class", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !class.HasSection(section) {
		return models.Detail(models.ErrConflict, "section %s does not exist in this class", section)
	}

	taken, err := s.students.RollNumberTaken(ctx, classID, section, roll, studentID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to check roll number", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if taken {
		return models.Detail(models.ErrDuplicateEntry, "roll number %d is already taken in section %s", roll, section)
	}

	if !joining {
		return nil
	}
	count, err := s.students.CountActiveInSection(ctx, classID, section)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to count section students", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if count >= class.Capacity {
		return models.Detail(models.ErrConflict, "class capacity of %d reached for section %s", class.Capacity, section)
	}
	return nil
}

func (s *StudentService) CreateStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, in CreateStudentInput) (*models.StudentProfile, error) {
	if err := s.checkPlacement(ctx, in.ClassID, in.Section, in.RollNumber, "", true); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, in.Email, ""); err != nil {
		return nil, err
	}
	hash, err := s.hashInitialPassword(ctx, in.Password)
	if err != nil {
		return nil, err
	}

	account := &models.Account{
		Email:        in.Email,
		FullName:     strings.TrimSpace(in.FullName),
		PasswordHash: hash,
		Role:         models.RoleStudent,
		Active:       true,
	}
	profile := &models.StudentProfile{
		ClassID:     in.ClassID,
		Section:     in.Section,
		RollNumber:  in.RollNumber,
		DateOfBirth: in.DateOfBirth,
		Gender:      in.Gender,
		ParentName:  in.ParentName,
		ParentEmail: strings.ToLower(strings.TrimSpace(in.ParentEmail)),
		ParentPhone: in.ParentPhone,
		Address:     in.Address,
	}

	created, err := s.students.Create(ctx, account, profile)
	if err != nil {
		return nil, s.writeError(ctx, err, "Student", "create student")
	}

	s.audit.Record(ctx, models.NewAuditEvent(actor, models.AuditCreate, models.ResourceStudent, created.AccountID, meta).
		WithChanges(models.AuditChanges{
			"studentId":  created.StudentCode,
			"classId":    created.ClassID,
			"section":    created.Section,
			"rollNumber": created.RollNumber,
		}))
	s.logger.InfoContext(ctx, "student created", slog.String("student_id", created.AccountID))
	return created, nil
}

func (s *StudentService) getStudent(ctx context.Context, id string) (*models.StudentProfile, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NotFound("Student")
		}
		s.logger.ErrorContext(ctx, "failed to get student", slog.String("student_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return student, nil
}

// GetStudent returns the profile with attendance totals and records a view
// event.
func (s *StudentService) GetStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) (*StudentDetails, error) {
	student, err := s.getStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	counts, err := s.attendance.MonthlyStatusCounts(ctx, id, models.DateRange{})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to aggregate attendance", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	_, stats := models.GroupByMonth(counts)

	recent, err := s.attendance.ListByStudent(ctx, id, models.DateRange{}, recentAttendanceLimit)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list recent attendance", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, models.NewAuditEvent(actor, models.AuditView, models.ResourceStudent, id, meta))
	return &StudentDetails{Student: student, AttendanceStats: stats, RecentAttendance: recent}, nil
}

func (s *StudentService) ListStudents(ctx context.Context, f repositories.StudentFilter) (*StudentPage, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	students, total, err := s.students.List(ctx, f)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list students", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return &StudentPage{Students: students, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *StudentService) UpdateStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in UpdateStudentInput) (*models.StudentProfile, error) {
	existing, err := s.getStudent(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := *existing
	changes := models.AuditChanges{}
	setString := func(field string, dst *string, v *string) {
		if v != nil && *v != *dst {
			changes[field] = map[string]any{"before": *dst, "after": *v}
			*dst = *v
		}
	}
	setString("fullName", &changed.FullName, in.FullName)
	setString("gender", &changed.Gender, in.Gender)
	setString("parentName", &changed.ParentName, in.ParentName)
	setString("parentPhone", &changed.ParentPhone, in.ParentPhone)
	setString("address", &changed.Address, in.Address)
	if in.ParentEmail != nil {
		normalized := strings.ToLower(strings.TrimSpace(*in.ParentEmail))
		setString("parentEmail", &changed.ParentEmail, &normalized)
	}
	if in.DateOfBirth != nil {
		changed.DateOfBirth = in.DateOfBirth
		changes["dateOfBirth"] = in.DateOfBirth.Format(time.DateOnly)
	}

	if in.Email != nil && !strings.EqualFold(*in.Email, existing.Email) {
		if err := s.ensureEmailFree(ctx, *in.Email, id); err != nil {
			return nil, err
		}
		setString("email", &changed.Email, in.Email)
	}
	if in.RollNumber != nil && *in.RollNumber != existing.RollNumber {
		if err := s.checkPlacement(ctx, existing.ClassID, existing.Section, *in.RollNumber, id, false); err != nil {
			return nil, err
		}
		changes["rollNumber"] = map[string]any{"before": existing.RollNumber, "after": *in.RollNumber}
		changed.RollNumber = *in.RollNumber
	}

	updated, err := s.students.Update(ctx, &changed)
	if err != nil {
		return nil, s.writeError(ctx, err, "Student", "update student")
	}

	s.audit.Record(ctx, models.NewAuditEvent(actor, models.AuditUpdate, models.ResourceStudent, id, meta).WithChanges(changes))
	return updated, nil
}

// TransferStudent moves an active student to another class section.
func (s *StudentService) TransferStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in TransferStudentInput) (*models.StudentProfile, error) {
	existing, err := s.getStudent(ctx, id)
	if err != nil {
		return nil, err
	}
	if !existing.Active {
		return nil, models.Detail(models.ErrConflict, "inactive students cannot be transferred")
	}

	joining := existing.ClassID != in.ClassID || existing.Section != in.Section
	if err := s.checkPlacement(ctx, in.ClassID, in.Section, in.RollNumber, id, joining); err != nil {
		return nil, err
	}

	changed := *existing
	changed.ClassID = in.ClassID
	changed.Section = in.Section
	changed.RollNumber = in.RollNumber

	updated, err := s.students.Update(ctx, &changed)
	if err != nil {
		return nil, s.writeError(ctx, err, "Student", "transfer student")
	}

	s.audit.Record(ctx, models.NewAuditEvent(actor, models.AuditUpdate, models.ResourceStudent, id, meta).
		WithChanges(models.AuditChanges{
			"transfer": map[string]any{
				"from": map[string]any{"classId": existing.ClassID, "section": existing.Section, "rollNumber": existing.RollNumber},
				"to":   map[string]any{"classId": in.ClassID, "section": in.Section, "rollNumber": in.RollNumber},
			},
		}))
	s.logger.InfoContext(ctx, "student transferred",
		slog.String("student_id", id),
		slog.String("class_id", in.ClassID),
		slog.String("section", in.Section))
	return updated, nil
}

// DeactivateStudent soft-deletes the student. Attendance history is kept.
func (s *StudentService) DeactivateStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) error {
	if _, err := s.getStudent(ctx, id); err != nil {
		return err
	}
	if err := s.setActive(ctx, id, false, "Student"); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEvent(actor, models.AuditDelete, models.ResourceStudent, id, meta))
	s.logger.InfoContext(ctx, "student deactivated", slog.String("student_id", id))
	return nil
}
