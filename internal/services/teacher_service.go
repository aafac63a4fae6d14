package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
)

type TeacherService struct {
	accountWriter
	teachers TeacherRepository
	audit    AuditRecorder
}

func NewTeacherService(accounts AccountRepository, teachers TeacherRepository, audit AuditRecorder, passwordCost int, logger *slog.Logger) *TeacherService {
	return &TeacherService{
		accountWriter: accountWriter{accounts: accounts, passwordCost: passwordCost, logger: logger},
		teachers:      teachers,
		audit:         audit,
	}
}

type CreateTeacherInput struct {
	FullName      string
	Email         string
	Password      string
	Qualification string
	Subjects      []string
	Phone         string
	JoiningDate   *time.Time
}

type UpdateTeacherInput struct {
	FullName      *string
	Email         *string
	Qualification *string
	Subjects      []string
	Phone         *string
	JoiningDate   *time.Time
}

func (s *TeacherService) CreateTeacher(ctx context.Context, actor models.Actor, meta models.RequestMeta, in CreateTeacherInput) (*models.TeacherProfile, error) {
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
		Role:         models.RoleTeacher,
		Active:       true,
	}
	profile := &models.TeacherProfile{
		Qualification: in.Qualification,
		Subjects:      normalizeSubjects(in.Subjects),
		Phone:         in.Phone,
		JoiningDate:   in.JoiningDate,
	}

	created, err := s.teachers.Create(ctx, account, profile)
	if err != nil {
		return nil, s.writeError(ctx, err, "Teacher", "create teacher")
	}

	s.audit.Record(ctx, models.NewAuditEvent(actor, models.AuditCreate, models.ResourceTeacher, created.AccountID, meta).
		WithChanges(models.AuditChanges{"teacherId": created.TeacherCode, "subjects": created.Subjects}))
	s.logger.InfoContext(ctx, "teacher created", slog.String("teacher_id", created.AccountID))
	return created, nil
}

func (s *TeacherService) GetTeacher(ctx context.Context, id string) (*models.TeacherProfile, error) {
	teacher, err := s.teachers.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NotFound("Teacher")
		}
		s.logger.ErrorContext(ctx, "failed to get teacher", slog.String("teacher_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return teacher, nil
}

func (s *TeacherService) ListTeachers(ctx context.Context, includeInactive bool) ([]*models.TeacherProfile, error) {
	teachers, err := s.teachers.List(ctx, includeInactive)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list teachers", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return teachers, nil
}

func (s *TeacherService) UpdateTeacher(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in UpdateTeacherInput) (*models.TeacherProfile, error) {
	existing, err := s.GetTeacher(ctx, id)
	if err != nil {
		return nil, err
	}

	changed := *existing
	changes := models.AuditChanges{}
	if in.FullName != nil {
		changed.FullName = strings.TrimSpace(*in.FullName)
		changes["fullName"] = changed.FullName
	}
	if in.Email != nil && !strings.EqualFold(*in.Email, existing.Email) {
		if err := s.ensureEmailFree(ctx, *in.Email, id); err != nil {
			return nil, err
		}
		changed.Email = *in.Email
		changes["email"] = changed.Email
	}
	if in.Qualification != nil {
		changed.Qualification = *in.Qualification
		changes["qualification"] = changed.Qualification
	}
	if in.Subjects != nil {
		changed.Subjects = normalizeSubjects(in.Subjects)
		changes["subjects"] = changed.Subjects
	}
	if in.Phone != nil {
		changed.Phone = *in.Phone
		changes["phone"] = changed.Phone
	}
	if in.JoiningDate != nil {
		changed.JoiningDate = in.JoiningDate
		changes["joiningDate"] = in.JoiningDate.Format(time.DateOnly)
	}

	updated, err := s.teachers.Update(ctx, &changed)
	if err != nil {
		return nil, s.writeError(ctx, err, "Teacher", "update teacher")
	}

	s.audit.Record(ctx, models.NewAuditEvent(actor, models.AuditUpdate, models.ResourceTeacher, id, meta).WithChanges(changes))
	return updated, nil
}

func (s *TeacherService) DeactivateTeacher(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) error {
	if _, err := s.GetTeacher(ctx, id); err != nil {
		return err
	}
	if err := s.setActive(ctx, id, false, "Teacher"); err != nil {
		return err
	}

	s.audit.Record(ctx, models.NewAuditEvent(actor, models.AuditDelete, models.ResourceTeacher, id, meta))
	s.logger.InfoContext(ctx, "teacher deactivated", slog.String("teacher_id", id))
	return nil
}

// normalizeSubjects trims, drops blanks and removes duplicates while keeping
// the first-seen order.
func normalizeSubjects(subjects []string) []string {
	out := make([]string, 0, len(subjects))
	seen := make(map[string]bool, len(subjects))
	for _, s := range subjects {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}
