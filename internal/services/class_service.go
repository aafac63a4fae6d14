package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/repositories"
)

type ClassService struct {
	classes  ClassRepository
	students StudentRepository
	teachers TeacherRepository
	audit    AuditRecorder
	logger   *slog.Logger
}

func NewClassService(classes ClassRepository, students StudentRepository, teachers TeacherRepository, audit AuditRecorder, logger *slog.Logger) *ClassService {
	return &ClassService{
		classes:  classes,
		students: students,
		teachers: teachers,
		audit:    audit,
		logger:   logger,
	}
}

type ClassInput struct {
	ClassName      string
	Sections       []string
	ClassTeacherID *string
	AcademicYear   string
	RoomNumber     string
	Capacity       int
}

// validateClass normalizes sections to upper case and defaults the capacity.
func validateClass(in *ClassInput) error {
	verr := &models.ValidationError{}
	if !models.ValidClassName(in.ClassName) {
		verr.Add("className", "class name must be one of "+strings.Join(models.ClassNames, ", "))
	}

	if len(in.Sections) == 0 || len(in.Sections) > models.MaxSections {
		verr.Add("sections", fmt.Sprintf("a class needs between 1 and %d sections", models.MaxSections))
	}
	seen := make(map[string]bool, len(in.Sections))
	for i, s := range in.Sections {
		s = strings.ToUpper(strings.TrimSpace(s))
		in.Sections[i] = s
		if len(s) != 1 || s[0] < 'A' || s[0] > 'Z' {
			verr.Add("sections", fmt.Sprintf("section %q must be a single letter", s))
			continue
		}
		if seen[s] {
			verr.Add("sections", fmt.Sprintf("section %s is listed twice", s))
		}
		seen[s] = true
	}

	if _, err := models.ParseAcademicYear(in.AcademicYear); err != nil {
		verr.Add("academicYear", err.Error())
	}

	if in.Capacity == 0 {
		in.Capacity = models.DefaultClassCapacity
	}
	if in.Capacity < models.MinClassCapacity || in.Capacity > models.MaxClassCapacity {
		verr.Add("capacity", fmt.Sprintf("capacity must be between %d and %d", models.MinClassCapacity, models.MaxClassCapacity))
	}
	return verr.Err()
}

func (s *ClassService) checkClassTeacher(ctx context.Context, id *string) error {
	if id == nil || *id == "" {
		return nil
	}
	teacher, err := s.teachers.GetByID(ctx, *id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NotFound("Teacher")
		}
		s.logger.ErrorContext(ctx, "failed to load class teacher", slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !teacher.Active {
		return models.Detail(models.ErrConflict, "class teacher account is deactivated")
	}
	return nil
}

func (s *ClassService) CreateClass(ctx context.Context, actor models.Actor, meta models.RequestMeta, in ClassInput) (*models.Class, error) {
	if err := validateClass(&in); err != nil {
		return nil, err
	}
	if err := s.checkClassTeacher(ctx, in.ClassTeacherID); err != nil {
		return nil, err
	}

	created, err := s.classes.Create(ctx, &models.Class{
		ClassName:      in.ClassName,
		Sections:       in.Sections,
		ClassTeacherID: in.ClassTeacherID,
		AcademicYear:   in.AcademicYear,
		RoomNumber:     in.RoomNumber,
		Capacity:       in.Capacity,
	})
	if err != nil {
		if errors.Is(err, models.ErrDuplicateEntry) {
			return nil, models.Detail(models.ErrDuplicateEntry, "class %s already exists for %s", in.ClassName, in.AcademicYear)
		}
		s.logger.ErrorContext(ctx, "failed to create class", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, models.NewAuditEvent(actor, models.AuditCreate, models.ResourceClass, created.ID, meta).
		WithChanges(models.AuditChanges{
			"className":    created.ClassName,
			"sections":     created.Sections,
			"academicYear": created.AcademicYear,
		}))
	return created, nil
}

func (s *ClassService) GetClass(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NotFound("Class")
		}
		s.logger.ErrorContext(ctx, "failed to get class", slog.String("class_id", id), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return class, nil
}

func (s *ClassService) ListClasses(ctx context.Context, academicYear string) ([]*models.Class, error) {
	if academicYear != "" {
		if _, err := models.ParseAcademicYear(academicYear); err != nil {
			return nil, models.NewValidationError("academicYear", err.Error())
		}
	}
	classes, err := s.classes.List(ctx, academicYear)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list classes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return classes, nil
}

// UpdateClass replaces the class definition. A section that still has
// active students cannot be removed.
func (s *ClassService) UpdateClass(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in ClassInput) (*models.Class, error) {
	existing, err := s.GetClass(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := validateClass(&in); err != nil {
		return nil, err
	}
	if err := s.checkClassTeacher(ctx, in.ClassTeacherID); err != nil {
		return nil, err
	}

	counts, err := s.classes.SectionStudentCounts(ctx, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to count section students", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	for _, section := range existing.Sections {
		if !slices.Contains(in.Sections, section) && counts[section] > 0 {
			return nil, models.Detail(models.ErrConflict, "section %s still has %d active students", section, counts[section])
		}
	}
	for section, n := range counts {
		if n > in.Capacity {
			return nil, models.Detail(models.ErrConflict, "section %s already has %d active students, above capacity %d", section, n, in.Capacity)
		}
	}

	updated, err := s.classes.Update(ctx, &models.Class{
		ID:             id,
		ClassName:      in.ClassName,
		Sections:       in.Sections,
		ClassTeacherID: in.ClassTeacherID,
		AcademicYear:   in.AcademicYear,
		RoomNumber:     in.RoomNumber,
		Capacity:       in.Capacity,
	})
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return nil, models.NotFound("Class")
		case errors.Is(err, models.ErrDuplicateEntry):
			return nil, models.Detail(models.ErrDuplicateEntry, "class %s already exists for %s", in.ClassName, in.AcademicYear)
		}
		s.logger.ErrorContext(ctx, "failed to update class", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.audit.Record(ctx, models.NewAuditEvent(actor, models.AuditUpdate, models.ResourceClass, id, meta).
		WithChanges(models.AuditChanges{
			"before": map[string]any{"sections": existing.Sections, "capacity": existing.Capacity},
			"after":  map[string]any{"sections": updated.Sections, "capacity": updated.Capacity},
		}))
	return updated, nil
}

// DeleteClass removes a class with no active students. Classes still
// referenced by student or attendance rows are refused by the database.
func (s *ClassService) DeleteClass(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) error {
	class, err := s.GetClass(ctx, id)
	if err != nil {
		return err
	}
	if class.StudentCount > 0 {
		return models.Detail(models.ErrConflict, "class has %d active students", class.StudentCount)
	}

	if err := s.classes.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			return models.NotFound("Class")
		case errors.Is(err, models.ErrConflict):
			return models.Detail(models.ErrConflict, "class still has student or attendance records")
		}
		s.logger.ErrorContext(ctx, "failed to delete class", slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.audit.Record(ctx, models.NewAuditEvent(actor, models.AuditDelete, models.ResourceClass, id, meta))
	return nil
}

// ClassRoster lists the active students of a class, optionally narrowed to
// one section, in roll order.
func (s *ClassService) ClassRoster(ctx context.Context, id, section string) ([]*models.StudentProfile, error) {
	class, err := s.GetClass(ctx, id)
	if err != nil {
		return nil, err
	}
	if section != "" && !class.HasSection(section) {
		return nil, models.NewValidationError("section", fmt.Sprintf("section %q does not exist in this class", section))
	}

	students, _, err := s.students.List(ctx, repositories.StudentFilter{
		ClassID: id,
		Section: section,
		Limit:   models.MaxSections * models.MaxClassCapacity,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list class roster", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return students, nil
}
