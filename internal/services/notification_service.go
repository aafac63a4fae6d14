package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
	pkglogger "github.com/BradenHooton/schoolmis/pkg/logger"
)

// Notifier dispatches parent notifications for attendance marks.
type Notifier interface {
	NotifyAbsence(ctx context.Context, studentID, classID, section string, date time.Time) error
}

type NotificationService struct {
	students StudentRepository
	classes  ClassRepository
	email    EmailService
	logger   *slog.Logger
}

func NewNotificationService(students StudentRepository, classes ClassRepository, email EmailService, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		students: students,
		classes:  classes,
		email:    email,
		logger:   logger,
	}
}

// NotifyAbsence emails the student's parent about an absence on date. A
// student without a parent email, or an unknown student or class, is
// skipped without error.
func (s *NotificationService) NotifyAbsence(ctx context.Context, studentID, classID, section string, date time.Time) error {
	student, err := s.students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.WarnContext(ctx, "absence notification skipped: student not found", slog.String("student_id", studentID))
			return nil
		}
		return fmt.Errorf("failed to load student: %w", err)
	}
	if student.ParentEmail == "" {
		s.logger.InfoContext(ctx, "absence notification skipped: no parent email", slog.String("student_id", studentID))
		return nil
	}

	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.WarnContext(ctx, "absence notification skipped: class not found", slog.String("class_id", classID))
			return nil
		}
		return fmt.Errorf("failed to load class: %w", err)
	}

	sent, err := s.email.SendAbsenteeAlert(ctx, student.ParentEmail, student.FullName, date.Format(time.DateOnly), class.ClassName, section)
	if err != nil {
		return fmt.Errorf("failed to send absentee alert: %w", err)
	}
	if !sent {
		return fmt.Errorf("absentee alert to %s was not accepted", pkglogger.SanitizedEmail(student.ParentEmail))
	}

	s.logger.InfoContext(ctx, "absentee alert sent",
		slog.String("student_id", studentID),
		slog.String("email", pkglogger.SanitizedEmail(student.ParentEmail)))
	return nil
}
