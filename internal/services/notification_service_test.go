package services

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentAlert struct {
	to, student, date, class, section string
}

func newNotificationFixture(student *models.StudentProfile, class *models.Class, email *MockEmailService) *NotificationService {
	students := &MockStudentRepository{
		GetByIDFunc: func(_ context.Context, id string) (*models.StudentProfile, error) {
			if student != nil && id == student.AccountID {
				return student, nil
			}
			return nil, models.ErrNotFound
		},
	}
	classes := &MockClassRepository{
		GetByIDFunc: func(_ context.Context, id string) (*models.Class, error) {
			if class != nil && id == class.ID {
				return class, nil
			}
			return nil, models.ErrNotFound
		},
	}
	return NewNotificationService(students, classes, email, slog.Default())
}

func TestNotificationService_NotifyAbsence(t *testing.T) {
	class := NewTestClass()
	student := NewTestStudent(class, "B", 3)

	var sent []sentAlert
	email := &MockEmailService{
		SendAbsenteeAlertFunc: func(_ context.Context, to, name, date, className, section string) (bool, error) {
			sent = append(sent, sentAlert{to, name, date, className, section})
			return true, nil
		},
	}
	svc := newNotificationFixture(student, class, email)

	err := svc.NotifyAbsence(context.Background(), student.AccountID, class.ID, "B", time.Date(2024, 11, 4, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	require.Len(t, sent, 1)
	assert.Equal(t, sentAlert{student.ParentEmail, student.FullName, "2024-11-04", class.ClassName, "B"}, sent[0])
}

func TestNotificationService_SkipsWithoutParentEmail(t *testing.T) {
	class := NewTestClass()
	student := NewTestStudent(class, "A", 1)
	student.ParentEmail = ""

	email := &MockEmailService{
		SendAbsenteeAlertFunc: func(context.Context, string, string, string, string, string) (bool, error) {
			t.Fatal("no alert expected")
			return false, nil
		},
	}
	svc := newNotificationFixture(student, class, email)

	assert.NoError(t, svc.NotifyAbsence(context.Background(), student.AccountID, class.ID, "A", time.Now()))
}

func TestNotificationService_SkipsUnknownStudentOrClass(t *testing.T) {
	class := NewTestClass()
	student := NewTestStudent(class, "A", 1)
	svc := newNotificationFixture(student, class, &MockEmailService{})

	assert.NoError(t, svc.NotifyAbsence(context.Background(), "missing", class.ID, "A", time.Now()))
	assert.NoError(t, svc.NotifyAbsence(context.Background(), student.AccountID, "missing", "A", time.Now()))
}

func TestNotificationService_PropagatesSendFailure(t *testing.T) {
	class := NewTestClass()
	student := NewTestStudent(class, "A", 1)

	tests := []struct {
		name string
		send func(context.Context, string, string, string, string, string) (bool, error)
	}{
		{
			name: "transport error",
			send: func(context.Context, string, string, string, string, string) (bool, error) {
				return false, errors.New("throttled")
			},
		},
		{
			name: "not accepted",
			send: func(context.Context, string, string, string, string, string) (bool, error) {
				return false, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newNotificationFixture(student, class, &MockEmailService{SendAbsenteeAlertFunc: tt.send})
			assert.Error(t, svc.NotifyAbsence(context.Background(), student.AccountID, class.ID, "A", time.Now()))
		})
	}
}
