package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/repositories"
	pkgauth "github.com/BradenHooton/schoolmis/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type studentFixture struct {
	svc        *StudentService
	class      *models.Class
	accounts   *MockAccountRepository
	students   *MockStudentRepository
	attendance *MockAttendanceRepository
	auditor    *RecordingAuditor
}

func newStudentFixture() *studentFixture {
	f := &studentFixture{
		class:      NewTestClass(),
		accounts:   &MockAccountRepository{},
		students:   &MockStudentRepository{},
		attendance: &MockAttendanceRepository{},
		auditor:    &RecordingAuditor{},
	}
	f.class.Capacity = 10
	classes := &MockClassRepository{
		GetByIDFunc: func(_ context.Context, id string) (*models.Class, error) {
			if id == f.class.ID {
				return f.class, nil
			}
			return nil, models.ErrNotFound
		},
	}
	f.svc = NewStudentService(f.accounts, f.students, classes, f.attendance, f.auditor, bcrypt.MinCost, slog.Default())
	return f
}

func (f *studentFixture) input() CreateStudentInput {
	return CreateStudentInput{
		FullName:    "Asha Rao",
		Email:       "asha.rao@school.test",
		Password:    "Stud3nt!Pass",
		ClassID:     f.class.ID,
		Section:     "A",
		RollNumber:  12,
		ParentEmail: "  Parent.Rao@Example.com ",
	}
}

func TestStudentService_CreateStudent_Success(t *testing.T) {
	f := newStudentFixture()
	var gotAccount *models.Account
	f.students.CreateFunc = func(_ context.Context, a *models.Account, p *models.StudentProfile) (*models.StudentProfile, error) {
		gotAccount = a
		p.AccountID = "stu-1"
		p.StudentCode = "STU240001"
		p.FullName = a.FullName
		return p, nil
	}

	created, err := f.svc.CreateStudent(context.Background(), NewTestAccount(models.RoleAdmin).Actor(), models.RequestMeta{}, f.input())

	require.NoError(t, err)
	assert.Equal(t, "STU240001", created.StudentCode)
	assert.Equal(t, "parent.rao@example.com", created.ParentEmail)
	require.NotNil(t, gotAccount)
	assert.Equal(t, models.RoleStudent, gotAccount.Role)
	assert.True(t, gotAccount.Active)
	assert.NoError(t, pkgauth.ComparePassword(gotAccount.PasswordHash, "Stud3nt!Pass"))
	assert.Equal(t, []models.AuditKind{models.AuditCreate}, f.auditor.Kinds())
}

func TestStudentService_CreateStudent_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *studentFixture, in *CreateStudentInput)
		want  error
	}{
		{
			name:  "unknown class",
			setup: func(_ *studentFixture, in *CreateStudentInput) { in.ClassID = "missing" },
			want:  models.ErrNotFound,
		},
		{
			name:  "section not in class",
			setup: func(_ *studentFixture, in *CreateStudentInput) { in.Section = "D" },
			want:  models.ErrConflict,
		},
		{
			name: "roll number taken",
			setup: func(f *studentFixture, _ *CreateStudentInput) {
				f.students.RollNumberTakenFunc = func(context.Context, string, string, int, string) (bool, error) { return true, nil }
			},
			want: models.ErrDuplicateEntry,
		},
		{
			name: "section full",
			setup: func(f *studentFixture, _ *CreateStudentInput) {
				f.students.CountActiveInSectionFunc = func(context.Context, string, string) (int, error) { return 10, nil }
			},
			want: models.ErrConflict,
		},
		{
			name: "email registered",
			setup: func(f *studentFixture, _ *CreateStudentInput) {
				f.accounts.GetByEmailFunc = func(context.Context, string) (*models.Account, error) {
					return NewTestAccount(models.RoleTeacher), nil
				}
			},
			want: models.ErrDuplicateEntry,
		},
		{
			name:  "weak password",
			setup: func(_ *studentFixture, in *CreateStudentInput) { in.Password = "password" },
			want:  models.ErrValidation,
		},
		{
			name: "unique index race",
			setup: func(f *studentFixture, _ *CreateStudentInput) {
				f.students.CreateFunc = func(context.Context, *models.Account, *models.StudentProfile) (*models.StudentProfile, error) {
					return nil, models.ErrDuplicateEntry
				}
			},
			want: models.ErrDuplicateEntry,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newStudentFixture()
			in := f.input()
			tt.setup(f, &in)

			_, err := f.svc.CreateStudent(context.Background(), NewTestAccount(models.RoleAdmin).Actor(), models.RequestMeta{}, in)

			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, f.auditor.Events)
		})
	}
}

func TestStudentService_GetStudent_IncludesStatsAndRecordsView(t *testing.T) {
	f := newStudentFixture()
	student := NewTestStudent(f.class, "A", 4)
	f.students.GetByIDFunc = func(context.Context, string) (*models.StudentProfile, error) { return student, nil }
	f.attendance.MonthlyStatusCountsFunc = func(context.Context, string, models.DateRange) ([]models.StatusCount, error) {
		return []models.StatusCount{
			{Year: 2024, Month: 9, Status: models.StatusPresent, Count: 9},
			{Year: 2024, Month: 9, Status: models.StatusAbsent, Count: 1},
		}, nil
	}
	var limit int
	f.attendance.ListByStudentFunc = func(_ context.Context, _ string, _ models.DateRange, l int) ([]models.AttendanceRecord, error) {
		limit = l
		return []models.AttendanceRecord{{Status: models.StatusPresent}}, nil
	}

	details, err := f.svc.GetStudent(context.Background(), NewTestAccount(models.RoleTeacher).Actor(), models.RequestMeta{}, student.AccountID)

	require.NoError(t, err)
	assert.Equal(t, student, details.Student)
	assert.Equal(t, 10, details.AttendanceStats.TotalDays)
	assert.Equal(t, 90, details.AttendanceStats.Percentage)
	assert.Len(t, details.RecentAttendance, 1)
	assert.Equal(t, 20, limit)
	assert.Equal(t, []models.AuditKind{models.AuditView}, f.auditor.Kinds())
}

func TestStudentService_GetStudent_NotFound(t *testing.T) {
	f := newStudentFixture()

	_, err := f.svc.GetStudent(context.Background(), models.Actor{}, models.RequestMeta{}, "missing")

	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Empty(t, f.auditor.Events)
}

func TestStudentService_UpdateStudent(t *testing.T) {
	f := newStudentFixture()
	student := NewTestStudent(f.class, "A", 4)
	f.students.GetByIDFunc = func(context.Context, string) (*models.StudentProfile, error) { return student, nil }
	var written *models.StudentProfile
	f.students.UpdateFunc = func(_ context.Context, p *models.StudentProfile) (*models.StudentProfile, error) {
		written = p
		return p, nil
	}

	name := "Asha R. Rao"
	roll := 9
	dob := time.Date(2014, 6, 1, 0, 0, 0, 0, time.UTC)
	updated, err := f.svc.UpdateStudent(context.Background(), models.Actor{}, models.RequestMeta{}, student.AccountID, UpdateStudentInput{
		FullName:    &name,
		RollNumber:  &roll,
		DateOfBirth: &dob,
	})

	require.NoError(t, err)
	assert.Equal(t, name, updated.FullName)
	assert.Equal(t, 9, written.RollNumber)
	assert.Equal(t, student.Section, written.Section)
	require.Len(t, f.auditor.Events, 1)
	assert.Contains(t, f.auditor.Events[0].Changes, "fullName")
	assert.Contains(t, f.auditor.Events[0].Changes, "rollNumber")
	assert.Equal(t, 4, student.RollNumber, "stored profile must not be mutated in place")
}

func TestStudentService_UpdateStudent_TakenRoll(t *testing.T) {
	f := newStudentFixture()
	student := NewTestStudent(f.class, "A", 4)
	f.students.GetByIDFunc = func(context.Context, string) (*models.StudentProfile, error) { return student, nil }
	f.students.RollNumberTakenFunc = func(_ context.Context, _, _ string, roll int, exclude string) (bool, error) {
		assert.Equal(t, student.AccountID, exclude)
		return roll == 5, nil
	}

	roll := 5
	_, err := f.svc.UpdateStudent(context.Background(), models.Actor{}, models.RequestMeta{}, student.AccountID, UpdateStudentInput{RollNumber: &roll})

	assert.ErrorIs(t, err, models.ErrDuplicateEntry)
}

func TestStudentService_TransferStudent(t *testing.T) {
	f := newStudentFixture()
	student := NewTestStudent(f.class, "A", 4)
	f.students.GetByIDFunc = func(context.Context, string) (*models.StudentProfile, error) { return student, nil }

	var counted bool
	f.students.CountActiveInSectionFunc = func(_ context.Context, _, section string) (int, error) {
		counted = true
		assert.Equal(t, "B", section)
		return 3, nil
	}

	moved, err := f.svc.TransferStudent(context.Background(), models.Actor{}, models.RequestMeta{}, student.AccountID, TransferStudentInput{
		ClassID:    f.class.ID,
		Section:    "B",
		RollNumber: 1,
	})

	require.NoError(t, err)
	assert.True(t, counted)
	assert.Equal(t, "B", moved.Section)
	assert.Equal(t, 1, moved.RollNumber)
	require.Len(t, f.auditor.Events, 1)
	assert.Contains(t, f.auditor.Events[0].Changes, "transfer")
}

func TestStudentService_TransferStudent_Rejections(t *testing.T) {
	f := newStudentFixture()
	student := NewTestStudent(f.class, "A", 4)
	f.students.GetByIDFunc = func(context.Context, string) (*models.StudentProfile, error) { return student, nil }

	_, err := f.svc.TransferStudent(context.Background(), models.Actor{}, models.RequestMeta{}, student.AccountID, TransferStudentInput{ClassID: "missing", Section: "A", RollNumber: 1})
	assert.ErrorIs(t, err, models.ErrNotFound)

	f.students.CountActiveInSectionFunc = func(context.Context, string, string) (int, error) { return 10, nil }
	_, err = f.svc.TransferStudent(context.Background(), models.Actor{}, models.RequestMeta{}, student.AccountID, TransferStudentInput{ClassID: f.class.ID, Section: "B", RollNumber: 1})
	assert.ErrorIs(t, err, models.ErrConflict)

	student.Active = false
	_, err = f.svc.TransferStudent(context.Background(), models.Actor{}, models.RequestMeta{}, student.AccountID, TransferStudentInput{ClassID: f.class.ID, Section: "B", RollNumber: 1})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestStudentService_DeactivateStudent(t *testing.T) {
	f := newStudentFixture()
	student := NewTestStudent(f.class, "A", 4)
	f.students.GetByIDFunc = func(context.Context, string) (*models.StudentProfile, error) { return student, nil }
	var deactivated string
	f.accounts.SetActiveFunc = func(_ context.Context, id string, active bool) error {
		assert.False(t, active)
		deactivated = id
		return nil
	}

	require.NoError(t, f.svc.DeactivateStudent(context.Background(), models.Actor{}, models.RequestMeta{}, student.AccountID))

	assert.Equal(t, student.AccountID, deactivated)
	assert.Equal(t, []models.AuditKind{models.AuditDelete}, f.auditor.Kinds())
}

func TestStudentService_ListStudents_ClampsPaging(t *testing.T) {
	f := newStudentFixture()
	var got repositories.StudentFilter
	f.students.ListFunc = func(_ context.Context, filter repositories.StudentFilter) ([]*models.StudentProfile, int, error) {
		got = filter
		return []*models.StudentProfile{}, 0, nil
	}

	page, err := f.svc.ListStudents(context.Background(), repositories.StudentFilter{Limit: 500, Offset: -3, Section: "A"})

	require.NoError(t, err)
	assert.Equal(t, 50, got.Limit)
	assert.Equal(t, 0, got.Offset)
	assert.Equal(t, "A", got.Section)
	assert.Equal(t, 50, page.Limit)
}
