package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAccount_LockRemainingMinutes(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	var a Account
	assert.False(t, a.IsLocked(now))
	assert.Equal(t, 0, a.LockRemainingMinutes(now))

	lock := now.Add(29*time.Minute + 10*time.Second)
	a.LockUntil = &lock
	assert.True(t, a.IsLocked(now))
	assert.Equal(t, 30, a.LockRemainingMinutes(now))

	assert.False(t, a.IsLocked(lock))
	assert.False(t, a.IsLocked(lock.Add(time.Second)))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleAdmin.Valid())
	assert.True(t, RoleTeacher.Valid())
	assert.True(t, RoleStudent.Valid())
	assert.False(t, Role("principal").Valid())
}

func TestAccountSummary_RoleExtensions(t *testing.T) {
	a := &Account{ID: "1", Email: "s@school.test", Role: RoleStudent, FullName: "Sam"}

	s := NewAccountSummary(a).WithStudent(&StudentProfile{
		StudentCode: "STU240001", ClassID: "c1", ClassName: "5", Section: "A", RollNumber: 12,
	})
	assert.Equal(t, "STU240001", s.StudentCode)
	assert.Equal(t, "A", s.Section)
	assert.Equal(t, 12, s.RollNumber)
	assert.Empty(t, s.TeacherCode)

	tch := NewAccountSummary(&Account{ID: "2", Role: RoleTeacher}).
		WithTeacher(&TeacherProfile{TeacherCode: "TCH0001", Subjects: []string{"Maths"}})
	assert.Equal(t, "TCH0001", tch.TeacherCode)
	assert.Equal(t, []string{"Maths"}, tch.Subjects)
}

func TestErrors_UnwrapToSentinels(t *testing.T) {
	assert.True(t, errors.Is(&LoginFailure{AttemptsRemaining: 2}, ErrInvalidCredentials))
	assert.True(t, errors.Is(&LockoutError{RemainingMinutes: 5}, ErrAccountLocked))

	ve := &ValidationError{}
	assert.NoError(t, ve.Err())
	ve.Add("status", "status is invalid")
	ve.Add("lateMinutes", "lateMinutes must be at most 240")
	err := ve.Err()
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, "status is invalid; lateMinutes must be at most 240", err.Error())

	var target *LockoutError
	assert.True(t, errors.As(error(&LockoutError{RemainingMinutes: 7}), &target))
	assert.Equal(t, 7, target.RemainingMinutes)
}
