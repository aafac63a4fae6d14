package models

import (
	"math"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

// Account is the identity shared by every role. Role-specific fields live in
// StudentProfile and TeacherProfile, keyed by the account id.
type Account struct {
	ID                  string
	Email               string
	FullName            string
	PasswordHash        string
	Role                Role
	Active              bool
	FailedLoginAttempts int
	LockUntil           *time.Time
	PasswordChangedAt   *time.Time
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
	LastLoginAt         *time.Time
	LastActiveAt        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLocked reports whether a lockout is still in force at now.
func (a *Account) IsLocked(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}

// LockRemainingMinutes rounds the remaining lock window up to whole minutes.
func (a *Account) LockRemainingMinutes(now time.Time) int {
	if !a.IsLocked(now) {
		return 0
	}
	return int(math.Ceil(a.LockUntil.Sub(now).Minutes()))
}

type StudentProfile struct {
	AccountID   string     `json:"accountId"`
	StudentCode string     `json:"studentId"`
	FullName    string     `json:"fullName"`
	Email       string     `json:"email"`
	Active      bool       `json:"isActive"`
	ClassID     string     `json:"classId"`
	ClassName   string     `json:"className,omitempty"`
	Section     string     `json:"section"`
	RollNumber  int        `json:"rollNumber"`
	DateOfBirth *time.Time `json:"dateOfBirth,omitempty"`
	Gender      string     `json:"gender,omitempty"`
	ParentName  string     `json:"parentName,omitempty"`
	ParentEmail string     `json:"parentEmail,omitempty"`
	ParentPhone string     `json:"parentPhone,omitempty"`
	Address     string     `json:"address,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type TeacherProfile struct {
	AccountID     string     `json:"accountId"`
	TeacherCode   string     `json:"teacherId"`
	FullName      string     `json:"fullName"`
	Email         string     `json:"email"`
	Active        bool       `json:"isActive"`
	Qualification string     `json:"qualification,omitempty"`
	Subjects      []string   `json:"subjects"`
	Phone         string     `json:"phone,omitempty"`
	JoiningDate   *time.Time `json:"joiningDate,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// AccountSummary is the caller-facing view of an account with the
// role-specific fields resolved at read time.
type AccountSummary struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Role        Role       `json:"role"`
	FullName    string     `json:"fullName,omitempty"`
	LastLoginAt *time.Time `json:"lastLogin,omitempty"`

	StudentCode string `json:"studentId,omitempty"`
	ClassID     string `json:"classId,omitempty"`
	ClassName   string `json:"className,omitempty"`
	Section     string `json:"section,omitempty"`
	RollNumber  int    `json:"rollNumber,omitempty"`

	TeacherCode string   `json:"teacherId,omitempty"`
	Subjects    []string `json:"subjects,omitempty"`
}

func NewAccountSummary(a *Account) *AccountSummary {
	return &AccountSummary{
		ID:          a.ID,
		Email:       a.Email,
		Role:        a.Role,
		FullName:    a.FullName,
		LastLoginAt: a.LastLoginAt,
	}
}

func (s *AccountSummary) WithStudent(p *StudentProfile) *AccountSummary {
	s.StudentCode = p.StudentCode
	s.ClassID = p.ClassID
	s.ClassName = p.ClassName
	s.Section = p.Section
	s.RollNumber = p.RollNumber
	return s
}

func (s *AccountSummary) WithTeacher(p *TeacherProfile) *AccountSummary {
	s.TeacherCode = p.TeacherCode
	s.Subjects = p.Subjects
	return s
}
