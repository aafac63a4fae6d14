package models

import (
	"time"
)

const (
	MinClassCapacity     = 10
	MaxClassCapacity     = 60
	DefaultClassCapacity = 40
	MaxSections          = 4
)

// ClassNames lists the grades a class may be created for.
var ClassNames = []string{"Nursery", "KG", "1", "2", "3", "4", "5", "6", "7", "8", "9", "10", "11", "12"}

func ValidClassName(name string) bool {
	for _, n := range ClassNames {
		if n == name {
			return true
		}
	}
	return false
}

type Class struct {
	ID             string    `json:"id"`
	ClassName      string    `json:"className"`
	Sections       []string  `json:"sections"`
	ClassTeacherID *string   `json:"classTeacher,omitempty"`
	AcademicYear   string    `json:"academicYear"`
	RoomNumber     string    `json:"roomNumber,omitempty"`
	Capacity       int       `json:"capacity"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`

	StudentCount int `json:"studentCount"`
}

func (c *Class) HasSection(section string) bool {
	for _, s := range c.Sections {
		if s == section {
			return true
		}
	}
	return false
}
