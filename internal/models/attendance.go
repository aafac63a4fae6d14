package models

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusAbsent  AttendanceStatus = "absent"
	StatusLate    AttendanceStatus = "late"
	StatusLeave   AttendanceStatus = "leave"
)

const (
	MaxLateMinutes = 240
	MaxRemarksLen  = 200
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate, StatusLeave:
		return true
	}
	return false
}

// AttendanceRecord is the single status entry for one student on one day.
// Date is always midnight in the school's time zone.
type AttendanceRecord struct {
	ID          string           `json:"id"`
	StudentID   string           `json:"studentId"`
	ClassID     string           `json:"classId"`
	Section     string           `json:"section"`
	Date        time.Time        `json:"date"`
	Status      AttendanceStatus `json:"status"`
	MarkedBy    string           `json:"markedBy"`
	Remarks     string           `json:"remarks,omitempty"`
	LateMinutes int              `json:"lateMinutes"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`

	// Populated by read queries that join the student profile.
	StudentName string `json:"studentName,omitempty"`
	StudentCode string `json:"studentCode,omitempty"`
	RollNumber  int    `json:"rollNumber,omitempty"`
}

// DayStart truncates t to midnight in loc.
func DayStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// AttendancePercentage rounds present/total to a whole percent. A zero total
// yields 0.
func AttendancePercentage(present, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(present) / float64(total) * 100))
}

type AttendanceStats struct {
	TotalDays  int `json:"totalDays"`
	Present    int `json:"present"`
	Absent     int `json:"absent"`
	Late       int `json:"late"`
	Leave      int `json:"leave"`
	Percentage int `json:"percentage"`
}

func (s *AttendanceStats) Add(status AttendanceStatus, n int) {
	switch status {
	case StatusPresent:
		s.Present += n
	case StatusAbsent:
		s.Absent += n
	case StatusLate:
		s.Late += n
	case StatusLeave:
		s.Leave += n
	default:
		return
	}
	s.TotalDays += n
	s.Percentage = AttendancePercentage(s.Present, s.TotalDays)
}

// MonthlyAttendance is one calendar month of a student's attendance.
type MonthlyAttendance struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	AttendanceStats
}

// StatusCount is one (year, month, status) aggregate row.
type StatusCount struct {
	Year   int
	Month  int
	Status AttendanceStatus
	Count  int
}

// GroupByMonth folds status counts into chronologically ordered months and an
// overall total.
func GroupByMonth(rows []StatusCount) ([]MonthlyAttendance, AttendanceStats) {
	index := make(map[[2]int]*MonthlyAttendance)
	var overall AttendanceStats
	for _, r := range rows {
		key := [2]int{r.Year, r.Month}
		m, ok := index[key]
		if !ok {
			m = &MonthlyAttendance{Year: r.Year, Month: r.Month}
			index[key] = m
		}
		m.Add(r.Status, r.Count)
		overall.Add(r.Status, r.Count)
	}

	months := make([]MonthlyAttendance, 0, len(index))
	for _, m := range index {
		months = append(months, *m)
	}
	sort.Slice(months, func(i, j int) bool {
		if months[i].Year != months[j].Year {
			return months[i].Year < months[j].Year
		}
		return months[i].Month < months[j].Month
	})
	return months, overall
}

type DayEntry struct {
	Date    time.Time        `json:"date"`
	Status  AttendanceStatus `json:"status"`
	Remarks string           `json:"remarks,omitempty"`
}

// StudentMonthlyReport is one row of a class monthly report.
type StudentMonthlyReport struct {
	StudentID   string          `json:"studentId"`
	StudentCode string          `json:"studentCode,omitempty"`
	StudentName string          `json:"studentName"`
	RollNumber  int             `json:"rollNumber"`
	Days        []DayEntry      `json:"days"`
	Stats       AttendanceStats `json:"stats"`
}

// GroupByStudent builds report rows from records, ordered by roll number.
func GroupByStudent(records []AttendanceRecord) []StudentMonthlyReport {
	index := make(map[string]*StudentMonthlyReport)
	order := make([]string, 0)
	for _, r := range records {
		row, ok := index[r.StudentID]
		if !ok {
			row = &StudentMonthlyReport{
				StudentID:   r.StudentID,
				StudentCode: r.StudentCode,
				StudentName: r.StudentName,
				RollNumber:  r.RollNumber,
				Days:        []DayEntry{},
			}
			index[r.StudentID] = row
			order = append(order, r.StudentID)
		}
		row.Days = append(row.Days, DayEntry{Date: r.Date, Status: r.Status, Remarks: r.Remarks})
		row.Stats.Add(r.Status, 1)
	}

	report := make([]StudentMonthlyReport, 0, len(order))
	for _, id := range order {
		row := index[id]
		sort.Slice(row.Days, func(i, j int) bool { return row.Days[i].Date.Before(row.Days[j].Date) })
		report = append(report, *row)
	}
	sort.SliceStable(report, func(i, j int) bool { return report[i].RollNumber < report[j].RollNumber })
	return report
}

// ParseAcademicYear validates "YYYY-YYYY" with consecutive years and returns
// the start year.
func ParseAcademicYear(ay string) (int, error) {
	start, end, ok := strings.Cut(ay, "-")
	if !ok || len(start) != 4 || len(end) != 4 {
		return 0, fmt.Errorf("academic year must be in YYYY-YYYY format")
	}
	s, err := strconv.Atoi(start)
	if err != nil {
		return 0, fmt.Errorf("academic year must be in YYYY-YYYY format")
	}
	e, err := strconv.Atoi(end)
	if err != nil {
		return 0, fmt.Errorf("academic year must be in YYYY-YYYY format")
	}
	if e != s+1 {
		return 0, fmt.Errorf("academic year must span consecutive years")
	}
	return s, nil
}

// AcademicYearRange returns [April 1 of the start year, April 1 of the end
// year) in loc.
func AcademicYearRange(ay string, loc *time.Location) (time.Time, time.Time, error) {
	start, err := ParseAcademicYear(ay)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from := time.Date(start, time.April, 1, 0, 0, 0, 0, loc)
	return from, from.AddDate(1, 0, 0), nil
}

// AcademicYearOf names the academic year containing t. Years start on
// April 1.
func AcademicYearOf(t time.Time) string {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%d-%d", start, start+1)
}

// DailySummary counts today's marks per status.
type DailySummary struct {
	Date    time.Time `json:"date"`
	Present int       `json:"present"`
	Absent  int       `json:"absent"`
	Late    int       `json:"late"`
	Leave   int       `json:"leave"`
	Total   int       `json:"total"`
}

// ClassAttendance is the roll for one class section on one day.
type ClassAttendance struct {
	Date    time.Time          `json:"date"`
	Marked  bool               `json:"marked"`
	Records []AttendanceRecord `json:"attendance"`
}

// AttendanceUpsert is the outcome of writing a mark for a (student, day).
type AttendanceUpsert struct {
	Record         *AttendanceRecord
	Created        bool
	PreviousStatus AttendanceStatus
}

// DateRange bounds a query by whole days, both ends inclusive. Nil means
// unbounded.
type DateRange struct {
	From *time.Time
	To   *time.Time
}
