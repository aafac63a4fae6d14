package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
)

// AttendanceService records one status per student per day and serves the
// attendance reports.
type AttendanceService struct {
	records  AttendanceRepository
	students StudentRepository
	classes  ClassRepository
	audit    AuditRecorder
	notifier Notifier
	loc      *time.Location
	logger   *slog.Logger
	now      func() time.Time
}

func NewAttendanceService(
	records AttendanceRepository,
	students StudentRepository,
	classes ClassRepository,
	audit AuditRecorder,
	notifier Notifier,
	loc *time.Location,
	logger *slog.Logger,
) *AttendanceService {
	if loc == nil {
		loc = time.Local
	}
	return &AttendanceService{
		records:  records,
		students: students,
		classes:  classes,
		audit:    audit,
		notifier: notifier,
		loc:      loc,
		logger:   logger,
		now:      time.Now,
	}
}

type MarkAttendanceInput struct {
	StudentID   string
	ClassID     string
	Section     string
	Date        time.Time
	Status      models.AttendanceStatus
	Remarks     string
	LateMinutes int
}

type MarkResult struct {
	Record  *models.AttendanceRecord `json:"attendance"`
	Created bool                     `json:"created"`
}

type BulkEntry struct {
	StudentID   string
	Status      models.AttendanceStatus
	Remarks     string
	LateMinutes int
}

type BulkInput struct {
	ClassID string
	Section string
	Date    time.Time
	Entries []BulkEntry
}

type BulkError struct {
	StudentID string `json:"studentId"`
	Error     string `json:"error"`
}

type BulkResult struct {
	Results []*models.AttendanceRecord `json:"results"`
	Errors  []BulkError                `json:"errors"`
}

// UpdateAttendanceInput corrects an existing record. Nil fields are left
// unchanged.
type UpdateAttendanceInput struct {
	Status      *models.AttendanceStatus
	Remarks     *string
	LateMinutes *int
}

func validateMark(status models.AttendanceStatus, remarks string, lateMinutes int) error {
	verr := &models.ValidationError{}
	if !status.Valid() {
		verr.Add("status", "status must be one of present, absent, late, leave")
	}
	if lateMinutes < 0 || lateMinutes > models.MaxLateMinutes {
		verr.Add("lateMinutes", fmt.Sprintf("late minutes must be between 0 and %d", models.MaxLateMinutes))
	}
	if len([]rune(remarks)) > models.MaxRemarksLen {
		verr.Add("remarks", fmt.Sprintf("remarks must be at most %d characters", models.MaxRemarksLen))
	}
	return verr.Err()
}

// MarkAttendance writes the status of one student for one day. Marking the
// same (student, day) again overwrites the earlier mark.
func (s *AttendanceService) MarkAttendance(ctx context.Context, actor models.Actor, meta models.RequestMeta, in MarkAttendanceInput) (*MarkResult, error) {
	if err := validateMark(in.Status, in.Remarks, in.LateMinutes); err != nil {
		return nil, err
	}

	// A malformed id cannot name a stored record.
	if !models.IsID(in.ClassID) {
		return nil, models.NotFound("Class")
	}
	if !models.IsID(in.StudentID) {
		return nil, models.NotFound("Student")
	}

	class, err := s.classes.GetByID(ctx, in.ClassID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NotFound("Class")
		}
		s.logger.ErrorContext(ctx, "failed to load class", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !class.HasSection(in.Section) {
		return nil, models.NewValidationError("section", fmt.Sprintf("section %q does not exist in this class", in.Section))
	}

	student, err := s.students.GetByID(ctx, in.StudentID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NotFound("Student")
		}
		s.logger.ErrorContext(ctx, "failed to load student", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !student.Active {
		return nil, models.NotFound("Student")
	}
	if student.ClassID != in.ClassID || student.Section != in.Section {
		return nil, models.NewValidationError("studentId", "student is not enrolled in this class section")
	}

	day := models.DayStart(in.Date, s.loc)
	upsert, err := s.records.Upsert(ctx, &models.AttendanceRecord{
		StudentID:   in.StudentID,
		ClassID:     in.ClassID,
		Section:     in.Section,
		Date:        day,
		Status:      in.Status,
		MarkedBy:    actor.ID,
		Remarks:     in.Remarks,
		LateMinutes: in.LateMinutes,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to upsert attendance",
			slog.String("student_id", in.StudentID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	kind := models.AuditUpdate
	if upsert.Created {
		kind = models.AuditCreate
	}
	changes := models.AuditChanges{
		"status": string(upsert.Record.Status),
		"date":   day.Format(time.DateOnly),
	}
	if upsert.PreviousStatus != "" {
		changes["previousStatus"] = string(upsert.PreviousStatus)
	}
	s.audit.Record(ctx, models.NewAuditEvent(actor, kind, models.ResourceAttendance, upsert.Record.ID, meta).WithChanges(changes))

	if in.Status == models.StatusAbsent {
		s.notifyAbsence(ctx, upsert.Record)
	}

	return &MarkResult{Record: upsert.Record, Created: upsert.Created}, nil
}

// notifyAbsence dispatches the parent alert. Failures never affect the
// persisted mark.
func (s *AttendanceService) notifyAbsence(ctx context.Context, rec *models.AttendanceRecord) {
	if err := s.notifier.NotifyAbsence(ctx, rec.StudentID, rec.ClassID, rec.Section, rec.Date); err != nil {
		s.logger.WarnContext(ctx, "absence notification failed",
			slog.String("student_id", rec.StudentID),
			slog.String("attendance_id", rec.ID),
			slog.Any("error", err))
	}
}

// MarkBulkAttendance marks every entry independently. A failing entry is
// reported in Errors and does not undo or stop the others.
func (s *AttendanceService) MarkBulkAttendance(ctx context.Context, actor models.Actor, meta models.RequestMeta, in BulkInput) (*BulkResult, error) {
	if len(in.Entries) == 0 {
		return nil, models.NewValidationError("attendance", "at least one attendance entry is required")
	}

	result := &BulkResult{
		Results: make([]*models.AttendanceRecord, 0, len(in.Entries)),
		Errors:  make([]BulkError, 0),
	}
	for _, entry := range in.Entries {
		marked, err := s.MarkAttendance(ctx, actor, meta, MarkAttendanceInput{
			StudentID:   entry.StudentID,
			ClassID:     in.ClassID,
			Section:     in.Section,
			Date:        in.Date,
			Status:      entry.Status,
			Remarks:     entry.Remarks,
			LateMinutes: entry.LateMinutes,
		})
		if err != nil {
			result.Errors = append(result.Errors, BulkError{StudentID: entry.StudentID, Error: bulkErrorMessage(err)})
			continue
		}
		result.Results = append(result.Results, marked.Record)
	}

	s.logger.InfoContext(ctx, "bulk attendance marked",
		slog.String("class_id", in.ClassID),
		slog.Int("marked", len(result.Results)),
		slog.Int("failed", len(result.Errors)))
	return result, nil
}

func bulkErrorMessage(err error) string {
	var verr *models.ValidationError
	var derr *models.DetailError
	switch {
	case errors.As(err, &verr):
		return verr.Error()
	case errors.As(err, &derr):
		return derr.Message
	default:
		return "failed to mark attendance"
	}
}

// UpdateAttendance corrects a record by id.
func (s *AttendanceService) UpdateAttendance(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in UpdateAttendanceInput) (*models.AttendanceRecord, error) {
	existing, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NotFound("Attendance record")
		}
		s.logger.ErrorContext(ctx, "failed to load attendance", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	previous := existing.Status
	changed := *existing
	if in.Status != nil {
		changed.Status = *in.Status
	}
	if in.Remarks != nil {
		changed.Remarks = *in.Remarks
	}
	if in.LateMinutes != nil {
		changed.LateMinutes = *in.LateMinutes
	}
	changed.MarkedBy = actor.ID

	if err := validateMark(changed.Status, changed.Remarks, changed.LateMinutes); err != nil {
		return nil, err
	}

	updated, err := s.records.Update(ctx, &changed)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NotFound("Attendance record")
		}
		s.logger.ErrorContext(ctx, "failed to update attendance", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	updated.StudentName = existing.StudentName
	updated.StudentCode = existing.StudentCode
	updated.RollNumber = existing.RollNumber

	s.audit.Record(ctx, models.NewAuditEvent(actor, models.AuditUpdate, models.ResourceAttendance, updated.ID, meta).
		WithChanges(models.AuditChanges{
			"status":         string(updated.Status),
			"previousStatus": string(previous),
			"date":           updated.Date.Format(time.DateOnly),
		}))

	if updated.Status == models.StatusAbsent && previous != models.StatusAbsent {
		s.notifyAbsence(ctx, updated)
	}

	return updated, nil
}

// GetClassAttendance returns the marks of a class section on date.
func (s *AttendanceService) GetClassAttendance(ctx context.Context, classID, section string, date time.Time) (*models.ClassAttendance, error) {
	if _, err := s.requireClass(ctx, classID); err != nil {
		return nil, err
	}

	day := models.DayStart(date, s.loc)
	records, err := s.records.ListByClassDay(ctx, classID, section, day)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list class attendance", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &models.ClassAttendance{Date: day, Marked: len(records) > 0, Records: records}, nil
}

// GetStudentAttendance returns a student's marks in rng, newest first.
func (s *AttendanceService) GetStudentAttendance(ctx context.Context, studentID string, rng models.DateRange) ([]models.AttendanceRecord, error) {
	if err := s.requireStudent(ctx, studentID); err != nil {
		return nil, err
	}
	if err := s.checkRange(rng); err != nil {
		return nil, err
	}

	records, err := s.records.ListByStudent(ctx, studentID, rng, 0)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list student attendance", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return records, nil
}

// GetStudentStats totals a student's marks in rng.
func (s *AttendanceService) GetStudentStats(ctx context.Context, studentID string, rng models.DateRange) (*models.AttendanceStats, error) {
	if err := s.requireStudent(ctx, studentID); err != nil {
		return nil, err
	}
	if err := s.checkRange(rng); err != nil {
		return nil, err
	}

	_, overall, err := s.monthly(ctx, studentID, rng)
	if err != nil {
		return nil, err
	}
	return &overall, nil
}

type MonthlyReport struct {
	ClassID  string                        `json:"classId"`
	Section  string                        `json:"section"`
	Month    int                           `json:"month"`
	Year     int                           `json:"year"`
	Students []models.StudentMonthlyReport `json:"students"`
}

// GetMonthlyReport groups a class section's marks for one calendar month by
// student.
func (s *AttendanceService) GetMonthlyReport(ctx context.Context, classID, section string, month, year int) (*MonthlyReport, error) {
	verr := &models.ValidationError{}
	if month < 1 || month > 12 {
		verr.Add("month", "month must be between 1 and 12")
	}
	if year < 2000 || year > 2100 {
		verr.Add("year", "year must be between 2000 and 2100")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if _, err := s.requireClass(ctx, classID); err != nil {
		return nil, err
	}

	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, s.loc)
	to := from.AddDate(0, 1, -1)
	records, err := s.records.ListByClassRange(ctx, classID, section, models.DateRange{From: &from, To: &to})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list monthly attendance", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	return &MonthlyReport{
		ClassID:  classID,
		Section:  section,
		Month:    month,
		Year:     year,
		Students: models.GroupByStudent(records),
	}, nil
}

// StudentReport is a student's attendance bucketed by calendar month.
type StudentReport struct {
	StudentID    string                     `json:"studentId"`
	AcademicYear string                     `json:"academicYear,omitempty"`
	From         time.Time                  `json:"from"`
	To           time.Time                  `json:"to"`
	Months       []models.MonthlyAttendance `json:"months"`
	Overall      models.AttendanceStats     `json:"overall"`
}

// GetStudentReport covers an academic year "YYYY-YYYY", April 1 through
// March 31.
func (s *AttendanceService) GetStudentReport(ctx context.Context, studentID, academicYear string) (*StudentReport, error) {
	from, end, err := models.AcademicYearRange(academicYear, s.loc)
	if err != nil {
		return nil, models.NewValidationError("academicYear", err.Error())
	}
	to := end.AddDate(0, 0, -1)

	report, err := s.rangeReport(ctx, studentID, from, to)
	if err != nil {
		return nil, err
	}
	report.AcademicYear = academicYear
	return report, nil
}

// GetDateRangeReport is GetStudentReport for an arbitrary inclusive range.
func (s *AttendanceService) GetDateRangeReport(ctx context.Context, studentID string, from, to time.Time) (*StudentReport, error) {
	from = models.DayStart(from, s.loc)
	to = models.DayStart(to, s.loc)
	if err := s.checkRange(models.DateRange{From: &from, To: &to}); err != nil {
		return nil, err
	}
	return s.rangeReport(ctx, studentID, from, to)
}

func (s *AttendanceService) rangeReport(ctx context.Context, studentID string, from, to time.Time) (*StudentReport, error) {
	if err := s.requireStudent(ctx, studentID); err != nil {
		return nil, err
	}

	months, overall, err := s.monthly(ctx, studentID, models.DateRange{From: &from, To: &to})
	if err != nil {
		return nil, err
	}
	return &StudentReport{
		StudentID: studentID,
		From:      from,
		To:        to,
		Months:    months,
		Overall:   overall,
	}, nil
}

func (s *AttendanceService) monthly(ctx context.Context, studentID string, rng models.DateRange) ([]models.MonthlyAttendance, models.AttendanceStats, error) {
	counts, err := s.records.MonthlyStatusCounts(ctx, studentID, rng)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to aggregate attendance", slog.Any("error", err))
		return nil, models.AttendanceStats{}, models.ErrInternalServer
	}
	months, overall := models.GroupByMonth(counts)
	return months, overall, nil
}

// GetTodaySummary counts today's marks across the school.
func (s *AttendanceService) GetTodaySummary(ctx context.Context) (*models.DailySummary, error) {
	today := models.DayStart(s.now(), s.loc)
	counts, err := s.records.DayStatusCounts(ctx, today)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to count today's attendance", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	summary := &models.DailySummary{
		Date:    today,
		Present: counts[models.StatusPresent],
		Absent:  counts[models.StatusAbsent],
		Late:    counts[models.StatusLate],
		Leave:   counts[models.StatusLeave],
	}
	summary.Total = summary.Present + summary.Absent + summary.Late + summary.Leave
	return summary, nil
}

func (s *AttendanceService) requireClass(ctx context.Context, classID string) (*models.Class, error) {
	class, err := s.classes.GetByID(ctx, classID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NotFound("Class")
		}
		s.logger.ErrorContext(ctx, "failed to load class", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return class, nil
}

func (s *AttendanceService) requireStudent(ctx context.Context, studentID string) error {
	if _, err := s.students.GetByID(ctx, studentID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NotFound("Student")
		}
		s.logger.ErrorContext(ctx, "failed to load student", slog.Any("error", err))
		return models.ErrInternalServer
	}
	return nil
}

func (s *AttendanceService) checkRange(rng models.DateRange) error {
	if rng.From != nil && rng.To != nil && rng.From.After(*rng.To) {
		return models.NewValidationError("from", "from must not be after to")
	}
	return nil
}
