package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/services"
	pkghttp "github.com/BradenHooton/schoolmis/pkg/http"
)

type AttendanceServiceInterface interface {
	MarkAttendance(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.MarkAttendanceInput) (*services.MarkResult, error)
	MarkBulkAttendance(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.BulkInput) (*services.BulkResult, error)
	UpdateAttendance(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.UpdateAttendanceInput) (*models.AttendanceRecord, error)
	GetClassAttendance(ctx context.Context, classID, section string, date time.Time) (*models.ClassAttendance, error)
	GetStudentAttendance(ctx context.Context, studentID string, rng models.DateRange) ([]models.AttendanceRecord, error)
	GetStudentStats(ctx context.Context, studentID string, rng models.DateRange) (*models.AttendanceStats, error)
	GetMonthlyReport(ctx context.Context, classID, section string, month, year int) (*services.MonthlyReport, error)
	GetStudentReport(ctx context.Context, studentID, academicYear string) (*services.StudentReport, error)
	GetDateRangeReport(ctx context.Context, studentID string, from, to time.Time) (*services.StudentReport, error)
	GetTodaySummary(ctx context.Context) (*models.DailySummary, error)
}

// AttendanceHandler serves /api/attendance. Dates in requests are
// YYYY-MM-DD in the school's time zone.
type AttendanceHandler struct {
	attendance AttendanceServiceInterface
	ips        *pkghttp.ClientIPResolver
	loc        *time.Location
	now        func() time.Time
}

func NewAttendanceHandler(attendance AttendanceServiceInterface, ips *pkghttp.ClientIPResolver, loc *time.Location) *AttendanceHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &AttendanceHandler{attendance: attendance, ips: ips, loc: loc, now: time.Now}
}

type MarkAttendanceRequest struct {
	StudentID   string `json:"studentId" validate:"required,uuid"`
	ClassID     string `json:"classId" validate:"required,uuid"`
	Section     string `json:"section" validate:"required,len=1"`
	Date        string `json:"date" validate:"required,date"`
	Status      string `json:"status" validate:"required,oneof=present absent late leave"`
	Remarks     string `json:"remarks" validate:"max=200"`
	LateMinutes int    `json:"lateMinutes" validate:"gte=0,lte=240"`
}

// BulkAttendanceEntry ids are not checked here: a malformed id fails only
// its own entry.
type BulkAttendanceEntry struct {
	StudentID   string `json:"studentId" validate:"required"`
	Status      string `json:"status" validate:"required,oneof=present absent late leave"`
	Remarks     string `json:"remarks" validate:"max=200"`
	LateMinutes int    `json:"lateMinutes" validate:"gte=0,lte=240"`
}

type BulkAttendanceRequest struct {
	ClassID        string                `json:"classId" validate:"required,uuid"`
	Section        string                `json:"section" validate:"required,len=1"`
	Date           string                `json:"date" validate:"required,date"`
	AttendanceData []BulkAttendanceEntry `json:"attendanceData" validate:"required,min=1,dive"`
}

type UpdateAttendanceRequest struct {
	Status      *string `json:"status" validate:"omitempty,oneof=present absent late leave"`
	Remarks     *string `json:"remarks" validate:"omitempty,max=200"`
	LateMinutes *int    `json:"lateMinutes" validate:"omitempty,gte=0,lte=240"`
}

// Mark handles POST /api/attendance/mark
// @Summary Mark one student for one day
// @Description Re-marking the same student and day replaces the earlier mark
// @Router /attendance/mark [post]
func (h *AttendanceHandler) Mark(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(r)
	if !ok {
		writeServiceError(w, models.ErrUnauthenticated)
		return
	}

	var req MarkAttendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	date, err := parseDate("date", req.Date, h.loc)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	result, err := h.attendance.MarkAttendance(r.Context(), actor, requestMeta(r, h.ips), services.MarkAttendanceInput{
		StudentID:   req.StudentID,
		ClassID:     req.ClassID,
		Section:     req.Section,
		Date:        date,
		Status:      models.AttendanceStatus(req.Status),
		Remarks:     req.Remarks,
		LateMinutes: req.LateMinutes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if result.Created {
		pkghttp.WriteCreated(w, "Attendance marked successfully", result.Record)
		return
	}
	pkghttp.WriteSuccess(w, http.StatusOK, "Attendance updated successfully", result.Record)
}

// MarkBulk handles POST /api/attendance/bulk. Entries are applied one by
// one; failures are reported per student next to the stored records.
func (h *AttendanceHandler) MarkBulk(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(r)
	if !ok {
		writeServiceError(w, models.ErrUnauthenticated)
		return
	}

	var req BulkAttendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	date, err := parseDate("date", req.Date, h.loc)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	in := services.BulkInput{
		ClassID: req.ClassID,
		Section: req.Section,
		Date:    date,
		Entries: make([]services.BulkEntry, 0, len(req.AttendanceData)),
	}
	for _, e := range req.AttendanceData {
		in.Entries = append(in.Entries, services.BulkEntry{
			StudentID:   e.StudentID,
			Status:      models.AttendanceStatus(e.Status),
			Remarks:     e.Remarks,
			LateMinutes: e.LateMinutes,
		})
	}

	result, err := h.attendance.MarkBulkAttendance(r.Context(), actor, requestMeta(r, h.ips), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if len(result.Errors) > 0 {
		pkghttp.WriteSuccess(w, http.StatusMultiStatus, "Bulk attendance partially processed", result)
		return
	}
	pkghttp.WriteCreated(w, "Bulk attendance processed", result)
}

// Update handles PUT /api/attendance/{id}
func (h *AttendanceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	actor, ok := actorOf(r)
	if !ok {
		writeServiceError(w, models.ErrUnauthenticated)
		return
	}

	var req UpdateAttendanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	in := services.UpdateAttendanceInput{Remarks: req.Remarks, LateMinutes: req.LateMinutes}
	if req.Status != nil {
		status := models.AttendanceStatus(*req.Status)
		in.Status = &status
	}

	record, err := h.attendance.UpdateAttendance(r.Context(), actor, requestMeta(r, h.ips), id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Attendance updated successfully", record)
}

// ClassDay handles GET /api/attendance/class/{classId}?section=&date=.
// Date defaults to today.
func (h *AttendanceHandler) ClassDay(w http.ResponseWriter, r *http.Request) {
	classID, err := pathID(r, "classId")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	q := r.URL.Query()
	section := q.Get("section")
	if section == "" {
		writeServiceError(w, models.NewValidationError("section", "section is required"))
		return
	}

	date := models.DayStart(h.now(), h.loc)
	if raw := q.Get("date"); raw != "" {
		d, err := parseDate("date", raw, h.loc)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		date = d
	}

	result, err := h.attendance.GetClassAttendance(r.Context(), classID, section, date)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, result)
}

// Student handles GET /api/attendance/student/{studentId}?from=&to=
func (h *AttendanceHandler) Student(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentId")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	rng, err := queryRange(r, h.loc)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	records, err := h.attendance.GetStudentAttendance(r.Context(), studentID, rng)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}

	pkghttp.WriteOK(w, records)
}

// Stats handles GET /api/attendance/stats/{studentId}?from=&to=
func (h *AttendanceHandler) Stats(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentId")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	rng, err := queryRange(r, h.loc)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	stats, err := h.attendance.GetStudentStats(r.Context(), studentID, rng)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, stats)
}

// MonthlyReport handles GET /api/attendance/report/monthly?classId=&section=&month=&year=
func (h *AttendanceHandler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	verr := &models.ValidationError{}
	classID := q.Get("classId")
	if classID == "" {
		verr.Add("classId", "classId is required")
	} else if !models.IsID(classID) {
		verr.Add("classId", "classId must be a valid id")
	}
	section := q.Get("section")
	if section == "" {
		verr.Add("section", "section is required")
	}
	month, err := strconv.Atoi(q.Get("month"))
	if err != nil {
		verr.Add("month", "month must be a number between 1 and 12")
	}
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		verr.Add("year", "year must be a number")
	}
	if err := verr.Err(); err != nil {
		writeServiceError(w, err)
		return
	}

	report, err := h.attendance.GetMonthlyReport(r.Context(), classID, section, month, year)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, report)
}

// StudentReport handles GET /api/attendance/report/student/{studentId}?academicYear=.
// The academic year defaults to the current one.
func (h *AttendanceHandler) StudentReport(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentId")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	academicYear := r.URL.Query().Get("academicYear")
	if academicYear == "" {
		academicYear = models.AcademicYearOf(h.now().In(h.loc))
	}

	report, err := h.attendance.GetStudentReport(r.Context(), studentID, academicYear)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, report)
}

// RangeReport handles GET /api/attendance/report/range/{studentId}?from=&to=
func (h *AttendanceHandler) RangeReport(w http.ResponseWriter, r *http.Request) {
	studentID, err := pathID(r, "studentId")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	q := r.URL.Query()
	verr := &models.ValidationError{}
	from, err := parseDate("from", q.Get("from"), h.loc)
	if err != nil {
		verr.Add("from", "from must be a date in YYYY-MM-DD format")
	}
	to, err := parseDate("to", q.Get("to"), h.loc)
	if err != nil {
		verr.Add("to", "to must be a date in YYYY-MM-DD format")
	}
	if err := verr.Err(); err != nil {
		writeServiceError(w, err)
		return
	}

	report, err := h.attendance.GetDateRangeReport(r.Context(), studentID, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, report)
}

// Today handles GET /api/attendance/today
func (h *AttendanceHandler) Today(w http.ResponseWriter, r *http.Request) {
	summary, err := h.attendance.GetTodaySummary(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, summary)
}
