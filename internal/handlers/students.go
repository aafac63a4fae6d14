package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/repositories"
	"github.com/BradenHooton/schoolmis/internal/services"
	pkghttp "github.com/BradenHooton/schoolmis/pkg/http"
)

type StudentServiceInterface interface {
	CreateStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.CreateStudentInput) (*models.StudentProfile, error)
	GetStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) (*services.StudentDetails, error)
	ListStudents(ctx context.Context, f repositories.StudentFilter) (*services.StudentPage, error)
	UpdateStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.UpdateStudentInput) (*models.StudentProfile, error)
	TransferStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.TransferStudentInput) (*models.StudentProfile, error)
	DeactivateStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) error
}

// StudentHandler serves /api/students.
type StudentHandler struct {
	students StudentServiceInterface
	ips      *pkghttp.ClientIPResolver
	loc      *time.Location
}

func NewStudentHandler(students StudentServiceInterface, ips *pkghttp.ClientIPResolver, loc *time.Location) *StudentHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &StudentHandler{students: students, ips: ips, loc: loc}
}

type CreateStudentRequest struct {
	FullName    string `json:"fullName" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	ClassID     string `json:"classId" validate:"required,uuid"`
	Section     string `json:"section" validate:"required,len=1"`
	RollNumber  int    `json:"rollNumber" validate:"required,gte=1"`
	DateOfBirth string `json:"dateOfBirth" validate:"omitempty,date"`
	Gender      string `json:"gender" validate:"omitempty,oneof=male female other"`
	ParentName  string `json:"parentName" validate:"omitempty,max=100"`
	ParentEmail string `json:"parentEmail" validate:"omitempty,email"`
	ParentPhone string `json:"parentPhone" validate:"omitempty,max=20"`
	Address     string `json:"address" validate:"omitempty,max=500"`
}

type UpdateStudentRequest struct {
	FullName    *string `json:"fullName" validate:"omitempty,min=2,max=100"`
	Email       *string `json:"email" validate:"omitempty,email"`
	RollNumber  *int    `json:"rollNumber" validate:"omitempty,gte=1"`
	DateOfBirth *string `json:"dateOfBirth" validate:"omitempty,date"`
	Gender      *string `json:"gender" validate:"omitempty,oneof=male female other"`
	ParentName  *string `json:"parentName" validate:"omitempty,max=100"`
	ParentEmail *string `json:"parentEmail" validate:"omitempty,email"`
	ParentPhone *string `json:"parentPhone" validate:"omitempty,max=20"`
	Address     *string `json:"address" validate:"omitempty,max=500"`
}

type TransferStudentRequest struct {
	ClassID    string `json:"classId" validate:"required,uuid"`
	Section    string `json:"section" validate:"required,len=1"`
	RollNumber int    `json:"rollNumber" validate:"required,gte=1"`
}

// Create handles POST /api/students
// @Summary Enroll a student with a login account
// @Router /students [post]
func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(r)
	if !ok {
		writeServiceError(w, models.ErrUnauthenticated)
		return
	}

	var req CreateStudentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	dob, err := parseOptionalDate("dateOfBirth", req.DateOfBirth, h.loc)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	student, err := h.students.CreateStudent(r.Context(), actor, requestMeta(r, h.ips), services.CreateStudentInput{
		FullName:    req.FullName,
		Email:       req.Email,
		Password:    req.Password,
		ClassID:     req.ClassID,
		Section:     strings.ToUpper(req.Section),
		RollNumber:  req.RollNumber,
		DateOfBirth: dob,
		Gender:      req.Gender,
		ParentName:  req.ParentName,
		ParentEmail: req.ParentEmail,
		ParentPhone: req.ParentPhone,
		Address:     req.Address,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteCreated(w, "Student created successfully", student)
}

// List handles GET /api/students?classId=&section=&gender=&search=&includeInactive=&limit=&offset=
func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := repositories.StudentFilter{
		ClassID: q.Get("classId"),
		Section: strings.ToUpper(q.Get("section")),
		Gender:  q.Get("gender"),
		Search:  strings.TrimSpace(q.Get("search")),
	}
	if _, err := parseOptionalID("classId", f.ClassID); err != nil {
		writeServiceError(w, err)
		return
	}
	f.IncludeInactive, _ = strconv.ParseBool(q.Get("includeInactive"))
	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = limit
	}
	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		f.Offset = offset
	}

	page, err := h.students.ListStudents(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if page.Students == nil {
		page.Students = []*models.StudentProfile{}
	}

	pkghttp.WriteOK(w, page)
}

// Get handles GET /api/students/{id}. The response carries attendance
// totals and the latest marks.
func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
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

	details, err := h.students.GetStudent(r.Context(), actor, requestMeta(r, h.ips), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, details)
}

// Update handles PUT /api/students/{id}
func (h *StudentHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateStudentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	in := services.UpdateStudentInput{
		FullName:    req.FullName,
		Email:       req.Email,
		RollNumber:  req.RollNumber,
		Gender:      req.Gender,
		ParentName:  req.ParentName,
		ParentEmail: req.ParentEmail,
		ParentPhone: req.ParentPhone,
		Address:     req.Address,
	}
	if req.DateOfBirth != nil {
		dob, err := parseDate("dateOfBirth", *req.DateOfBirth, h.loc)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		in.DateOfBirth = &dob
	}

	student, err := h.students.UpdateStudent(r.Context(), actor, requestMeta(r, h.ips), id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Student updated successfully", student)
}

// Transfer handles POST /api/students/{id}/transfer
func (h *StudentHandler) Transfer(w http.ResponseWriter, r *http.Request) {
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

	var req TransferStudentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	student, err := h.students.TransferStudent(r.Context(), actor, requestMeta(r, h.ips), id, services.TransferStudentInput{
		ClassID:    req.ClassID,
		Section:    strings.ToUpper(req.Section),
		RollNumber: req.RollNumber,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Student transferred successfully", student)
}

// Delete handles DELETE /api/students/{id}. Students are deactivated, not
// removed, so their attendance history stays intact.
func (h *StudentHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.students.DeactivateStudent(r.Context(), actor, requestMeta(r, h.ips), id); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Student deactivated successfully", nil)
}
