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

type TeacherServiceInterface interface {
	CreateTeacher(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.CreateTeacherInput) (*models.TeacherProfile, error)
	GetTeacher(ctx context.Context, id string) (*models.TeacherProfile, error)
	ListTeachers(ctx context.Context, includeInactive bool) ([]*models.TeacherProfile, error)
	UpdateTeacher(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.UpdateTeacherInput) (*models.TeacherProfile, error)
	DeactivateTeacher(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) error
}

type TeacherHandler struct {
	teachers TeacherServiceInterface
	ips      *pkghttp.ClientIPResolver
	loc      *time.Location
}

func NewTeacherHandler(teachers TeacherServiceInterface, ips *pkghttp.ClientIPResolver, loc *time.Location) *TeacherHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &TeacherHandler{teachers: teachers, ips: ips, loc: loc}
}

type CreateTeacherRequest struct {
	FullName      string   `json:"fullName" validate:"required,min=2,max=100"`
	Email         string   `json:"email" validate:"required,email"`
	Password      string   `json:"password" validate:"required,min=8"`
	Qualification string   `json:"qualification" validate:"omitempty,max=200"`
	Subjects      []string `json:"subjects" validate:"max=20,dive,max=50"`
	Phone         string   `json:"phone" validate:"omitempty,max=20"`
	JoiningDate   string   `json:"joiningDate" validate:"omitempty,date"`
}

type UpdateTeacherRequest struct {
	FullName      *string  `json:"fullName" validate:"omitempty,min=2,max=100"`
	Email         *string  `json:"email" validate:"omitempty,email"`
	Qualification *string  `json:"qualification" validate:"omitempty,max=200"`
	Subjects      []string `json:"subjects" validate:"omitempty,max=20,dive,max=50"`
	Phone         *string  `json:"phone" validate:"omitempty,max=20"`
	JoiningDate   *string  `json:"joiningDate" validate:"omitempty,date"`
}

// Create handles POST /api/teachers
func (h *TeacherHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(r)
	if !ok {
		writeServiceError(w, models.ErrUnauthenticated)
		return
	}

	var req CreateTeacherRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}
	joined, err := parseOptionalDate("joiningDate", req.JoiningDate, h.loc)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	teacher, err := h.teachers.CreateTeacher(r.Context(), actor, requestMeta(r, h.ips), services.CreateTeacherInput{
		FullName:      req.FullName,
		Email:         req.Email,
		Password:      req.Password,
		Qualification: req.Qualification,
		Subjects:      req.Subjects,
		Phone:         req.Phone,
		JoiningDate:   joined,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteCreated(w, "Teacher created successfully", teacher)
}

// List handles GET /api/teachers?includeInactive=
func (h *TeacherHandler) List(w http.ResponseWriter, r *http.Request) {
	includeInactive, _ := strconv.ParseBool(r.URL.Query().Get("includeInactive"))

	teachers, err := h.teachers.ListTeachers(r.Context(), includeInactive)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if teachers == nil {
		teachers = []*models.TeacherProfile{}
	}

	pkghttp.WriteOK(w, teachers)
}

// Get handles GET /api/teachers/{id}
func (h *TeacherHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	teacher, err := h.teachers.GetTeacher(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, teacher)
}

// Update handles PUT /api/teachers/{id}
func (h *TeacherHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req UpdateTeacherRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	in := services.UpdateTeacherInput{
		FullName:      req.FullName,
		Email:         req.Email,
		Qualification: req.Qualification,
		Subjects:      req.Subjects,
		Phone:         req.Phone,
	}
	if req.JoiningDate != nil {
		joined, err := parseDate("joiningDate", *req.JoiningDate, h.loc)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		in.JoiningDate = &joined
	}

	teacher, err := h.teachers.UpdateTeacher(r.Context(), actor, requestMeta(r, h.ips), id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Teacher updated successfully", teacher)
}

// Delete handles DELETE /api/teachers/{id}
func (h *TeacherHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.teachers.DeactivateTeacher(r.Context(), actor, requestMeta(r, h.ips), id); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Teacher deactivated successfully", nil)
}
