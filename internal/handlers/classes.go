package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/services"
	pkghttp "github.com/BradenHooton/schoolmis/pkg/http"
)

type ClassServiceInterface interface {
	CreateClass(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.ClassInput) (*models.Class, error)
	GetClass(ctx context.Context, id string) (*models.Class, error)
	ListClasses(ctx context.Context, academicYear string) ([]*models.Class, error)
	UpdateClass(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.ClassInput) (*models.Class, error)
	DeleteClass(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) error
	ClassRoster(ctx context.Context, id, section string) ([]*models.StudentProfile, error)
}

type ClassHandler struct {
	classes ClassServiceInterface
	ips     *pkghttp.ClientIPResolver
}

func NewClassHandler(classes ClassServiceInterface, ips *pkghttp.ClientIPResolver) *ClassHandler {
	return &ClassHandler{classes: classes, ips: ips}
}

// ClassRequest is the body of both create and update; updates replace the
// whole class definition.
type ClassRequest struct {
	ClassName      string   `json:"className" validate:"required"`
	Sections       []string `json:"sections" validate:"required,min=1,max=4,dive,len=1"`
	ClassTeacherID *string  `json:"classTeacher" validate:"omitempty,uuid"`
	AcademicYear   string   `json:"academicYear" validate:"required,len=9"`
	RoomNumber     string   `json:"roomNumber" validate:"omitempty,max=20"`
	Capacity       int      `json:"capacity" validate:"omitempty,gte=10,lte=60"`
}

func (req ClassRequest) input() services.ClassInput {
	return services.ClassInput{
		ClassName:      strings.TrimSpace(req.ClassName),
		Sections:       req.Sections,
		ClassTeacherID: req.ClassTeacherID,
		AcademicYear:   strings.TrimSpace(req.AcademicYear),
		RoomNumber:     strings.TrimSpace(req.RoomNumber),
		Capacity:       req.Capacity,
	}
}

// Create handles POST /api/classes
func (h *ClassHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorOf(r)
	if !ok {
		writeServiceError(w, models.ErrUnauthenticated)
		return
	}

	var req ClassRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	class, err := h.classes.CreateClass(r.Context(), actor, requestMeta(r, h.ips), req.input())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteCreated(w, "Class created successfully", class)
}

// List handles GET /api/classes?academicYear=
func (h *ClassHandler) List(w http.ResponseWriter, r *http.Request) {
	classes, err := h.classes.ListClasses(r.Context(), r.URL.Query().Get("academicYear"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if classes == nil {
		classes = []*models.Class{}
	}

	pkghttp.WriteOK(w, classes)
}

// Get handles GET /api/classes/{id}
func (h *ClassHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	class, err := h.classes.GetClass(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteOK(w, class)
}

// Update handles PUT /api/classes/{id}
func (h *ClassHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	var req ClassRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	class, err := h.classes.UpdateClass(r.Context(), actor, requestMeta(r, h.ips), id, req.input())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Class updated successfully", class)
}

// Delete handles DELETE /api/classes/{id}. Only classes without students
// can be removed.
func (h *ClassHandler) Delete(w http.ResponseWriter, r *http.Request) {
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

	if err := h.classes.DeleteClass(r.Context(), actor, requestMeta(r, h.ips), id); err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteSuccess(w, http.StatusOK, "Class deleted successfully", nil)
}

// Students handles GET /api/classes/{id}/students?section=
func (h *ClassHandler) Students(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeServiceError(w, err)
		return
	}

	section := strings.ToUpper(r.URL.Query().Get("section"))

	roster, err := h.classes.ClassRoster(r.Context(), id, section)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if roster == nil {
		roster = []*models.StudentProfile{}
	}

	pkghttp.WriteOK(w, roster)
}
