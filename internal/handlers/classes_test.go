package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/schoolmis/internal/handlers"
	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/services"
	"github.com/stretchr/testify/assert"
)

func TestCreateClass(t *testing.T) {
	var got services.ClassInput
	svc := &handlers.MockClassService{
		CreateClassFunc: func(_ context.Context, _ models.Actor, _ models.RequestMeta, in services.ClassInput) (*models.Class, error) {
			got = in
			return &models.Class{ID: classID, ClassName: in.ClassName, Sections: in.Sections, AcademicYear: in.AcademicYear}, nil
		},
	}

	req := handlers.WithAccount(handlers.NewTestRequest(t, "POST", "/api/classes", handlers.ClassRequest{
		ClassName: " 5 ", Sections: []string{"A", "B"}, AcademicYear: "2024-2025", RoomNumber: "R-12",
	}), adminID, models.RoleAdmin)
	w := httptest.NewRecorder()
	handlers.NewClassHandler(svc, nil).Create(w, req)

	var class models.Class
	handlers.AssertJSONResponse(t, w, http.StatusCreated, &class)
	assert.Equal(t, classID, class.ID)
	assert.Equal(t, "5", got.ClassName)
	assert.Zero(t, got.Capacity)
}

func TestCreateClass_Validation(t *testing.T) {
	req := handlers.WithAccount(handlers.NewTestRequest(t, "POST", "/api/classes", handlers.ClassRequest{
		ClassName: "5", Sections: []string{"A", "B", "C", "D", "E"}, AcademicYear: "2024", Capacity: 100,
	}), adminID, models.RoleAdmin)
	w := httptest.NewRecorder()
	handlers.NewClassHandler(&handlers.MockClassService{}, nil).Create(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_error")
	for _, field := range []string{"sections", "academicYear", "capacity"} {
		assert.Contains(t, w.Body.String(), `"field":"`+field+`"`)
	}
}

func TestDeleteClass_WithStudents(t *testing.T) {
	svc := &handlers.MockClassService{
		DeleteClassFunc: func(context.Context, models.Actor, models.RequestMeta, string) error {
			return models.Detail(models.ErrConflict, "cannot delete a class with 12 enrolled students")
		},
	}

	req := handlers.WithURLParams(handlers.WithAccount(httptest.NewRequest("DELETE", "/api/classes/"+classID, nil), adminID, models.RoleAdmin),
		map[string]string{"id": classID})
	w := httptest.NewRecorder()
	handlers.NewClassHandler(svc, nil).Delete(w, req)

	resp := handlers.AssertErrorResponse(t, w, http.StatusConflict, "conflict")
	assert.Contains(t, resp.Error.Message, "12 enrolled students")
}

func TestClassStudents(t *testing.T) {
	var gotSection string
	svc := &handlers.MockClassService{
		ClassRosterFunc: func(_ context.Context, _, section string) ([]*models.StudentProfile, error) {
			gotSection = section
			return []*models.StudentProfile{{AccountID: studentID, RollNumber: 1}}, nil
		},
	}

	req := handlers.WithURLParams(httptest.NewRequest("GET", "/api/classes/"+classID+"/students?section=b", nil), map[string]string{"id": classID})
	w := httptest.NewRecorder()
	handlers.NewClassHandler(svc, nil).Students(w, req)

	var roster []models.StudentProfile
	handlers.AssertJSONResponse(t, w, http.StatusOK, &roster)
	assert.Len(t, roster, 1)
	assert.Equal(t, "B", gotSection)
}

func TestListClasses_InvalidYear(t *testing.T) {
	svc := &handlers.MockClassService{
		ListClassesFunc: func(context.Context, string) ([]*models.Class, error) {
			return nil, models.NewValidationError("academicYear", "academic year must be in YYYY-YYYY format")
		},
	}

	w := httptest.NewRecorder()
	handlers.NewClassHandler(svc, nil).List(w, httptest.NewRequest("GET", "/api/classes?academicYear=24", nil))

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "validation_error")
}
