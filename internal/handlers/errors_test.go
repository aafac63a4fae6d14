package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&models.LoginFailure{AttemptsRemaining: 2}, http.StatusUnauthorized, "invalid_credentials"},
		{models.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{&models.LockoutError{RemainingMinutes: 12}, http.StatusLocked, "account_locked"},
		{models.ErrAccountDeactivated, http.StatusForbidden, "account_deactivated"},
		{models.ErrSessionExpired, http.StatusUnauthorized, "session_expired"},
		{models.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
		{fmt.Errorf("%w: issued before password change", models.ErrInvalidToken), http.StatusUnauthorized, "invalid_token"},
		{models.ErrUnauthenticated, http.StatusUnauthorized, "unauthorized"},
		{models.ErrAuthenticationFailed, http.StatusUnauthorized, "authentication_failed"},
		{models.ErrInvalidOrExpiredToken, http.StatusBadRequest, "invalid_reset_token"},
		{models.ErrForbidden, http.StatusForbidden, "forbidden"},
		{models.NotFound("Class"), http.StatusNotFound, "not_found"},
		{models.ErrDuplicateEntry, http.StatusConflict, "duplicate_entry"},
		{models.Detail(models.ErrConflict, "section A has students"), http.StatusConflict, "conflict"},
		{models.NewValidationError("month", "month must be between 1 and 12"), http.StatusBadRequest, "validation_error"},
		{models.Detail(models.ErrValidation, "bad"), http.StatusBadRequest, "validation_error"},
		{models.ErrInternalServer, http.StatusInternalServerError, "internal_error"},
		{errors.New("pq: relation does not exist"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			writeServiceError(w, tt.err)

			AssertErrorResponse(t, w, tt.status, tt.code)
		})
	}
}

func TestWriteServiceError_HidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	writeServiceError(w, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	assert.NotContains(t, w.Body.String(), "10.0.0.5")
}

func TestValidateRequest_UsesJSONNames(t *testing.T) {
	err := ValidateRequest(&MarkAttendanceRequest{Section: "AB", Date: "2024-13-01", Status: "present"})

	var verr *models.ValidationError
	if assert.ErrorAs(t, err, &verr) {
		fields := map[string]bool{}
		for _, f := range verr.Fields {
			fields[f.Field] = true
		}
		assert.True(t, fields["studentId"])
		assert.True(t, fields["classId"])
		assert.True(t, fields["section"])
		assert.True(t, fields["date"])
		assert.False(t, fields["status"])
	}
}

func TestValidateRequest_RejectsMalformedIDs(t *testing.T) {
	err := ValidateRequest(&MarkAttendanceRequest{
		StudentID: "not-a-uuid", ClassID: "7c2e9a41-3b5d-4e68-8f1a-6d4c2b9e0a11",
		Section: "A", Date: "2024-11-04", Status: "present",
	})

	var verr *models.ValidationError
	if assert.ErrorAs(t, err, &verr) {
		assert.Len(t, verr.Fields, 1)
		assert.Equal(t, "studentId", verr.Fields[0].Field)
		assert.Equal(t, "studentId must be a valid id", verr.Fields[0].Message)
	}
}
