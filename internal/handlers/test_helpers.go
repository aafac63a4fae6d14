package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BradenHooton/schoolmis/internal/auth"
	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/BradenHooton/schoolmis/internal/repositories"
	"github.com/BradenHooton/schoolmis/internal/services"
	pkghttp "github.com/BradenHooton/schoolmis/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithAccount authenticates req as an active account with role.
func WithAccount(req *http.Request, id string, role models.Role) *http.Request {
	account := &models.Account{
		ID:       id,
		Email:    id + "@school.test",
		Role:     role,
		FullName: "Test " + string(role),
		Active:   true,
	}
	return req.WithContext(auth.WithAccount(req.Context(), account))
}

// WithURLParams sets chi route parameters on a request that is served
// without a router.
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks the status, decodes the envelope and, when
// target is non-nil, decodes its data into target.
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) pkghttp.Response {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	var env struct {
		pkghttp.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "Failed to decode response JSON")
	assert.True(t, env.Success)
	assert.Equal(t, expectedStatus, env.StatusCode)

	if target != nil {
		require.NoError(t, json.Unmarshal(env.Data, target), "Failed to decode response data")
	}
	return env.Response
}

// AssertErrorResponse checks that the response is an error envelope with
// the given status and code, and returns the envelope.
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedCode string) pkghttp.Response {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), "Failed to decode error response")
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, expectedCode, resp.Error.Code, "Error code mismatch")
	assert.NotEmpty(t, resp.Error.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, email, password string, meta models.RequestMeta) (*services.LoginResult, error)
	RefreshFunc        func(ctx context.Context, refreshToken string) (*services.RefreshResult, error)
	LogoutFunc         func(ctx context.Context, account *models.Account, sessionID string, meta models.RequestMeta) error
	MeFunc             func(ctx context.Context, account *models.Account) (*models.AccountSummary, error)
	ChangePasswordFunc func(ctx context.Context, account *models.Account, currentPassword, newPassword string, meta models.RequestMeta) error
	ForgotPasswordFunc func(ctx context.Context, email string) (string, error)
	ResetPasswordFunc  func(ctx context.Context, token, newPassword string, meta models.RequestMeta) error
}

func (m *MockAuthService) Login(ctx context.Context, email, password string, meta models.RequestMeta) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, email, password, meta)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*services.RefreshResult, error) {
	if m.RefreshFunc == nil {
		return nil, models.ErrInvalidToken
	}
	return m.RefreshFunc(ctx, refreshToken)
}

func (m *MockAuthService) Logout(ctx context.Context, account *models.Account, sessionID string, meta models.RequestMeta) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, account, sessionID, meta)
}

func (m *MockAuthService) Me(ctx context.Context, account *models.Account) (*models.AccountSummary, error) {
	if m.MeFunc == nil {
		return models.NewAccountSummary(account), nil
	}
	return m.MeFunc(ctx, account)
}

func (m *MockAuthService) ChangePassword(ctx context.Context, account *models.Account, currentPassword, newPassword string, meta models.RequestMeta) error {
	if m.ChangePasswordFunc == nil {
		return nil
	}
	return m.ChangePasswordFunc(ctx, account, currentPassword, newPassword, meta)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	if m.ForgotPasswordFunc == nil {
		return "", nil
	}
	return m.ForgotPasswordFunc(ctx, email)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, token, newPassword string, meta models.RequestMeta) error {
	if m.ResetPasswordFunc == nil {
		return nil
	}
	return m.ResetPasswordFunc(ctx, token, newPassword, meta)
}

// MockAttendanceService implements AttendanceServiceInterface for testing
type MockAttendanceService struct {
	MarkAttendanceFunc     func(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.MarkAttendanceInput) (*services.MarkResult, error)
	MarkBulkAttendanceFunc func(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.BulkInput) (*services.BulkResult, error)
	UpdateAttendanceFunc   func(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.UpdateAttendanceInput) (*models.AttendanceRecord, error)
	GetClassAttendanceFunc func(ctx context.Context, classID, section string, date time.Time) (*models.ClassAttendance, error)
	GetStudentFunc         func(ctx context.Context, studentID string, rng models.DateRange) ([]models.AttendanceRecord, error)
	GetStudentStatsFunc    func(ctx context.Context, studentID string, rng models.DateRange) (*models.AttendanceStats, error)
	GetMonthlyReportFunc   func(ctx context.Context, classID, section string, month, year int) (*services.MonthlyReport, error)
	GetStudentReportFunc   func(ctx context.Context, studentID, academicYear string) (*services.StudentReport, error)
	GetDateRangeReportFunc func(ctx context.Context, studentID string, from, to time.Time) (*services.StudentReport, error)
	GetTodaySummaryFunc    func(ctx context.Context) (*models.DailySummary, error)
}

func (m *MockAttendanceService) MarkAttendance(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.MarkAttendanceInput) (*services.MarkResult, error) {
	if m.MarkAttendanceFunc == nil {
		return &services.MarkResult{Record: &models.AttendanceRecord{StudentID: in.StudentID, Status: in.Status, Date: in.Date}, Created: true}, nil
	}
	return m.MarkAttendanceFunc(ctx, actor, meta, in)
}

func (m *MockAttendanceService) MarkBulkAttendance(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.BulkInput) (*services.BulkResult, error) {
	if m.MarkBulkAttendanceFunc == nil {
		return &services.BulkResult{}, nil
	}
	return m.MarkBulkAttendanceFunc(ctx, actor, meta, in)
}

func (m *MockAttendanceService) UpdateAttendance(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.UpdateAttendanceInput) (*models.AttendanceRecord, error) {
	if m.UpdateAttendanceFunc == nil {
		return nil, models.NotFound("Attendance record")
	}
	return m.UpdateAttendanceFunc(ctx, actor, meta, id, in)
}

func (m *MockAttendanceService) GetClassAttendance(ctx context.Context, classID, section string, date time.Time) (*models.ClassAttendance, error) {
	if m.GetClassAttendanceFunc == nil {
		return &models.ClassAttendance{Date: date}, nil
	}
	return m.GetClassAttendanceFunc(ctx, classID, section, date)
}

func (m *MockAttendanceService) GetStudentAttendance(ctx context.Context, studentID string, rng models.DateRange) ([]models.AttendanceRecord, error) {
	if m.GetStudentFunc == nil {
		return nil, nil
	}
	return m.GetStudentFunc(ctx, studentID, rng)
}

func (m *MockAttendanceService) GetStudentStats(ctx context.Context, studentID string, rng models.DateRange) (*models.AttendanceStats, error) {
	if m.GetStudentStatsFunc == nil {
		return &models.AttendanceStats{}, nil
	}
	return m.GetStudentStatsFunc(ctx, studentID, rng)
}

func (m *MockAttendanceService) GetMonthlyReport(ctx context.Context, classID, section string, month, year int) (*services.MonthlyReport, error) {
	if m.GetMonthlyReportFunc == nil {
		return &services.MonthlyReport{ClassID: classID, Section: section, Month: month, Year: year}, nil
	}
	return m.GetMonthlyReportFunc(ctx, classID, section, month, year)
}

func (m *MockAttendanceService) GetStudentReport(ctx context.Context, studentID, academicYear string) (*services.StudentReport, error) {
	if m.GetStudentReportFunc == nil {
		return &services.StudentReport{StudentID: studentID, AcademicYear: academicYear}, nil
	}
	return m.GetStudentReportFunc(ctx, studentID, academicYear)
}

func (m *MockAttendanceService) GetDateRangeReport(ctx context.Context, studentID string, from, to time.Time) (*services.StudentReport, error) {
	if m.GetDateRangeReportFunc == nil {
		return &services.StudentReport{StudentID: studentID, From: from, To: to}, nil
	}
	return m.GetDateRangeReportFunc(ctx, studentID, from, to)
}

func (m *MockAttendanceService) GetTodaySummary(ctx context.Context) (*models.DailySummary, error) {
	if m.GetTodaySummaryFunc == nil {
		return &models.DailySummary{}, nil
	}
	return m.GetTodaySummaryFunc(ctx)
}

// MockStudentService implements StudentServiceInterface for testing
type MockStudentService struct {
	CreateStudentFunc     func(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.CreateStudentInput) (*models.StudentProfile, error)
	GetStudentFunc        func(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) (*services.StudentDetails, error)
	ListStudentsFunc      func(ctx context.Context, f repositories.StudentFilter) (*services.StudentPage, error)
	UpdateStudentFunc     func(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.UpdateStudentInput) (*models.StudentProfile, error)
	TransferStudentFunc   func(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.TransferStudentInput) (*models.StudentProfile, error)
	DeactivateStudentFunc func(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) error
}

func (m *MockStudentService) CreateStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.CreateStudentInput) (*models.StudentProfile, error) {
	if m.CreateStudentFunc == nil {
		return &models.StudentProfile{FullName: in.FullName, Email: in.Email, ClassID: in.ClassID, Section: in.Section, RollNumber: in.RollNumber}, nil
	}
	return m.CreateStudentFunc(ctx, actor, meta, in)
}

func (m *MockStudentService) GetStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) (*services.StudentDetails, error) {
	if m.GetStudentFunc == nil {
		return nil, models.NotFound("Student")
	}
	return m.GetStudentFunc(ctx, actor, meta, id)
}

func (m *MockStudentService) ListStudents(ctx context.Context, f repositories.StudentFilter) (*services.StudentPage, error) {
	if m.ListStudentsFunc == nil {
		return &services.StudentPage{Limit: f.Limit, Offset: f.Offset}, nil
	}
	return m.ListStudentsFunc(ctx, f)
}

func (m *MockStudentService) UpdateStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.UpdateStudentInput) (*models.StudentProfile, error) {
	if m.UpdateStudentFunc == nil {
		return nil, models.NotFound("Student")
	}
	return m.UpdateStudentFunc(ctx, actor, meta, id, in)
}

func (m *MockStudentService) TransferStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.TransferStudentInput) (*models.StudentProfile, error) {
	if m.TransferStudentFunc == nil {
		return nil, models.NotFound("Student")
	}
	return m.TransferStudentFunc(ctx, actor, meta, id, in)
}

func (m *MockStudentService) DeactivateStudent(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) error {
	if m.DeactivateStudentFunc == nil {
		return nil
	}
	return m.DeactivateStudentFunc(ctx, actor, meta, id)
}

// MockTeacherService implements TeacherServiceInterface for testing
type MockTeacherService struct {
	CreateTeacherFunc     func(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.CreateTeacherInput) (*models.TeacherProfile, error)
	GetTeacherFunc        func(ctx context.Context, id string) (*models.TeacherProfile, error)
	ListTeachersFunc      func(ctx context.Context, includeInactive bool) ([]*models.TeacherProfile, error)
	UpdateTeacherFunc     func(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.UpdateTeacherInput) (*models.TeacherProfile, error)
	DeactivateTeacherFunc func(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) error
}

func (m *MockTeacherService) CreateTeacher(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.CreateTeacherInput) (*models.TeacherProfile, error) {
	if m.CreateTeacherFunc == nil {
		return &models.TeacherProfile{FullName: in.FullName, Email: in.Email, Subjects: in.Subjects}, nil
	}
	return m.CreateTeacherFunc(ctx, actor, meta, in)
}

func (m *MockTeacherService) GetTeacher(ctx context.Context, id string) (*models.TeacherProfile, error) {
	if m.GetTeacherFunc == nil {
		return nil, models.NotFound("Teacher")
	}
	return m.GetTeacherFunc(ctx, id)
}

func (m *MockTeacherService) ListTeachers(ctx context.Context, includeInactive bool) ([]*models.TeacherProfile, error) {
	if m.ListTeachersFunc == nil {
		return nil, nil
	}
	return m.ListTeachersFunc(ctx, includeInactive)
}

func (m *MockTeacherService) UpdateTeacher(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.UpdateTeacherInput) (*models.TeacherProfile, error) {
	if m.UpdateTeacherFunc == nil {
		return nil, models.NotFound("Teacher")
	}
	return m.UpdateTeacherFunc(ctx, actor, meta, id, in)
}

func (m *MockTeacherService) DeactivateTeacher(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) error {
	if m.DeactivateTeacherFunc == nil {
		return nil
	}
	return m.DeactivateTeacherFunc(ctx, actor, meta, id)
}

// MockClassService implements ClassServiceInterface for testing
type MockClassService struct {
	CreateClassFunc func(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.ClassInput) (*models.Class, error)
	GetClassFunc    func(ctx context.Context, id string) (*models.Class, error)
	ListClassesFunc func(ctx context.Context, academicYear string) ([]*models.Class, error)
	UpdateClassFunc func(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.ClassInput) (*models.Class, error)
	DeleteClassFunc func(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) error
	ClassRosterFunc func(ctx context.Context, id, section string) ([]*models.StudentProfile, error)
}

func (m *MockClassService) CreateClass(ctx context.Context, actor models.Actor, meta models.RequestMeta, in services.ClassInput) (*models.Class, error) {
	if m.CreateClassFunc == nil {
		return &models.Class{ClassName: in.ClassName, Sections: in.Sections, AcademicYear: in.AcademicYear, Capacity: in.Capacity}, nil
	}
	return m.CreateClassFunc(ctx, actor, meta, in)
}

func (m *MockClassService) GetClass(ctx context.Context, id string) (*models.Class, error) {
	if m.GetClassFunc == nil {
		return nil, models.NotFound("Class")
	}
	return m.GetClassFunc(ctx, id)
}

func (m *MockClassService) ListClasses(ctx context.Context, academicYear string) ([]*models.Class, error) {
	if m.ListClassesFunc == nil {
		return nil, nil
	}
	return m.ListClassesFunc(ctx, academicYear)
}

func (m *MockClassService) UpdateClass(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string, in services.ClassInput) (*models.Class, error) {
	if m.UpdateClassFunc == nil {
		return nil, models.NotFound("Class")
	}
	return m.UpdateClassFunc(ctx, actor, meta, id, in)
}

func (m *MockClassService) DeleteClass(ctx context.Context, actor models.Actor, meta models.RequestMeta, id string) error {
	if m.DeleteClassFunc == nil {
		return nil
	}
	return m.DeleteClassFunc(ctx, actor, meta, id)
}

func (m *MockClassService) ClassRoster(ctx context.Context, id, section string) ([]*models.StudentProfile, error) {
	if m.ClassRosterFunc == nil {
		return nil, nil
	}
	return m.ClassRosterFunc(ctx, id, section)
}

// MockAuditService implements AuditServiceInterface for testing
type MockAuditService struct {
	ListFunc func(ctx context.Context, f models.AuditFilter) ([]*models.AuditEvent, error)
}

func (m *MockAuditService) List(ctx context.Context, f models.AuditFilter) ([]*models.AuditEvent, error) {
	if m.ListFunc == nil {
		return nil, nil
	}
	return m.ListFunc(ctx, f)
}

// MockPinger implements Pinger for testing
type MockPinger struct {
	Err error
}

func (m *MockPinger) HealthCheck(context.Context) error { return m.Err }
