package routes

import (
	"log/slog"
	"time"

	"github.com/BradenHooton/schoolmis/internal/auth"
	"github.com/BradenHooton/schoolmis/internal/handlers"
	"github.com/BradenHooton/schoolmis/internal/middleware"
	"github.com/BradenHooton/schoolmis/internal/models"
	pkghttp "github.com/BradenHooton/schoolmis/pkg/http"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Handlers groups every HTTP handler the API serves.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Attendance *handlers.AttendanceHandler
	Students   *handlers.StudentHandler
	Teachers   *handlers.TeacherHandler
	Classes    *handlers.ClassHandler
	Audit      *handlers.AuditHandler
	Health     *handlers.HealthHandler
}

// Options configures the gates in front of the handlers.
type Options struct {
	Authenticator auth.Authenticator
	Cookies       auth.CookieConfig
	AuthRateLimit middleware.RateLimitConfig
	ClientIPs     *pkghttp.ClientIPResolver

	// Used by NewRouter only.
	Env            string
	AllowedOrigins []string
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// NewRouter builds the root router: the global middleware stack with the
// API mounted under /api. Client addresses come from opts.ClientIPs alone;
// nothing in the stack rewrites RemoteAddr from forwarding headers.
func NewRouter(h Handlers, opts Options) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.SecurityHeaders(middleware.SecurityHeadersConfig{Env: opts.Env}))
	router.Use(middleware.CORS(opts.AllowedOrigins, opts.Env))
	router.Use(middleware.SecureLogger(logger, opts.ClientIPs))
	router.Use(chimiddleware.Recoverer)
	router.Use(chimiddleware.Timeout(timeout))
	router.Use(middleware.CSRFProtection(opts.AllowedOrigins, logger))

	router.Route("/api", func(api chi.Router) {
		RegisterRoutes(api, h, opts)
	})
	return router
}

// RegisterRoutes mounts the API on router. router is expected to be the
// /api sub-router.
func RegisterRoutes(router chi.Router, h Handlers, opts Options) {
	authLimit := middleware.RateLimitByIP(opts.AuthRateLimit, opts.ClientIPs)
	staff := auth.RequireRole(models.RoleAdmin, models.RoleTeacher)
	admin := auth.RequireRole(models.RoleAdmin)

	router.Get("/health", h.Health.Check)

	// Public routes - no authentication required
	router.Group(func(r chi.Router) {
		r.Use(authLimit)
		r.Post("/auth/login", h.Auth.Login)
		r.Post("/auth/refresh-token", h.Auth.RefreshToken)
		r.Post("/auth/forgot-password", h.Auth.ForgotPassword)
		r.Post("/auth/reset-password", h.Auth.ResetPassword)
	})

	// Protected routes - authentication required
	router.Group(func(r chi.Router) {
		r.Use(auth.Authenticate(opts.Authenticator, opts.Cookies))

		// Any authenticated account
		r.Post("/auth/logout", h.Auth.Logout)
		r.Get("/auth/me", h.Auth.Me)
		r.Put("/auth/change-password", h.Auth.ChangePassword)

		r.Route("/attendance", func(r chi.Router) {
			r.Use(staff)
			r.Post("/mark", h.Attendance.Mark)
			r.Post("/bulk", h.Attendance.MarkBulk)
			r.Get("/class/{classId}", h.Attendance.ClassDay)
			r.Get("/student/{studentId}", h.Attendance.Student)
			r.Get("/stats/{studentId}", h.Attendance.Stats)
			r.Get("/report/monthly", h.Attendance.MonthlyReport)
			r.Get("/report/student/{studentId}", h.Attendance.StudentReport)
			r.Get("/report/range/{studentId}", h.Attendance.RangeReport)
			r.Get("/today", h.Attendance.Today)
			r.Put("/{id}", h.Attendance.Update)
		})

		r.Route("/classes", func(r chi.Router) {
			r.With(staff).Get("/", h.Classes.List)
			r.With(admin).Post("/", h.Classes.Create)
			r.With(staff).Get("/{id}", h.Classes.Get)
			r.With(admin).Put("/{id}", h.Classes.Update)
			r.With(admin).Delete("/{id}", h.Classes.Delete)
			r.With(staff).Get("/{id}/students", h.Classes.Students)
		})

		r.Route("/students", func(r chi.Router) {
			r.With(staff).Get("/", h.Students.List)
			r.With(admin).Post("/", h.Students.Create)
			r.With(staff).Get("/{id}", h.Students.Get)
			r.With(admin).Put("/{id}", h.Students.Update)
			r.With(admin).Delete("/{id}", h.Students.Delete)
			r.With(admin).Post("/{id}/transfer", h.Students.Transfer)
		})

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(admin)
			r.Route("/teachers", func(r chi.Router) {
				r.Get("/", h.Teachers.List)
				r.Post("/", h.Teachers.Create)
				r.Get("/{id}", h.Teachers.Get)
				r.Put("/{id}", h.Teachers.Update)
				r.Delete("/{id}", h.Teachers.Delete)
			})
			r.Get("/audit-events", h.Audit.List)
		})
	})
}
