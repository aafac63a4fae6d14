package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BradenHooton/schoolmis/internal/auth"
	"github.com/BradenHooton/schoolmis/internal/background"
	"github.com/BradenHooton/schoolmis/internal/config"
	"github.com/BradenHooton/schoolmis/internal/database"
	"github.com/BradenHooton/schoolmis/internal/handlers"
	middlewareCustom "github.com/BradenHooton/schoolmis/internal/middleware"
	"github.com/BradenHooton/schoolmis/internal/repositories"
	"github.com/BradenHooton/schoolmis/internal/routes"
	"github.com/BradenHooton/schoolmis/internal/services"
	"github.com/BradenHooton/schoolmis/internal/session"
	pkgauth "github.com/BradenHooton/schoolmis/pkg/auth"
	pkghttp "github.com/BradenHooton/schoolmis/pkg/http"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Server.SlogLevel()}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	loc, err := cfg.Server.Location()
	if err != nil {
		logger.Error("invalid time zone", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err := database.Migrate(migrateCtx, db.Pool, logger)
		cancel()
		if err != nil {
			logger.Error("failed to run migrations", slog.Any("error", err))
			os.Exit(1)
		}
	}

	// Session store
	var sessions session.Store
	var redisClient *redis.Client
	switch cfg.Session.Store {
	case "redis":
		redisCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisClient, err = session.NewRedisClient(redisCtx, cfg.Session.RedisAddr, cfg.Session.RedisPassword, cfg.Session.RedisDB)
		cancel()
		if err != nil {
			logger.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer redisClient.Close()
		sessions = session.NewRedisStore(redisClient, cfg.Session.MaxAge)
	default:
		sessions = session.NewMemoryStore(cfg.Session.MaxAge, 10*time.Minute)
	}
	logger.Info("session store ready", slog.String("store", cfg.Session.Store))

	// Email
	var emailService services.EmailService
	if cfg.Email.Provider == "ses" {
		sesCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		emailService, err = services.NewAWSSESEmailService(sesCtx, cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.FrontendURL, logger)
		cancel()
		if err != nil {
			logger.Error("failed to initialize email service", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		emailService = services.NewLogEmailService(logger, cfg.Server.Env)
	}

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	studentRepo := repositories.NewStudentRepository(db)
	teacherRepo := repositories.NewTeacherRepository(db)
	classRepo := repositories.NewClassRepository(db)
	attendanceRepo := repositories.NewAttendanceRepository(db, loc)
	auditRepo := repositories.NewAuditEventRepository(db)

	tokenManager := auth.NewTokenManager(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.RefreshTokenSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)

	// Services
	policy := services.DefaultAuthPolicy()
	policy.MaxLoginAttempts = cfg.Auth.MaxLoginAttempts
	policy.LockoutDuration = cfg.Auth.LockoutDuration
	policy.SessionIdleTimeout = cfg.Auth.SessionIdleTimeout
	policy.ResetTokenExpiry = cfg.Auth.ResetTokenExpiry
	policy.LoginDelay = auth.LoginDelay{Base: 250 * time.Millisecond, Jitter: 100 * time.Millisecond}
	policy.PasswordCost = pkgauth.BcryptCost

	auditService := services.NewAuditService(auditRepo, logger)
	notificationService := services.NewNotificationService(studentRepo, classRepo, emailService, logger)
	authService := services.NewAuthService(accountRepo, studentRepo, teacherRepo, sessions, tokenManager, auditService, emailService, policy, logger)
	attendanceService := services.NewAttendanceService(attendanceRepo, studentRepo, classRepo, auditService, notificationService, loc, logger)
	studentService := services.NewStudentService(accountRepo, studentRepo, classRepo, attendanceRepo, auditService, policy.PasswordCost, logger)
	teacherService := services.NewTeacherService(accountRepo, teacherRepo, auditService, policy.PasswordCost, logger)
	classService := services.NewClassService(classRepo, studentRepo, teacherRepo, auditService, logger)
	adminService := services.NewAdminService(accountRepo, policy.PasswordCost, logger)

	// Bootstrap first admin if configured
	if email, password := os.Getenv("ADMIN_EMAIL"), os.Getenv("ADMIN_PASSWORD"); email != "" && password != "" {
		name := os.Getenv("ADMIN_NAME")
		if name == "" {
			name = "Administrator"
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		created, err := adminService.EnsureAdmin(ctx, email, password, name)
		cancel()
		if err != nil {
			logger.Error("failed to ensure admin account", slog.Any("error", err))
		} else if created {
			logger.Info("admin account created")
		}
	} else {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin bootstrap")
	}

	clientIPs := pkghttp.NewClientIPResolver(cfg.Server.TrustedProxies)
	cookies := auth.CookieConfig{
		Domain:   cfg.Auth.CookieDomain,
		Secure:   cfg.Auth.CookieSecure,
		SameSite: cfg.Auth.CookieSameSite,
	}

	h := routes.Handlers{
		Auth: handlers.NewAuthHandler(authService, clientIPs, cookies, cfg.Session.MaxAge, logger).
			EchoResetTokens(cfg.Server.Env != "production"),
		Attendance: handlers.NewAttendanceHandler(attendanceService, clientIPs, loc),
		Students:   handlers.NewStudentHandler(studentService, clientIPs, loc),
		Teachers:   handlers.NewTeacherHandler(teacherService, clientIPs, loc),
		Classes:    handlers.NewClassHandler(classService, clientIPs),
		Audit:      handlers.NewAuditHandler(auditService),
		Health:     handlers.NewHealthHandler(db, logger),
	}

	router := routes.NewRouter(h, routes.Options{
		Authenticator:  authService,
		Cookies:        cookies,
		AuthRateLimit:  middlewareCustom.RateLimitConfig{RequestsPerMinute: cfg.RateLimit.AuthRequestsPerMinute},
		ClientIPs:      clientIPs,
		Env:            cfg.Server.Env,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: 60 * time.Second,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	cleanupManager := background.NewCleanupManager(accountRepo, logger, cfg.Auth.CleanupInterval)
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr), slog.String("timezone", loc.String()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupManager.Stop()
	cleanupCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		return
	}

	logger.Info("server stopped gracefully")
}
