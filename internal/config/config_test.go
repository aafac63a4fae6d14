package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "access-secret-32-characters-long")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret-32-characters-lng")
	t.Setenv("DB_PASSWORD", "test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	durations := []struct {
		name     string
		actual   time.Duration
		expected time.Duration
	}{
		{"AccessTokenExpiry", cfg.Auth.AccessTokenExpiry, 7 * 24 * time.Hour},
		{"RefreshTokenExpiry", cfg.Auth.RefreshTokenExpiry, 30 * 24 * time.Hour},
		{"SessionIdleTimeout", cfg.Auth.SessionIdleTimeout, 5 * time.Minute},
		{"LockoutDuration", cfg.Auth.LockoutDuration, 30 * time.Minute},
		{"ResetTokenExpiry", cfg.Auth.ResetTokenExpiry, 10 * time.Minute},
		{"ReadTimeout", cfg.Server.ReadTimeout, 15 * time.Second},
		{"WriteTimeout", cfg.Server.WriteTimeout, 15 * time.Second},
		{"IdleTimeout", cfg.Server.IdleTimeout, 60 * time.Second},
	}

	for _, tt := range durations {
		if tt.actual != tt.expected {
			t.Errorf("%s: got %v, want %v", tt.name, tt.actual, tt.expected)
		}
	}

	if cfg.Auth.MaxLoginAttempts != 5 {
		t.Errorf("MaxLoginAttempts: got %d, want 5", cfg.Auth.MaxLoginAttempts)
	}
	if cfg.Session.Store != "memory" {
		t.Errorf("Session.Store: got %q, want memory", cfg.Session.Store)
	}
	if cfg.Email.FromAddress != "noreply@schoolmis.com" {
		t.Errorf("Email.FromAddress: got %q", cfg.Email.FromAddress)
	}
}

func TestLoad_DayDurations(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JWT_EXPIRE", "1d")
	t.Setenv("JWT_REFRESH_EXPIRE", "14d")
	t.Setenv("SESSION_IDLE_TIMEOUT", "90s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.AccessTokenExpiry != 24*time.Hour {
		t.Errorf("AccessTokenExpiry: got %v, want 24h", cfg.Auth.AccessTokenExpiry)
	}
	if cfg.Auth.RefreshTokenExpiry != 14*24*time.Hour {
		t.Errorf("RefreshTokenExpiry: got %v, want 336h", cfg.Auth.RefreshTokenExpiry)
	}
	if cfg.Auth.SessionIdleTimeout != 90*time.Second {
		t.Errorf("SessionIdleTimeout: got %v, want 90s", cfg.Auth.SessionIdleTimeout)
	}
}

func TestLoad_InvalidDurationFallsBack(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")
	t.Setenv("JWT_EXPIRE", "xd")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("ReadTimeout: got %v, want default 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Auth.AccessTokenExpiry != 7*24*time.Hour {
		t.Errorf("AccessTokenExpiry: got %v, want default 168h", cfg.Auth.AccessTokenExpiry)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing access secret",
			env:     map[string]string{"JWT_REFRESH_SECRET": "refresh-secret-32-characters-lng", "DB_PASSWORD": "x"},
			wantErr: "JWT_SECRET is required",
		},
		{
			name:    "missing refresh secret",
			env:     map[string]string{"JWT_SECRET": "access-secret-32-characters-long", "DB_PASSWORD": "x"},
			wantErr: "JWT_REFRESH_SECRET is required",
		},
		{
			name: "identical secrets",
			env: map[string]string{
				"JWT_SECRET":         "same-secret-32-characters-long!!",
				"JWT_REFRESH_SECRET": "same-secret-32-characters-long!!",
				"DB_PASSWORD":        "x",
			},
			wantErr: "must differ",
		},
		{
			name: "short refresh secret",
			env: map[string]string{
				"JWT_SECRET":         "access-secret-32-characters-long",
				"JWT_REFRESH_SECRET": "short",
				"DB_PASSWORD":        "x",
			},
			wantErr: "JWT_REFRESH_SECRET must be at least 16",
		},
		{
			name: "missing db password",
			env: map[string]string{
				"JWT_SECRET":         "access-secret-32-characters-long",
				"JWT_REFRESH_SECRET": "refresh-secret-32-characters-lng",
			},
			wantErr: "DB_PASSWORD is required",
		},
		{
			name: "unknown session store",
			env: map[string]string{
				"JWT_SECRET":         "access-secret-32-characters-long",
				"JWT_REFRESH_SECRET": "refresh-secret-32-characters-lng",
				"DB_PASSWORD":        "x",
				"SESSION_STORE":      "memcached",
			},
			wantErr: "SESSION_STORE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"JWT_SECRET", "JWT_REFRESH_SECRET", "DB_PASSWORD", "SESSION_STORE"} {
				t.Setenv(key, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			if err == nil {
				t.Fatalf("Load() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %q, want it to contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateJWTSecret_Production(t *testing.T) {
	if err := validateJWTSecret("JWT_SECRET", "sixteen-chars-ok", "development"); err != nil {
		t.Errorf("development: unexpected error %v", err)
	}
	if err := validateJWTSecret("JWT_SECRET", "sixteen-chars-ok", "production"); err == nil {
		t.Error("production: expected error for 16 character secret")
	}
}

func TestServerConfig_Location(t *testing.T) {
	sc := ServerConfig{TimeZone: "UTC"}
	loc, err := sc.Location()
	if err != nil {
		t.Fatalf("Location() = %v", err)
	}
	if loc.String() != "UTC" {
		t.Errorf("Location() = %s, want UTC", loc)
	}

	sc.TimeZone = "Not/AZone"
	if _, err := sc.Location(); err == nil {
		t.Error("expected error for unknown zone")
	}
}

func TestLoad_ProxyAndOriginLists(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "access-secret-that-is-32-chars-x")
	t.Setenv("JWT_REFRESH_SECRET", "refresh-secret-that-is-32-chars-")
	t.Setenv("ALLOWED_ORIGINS", "https://mis.school.test, ,https://admin.school.test")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v", err)
	}
	if got := strings.Join(cfg.Server.AllowedOrigins, "|"); got != "https://mis.school.test|https://admin.school.test" {
		t.Errorf("AllowedOrigins = %q", got)
	}
	if got := strings.Join(cfg.Server.TrustedProxies, "|"); got != "10.0.0.0/8|192.0.2.1" {
		t.Errorf("TrustedProxies = %q", got)
	}
}

func TestServerConfig_SlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		sc := ServerConfig{LogLevel: in}
		if got := sc.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
