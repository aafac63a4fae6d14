package logger

import (
	"context"
	"log/slog"
	"time"
)

// AuditEntry is the log-line form of an audited action.
type AuditEntry struct {
	Kind         string
	ActorID      string
	ActorEmail   string
	ActorRole    string
	ResourceType string
	ResourceID   string
	IPAddress    string
	UserAgent    string
}

// AuditLogger writes audit lines next to the persisted audit trail so they
// survive even when the database write does not.
type AuditLogger struct {
	logger *slog.Logger
}

func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{logger: logger}
}

// LogEvent logs a completed action.
func (al *AuditLogger) LogEvent(ctx context.Context, e AuditEntry) {
	attrs := []slog.Attr{
		slog.String("audit_type", e.ResourceType),
		slog.String("event_type", e.Kind),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	}

	if e.ActorID != "" {
		attrs = append(attrs, slog.String("actor_id", e.ActorID))
	}
	if e.ActorEmail != "" {
		attrs = append(attrs, slog.String("actor_email", SanitizedEmail(e.ActorEmail)))
	}
	if e.ActorRole != "" {
		attrs = append(attrs, slog.String("actor_role", e.ActorRole))
	}
	if e.ResourceID != "" {
		attrs = append(attrs, slog.String("resource_id", e.ResourceID))
	}
	if e.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", e.IPAddress))
	}
	if e.UserAgent != "" {
		attrs = append(attrs, slog.String("user_agent", e.UserAgent))
	}

	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", attrs...)
}

// LogAuthFailure logs a rejected login. Failures are not persisted.
func (al *AuditLogger) LogAuthFailure(ctx context.Context, email, ipAddress, reason string) {
	al.logger.LogAttrs(ctx, slog.LevelWarn, "audit",
		slog.String("audit_type", "auth"),
		slog.String("event_type", "login_failed"),
		slog.String("email", SanitizedEmail(email)),
		slog.String("ip_address", ipAddress),
		slog.String("failure_reason", reason),
		slog.String("timestamp", time.Now().UTC().Format(time.RFC3339)),
	)
}
