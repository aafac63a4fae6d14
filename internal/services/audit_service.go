package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
	pkglogger "github.com/BradenHooton/schoolmis/pkg/logger"
)

// AuditService writes every audit event twice: a structured log line and a
// row in the append-only audit table.
type AuditService struct {
	repo        AuditEventRepository
	logger      *slog.Logger
	auditLogger *pkglogger.AuditLogger
	now         func() time.Time
}

func NewAuditService(repo AuditEventRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		repo:        repo,
		logger:      logger,
		auditLogger: pkglogger.NewAuditLogger(logger),
		now:         time.Now,
	}
}

// Record logs and persists e. A persistence failure is logged and swallowed
// so the audited operation still succeeds.
func (s *AuditService) Record(ctx context.Context, e *models.AuditEvent) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}

	s.auditLogger.LogEvent(ctx, pkglogger.AuditEntry{
		Kind:         string(e.Kind),
		ActorID:      e.ActorID,
		ActorEmail:   e.ActorEmail,
		ActorRole:    string(e.ActorRole),
		ResourceType: e.ResourceType,
		ResourceID:   e.ResourceID,
		IPAddress:    e.IPAddress,
		UserAgent:    e.UserAgent,
	})

	if err := s.repo.Create(ctx, e); err != nil {
		s.logger.ErrorContext(ctx, "failed to persist audit event",
			slog.String("kind", string(e.Kind)),
			slog.String("resource", e.ResourceType),
			slog.Any("error", err),
		)
	}
}

// List returns audit events matching f, newest first.
func (s *AuditService) List(ctx context.Context, f models.AuditFilter) ([]*models.AuditEvent, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, models.NewValidationError("action", "unknown audit action")
	}

	events, err := s.repo.List(ctx, f)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list audit events", slog.Any("error", err))
		return nil, fmt.Errorf("%w: list audit events", models.ErrInternalServer)
	}
	return events, nil
}
