package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/schoolmis/internal/database"
	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEventRepository appends and reads audit events. There is no update
// or delete path; the table also rejects both with a trigger.
type AuditEventRepository struct {
	pool *pgxpool.Pool
}

func NewAuditEventRepository(db *database.DB) *AuditEventRepository {
	return &AuditEventRepository{pool: db.Pool}
}

func scanAuditEventRow(row rowScanner) (*models.AuditEvent, error) {
	var e models.AuditEvent
	var actorID *string
	var role, kind string

	err := row.Scan(
		&e.ID, &actorID, &e.ActorEmail, &role, &kind,
		&e.ResourceType, &e.ResourceID, &e.Changes, &e.IPAddress, &e.UserAgent,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	if actorID != nil {
		e.ActorID = *actorID
	}
	e.ActorRole = models.Role(role)
	e.Kind = models.AuditKind(kind)

	return &e, nil
}

func scanAuditEventRows(rows pgx.Rows) ([]*models.AuditEvent, error) {
	defer rows.Close()

	events := make([]*models.AuditEvent, 0)
	for rows.Next() {
		e, err := scanAuditEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit event rows: %w", err)
	}

	return events, nil
}

func (r *AuditEventRepository) Create(ctx context.Context, e *models.AuditEvent) error {
	e.ID = uuid.New().String()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var actorID *string
	if e.ActorID != "" {
		actorID = &e.ActorID
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_events (id, actor_id, actor_email, actor_role, kind, resource_type, resource_id,
			changes, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, e.ID, actorID, e.ActorEmail, string(e.ActorRole), string(e.Kind), e.ResourceType, e.ResourceID,
		e.Changes, e.IPAddress, e.UserAgent, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create audit event: %w", database.MapPostgresError(err))
	}
	return nil
}

// List returns events matching f, newest first.
func (r *AuditEventRepository) List(ctx context.Context, f models.AuditFilter) ([]*models.AuditEvent, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 100
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, actor_id, actor_email, actor_role, kind, resource_type, resource_id,
			changes, ip_address, user_agent, created_at
		FROM audit_events
		WHERE ($1 = '' OR actor_id::text = $1)
		  AND ($2 = '' OR resource_type = $2)
		  AND ($3 = '' OR resource_id = $3)
		  AND ($4 = '' OR kind = $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6
	`, f.ActorID, f.ResourceType, f.ResourceID, string(f.Kind), f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	return scanAuditEventRows(rows)
}
