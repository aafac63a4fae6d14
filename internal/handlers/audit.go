package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/BradenHooton/schoolmis/internal/models"
	pkghttp "github.com/BradenHooton/schoolmis/pkg/http"
)

type AuditServiceInterface interface {
	List(ctx context.Context, f models.AuditFilter) ([]*models.AuditEvent, error)
}

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	audit AuditServiceInterface
}

func NewAuditHandler(audit AuditServiceInterface) *AuditHandler {
	return &AuditHandler{audit: audit}
}

// List handles GET /api/audit-events?actorId=&resource=&resourceId=&action=&limit=&offset=
// @Summary List audit events, newest first
// @Router /audit-events [get]
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := models.AuditFilter{
		ActorID:      q.Get("actorId"),
		ResourceType: q.Get("resource"),
		ResourceID:   q.Get("resourceId"),
		Kind:         models.AuditKind(q.Get("action")),
	}

	verr := &models.ValidationError{}
	if f.ActorID != "" && !models.IsID(f.ActorID) {
		verr.Add("actorId", "actorId must be a valid id")
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			verr.Add("limit", "limit must be a positive number")
		}
		f.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			verr.Add("offset", "offset must not be negative")
		}
		f.Offset = offset
	}
	if err := verr.Err(); err != nil {
		writeServiceError(w, err)
		return
	}

	events, err := h.audit.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if events == nil {
		events = []*models.AuditEvent{}
	}

	pkghttp.WriteOK(w, events)
}
