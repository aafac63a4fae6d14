package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type AuditKind string

const (
	AuditLogin  AuditKind = "login"
	AuditLogout AuditKind = "logout"
	AuditCreate AuditKind = "create"
	AuditUpdate AuditKind = "update"
	AuditDelete AuditKind = "delete"
	AuditView   AuditKind = "view"
)

func (k AuditKind) Valid() bool {
	switch k {
	case AuditLogin, AuditLogout, AuditCreate, AuditUpdate, AuditDelete, AuditView:
		return true
	}
	return false
}

// Resource types
const (
	ResourceAuth       = "auth"
	ResourcePassword   = "password"
	ResourceAttendance = "attendance"
	ResourceStudent    = "student"
	ResourceTeacher    = "teacher"
	ResourceClass      = "class"
)

// AuditEvent is an immutable record of a security-relevant or state-changing
// action. Actor fields are a snapshot taken when the event is written.
type AuditEvent struct {
	ID           string       `json:"id"`
	ActorID      string       `json:"actorId"`
	ActorEmail   string       `json:"actorEmail"`
	ActorRole    Role         `json:"actorRole"`
	Kind         AuditKind    `json:"action"`
	ResourceType string       `json:"resource"`
	ResourceID   string       `json:"resourceId,omitempty"`
	Changes      AuditChanges `json:"changes,omitempty"`
	IPAddress    string       `json:"ipAddress,omitempty"`
	UserAgent    string       `json:"userAgent,omitempty"`
	CreatedAt    time.Time    `json:"timestamp"`
}

// NewAuditEvent fills the actor snapshot and request metadata.
func NewAuditEvent(actor Actor, kind AuditKind, resourceType, resourceID string, meta RequestMeta) *AuditEvent {
	return &AuditEvent{
		ActorID:      actor.ID,
		ActorEmail:   actor.Email,
		ActorRole:    actor.Role,
		Kind:         kind,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
	}
}

func (e *AuditEvent) WithChanges(c AuditChanges) *AuditEvent {
	e.Changes = c
	return e
}

// AuditFilter narrows an audit event listing. Zero values match everything.
type AuditFilter struct {
	ActorID      string
	ResourceType string
	ResourceID   string
	Kind         AuditKind
	Limit        int
	Offset       int
}

// AuditChanges is the JSONB change payload of an audit event.
type AuditChanges map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (c *AuditChanges) Scan(value interface{}) error {
	if value == nil {
		*c = nil
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("audit changes: unsupported type %T", value)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return err
	}
	*c = AuditChanges(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (c AuditChanges) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	return json.Marshal(map[string]interface{}(c))
}
