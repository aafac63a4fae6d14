// Package session keeps the server-side half of a login: which account a
// session id belongs to and when it was last used. Idle expiry is decided by
// the caller on read; backends only evict entries after a coarse max age.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/google/uuid"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID           string      `json:"id"`
	AccountID    string      `json:"accountId"`
	Role         models.Role `json:"role"`
	CreatedAt    time.Time   `json:"createdAt"`
	LastActivity time.Time   `json:"lastActivity"`
}

func New(accountID string, role models.Role, now time.Time) *Session {
	return &Session{
		ID:           uuid.New().String(),
		AccountID:    accountID,
		Role:         role,
		CreatedAt:    now,
		LastActivity: now,
	}
}

// IdleExpired reports whether the session has been unused for longer than
// idle at now.
func (s *Session) IdleExpired(now time.Time, idle time.Duration) bool {
	return now.Sub(s.LastActivity) > idle
}

// Store is a keyed session store. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
