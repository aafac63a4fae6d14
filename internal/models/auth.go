package models

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// TokenClaims is the payload of both access and refresh tokens. Subject holds
// the account id.
type TokenClaims struct {
	Type string `json:"type"`
	Role Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// RequestMeta identifies where a request came from for audit purposes.
type RequestMeta struct {
	IPAddress string
	UserAgent string
}

// Actor is the authenticated account performing an operation, snapshotted
// into audit events.
type Actor struct {
	ID    string
	Email string
	Role  Role
}

func (a *Account) Actor() Actor {
	return Actor{ID: a.ID, Email: a.Email, Role: a.Role}
}
