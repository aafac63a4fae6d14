package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/BradenHooton/schoolmis/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenManager signs access and refresh tokens with separate secrets, so a
// token of one kind never verifies as the other.
type TokenManager struct {
	accessSecret       []byte
	refreshSecret      []byte
	accessTokenExpiry  time.Duration
	refreshTokenExpiry time.Duration
	now                func() time.Time
}

func NewTokenManager(accessSecret, refreshSecret string, accessExpiry, refreshExpiry time.Duration) *TokenManager {
	return &TokenManager{
		accessSecret:       []byte(accessSecret),
		refreshSecret:      []byte(refreshSecret),
		accessTokenExpiry:  accessExpiry,
		refreshTokenExpiry: refreshExpiry,
		now:                time.Now,
	}
}

func (tm *TokenManager) AccessTokenExpiry() time.Duration {
	return tm.accessTokenExpiry
}

func (tm *TokenManager) GenerateAccessToken(accountID string, role models.Role) (string, error) {
	token, err := tm.sign(models.TokenTypeAccess, accountID, role, tm.accessTokenExpiry, tm.accessSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return token, nil
}

func (tm *TokenManager) GenerateRefreshToken(accountID string) (string, error) {
	token, err := tm.sign(models.TokenTypeRefresh, accountID, "", tm.refreshTokenExpiry, tm.refreshSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return token, nil
}

func (tm *TokenManager) sign(tokenType, accountID string, role models.Role, ttl time.Duration, secret []byte) (string, error) {
	now := tm.now()
	claims := &models.TokenClaims{
		Type: tokenType,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Subject:   accountID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateAccessToken verifies an access token. Failures are classified as
// models.ErrTokenExpired, models.ErrInvalidToken or
// models.ErrAuthenticationFailed.
func (tm *TokenManager) ValidateAccessToken(tokenString string) (*models.TokenClaims, error) {
	claims, err := tm.parse(tokenString, tm.accessSecret)
	if err != nil {
		return nil, classifyTokenError(err)
	}
	if claims.Type != models.TokenTypeAccess {
		return nil, fmt.Errorf("%w: expected access token", models.ErrInvalidToken)
	}
	return claims, nil
}

// ValidateRefreshToken accepts only a token signed with the refresh secret
// and typed refresh. Every failure is models.ErrInvalidToken.
func (tm *TokenManager) ValidateRefreshToken(tokenString string) (*models.TokenClaims, error) {
	claims, err := tm.parse(tokenString, tm.refreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	}
	if claims.Type != models.TokenTypeRefresh {
		return nil, fmt.Errorf("%w: expected refresh token", models.ErrInvalidToken)
	}
	return claims, nil
}

func (tm *TokenManager) parse(tokenString string, secret []byte) (*models.TokenClaims, error) {
	claims := &models.TokenClaims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

func classifyTokenError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", models.ErrTokenExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidClaims),
		errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %v", models.ErrInvalidToken, err)
	default:
		return fmt.Errorf("%w: %v", models.ErrAuthenticationFailed, err)
	}
}
