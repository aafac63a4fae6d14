package auth

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/BradenHooton/schoolmis/internal/models"
	pkghttp "github.com/BradenHooton/schoolmis/pkg/http"
)

type contextKey string

const accountContextKey contextKey = "account"

// Authenticator resolves the caller of a request from a bearer token and/or
// a server-side session id. Either may be empty.
type Authenticator interface {
	Authenticate(ctx context.Context, bearerToken, sessionID string) (*models.Account, error)
}

// Authenticate gates a route on a valid caller and stores the resolved
// account in the request context. An idle session also has its cookie
// cleared.
func Authenticate(a Authenticator, cookies CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, err := a.Authenticate(r.Context(), BearerToken(r), SessionIDFromRequest(r))
			if err != nil {
				if errors.Is(err, models.ErrSessionExpired) {
					ClearSessionCookie(w, cookies)
				}
				writeAuthError(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithAccount(r.Context(), account)))
		})
	}
}

// RequireRole allows the request through only when the authenticated
// account holds one of roles. It must run after Authenticate.
func RequireRole(roles ...models.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account := AccountFromContext(r.Context())
			if account == nil {
				pkghttp.WriteUnauthorized(w, "Not authenticated. Please log in")
				return
			}
			if !slices.Contains(roles, account.Role) {
				pkghttp.WriteForbidden(w, "You do not have permission to perform this action")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BearerToken returns the token of an "Authorization: Bearer" header, or "".
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func WithAccount(ctx context.Context, account *models.Account) context.Context {
	return context.WithValue(ctx, accountContextKey, account)
}

// AccountFromContext returns the authenticated account, or nil.
func AccountFromContext(ctx context.Context) *models.Account {
	account, _ := ctx.Value(accountContextKey).(*models.Account)
	return account
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrSessionExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "session_expired", "Session expired due to inactivity. Please log in again")
	case errors.Is(err, models.ErrTokenExpired):
		pkghttp.WriteError(w, http.StatusUnauthorized, "token_expired", "Token expired")
	case errors.Is(err, models.ErrInvalidToken):
		pkghttp.WriteError(w, http.StatusUnauthorized, "invalid_token", "Invalid token")
	case errors.Is(err, models.ErrUnauthenticated):
		pkghttp.WriteUnauthorized(w, "Not authenticated. Please log in")
	case errors.Is(err, models.ErrAuthenticationFailed):
		pkghttp.WriteError(w, http.StatusUnauthorized, "authentication_failed", "Authentication failed")
	default:
		pkghttp.WriteInternalError(w, "An unexpected error occurred")
	}
}
