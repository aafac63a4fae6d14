package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/BradenHooton/schoolmis/internal/auth"
	pkghttp "github.com/BradenHooton/schoolmis/pkg/http"
)

// CSRFProtection guards state-changing requests that authenticate with the
// session cookie alone. Such requests must name an allowed Origin (or
// Referer). Bearer-token requests carry no ambient credential and pass.
func CSRFProtection(allowedOrigins []string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) ||
				auth.BearerToken(r) != "" ||
				auth.SessionIDFromRequest(r) == "" {
				next.ServeHTTP(w, r)
				return
			}

			origin := requestOrigin(r)
			if origin == "" || !slices.Contains(allowedOrigins, origin) {
				logger.WarnContext(r.Context(), "cross-site request rejected",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("origin", origin))
				pkghttp.WriteForbidden(w, "Cross-site request rejected")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// requestOrigin returns scheme://host of the Origin header, falling back to
// the Referer.
func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" && origin != "null" {
		return strings.TrimSuffix(origin, "/")
	}
	ref, err := url.Parse(r.Header.Get("Referer"))
	if err != nil || ref.Scheme == "" || ref.Host == "" {
		return ""
	}
	return ref.Scheme + "://" + ref.Host
}

func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
