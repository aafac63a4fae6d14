package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/schoolmis/internal/auth"
	pkghttp "github.com/BradenHooton/schoolmis/pkg/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitByIP_Envelope(t *testing.T) {
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 2}, pkghttp.NewClientIPResolver(nil))(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = "198.51.100.7:4000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)

		if w.Code == http.StatusTooManyRequests {
			var resp pkghttp.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, "rate_limit_exceeded", resp.Error.Code)
		}
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// Another client has its own budget.
	req := httptest.NewRequest("POST", "/api/auth/login", nil)
	req.RemoteAddr = "198.51.100.8:4000"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRateLimitByIP_TrustedProxyKeysOnForwardedFor(t *testing.T) {
	ips := pkghttp.NewClientIPResolver([]string{"10.0.0.0/8"})
	handler := RateLimitByIP(RateLimitConfig{RequestsPerMinute: 1}, ips)(okHandler())

	for _, client := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest("POST", "/api/auth/login", nil)
		req.RemoteAddr = "10.1.1.1:443"
		req.Header.Set("X-Forwarded-For", client)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, client)
	}
}

func TestCSRFProtection(t *testing.T) {
	handler := CSRFProtection([]string{"https://mis.school.test"}, slog.Default())(okHandler())

	tests := []struct {
		name   string
		method string
		cookie bool
		bearer bool
		origin string
		ref    string
		want   int
	}{
		{"safe method", "GET", true, false, "", "", http.StatusOK},
		{"no session cookie", "POST", false, false, "", "", http.StatusOK},
		{"bearer token", "POST", true, true, "https://evil.test", "", http.StatusOK},
		{"allowed origin", "POST", true, false, "https://mis.school.test", "", http.StatusOK},
		{"allowed referer", "PUT", true, false, "", "https://mis.school.test/students/1", http.StatusOK},
		{"foreign origin", "DELETE", true, false, "https://evil.test", "", http.StatusForbidden},
		{"no origin", "POST", true, false, "", "", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/attendance/mark", nil)
			if tt.cookie {
				req.AddCookie(&http.Cookie{Name: auth.SessionCookieName, Value: "sess-1"})
			}
			if tt.bearer {
				req.Header.Set("Authorization", "Bearer abc")
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.ref != "" {
				req.Header.Set("Referer", tt.ref)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestCORS_OnlyConfiguredOrigins(t *testing.T) {
	handler := CORS([]string{"https://mis.school.test"}, "production")(okHandler())

	req := httptest.NewRequest("GET", "/api/classes", nil)
	req.Header.Set("Origin", "https://mis.school.test")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, "https://mis.school.test", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest("GET", "/api/classes", nil)
	req.Header.Set("Origin", "https://evil.test")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestSecureLogger_RedactsSensitiveQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := SecureLogger(logger, pkghttp.NewClientIPResolver(nil))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	req := httptest.NewRequest("GET", "/api/auth/reset-password?token=secret-value", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.NotContains(t, out, "secret-value")
	assert.Contains(t, out, `"path":"/api/auth/reset-password?[REDACTED]"`)
	assert.Contains(t, out, `"status":400`)
	assert.Contains(t, out, `"level":"WARN"`)
	assert.Contains(t, out, `"client_ip":"192.0.2.1"`)
}

func TestSecureLogger_KeepsOrdinaryQuery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := SecureLogger(logger, pkghttp.NewClientIPResolver(nil))(okHandler())

	req := httptest.NewRequest("GET", "/api/attendance/report/monthly?classId=7c2e9a41-3b5d-4e68-8f1a-6d4c2b9e0a11&section=A", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, `"path":"/api/attendance/report/monthly?classId=7c2e9a41-3b5d-4e68-8f1a-6d4c2b9e0a11`)
	assert.NotContains(t, out, "REDACTED")
}
