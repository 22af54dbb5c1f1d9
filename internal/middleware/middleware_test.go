package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/loan-assistant/pkg/logger"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(GetUserID(r.Context())))
	})
}

func TestAuth(t *testing.T) {
	valid := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "agent-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	expired := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "agent-7",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	wrongKey := sign(t, jwt.SigningMethodHS256, []byte("other"), Claims{})

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "agent-7"},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, "agent-7"},
		{"missing header", "", http.StatusUnauthorized, "missing authorization header"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "invalid authorization header format"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "invalid token"},
		{"wrong key", "Bearer " + wrongKey, http.StatusUnauthorized, "invalid token"},
	}
	h := Auth(secret)(echoUser())
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
		})
	}
}

func TestRequireScope(t *testing.T) {
	withScope := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{Scopes: []string{ScopeSanction}})
	without := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{Scopes: []string{"loan:read"}})

	h := Auth(secret)(RequireScope(ScopeSanction)(echoUser()))

	for token, want := range map[string]int{withScope: http.StatusOK, without: http.StatusForbidden} {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code)
	}
}

func TestLogging_CorrelationID(t *testing.T) {
	var seen string
	r := chi.NewRouter()
	r.Use(Logging(logger.Nop()))
	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		seen = logger.CorrelationID(r.Context())
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(CorrelationHeader, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(CorrelationHeader))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, rec.Header().Get(CorrelationHeader))
	assert.Equal(t, seen, rec.Header().Get(CorrelationHeader))
}

func TestRateLimit(t *testing.T) {
	h := RateLimit(2, time.Minute)(echoUser())
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestCORS(t *testing.T) {
	h := CORS([]string{"https://app.example.com"})(echoUser())

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(echoUser()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestValidateUtterance(t *testing.T) {
	assert.NoError(t, ValidateUtterance("I need 5 lakh"))
	assert.Error(t, ValidateUtterance("   "))
	assert.Error(t, ValidateUtterance(strings.Repeat("a", MaxUtteranceLength+1)))
	assert.Error(t, ValidateUtterance("bad \xff byte"))
}

func TestValidateConversationID(t *testing.T) {
	for _, ok := range []string{"0190c6f2-8f3a-7c4e-9a51-2b7c1d9e0f11", "demo_1", "A"} {
		assert.NoError(t, ValidateConversationID(ok), ok)
	}
	for _, bad := range []string{"", "-lead", "has space", "a/b", strings.Repeat("x", 65)} {
		assert.Error(t, ValidateConversationID(bad), bad)
	}
}
