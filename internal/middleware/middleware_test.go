package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pwannenmacher/review-flow/internal/auth"
	"github.com/pwannenmacher/review-flow/internal/config"
	"github.com/pwannenmacher/review-flow/internal/identity"
)

func newTokenService() *auth.Service {
	return auth.NewService(&config.JWTConfig{Issuer: "test", Expiration: time.Hour})
}

func echoCaller() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := identity.CallerFrom(r.Context())
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(caller)
	})
}

func TestAuthenticate(t *testing.T) {
	tokens := newTokenService()
	token, err := tokens.GenerateToken(identity.Caller{EmployeeID: "lead-1", Role: identity.RoleTeamLead})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	h := NewAuthMiddleware(tokens).Authenticate(echoCaller())

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusOK},
		{"lowercase scheme", "bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/assignments/a", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("Expected status %d, got %d (%s)", tt.status, rec.Code, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				var body map[string]string
				if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || body["error"] == "" {
					t.Errorf("Expected JSON error body, got %q", rec.Body.String())
				}
				return
			}
			var caller identity.Caller
			if err := json.Unmarshal(rec.Body.Bytes(), &caller); err != nil {
				t.Fatalf("Failed to decode caller: %v", err)
			}
			if caller.EmployeeID != "lead-1" || caller.Role != identity.RoleTeamLead {
				t.Errorf("Unexpected caller %+v", caller)
			}
		})
	}
}

func TestRateLimiterPerCaller(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{Enabled: true, Requests: 1, Duration: time.Hour, Burst: 2})
	defer rl.Stop()

	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(employeeID string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(identity.WithCaller(req.Context(), identity.Caller{EmployeeID: employeeID, Role: identity.RoleEmployee}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := do("emp-1"); code != http.StatusNoContent {
			t.Fatalf("Request %d should pass, got %d", i, code)
		}
	}
	if code := do("emp-1"); code != http.StatusTooManyRequests {
		t.Errorf("Third request should be limited, got %d", code)
	}
	if code := do("emp-2"); code != http.StatusNoContent {
		t.Errorf("Other caller should have its own bucket, got %d", code)
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(&config.RateLimitConfig{Enabled: false, Requests: 1, Duration: time.Hour, Burst: 1})
	h := rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("Disabled limiter should pass request %d, got %d", i, rec.Code)
		}
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Errorf("Expected host of RemoteAddr, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", "192.0.2.7, 10.0.0.1")
	if got := clientIP(req); got != "192.0.2.7" {
		t.Errorf("Expected first forwarded address, got %q", got)
	}
}

func TestLoggingMiddlewareLevels(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	defer slog.SetDefault(prev)

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			_, _ = w.Write([]byte("ok"))
		}
	}))

	cases := map[string]string{
		"/ok":      `"level":"INFO"`,
		"/missing": `"level":"WARN"`,
		"/broken":  `"level":"ERROR"`,
	}
	for path, want := range cases {
		buf.Reset()
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"answer":"secret"}`)))
		out := buf.String()
		if !strings.Contains(out, want) {
			t.Errorf("%s: expected %s in %s", path, want, out)
		}
		if strings.Contains(out, "secret") {
			t.Errorf("%s: request body must not be logged at INFO: %s", path, out)
		}
	}
}

func TestSecurityHeadersAndChain(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), SecurityHeaders, mw("a"), mw("b"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := strings.Join(order, ","); got != "a,b" {
		t.Errorf("Expected middlewares to run in listed order, got %s", got)
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("Expected nosniff header")
	}
}
