package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pwannenmacher/review-flow/internal/identity"
)

// maxLoggedBody caps request and response bodies in debug logs
const maxLoggedBody = 4096

// responseWriter wraps http.ResponseWriter to capture status code and response body
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
	body       *bytes.Buffer
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	if rw.body != nil && rw.body.Len() < maxLoggedBody {
		rw.body.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

// LoggingMiddleware logs every request. Completed requests are logged at
// INFO, 4xx at WARN and 5xx at ERROR. At DEBUG the bodies are included,
// which may contain questionnaire answers, so DEBUG is not meant for production.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		debug := slog.Default().Enabled(r.Context(), slog.LevelDebug)

		var requestBody []byte
		if debug && r.Body != nil {
			requestBody, _ = io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewReader(requestBody))
		}

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		if debug {
			wrapped.body = &bytes.Buffer{}
		}

		next.ServeHTTP(wrapped, r)

		attrs := []any{
			"remote_ip", clientIP(r),
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if caller, ok := identity.CallerFrom(r.Context()); ok {
			attrs = append(attrs, "employee_id", caller.EmployeeID, "role", caller.Role)
		}
		if debug {
			attrs = append(attrs, "user_agent", r.UserAgent())
			if len(requestBody) > 0 {
				attrs = append(attrs, "request_body", truncate(requestBody))
			}
			if wrapped.body.Len() > 0 {
				attrs = append(attrs, "response_body", truncate(wrapped.body.Bytes()))
			}
		}

		level, msg := slog.LevelInfo, "Request completed"
		switch {
		case wrapped.statusCode >= 500:
			level, msg = slog.LevelError, "Request failed with error"
		case wrapped.statusCode >= 400:
			level, msg = slog.LevelWarn, "Request failed"
		}
		slog.Log(r.Context(), level, msg, attrs...)
	})
}

func truncate(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "..."
	}
	return string(b)
}
