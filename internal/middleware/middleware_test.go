package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdiff/internal/config"
	apierrors "verdiff/internal/errors"
	"verdiff/internal/infrastructure"
	"verdiff/internal/shared/testutil"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func newErrorHandler(t *testing.T) *apierrors.ErrorHandler {
	t.Helper()
	logger, _ := testutil.NewTestLogger(t)
	return apierrors.NewErrorHandler(logger, false)
}

func TestRateLimiter(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	rl := NewRateLimiter(0.5, 1, logger, newErrorHandler(t))
	handler := rl.Handler(okHandler)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/diff", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/diff", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), apierrors.TypeRateLimit)
	assert.True(t, logs.ContainsMessage("rate limit exceeded"))
}

func TestRateLimiterFromConfig(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)

	disabled := NewRateLimiterFromConfig(config.RateLimitConfig{Enabled: false, RPS: 1, Burst: 1}, logger, newErrorHandler(t))
	assert.Nil(t, disabled)

	handler := disabled.Handler(okHandler)
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	enabled := NewRateLimiterFromConfig(config.RateLimitConfig{Enabled: true, RPS: 20, Burst: 40}, logger, newErrorHandler(t))
	require.NotNil(t, enabled)
	assert.Equal(t, 1, enabled.retryAfterSeconds())
}

func TestSecurityHeaders(t *testing.T) {
	w := httptest.NewRecorder()
	SecurityHeaders(okHandler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'none'")
	assert.Empty(t, w.Header().Get("Strict-Transport-Security"))
}

func TestValidateRequest(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	m := NewValidationMiddleware(logger, newErrorHandler(t), 32)

	var seen string
	handler := m.ValidateRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		seen = string(body)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		method     string
		body       string
		wantStatus int
		wantBody   string
	}{
		{"valid json reaches handler", http.MethodPost, `{"key_columns":["id"]}`, http.StatusOK, ""},
		{"get skips checks", http.MethodGet, "not json", http.StatusOK, ""},
		{"invalid json", http.MethodPost, `{"key_columns":`, http.StatusBadRequest, "INVALID_JSON"},
		{"too large", http.MethodPost, `{"csv":"` + strings.Repeat("x", 64) + `"}`, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
		{"empty body", http.MethodPost, "", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, "/api/v1/diff", strings.NewReader(tt.body)))
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantBody != "" {
				assert.Contains(t, w.Body.String(), tt.wantBody)
			}
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.body, seen, "body is restored for the handler")
			}
		})
	}

	assert.Equal(t, DefaultMaxBodySize, NewValidationMiddleware(logger, newErrorHandler(t), 0).MaxBodySize())
}

func TestValidateStruct(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	m := NewValidationMiddleware(logger, newErrorHandler(t), 0)

	type request struct {
		KeyColumns  []string `json:"key_columns" validate:"required,min=1,dive,column"`
		ValueColumn string   `json:"value_column" validate:"required,column"`
		TopN        int      `json:"top_n" validate:"gte=0"`
	}

	assert.NoError(t, m.ValidateStruct(request{KeyColumns: []string{"id"}, ValueColumn: "amount"}))

	err := m.ValidateStruct(request{KeyColumns: []string{"id", "bad\tname"}, TopN: -1})
	require.Error(t, err)

	var apiErr *apierrors.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)

	details, ok := apiErr.Details.(apierrors.ValidationErrors)
	require.True(t, ok)
	messages := make(map[string]string)
	for _, e := range details.Errors {
		messages[e.Field] = e.Message
	}
	assert.Equal(t, "key_columns[1] must be a non-blank column name", messages["key_columns[1]"])
	assert.Equal(t, "value_column is required", messages["value_column"])
	assert.Equal(t, "top_n must be greater than or equal to 0", messages["top_n"])
}

func TestContentTypeValidator(t *testing.T) {
	handler := ContentTypeValidator(newErrorHandler(t), "application/json")(okHandler)

	tests := []struct {
		name        string
		method      string
		contentType string
		wantStatus  int
	}{
		{"json", http.MethodPost, "application/json; charset=utf-8", http.StatusOK},
		{"missing", http.MethodPost, "", http.StatusBadRequest},
		{"wrong", http.MethodPost, "text/plain", http.StatusUnsupportedMediaType},
		{"get", http.MethodGet, "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, "/api/v1/trace", strings.NewReader("{}"))
			if tt.contentType != "" {
				r.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)
			assert.Equal(t, tt.wantStatus, w.Code)
		})
	}
}

func TestInstrumentationRecordsRoutePattern(t *testing.T) {
	metrics, err := infrastructure.NewMetrics()
	require.NoError(t, err)
	logger, _ := testutil.NewTestLogger(t)

	r := chi.NewRouter()
	r.Use(NewInstrumentation(nil, metrics, logger).Handler)
	r.Get("/reports/{name}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	for _, path := range []string{"/reports/a", "/reports/b", "/healthz"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	w := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := w.Body.String()
	assert.Contains(t, body, `verdiff_http_requests_total{route="/reports/{name}",status="418"} 2`)
	assert.Contains(t, body, `verdiff_http_requests_total{route="/healthz",status="200"} 1`)
}
