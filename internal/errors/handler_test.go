package errors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"verdiff/internal/shared/testutil"
)

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_HandleError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"nil error", nil, http.StatusOK, ""},
		{"deadline exceeded", context.DeadlineExceeded, http.StatusGatewayTimeout, TypeTimeout},
		{"canceled", fmt.Errorf("llm: %w", context.Canceled), http.StatusGatewayTimeout, TypeTimeout},
		{"api error", ErrInvalidRequest, http.StatusBadRequest, TypeValidation},
		{"rate limit", ErrRateLimitExceeded, http.StatusTooManyRequests, TypeRateLimit},
		{"schema error", NewSchemaError("table B", []string{"id"}), http.StatusUnprocessableEntity, TypeSchema},
		{"duplicate key", NewDuplicateKeyError("table A", "id: '1'"), http.StatusUnprocessableEntity, TypeSchema},
		{"validation", NewAppValidationError("need at least 2 versions"), http.StatusBadRequest, TypeValidation},
		{"parsing", NewParsingError("bad row", nil), http.StatusBadRequest, TypeParsing},
		{"not found", NewNotFoundError("sheet"), http.StatusNotFound, TypeNotFound},
		{"network", NewNetworkError("llm down", nil), http.StatusBadGateway, TypeUpstream},
		{"plain error", errors.New("boom"), http.StatusInternalServerError, TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, logs := testutil.NewTestLogger(t)
			h := NewErrorHandler(logger, false)

			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/api/v1/diff", nil)
			h.HandleError(w, r, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.err == nil {
				assert.Equal(t, 0, w.Body.Len())
				assert.Equal(t, 0, logs.Count())
				return
			}

			body := decodeProblem(t, w)
			assert.Equal(t, tt.wantType, body["type"])
			assert.Equal(t, "/api/v1/diff", body["instance"])
			assert.Contains(t, body, "trace_id")
			assert.NotContains(t, body, "stack")
			testutil.AssertLogContains(t, logs, slog.LevelError, "request failed")
		})
	}
}

func TestErrorHandler_SchemaExtensions(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/trace", nil)
	h.HandleError(w, r, fmt.Errorf("load: %w", NewSchemaError("version 3", []string{"sku", "region"})))

	body := decodeProblem(t, w)
	assert.Equal(t, "SCHEMA", body["error_type"])
	assert.Equal(t, "version 3", body[ContextSource])
	assert.Equal(t, []interface{}{"sku", "region"}, body[ContextMissingColumns])
	assert.Equal(t, "version 3 is missing required columns: sku, region", body["detail"])
}

func TestErrorHandler_IncludeStack(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	w := httptest.NewRecorder()
	h.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("boom"))

	assert.Contains(t, decodeProblem(t, w), "stack")
}

func TestErrorHandler_HandlePanic(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, true)

	w := httptest.NewRecorder()
	h.HandlePanic(w, httptest.NewRequest(http.MethodPost, "/api/v1/trace", nil), "index out of range")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeProblem(t, w)
	assert.Equal(t, "index out of range", body["panic"])
	testutil.AssertLogContains(t, logs, slog.LevelError, "panic recovered")
}

func TestErrorHandler_NotFoundAndMethodNotAllowed(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	w := httptest.NewRecorder()
	h.NotFound(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, TypeNotFound, decodeProblem(t, w)["type"])

	w = httptest.NewRecorder()
	h.MethodNotAllowed(w, httptest.NewRequest(http.MethodDelete, "/api/v1/diff", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Method DELETE is not allowed for this endpoint", decodeProblem(t, w)["detail"])
}

func TestErrorHandlerConcurrency(t *testing.T) {
	logger, logs := testutil.NewTestLogger(t)
	h := NewErrorHandler(logger, false)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			w := httptest.NewRecorder()
			h.HandleError(w, httptest.NewRequest(http.MethodGet, "/", nil), NewNotFoundError(fmt.Sprintf("item %d", i)))
			assert.Equal(t, http.StatusNotFound, w.Code)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, logs.Count())
}
