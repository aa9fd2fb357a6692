package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		want string
	}{
		{
			name: "without cause",
			err:  NewAppError(ErrTypeValidation, "bad input", nil),
			want: "[VALIDATION] bad input",
		},
		{
			name: "with cause",
			err:  NewAppError(ErrTypeNetwork, "request failed", fmt.Errorf("connection refused")),
			want: "[NETWORK] request failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := NewStorageError("write failed", cause)

	assert.Same(t, cause, errors.Unwrap(err))
	assert.True(t, errors.Is(err, cause))
}

func TestAppError_WithContext_NilContext(t *testing.T) {
	err := &AppError{Type: ErrTypeConfig, Message: "x"}
	err.WithContext("k", "v").WithContext("n", 2)

	assert.Equal(t, map[string]interface{}{"k": "v", "n": 2}, err.Context)
}

func TestNewSchemaError(t *testing.T) {
	err := NewSchemaError("file 'v1.xlsx' sheet 'Data'", []string{"region", "sku"})

	assert.Equal(t, ErrTypeSchema, err.Type)
	assert.Equal(t, "file 'v1.xlsx' sheet 'Data' is missing required columns: region, sku", err.Message)
	assert.Equal(t, "file 'v1.xlsx' sheet 'Data'", err.Context[ContextSource])
	assert.Equal(t, []string{"region", "sku"}, err.Context[ContextMissingColumns])
	assert.True(t, IsSchemaError(err))
}

func TestNewSchemaError_CopiesMissing(t *testing.T) {
	missing := []string{"id"}
	err := NewSchemaError("table A", missing)
	missing[0] = "changed"

	assert.Equal(t, []string{"id"}, err.Context[ContextMissingColumns])
}

func TestNewDuplicateKeyError(t *testing.T) {
	err := NewDuplicateKeyError("latest version", "id: '7'")

	assert.Equal(t, ErrTypeSchema, err.Type)
	assert.Contains(t, err.Message, "duplicate key [id: '7']")
	assert.Equal(t, "id: '7'", err.Context[ContextDuplicateKey])
}

func TestConstructors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      *AppError
		wantType ErrorType
		wantMsg  string
	}{
		{"network", NewNetworkError("llm unreachable", cause), ErrTypeNetwork, "llm unreachable"},
		{"parsing", NewParsingError("bad csv", cause), ErrTypeParsing, "bad csv"},
		{"storage", NewStorageError("save failed", cause), ErrTypeStorage, "save failed"},
		{"validation", NewAppValidationError("need two sources"), ErrTypeValidation, "need two sources"},
		{"not found", NewNotFoundError("sheet 'Q3'"), ErrTypeNotFound, "sheet 'Q3' not found"},
		{"config", NewConfigError("unknown mode", nil), ErrTypeConfig, "unknown mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantMsg, tt.err.Message)
			assert.NotNil(t, tt.err.Context)
		})
	}
}

func TestTypeOf(t *testing.T) {
	wrapped := fmt.Errorf("load version 2: %w", NewSchemaError("v2.csv", []string{"id"}))

	assert.Equal(t, ErrTypeSchema, TypeOf(wrapped))
	assert.True(t, IsSchemaError(wrapped))
	assert.Equal(t, ErrorType(""), TypeOf(errors.New("plain")))
	assert.False(t, IsSchemaError(nil))

	var appErr *AppError
	require.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "v2.csv", appErr.Context[ContextSource])
}
