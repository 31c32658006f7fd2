package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
		severity Severity
		retry    bool
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{"io", ErrCodeFileNotFound, CategoryIO, SeverityError, false},
		{"network timeout", ErrCodeNetworkTimeout, CategoryNetwork, SeverityWarning, true},
		{"validation", ErrCodeProjectNotFound, CategoryValidation, SeverityError, false},
		{"internal", ErrCodeEmbeddingFailed, CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retry, err.Retryable)
		})
	}
}

func TestError_Format(t *testing.T) {
	err := New(ErrCodeProjectNotFound, "project missing", nil)
	assert.Equal(t, "[ERR_403_PROJECT_NOT_FOUND] project missing", err.Error())
}

func TestWrap_NilIsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestUnwrap_PreservesChain(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := Wrap(ErrCodeFileUnreadable, cause)
	require.NotNil(t, err)
	assert.True(t, stderrors.Is(err, cause))
}

func TestIs_MatchesByCode(t *testing.T) {
	a := New(ErrCodeChunkNotFound, "chunk gone", nil)
	b := New(ErrCodeChunkNotFound, "different message", nil)
	assert.True(t, stderrors.Is(a, b))

	c := New(ErrCodeProjectNotFound, "project gone", nil)
	assert.False(t, stderrors.Is(a, c))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(New(ErrCodeProjectNotFound, "x", nil)))
	assert.True(t, IsNotFound(New(ErrCodeChunkNotFound, "x", nil)))
	assert.True(t, IsNotFound(New(ErrCodeFileNotFound, "x", nil)))
	assert.False(t, IsNotFound(New(ErrCodeInternal, "x", nil)))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
}

func TestHasCode_WrappedChain(t *testing.T) {
	inner := New(ErrCodeProjectNotFound, "gone", nil)
	outer := fmt.Errorf("lookup: %w", inner)
	assert.True(t, HasCode(outer, ErrCodeProjectNotFound))
	assert.False(t, HasCode(outer, ErrCodeChunkNotFound))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrCodeInternal, "x", nil).
		WithDetail("project_id", "abc").
		WithDetail("stage", "embed")
	assert.Equal(t, "abc", err.Details["project_id"])
	assert.Equal(t, "embed", err.Details["stage"])
}

func TestGetCodeAndCategory(t *testing.T) {
	err := New(ErrCodeVectorWriteFailed, "x", nil)
	assert.Equal(t, ErrCodeVectorWriteFailed, GetCode(err))
	assert.Equal(t, CategoryInternal, GetCategory(err))

	assert.Empty(t, GetCode(fmt.Errorf("plain")))
	assert.Empty(t, GetCategory(nil))
}
