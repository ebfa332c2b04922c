package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("disk on fire")

	// When: wrapping with ProjectError
	pe := New(ErrCodeCommitFailed, "commit fingerprint table", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, pe)
	assert.Equal(t, originalErr, errors.Unwrap(pe))
	assert.True(t, errors.Is(pe, originalErr))
}

func TestProjectError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		err      *ProjectError
		expected string
	}{
		{
			name:     "no cause",
			err:      New(ErrCodeConfigInvalid, "capacity must be at least 1", nil),
			expected: "[ERR_102_CONFIG_INVALID] capacity must be at least 1",
		},
		{
			name:     "wrapped keeps single message",
			err:      Wrap(ErrCodeIndexFailed, errors.New("sink down")),
			expected: "[ERR_505_INDEX_FAILED] sink down",
		},
		{
			name:     "cause appended",
			err:      New(ErrCodeLockTimeout, "acquire commit lock", errors.New("timeout")),
			expected: "[ERR_207_LOCK_TIMEOUT] acquire commit lock: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestProjectError_Is_MatchesByCode(t *testing.T) {
	err1 := New(ErrCodeIndexBusy, "run A", nil)
	err2 := New(ErrCodeIndexBusy, "run B", nil)
	other := New(ErrCodeConfigInvalid, "bad", nil)

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, other))
}

func TestHasCode_FindsCodeThroughFmtWrapping(t *testing.T) {
	// Given: a ProjectError wrapped by fmt.Errorf
	inner := New(ErrCodeLockTimeout, "lock busy", nil)
	outer := fmt.Errorf("commit: %w", inner)

	// Then: the code is found in the chain
	assert.True(t, HasCode(outer, ErrCodeLockTimeout))
	assert.False(t, HasCode(outer, ErrCodeDiskFull))
	assert.Equal(t, ErrCodeLockTimeout, GetCode(outer))
	assert.True(t, IsRetryable(outer))
}

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeDiskFull, CategoryIO, SeverityFatal, false},
		{ErrCodeCorruptIndex, CategoryIO, SeverityWarning, false},
		{ErrCodeLockTimeout, CategoryIO, SeverityWarning, true},
		{ErrCodeInvalidQuery, CategoryValidation, SeverityError, false},
		{ErrCodeIndexBusy, CategoryInternal, SeverityWarning, true},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "x", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetail_AddsContext(t *testing.T) {
	err := New(ErrCodeFileUnreadable, "cannot decode", nil).
		WithDetail("path", "a/b.go").
		WithSuggestion("check file encoding")

	assert.Equal(t, "a/b.go", err.Details["path"])
	assert.Equal(t, "check file encoding", err.Suggestion)
}

func TestFormatForCLI_IncludesHintAndCode(t *testing.T) {
	err := New(ErrCodeLockTimeout, "index is being written by another process", nil).
		WithSuggestion("retry in a few seconds")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: index is being written by another process")
	assert.Contains(t, out, "Hint: retry in a few seconds")
	assert.Contains(t, out, "Code: ERR_207_LOCK_TIMEOUT")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatForCLI_PlainErrorBecomesInternal(t *testing.T) {
	out := FormatForCLI(errors.New("boom"))
	assert.Contains(t, out, "Code: ERR_501_INTERNAL")
}

func TestLogAttrs_StructuredFields(t *testing.T) {
	attrs := LogAttrs(New(ErrCodeCommitFailed, "rename failed", nil).WithDetail("path", "x"))
	assert.Len(t, attrs, 6)
	assert.Len(t, LogAttrs(errors.New("plain")), 1)
	assert.Nil(t, LogAttrs(nil))
}
