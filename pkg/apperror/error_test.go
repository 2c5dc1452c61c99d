package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	err := New("write_failed", "Bulk write did not complete")
	assert.Equal(t, "write_failed: Bulk write did not complete", err.Error())

	wrapped := err.WithInternal(errors.New("connection reset"))
	assert.Equal(t, "write_failed: Bulk write did not complete (connection reset)", wrapped.Error())
}

func TestUnwrap(t *testing.T) {
	inner := errors.New("deadlock detected")
	err := ErrDatabase.WithInternal(inner)
	assert.ErrorIs(t, err, inner)
}

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel *Error
		match    bool
	}{
		{"wrapped copy matches sentinel", ErrWriteFailed.WithInternal(errors.New("boom")), ErrWriteFailed, true},
		{"message override still matches", ErrInvalidInput.WithMessage("unknown course"), ErrInvalidInput, true},
		{"different code does not match", ErrMappingSource.WithInternal(errors.New("boom")), ErrWriteFailed, false},
		{"fmt-wrapped matches through chain", fmt.Errorf("mapper: %w", ErrBenchAction.WithInternal(errors.New("x"))), ErrBenchAction, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.match, errors.Is(tt.err, tt.sentinel))
		})
	}
}

func TestWithDetails(t *testing.T) {
	err := ErrWriteFailed.WithDetails(map[string]any{"rows": 42})
	assert.Equal(t, 42, err.Details["rows"])
	// Original sentinel is untouched.
	assert.Nil(t, ErrWriteFailed.Details)
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("course", "abc-123")
	assert.Equal(t, "not_found", err.Code)
	assert.Contains(t, err.Message, "course 'abc-123' not found")
	assert.ErrorIs(t, err, ErrNotFound)
}
