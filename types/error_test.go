package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	err := NewError(ErrPoolExhausted, "no handle available within timeout")
	assert.Equal(t, "[POOL_EXHAUSTED] no handle available within timeout", err.Error())

	cause := errors.New("dial tcp: connection refused")
	err = NewError(ErrPersistenceFailure, "save failed").WithCause(cause)
	assert.Contains(t, err.Error(), "PERSISTENCE_FAILURE")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestError_Retryable(t *testing.T) {
	err := NewError(ErrPoolExhausted, "exhausted").WithRetryable(true)
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(NewError(ErrTransportClosed, "closed")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestGetErrorCode(t *testing.T) {
	err := NewError(ErrUnknownHandoffTarget, "no such agent").WithSession("s-1")
	assert.Equal(t, ErrUnknownHandoffTarget, GetErrorCode(err))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))

	// Wrapped errors still expose their code.
	wrapped := fmt.Errorf("turn failed: %w", err)
	assert.Equal(t, ErrUnknownHandoffTarget, GetErrorCode(wrapped))
	assert.True(t, IsCode(wrapped, ErrUnknownHandoffTarget))
	assert.False(t, IsCode(wrapped, ErrPoolExhausted))
}
