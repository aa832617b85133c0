package chaterrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpstreamHTTPError_IsAndUnwrap(t *testing.T) {
	err := NewUpstreamHTTPError("m1", 503, "overloaded")
	assert.True(t, IsUpstreamHTTPError(err))
	assert.False(t, IsUpstreamHTTPError(ErrModelNotFound))

	wrapped := fmt.Errorf("worker failed: %w", err)
	assert.True(t, IsUpstreamHTTPError(wrapped), "expected wrapped error to still match via errors.As")
}

func TestUpstreamTransportError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewUpstreamTransportError("m1", cause)

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsUpstreamTransportError(err))
}

func TestSentinelErrors_AreDistinct(t *testing.T) {
	sentinels := []error{
		ErrRegistryUnavailable,
		ErrModelNotFound,
		ErrEndpointNotConfigured,
		ErrAuthRequired,
		ErrNoBody,
		ErrCancelled,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.False(t, errors.Is(a, b), "expected sentinel %d and %d to be distinct", i, j)
			}
		}
	}
}
