package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		invalid   bool
		auth      bool
		retryable bool
	}{
		{name: "missing field", err: Missing("vrf"), invalid: true},
		{name: "wrapped invalid", err: fmt.Errorf("trace: %w", InvalidRequest("source_dg", "bad")), invalid: true},
		{name: "auth", err: AuthFailure("bad token"), auth: true},
		{name: "simulated", err: ErrSimulated, retryable: true},
		{name: "wrapped simulated", err: fmt.Errorf("generate: %w", ErrSimulated), retryable: true},
		{name: "plain", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.invalid, IsInvalid(tt.err))
			assert.Equal(t, tt.auth, IsAuth(tt.err))
			assert.Equal(t, tt.retryable, Retryable(tt.err))
		})
	}
}

func TestInvalidRequestMessage(t *testing.T) {
	assert.Equal(t, "invalid request: vrf: field required", Missing("vrf").Error())
	assert.Equal(t, "invalid request: nope", InvalidRequest("", "nope").Error())
}

func TestSerializationErrorUnwraps(t *testing.T) {
	inner := errors.New("unsupported value")
	err := &SerializationError{Field: "route", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "route")
}

func TestNotFound(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("route 7"))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsInvalid(err))
	assert.Equal(t, "route 7 not found", NotFound("route 7").Error())
}
