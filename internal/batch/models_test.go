package batch

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusSuccess, "SUCCESS"},
		{StatusFailure, "FAILURE"},
		{StatusFault, "FAULT"},
		{Status(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.status.String())
	}
}

func TestResult_Accounting(t *testing.T) {
	var r Result
	assert.Equal(t, 0.0, r.SuccessRate())

	r.record(ItemOutcome{Identifier: "1", Status: StatusSuccess})
	r.record(ItemOutcome{Identifier: "2", Status: StatusFailure})
	r.record(ItemOutcome{Identifier: "3", Status: StatusFault, Err: errors.New("x")})
	r.record(ItemOutcome{Identifier: "4", Status: StatusSuccess})

	assert.Equal(t, 2, r.Success)
	assert.Equal(t, 2, r.Failure)
	assert.Equal(t, 4, r.Processed())
	assert.Equal(t, 1, r.Faults())
	assert.Equal(t, 50.0, r.SuccessRate())

	failed := r.Failed()
	assert.Len(t, failed, 2)
	assert.Equal(t, Identifier("2"), failed[0].Identifier)
	assert.Equal(t, Identifier("3"), failed[1].Identifier)

	assert.True(t, strings.Contains(r.String(), "Processed: 4"))
}

func TestItemError(t *testing.T) {
	cause := errors.New("captcha rejected")
	err := &ItemError{Identifier: "123", Index: 2, Kind: FaultEmit, Cause: cause}

	assert.Equal(t, "[EMIT] item 2 (123): captcha rejected", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsFault(err))
	assert.False(t, IsFault(cause))
	assert.Equal(t, "UNKNOWN", FaultKind(9).String())
}
