package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTimeoutPolicy_IsValid tests query timeout policies
func TestTimeoutPolicy_IsValid(t *testing.T) {
	assert.True(t, TimeoutPolicyPartial.IsValid())
	assert.True(t, TimeoutPolicyError.IsValid())
	assert.False(t, TimeoutPolicy("").IsValid())
	assert.False(t, TimeoutPolicy("retry").IsValid())
}

// TestPartialPolicy_IsValid tests ingestion policies
func TestPartialPolicy_IsValid(t *testing.T) {
	assert.True(t, PartialPolicyPartial.IsValid())
	assert.True(t, PartialPolicyAllOrNothing.IsValid())
	assert.False(t, PartialPolicy("some").IsValid())
	assert.Equal(t, "all_or_nothing", PartialPolicyAllOrNothing.String())
}

// TestRetrieveOptions_ZeroValue tests that zero options defer to defaults
func TestRetrieveOptions_ZeroValue(t *testing.T) {
	opts := RetrieveOptions{}

	assert.Zero(t, opts.K)
	assert.Nil(t, opts.ScoreFloor)
	assert.Nil(t, opts.MaxPerDocument)
	assert.Nil(t, opts.DedupeThreshold)
	assert.Zero(t, opts.Timeout)
}

func TestPtr(t *testing.T) {
	floor := Ptr(0.0)
	if assert.NotNil(t, floor) {
		assert.Zero(t, *floor)
	}
	assert.NotSame(t, Ptr(1), Ptr(1))
}
