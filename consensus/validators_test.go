package consensus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorSetAddAndGet(t *testing.T) {
	set := NewValidatorSet()

	require.NoError(t, set.Add(Validator{Address: "v1", Stake: 1000, IsActive: true}))
	require.NoError(t, set.Add(Validator{Address: "v2", Stake: 2000, IsActive: false}))

	v1, exists := set.Get("v1")
	require.True(t, exists)
	assert.Equal(t, uint64(1000), v1.Stake)
	assert.Equal(t, DefaultValidatorReputation, v1.Reputation)

	assert.Equal(t, []string{"v1"}, set.Active())
	assert.Equal(t, 1, set.ActiveCount())
	assert.Equal(t, uint64(1000), set.TotalActiveStake())
	assert.Len(t, set.All(), 2)

	assert.Error(t, set.Add(Validator{Address: ""}))
}

func TestValidatorSetReAddReplacesEntry(t *testing.T) {
	set := NewValidatorSet()
	require.NoError(t, set.Add(Validator{Address: "v1", Stake: 1000, IsActive: true}))
	require.NoError(t, set.Add(Validator{Address: "v2", Stake: 500, IsActive: true}))

	// Re-registration must not duplicate the rotation slot.
	require.NoError(t, set.Add(Validator{Address: "v1", Stake: 3000, IsActive: true}))

	assert.Equal(t, []string{"v2", "v1"}, set.Active())
	v1, _ := set.Get("v1")
	assert.Equal(t, uint64(3000), v1.Stake)
}

func TestValidatorSetRemove(t *testing.T) {
	set := NewValidatorSet()
	require.NoError(t, set.Add(Validator{Address: "v1", Stake: 1000, IsActive: true}))
	require.NoError(t, set.Add(Validator{Address: "v2", Stake: 2000, IsActive: true}))

	set.Remove("v1")

	_, exists := set.Get("v1")
	assert.False(t, exists)
	assert.Equal(t, []string{"v2"}, set.Active())
	assert.Equal(t, uint64(2000), set.TotalActiveStake())
}

func TestRecordProposalRestoresReputation(t *testing.T) {
	set := NewValidatorSet()
	require.NoError(t, set.Add(Validator{Address: "v1", Stake: 1000, Reputation: 50.0, IsActive: true}))
	set.RecordMiss("v1")
	set.RecordMiss("v1")

	at := time.Now().UTC()
	set.RecordProposal("v1", at)

	v1, _ := set.Get("v1")
	assert.Equal(t, uint64(1), v1.TotalBlocksProposed)
	assert.Equal(t, uint32(0), v1.ConsecutiveMisses)
	require.NotNil(t, v1.LastBlockTime)
	assert.True(t, v1.LastBlockTime.Equal(at))
	assert.InDelta(t, 50.0*0.99+1.0, v1.Reputation, 0.0001)
}

func TestRecordProposalCapsReputation(t *testing.T) {
	set := NewValidatorSet()
	require.NoError(t, set.Add(Validator{Address: "v1", Stake: 1, Reputation: 100.0, IsActive: true}))

	set.RecordProposal("v1", time.Now().UTC())

	v1, _ := set.Get("v1")
	assert.Equal(t, 100.0, v1.Reputation)
}

func TestHealthyTracksMissStreak(t *testing.T) {
	set := NewValidatorSet()
	require.NoError(t, set.Add(Validator{Address: "v1", Stake: 1000, IsActive: true}))

	assert.True(t, set.Healthy("v1", 3))

	set.RecordMiss("v1")
	set.RecordMiss("v1")
	assert.True(t, set.Healthy("v1", 3))

	set.RecordMiss("v1")
	assert.False(t, set.Healthy("v1", 3))

	// A successful proposal clears the streak.
	set.RecordProposal("v1", time.Now().UTC())
	assert.True(t, set.Healthy("v1", 3))

	assert.False(t, set.Healthy("unknown", 3))
}

func TestRecordIgnoresUnknownAddresses(t *testing.T) {
	set := NewValidatorSet()
	set.RecordProposal("ghost", time.Now().UTC())
	set.RecordMiss("ghost")

	_, exists := set.Get("ghost")
	assert.False(t, exists)
}
