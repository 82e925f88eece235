package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authoritySet(t *testing.T, addresses ...string) *ValidatorSet {
	t.Helper()
	set := NewValidatorSet()
	for _, address := range addresses {
		require.NoError(t, set.Add(Validator{Address: address, Stake: 1000, IsActive: true}))
	}
	return set
}

func TestSelectByAuthorityRoundRobin(t *testing.T) {
	set := authoritySet(t, "v0", "v1", "v2")

	expected := []string{"v0", "v1", "v2", "v0", "v1", "v2"}
	for round, want := range expected {
		got, err := set.SelectByAuthority(uint64(round), 3)
		require.NoError(t, err)
		assert.Equal(t, want, got, "round %d", round)
	}
}

func TestSelectByAuthoritySkipsUnhealthy(t *testing.T) {
	set := authoritySet(t, "v0", "v1", "v2")
	for i := 0; i < 3; i++ {
		set.RecordMiss("v1")
	}

	got, err := set.SelectByAuthority(1, 3)
	require.NoError(t, err)
	assert.Equal(t, "v2", got)

	// v1's slot stays in the rotation; other rounds are unaffected.
	got, err = set.SelectByAuthority(2, 3)
	require.NoError(t, err)
	assert.Equal(t, "v2", got)
}

func TestSelectByAuthorityProbeWindowBounded(t *testing.T) {
	set := authoritySet(t, "v0", "v1", "v2", "v3", "v4")
	for _, address := range []string{"v0", "v1", "v2", "v3"} {
		for i := 0; i < 3; i++ {
			set.RecordMiss(address)
		}
	}

	// v4 is healthy but lies beyond the scheduled slot's probe window.
	_, err := set.SelectByAuthority(0, 3)
	assert.ErrorContains(t, err, "no healthy authority")

	// From round 1 the window reaches v4.
	got, err := set.SelectByAuthority(1, 3)
	require.NoError(t, err)
	assert.Equal(t, "v4", got)
}

func TestSelectByAuthorityAllUnhealthy(t *testing.T) {
	set := authoritySet(t, "v0", "v1")
	for _, address := range []string{"v0", "v1"} {
		for i := 0; i < 3; i++ {
			set.RecordMiss(address)
		}
	}

	_, err := set.SelectByAuthority(0, 3)
	assert.Error(t, err)
}

func TestSelectByAuthorityEmptySet(t *testing.T) {
	set := NewValidatorSet()

	_, err := set.SelectByAuthority(0, 3)
	assert.ErrorContains(t, err, "no active validators")
	assert.Equal(t, "", set.ScheduledAuthority(0))
}

func TestScheduledAuthority(t *testing.T) {
	set := authoritySet(t, "v0", "v1", "v2")

	assert.Equal(t, "v0", set.ScheduledAuthority(0))
	assert.Equal(t, "v2", set.ScheduledAuthority(5))
}
