package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridtokenx_go/utils"
)

func TestSelectByStakeWeighting(t *testing.T) {
	set := NewValidatorSet()
	require.NoError(t, set.Add(Validator{Address: "small", Stake: 100, IsActive: true}))
	require.NoError(t, set.Add(Validator{Address: "medium", Stake: 300, IsActive: true}))
	require.NoError(t, set.Add(Validator{Address: "large", Stake: 600, IsActive: true}))

	rng := utils.NewSeededRand(42)
	counts := make(map[string]int)
	for i := 0; i < 1000; i++ {
		proposer, err := set.SelectByStake(rng)
		require.NoError(t, err)
		counts[proposer]++
	}

	assert.Greater(t, counts["large"], counts["medium"])
	assert.Greater(t, counts["medium"], counts["small"])
	assert.Greater(t, counts["large"], 400)
	assert.Less(t, counts["small"], 250)
}

func TestSelectByStakeDeterministicUnderSeed(t *testing.T) {
	build := func() *ValidatorSet {
		set := NewValidatorSet()
		require.NoError(t, set.Add(Validator{Address: "a", Stake: 10, IsActive: true}))
		require.NoError(t, set.Add(Validator{Address: "b", Stake: 90, IsActive: true}))
		return set
	}

	first := build()
	second := build()
	rngA := utils.NewSeededRand(7)
	rngB := utils.NewSeededRand(7)

	for i := 0; i < 50; i++ {
		pa, err := first.SelectByStake(rngA)
		require.NoError(t, err)
		pb, err := second.SelectByStake(rngB)
		require.NoError(t, err)
		assert.Equal(t, pa, pb)
	}
}

func TestSelectByStakeErrors(t *testing.T) {
	rng := utils.NewSeededRand(1)

	empty := NewValidatorSet()
	_, err := empty.SelectByStake(rng)
	assert.ErrorContains(t, err, "no active validators")

	unstaked := NewValidatorSet()
	require.NoError(t, unstaked.Add(Validator{Address: "v1", Stake: 0, IsActive: true}))
	_, err = unstaked.SelectByStake(rng)
	assert.ErrorContains(t, err, "no stake")
}

func TestSelectByStakeIgnoresInactive(t *testing.T) {
	set := NewValidatorSet()
	require.NoError(t, set.Add(Validator{Address: "active", Stake: 1, IsActive: true}))
	require.NoError(t, set.Add(Validator{Address: "benched", Stake: 1_000_000, IsActive: false}))

	rng := utils.NewSeededRand(3)
	for i := 0; i < 20; i++ {
		proposer, err := set.SelectByStake(rng)
		require.NoError(t, err)
		assert.Equal(t, "active", proposer)
	}
}
