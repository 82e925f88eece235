package consensus

import (
	"fmt"
	"math/rand"
)

// SelectByStake picks an active validator with probability proportional to
// stake: a uniform draw over the total active stake walks the rotation in
// registration order. The rand source is injected so selection is
// reproducible under a fixed seed.
func (s *ValidatorSet) SelectByStake(rng *rand.Rand) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.active) == 0 {
		return "", fmt.Errorf("no active validators")
	}

	total := s.totalActiveStakeLocked()
	if total == 0 {
		return "", fmt.Errorf("active validators hold no stake")
	}

	target := uint64(rng.Float64() * float64(total))
	var cumulative uint64
	for _, address := range s.active {
		v, exists := s.validators[address]
		if !exists {
			continue
		}
		cumulative += v.Stake
		if cumulative > target {
			return address, nil
		}
	}

	// target < total, so the walk always lands inside the rotation.
	return s.active[0], nil
}
