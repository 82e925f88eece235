package consensus

import "fmt"

// authorityProbeWindow bounds how many successors are tried when the
// scheduled authority is unhealthy.
const authorityProbeWindow = 3

// ScheduledAuthority returns the address whose turn the given round is,
// before any health probing. Empty when the rotation is empty.
func (s *ValidatorSet) ScheduledAuthority(round uint64) string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if len(s.active) == 0 {
		return ""
	}
	return s.active[int(round%uint64(len(s.active)))]
}

// SelectByAuthority returns the healthy authority for the round. The
// scheduled authority is tried first, then up to three successors; when the
// whole window is unhealthy the round has no producer.
func (s *ValidatorSet) SelectByAuthority(round uint64, missThreshold uint32) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	count := len(s.active)
	if count == 0 {
		return "", fmt.Errorf("no active validators")
	}

	scheduled := int(round % uint64(count))
	probes := authorityProbeWindow + 1
	if probes > count {
		probes = count
	}
	for i := 0; i < probes; i++ {
		candidate := s.active[(scheduled+i)%count]
		if s.healthyLocked(candidate, missThreshold) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no healthy authority within probe window for round %d", round)
}
