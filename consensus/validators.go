package consensus

import (
	"fmt"
	"sync"
	"time"

	"gridtokenx_go/utils"
)

// DefaultValidatorReputation is assigned to validators registered without an
// explicit reputation.
const DefaultValidatorReputation = 50.0

// Validator is one registered block producer.
type Validator struct {
	Address             string     `json:"address"`
	Stake               uint64     `json:"stake"`
	Reputation          float64    `json:"reputation"`
	LastBlockTime       *time.Time `json:"lastBlockTime,omitempty"`
	ConsecutiveMisses   uint32     `json:"consecutiveMisses"`
	TotalBlocksProposed uint64     `json:"totalBlocksProposed"`
	IsActive            bool       `json:"isActive"`
}

// ValidatorSet is the registry of block producers. The active list keeps
// registration order, which drives the authority rotation.
type ValidatorSet struct {
	mutex      sync.RWMutex
	validators map[string]*Validator
	active     []string
}

// NewValidatorSet returns an empty registry.
func NewValidatorSet() *ValidatorSet {
	return &ValidatorSet{validators: make(map[string]*Validator)}
}

// Add registers a validator, replacing any previous entry for the same
// address. The active list holds each address at most once.
func (s *ValidatorSet) Add(v Validator) error {
	if v.Address == "" {
		return fmt.Errorf("validator address cannot be empty")
	}
	if v.Reputation == 0 {
		v.Reputation = DefaultValidatorReputation
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	_, existed := s.validators[v.Address]
	s.validators[v.Address] = &v
	if existed {
		s.active = removeAddress(s.active, v.Address)
	}
	if v.IsActive {
		s.active = append(s.active, v.Address)
	}

	utils.LogInfo("Validator registered: %s (stake=%d active=%t)", v.Address, v.Stake, v.IsActive)
	return nil
}

// Remove drops a validator from the registry and the active rotation.
func (s *ValidatorSet) Remove(address string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	delete(s.validators, address)
	s.active = removeAddress(s.active, address)
	utils.LogInfo("Validator removed: %s", address)
}

func removeAddress(addresses []string, address string) []string {
	kept := addresses[:0]
	for _, a := range addresses {
		if a != address {
			kept = append(kept, a)
		}
	}
	return kept
}

// Get returns a copy of the validator at the given address.
func (s *ValidatorSet) Get(address string) (Validator, bool) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	v, exists := s.validators[address]
	if !exists {
		return Validator{}, false
	}
	return *v, true
}

// Active returns the addresses in the rotation, in registration order.
func (s *ValidatorSet) Active() []string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	active := make([]string, len(s.active))
	copy(active, s.active)
	return active
}

// ActiveCount returns the number of validators in the rotation.
func (s *ValidatorSet) ActiveCount() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.active)
}

// All returns copies of every registered validator, active rotation first.
func (s *ValidatorSet) All() []Validator {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	all := make([]Validator, 0, len(s.validators))
	for _, address := range s.active {
		if v, exists := s.validators[address]; exists {
			all = append(all, *v)
		}
	}
	for _, v := range s.validators {
		if !v.IsActive {
			all = append(all, *v)
		}
	}
	return all
}

// TotalActiveStake sums the stake of every active validator.
func (s *ValidatorSet) TotalActiveStake() uint64 {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.totalActiveStakeLocked()
}

func (s *ValidatorSet) totalActiveStakeLocked() uint64 {
	var total uint64
	for _, address := range s.active {
		if v, exists := s.validators[address]; exists {
			total += v.Stake
		}
	}
	return total
}

// RecordProposal credits a successful block proposal: the miss streak resets
// and reputation recovers toward 100.
func (s *ValidatorSet) RecordProposal(address string, at time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	v, exists := s.validators[address]
	if !exists {
		return
	}
	v.TotalBlocksProposed++
	v.LastBlockTime = &at
	v.ConsecutiveMisses = 0
	v.Reputation = v.Reputation*0.99 + 1.0
	if v.Reputation > 100.0 {
		v.Reputation = 100.0
	}
}

// RecordMiss charges a missed round against the validator.
func (s *ValidatorSet) RecordMiss(address string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	v, exists := s.validators[address]
	if !exists {
		return
	}
	v.ConsecutiveMisses++
	utils.LogWarn("Validator %s missed a round (%d consecutive)", address, v.ConsecutiveMisses)
}

// Healthy reports whether the validator is active and below the consecutive
// miss threshold.
func (s *ValidatorSet) Healthy(address string, missThreshold uint32) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.healthyLocked(address, missThreshold)
}

func (s *ValidatorSet) healthyLocked(address string, missThreshold uint32) bool {
	v, exists := s.validators[address]
	if !exists {
		return false
	}
	return v.IsActive && v.ConsecutiveMisses < missThreshold
}
