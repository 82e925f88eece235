// Package consensus selects block producers and drives the round loop that
// turns pending transactions into committed blocks. Four algorithms are
// supported: stake-weighted selection, authority round-robin, bounded
// proof-of-work, and a hybrid that routes energy trades through work and
// everything else through stake.
package consensus

import (
	"errors"
	"fmt"
)

// Algorithm identifies a producer selection strategy.
type Algorithm string

const (
	// AlgorithmStake picks proposers with probability proportional to stake.
	AlgorithmStake Algorithm = "stake"
	// AlgorithmAuthority rotates through registered authorities round-robin.
	AlgorithmAuthority Algorithm = "authority"
	// AlgorithmWork mines blocks with a leading-zero hash target.
	AlgorithmWork Algorithm = "work"
	// AlgorithmHybrid routes energy trades through work and the rest through
	// stake; a single round may commit two blocks.
	AlgorithmHybrid Algorithm = "hybrid"
)

// ParseAlgorithm maps a configuration string onto an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case AlgorithmStake, AlgorithmAuthority, AlgorithmWork, AlgorithmHybrid:
		return Algorithm(name), nil
	default:
		return "", fmt.Errorf("unsupported consensus algorithm: %s", name)
	}
}

// ErrRoundDeadline is returned when a proof-of-work search exhausts its round
// budget before finding a valid nonce. The round is treated as missed and the
// engine moves on.
var ErrRoundDeadline = errors.New("round deadline exceeded")

// Metrics is a point-in-time snapshot of consensus progress.
type Metrics struct {
	Validators       int     `json:"validators"`
	TotalStake       uint64  `json:"totalStake"`
	Rounds           uint64  `json:"rounds"`
	MissedRounds     uint64  `json:"missedRounds"`
	LastHeight       uint64  `json:"lastHeight"`
	AverageBlockTime float64 `json:"averageBlockTime"`
}
