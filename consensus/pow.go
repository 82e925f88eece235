package consensus

import (
	"context"
	"strings"

	"gridtokenx_go/blockchain"
	"gridtokenx_go/metrics"
	"gridtokenx_go/utils"
)

const (
	// MinimumDifficulty floors the proof-of-work target.
	MinimumDifficulty = 1000
	// PowMinerAddress is the synthetic producer identity of mined blocks.
	PowMinerAddress = "pow_miner"
	// PowMinerAuthorityType marks mined block headers.
	PowMinerAuthorityType = "MINER"
)

// PowMinerInfo returns the fixed validator identity stamped into mined
// blocks.
func PowMinerInfo() blockchain.ValidatorInfo {
	return blockchain.ValidatorInfo{
		Address:       PowMinerAddress,
		Stake:         0,
		Reputation:    50.0,
		AuthorityType: PowMinerAuthorityType,
	}
}

// MeetsDifficulty reports whether the hash satisfies the leading-zero target.
// Difficulty scales at one leading zero per 1000 points.
func MeetsDifficulty(hash string, difficulty uint64) bool {
	if len(hash) < 8 {
		return false
	}
	zeros := int(difficulty / 1000)
	return strings.HasPrefix(hash, strings.Repeat("0", zeros))
}

// Mine searches nonces until the block hash satisfies the difficulty,
// aborting with ErrRoundDeadline when ctx expires first. The block's
// difficulty and hash are rewritten in place.
func Mine(ctx context.Context, block *blockchain.Block, difficulty uint64) error {
	if difficulty < MinimumDifficulty {
		difficulty = MinimumDifficulty
	}
	block.Header.Difficulty = difficulty
	block.Header.Hash = block.CalculateHash()

	var attempts uint64
	defer func() { metrics.MiningAttempts.Add(float64(attempts)) }()

	for !MeetsDifficulty(block.Header.Hash, difficulty) {
		select {
		case <-ctx.Done():
			return ErrRoundDeadline
		default:
		}
		block.Header.Nonce++
		block.Header.Hash = block.CalculateHash()
		attempts++
	}

	utils.LogDebug("Mined block %d: nonce=%d attempts=%d", block.Header.Height, block.Header.Nonce, attempts)
	return nil
}
