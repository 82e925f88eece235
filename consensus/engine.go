package consensus

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"gridtokenx_go/blockchain"
	"gridtokenx_go/config"
	"gridtokenx_go/events"
	"gridtokenx_go/metrics"
	"gridtokenx_go/security"
	"gridtokenx_go/utils"
)

// Engine drives the consensus rounds: every block interval it pulls pending
// transactions, selects a producer per the configured algorithm, builds and
// signs a block and submits it to the chain. Chain rejections and missed
// rounds are logged and absorbed; the loop only stops with its context.
type Engine struct {
	chain      *blockchain.Chain
	validators *ValidatorSet
	signer     security.Signer
	publisher  events.Publisher
	rng        *rand.Rand

	algorithm     Algorithm
	interval      time.Duration
	maxBlockTxs   int
	difficulty    uint64
	minStake      uint64
	missThreshold uint32

	mutex        sync.RWMutex
	round        uint64
	missedRounds uint64
	lastHeight   uint64
}

// NewEngine wires a consensus engine over the chain. signer may be nil for
// observer nodes; publisher may be nil and defaults to a no-op.
func NewEngine(chain *blockchain.Chain, signer security.Signer, publisher events.Publisher, cfg *config.ConsensusConfig) (*Engine, error) {
	if chain == nil {
		return nil, fmt.Errorf("chain cannot be nil")
	}
	if cfg == nil {
		return nil, fmt.Errorf("consensus config cannot be nil")
	}
	algorithm, err := ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	interval := cfg.BlockInterval()
	if interval <= 0 {
		return nil, fmt.Errorf("block interval must be positive")
	}
	maxBlockTxs := cfg.MaxBlockTxs
	if maxBlockTxs <= 0 {
		maxBlockTxs = 100
	}
	if publisher == nil {
		publisher = events.NopPublisher{}
	}

	return &Engine{
		chain:         chain,
		validators:    NewValidatorSet(),
		signer:        signer,
		publisher:     publisher,
		rng:           utils.NewSeededRand(time.Now().UnixNano()),
		algorithm:     algorithm,
		interval:      interval,
		maxBlockTxs:   maxBlockTxs,
		difficulty:    cfg.InitialDifficulty,
		minStake:      cfg.MinValidatorStake,
		missThreshold: cfg.MissThreshold,
	}, nil
}

// Validators exposes the producer registry.
func (e *Engine) Validators() *ValidatorSet {
	return e.validators
}

// Algorithm returns the configured producer selection strategy.
func (e *Engine) Algorithm() Algorithm {
	return e.algorithm
}

// RegisterValidator admits a block producer when it meets the minimum stake.
func (e *Engine) RegisterValidator(address string, stake uint64) error {
	if stake < e.minStake {
		return fmt.Errorf("stake %d below minimum %d", stake, e.minStake)
	}
	return e.validators.Add(Validator{
		Address:    address,
		Stake:      stake,
		Reputation: DefaultValidatorReputation,
		IsActive:   true,
	})
}

// Run executes consensus rounds until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	utils.LogInfo("Consensus engine started: algorithm=%s interval=%s", e.algorithm, e.interval)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			utils.LogInfo("Consensus engine stopped")
			return ctx.Err()
		case <-ticker.C:
			e.RunRound(ctx)
		}
	}
}

// RunRound executes a single consensus round: one block proposal attempt
// (two under hybrid). Failures are absorbed and counted.
func (e *Engine) RunRound(ctx context.Context) {
	start := time.Now()
	defer func() { metrics.RoundDuration.Observe(time.Since(start).Seconds()) }()

	round := e.advanceRound()
	metrics.ActiveValidators.Set(float64(e.validators.ActiveCount()))
	metrics.PendingPoolSize.Set(float64(e.chain.PendingCount()))

	pending := e.chain.PendingTransactions(e.maxBlockTxs)
	if len(pending) == 0 {
		metrics.RoundsRun.WithLabelValues("empty").Inc()
		return
	}

	// Mining may not outlive the round it belongs to.
	roundCtx, cancel := context.WithDeadline(ctx, start.Add(e.interval))
	defer cancel()

	switch e.algorithm {
	case AlgorithmStake:
		e.proposeByStake(round, pending)
	case AlgorithmAuthority:
		e.proposeByAuthority(round, pending)
	case AlgorithmWork:
		e.proposeByWork(roundCtx, round, pending)
	case AlgorithmHybrid:
		regular, energy := partitionByEnergy(pending)
		if len(regular) > 0 {
			e.proposeByStake(round, regular)
		}
		if len(energy) > 0 {
			e.proposeByWork(roundCtx, round, energy)
		}
	}
}

// partitionByEnergy splits pending transactions into the regular and energy
// trade streams.
func partitionByEnergy(txs []*blockchain.Transaction) (regular, energy []*blockchain.Transaction) {
	for _, tx := range txs {
		if tx.IsEnergy() {
			energy = append(energy, tx)
		} else {
			regular = append(regular, tx)
		}
	}
	return regular, energy
}

func (e *Engine) proposeByStake(round uint64, txs []*blockchain.Transaction) {
	proposer, err := e.stakeProposer()
	if err != nil {
		utils.LogWarn("Round %d: no stake proposer: %v", round, err)
		metrics.RoundsRun.WithLabelValues("failed").Inc()
		return
	}
	block, err := e.buildBlock(e.validatorInfoFor(proposer, "VALIDATOR"), txs)
	if err != nil {
		utils.LogError("Round %d: failed to build block: %v", round, err)
		metrics.RoundsRun.WithLabelValues("failed").Inc()
		return
	}
	e.submitBlock(round, block, proposer)
}

// stakeProposer draws under the engine lock so concurrent rounds never share
// the rand source.
func (e *Engine) stakeProposer() (string, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.validators.SelectByStake(e.rng)
}

func (e *Engine) proposeByAuthority(round uint64, txs []*blockchain.Transaction) {
	proposer, err := e.validators.SelectByAuthority(round, e.missThreshold)
	if err != nil {
		if scheduled := e.validators.ScheduledAuthority(round); scheduled != "" {
			e.validators.RecordMiss(scheduled)
		}
		e.recordMissedRound()
		utils.LogWarn("Round %d: %v", round, err)
		return
	}
	block, err := e.buildBlock(e.validatorInfoFor(proposer, "AUTHORITY"), txs)
	if err != nil {
		utils.LogError("Round %d: failed to build block: %v", round, err)
		metrics.RoundsRun.WithLabelValues("failed").Inc()
		return
	}
	e.submitBlock(round, block, proposer)
}

func (e *Engine) proposeByWork(ctx context.Context, round uint64, txs []*blockchain.Transaction) {
	block, err := e.buildBlock(PowMinerInfo(), txs)
	if err != nil {
		utils.LogError("Round %d: failed to build block: %v", round, err)
		metrics.RoundsRun.WithLabelValues("failed").Inc()
		return
	}

	if err := Mine(ctx, block, e.difficulty); err != nil {
		if errors.Is(err, ErrRoundDeadline) {
			e.validators.RecordMiss(PowMinerAddress)
			e.recordMissedRound()
			utils.LogWarn("Round %d: mining aborted at deadline (height %d)", round, block.Header.Height)
			return
		}
		utils.LogError("Round %d: mining failed: %v", round, err)
		metrics.RoundsRun.WithLabelValues("failed").Inc()
		return
	}

	e.submitBlock(round, block, PowMinerAddress)
}

// buildBlock assembles the next block over the chain head. The timestamp is
// nudged past the head's when both fall in the same clock tick.
func (e *Engine) buildBlock(validator blockchain.ValidatorInfo, txs []*blockchain.Transaction) (*blockchain.Block, error) {
	latest, err := e.chain.LatestBlock()
	if err != nil {
		return nil, fmt.Errorf("cannot read chain head: %w", err)
	}

	block, err := blockchain.NewBlock(latest.Header.Hash, txs, latest.Header.Height+1, validator)
	if err != nil {
		return nil, err
	}
	if !block.Header.Timestamp.After(latest.Header.Timestamp) {
		block.Header.Timestamp = latest.Header.Timestamp.Add(time.Millisecond)
		block.Header.Hash = block.CalculateHash()
	}
	return block, nil
}

// validatorInfoFor resolves the header identity for a proposer, defaulting
// stake 0 and reputation 50 for addresses outside the registry.
func (e *Engine) validatorInfoFor(address, authorityType string) blockchain.ValidatorInfo {
	info := blockchain.ValidatorInfo{
		Address:       address,
		Reputation:    DefaultValidatorReputation,
		AuthorityType: authorityType,
	}
	if v, exists := e.validators.Get(address); exists {
		info.Stake = v.Stake
		info.Reputation = v.Reputation
	}
	return info
}

// submitBlock signs, appends, prunes the pool, updates producer stats and
// publishes the committed block.
func (e *Engine) submitBlock(round uint64, block *blockchain.Block, proposer string) {
	if e.signer != nil {
		if err := block.Sign(e.signer); err != nil {
			utils.LogError("Round %d: failed to sign block: %v", round, err)
			metrics.RoundsRun.WithLabelValues("failed").Inc()
			return
		}
	}

	if err := e.chain.AddBlock(block); err != nil {
		utils.LogError("Round %d: block %d rejected: %v", round, block.Header.Height, err)
		metrics.RoundsRun.WithLabelValues("failed").Inc()
		return
	}

	ids := make([]string, len(block.Transactions))
	for i, tx := range block.Transactions {
		ids[i] = tx.ID
		metrics.TransactionsApplied.WithLabelValues(string(tx.Kind)).Inc()
	}
	e.chain.RemovePendingTransactions(ids)

	e.validators.RecordProposal(proposer, block.Header.Timestamp)
	e.setLastHeight(block.Header.Height)

	metrics.BlocksCommitted.Inc()
	metrics.ChainHeight.Set(float64(e.chain.Height()))
	metrics.EnergyTradedKWh.Add(block.EnergyStats.TotalEnergyTraded)
	metrics.RoundsRun.WithLabelValues("committed").Inc()

	if err := e.publisher.PublishBlock(block); err != nil {
		utils.LogWarn("Failed to publish block %d event: %v", block.Header.Height, err)
	}

	summary := block.Summary()
	utils.LogInfo("Block %d proposed by %s: txs=%d fees=%d energy=%.1f kWh",
		summary.Height, proposer, summary.TransactionCount, block.TotalFees(), summary.EnergyTraded)
}

func (e *Engine) advanceRound() uint64 {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	round := e.round
	e.round++
	return round
}

func (e *Engine) recordMissedRound() {
	e.mutex.Lock()
	e.missedRounds++
	e.mutex.Unlock()
	metrics.RoundsRun.WithLabelValues("missed").Inc()
}

func (e *Engine) setLastHeight(height uint64) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	if height > e.lastHeight {
		e.lastHeight = height
	}
}

// Metrics returns a snapshot of consensus progress.
func (e *Engine) Metrics() Metrics {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	return Metrics{
		Validators:       e.validators.ActiveCount(),
		TotalStake:       e.validators.TotalActiveStake(),
		Rounds:           e.round,
		MissedRounds:     e.missedRounds,
		LastHeight:       e.lastHeight,
		AverageBlockTime: e.chain.Stats().AverageBlockTime,
	}
}
