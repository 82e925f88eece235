package blockchain

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gridtokenx_go/contracts"
	"gridtokenx_go/policy"
	"gridtokenx_go/state"
	"gridtokenx_go/utils"
)

// ChainConfig carries the tunables of a Chain instance.
type ChainConfig struct {
	// MaxCacheBlocks bounds the in-memory block cache.
	MaxCacheBlocks int
	// Rules are the energy market constraints applied to every block.
	Rules policy.Rules
	// Pricing tunes the indicative price curve served to the market.
	Pricing policy.PricingConfig
	// Compliance holds optional operator-defined admission rules for
	// energy trades. Nil means no extra rules.
	Compliance *policy.ComplianceEngine
}

// DefaultChainConfig returns the production defaults.
func DefaultChainConfig() ChainConfig {
	return ChainConfig{
		MaxCacheBlocks: DefaultBlockCacheSize,
		Rules:          policy.DefaultRules(),
		Pricing:        policy.DefaultPricingConfig(),
	}
}

// Chain is the ledger: an append-only sequence of blocks plus the account
// state, output set, market book and governance records derived from them.
// All mutation goes through AddGenesisBlock and AddBlock.
type Chain struct {
	mutex sync.RWMutex

	storage    Storage
	pool       TxPool
	accounts   *state.Manager
	registry   *contracts.Registry
	rules      policy.Rules
	pricing    policy.PricingConfig
	compliance *policy.ComplianceEngine

	cache          []*Block
	maxCacheBlocks int

	stats            BlockchainStats
	totalEnergyValue uint64

	utxoSet   map[string]*UTXO
	orderBook *EnergyOrderBook
	proposals map[string]*GovernanceProposal
}

// NewChain builds a chain over the given storage, restoring persisted
// accounts and statistics when present.
func NewChain(storage Storage, pool TxPool, accounts *state.Manager, cfg ChainConfig) (*Chain, error) {
	if storage == nil {
		return nil, fmt.Errorf("storage cannot be nil")
	}
	if pool == nil {
		return nil, fmt.Errorf("transaction pool cannot be nil")
	}
	if accounts == nil {
		accounts = state.NewManager()
	}
	if cfg.MaxCacheBlocks <= 0 {
		cfg.MaxCacheBlocks = DefaultBlockCacheSize
	}
	if cfg.Pricing == (policy.PricingConfig{}) {
		cfg.Pricing = policy.DefaultPricingConfig()
	}

	stats, err := storage.LoadStats()
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		stats = NewBlockchainStats()
		stats.Height = 0
	default:
		return nil, fmt.Errorf("failed to load chain stats: %w", err)
	}

	persisted, err := storage.LoadAccounts()
	switch {
	case err == nil:
		accounts.Load(persisted)
	case errors.Is(err, ErrNotFound):
	default:
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	return &Chain{
		storage:        storage,
		pool:           pool,
		accounts:       accounts,
		registry:       contracts.NewRegistry(),
		rules:          cfg.Rules,
		pricing:        cfg.Pricing,
		compliance:     cfg.Compliance,
		maxCacheBlocks: cfg.MaxCacheBlocks,
		stats:          stats,
		utxoSet:        make(map[string]*UTXO),
		orderBook:      NewEnergyOrderBook(),
		proposals:      make(map[string]*GovernanceProposal),
	}, nil
}

// AddGenesisBlock installs the height-zero block and applies its initial
// issuance and authority registrations.
func (c *Chain) AddGenesisBlock(genesis *Block) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.stats.Height != 0 {
		return fmt.Errorf("genesis block already exists")
	}
	if genesis.Header.Height != 0 {
		return fmt.Errorf("genesis block must have height 0")
	}
	if genesis.Header.PreviousHash != "" {
		return fmt.Errorf("genesis block cannot have previous hash")
	}

	c.applyGenesisTransactions(genesis.Transactions)

	if err := c.storage.StoreBlock(genesis); err != nil {
		return fmt.Errorf("failed to store genesis block: %w", err)
	}
	c.cacheBlock(genesis)

	c.stats.Height = 1
	c.stats.TotalTransactions = uint64(len(genesis.Transactions))
	c.stats.LastBlockTime = genesis.Header.Timestamp
	c.refreshAccountCounts()

	if err := c.persistState(); err != nil {
		return err
	}

	utils.LogInfo("Genesis block added successfully")
	return nil
}

// AddBlock validates a block against the chain head, applies its
// transactions to the account state and appends it.
func (c *Chain) AddBlock(block *Block) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	latest, err := c.latestBlockLocked()
	if err != nil {
		return fmt.Errorf("cannot extend chain: %w", err)
	}

	if err := block.ValidateWithRules(latest, c.rules); err != nil {
		return fmt.Errorf("block validation failed: %w", err)
	}

	c.applyBlockTransactions(block)

	if err := c.storage.StoreBlock(block); err != nil {
		return fmt.Errorf("failed to store block %d: %w", block.Header.Height, err)
	}
	c.cacheBlock(block)

	c.updateStats(block)

	if err := c.persistState(); err != nil {
		return err
	}

	utils.LogInfo("Block %d added with %d transactions", block.Header.Height, len(block.Transactions))
	return nil
}

// cacheBlock appends to the bounded block cache, evicting the oldest entry
// when full. Callers hold the write lock.
func (c *Chain) cacheBlock(block *Block) {
	c.cache = append(c.cache, block)
	if len(c.cache) > c.maxCacheBlocks {
		c.cache = c.cache[1:]
	}
}

// updateStats folds one appended block into the chain statistics. Callers
// hold the write lock.
func (c *Chain) updateStats(block *Block) {
	if !c.stats.LastBlockTime.IsZero() {
		delta := block.Header.Timestamp.Sub(c.stats.LastBlockTime).Seconds()
		if c.stats.AverageBlockTime == 0 {
			c.stats.AverageBlockTime = delta
		} else {
			c.stats.AverageBlockTime = c.stats.AverageBlockTime*0.9 + delta*0.1
		}
	}

	c.stats.Height = block.Header.Height + 1
	c.stats.TotalTransactions += uint64(len(block.Transactions))
	c.stats.TotalEnergyTraded += block.EnergyStats.TotalEnergyTraded
	c.stats.LastBlockTime = block.Header.Timestamp
	c.refreshAccountCounts()
}

func (c *Chain) refreshAccountCounts() {
	c.stats.ActiveProducers = uint64(c.accounts.CountByType(state.AccountProducer))
	c.stats.ActiveConsumers = uint64(c.accounts.CountByType(state.AccountConsumer))
}

// persistState writes the current account set and statistics through to
// storage. Callers hold the write lock.
func (c *Chain) persistState() error {
	if err := c.storage.StoreAccounts(c.accounts.Snapshot()); err != nil {
		return fmt.Errorf("failed to persist accounts: %w", err)
	}
	if err := c.storage.StoreStats(c.stats); err != nil {
		return fmt.Errorf("failed to persist chain stats: %w", err)
	}
	return nil
}

// LatestBlock returns the chain head.
func (c *Chain) LatestBlock() (*Block, error) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.latestBlockLocked()
}

func (c *Chain) latestBlockLocked() (*Block, error) {
	if len(c.cache) > 0 {
		return c.cache[len(c.cache)-1], nil
	}
	if c.stats.Height > 0 {
		return c.storage.LoadBlockByHeight(c.stats.Height - 1)
	}
	return nil, fmt.Errorf("no blocks in blockchain")
}

// BlockByHeight returns the block at the given height, serving from cache
// when possible.
func (c *Chain) BlockByHeight(height uint64) (*Block, error) {
	c.mutex.RLock()
	for _, block := range c.cache {
		if block.Header.Height == height {
			c.mutex.RUnlock()
			return block, nil
		}
	}
	c.mutex.RUnlock()

	return c.storage.LoadBlockByHeight(height)
}

// BlockByHash returns the block with the given hash, serving from cache
// when possible.
func (c *Chain) BlockByHash(hash string) (*Block, error) {
	c.mutex.RLock()
	for _, block := range c.cache {
		if block.Header.Hash == hash {
			c.mutex.RUnlock()
			return block, nil
		}
	}
	c.mutex.RUnlock()

	return c.storage.LoadBlockByHash(hash)
}

// Height returns the number of blocks in the chain.
func (c *Chain) Height() uint64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stats.Height
}

// TotalTransactions returns the number of transactions across all blocks.
func (c *Chain) TotalTransactions() uint64 {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stats.TotalTransactions
}

// AddPendingTransaction admits a transaction to the pool after stateless
// validation, a spendable-balance check for token transfers, and the
// configured market rules for energy trades.
func (c *Chain) AddPendingTransaction(tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	switch {
	case tx.Kind == TxTransfer && tx.Transfer != nil:
		account, exists := c.accounts.Get(tx.From)
		if !exists {
			return fmt.Errorf("sender account not found")
		}
		if account.TokenBalance < tx.Transfer.Amount+tx.Fee {
			return fmt.Errorf("insufficient balance")
		}
	case tx.Kind == TxEnergyTrade && tx.EnergyTrade != nil:
		trade := tx.EnergyTrade
		if err := c.rules.CheckTradeEnergy(trade.EnergyAmountKWh); err != nil {
			return err
		}
		if err := c.rules.CheckTradePrice(trade.PricePerKWh); err != nil {
			return err
		}
		if trade.GridLocation != "" && !policy.ValidateGridLocation(trade.GridLocation) {
			return fmt.Errorf("invalid grid location %q", trade.GridLocation)
		}
		if c.compliance != nil {
			if err := c.compliance.Check(tradeFacts(tx)); err != nil {
				return err
			}
		}
	}

	return c.pool.Add(tx)
}

// tradeFacts flattens an energy trade into the fact map compliance rules
// are evaluated against. Keys mirror the trade's JSON field names.
func tradeFacts(tx *Transaction) map[string]interface{} {
	trade := tx.EnergyTrade
	return map[string]interface{}{
		"from":            tx.From,
		"to":              tx.To,
		"energyAmountKwh": trade.EnergyAmountKWh,
		"pricePerKwh":     float64(trade.PricePerKWh),
		"totalValue":      float64(trade.TotalValue),
		"source":          string(trade.Source),
		"orderType":       string(trade.OrderType),
		"gridLocation":    trade.GridLocation,
		"carbonCredits":   trade.CarbonCredits,
	}
}

// PendingTransactions returns up to limit transactions in arrival order.
func (c *Chain) PendingTransactions(limit int) []*Transaction {
	return c.pool.Pending(limit)
}

// RemovePendingTransactions drops the given ids from the pool, typically
// after block inclusion.
func (c *Chain) RemovePendingTransactions(ids []string) {
	c.pool.Remove(ids)
}

// PendingCount returns the number of transactions waiting in the pool.
func (c *Chain) PendingCount() int {
	return c.pool.Size()
}

// Account returns a copy of the account at the given address.
func (c *Chain) Account(address string) (*state.Account, bool) {
	return c.accounts.Get(address)
}

// Balance returns the token balance of an address, zero when the account
// does not exist.
func (c *Chain) Balance(address string) uint64 {
	return c.accounts.Balance(address)
}

// Accounts exposes the account manager for consensus stake lookups.
func (c *Chain) Accounts() *state.Manager {
	return c.accounts
}

// ContractRegistry exposes the deployed-contract registry.
func (c *Chain) ContractRegistry() *contracts.Registry {
	return c.registry
}

// Stats returns a copy of the chain statistics.
func (c *Chain) Stats() BlockchainStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return c.stats
}

// EnergyStats returns the market-level trading view.
func (c *Chain) EnergyStats() EnergyTradingStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := EnergyTradingStats{
		TotalEnergyTraded: c.stats.TotalEnergyTraded,
		ActiveBuyOrders:   uint64(len(c.orderBook.BuyOrders)),
		ActiveSellOrders:  uint64(len(c.orderBook.SellOrders)),
		CompletedTrades:   uint64(len(c.orderBook.MatchedTrades)),
	}
	if c.stats.TotalEnergyTraded > 0 {
		stats.AveragePrice = float64(c.totalEnergyValue) / c.stats.TotalEnergyTraded
	}
	return stats
}

// PriceSignal computes the current indicative price from the open order
// book. Sell volume counts as supply, buy volume as demand.
func (c *Chain) PriceSignal() PriceSignal {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	var supply, demand float64
	for _, order := range c.orderBook.SellOrders {
		supply += order.EnergyAmountKWh
	}
	for _, order := range c.orderBook.BuyOrders {
		demand += order.EnergyAmountKWh
	}

	now := time.Now().UTC()
	signal := PriceSignal{
		IndicativePrice: c.pricing.IndicativePrice(supply, demand),
		TotalSupplyKWh:  supply,
		TotalDemandKWh:  demand,
		PeakHours:       policy.InPeakHours(now),
		CalculatedAt:    now,
	}
	if demand > 0 {
		signal.SupplyDemandRatio = supply / demand
	}
	return signal
}

// MatchedTrades returns the settled trade history.
func (c *Chain) MatchedTrades() []MatchedTrade {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	trades := make([]MatchedTrade, len(c.orderBook.MatchedTrades))
	copy(trades, c.orderBook.MatchedTrades)
	return trades
}

// Proposal returns a copy of the governance proposal with the given id.
func (c *Chain) Proposal(id string) (GovernanceProposal, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	proposal, exists := c.proposals[id]
	if !exists {
		return GovernanceProposal{}, false
	}
	clone := *proposal
	clone.Votes = make(map[string]ProposalVote, len(proposal.Votes))
	for voter, vote := range proposal.Votes {
		clone.Votes[voter] = vote
	}
	return clone, true
}

// Proposals returns copies of all governance proposals ordered by voting
// start, oldest first.
func (c *Chain) Proposals() []GovernanceProposal {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	proposals := make([]GovernanceProposal, 0, len(c.proposals))
	for _, proposal := range c.proposals {
		clone := *proposal
		clone.Votes = make(map[string]ProposalVote, len(proposal.Votes))
		for voter, vote := range proposal.Votes {
			clone.Votes[voter] = vote
		}
		proposals = append(proposals, clone)
	}
	sort.Slice(proposals, func(i, j int) bool {
		if proposals[i].VotingStart.Equal(proposals[j].VotingStart) {
			return proposals[i].ID < proposals[j].ID
		}
		return proposals[i].VotingStart.Before(proposals[j].VotingStart)
	})
	return proposals
}

// Output returns the unspent output created by the given transaction.
func (c *Chain) Output(txID string, index uint32) (UTXO, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	utxo, exists := c.utxoSet[UTXOKey(txID, index)]
	if !exists {
		return UTXO{}, false
	}
	return *utxo, true
}

// ValidateChain re-validates every stored block against its predecessor.
func (c *Chain) ValidateChain() error {
	height := c.Height()
	if height == 0 {
		return nil
	}

	var previous *Block
	for h := uint64(0); h < height; h++ {
		block, err := c.BlockByHeight(h)
		if err != nil {
			return fmt.Errorf("failed to load block %d: %w", h, err)
		}
		if err := block.ValidateWithRules(previous, c.rules); err != nil {
			return fmt.Errorf("block %d validation failed: %w", h, err)
		}
		previous = block
	}
	return nil
}

// applyGenesisTransactions seeds the account state from the genesis block.
// Only mints and authority registrations take effect at height zero.
func (c *Chain) applyGenesisTransactions(transactions []*Transaction) {
	for _, tx := range transactions {
		switch tx.Kind {
		case TxGenesisMint:
			if tx.GenesisMint == nil || tx.To == "" {
				continue
			}
			c.accounts.Credit(tx.To, tx.GenesisMint.Amount, tx.Timestamp)
			c.stats.TotalTokensCirculation += tx.GenesisMint.Amount
		case TxAuthorityRegistration:
			if tx.Authority == nil {
				continue
			}
			c.accounts.RegisterAuthority(tx.Authority.Name, tx.Timestamp)
		}
	}
}

// applyBlockTransactions folds a validated block into account state, the
// output set, the market book and the governance records. A transaction
// whose sender cannot cover its debit is skipped whole, never partially
// applied.
func (c *Chain) applyBlockTransactions(block *Block) {
	for _, tx := range block.Transactions {
		switch tx.Kind {
		case TxTransfer:
			c.applyTransfer(tx)
		case TxEnergyTrade:
			c.applyEnergyTrade(tx)
		case TxGovernance:
			c.applyGovernance(tx)
		case TxAuthorityRegistration:
			if tx.Authority != nil {
				c.accounts.RegisterAuthority(tx.Authority.Name, tx.Timestamp)
			}
		case TxContractDeploy:
			c.applyContractDeploy(tx)
		case TxContractExecute:
			c.applyContractExecute(tx)
		}

		if utxo := newUTXO(tx, block.Header.Height); utxo != nil {
			c.utxoSet[UTXOKey(tx.ID, 0)] = utxo
		}
	}
}

// applyTransfer moves tokens from sender to recipient. The fee is debited
// with the amount and not credited anywhere.
func (c *Chain) applyTransfer(tx *Transaction) {
	amount := tx.Transfer.Amount
	if err := c.accounts.Debit(tx.From, amount+tx.Fee, tx.Timestamp); err != nil {
		utils.LogWarn("Skipping transfer %s: %v", tx.ID, err)
		return
	}
	c.accounts.Credit(tx.To, amount, tx.Timestamp)
}

// applyEnergyTrade settles the token leg of an energy trade and credits the
// buyer's carbon balance. Buy and sell trades file an open order in the
// market book; matched trades clear both referenced orders from it.
func (c *Chain) applyEnergyTrade(tx *Transaction) {
	trade := tx.EnergyTrade
	if err := c.accounts.Debit(tx.From, trade.TotalValue+tx.Fee, tx.Timestamp); err != nil {
		utils.LogWarn("Skipping energy trade %s: %v", tx.ID, err)
		return
	}
	if tx.To != "" {
		c.accounts.Credit(tx.To, trade.TotalValue, tx.Timestamp)
	}
	c.accounts.AddCarbonCredits(tx.From, trade.CarbonCredits, tx.Timestamp)
	c.totalEnergyValue += trade.TotalValue

	switch trade.OrderType {
	case OrderBuy, OrderSell:
		c.orderBook.AddOrder(EnergyOrder{
			ID:              tx.ID,
			Trader:          tx.From,
			EnergyAmountKWh: trade.EnergyAmountKWh,
			PricePerKWh:     trade.PricePerKWh,
			OrderType:       trade.OrderType,
			EnergySource:    trade.Source,
			CreatedAt:       tx.Timestamp,
			ExpiresAt:       trade.DeliveryEnd,
			GridLocation:    trade.GridLocation,
		})
	case OrderMatch:
		c.orderBook.Settle(MatchedTrade{
			ID:               tx.ID,
			BuyOrderID:       trade.BuyOrderID,
			SellOrderID:      trade.SellOrderID,
			EnergyAmountKWh:  trade.EnergyAmountKWh,
			PricePerKWh:      trade.PricePerKWh,
			TotalValue:       trade.TotalValue,
			MatchedAt:        tx.Timestamp,
			SettlementStatus: SettlementPending,
		})
	}
}

// applyGovernance registers proposals and records votes. Votes on unknown
// proposals are dropped.
func (c *Chain) applyGovernance(tx *Transaction) {
	gov := tx.Governance
	switch gov.Action {
	case GovProposalSubmission:
		c.proposals[tx.ID] = &GovernanceProposal{
			ID:           tx.ID,
			Title:        gov.Title,
			Description:  gov.Description,
			Proposer:     tx.From,
			ProposalType: gov.ProposalType,
			VotingStart:  tx.Timestamp,
			VotingEnd:    tx.Timestamp.AddDate(0, 0, int(gov.VotingPeriodDays)),
			Votes:        make(map[string]ProposalVote),
			Status:       ProposalActive,
		}
	case GovVote:
		if proposal, exists := c.proposals[gov.ProposalID]; exists {
			proposal.Votes[tx.From] = ProposalVote{
				Choice:      gov.Vote,
				VotingPower: gov.VotingPower,
			}
		}
	case GovProposalExecution:
		if proposal, exists := c.proposals[gov.ProposalID]; exists {
			proposal.Status = ProposalExecuted
		}
	}
}

func (c *Chain) applyContractDeploy(tx *Transaction) {
	deploy := tx.ContractDeploy
	contract, err := c.registry.Deploy(tx.From, tx.Nonce, deploy.Bytecode, deploy.ConstructorArgs, tx.Timestamp)
	if err != nil {
		utils.LogWarn("Skipping contract deployment %s: %v", tx.ID, err)
		return
	}
	utils.LogDebug("Contract deployed at %s by %s", contract.Address, tx.From)
}

func (c *Chain) applyContractExecute(tx *Transaction) {
	call := tx.ContractExecute
	if err := c.registry.RecordExecution(call.ContractAddress, call.Method, tx.From, call.Args, tx.Timestamp); err != nil {
		utils.LogWarn("Skipping contract execution %s: %v", tx.ID, err)
	}
}
