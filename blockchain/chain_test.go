package blockchain_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridtokenx_go/blockchain"
	"gridtokenx_go/contracts"
	"gridtokenx_go/mempool"
	"gridtokenx_go/policy"
	"gridtokenx_go/state"
	"gridtokenx_go/storage"
)

func newTestChain(t *testing.T, store blockchain.Storage) *blockchain.Chain {
	t.Helper()
	chain, err := blockchain.NewChain(store, mempool.New(0), state.NewManager(), blockchain.DefaultChainConfig())
	require.NoError(t, err)
	return chain
}

// bootstrapChain installs a genesis block minting alice a million tokens and
// registering EGAT as a grid authority.
func bootstrapChain(t *testing.T, store blockchain.Storage) *blockchain.Chain {
	t.Helper()
	chain := newTestChain(t, store)
	genesis, err := blockchain.NewGenesisBlock([]*blockchain.Transaction{
		blockchain.NewGenesisMint("alice", 1_000_000, "initial issuance"),
		blockchain.NewAuthorityRegistration("EGAT", "Electricity Generating Authority of Thailand", "GRID_OPERATOR"),
	}, "GridTokenX Genesis Block")
	require.NoError(t, err)
	require.NoError(t, chain.AddGenesisBlock(genesis))
	return chain
}

// sealOn builds the next block over prev, nudging the timestamp forward when
// two blocks are created inside the same clock tick.
func sealOn(t *testing.T, chain *blockchain.Chain, txs ...*blockchain.Transaction) *blockchain.Block {
	t.Helper()
	prev, err := chain.LatestBlock()
	require.NoError(t, err)

	block, err := blockchain.NewBlock(prev.Header.Hash, txs, prev.Header.Height+1, blockchain.ValidatorInfo{
		Address:    "validator-1",
		Stake:      5000,
		Reputation: 75,
	})
	require.NoError(t, err)
	if !block.Header.Timestamp.After(prev.Header.Timestamp) {
		block.Header.Timestamp = prev.Header.Timestamp.Add(time.Second)
		block.Header.Hash = block.CalculateHash()
	}
	return block
}

func matchTradeData() blockchain.EnergyTradeData {
	start := time.Now().UTC().Add(time.Hour)
	return blockchain.EnergyTradeData{
		EnergyAmountKWh: 100,
		PricePerKWh:     4000,
		TotalValue:      400_000,
		Source:          blockchain.SourceSolar,
		DeliveryStart:   start,
		DeliveryEnd:     start.Add(2 * time.Hour),
		GridLocation:    "BKK-01-SUB001",
		OrderType:       blockchain.OrderMatch,
		BuyOrderID:      "buy-1",
		SellOrderID:     "sell-1",
	}
}

func TestChainGenesisInitialisesState(t *testing.T) {
	chain := bootstrapChain(t, storage.NewMemory())

	assert.Equal(t, uint64(1), chain.Height())
	assert.Equal(t, uint64(2), chain.TotalTransactions())
	assert.Equal(t, uint64(1_000_000), chain.Balance("alice"))

	egat, exists := chain.Account("EGAT")
	require.True(t, exists)
	assert.Equal(t, state.AccountAuthority, egat.AccountType)
	assert.Equal(t, state.AuthorityReputation, egat.ReputationScore)
	assert.Equal(t, state.ComplianceCompliant, egat.ComplianceStatus)

	stats := chain.Stats()
	assert.Equal(t, uint64(1), stats.Height)
	assert.Equal(t, uint64(1_000_000), stats.TotalTokensCirculation)
	assert.Equal(t, uint64(1), stats.ActiveConsumers)
	assert.Equal(t, uint64(0), stats.ActiveProducers)

	genesis, err := chain.LatestBlock()
	require.NoError(t, err)
	assert.ErrorContains(t, chain.AddGenesisBlock(genesis), "already exists")
}

func TestChainTransferSettlement(t *testing.T) {
	chain := bootstrapChain(t, storage.NewMemory())

	transfer := blockchain.NewTransfer("alice", "bob", 1000, 1, 0, "")
	block := sealOn(t, chain, transfer)
	require.NoError(t, chain.AddBlock(block))

	// The fee is burned: debited from the sender, credited nowhere.
	assert.Equal(t, uint64(998_999), chain.Balance("alice"))
	assert.Equal(t, uint64(1000), chain.Balance("bob"))
	assert.Equal(t, uint64(2), chain.Height())
	assert.Equal(t, uint64(3), chain.TotalTransactions())
	assert.Equal(t, uint64(2), chain.Stats().ActiveConsumers)

	utxo, exists := chain.Output(transfer.ID, 0)
	require.True(t, exists)
	assert.Equal(t, "bob", utxo.Owner)
	assert.Equal(t, uint64(1000), utxo.Amount)
	assert.False(t, utxo.IsEnergyUTXO)
}

func TestChainSkipsUnfundedTransfer(t *testing.T) {
	chain := bootstrapChain(t, storage.NewMemory())

	// Stateless validation cannot see balances, so the block is accepted;
	// the transfer itself must be skipped whole when the debit fails.
	unfunded := blockchain.NewTransfer("mallory", "bob", 500, 1, 0, "")
	require.NoError(t, chain.AddBlock(sealOn(t, chain, unfunded)))

	assert.Equal(t, uint64(2), chain.Height())
	assert.Equal(t, uint64(0), chain.Balance("bob"))
	assert.Equal(t, uint64(1_000_000), chain.Balance("alice"))
}

func TestChainMatchedTradeSettlement(t *testing.T) {
	chain := bootstrapChain(t, storage.NewMemory())

	data := matchTradeData()
	data.CarbonCredits = 50
	trade := blockchain.NewEnergyTrade("alice", "solar-farm", data, 5, 0)
	require.NoError(t, chain.AddBlock(sealOn(t, chain, trade)))

	assert.Equal(t, uint64(1_000_000-400_005), chain.Balance("alice"))
	assert.Equal(t, uint64(400_000), chain.Balance("solar-farm"))

	buyer, exists := chain.Account("alice")
	require.True(t, exists)
	assert.InDelta(t, 50.0, buyer.CarbonCredits, 0.001)

	trades := chain.MatchedTrades()
	require.Len(t, trades, 1)
	assert.Equal(t, trade.ID, trades[0].ID)
	assert.Equal(t, "buy-1", trades[0].BuyOrderID)
	assert.Equal(t, "sell-1", trades[0].SellOrderID)
	assert.Equal(t, blockchain.SettlementPending, trades[0].SettlementStatus)

	utxo, exists := chain.Output(trade.ID, 0)
	require.True(t, exists)
	assert.True(t, utxo.IsEnergyUTXO)
	assert.Equal(t, uint64(400_000), utxo.Amount)
	require.NotNil(t, utxo.EnergyMetadata)
	assert.InDelta(t, 100.0, utxo.EnergyMetadata.EnergyAmountKWh, 0.001)

	stats := chain.EnergyStats()
	assert.InDelta(t, 100.0, stats.TotalEnergyTraded, 0.001)
	assert.Equal(t, uint64(1), stats.CompletedTrades)
	assert.InDelta(t, 4000.0, stats.AveragePrice, 0.001)
}

func TestChainOrderBookAndPriceSignal(t *testing.T) {
	chain := bootstrapChain(t, storage.NewMemory())

	// An empty book is priced at the reference level.
	assert.InDelta(t, 4_000, chain.PriceSignal().IndicativePrice, 0.001)

	sellData := matchTradeData()
	sellData.OrderType = blockchain.OrderSell
	sellData.BuyOrderID, sellData.SellOrderID = "", ""
	sellData.EnergyAmountKWh = 20
	sellData.TotalValue = 80_000
	sell := blockchain.NewEnergyTrade("alice", "grid", sellData, 1, 0)

	buyData := matchTradeData()
	buyData.OrderType = blockchain.OrderBuy
	buyData.BuyOrderID, buyData.SellOrderID = "", ""
	buyData.EnergyAmountKWh = 10
	buyData.TotalValue = 40_000
	buy := blockchain.NewEnergyTrade("alice", "grid", buyData, 1, 1)

	require.NoError(t, chain.AddBlock(sealOn(t, chain, sell, buy)))

	stats := chain.EnergyStats()
	assert.Equal(t, uint64(1), stats.ActiveSellOrders)
	assert.Equal(t, uint64(1), stats.ActiveBuyOrders)
	assert.Equal(t, uint64(0), stats.CompletedTrades)

	// Supply at twice demand: tanh(ln 2) = 0.6, so the signal sits
	// 600*pi below the balance price.
	signal := chain.PriceSignal()
	assert.InDelta(t, 20, signal.TotalSupplyKWh, 0.001)
	assert.InDelta(t, 10, signal.TotalDemandKWh, 0.001)
	assert.InDelta(t, 2.0, signal.SupplyDemandRatio, 0.001)
	assert.InDelta(t, 4_000-600*math.Pi, signal.IndicativePrice, 0.001)
	assert.False(t, signal.CalculatedAt.IsZero())

	matchData := matchTradeData()
	matchData.EnergyAmountKWh = 10
	matchData.TotalValue = 40_000
	matchData.BuyOrderID = buy.ID
	matchData.SellOrderID = sell.ID
	match := blockchain.NewEnergyTrade("alice", "grid", matchData, 1, 2)
	require.NoError(t, chain.AddBlock(sealOn(t, chain, match)))

	stats = chain.EnergyStats()
	assert.Equal(t, uint64(0), stats.ActiveSellOrders)
	assert.Equal(t, uint64(0), stats.ActiveBuyOrders)
	assert.Equal(t, uint64(1), stats.CompletedTrades)

	// The book is empty again; the signal falls back to balance.
	assert.InDelta(t, 4_000, chain.PriceSignal().IndicativePrice, 0.001)
}

func TestChainGovernanceLifecycle(t *testing.T) {
	chain := bootstrapChain(t, storage.NewMemory())

	submission := blockchain.NewGovernanceProposal("alice", "Raise block energy cap",
		"Increase the per-block settlement ceiling", "PARAMETER_CHANGE", 7, 1, 0)
	require.NoError(t, chain.AddBlock(sealOn(t, chain, submission)))

	proposal, exists := chain.Proposal(submission.ID)
	require.True(t, exists)
	assert.Equal(t, blockchain.ProposalActive, proposal.Status)
	assert.Equal(t, "alice", proposal.Proposer)
	assert.True(t, proposal.VotingEnd.Equal(submission.Timestamp.AddDate(0, 0, 7)))

	vote := blockchain.NewGovernanceVote("bob", submission.ID, "YES", 100, 1, 0)
	orphanVote := blockchain.NewGovernanceVote("carol", "no-such-proposal", "NO", 50, 1, 0)
	require.NoError(t, chain.AddBlock(sealOn(t, chain, vote, orphanVote)))

	proposal, exists = chain.Proposal(submission.ID)
	require.True(t, exists)
	require.Contains(t, proposal.Votes, "bob")
	assert.Equal(t, "YES", proposal.Votes["bob"].Choice)
	assert.Equal(t, uint64(100), proposal.Votes["bob"].VotingPower)

	_, exists = chain.Proposal("no-such-proposal")
	assert.False(t, exists)

	execution := blockchain.NewTransaction(blockchain.TxGovernance, "EGAT", "", 1, 0)
	execution.Governance = &blockchain.GovernanceData{
		Action:     blockchain.GovProposalExecution,
		ProposalID: submission.ID,
	}
	block := sealOn(t, chain, execution)
	require.NoError(t, chain.AddBlock(block))

	proposal, _ = chain.Proposal(submission.ID)
	assert.Equal(t, blockchain.ProposalExecuted, proposal.Status)
	require.True(t, block.HasGovernanceActions())
	assert.Equal(t, submission.ID, block.GovernanceActions[0].ProposalID)
}

func TestChainPoolAdmission(t *testing.T) {
	chain := bootstrapChain(t, storage.NewMemory())

	err := chain.AddPendingTransaction(blockchain.NewTransfer("nobody", "bob", 10, 1, 0, ""))
	assert.ErrorContains(t, err, "sender account not found")

	err = chain.AddPendingTransaction(blockchain.NewTransfer("alice", "bob", 2_000_000, 1, 0, ""))
	assert.ErrorContains(t, err, "insufficient balance")

	tx := blockchain.NewTransfer("alice", "bob", 1000, 1, 0, "")
	require.NoError(t, chain.AddPendingTransaction(tx))
	assert.Equal(t, 1, chain.PendingCount())

	assert.ErrorIs(t, chain.AddPendingTransaction(tx), mempool.ErrDuplicate)

	// Only transfers are balance-checked at admission.
	trade := matchTradeData()
	require.NoError(t, chain.AddPendingTransaction(blockchain.NewEnergyTrade("stranger", "grid", trade, 5, 0)))
	assert.Equal(t, 2, chain.PendingCount())

	malformed := matchTradeData()
	malformed.GridLocation = "BANGKOK-01"
	err = chain.AddPendingTransaction(blockchain.NewEnergyTrade("stranger", "grid", malformed, 5, 1))
	assert.ErrorContains(t, err, "invalid grid location")

	pending := chain.PendingTransactions(0)
	require.Len(t, pending, 2)
	assert.Equal(t, tx.ID, pending[0].ID)

	chain.RemovePendingTransactions([]string{tx.ID})
	assert.Equal(t, 1, chain.PendingCount())
}

func TestChainAdmissionAppliesConfiguredRules(t *testing.T) {
	cfg := blockchain.DefaultChainConfig()
	cfg.Rules.MaxTradeKWh = 50
	cfg.Rules.MinPriceTokens = 4_500
	chain, err := blockchain.NewChain(storage.NewMemory(), mempool.New(0), state.NewManager(), cfg)
	require.NoError(t, err)

	// 100 kWh passes the protocol-level cap but not this market's rules.
	err = chain.AddPendingTransaction(blockchain.NewEnergyTrade("alice", "grid", matchTradeData(), 5, 0))
	assert.ErrorContains(t, err, "exceeds maximum 50.0 kWh")

	small := matchTradeData()
	small.EnergyAmountKWh = 50
	small.TotalValue = 200_000
	err = chain.AddPendingTransaction(blockchain.NewEnergyTrade("alice", "grid", small, 5, 1))
	assert.ErrorContains(t, err, "outside acceptable range")
}

func TestChainAdmissionAppliesComplianceRules(t *testing.T) {
	engine, err := policy.NewComplianceEngine([]policy.ComplianceRule{{
		ID:          "deny-large-solar",
		Description: "solar trades above 50 kWh need certification",
		Priority:    10,
		Expression:  `source == "SOLAR" && energyAmountKwh > 50`,
		Action:      policy.ActionDeny,
	}})
	require.NoError(t, err)

	cfg := blockchain.DefaultChainConfig()
	cfg.Compliance = engine
	chain, err := blockchain.NewChain(storage.NewMemory(), mempool.New(0), state.NewManager(), cfg)
	require.NoError(t, err)

	err = chain.AddPendingTransaction(blockchain.NewEnergyTrade("alice", "grid", matchTradeData(), 5, 0))
	assert.ErrorContains(t, err, "denied by compliance rule deny-large-solar")

	wind := matchTradeData()
	wind.Source = blockchain.SourceWind
	require.NoError(t, chain.AddPendingTransaction(blockchain.NewEnergyTrade("alice", "grid", wind, 5, 1)))
	assert.Equal(t, 1, chain.PendingCount())
}

func TestChainContractRegistry(t *testing.T) {
	chain := bootstrapChain(t, storage.NewMemory())

	deploy := blockchain.NewContractDeploy("alice", []byte{0x60, 0x80, 0x52}, []string{"GridToken"}, 1, 0)
	require.NoError(t, chain.AddBlock(sealOn(t, chain, deploy)))

	registry := chain.ContractRegistry()
	require.Equal(t, 1, registry.Count())

	address := contracts.GenerateAddress("alice", deploy.Nonce, deploy.Timestamp)
	deployed, err := registry.Get(address)
	require.NoError(t, err)
	assert.Equal(t, "alice", deployed.Owner)
	assert.NotEmpty(t, deployed.CodeHash)
	assert.Equal(t, uint64(0), deployed.ExecutionCount)

	call := blockchain.NewContractExecute("alice", address, "transfer", []string{"bob", "100"}, 1, 1)
	require.NoError(t, chain.AddBlock(sealOn(t, chain, call)))

	deployed, err = registry.Get(address)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), deployed.ExecutionCount)

	calls := registry.Executions(address)
	require.Len(t, calls, 1)
	assert.Equal(t, "transfer", calls[0].Method)
	assert.Equal(t, "alice", calls[0].Caller)

	// A call against an unknown address is skipped, not fatal to the block.
	miss := blockchain.NewContractExecute("alice", "contract-missing", "transfer", nil, 1, 2)
	require.NoError(t, chain.AddBlock(sealOn(t, chain, miss)))
	assert.Empty(t, registry.Executions("contract-missing"))
}

func TestChainBlockLookups(t *testing.T) {
	chain := bootstrapChain(t, storage.NewMemory())
	block := sealOn(t, chain, blockchain.NewTransfer("alice", "bob", 1000, 1, 0, ""))
	require.NoError(t, chain.AddBlock(block))

	byHeight, err := chain.BlockByHeight(1)
	require.NoError(t, err)
	assert.Equal(t, block.Header.Hash, byHeight.Header.Hash)

	byHash, err := chain.BlockByHash(block.Header.Hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), byHash.Header.Height)

	latest, err := chain.LatestBlock()
	require.NoError(t, err)
	assert.Equal(t, block.Header.Hash, latest.Header.Hash)

	_, err = chain.BlockByHeight(99)
	assert.ErrorIs(t, err, blockchain.ErrNotFound)
	_, err = chain.BlockByHash("0000000000000000000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, blockchain.ErrNotFound)
}

func TestChainRejectsInvalidBlock(t *testing.T) {
	chain := bootstrapChain(t, storage.NewMemory())

	forged, err := blockchain.NewBlock(blockchain.HashData([]byte("other chain")), nil, 1, blockchain.ValidatorInfo{Address: "v"})
	require.NoError(t, err)
	assert.ErrorContains(t, chain.AddBlock(forged), "block validation failed")
	assert.Equal(t, uint64(1), chain.Height())
}

func TestChainRestartRestoresState(t *testing.T) {
	store := storage.NewMemory()
	chain := bootstrapChain(t, store)
	require.NoError(t, chain.AddBlock(sealOn(t, chain, blockchain.NewTransfer("alice", "bob", 1000, 1, 0, ""))))

	reopened := newTestChain(t, store)

	assert.Equal(t, uint64(2), reopened.Height())
	assert.Equal(t, uint64(3), reopened.TotalTransactions())
	assert.Equal(t, uint64(998_999), reopened.Balance("alice"))
	assert.Equal(t, uint64(1000), reopened.Balance("bob"))

	egat, exists := reopened.Account("EGAT")
	require.True(t, exists)
	assert.Equal(t, state.AccountAuthority, egat.AccountType)

	latest, err := reopened.LatestBlock()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), latest.Header.Height)
}

func TestChainValidateChain(t *testing.T) {
	chain := bootstrapChain(t, storage.NewMemory())
	require.NoError(t, chain.AddBlock(sealOn(t, chain, blockchain.NewTransfer("alice", "bob", 1000, 1, 0, ""))))
	require.NoError(t, chain.AddBlock(sealOn(t, chain, blockchain.NewTransfer("bob", "carol", 100, 1, 0, ""))))

	assert.NoError(t, chain.ValidateChain())
	assert.Equal(t, uint64(3), chain.Height())
	assert.Equal(t, uint64(899), chain.Balance("bob"))
	assert.Equal(t, uint64(100), chain.Balance("carol"))
}
