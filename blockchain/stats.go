package blockchain

import "time"

// BlockchainStats tracks chain-wide aggregates. Height counts blocks, so a
// chain whose latest block has height N reports Height N+1.
type BlockchainStats struct {
	Height                 uint64    `json:"height"`
	TotalTransactions      uint64    `json:"totalTransactions"`
	TotalEnergyTraded      float64   `json:"totalEnergyTraded"`
	TotalTokensCirculation uint64    `json:"totalTokensCirculation"`
	ActiveProducers        uint64    `json:"activeProducers"`
	ActiveConsumers        uint64    `json:"activeConsumers"`
	AverageBlockTime       float64   `json:"averageBlockTime"`
	NetworkHashrate        uint64    `json:"networkHashrate"`
	LastBlockTime          time.Time `json:"lastBlockTime"`
}

// NewBlockchainStats returns starting stats for an empty chain.
func NewBlockchainStats() BlockchainStats {
	return BlockchainStats{LastBlockTime: time.Now().UTC()}
}

// EnergyTradingStats is the market-level view served by the API.
type EnergyTradingStats struct {
	TotalEnergyTraded float64 `json:"totalEnergyTraded"`
	ActiveBuyOrders   uint64  `json:"activeBuyOrders"`
	ActiveSellOrders  uint64  `json:"activeSellOrders"`
	CompletedTrades   uint64  `json:"completedTrades"`
	AveragePrice      float64 `json:"averagePrice"`
}
