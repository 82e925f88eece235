package blockchain

import "time"

const (
	// BlockVersion is the block format version stamped into every header.
	BlockVersion = 1
	// BlockGasLimit is the gas ceiling for a single block.
	BlockGasLimit = 10_000_000
	// DefaultDifficulty is the difficulty assigned to new block headers.
	DefaultDifficulty = 1000
	// MaxTimestampDrift is how far into the future a block timestamp may lie.
	MaxTimestampDrift = 10 * time.Minute
)

const (
	// DefaultGasLimit is the gas limit assigned to new transactions.
	DefaultGasLimit = 100_000
	// DefaultGasPrice is the gas price assigned to new transactions.
	DefaultGasPrice = 1
	// MaxEnergyPerTrade caps a single trade's energy amount in kWh.
	MaxEnergyPerTrade = 10_000.0
	// MinEnergyPrice and MaxEnergyPrice bound a trade's per-kWh price.
	MinEnergyPrice = 1_000
	MaxEnergyPrice = 10_000
	// MaxVotingPeriodDays bounds governance proposal voting windows.
	MaxVotingPeriodDays = 30
)

const (
	// DefaultBlockCacheSize is how many recent blocks the chain keeps in
	// memory before evicting the oldest.
	DefaultBlockCacheSize = 1000
	// DefaultPoolCapacity is the pending pool's insertion ceiling.
	DefaultPoolCapacity = 10_000
)

const (
	// SystemAddress is the synthetic sender of genesis mints.
	SystemAddress = "system"
	// GenesisValidator is the synthetic validator of the genesis block.
	GenesisValidator = "genesis"
	// GenesisAuthorityType marks the genesis block's validator info.
	GenesisAuthorityType = "SYSTEM"
)
