package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the top level node configuration.
type Config struct {
	Node      *NodeConfig      `mapstructure:"node"`
	API       *APIConfig       `mapstructure:"api"`
	Storage   *StorageConfig   `mapstructure:"storage"`
	Consensus *ConsensusConfig `mapstructure:"consensus"`
	Energy    *EnergyConfig    `mapstructure:"energy"`
	Events    *EventsConfig    `mapstructure:"events"`
	Logging   *LoggingConfig   `mapstructure:"logging"`
}

// NodeConfig identifies the node.
type NodeConfig struct {
	ID      string `mapstructure:"id"`
	Type    string `mapstructure:"type"` // validator, trader, observer, authority
	KeyFile string `mapstructure:"key_file"`
	Passkey string `mapstructure:"passkey"`
	DataDir string `mapstructure:"data_dir"`
}

// APIConfig configures the HTTP API server.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// StorageConfig selects and tunes the persistence backend.
type StorageConfig struct {
	Backend     string `mapstructure:"backend"` // leveldb, bolt, postgres, memory
	Path        string `mapstructure:"path"`
	CacheSizeMB int    `mapstructure:"cache_size_mb"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// ConsensusConfig tunes the consensus engine.
type ConsensusConfig struct {
	Algorithm         string `mapstructure:"algorithm"` // stake, authority, work, hybrid
	BlockIntervalSecs int    `mapstructure:"block_interval_secs"`
	MaxBlockTxs       int    `mapstructure:"max_block_txs"`
	InitialDifficulty uint64 `mapstructure:"initial_difficulty"`
	MinValidatorStake uint64 `mapstructure:"min_validator_stake"`
	MissThreshold     uint32 `mapstructure:"miss_threshold"`
}

// BlockInterval returns the configured interval as a duration.
func (c *ConsensusConfig) BlockInterval() time.Duration {
	return time.Duration(c.BlockIntervalSecs) * time.Second
}

// EnergyConfig bounds the energy market rules enforced by block validation.
type EnergyConfig struct {
	MaxTradeKWh       float64 `mapstructure:"max_trade_kwh"`
	MaxBlockKWh       float64 `mapstructure:"max_block_kwh"`
	MinPriceTokens    uint64  `mapstructure:"min_price_tokens"`
	MaxPriceTokens    uint64  `mapstructure:"max_price_tokens"`
	BasePriceTokens   uint64  `mapstructure:"base_price_tokens"`
	MaxAvgDeviationPc float64 `mapstructure:"max_avg_deviation_pct"`

	// ComplianceRulesFile points at a JSON file of operator-defined trade
	// admission rules. Empty disables the compliance engine.
	ComplianceRulesFile string `mapstructure:"compliance_rules_file"`
}

// EventsConfig configures the committed-block event stream.
type EventsConfig struct {
	KafkaEnabled bool     `mapstructure:"kafka_enabled"`
	Brokers      []string `mapstructure:"brokers"`
	Topic        string   `mapstructure:"topic"`
}

// LoggingConfig configures process logging.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig loads configuration from the given YAML file, falling back to
// defaults for any section the file omits.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := GetDefaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// GetDefaultConfig returns the default node configuration.
func GetDefaultConfig() *Config {
	return &Config{
		Node: &NodeConfig{
			ID:      "gridnode-1",
			Type:    "validator",
			KeyFile: "node_key.enc",
			DataDir: "./data",
		},
		API: &APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8545,
		},
		Storage: &StorageConfig{
			Backend:     "leveldb",
			Path:        "./data/chain",
			CacheSizeMB: 32,
		},
		Consensus: &ConsensusConfig{
			Algorithm:         "hybrid",
			BlockIntervalSecs: 10,
			MaxBlockTxs:       100,
			InitialDifficulty: 1000,
			MinValidatorStake: 1000,
			MissThreshold:     3,
		},
		Energy: &EnergyConfig{
			MaxTradeKWh:       10_000,
			MaxBlockKWh:       100_000,
			MinPriceTokens:    1_000,
			MaxPriceTokens:    10_000,
			BasePriceTokens:   4_000,
			MaxAvgDeviationPc: 50,
		},
		Events: &EventsConfig{
			KafkaEnabled: false,
			Brokers:      []string{"localhost:9092"},
			Topic:        "gridtokenx.blocks",
		},
		Logging: &LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
