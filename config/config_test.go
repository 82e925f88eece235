package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	config := GetDefaultConfig()

	assert.NotNil(t, config)
	assert.NotNil(t, config.Node)
	assert.NotNil(t, config.API)
	assert.NotNil(t, config.Storage)
	assert.NotNil(t, config.Consensus)
	assert.NotNil(t, config.Energy)
	assert.NotNil(t, config.Events)
	assert.NotNil(t, config.Logging)

	assert.Equal(t, "gridnode-1", config.Node.ID)
	assert.Equal(t, "validator", config.Node.Type)

	assert.True(t, config.API.Enabled)
	assert.Equal(t, 8545, config.API.Port)

	assert.Equal(t, "leveldb", config.Storage.Backend)
	assert.Equal(t, "./data/chain", config.Storage.Path)
	assert.Equal(t, 32, config.Storage.CacheSizeMB)

	assert.Equal(t, "hybrid", config.Consensus.Algorithm)
	assert.Equal(t, 10, config.Consensus.BlockIntervalSecs)
	assert.Equal(t, 100, config.Consensus.MaxBlockTxs)
	assert.Equal(t, uint64(1000), config.Consensus.InitialDifficulty)

	assert.Equal(t, float64(10_000), config.Energy.MaxTradeKWh)
	assert.Equal(t, float64(100_000), config.Energy.MaxBlockKWh)
	assert.Equal(t, uint64(1_000), config.Energy.MinPriceTokens)
	assert.Equal(t, uint64(10_000), config.Energy.MaxPriceTokens)
	assert.Equal(t, uint64(4_000), config.Energy.BasePriceTokens)

	assert.False(t, config.Events.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, config.Events.Brokers)

	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "text", config.Logging.Format)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
node:
  id: test-node
storage:
  backend: memory
consensus:
  algorithm: authority
  block_interval_secs: 2
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	config, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "test-node", config.Node.ID)
	assert.Equal(t, "memory", config.Storage.Backend)
	assert.Equal(t, "authority", config.Consensus.Algorithm)
	assert.Equal(t, 2, config.Consensus.BlockIntervalSecs)

	// Sections absent from the file keep their defaults.
	assert.Equal(t, 8545, config.API.Port)
	assert.Equal(t, uint64(4_000), config.Energy.BasePriceTokens)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
