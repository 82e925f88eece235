// Package storage provides the persistence backends behind the chain's
// Storage interface: leveldb for single-node deployments, bolt as a
// single-file embedded alternative, postgres for shared deployments and an
// in-memory store for tests.
package storage

import (
	"encoding/json"
	"fmt"

	"gridtokenx_go/blockchain"
	"gridtokenx_go/config"
)

// ErrNotFound reports a lookup for a key that was never stored.
var ErrNotFound = blockchain.ErrNotFound

// Database keys shared by the key-value backends.
const (
	blockHeightKeyPrefix = "blockindex_"
	blockHashKeyPrefix   = "blockhash_"
	latestHeightKey      = "height"
	accountsKey          = "accounts"
	statsKey             = "stats"
)

func heightKey(height uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", blockHeightKeyPrefix, height))
}

func hashKey(hash string) []byte {
	return []byte(blockHashKeyPrefix + hash)
}

// Open returns the backend selected by the configuration.
func Open(cfg config.StorageConfig) (blockchain.Storage, error) {
	switch cfg.Backend {
	case "memory":
		return NewMemory(), nil
	case "leveldb", "":
		return NewLevelDB(cfg.Path, cfg.CacheSizeMB)
	case "bolt":
		return NewBolt(cfg.Path)
	case "postgres":
		return NewPostgres(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

func marshalBlock(block *blockchain.Block) ([]byte, error) {
	data, err := json.Marshal(block)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal block: %v", err)
	}
	return data, nil
}

func unmarshalBlock(data []byte) (*blockchain.Block, error) {
	var block blockchain.Block
	if err := json.Unmarshal(data, &block); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block: %v", err)
	}
	return &block, nil
}
