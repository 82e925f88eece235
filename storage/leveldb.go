package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"gridtokenx_go/blockchain"
	"gridtokenx_go/state"
	"gridtokenx_go/utils"
)

// LevelDBStore persists chain data in a local LevelDB database. Blocks are
// stored twice, keyed by height and by hash, so both lookups are single
// reads.
type LevelDBStore struct {
	db        *leveldb.DB
	batchLock sync.Mutex
	path      string
}

// NewLevelDB opens (or creates) the chain database under dataDir.
func NewLevelDB(dataDir string, cacheSizeMB int) (*LevelDBStore, error) {
	if cacheSizeMB <= 0 {
		cacheSizeMB = 32
	}
	dbPath := filepath.Join(dataDir, "chaindb")

	options := &opt.Options{
		BlockCacheCapacity:  cacheSizeMB * 1024 * 1024,
		WriteBuffer:         16 * 1024 * 1024,
		CompactionTableSize: 2 * 1024 * 1024,
	}

	db, err := leveldb.OpenFile(dbPath, options)
	if err != nil {
		return nil, fmt.Errorf("failed to open chain database: %v", err)
	}

	utils.LogInfo("Chain database initialized at: %s", dbPath)

	return &LevelDBStore{db: db, path: dbPath}, nil
}

// StoreBlock writes a block under its height and hash keys and advances the
// latest-height marker, all in one batch.
func (s *LevelDBStore) StoreBlock(block *blockchain.Block) error {
	data, err := marshalBlock(block)
	if err != nil {
		return err
	}

	batch := new(leveldb.Batch)
	batch.Put(heightKey(block.Header.Height), data)
	batch.Put(hashKey(block.Header.Hash), data)

	current, err := s.LatestHeight()
	if err != nil || block.Header.Height >= current {
		batch.Put([]byte(latestHeightKey), []byte(strconv.FormatUint(block.Header.Height, 10)))
	}

	s.batchLock.Lock()
	defer s.batchLock.Unlock()

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to save block to database: %v", err)
	}
	return nil
}

// LoadBlockByHeight returns the block stored at the given height.
func (s *LevelDBStore) LoadBlockByHeight(height uint64) (*blockchain.Block, error) {
	data, err := s.db.Get(heightKey(height), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, fmt.Errorf("block at height %d: %w", height, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve block: %v", err)
	}
	return unmarshalBlock(data)
}

// LoadBlockByHash returns the block with the given hash.
func (s *LevelDBStore) LoadBlockByHash(hash string) (*blockchain.Block, error) {
	data, err := s.db.Get(hashKey(hash), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, fmt.Errorf("block with hash %s: %w", hash, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve block: %v", err)
	}
	return unmarshalBlock(data)
}

// StoreAccounts persists the full account set.
func (s *LevelDBStore) StoreAccounts(accounts map[string]*state.Account) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %v", err)
	}
	if err := s.db.Put([]byte(accountsKey), data, nil); err != nil {
		return fmt.Errorf("failed to save accounts: %v", err)
	}
	return nil
}

// LoadAccounts returns the persisted account set.
func (s *LevelDBStore) LoadAccounts() (map[string]*state.Account, error) {
	data, err := s.db.Get([]byte(accountsKey), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, fmt.Errorf("accounts: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to retrieve accounts: %v", err)
	}
	var accounts map[string]*state.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal accounts: %v", err)
	}
	return accounts, nil
}

// StoreStats persists the chain statistics.
func (s *LevelDBStore) StoreStats(stats blockchain.BlockchainStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal chain stats: %v", err)
	}
	if err := s.db.Put([]byte(statsKey), data, nil); err != nil {
		return fmt.Errorf("failed to save chain stats: %v", err)
	}
	return nil
}

// LoadStats returns the persisted chain statistics.
func (s *LevelDBStore) LoadStats() (blockchain.BlockchainStats, error) {
	var stats blockchain.BlockchainStats
	data, err := s.db.Get([]byte(statsKey), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return stats, fmt.Errorf("chain stats: %w", ErrNotFound)
		}
		return stats, fmt.Errorf("failed to retrieve chain stats: %v", err)
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return stats, fmt.Errorf("failed to unmarshal chain stats: %v", err)
	}
	return stats, nil
}

// LatestHeight returns the height of the newest stored block.
func (s *LevelDBStore) LatestHeight() (uint64, error) {
	data, err := s.db.Get([]byte(latestHeightKey), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return 0, fmt.Errorf("latest height: %w", ErrNotFound)
		}
		return 0, fmt.Errorf("failed to retrieve latest height: %v", err)
	}
	height, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse latest height: %v", err)
	}
	return height, nil
}

// Close closes the database.
func (s *LevelDBStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
