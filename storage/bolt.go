package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"gridtokenx_go/blockchain"
	"gridtokenx_go/state"
	"gridtokenx_go/utils"
)

var (
	blocksBucket = []byte("blocks")
	hashesBucket = []byte("blockHashes")
	metaBucket   = []byte("meta")
)

// BoltStore persists chain data in a single bbolt file. Blocks live in the
// blocks bucket keyed by big-endian height; the hash bucket maps block
// hashes to heights.
type BoltStore struct {
	db *bolt.DB
}

// NewBolt opens (or creates) the chain database file under dataDir.
func NewBolt(dataDir string) (*BoltStore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory %s: %v", dataDir, err)
	}
	dbPath := filepath.Join(dataDir, "chain.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open chain database: %v", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{blocksBucket, hashesBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create buckets: %v", err)
	}

	utils.LogInfo("Chain database initialized at: %s", dbPath)

	return &BoltStore{db: db}, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// StoreBlock writes a block and its hash index in one transaction.
func (s *BoltStore) StoreBlock(block *blockchain.Block) error {
	data, err := marshalBlock(block)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		key := itob(block.Header.Height)
		if err := tx.Bucket(blocksBucket).Put(key, data); err != nil {
			return fmt.Errorf("failed to save block: %v", err)
		}
		if err := tx.Bucket(hashesBucket).Put([]byte(block.Header.Hash), key); err != nil {
			return fmt.Errorf("failed to index block hash: %v", err)
		}

		meta := tx.Bucket(metaBucket)
		if current := meta.Get([]byte(latestHeightKey)); current == nil ||
			block.Header.Height >= binary.BigEndian.Uint64(current) {
			if err := meta.Put([]byte(latestHeightKey), key); err != nil {
				return fmt.Errorf("failed to update latest height: %v", err)
			}
		}
		return nil
	})
}

// LoadBlockByHeight returns the block stored at the given height.
func (s *BoltStore) LoadBlockByHeight(height uint64) (*blockchain.Block, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(blocksBucket).Get(itob(height)); v != nil {
			data = append(data, v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve block: %v", err)
	}
	if data == nil {
		return nil, fmt.Errorf("block at height %d: %w", height, ErrNotFound)
	}
	return unmarshalBlock(data)
}

// LoadBlockByHash returns the block with the given hash.
func (s *BoltStore) LoadBlockByHash(hash string) (*blockchain.Block, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		key := tx.Bucket(hashesBucket).Get([]byte(hash))
		if key == nil {
			return nil
		}
		if v := tx.Bucket(blocksBucket).Get(key); v != nil {
			data = append(data, v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve block: %v", err)
	}
	if data == nil {
		return nil, fmt.Errorf("block with hash %s: %w", hash, ErrNotFound)
	}
	return unmarshalBlock(data)
}

// StoreAccounts persists the full account set.
func (s *BoltStore) StoreAccounts(accounts map[string]*state.Account) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %v", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(accountsKey), data)
	})
}

// LoadAccounts returns the persisted account set.
func (s *BoltStore) LoadAccounts() (map[string]*state.Account, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(metaBucket).Get([]byte(accountsKey)); v != nil {
			data = append(data, v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve accounts: %v", err)
	}
	if data == nil {
		return nil, fmt.Errorf("accounts: %w", ErrNotFound)
	}
	var accounts map[string]*state.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("failed to unmarshal accounts: %v", err)
	}
	return accounts, nil
}

// StoreStats persists the chain statistics.
func (s *BoltStore) StoreStats(stats blockchain.BlockchainStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal chain stats: %v", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(metaBucket).Put([]byte(statsKey), data)
	})
}

// LoadStats returns the persisted chain statistics.
func (s *BoltStore) LoadStats() (blockchain.BlockchainStats, error) {
	var stats blockchain.BlockchainStats
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(metaBucket).Get([]byte(statsKey)); v != nil {
			data = append(data, v...)
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("failed to retrieve chain stats: %v", err)
	}
	if data == nil {
		return stats, fmt.Errorf("chain stats: %w", ErrNotFound)
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return stats, fmt.Errorf("failed to unmarshal chain stats: %v", err)
	}
	return stats, nil
}

// LatestHeight returns the height of the newest stored block.
func (s *BoltStore) LatestHeight() (uint64, error) {
	var height uint64
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(metaBucket).Get([]byte(latestHeightKey)); v != nil {
			height = binary.BigEndian.Uint64(v)
			found = true
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to retrieve latest height: %v", err)
	}
	if !found {
		return 0, fmt.Errorf("latest height: %w", ErrNotFound)
	}
	return height, nil
}

// Close closes the database.
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
