package storage

import (
	"encoding/json"
	"fmt"
	"sync"

	"gridtokenx_go/blockchain"
	"gridtokenx_go/state"
)

// MemoryStore keeps chain data in process memory. Values are stored in
// their encoded form so callers get isolated copies back, matching the
// behavior of the durable backends.
type MemoryStore struct {
	mutex          sync.RWMutex
	blocksByHeight map[uint64][]byte
	heightByHash   map[string]uint64
	accounts       []byte
	stats          []byte
	latestHeight   uint64
	hasBlocks      bool
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		blocksByHeight: make(map[uint64][]byte),
		heightByHash:   make(map[string]uint64),
	}
}

// StoreBlock writes a block under its height and hash keys.
func (s *MemoryStore) StoreBlock(block *blockchain.Block) error {
	data, err := marshalBlock(block)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.blocksByHeight[block.Header.Height] = data
	s.heightByHash[block.Header.Hash] = block.Header.Height
	if !s.hasBlocks || block.Header.Height >= s.latestHeight {
		s.latestHeight = block.Header.Height
		s.hasBlocks = true
	}
	return nil
}

// LoadBlockByHeight returns the block stored at the given height.
func (s *MemoryStore) LoadBlockByHeight(height uint64) (*blockchain.Block, error) {
	s.mutex.RLock()
	data, exists := s.blocksByHeight[height]
	s.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("block at height %d: %w", height, ErrNotFound)
	}
	return unmarshalBlock(data)
}

// LoadBlockByHash returns the block with the given hash.
func (s *MemoryStore) LoadBlockByHash(hash string) (*blockchain.Block, error) {
	s.mutex.RLock()
	height, exists := s.heightByHash[hash]
	var data []byte
	if exists {
		data = s.blocksByHeight[height]
	}
	s.mutex.RUnlock()

	if !exists {
		return nil, fmt.Errorf("block with hash %s: %w", hash, ErrNotFound)
	}
	return unmarshalBlock(data)
}

// StoreAccounts persists the full account set.
func (s *MemoryStore) StoreAccounts(accounts map[string]*state.Account) error {
	data, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to marshal accounts: %v", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.accounts = data
	return nil
}

// LoadAccounts returns the persisted account set.
func (s *MemoryStore) LoadAccounts() (map[string]*state.Account, error) {
	s.mutex.RLock()
	data := s.accounts
	s.mutex.RUnlock()

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
func (s *MemoryStore) StoreStats(stats blockchain.BlockchainStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal chain stats: %v", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats = data
	return nil
}

// LoadStats returns the persisted chain statistics.
func (s *MemoryStore) LoadStats() (blockchain.BlockchainStats, error) {
	var stats blockchain.BlockchainStats

	s.mutex.RLock()
	data := s.stats
	s.mutex.RUnlock()

	if data == nil {
		return stats, fmt.Errorf("chain stats: %w", ErrNotFound)
	}
	if err := json.Unmarshal(data, &stats); err != nil {
		return stats, fmt.Errorf("failed to unmarshal chain stats: %v", err)
	}
	return stats, nil
}

// LatestHeight returns the height of the newest stored block.
func (s *MemoryStore) LatestHeight() (uint64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.hasBlocks {
		return 0, fmt.Errorf("latest height: %w", ErrNotFound)
	}
	return s.latestHeight, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
