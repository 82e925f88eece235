package blockchain

import (
	"errors"

	"gridtokenx_go/state"
)

// ErrNotFound is returned by Storage lookups for keys that were never
// stored. Backends wrap their native miss errors into it.
var ErrNotFound = errors.New("not found")

// Storage persists blocks, account state and chain statistics. Backends
// live in the storage package; lookups for absent keys return ErrNotFound.
type Storage interface {
	StoreBlock(block *Block) error
	LoadBlockByHeight(height uint64) (*Block, error)
	LoadBlockByHash(hash string) (*Block, error)
	StoreAccounts(accounts map[string]*state.Account) error
	LoadAccounts() (map[string]*state.Account, error)
	StoreStats(stats BlockchainStats) error
	LoadStats() (BlockchainStats, error)
	LatestHeight() (uint64, error)
	Close() error
}

// TxPool holds transactions awaiting inclusion in a block. The mempool
// package provides the bounded FIFO implementation.
type TxPool interface {
	Add(tx *Transaction) error
	Contains(id string) bool
	Pending(limit int) []*Transaction
	Remove(ids []string)
	Size() int
}
