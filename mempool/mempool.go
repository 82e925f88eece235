// mempool/mempool.go
package mempool

import (
	"errors"
	"sync"

	"gridtokenx_go/blockchain"
)

var (
	// ErrPoolFull is returned when the pool is at capacity.
	ErrPoolFull = errors.New("pending transaction pool is full")
	// ErrDuplicate is returned when a transaction id is already pooled.
	ErrDuplicate = errors.New("transaction already in pending pool")
)

// Pool holds transactions awaiting block inclusion. Arrival order is
// preserved: Pending returns the oldest transactions first.
type Pool struct {
	mutex    sync.RWMutex
	capacity int
	order    []*blockchain.Transaction
	index    map[string]*blockchain.Transaction
}

// New creates a pool bounded to capacity transactions.
func New(capacity int) *Pool {
	if capacity <= 0 {
		capacity = blockchain.DefaultPoolCapacity
	}
	return &Pool{
		capacity: capacity,
		index:    make(map[string]*blockchain.Transaction),
	}
}

// Add appends a transaction to the pool.
func (p *Pool) Add(tx *blockchain.Transaction) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if _, exists := p.index[tx.ID]; exists {
		return ErrDuplicate
	}
	if len(p.order) >= p.capacity {
		return ErrPoolFull
	}

	p.order = append(p.order, tx)
	p.index[tx.ID] = tx
	return nil
}

// Contains reports whether a transaction id is pooled.
func (p *Pool) Contains(id string) bool {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	_, exists := p.index[id]
	return exists
}

// Get returns a pooled transaction by id.
func (p *Pool) Get(id string) (*blockchain.Transaction, bool) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	tx, exists := p.index[id]
	return tx, exists
}

// Pending returns up to limit transactions in arrival order. A limit of
// zero or less returns everything.
func (p *Pool) Pending(limit int) []*blockchain.Transaction {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	if limit <= 0 || limit > len(p.order) {
		limit = len(p.order)
	}
	result := make([]*blockchain.Transaction, limit)
	copy(result, p.order[:limit])
	return result
}

// All returns every pooled transaction in arrival order.
func (p *Pool) All() []*blockchain.Transaction {
	return p.Pending(0)
}

// Remove drops the given transaction ids, keeping the remaining order
// intact. Unknown ids are ignored.
func (p *Pool) Remove(ids []string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	kept := p.order[:0]
	for _, tx := range p.order {
		if _, gone := drop[tx.ID]; gone {
			delete(p.index, tx.ID)
			continue
		}
		kept = append(kept, tx)
	}
	p.order = kept
}

// Size returns the number of pooled transactions.
func (p *Pool) Size() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	return len(p.order)
}

// Clear empties the pool.
func (p *Pool) Clear() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.order = nil
	p.index = make(map[string]*blockchain.Transaction)
}
