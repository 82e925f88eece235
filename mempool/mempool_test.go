package mempool

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridtokenx_go/blockchain"
)

func newPoolTx(from, to string, amount uint64) *blockchain.Transaction {
	return blockchain.NewTransfer(from, to, amount, 1, 0, "")
}

func TestPoolPreservesArrivalOrder(t *testing.T) {
	pool := New(10)

	var ids []string
	for i := 0; i < 5; i++ {
		tx := newPoolTx(fmt.Sprintf("sender-%d", i), "receiver", 100)
		require.NoError(t, pool.Add(tx))
		ids = append(ids, tx.ID)
	}

	pending := pool.Pending(3)
	require.Len(t, pending, 3)
	for i, tx := range pending {
		assert.Equal(t, ids[i], tx.ID)
	}

	all := pool.All()
	require.Len(t, all, 5)
	assert.Equal(t, ids[4], all[4].ID)
}

func TestPoolRejectsDuplicates(t *testing.T) {
	pool := New(10)
	tx := newPoolTx("alice", "bob", 100)

	require.NoError(t, pool.Add(tx))
	assert.ErrorIs(t, pool.Add(tx), ErrDuplicate)
	assert.Equal(t, 1, pool.Size())
}

func TestPoolEnforcesCapacity(t *testing.T) {
	pool := New(2)

	require.NoError(t, pool.Add(newPoolTx("a", "x", 1)))
	require.NoError(t, pool.Add(newPoolTx("b", "x", 1)))
	assert.ErrorIs(t, pool.Add(newPoolTx("c", "x", 1)), ErrPoolFull)
}

func TestPoolRemoveKeepsOrder(t *testing.T) {
	pool := New(10)

	first := newPoolTx("a", "x", 1)
	second := newPoolTx("b", "x", 1)
	third := newPoolTx("c", "x", 1)
	require.NoError(t, pool.Add(first))
	require.NoError(t, pool.Add(second))
	require.NoError(t, pool.Add(third))

	pool.Remove([]string{second.ID, "unknown-id"})

	remaining := pool.All()
	require.Len(t, remaining, 2)
	assert.Equal(t, first.ID, remaining[0].ID)
	assert.Equal(t, third.ID, remaining[1].ID)
	assert.False(t, pool.Contains(second.ID))

	// Removed slots free capacity again.
	assert.NoError(t, pool.Add(newPoolTx("d", "x", 1)))
}

func TestPoolGetAndClear(t *testing.T) {
	pool := New(10)
	tx := newPoolTx("alice", "bob", 42)
	require.NoError(t, pool.Add(tx))

	got, ok := pool.Get(tx.ID)
	require.True(t, ok)
	assert.Equal(t, tx.ID, got.ID)

	pool.Clear()
	assert.Equal(t, 0, pool.Size())
	_, ok = pool.Get(tx.ID)
	assert.False(t, ok)
}
