package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateDefaults(t *testing.T) {
	m := NewManager()

	account := m.GetOrCreate("alice")
	require.NotNil(t, account)
	assert.Equal(t, "alice", account.Address)
	assert.Equal(t, uint64(0), account.TokenBalance)
	assert.Equal(t, AccountConsumer, account.AccountType)
	assert.Equal(t, DefaultReputation, account.ReputationScore)
	assert.Equal(t, CompliancePending, account.ComplianceStatus)

	// Second call returns the same account, not a fresh one.
	again := m.GetOrCreate("alice")
	assert.Same(t, account, again)
	assert.Equal(t, 1, m.Len())
}

func TestCreditCreatesLazily(t *testing.T) {
	m := NewManager()
	now := time.Now().UTC()

	assert.False(t, m.Exists("bob"))
	m.Credit("bob", 500, now)
	assert.True(t, m.Exists("bob"))
	assert.Equal(t, uint64(500), m.Balance("bob"))

	account, ok := m.Get("bob")
	require.True(t, ok)
	assert.Equal(t, AccountConsumer, account.AccountType)
}

func TestDebit(t *testing.T) {
	m := NewManager()
	now := time.Now().UTC()
	m.Credit("alice", 1000, now)

	require.NoError(t, m.Debit("alice", 400, now))
	assert.Equal(t, uint64(600), m.Balance("alice"))

	err := m.Debit("alice", 601, now)
	assert.ErrorContains(t, err, "insufficient balance")
	assert.Equal(t, uint64(600), m.Balance("alice"))

	err = m.Debit("ghost", 1, now)
	assert.ErrorContains(t, err, "account does not exist")
}

func TestBalanceDefaultsToZero(t *testing.T) {
	m := NewManager()
	assert.Equal(t, uint64(0), m.Balance("nobody"))
}

func TestRegisterAuthority(t *testing.T) {
	m := NewManager()
	now := time.Now().UTC()

	m.RegisterAuthority("EGAT", now)
	account, ok := m.Get("EGAT")
	require.True(t, ok)
	assert.Equal(t, AccountAuthority, account.AccountType)
	assert.Equal(t, AuthorityReputation, account.ReputationScore)
	assert.Equal(t, ComplianceCompliant, account.ComplianceStatus)

	assert.Equal(t, 1, m.CountByType(AccountAuthority))
	assert.Equal(t, 0, m.CountByType(AccountProducer))
}

func TestCarbonCredits(t *testing.T) {
	m := NewManager()
	now := time.Now().UTC()

	m.AddCarbonCredits("solar-farm", 12.5, now)
	m.AddCarbonCredits("solar-farm", 2.5, now)

	account, ok := m.Get("solar-farm")
	require.True(t, ok)
	assert.InDelta(t, 15.0, account.CarbonCredits, 1e-9)
}

func TestSnapshotAndLoad(t *testing.T) {
	m := NewManager()
	now := time.Now().UTC()
	m.Credit("alice", 100, now)
	m.RegisterAuthority("MEA", now)

	snapshot := m.Snapshot()
	require.Len(t, snapshot, 2)

	// Mutating the snapshot must not leak into the manager.
	snapshot["alice"].TokenBalance = 9999
	assert.Equal(t, uint64(100), m.Balance("alice"))

	restored := NewManager()
	restored.Load(snapshot)
	assert.Equal(t, uint64(9999), restored.Balance("alice"))
	account, ok := restored.Get("MEA")
	require.True(t, ok)
	assert.Equal(t, AccountAuthority, account.AccountType)
}
