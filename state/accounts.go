package state

import (
	"fmt"
	"sync"
	"time"

	"gridtokenx_go/utils"
)

// AccountType classifies a participant in the energy market.
type AccountType string

const (
	AccountProducer  AccountType = "PRODUCER"
	AccountConsumer  AccountType = "CONSUMER"
	AccountTrader    AccountType = "TRADER"
	AccountAuthority AccountType = "AUTHORITY"
	AccountProsumer  AccountType = "PROSUMER"
)

// ComplianceStatus tracks regulatory standing of an account.
type ComplianceStatus string

const (
	ComplianceCompliant    ComplianceStatus = "COMPLIANT"
	CompliancePending      ComplianceStatus = "PENDING"
	ComplianceNonCompliant ComplianceStatus = "NON_COMPLIANT"
	ComplianceSuspended    ComplianceStatus = "SUSPENDED"
)

// Default values assigned to lazily created accounts.
const (
	DefaultReputation   = 50.0
	AuthorityReputation = 100.0
)

// Account holds the ledger state for one address. Accounts are mutated only
// by the chain's per-block state transition.
type Account struct {
	Address            string           `json:"address"`
	TokenBalance       uint64           `json:"tokenBalance"`
	ProductionCapacity float64          `json:"productionCapacity"` // kW
	ConsumptionDemand  float64          `json:"consumptionDemand"`  // kW
	AccountType        AccountType      `json:"accountType"`
	CarbonCredits      float64          `json:"carbonCredits"`
	ReputationScore    float64          `json:"reputationScore"`
	RegisteredAt       time.Time        `json:"registeredAt"`
	LastActivity       time.Time        `json:"lastActivity"`
	ComplianceStatus   ComplianceStatus `json:"complianceStatus"`
}

// Manager is the account table. All access goes through its lock so reads
// observe a consistent snapshot while blocks are being applied.
type Manager struct {
	mutex    sync.RWMutex
	accounts map[string]*Account
}

// NewManager creates an empty account table.
func NewManager() *Manager {
	return &Manager{accounts: make(map[string]*Account)}
}

// newAccount builds a fresh account with consumer defaults.
func newAccount(address string, now time.Time) *Account {
	return &Account{
		Address:          address,
		TokenBalance:     0,
		AccountType:      AccountConsumer,
		ReputationScore:  DefaultReputation,
		RegisteredAt:     now,
		LastActivity:     now,
		ComplianceStatus: CompliancePending,
	}
}

// getOrCreateLocked returns the account for address, creating it lazily.
// Caller must hold the write lock.
func (m *Manager) getOrCreateLocked(address string, now time.Time) *Account {
	if account, exists := m.accounts[address]; exists {
		return account
	}
	account := newAccount(address, now)
	m.accounts[address] = account
	utils.LogDebug("New account created: %s", address)
	return account
}

// GetOrCreate returns the account for address, creating it lazily with
// consumer defaults on first use.
func (m *Manager) GetOrCreate(address string) *Account {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.getOrCreateLocked(address, time.Now().UTC())
}

// Get returns the account for address, or false when it does not exist.
func (m *Manager) Get(address string) (*Account, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	account, exists := m.accounts[address]
	if !exists {
		return nil, false
	}
	copy := *account
	return &copy, true
}

// Exists reports whether an account has been created for address.
func (m *Manager) Exists(address string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	_, exists := m.accounts[address]
	return exists
}

// Balance returns the token balance for address, zero when absent.
func (m *Manager) Balance(address string) uint64 {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if account, exists := m.accounts[address]; exists {
		return account.TokenBalance
	}
	return 0
}

// Credit adds amount to the account for address, creating it if needed.
func (m *Manager) Credit(address string, amount uint64, at time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	account := m.getOrCreateLocked(address, at)
	account.TokenBalance += amount
	account.LastActivity = at
}

// Debit removes amount from the account for address. The account must exist
// and hold at least amount.
func (m *Manager) Debit(address string, amount uint64, at time.Time) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	account, exists := m.accounts[address]
	if !exists {
		return fmt.Errorf("account does not exist: %s", address)
	}
	if account.TokenBalance < amount {
		return fmt.Errorf("insufficient balance: %s has %d, needs %d",
			address, account.TokenBalance, amount)
	}
	account.TokenBalance -= amount
	account.LastActivity = at
	return nil
}

// AddCarbonCredits adds credits to the account for address, creating it if
// needed.
func (m *Manager) AddCarbonCredits(address string, credits float64, at time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	account := m.getOrCreateLocked(address, at)
	account.CarbonCredits += credits
	account.LastActivity = at
}

// RegisterAuthority creates or upgrades the account for address into a
// compliant authority.
func (m *Manager) RegisterAuthority(address string, at time.Time) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	account := m.getOrCreateLocked(address, at)
	account.AccountType = AccountAuthority
	account.ReputationScore = AuthorityReputation
	account.ComplianceStatus = ComplianceCompliant
	account.LastActivity = at
}

// CountByType returns the number of accounts of the given type.
func (m *Manager) CountByType(accountType AccountType) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	count := 0
	for _, account := range m.accounts {
		if account.AccountType == accountType {
			count++
		}
	}
	return count
}

// Len returns the number of accounts.
func (m *Manager) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.accounts)
}

// Snapshot deep-copies the account table for persistence.
func (m *Manager) Snapshot() map[string]*Account {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	snapshot := make(map[string]*Account, len(m.accounts))
	for address, account := range m.accounts {
		copy := *account
		snapshot[address] = &copy
	}
	return snapshot
}

// Load replaces the account table with the given map, typically read back
// from storage at startup.
func (m *Manager) Load(accounts map[string]*Account) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.accounts = make(map[string]*Account, len(accounts))
	for address, account := range accounts {
		copy := *account
		m.accounts[address] = &copy
	}
}
