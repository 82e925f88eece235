package contracts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Contract is a deployed bytecode record. Execution happens off-chain; the
// ledger tracks deployments and call history.
type Contract struct {
	Address         string    `json:"address"`
	Owner           string    `json:"owner"`
	CodeHash        string    `json:"codeHash"`
	Bytecode        []byte    `json:"bytecode"`
	ConstructorArgs []string  `json:"constructorArgs,omitempty"`
	DeployedAt      time.Time `json:"deployedAt"`
	LastExecutedAt  time.Time `json:"lastExecutedAt,omitempty"`
	ExecutionCount  uint64    `json:"executionCount"`
}

// Execution records one contract call.
type Execution struct {
	ContractAddress string    `json:"contractAddress"`
	Method          string    `json:"method"`
	Caller          string    `json:"caller"`
	Args            []string  `json:"args,omitempty"`
	ExecutedAt      time.Time `json:"executedAt"`
}

// Registry tracks deployed contracts and their call history.
type Registry struct {
	mutex      sync.RWMutex
	contracts  map[string]*Contract
	executions []Execution
}

// NewRegistry creates an empty contract registry.
func NewRegistry() *Registry {
	return &Registry{
		contracts: make(map[string]*Contract),
	}
}

// GenerateAddress derives a contract address from its creator, the
// creator's nonce and the deployment time.
func GenerateAddress(owner string, nonce uint64, deployedAt time.Time) string {
	data := fmt.Sprintf("%s:%d:%s", owner, nonce, deployedAt.Format(time.RFC3339))
	hash := sha256.Sum256([]byte(data))
	return "contract-" + hex.EncodeToString(hash[:])[:40]
}

// Deploy registers a new contract and returns its record.
func (r *Registry) Deploy(owner string, nonce uint64, bytecode []byte, constructorArgs []string, deployedAt time.Time) (*Contract, error) {
	if len(bytecode) == 0 {
		return nil, fmt.Errorf("contract bytecode cannot be empty")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	codeHash := sha256.Sum256(bytecode)
	contract := &Contract{
		Address:         GenerateAddress(owner, nonce, deployedAt),
		Owner:           owner,
		CodeHash:        hex.EncodeToString(codeHash[:]),
		Bytecode:        bytecode,
		ConstructorArgs: constructorArgs,
		DeployedAt:      deployedAt,
	}
	r.contracts[contract.Address] = contract
	return contract, nil
}

// Get returns a contract by address.
func (r *Registry) Get(address string) (*Contract, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	contract, exists := r.contracts[address]
	if !exists {
		return nil, fmt.Errorf("contract not found: %s", address)
	}
	return contract, nil
}

// RecordExecution appends a call record for a deployed contract.
func (r *Registry) RecordExecution(address, method, caller string, args []string, executedAt time.Time) error {
	if method == "" {
		return fmt.Errorf("method name is required")
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	contract, exists := r.contracts[address]
	if !exists {
		return fmt.Errorf("contract not found: %s", address)
	}
	contract.LastExecutedAt = executedAt
	contract.ExecutionCount++

	r.executions = append(r.executions, Execution{
		ContractAddress: address,
		Method:          method,
		Caller:          caller,
		Args:            args,
		ExecutedAt:      executedAt,
	})
	return nil
}

// Executions returns the call history for one contract.
func (r *Registry) Executions(address string) []Execution {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	var calls []Execution
	for _, exec := range r.executions {
		if exec.ContractAddress == address {
			calls = append(calls, exec)
		}
	}
	return calls
}

// Count returns the number of deployed contracts.
func (r *Registry) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.contracts)
}
