package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"gridtokenx_go/blockchain"
	"gridtokenx_go/state"
	"gridtokenx_go/utils"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS blocks (
	height BIGINT PRIMARY KEY,
	hash   TEXT NOT NULL UNIQUE,
	data   JSONB NOT NULL
);
CREATE TABLE IF NOT EXISTS chain_state (
	key  TEXT PRIMARY KEY,
	data JSONB NOT NULL
);`

// PostgresStore persists chain data in PostgreSQL for deployments where
// several services read the same ledger.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres connects to the database named by dsn and ensures the schema
// exists.
func NewPostgres(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN cannot be empty")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %v", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach postgres: %v", err)
	}
	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %v", err)
	}

	utils.LogInfo("Chain database connected via postgres")

	return &PostgresStore{db: db}, nil
}

// StoreBlock upserts a block row keyed by height.
func (s *PostgresStore) StoreBlock(block *blockchain.Block) error {
	data, err := marshalBlock(block)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO blocks (height, hash, data) VALUES ($1, $2, $3)
		 ON CONFLICT (height) DO UPDATE SET hash = EXCLUDED.hash, data = EXCLUDED.data`,
		int64(block.Header.Height), block.Header.Hash, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save block: %v", err)
	}
	return nil
}

// LoadBlockByHeight returns the block stored at the given height.
func (s *PostgresStore) LoadBlockByHeight(height uint64) (*blockchain.Block, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM blocks WHERE height = $1`, int64(height)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("block at height %d: %w", height, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve block: %v", err)
	}
	return unmarshalBlock(data)
}

// LoadBlockByHash returns the block with the given hash.
func (s *PostgresStore) LoadBlockByHash(hash string) (*blockchain.Block, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM blocks WHERE hash = $1`, hash).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("block with hash %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve block: %v", err)
	}
	return unmarshalBlock(data)
}

func (s *PostgresStore) storeState(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %v", key, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO chain_state (key, data) VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET data = EXCLUDED.data`,
		key, data,
	)
	if err != nil {
		return fmt.Errorf("failed to save %s: %v", key, err)
	}
	return nil
}

func (s *PostgresStore) loadState(key string, target any) error {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM chain_state WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to retrieve %s: %v", key, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %v", key, err)
	}
	return nil
}

// StoreAccounts persists the full account set.
func (s *PostgresStore) StoreAccounts(accounts map[string]*state.Account) error {
	return s.storeState(accountsKey, accounts)
}

// LoadAccounts returns the persisted account set.
func (s *PostgresStore) LoadAccounts() (map[string]*state.Account, error) {
	var accounts map[string]*state.Account
	if err := s.loadState(accountsKey, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// StoreStats persists the chain statistics.
func (s *PostgresStore) StoreStats(stats blockchain.BlockchainStats) error {
	return s.storeState(statsKey, stats)
}

// LoadStats returns the persisted chain statistics.
func (s *PostgresStore) LoadStats() (blockchain.BlockchainStats, error) {
	var stats blockchain.BlockchainStats
	if err := s.loadState(statsKey, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// LatestHeight returns the height of the newest stored block.
func (s *PostgresStore) LatestHeight() (uint64, error) {
	var height sql.NullInt64
	if err := s.db.QueryRow(`SELECT MAX(height) FROM blocks`).Scan(&height); err != nil {
		return 0, fmt.Errorf("failed to retrieve latest height: %v", err)
	}
	if !height.Valid {
		return 0, fmt.Errorf("latest height: %w", ErrNotFound)
	}
	return uint64(height.Int64), nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
