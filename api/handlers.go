package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"gridtokenx_go/blockchain"
	"gridtokenx_go/policy"
	"gridtokenx_go/utils"
)

// ApiResponse is the envelope every /api/v1 route answers with.
type ApiResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ChainStatus summarises the node for the status route.
type ChainStatus struct {
	NodeID              string  `json:"nodeId"`
	Height              uint64  `json:"height"`
	LatestBlockHash     string  `json:"latestBlockHash"`
	TotalTransactions   uint64  `json:"totalTransactions"`
	PendingTransactions int     `json:"pendingTransactions"`
	ActiveValidators    int     `json:"activeValidators"`
	Algorithm           string  `json:"algorithm"`
	AverageBlockTime    float64 `json:"averageBlockTime"`
	TotalEnergyTraded   float64 `json:"totalEnergyTraded"`
}

// RegisterValidatorRequest is the payload for validator registration.
type RegisterValidatorRequest struct {
	Address string `json:"address"`
	Stake   uint64 `json:"stake"`
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeResponse(w, status, ApiResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, format string, args ...interface{}) {
	writeResponse(w, status, ApiResponse{Success: false, Error: fmt.Sprintf(format, args...)})
}

func writeResponse(w http.ResponseWriter, status int, resp ApiResponse) {
	resp.Timestamp = time.Now().UTC()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		utils.LogError("Failed to encode API response: %v", err)
	}
}

// StatusHandler reports the chain head and node-level counters.
func (s *Server) StatusHandler(w http.ResponseWriter, r *http.Request) {
	stats := s.chain.Stats()

	status := ChainStatus{
		NodeID:              s.nodeID,
		Height:              stats.Height,
		TotalTransactions:   stats.TotalTransactions,
		PendingTransactions: s.chain.PendingCount(),
		ActiveValidators:    s.engine.Validators().ActiveCount(),
		Algorithm:           string(s.engine.Algorithm()),
		AverageBlockTime:    stats.AverageBlockTime,
		TotalEnergyTraded:   stats.TotalEnergyTraded,
	}
	if latest, err := s.chain.LatestBlock(); err == nil {
		status.LatestBlockHash = latest.Header.Hash
	}

	writeData(w, http.StatusOK, status)
}

// BlockByHeightHandler returns the block at the requested height.
func (s *Server) BlockByHeightHandler(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["height"]
	height, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid block height: %s", raw)
		return
	}

	block, err := s.chain.BlockByHeight(height)
	if err != nil {
		if errors.Is(err, blockchain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "block %d not found", height)
			return
		}
		utils.LogError("Failed to load block %d: %v", height, err)
		writeError(w, http.StatusInternalServerError, "failed to load block %d", height)
		return
	}

	writeData(w, http.StatusOK, block)
}

// BlockByHashHandler returns the block with the requested hash.
func (s *Server) BlockByHashHandler(w http.ResponseWriter, r *http.Request) {
	hash := mux.Vars(r)["hash"]

	block, err := s.chain.BlockByHash(hash)
	if err != nil {
		if errors.Is(err, blockchain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "block %s not found", hash)
			return
		}
		utils.LogError("Failed to load block %s: %v", hash, err)
		writeError(w, http.StatusInternalServerError, "failed to load block %s", hash)
		return
	}

	writeData(w, http.StatusOK, block)
}

// SubmitTransactionHandler admits a transaction to the pending pool. The id,
// timestamp and gas defaults are filled when the client leaves them empty.
func (s *Server) SubmitTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var tx blockchain.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		utils.LogError("Error decoding transaction: %v", err)
		writeError(w, http.StatusBadRequest, "invalid transaction payload: %v", err)
		return
	}
	defer r.Body.Close()

	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	if tx.GasLimit == 0 {
		tx.GasLimit = blockchain.DefaultGasLimit
	}
	if tx.GasPrice == 0 {
		tx.GasPrice = blockchain.DefaultGasPrice
	}

	if err := s.chain.AddPendingTransaction(&tx); err != nil {
		writeError(w, http.StatusBadRequest, "failed to submit transaction: %v", err)
		return
	}

	utils.LogInfo("Transaction %s admitted to pending pool", tx.ID)
	writeData(w, http.StatusCreated, tx.ID)
}

// PendingTransactionsHandler lists pooled transactions in arrival order. An
// optional limit query parameter bounds the result.
func (s *Server) PendingTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit: %s", raw)
			return
		}
		limit = parsed
	}

	writeData(w, http.StatusOK, s.chain.PendingTransactions(limit))
}

// AccountHandler returns the account at the requested address.
func (s *Server) AccountHandler(w http.ResponseWriter, r *http.Request) {
	address := mux.Vars(r)["address"]

	account, exists := s.chain.Account(address)
	if !exists {
		writeError(w, http.StatusNotFound, "account %s not found", address)
		return
	}

	writeData(w, http.StatusOK, account)
}

// ValidatorsHandler lists registered block producers, active first.
func (s *Server) ValidatorsHandler(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.engine.Validators().All())
}

// RegisterValidatorHandler admits a block producer into the rotation.
func (s *Server) RegisterValidatorHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterValidatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.LogError("Error decoding validator registration: %v", err)
		writeError(w, http.StatusBadRequest, "invalid registration payload: %v", err)
		return
	}
	defer r.Body.Close()

	if req.Address == "" {
		writeError(w, http.StatusBadRequest, "validator address cannot be empty")
		return
	}

	if err := s.engine.RegisterValidator(req.Address, req.Stake); err != nil {
		writeError(w, http.StatusBadRequest, "failed to register validator: %v", err)
		return
	}

	validator, _ := s.engine.Validators().Get(req.Address)
	utils.LogInfo("Validator %s registered via API with stake %d", req.Address, req.Stake)
	writeData(w, http.StatusCreated, validator)
}

// ConsensusHandler reports consensus round progress.
func (s *Server) ConsensusHandler(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.engine.Metrics())
}

// EnergyStatsHandler reports the market-level trading view.
func (s *Server) EnergyStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.chain.EnergyStats())
}

// EnergyTradesHandler lists settled trades.
func (s *Server) EnergyTradesHandler(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.chain.MatchedTrades())
}

// RegionalPriceSignal extends the indicative price signal with the tariff
// applied in a given distribution region.
type RegionalPriceSignal struct {
	blockchain.PriceSignal
	Region           string  `json:"region"`
	TariffMultiplier float64 `json:"tariffMultiplier"`
	RegionalPrice    float64 `json:"regionalPrice"`
}

// EnergyPriceHandler serves the indicative market price derived from open
// order volume. An optional region query adds the regional tariff view.
func (s *Server) EnergyPriceHandler(w http.ResponseWriter, r *http.Request) {
	signal := s.chain.PriceSignal()

	region := r.URL.Query().Get("region")
	if region == "" {
		writeData(w, http.StatusOK, signal)
		return
	}

	multiplier := policy.TariffMultiplier(region)
	writeData(w, http.StatusOK, RegionalPriceSignal{
		PriceSignal:      signal,
		Region:           region,
		TariffMultiplier: multiplier,
		RegionalPrice:    signal.IndicativePrice * multiplier,
	})
}

// ProposalsHandler lists governance proposals, oldest first.
func (s *Server) ProposalsHandler(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, s.chain.Proposals())
}

// ProposalHandler returns one governance proposal with its votes.
func (s *Server) ProposalHandler(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	proposal, exists := s.chain.Proposal(id)
	if !exists {
		writeError(w, http.StatusNotFound, "proposal %s not found", id)
		return
	}

	writeData(w, http.StatusOK, proposal)
}
