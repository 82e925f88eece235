// Package api exposes the node over HTTP: chain queries, transaction
// submission, validator registration and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"gridtokenx_go/blockchain"
	"gridtokenx_go/config"
	"gridtokenx_go/consensus"
	"gridtokenx_go/events"
	"gridtokenx_go/metrics"
	"gridtokenx_go/utils"
)

// Server is the HTTP front of a node. All routes below /api/v1 answer with
// an ApiResponse envelope; /ping and /metrics sit at the root.
type Server struct {
	Router *mux.Router

	chain  *blockchain.Chain
	engine *consensus.Engine
	stream *events.BlockStream
	nodeID string

	httpServer *http.Server
}

// NewServer builds the API server and registers its routes. The stream is
// optional; without one the websocket route answers 503.
func NewServer(cfg *config.APIConfig, nodeID string, chain *blockchain.Chain, engine *consensus.Engine, stream *events.BlockStream) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("api config cannot be nil")
	}
	if chain == nil {
		return nil, fmt.Errorf("chain cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("consensus engine cannot be nil")
	}

	s := &Server{
		Router: mux.NewRouter(),
		chain:  chain,
		engine: engine,
		stream: stream,
		nodeID: nodeID,
	}
	s.setupRoutes()

	s.httpServer = &http.Server{
		Handler:      s.Router,
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}
	return s, nil
}

func (s *Server) setupRoutes() {
	s.Router.HandleFunc("/ping", s.PingHandler).Methods("GET")
	s.Router.Handle("/metrics", metrics.Handler()).Methods("GET")

	v1 := s.Router.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/status", s.StatusHandler).Methods("GET")
	v1.HandleFunc("/blocks/hash/{hash}", s.BlockByHashHandler).Methods("GET")
	v1.HandleFunc("/blocks/{height:[0-9]+}", s.BlockByHeightHandler).Methods("GET")

	v1.HandleFunc("/transactions", s.SubmitTransactionHandler).Methods("POST")
	v1.HandleFunc("/transactions/pending", s.PendingTransactionsHandler).Methods("GET")

	v1.HandleFunc("/accounts/{address}", s.AccountHandler).Methods("GET")

	v1.HandleFunc("/validators", s.ValidatorsHandler).Methods("GET")
	v1.HandleFunc("/validators", s.RegisterValidatorHandler).Methods("POST")
	v1.HandleFunc("/consensus", s.ConsensusHandler).Methods("GET")

	v1.HandleFunc("/energy/stats", s.EnergyStatsHandler).Methods("GET")
	v1.HandleFunc("/energy/trades", s.EnergyTradesHandler).Methods("GET")
	v1.HandleFunc("/energy/price", s.EnergyPriceHandler).Methods("GET")

	v1.HandleFunc("/ws/blocks", s.BlockStreamHandler).Methods("GET")

	v1.HandleFunc("/governance/proposals", s.ProposalsHandler).Methods("GET")
	v1.HandleFunc("/governance/proposals/{id}", s.ProposalHandler).Methods("GET")
}

// Start serves HTTP until Shutdown is called. A closed-server error is
// absorbed so callers see nil on a clean stop.
func (s *Server) Start() error {
	utils.LogInfo("API server listening on %s", s.httpServer.Addr)

	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	utils.LogInfo("API server shutting down")
	return s.httpServer.Shutdown(ctx)
}

// PingHandler answers liveness probes.
func (s *Server) PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "Node %s is alive", s.nodeID)
	utils.LogDebug("Received ping from %s", r.RemoteAddr)
}
