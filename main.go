package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"gridtokenx_go/api"
	"gridtokenx_go/blockchain"
	"gridtokenx_go/config"
	"gridtokenx_go/consensus"
	"gridtokenx_go/events"
	"gridtokenx_go/mempool"
	"gridtokenx_go/policy"
	"gridtokenx_go/security"
	"gridtokenx_go/state"
	"gridtokenx_go/storage"
	"gridtokenx_go/utils"
)

const (
	// initialTokenSupply is minted to the system account at genesis.
	initialTokenSupply = 1_000_000_000
	genesisExtraData   = "GridTokenX Genesis Block - Thai Energy Market"

	passphraseEnvVar = "GRIDNODE_KEY_PASSPHRASE"
	shutdownTimeout  = 10 * time.Second
)

var (
	configFile string
	mining     bool
	algorithm  string
	nodeType   string
)

func main() {
	// Local overrides such as GRIDNODE_KEY_PASSPHRASE live in a .env file
	// during development.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			utils.LogWarn("Failed to load .env file: %v", err)
		}
	}

	rootCmd := &cobra.Command{
		Use:   "gridnode",
		Short: "GridTokenX blockchain node for peer-to-peer energy trading",
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file path (YAML)")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the blockchain node",
		RunE:  runStart,
	}
	startCmd.Flags().BoolVar(&mining, "mining", true, "propose blocks as a validator")
	startCmd.Flags().StringVar(&algorithm, "algorithm", "", "consensus algorithm override (stake, authority, work, hybrid)")
	startCmd.Flags().StringVar(&nodeType, "node-type", "", "node type override (validator, trader, observer)")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Initialise a new blockchain with the Thai energy market genesis",
		RunE:  runInit,
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show node status",
		RunE:  runStatus,
	}

	walletCmd := &cobra.Command{
		Use:   "generate-wallet",
		Short: "Generate a new wallet keypair",
		RunE:  runGenerateWallet,
	}

	rootCmd.AddCommand(startCmd, initCmd, statusCmd, walletCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadNodeConfig reads the configuration file when one is given and falls
// back to the built-in defaults otherwise.
func loadNodeConfig() (*config.Config, error) {
	if configFile == "" {
		return config.GetDefaultConfig(), nil
	}
	return config.LoadConfig(configFile)
}

// chainConfig maps the energy section of the node configuration onto the
// market rules, keeping defaults for anything left unset.
func chainConfig(energy *config.EnergyConfig) blockchain.ChainConfig {
	cfg := blockchain.DefaultChainConfig()
	if energy == nil {
		return cfg
	}
	if energy.MaxBlockKWh > 0 {
		cfg.Rules.MaxBlockEnergyKWh = energy.MaxBlockKWh
	}
	if energy.MaxTradeKWh > 0 {
		cfg.Rules.MaxTradeKWh = energy.MaxTradeKWh
	}
	if energy.MinPriceTokens > 0 {
		cfg.Rules.MinPriceTokens = energy.MinPriceTokens
	}
	if energy.MaxPriceTokens > 0 {
		cfg.Rules.MaxPriceTokens = energy.MaxPriceTokens
	}
	if energy.BasePriceTokens > 0 {
		cfg.Rules.BasePriceTokens = energy.BasePriceTokens
		cfg.Pricing.BalanceTokens = float64(energy.BasePriceTokens)
	}
	if energy.MaxAvgDeviationPc > 0 {
		cfg.Rules.MaxAvgDeviationPct = energy.MaxAvgDeviationPc
	}
	return cfg
}

// openChain opens the configured storage backend and restores the chain
// over it. The caller owns the returned storage handle.
func openChain(cfg *config.Config) (*blockchain.Chain, blockchain.Storage, error) {
	chainCfg := chainConfig(cfg.Energy)
	if cfg.Energy != nil && cfg.Energy.ComplianceRulesFile != "" {
		rules, err := policy.LoadComplianceRules(cfg.Energy.ComplianceRulesFile)
		if err != nil {
			return nil, nil, err
		}
		engine, err := policy.NewComplianceEngine(rules)
		if err != nil {
			return nil, nil, err
		}
		chainCfg.Compliance = engine
		utils.LogInfo("Loaded %d compliance rules from %s", len(rules), cfg.Energy.ComplianceRulesFile)
	}

	store, err := storage.Open(*cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	chain, err := blockchain.NewChain(store, mempool.New(0), state.NewManager(), chainCfg)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return chain, store, nil
}

// newGenesisBlock assembles the height-zero block for the Thai energy
// market: the initial token issuance plus the three national grid
// authorities.
func newGenesisBlock() (*blockchain.Block, error) {
	transactions := []*blockchain.Transaction{
		blockchain.NewGenesisMint(blockchain.SystemAddress, initialTokenSupply,
			"Initial token supply for Thai energy market"),
		blockchain.NewAuthorityRegistration("EGAT", "Primary electricity generator", "GENERATOR"),
		blockchain.NewAuthorityRegistration("MEA", "Bangkok and surrounding areas distribution", "DISTRIBUTOR"),
		blockchain.NewAuthorityRegistration("PEA", "Provincial electricity distribution", "DISTRIBUTOR"),
	}
	return blockchain.NewGenesisBlock(transactions, genesisExtraData)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadNodeConfig()
	if err != nil {
		return err
	}
	if nodeType != "" {
		cfg.Node.Type = nodeType
	}
	if algorithm != "" {
		cfg.Consensus.Algorithm = algorithm
	}

	if err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}
	utils.LogInfo("Starting GridTokenX node %s", cfg.Node.ID)

	if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	chain, store, err := openChain(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if chain.Height() == 0 {
		utils.LogInfo("No genesis block found, creating one")
		genesis, err := newGenesisBlock()
		if err != nil {
			return fmt.Errorf("failed to build genesis block: %w", err)
		}
		if err := chain.AddGenesisBlock(genesis); err != nil {
			return err
		}
	}

	passphrase := cfg.Node.Passkey
	if passphrase == "" {
		passphrase = os.Getenv(passphraseEnvVar)
	}
	if passphrase == "" {
		return fmt.Errorf("node key passphrase not set: configure node.passkey or export %s", passphraseEnvVar)
	}
	signer, err := security.NewLocalSigner(filepath.Join(cfg.Node.DataDir, cfg.Node.KeyFile), passphrase)
	if err != nil {
		return fmt.Errorf("failed to open node key: %w", err)
	}

	stream := events.NewBlockStream()
	var publisher events.Publisher = stream
	if cfg.Events.KafkaEnabled {
		kafka, err := events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		if err != nil {
			return fmt.Errorf("failed to connect block publisher: %w", err)
		}
		publisher = events.MultiPublisher{stream, kafka}
	}
	defer publisher.Close()

	engine, err := consensus.NewEngine(chain, signer, publisher, cfg.Consensus)
	if err != nil {
		return err
	}

	if mining {
		stake := chain.Balance(signer.Address())
		if stake < cfg.Consensus.MinValidatorStake {
			stake = cfg.Consensus.MinValidatorStake
		}
		if err := engine.RegisterValidator(signer.Address(), stake); err != nil {
			return fmt.Errorf("failed to register local validator: %w", err)
		}
		utils.LogInfo("Mining enabled: validator %s staked %d", signer.Address(), stake)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engineDone := make(chan error, 1)
	if mining {
		go func() { engineDone <- engine.Run(ctx) }()
	}

	var server *api.Server
	serverDone := make(chan error, 1)
	if cfg.API.Enabled {
		server, err = api.NewServer(cfg.API, cfg.Node.ID, chain, engine, stream)
		if err != nil {
			return err
		}
		go func() { serverDone <- server.Start() }()
		utils.PrintStartupMessage(cfg.Node.ID, cfg.API.Port)
	}

	utils.LogInfo("Node type: %s", cfg.Node.Type)
	utils.LogInfo("Consensus algorithm: %s", engine.Algorithm())
	utils.LogInfo("Current blockchain height: %d", chain.Height())

	var runErr error
	select {
	case <-ctx.Done():
		utils.LogInfo("Shutdown signal received, stopping node")
	case err := <-serverDone:
		stop()
		serverDone = nil
		if err != nil {
			runErr = fmt.Errorf("api server failed: %w", err)
		}
	case err := <-engineDone:
		stop()
		engineDone = nil
		if err != nil && !errors.Is(err, context.Canceled) {
			runErr = fmt.Errorf("consensus engine failed: %w", err)
		}
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		if err := server.Shutdown(shutdownCtx); err != nil {
			utils.LogError("API server shutdown error: %v", err)
		}
		cancel()
		if serverDone != nil {
			<-serverDone
		}
	}
	if mining && engineDone != nil {
		if err := <-engineDone; err != nil && !errors.Is(err, context.Canceled) {
			utils.LogError("Consensus engine stopped with error: %v", err)
		}
	}

	utils.LogInfo("Node shut down cleanly")
	return runErr
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadNodeConfig()
	if err != nil {
		return err
	}
	if err := utils.InitLogger(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	chain, store, err := openChain(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if height := chain.Height(); height > 0 {
		return fmt.Errorf("chain already initialised at height %d", height)
	}

	genesis, err := newGenesisBlock()
	if err != nil {
		return fmt.Errorf("failed to build genesis block: %w", err)
	}
	if err := chain.AddGenesisBlock(genesis); err != nil {
		return err
	}

	fmt.Printf("Genesis block %s created with %d transactions\n",
		genesis.Header.Hash, len(genesis.Transactions))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadNodeConfig()
	if err != nil {
		return err
	}

	fmt.Println("GridTokenX Blockchain Node Status")
	fmt.Println(strings.Repeat("=", 50))

	store, err := storage.Open(*cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	stats, err := store.LoadStats()
	if errors.Is(err, storage.ErrNotFound) {
		fmt.Println("No chain data found: run gridnode init first")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load chain stats: %w", err)
	}

	fmt.Printf("%-22s %d\n", "Blockchain Height:", stats.Height)
	fmt.Printf("%-22s %d\n", "Total Transactions:", stats.TotalTransactions)
	fmt.Printf("%-22s %.1f kWh\n", "Total Energy Traded:", stats.TotalEnergyTraded)
	fmt.Printf("%-22s %d\n", "Tokens In Circulation:", stats.TotalTokensCirculation)

	if stats.Height > 0 {
		latest, err := store.LoadBlockByHeight(stats.Height - 1)
		if err != nil {
			return fmt.Errorf("failed to load latest block: %w", err)
		}
		fmt.Printf("%-22s %s\n", "Latest Block Hash:", latest.Header.Hash)
		fmt.Printf("%-22s %s\n", "Latest Block Time:", latest.Header.Timestamp.Format(time.RFC3339))
	}
	return nil
}

func runGenerateWallet(cmd *cobra.Command, args []string) error {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}

	fmt.Println("New GridTokenX Wallet Generated")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Address:     %s\n", hex.EncodeToString(publicKey))
	fmt.Printf("Private Key: %s\n", hex.EncodeToString(privateKey.Seed()))
	fmt.Println()
	fmt.Println("IMPORTANT: keep the private key secure and never share it.")
	fmt.Println("It controls access to your energy tokens.")
	return nil
}
