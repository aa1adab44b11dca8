// Command liquidator is the operator surface (C13): a Cobra CLI exposing
// `run` (start the coordinator's full scan/trigger/execute loop) and
// `status` (print a one-shot snapshot without starting the scheduler),
// generalizing the teacher's bare `cmd/main.go` bootstrap (private key
// decrypt, config load, client dial, reportChan loop) into a proper
// subcommand surface.
package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/claucondor/more-liquidation-bot/internal/blacklist"
	"github.com/claucondor/more-liquidation-bot/internal/cache"
	"github.com/claucondor/more-liquidation-bot/internal/config"
	"github.com/claucondor/more-liquidation-bot/internal/coordinator"
	"github.com/claucondor/more-liquidation-bot/internal/executor"
	"github.com/claucondor/more-liquidation-bot/internal/multicall"
	"github.com/claucondor/more-liquidation-bot/internal/notify"
	"github.com/claucondor/more-liquidation-bot/internal/prepared"
	"github.com/claucondor/more-liquidation-bot/internal/probe"
	"github.com/claucondor/more-liquidation-bot/internal/rpc"
	"github.com/claucondor/more-liquidation-bot/internal/scanner"
	"github.com/claucondor/more-liquidation-bot/internal/state"
	"github.com/claucondor/more-liquidation-bot/internal/store"
	"github.com/claucondor/more-liquidation-bot/internal/strategy"
	"github.com/claucondor/more-liquidation-bot/internal/tracker"
	"github.com/claucondor/more-liquidation-bot/pkg/util"
)

var (
	configPath string
	envPath    string
)

func main() {
	root := &cobra.Command{
		Use:   "liquidator",
		Short: "Automated Aave-v3-style liquidation agent",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "configs/config.yml", "path to config.yml")
	root.PersistentFlags().StringVar(&envPath, "env", ".env", "path to .env secrets file")

	root.AddCommand(newRunCmd(), newStatusCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the scanner/trigger/executor control loop",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			log := newLogger()
			co, err := bootstrap(ctx, log)
			if err != nil {
				return fmt.Errorf("bootstrap: %w", err)
			}
			return co.Run(ctx)
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the current block height, last saved block, and blacklist size, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := newLogger()

			cfg, err := config.Load(configPath, envPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			gw, err := rpc.Dial(ctx, rpc.DefaultConfig(cfg.RPC.PublicURL, cfg.RPC.PrivateURL), log)
			if err != nil {
				return fmt.Errorf("dial gateway: %w", err)
			}
			defer gw.Close()

			block, err := gw.BlockNumber(ctx)
			if err != nil {
				return fmt.Errorf("block number: %w", err)
			}

			snap, err := state.Load(cfg.StatePath)
			if err != nil {
				return fmt.Errorf("load state: %w", err)
			}

			fmt.Printf("chain head:        %d\n", block)
			fmt.Printf("last saved block:  %d (saved_at=%s)\n", snap.LastScannedBlock, snap.SavedAt.Format(time.RFC3339))
			fmt.Printf("blacklisted:       %d\n", len(snap.Blacklist))
			return nil
		},
	}
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}

// bootstrap wires every component the coordinator needs, mirroring the
// teacher's `cmd/main.go` boot sequence (decrypt key -> load config -> dial
// client -> construct dependents -> hand off to the long-running loop) but
// generalized across the full C1-C12 pipeline instead of one Blackhole
// struct.
func bootstrap(ctx context.Context, log zerolog.Logger) (*coordinator.Coordinator, error) {
	cfg, err := config.Load(configPath, envPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	pk, err := config.PrivateKeyFromEnv(util.Decrypt)
	if err != nil {
		return nil, fmt.Errorf("decrypt private key: %w", err)
	}
	privateKey, err := crypto.HexToECDSA(pk)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	from := crypto.PubkeyToAddress(*(privateKey.Public().(*ecdsa.PublicKey)))

	gw, err := rpc.Dial(ctx, rpc.Config{
		PublicURL:            cfg.RPC.PublicURL,
		PrivateURL:           cfg.RPC.PrivateURL,
		RetryAttempts:        cfg.RPC.RetryAttempts,
		RetryBaseWait:        cfg.RPC.RetryBaseWait(),
		BreakerOpenDuration:  cfg.RPC.BreakerOpenDuration(),
		ReconnectMaxAttempts: cfg.RPC.ReconnectMaxAttempts,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("dial gateway: %w", err)
	}

	multicallClient, err := multicall.NewClient(gw, common.HexToAddress(cfg.Contracts.Multicall3))
	if err != nil {
		return nil, fmt.Errorf("multicall client: %w", err)
	}

	indexer := scanner.NewIndexerClient(cfg.Indexer.Endpoint)
	scn, err := scanner.New(indexer, multicallClient, common.HexToAddress(cfg.Contracts.LendingPool))
	if err != nil {
		return nil, fmt.Errorf("scanner: %w", err)
	}

	prb, err := probe.New(multicallClient)
	if err != nil {
		return nil, fmt.Errorf("probe: %w", err)
	}

	trk := tracker.NewWithTTL(5 * time.Minute)
	prep := prepared.New(cfg.Sizing.PreparedTTL())
	bl := blacklist.New(cfg.Execution.MaxFailures, cfg.Execution.BlacklistCooldown())
	prices := cache.NewPriceCache(cfg.Sizing.PriceTTL())

	snap, err := state.Load(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	bl.Restore(snap.Blacklist)

	exec, err := executor.New(gw, executor.Config{
		From:            from,
		PrivateKey:      privateKey,
		ContractAddress: cfg.LiquidationVaultAddress(),
		PoolAddress:     common.HexToAddress(cfg.Contracts.LendingPool),
		ChainID:         cfg.RPC.ChainIDBig(),
		GasLimit:        cfg.Execution.GasLimit,
		MaxGasPriceWei:  cfg.Execution.MaxGasPriceWei(),
		MaxSlippageBp:   cfg.Execution.MaxSlippageBp,
	}, prep, trk, bl, log)
	if err != nil {
		return nil, fmt.Errorf("executor: %w", err)
	}

	var recorder *store.Recorder
	if cfg.Database.Host != "" {
		recorder, err = store.NewRecorder(cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("store recorder: %w", err)
		}
	}

	notifier := notify.New(cfg.Notify.WebhookURL, time.Duration(cfg.Notify.DedupTTLSec)*time.Second, log)

	blockPoll := time.Duration(cfg.Scan.BlockPollSec) * time.Second
	if blockPoll <= 0 {
		blockPoll = 3 * time.Second
	}
	blocks := rpc.NewBlockStream(gw, blockPoll)

	co, err := coordinator.New(coordinator.Deps{
		Gateway:    gw,
		Blocks:     blocks,
		MC:         multicallClient,
		Scanner:    scn,
		Executor:   exec,
		Probe:      prb,
		Strategies: strategy.NewRegistry(),
		Tracker:    trk,
		Prepared:   prep,
		Blacklist:  bl,
		Prices:     prices,
		Recorder:   recorder,
		Notifier:   notifier,
	}, cfg.ToCoordinatorConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("coordinator: %w", err)
	}
	return co, nil
}
