package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alejandrodnm/polymaker/config"
	"github.com/alejandrodnm/polymaker/internal/adapters/notify"
	"github.com/alejandrodnm/polymaker/internal/adapters/onchain"
	"github.com/alejandrodnm/polymaker/internal/adapters/params"
	"github.com/alejandrodnm/polymaker/internal/adapters/polymarket"
	"github.com/alejandrodnm/polymaker/internal/adapters/storage"
	"github.com/alejandrodnm/polymaker/internal/application/maker"
	"github.com/alejandrodnm/polymaker/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	report := flag.Bool("report", false, "print the stored state report and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN)
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *report {
		runReport(ctx, store)
		return
	}

	runEngine(ctx, cancel, cfg, store)
}

// runReport prints the persisted engine state and exits.
func runReport(ctx context.Context, store *storage.SQLiteStorage) {
	positions, at, err := store.GetLatestPositions(ctx)
	if err != nil {
		slog.Error("failed to load positions", "err", err)
		os.Exit(1)
	}
	merges, err := store.GetMergeResults(ctx)
	if err != nil {
		slog.Error("failed to load merges", "err", err)
		os.Exit(1)
	}
	risk, err := store.GetRiskEvents(ctx, time.Now().AddDate(0, 0, -30), time.Now().Add(time.Hour))
	if err != nil {
		slog.Error("failed to load risk events", "err", err)
		os.Exit(1)
	}
	dailies, err := store.GetDailySummaries(ctx)
	if err != nil {
		slog.Error("failed to load daily summaries", "err", err)
		os.Exit(1)
	}

	console := notify.NewConsole()
	_ = console.Report(ctx, ports.ReportInput{
		At:         at,
		Positions:  positions,
		Merges:     merges,
		RiskEvents: risk,
		Dailies:    dailies,
	})
}

// runEngine wires the adapters and runs the quoting engine until a signal
// or the stop file shuts it down.
func runEngine(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, store *storage.SQLiteStorage) {
	slog.Info("=== LIVE QUOTING MODE (REAL MONEY) ===",
		"poll_interval", cfg.PollInterval(),
		"decide_interval", cfg.DecideInterval(),
	)
	fmt.Printf("\n⚠️  LIVE QUOTING MODE — REAL MONEY WILL BE SPENT\n")
	fmt.Printf("   Press Ctrl+C within 5 seconds to abort...\n\n")

	abortTimer := time.NewTimer(5 * time.Second)
	select {
	case <-abortTimer.C:
	case <-ctx.Done():
		slog.Info("startup aborted by user")
		return
	}

	authClient, err := polymarket.NewAuthClient(cfg.API.CLOBBase, cfg.API.DataBase, cfg.Wallet.PrivateKey)
	if err != nil {
		slog.Error("failed to create auth client", "err", err)
		os.Exit(1)
	}
	if err := authClient.EnsureCreds(ctx); err != nil {
		slog.Error("failed to derive API credentials — check POLYMAKER_PRIVATE_KEY", "err", err)
		os.Exit(1)
	}
	slog.Info("authenticated with Polymarket CLOB", "address", authClient.Address())

	executor, err := polymarket.NewTradingClient(authClient, cfg.API.RPCURL)
	if err != nil {
		slog.Error("failed to create trading client", "err", err)
		os.Exit(1)
	}

	merger, err := onchain.NewMergeClient(cfg.API.RPCURL, cfg.Wallet.PrivateKey)
	if err != nil {
		slog.Error("failed to create merge client", "err", err)
		os.Exit(1)
	}

	slog.Info("checking on-chain approvals...")
	if err := merger.EnsureApprovals(ctx); err != nil {
		slog.Error("failed to ensure on-chain approvals", "err", err)
		os.Exit(1)
	}
	slog.Info("all approvals verified")

	balance, err := executor.GetBalance(ctx)
	if err != nil {
		slog.Error("failed to get USDC.e balance", "err", err)
		os.Exit(1)
	}
	slog.Info("wallet balance", "usdc", fmt.Sprintf("$%.2f", balance))
	if balance < cfg.Engine.MinBalanceUSDC {
		slog.Error("insufficient balance",
			"balance", fmt.Sprintf("$%.2f", balance),
			"required", fmt.Sprintf("$%.2f", cfg.Engine.MinBalanceUSDC))
		os.Exit(1)
	}

	provider := params.NewProvider(cfg.Params.MarketsURL, cfg.Params.HyperparamsURL)
	markets, err := provider.FetchMarkets(ctx)
	if err != nil {
		slog.Error("failed to fetch markets", "err", err)
		os.Exit(1)
	}
	hyperparams, err := provider.FetchHyperparameters(ctx)
	if err != nil {
		slog.Error("failed to fetch hyperparameters", "err", err)
		os.Exit(1)
	}
	slog.Info("remote configuration loaded", "markets", len(markets), "param_rows", len(hyperparams))

	bookFeed := polymarket.NewMarketFeed(cfg.API.WSBase)
	userFeed := polymarket.NewUserEventFeed(cfg.API.WSBase, authClient)

	engine, err := maker.New(
		maker.Config{
			PollInterval:    cfg.PollInterval(),
			DecideInterval:  cfg.DecideInterval(),
			RefreshInterval: cfg.RefreshInterval(),
			DepthBandPct:    cfg.Engine.DepthBandPct,
		},
		markets, hyperparams,
		executor, merger, provider, bookFeed, userFeed, store,
	)
	if err != nil {
		slog.Error("failed to assemble engine", "err", err)
		os.Exit(1)
	}

	go watchStopFile(ctx, cancel, cfg.Engine.StopFile)

	slog.Info("engine started — press Ctrl+C or create the stop file to exit",
		"stop_file", cfg.Engine.StopFile)

	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Error("engine exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("polymaker stopped cleanly")
}

// watchStopFile cancels the run when the stop file appears.
func watchStopFile(ctx context.Context, cancel context.CancelFunc, path string) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := os.Stat(path); err == nil {
				slog.Info("stop file detected, shutting down", "path", path)
				os.Remove(path)
				cancel()
				return
			}
		}
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
