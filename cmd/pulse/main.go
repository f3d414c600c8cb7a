package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pulse-lab/pulse-trading/internal/api"
	"github.com/pulse-lab/pulse-trading/internal/backtest"
	"github.com/pulse-lab/pulse-trading/internal/config"
	"github.com/pulse-lab/pulse-trading/internal/executor"
	"github.com/pulse-lab/pulse-trading/internal/lifecycle"
	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/market"
	"github.com/pulse-lab/pulse-trading/internal/monitor"
	"github.com/pulse-lab/pulse-trading/internal/notify"
	"github.com/pulse-lab/pulse-trading/internal/scanner"
	"github.com/pulse-lab/pulse-trading/internal/store"
	"github.com/pulse-lab/pulse-trading/internal/strategy"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
)

func main() {
	cmd := &cli.Command{
		Name:  "pulse",
		Usage: "Signal-to-position lifecycle engine",
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the scanner, monitor and HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the YAML config file",
					},
				},
				Action: serveAction,
			},
			{
				Name:  "backtest",
				Usage: "Replay a strategy over historical candles",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "config",
						Aliases: []string{"c"},
						Usage:   "Path to the YAML config file",
					},
					&cli.StringFlag{
						Name:     "symbol",
						Aliases:  []string{"s"},
						Usage:    "Symbol to replay, e.g. BTCUSDT",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "timeframe",
						Usage: "Candle timeframe, e.g. 5m or 1h",
						Value: "5m",
					},
					&cli.StringFlag{
						Name:  "strategy",
						Usage: "Registered strategy name",
						Value: "scalping_v1",
					},
					&cli.StringFlag{
						Name:  "capital",
						Usage: "Initial capital in USD",
						Value: "1000",
					},
					&cli.StringFlag{
						Name:  "limit",
						Usage: "Number of candles to fetch",
						Value: "300",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Job name stored with the result",
					},
				},
				Action: backtestAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cli.Command) (config.Config, error) {
	path := cmd.String("config")
	if path == "" {
		return config.Default(), nil
	}

	return config.Load(path)
}

func buildGateway(cfg config.Config, log *logger.Logger) (market.Gateway, error) {
	switch cfg.Provider {
	case config.ProviderBinance:
		return market.NewBinanceGateway(log), nil
	case config.ProviderRest, "":
		marketCfg, err := cfg.Market.Build()
		if err != nil {
			return nil, err
		}

		return market.NewRestClient(marketCfg, log), nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown market provider %q", cfg.Provider)
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	log, err := logger.NewLeveledLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := store.NewStore(cfg.DatabasePath, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Initialize(); err != nil {
		return err
	}

	gateway, err := buildGateway(cfg, log)
	if err != nil {
		return err
	}

	exec, err := executor.New(cfg.ExecutionMode, st, log)
	if err != nil {
		return err
	}

	registry := strategy.NewDefaultRegistry()
	notifier := notify.NewLogNotifier(log)
	lc := lifecycle.NewService(st, exec, notifier, log, cfg.AccountUSD)

	scannerCfg, err := cfg.Scanner.Build()
	if err != nil {
		return err
	}

	monitorCfg, err := cfg.Monitor.Build()
	if err != nil {
		return err
	}

	sc := scanner.NewScanner(scannerCfg, gateway, registry, st, lc, log)
	mon := monitor.NewMonitor(monitorCfg, st, gateway, notifier, log)
	runner := backtest.NewJobRunner(backtest.NewEngine(cfg.Backtest.Build()), st, gateway, registry, notifier, log)
	server := api.NewServer(st, sc, lc, runner, registry, gateway, log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The scanner stays idle until started through the API; open positions
	// are watched from boot.
	if err := mon.Start(ctx); err != nil {
		return err
	}
	defer mon.Stop()
	defer sc.Stop()

	return server.ListenAndServe(ctx, cfg.ListenAddr)
}

func backtestAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	capital, err := strconv.ParseFloat(cmd.String("capital"), 64)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid capital", err)
	}

	limit, err := strconv.Atoi(cmd.String("limit"))
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid candle limit", err)
	}

	// Keep the progress bar readable by silencing info logs.
	log, err := logger.NewLeveledLogger("warn")
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	st, err := store.NewStore(cfg.DatabasePath, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if err := st.Initialize(); err != nil {
		return err
	}

	gateway, err := buildGateway(cfg, log)
	if err != nil {
		return err
	}

	engineCfg := cfg.Backtest.Build()

	var bar *progressbar.ProgressBar

	engineCfg.Progress = func(done, total int) {
		if bar == nil {
			bar = progressbar.Default(int64(total), "replaying")
		}

		_ = bar.Set(done)
	}

	registry := strategy.NewDefaultRegistry()
	runner := backtest.NewJobRunner(backtest.NewEngine(engineCfg), st, gateway, registry, notify.NewLogNotifier(log), log)

	job, err := runner.Submit(ctx, backtest.JobRequest{
		JobName:        cmd.String("name"),
		Symbol:         cmd.String("symbol"),
		Timeframe:      cmd.String("timeframe"),
		Strategy:       cmd.String("strategy"),
		InitialCapital: capital,
		CandleLimit:    limit,
	})
	if err != nil {
		return err
	}

	result, err := waitForJob(ctx, st, job.ID)
	if err != nil {
		return err
	}

	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	if result.Status == types.JobStatusFailed {
		return errors.Newf(errors.ErrCodeBacktestAborted, "backtest failed: %s", lastLog(result.Logs))
	}

	printSummary(result)

	return nil
}

// waitForJob polls the store until the runner resolves the job.
func waitForJob(ctx context.Context, st *store.Store, id string) (types.BacktestResult, error) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return types.BacktestResult{}, errors.Wrap(errors.ErrCodeBacktestAborted, "backtest interrupted", ctx.Err())
		case <-ticker.C:
			result, err := st.GetBacktestResult(id)
			if err != nil {
				return types.BacktestResult{}, err
			}

			if result.Status == types.JobStatusDone || result.Status == types.JobStatusFailed {
				return result, nil
			}
		}
	}
}

func lastLog(logs []string) string {
	if len(logs) == 0 {
		return "no logs recorded"
	}

	return logs[len(logs)-1]
}

func printSummary(result types.BacktestResult) {
	summary := result.Summary

	fmt.Printf("%s %s %s\n", result.Symbol, result.Timeframe, result.Strategy)
	fmt.Printf("  trades:        %d (%d wins, %d losses)\n", summary.TradesCount, summary.Wins, summary.Losses)
	fmt.Printf("  win rate:      %.2f%%\n", summary.WinRate*100)
	fmt.Printf("  total pnl:     %.6f USD\n", summary.TotalPnl)
	fmt.Printf("  final equity:  %.2f USD\n", summary.FinalEquity)
	fmt.Printf("  max drawdown:  %.2f%%\n", summary.MaxDrawdown*100)
}
