// Package scanner runs the market sweep loop: list symbols, fetch
// candles, evaluate the active strategy, and hand qualifying candidates
// to the signal lifecycle. The loop is rate-limit safe by construction,
// symbols are walked sequentially with a fixed delay between them.
package scanner

import (
	"context"
	"sync"
	"time"

	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/market"
	"github.com/pulse-lab/pulse-trading/internal/strategy"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultScanInterval     = 60 * time.Second
	defaultSymbolDelay      = 350 * time.Millisecond
	defaultSymbolLimit      = 50
	defaultTimeframeMinutes = 3
	defaultCandleLimit      = 300
)

// SettingsSource serves the runtime settings at pass time so strategy
// and auto-trade changes apply without a restart.
type SettingsSource interface {
	GetSettings() (types.Settings, error)
}

// Lifecycle is the slice of the signal lifecycle the scanner drives.
type Lifecycle interface {
	Create(candidate types.CandidateSignal) (types.Signal, error)
	Confirm(ctx context.Context, id string, execute bool) (types.Signal, error)
}

// Config configures the scan loop.
type Config struct {
	ScanInterval     time.Duration
	SymbolDelay      time.Duration
	SymbolLimit      int
	TimeframeMinutes int
	CandleLimit      int
	// Params overrides strategy defaults, keyed by parameter name.
	Params map[string]float64
}

// Scanner is the market sweep loop.
type Scanner struct {
	config    Config
	gateway   market.Gateway
	registry  strategy.Registry
	settings  SettingsSource
	lifecycle Lifecycle
	logger    *logger.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastScan types.ScanSnapshot
}

// NewScanner creates a scanner with defaults filled in.
func NewScanner(config Config, gateway market.Gateway, registry strategy.Registry, settings SettingsSource, lifecycle Lifecycle, log *logger.Logger) *Scanner {
	if config.ScanInterval == 0 {
		config.ScanInterval = defaultScanInterval
	}

	if config.SymbolDelay == 0 {
		config.SymbolDelay = defaultSymbolDelay
	}

	if config.SymbolLimit == 0 {
		config.SymbolLimit = defaultSymbolLimit
	}

	if config.TimeframeMinutes == 0 {
		config.TimeframeMinutes = defaultTimeframeMinutes
	}

	if config.CandleLimit == 0 {
		config.CandleLimit = defaultCandleLimit
	}

	return &Scanner{
		config:    config,
		gateway:   gateway,
		registry:  registry,
		settings:  settings,
		lifecycle: lifecycle,
		logger:    log,
	}
}

// Start launches the scan loop. Returns an error when already running.
func (s *Scanner) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New(errors.ErrCodeInvalidParameter, "scanner is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(loopCtx)

	s.logger.Info("scanner started",
		zap.Duration("scan_interval", s.config.ScanInterval),
		zap.Int("symbol_limit", s.config.SymbolLimit),
		zap.Int("timeframe_minutes", s.config.TimeframeMinutes),
	)

	return nil
}

// Stop cancels the loop and waits for the current pass to wind down.
func (s *Scanner) Stop() {
	s.mu.Lock()

	if !s.running {
		s.mu.Unlock()

		return
	}

	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("scanner stopped")
}

// IsRunning reports whether the loop is active.
func (s *Scanner) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Latest returns the snapshot of the most recent completed pass.
func (s *Scanner) Latest() types.ScanSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.lastScan
}

func (s *Scanner) run(ctx context.Context) {
	defer close(s.done)

	for {
		s.ScanNow(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.config.ScanInterval):
		}
	}
}

// ScanNow performs one full pass and returns the candidates it produced.
// Called by the loop every interval and by the API on demand.
func (s *Scanner) ScanNow(ctx context.Context) []types.CandidateSignal {
	settings, err := s.settings.GetSettings()
	if err != nil {
		s.logger.Error("failed to load settings, skipping pass", zap.Error(err))

		return nil
	}

	strat, err := s.registry.Get(settings.ActiveStrategy)
	if err != nil {
		s.logger.Error("active strategy not registered, skipping pass",
			zap.String("strategy", settings.ActiveStrategy),
			zap.Error(err),
		)

		return nil
	}

	params := strategy.FromMap(s.config.Params)

	symbols, err := s.gateway.ListSymbols(ctx, s.config.SymbolLimit)
	if err != nil {
		s.logger.Error("failed to list symbols, skipping pass", zap.Error(err))

		return nil
	}

	candidates := make([]types.CandidateSignal, 0)

	for _, symbol := range symbols {
		if ctx.Err() != nil {
			return candidates
		}

		if candidate, ok := s.analyzeSymbol(ctx, symbol, strat, params); ok {
			candidates = append(candidates, candidate)
			s.publish(ctx, candidate, settings.AutoTrade)
		}

		select {
		case <-ctx.Done():
			return candidates
		case <-time.After(s.config.SymbolDelay):
		}
	}

	s.mu.Lock()
	s.lastScan = types.ScanSnapshot{Time: time.Now().UTC(), Candidates: candidates}
	s.mu.Unlock()

	s.logger.Info("scan pass finished",
		zap.Int("symbols", len(symbols)),
		zap.Int("candidates", len(candidates)),
	)

	return candidates
}

// analyzeSymbol evaluates one symbol. Errors are logged and the pass
// moves on.
func (s *Scanner) analyzeSymbol(ctx context.Context, symbol string, strat strategy.Strategy, params strategy.Params) (types.CandidateSignal, bool) {
	candles, err := s.gateway.FetchCandles(ctx, symbol, s.config.TimeframeMinutes, s.config.CandleLimit)
	if err != nil {
		s.logger.Debug("candle fetch failed",
			zap.String("symbol", symbol),
			zap.Error(err),
		)

		return types.CandidateSignal{}, false
	}

	result := strat.Evaluate(symbol, candles, params)
	if result.IsNone() {
		return types.CandidateSignal{}, false
	}

	return result.Unwrap(), true
}

// publish hands a candidate to the lifecycle, confirming it immediately
// when auto-trade is on.
func (s *Scanner) publish(ctx context.Context, candidate types.CandidateSignal, autoTrade bool) {
	signal, err := s.lifecycle.Create(candidate)
	if err != nil {
		s.logger.Error("failed to persist candidate",
			zap.String("symbol", candidate.Symbol),
			zap.Error(err),
		)

		return
	}

	if !autoTrade {
		return
	}

	if _, err := s.lifecycle.Confirm(ctx, signal.ID, true); err != nil {
		s.logger.Error("auto-trade confirmation failed",
			zap.String("signal_id", signal.ID),
			zap.String("symbol", signal.Symbol),
			zap.Error(err),
		)
	}
}
