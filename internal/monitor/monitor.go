// Package monitor polls open positions against the mark price and
// settles them on stop loss or take profit, trailing the stop to
// breakeven once a position is far enough in profit.
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/notify"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultTrailTrigger = 0.5
)

// PositionStore is the slice of the store the monitor needs.
type PositionStore interface {
	ListOpenPositions() ([]types.Position, error)
	UpdateStopLoss(id string, newSL float64) error
	ClosePosition(id string, closePrice, pnlUSD float64, reason string, closedAt time.Time) error
}

// PriceSource provides the current mark price.
type PriceSource interface {
	MarkPrice(ctx context.Context, symbol string) (float64, error)
}

// Config configures the monitor loop.
type Config struct {
	PollInterval time.Duration
	// TrailTrigger is the fraction of the take profit distance at which
	// the stop moves to breakeven.
	TrailTrigger float64
}

// Monitor is the position watchdog loop.
type Monitor struct {
	config   Config
	store    PositionStore
	prices   PriceSource
	notifier notify.Notifier
	logger   *logger.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewMonitor creates a monitor with defaults filled in.
func NewMonitor(config Config, store PositionStore, prices PriceSource, notifier notify.Notifier, log *logger.Logger) *Monitor {
	if config.PollInterval == 0 {
		config.PollInterval = defaultPollInterval
	}

	if config.TrailTrigger == 0 {
		config.TrailTrigger = defaultTrailTrigger
	}

	return &Monitor{
		config:   config,
		store:    store,
		prices:   prices,
		notifier: notifier,
		logger:   log,
	}
}

// Start launches the poll loop. Returns an error when already running.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New(errors.ErrCodeInvalidParameter, "monitor is already running")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.running = true
	m.cancel = cancel
	m.done = make(chan struct{})

	go m.run(loopCtx)

	m.logger.Info("position monitor started",
		zap.Duration("poll_interval", m.config.PollInterval),
	)

	return nil
}

// Stop cancels the loop and waits for the current cycle to finish.
func (m *Monitor) Stop() {
	m.mu.Lock()

	if !m.running {
		m.mu.Unlock()

		return
	}

	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done

	m.mu.Lock()
	m.running = false
	m.mu.Unlock()

	m.logger.Info("position monitor stopped")
}

// IsRunning reports whether the loop is active.
func (m *Monitor) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.running
}

func (m *Monitor) run(ctx context.Context) {
	defer close(m.done)

	for {
		m.cycle(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(m.config.PollInterval):
		}
	}
}

// cycle walks every open position once. Per-position errors are logged
// and the walk continues.
func (m *Monitor) cycle(ctx context.Context) {
	positions, err := m.store.ListOpenPositions()
	if err != nil {
		m.logger.Error("failed to load open positions", zap.Error(err))

		return
	}

	for _, position := range positions {
		if ctx.Err() != nil {
			return
		}

		if err := m.checkPosition(ctx, position); err != nil {
			m.logger.Warn("position check failed",
				zap.String("position_id", position.ID),
				zap.String("symbol", position.Symbol),
				zap.Error(err),
			)
		}
	}
}

func (m *Monitor) checkPosition(ctx context.Context, position types.Position) error {
	mark, err := m.prices.MarkPrice(ctx, position.Symbol)
	if err != nil {
		return err
	}

	dir := position.Side.Sign()

	if (mark-position.SL)*dir <= 0 {
		return m.close(position, mark, types.CloseReasonStopLoss)
	}

	if (mark-position.TP)*dir >= 0 {
		return m.close(position, mark, types.CloseReasonTakeProfit)
	}

	return m.trail(position, mark)
}

// trail moves the stop to breakeven once profit reaches the trigger
// fraction of the take profit distance. The stop only ever tightens.
func (m *Monitor) trail(position types.Position, mark float64) error {
	profit := (mark - position.Entry) / position.Entry * position.Side.Sign()
	targetDistance := (position.TP - position.Entry) / position.Entry * position.Side.Sign()

	if targetDistance <= 0 || profit < m.config.TrailTrigger*targetDistance {
		return nil
	}

	newSL := position.Entry
	if (newSL-position.SL)*position.Side.Sign() <= 0 {
		return nil
	}

	oldSL := position.SL

	if err := m.store.UpdateStopLoss(position.ID, newSL); err != nil {
		if errors.HasCode(err, errors.ErrCodePositionClosed) {
			return nil
		}

		return err
	}

	position.SL = newSL

	m.logger.Info("stop moved to breakeven",
		zap.String("position_id", position.ID),
		zap.String("symbol", position.Symbol),
		zap.Float64("old_sl", oldSL),
		zap.Float64("new_sl", newSL),
	)
	m.notifier.PositionUpdated(position, notify.EventStopMoved)

	return nil
}

func (m *Monitor) close(position types.Position, mark float64, reason string) error {
	pnl := types.SettlePnl(position.Entry, mark, position.SizeUSD, position.Leverage, position.Side)
	closedAt := time.Now().UTC()

	if err := m.store.ClosePosition(position.ID, mark, pnl, reason, closedAt); err != nil {
		// a concurrent close already settled it
		if errors.HasCode(err, errors.ErrCodePositionClosed) {
			return nil
		}

		return err
	}

	position.Status = types.PositionStatusClosed
	position.ClosedAt = optional.Some(closedAt)
	position.ClosePrice = optional.Some(mark)
	position.PnlUSD = optional.Some(pnl)
	position.CloseReason = optional.Some(reason)

	m.logger.Info("position closed",
		zap.String("position_id", position.ID),
		zap.String("symbol", position.Symbol),
		zap.String("reason", reason),
		zap.Float64("close_price", mark),
		zap.Float64("pnl_usd", pnl),
	)
	m.notifier.PositionUpdated(position, notify.EventClosed)

	return nil
}
