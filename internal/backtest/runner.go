package backtest

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/market"
	"github.com/pulse-lab/pulse-trading/internal/notify"
	"github.com/pulse-lab/pulse-trading/internal/strategy"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

// JobRequest describes one backtest submission.
type JobRequest struct {
	JobName        string             `json:"jobName" yaml:"job_name"`
	Symbol         string             `json:"symbol" yaml:"symbol" validate:"required"`
	Timeframe      string             `json:"timeframe" yaml:"timeframe"`
	Strategy       string             `json:"strategy" yaml:"strategy" validate:"required"`
	Params         map[string]float64 `json:"params" yaml:"params"`
	InitialCapital float64            `json:"initialCapital" yaml:"initial_capital"`
	CandleLimit    int                `json:"candleLimit" yaml:"candle_limit"`
}

// JobStore is the slice of the store the runner needs.
type JobStore interface {
	InsertBacktestResult(result types.BacktestResult) error
	MarkBacktestRunning(id string) error
	FinishBacktest(result types.BacktestResult, runErr error) error
}

// JobRunner executes backtest jobs, each in its own goroutine, and
// persists their lifecycle: queued, running, then done or failed. A
// failing job records its error and never takes the host down.
type JobRunner struct {
	engine   *Engine
	store    JobStore
	gateway  market.Gateway
	registry strategy.Registry
	notifier notify.Notifier
	logger   *logger.Logger
}

// NewJobRunner creates a runner.
func NewJobRunner(engine *Engine, store JobStore, gateway market.Gateway, registry strategy.Registry, notifier notify.Notifier, log *logger.Logger) *JobRunner {
	return &JobRunner{
		engine:   engine,
		store:    store,
		gateway:  gateway,
		registry: registry,
		notifier: notifier,
		logger:   log,
	}
}

// Submit validates and persists a queued job, then starts it. The
// returned result carries the job id for polling.
func (r *JobRunner) Submit(ctx context.Context, request JobRequest) (types.BacktestResult, error) {
	if request.Symbol == "" {
		return types.BacktestResult{}, errors.New(errors.ErrCodeMissingParameter, "symbol is required")
	}

	if _, err := r.registry.Get(request.Strategy); err != nil {
		return types.BacktestResult{}, err
	}

	if request.Timeframe == "" {
		request.Timeframe = "5m"
	}

	if _, err := parseTimeframe(request.Timeframe); err != nil {
		return types.BacktestResult{}, err
	}

	if request.InitialCapital == 0 {
		request.InitialCapital = 1000
	}

	if request.CandleLimit == 0 {
		request.CandleLimit = 300
	}

	if request.JobName == "" {
		request.JobName = fmt.Sprintf("%s-%s-%s", request.Symbol, request.Timeframe, request.Strategy)
	}

	job := types.BacktestResult{
		ID:             uuid.New().String(),
		JobName:        request.JobName,
		Symbol:         request.Symbol,
		Timeframe:      request.Timeframe,
		Strategy:       request.Strategy,
		Params:         request.Params,
		InitialCapital: request.InitialCapital,
		Status:         types.JobStatusQueued,
		CreatedAt:      time.Now().UTC(),
	}

	if err := r.store.InsertBacktestResult(job); err != nil {
		return types.BacktestResult{}, err
	}

	go r.runJob(ctx, job, request)

	return job, nil
}

func (r *JobRunner) runJob(ctx context.Context, job types.BacktestResult, request JobRequest) {
	if err := r.store.MarkBacktestRunning(job.ID); err != nil {
		r.logger.Error("failed to claim backtest job",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)

		return
	}

	result, err := r.execute(ctx, request)
	if err != nil {
		job.Status = types.JobStatusFailed
		job.Logs = append(result.Logs, "error: "+err.Error())
	} else {
		job.Status = types.JobStatusDone
		job.Summary = result.Summary
		job.Trades = result.Trades
		job.Equity = result.Equity
		job.Logs = result.Logs
	}

	job.FinishedAt = optional.Some(time.Now().UTC())

	if persistErr := r.store.FinishBacktest(job, err); persistErr != nil {
		r.logger.Error("failed to persist backtest result",
			zap.String("job_id", job.ID),
			zap.Error(persistErr),
		)

		return
	}

	r.logger.Info("backtest job finished",
		zap.String("job_id", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int("trades", job.Summary.TradesCount),
	)
	r.notifier.BacktestFinished(job)
}

func (r *JobRunner) execute(ctx context.Context, request JobRequest) (Result, error) {
	strat, err := r.registry.Get(request.Strategy)
	if err != nil {
		return Result{}, err
	}

	minutes, err := parseTimeframe(request.Timeframe)
	if err != nil {
		return Result{}, err
	}

	candles, err := r.gateway.FetchCandles(ctx, request.Symbol, minutes, request.CandleLimit)
	if err != nil {
		return Result{}, err
	}

	return r.engine.Run(ctx, request.Symbol, candles, strat, strategy.FromMap(request.Params), request.InitialCapital)
}

// parseTimeframe converts a "5m", "1h" or bare-minutes timeframe token
// into minutes.
func parseTimeframe(timeframe string) (int, error) {
	token := strings.ToLower(strings.TrimSpace(timeframe))

	multiplier := 1
	switch {
	case strings.HasSuffix(token, "h"):
		multiplier = 60
		token = strings.TrimSuffix(token, "h")
	case strings.HasSuffix(token, "m"):
		token = strings.TrimSuffix(token, "m")
	}

	minutes, err := strconv.Atoi(token)
	if err != nil || minutes <= 0 {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "invalid timeframe %q", timeframe)
	}

	return minutes * multiplier, nil
}
