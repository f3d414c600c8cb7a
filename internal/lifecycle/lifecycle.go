// Package lifecycle owns the signal confirmation state machine. A
// candidate is created by the scanner, then resolved exactly once:
// confirmed (with or without execution) or rejected. Resolution is
// guarded twice, by a per-id mutex here and a status compare-and-set in
// the store, so a double-tap from the operator cannot fire two trades.
package lifecycle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/moznion/go-optional"
	"github.com/pulse-lab/pulse-trading/internal/executor"
	"github.com/pulse-lab/pulse-trading/internal/logger"
	"github.com/pulse-lab/pulse-trading/internal/notify"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
	"go.uber.org/zap"
)

// SignalStore is the slice of the store the lifecycle needs.
type SignalStore interface {
	InsertSignal(signal types.Signal) error
	GetSignal(id string) (types.Signal, error)
	ResolveSignal(id string, to types.SignalStatus, executedAt optional.Option[time.Time], execResult optional.Option[string]) error
}

// Service is the signal state machine over the store.
type Service struct {
	store      SignalStore
	executor   executor.Executor
	notifier   notify.Notifier
	logger     *logger.Logger
	accountUSD float64
	locks      *keyedMutex
}

// NewService creates the lifecycle service. accountUSD is the virtual
// balance positions are sized against.
func NewService(store SignalStore, exec executor.Executor, notifier notify.Notifier, log *logger.Logger, accountUSD float64) *Service {
	return &Service{
		store:      store,
		executor:   exec,
		notifier:   notifier,
		logger:     log,
		accountUSD: accountUSD,
		locks:      newKeyedMutex(),
	}
}

// Create persists a candidate as a new signal and announces it.
func (s *Service) Create(candidate types.CandidateSignal) (types.Signal, error) {
	createdAt := candidate.Time
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	signal := types.Signal{
		ID:            uuid.New().String(),
		Symbol:        candidate.Symbol,
		Side:          candidate.Side,
		Price:         candidate.Price,
		Confirmations: candidate.Confirmations,
		Indicators:    candidate.Indicators,
		Strategy:      candidate.Strategy,
		Status:        types.SignalStatusCandidate,
		CreatedAt:     createdAt,
	}

	if err := s.store.InsertSignal(signal); err != nil {
		return types.Signal{}, err
	}

	s.notifier.CandidateCreated(signal)

	return signal, nil
}

// Confirm resolves a candidate to confirmed, opening a position first
// when execute is set. The position open happens inside the per-id lock
// but before the status transition, so a failed open leaves the signal a
// candidate and the operator can retry.
func (s *Service) Confirm(ctx context.Context, id string, execute bool) (types.Signal, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	signal, err := s.store.GetSignal(id)
	if err != nil {
		return types.Signal{}, err
	}

	if signal.Status.IsResolved() {
		return types.Signal{}, errors.Newf(errors.ErrCodeAlreadyResolved, "signal %s is already %s", id, signal.Status)
	}

	if !execute {
		return s.resolve(signal, types.SignalStatusConfirmed, nil, nil)
	}

	position, err := s.executor.Open(ctx, signal, s.accountUSD)
	if err != nil {
		s.logger.Error("position open failed, signal stays pending",
			zap.String("signal_id", id),
			zap.Error(err),
		)

		return types.Signal{}, err
	}

	s.notifier.PositionOpened(position)

	return s.resolve(signal, types.SignalStatusExecuted,
		optional.Some(time.Now().UTC()), optional.Some(position.ID))
}

// Reject resolves a candidate to rejected.
func (s *Service) Reject(ctx context.Context, id string) (types.Signal, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	signal, err := s.store.GetSignal(id)
	if err != nil {
		return types.Signal{}, err
	}

	if signal.Status.IsResolved() {
		return types.Signal{}, errors.Newf(errors.ErrCodeAlreadyResolved, "signal %s is already %s", id, signal.Status)
	}

	return s.resolve(signal, types.SignalStatusRejected, nil, nil)
}

func (s *Service) resolve(signal types.Signal, to types.SignalStatus, executedAt optional.Option[time.Time], execResult optional.Option[string]) (types.Signal, error) {
	if err := s.store.ResolveSignal(signal.ID, to, executedAt, execResult); err != nil {
		return types.Signal{}, err
	}

	signal.Status = to
	signal.ExecutedAt = executedAt
	signal.ExecResult = execResult

	s.notifier.SignalResolved(signal)

	return signal, nil
}
