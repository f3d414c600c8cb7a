package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/moznion/go-optional"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

// InsertSignal persists a new signal row.
func (s *Store) InsertSignal(signal types.Signal) error {
	confirmations, err := json.Marshal(signal.Confirmations)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to encode confirmations", err)
	}

	indicators, err := json.Marshal(signal.Indicators)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to encode indicators", err)
	}

	_, err = s.sq.
		Insert("signals").
		Columns("id", "symbol", "side", "price", "confirmations", "indicators",
			"strategy", "status", "created_at", "executed_at", "exec_result").
		Values(signal.ID, signal.Symbol, string(signal.Side), signal.Price,
			string(confirmations), string(indicators), signal.Strategy,
			string(signal.Status), signal.CreatedAt,
			nullTime(signal.ExecutedAt), nullString(signal.ExecResult)).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to insert signal", err)
	}

	return nil
}

// GetSignal returns the signal with the given id.
func (s *Store) GetSignal(id string) (types.Signal, error) {
	row := s.sq.
		Select(signalColumns...).
		From("signals").
		Where("id = ?", id).
		RunWith(s.db).
		QueryRow()

	signal, err := scanSignal(row)
	if err == sql.ErrNoRows {
		return types.Signal{}, errors.Newf(errors.ErrCodeNotFound, "signal %s not found", id)
	}

	if err != nil {
		return types.Signal{}, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to load signal", err)
	}

	return signal, nil
}

// ListSignals returns up to limit signals, newest first.
func (s *Store) ListSignals(limit int) ([]types.Signal, error) {
	query := s.sq.
		Select(signalColumns...).
		From("signals").
		OrderBy("created_at DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := query.RunWith(s.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to list signals", err)
	}
	defer rows.Close()

	signals := make([]types.Signal, 0)

	for rows.Next() {
		signal, err := scanSignal(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to scan signal", err)
		}

		signals = append(signals, signal)
	}

	return signals, rows.Err()
}

// ResolveSignal moves a candidate signal to a resolved status. The update
// is a compare-and-set guarded on status = candidate so two concurrent
// resolutions cannot both win. On a lost race the current status decides
// between not-found and already-resolved.
func (s *Store) ResolveSignal(id string, to types.SignalStatus, executedAt optional.Option[time.Time], execResult optional.Option[string]) error {
	result, err := s.sq.
		Update("signals").
		Set("status", string(to)).
		Set("executed_at", nullTime(executedAt)).
		Set("exec_result", nullString(execResult)).
		Where("id = ? AND status = ?", id, string(types.SignalStatusCandidate)).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to resolve signal", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to read affected rows", err)
	}

	if affected == 0 {
		existing, err := s.GetSignal(id)
		if err != nil {
			return err
		}

		return errors.Newf(errors.ErrCodeAlreadyResolved, "signal %s is already %s", id, existing.Status)
	}

	return nil
}

var signalColumns = []string{
	"id", "symbol", "side", "price", "confirmations", "indicators",
	"strategy", "status", "created_at", "executed_at", "exec_result",
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSignal(row rowScanner) (types.Signal, error) {
	var (
		signal        types.Signal
		side          string
		status        string
		confirmations string
		indicators    string
		executedAt    sql.NullTime
		execResult    sql.NullString
	)

	err := row.Scan(&signal.ID, &signal.Symbol, &side, &signal.Price,
		&confirmations, &indicators, &signal.Strategy, &status,
		&signal.CreatedAt, &executedAt, &execResult)
	if err != nil {
		return types.Signal{}, err
	}

	signal.Side = types.Side(side)
	signal.Status = types.SignalStatus(status)
	signal.CreatedAt = signal.CreatedAt.UTC()

	if err := json.Unmarshal([]byte(confirmations), &signal.Confirmations); err != nil {
		return types.Signal{}, err
	}

	if err := json.Unmarshal([]byte(indicators), &signal.Indicators); err != nil {
		return types.Signal{}, err
	}

	if executedAt.Valid {
		signal.ExecutedAt = optional.Some(executedAt.Time.UTC())
	}

	if execResult.Valid {
		signal.ExecResult = optional.Some(execResult.String)
	}

	return signal, nil
}

func nullTime(value optional.Option[time.Time]) any {
	if value.IsNone() {
		return nil
	}

	return value.Unwrap()
}

func nullString(value optional.Option[string]) any {
	if value.IsNone() {
		return nil
	}

	return value.Unwrap()
}

func nullFloat(value optional.Option[float64]) any {
	if value.IsNone() {
		return nil
	}

	return value.Unwrap()
}
