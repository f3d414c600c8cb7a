package store

import (
	"database/sql"
	"encoding/json"

	"github.com/moznion/go-optional"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

// InsertBacktestResult persists a new backtest job row, usually in the
// queued state before the runner picks it up.
func (s *Store) InsertBacktestResult(result types.BacktestResult) error {
	encoded, err := encodeBacktestBlobs(result)
	if err != nil {
		return err
	}

	_, err = s.sq.
		Insert("backtest_results").
		Columns("id", "job_name", "symbol", "timeframe", "strategy",
			"params", "initial_capital", "summary", "trades", "equity",
			"status", "logs", "error", "created_at", "finished_at").
		Values(result.ID, result.JobName, result.Symbol, result.Timeframe,
			result.Strategy, encoded.params, result.InitialCapital,
			encoded.summary, encoded.trades, encoded.equity,
			string(result.Status), encoded.logs, nil,
			result.CreatedAt, nullTime(result.FinishedAt)).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to insert backtest result", err)
	}

	return nil
}

// MarkBacktestRunning flips a queued job to running.
func (s *Store) MarkBacktestRunning(id string) error {
	result, err := s.sq.
		Update("backtest_results").
		Set("status", string(types.JobStatusRunning)).
		Where("id = ? AND status = ?", id, string(types.JobStatusQueued)).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to mark backtest running", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to read affected rows", err)
	}

	if affected == 0 {
		return errors.Newf(errors.ErrCodeBacktestJobNotFound, "no queued backtest job %s", id)
	}

	return nil
}

// FinishBacktest writes the terminal state of a job: the full result on
// success, or the failure message.
func (s *Store) FinishBacktest(result types.BacktestResult, runErr error) error {
	encoded, err := encodeBacktestBlobs(result)
	if err != nil {
		return err
	}

	var errMessage any
	if runErr != nil {
		errMessage = runErr.Error()
	}

	_, err = s.sq.
		Update("backtest_results").
		Set("params", encoded.params).
		Set("summary", encoded.summary).
		Set("trades", encoded.trades).
		Set("equity", encoded.equity).
		Set("status", string(result.Status)).
		Set("logs", encoded.logs).
		Set("error", errMessage).
		Set("finished_at", nullTime(result.FinishedAt)).
		Where("id = ?", result.ID).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to finish backtest", err)
	}

	return nil
}

// GetBacktestResult returns the job with the given id.
func (s *Store) GetBacktestResult(id string) (types.BacktestResult, error) {
	row := s.sq.
		Select(backtestColumns...).
		From("backtest_results").
		Where("id = ?", id).
		RunWith(s.db).
		QueryRow()

	result, err := scanBacktestResult(row)
	if err == sql.ErrNoRows {
		return types.BacktestResult{}, errors.Newf(errors.ErrCodeBacktestJobNotFound, "backtest job %s not found", id)
	}

	if err != nil {
		return types.BacktestResult{}, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to load backtest result", err)
	}

	return result, nil
}

// ListBacktestResults returns up to limit jobs, newest first.
func (s *Store) ListBacktestResults(limit int) ([]types.BacktestResult, error) {
	query := s.sq.
		Select(backtestColumns...).
		From("backtest_results").
		OrderBy("created_at DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	rows, err := query.RunWith(s.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to list backtest results", err)
	}
	defer rows.Close()

	results := make([]types.BacktestResult, 0)

	for rows.Next() {
		result, err := scanBacktestResult(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to scan backtest result", err)
		}

		results = append(results, result)
	}

	return results, rows.Err()
}

var backtestColumns = []string{
	"id", "job_name", "symbol", "timeframe", "strategy", "params",
	"initial_capital", "summary", "trades", "equity", "status", "logs",
	"created_at", "finished_at",
}

type backtestBlobs struct {
	params  string
	summary string
	trades  string
	equity  string
	logs    string
}

func encodeBacktestBlobs(result types.BacktestResult) (backtestBlobs, error) {
	var (
		blobs backtestBlobs
		err   error
	)

	encode := func(dst *string, value any) {
		if err != nil {
			return
		}

		var raw []byte

		raw, err = json.Marshal(value)
		*dst = string(raw)
	}

	encode(&blobs.params, result.Params)
	encode(&blobs.summary, result.Summary)
	encode(&blobs.trades, result.Trades)
	encode(&blobs.equity, result.Equity)
	encode(&blobs.logs, result.Logs)

	if err != nil {
		return backtestBlobs{}, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to encode backtest result", err)
	}

	return blobs, nil
}

func scanBacktestResult(row rowScanner) (types.BacktestResult, error) {
	var (
		result     types.BacktestResult
		status     string
		params     string
		summary    string
		trades     string
		equity     string
		logs       string
		finishedAt sql.NullTime
	)

	err := row.Scan(&result.ID, &result.JobName, &result.Symbol,
		&result.Timeframe, &result.Strategy, &params,
		&result.InitialCapital, &summary, &trades, &equity, &status,
		&logs, &result.CreatedAt, &finishedAt)
	if err != nil {
		return types.BacktestResult{}, err
	}

	result.Status = types.JobStatus(status)
	result.CreatedAt = result.CreatedAt.UTC()

	for _, blob := range []struct {
		raw string
		dst any
	}{
		{params, &result.Params},
		{summary, &result.Summary},
		{trades, &result.Trades},
		{equity, &result.Equity},
		{logs, &result.Logs},
	} {
		if err := json.Unmarshal([]byte(blob.raw), blob.dst); err != nil {
			return types.BacktestResult{}, err
		}
	}

	if finishedAt.Valid {
		result.FinishedAt = optional.Some(finishedAt.Time.UTC())
	}

	return result, nil
}
