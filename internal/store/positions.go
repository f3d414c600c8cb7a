package store

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

// InsertPosition persists a new position row.
func (s *Store) InsertPosition(position types.Position) error {
	if err := position.Validate(); err != nil {
		return err
	}

	_, err := s.sq.
		Insert("positions").
		Columns("id", "signal_id", "symbol", "side", "entry", "size_usd",
			"leverage", "sl", "tp", "status", "mode", "opened_at",
			"closed_at", "close_price", "pnl_usd", "close_reason").
		Values(position.ID, position.SignalID, position.Symbol,
			string(position.Side), position.Entry, position.SizeUSD,
			position.Leverage, position.SL, position.TP,
			string(position.Status), position.Mode, position.OpenedAt,
			nullTime(position.ClosedAt), nullFloat(position.ClosePrice),
			nullFloat(position.PnlUSD), nullString(position.CloseReason)).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to insert position", err)
	}

	return nil
}

// GetPosition returns the position with the given id.
func (s *Store) GetPosition(id string) (types.Position, error) {
	row := s.sq.
		Select(positionColumns...).
		From("positions").
		Where("id = ?", id).
		RunWith(s.db).
		QueryRow()

	position, err := scanPosition(row)
	if err == sql.ErrNoRows {
		return types.Position{}, errors.Newf(errors.ErrCodeNotFound, "position %s not found", id)
	}

	if err != nil {
		return types.Position{}, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to load position", err)
	}

	return position, nil
}

// ListOpenPositions returns every open position, oldest first, which is
// the order the monitor walks them in.
func (s *Store) ListOpenPositions() ([]types.Position, error) {
	return s.listPositions(s.sq.
		Select(positionColumns...).
		From("positions").
		Where("status = ?", string(types.PositionStatusOpen)).
		OrderBy("opened_at ASC"))
}

// ListPositions returns up to limit positions, newest first.
func (s *Store) ListPositions(limit int) ([]types.Position, error) {
	query := s.sq.
		Select(positionColumns...).
		From("positions").
		OrderBy("opened_at DESC")

	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	return s.listPositions(query)
}

// UpdateStopLoss moves the stop of an open position. The caller is
// responsible for the tighten-only rule; the guard here is only that the
// position is still open.
func (s *Store) UpdateStopLoss(id string, newSL float64) error {
	result, err := s.sq.
		Update("positions").
		Set("sl", newSL).
		Where("id = ? AND status = ?", id, string(types.PositionStatusOpen)).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to update stop loss", err)
	}

	return s.requireOpenHit(result, id)
}

// ClosePosition settles an open position. Compare-and-set on status =
// open, so a position can be closed exactly once.
func (s *Store) ClosePosition(id string, closePrice, pnlUSD float64, reason string, closedAt time.Time) error {
	result, err := s.sq.
		Update("positions").
		Set("status", string(types.PositionStatusClosed)).
		Set("close_price", closePrice).
		Set("pnl_usd", pnlUSD).
		Set("close_reason", reason).
		Set("closed_at", closedAt).
		Where("id = ? AND status = ?", id, string(types.PositionStatusOpen)).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to close position", err)
	}

	return s.requireOpenHit(result, id)
}

// requireOpenHit maps a zero-row CAS update to not-found or
// already-closed.
func (s *Store) requireOpenHit(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to read affected rows", err)
	}

	if affected == 0 {
		if _, err := s.GetPosition(id); err != nil {
			return err
		}

		return errors.Newf(errors.ErrCodePositionClosed, "position %s is already closed", id)
	}

	return nil
}

func (s *Store) listPositions(query squirrel.SelectBuilder) ([]types.Position, error) {
	rows, err := query.RunWith(s.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to list positions", err)
	}
	defer rows.Close()

	positions := make([]types.Position, 0)

	for rows.Next() {
		position, err := scanPosition(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to scan position", err)
		}

		positions = append(positions, position)
	}

	return positions, rows.Err()
}

var positionColumns = []string{
	"id", "signal_id", "symbol", "side", "entry", "size_usd", "leverage",
	"sl", "tp", "status", "mode", "opened_at", "closed_at", "close_price",
	"pnl_usd", "close_reason",
}

func scanPosition(row rowScanner) (types.Position, error) {
	var (
		position    types.Position
		side        string
		status      string
		closedAt    sql.NullTime
		closePrice  sql.NullFloat64
		pnlUSD      sql.NullFloat64
		closeReason sql.NullString
	)

	err := row.Scan(&position.ID, &position.SignalID, &position.Symbol,
		&side, &position.Entry, &position.SizeUSD, &position.Leverage,
		&position.SL, &position.TP, &status, &position.Mode,
		&position.OpenedAt, &closedAt, &closePrice, &pnlUSD, &closeReason)
	if err != nil {
		return types.Position{}, err
	}

	position.Side = types.Side(side)
	position.Status = types.PositionStatus(status)
	position.OpenedAt = position.OpenedAt.UTC()

	if closedAt.Valid {
		position.ClosedAt = optional.Some(closedAt.Time.UTC())
	}

	if closePrice.Valid {
		position.ClosePrice = optional.Some(closePrice.Float64)
	}

	if pnlUSD.Valid {
		position.PnlUSD = optional.Some(pnlUSD.Float64)
	}

	if closeReason.Valid {
		position.CloseReason = optional.Some(closeReason.String)
	}

	return position, nil
}
