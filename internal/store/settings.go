package store

import (
	"database/sql"

	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

// settingsRowID pins the settings table to a single row.
const settingsRowID = 1

// GetSettings returns the persisted settings, or the defaults when the
// row has never been written.
func (s *Store) GetSettings() (types.Settings, error) {
	var settings types.Settings

	err := s.sq.
		Select("auto_trade", "active_strategy", "leverage", "sl_percent",
			"risk_reward", "last_updated").
		From("settings").
		Where("id = ?", settingsRowID).
		RunWith(s.db).
		QueryRow().
		Scan(&settings.AutoTrade, &settings.ActiveStrategy,
			&settings.Leverage, &settings.SLPercent,
			&settings.RiskReward, &settings.LastUpdated)
	if err == sql.ErrNoRows {
		return types.DefaultSettings(), nil
	}

	if err != nil {
		return types.Settings{}, errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to load settings", err)
	}

	settings.LastUpdated = settings.LastUpdated.UTC()

	return settings, nil
}

// SaveSettings replaces the settings singleton.
func (s *Store) SaveSettings(settings types.Settings) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to begin transaction", err)
	}

	_, err = s.sq.
		Delete("settings").
		Where("id = ?", settingsRowID).
		RunWith(tx).
		Exec()
	if err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to clear settings", err)
	}

	_, err = s.sq.
		Insert("settings").
		Columns("id", "auto_trade", "active_strategy", "leverage",
			"sl_percent", "risk_reward", "last_updated").
		Values(settingsRowID, settings.AutoTrade, settings.ActiveStrategy,
			settings.Leverage, settings.SLPercent, settings.RiskReward,
			settings.LastUpdated).
		RunWith(tx).
		Exec()
	if err != nil {
		tx.Rollback()

		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to save settings", err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(errors.ErrCodeStoreQueryFailed, "failed to commit settings", err)
	}

	return nil
}
