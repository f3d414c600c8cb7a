package types

import "time"

// Settings is the singleton runtime configuration shared by the scanner,
// executor and monitor. Persisted in the store; mutated via the API.
type Settings struct {
	AutoTrade      bool      `yaml:"auto_trade" json:"autoTrade"`
	ActiveStrategy string    `yaml:"active_strategy" json:"activeStrategy"`
	Leverage       float64   `yaml:"leverage" json:"leverage" validate:"gte=1"`
	SLPercent      float64   `yaml:"sl_percent" json:"slPercent" validate:"gt=0"`
	RiskReward     float64   `yaml:"risk_reward" json:"riskReward" validate:"gt=0"`
	LastUpdated    time.Time `yaml:"last_updated" json:"lastUpdated"`
}

// DefaultSettings returns the settings used until the operator changes them.
func DefaultSettings() Settings {
	return Settings{
		AutoTrade:      false,
		ActiveStrategy: "scalping_v1",
		Leverage:       5,
		SLPercent:      1,
		RiskReward:     1.3,
		LastUpdated:    time.Now().UTC(),
	}
}
