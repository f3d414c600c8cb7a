package types

import (
	"time"

	"github.com/moznion/go-optional"
)

// JobStatus is the lifecycle status of a backtest job.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusFailed  JobStatus = "failed"
)

// BacktestTrade mirrors a closed position but is simulation-only and is
// never persisted as a real Position.
type BacktestTrade struct {
	EntryIndex int       `yaml:"entry_index" json:"entryIndex"`
	EntryTime  time.Time `yaml:"entry_time" json:"entryTime"`
	EntryPrice float64   `yaml:"entry_price" json:"entryPrice"`
	ExitIndex  int       `yaml:"exit_index" json:"exitIndex"`
	ExitTime   time.Time `yaml:"exit_time" json:"exitTime"`
	ExitPrice  float64   `yaml:"exit_price" json:"exitPrice"`
	Side       Side      `yaml:"side" json:"side"`
	SizeUSD    float64   `yaml:"size_usd" json:"sizeUsd"`
	PnlUSD     float64   `yaml:"pnl_usd" json:"pnlUsd"`
	Reason     string    `yaml:"reason" json:"reason"`
}

// EquityPoint is one sample of the equity curve.
type EquityPoint struct {
	Time   time.Time `yaml:"time" json:"t"`
	Equity float64   `yaml:"equity" json:"equity"`
}

// Summary holds the aggregate statistics of a backtest run.
type Summary struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initialCapital"`
	FinalEquity    float64 `yaml:"final_equity" json:"finalEquity"`
	TotalPnl       float64 `yaml:"total_pnl" json:"totalPnl"`
	TradesCount    int     `yaml:"trades_count" json:"tradesCount"`
	Wins           int     `yaml:"wins" json:"wins"`
	Losses         int     `yaml:"losses" json:"losses"`
	WinRate        float64 `yaml:"win_rate" json:"winrate"`
	MaxDrawdown    float64 `yaml:"max_drawdown" json:"maxDrawdown"`
}

// BacktestResult is the persisted outcome of a backtest job.
type BacktestResult struct {
	ID             string                     `yaml:"id" json:"id"`
	JobName        string                     `yaml:"job_name" json:"jobName"`
	Symbol         string                     `yaml:"symbol" json:"symbol"`
	Timeframe      string                     `yaml:"timeframe" json:"timeframe"`
	Strategy       string                     `yaml:"strategy" json:"strategy"`
	Params         map[string]float64         `yaml:"params" json:"params"`
	InitialCapital float64                    `yaml:"initial_capital" json:"initialCapital"`
	Summary        Summary                    `yaml:"summary" json:"summary"`
	Trades         []BacktestTrade            `yaml:"trades" json:"trades"`
	Equity         []EquityPoint              `yaml:"equity" json:"equity"`
	Status         JobStatus                  `yaml:"status" json:"status"`
	Logs           []string                   `yaml:"logs" json:"logs"`
	CreatedAt      time.Time                  `yaml:"created_at" json:"createdAt"`
	FinishedAt     optional.Option[time.Time] `yaml:"finished_at" json:"finishedAt"`
}
