package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

// OpenRequest is the executor's input for opening a position from a
// confirmed signal.
type OpenRequest struct {
	SignalID   string  `yaml:"signal_id" json:"signal_id" validate:"required"`
	Symbol     string  `yaml:"symbol" json:"symbol" validate:"required"`
	Side       Side    `yaml:"side" json:"side" validate:"required,oneof=BUY SELL"`
	Price      float64 `yaml:"price" json:"price" validate:"required,gt=0"`
	AccountUSD float64 `yaml:"account_usd" json:"account_usd" validate:"required,gt=0"`
}

// Validate validates the OpenRequest struct.
func (r *OpenRequest) Validate() error {
	validate := validator.New()
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidParameter, "invalid open request", err)
	}

	return nil
}

// ScanSnapshot is the result of the most recent scanner pass, kept for
// the read API.
type ScanSnapshot struct {
	Time       time.Time         `yaml:"time" json:"time"`
	Candidates []CandidateSignal `yaml:"candidates" json:"candidates"`
}
