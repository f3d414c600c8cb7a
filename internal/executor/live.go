package executor

import (
	"context"

	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

// LiveExecutor is the declared placeholder for real exchange execution.
// Every call fails loudly so a misconfigured deployment cannot silently
// paper-trade while the operator believes orders are live.
type LiveExecutor struct{}

// NewLiveExecutor creates the live execution stub.
func NewLiveExecutor() *LiveExecutor {
	return &LiveExecutor{}
}

// Mode implements Executor.
func (e *LiveExecutor) Mode() string {
	return ModeLive
}

// Open implements Executor.
func (e *LiveExecutor) Open(ctx context.Context, signal types.Signal, accountUSD float64) (types.Position, error) {
	return types.Position{}, errors.New(errors.ErrCodeNotImplemented, "live execution is not implemented, configure paper mode")
}
