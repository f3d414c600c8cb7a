package lifecycle

import (
	"context"

	"github.com/pulse-lab/pulse-trading/internal/types"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

// Action is the closed set of operator decisions on a candidate signal.
type Action int

const (
	// ActionConfirmExec confirms the signal and opens a position.
	ActionConfirmExec Action = iota
	// ActionConfirmNoExec confirms the signal without trading.
	ActionConfirmNoExec
	// ActionReject discards the signal.
	ActionReject
)

// actionNames maps wire payloads to actions. These are the values
// operator buttons send.
var actionNames = map[string]Action{
	"confirm_execute": ActionConfirmExec,
	"confirm":         ActionConfirmNoExec,
	"reject":          ActionReject,
}

// ParseAction decodes a wire payload into an Action.
func ParseAction(name string) (Action, error) {
	action, ok := actionNames[name]
	if !ok {
		return 0, errors.Newf(errors.ErrCodeInvalidParameter, "unknown signal action %q", name)
	}

	return action, nil
}

// String returns the wire name of the action.
func (a Action) String() string {
	switch a {
	case ActionConfirmExec:
		return "confirm_execute"
	case ActionConfirmNoExec:
		return "confirm"
	case ActionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Apply dispatches an action against a signal.
func (s *Service) Apply(ctx context.Context, id string, action Action) (types.Signal, error) {
	switch action {
	case ActionConfirmExec:
		return s.Confirm(ctx, id, true)
	case ActionConfirmNoExec:
		return s.Confirm(ctx, id, false)
	case ActionReject:
		return s.Reject(ctx, id)
	default:
		return types.Signal{}, errors.Newf(errors.ErrCodeInvalidParameter, "unknown signal action %d", action)
	}
}
