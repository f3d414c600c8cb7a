package backtest

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
	"github.com/pulse-lab/pulse-trading/pkg/errors"
)

// JobRequestSchema returns the JSON schema describing backtest
// submissions, served to API clients building job forms.
func JobRequestSchema() ([]byte, error) {
	schema := jsonschema.Reflect(&JobRequest{})

	raw, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnknown, "failed to encode job schema", err)
	}

	return raw, nil
}
