package eval

import (
	"context"
	"fmt"

	"github.com/signadot/pathmodel/debug"

	"github.com/goccy/go-yaml"
)

// toValueFilter decodes a string holding a json or yaml document.
func toValueFilter(_ context.Context, v any, args []string, _ Env) (any, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("tovalue expects no args, got %v", args)
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("tovalue only applies to strings, got %T", v)
	}
	if debug.Eval() {
		debug.Logf("tovalue on %d bytes\n", len(s))
	}
	var res any
	if err := yaml.Unmarshal([]byte(s), &res); err != nil {
		return nil, fmt.Errorf("tovalue: %w", err)
	}
	return res, nil
}
