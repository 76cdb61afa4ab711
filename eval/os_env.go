package eval

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/signadot/pathmodel/debug"
)

// osenvFilter replaces a string holding an environment variable name
// with the variable's value.
func osenvFilter(_ context.Context, v any, args []string, _ Env) (any, error) {
	if len(args) != 0 {
		return nil, fmt.Errorf("osenv expects no args, got %v", args)
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("osenv only applies to strings, got %T", v)
	}
	name := strings.TrimSpace(s)
	if debug.Eval() {
		debug.Logf("osenv %s\n", name)
	}
	return os.Getenv(name), nil
}
