package eval

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

var builtinFilters = map[string]FilterFunc{
	"trim":     stringFilter(strings.TrimSpace),
	"lower":    stringFilter(strings.ToLower),
	"upper":    stringFilter(strings.ToUpper),
	"truncate": truncateFilter,
	"default":  defaultFilter,
	"osenv":    osenvFilter,
	"tovalue":  toValueFilter,
}

func stringFilter(f func(string) string) FilterFunc {
	return func(_ context.Context, v any, _ []string, _ Env) (any, error) {
		s, ok := v.(string)
		if !ok {
			return v, nil
		}
		return f(s), nil
	}
}

// truncateFilter cuts a string to args[0] runes, appending args[1] when
// given and the string was cut.
func truncateFilter(_ context.Context, v any, args []string, _ Env) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("truncate expects a length")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("truncate: invalid length %q", args[0])
	}
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	rs := []rune(s)
	if len(rs) <= n {
		return s, nil
	}
	res := string(rs[:n])
	if len(args) > 1 {
		res += args[1]
	}
	return res, nil
}

// defaultFilter replaces nil with the literal args[0].
func defaultFilter(_ context.Context, v any, args []string, _ Env) (any, error) {
	if v != nil || len(args) == 0 {
		return v, nil
	}
	return args[0], nil
}
