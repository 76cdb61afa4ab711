package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type debug struct {
	Parse  bool
	Update bool
	Diff   bool
	Eval   bool
	Store  bool
	Hooks  bool
}

var d *debug

func init() {
	d = &debug{}
	d.Parse = boolEnv("PM_DEBUG_PARSE")
	d.Update = boolEnv("PM_DEBUG_UPDATE")
	d.Diff = boolEnv("PM_DEBUG_DIFF")
	d.Eval = boolEnv("PM_DEBUG_EVAL")
	d.Store = boolEnv("PM_DEBUG_STORE")
	d.Hooks = boolEnv("PM_DEBUG_HOOKS")
}

func boolEnv(v string) bool {
	x := os.Getenv(v)
	if x == "" {
		return false
	}
	b, _ := strconv.ParseBool(x)
	return b
}

func Parse() bool {
	return d.Parse
}
func Update() bool {
	return d.Update
}
func Diff() bool {
	return d.Diff
}
func Eval() bool {
	return d.Eval
}
func Store() bool {
	return d.Store
}
func Hooks() bool {
	return d.Hooks
}

// Logf writes a formatted trace line to stderr.
func Logf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}

func LogAny(v any) {
	d, err := json.Marshal(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", v)
		return
	}
	os.Stderr.Write(append(d, '\n'))
}
