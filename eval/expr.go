package eval

import (
	"context"
	"fmt"

	"github.com/signadot/pathmodel/debug"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Eval compiles and runs an expr-lang expression against env. Sibling
// values are top level variables; getpath(p) and haspath(p) address
// nested values by path. Catalog functions are not callable from
// expressions.
func (c *Catalog) Eval(ctx context.Context, src string, env Env) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	re := runEnv(env)
	// siblings shadow expr builtins of the same name
	opts := append([]expr.Option{expr.Env(re)}, exprOpts(env)...)
	program, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("error compiling %q: %w", src, err)
	}
	res, err := vm.Run(program, re)
	if err != nil {
		return nil, fmt.Errorf("error evaluating %q: %w", src, err)
	}
	if debug.Eval() {
		debug.Logf("eval %q = %v\n", src, res)
	}
	return res, nil
}

func runEnv(env Env) map[string]any {
	res := make(map[string]any, len(env)+1)
	for k, v := range env {
		res[k] = v
	}
	res["this"] = map[string]any(env)
	return res
}

// Predicate is a boolean expression compiled once and run against many
// inputs.
type Predicate struct {
	src     string
	program *vm.Program
}

// CompilePredicate compiles src as a boolean expression. vars names the
// variables inputs are expected to carry; each shadows the expr builtin
// of the same name, so a field named count or len reads as the field.
func CompilePredicate(src string, vars ...string) (*Predicate, error) {
	opts := []expr.Option{expr.AllowUndefinedVariables(), expr.AsBool()}
	for _, v := range vars {
		opts = append(opts, expr.DisableBuiltin(v))
	}
	program, err := expr.Compile(src, opts...)
	if err != nil {
		return nil, fmt.Errorf("error compiling %q: %w", src, err)
	}
	return &Predicate{src: src, program: program}, nil
}

func (p *Predicate) String() string { return p.src }

// Match runs the predicate against v. A map value exposes its keys as
// variables; any value is also available as "this". Evaluation errors
// count as false.
func (p *Predicate) Match(v any) bool {
	env := Env{}
	if m, ok := v.(map[string]any); ok {
		env = Env(m)
	}
	re := runEnv(env)
	re["this"] = v
	// the program is shared, so path helpers come with each input
	for k, fn := range pathFuncs(env) {
		if _, ok := re[k]; !ok {
			re[k] = fn
		}
	}
	res, err := vm.Run(p.program, re)
	if err != nil {
		if debug.Eval() {
			debug.Logf("predicate %q: %v\n", p.src, err)
		}
		return false
	}
	b, _ := res.(bool)
	return b
}
