package eval

import (
	"github.com/signadot/pathmodel/ptree"

	"github.com/expr-lang/expr"
)

func exprOpts(env Env) []expr.Option {
	fns := pathFuncs(env)
	return []expr.Option{
		expr.AllowUndefinedVariables(),
		expr.Function("getpath", func(params ...any) (any, error) {
			return fns["getpath"].(func(string) any)(params[0].(string)), nil
		},
			new(func(string) any)),
		expr.Function("haspath", func(params ...any) (any, error) {
			return fns["haspath"].(func(string) bool)(params[0].(string)), nil
		},
			new(func(string) bool)),
	}
}

// pathFuncs returns getpath and haspath over env. The tree behind them
// is built on first use.
func pathFuncs(env Env) map[string]any {
	var tree *ptree.Tree
	scope := func() *ptree.Tree {
		if tree == nil {
			t, err := ptree.From(map[string]any(env))
			if err != nil {
				t = ptree.New()
			}
			tree = t
		}
		return tree
	}
	return map[string]any{
		"getpath": func(path string) any { return scope().Get(path) },
		"haspath": func(path string) bool { return scope().Has(path) },
	}
}
