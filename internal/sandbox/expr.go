package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/document"
)

// exprEnv declares the only identifiers an expr script can reference.
type exprEnv struct {
	Input  any   `expr:"input"`
	Inputs []any `expr:"inputs"`
}

type exprProgram struct {
	sandbox *Sandbox
	program *vm.Program
}

func (s *Sandbox) compileExpr(script string, limits Limits) (Program, error) {
	program, err := expr.Compile(script,
		expr.Env(exprEnv{}),
		expr.MaxNodes(limits.MaxNodes),
	)
	if err != nil {
		return nil, err
	}
	return &exprProgram{sandbox: s, program: program}, nil
}

func (p *exprProgram) Language() string {
	return config.LanguageExpr
}

type exprResult struct {
	value any
	err   error
}

// Run evaluates on a separate goroutine. expr programs always terminate,
// so a goroutine left behind by a timeout finishes on its own.
func (p *exprProgram) Run(ctx context.Context, inputs []*document.Node) (*document.Node, error) {
	first, all, order := project(inputs)
	env := exprEnv{Input: first, Inputs: all}

	return p.sandbox.evaluate(ctx, config.LanguageExpr, func(ctx context.Context) (*document.Node, error) {
		done := make(chan exprResult, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- exprResult{err: fmt.Errorf("panic: %v", r)}
				}
			}()
			value, err := expr.Run(p.program, env)
			done <- exprResult{value: value, err: err}
		}()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-done:
			if res.err != nil {
				return nil, res.err
			}
			return fromExpr(res.value, order)
		}
	})
}

func fromExpr(v any, order document.KeyOrder) (*document.Node, error) {
	switch t := v.(type) {
	case time.Time:
		return document.String(t.UTC().Format(time.RFC3339Nano)), nil
	case time.Duration:
		return document.String(t.String()), nil
	}
	n, err := document.FromInterfaceOrdered(v, order)
	if err != nil {
		return nil, fmt.Errorf("result cannot be represented: %w", err)
	}
	return n, nil
}
