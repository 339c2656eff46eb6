package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
	"github.com/google/cel-go/ext"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/document"
)

// celInterruptCheckFrequency is the number of comprehension iterations
// between checks of the evaluation context.
const celInterruptCheckFrequency = 1

func newCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable(VarInput, cel.DynType),
		cel.Variable(VarInputs, cel.ListType(cel.DynType)),
		ext.Strings(),
		ext.Math(),
	)
}

type celProgram struct {
	sandbox *Sandbox
	program cel.Program
}

func (s *Sandbox) compileCEL(script string, limits Limits) (Program, error) {
	ast, issues := s.celEnv.Compile(script)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}

	program, err := s.celEnv.Program(ast,
		cel.CostLimit(limits.CostLimit),
		cel.InterruptCheckFrequency(celInterruptCheckFrequency),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create program: %w", err)
	}

	return &celProgram{sandbox: s, program: program}, nil
}

func (p *celProgram) Language() string {
	return config.LanguageCEL
}

type celResult struct {
	value ref.Val
	err   error
}

// Run evaluates on a separate goroutine and returns as soon as the
// deadline passes. The abandoned evaluation stops at its next interrupt
// check.
func (p *celProgram) Run(ctx context.Context, inputs []*document.Node) (*document.Node, error) {
	first, all, order := project(inputs)
	activation := map[string]any{
		VarInput:  first,
		VarInputs: all,
	}

	return p.sandbox.evaluate(ctx, config.LanguageCEL, func(ctx context.Context) (*document.Node, error) {
		done := make(chan celResult, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- celResult{err: fmt.Errorf("panic: %v", r)}
				}
			}()
			val, _, err := p.program.ContextEval(ctx, activation)
			done <- celResult{value: val, err: err}
		}()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-done:
			if res.err != nil {
				return nil, res.err
			}
			return fromCEL(res.value, order)
		}
	})
}

// fromCEL converts an evaluation result to a node. Map keys must be
// strings. CEL maps carry no order, so keys are arranged by order.
func fromCEL(val ref.Val, order document.KeyOrder) (*document.Node, error) {
	switch v := val.(type) {
	case *types.Err:
		return nil, v
	case types.Null:
		return document.Null(), nil
	case types.Bool:
		return document.Bool(bool(v)), nil
	case types.Int:
		return document.Int(int64(v)), nil
	case types.Uint:
		return document.FromInterface(uint64(v))
	case types.Double:
		f := float64(v)
		if !document.IsFinite(f) {
			return nil, fmt.Errorf("result %v cannot be represented", f)
		}
		return document.Float(f), nil
	case types.String:
		return document.String(string(v)), nil
	case types.Timestamp:
		return document.String(v.Time.UTC().Format(time.RFC3339Nano)), nil
	case types.Duration:
		return document.String(v.Duration.String()), nil
	case traits.Mapper:
		return fromCELMap(v, order)
	case traits.Lister:
		return fromCELList(v, order)
	}
	return nil, fmt.Errorf("result of type %s cannot be represented", val.Type().TypeName())
}

func fromCELList(list traits.Lister, order document.KeyOrder) (*document.Node, error) {
	arr := document.NewArray()
	it := list.Iterator()
	for i := 0; it.HasNext() == types.True; i++ {
		item, err := fromCEL(it.Next(), order)
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		arr.Append(item)
	}
	return arr, nil
}

func fromCELMap(m traits.Mapper, order document.KeyOrder) (*document.Node, error) {
	var keys []string
	it := m.Iterator()
	for it.HasNext() == types.True {
		key, ok := it.Next().(types.String)
		if !ok {
			return nil, fmt.Errorf("map keys must be strings")
		}
		keys = append(keys, string(key))
	}
	order.Sort(keys)

	obj := document.NewObject()
	for _, k := range keys {
		child, err := fromCEL(m.Get(types.String(k)), order)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		obj.Set(k, child)
	}
	return obj, nil
}
