package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/path"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

// execution holds the state of one transformation. The source is only
// read; the target is only written.
type execution struct {
	engine *Engine
	source *document.Node
	target *document.Node
}

func newExecution(e *Engine, source *document.Node) *execution {
	return &execution{engine: e, source: source, target: document.NewObject()}
}

// run executes one rule and returns its outcomes: one for ordinary rules,
// one per sub-mapping for ONE_TO_MANY rules.
func (x *execution) run(ctx context.Context, pr *preparedRule) []Outcome {
	ctx, span := x.engine.tracer.StartSpan(ctx, "transform.rule")
	defer span.End()
	span.SetAttributes(
		attribute.Int("rule.index", pr.index),
		attribute.String("rule.mapping_type", string(pr.mappingType)),
		attribute.String("rule.transform_type", string(pr.transformType)),
	)

	var outcomes []Outcome
	switch {
	case pr.transformType == config.TransformIgnore:
		outcomes = []Outcome{x.outcome(pr, StatusIgnored, nil)}
	case pr.err != nil:
		outcomes = []Outcome{x.outcome(pr, StatusFailed, pr.err)}
	case pr.mappingType == config.OneToMany:
		outcomes = x.runOneToMany(ctx, pr)
	default:
		outcomes = []Outcome{x.runSingle(ctx, pr)}
	}

	for _, o := range outcomes {
		x.engine.metrics.recordOutcome(pr.transformType, o.Status)
		if o.Err != nil {
			span.RecordError(o.Err)
			span.SetStatus(codes.Error, util.ErrorKind(o.Err))
			x.engine.logger.WithContext(ctx).Warn("rule failed",
				ruleLogFields(pr, o)...,
			)
		}
	}
	if len(outcomes) == 1 {
		span.SetAttributes(attribute.String("rule.status", string(outcomes[0].Status)))
	}
	return outcomes
}

func (x *execution) outcome(pr *preparedRule, status Status, err error) Outcome {
	return Outcome{
		RuleIndex:  pr.index,
		SubIndex:   -1,
		TargetPath: pr.rule.TargetPath,
		Status:     status,
		Err:        err,
	}
}

// inputs resolves the rule's sources. Absent sources are nil.
func (x *execution) inputs(pr *preparedRule) []*document.Node {
	in := make([]*document.Node, len(pr.sources))
	for i, expr := range pr.sources {
		if n, ok := path.Get(x.source, expr); ok {
			in[i] = n
		}
	}
	return in
}

func (x *execution) runSingle(ctx context.Context, pr *preparedRule) Outcome {
	value, ok, err := x.transform(ctx, pr, x.inputs(pr))
	if err != nil {
		return x.outcome(pr, StatusFailed, err)
	}
	if !ok {
		return x.outcome(pr, StatusSkipped, nil)
	}
	if err := x.write(pr.index, pr.target, value); err != nil {
		return x.outcome(pr, StatusFailed, err)
	}
	return x.outcome(pr, StatusWritten, nil)
}

// transform turns the resolved inputs into the value to write. ok is false
// when there is nothing to write.
func (x *execution) transform(ctx context.Context, pr *preparedRule, inputs []*document.Node) (*document.Node, bool, error) {
	var first *document.Node
	if len(inputs) > 0 {
		first = inputs[0]
	}

	switch pr.transformType {
	case config.TransformDirect:
		return first, first != nil, nil
	case config.TransformScripted:
		out, err := pr.program.Run(ctx, inputs)
		if err != nil {
			return nil, false, bindScriptError(pr.index, err)
		}
		return out, true, nil
	case config.TransformFunction:
		out, ok, err := x.engine.callFunction(pr.function, first)
		if err != nil {
			return nil, false, util.NewMappingError(pr.index, pr.rule.SourcePath,
				fmt.Sprintf("function %s failed", pr.function), err)
		}
		return out, ok, nil
	case config.TransformDictionary:
		if first == nil {
			return nil, false, nil
		}
		if first.IsScalar() && !first.IsNull() {
			if mapped, ok := pr.dictionary[first.Text()]; ok {
				return mapped, true, nil
			}
		}
		if pr.fallback != nil {
			return pr.fallback, true, nil
		}
		return first, true, nil
	case config.TransformFixed:
		return pr.fixed, true, nil
	}
	return nil, false, util.NewMappingError(pr.index, "", fmt.Sprintf("unsupported transform type %s", pr.transformType), nil)
}

func (x *execution) write(ruleIndex int, expr *path.Expression, value *document.Node) error {
	root, err := path.Set(x.target, expr, value)
	if err != nil {
		return util.NewMappingError(ruleIndex, expr.String(), "cannot write target", err)
	}
	x.target = root
	return nil
}

// runOneToMany spreads the rule's source, or the script's result, over
// the sub-mappings.
func (x *execution) runOneToMany(ctx context.Context, pr *preparedRule) []Outcome {
	inputs := x.inputs(pr)
	base, ok, err := x.transform(ctx, pr, inputs)
	if err != nil {
		return []Outcome{x.outcome(pr, StatusFailed, err)}
	}
	if !ok {
		return []Outcome{x.outcome(pr, StatusSkipped, nil)}
	}
	if pr.transformType == config.TransformScripted &&
		base.Kind() != document.KindObject && base.Kind() != document.KindArray {
		err := &util.ScriptError{
			RuleIndex: pr.index,
			Language:  pr.program.Language(),
			Message:   fmt.Sprintf("ONE_TO_MANY script must return an object or array, got %s", base.Kind()),
		}
		return []Outcome{x.outcome(pr, StatusFailed, err)}
	}

	outcomes := make([]Outcome, 0, len(pr.subs))
	for j, sub := range pr.subs {
		o := Outcome{
			RuleIndex:  pr.index,
			SubIndex:   j,
			TargetPath: pr.rule.TransformConfig.SubMappings[j].TargetPath,
		}
		switch value, found := sub.resolve(base); {
		case sub.err != nil:
			o.Status, o.Err = StatusFailed, sub.err
		case !found:
			o.Status = StatusSkipped
		default:
			if err := x.write(pr.index, sub.target, value); err != nil {
				o.Status, o.Err = StatusFailed, err
			} else {
				o.Status = StatusWritten
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (s preparedSub) resolve(base *document.Node) (*document.Node, bool) {
	if s.err != nil {
		return nil, false
	}
	if s.source != nil {
		return path.Get(base, s.source)
	}
	if s.hasIndex {
		return base.Index(s.index)
	}
	return nil, false
}
