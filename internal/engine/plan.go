package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/encoding"
	"github.com/vyrodovalexey/avamapper/internal/path"
	"github.com/vyrodovalexey/avamapper/internal/sandbox"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

// preparedRule is a rule with its paths parsed, its script compiled and
// its constants decoded. err holds a failure local to the rule.
type preparedRule struct {
	index         int
	rule          *config.Rule
	mappingType   config.MappingType
	transformType config.TransformType

	sources  []*path.Expression
	target   *path.Expression
	program  sandbox.Program
	function string

	fixed      *document.Node
	dictionary map[string]*document.Node
	fallback   *document.Node

	subs []preparedSub
	err  error
}

type preparedSub struct {
	source   *path.Expression
	index    int
	hasIndex bool
	target   *path.Expression
	err      error
}

// prepare compiles every rule of cfg. It fails only when a constant in
// the configuration cannot be decoded; path and script problems are kept
// on the rule they belong to.
func (e *Engine) prepare(cfg *config.MappingConfig) ([]*preparedRule, error) {
	rules := make([]*preparedRule, len(cfg.Rules))
	var errs []error

	for i := range cfg.Rules {
		r := &cfg.Rules[i]
		pr := &preparedRule{
			index:         i,
			rule:          r,
			mappingType:   r.EffectiveMappingType(),
			transformType: r.EffectiveTransformType(),
		}
		rules[i] = pr

		if pr.transformType == config.TransformIgnore {
			continue
		}
		if err := e.prepareConstants(pr); err != nil {
			errs = append(errs, err)
			continue
		}
		pr.err = e.prepareRule(pr)
	}

	return rules, errors.Join(errs...)
}

func (e *Engine) prepareRule(pr *preparedRule) error {
	r := pr.rule
	for _, src := range r.Sources() {
		expr, err := path.Parse(src)
		if err != nil {
			return util.NewMappingError(pr.index, src, "invalid source path", err)
		}
		pr.sources = append(pr.sources, expr)
	}

	if pr.mappingType == config.OneToMany {
		for j, sm := range r.TransformConfig.SubMappings {
			pr.subs = append(pr.subs, prepareSub(pr.index, j, sm))
		}
	} else {
		expr, err := path.Parse(r.TargetPath)
		if err == nil {
			err = expr.CheckWritable()
		}
		if err != nil {
			return util.NewMappingError(pr.index, r.TargetPath, "invalid target path", err)
		}
		pr.target = expr
	}

	switch pr.transformType {
	case config.TransformScripted:
		tc := r.TransformConfig
		prg, err := e.sandbox.Compile(tc.EffectiveLanguage(), tc.Script)
		if err != nil {
			return bindScriptError(pr.index, err)
		}
		pr.program = prg
	case config.TransformFunction:
		pr.function = r.TransformConfig.Function
	}
	return nil
}

func prepareSub(ruleIndex, j int, sm config.SubMapping) preparedSub {
	var ps preparedSub
	if sm.Index != nil {
		ps.index = int(*sm.Index)
		ps.hasIndex = true
	}
	if sm.SourcePath != "" {
		expr, err := path.Parse(sm.SourcePath)
		if err != nil {
			ps.err = util.NewMappingError(ruleIndex, sm.SourcePath,
				fmt.Sprintf("invalid source path of sub-mapping %d", j), err)
			return ps
		}
		ps.source = expr
	}
	expr, err := path.Parse(sm.TargetPath)
	if err == nil {
		err = expr.CheckWritable()
	}
	if err != nil {
		ps.err = util.NewMappingError(ruleIndex, sm.TargetPath,
			fmt.Sprintf("invalid target path of sub-mapping %d", j), err)
		return ps
	}
	ps.target = expr
	return ps
}

func (e *Engine) prepareConstants(pr *preparedRule) error {
	tc := pr.rule.TransformConfig
	field := fmt.Sprintf("rules[%d].transformConfig", pr.index)

	switch pr.transformType {
	case config.TransformFixed:
		n, err := e.decodeConstant(tc.FixedValue)
		if err != nil {
			return util.NewConfigErrorWithCause(field+".fixedValue", "cannot be decoded", err)
		}
		pr.fixed = n
	case config.TransformDictionary:
		keys := make([]string, 0, len(tc.Dictionary))
		for k := range tc.Dictionary {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pr.dictionary = make(map[string]*document.Node, len(keys))
		for _, k := range keys {
			n, err := e.decodeConstant(tc.Dictionary[k])
			if err != nil {
				return util.NewConfigErrorWithCause(fmt.Sprintf("%s.dictionary[%q]", field, k), "cannot be decoded", err)
			}
			pr.dictionary[k] = n
		}
		if len(tc.DefaultValue) > 0 {
			n, err := e.decodeConstant(tc.DefaultValue)
			if err != nil {
				return util.NewConfigErrorWithCause(field+".defaultValue", "cannot be decoded", err)
			}
			pr.fallback = n
		}
	}
	return nil
}

func (e *Engine) decodeConstant(raw json.RawMessage) (*document.Node, error) {
	codec, err := e.codecs.Get(document.ProtocolJSON)
	if err != nil {
		return nil, err
	}
	doc, err := codec.Decode(raw, encoding.DecodeOptions{})
	if err != nil {
		return nil, err
	}
	return doc.Root, nil
}

// bindScriptError attaches the rule index to a sandbox error.
func bindScriptError(ruleIndex int, err error) error {
	var scriptErr *util.ScriptError
	if !errors.As(err, &scriptErr) {
		return &util.ScriptError{RuleIndex: ruleIndex, Language: "", Message: "script failed", Cause: err}
	}
	bound := *scriptErr
	bound.RuleIndex = ruleIndex
	return &bound
}
