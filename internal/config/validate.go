package config

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/encoding"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

// Built-in function names accepted by FUNCTION rules.
const (
	FunctionUpperCase   = "upperCase"
	FunctionLowerCase   = "lowerCase"
	FunctionTrim        = "trim"
	FunctionLength      = "length"
	FunctionToInt       = "toInt"
	FunctionToDouble    = "toDouble"
	FunctionToString    = "toString"
	FunctionCurrentDate = "currentDate"
)

var knownFunctions = map[string]bool{
	FunctionUpperCase:   true,
	FunctionLowerCase:   true,
	FunctionTrim:        true,
	FunctionLength:      true,
	FunctionToInt:       true,
	FunctionToDouble:    true,
	FunctionToString:    true,
	FunctionCurrentDate: true,
}

// FunctionNames returns the built-in function names in sorted order.
func FunctionNames() []string {
	names := make([]string, 0, len(knownFunctions))
	for n := range knownFunctions {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsKnownFunction reports whether name is a built-in function.
func IsKnownFunction(name string) bool {
	return knownFunctions[name]
}

// Validate checks the structural invariants of the configuration. All
// violations are reported together; each is a *util.ConfigError. Path
// syntax is not checked here: a malformed path fails only its own rule.
func (c *MappingConfig) Validate() error {
	if c == nil {
		return util.NewConfigError("mappingConfig", "is required")
	}

	var errs []error
	if c.SourceProtocol != "" {
		if _, err := document.ParseProtocol(c.SourceProtocol); err != nil {
			errs = append(errs, util.NewConfigErrorWithCause("sourceProtocol", err.Error(), err))
		}
	}
	if c.TargetProtocol != "" {
		if _, err := document.ParseProtocol(c.TargetProtocol); err != nil {
			errs = append(errs, util.NewConfigErrorWithCause("targetProtocol", err.Error(), err))
		}
	}
	if c.XMLRootElementName != "" && !encoding.IsValidXMLName(c.XMLRootElementName) {
		errs = append(errs, util.NewConfigError("xmlRootElementName",
			fmt.Sprintf("%q is not a valid XML element name", c.XMLRootElementName)))
	}
	if len(c.Rules) == 0 {
		errs = append(errs, util.NewConfigError("rules", "at least one rule is required"))
	}

	for i := range c.Rules {
		errs = append(errs, c.Rules[i].validate(fmt.Sprintf("rules[%d]", i))...)
	}

	return errors.Join(errs...)
}

func (r *Rule) validate(field string) []error {
	var errs []error
	add := func(sub, msg string) {
		errs = append(errs, util.NewConfigError(field+sub, msg))
	}

	mt := r.EffectiveMappingType()
	tt := r.EffectiveTransformType()

	switch mt {
	case OneToOne, ManyToOne, OneToMany:
	default:
		add(".mappingType", fmt.Sprintf("unknown mapping type %q", r.MappingType))
		return errs
	}
	switch tt {
	case TransformDirect, TransformScripted, TransformFunction,
		TransformDictionary, TransformFixed, TransformIgnore:
	default:
		add(".transformType", fmt.Sprintf("unknown transform type %q", r.TransformType))
		return errs
	}

	switch mt {
	case OneToOne:
		if len(r.AdditionalSources) > 0 {
			add(".additionalSources", "must be empty for ONE_TO_ONE")
		}
	case ManyToOne:
		if len(r.AdditionalSources) == 0 {
			add(".additionalSources", "must not be empty for MANY_TO_ONE")
		}
		switch tt {
		case TransformScripted, TransformIgnore:
		default:
			add(".transformType", fmt.Sprintf("%s cannot be combined with MANY_TO_ONE", tt))
		}
	case OneToMany:
		if len(r.AdditionalSources) > 0 {
			add(".additionalSources", "must be empty for ONE_TO_MANY")
		}
		switch tt {
		case TransformDirect, TransformScripted, TransformIgnore:
		default:
			add(".transformType", fmt.Sprintf("%s cannot be combined with ONE_TO_MANY", tt))
		}
	}

	if tt == TransformIgnore {
		if r.TransformConfig != nil {
			add(".transformConfig", "must be omitted for IGNORE")
		}
		return errs
	}

	if r.SourcePath == "" && tt != TransformFixed {
		add(".sourcePath", "is required")
	}
	if mt != OneToMany && r.TargetPath == "" {
		add(".targetPath", "is required")
	}

	needsConfig := tt != TransformDirect || mt == OneToMany
	switch {
	case needsConfig && r.TransformConfig == nil:
		add(".transformConfig", fmt.Sprintf("is required for %s", describe(mt, tt)))
		return errs
	case !needsConfig && r.TransformConfig != nil:
		add(".transformConfig", fmt.Sprintf("must be omitted for %s", describe(mt, tt)))
		return errs
	case !needsConfig:
		return errs
	}

	tc := r.TransformConfig
	cfgField := ".transformConfig"
	switch tt {
	case TransformScripted:
		if tc.Script == "" {
			add(cfgField+".script", "is required for SCRIPTED")
		}
		switch tc.EffectiveLanguage() {
		case LanguageCEL, LanguageExpr:
		default:
			add(cfgField+".language", fmt.Sprintf("unknown script language %q", tc.Language))
		}
	case TransformFunction:
		if !IsKnownFunction(tc.Function) {
			add(cfgField+".function", fmt.Sprintf("unknown function %q", tc.Function))
		}
	case TransformDictionary:
		if tc.Dictionary == nil {
			add(cfgField+".dictionary", "is required for DICTIONARY")
		}
	case TransformFixed:
		if len(tc.FixedValue) == 0 {
			add(cfgField+".fixedValue", "is required for FIXED")
		}
	}

	if mt == OneToMany {
		if len(tc.SubMappings) == 0 {
			add(cfgField+".subMappings", "must not be empty for ONE_TO_MANY")
		}
		for j, sm := range tc.SubMappings {
			smField := fmt.Sprintf("%s.subMappings[%d]", cfgField, j)
			if sm.TargetPath == "" {
				add(smField+".targetPath", "is required")
			}
			if sm.SourcePath == "" && sm.Index == nil {
				add(smField, "needs a sourcePath or an index")
			}
		}
	}

	return errs
}

func describe(mt MappingType, tt TransformType) string {
	if mt == OneToMany {
		return string(mt)
	}
	return string(tt)
}
