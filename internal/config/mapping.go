package config

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MappingType is the arity of a rule's inputs and outputs.
type MappingType string

// Mapping types.
const (
	OneToOne  MappingType = "ONE_TO_ONE"
	ManyToOne MappingType = "MANY_TO_ONE"
	OneToMany MappingType = "ONE_TO_MANY"
)

// TransformType selects how a rule's inputs become its output.
type TransformType string

// Transform types.
const (
	TransformDirect     TransformType = "DIRECT"
	TransformScripted   TransformType = "SCRIPTED"
	TransformFunction   TransformType = "FUNCTION"
	TransformDictionary TransformType = "DICTIONARY"
	TransformFixed      TransformType = "FIXED"
	TransformIgnore     TransformType = "IGNORE"
)

// ConfigType is an informational marker carried by mapping configurations.
type ConfigType string

// Config types.
const (
	ConfigTypeRequest  ConfigType = "REQUEST"
	ConfigTypeResponse ConfigType = "RESPONSE"
)

// Script languages.
const (
	LanguageCEL  = "cel"
	LanguageExpr = "expr"
)

var transformAliases = map[string]TransformType{
	"EQUAL":  TransformDirect,
	"GROOVY": TransformScripted,
	"SCRIPT": TransformScripted,
	"DICT":   TransformDictionary,
}

// UnmarshalJSON accepts mapping type names case-insensitively.
func (m *MappingType) UnmarshalJSON(b []byte) error {
	s, err := unquote(b)
	if err != nil {
		return err
	}
	*m = MappingType(normalizeEnum(s))
	return nil
}

// UnmarshalJSON accepts transform type names case-insensitively and maps
// the legacy aliases EQUAL, GROOVY, SCRIPT and DICT.
func (t *TransformType) UnmarshalJSON(b []byte) error {
	s, err := unquote(b)
	if err != nil {
		return err
	}
	name := normalizeEnum(s)
	if alias, ok := transformAliases[name]; ok {
		*t = alias
		return nil
	}
	*t = TransformType(name)
	return nil
}

func normalizeEnum(s string) string {
	return strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")
}

func unquote(b []byte) (string, error) {
	if string(b) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return "", fmt.Errorf("expected a string: %w", err)
	}
	return s, nil
}

// MappingConfig is the per-request transformation configuration.
type MappingConfig struct {
	// Name is an optional label used in logs.
	Name string `json:"name,omitempty"`

	ConfigType ConfigType `json:"configType,omitempty"`

	// SourceProtocol selects the decoder. Empty means detect from the data.
	SourceProtocol string `json:"sourceProtocol,omitempty"`

	// TargetProtocol selects the encoder. Empty means the source protocol.
	TargetProtocol string `json:"targetProtocol,omitempty"`

	PrettyPrint bool `json:"prettyPrint,omitempty"`

	XMLRootElementName string `json:"xmlRootElementName,omitempty"`

	IncludeXMLDeclaration bool `json:"includeXmlDeclaration,omitempty"`

	// CoerceXMLScalars decodes XML text that reads as a number or boolean
	// into that scalar instead of a string.
	CoerceXMLScalars bool `json:"coerceXmlScalars,omitempty"`

	Rules []Rule `json:"rules"`
}

// Rule is a single mapping instruction.
type Rule struct {
	SourcePath        string           `json:"sourcePath,omitempty"`
	AdditionalSources []string         `json:"additionalSources,omitempty"`
	TargetPath        string           `json:"targetPath,omitempty"`
	MappingType       MappingType      `json:"mappingType,omitempty"`
	TransformType     TransformType    `json:"transformType,omitempty"`
	TransformConfig   *TransformConfig `json:"transformConfig,omitempty"`
	Description       string           `json:"description,omitempty"`
}

// EffectiveMappingType returns the mapping type with the ONE_TO_ONE default.
func (r *Rule) EffectiveMappingType() MappingType {
	if r.MappingType == "" {
		return OneToOne
	}
	return r.MappingType
}

// EffectiveTransformType returns the transform type with the DIRECT default.
func (r *Rule) EffectiveTransformType() TransformType {
	if r.TransformType == "" {
		return TransformDirect
	}
	return r.TransformType
}

// Sources returns sourcePath followed by additionalSources.
func (r *Rule) Sources() []string {
	out := make([]string, 0, 1+len(r.AdditionalSources))
	if r.SourcePath != "" {
		out = append(out, r.SourcePath)
	}
	return append(out, r.AdditionalSources...)
}

// TransformConfig holds the settings a transform type needs.
type TransformConfig struct {
	// Script is the expression evaluated by SCRIPTED rules.
	Script string `json:"script,omitempty"`
	// Language is the script dialect, "cel" (default) or "expr".
	Language string `json:"language,omitempty"`

	// Function names the FUNCTION built-in.
	Function string `json:"function,omitempty"`

	// Dictionary maps the input's text to a replacement for DICTIONARY rules.
	Dictionary map[string]json.RawMessage `json:"dictionary,omitempty"`
	// DefaultValue replaces dictionary misses. Without it a miss keeps the input.
	DefaultValue json.RawMessage `json:"defaultValue,omitempty"`

	// FixedValue is written by FIXED rules.
	FixedValue json.RawMessage `json:"fixedValue,omitempty"`

	// SubMappings fan a ONE_TO_MANY source out to several targets.
	SubMappings []SubMapping `json:"subMappings,omitempty"`
}

// UnmarshalJSON reads "script", or the "expression"/"groovyScript" aliases.
func (c *TransformConfig) UnmarshalJSON(b []byte) error {
	type plain TransformConfig
	var wire struct {
		plain
		Expression   string `json:"expression,omitempty"`
		GroovyScript string `json:"groovyScript,omitempty"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	*c = TransformConfig(wire.plain)
	if c.Script == "" {
		c.Script = wire.Expression
	}
	if c.Script == "" {
		c.Script = wire.GroovyScript
	}
	return nil
}

// EffectiveLanguage returns the script language with the CEL default.
func (c *TransformConfig) EffectiveLanguage() string {
	if c == nil || c.Language == "" {
		return LanguageCEL
	}
	return strings.ToLower(c.Language)
}

// SubMapping routes one piece of a ONE_TO_MANY source to a target path.
// An empty SourcePath together with Index selects an item of an array
// source.
type SubMapping struct {
	SourcePath string   `json:"sourcePath,omitempty"`
	TargetPath string   `json:"targetPath"`
	Index      *FlexInt `json:"index,omitempty"`
}

// FlexInt is an integer that also accepts its decimal string form.
type FlexInt int

// UnmarshalJSON accepts 3 and "3".
func (f *FlexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	i, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid index %s", string(b))
	}
	*f = FlexInt(i)
	return nil
}
