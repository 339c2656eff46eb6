package config

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avamapper/internal/util"
)

func TestMappingConfig_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	raw := `{
		"sourceProtocol": "json",
		"targetProtocol": "XML",
		"xmlRootElementName": "order",
		"rules": [
			{"sourcePath": "a", "targetPath": "b"},
			{"sourcePath": "a", "targetPath": "c", "transformType": "equal"},
			{"sourcePath": "a", "additionalSources": ["b"], "targetPath": "d",
			 "mappingType": "many-to-one", "transformType": "GROOVY",
			 "transformConfig": {"groovyScript": "inputs[0] + inputs[1]"}},
			{"sourcePath": "n", "targetPath": "e", "transformType": "dict",
			 "transformConfig": {"dictionary": {"1": "one"}, "defaultValue": "?"}},
			{"sourcePath": "list", "mappingType": "ONE_TO_MANY",
			 "transformConfig": {"subMappings": [{"index": "1", "targetPath": "x"}, {"index": 0, "targetPath": "y"}]}}
		]
	}`

	var cfg MappingConfig
	require.NoError(t, json.Unmarshal([]byte(raw), &cfg))
	require.Len(t, cfg.Rules, 5)

	assert.Equal(t, OneToOne, cfg.Rules[0].EffectiveMappingType())
	assert.Equal(t, TransformDirect, cfg.Rules[0].EffectiveTransformType())
	assert.Equal(t, TransformDirect, cfg.Rules[1].TransformType)

	r := cfg.Rules[2]
	assert.Equal(t, ManyToOne, r.MappingType)
	assert.Equal(t, TransformScripted, r.TransformType)
	assert.Equal(t, "inputs[0] + inputs[1]", r.TransformConfig.Script)
	assert.Equal(t, LanguageCEL, r.TransformConfig.EffectiveLanguage())
	assert.Equal(t, []string{"a", "b"}, r.Sources())

	assert.Equal(t, TransformDictionary, cfg.Rules[3].TransformType)
	assert.JSONEq(t, `"one"`, string(cfg.Rules[3].TransformConfig.Dictionary["1"]))

	subs := cfg.Rules[4].TransformConfig.SubMappings
	require.Len(t, subs, 2)
	assert.Equal(t, FlexInt(1), *subs[0].Index)
	assert.Equal(t, FlexInt(0), *subs[1].Index)

	require.NoError(t, cfg.Validate())
}

func TestTransformConfig_ExpressionAlias(t *testing.T) {
	t.Parallel()

	var tc TransformConfig
	require.NoError(t, json.Unmarshal([]byte(`{"expression":"input * 2","language":"EXPR"}`), &tc))
	assert.Equal(t, "input * 2", tc.Script)
	assert.Equal(t, LanguageExpr, tc.EffectiveLanguage())

	require.NoError(t, json.Unmarshal([]byte(`{"script":"a","expression":"b"}`), &tc))
	assert.Equal(t, "a", tc.Script)
}

func TestFlexInt_Invalid(t *testing.T) {
	t.Parallel()

	var f FlexInt
	assert.Error(t, json.Unmarshal([]byte(`"x"`), &f))
	assert.Error(t, json.Unmarshal([]byte(`1.5`), &f))
}

func TestMappingConfig_Validate(t *testing.T) {
	t.Parallel()

	script := func(s string) *TransformConfig { return &TransformConfig{Script: s} }

	tests := []struct {
		name   string
		cfg    *MappingConfig
		fields []string
	}{
		{
			name: "valid direct",
			cfg:  &MappingConfig{Rules: []Rule{{SourcePath: "a", TargetPath: "b"}}},
		},
		{
			name: "valid fixed without source",
			cfg: &MappingConfig{Rules: []Rule{{
				TargetPath: "v", TransformType: TransformFixed,
				TransformConfig: &TransformConfig{FixedValue: json.RawMessage(`"1.0"`)},
			}}},
		},
		{
			name: "valid ignore",
			cfg:  &MappingConfig{Rules: []Rule{{SourcePath: "a", TransformType: TransformIgnore}}},
		},
		{
			name:   "nil config",
			cfg:    nil,
			fields: []string{"mappingConfig"},
		},
		{
			name:   "no rules",
			cfg:    &MappingConfig{},
			fields: []string{"rules"},
		},
		{
			name: "unknown protocols and bad root name",
			cfg: &MappingConfig{
				SourceProtocol: "YAML", TargetProtocol: "CSV", XMLRootElementName: "1bad",
				Rules: []Rule{{SourcePath: "a", TargetPath: "b"}},
			},
			fields: []string{"sourceProtocol", "targetProtocol", "xmlRootElementName"},
		},
		{
			name:   "one to one with additional sources",
			cfg:    &MappingConfig{Rules: []Rule{{SourcePath: "a", AdditionalSources: []string{"b"}, TargetPath: "c"}}},
			fields: []string{"rules[0].additionalSources"},
		},
		{
			name: "many to one without additional sources",
			cfg: &MappingConfig{Rules: []Rule{{
				SourcePath: "a", TargetPath: "c", MappingType: ManyToOne,
				TransformType: TransformScripted, TransformConfig: script("inputs[0]"),
			}}},
			fields: []string{"rules[0].additionalSources"},
		},
		{
			name: "direct with many to one",
			cfg: &MappingConfig{Rules: []Rule{{
				SourcePath: "a", AdditionalSources: []string{"b"}, TargetPath: "c", MappingType: ManyToOne,
			}}},
			fields: []string{"rules[0].transformType"},
		},
		{
			name: "direct with transform config",
			cfg: &MappingConfig{Rules: []Rule{{
				SourcePath: "a", TargetPath: "b", TransformConfig: script("x"),
			}}},
			fields: []string{"rules[0].transformConfig"},
		},
		{
			name: "scripted without config",
			cfg: &MappingConfig{Rules: []Rule{{
				SourcePath: "a", TargetPath: "b", TransformType: TransformScripted,
			}}},
			fields: []string{"rules[0].transformConfig"},
		},
		{
			name: "scripted with empty script and unknown language",
			cfg: &MappingConfig{Rules: []Rule{{
				SourcePath: "a", TargetPath: "b", TransformType: TransformScripted,
				TransformConfig: &TransformConfig{Language: "groovy"},
			}}},
			fields: []string{"rules[0].transformConfig.script", "rules[0].transformConfig.language"},
		},
		{
			name: "unknown function",
			cfg: &MappingConfig{Rules: []Rule{{
				SourcePath: "a", TargetPath: "b", TransformType: TransformFunction,
				TransformConfig: &TransformConfig{Function: "reverse"},
			}}},
			fields: []string{"rules[0].transformConfig.function"},
		},
		{
			name:   "missing target path",
			cfg:    &MappingConfig{Rules: []Rule{{SourcePath: "a"}}},
			fields: []string{"rules[0].targetPath"},
		},
		{
			name: "one to many without sub mappings",
			cfg: &MappingConfig{Rules: []Rule{{
				SourcePath: "a", MappingType: OneToMany, TransformConfig: &TransformConfig{},
			}}},
			fields: []string{"rules[0].transformConfig.subMappings"},
		},
		{
			name: "one to many sub mapping without target",
			cfg: &MappingConfig{Rules: []Rule{{
				SourcePath: "a", MappingType: OneToMany,
				TransformConfig: &TransformConfig{SubMappings: []SubMapping{{SourcePath: "x"}}},
			}}},
			fields: []string{"rules[0].transformConfig.subMappings[0].targetPath"},
		},
		{
			name: "unknown enum values",
			cfg: &MappingConfig{Rules: []Rule{
				{SourcePath: "a", TargetPath: "b", MappingType: "MANY_TO_MANY"},
				{SourcePath: "a", TargetPath: "b", TransformType: "MAGIC"},
			}},
			fields: []string{"rules[0].mappingType", "rules[1].transformType"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.cfg.Validate()
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, util.ErrConfig)
			assert.ElementsMatch(t, tt.fields, configErrorFields(err))
		})
	}
}

func TestFunctionNames(t *testing.T) {
	t.Parallel()

	names := FunctionNames()
	assert.Len(t, names, 8)
	assert.IsIncreasing(t, names)
	for _, n := range names {
		assert.True(t, IsKnownFunction(n))
	}
	assert.False(t, IsKnownFunction("UPPERCASE"))
}

func configErrorFields(err error) []string {
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}

	fields := make([]string, 0, len(errs))
	for _, e := range errs {
		var cfgErr *util.ConfigError
		if errors.As(e, &cfgErr) {
			fields = append(fields, cfgErr.Field)
		}
	}
	return fields
}
