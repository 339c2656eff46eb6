package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avamapper/internal/config"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

func TestTransform_Functions(t *testing.T) {
	t.Parallel()

	clock := func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local) }
	e := newTestEngine(t, WithClock(clock))

	tests := []struct {
		name     string
		function string
		input    string
		want     string
	}{
		{name: "upper case", function: config.FunctionUpperCase, input: `"straße"`, want: `"STRASSE"`},
		{name: "lower case", function: config.FunctionLowerCase, input: `"ÀBC"`, want: `"àbc"`},
		{name: "trim", function: config.FunctionTrim, input: `"  x  "`, want: `"x"`},
		{name: "upper case of null", function: config.FunctionUpperCase, input: `null`, want: `null`},
		{name: "upper case of number", function: config.FunctionUpperCase, input: `12`, want: `"12"`},
		{name: "length counts characters", function: config.FunctionLength, input: `"张三"`, want: `2`},
		{name: "length of array", function: config.FunctionLength, input: `[1,2,3]`, want: `3`},
		{name: "toInt truncates text", function: config.FunctionToInt, input: `"3.9"`, want: `3`},
		{name: "toInt of float", function: config.FunctionToInt, input: `-7.5`, want: `-7`},
		{name: "toInt of garbage", function: config.FunctionToInt, input: `"abc"`, want: `0`},
		{name: "toDouble of text", function: config.FunctionToDouble, input: `"2.5"`, want: `2.5`},
		{name: "toDouble of garbage", function: config.FunctionToDouble, input: `"abc"`, want: `0.0`},
		{name: "toString of number", function: config.FunctionToString, input: `42`, want: `"42"`},
		{name: "toString of object", function: config.FunctionToString, input: `{"b":1,"a":[true]}`, want: `"{\"b\":1,\"a\":[true]}"`},
		{name: "current date", function: config.FunctionCurrentDate, input: `"ignored"`, want: `"2024-05-06 07:08:09"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := mustConfig(t, `{"rules": [{
				"sourcePath": "$.v", "targetPath": "out", "transformType": "FUNCTION",
				"transformConfig": {"function": "`+tt.function+`"}
			}]}`)
			res := e.Transform(context.Background(), []byte(`{"v":`+tt.input+`}`), cfg)
			require.True(t, res.Success, res.ErrorMessage)
			assert.Equal(t, `{"out":`+tt.want+`}`, res.TransformedData)
		})
	}
}

func TestTransform_FunctionErrors(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	cfg := mustConfig(t, `{"rules": [
		{"sourcePath": "$.obj", "targetPath": "up", "transformType": "FUNCTION", "transformConfig": {"function": "upperCase"}},
		{"sourcePath": "$.missing", "targetPath": "len", "transformType": "FUNCTION", "transformConfig": {"function": "length"}},
		{"sourcePath": "$.s", "targetPath": "s"}
	]}`)

	res := e.Transform(context.Background(), []byte(`{"obj":{"a":1},"s":"x"}`), cfg)
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, `{"s":"x"}`, res.TransformedData)
	require.Len(t, res.Warnings, 1)
	assert.Equal(t, "mapping", res.Warnings[0].Kind)
	assert.Contains(t, res.Warnings[0].Message, "upperCase")
	assert.Equal(t, StatusSkipped, res.Outcomes[1].Status)
}

func TestTransform_Dictionary(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	tests := []struct {
		name   string
		input  string
		config string
		want   string
	}{
		{
			name:   "hit",
			input:  `"M"`,
			config: `{"dictionary": {"M": "male", "F": "female"}, "defaultValue": "unknown"}`,
			want:   `"male"`,
		},
		{
			name:   "miss uses default",
			input:  `"X"`,
			config: `{"dictionary": {"M": "male"}, "defaultValue": "unknown"}`,
			want:   `"unknown"`,
		},
		{
			name:   "miss without default keeps input",
			input:  `"X"`,
			config: `{"dictionary": {"M": "male"}}`,
			want:   `"X"`,
		},
		{
			name:   "number key matched by text",
			input:  `1`,
			config: `{"dictionary": {"1": {"code": "A"}}}`,
			want:   `{"code":"A"}`,
		},
		{
			name:   "container input falls to default",
			input:  `[1]`,
			config: `{"dictionary": {"1": "one"}, "defaultValue": "none"}`,
			want:   `"none"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := mustConfig(t, `{"rules": [{
				"sourcePath": "$.v", "targetPath": "out", "transformType": "DICTIONARY",
				"transformConfig": `+tt.config+`
			}]}`)
			res := e.Transform(context.Background(), []byte(`{"v":`+tt.input+`}`), cfg)
			require.True(t, res.Success, res.ErrorMessage)
			assert.Equal(t, `{"out":`+tt.want+`}`, res.TransformedData)
		})
	}
}

func TestTransform_FixedAndIgnore(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	cfg := mustConfig(t, `{"rules": [
		{"targetPath": "meta.version", "transformType": "FIXED", "transformConfig": {"fixedValue": 2}},
		{"targetPath": "meta.tags", "transformType": "FIXED", "transformConfig": {"fixedValue": ["a", {"b": null}]}},
		{"sourcePath": "$.secret", "targetPath": "secret", "transformType": "IGNORE"},
		{"sourcePath": "$.name", "targetPath": "name"}
	]}`)

	res := e.Transform(context.Background(), []byte(`{"secret":"s","name":"n"}`), cfg)
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, `{"meta":{"version":2,"tags":["a",{"b":null}]},"name":"n"}`, res.TransformedData)
	assert.Equal(t, StatusIgnored, res.Outcomes[2].Status)
	assert.Equal(t, 3, res.Written())
}

func TestTransform_OneToMany(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)

	t.Run("direct with sub paths", func(t *testing.T) {
		t.Parallel()
		cfg := mustConfig(t, `{"rules": [{
			"sourcePath": "$.address", "mappingType": "ONE_TO_MANY",
			"transformConfig": {"subMappings": [
				{"sourcePath": "$.city", "targetPath": "city"},
				{"sourcePath": "$.zip", "targetPath": "postal.code"},
				{"sourcePath": "$.missing", "targetPath": "never"}
			]}
		}]}`)
		res := e.Transform(context.Background(), []byte(`{"address":{"city":"Oslo","zip":"0150"}}`), cfg)
		require.True(t, res.Success, res.ErrorMessage)
		assert.Equal(t, `{"city":"Oslo","postal":{"code":"0150"}}`, res.TransformedData)
		require.Len(t, res.Outcomes, 3)
		assert.Equal(t, 2, res.Outcomes[2].SubIndex)
		assert.Equal(t, StatusSkipped, res.Outcomes[2].Status)
		assert.Empty(t, res.Warnings)
	})

	t.Run("script result spread by index", func(t *testing.T) {
		t.Parallel()
		cfg := mustConfig(t, `{"rules": [{
			"sourcePath": "$.fullName", "mappingType": "ONE_TO_MANY", "transformType": "SCRIPTED",
			"transformConfig": {"script": "input.split(' ')", "subMappings": [
				{"index": 0, "targetPath": "first"},
				{"index": "1", "targetPath": "last"},
				{"index": 5, "targetPath": "none"}
			]}
		}]}`)
		res := e.Transform(context.Background(), []byte(`{"fullName":"Ada Lovelace"}`), cfg)
		require.True(t, res.Success, res.ErrorMessage)
		assert.Equal(t, `{"first":"Ada","last":"Lovelace"}`, res.TransformedData)
	})

	t.Run("script returning a scalar", func(t *testing.T) {
		t.Parallel()
		cfg := mustConfig(t, `{"rules": [
			{"sourcePath": "$.n", "mappingType": "ONE_TO_MANY", "transformType": "SCRIPTED",
			 "transformConfig": {"script": "input + 1", "subMappings": [{"index": 0, "targetPath": "x"}]}},
			{"sourcePath": "$.n", "targetPath": "n"}
		]}`)
		res := e.Transform(context.Background(), []byte(`{"n":1}`), cfg)
		require.True(t, res.Success, res.ErrorMessage)
		assert.Equal(t, `{"n":1}`, res.TransformedData)
		require.Len(t, res.Warnings, 1)
		assert.Equal(t, "script", res.Warnings[0].Kind)
		assert.Contains(t, res.Warnings[0].Message, "object or array")
	})

	t.Run("bad sub-mapping path fails only that sub-mapping", func(t *testing.T) {
		t.Parallel()
		cfg := mustConfig(t, `{"rules": [{
			"sourcePath": "$.a", "mappingType": "ONE_TO_MANY",
			"transformConfig": {"subMappings": [
				{"sourcePath": "$.b[", "targetPath": "b"},
				{"sourcePath": "$.c", "targetPath": "c"}
			]}
		}]}`)
		res := e.Transform(context.Background(), []byte(`{"a":{"b":1,"c":2}}`), cfg)
		require.True(t, res.Success, res.ErrorMessage)
		assert.Equal(t, `{"c":2}`, res.TransformedData)
		require.Len(t, res.Warnings, 1)
		require.NotNil(t, res.Warnings[0].SubIndex)
		assert.Equal(t, 0, *res.Warnings[0].SubIndex)
		assert.ErrorIs(t, res.Outcomes[0].Err, util.ErrMapping)
	})
}

func TestTransform_ManyToOneAbsentInputs(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	cfg := mustConfig(t, `{"rules": [{
		"sourcePath": "$.a", "additionalSources": ["$.missing", "$.b"],
		"targetPath": "out", "mappingType": "MANY_TO_ONE", "transformType": "SCRIPTED",
		"transformConfig": {"script": "[inputs[0], inputs[1] == null, inputs[2]]"}
	}]}`)

	res := e.Transform(context.Background(), []byte(`{"a":1,"b":"x"}`), cfg)
	require.True(t, res.Success, res.ErrorMessage)
	assert.Equal(t, `{"out":[1,true,"x"]}`, res.TransformedData)
}

func TestFunctions(t *testing.T) {
	t.Parallel()

	fns := Functions()
	assert.Len(t, fns, len(config.FunctionNames()))
	for _, name := range config.FunctionNames() {
		assert.NotEmpty(t, fns[name], name)
	}

	fns[config.FunctionTrim] = "changed"
	assert.NotEqual(t, "changed", Functions()[config.FunctionTrim])
}
