package encoding

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

func TestJSONCodec_Decode(t *testing.T) {
	t.Parallel()

	codec := NewJSONCodec()

	tests := []struct {
		name     string
		input    string
		expected any
		order    string
	}{
		{
			name:     "nested object keeps key order",
			input:    `{"user":{"name":"张三","age":30}}`,
			expected: map[string]any{"user": map[string]any{"name": "张三", "age": int64(30)}},
			order:    `{"user":{"name":"张三","age":30}}`,
		},
		{
			name:     "number literals are preserved",
			input:    `{"a":1.50,"b":-0,"c":2e3}`,
			expected: map[string]any{"a": 1.5, "b": int64(0), "c": 2000.0},
			order:    `{"a":1.50,"b":-0,"c":2e3}`,
		},
		{
			name:     "duplicate key keeps first position and last value",
			input:    `{"a":1,"b":2,"a":3}`,
			expected: map[string]any{"a": int64(3), "b": int64(2)},
			order:    `{"a":3,"b":2}`,
		},
		{
			name:     "scalar root",
			input:    ` "hello" `,
			expected: "hello",
			order:    `"hello"`,
		},
		{
			name:     "array root with mixed values",
			input:    `[true,null,{"k":[]}]`,
			expected: []any{true, nil, map[string]any{"k": []any{}}},
			order:    `[true,null,{"k":[]}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc, err := codec.Decode([]byte(tt.input), DecodeOptions{})
			require.NoError(t, err)
			assert.Equal(t, document.ProtocolJSON, doc.Meta.Protocol)

			if diff := cmp.Diff(tt.expected, doc.Root.Interface()); diff != "" {
				t.Errorf("decoded value mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.order, doc.Root.String())
		})
	}
}

func TestJSONCodec_DecodeErrors(t *testing.T) {
	t.Parallel()

	codec := NewJSONCodec()

	tests := []struct {
		name    string
		input   string
		message string
	}{
		{name: "empty input", input: "", message: "empty document"},
		{name: "whitespace only", input: "  \n", message: "empty document"},
		{name: "truncated object", input: `{"a":1`, message: "unexpected end of input"},
		{name: "trailing garbage", input: `{"a":1} x`, message: "invalid character"},
		{name: "second value", input: `{"a":1}{"b":2}`, message: "unexpected data after top-level value"},
		{name: "missing colon", input: `{"a" 1}`, message: "invalid character"},
		{name: "bare word", input: `hello`, message: "invalid character"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := codec.Decode([]byte(tt.input), DecodeOptions{})
			require.Error(t, err)
			assert.ErrorIs(t, err, util.ErrFormat)
			assert.Contains(t, err.Error(), tt.message)

			var formatErr *util.FormatError
			require.True(t, errors.As(err, &formatErr))
			assert.Equal(t, "JSON", formatErr.Protocol)
		})
	}
}

func TestJSONCodec_Encode(t *testing.T) {
	t.Parallel()

	codec := NewJSONCodec()

	tests := []struct {
		name     string
		input    string
		opts     Options
		expected string
	}{
		{
			name:     "compact preserves order",
			input:    `{"z":1,"a":{"y":true,"x":null},"m":[1.50,"s"]}`,
			expected: `{"z":1,"a":{"y":true,"x":null},"m":[1.50,"s"]}`,
		},
		{
			name:     "html characters are not escaped",
			input:    `{"s":"<a&b>"}`,
			expected: `{"s":"<a&b>"}`,
		},
		{
			name:     "control characters are escaped",
			input:    `{"s":"line\nbreak \"quoted\""}`,
			expected: `{"s":"line\nbreak \"quoted\""}`,
		},
		{
			name:  "pretty print",
			input: `{"customer":{"name":"张三","tags":["a"]}}`,
			opts:  Options{Pretty: true},
			expected: "{\n" +
				"  \"customer\": {\n" +
				"    \"name\": \"张三\",\n" +
				"    \"tags\": [\n" +
				"      \"a\"\n" +
				"    ]\n" +
				"  }\n" +
				"}",
		},
		{
			name:     "xml options are ignored",
			input:    `{"a":1}`,
			opts:     Options{RootName: "root", Declaration: true},
			expected: `{"a":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			doc, err := codec.Decode([]byte(tt.input), DecodeOptions{})
			require.NoError(t, err)

			out, err := codec.Encode(doc, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(out))
		})
	}
}

func TestJSONCodec_EncodeBuiltTree(t *testing.T) {
	t.Parallel()

	root := document.NewObject()
	root.Set("ratio", document.Float(2))
	root.Set("count", document.Int(3))
	root.Set("missing", nil)

	out, err := NewJSONCodec().Encode(&document.Document{Root: root}, Options{})
	require.NoError(t, err)
	assert.Equal(t, `{"ratio":2.0,"count":3,"missing":null}`, string(out))

	_, err = NewJSONCodec().Encode(nil, Options{})
	assert.ErrorIs(t, err, util.ErrEncode)
}

func TestJSONCodec_RoundTripIsStable(t *testing.T) {
	t.Parallel()

	codec := NewJSONCodec()
	input := `{"b":[{"y":1,"x":2}],"a":"é","c":{"deep":{"deeper":[null,false,-1.25e-3]}}}`

	first, err := codec.Decode([]byte(input), DecodeOptions{})
	require.NoError(t, err)
	encoded, err := codec.Encode(first, Options{})
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := codec.Decode(encoded, DecodeOptions{})
		require.NoError(t, err)
		assert.True(t, document.Equal(first.Root, again.Root))

		reencoded, err := codec.Encode(again, Options{})
		require.NoError(t, err)
		assert.Equal(t, string(encoded), string(reencoded))
	}
}
