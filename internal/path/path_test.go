package path

import (
	"errors"
	"strconv"
	"testing"

	"github.com/ohler55/ojg/jp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avamapper/internal/document"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		expr     string
		expected []Segment
	}{
		{name: "root only", expr: "$", expected: nil},
		{
			name:     "dotted with root",
			expr:     "$.user.name",
			expected: []Segment{{Kind: SegmentKey, Name: "user"}, {Kind: SegmentKey, Name: "name"}},
		},
		{
			name:     "bare dotted",
			expr:     "customer.name",
			expected: []Segment{{Kind: SegmentKey, Name: "customer"}, {Kind: SegmentKey, Name: "name"}},
		},
		{
			name: "indices",
			expr: "items[0].tags[-1]",
			expected: []Segment{
				{Kind: SegmentKey, Name: "items"}, {Kind: SegmentIndex, Index: 0},
				{Kind: SegmentKey, Name: "tags"}, {Kind: SegmentIndex, Index: -1},
			},
		},
		{
			name:     "root index",
			expr:     "$[2]",
			expected: []Segment{{Kind: SegmentIndex, Index: 2}},
		},
		{
			name:     "quoted keys",
			expr:     `$['odd.key']["with \"quote"]`,
			expected: []Segment{{Kind: SegmentKey, Name: "odd.key"}, {Kind: SegmentKey, Name: `with "quote`}},
		},
		{
			name:     "attributes",
			expr:     "order.@id.x[@lang]",
			expected: []Segment{{Kind: SegmentKey, Name: "order"}, {Kind: SegmentAttribute, Name: "id"}, {Kind: SegmentKey, Name: "x"}, {Kind: SegmentAttribute, Name: "lang"}},
		},
		{
			name:     "namespaced and text keys",
			expr:     "ns:order.#text",
			expected: []Segment{{Kind: SegmentKey, Name: "ns:order"}, {Kind: SegmentKey, Name: "#text"}},
		},
		{
			name:     "wildcards",
			expr:     "items[*].*",
			expected: []Segment{{Kind: SegmentKey, Name: "items"}, {Kind: SegmentWildcard}, {Kind: SegmentWildcard}},
		},
		{
			name:     "recursive descent",
			expr:     "$..name",
			expected: []Segment{{Kind: SegmentDescent}, {Kind: SegmentKey, Name: "name"}},
		},
		{
			name:     "surrounding whitespace",
			expr:     "  a.b ",
			expected: []Segment{{Kind: SegmentKey, Name: "a"}, {Kind: SegmentKey, Name: "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			expr, err := Parse(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, expr.segments)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		expr string
	}{
		{name: "empty", expr: ""},
		{name: "blank", expr: "   "},
		{name: "trailing dot", expr: "a."},
		{name: "root trailing dot", expr: "$."},
		{name: "leading dot", expr: ".a"},
		{name: "double dot at end", expr: "$.."},
		{name: "unterminated bracket", expr: "a[0"},
		{name: "empty bracket", expr: "a[]"},
		{name: "bad index", expr: "a[x]"},
		{name: "lone minus", expr: "a[-]"},
		{name: "unterminated quote", expr: "a['b"},
		{name: "stray bracket", expr: "a]"},
		{name: "junk after root", expr: "$a"},
		{name: "empty attribute", expr: "a.@"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse(tt.expr)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyntax)

			var syntaxErr *SyntaxError
			assert.True(t, errors.As(err, &syntaxErr))
		})
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	root := mustTree(t, map[string]any{
		"user": map[string]any{
			"name":  "张三",
			"age":   30,
			"@id":   "u1",
			"items": []any{"a", "b", "c"},
		},
		"odd.key": true,
	})

	tests := []struct {
		name      string
		expr      string
		wantFound bool
		want      string
	}{
		{name: "nested key", expr: "$.user.name", wantFound: true, want: `"张三"`},
		{name: "bare key", expr: "user.age", wantFound: true, want: "30"},
		{name: "attribute", expr: "user.@id", wantFound: true, want: `"u1"`},
		{name: "attribute bracket", expr: "user[@id]", wantFound: true, want: `"u1"`},
		{name: "index", expr: "user.items[1]", wantFound: true, want: `"b"`},
		{name: "negative index", expr: "user.items[-1]", wantFound: true, want: `"c"`},
		{name: "quoted key", expr: "['odd.key']", wantFound: true, want: "true"},
		{name: "root", expr: "$", wantFound: true},
		{name: "missing key", expr: "user.email"},
		{name: "out of range", expr: "user.items[3]"},
		{name: "negative out of range", expr: "user.items[-4]"},
		{name: "step into scalar", expr: "user.name.first"},
		{name: "index on object", expr: "user[0]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n, found, err := Lookup(root, tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			if tt.want != "" {
				assert.Equal(t, tt.want, n.String())
			}
		})
	}
}

func TestGet_MultiMatch(t *testing.T) {
	t.Parallel()

	root := mustTree(t, map[string]any{
		"items": []any{
			map[string]any{"name": "a", "qty": 1},
			map[string]any{"name": "b", "qty": 2},
			map[string]any{"qty": 3},
		},
	})

	n, found, err := Lookup(root, "items[*].name")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, `["a","b"]`, n.String())

	n, found, err = Lookup(root, "$..qty")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, document.KindArray, n.Kind())
	assert.ElementsMatch(t, []any{int64(1), int64(2), int64(3)}, n.Interface())

	_, found, err = Lookup(root, "items[*].missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		initial  map[string]any
		writes   map[string]*document.Node
		order    []string
		expected string
	}{
		{
			name:     "creates nested objects",
			order:    []string{"customer.name", "customer.age"},
			writes:   map[string]*document.Node{"customer.name": document.String("张三"), "customer.age": document.Int(30)},
			expected: `{"customer":{"name":"张三","age":30}}`,
		},
		{
			name:     "creates arrays for indices and pads with null",
			order:    []string{"items[2].sku"},
			writes:   map[string]*document.Node{"items[2].sku": document.String("X")},
			expected: `{"items":[null,null,{"sku":"X"}]}`,
		},
		{
			name:     "later write replaces leaf in place",
			order:    []string{"a.x", "a.y", "a.x"},
			writes:   map[string]*document.Node{"a.x": document.Int(1), "a.y": document.Int(2)},
			expected: `{"a":{"x":1,"y":2}}`,
		},
		{
			name:     "attribute and text keys",
			order:    []string{"order.@id", "order.#text"},
			writes:   map[string]*document.Node{"order.@id": document.String("7"), "order.#text": document.String("hi")},
			expected: `{"order":{"@id":"7","#text":"hi"}}`,
		},
		{
			name:     "null intermediate is replaced",
			initial:  map[string]any{"a": nil},
			order:    []string{"a.b"},
			writes:   map[string]*document.Node{"a.b": document.Bool(true)},
			expected: `{"a":{"b":true}}`,
		},
		{
			name:     "fills padding slot",
			initial:  map[string]any{"list": []any{nil, nil}},
			order:    []string{"list[1].v"},
			writes:   map[string]*document.Node{"list[1].v": document.Int(5)},
			expected: `{"list":[null,{"v":5}]}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := document.NewObject()
			if tt.initial != nil {
				root = mustTree(t, tt.initial)
			}
			var err error
			for _, p := range tt.order {
				root, err = Set(root, MustParse(p), tt.writes[p])
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expected, root.String())
		})
	}
}

func TestSet_CopiesValue(t *testing.T) {
	t.Parallel()

	value := document.NewObject()
	value.Set("k", document.String("v"))

	root, err := Set(document.NewObject(), MustParse("a"), value)
	require.NoError(t, err)

	value.Set("k", document.String("changed"))
	assert.Equal(t, `{"a":{"k":"v"}}`, root.String())
}

func TestSet_RootAndNullRoot(t *testing.T) {
	t.Parallel()

	root, err := Set(document.NewObject(), MustParse("$"), document.String("whole"))
	require.NoError(t, err)
	assert.Equal(t, `"whole"`, root.String())

	root, err = Set(document.Null(), MustParse("[1]"), document.Int(1))
	require.NoError(t, err)
	assert.Equal(t, `[null,1]`, root.String())
}

func TestSet_Conflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		initial map[string]any
		expr    string
		target  error
		at      string
	}{
		{name: "through a scalar", initial: map[string]any{"customer": "x"}, expr: "customer.name", target: ErrConflict, at: "customer"},
		{name: "key into array", initial: map[string]any{"list": []any{1}}, expr: "list.name", target: ErrConflict, at: "list"},
		{name: "index into object", initial: map[string]any{"obj": map[string]any{}}, expr: "obj[0]", target: ErrConflict, at: "obj"},
		{name: "wildcard", initial: map[string]any{}, expr: "items[*].x", target: ErrNotWritable},
		{name: "descent", initial: map[string]any{}, expr: "$..x", target: ErrNotWritable},
		{name: "negative index", initial: map[string]any{}, expr: "items[-1]", target: ErrNotWritable},
		{name: "index above limit", initial: map[string]any{}, expr: "x[20000000]", target: ErrNotWritable},
		{name: "nested index above limit", initial: map[string]any{"x": []any{1}}, expr: "x[0].y[2000000000]", target: ErrNotWritable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := mustTree(t, tt.initial)
			before := root.String()

			_, err := Set(root, MustParse(tt.expr), document.Int(1))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.target)
			assert.Equal(t, before, root.String())

			var conflict *ConflictError
			if errors.As(err, &conflict) {
				assert.Equal(t, tt.at, conflict.At)
			}
		})
	}
}

func TestSet_IndexLimit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		expr    string
		wantErr bool
		wantLen int
	}{
		{name: "at the limit", expr: "x[" + strconv.Itoa(MaxWriteIndex) + "]", wantLen: MaxWriteIndex + 1},
		{name: "one past the limit", expr: "x[" + strconv.Itoa(MaxWriteIndex+1) + "]", wantErr: true},
		{name: "far past the limit", expr: "x[20000000]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			expr := MustParse(tt.expr)
			root, err := Set(document.NewObject(), expr, document.Int(1))
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrNotWritable)
				assert.Contains(t, err.Error(), "exceeds")
				assert.ErrorIs(t, expr.CheckWritable(), ErrNotWritable)
				assert.Equal(t, 0, root.Len())
				return
			}
			require.NoError(t, err)
			require.NoError(t, expr.CheckWritable())
			arr, ok := root.Get("x")
			require.True(t, ok)
			assert.Equal(t, tt.wantLen, arr.Len())
		})
	}
}

func TestExpression_CheckWritable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		expr    string
		wantErr bool
	}{
		{expr: "$", wantErr: false},
		{expr: "customer.items[3].sku", wantErr: false},
		{expr: "order.@id", wantErr: false},
		{expr: "items[*]", wantErr: true},
		{expr: "$..sku", wantErr: true},
		{expr: "items[-1]", wantErr: true},
		{expr: "items[99999]", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			err := MustParse(tt.expr).CheckWritable()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNotWritable)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGet_MultiMatchKeepsDocumentOrder(t *testing.T) {
	t.Parallel()

	root := document.NewObject()
	for _, k := range []string{"zeta", "alpha", "mid"} {
		item := document.NewObject()
		item.Set("name", document.String(k))
		item.Set("qty", document.Int(int64(len(k))))
		root.Set(k, item)
	}
	items := document.NewArray()
	for _, name := range []string{"c", "a", "b"} {
		item := document.NewObject()
		item.Set("name", document.String(name))
		items.Append(item)
	}
	root.Set("items", items)

	tests := []struct {
		expr string
		want string
	}{
		{expr: "$.*.name", want: `["zeta","alpha","mid"]`},
		{expr: "$.items[*].name", want: `["c","a","b"]`},
		{expr: "$.items[*]", want: `[{"name":"c"},{"name":"a"},{"name":"b"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			t.Parallel()

			n, found := Get(root, MustParse(tt.expr))
			require.True(t, found)
			assert.Equal(t, tt.want, n.String())
		})
	}

	n, found := Get(root, MustParse("$..qty"))
	require.True(t, found)
	assert.ElementsMatch(t, []any{int64(4), int64(5), int64(3)}, n.Interface())
}

func TestObjectView_Keyed(t *testing.T) {
	t.Parallel()

	obj := document.NewObject()
	obj.Set("b", document.Int(1))
	obj.Set("a", document.String("x"))

	keyed, ok := view(obj).(jp.Keyed)
	require.True(t, ok)
	assert.Equal(t, []string{"b", "a"}, keyed.Keys())

	v, has := keyed.ValueForKey("a")
	require.True(t, has)
	assert.Equal(t, "x", v)
	_, has = keyed.ValueForKey("missing")
	assert.False(t, has)

	keyed.SetValueForKey("c", []any{int64(1), "y"})
	keyed.SetValueForKey("b", int64(2))
	assert.Equal(t, `{"b":2,"a":"x","c":[1,"y"]}`, obj.String())

	keyed.RemoveValueForKey("a")
	keyed.RemoveValueForKey("missing")
	assert.Equal(t, []string{"b", "c"}, obj.Keys())

	_, err := jp.MustParseString("$.c").Remove(view(obj))
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, obj.String())
}

func TestToJSONPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "$['items'][*]['name']", toJSONPath(MustParse("items[*].name")))
	assert.Equal(t, "$..['@id']", toJSONPath(MustParse("$..@id")))
	assert.Equal(t, `$['it\'s'][0]`, toJSONPath(MustParse(`["it's"][0]`)))
}

func mustTree(t *testing.T, v map[string]any) *document.Node {
	t.Helper()
	n, err := document.FromInterface(v)
	require.NoError(t, err)
	return n
}
