package document

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the type of a Node.
type Kind uint8

// Node kinds.
const (
	KindNull Kind = iota
	KindString
	KindInt
	KindFloat
	KindBool
	KindObject
	KindArray
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Node is a single value in a document tree.
// The zero value is a null node.
type Node struct {
	kind Kind
	// text holds the string value or the literal text of a number.
	text   string
	b      bool
	keys   []string
	fields map[string]*Node
	items  []*Node
}

// Null returns a null node.
func Null() *Node {
	return &Node{kind: KindNull}
}

// String returns a string node.
func String(s string) *Node {
	return &Node{kind: KindString, text: s}
}

// Int returns an integer node.
func Int(i int64) *Node {
	return &Node{kind: KindInt, text: strconv.FormatInt(i, 10)}
}

// Float returns a floating point node. NaN and infinities have no textual
// form in either wire format; callers validate with IsFinite first.
func Float(f float64) *Node {
	return &Node{kind: KindFloat, text: FormatFloat(f)}
}

// Bool returns a boolean node.
func Bool(b bool) *Node {
	return &Node{kind: KindBool, b: b}
}

// Number parses a JSON number literal and keeps its text verbatim.
// Literals without a fraction or exponent become integers.
func Number(literal string) (*Node, error) {
	if !isNumberLiteral(literal) {
		return nil, fmt.Errorf("invalid number literal %q", literal)
	}
	if strings.ContainsAny(literal, ".eE") {
		f, err := strconv.ParseFloat(literal, 64)
		if err != nil || !IsFinite(f) {
			return nil, fmt.Errorf("number %q out of range", literal)
		}
		return &Node{kind: KindFloat, text: literal}, nil
	}
	return &Node{kind: KindInt, text: literal}, nil
}

// NewObject returns an empty object node.
func NewObject() *Node {
	return &Node{kind: KindObject, fields: make(map[string]*Node)}
}

// NewArray returns an array node holding items.
func NewArray(items ...*Node) *Node {
	arr := &Node{kind: KindArray, items: make([]*Node, 0, len(items))}
	for _, it := range items {
		arr.items = append(arr.items, orNull(it))
	}
	return arr
}

// IsFinite reports whether f can be represented in a document.
func IsFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// FormatFloat renders f the way JSON encoders do and keeps a fraction on
// integral values so the number stays a float when read back.
func FormatFloat(f float64) string {
	abs := math.Abs(f)
	format := byte('f')
	if abs != 0 && (abs < 1e-6 || abs >= 1e21) {
		format = 'e'
	}
	s := strconv.FormatFloat(f, format, -1, 64)
	if format == 'e' {
		// clean up e-09 to e-9
		n := len(s)
		if n >= 4 && s[n-4] == 'e' && s[n-3] == '-' && s[n-2] == '0' {
			s = s[:n-2] + s[n-1:]
		}
	}
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Kind returns the node kind. A nil node reports KindNull.
func (n *Node) Kind() Kind {
	if n == nil {
		return KindNull
	}
	return n.kind
}

// IsNull reports whether the node is null or nil.
func (n *Node) IsNull() bool {
	return n.Kind() == KindNull
}

// IsScalar reports whether the node is neither an object nor an array.
func (n *Node) IsScalar() bool {
	k := n.Kind()
	return k != KindObject && k != KindArray
}

// IsNumber reports whether the node is an integer or a float.
func (n *Node) IsNumber() bool {
	k := n.Kind()
	return k == KindInt || k == KindFloat
}

// StringValue returns the value of a string node.
func (n *Node) StringValue() (string, bool) {
	if n.Kind() != KindString {
		return "", false
	}
	return n.text, true
}

// BoolValue returns the value of a boolean node.
func (n *Node) BoolValue() (value, ok bool) {
	if n.Kind() != KindBool {
		return false, false
	}
	return n.b, true
}

// Int64 returns the value of an integer node that fits in int64.
func (n *Node) Int64() (int64, bool) {
	if n.Kind() != KindInt {
		return 0, false
	}
	i, err := strconv.ParseInt(n.text, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// Float64 returns the numeric value of an integer or float node.
func (n *Node) Float64() (float64, bool) {
	if !n.IsNumber() {
		return 0, false
	}
	f, err := strconv.ParseFloat(n.text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Literal returns the literal text of a number node.
func (n *Node) Literal() string {
	if !n.IsNumber() {
		return ""
	}
	return n.text
}

// Text returns the textual form of a scalar: the string itself, the number
// literal, "true"/"false" or "" for null. Containers return "".
func (n *Node) Text() string {
	switch n.Kind() {
	case KindString, KindInt, KindFloat:
		return n.text
	case KindBool:
		return strconv.FormatBool(n.b)
	default:
		return ""
	}
}

// Len returns the number of fields of an object or items of an array.
func (n *Node) Len() int {
	switch n.Kind() {
	case KindObject:
		return len(n.keys)
	case KindArray:
		return len(n.items)
	default:
		return 0
	}
}

// Keys returns the object keys in insertion order.
func (n *Node) Keys() []string {
	if n.Kind() != KindObject {
		return nil
	}
	out := make([]string, len(n.keys))
	copy(out, n.keys)
	return out
}

// Get returns the field stored under key.
func (n *Node) Get(key string) (*Node, bool) {
	if n.Kind() != KindObject {
		return nil, false
	}
	v, ok := n.fields[key]
	return v, ok
}

// Set stores value under key. A new key is appended; an existing key keeps
// its position. Set is a no-op on non-object nodes.
func (n *Node) Set(key string, value *Node) {
	if n.Kind() != KindObject {
		return
	}
	if _, exists := n.fields[key]; !exists {
		n.keys = append(n.keys, key)
	}
	n.fields[key] = orNull(value)
}

// Delete removes key from an object.
func (n *Node) Delete(key string) {
	if n.Kind() != KindObject {
		return
	}
	if _, exists := n.fields[key]; !exists {
		return
	}
	delete(n.fields, key)
	for i, k := range n.keys {
		if k == key {
			n.keys = append(n.keys[:i], n.keys[i+1:]...)
			break
		}
	}
}

// Index returns the array item at i. Negative indices are not resolved here.
func (n *Node) Index(i int) (*Node, bool) {
	if n.Kind() != KindArray || i < 0 || i >= len(n.items) {
		return nil, false
	}
	return n.items[i], true
}

// Items returns the array items. The slice must not be modified.
func (n *Node) Items() []*Node {
	if n.Kind() != KindArray {
		return nil
	}
	return n.items
}

// Append adds value to the end of an array.
func (n *Node) Append(value *Node) {
	if n.Kind() != KindArray {
		return
	}
	n.items = append(n.items, orNull(value))
}

// SetIndex stores value at i, padding the array with nulls when i is past
// the end. It returns false for non-arrays and negative indices.
func (n *Node) SetIndex(i int, value *Node) bool {
	if n.Kind() != KindArray || i < 0 {
		return false
	}
	for len(n.items) <= i {
		n.items = append(n.items, Null())
	}
	n.items[i] = orNull(value)
	return true
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return Null()
	}
	out := &Node{kind: n.kind, text: n.text, b: n.b}
	switch n.kind {
	case KindObject:
		out.keys = make([]string, len(n.keys))
		copy(out.keys, n.keys)
		out.fields = make(map[string]*Node, len(n.fields))
		for k, v := range n.fields {
			out.fields[k] = v.Clone()
		}
	case KindArray:
		out.items = make([]*Node, len(n.items))
		for i, v := range n.items {
			out.items[i] = v.Clone()
		}
	}
	return out
}

// String implements fmt.Stringer with a compact JSON-like rendering used in
// logs and error messages.
func (n *Node) String() string {
	var b strings.Builder
	writeDebug(&b, n)
	return b.String()
}

func writeDebug(b *strings.Builder, n *Node) {
	switch n.Kind() {
	case KindNull:
		b.WriteString("null")
	case KindString:
		b.WriteString(strconv.Quote(n.text))
	case KindInt, KindFloat:
		b.WriteString(n.text)
	case KindBool:
		b.WriteString(strconv.FormatBool(n.b))
	case KindObject:
		b.WriteByte('{')
		for i, k := range n.keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeDebug(b, n.fields[k])
		}
		b.WriteByte('}')
	case KindArray:
		b.WriteByte('[')
		for i, v := range n.items {
			if i > 0 {
				b.WriteByte(',')
			}
			writeDebug(b, v)
		}
		b.WriteByte(']')
	}
}

func orNull(n *Node) *Node {
	if n == nil {
		return Null()
	}
	return n
}

// isNumberLiteral validates the JSON number grammar.
func isNumberLiteral(s string) bool {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	if i >= len(s) {
		return false
	}
	switch {
	case s[i] == '0':
		i++
	case s[i] >= '1' && s[i] <= '9':
		for i < len(s) && isDigit(s[i]) {
			i++
		}
	default:
		return false
	}
	if i < len(s) && s[i] == '.' {
		i++
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		start := i
		for i < len(s) && isDigit(s[i]) {
			i++
		}
		if i == start {
			return false
		}
	}
	return i == len(s)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
