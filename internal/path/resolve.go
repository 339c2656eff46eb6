package path

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"

	"github.com/vyrodovalexey/avamapper/internal/document"
)

// ConflictError reports a write that would have to replace an existing
// value of a different shape.
type ConflictError struct {
	Expr string
	// At is the printable prefix of the expression where the conflict occurred.
	At   string
	Want string
	Got  document.Kind
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	at := e.At
	if at == "" {
		at = "$"
	}
	return fmt.Sprintf("cannot write %s into existing %s at %s", e.Want, e.Got, at)
}

// Is checks if the error matches the target.
func (e *ConflictError) Is(target error) bool {
	if target == ErrConflict {
		return true
	}
	_, ok := target.(*ConflictError)
	return ok
}

// Get resolves expr against root. Missing keys, out-of-range indices and
// steps into scalars report found=false; they are never errors.
//
// Expressions containing wildcards or recursive descent always yield an
// Array of the matches in document order. The returned node shares memory
// with root.
func Get(root *document.Node, expr *Expression) (node *document.Node, found bool) {
	if expr.IsMulti() {
		return query(root, expr)
	}

	cur := root
	for _, seg := range expr.segments {
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

// Lookup parses s and resolves it against root.
func Lookup(root *document.Node, s string) (*document.Node, bool, error) {
	expr, err := Parse(s)
	if err != nil {
		return nil, false, err
	}
	n, ok := Get(root, expr)
	return n, ok, nil
}

func step(cur *document.Node, seg Segment) (*document.Node, bool) {
	switch seg.Kind {
	case SegmentKey, SegmentAttribute:
		return cur.Get(seg.Key())
	case SegmentIndex:
		i := seg.Index
		if i < 0 {
			i += cur.Len()
		}
		return cur.Index(i)
	default:
		return nil, false
	}
}

// Set writes a copy of value at expr and returns the (possibly new) root.
// Missing intermediate objects and arrays are created; arrays are padded
// with nulls. Indices above MaxWriteIndex are rejected with ErrNotWritable. A null intermediate is replaced by the container the next
// segment needs. An existing scalar or a container of the wrong kind on
// the way is a *ConflictError, and root is left unchanged in that case.
func Set(root *document.Node, expr *Expression, value *document.Node) (*document.Node, error) {
	if err := expr.CheckWritable(); err != nil {
		return root, err
	}

	if expr.IsRoot() {
		return value.Clone(), nil
	}

	if err := checkWritable(root, expr); err != nil {
		return root, err
	}

	if root.IsNull() {
		root = newContainer(expr.segments[0])
	}

	cur := root
	last := len(expr.segments) - 1
	for i, seg := range expr.segments[:last] {
		child, ok := step(cur, seg)
		if !ok || child.IsNull() {
			child = newContainer(expr.segments[i+1])
			assign(cur, seg, child)
		}
		cur = child
	}
	assign(cur, expr.segments[last], value.Clone())

	return root, nil
}

// checkWritable walks the existing prefix of expr and reports the first
// node whose kind does not match the next segment.
func checkWritable(root *document.Node, expr *Expression) error {
	cur := root
	printable := ""
	for _, seg := range expr.segments {
		if cur.IsNull() {
			return nil
		}
		switch seg.Kind {
		case SegmentKey, SegmentAttribute:
			if cur.Kind() != document.KindObject {
				return &ConflictError{Expr: expr.raw, At: printable, Want: strconv.Quote(seg.Key()), Got: cur.Kind()}
			}
			printable = document.JoinKey(printable, seg.Key())
		case SegmentIndex:
			if cur.Kind() != document.KindArray {
				return &ConflictError{Expr: expr.raw, At: printable, Want: "index " + strconv.Itoa(seg.Index), Got: cur.Kind()}
			}
			printable = document.JoinIndex(printable, seg.Index)
		}
		next, ok := step(cur, seg)
		if !ok {
			return nil
		}
		cur = next
	}
	return nil
}

func newContainer(next Segment) *document.Node {
	if next.Kind == SegmentIndex {
		return document.NewArray()
	}
	return document.NewObject()
}

func assign(cur *document.Node, seg Segment, value *document.Node) {
	switch seg.Kind {
	case SegmentKey, SegmentAttribute:
		cur.Set(seg.Key(), value)
	case SegmentIndex:
		cur.SetIndex(seg.Index, value)
	}
}

// query evaluates a multi-match expression with ojg JSONPath over an
// ordered view of the tree.
func query(root *document.Node, expr *Expression) (*document.Node, bool) {
	x, err := jp.ParseString(toJSONPath(expr))
	if err != nil {
		return nil, false
	}

	matches := x.Get(view(root))
	if len(matches) == 0 {
		return nil, false
	}

	out := document.NewArray()
	for _, m := range matches {
		out.Append(unview(m))
	}
	return out, true
}

// toJSONPath renders expr in the JSONPath dialect understood by ojg.
func toJSONPath(expr *Expression) string {
	var b strings.Builder
	b.WriteByte('$')
	for _, seg := range expr.segments {
		switch seg.Kind {
		case SegmentKey, SegmentAttribute:
			b.WriteString("['")
			b.WriteString(strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(seg.Key()))
			b.WriteString("']")
		case SegmentIndex:
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(seg.Index))
			b.WriteByte(']')
		case SegmentWildcard:
			b.WriteString("[*]")
		case SegmentDescent:
			b.WriteString("..")
		}
	}
	return b.String()
}
