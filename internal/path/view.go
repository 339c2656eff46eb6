package path

import (
	"github.com/ohler55/ojg/jp"

	"github.com/vyrodovalexey/avamapper/internal/document"
)

var _ jp.Keyed = objectView{}

// objectView exposes an object node to ojg through its keyed interface so
// that wildcard matches follow document key order instead of map order.
type objectView struct {
	node *document.Node
}

// ValueForKey returns the view of the field stored under key.
func (o objectView) ValueForKey(key string) (any, bool) {
	v, ok := o.node.Get(key)
	if !ok {
		return nil, false
	}
	return view(v), true
}

// SetValueForKey writes value through to the underlying node.
func (o objectView) SetValueForKey(key string, value any) {
	o.node.Set(key, unview(value))
}

// RemoveValueForKey deletes key from the underlying node.
func (o objectView) RemoveValueForKey(key string) {
	o.node.Delete(key)
}

// Keys returns the object keys in document order.
func (o objectView) Keys() []string {
	return o.node.Keys()
}

func view(n *document.Node) any {
	switch n.Kind() {
	case document.KindObject:
		return objectView{node: n}
	case document.KindArray:
		items := n.Items()
		out := make([]any, len(items))
		for i, it := range items {
			out[i] = view(it)
		}
		return out
	default:
		// Scalars cross as plain values; number literals are normalized.
		return n.Interface()
	}
}

func unview(v any) *document.Node {
	switch t := v.(type) {
	case objectView:
		return t.node.Clone()
	case []any:
		arr := document.NewArray()
		for _, it := range t {
			arr.Append(unview(it))
		}
		return arr
	default:
		n, err := document.FromInterface(t)
		if err != nil {
			return document.Null()
		}
		return n
	}
}
