package document

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
)

// Interface projects the node onto plain Go values: map[string]any,
// []any, string, int64, float64, bool and nil. Integers that overflow
// int64 become float64.
func (n *Node) Interface() any {
	switch n.Kind() {
	case KindString:
		return n.text
	case KindInt:
		if i, ok := n.Int64(); ok {
			return i
		}
		f, _ := n.Float64()
		return f
	case KindFloat:
		f, _ := n.Float64()
		return f
	case KindBool:
		return n.b
	case KindObject:
		m := make(map[string]any, len(n.keys))
		for _, k := range n.keys {
			m[k] = n.fields[k].Interface()
		}
		return m
	case KindArray:
		out := make([]any, len(n.items))
		for i, v := range n.items {
			out[i] = v.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromInterface builds a node from plain Go values. Map keys are sorted so
// the result does not depend on map iteration order.
func FromInterface(v any) (*Node, error) {
	return fromInterface(v, nil)
}

// FromInterfaceOrdered is FromInterface with map keys arranged by order.
func FromInterfaceOrdered(v any, order KeyOrder) (*Node, error) {
	return fromInterface(v, order)
}

func fromInterface(v any, order KeyOrder) (*Node, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case *Node:
		return t.Clone(), nil
	case string:
		return String(t), nil
	case bool:
		return Bool(t), nil
	case int:
		return Int(int64(t)), nil
	case int8:
		return Int(int64(t)), nil
	case int16:
		return Int(int64(t)), nil
	case int32:
		return Int(int64(t)), nil
	case int64:
		return Int(t), nil
	case uint:
		return &Node{kind: KindInt, text: strconv.FormatUint(uint64(t), 10)}, nil
	case uint8:
		return Int(int64(t)), nil
	case uint16:
		return Int(int64(t)), nil
	case uint32:
		return Int(int64(t)), nil
	case uint64:
		return &Node{kind: KindInt, text: strconv.FormatUint(t, 10)}, nil
	case float32:
		return floatNode(float64(t))
	case float64:
		return floatNode(t)
	case json.Number:
		return Number(t.String())
	case map[string]any:
		obj := NewObject()
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		order.Sort(keys)
		for _, k := range keys {
			child, err := fromInterface(t[k], order)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			obj.Set(k, child)
		}
		return obj, nil
	case []any:
		arr := NewArray()
		for i, item := range t {
			child, err := fromInterface(item, order)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr.Append(child)
		}
		return arr, nil
	default:
		return fromReflect(reflect.ValueOf(v), order)
	}
}

func floatNode(f float64) (*Node, error) {
	if !IsFinite(f) {
		return nil, fmt.Errorf("number %v cannot be represented", f)
	}
	return Float(f), nil
}

// fromReflect handles typed slices and string-keyed maps such as
// []string or map[string]int.
func fromReflect(rv reflect.Value, order KeyOrder) (*Node, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
		return fromInterface(items, order)
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("unsupported map key type %s", rv.Type().Key())
		}
		m := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			m[iter.Key().String()] = iter.Value().Interface()
		}
		return fromInterface(m, order)
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null(), nil
		}
		return fromInterface(rv.Elem().Interface(), order)
	default:
		return nil, fmt.Errorf("unsupported value of type %s", rv.Type())
	}
}

// KeyOrder ranks object keys by where they first appear in a set of trees.
// A nil KeyOrder ranks nothing.
type KeyOrder map[string]int

// NewKeyOrder records the object keys of roots in document order. A key
// seen in several objects keeps its first position.
func NewKeyOrder(roots ...*Node) KeyOrder {
	order := make(KeyOrder)
	for _, root := range roots {
		_ = Walk(root, func(_ string, n *Node) error {
			for _, k := range n.Keys() {
				if _, seen := order[k]; !seen {
					order[k] = len(order)
				}
			}
			return nil
		})
	}
	return order
}

// Sort arranges keys by rank. Unranked keys follow the ranked ones in
// lexical order.
func (o KeyOrder) Sort(keys []string) {
	sort.Slice(keys, func(i, j int) bool {
		ri, okI := o[keys[i]]
		rj, okJ := o[keys[j]]
		switch {
		case okI && okJ:
			return ri < rj
		case okI != okJ:
			return okI
		default:
			return keys[i] < keys[j]
		}
	})
}
