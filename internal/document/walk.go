package document

import (
	"errors"
	"strconv"
	"strings"
)

// SkipChildren is returned by a WalkFunc to skip the children of the
// current node.
var SkipChildren = errors.New("skip children")

// WalkFunc is called for every node visited by Walk. path is the printable
// location of the node; the root has an empty path.
type WalkFunc func(path string, n *Node) error

// Walk visits n and its descendants depth-first in document order.
func Walk(n *Node, fn WalkFunc) error {
	err := walk("", n, fn)
	if errors.Is(err, SkipChildren) {
		return nil
	}
	return err
}

func walk(path string, n *Node, fn WalkFunc) error {
	if err := fn(path, n); err != nil {
		if errors.Is(err, SkipChildren) {
			return nil
		}
		return err
	}
	switch n.Kind() {
	case KindObject:
		for _, k := range n.keys {
			if err := walk(JoinKey(path, k), n.fields[k], fn); err != nil {
				return err
			}
		}
	case KindArray:
		for i, v := range n.items {
			if err := walk(JoinIndex(path, i), v, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// JoinKey appends an object key to a printable path. Keys that would not
// read back as a plain segment are bracket quoted.
func JoinKey(path, key string) string {
	if needsQuoting(key) {
		return path + "['" + strings.ReplaceAll(key, "'", `\'`) + "']"
	}
	if path == "" {
		return key
	}
	return path + "." + key
}

// JoinIndex appends an array index to a printable path.
func JoinIndex(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func needsQuoting(key string) bool {
	if key == "" {
		return true
	}
	return strings.ContainsAny(key, ".[]'\" *$")
}
