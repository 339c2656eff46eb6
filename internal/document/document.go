package document

import (
	"fmt"
	"strings"
)

// Protocol names a wire format.
type Protocol string

// Supported protocols.
const (
	ProtocolJSON Protocol = "JSON"
	ProtocolXML  Protocol = "XML"
)

// ParseProtocol converts a case-insensitive protocol name.
func ParseProtocol(s string) (Protocol, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(ProtocolJSON):
		return ProtocolJSON, nil
	case string(ProtocolXML):
		return ProtocolXML, nil
	default:
		return "", fmt.Errorf("unsupported protocol %q", s)
	}
}

// Metadata records where a document came from.
type Metadata struct {
	Protocol Protocol
	// XMLRootName is the name of the XML root element the document was
	// decoded from. Empty for JSON sources.
	XMLRootName string
	// XMLDeclaration reports whether the XML source carried a declaration.
	XMLDeclaration bool
}

// Document is a decoded tree plus its metadata.
type Document struct {
	Root *Node
	Meta Metadata
}

// New returns a document with an empty object root.
func New(protocol Protocol) *Document {
	return &Document{Root: NewObject(), Meta: Metadata{Protocol: protocol}}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	return &Document{Root: d.Root.Clone(), Meta: d.Meta}
}

// Equal reports whether a and b are structurally equal. Object keys must
// appear in the same order; numbers compare by kind and value.
func Equal(a, b *Node) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	switch a.Kind() {
	case KindNull:
		return true
	case KindString:
		return a.text == b.text
	case KindBool:
		return a.b == b.b
	case KindInt:
		if a.text == b.text {
			return true
		}
		av, aok := a.Int64()
		bv, bok := b.Int64()
		return aok && bok && av == bv
	case KindFloat:
		if a.text == b.text {
			return true
		}
		av, aok := a.Float64()
		bv, bok := b.Float64()
		return aok && bok && av == bv
	case KindObject:
		if len(a.keys) != len(b.keys) {
			return false
		}
		for i, k := range a.keys {
			if b.keys[i] != k || !Equal(a.fields[k], b.fields[k]) {
				return false
			}
		}
		return true
	case KindArray:
		if len(a.items) != len(b.items) {
			return false
		}
		for i := range a.items {
			if !Equal(a.items[i], b.items[i]) {
				return false
			}
		}
		return true
	}
	return false
}
