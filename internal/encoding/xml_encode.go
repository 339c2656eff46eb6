package encoding

import (
	"bytes"
	"encoding/xml"
	"strings"
	"unicode"

	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

// Encode renders doc as XML.
//
// The root element name comes from opts.RootName. When the root object is
// exactly {RootName: ...} it is used as the element itself instead of being
// wrapped a second time. Without a RootName the root must be an object with
// a single non-array field, which becomes the root element.
func (c *xmlCodec) Encode(doc *document.Document, opts Options) ([]byte, error) {
	if doc == nil {
		return nil, util.NewEncodeError(protocolXML, "", "nil document")
	}

	name, content, err := resolveXMLRoot(doc.Root, opts.RootName)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if opts.Declaration {
		buf.WriteString(xml.Header)
	}

	enc := xml.NewEncoder(&buf)
	if opts.Pretty {
		enc.Indent("", "  ")
	}

	w := &xmlWriter{enc: enc}
	if err := w.element(name, content, name); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, &util.EncodeError{Protocol: protocolXML, Message: "flush failed", Cause: err}
	}

	return buf.Bytes(), nil
}

func resolveXMLRoot(root *document.Node, rootName string) (string, *document.Node, error) {
	if root.Kind() == document.KindArray {
		return "", nil, util.NewEncodeError(protocolXML, "", "an array cannot be the document root")
	}

	if rootName != "" {
		if !IsValidXMLName(rootName) {
			return "", nil, util.NewEncodeError(protocolXML, "", "invalid root element name "+rootName)
		}
		if root.Kind() == document.KindObject && root.Len() == 1 {
			if inner, ok := root.Get(rootName); ok && inner.Kind() != document.KindArray {
				return rootName, inner, nil
			}
		}
		return rootName, root, nil
	}

	if root.Kind() == document.KindObject && root.Len() == 1 {
		key := root.Keys()[0]
		inner, _ := root.Get(key)
		if !isSpecialKey(key) && inner.Kind() != document.KindArray {
			return key, inner, nil
		}
	}
	return "", nil, util.NewEncodeError(protocolXML, "",
		"no root element name configured and the document has no single root field")
}

type xmlWriter struct {
	enc *xml.Encoder
}

func (w *xmlWriter) element(name string, n *document.Node, path string) error {
	if !IsValidXMLName(name) {
		return util.NewEncodeError(protocolXML, path, "invalid element name "+name)
	}
	start := xml.StartElement{Name: xml.Name{Local: name}}

	switch n.Kind() {
	case document.KindObject:
		return w.object(start, n, path)
	case document.KindArray:
		if err := w.start(start, path); err != nil {
			return err
		}
		for i, item := range n.Items() {
			if err := w.element(ItemElement, item, document.JoinIndex(path, i)); err != nil {
				return err
			}
		}
		return w.end(start, path)
	default:
		if err := w.start(start, path); err != nil {
			return err
		}
		if err := w.text(n.Text(), path); err != nil {
			return err
		}
		return w.end(start, path)
	}
}

func (w *xmlWriter) object(start xml.StartElement, n *document.Node, path string) error {
	keys := n.Keys()

	for _, k := range keys {
		if !strings.HasPrefix(k, AttrPrefix) {
			continue
		}
		attrPath := document.JoinKey(path, k)
		attrName := strings.TrimPrefix(k, AttrPrefix)
		if !IsValidXMLName(attrName) {
			return util.NewEncodeError(protocolXML, attrPath, "invalid attribute name "+attrName)
		}
		v, _ := n.Get(k)
		if !v.IsScalar() {
			return util.NewEncodeError(protocolXML, attrPath, "attribute value must be a scalar")
		}
		start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: attrName}, Value: v.Text()})
	}

	if err := w.start(start, path); err != nil {
		return err
	}

	for _, k := range keys {
		if strings.HasPrefix(k, AttrPrefix) {
			continue
		}
		v, _ := n.Get(k)
		childPath := document.JoinKey(path, k)

		if k == TextKey {
			if !v.IsScalar() {
				return util.NewEncodeError(protocolXML, childPath, "text content must be a scalar")
			}
			if err := w.text(v.Text(), childPath); err != nil {
				return err
			}
			continue
		}

		if v.Kind() == document.KindArray {
			// repeated siblings
			for i, item := range v.Items() {
				if err := w.element(k, item, document.JoinIndex(childPath, i)); err != nil {
					return err
				}
			}
			continue
		}
		if err := w.element(k, v, childPath); err != nil {
			return err
		}
	}

	return w.end(start, path)
}

func (w *xmlWriter) start(start xml.StartElement, path string) error {
	if err := w.enc.EncodeToken(start); err != nil {
		return &util.EncodeError{Protocol: protocolXML, Path: path, Message: "start element", Cause: err}
	}
	return nil
}

func (w *xmlWriter) end(start xml.StartElement, path string) error {
	if err := w.enc.EncodeToken(start.End()); err != nil {
		return &util.EncodeError{Protocol: protocolXML, Path: path, Message: "end element", Cause: err}
	}
	return nil
}

func (w *xmlWriter) text(s, path string) error {
	if s == "" {
		return nil
	}
	if err := w.enc.EncodeToken(xml.CharData(s)); err != nil {
		return &util.EncodeError{Protocol: protocolXML, Path: path, Message: "character data", Cause: err}
	}
	return nil
}

func isSpecialKey(k string) bool {
	return k == TextKey || strings.HasPrefix(k, AttrPrefix)
}

// IsValidXMLName reports whether name can be used as an element or
// attribute name. A single namespace prefix separated by ':' is allowed.
func IsValidXMLName(name string) bool {
	if name == "" || strings.Count(name, ":") > 1 {
		return false
	}
	for _, part := range strings.Split(name, ":") {
		if !isValidNCName(part) {
			return false
		}
	}
	return true
}

func isValidNCName(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && (r == '-' || r == '.' || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)):
		default:
			return false
		}
	}
	return true
}
