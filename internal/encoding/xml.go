package encoding

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

const (
	protocolXML = string(document.ProtocolXML)

	// AttrPrefix marks object keys that map to XML attributes.
	AttrPrefix = "@"
	// TextKey holds character data of elements that also carry attributes
	// or child elements.
	TextKey = "#text"
	// ItemElement names the elements produced for items of nested arrays.
	ItemElement = "item"
)

// xmlCodec implements Codec for XML.
type xmlCodec struct{}

// NewXMLCodec creates a new XML codec.
func NewXMLCodec() Codec {
	return &xmlCodec{}
}

// Protocol returns document.ProtocolXML.
func (c *xmlCodec) Protocol() document.Protocol {
	return document.ProtocolXML
}

// xmlFrame collects the pieces of an open element.
type xmlFrame struct {
	name     string
	attrs    []xml.Attr
	text     strings.Builder
	children []xmlChild
}

type xmlChild struct {
	name string
	node *document.Node
}

// Decode parses an XML document. The root element's content becomes the
// document root and its name is kept in the metadata. Namespace prefixes
// are kept verbatim in keys.
func (c *xmlCodec) Decode(data []byte, opts DecodeOptions) (*document.Document, error) {
	dec := xml.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.Strict = true

	doc := &document.Document{Meta: document.Metadata{Protocol: document.ProtocolXML}}
	var stack []*xmlFrame
	rootDone := false

	for {
		offset := dec.InputOffset()
		tok, err := dec.RawToken()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, xmlSyntaxError(err, offset)
		}

		switch t := tok.(type) {
		case xml.ProcInst:
			if t.Target == "xml" {
				if offset != 0 {
					return nil, util.NewFormatError(protocolXML, offset, "XML declaration must come first")
				}
				doc.Meta.XMLDeclaration = true
			}
		case xml.StartElement:
			if rootDone {
				return nil, util.NewFormatError(protocolXML, offset,
					fmt.Sprintf("unexpected element <%s> after root element", qualifiedName(t.Name)))
			}
			if len(stack) >= maxDepth {
				return nil, util.NewFormatError(protocolXML, offset, "nesting too deep")
			}
			stack = append(stack, &xmlFrame{name: qualifiedName(t.Name), attrs: t.Attr})
		case xml.EndElement:
			name := qualifiedName(t.Name)
			if len(stack) == 0 {
				return nil, util.NewFormatError(protocolXML, offset,
					fmt.Sprintf("unexpected closing tag </%s>", name))
			}
			top := stack[len(stack)-1]
			if top.name != name {
				return nil, util.NewFormatError(protocolXML, offset,
					fmt.Sprintf("closing tag </%s> does not match <%s>", name, top.name))
			}
			stack = stack[:len(stack)-1]
			node := top.build(opts)
			if len(stack) == 0 {
				doc.Root = node
				doc.Meta.XMLRootName = name
				rootDone = true
				continue
			}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, xmlChild{name: name, node: node})
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, util.NewFormatError(protocolXML, offset, "character data outside root element")
				}
				continue
			}
			stack[len(stack)-1].text.Write(t)
		case xml.Comment, xml.Directive:
			// ignored
		}
	}

	if len(stack) > 0 {
		return nil, util.NewFormatError(protocolXML, dec.InputOffset(),
			fmt.Sprintf("unclosed element <%s>", stack[len(stack)-1].name))
	}
	if !rootDone {
		return nil, util.NewFormatError(protocolXML, 0, "empty document")
	}

	return doc, nil
}

// build turns a closed element into a node. Text-only elements become
// scalars; anything with attributes or children becomes an object.
func (f *xmlFrame) build(opts DecodeOptions) *document.Node {
	text := strings.TrimSpace(f.text.String())
	if len(f.attrs) == 0 && len(f.children) == 0 {
		return xmlScalar(text, opts)
	}

	obj := document.NewObject()
	for _, a := range f.attrs {
		obj.Set(AttrPrefix+qualifiedName(a.Name), xmlScalar(a.Value, opts))
	}

	grouped := make(map[string]bool)
	for _, ch := range f.children {
		existing, ok := obj.Get(ch.name)
		switch {
		case !ok:
			obj.Set(ch.name, ch.node)
		case grouped[ch.name]:
			existing.Append(ch.node)
		default:
			obj.Set(ch.name, document.NewArray(existing, ch.node))
			grouped[ch.name] = true
		}
	}

	if text != "" {
		obj.Set(TextKey, xmlScalar(text, opts))
	}
	return obj
}

func xmlScalar(text string, opts DecodeOptions) *document.Node {
	if !opts.CoerceScalars {
		return document.String(text)
	}
	switch text {
	case "true":
		return document.Bool(true)
	case "false":
		return document.Bool(false)
	}
	if n, err := document.Number(text); err == nil {
		return n
	}
	return document.String(text)
}

func qualifiedName(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

func xmlSyntaxError(err error, offset int64) error {
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		return util.NewFormatErrorWithCause(protocolXML, offset,
			fmt.Sprintf("line %d: %s", syntaxErr.Line, syntaxErr.Msg), err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return util.NewFormatErrorWithCause(protocolXML, offset, "unexpected end of input", err)
	}
	return util.NewFormatErrorWithCause(protocolXML, offset, err.Error(), err)
}
