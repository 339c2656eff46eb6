package encoding

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"

	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/util"
)

const protocolJSON = string(document.ProtocolJSON)

// jsonCodec implements Codec for JSON.
type jsonCodec struct{}

// NewJSONCodec creates a new JSON codec.
func NewJSONCodec() Codec {
	return &jsonCodec{}
}

// Protocol returns document.ProtocolJSON.
func (c *jsonCodec) Protocol() document.Protocol {
	return document.ProtocolJSON
}

// Decode parses a single JSON value. Object key order and number literals
// are preserved; anything after the value other than whitespace is an error.
func (c *jsonCodec) Decode(data []byte, _ DecodeOptions) (*document.Document, error) {
	dec := json.NewDecoder(bytes.NewReader(bytes.TrimPrefix(data, utf8BOM)))
	dec.UseNumber()

	p := &jsonParser{dec: dec}
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		return nil, util.NewFormatError(protocolJSON, 0, "empty document")
	}
	if err != nil {
		return nil, p.formatError(err)
	}

	root, err := p.value(tok, 0)
	if err != nil {
		return nil, err
	}

	offset := dec.InputOffset()
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, p.formatError(err)
		}
		return nil, util.NewFormatError(protocolJSON, offset, "unexpected data after top-level value")
	}

	return &document.Document{
		Root: root,
		Meta: document.Metadata{Protocol: document.ProtocolJSON},
	}, nil
}

type jsonParser struct {
	dec *json.Decoder
}

func (p *jsonParser) value(tok json.Token, depth int) (*document.Node, error) {
	if depth > maxDepth {
		return nil, util.NewFormatError(protocolJSON, p.dec.InputOffset(), "nesting too deep")
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return p.object(depth)
		case '[':
			return p.array(depth)
		default:
			return nil, util.NewFormatError(protocolJSON, p.dec.InputOffset(), "unexpected delimiter "+t.String())
		}
	case string:
		return document.String(t), nil
	case json.Number:
		n, err := document.Number(t.String())
		if err != nil {
			return nil, util.NewFormatErrorWithCause(protocolJSON, p.dec.InputOffset(), "invalid number", err)
		}
		return n, nil
	case bool:
		return document.Bool(t), nil
	case nil:
		return document.Null(), nil
	default:
		return nil, util.NewFormatError(protocolJSON, p.dec.InputOffset(), "unexpected token")
	}
}

func (p *jsonParser) object(depth int) (*document.Node, error) {
	obj := document.NewObject()
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return nil, p.formatError(err)
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return obj, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, util.NewFormatError(protocolJSON, p.dec.InputOffset(), "object key must be a string")
		}

		tok, err = p.dec.Token()
		if err != nil {
			return nil, p.formatError(err)
		}
		child, err := p.value(tok, depth+1)
		if err != nil {
			return nil, err
		}
		obj.Set(key, child)
	}
}

func (p *jsonParser) array(depth int) (*document.Node, error) {
	arr := document.NewArray()
	for {
		tok, err := p.dec.Token()
		if err != nil {
			return nil, p.formatError(err)
		}
		if d, ok := tok.(json.Delim); ok && d == ']' {
			return arr, nil
		}
		child, err := p.value(tok, depth+1)
		if err != nil {
			return nil, err
		}
		arr.Append(child)
	}
}

func (p *jsonParser) formatError(err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return util.NewFormatErrorWithCause(protocolJSON, syntaxErr.Offset, syntaxErr.Error(), err)
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return util.NewFormatErrorWithCause(protocolJSON, p.dec.InputOffset(), "unexpected end of input", err)
	}
	return util.NewFormatErrorWithCause(protocolJSON, p.dec.InputOffset(), err.Error(), err)
}

// Encode renders doc.Root as JSON in document order.
func (c *jsonCodec) Encode(doc *document.Document, opts Options) ([]byte, error) {
	if doc == nil {
		return nil, util.NewEncodeError(protocolJSON, "", "nil document")
	}

	var buf bytes.Buffer
	w := &jsonWriter{buf: &buf, enc: json.NewEncoder(&buf)}
	w.enc.SetEscapeHTML(false)
	if err := w.write(doc.Root); err != nil {
		return nil, err
	}

	if !opts.Pretty {
		return buf.Bytes(), nil
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf.Bytes(), "", "  "); err != nil {
		return nil, &util.EncodeError{Protocol: protocolJSON, Message: "indent failed", Cause: err}
	}
	return pretty.Bytes(), nil
}

type jsonWriter struct {
	buf *bytes.Buffer
	enc *json.Encoder
}

func (w *jsonWriter) write(n *document.Node) error {
	switch n.Kind() {
	case document.KindNull:
		w.buf.WriteString("null")
	case document.KindBool:
		w.buf.WriteString(n.Text())
	case document.KindInt, document.KindFloat:
		w.buf.WriteString(n.Literal())
	case document.KindString:
		s, _ := n.StringValue()
		return w.writeString(s)
	case document.KindObject:
		w.buf.WriteByte('{')
		for i, k := range n.Keys() {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			if err := w.writeString(k); err != nil {
				return err
			}
			w.buf.WriteByte(':')
			child, _ := n.Get(k)
			if err := w.write(child); err != nil {
				return err
			}
		}
		w.buf.WriteByte('}')
	case document.KindArray:
		w.buf.WriteByte('[')
		for i, child := range n.Items() {
			if i > 0 {
				w.buf.WriteByte(',')
			}
			if err := w.write(child); err != nil {
				return err
			}
		}
		w.buf.WriteByte(']')
	}
	return nil
}

// writeString appends a quoted string. json.Encoder terminates every value
// with a newline, which is dropped again.
func (w *jsonWriter) writeString(s string) error {
	if err := w.enc.Encode(s); err != nil {
		return &util.EncodeError{Protocol: protocolJSON, Message: "string encoding failed", Cause: err}
	}
	w.buf.Truncate(w.buf.Len() - 1)
	return nil
}
