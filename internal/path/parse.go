package path

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Path errors.
var (
	// ErrSyntax indicates a malformed path expression.
	ErrSyntax = errors.New("malformed path expression")

	// ErrConflict indicates a write that would change the type of an
	// existing node.
	ErrConflict = errors.New("path conflicts with existing value")

	// ErrNotWritable indicates a write through a wildcard, a recursive
	// descent, a negative index or an index above MaxWriteIndex.
	ErrNotWritable = errors.New("path is not writable")
)

// MaxWriteIndex is the largest array index a write may address. Writes
// past the end of an array pad it with nulls up to the index.
const MaxWriteIndex = 10000

// SegmentKind identifies a path segment.
type SegmentKind uint8

// Segment kinds.
const (
	SegmentKey SegmentKind = iota
	SegmentIndex
	SegmentAttribute
	SegmentWildcard
	SegmentDescent
)

// Segment is one step of an Expression. Name holds the key or attribute
// name (without '@'); Index holds the array index.
type Segment struct {
	Kind  SegmentKind
	Name  string
	Index int
}

// Key returns the object key addressed by a key or attribute segment.
func (s Segment) Key() string {
	if s.Kind == SegmentAttribute {
		return "@" + s.Name
	}
	return s.Name
}

// Expression is a parsed path.
type Expression struct {
	raw      string
	segments []Segment
}

// String returns the expression as written.
func (e *Expression) String() string {
	return e.raw
}

// Segments returns the parsed segments. The slice must not be modified.
func (e *Expression) Segments() []Segment {
	return e.segments
}

// IsRoot reports whether the expression addresses the document root.
func (e *Expression) IsRoot() bool {
	return len(e.segments) == 0
}

// IsMulti reports whether the expression can match more than one node.
func (e *Expression) IsMulti() bool {
	for _, s := range e.segments {
		if s.Kind == SegmentWildcard || s.Kind == SegmentDescent {
			return true
		}
	}
	return false
}

// CheckWritable reports why the expression cannot be a write target, or
// nil when it can. Failures wrap ErrNotWritable.
func (e *Expression) CheckWritable() error {
	for _, seg := range e.segments {
		switch {
		case seg.Kind == SegmentWildcard || seg.Kind == SegmentDescent:
			return fmt.Errorf("%w: %s contains a wildcard or recursive descent", ErrNotWritable, e.raw)
		case seg.Kind == SegmentIndex && seg.Index < 0:
			return fmt.Errorf("%w: %s contains a negative index", ErrNotWritable, e.raw)
		case seg.Kind == SegmentIndex && seg.Index > MaxWriteIndex:
			return fmt.Errorf("%w: index %d in %s exceeds %d", ErrNotWritable, seg.Index, e.raw, MaxWriteIndex)
		}
	}
	return nil
}

// SyntaxError reports a malformed path expression.
type SyntaxError struct {
	Expr string
	Pos  int
	Msg  string
}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("invalid path %q at position %d: %s", e.Expr, e.Pos, e.Msg)
}

// Is checks if the error matches the target.
func (e *SyntaxError) Is(target error) bool {
	if target == ErrSyntax {
		return true
	}
	_, ok := target.(*SyntaxError)
	return ok
}

// Parse parses a path expression.
//
// Accepted forms: an optional "$" root, dotted keys (a.b), bracket-quoted
// keys (['a.b'] or ["a"]), indices ([0], [-1]), attributes (@id or
// [@id]), wildcards (* or [*]) and recursive descent (..name).
func Parse(expr string) (*Expression, error) {
	p := &parser{src: strings.TrimSpace(expr)}
	if p.src == "" {
		return nil, p.fail("empty path")
	}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return &Expression{raw: p.src, segments: p.segments}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and
// tests.
func MustParse(expr string) *Expression {
	e, err := Parse(expr)
	if err != nil {
		panic(err)
	}
	return e
}

type parser struct {
	src      string
	pos      int
	segments []Segment
}

func (p *parser) parse() error {
	if p.peek() == '$' {
		p.pos++
		if p.eof() {
			return nil
		}
		switch p.peek() {
		case '.', '[':
		default:
			return p.fail("expected '.' or '[' after '$'")
		}
	} else if p.peek() != '[' && p.peek() != '.' {
		if err := p.name(); err != nil {
			return err
		}
	} else if p.peek() == '.' {
		return p.fail("path must not start with '.'")
	}

	for !p.eof() {
		switch p.peek() {
		case '.':
			p.pos++
			if p.peek() == '.' {
				p.pos++
				p.segments = append(p.segments, Segment{Kind: SegmentDescent})
				if p.peek() == '[' {
					if err := p.bracket(); err != nil {
						return err
					}
					continue
				}
			}
			if err := p.name(); err != nil {
				return err
			}
		case '[':
			if err := p.bracket(); err != nil {
				return err
			}
		default:
			return p.fail(fmt.Sprintf("unexpected character %q", p.peek()))
		}
	}
	return nil
}

// name reads a dotted segment: a key, an attribute or a wildcard.
func (p *parser) name() error {
	if p.eof() {
		return p.fail("expected a name")
	}
	switch p.peek() {
	case '*':
		p.pos++
		p.segments = append(p.segments, Segment{Kind: SegmentWildcard})
		return nil
	case '@':
		p.pos++
		n := p.ident()
		if n == "" {
			return p.fail("expected an attribute name after '@'")
		}
		p.segments = append(p.segments, Segment{Kind: SegmentAttribute, Name: n})
		return nil
	}
	n := p.ident()
	if n == "" {
		return p.fail("expected a name")
	}
	p.segments = append(p.segments, Segment{Kind: SegmentKey, Name: n})
	return nil
}

func (p *parser) ident() string {
	start := p.pos
	for !p.eof() {
		c := p.peek()
		if c == '.' || c == '[' || c == ']' || c == '\'' || c == '"' || c == '*' {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) bracket() error {
	p.pos++ // '['
	if p.eof() {
		return p.fail("unterminated '['")
	}

	switch c := p.peek(); {
	case c == '*':
		p.pos++
		p.segments = append(p.segments, Segment{Kind: SegmentWildcard})
	case c == '\'' || c == '"':
		key, err := p.quoted(c)
		if err != nil {
			return err
		}
		p.segments = append(p.segments, Segment{Kind: SegmentKey, Name: key})
	case c == '@':
		p.pos++
		start := p.pos
		for !p.eof() && p.peek() != ']' {
			p.pos++
		}
		if p.pos == start {
			return p.fail("expected an attribute name after '@'")
		}
		p.segments = append(p.segments, Segment{Kind: SegmentAttribute, Name: p.src[start:p.pos]})
	case c == '-' || (c >= '0' && c <= '9'):
		start := p.pos
		p.pos++
		for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
			p.pos++
		}
		idx, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return p.failAt(start, "invalid array index")
		}
		p.segments = append(p.segments, Segment{Kind: SegmentIndex, Index: idx})
	default:
		return p.fail("expected an index, a quoted key, '@' or '*' inside brackets")
	}

	if p.peek() != ']' {
		return p.fail("expected ']'")
	}
	p.pos++
	return nil
}

func (p *parser) quoted(quote byte) (string, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.peek()
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			b.WriteByte(p.src[p.pos+1])
			p.pos += 2
		case c == quote:
			p.pos++
			return b.String(), nil
		default:
			b.WriteByte(c)
			p.pos++
		}
	}
	return "", p.failAt(start, "unterminated quoted key")
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) fail(msg string) error {
	return p.failAt(p.pos, msg)
}

func (p *parser) failAt(pos int, msg string) error {
	return &SyntaxError{Expr: p.src, Pos: pos, Msg: msg}
}
