package encoding

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/observability"
)

// ErrUnsupportedProtocol indicates that no codec is registered for a protocol.
var ErrUnsupportedProtocol = errors.New("unsupported protocol")

// maxDepth bounds nesting of decoded documents.
const maxDepth = 512

// DecodeOptions tunes decoding.
type DecodeOptions struct {
	// CoerceScalars turns XML text that reads as a number or boolean into
	// the matching scalar. JSON ignores it.
	CoerceScalars bool
}

// Options tunes encoding.
type Options struct {
	Pretty bool
	// RootName names the XML root element. JSON ignores it.
	RootName string
	// Declaration prepends the XML declaration. JSON ignores it.
	Declaration bool
}

// Codec decodes raw bytes into a document and encodes a document back.
type Codec interface {
	// Protocol returns the wire format handled by this codec.
	Protocol() document.Protocol

	// Decode parses data. Failures are *util.FormatError.
	Decode(data []byte, opts DecodeOptions) (*document.Document, error)

	// Encode renders doc. Failures are *util.EncodeError.
	Encode(doc *document.Document, opts Options) ([]byte, error)
}

// Registry looks up codecs by protocol.
type Registry interface {
	// Get returns the codec for protocol.
	Get(protocol document.Protocol) (Codec, error)

	// Protocols returns the registered protocols in sorted order.
	Protocols() []document.Protocol

	// Register adds or replaces the codec for its protocol.
	Register(codec Codec)
}

type registry struct {
	logger  observability.Logger
	metrics *CodecMetrics
	mu      sync.RWMutex
	codecs  map[document.Protocol]Codec
}

// NewRegistry creates a Registry holding the JSON and XML codecs.
func NewRegistry(logger observability.Logger) Registry {
	if logger == nil {
		logger = observability.NopLogger()
	}

	r := &registry{
		logger:  logger,
		metrics: GetCodecMetrics(),
		codecs:  make(map[document.Protocol]Codec),
	}
	r.Register(NewJSONCodec())
	r.Register(NewXMLCodec())

	return r
}

// Get returns the codec for protocol.
func (r *registry) Get(protocol document.Protocol) (Codec, error) {
	r.mu.RLock()
	codec, exists := r.codecs[protocol]
	r.mu.RUnlock()

	if !exists {
		r.logger.Debug("unsupported protocol",
			observability.String("protocol", string(protocol)))
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, protocol)
	}

	return codec, nil
}

// Protocols returns the registered protocols in sorted order.
func (r *registry) Protocols() []document.Protocol {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]document.Protocol, 0, len(r.codecs))
	for p := range r.codecs {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Register adds or replaces the codec for its protocol.
func (r *registry) Register(codec Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[codec.Protocol()] = &instrumentedCodec{Codec: codec, metrics: r.metrics}
}

// instrumentedCodec records operation counts and latency.
type instrumentedCodec struct {
	Codec
	metrics *CodecMetrics
}

func (c *instrumentedCodec) Decode(data []byte, opts DecodeOptions) (*document.Document, error) {
	start := time.Now()
	doc, err := c.Codec.Decode(data, opts)
	c.metrics.Record(string(c.Protocol()), "decode", err, time.Since(start))
	return doc, err
}

func (c *instrumentedCodec) Encode(doc *document.Document, opts Options) ([]byte, error) {
	start := time.Now()
	out, err := c.Codec.Encode(doc, opts)
	c.metrics.Record(string(c.Protocol()), "encode", err, time.Since(start))
	return out, err
}

// Detect guesses the protocol of raw source data: a leading '<' means XML,
// anything else is treated as JSON.
func Detect(data []byte) document.Protocol {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, utf8BOM), " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '<' {
		return document.ProtocolXML
	}
	return document.ProtocolJSON
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}
