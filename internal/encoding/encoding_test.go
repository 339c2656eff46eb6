package encoding

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/avamapper/internal/document"
	"github.com/vyrodovalexey/avamapper/internal/observability"
)

func TestRegistry_Get(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		protocol document.Protocol
		wantErr  bool
	}{
		{name: "json", protocol: document.ProtocolJSON},
		{name: "xml", protocol: document.ProtocolXML},
		{name: "unknown", protocol: "YAML", wantErr: true},
	}

	registry := NewRegistry(observability.NopLogger())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			codec, err := registry.Get(tt.protocol)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedProtocol)
				assert.Nil(t, codec)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.protocol, codec.Protocol())
		})
	}
}

func TestRegistry_Protocols(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil)
	assert.Equal(t, []document.Protocol{document.ProtocolJSON, document.ProtocolXML}, registry.Protocols())
}

func TestRegistry_InstrumentedCodecDelegates(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(nil)
	codec, err := registry.Get(document.ProtocolJSON)
	require.NoError(t, err)

	doc, err := codec.Decode([]byte(`{"a":1}`), DecodeOptions{})
	require.NoError(t, err)
	out, err := codec.Encode(doc, Options{})
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(out))

	_, err = codec.Decode([]byte(`{`), DecodeOptions{})
	assert.Error(t, err)
}

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected document.Protocol
	}{
		{name: "object", input: `{"a":1}`, expected: document.ProtocolJSON},
		{name: "array", input: ` [1]`, expected: document.ProtocolJSON},
		{name: "element", input: `<a/>`, expected: document.ProtocolXML},
		{name: "declaration after whitespace", input: "\n  <?xml version=\"1.0\"?><a/>", expected: document.ProtocolXML},
		{name: "byte order mark", input: "\xEF\xBB\xBF<a/>", expected: document.ProtocolXML},
		{name: "empty defaults to json", input: "", expected: document.ProtocolJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, Detect([]byte(tt.input)))
		})
	}
}

func TestCodecMetrics_MustRegister(t *testing.T) {
	t.Parallel()

	m := GetCodecMetrics()
	require.Same(t, m, GetCodecMetrics())

	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		m.MustRegister(reg)
		m.Init()
	})

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "avamapper_codec_operations_total")
}
