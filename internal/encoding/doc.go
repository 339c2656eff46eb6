// Package encoding converts raw JSON and XML bytes to and from the
// format-neutral document tree.
//
// One Codec exists per protocol and a Registry selects it by
// document.Protocol, so the engine never branches on the wire format.
//
//   - JSON keeps object key order and number literals.
//   - XML maps the root element's content to the document root, attributes
//     to "@name" keys, repeated siblings to arrays and mixed text to "#text".
//
// # Example Usage
//
//	registry := encoding.NewRegistry(logger)
//	codec, err := registry.Get(document.ProtocolXML)
//	if err != nil {
//		return err
//	}
//	doc, err := codec.Decode(raw, encoding.DecodeOptions{})
//	...
//	out, err := codec.Encode(doc, encoding.Options{RootName: "user", Declaration: true})
//
// # Thread Safety
//
// Codecs are stateless and the Registry is safe for concurrent use.
package encoding
