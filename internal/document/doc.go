// Package document provides the format-neutral tree that every codec
// decodes into and encodes from.
//
// A Node is one of a scalar (string, integer, float, boolean, null), an
// ordered Object or an Array. Objects keep insertion order and overwriting
// an existing key keeps its original position, so decoding and encoding the
// same input produces the same key order on every run.
//
// Numbers keep their literal text. An integer stays an integer through a
// round trip and a float such as 1.50 is re-emitted exactly as it was read.
//
// # Usage
//
//	obj := document.NewObject()
//	obj.Set("name", document.String("Alice"))
//	obj.Set("age", document.Int(30))
//
//	doc := &document.Document{Root: obj, Meta: document.Metadata{Protocol: document.ProtocolJSON}}
//	_ = document.Walk(doc.Root, func(path string, n *document.Node) error {
//		fmt.Println(path, n.Kind())
//		return nil
//	})
package document
