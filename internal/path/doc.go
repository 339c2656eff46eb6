// Package path parses and resolves path expressions such as $.user.name,
// items[0].sku, order.@id or ['odd.key'] against a document tree.
//
// A path parses once into typed segments (key, index, attribute, wildcard,
// recursive descent) and the same segments drive both Get and Set, so XML
// attributes and JSON keys share one resolver. Reads are total: a path that
// does not exist is reported as absent, never as an error. Writes create
// the intermediate objects and arrays they need.
package path
