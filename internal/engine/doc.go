// Package engine executes mapping configurations.
//
// An Engine decodes the source data with the codec for its protocol, runs
// the configured rules in order against an empty target document and
// encodes the target with the codec for the target protocol. Rule failures
// are local: the failing rule is skipped, its error is reported as a
// warning, and the remaining rules still run. Decode, configuration and
// encode failures are fatal to the request.
package engine
