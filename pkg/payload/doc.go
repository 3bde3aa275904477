// Package payload defines the CBOR representations of the hosted
// resources: sensor readings, LED state, configuration, and the
// YANG-derived capability model.
//
// Encoding is canonical (RFC 8949 deterministic), so two equal values
// always produce identical bytes; the registry relies on this to detect
// meaningful changes on observable writes. Decoding of client-supplied
// PUT payloads is strict: unknown map keys are a shape error.
package payload
