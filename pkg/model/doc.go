// Package model holds the resource registry: the static set of CoAP
// resources this device hosts, each with its discovery attributes and a
// cached CBOR representation.
//
// The resource set is fixed at startup; nothing is registered or removed
// afterwards. Representations are replaced wholesale by a single atomic
// assignment, never mutated in place, so a reader scheduled between two
// updates always sees a complete value. Semantic ownership is split: the
// sampling scheduler writes sensor data, the dispatcher writes config and
// LED state through validated PUTs.
package model
