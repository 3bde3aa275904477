// Package transport implements the UDP datagram transport: a listener
// that receives CoAP datagrams and hands them to the service layer, and
// a send path back to client endpoints.
//
// The transport is deliberately dumb: it moves opaque byte slices and
// knows nothing about CoAP framing or semantics. Endpoints are
// identified by their "ip:port" string form; the listener caches
// resolved addresses so replies to a known endpoint need no lookup.
package transport
