// Package discovery advertises the node as a _coap._udp service over
// mDNS/DNS-SD and browses for other CoAP nodes on the local network.
//
// This is network-level discovery only; resource-level discovery is
// served by the node itself at /.well-known/core. The TXT record
// carries the hosted resource types so browsers can filter without a
// CoAP round trip.
package discovery
