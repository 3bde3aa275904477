// Package service composes the packages below it into a running CoAP
// sensor node: the UDP transport, the request dispatcher, the resource
// registry, the observer table, the sampling scheduler, and optional
// DNS-SD advertising.
//
// All resource state is owned by a single event loop goroutine that
// multiplexes inbound datagrams, the sampling tick, and hardware events
// (the push button). Requests are therefore processed strictly one at a
// time; handlers never block on I/O, so the loop stays responsive at
// the request rates a class-2 device sees.
package service
