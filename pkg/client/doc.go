// Package client implements a small CoAP client: confirmable GET and
// PUT with retransmission, resource discovery via /.well-known/core,
// and observe registrations that stream notifications to a callback.
//
// The client is synchronous and single-request; it matches responses
// by token and message ID on one UDP socket. That is all the coapctl
// tool and the package tests need.
package client
