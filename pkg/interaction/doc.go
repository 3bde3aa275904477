// Package interaction implements the CoAP request/response and observe
// state machine: routing decoded messages to resources, building
// responses, managing observe registrations, and fanning out
// notifications when observable resources change.
//
// Transactions are independent: a malformed or failing request produces
// an error response (or a Reset, or silence, per CoAP robustness rules)
// and never affects other transactions or terminates the server. Any
// panic escaping a handler is caught at the dispatcher boundary and
// converted to 5.00.
package interaction
