// Package subscription tracks active CoAP observe registrations.
//
// Each subscription binds a resource path to a client endpoint and the
// token that client chose; notifications reuse the token so the client
// can correlate them. At most one subscription exists per
// (path, endpoint) pair; re-registering replaces the old entry in
// place. Fan-out order is registration order.
//
// Observe sequence numbers are drawn per resource and wrap at 2^24, the
// largest value the 3-byte Observe option can carry; consumers compare
// them with modular ordering, so the wrap is not an error.
package subscription
