package subscription

import (
	"errors"
	"sync/atomic"
)

// Table errors.
var (
	// ErrSubscriberLimit indicates the per-resource subscriber cap is
	// reached. The dispatcher surfaces it as 5.03 Service Unavailable.
	ErrSubscriberLimit = errors.New("subscription: subscriber limit exceeded")

	// ErrNotFound indicates no subscription matches.
	ErrNotFound = errors.New("subscription: not found")
)

// DefaultMaxPerResource caps subscribers per resource. Kept small: this
// runs on a memory-constrained device.
const DefaultMaxPerResource = 8

// Subscription is an active observe registration.
type Subscription struct {
	// ID is the unique subscription identifier.
	ID uint32

	// Path is the observed resource path.
	Path string

	// Endpoint is the client endpoint identity (address and port).
	Endpoint string

	// Token is the client's request token, echoed in every
	// notification.
	Token []byte

	// lastMID is the message ID of the most recent notification sent
	// to this subscriber. An inbound Reset carrying it cancels the
	// subscription.
	lastMID    uint16
	hasLastMID bool
}

// idGenerator generates unique subscription IDs.
var idGenerator atomic.Uint32

// nextID returns the next unique subscription ID.
func nextID() uint32 {
	return idGenerator.Add(1)
}
