package subscription

import (
	"bytes"
	"sync"

	"github.com/binsense/coapnode-go/pkg/wire"
)

// Table manages observe subscriptions per resource.
type Table struct {
	mu sync.RWMutex

	maxPerResource int

	// Subscriptions per path, in registration order.
	byPath map[string][]*Subscription

	// Next observe sequence per path.
	sequences map[string]uint32
}

// NewTable creates a table with the default per-resource cap.
func NewTable() *Table {
	return NewTableWithLimit(DefaultMaxPerResource)
}

// NewTableWithLimit creates a table with a custom per-resource cap.
func NewTableWithLimit(maxPerResource int) *Table {
	if maxPerResource <= 0 {
		maxPerResource = DefaultMaxPerResource
	}
	return &Table{
		maxPerResource: maxPerResource,
		byPath:         make(map[string][]*Subscription),
		sequences:      make(map[string]uint32),
	}
}

// Subscribe registers endpoint as an observer of path. If the endpoint
// already observes the path, the old entry is replaced in place (same
// fan-out position, new token); the per-resource cap only applies to
// genuinely new subscribers.
func (t *Table) Subscribe(path, endpoint string, token []byte) (*Subscription, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	token = append([]byte(nil), token...)
	subs := t.byPath[path]
	for i, s := range subs {
		if s.Endpoint == endpoint {
			replacement := &Subscription{
				ID:       nextID(),
				Path:     path,
				Endpoint: endpoint,
				Token:    token,
			}
			subs[i] = replacement
			return replacement, nil
		}
	}

	if len(subs) >= t.maxPerResource {
		return nil, ErrSubscriberLimit
	}
	sub := &Subscription{
		ID:       nextID(),
		Path:     path,
		Endpoint: endpoint,
		Token:    token,
	}
	t.byPath[path] = append(subs, sub)
	return sub, nil
}

// UnsubscribeBy removes the subscription of endpoint on path, if any.
func (t *Table) UnsubscribeBy(path, endpoint string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	subs := t.byPath[path]
	for i, s := range subs {
		if s.Endpoint == endpoint {
			t.removeAt(path, subs, i)
			return true
		}
	}
	return false
}

// Unsubscribe removes a subscription by ID.
func (t *Table) Unsubscribe(id uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for path, subs := range t.byPath {
		for i, s := range subs {
			if s.ID == id {
				t.removeAt(path, subs, i)
				return nil
			}
		}
	}
	return ErrNotFound
}

// removeAt removes index i from the path's slice. Caller holds the lock.
func (t *Table) removeAt(path string, subs []*Subscription, i int) {
	t.byPath[path] = append(subs[:i:i], subs[i+1:]...)
	if len(t.byPath[path]) == 0 {
		delete(t.byPath, path)
	}
}

// SubscribersOf returns the current subscribers of path in registration
// order. The returned slice is a copy.
func (t *Table) SubscribersOf(path string) []*Subscription {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]*Subscription(nil), t.byPath[path]...)
}

// Count returns the number of subscribers of path.
func (t *Table) Count(path string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byPath[path])
}

// NextSequence draws the next observe sequence value for path. Values
// are monotonically increasing and wrap at 2^24 per the 3-byte Observe
// option limit.
func (t *Table) NextSequence(path string) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Start above the reserved register/deregister request values.
	seq, ok := t.sequences[path]
	if !ok {
		seq = wire.ObserveDeregister
	}
	seq = (seq + 1) % wire.ObserveSequenceModulus
	t.sequences[path] = seq
	return seq
}

// RecordNotification remembers the message ID of the notification just
// sent on a subscription, for reset-based cancellation.
func (t *Table) RecordNotification(id uint32, messageID uint16) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, subs := range t.byPath {
		for _, s := range subs {
			if s.ID == id {
				s.lastMID = messageID
				s.hasLastMID = true
				return
			}
		}
	}
}

// CancelByReset removes the subscription of endpoint whose most recent
// notification carried messageID, implementing RFC 7641 reset-based
// deregistration. It returns the cancelled subscription's path.
func (t *Table) CancelByReset(endpoint string, messageID uint16) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for path, subs := range t.byPath {
		for i, s := range subs {
			if s.Endpoint == endpoint && s.hasLastMID && s.lastMID == messageID {
				t.removeAt(path, subs, i)
				return path, true
			}
		}
	}
	return "", false
}

// HasToken reports whether endpoint observes path with the given token.
func (t *Table) HasToken(path, endpoint string, token []byte) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, s := range t.byPath[path] {
		if s.Endpoint == endpoint && bytes.Equal(s.Token, token) {
			return true
		}
	}
	return false
}
