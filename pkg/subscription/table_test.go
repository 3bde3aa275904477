package subscription

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/binsense/coapnode-go/pkg/wire"
)

func TestSubscribeAndList(t *testing.T) {
	tbl := NewTable()

	subA, err := tbl.Subscribe("/leds", "10.0.0.1:5683", []byte{0x01})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	subB, err := tbl.Subscribe("/leds", "10.0.0.2:5683", []byte{0x02})
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	subs := tbl.SubscribersOf("/leds")
	if len(subs) != 2 {
		t.Fatalf("SubscribersOf returned %d, want 2", len(subs))
	}
	// Registration order.
	if subs[0].ID != subA.ID || subs[1].ID != subB.ID {
		t.Errorf("fan-out order = [%d %d], want [%d %d]", subs[0].ID, subs[1].ID, subA.ID, subB.ID)
	}
	if len(tbl.SubscribersOf("/sensors")) != 0 {
		t.Error("unrelated path has subscribers")
	}
}

func TestResubscribeReplaces(t *testing.T) {
	tbl := NewTable()

	if _, err := tbl.Subscribe("/leds", "10.0.0.1:5683", []byte{0x01}); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	if _, err := tbl.Subscribe("/leds", "10.0.0.1:5683", []byte{0x02}); err != nil {
		t.Fatalf("re-Subscribe failed: %v", err)
	}

	subs := tbl.SubscribersOf("/leds")
	if len(subs) != 1 {
		t.Fatalf("got %d subscriptions after resubscribe, want 1", len(subs))
	}
	if !bytes.Equal(subs[0].Token, []byte{0x02}) {
		t.Errorf("token = %x, want 02", subs[0].Token)
	}
}

func TestSubscriberLimit(t *testing.T) {
	tbl := NewTableWithLimit(2)

	for i := 0; i < 2; i++ {
		ep := fmt.Sprintf("10.0.0.%d:5683", i+1)
		if _, err := tbl.Subscribe("/leds", ep, []byte{byte(i)}); err != nil {
			t.Fatalf("Subscribe %d failed: %v", i, err)
		}
	}

	if _, err := tbl.Subscribe("/leds", "10.0.0.9:5683", []byte{0x09}); !errors.Is(err, ErrSubscriberLimit) {
		t.Errorf("over-cap Subscribe error = %v, want ErrSubscriberLimit", err)
	}

	// Resubscription of an existing endpoint is not limited.
	if _, err := tbl.Subscribe("/leds", "10.0.0.1:5683", []byte{0xFF}); err != nil {
		t.Errorf("resubscribe at cap failed: %v", err)
	}

	// The cap is per resource.
	if _, err := tbl.Subscribe("/sensors", "10.0.0.9:5683", []byte{0x09}); err != nil {
		t.Errorf("Subscribe on other path failed: %v", err)
	}
}

func TestUnsubscribe(t *testing.T) {
	tbl := NewTable()

	sub, _ := tbl.Subscribe("/leds", "10.0.0.1:5683", []byte{0x01})
	if err := tbl.Unsubscribe(sub.ID); err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if tbl.Count("/leds") != 0 {
		t.Error("subscription still present after Unsubscribe")
	}
	if err := tbl.Unsubscribe(sub.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Unsubscribe error = %v, want ErrNotFound", err)
	}
}

func TestUnsubscribeBy(t *testing.T) {
	tbl := NewTable()

	tbl.Subscribe("/leds", "10.0.0.1:5683", []byte{0x01})
	if !tbl.UnsubscribeBy("/leds", "10.0.0.1:5683") {
		t.Error("UnsubscribeBy did not find the subscription")
	}
	if tbl.UnsubscribeBy("/leds", "10.0.0.1:5683") {
		t.Error("UnsubscribeBy found a removed subscription")
	}
}

func TestNextSequence(t *testing.T) {
	tbl := NewTable()

	first := tbl.NextSequence("/leds")
	second := tbl.NextSequence("/leds")
	if second <= first {
		t.Errorf("sequence not increasing: %d then %d", first, second)
	}
	if first <= wire.ObserveDeregister {
		t.Errorf("first sequence %d collides with register/deregister values", first)
	}

	// Independent counter per resource.
	if got := tbl.NextSequence("/sensors"); got != first {
		t.Errorf("fresh resource sequence = %d, want %d", got, first)
	}
}

func TestSequenceWrap(t *testing.T) {
	tbl := NewTable()
	tbl.mu.Lock()
	tbl.sequences["/leds"] = wire.ObserveSequenceModulus - 1
	tbl.mu.Unlock()

	if got := tbl.NextSequence("/leds"); got != 0 {
		t.Errorf("sequence after 2^24-1 = %d, want 0 (wrap)", got)
	}
}

func TestCancelByReset(t *testing.T) {
	tbl := NewTable()

	sub, _ := tbl.Subscribe("/leds", "10.0.0.1:5683", []byte{0x01})
	other, _ := tbl.Subscribe("/leds", "10.0.0.2:5683", []byte{0x02})
	tbl.RecordNotification(sub.ID, 0x4242)
	tbl.RecordNotification(other.ID, 0x4242)

	// A reset only cancels the subscription of the endpoint it came from.
	path, ok := tbl.CancelByReset("10.0.0.1:5683", 0x4242)
	if !ok || path != "/leds" {
		t.Fatalf("CancelByReset = (%q, %v), want (/leds, true)", path, ok)
	}
	if tbl.Count("/leds") != 1 {
		t.Errorf("count after reset = %d, want 1", tbl.Count("/leds"))
	}

	// Unknown message IDs cancel nothing.
	if _, ok := tbl.CancelByReset("10.0.0.2:5683", 0x9999); ok {
		t.Error("CancelByReset matched an unknown message ID")
	}
}

func TestHasToken(t *testing.T) {
	tbl := NewTable()
	tbl.Subscribe("/leds", "10.0.0.1:5683", []byte{0xAA})

	if !tbl.HasToken("/leds", "10.0.0.1:5683", []byte{0xAA}) {
		t.Error("HasToken missed an active subscription")
	}
	if tbl.HasToken("/leds", "10.0.0.1:5683", []byte{0xBB}) {
		t.Error("HasToken matched the wrong token")
	}
}
