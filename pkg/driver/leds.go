package driver

import (
	"sync"

	"github.com/binsense/coapnode-go/pkg/payload"
)

// LEDBank drives the device's three status LEDs. The simulation just
// holds state; a hardware implementation would toggle GPIO lines in
// Apply.
type LEDBank struct {
	mu    sync.Mutex
	state payload.LEDState

	// onChange, when set, observes every state transition. The service
	// uses it to detect changes made outside the network path (the
	// hardware button).
	onChange func(payload.LEDState)
}

// NewLEDBank creates an LED bank with all LEDs off.
func NewLEDBank() *LEDBank {
	return &LEDBank{}
}

// OnChange registers a callback invoked after every state change, with
// the new state. Only one callback is supported.
func (b *LEDBank) OnChange(fn func(payload.LEDState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onChange = fn
}

// Apply drives the LEDs to the given state.
func (b *LEDBank) Apply(state payload.LEDState) {
	b.mu.Lock()
	changed := b.state != state
	b.state = state
	fn := b.onChange
	b.mu.Unlock()

	if changed && fn != nil {
		fn(state)
	}
}

// State returns the current LED state.
func (b *LEDBank) State() payload.LEDState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Button simulates the device's hardware push button, which toggles the
// green LED directly, bypassing the network path.
type Button struct {
	leds *LEDBank
}

// NewButton creates a button wired to the given LED bank.
func NewButton(leds *LEDBank) *Button {
	return &Button{leds: leds}
}

// Press toggles the green LED and returns the new state.
func (b *Button) Press() payload.LEDState {
	state := b.leds.State()
	state.Green = !state.Green
	b.leds.Apply(state)
	return state
}
