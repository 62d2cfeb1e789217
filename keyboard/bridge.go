// Package keyboard forwards key events from the host to a single
// installed handler.
package keyboard

import "sync"

// Mod is a bitmask of modifier keys held during an Event.
type Mod uint8

const (
	ModShift Mod = 1 << iota
	ModCtrl
	ModAlt
	ModMeta // reserved for the host; events carrying it are never forwarded
)

// Event is a raw key event.
type Event struct {
	Key  int  // platform key code; 0 for plain runes
	Rune rune // character produced, if any
	Mod  Mod
	Down bool // true for key-down, false for key-up
}

func (e Event) Meta() bool { return e.Mod&ModMeta != 0 }

// Handler receives forwarded key events.
type Handler func(Event)

// Bridge holds at most one Handler. Installing a handler replaces the
// previous one. The zero Bridge has no handler and drops every event.
type Bridge struct {
	// ForwardKeyUp enables delivery of key-up events. Once events are
	// flowing, change it with SetForwardKeyUp.
	ForwardKeyUp bool

	mu      sync.Mutex
	handler Handler
}

// InitKeyboard installs h as the keyboard handler.
func (b *Bridge) InitKeyboard(h Handler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

// Init installs keyboard as the keyboard handler.
// The mouse and input handlers are accepted and ignored.
func (b *Bridge) Init(keyboard, mouse, input Handler) {
	b.InitKeyboard(keyboard)
}

// Uninit removes the installed handler.
func (b *Bridge) Uninit() {
	b.InitKeyboard(nil)
}

// Handler returns the installed handler, or nil.
func (b *Bridge) Handler() Handler {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handler
}

// KeyDown delivers a key-down event and reports whether a handler ran.
func (b *Bridge) KeyDown(ev Event) bool {
	return b.deliver(ev)
}

// SetForwardKeyUp sets ForwardKeyUp.
func (b *Bridge) SetForwardKeyUp(on bool) {
	b.mu.Lock()
	b.ForwardKeyUp = on
	b.mu.Unlock()
}

// KeyUpForwarded reports whether key-up events are delivered.
func (b *Bridge) KeyUpForwarded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ForwardKeyUp
}

// KeyUp delivers a key-up event if ForwardKeyUp is set.
func (b *Bridge) KeyUp(ev Event) bool {
	if !b.KeyUpForwarded() {
		return false
	}
	return b.deliver(ev)
}

// Dispatch routes ev to KeyDown or KeyUp.
func (b *Bridge) Dispatch(ev Event) bool {
	if ev.Down {
		return b.KeyDown(ev)
	}
	return b.KeyUp(ev)
}

func (b *Bridge) deliver(ev Event) bool {
	if ev.Meta() {
		return false
	}
	// Call outside the lock so the handler may replace itself.
	h := b.Handler()
	if h == nil {
		return false
	}
	h(ev)
	return true
}
