package keyboard

import (
	"github.com/gdamore/tcell/v2"
	"golang.org/x/mobile/event/key"
)

// FromTcell converts a terminal key event. Terminals only report key
// presses, so the result is always a key-down event.
func FromTcell(e *tcell.EventKey) Event {
	ev := Event{Down: true}
	if e.Key() == tcell.KeyRune {
		ev.Rune = e.Rune()
	} else {
		ev.Key = int(e.Key())
		// Control keys and a few others carry a rune as well.
		if r := e.Rune(); r != 0 {
			ev.Rune = r
		}
	}
	m := e.Modifiers()
	if m&tcell.ModShift != 0 {
		ev.Mod |= ModShift
	}
	if m&tcell.ModCtrl != 0 {
		ev.Mod |= ModCtrl
	}
	if m&tcell.ModAlt != 0 {
		ev.Mod |= ModAlt
	}
	if m&tcell.ModMeta != 0 {
		ev.Mod |= ModMeta
	}
	return ev
}

// FromMobile converts a window key event. Key repeats are reported as
// key-down events.
func FromMobile(e key.Event) Event {
	ev := Event{
		Key:  int(e.Code),
		Down: e.Direction != key.DirRelease,
	}
	if e.Rune >= 0 {
		ev.Rune = e.Rune
	}
	if e.Modifiers&key.ModShift != 0 {
		ev.Mod |= ModShift
	}
	if e.Modifiers&key.ModControl != 0 {
		ev.Mod |= ModCtrl
	}
	if e.Modifiers&key.ModAlt != 0 {
		ev.Mod |= ModAlt
	}
	if e.Modifiers&key.ModMeta != 0 {
		ev.Mod |= ModMeta
	}
	return ev
}
