package keyboard

import (
	"fmt"
	"testing"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/mobile/event/key"
)

type counter struct {
	n    int
	last Event
}

func (c *counter) handle(ev Event) {
	c.n++
	c.last = ev
}

func TestBridgeLastInitWins(t *testing.T) {
	for n := 1; n <= 4; n++ {
		t.Run(fmt.Sprint(n), func(t *testing.T) {
			var (
				b  Bridge
				cs = make([]*counter, n)
			)
			for i := range cs {
				cs[i] = &counter{}
				if i%2 == 0 {
					b.InitKeyboard(cs[i].handle)
				} else {
					b.Init(cs[i].handle, nil, nil)
				}
			}
			b.KeyDown(Event{Rune: 'x', Down: true})
			for i, c := range cs {
				want := 0
				if i == n-1 {
					want = 1
				}
				if c.n != want {
					t.Errorf("handler %d called %d times, want %d", i, c.n, want)
				}
			}
		})
	}
}

func TestBridgeKeyDown(t *testing.T) {
	for _, c := range []struct {
		name      string
		installed bool
		ev        Event
		want      int
	}{
		{"plain", true, Event{Rune: 'a', Down: true}, 1},
		{"shift", true, Event{Rune: 'A', Mod: ModShift, Down: true}, 1},
		{"ctrl", true, Event{Rune: 'c', Mod: ModCtrl, Down: true}, 1},
		{"meta", true, Event{Rune: 'r', Mod: ModMeta, Down: true}, 0},
		{"meta+shift", true, Event{Rune: 'R', Mod: ModMeta | ModShift, Down: true}, 0},
		{"no handler", false, Event{Rune: 'a', Down: true}, 0},
		{"no handler meta", false, Event{Rune: 'a', Mod: ModMeta, Down: true}, 0},
	} {
		t.Run(c.name, func(t *testing.T) {
			var (
				b   Bridge
				cnt counter
			)
			if c.installed {
				b.InitKeyboard(cnt.handle)
			}
			got := b.KeyDown(c.ev)
			if cnt.n != c.want {
				t.Errorf("handler called %d times, want %d", cnt.n, c.want)
			}
			if got != (c.want == 1) {
				t.Errorf("KeyDown returned %v, want %v", got, c.want == 1)
			}
			if c.want == 1 && cnt.last != c.ev {
				t.Errorf("handler got %+v, want %+v", cnt.last, c.ev)
			}
		})
	}
}

func TestBridgeUninit(t *testing.T) {
	var (
		b   Bridge
		cnt counter
	)
	b.InitKeyboard(cnt.handle)
	b.Uninit()
	if b.Handler() != nil {
		t.Fatal("handler still installed after Uninit")
	}
	for i := 0; i < 3; i++ {
		b.KeyDown(Event{Rune: 'a', Down: true})
	}
	if cnt.n != 0 {
		t.Errorf("handler called %d times after Uninit", cnt.n)
	}
	b.InitKeyboard(cnt.handle)
	b.KeyDown(Event{Rune: 'a', Down: true})
	if cnt.n != 1 {
		t.Errorf("handler called %d times after re-init, want 1", cnt.n)
	}
}

func TestBridgeBeforeInit(t *testing.T) {
	var b Bridge
	b.Uninit()
	if b.KeyDown(Event{Rune: 'a', Down: true}) {
		t.Error("KeyDown delivered without a handler")
	}
	if b.Dispatch(Event{Rune: 'a'}) {
		t.Error("Dispatch delivered without a handler")
	}
}

func TestBridgeKeyUp(t *testing.T) {
	for _, c := range []struct {
		forward bool
		ev      Event
		want    int
	}{
		{false, Event{Rune: 'a'}, 0},
		{true, Event{Rune: 'a'}, 1},
		{true, Event{Rune: 'a', Mod: ModMeta}, 0},
	} {
		var (
			b   = Bridge{ForwardKeyUp: c.forward}
			cnt counter
		)
		b.InitKeyboard(cnt.handle)
		b.Dispatch(c.ev)
		if cnt.n != c.want {
			t.Errorf("ForwardKeyUp=%v %+v: handler called %d times, want %d",
				c.forward, c.ev, cnt.n, c.want)
		}
	}
}

func TestBridgeSetForwardKeyUp(t *testing.T) {
	var (
		b   Bridge
		cnt counter
	)
	b.InitKeyboard(cnt.handle)
	up := Event{Rune: 'a'}
	b.KeyUp(up)
	b.SetForwardKeyUp(true)
	if !b.KeyUpForwarded() {
		t.Errorf("KeyUpForwarded() = false after SetForwardKeyUp(true)")
	}
	b.KeyUp(up)
	b.SetForwardKeyUp(false)
	b.KeyUp(up)
	if cnt.n != 1 {
		t.Errorf("handler called %d times, want 1", cnt.n)
	}
}

func TestBridgeHandlerReplacesItself(t *testing.T) {
	var (
		b     Bridge
		first counter
		next  counter
	)
	b.InitKeyboard(func(ev Event) {
		first.handle(ev)
		b.InitKeyboard(next.handle)
	})
	b.KeyDown(Event{Rune: '1', Down: true})
	b.KeyDown(Event{Rune: '2', Down: true})
	if first.n != 1 || next.n != 1 {
		t.Errorf("first=%d next=%d, want 1 and 1", first.n, next.n)
	}
	if next.last.Rune != '2' {
		t.Errorf("next got rune %q, want '2'", next.last.Rune)
	}
}

func TestFromTcell(t *testing.T) {
	for _, c := range []struct {
		ev        *tcell.EventKey
		key       int
		r         rune
		meta      bool
		checkRune bool
	}{
		{tcell.NewEventKey(tcell.KeyRune, 'a', tcell.ModNone), 0, 'a', false, true},
		{tcell.NewEventKey(tcell.KeyRune, 'r', tcell.ModMeta), 0, 'r', true, true},
		{tcell.NewEventKey(tcell.KeyUp, 0, tcell.ModNone), int(tcell.KeyUp), 0, false, false},
	} {
		got := FromTcell(c.ev)
		if !got.Down {
			t.Errorf("%v: Down = false, want true", c.ev.Name())
		}
		if got.Key != c.key {
			t.Errorf("%v: Key = %d, want %d", c.ev.Name(), got.Key, c.key)
		}
		if c.checkRune && got.Rune != c.r {
			t.Errorf("%v: Rune = %q, want %q", c.ev.Name(), got.Rune, c.r)
		}
		if got.Meta() != c.meta {
			t.Errorf("%v: Meta = %v, want %v", c.ev.Name(), got.Meta(), c.meta)
		}
	}
}

func TestFromMobile(t *testing.T) {
	got := FromMobile(key.Event{
		Rune:      'q',
		Code:      key.CodeQ,
		Modifiers: key.ModControl | key.ModMeta,
		Direction: key.DirRelease,
	})
	want := Event{Key: int(key.CodeQ), Rune: 'q', Mod: ModCtrl | ModMeta}
	if got != want {
		t.Errorf("FromMobile = %+v, want %+v", got, want)
	}
	got = FromMobile(key.Event{Rune: -1, Code: key.CodeLeftArrow, Direction: key.DirPress})
	want = Event{Key: int(key.CodeLeftArrow), Down: true}
	if got != want {
		t.Errorf("FromMobile = %+v, want %+v", got, want)
	}
}
