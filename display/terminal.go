package display

import (
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/nf/kboot/keyboard"
)

// Terminal is a display drawn on a tcell screen. The bottom row is
// reserved for a status line; the rows above show the newest lines.
type Terminal struct {
	// Quit is the key that makes Run return.
	Quit tcell.Key

	s tcell.Screen

	mu     sync.Mutex
	sb     *Scrollback
	status string
	w, h   int
	drawn  int // sb.Ops() at the last draw
	dirty  bool
}

// NewTerminal returns a display on s, which must already be initialized.
// It remembers up to scrollback lines.
func NewTerminal(s tcell.Screen, scrollback int) *Terminal {
	w, h := s.Size()
	return &Terminal{
		Quit:  tcell.KeyCtrlQ,
		s:     s,
		sb:    NewScrollback(scrollback),
		w:     w,
		h:     h,
		drawn: -1,
	}
}

func (t *Terminal) Width() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.w
}

func (t *Terminal) Height() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rows()
}

func (t *Terminal) rows() int {
	if t.h < 2 {
		return 0
	}
	return t.h - 1
}

func (t *Terminal) Clear() {
	t.mu.Lock()
	t.sb.Clear()
	t.mu.Unlock()
}

func (t *Terminal) AddLine(line string) {
	t.mu.Lock()
	t.sb.Add(line)
	t.mu.Unlock()
}

// SetStatus replaces the text of the status line.
func (t *Terminal) SetStatus(status string) {
	t.mu.Lock()
	t.status = status
	t.dirty = true
	t.mu.Unlock()
}

// Loading shows or hides a loading message on the status line.
func (t *Terminal) Loading(visible bool) {
	if visible {
		t.SetStatus("Loading...")
	} else {
		t.SetStatus("")
	}
}

type updateEvent struct{ tcell.EventTime }

// Run draws the display until exit is closed or the Quit key is pressed,
// passing every other key event to keys.
func (t *Terminal) Run(exit <-chan bool, keys func(keyboard.Event)) error {
	done := make(chan bool)
	defer close(done)
	go func() {
		tick := time.NewTicker(time.Second / 60)
		defer tick.Stop()
		for {
			select {
			case <-tick.C:
				ev := &updateEvent{}
				ev.SetEventNow()
				// A full queue means a redraw is already pending.
				t.s.PostEvent(ev)
			case <-done:
				return
			case <-exit:
				t.s.PostEvent(tcell.NewEventInterrupt(nil))
				return
			}
		}
	}()

	for {
		select {
		case <-exit:
			return nil
		default:
		}

		switch e := t.s.PollEvent().(type) {
		case nil:
			return nil // screen finalized
		case *tcell.EventResize:
			t.mu.Lock()
			t.w, t.h = e.Size()
			t.dirty = true
			t.mu.Unlock()
			t.s.Sync()
		case *tcell.EventKey:
			if e.Key() == t.Quit {
				return nil
			}
			if keys != nil {
				keys(keyboard.FromTcell(e))
			}
		case *updateEvent:
			t.draw()
		}
	}
}

func (t *Terminal) draw() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.dirty && t.drawn == t.sb.Ops() {
		return
	}
	t.dirty = false
	t.drawn = t.sb.Ops()

	t.s.Clear()
	for y, line := range t.sb.Tail(t.rows()) {
		putString(t.s, 0, y, t.w, line, tcell.StyleDefault)
	}
	if t.h > 0 {
		st := tcell.StyleDefault.Reverse(true)
		for x := 0; x < t.w; x++ {
			t.s.SetContent(x, t.h-1, ' ', nil, st)
		}
		putString(t.s, 0, t.h-1, t.w, t.status, st)
	}
	t.s.Show()
}

func putString(s tcell.Screen, x, y, maxX int, str string, st tcell.Style) {
	for _, r := range str {
		w := runewidth.RuneWidth(r)
		if w == 0 {
			continue
		}
		if x+w > maxX {
			return
		}
		s.SetContent(x, y, r, nil, st)
		x += w
	}
}
