package display

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"reflect"
	"strings"
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/hashicorp/go-hclog"

	"github.com/nf/kboot/keyboard"
)

func TestScrollback(t *testing.T) {
	for _, c := range []struct {
		size int
		add  int
		tail int
		want []string
	}{
		{3, 0, 3, nil},
		{3, 2, 3, []string{"0", "1"}},
		{3, 3, 3, []string{"0", "1", "2"}},
		{3, 5, 3, []string{"2", "3", "4"}},
		{3, 5, 2, []string{"3", "4"}},
		{3, 7, 10, []string{"4", "5", "6"}},
		{1, 4, 1, []string{"3"}},
		{0, 2, 1, []string{"1"}},
	} {
		t.Run(fmt.Sprintf("%d/%d/%d", c.size, c.add, c.tail), func(t *testing.T) {
			sb := NewScrollback(c.size)
			for i := 0; i < c.add; i++ {
				sb.Add(fmt.Sprint(i))
			}
			if got := sb.Tail(c.tail); !reflect.DeepEqual(got, c.want) {
				t.Errorf("Tail(%d) = %q, want %q", c.tail, got, c.want)
			}
		})
	}
}

func TestScrollbackClear(t *testing.T) {
	sb := NewScrollback(4)
	sb.Add("a")
	sb.Add("b")
	ops := sb.Ops()
	sb.Clear()
	if sb.Ops() == ops {
		t.Error("Clear did not change Ops")
	}
	if n := sb.Len(); n != 0 {
		t.Errorf("Len after Clear = %d, want 0", n)
	}
	sb.Clear()
	if got := sb.Tail(4); got != nil {
		t.Errorf("Tail after Clear = %q, want nil", got)
	}
	sb.Add("c")
	if got := sb.Tail(4); !reflect.DeepEqual(got, []string{"c"}) {
		t.Errorf("Tail = %q, want [c]", got)
	}
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	d := NewText(&buf, 80, 25)
	if d.Width() != 80 || d.Height() != 25 {
		t.Errorf("size = %dx%d, want 80x25", d.Width(), d.Height())
	}
	d.AddLine("hello")
	d.Clear()
	d.AddLine("world")
	if got, want := buf.String(), "hello\n"+clearSeq+"world\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestRegistry(t *testing.T) {
	var (
		r Registry
		d = NewText(&bytes.Buffer{}, 1, 1)
	)
	if _, err := r.Lookup("screen"); err == nil {
		t.Error("Lookup on empty registry succeeded")
	}
	r.Register("screen", d)
	s, err := r.Lookup("screen")
	if err != nil {
		t.Fatal(err)
	}
	if s != Sink(d) {
		t.Errorf("Lookup returned %v, want %v", s, d)
	}
}

func newSimScreen(t *testing.T, w, h int) tcell.SimulationScreen {
	s := tcell.NewSimulationScreen("UTF-8")
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	s.SetSize(w, h)
	t.Cleanup(s.Fini)
	return s
}

func screenRow(s tcell.SimulationScreen, y int) string {
	cells, w, _ := s.GetContents()
	var b strings.Builder
	for _, c := range cells[y*w : (y+1)*w] {
		if len(c.Runes) == 0 {
			b.WriteByte(' ')
			continue
		}
		b.WriteRune(c.Runes[0])
	}
	return strings.TrimRight(b.String(), " ")
}

func TestTerminalDraw(t *testing.T) {
	s := newSimScreen(t, 10, 4)
	d := NewTerminal(s, 100)
	if d.Width() != 10 || d.Height() != 3 {
		t.Fatalf("size = %dx%d, want 10x3", d.Width(), d.Height())
	}
	for _, l := range []string{"one", "two", "three", "four", "a long line that is cut"} {
		d.AddLine(l)
	}
	d.Loading(true)
	d.draw()
	for y, want := range []string{"three", "four", "a long lin", "Loading..."} {
		if got := screenRow(s, y); got != want {
			t.Errorf("row %d = %q, want %q", y, got, want)
		}
	}

	d.Clear()
	d.Loading(false)
	d.draw()
	for y := 0; y < 4; y++ {
		if got := screenRow(s, y); got != "" {
			t.Errorf("row %d after Clear = %q, want empty", y, got)
		}
	}
}

func TestTerminalRun(t *testing.T) {
	s := newSimScreen(t, 20, 5)
	d := NewTerminal(s, 10)

	var got []keyboard.Event
	s.InjectKey(tcell.KeyRune, 'a', tcell.ModNone)
	s.InjectKey(tcell.KeyRune, 'b', tcell.ModMeta)
	s.InjectKey(d.Quit, 0, tcell.ModNone)
	s.InjectKey(tcell.KeyRune, 'c', tcell.ModNone)

	if err := d.Run(make(chan bool), func(ev keyboard.Event) {
		got = append(got, ev)
	}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d key events, want 2: %+v", len(got), got)
	}
	if got[0].Rune != 'a' || got[0].Meta() {
		t.Errorf("first event = %+v, want plain 'a'", got[0])
	}
	if got[1].Rune != 'b' || !got[1].Meta() {
		t.Errorf("second event = %+v, want meta 'b'", got[1])
	}
}

func TestTerminalRunExit(t *testing.T) {
	s := newSimScreen(t, 20, 5)
	d := NewTerminal(s, 10)
	exit := make(chan bool)
	close(exit)
	if err := d.Run(exit, nil); err != nil {
		t.Fatal(err)
	}
}

func TestRenderLines(t *testing.T) {
	m := image.NewRGBA(image.Rect(0, 0, 10*windowFace.Advance, 2*windowFace.Height))
	renderLines(m, []string{"", "X"}, color.White)

	lit := func(y0, y1 int) bool {
		for y := y0; y < y1; y++ {
			for x := 0; x < m.Bounds().Dx(); x++ {
				if m.RGBAAt(x, y) != windowBg {
					return true
				}
			}
		}
		return false
	}
	if lit(0, windowFace.Height) {
		t.Error("empty first line has foreground pixels")
	}
	if !lit(windowFace.Height, 2*windowFace.Height) {
		t.Error("second line has no foreground pixels")
	}
}

func TestWindowSize(t *testing.T) {
	v := NewWindow("test", 80, 25, 10)
	if v.Width() != 80 || v.Height() != 25 {
		t.Errorf("size = %dx%d, want 80x25", v.Width(), v.Height())
	}
	v.AddLine("x")
	v.Clear()
	if v.sb.Len() != 0 {
		t.Error("Clear left lines behind")
	}
}

func TestWindowLogError(t *testing.T) {
	v := NewWindow("test", 80, 25, 10)
	v.logError(fmt.Errorf("no surface"))

	var buf bytes.Buffer
	v.Logger = hclog.New(&hclog.LoggerOptions{Name: "window", Output: &buf})
	v.logError(fmt.Errorf("no surface"))
	if out := buf.String(); !strings.Contains(out, "[ERROR] window") || !strings.Contains(out, "no surface") {
		t.Errorf("log output = %q, want the window error", out)
	}
}
