package display

import (
	"io"
	"sync"
)

const clearSeq = "\x1b[H\x1b[2J"

// Text writes lines to an io.Writer, one per line.
type Text struct {
	W, H int

	mu  sync.Mutex
	out io.Writer
}

// NewText returns a w by h cell display writing to out.
func NewText(out io.Writer, w, h int) *Text {
	return &Text{W: w, H: h, out: out}
}

func (t *Text) Width() int  { return t.W }
func (t *Text) Height() int { return t.H }

func (t *Text) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	io.WriteString(t.out, clearSeq)
}

func (t *Text) AddLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	io.WriteString(t.out, line+"\n")
}
