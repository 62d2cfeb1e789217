package display

// Scrollback holds the most recent lines appended to a display.
// It is not safe for concurrent use.
type Scrollback struct {
	lines []string
	start int // index of the oldest line in lines
	n     int // number of valid lines
	ops   int // bumped on every change
}

// NewScrollback returns a buffer that keeps at most size lines.
func NewScrollback(size int) *Scrollback {
	if size < 1 {
		size = 1
	}
	return &Scrollback{lines: make([]string, size)}
}

func (s *Scrollback) Add(line string) {
	if s.n < len(s.lines) {
		s.lines[(s.start+s.n)%len(s.lines)] = line
		s.n++
	} else {
		s.lines[s.start] = line
		s.start = (s.start + 1) % len(s.lines)
	}
	s.ops++
}

func (s *Scrollback) Clear() {
	for i := range s.lines {
		s.lines[i] = ""
	}
	s.start, s.n = 0, 0
	s.ops++
}

func (s *Scrollback) Len() int { return s.n }

// Ops returns a counter that changes whenever the contents change.
func (s *Scrollback) Ops() int { return s.ops }

// Tail returns up to n of the newest lines, oldest first.
func (s *Scrollback) Tail(n int) []string {
	if n > s.n {
		n = s.n
	}
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = s.lines[(s.start+s.n-n+i)%len(s.lines)]
	}
	return out
}
