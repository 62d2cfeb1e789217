package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/nf/kboot/display"
)

const maxBacklog = 100

// backlog holds the most recent log lines while the terminal owns the
// screen, so they can be printed once it is released.
type backlog struct {
	// status, if set, is given each line with its timestamp removed.
	status func(string)

	mu      sync.Mutex
	sb      *display.Scrollback
	partial []byte
}

func (b *backlog) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.partial = append(b.partial, p...)
	var lines []string
	for {
		i := bytes.IndexByte(b.partial, '\n')
		if i < 0 {
			break
		}
		line := string(b.partial[:i])
		b.partial = b.partial[i+1:]
		b.add(line)
		lines = append(lines, line)
	}
	b.mu.Unlock()
	if b.status != nil {
		for _, l := range lines {
			b.status(statusText(l))
		}
	}
	return len(p), nil
}

func (b *backlog) add(line string) {
	if b.sb == nil {
		b.sb = display.NewScrollback(maxBacklog)
	}
	b.sb.Add(line)
}

// Lines returns the held lines, oldest first.
func (b *backlog) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sb == nil {
		return nil
	}
	return b.sb.Tail(b.sb.Len())
}

func (b *backlog) Emit(w io.Writer) {
	for _, l := range b.Lines() {
		fmt.Fprintln(w, l)
	}
}

// statusText drops the timestamp hclog puts before the level.
func statusText(line string) string {
	if i := strings.Index(line, " ["); i >= 0 {
		return line[i+1:]
	}
	return line
}
