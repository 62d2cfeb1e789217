// Package display implements text-mode display surfaces that a guest
// kernel appends lines to.
package display

import (
	"sync"

	"github.com/pkg/errors"
)

// Sink is a line-oriented display surface.
type Sink interface {
	// Width and Height return the drawable size in character cells.
	Width() int
	Height() int
	// Clear erases everything shown.
	Clear()
	// AddLine appends one line of text. It must not block on rendering.
	AddLine(line string)
}

// Registry maps element ids to display surfaces.
type Registry struct {
	mu    sync.Mutex
	sinks map[string]Sink
}

// Register binds id to s, replacing any previous binding.
func (r *Registry) Register(id string, s Sink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sinks == nil {
		r.sinks = make(map[string]Sink)
	}
	r.sinks[id] = s
}

// Lookup returns the sink registered as id.
func (r *Registry) Lookup(id string) (Sink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sinks[id]
	if !ok {
		return nil, errors.Errorf("display: no element with id %q", id)
	}
	return s, nil
}
