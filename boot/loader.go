package boot

import "sync"

// Loader is shown while the kernel is fetched and compiled.
type Loader interface {
	Show()
	Hide()
}

// Indicator is a Loader that records its visibility and reports changes
// to OnChange.
type Indicator struct {
	OnChange func(visible bool)

	mu      sync.Mutex
	visible bool
}

func (l *Indicator) Show() { l.set(true) }
func (l *Indicator) Hide() { l.set(false) }

func (l *Indicator) Visible() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.visible
}

func (l *Indicator) set(v bool) {
	l.mu.Lock()
	changed := l.visible != v
	l.visible = v
	l.mu.Unlock()
	if changed && l.OnChange != nil {
		l.OnChange(v)
	}
}
