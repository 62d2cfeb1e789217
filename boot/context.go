// Package boot loads a WebAssembly kernel, binds the host display,
// keyboard and log sink to it, and runs it, re-instantiating the kernel
// each time it halts.
package boot

import (
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/nf/kboot/display"
	"github.com/nf/kboot/keyboard"
)

var (
	ErrNoDisplay       = errors.New("boot: display not initialized")
	ErrNotInstantiated = errors.New("boot: kernel not instantiated")
	ErrRunning         = errors.New("boot: kernel already running")
	ErrBusy            = errors.New("boot: kernel is being reloaded or closed")
)

// Context holds the host objects a kernel reaches through its imports.
type Context struct {
	Keyboard *keyboard.Bridge
	Loader   Loader
	Logger   hclog.Logger

	mu      sync.Mutex
	display display.Sink
	kmsg    hclog.Logger
}

// NewContext returns a Context with an empty keyboard bridge.
func NewContext(loader Loader, logger hclog.Logger) *Context {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Context{
		Keyboard: &keyboard.Bridge{},
		Loader:   loader,
		Logger:   logger,
		kmsg:     logger.Named("kmsg"),
	}
}

// SetDisplay binds the display surface the kernel draws on.
func (c *Context) SetDisplay(d display.Sink) {
	c.mu.Lock()
	c.display = d
	c.mu.Unlock()
}

func (c *Context) getDisplay() (display.Sink, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.display == nil {
		return nil, ErrNoDisplay
	}
	return c.display, nil
}

func (c *Context) DisplayWidth() (int, error) {
	d, err := c.getDisplay()
	if err != nil {
		return 0, err
	}
	return d.Width(), nil
}

func (c *Context) DisplayHeight() (int, error) {
	d, err := c.getDisplay()
	if err != nil {
		return 0, err
	}
	return d.Height(), nil
}

func (c *Context) DisplayClear() error {
	d, err := c.getDisplay()
	if err != nil {
		return err
	}
	d.Clear()
	return nil
}

func (c *Context) DisplayAddLine(line string) error {
	d, err := c.getDisplay()
	if err != nil {
		return err
	}
	d.AddLine(line)
	return nil
}

// KmsgPrint writes a kernel message to the log.
func (c *Context) KmsgPrint(msg string) {
	c.kmsgLogger().Info(msg)
}

func (c *Context) kmsgLogger() hclog.Logger {
	if c.kmsg != nil {
		return c.kmsg
	}
	return c.logger().Named("kmsg")
}

func (c *Context) logger() hclog.Logger {
	if c.Logger == nil {
		return hclog.NewNullLogger()
	}
	return c.Logger
}

func (c *Context) showLoader() {
	if c.Loader != nil {
		c.Loader.Show()
	}
}

func (c *Context) hideLoader() {
	if c.Loader != nil {
		c.Loader.Hide()
	}
}

func (c *Context) uninitKeyboard() {
	if c.Keyboard != nil {
		c.Keyboard.Uninit()
	}
}
