package boot

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/nf/kboot/display"
)

// KernelName is the resource fetched by Init.
const KernelName = "kernel.wasm"

// State is a Runner state.
type State int

const (
	Idle State = iota
	Fetching
	Compiling
	Instantiated
	Running
	Halted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Compiling:
		return "compiling"
	case Instantiated:
		return "instantiated"
	case Running:
		return "running"
	case Halted:
		return "halted"
	}
	return "unknown"
}

// Runner boots a kernel and runs it. After the kernel halts the Runner
// creates a fresh instance from the same compiled module, so Run may be
// called again without fetching or compiling anything.
type Runner struct {
	Context  *Context
	Displays *display.Registry
	Engine   Engine
	Fetcher  Fetcher

	// OnState, if set, is called after every state change.
	OnState func(State)

	mu      sync.Mutex
	state   State
	mod     Module
	inst    Instance
	cancel  context.CancelFunc
	done    chan struct{} // closed when the current Run returns
	halting bool
	busy    bool // Reload or Close owns the module; Run is refused
}

func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	if r.OnState != nil {
		r.OnState(s)
	}
}

// Init binds the display registered as displayID, then fetches, compiles
// and instantiates the kernel with the loader shown. Errors are returned
// as is; nothing is retried.
func (r *Runner) Init(ctx context.Context, displayID string) error {
	if s := r.State(); s != Idle {
		return errors.Errorf("boot: Init called in state %v", s)
	}
	d, err := r.Displays.Lookup(displayID)
	if err != nil {
		return err
	}
	bc := r.Context
	bc.SetDisplay(d)

	log := bc.logger()
	log.Info("Booting...")
	bc.showLoader()

	start := time.Now()
	mod, err := r.load(ctx)
	if err != nil {
		r.setState(Idle)
		return err
	}
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		mod.Close(ctx)
		r.setState(Idle)
		return err
	}
	log.Info("WebAssembly", "elapsed", time.Since(start))

	r.mu.Lock()
	r.mod, r.inst = mod, inst
	r.mu.Unlock()
	bc.hideLoader()
	r.setState(Instantiated)
	return nil
}

func (r *Runner) load(ctx context.Context) (Module, error) {
	r.setState(Fetching)
	rc, err := r.Fetcher.Fetch(ctx, KernelName)
	if err != nil {
		return nil, err
	}
	// wazero compiles from memory, so the whole binary is buffered first.
	r.setState(Compiling)
	b, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", KernelName)
	}
	return r.Engine.Compile(ctx, b)
}

// Run calls the kernel entry point and blocks until it returns. Then it
// clears the keyboard handler and replaces the instance with a new one
// from the same module. It returns the kernel's error, if any.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	switch {
	case r.busy:
		r.mu.Unlock()
		return ErrBusy
	case r.state == Running || r.done != nil:
		r.mu.Unlock()
		return ErrRunning
	case r.state != Instantiated:
		r.mu.Unlock()
		return ErrNotInstantiated
	}
	runCtx, cancel := context.WithCancel(ctx)
	var (
		inst = r.inst
		mod  = r.mod
		done = make(chan struct{})
	)
	r.cancel, r.done, r.halting = cancel, done, false
	r.state = Running
	r.mu.Unlock()
	defer func() {
		cancel()
		r.mu.Lock()
		r.cancel, r.done = nil, nil
		r.mu.Unlock()
		close(done)
	}()

	log := r.Context.logger()
	log.Info("Running")
	if r.OnState != nil {
		r.OnState(Running)
	}
	runErr := inst.Run(runCtx)

	r.mu.Lock()
	if r.halting {
		runErr = nil
	}
	r.mu.Unlock()
	r.setState(Halted)

	r.Context.uninitKeyboard()
	if err := inst.Close(ctx); err != nil {
		log.Debug("closing instance", "error", err)
	}
	r.mu.Lock()
	swapped := r.mod != mod
	r.mu.Unlock()
	if swapped {
		// The module was replaced or released while this instance ran.
		log.Info("Halted")
		return runErr
	}
	next, err := mod.Instantiate(ctx)
	if err != nil {
		r.mu.Lock()
		r.inst = nil
		r.mu.Unlock()
		return errors.Wrap(err, "re-instantiating kernel")
	}
	r.mu.Lock()
	r.inst = next
	r.mu.Unlock()
	r.setState(Instantiated)
	log.Info("Halted")
	return runErr
}

// Halt stops a running kernel and waits until Run has returned,
// including the re-instantiation that follows the kernel's exit.
// It does nothing if no Run is in progress.
func (r *Runner) Halt() {
	r.mu.Lock()
	done := r.done
	if done == nil {
		r.mu.Unlock()
		return
	}
	r.halting = true
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()
	<-done
}

// reserve halts the kernel and keeps Run from starting until release
// is called.
func (r *Runner) reserve(op string) error {
	r.mu.Lock()
	if r.busy || r.state == Fetching || r.state == Compiling {
		s := r.state
		r.mu.Unlock()
		return errors.Errorf("boot: %s called in state %v", op, s)
	}
	r.busy = true
	r.mu.Unlock()
	r.Halt()
	return nil
}

func (r *Runner) release() {
	r.mu.Lock()
	r.busy = false
	r.mu.Unlock()
}

// Reload halts the kernel, then fetches and compiles it again,
// replacing the current module. Run is refused until it returns.
func (r *Runner) Reload(ctx context.Context) error {
	if err := r.reserve("Reload"); err != nil {
		return err
	}
	defer r.release()
	bc := r.Context
	bc.showLoader()
	defer bc.hideLoader()

	prev := r.State()
	mod, err := r.load(ctx)
	if err != nil {
		r.setState(prev)
		return err
	}
	bc.uninitKeyboard()
	inst, err := mod.Instantiate(ctx)
	if err != nil {
		mod.Close(ctx)
		r.setState(prev)
		return err
	}

	r.mu.Lock()
	oldMod, oldInst := r.mod, r.inst
	r.mod, r.inst = mod, inst
	r.mu.Unlock()
	if oldInst != nil {
		oldInst.Close(ctx)
	}
	if oldMod != nil {
		oldMod.Close(ctx)
	}
	r.setState(Instantiated)
	bc.logger().Info("Reloaded")
	return nil
}

// Close halts the kernel and releases the instance and module.
func (r *Runner) Close(ctx context.Context) error {
	if err := r.reserve("Close"); err != nil {
		return err
	}
	r.mu.Lock()
	mod, inst := r.mod, r.inst
	r.mod, r.inst = nil, nil
	r.state = Idle
	r.busy = false
	r.mu.Unlock()
	var err error
	if inst != nil {
		err = inst.Close(ctx)
	}
	if mod != nil {
		if cerr := mod.Close(ctx); err == nil {
			err = cerr
		}
	}
	return err
}
