package boot

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero/api"

	"github.com/nf/kboot/keyboard"
)

// HostModule is the import module name of the host functions.
const HostModule = "env"

// inboxSize bounds the key events queued for a kernel between polls.
const inboxSize = 64

func (w *Wazero) instantiateEnv(ctx context.Context) error {
	_, err := w.rt.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().WithFunc(w.displayWidth).Export("displayWidth").
		NewFunctionBuilder().WithFunc(w.displayHeight).Export("displayHeight").
		NewFunctionBuilder().WithFunc(w.displayClear).Export("displayClear").
		NewFunctionBuilder().WithFunc(w.displayAddLine).Export("displayAddLine").
		NewFunctionBuilder().WithFunc(w.kmsgPrint).Export("kmsgPrint").
		NewFunctionBuilder().WithFunc(w.initKeyboard).Export("initKeyboard").
		NewFunctionBuilder().WithFunc(w.initAll).Export("init").
		NewFunctionBuilder().WithFunc(w.uninit).Export("uninit").
		NewFunctionBuilder().WithFunc(w.pollEvents).Export("pollEvents").
		Instantiate(ctx)
	return err
}

// Host functions trap by panicking; wazero turns the panic into an
// error returned from the kernel's entry point.

func must(err error) {
	if err != nil {
		panic(err)
	}
}

func readString(m api.Module, ptr, n uint32) string {
	b, ok := m.Memory().Read(ptr, n)
	if !ok {
		panic(errors.Errorf("%s: string at %#x+%d out of range", m.Name(), ptr, n))
	}
	return string(b)
}

func (w *Wazero) displayWidth(ctx context.Context) uint32 {
	n, err := w.bc.DisplayWidth()
	must(err)
	return uint32(n)
}

func (w *Wazero) displayHeight(ctx context.Context) uint32 {
	n, err := w.bc.DisplayHeight()
	must(err)
	return uint32(n)
}

func (w *Wazero) displayClear(ctx context.Context) {
	must(w.bc.DisplayClear())
}

func (w *Wazero) displayAddLine(ctx context.Context, m api.Module, ptr, n uint32) {
	must(w.bc.DisplayAddLine(readString(m, ptr, n)))
}

func (w *Wazero) kmsgPrint(ctx context.Context, m api.Module, ptr, n uint32) {
	w.bc.KmsgPrint(readString(m, ptr, n))
}

func (w *Wazero) initKeyboard(ctx context.Context, m api.Module, ptr, n uint32) {
	w.installKeyboard(m, readString(m, ptr, n))
}

// initAll takes keyboard, mouse and input handler names; only the
// keyboard handler is used.
func (w *Wazero) initAll(ctx context.Context, m api.Module, kptr, kn, mptr, mn, iptr, in uint32) {
	w.installKeyboard(m, readString(m, kptr, kn))
}

func (w *Wazero) uninit(ctx context.Context, m api.Module) {
	w.bc.uninitKeyboard()
	if inst := w.lookup(m); inst != nil {
		inst.setHandler(nil)
	}
}

func (w *Wazero) pollEvents(ctx context.Context, m api.Module, timeoutMs int32) uint32 {
	inst := w.lookup(m)
	if inst == nil {
		panic(errors.Errorf("%s: not a kernel instance", m.Name()))
	}
	timeout := time.Duration(timeoutMs) * time.Millisecond
	if timeoutMs < 0 {
		timeout = -1
	}
	n, err := inst.poll(ctx, timeout)
	must(err)
	return n
}

func (w *Wazero) installKeyboard(m api.Module, export string) {
	inst := w.lookup(m)
	if inst == nil {
		panic(errors.Errorf("%s: not a kernel instance", m.Name()))
	}
	fn := m.ExportedFunction(export)
	if fn == nil {
		panic(errors.Errorf("%s: keyboard handler %q is not exported", m.Name(), export))
	}
	inst.setHandler(fn)
	if w.bc.Keyboard != nil {
		w.bc.Keyboard.InitKeyboard(inst.enqueue)
	}
}

// caller is the part of api.Function used to deliver events.
type caller interface {
	Call(ctx context.Context, params ...uint64) ([]uint64, error)
}

// instance is a kernel module instance. Key events forwarded by the
// keyboard bridge wait in inbox until the kernel calls pollEvents, which
// runs the kernel's handler on the kernel's own goroutine.
type instance struct {
	eng  *Wazero
	name string
	mod  api.Module

	inbox   chan keyboard.Event
	handler caller // only touched by the kernel goroutine
}

func newInstance(w *Wazero, name string) *instance {
	return &instance{
		eng:   w,
		name:  name,
		inbox: make(chan keyboard.Event, inboxSize),
	}
}

func (i *instance) setHandler(fn caller) {
	i.handler = fn
	if fn == nil {
		// Drop events queued for the old handler.
		for {
			select {
			case <-i.inbox:
			default:
				return
			}
		}
	}
}

func (i *instance) enqueue(ev keyboard.Event) {
	select {
	case i.inbox <- ev:
	default:
		i.eng.bc.logger().Warn("keyboard queue full, dropping event", "instance", i.name, "rune", ev.Rune, "key", ev.Key)
	}
}

// poll delivers every queued key event to the handler. If none are
// queued it first waits up to timeout for one, or forever if timeout is
// negative.
func (i *instance) poll(ctx context.Context, timeout time.Duration) (uint32, error) {
	n, err := i.drain(ctx)
	if n > 0 || err != nil || timeout == 0 {
		return n, err
	}
	var expired <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		expired = t.C
	}
	select {
	case ev := <-i.inbox:
		if err := i.deliver(ctx, ev); err != nil {
			return 0, err
		}
	case <-expired:
		return 0, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	n, err = i.drain(ctx)
	return n + 1, err
}

func (i *instance) drain(ctx context.Context) (n uint32, err error) {
	for {
		select {
		case ev := <-i.inbox:
			if err := i.deliver(ctx, ev); err != nil {
				return n, err
			}
			n++
		default:
			return n, nil
		}
	}
}

func (i *instance) deliver(ctx context.Context, ev keyboard.Event) error {
	if i.handler == nil {
		return nil
	}
	var down uint64
	if ev.Down {
		down = 1
	}
	_, err := i.handler.Call(ctx, uint64(uint32(ev.Key)), uint64(uint32(ev.Rune)), uint64(ev.Mod), down)
	return err
}
