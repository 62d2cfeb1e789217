package boot

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"
)

// EntryPoint is the export Run calls.
const EntryPoint = "_start"

// Wazero is an Engine backed by the wazero runtime. Kernels may import
// WASI preview1 and the host functions of module "env".
type Wazero struct {
	rt  wazero.Runtime
	bc  *Context
	seq uint64

	mu        sync.Mutex
	instances map[string]*instance
}

// NewWazero returns an engine whose host imports operate on bc.
func NewWazero(ctx context.Context, bc *Context) (*Wazero, error) {
	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	w := &Wazero{
		rt:        wazero.NewRuntimeWithConfig(ctx, cfg),
		bc:        bc,
		instances: make(map[string]*instance),
	}
	if _, err := wasi_snapshot_preview1.Instantiate(ctx, w.rt); err != nil {
		w.rt.Close(ctx)
		return nil, errors.Wrap(err, "instantiating WASI")
	}
	if err := w.instantiateEnv(ctx); err != nil {
		w.rt.Close(ctx)
		return nil, errors.Wrap(err, "instantiating host module")
	}
	return w, nil
}

// Close releases the runtime and everything compiled by it.
func (w *Wazero) Close(ctx context.Context) error {
	return w.rt.Close(ctx)
}

func (w *Wazero) Compile(ctx context.Context, bytecode []byte) (Module, error) {
	cm, err := w.rt.CompileModule(ctx, bytecode)
	if err != nil {
		return nil, errors.Wrap(err, "compile")
	}
	return &wazeroModule{w: w, cm: cm}, nil
}

func (w *Wazero) lookup(mod api.Module) *instance {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.instances[mod.Name()]
}

type wazeroModule struct {
	w  *Wazero
	cm wazero.CompiledModule
}

func (m *wazeroModule) Instantiate(ctx context.Context) (Instance, error) {
	var (
		w    = m.w
		name = fmt.Sprintf("kernel#%d", atomic.AddUint64(&w.seq, 1))
		out  = w.bc.kmsgLogger().StandardWriter(&hclog.StandardLoggerOptions{})
	)
	cfg := wazero.NewModuleConfig().
		WithName(name).
		WithStartFunctions(). // _start is called by Run
		WithSysNanosleep().
		WithSysNanotime().
		WithSysWalltime().
		WithRandSource(rand.Reader).
		WithStdout(out).
		WithStderr(out)

	inst := newInstance(w, name)
	w.mu.Lock()
	w.instances[name] = inst
	w.mu.Unlock()

	mod, err := w.rt.InstantiateModule(ctx, m.cm, cfg)
	if err != nil {
		w.remove(name)
		return nil, errors.Wrap(err, "instantiate")
	}
	inst.mod = mod
	return inst, nil
}

func (m *wazeroModule) Close(ctx context.Context) error {
	return m.cm.Close(ctx)
}

func (w *Wazero) remove(name string) {
	w.mu.Lock()
	delete(w.instances, name)
	w.mu.Unlock()
}

func (i *instance) Run(ctx context.Context) error {
	fn := i.mod.ExportedFunction(EntryPoint)
	if fn == nil {
		return errors.Errorf("%s: missing export %s", i.name, EntryPoint)
	}
	_, err := fn.Call(ctx)
	var exit *sys.ExitError
	if errors.As(err, &exit) && exit.ExitCode() == 0 {
		return nil
	}
	return errors.Wrap(err, i.name)
}

func (i *instance) Close(ctx context.Context) error {
	i.eng.remove(i.name)
	return i.mod.Close(ctx)
}
