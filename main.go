// Command kboot boots a WebAssembly kernel (kernel.wasm) on a text
// display, forwards keyboard input to it, and runs it again each time
// it halts.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"runtime/pprof"

	"github.com/gdamore/tcell/v2"
	"github.com/hashicorp/go-hclog"
	"github.com/spf13/pflag"
	"golang.org/x/mobile/event/key"

	"github.com/nf/kboot/boot"
	"github.com/nf/kboot/display"
	"github.com/nf/kboot/keyboard"
)

// screenID is the element id every display backend is registered under.
const screenID = "screen"

type config struct {
	base      string
	displayID string
	keyUp     bool
	level     hclog.Level
}

func main() {
	log.SetPrefix("kboot: ")
	log.SetFlags(0)

	var (
		baseFlag    = pflag.StringP("base", "b", ".", "directory or `URL` holding "+boot.KernelName+" (a URL path always names a directory)")
		displayFlag = pflag.StringP("display", "d", screenID, "`id` of the display to boot on")
		cliFlag     = pflag.Bool("cli", false, "disable the terminal UI and print display lines to stdout")
		windowFlag  = pflag.Bool("window", false, "draw the display in a window")
		devFlag     = pflag.Bool("dev", false, "enable developer mode (console, reload when the kernel changes)")
		keyUpFlag   = pflag.Bool("keyup", false, "forward key-up events to the kernel")
		levelFlag   = pflag.String("log-level", "info", "log `level` (trace, debug, info, warn, error)")

		cpuProfileFlag = pflag.String("cpu_profile", "", "write CPU profile to `file`")
	)
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [--cli | --window | --dev] [--base dir|url]\n", os.Args[0])
		pflag.PrintDefaults()
		os.Exit(2)
	}
	pflag.Parse()
	if pflag.NArg() != 0 {
		pflag.Usage()
	}

	cfg := config{
		base:      *baseFlag,
		displayID: *displayFlag,
		keyUp:     *keyUpFlag,
		level:     hclog.LevelFromString(*levelFlag),
	}
	if cfg.level == hclog.NoLevel {
		log.Fatalf("invalid log level %q", *levelFlag)
	}
	if os.Getenv("TRACE") != "" {
		cfg.level = hclog.Trace
	}

	if *devFlag {
		if err := devMode(cfg); err != nil {
			log.Fatal(err)
		}
		return
	}

	var cpuProfile io.Closer
	if prof := *cpuProfileFlag; prof != "" {
		f, err := os.Create(prof)
		if err != nil {
			log.Fatalf("creating CPU profile file: %v", err)
		}
		pprof.StartCPUProfile(f)
		cpuProfile = f
	}

	var err error
	switch {
	case *cliFlag:
		err = runCLI(cfg)
	case *windowFlag:
		err = runWindow(cfg)
	default:
		err = runTerminal(cfg)
	}

	if f := cpuProfile; f != nil {
		pprof.StopCPUProfile()
		f.Close()
	}

	if err != nil {
		log.Fatal(err)
	}
}

func newLogger(cfg config, out io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "kboot",
		Level:  cfg.level,
		Output: out,
	})
}

// newRunner wires a Runner to a wazero engine and a display registered
// as screenID. The returned cleanup releases both.
func newRunner(ctx context.Context, cfg config, sink display.Sink, loader boot.Loader, logger hclog.Logger) (*boot.Runner, func(), error) {
	f, err := boot.NewFetcher(cfg.base)
	if err != nil {
		return nil, nil, err
	}
	bc := boot.NewContext(loader, logger)
	bc.Keyboard.ForwardKeyUp = cfg.keyUp
	eng, err := boot.NewWazero(ctx, bc)
	if err != nil {
		return nil, nil, err
	}
	var reg display.Registry
	reg.Register(screenID, sink)
	r := &boot.Runner{
		Context:  bc,
		Displays: &reg,
		Engine:   eng,
		Fetcher:  f,
	}
	cleanup := func() {
		r.Close(context.Background())
		eng.Close(context.Background())
	}
	return r, cleanup, nil
}

// runCLI boots the kernel with stdout as its display and runs it once.
func runCLI(cfg config) error {
	ctx := context.Background()
	logger := newLogger(cfg, os.Stderr)
	loader := &boot.Indicator{}
	r, cleanup, err := newRunner(ctx, cfg, display.NewText(os.Stdout, 80, 25), loader, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	if err := r.Init(ctx, cfg.displayID); err != nil {
		return err
	}
	return r.Run(ctx)
}

// runLoop boots the kernel and runs it, running it again each time
// restart receives, until ctx is done.
func runLoop(ctx context.Context, r *boot.Runner, displayID string, restart <-chan bool, logger hclog.Logger) error {
	if err := r.Init(ctx, displayID); err != nil {
		return err
	}
	for {
		err := r.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if r.State() != boot.Instantiated {
			// Nothing left to run again.
			if err == nil {
				err = boot.ErrNotInstantiated
			}
			return err
		}
		if err != nil {
			logger.Error("kernel stopped", "error", err)
		}
		logger.Info("press Enter to run again")
		select {
		case <-restart:
		case <-ctx.Done():
			return nil
		}
	}
}

// keyRouter passes key events to the keyboard bridge while the kernel
// runs. While it is halted, enter requests a restart.
func keyRouter(r *boot.Runner, restart chan<- bool, enter func(keyboard.Event) bool) func(keyboard.Event) {
	return func(ev keyboard.Event) {
		if ev.Down && enter(ev) && r.State() == boot.Instantiated {
			select {
			case restart <- true:
			default:
			}
			return
		}
		r.Context.Keyboard.Dispatch(ev)
	}
}

// ui is a display that drives itself until exit is closed.
type ui interface {
	display.Sink
	Loading(visible bool)
	Run(exit <-chan bool, keys func(keyboard.Event)) error
}

func runUI(cfg config, u ui, logger hclog.Logger, enter func(keyboard.Event) bool) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loader := &boot.Indicator{OnChange: u.Loading}
	r, cleanup, err := newRunner(ctx, cfg, u, loader, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var (
		restart = make(chan bool, 1)
		exit    = make(chan bool)
		loopErr error
	)
	go func() {
		defer close(exit)
		loopErr = runLoop(ctx, r, cfg.displayID, restart, logger)
	}()
	err = u.Run(exit, keyRouter(r, restart, enter))
	cancel()
	r.Halt()
	<-exit
	if err != nil {
		return err
	}
	return loopErr
}

func runTerminal(cfg config) error {
	s, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := s.Init(); err != nil {
		return err
	}
	term := display.NewTerminal(s, 1000)
	logs := &backlog{status: term.SetStatus}
	err = runUI(cfg, term, newLogger(cfg, logs), func(ev keyboard.Event) bool {
		return ev.Key == int(tcell.KeyEnter)
	})
	s.Fini()
	logs.Emit(os.Stderr)
	return err
}

func runWindow(cfg config) error {
	logger := newLogger(cfg, os.Stderr)
	win := display.NewWindow("kboot", 80, 25, 1000)
	win.Logger = logger.Named("window")
	return runUI(cfg, win, logger, func(ev keyboard.Event) bool {
		return ev.Key == int(key.CodeReturnEnter)
	})
}
