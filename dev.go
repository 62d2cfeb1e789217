package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/howeyc/fsnotify"

	"github.com/nf/kboot/boot"
	"github.com/nf/kboot/keyboard"
)

// devMode runs the kernel under the console UI, reloading it whenever
// the kernel file in the base directory changes.
func devMode(cfg config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	con := newConsole()
	logger := newLogger(cfg, con.log)
	loader := &boot.Indicator{OnChange: con.Loading}
	r, cleanup, err := newRunner(ctx, cfg, con, loader, logger)
	if err != nil {
		return err
	}
	defer cleanup()
	r.OnState = con.StateFunc

	run := make(chan bool, 1)
	trigger := func() {
		select {
		case run <- true:
		default:
		}
	}
	reload := func() {
		if err := r.Reload(ctx); err != nil {
			logger.Error("reload failed", "error", err)
			return
		}
		trigger()
	}
	kbd := r.Context.Keyboard
	con.SetKeys(func(ev keyboard.Event) { kbd.Dispatch(ev) })
	con.Handle("run", trigger)
	con.Handle("halt", func() { go r.Halt() })
	con.Handle("reload", func() { go reload() })
	con.Handle("keyup", func() {
		on := !kbd.KeyUpForwarded()
		kbd.SetForwardKeyUp(on)
		logger.Info("key-up forwarding", "enabled", on)
	})

	if dir, ok := r.Fetcher.(boot.Dir); ok {
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		defer watcher.Close()
		if err := watcher.Watch(string(dir)); err != nil {
			return err
		}
		go watchKernel(ctx, watcher, reload, logger)
	} else {
		logger.Warn("not watching a remote kernel", "base", cfg.base)
	}

	go func() {
		if err := r.Init(ctx, cfg.displayID); err != nil {
			logger.Error("boot failed", "error", err)
		} else {
			trigger()
		}
		for {
			select {
			case <-run:
			case <-ctx.Done():
				return
			}
			if err := r.Run(ctx); err != nil {
				logger.Error("kernel stopped", "error", err)
			}
		}
	}()

	err = con.Run()
	cancel()
	r.Halt()
	return err
}

// watchKernel calls reload shortly after the kernel file changes.
// Bursts of events within 100ms cause a single reload.
func watchKernel(ctx context.Context, w *fsnotify.Watcher, reload func(), logger hclog.Logger) {
	var fire <-chan time.Time
	for {
		select {
		case <-fire:
			fire = nil
			logger.Info("kernel changed, reloading")
			reload()
		case ev := <-w.Event:
			if filepath.Base(ev.Name) == boot.KernelName && !ev.IsAttrib() {
				fire = time.After(100 * time.Millisecond)
			}
		case err := <-w.Error:
			logger.Warn("watcher", "error", err)
		case <-ctx.Done():
			return
		}
	}
}
