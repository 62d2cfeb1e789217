package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/nf/kboot/boot"
	"github.com/nf/kboot/keyboard"
)

// console is the developer mode UI: a display pane the kernel draws on,
// a log pane, a state bar and a command line. Tab moves the focus
// between the display pane and the command line; keys typed while the
// display pane has focus go to the kernel.
type console struct {
	screen *tview.TextView
	log    *tview.TextView
	state  *tview.TextView
	input  *tview.InputField
	cols   *tview.Flex
	rows   *tview.Flex
	app    *tview.Application

	mu       sync.Mutex
	w, h     int
	keys     func(keyboard.Event)
	commands map[string]func()
}

func newConsole() *console {
	c := &console{
		screen: tview.NewTextView().
			SetMaxLines(1000).
			SetScrollable(true),
		log: tview.NewTextView().
			SetMaxLines(1000),
		state: tview.NewTextView().
			SetWrap(false),
		input: tview.NewInputField().
			SetLabel("> "),
		cols: tview.NewFlex(),
		rows: tview.NewFlex().
			SetDirection(tview.FlexRow),
		app: tview.NewApplication(),

		w:        80,
		h:        25,
		commands: make(map[string]func()),
	}
	c.screen.SetBorder(true).SetTitle(" " + screenID + " ")
	c.screen.SetChangedFunc(func() { c.app.Draw() })
	c.log.SetChangedFunc(func() { c.app.Draw() })
	c.state.SetBackgroundColor(tcell.ColorDarkGrey)
	c.cols.
		AddItem(c.screen, 0, 2, false).
		AddItem(c.log, 0, 1, false)
	c.rows.
		AddItem(c.cols, 0, 1, false).
		AddItem(c.state, 1, 0, false).
		AddItem(c.input, 1, 0, true)
	c.app.SetRoot(c.rows, true)

	c.app.SetAfterDrawFunc(func(tcell.Screen) {
		_, _, w, h := c.screen.GetInnerRect()
		c.mu.Lock()
		c.w, c.h = w, h
		c.mu.Unlock()
	})
	c.app.SetInputCapture(c.capture)

	c.input.SetAutocompleteFunc(func(t string) (entries []string) {
		if t == "" {
			return nil
		}
		for _, name := range c.commandNames() {
			if strings.HasPrefix(name, t) {
				entries = append(entries, name)
			}
		}
		return
	})
	c.input.SetAutocompletedFunc(func(t string, index, src int) bool {
		if src != tview.AutocompletedNavigate {
			c.input.SetText(t)
		}
		return src == tview.AutocompletedEnter || src == tview.AutocompletedClick
	})
	c.input.SetDoneFunc(func(key tcell.Key) {
		if key != tcell.KeyEnter {
			return
		}
		cmd := strings.TrimSpace(c.input.GetText())
		if cmd == "" {
			return
		}
		c.input.SetText("")
		if cmd == "exit" {
			c.app.Stop()
			return
		}
		c.mu.Lock()
		f, ok := c.commands[cmd]
		c.mu.Unlock()
		if !ok {
			fmt.Fprintf(c.log, "unknown command %q (have %s)\n",
				cmd, strings.Join(c.commandNames(), ", "))
			return
		}
		f()
	})
	return c
}

// Handle registers f as the command name.
func (c *console) Handle(name string, f func()) {
	c.mu.Lock()
	c.commands[name] = f
	c.mu.Unlock()
}

func (c *console) commandNames() []string {
	c.mu.Lock()
	names := []string{"exit"}
	for name := range c.commands {
		names = append(names, name)
	}
	c.mu.Unlock()
	sort.Strings(names)
	return names
}

// SetKeys sets the function that receives keys typed on the display pane.
func (c *console) SetKeys(keys func(keyboard.Event)) {
	c.mu.Lock()
	c.keys = keys
	c.mu.Unlock()
}

func (c *console) capture(ev *tcell.EventKey) *tcell.EventKey {
	switch ev.Key() {
	case tcell.KeyTab:
		if c.app.GetFocus() == c.screen {
			c.app.SetFocus(c.input)
		} else {
			c.app.SetFocus(c.screen)
		}
		return nil
	case tcell.KeyCtrlQ:
		c.app.Stop()
		return nil
	}
	if c.app.GetFocus() != c.screen {
		return ev
	}
	c.mu.Lock()
	keys := c.keys
	c.mu.Unlock()
	if keys != nil {
		keys(keyboard.FromTcell(ev))
	}
	return nil
}

func (c *console) Width() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.w
}

func (c *console) Height() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.h
}

func (c *console) Clear() {
	c.screen.Clear()
	c.app.Draw()
}

func (c *console) AddLine(line string) {
	fmt.Fprintln(c.screen, line)
}

func (c *console) Loading(visible bool) {
	c.app.QueueUpdateDraw(func() {
		if visible {
			c.screen.SetTitle(" " + screenID + " (loading) ")
		} else {
			c.screen.SetTitle(" " + screenID + " ")
		}
	})
}

func (c *console) Run() error { return c.app.Run() }

// StateFunc shows s in the state bar.
func (c *console) StateFunc(s boot.State) {
	c.app.QueueUpdateDraw(func() {
		switch s {
		case boot.Idle, boot.Fetching, boot.Compiling:
			c.state.SetTextColor(tcell.ColorBlack)
			c.state.SetBackgroundColor(tcell.ColorDarkGrey)
		case boot.Instantiated:
			c.state.SetTextColor(tcell.ColorWhite)
			c.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case boot.Running:
			c.state.SetTextColor(tcell.ColorYellow)
			c.state.SetBackgroundColor(tcell.ColorDarkBlue)
		case boot.Halted:
			c.state.SetTextColor(tcell.ColorWhite)
			c.state.SetBackgroundColor(tcell.ColorDarkRed)
		}
		c.state.SetText(fmt.Sprintf("[%s] %s", s, boot.KernelName))
	})
}
