package display

import (
	"image"
	"image/color"
	"image/draw"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/exp/shiny/driver"
	"golang.org/x/exp/shiny/screen"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/lifecycle"
	"golang.org/x/mobile/event/paint"
	"golang.org/x/mobile/event/size"

	"github.com/nf/kboot/keyboard"
)

var (
	windowFace = basicfont.Face7x13
	windowFg   = color.RGBA{0xcc, 0xcc, 0xcc, 0xff}
	windowBg   = color.RGBA{0x10, 0x10, 0x10, 0xff}
	loadingFg  = color.RGBA{0xff, 0xcc, 0x00, 0xff}
)

// Window is a display drawn in a native window.
type Window struct {
	Title string
	// Logger receives errors reported by the window system.
	// Nil means discard.
	Logger hclog.Logger

	mu      sync.Mutex
	sb      *Scrollback
	size    image.Point // in pixels
	loading bool
	dirty   bool
}

// NewWindow returns a window display of w by h cells.
func NewWindow(title string, w, h, scrollback int) *Window {
	return &Window{
		Title: title,
		sb:    NewScrollback(scrollback),
		size:  cellsToPixels(w, h),
		dirty: true,
	}
}

func cellsToPixels(w, h int) image.Point {
	return image.Point{w * windowFace.Advance, h * windowFace.Height}
}

func (v *Window) Width() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size.X / windowFace.Advance
}

func (v *Window) Height() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.size.Y / windowFace.Height
}

func (v *Window) Clear() {
	v.mu.Lock()
	v.sb.Clear()
	v.dirty = true
	v.mu.Unlock()
}

func (v *Window) AddLine(line string) {
	v.mu.Lock()
	v.sb.Add(line)
	v.dirty = true
	v.mu.Unlock()
}

// Loading shows or hides a loading banner.
func (v *Window) Loading(visible bool) {
	v.mu.Lock()
	v.loading = visible
	v.dirty = true
	v.mu.Unlock()
}

// Run opens the window and drives it until exit is closed or the window
// is closed, passing key events to keys. It must be called from the main
// goroutine.
func (v *Window) Run(exit <-chan bool, keys func(keyboard.Event)) error {
	var runErr error
	driver.Main(func(s screen.Screen) {
		v.mu.Lock()
		sz := v.size
		v.mu.Unlock()
		w, err := s.NewWindow(&screen.NewWindowOptions{
			Title:  v.Title,
			Width:  sz.X,
			Height: sz.Y,
		})
		if err != nil {
			runErr = err
			return
		}
		defer w.Release()

		type update struct{}
		go func() {
			t := time.NewTicker(time.Second / 60)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					w.Send(update{})
				case <-exit:
					w.Send(lifecycle.Event{To: lifecycle.StageDead})
					return
				}
			}
		}()

		var buf screen.Buffer
		defer func() {
			if buf != nil {
				buf.Release()
			}
		}()
		for {
			switch e := w.NextEvent().(type) {
			case lifecycle.Event:
				if e.To == lifecycle.StageDead {
					return
				}
			case size.Event:
				if e.WidthPx+e.HeightPx == 0 {
					return
				}
				v.mu.Lock()
				v.size = e.Size()
				v.dirty = true
				v.mu.Unlock()
			case key.Event:
				if keys != nil {
					keys(keyboard.FromMobile(e))
				}
			case paint.Event:
				v.mu.Lock()
				v.dirty = true
				v.mu.Unlock()
			case update:
				v.mu.Lock()
				if !v.dirty || v.size.X == 0 || v.size.Y == 0 {
					v.mu.Unlock()
					break
				}
				if buf == nil || buf.Size() != v.size {
					if buf != nil {
						buf.Release()
					}
					if buf, err = s.NewBuffer(v.size); err != nil {
						v.mu.Unlock()
						runErr = err
						return
					}
				}
				v.render(buf.RGBA())
				v.dirty = false
				v.mu.Unlock()
				w.Upload(image.Point{}, buf, buf.Bounds())
				w.Publish()
			case error:
				v.logError(e)
			}
		}
	})
	return runErr
}

func (v *Window) logError(err error) {
	if v.Logger == nil {
		return
	}
	v.Logger.Error("window event", "error", err)
}

// render draws the newest lines onto m. v.mu must be held.
func (v *Window) render(m *image.RGBA) {
	rows := m.Bounds().Dy() / windowFace.Height
	fg := windowFg
	if v.loading {
		fg = loadingFg
	}
	renderLines(m, v.sb.Tail(rows), fg)
	if v.loading && v.sb.Len() == 0 {
		renderLines(m, []string{"Loading..."}, loadingFg)
	}
}

func renderLines(m *image.RGBA, lines []string, fg color.Color) {
	draw.Draw(m, m.Bounds(), image.NewUniform(windowBg), image.Point{}, draw.Src)
	d := font.Drawer{
		Dst:  m,
		Src:  image.NewUniform(fg),
		Face: windowFace,
	}
	for i, line := range lines {
		d.Dot = fixed.P(m.Bounds().Min.X, m.Bounds().Min.Y+i*windowFace.Height+windowFace.Ascent)
		d.DrawString(line)
	}
}
