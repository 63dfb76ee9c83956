package render

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

// DefaultWindowTitle is the title of the preview window.
const DefaultWindowTitle = "frame"

// ErrWindowClosed is returned by Show once the user has closed the window.
var ErrWindowClosed = errors.New("window closed")

// Display presents annotated frames.
type Display interface {
	Show(frame *gocv.Mat) error
	Close() error
}

// Window shows frames in a native OpenCV window.
type Window struct {
	window *gocv.Window
	shown  bool
}

// NewWindow opens a window with the given title.
func NewWindow(title string) *Window {
	if title == "" {
		title = DefaultWindowTitle
	}
	return &Window{window: gocv.NewWindow(title)}
}

// Show displays frame and pumps the window's event loop for 1ms.
func (w *Window) Show(frame *gocv.Mat) error {
	// Once shown, a window that is no longer visible was closed by the user.
	if w.shown && w.window.GetWindowProperty(gocv.WindowPropertyVisible) < 1 {
		return ErrWindowClosed
	}
	w.window.IMShow(*frame)
	w.window.WaitKey(1)
	w.shown = true
	return nil
}

func (w *Window) Close() error {
	return w.window.Close()
}

// NopDisplay discards frames. It is used for headless runs.
type NopDisplay struct{}

func (NopDisplay) Show(*gocv.Mat) error { return nil }
func (NopDisplay) Close() error         { return nil }

// MockDisplay counts frames and can simulate a closed window.
type MockDisplay struct {
	mu      sync.Mutex
	shown   int
	closeAt int
	closed  bool
}

// NewMockDisplay returns a MockDisplay. When closeAt is positive, the
// closeAt-th Show call and every later call return ErrWindowClosed.
func NewMockDisplay(closeAt int) *MockDisplay {
	return &MockDisplay{closeAt: closeAt}
}

func (d *MockDisplay) Show(*gocv.Mat) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closeAt > 0 && d.shown+1 >= d.closeAt {
		return ErrWindowClosed
	}
	d.shown++
	return nil
}

// Shown returns the number of frames displayed.
func (d *MockDisplay) Shown() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown
}

func (d *MockDisplay) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// Closed reports whether Close was called.
func (d *MockDisplay) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
