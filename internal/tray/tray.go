// Package tray provides the system tray menu for fingervol.
package tray

import (
	"sync"

	"github.com/ayusman/fingervol/internal/app"
	"github.com/ayusman/fingervol/internal/render"
	"github.com/getlantern/systray"
	"gocv.io/x/gocv"
)

// Tray represents the system tray application. It observes the frame loop to
// show the current volume level.
type Tray struct {
	onToggle func(enabled bool)
	onMute   func()
	onQuit   func()
	enabled  bool
	level    string
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuToggle *systray.MenuItem
	menuVolume *systray.MenuItem
}

var _ app.Observer = (*Tray)(nil)

// New creates a new Tray with the given initial enabled state.
func New(enabled bool) *Tray {
	return &Tray{
		enabled: enabled,
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnMute adds a "Mute" item that calls fn. It must be set before Run.
func (t *Tray) OnMute(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMute = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until Quit is called and must run on the main thread.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

// Quit removes the tray icon and makes Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("fingervol")
	systray.SetTooltip("Finger count volume control")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleTitle(t.enabled), "Pause or resume volume control")
	systray.AddSeparator()

	t.menuVolume = systray.AddMenuItem(volumeTitle(t.level), "Last applied volume level")
	t.menuVolume.Disable()

	// A nil channel never fires, so without a mute callback the case is inert.
	var muteClicked chan struct{}
	if t.onMute != nil {
		muteClicked = systray.AddMenuItem("Mute", "Toggle output mute").ClickedCh
	}
	t.mu.Unlock()
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit fingervol")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.Toggle()
			case <-muteClicked:
				t.Mute()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func toggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Paused"
}

func volumeTitle(level string) string {
	if level == "" {
		return "Volume: none"
	}
	return "Volume: " + level
}

// Toggle flips the enabled state and reports it to the toggle callback.
func (t *Tray) Toggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleTitle(enabled))
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// Mute calls the mute callback, if any.
func (t *Tray) Mute() {
	t.mu.RLock()
	callback := t.onMute
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	t.Quit()
}

// ObserveFrame updates the volume display with the last applied level.
func (t *Tray) ObserveFrame(_ *gocv.Mat, reading *app.Reading) {
	if reading == nil || !reading.Applied {
		return
	}
	t.SetLevel(render.FormatLevel(reading.Level))
}

// SetLevel updates the volume display in the menu.
func (t *Tray) SetLevel(level string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.level == level {
		return
	}
	t.level = level
	if t.menuVolume != nil {
		t.menuVolume.SetTitle(volumeTitle(level))
	}
}

// Level returns the displayed volume level, or "" before the first volume set.
func (t *Tray) Level() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.level
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
