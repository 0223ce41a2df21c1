// Package tray provides a system tray interface for the closestbody service.
package tray

import (
	"strconv"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/closestbody/internal/analysis"
)

// Tray represents the system tray application.
type Tray struct {
	onToggle   func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	subject    string
	mu         sync.RWMutex

	// Menu items stored for later updates
	menuToggle  *systray.MenuItem
	menuSubject *systray.MenuItem
}

// New creates a new Tray with the given initial enabled state.
func New(enabled bool) *Tray {
	return &Tray{
		enabled: enabled,
		subject: SubjectTitle(analysis.Result{}),
	}
}

// OnToggle sets the callback function to be called when the enabled state is toggled.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnSettings sets the callback function to be called when the settings menu item is clicked.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops a running tray.
func (t *Tray) Quit() {
	systray.Quit()
}

// onReady is called when the system tray is ready.
// It sets up the menu structure.
func (t *Tray) onReady() {
	systray.SetTitle("ClosestBody")
	systray.SetTooltip("ClosestBody engaged-person analysis")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(ToggleTitle(t.enabled), "Toggle analysis")
	systray.AddSeparator()

	t.menuSubject = systray.AddMenuItem(t.subject, "Currently engaged person")
	t.menuSubject.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit ClosestBody")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleToggle handles the toggle menu item click.
func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(ToggleTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleSettings handles the settings menu item click.
func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
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

	systray.Quit()
}

// SetResult updates the subject item from the latest analysis result. The
// menu is touched only when the title changes.
func (t *Tray) SetResult(res analysis.Result) {
	title := SubjectTitle(res)

	t.mu.Lock()
	defer t.mu.Unlock()
	if title == t.subject {
		return
	}
	t.subject = title
	if t.menuSubject != nil {
		t.menuSubject.SetTitle(title)
	}
}

// Subject returns the current subject title.
func (t *Tray) Subject() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.subject
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// ToggleTitle is the toggle item's title for the given state.
func ToggleTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

// SubjectTitle describes the engaged person of res.
func SubjectTitle(res analysis.Result) string {
	if !res.Engaged {
		return "Subject: none"
	}
	return "Subject: person " + strconv.Itoa(res.SelectedIndex) + " of " + strconv.Itoa(res.PersonCount)
}
