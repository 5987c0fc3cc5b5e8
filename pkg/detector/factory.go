package detector

import (
	"errors"
	"fmt"
	"os"
	"time"

	"daypulse/pkg/input"
	"daypulse/pkg/integrations/wayland"
	"daypulse/pkg/integrations/x11"
	"daypulse/pkg/window"
)

var (
	// ErrNoDisplay is returned when neither an X11 nor an XWayland display is reachable
	ErrNoDisplay = errors.New("no X11 display available")

	// ErrNoInput is returned alongside a working Environment when windows can
	// be sampled but input cannot, so every minute is recorded as idle.
	ErrNoInput = errors.New("input capture unavailable on native wayland")
)

// Environment bundles the desktop collaborators the tracker samples
type Environment struct {
	DisplayServer string
	Window        window.Sampler
	Input         input.Source
}

// Close releases both collaborators
func (e *Environment) Close() error {
	return errors.Join(e.Window.Close(), e.Input.Close())
}

// New builds the collaborators for the current session. X11 and XWayland get
// full capture; sway and Hyprland without XWayland get window sampling only.
// Otherwise it still returns a usable Environment that samples nothing, along
// with the reason, so the tracker can run and record idle minutes.
func New(pollInterval time.Duration) (*Environment, error) {
	server := DetectDisplayServer()

	// Wayland sessions are reached through XWayland when DISPLAY is set.
	if os.Getenv("DISPLAY") == "" {
		if sampler, err := wayland.NewSampler(); err == nil {
			return &Environment{
				DisplayServer: server,
				Window:        sampler,
				Input:         input.Noop{},
			}, ErrNoInput
		}
		return unavailable(server, ErrNoDisplay), ErrNoDisplay
	}

	sampler, err := x11.NewSampler()
	if err != nil {
		err = fmt.Errorf("window sampler: %w", err)
		return unavailable(server, err), err
	}

	src, err := x11.NewInputSource(pollInterval)
	if err != nil {
		_ = sampler.Close()
		err = fmt.Errorf("input source: %w", err)
		return unavailable(server, err), err
	}

	return &Environment{
		DisplayServer: server,
		Window:        sampler,
		Input:         src,
	}, nil
}

func unavailable(server string, reason error) *Environment {
	return &Environment{
		DisplayServer: server,
		Window:        window.Unavailable{Reason: reason},
		Input:         input.Noop{},
	}
}

func DetectDisplayServer() string {
	sessionType := os.Getenv("XDG_SESSION_TYPE")
	waylandDisplay := os.Getenv("WAYLAND_DISPLAY")
	x11Display := os.Getenv("DISPLAY")

	if sessionType == "wayland" || waylandDisplay != "" {
		return "wayland"
	}

	if sessionType == "x11" || x11Display != "" {
		return "x11"
	}

	return "unknown"
}
