package window

import "context"

// Info describes the foreground window at sampling time
type Info struct {
	Title         string
	AppName       string
	VisibleCount  int    // Number of mapped top-level windows
	DisplayServer string // "x11" or "wayland"
}

// Sampler is the interface that all foreground-window implementations must satisfy
type Sampler interface {
	// Sample returns the foreground window and the visible window count
	Sample(ctx context.Context) (Info, error)

	// GetDisplayServer returns the display server type ("x11" or "wayland")
	GetDisplayServer() string

	// Close cleans up any resources used by the sampler
	Close() error
}

// Identity decides which foreground samples denote the same window. Two
// samples are the same window iff their keys are equal; the empty key means
// "unknown" and never counts as a switch.
type Identity interface {
	Key(info Info) string
}

// TitleIdentity identifies windows by title text alone.
//
// Known limitations: two distinct windows sharing a title are
// indistinguishable, and one window whose title changes (a browser switching
// tabs, an editor marking a buffer dirty) is reported as a switch. It is a
// heuristic, not a correctness guarantee.
type TitleIdentity struct{}

func (TitleIdentity) Key(info Info) string {
	return info.Title
}

// Unavailable is a Sampler for sessions without a supported display server.
// Every Sample fails so callers log and fall back to empty values.
type Unavailable struct {
	Reason error
}

func (u Unavailable) Sample(ctx context.Context) (Info, error) {
	return Info{}, u.Reason
}

func (u Unavailable) GetDisplayServer() string {
	return "unknown"
}

func (u Unavailable) Close() error {
	return nil
}
