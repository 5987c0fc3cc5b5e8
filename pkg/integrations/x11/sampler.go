package x11

import (
	"context"
	"os"

	"daypulse/pkg/window"
)

// Sampler implements window.Sampler for X11 using EWMH root properties
type Sampler struct {
	c *client
}

// NewSampler connects to the display named by $DISPLAY
func NewSampler() (*Sampler, error) {
	c, err := dial(os.Getenv("DISPLAY"))
	if err != nil {
		return nil, err
	}
	return &Sampler{c: c}, nil
}

// Sample returns the active window title and the number of viewable
// top-level windows. A missing active window is not an error: the title is
// left empty so no window switch is counted.
func (s *Sampler) Sample(ctx context.Context) (window.Info, error) {
	if err := ctx.Err(); err != nil {
		return window.Info{}, err
	}

	info := window.Info{DisplayServer: "x11"}

	count, err := s.c.visibleWindows()
	if err != nil {
		return info, err
	}
	info.VisibleCount = count

	win, err := s.c.activeWindow()
	if err != nil {
		return info, nil
	}
	info.Title = s.c.windowName(win)
	info.AppName = s.c.windowClass(win)

	return info, nil
}

// GetDisplayServer returns "x11"
func (s *Sampler) GetDisplayServer() string {
	return "x11"
}

// Close releases the X connection
func (s *Sampler) Close() error {
	s.c.close()
	return nil
}
