package wayland

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/shirou/gopsutil/v4/process"

	"daypulse/pkg/window"
)

// ErrUnsupportedCompositor is returned when no compositor with a window IPC
// we understand is running.
var ErrUnsupportedCompositor = errors.New("unsupported wayland compositor")

type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return out, nil
}

// Sampler implements window.Sampler for wlroots compositors that expose the
// window tree over IPC (sway and Hyprland).
type Sampler struct {
	compositor string
	run        runner
}

// DetectCompositor names the running compositor from its IPC environment,
// or returns "" when neither sway nor Hyprland is reachable.
func DetectCompositor() string {
	if os.Getenv("SWAYSOCK") != "" && commandExists("swaymsg") {
		return "sway"
	}
	if os.Getenv("HYPRLAND_INSTANCE_SIGNATURE") != "" && commandExists("hyprctl") {
		return "hyprland"
	}
	return ""
}

func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// NewSampler returns a sampler for the running compositor
func NewSampler() (*Sampler, error) {
	compositor := DetectCompositor()
	if compositor == "" {
		return nil, ErrUnsupportedCompositor
	}
	return &Sampler{compositor: compositor, run: execRunner}, nil
}

func (s *Sampler) Sample(ctx context.Context) (window.Info, error) {
	var (
		info window.Info
		err  error
	)
	switch s.compositor {
	case "sway":
		info, err = s.sampleSway(ctx)
	case "hyprland":
		info, err = s.sampleHyprland(ctx)
	default:
		return window.Info{}, fmt.Errorf("%w: %q", ErrUnsupportedCompositor, s.compositor)
	}
	info.DisplayServer = "wayland"
	return info, err
}

// swayNode is the subset of a sway get_tree node we read
type swayNode struct {
	Type             string `json:"type"`
	Name             string `json:"name"`
	Focused          bool   `json:"focused"`
	Visible          bool   `json:"visible"`
	AppID            string `json:"app_id"`
	PID              int32  `json:"pid"`
	WindowProperties *struct {
		Class string `json:"class"`
	} `json:"window_properties"`
	Nodes         []swayNode `json:"nodes"`
	FloatingNodes []swayNode `json:"floating_nodes"`
}

func (n *swayNode) isView() bool {
	return (n.Type == "con" || n.Type == "floating_con") && n.PID > 0
}

func (s *Sampler) sampleSway(ctx context.Context) (window.Info, error) {
	out, err := s.run(ctx, "swaymsg", "-t", "get_tree", "-r")
	if err != nil {
		return window.Info{}, err
	}

	var root swayNode
	if err := json.Unmarshal(out, &root); err != nil {
		return window.Info{}, fmt.Errorf("parse sway tree: %w", err)
	}

	var info window.Info
	var focused *swayNode
	var walk func(n *swayNode)
	walk = func(n *swayNode) {
		if n.isView() {
			if n.Visible {
				info.VisibleCount++
			}
			if n.Focused {
				focused = n
			}
		}
		for i := range n.Nodes {
			walk(&n.Nodes[i])
		}
		for i := range n.FloatingNodes {
			walk(&n.FloatingNodes[i])
		}
	}
	walk(&root)

	if focused == nil {
		return info, nil
	}
	info.Title = focused.Name
	info.AppName = focused.AppID
	if info.AppName == "" && focused.WindowProperties != nil {
		info.AppName = focused.WindowProperties.Class
	}
	if info.AppName == "" {
		info.AppName = processName(ctx, focused.PID)
	}
	return info, nil
}

type hyprClient struct {
	Class     string `json:"class"`
	Title     string `json:"title"`
	PID       int32  `json:"pid"`
	Mapped    bool   `json:"mapped"`
	Hidden    bool   `json:"hidden"`
	Workspace struct {
		ID int `json:"id"`
	} `json:"workspace"`
}

type hyprMonitor struct {
	ActiveWorkspace struct {
		ID int `json:"id"`
	} `json:"activeWorkspace"`
}

func (s *Sampler) sampleHyprland(ctx context.Context) (window.Info, error) {
	var info window.Info

	var monitors []hyprMonitor
	if err := s.runJSON(ctx, &monitors, "hyprctl", "monitors", "-j"); err != nil {
		return info, err
	}
	active := make(map[int]bool, len(monitors))
	for _, m := range monitors {
		active[m.ActiveWorkspace.ID] = true
	}

	var clients []hyprClient
	if err := s.runJSON(ctx, &clients, "hyprctl", "clients", "-j"); err != nil {
		return info, err
	}
	for _, c := range clients {
		if c.Mapped && !c.Hidden && active[c.Workspace.ID] {
			info.VisibleCount++
		}
	}

	// An empty object means nothing has focus.
	var current hyprClient
	if err := s.runJSON(ctx, &current, "hyprctl", "activewindow", "-j"); err != nil {
		return info, err
	}
	info.Title = current.Title
	info.AppName = current.Class
	if info.AppName == "" && current.PID > 0 {
		info.AppName = processName(ctx, current.PID)
	}
	return info, nil
}

func (s *Sampler) runJSON(ctx context.Context, v any, name string, args ...string) error {
	out, err := s.run(ctx, name, args...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out, v); err != nil {
		return fmt.Errorf("parse %s %v: %w", name, args, err)
	}
	return nil
}

func processName(ctx context.Context, pid int32) string {
	if pid <= 0 {
		return ""
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return ""
	}
	name, err := p.NameWithContext(ctx)
	if err != nil {
		return ""
	}
	return name
}

// GetDisplayServer returns "wayland"
func (s *Sampler) GetDisplayServer() string {
	return "wayland"
}

func (s *Sampler) Close() error {
	return nil
}
