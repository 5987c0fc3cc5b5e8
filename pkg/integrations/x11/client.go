package x11

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"
)

var atomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_CLIENT_LIST",
	"_NET_WM_NAME",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

// client wraps one X connection. xgb connections are safe for concurrent
// requests, but the atom cache is guarded anyway so Close can race a sample.
type client struct {
	mu    sync.Mutex
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
}

func dial(display string) (*client, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	setup := xproto.Setup(conn)
	c := &client{
		conn:  conn,
		root:  setup.DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom, len(atomNames)),
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to intern atom %s: %w", name, err)
		}
		c.atoms[name] = reply.Atom
	}

	return c, nil
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

func (c *client) connection() (*xgb.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, fmt.Errorf("x11 connection closed")
	}
	return c.conn, nil
}

func (c *client) getProperty(win xproto.Window, atom, atomType xproto.Atom, length uint32) ([]byte, error) {
	conn, err := c.connection()
	if err != nil {
		return nil, err
	}
	reply, err := xproto.GetProperty(conn, false, win, atom, atomType, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (c *client) activeWindow() (xproto.Window, error) {
	data, err := c.getProperty(c.root, c.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err == nil && len(data) >= 4 {
		if win := xproto.Window(binary.LittleEndian.Uint32(data)); win != 0 {
			return win, nil
		}
	}

	conn, err := c.connection()
	if err != nil {
		return 0, err
	}
	focus, err := xproto.GetInputFocus(conn).Reply()
	if err != nil {
		return 0, fmt.Errorf("failed to get input focus: %w", err)
	}
	if focus.Focus == 0 || focus.Focus == c.root {
		return 0, fmt.Errorf("no active window")
	}
	return c.topLevelParent(focus.Focus), nil
}

func (c *client) topLevelParent(win xproto.Window) xproto.Window {
	conn, err := c.connection()
	if err != nil {
		return win
	}
	for {
		reply, err := xproto.QueryTree(conn, win).Reply()
		if err != nil || reply.Parent == c.root || reply.Parent == 0 {
			return win
		}
		win = reply.Parent
	}
}

func (c *client) windowName(win xproto.Window) string {
	data, err := c.getProperty(win, c.atoms["_NET_WM_NAME"], c.atoms["UTF8_STRING"], 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	data, err = c.getProperty(win, c.atoms["WM_NAME"], xproto.AtomString, 256)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}

	return ""
}

func (c *client) windowClass(win xproto.Window) string {
	data, err := c.getProperty(win, c.atoms["WM_CLASS"], xproto.AtomString, 256)
	if err != nil || len(data) == 0 {
		return ""
	}
	return parseWMClass(data)
}

// parseWMClass returns the class half of a WM_CLASS value, which holds two
// NUL-terminated strings: instance then class.
func parseWMClass(data []byte) string {
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return parts[0]
	default:
		return parts[1]
	}
}

// visibleWindows counts managed top-level windows that are currently mapped.
func (c *client) visibleWindows() (int, error) {
	data, err := c.getProperty(c.root, c.atoms["_NET_CLIENT_LIST"], xproto.AtomWindow, 4096)
	if err != nil {
		return 0, fmt.Errorf("failed to read client list: %w", err)
	}
	conn, err := c.connection()
	if err != nil {
		return 0, err
	}

	count := 0
	for _, win := range decodeWindows(data) {
		attrs, err := xproto.GetWindowAttributes(conn, win).Reply()
		if err != nil {
			continue
		}
		if attrs.MapState == xproto.MapStateViewable {
			count++
		}
	}
	return count, nil
}

func decodeWindows(data []byte) []xproto.Window {
	wins := make([]xproto.Window, 0, len(data)/4)
	for i := 0; i+4 <= len(data); i += 4 {
		wins = append(wins, xproto.Window(binary.LittleEndian.Uint32(data[i:])))
	}
	return wins
}

type pointerState struct {
	x, y    int
	buttons uint16
}

func (c *client) queryPointer() (pointerState, error) {
	conn, err := c.connection()
	if err != nil {
		return pointerState{}, err
	}
	reply, err := xproto.QueryPointer(conn, c.root).Reply()
	if err != nil {
		return pointerState{}, fmt.Errorf("failed to query pointer: %w", err)
	}
	return pointerState{
		x:       int(reply.RootX),
		y:       int(reply.RootY),
		buttons: reply.Mask & buttonMask,
	}, nil
}

func (c *client) queryKeymap() ([32]byte, error) {
	var keys [32]byte
	conn, err := c.connection()
	if err != nil {
		return keys, err
	}
	reply, err := xproto.QueryKeymap(conn).Reply()
	if err != nil {
		return keys, fmt.Errorf("failed to query keymap: %w", err)
	}
	copy(keys[:], reply.Keys)
	return keys, nil
}
