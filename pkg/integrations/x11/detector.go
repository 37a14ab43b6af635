package x11

import (
	"encoding/binary"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/jezek/xgb"
	"github.com/jezek/xgb/xproto"

	"github.com/kicad-gtm/kicad-gtm/pkg/window"
)

// Detector implements window.Detector for X11. It talks to the X server
// directly and falls back to xdotool when no connection can be made.
type Detector struct {
	client     *client
	hasXdotool bool
}

// NewDetector creates a new X11 detector
func NewDetector() *Detector {
	d := &Detector{}
	d.hasXdotool = commandExists("xdotool")
	if c, err := newClient(); err == nil {
		d.client = c
	}
	return d
}

// commandExists checks if a command is available in PATH
func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// IsAvailable checks if X11 detection is available
func (d *Detector) IsAvailable() bool {
	return d.client != nil || d.hasXdotool
}

// GetDisplayServer returns "x11"
func (d *Detector) GetDisplayServer() string {
	return "x11"
}

// GetFocusedWindow returns information about the currently focused window
func (d *Detector) GetFocusedWindow() (*window.WindowInfo, error) {
	if d.client != nil {
		if info, err := d.client.focusedWindow(); err == nil {
			return info, nil
		}
	}
	if d.hasXdotool {
		return getFocusedWindowXdotool()
	}
	return nil, fmt.Errorf("no X11 connection and xdotool is not installed")
}

// Close cleans up resources
func (d *Detector) Close() error {
	if d.client != nil {
		d.client.conn.Close()
		d.client = nil
	}
	return nil
}

type client struct {
	conn  *xgb.Conn
	root  xproto.Window
	atoms map[string]xproto.Atom
}

var atomNames = []string{
	"_NET_ACTIVE_WINDOW",
	"_NET_WM_NAME",
	"_NET_WM_PID",
	"WM_NAME",
	"WM_CLASS",
	"UTF8_STRING",
}

func newClient() (*client, error) {
	conn, err := xgb.NewConn()
	if err != nil {
		return nil, err
	}

	c := &client{
		conn:  conn,
		root:  xproto.Setup(conn).DefaultScreen(conn).Root,
		atoms: make(map[string]xproto.Atom, len(atomNames)),
	}

	for _, name := range atomNames {
		reply, err := xproto.InternAtom(conn, false, uint16(len(name)), name).Reply()
		if err != nil {
			conn.Close()
			return nil, err
		}
		c.atoms[name] = reply.Atom
	}

	return c, nil
}

func (c *client) property(win xproto.Window, atom, typ xproto.Atom, length uint32) ([]byte, error) {
	reply, err := xproto.GetProperty(c.conn, false, win, atom, typ, 0, length).Reply()
	if err != nil {
		return nil, err
	}
	return reply.Value, nil
}

func (c *client) activeFromProperty() xproto.Window {
	data, err := c.property(c.root, c.atoms["_NET_ACTIVE_WINDOW"], xproto.AtomWindow, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return xproto.Window(binary.LittleEndian.Uint32(data))
}

func (c *client) activeFromInputFocus() xproto.Window {
	reply, err := xproto.GetInputFocus(c.conn).Reply()
	if err != nil {
		return 0
	}
	return reply.Focus
}

func (c *client) topLevel(win xproto.Window) xproto.Window {
	for {
		reply, err := xproto.QueryTree(c.conn, win).Reply()
		if err != nil || reply.Parent == c.root || reply.Parent == 0 {
			return win
		}
		win = reply.Parent
	}
}

func (c *client) name(win xproto.Window, length uint32) string {
	data, err := c.property(win, c.atoms["_NET_WM_NAME"], c.atoms["UTF8_STRING"], length)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}
	data, err = c.property(win, c.atoms["WM_NAME"], xproto.AtomString, length)
	if err == nil && len(data) > 0 {
		return strings.TrimRight(string(data), "\x00")
	}
	return ""
}

// activeWindow retries briefly because focus can be in flux right after a
// window switch.
func (c *client) activeWindow() (xproto.Window, error) {
	for i := 0; i < 5; i++ {
		if win := c.activeFromProperty(); win != 0 && c.name(win, 1) != "" {
			return win, nil
		}
		if win := c.activeFromInputFocus(); win != 0 && win != c.root {
			if top := c.topLevel(win); top != 0 && c.name(top, 1) != "" {
				return top, nil
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	return 0, window.ErrNoWindow
}

func (c *client) class(win xproto.Window) string {
	data, err := c.property(win, c.atoms["WM_CLASS"], xproto.AtomString, 256)
	if err != nil || len(data) == 0 {
		return ""
	}
	// WM_CLASS is "instance\0class\0"
	parts := strings.Split(strings.TrimRight(string(data), "\x00"), "\x00")
	return parts[len(parts)-1]
}

func (c *client) pid(win xproto.Window) uint32 {
	data, err := c.property(win, c.atoms["_NET_WM_PID"], xproto.AtomCardinal, 1)
	if err != nil || len(data) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(data)
}

func (c *client) focusedWindow() (*window.WindowInfo, error) {
	win, err := c.activeWindow()
	if err != nil {
		return nil, err
	}

	pid := c.pid(win)
	return &window.WindowInfo{
		AppName:       c.class(win),
		WindowTitle:   c.name(win, 1024),
		ProcessName:   processName(strconv.FormatUint(uint64(pid), 10)),
		PID:           pid,
		DisplayServer: "x11",
	}, nil
}

// getFocusedWindowXdotool uses xdotool to get focused window info
func getFocusedWindowXdotool() (*window.WindowInfo, error) {
	windowIDOutput, err := exec.Command("xdotool", "getactivewindow").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get active x11 window ID: %w", err)
	}
	windowID := strings.TrimSpace(string(windowIDOutput))

	windowNameOutput, err := exec.Command("xdotool", "getwindowname", windowID).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to get window name: %w", err)
	}

	info := &window.WindowInfo{
		WindowTitle:   strings.TrimSpace(string(windowNameOutput)),
		DisplayServer: "x11",
	}

	if classOutput, err := exec.Command("xprop", "-id", windowID, "WM_CLASS").Output(); err == nil {
		info.AppName = parseWMClass(string(classOutput))
	}

	if pidOutput, err := exec.Command("xdotool", "getwindowpid", windowID).Output(); err == nil {
		pid := strings.TrimSpace(string(pidOutput))
		if n, err := strconv.ParseUint(pid, 10, 32); err == nil {
			info.PID = uint32(n)
		}
		info.ProcessName = processName(pid)
	}

	if info.AppName == "" {
		info.AppName = info.ProcessName
	}
	return info, nil
}

// parseWMClass extracts the class name from xprop's WM_CLASS output
func parseWMClass(output string) string {
	_, classInfo, ok := strings.Cut(output, "=")
	if !ok {
		return ""
	}
	classes := strings.Split(strings.TrimSpace(classInfo), ",")
	return strings.Trim(classes[len(classes)-1], "\" ")
}

func processName(pid string) string {
	if pid == "" || pid == "0" {
		return ""
	}
	output, err := exec.Command("ps", "-p", pid, "-o", "comm=").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}
