package wayland

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/kicad-gtm/kicad-gtm/pkg/window"
)

// Detector implements window.Detector for Wayland compositors that expose
// the focused window over IPC.
type Detector struct {
	compositor string
	hasSwaymsg bool
	hasHyprctl bool
	hasGdbus   bool
}

// NewDetector creates a new Wayland detector
func NewDetector() *Detector {
	d := &Detector{
		hasSwaymsg: commandExists("swaymsg"),
		hasHyprctl: commandExists("hyprctl"),
		hasGdbus:   commandExists("gdbus"),
	}
	d.compositor = detectCompositor()
	return d
}

func commandExists(cmd string) bool {
	_, err := exec.LookPath(cmd)
	return err == nil
}

// detectCompositor looks for a running compositor process
func detectCompositor() string {
	compositors := []struct{ process, name string }{
		{"sway", "sway"},
		{"Hyprland", "hyprland"},
		{"gnome-shell", "gnome"},
	}
	for _, c := range compositors {
		if err := exec.Command("pgrep", "-x", c.process).Run(); err == nil {
			return c.name
		}
	}
	return "unknown"
}

// IsAvailable checks if Wayland detection is available
func (d *Detector) IsAvailable() bool {
	switch d.compositor {
	case "sway":
		return d.hasSwaymsg
	case "hyprland":
		return d.hasHyprctl
	case "gnome":
		return d.hasGdbus
	default:
		return false
	}
}

// GetDisplayServer returns "wayland"
func (d *Detector) GetDisplayServer() string {
	return "wayland"
}

// GetFocusedWindow returns information about the currently focused window
func (d *Detector) GetFocusedWindow() (*window.WindowInfo, error) {
	var (
		info *window.WindowInfo
		err  error
	)
	switch d.compositor {
	case "sway":
		info, err = d.focusedSway()
	case "hyprland":
		info, err = d.focusedHyprland()
	case "gnome":
		info, err = d.focusedGnome()
	default:
		return nil, fmt.Errorf("unsupported wayland compositor: %s", d.compositor)
	}
	if err != nil {
		return nil, err
	}
	info.DisplayServer = "wayland"
	return info, nil
}

// swayNode is the subset of a `swaymsg -t get_tree` node we read
type swayNode struct {
	Name             string `json:"name"`
	AppID            string `json:"app_id"`
	PID              uint32 `json:"pid"`
	Focused          bool   `json:"focused"`
	WindowProperties *struct {
		Class string `json:"class"`
	} `json:"window_properties"`
	Nodes         []swayNode `json:"nodes"`
	FloatingNodes []swayNode `json:"floating_nodes"`
}

func (d *Detector) focusedSway() (*window.WindowInfo, error) {
	output, err := exec.Command("swaymsg", "-t", "get_tree").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to execute swaymsg: %w", err)
	}
	return parseSwayTree(output)
}

func parseSwayTree(data []byte) (*window.WindowInfo, error) {
	var root swayNode
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse sway tree: %w", err)
	}

	node := findFocused(&root)
	if node == nil {
		return nil, window.ErrNoWindow
	}

	appName := node.AppID
	if appName == "" && node.WindowProperties != nil {
		appName = node.WindowProperties.Class
	}
	return &window.WindowInfo{
		AppName:     appName,
		WindowTitle: node.Name,
		ProcessName: processName(node.PID),
		PID:         node.PID,
	}, nil
}

func findFocused(n *swayNode) *swayNode {
	if n.Focused {
		return n
	}
	for i := range n.Nodes {
		if f := findFocused(&n.Nodes[i]); f != nil {
			return f
		}
	}
	for i := range n.FloatingNodes {
		if f := findFocused(&n.FloatingNodes[i]); f != nil {
			return f
		}
	}
	return nil
}

type hyprWindow struct {
	Class string `json:"class"`
	Title string `json:"title"`
	PID   int64  `json:"pid"`
}

func (d *Detector) focusedHyprland() (*window.WindowInfo, error) {
	output, err := exec.Command("hyprctl", "activewindow", "-j").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to execute hyprctl: %w", err)
	}
	return parseHyprlandWindow(output)
}

func parseHyprlandWindow(data []byte) (*window.WindowInfo, error) {
	var w hyprWindow
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse hyprctl output: %w", err)
	}
	if w.Title == "" && w.Class == "" {
		return nil, window.ErrNoWindow
	}
	var pid uint32
	if w.PID > 0 {
		pid = uint32(w.PID)
	}
	return &window.WindowInfo{
		AppName:     w.Class,
		WindowTitle: w.Title,
		ProcessName: processName(pid),
		PID:         pid,
	}, nil
}

const gnomeScript = `
try {
	let win = global.get_window_actors().find(w => w.meta_window && w.meta_window.has_focus());
	win ? (win.meta_window.get_wm_class() || '') + '|||' + (win.meta_window.get_title() || '') : '';
} catch (e) {
	'';
}`

func (d *Detector) focusedGnome() (*window.WindowInfo, error) {
	output, err := exec.Command("gdbus", "call", "--session",
		"--dest", "org.gnome.Shell",
		"--object-path", "/org/gnome/Shell",
		"--method", "org.gnome.Shell.Eval",
		gnomeScript).Output()
	if err != nil {
		return nil, fmt.Errorf("failed to query GNOME Shell: %w", err)
	}
	return parseGnomeEval(string(output))
}

// parseGnomeEval parses "(true, 'class|||title')"
func parseGnomeEval(output string) (*window.WindowInfo, error) {
	result := strings.TrimSpace(output)
	if !strings.HasPrefix(result, "(true,") {
		return nil, fmt.Errorf("GNOME Shell.Eval is disabled")
	}
	result = strings.TrimPrefix(result, "(true,")
	result = strings.TrimSuffix(result, ")")
	result = strings.Trim(strings.TrimSpace(result), "'\"")

	class, title, ok := strings.Cut(result, "|||")
	if !ok || (class == "" && title == "") {
		return nil, window.ErrNoWindow
	}
	return &window.WindowInfo{
		AppName:     class,
		WindowTitle: title,
		ProcessName: class,
	}, nil
}

func processName(pid uint32) string {
	if pid == 0 {
		return ""
	}
	output, err := exec.Command("ps", "-p", strconv.FormatUint(uint64(pid), 10), "-o", "comm=").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(output))
}

// Close cleans up resources
func (d *Detector) Close() error {
	return nil
}
