package detector

import (
	"os"

	"github.com/pkg/errors"

	"github.com/kicad-gtm/kicad-gtm/pkg/integrations/wayland"
	"github.com/kicad-gtm/kicad-gtm/pkg/integrations/x11"
	"github.com/kicad-gtm/kicad-gtm/pkg/window"
)

// New returns the best available window detector for the current session.
// On Wayland the compositor IPC is preferred; KiCad often runs under
// XWayland, so X11 is tried next.
func New() (window.Detector, error) {
	if DetectDisplayServer() == "wayland" {
		det := wayland.NewDetector()
		if det.IsAvailable() {
			return det, nil
		}
	}

	det := x11.NewDetector()
	if det.IsAvailable() {
		return det, nil
	}
	det.Close()

	return nil, errors.Errorf("no window detector available for display server %q", DetectDisplayServer())
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
