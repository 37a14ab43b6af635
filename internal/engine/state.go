package engine

import (
	"strings"
	"time"

	"github.com/kicad-gtm/kicad-gtm/internal/kicad"
	"github.com/kicad-gtm/kicad-gtm/pkg/window"
)

// PollState is what one focus poll amounted to. It is derived fresh on every
// tick and never stored as a transition.
type PollState int

const (
	// NoSignal means the poll failed or the title is not a KiCad title.
	NoSignal PollState = iota
	// PlaceholderOrForeign means the title looked like KiCad but named no
	// project or an unknown editor.
	PlaceholderOrForeign
	// UnresolvedFile means the file is not in the index.
	UnresolvedFile
	// Resolved means the focused file has a full path.
	Resolved
)

func (s PollState) String() string {
	switch s {
	case PlaceholderOrForeign:
		return "placeholder_or_foreign"
	case UnresolvedFile:
		return "unresolved_file"
	case Resolved:
		return "resolved"
	default:
		return "no_signal"
	}
}

// PollResult is the outcome of evaluating one focused window.
type PollResult struct {
	State    PollState
	Identity kicad.Identity
	Filename string
	FullPath string
}

// Evaluate maps a focus poll to a PollResult. lookup resolves a bare
// filename to a full path.
func Evaluate(info *window.WindowInfo, pollErr error, lookup func(string) (string, bool)) PollResult {
	if pollErr != nil || info == nil || !strings.Contains(info.WindowTitle, kicad.TitleSeparator) {
		return PollResult{State: NoSignal}
	}

	id, ok := kicad.ParseTitle(info.WindowTitle)
	if !ok {
		return PollResult{State: PlaceholderOrForeign}
	}

	res := PollResult{State: UnresolvedFile, Identity: id, Filename: id.Filename()}
	if path, ok := lookup(res.Filename); ok {
		res.State = Resolved
		res.FullPath = path
	}
	return res
}

// State is the engine's memory between ticks.
type State struct {
	CurrentFilename       string
	CurrentFullPath       string
	LastRecordedTime      time.Time  // monotonic, zero until the first heartbeat
	LastRecordedWallclock *time.Time // local time of the last heartbeat
	LastRecordedSinkPath  string
}

// sinceLastRecord returns the time elapsed since the last heartbeat and
// whether there has been one at all.
func (s *State) sinceLastRecord(now time.Time) (time.Duration, bool) {
	if s.LastRecordedTime.IsZero() {
		return 0, false
	}
	return now.Sub(s.LastRecordedTime), true
}

func (s *State) stamp(now time.Time, path string) {
	wall := now.Round(0).Local()
	s.LastRecordedTime = now
	s.LastRecordedWallclock = &wall
	s.LastRecordedSinkPath = path
}

// Status is a copy of the engine state safe to read from other goroutines.
type Status struct {
	Loaded           bool       `json:"loaded"`
	ProjectsFolder   string     `json:"projects_folder"`
	PollState        string     `json:"poll_state"`
	WindowTitle      string     `json:"window_title"`
	AppName          string     `json:"app_name"`
	CurrentFilename  string     `json:"current_filename"`
	CurrentFullPath  string     `json:"current_full_path"`
	LastRecordedAt   *time.Time `json:"last_recorded_at,omitempty"`
	LastRecordedPath string     `json:"last_recorded_path"`
	IndexedFiles     int        `json:"indexed_files"`
}

// Text is the one-word status shown to the user.
func (s Status) Text() string {
	switch {
	case !s.Loaded:
		return "loading..."
	case s.ProjectsFolder == "":
		return "need settings!"
	default:
		return "OK"
	}
}

// LastActivity formats the last heartbeat time, or N/A.
func (s Status) LastActivity() string {
	if s.LastRecordedAt == nil {
		return "N/A"
	}
	return s.LastRecordedAt.Format("15:04:05")
}
