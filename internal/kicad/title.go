// Package kicad knows the naming conventions KiCad uses for its window
// titles, project files and backup folders.
package kicad

import "strings"

// EditorKind identifies which KiCad editor a window belongs to.
type EditorKind int

const (
	EditorUnknown EditorKind = iota
	EditorSchematic
	EditorLayout
)

const (
	// TitleSeparator splits "<project> — <editor label>" titles.
	TitleSeparator = " — "

	SchematicLabel = "Schematic Editor"
	LayoutLabel    = "PCB Editor"

	SchematicExt = ".kicad_sch"
	LayoutExt    = ".kicad_pcb"

	// BackupDirSuffix is appended to the project name for autosave backups.
	BackupDirSuffix = "-backups"

	unsavedMarker = "*"
)

var placeholderProjects = map[string]bool{
	"[no schematic loaded]": true,
	"[no pcb loaded]":       true,
}

// TrackedExtensions lists the file extensions the index cares about.
var TrackedExtensions = []string{SchematicExt, LayoutExt}

func (k EditorKind) String() string {
	switch k {
	case EditorSchematic:
		return "schematic"
	case EditorLayout:
		return "layout"
	default:
		return "unknown"
	}
}

// Identity is the project and editor pair read from a window title.
type Identity struct {
	Project string
	Editor  EditorKind
}

// Filename returns the bare file name the identity refers to, or "" when the
// editor is unknown.
func (id Identity) Filename() string {
	switch id.Editor {
	case EditorSchematic:
		return id.Project + SchematicExt
	case EditorLayout:
		return id.Project + LayoutExt
	default:
		return ""
	}
}

// ParseTitle extracts an Identity from a KiCad editor window title such as
// "*MyBoard [/Power] — Schematic Editor". The second return value is false
// for anything that is not a recognized KiCad editor title.
func ParseTitle(title string) (Identity, bool) {
	project, label, ok := strings.Cut(title, TitleSeparator)
	if !ok {
		return Identity{}, false
	}

	if placeholderProjects[project] {
		return Identity{}, false
	}

	project = strings.TrimPrefix(project, unsavedMarker)
	project = stripSheetSuffix(project)

	editor := editorFromLabel(label)
	if editor == EditorUnknown || project == "" {
		return Identity{Project: project, Editor: EditorUnknown}, false
	}

	return Identity{Project: project, Editor: editor}, true
}

// stripSheetSuffix removes a hierarchical sheet path like " [/SheetA]".
// A bracket at the very start belongs to the project name.
func stripSheetSuffix(project string) string {
	if i := strings.LastIndex(project, " ["); i >= 0 {
		return project[:i]
	}
	if i := strings.Index(project, "["); i > 0 {
		return project[:i]
	}
	return project
}

func editorFromLabel(label string) EditorKind {
	switch label {
	case SchematicLabel:
		return EditorSchematic
	case LayoutLabel:
		return EditorLayout
	default:
		return EditorUnknown
	}
}

// IsTracked reports whether name has one of the tracked KiCad extensions.
func IsTracked(name string) bool {
	for _, ext := range TrackedExtensions {
		if strings.HasSuffix(name, ext) && len(name) > len(ext) {
			return true
		}
	}
	return false
}

// IsBackupDir reports whether dir names a KiCad autosave backup folder.
func IsBackupDir(dir string) bool {
	return strings.HasSuffix(dir, BackupDirSuffix)
}
