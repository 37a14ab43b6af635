// Package watch turns filesystem notifications under the projects folder into
// the two signals the engine cares about: a tracked file was saved, or KiCad
// wrote a new autosave backup.
package watch

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kicad-gtm/kicad-gtm/internal/index"
	"github.com/kicad-gtm/kicad-gtm/internal/kicad"
)

// ErrClosed is returned by Drain when the notification channel was closed
// underneath a running bridge.
var ErrClosed = errors.New("file watcher channel closed")

// Kind is the coarse type of a filesystem event.
type Kind int

const (
	KindOther Kind = iota
	KindCreate
	KindModify
)

// Event is one drained filesystem notification.
type Event struct {
	Kind  Kind
	Paths []string
}

// SignalKind is what an Event means to the engine.
type SignalKind int

const (
	SignalNone SignalKind = iota
	SignalSave
	SignalNewBackup
)

// Signal is a classified Event. Dir is set for SignalNewBackup.
type Signal struct {
	Kind SignalKind
	Dir  string
}

// Bridge owns the fsnotify subscription for one projects folder.
type Bridge struct {
	index   *index.Index
	watcher *fsnotify.Watcher
	root    string
	logger  zerolog.Logger
}

// New creates a bridge that rebuilds ix every time it starts watching.
func New(ix *index.Index, logger zerolog.Logger) *Bridge {
	return &Bridge{
		index:  ix,
		logger: logger.With().Str("component", "watch").Logger(),
	}
}

// Start subscribes to changes under root and rebuilds the index. A previous
// subscription is dropped first.
func (b *Bridge) Start(root string) error {
	if err := b.Close(); err != nil {
		b.logger.Warn().Err(err).Msg("failed to close previous watcher")
	}
	if root == "" {
		return nil
	}

	info, err := os.Stat(root)
	if err != nil {
		return errors.Wrapf(err, "failed to stat projects folder %s", root)
	}
	if !info.IsDir() {
		return errors.Errorf("projects folder %s is not a directory", root)
	}

	resolved, err := index.ResolveRoot(root)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create file watcher")
	}

	if err := addRecursive(watcher, resolved); err != nil {
		watcher.Close()
		return errors.Wrapf(err, "failed to watch %s", root)
	}

	b.watcher = watcher
	b.root = resolved
	b.logger.Info().Str("root", resolved).Msg("watching for changes")

	return b.index.Rebuild(resolved)
}

// addRecursive watches root and every directory below it. fsnotify only
// watches single directories.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
}

// Drain returns every event queued since the last call without blocking.
func (b *Bridge) Drain() ([]Event, error) {
	if b.watcher == nil {
		return nil, nil
	}

	var events []Event
	for {
		select {
		case ev, ok := <-b.watcher.Events:
			if !ok {
				return events, ErrClosed
			}
			if ev.Has(fsnotify.Create) {
				b.watchNewDir(ev.Name)
			}
			events = append(events, Event{Kind: kindOf(ev), Paths: []string{ev.Name}})

		case err, ok := <-b.watcher.Errors:
			if !ok {
				return events, ErrClosed
			}
			b.logger.Warn().Err(err).Msg("file watcher error")

		default:
			return events, nil
		}
	}
}

func (b *Bridge) watchNewDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}
	if err := addRecursive(b.watcher, path); err != nil {
		b.logger.Warn().Err(err).Str("path", path).Msg("failed to watch new directory")
	}
}

func kindOf(ev fsnotify.Event) Kind {
	switch {
	case ev.Has(fsnotify.Create):
		return KindCreate
	case ev.Has(fsnotify.Write):
		return KindModify
	default:
		return KindOther
	}
}

// Root returns the folder currently being watched, or "".
func (b *Bridge) Root() string {
	return b.root
}

// Close drops the subscription. It is safe to call on a stopped bridge.
func (b *Bridge) Close() error {
	if b.watcher == nil {
		return nil
	}
	err := b.watcher.Close()
	b.watcher = nil
	b.root = ""
	return err
}

// Classify decides what ev means given the full path of the file currently
// being tracked.
func Classify(ev Event, tracked string) Signal {
	if len(ev.Paths) == 0 || ev.Paths[0] == "" {
		return Signal{}
	}

	path := filepath.Clean(ev.Paths[0])
	parent := filepath.Dir(path)
	if parent == path || parent == "." {
		return Signal{}
	}

	if tracked != "" && path == filepath.Clean(tracked) {
		return Signal{Kind: SignalSave}
	}
	if kicad.IsBackupDir(parent) && ev.Kind == KindCreate {
		return Signal{Kind: SignalNewBackup, Dir: parent}
	}
	return Signal{}
}
