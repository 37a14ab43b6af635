// Package engine decides when the KiCad file in focus deserves a heartbeat.
//
// Two producers feed one decision function: the focus poll, which parses the
// active window title, and the file watcher, which reports saves and new
// backup archives. The engine is owned by a single goroutine; only Snapshot
// may be called concurrently.
package engine

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kicad-gtm/kicad-gtm/internal/index"
	"github.com/kicad-gtm/kicad-gtm/internal/metrics"
	"github.com/kicad-gtm/kicad-gtm/internal/sink"
	"github.com/kicad-gtm/kicad-gtm/internal/watch"
	"github.com/kicad-gtm/kicad-gtm/pkg/window"
)

// Settings stores the projects folder. An empty folder disables watching.
type Settings interface {
	ProjectsFolder() (string, error)
	SetProjectsFolder(folder string) error
}

// Differ reports whether filename changed between the two newest backups in
// folder.
type Differ interface {
	DiffLatest(filename, folder string) (bool, error)
}

// Watcher is the file watch subscription.
type Watcher interface {
	Start(root string) error
	Drain() ([]watch.Event, error)
	Close() error
}

// Options are the engine thresholds.
type Options struct {
	MinRecordInterval time.Duration // floor between two heartbeats
	HeartbeatInterval time.Duration // ceiling after which the same file is recorded again
	BackupSettleDelay time.Duration // wait before reading a fresh backup
	AppName           string        // our own window class, for the permission hint
}

// Deps are the collaborators the engine drives.
type Deps struct {
	Detector window.Detector
	Index    *index.Index
	Watcher  Watcher
	Settings Settings
	Differ   Differ
	Sink     sink.Sink
	Metrics  *metrics.Metrics
}

// Engine tracks the focused KiCad file and emits heartbeats.
type Engine struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger

	now   func() time.Time
	sleep func(time.Duration)

	state    State
	root     string
	started  bool
	lastPoll PollResult
	window   window.WindowInfo
	hinted   bool

	// set when the watcher could not start on root; the next reload retries
	watchFailed bool

	mu     sync.RWMutex
	status Status
}

// New creates an engine. Nothing is watched until the first Tick.
func New(deps Deps, opts Options, logger zerolog.Logger) *Engine {
	return &Engine{
		deps:   deps,
		opts:   opts,
		logger: logger.With().Str("component", "engine").Logger(),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// IsFatal reports whether err means the engine cannot continue.
func IsFatal(err error) bool {
	return errors.Is(err, sink.ErrNotFound) || errors.Is(err, watch.ErrClosed)
}

// Tick runs one iteration: start watching on the first call, evaluate the
// focused window, then drain file events. Errors satisfying IsFatal should
// stop the caller.
func (e *Engine) Tick() error {
	defer e.publish()

	if !e.started {
		e.started = true
		root, err := e.deps.Settings.ProjectsFolder()
		if err != nil {
			return errors.Wrap(err, "failed to read projects folder")
		}
		if err := e.watchRoot(root); err != nil {
			return err
		}
	}

	if err := e.poll(); err != nil {
		return err
	}
	return e.drain()
}

// SetProjectsFolder persists root and replaces the watch subscription.
func (e *Engine) SetProjectsFolder(root string) error {
	if err := e.deps.Settings.SetProjectsFolder(root); err != nil {
		return errors.Wrap(err, "failed to save projects folder")
	}
	defer e.publish()
	e.started = true
	return e.watchRoot(root)
}

// ReloadSettings re-reads the projects folder and rewatches when it changed
// behind our back, e.g. through the folder command.
func (e *Engine) ReloadSettings() error {
	if !e.started {
		return nil
	}
	root, err := e.deps.Settings.ProjectsFolder()
	if err != nil {
		return errors.Wrap(err, "failed to read projects folder")
	}
	if root == e.root && !e.watchFailed {
		return nil
	}
	defer e.publish()
	if root == e.root {
		e.logger.Info().Str("root", root).Msg("retrying projects folder")
	} else {
		e.logger.Info().Str("root", root).Msg("projects folder changed")
	}
	return e.watchRoot(root)
}

func (e *Engine) watchRoot(root string) error {
	e.root = root
	e.watchFailed = false
	defer func() { e.deps.Metrics.SetIndexedFiles(e.deps.Index.Len()) }()

	if root == "" {
		e.logger.Warn().Msg("no projects folder configured, file watching disabled")
		e.deps.Index.Reset()
		return e.deps.Watcher.Close()
	}
	if err := e.deps.Watcher.Start(root); err != nil {
		e.watchFailed = true
		e.deps.Index.Reset()
		return err
	}
	e.logger.Debug().Int("files", e.deps.Index.Len()).Msg("index rebuilt")
	return nil
}

func (e *Engine) poll() error {
	info, err := e.deps.Detector.GetFocusedWindow()
	if err != nil {
		e.logger.Debug().Err(err).Msg("no focused window")
	}
	e.checkPermission(info)

	res := Evaluate(info, err, e.deps.Index.Lookup)
	e.lastPoll = res
	e.window = window.WindowInfo{}
	if info != nil {
		e.window = *info
	}

	switch res.State {
	case Resolved:
		return e.decide(res.Filename, false, metrics.SourcePoll)
	case UnresolvedFile:
		e.logger.Debug().Str("filename", res.Filename).Msg("full path not found")
	default:
		if info != nil {
			e.logger.Trace().Str("title", info.WindowTitle).Stringer("state", res.State).Msg("not a KiCad editor")
		}
	}
	e.deps.Metrics.RecordSkip(res.State.String())
	return nil
}

// checkPermission logs once when the focused window is our own and has no
// title. That happens when the desktop refuses to share window titles.
func (e *Engine) checkPermission(info *window.WindowInfo) {
	if e.hinted || info == nil || info.WindowTitle != "" {
		return
	}
	own := info.PID != 0 && int(info.PID) == os.Getpid()
	if !own && (e.opts.AppName == "" || info.AppName != e.opts.AppName) {
		return
	}
	e.hinted = true
	e.logger.Error().Msg("could not get title of active window")
	e.logger.Error().Msg("grant screen recording or window title access to kicad-gtm in your desktop settings")
}

func (e *Engine) drain() error {
	events, err := e.deps.Watcher.Drain()
	var first error
	for _, ev := range events {
		if herr := e.handleEvent(ev); herr != nil {
			if IsFatal(herr) {
				return herr
			}
			if first == nil {
				first = herr
			}
		}
	}
	if err != nil {
		return err
	}
	return first
}

func (e *Engine) handleEvent(ev watch.Event) error {
	sig := watch.Classify(ev, e.state.CurrentFullPath)
	switch sig.Kind {
	case watch.SignalSave:
		e.logger.Info().Str("path", e.state.CurrentFullPath).Msg("file saved")
		return e.decide(e.state.CurrentFilename, true, metrics.SourceSave)

	case watch.SignalNewBackup:
		if e.state.CurrentFilename == "" {
			e.logger.Debug().Str("dir", sig.Dir).Msg("new backup but no file tracked yet")
			return nil
		}
		e.logger.Info().Str("dir", sig.Dir).Str("filename", e.state.CurrentFilename).Msg("new backup created")
		e.sleep(e.opts.BackupSettleDelay)

		changed, err := e.deps.Differ.DiffLatest(e.state.CurrentFilename, sig.Dir)
		if err != nil {
			return errors.Wrapf(err, "failed to compare backups of %s", e.state.CurrentFilename)
		}
		if !changed {
			e.logger.Info().Msg("no change detected in backup")
			return nil
		}
		e.logger.Info().Msg("change detected in backup")
		return e.decide(e.state.CurrentFilename, false, metrics.SourceBackup)
	}
	return nil
}

// Decide applies the heartbeat policy to a candidate file. explicitSave marks
// a direct save of the tracked file.
func (e *Engine) Decide(filename string, explicitSave bool) error {
	source := metrics.SourcePoll
	if explicitSave {
		source = metrics.SourceSave
	}
	defer e.publish()
	return e.decide(filename, explicitSave, source)
}

func (e *Engine) decide(filename string, explicitSave bool, source string) error {
	now := e.now()
	elapsed, recorded := e.state.sinceLastRecord(now)

	if recorded && elapsed < e.opts.MinRecordInterval {
		e.logger.Debug().Dur("elapsed", elapsed).Msg("not recording, too fast")
		e.deps.Metrics.RecordSkip("too_soon")
		return nil
	}

	due := !recorded || elapsed > e.opts.HeartbeatInterval
	if !explicitSave && !due && filename == e.state.CurrentFilename {
		e.deps.Metrics.RecordSkip("unchanged")
		return nil
	}

	path, ok := e.deps.Index.Lookup(filename)
	if !ok {
		e.logger.Error().Str("filename", filename).Msg("could not find full path for filename")
		e.deps.Metrics.RecordSkip("unresolved")
		return nil
	}

	if filename != e.state.CurrentFilename {
		e.logger.Info().Str("filename", filename).Msg("focused file changed")
	}
	e.state.CurrentFilename = filename
	e.state.CurrentFullPath = path

	return e.record(now, path, source)
}

func (e *Engine) record(now time.Time, path, source string) error {
	start := time.Now()
	outcome, err := e.deps.Sink.Record(path)
	e.deps.Metrics.ObserveSink(time.Since(start).Seconds())

	if errors.Is(err, sink.ErrNotFound) {
		e.deps.Metrics.RecordSinkFailure("not_found")
		return err
	}

	e.state.stamp(now, path)
	e.deps.Metrics.RecordHeartbeat(source)

	if err != nil {
		e.deps.Metrics.RecordSinkFailure("exec")
		return errors.Wrapf(err, "failed to record %s", path)
	}
	if !outcome.Success() {
		e.deps.Metrics.RecordSinkFailure("exit")
		e.logger.Warn().Int("status", outcome.ExitCode).Str("path", path).Msg("heartbeat sink exited with an error")
	}
	return nil
}

// State returns a copy of the engine state. Not safe for concurrent use.
func (e *Engine) State() State {
	return e.state
}

func (e *Engine) publish() {
	s := Status{
		Loaded:           e.started,
		ProjectsFolder:   e.root,
		PollState:        e.lastPoll.State.String(),
		WindowTitle:      e.window.WindowTitle,
		AppName:          e.window.AppName,
		CurrentFilename:  e.state.CurrentFilename,
		CurrentFullPath:  e.state.CurrentFullPath,
		LastRecordedPath: e.state.LastRecordedSinkPath,
		IndexedFiles:     e.deps.Index.Len(),
	}
	if e.state.LastRecordedWallclock != nil {
		t := *e.state.LastRecordedWallclock
		s.LastRecordedAt = &t
	}

	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

// Snapshot returns the status as of the last tick. Safe for concurrent use.
func (e *Engine) Snapshot() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Close stops watching.
func (e *Engine) Close() error {
	return e.deps.Watcher.Close()
}
