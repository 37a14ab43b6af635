// Package sink hands recorded heartbeats to the external time tracker.
package sink

import (
	"bytes"
	"io/fs"
	"os/exec"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// DefaultCommand is the gtm executable looked up on PATH.
const DefaultCommand = "gtm"

// ErrNotFound means the tracker executable is missing. No further heartbeat
// can be recorded, so callers treat it as fatal.
var ErrNotFound = errors.New("heartbeat sink executable not found")

// Outcome describes one finished sink invocation.
type Outcome struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Success reports whether the sink exited cleanly.
func (o Outcome) Success() bool {
	return o.ExitCode == 0
}

// Sink records one heartbeat for an absolute file path.
type Sink interface {
	Record(path string) (Outcome, error)
}

// Command runs "<command> record <path>" and waits for it.
type Command struct {
	command string
	logger  zerolog.Logger
}

// NewCommand creates a Command sink. An empty command means DefaultCommand.
func NewCommand(command string, logger zerolog.Logger) *Command {
	if command == "" {
		command = DefaultCommand
	}
	return &Command{
		command: command,
		logger:  logger.With().Str("component", "sink").Logger(),
	}
}

// Record runs the tracker synchronously. A non-zero exit is returned in the
// Outcome, not as an error; only a failure to run the command at all is an
// error, wrapping ErrNotFound when the executable is missing.
func (c *Command) Record(path string) (Outcome, error) {
	c.logger.Info().Str("path", path).Msgf("executing %s record %q", c.command, path)

	cmd := exec.Command(c.command, "record", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	outcome := Outcome{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		outcome.ExitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		c.logger.Error().Err(err).Msgf("'%s' command not found, make sure it is installed and on your PATH", c.command)
		return outcome, errors.Wrap(ErrNotFound, err.Error())
	default:
		return outcome, errors.Wrapf(err, "failed to execute %s record", c.command)
	}

	c.logger.Debug().
		Int("status", outcome.ExitCode).
		Str("stdout", outcome.Stdout).
		Str("stderr", outcome.Stderr).
		Msg("record finished")
	if !outcome.Success() {
		c.logger.Error().Int("status", outcome.ExitCode).Str("stderr", outcome.Stderr).Msgf("%s record failed", c.command)
	}
	return outcome, nil
}

// Disabled skips the tracker entirely but still counts as a recorded
// heartbeat, which keeps the rate limit honest while testing.
type Disabled struct {
	logger zerolog.Logger
}

// NewDisabled creates a sink that records nothing.
func NewDisabled(logger zerolog.Logger) *Disabled {
	return &Disabled{logger: logger.With().Str("component", "sink").Logger()}
}

// Record logs the path and reports success.
func (d *Disabled) Record(path string) (Outcome, error) {
	d.logger.Warn().Str("path", path).Msg("recording is disabled, updating last recorded time anyway")
	return Outcome{}, nil
}
