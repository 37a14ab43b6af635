package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	Database DatabaseConfig

	// Tracker configuration
	Tracker TrackerConfig

	// Heartbeat sink configuration
	Sink SinkConfig

	// Daemon configuration
	Daemon DaemonConfig

	// Logging configuration
	Log LogConfig

	// Web server configuration
	Web WebConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Path string // Path to SQLite database file
}

// TrackerConfig holds tracking behavior configuration
type TrackerConfig struct {
	PollInterval      time.Duration // How often to check the focused window
	MinPollInterval   time.Duration // Minimum allowed poll interval
	MaxPollInterval   time.Duration // Maximum allowed poll interval
	MinRecordInterval time.Duration // No two heartbeats closer than this
	HeartbeatInterval time.Duration // Re-record the same file after this long
	BackupSettleDelay time.Duration // Wait for KiCad to finish writing a backup
}

// SinkConfig holds heartbeat sink configuration
type SinkConfig struct {
	Command          string // Time tracker executable, invoked as "<cmd> record <path>"
	DisableRecording bool   // Skip the tracker but still rate limit
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string // Path to PID file for daemon management
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string // zerolog level name
	File  string // Log file used by the background daemon
}

// WebConfig holds web server configuration
type WebConfig struct {
	Host string // Host to bind web server to
	Port int    // Port for web server
}

// Default returns a Config with sensible default values
func Default() *Config {
	uid := os.Getuid()
	return &Config{
		Database: DatabaseConfig{
			Path: "", // Empty means use default ~/.config/kicad-gtm/kicad-gtm.db
		},
		Tracker: TrackerConfig{
			PollInterval:      500 * time.Millisecond,
			MinPollInterval:   50 * time.Millisecond,
			MaxPollInterval:   10 * time.Second,
			MinRecordInterval: time.Second,
			HeartbeatInterval: 2 * time.Minute,
			BackupSettleDelay: 500 * time.Millisecond,
		},
		Sink: SinkConfig{
			Command: "gtm",
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/kicad-gtm-%d.pid", uid),
		},
		Log: LogConfig{
			Level: "debug",
			File:  fmt.Sprintf("/tmp/kicad-gtm-%d.log", uid),
		},
		Web: WebConfig{
			Host: "localhost",
			Port: 10000 + uid%50000, // Per-user port so several users can run the daemon
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Tracker.PollInterval < c.Tracker.MinPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be less than minimum (%v)",
			c.Tracker.PollInterval, c.Tracker.MinPollInterval)
	}

	if c.Tracker.PollInterval > c.Tracker.MaxPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be greater than maximum (%v)",
			c.Tracker.PollInterval, c.Tracker.MaxPollInterval)
	}

	if c.Tracker.MinRecordInterval <= 0 {
		return fmt.Errorf("minimum record interval must be positive")
	}

	if c.Tracker.HeartbeatInterval <= c.Tracker.MinRecordInterval {
		return fmt.Errorf("heartbeat interval (%v) must be greater than minimum record interval (%v)",
			c.Tracker.HeartbeatInterval, c.Tracker.MinRecordInterval)
	}

	if c.Tracker.BackupSettleDelay < 0 {
		return fmt.Errorf("backup settle delay cannot be negative")
	}

	if c.Sink.Command == "" && !c.Sink.DisableRecording {
		return fmt.Errorf("sink command cannot be empty")
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	return nil
}

// SetPollInterval sets the poll interval with validation
func (c *Config) SetPollInterval(interval time.Duration) error {
	if interval < c.Tracker.MinPollInterval {
		return fmt.Errorf("poll interval cannot be less than %v", c.Tracker.MinPollInterval)
	}
	if interval > c.Tracker.MaxPollInterval {
		return fmt.Errorf("poll interval cannot be greater than %v", c.Tracker.MaxPollInterval)
	}
	c.Tracker.PollInterval = interval
	return nil
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Database:
    Path: %s
  Tracker:
    Poll Interval: %v
    Min Record Interval: %v
    Heartbeat Interval: %v
    Backup Settle Delay: %v
  Sink:
    Command: %s
    Recording Disabled: %v
  Daemon:
    PID File: %s
  Log:
    Level: %s
    File: %s
  Web:
    Host: %s
    Port: %d`,
		c.Database.Path,
		c.Tracker.PollInterval,
		c.Tracker.MinRecordInterval,
		c.Tracker.HeartbeatInterval,
		c.Tracker.BackupSettleDelay,
		c.Sink.Command,
		c.Sink.DisableRecording,
		c.Daemon.PIDFile,
		c.Log.Level,
		c.Log.File,
		c.Web.Host,
		c.Web.Port,
	)
}
