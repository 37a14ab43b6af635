package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "KICAD_GTM"

// envOverrides lists the settings that may come from the environment, e.g.
// DBPath is read from KICAD_GTM_DB_PATH. Unset variables leave the defaults
// alone.
type envOverrides struct {
	DBPath            string         `split_words:"true"`
	PollInterval      time.Duration  `split_words:"true"`
	MinRecordInterval time.Duration  `split_words:"true"`
	HeartbeatInterval time.Duration  `split_words:"true"`
	BackupSettleDelay *time.Duration `split_words:"true"`
	SinkCommand       string         `split_words:"true"`
	DisableRecording  *bool          `split_words:"true"`
	PIDFile           string         `split_words:"true"`
	LogLevel          string         `split_words:"true"`
	LogFile           string         `split_words:"true"`
	WebHost           string         `split_words:"true"`
	WebPort           int            `split_words:"true"`
}

// LoadFromEnv loads configuration from environment variables
// Environment variables override default values
func LoadFromEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return errors.Wrap(err, "failed to read environment")
	}

	if env.DBPath != "" {
		cfg.Database.Path = env.DBPath
	}

	if env.PollInterval > 0 {
		cfg.Tracker.PollInterval = env.PollInterval
	}
	if env.MinRecordInterval > 0 {
		cfg.Tracker.MinRecordInterval = env.MinRecordInterval
	}
	if env.HeartbeatInterval > 0 {
		cfg.Tracker.HeartbeatInterval = env.HeartbeatInterval
	}
	if env.BackupSettleDelay != nil {
		cfg.Tracker.BackupSettleDelay = *env.BackupSettleDelay
	}

	if env.SinkCommand != "" {
		cfg.Sink.Command = env.SinkCommand
	}
	if env.DisableRecording != nil {
		cfg.Sink.DisableRecording = *env.DisableRecording
	}

	if env.PIDFile != "" {
		cfg.Daemon.PIDFile = env.PIDFile
	}

	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.LogFile != "" {
		cfg.Log.File = env.LogFile
	}

	if env.WebHost != "" {
		cfg.Web.Host = env.WebHost
	}
	if env.WebPort != 0 {
		cfg.Web.Port = env.WebPort
	}

	return nil
}

// New creates a new Config with default values and loads from environment
func New() (*Config, error) {
	cfg := Default()
	if err := LoadFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
