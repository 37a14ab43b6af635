package main

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kicad-gtm/kicad-gtm/internal/config"
	"github.com/kicad-gtm/kicad-gtm/internal/database"
)

// cfg holds the configuration, populated in PersistentPreRunE.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Record time spent in KiCad projects with gtm",
	Long: `kicad-gtm watches which KiCad schematic or board is focused and sends
heartbeats to gtm ("gtm record <file>") while you work on it.

Environment variables (prefix KICAD_GTM_):
  DB_PATH, POLL_INTERVAL, MIN_RECORD_INTERVAL, HEARTBEAT_INTERVAL,
  BACKUP_SETTLE_DELAY, SINK_COMMAND, DISABLE_RECORDING, PID_FILE,
  LOG_LEVEL, LOG_FILE, WEB_HOST, WEB_PORT`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.New()
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return err
		}
		cfg = c
		return nil
	},
}

// newLogger builds the root logger. Foreground runs log to the console, the
// detached daemon to its log file.
func newLogger(w io.Writer, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05"}
	}
	logger := zerolog.New(w).With().Timestamp().Logger()

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.DebugLevel
	}
	return logger.Level(level)
}

// openRepository connects to the settings database.
func openRepository() (*database.Repository, func(), error) {
	db, err := database.Connect(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Initialize(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return database.NewRepository(db), func() { db.Close() }, nil
}

func openLogFile() (*os.File, error) {
	return os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
}
