package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kicad-gtm/kicad-gtm/internal/backup"
	"github.com/kicad-gtm/kicad-gtm/internal/daemon"
	"github.com/kicad-gtm/kicad-gtm/internal/engine"
	"github.com/kicad-gtm/kicad-gtm/internal/index"
	"github.com/kicad-gtm/kicad-gtm/internal/metrics"
	"github.com/kicad-gtm/kicad-gtm/internal/sink"
	"github.com/kicad-gtm/kicad-gtm/internal/tracker"
	"github.com/kicad-gtm/kicad-gtm/internal/watch"
	"github.com/kicad-gtm/kicad-gtm/internal/web"
	"github.com/kicad-gtm/kicad-gtm/pkg/detector"
)

// errorRetention is how long stored tick errors are kept.
const errorRetention = 30 * 24 * time.Hour

var (
	startWeb              bool
	startPort             int
	startForeground       bool
	startDisableRecording bool
	startFolder           string
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the tracking daemon",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if startDisableRecording {
			cfg.Sink.DisableRecording = true
		}

		dm := daemon.New(cfg.Daemon.PIDFile)
		running, pid, err := dm.IsRunning()
		if err != nil {
			return errors.Wrap(err, "failed to check daemon status")
		}
		if running {
			return errors.Errorf("daemon is already running (PID: %d)", pid)
		}

		if !startForeground && !daemon.IsChild() {
			pid, err := daemon.Detach(os.Args)
			if err != nil {
				return err
			}
			cmd.Printf("Daemon started successfully (PID: %d)\n", pid)
			if startWeb {
				cmd.Printf("Web API available at: http://%s:%d\n", cfg.Web.Host, webPort())
			}
			cmd.Printf("Logs: %s\n", cfg.Log.File)
			return nil
		}

		var logger zerolog.Logger
		if startForeground {
			logger = newLogger(os.Stderr, true)
		} else {
			logFile, err := openLogFile()
			if err != nil {
				return errors.Wrap(err, "failed to open log file")
			}
			defer logFile.Close()
			logger = newLogger(logFile, false)
		}

		if err := runDaemon(dm, logger); err != nil {
			logger.Error().Err(err).Msg("daemon stopped with error")
			return err
		}
		return nil
	},
}

func init() {
	startCmd.Flags().BoolVar(&startWeb, "web", false, "serve the status API")
	startCmd.Flags().IntVar(&startPort, "port", 0, "status API port (default from config)")
	startCmd.Flags().BoolVarP(&startForeground, "foreground", "f", false, "run in the foreground, logging to the console")
	startCmd.Flags().StringVar(&startFolder, "folder", "", "set the projects folder before tracking starts")
	startCmd.Flags().BoolVar(&startDisableRecording, "disable-recording", false, "do not call gtm, only log what would be recorded")
	rootCmd.AddCommand(startCmd)
}

func webPort() int {
	if startPort > 0 {
		return startPort
	}
	return cfg.Web.Port
}

type folderSetter interface {
	SetProjectsFolder(root string) error
}

// applyStartFolder stores folder and points the engine at it before the
// first tick.
func applyStartFolder(eng folderSetter, folder string) error {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return errors.Wrap(err, "failed to resolve path")
	}
	return errors.Wrapf(eng.SetProjectsFolder(abs), "cannot track %s", abs)
}

func runDaemon(dm *daemon.Daemon, logger zerolog.Logger) error {
	repo, closeDB, err := openRepository()
	if err != nil {
		return err
	}
	defer closeDB()

	if n, err := repo.DeleteOldErrors(time.Now().Add(-errorRetention)); err != nil {
		logger.Warn().Err(err).Msg("failed to prune old errors")
	} else if n > 0 {
		logger.Debug().Int64("deleted", n).Msg("pruned old errors")
	}

	det, err := detector.New()
	if err != nil {
		return errors.Wrap(err, "failed to initialize window detector")
	}
	defer det.Close()
	logger.Info().Str("display_server", det.GetDisplayServer()).Msg("window detector initialized")

	if err := dm.WritePID(); err != nil {
		return errors.Wrap(err, "failed to write PID file")
	}
	defer dm.RemovePID()

	var heartbeats sink.Sink = sink.NewCommand(cfg.Sink.Command, logger)
	if cfg.Sink.DisableRecording {
		heartbeats = sink.NewDisabled(logger)
	}

	m := metrics.New()
	ix := index.New(logger)
	eng := engine.New(engine.Deps{
		Detector: det,
		Index:    ix,
		Watcher:  watch.New(ix, logger),
		Settings: repo,
		Differ:   backup.NewDiffer(logger),
		Sink:     heartbeats,
		Metrics:  m,
	}, engine.Options{
		MinRecordInterval: cfg.Tracker.MinRecordInterval,
		HeartbeatInterval: cfg.Tracker.HeartbeatInterval,
		BackupSettleDelay: cfg.Tracker.BackupSettleDelay,
		AppName:           appName,
	}, logger)
	defer eng.Close()

	if startFolder != "" {
		if err := applyStartFolder(eng, startFolder); err != nil {
			return err
		}
	}

	trackerSvc := tracker.NewService(cfg, eng, repo, m, engine.IsFatal, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Info().Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	var webServer *web.Server
	if startWeb {
		handler := web.NewHandler(cfg, eng, repo, m.Handler(), logger)
		webServer = web.NewServer(cfg, handler, startPort, logger)
		go func() {
			if err := webServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("web server error")
			}
		}()
	}

	logger.Info().Str("version", version).Msg("starting kicad-gtm daemon")
	logger.Debug().Msg(cfg.String())

	err = trackerSvc.Start(ctx)

	if webServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if serr := webServer.Shutdown(shutdownCtx); serr != nil {
			logger.Error().Err(serr).Msg("error shutting down web server")
		}
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "tracker error")
	}
	logger.Info().Msg("daemon stopped successfully")
	return nil
}
