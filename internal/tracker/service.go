package tracker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/kicad-gtm/kicad-gtm/internal/config"
	"github.com/kicad-gtm/kicad-gtm/internal/metrics"
	"github.com/kicad-gtm/kicad-gtm/internal/models"
)

// settingsRefreshInterval is how often the projects folder is re-read so
// that the folder command reaches a running daemon.
const settingsRefreshInterval = 5 * time.Second

// Engine is driven once per tick.
type Engine interface {
	Tick() error
	ReloadSettings() error
}

// ErrorStore persists tick errors.
type ErrorStore interface {
	CreateErrorLog(errorLog *models.ErrorLog) error
}

// FatalFunc reports whether an error must stop the loop.
type FatalFunc func(error) bool

type Service struct {
	config  *config.Config
	engine  Engine
	store   ErrorStore
	metrics *metrics.Metrics
	isFatal FatalFunc
	logger  zerolog.Logger
}

func NewService(cfg *config.Config, engine Engine, store ErrorStore, m *metrics.Metrics, isFatal FatalFunc, logger zerolog.Logger) *Service {
	return &Service{
		config:  cfg,
		engine:  engine,
		store:   store,
		metrics: m,
		isFatal: isFatal,
		logger:  logger.With().Str("component", "tracker").Logger(),
	}
}

// Start ticks the engine until ctx is done or the engine reports a fatal
// error, which is returned. Cancel ctx to stop it.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info().Dur("interval", s.config.Tracker.PollInterval).Msg("starting tracker")

	ticker := time.NewTicker(s.config.Tracker.PollInterval)
	defer ticker.Stop()
	refresh := time.NewTicker(settingsRefreshInterval)
	defer refresh.Stop()

	if err := s.handle(s.engine.Tick()); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("tracker stopped by context")
			return ctx.Err()

		case <-refresh.C:
			if err := s.handle(s.engine.ReloadSettings()); err != nil {
				return err
			}

		case <-ticker.C:
			if err := s.handle(s.engine.Tick()); err != nil {
				return err
			}
		}
	}
}

// handle logs and stores err. It returns err only when it is fatal.
func (s *Service) handle(err error) error {
	if err == nil {
		return nil
	}
	s.metrics.RecordTickError()

	fatal := s.isFatal != nil && s.isFatal(err)
	s.storeError(err, fatal)
	if fatal {
		s.logger.Error().Err(err).Msg("fatal error, stopping tracker")
		return err
	}
	return nil
}

func (s *Service) storeError(err error, fatal bool) {
	errorLog := &models.ErrorLog{
		Timestamp: time.Now(),
		ErrorMsg:  err.Error(),
		Fatal:     fatal,
		CreatedAt: time.Now(),
	}

	if dbErr := s.store.CreateErrorLog(errorLog); dbErr != nil {
		s.logger.Error().Err(dbErr).AnErr("original", err).Msg("failed to store error in database")
	} else {
		s.logger.Error().Err(err).Msg("error logged to database")
	}
}
