// File: cmd/components.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bidrunner/api/schemas"
	"github.com/xkilldash9x/bidrunner/internal/calibration"
	"github.com/xkilldash9x/bidrunner/internal/config"
	"github.com/xkilldash9x/bidrunner/internal/device/dryrun"
	"github.com/xkilldash9x/bidrunner/internal/device/screencap"
	"github.com/xkilldash9x/bidrunner/internal/device/serialhid"
	"github.com/xkilldash9x/bidrunner/internal/ocr"
	"github.com/xkilldash9x/bidrunner/internal/stats"
	"github.com/xkilldash9x/bidrunner/internal/store"
)

// HistoryStore is the slice of store.Store and store.LocalStore the commands use.
type HistoryStore interface {
	EnsureSchema(ctx context.Context) error
	SaveSession(ctx context.Context, rec store.SessionRecord, events []stats.Event) error
	ListSessions(ctx context.Context, limit int) ([]store.SessionRecord, error)
}

// Components holds the collaborators of one session.
type Components struct {
	Gestures   schemas.GestureDispatcher
	Text       schemas.TextInjector
	Capturer   schemas.ScreenCapturer
	Recognizer schemas.TextRecognizer
	// History is nil when no database is configured.
	History HistoryStore

	closers []func()
}

// Shutdown closes every component that holds a connection.
func (c *Components) Shutdown() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func (c *Components) onShutdown(fn func()) {
	c.closers = append(c.closers, fn)
}

// ComponentFactory builds the components for a command. Tests substitute fakes.
type ComponentFactory interface {
	NewSession(ctx context.Context, cfg *config.Config, profile calibration.Profile, logger *zap.Logger) (*Components, error)
	NewHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (HistoryStore, func(), error)
}

type defaultFactory struct{}

// NewSession wires the configured device, capturer, recognizer and optional history store.
func (defaultFactory) NewSession(ctx context.Context, cfg *config.Config, profile calibration.Profile, logger *zap.Logger) (*Components, error) {
	c := &Components{}

	switch cfg.Device.Kind {
	case config.DeviceSerial:
		dev := serialhid.New(cfg.Device, logger)
		c.Gestures, c.Text = dev, dev
		c.Capturer = screencap.New(cfg.Capture.Display, logger)
	case config.DeviceDryRun:
		dev, err := dryrun.New(cfg.Capture.FixturePath, image.Pt(profile.ScreenWidth, profile.ScreenHeight), logger)
		if err != nil {
			return nil, err
		}
		c.Gestures, c.Text, c.Capturer = dev, dev, dev
	default:
		return nil, fmt.Errorf("device kind %q is not supported", cfg.Device.Kind)
	}

	recognizer, err := ocr.New(ctx, cfg.OCR, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ocr: %w", err)
	}
	c.Recognizer = recognizer
	c.onShutdown(func() {
		if err := recognizer.Close(); err != nil {
			logger.Warn("Error closing recognizer", zap.Error(err))
		}
	})

	if cfg.Stats.DatabaseURL != "" || cfg.Stats.HistoryPath != "" {
		history, closeFn, err := defaultFactory{}.NewHistory(ctx, cfg, logger)
		if err != nil {
			c.Shutdown()
			return nil, err
		}
		if err := history.EnsureSchema(ctx); err != nil {
			closeFn()
			c.Shutdown()
			return nil, err
		}
		c.History = history
		c.onShutdown(closeFn)
	}
	return c, nil
}

// NewHistory connects to the configured database. PostgreSQL wins over the local
// SQLite file when both are set.
func (defaultFactory) NewHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (HistoryStore, func(), error) {
	if cfg.Stats.DatabaseURL == "" {
		if cfg.Stats.HistoryPath == "" {
			return nil, nil, errors.New("no history store configured (set BIDRUNNER_STATS_DATABASE_URL or stats.history_path)")
		}
		path, err := homedir.Expand(cfg.Stats.HistoryPath)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid history path: %w", err)
		}
		local, err := store.OpenLocal(ctx, path, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open history file: %w", err)
		}
		if err := local.EnsureSchema(ctx); err != nil {
			local.Close()
			return nil, nil, err
		}
		return local, func() {
			if err := local.Close(); err != nil {
				logger.Warn("Error closing history file", zap.Error(err))
			}
		}, nil
	}
	pool, err := pgxpool.New(ctx, cfg.Stats.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	s, err := store.New(ctx, pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to initialize database store: %w", err)
	}
	return s, pool.Close, nil
}
