// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/taxlien-works/harvest/internal/config"
	"github.com/taxlien-works/harvest/internal/export"
	"github.com/taxlien-works/harvest/internal/extract"
	"github.com/taxlien-works/harvest/internal/job"
	"github.com/taxlien-works/harvest/internal/navigator"
	"github.com/taxlien-works/harvest/internal/ocr"
	"github.com/taxlien-works/harvest/internal/ratelimit"
	"github.com/taxlien-works/harvest/internal/render"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config     *config.Config
	Logger     *zerolog.Logger
	Controller *job.Controller
	startTime  time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// Browser sessions are not started here: each job launches its own browser
// when it runs, so independent jobs never share portal session state.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logLevel := zerolog.ErrorLevel
	switch cfg.LogLevel {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	var logWriter io.Writer
	if cfg.JSONLog {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.NewConsoleWriter()
	}
	logger := log.Output(logWriter).With().Timestamp().Logger()
	log.Logger = logger

	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	parser := extract.NewParser(cfg.BaseURL)
	engine := ocr.NewEngine(cfg.TesseractPath, cfg.OCRTimeout)
	renderer := render.NewRenderer(cfg.ArtifactDir)
	workbook := export.NewWorkbook(cfg.ExportDir)

	if !engine.Available() {
		logger.Warn().
			Str("binary", cfg.TesseractPath).
			Msg("OCR engine not found; image-only records will be excluded")
	}

	runner := func(jobCtx context.Context) (*job.Orchestrator, func(), error) {
		browser, err := navigator.NewBrowser(jobCtx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("browser launch: %w", err)
		}
		limiter := ratelimit.NewPoliteness(cfg.Politeness)
		nav := navigator.New(cfg, browser, limiter)
		orch := job.NewOrchestrator(cfg, nav, parser, engine, renderer, workbook)
		return orch, browser.Close, nil
	}

	app := &Application{
		Config:     cfg,
		Logger:     &logger,
		Controller: job.NewController(runner),
		startTime:  time.Now(),
	}

	logger.Debug().Msg("Application initialized")
	return app, nil
}

// Close gracefully shuts down the application.
func (a *Application) Close() {
	if a == nil {
		return
	}
	a.Logger.Debug().
		Dur("uptime", time.Since(a.startTime)).
		Msg("Application shut down")
}
