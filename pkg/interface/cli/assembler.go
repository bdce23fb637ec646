package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"

	"github.com/WangYihang/Catalog-Crawler/pkg/application"
	"github.com/WangYihang/Catalog-Crawler/pkg/config"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/repository"
	"github.com/WangYihang/Catalog-Crawler/pkg/infrastructure/exporter"
	"github.com/WangYihang/Catalog-Crawler/pkg/infrastructure/http"
	"github.com/WangYihang/Catalog-Crawler/pkg/infrastructure/metrics"
	"github.com/WangYihang/Catalog-Crawler/pkg/infrastructure/signature"
	"github.com/WangYihang/Catalog-Crawler/pkg/infrastructure/storage"
	"github.com/WangYihang/Catalog-Crawler/pkg/interface/api"
	"github.com/WangYihang/Catalog-Crawler/pkg/interface/browser"
)

// App holds the assembled components
type App struct {
	Config   *config.Config
	Collect  *application.CollectUseCase
	Messages *application.MessageUseCase
	Metrics  *metrics.Collectors
	Router   nethttp.Handler
	// Tap is nil unless the browser is enabled
	Tap *browser.Tap

	store     *storage.SQLiteStore
	state     *storage.StateManager
	logWriter *storage.LogWriter
}

// Close stops the pipeline and releases the store and logs
func (a *App) Close() error {
	a.Collect.Stop()
	a.state.Close()
	var errs []error
	if a.logWriter != nil {
		errs = append(errs, a.logWriter.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

// Assembler assembles all components for the application
type Assembler struct {
	config *Config
	logger *slog.Logger
}

// NewAssembler creates a new assembler
func NewAssembler(config *Config, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{config: config, logger: logger}
}

// Assemble opens the store and wires the pipeline, the message handler and
// the HTTP surface
func (a *Assembler) Assemble(ctx context.Context) (*App, error) {
	cfg, err := a.config.AppConfig()
	if err != nil {
		return nil, err
	}

	collectors := metrics.New()

	// the pipeline exists once the store is saving
	var collect *application.CollectUseCase
	store, err := storage.NewSQLiteStore(storage.SQLiteConfig{
		Path: cfg.Store.Path,
		OnSave: func(count int) {
			collectors.SetStored(count)
			if collect != nil {
				collect.SetStoredItems(count)
			}
		},
		Logger: a.logger,
	})
	if err != nil {
		return nil, err
	}
	state := storage.NewStateManager(store, a.logger)

	snapshot, err := state.Snapshot(ctx)
	if err != nil {
		state.Close()
		store.Close()
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	var logWriter *storage.LogWriter
	var httpLog repository.LogWriter
	if cfg.HTTP.LogFile != "" {
		logWriter, err = storage.NewLogWriter(cfg.HTTP.LogFile)
		if err != nil {
			state.Close()
			store.Close()
			return nil, fmt.Errorf("failed to create log writer: %w", err)
		}
		httpLog = logWriter
	}

	fetcher := http.NewFetcher(http.Config{
		Timeout:         cfg.HTTP.Timeout,
		MaxResponseSize: cfg.HTTP.MaxResponseSize,
		UserAgent:       cfg.HTTP.UserAgent,
		Headers:         map[string]string{"Referer": cfg.HTTP.Referer},
		MaxRetries:      cfg.HTTP.MaxRetries,
		BaseDelay:       cfg.HTTP.BaseDelay,
		RateLimit:       cfg.HTTP.RateLimit,
		LogWriter:       httpLog,
		Observer:        collectors,
		Logger:          a.logger,
	})

	engine := signature.NewEngine(fetcher, signature.Config{
		LandingURL: cfg.Signature.LandingURL,
		Observer:   collectors,
		Logger:     a.logger,
	})

	filter := storage.NewURLFilter(storage.Config{
		Size:              cfg.Dedup.BloomFilterSize,
		FalsePositiveRate: cfg.Dedup.BloomFilterFalsePositive,
	})

	collect = application.NewCollectUseCase(
		application.CollectConfig{Paused: a.config.Paused},
		fetcher,
		engine,
		state,
		filter,
		collectors,
		a.logger,
	)
	collect.SeedCaptured(snapshot.CapturedURLs.Values())
	collect.SetStoredItems(len(snapshot.UniqueItems))
	collectors.SetStored(len(snapshot.UniqueItems))

	exp := exporter.New(exporter.Config{
		OutputDir: cfg.Export.OutputDir,
		Logger:    a.logger,
	})

	messages := application.NewMessageUseCase(
		application.MessageConfig{
			DefaultCity: cfg.Export.DefaultCity,
			PackSize:    cfg.Export.PackSize,
			Cities:      cfg.Export.Cities,
		},
		state,
		store,
		exp,
		collect,
		a.logger,
	)

	app := &App{
		Config:   cfg,
		Collect:  collect,
		Messages: messages,
		Metrics:  collectors,
		Router: api.NewRouter(api.Config{
			Messages: messages,
			Capturer: collect,
			Metrics:  collectors.Handler(),
			Logger:   a.logger,
		}),
		store:     store,
		state:     state,
		logWriter: logWriter,
	}

	if cfg.Browser.Enabled {
		app.Tap = browser.New(browser.Config{
			ControlURL: cfg.Browser.ControlURL,
			StartURL:   cfg.Browser.StartURL,
			Headless:   cfg.Browser.Headless,
			Logger:     a.logger,
		}, collect)
	}

	a.logger.Info("assembler: ready",
		"db", cfg.Store.Path,
		"stored_items", len(snapshot.UniqueItems),
		"captured_urls", len(snapshot.CapturedURLs),
	)
	return app, nil
}
