package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WangYihang/Catalog-Crawler/pkg/application"
	"github.com/WangYihang/Catalog-Crawler/pkg/common"
	"github.com/WangYihang/Catalog-Crawler/pkg/interface/cli"
	"github.com/WangYihang/Catalog-Crawler/pkg/interface/presenter"
	"golang.org/x/sync/errgroup"
)

const (
	defaultDashboardLog = "catalog-crawler.log"
	shutdownTimeout     = 10 * time.Second
)

func main() {
	// Parse command line flags
	config, err := cli.ParseFlags()
	if err != nil {
		os.Exit(1)
	}

	if config.Version {
		fmt.Println(common.PV.String())
		return
	}

	if err := run(config); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(config *cli.Config) error {
	logger, closeLog, err := newLogger(config)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	// Handle interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := cli.NewAssembler(config, logger).Assemble(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Error("close failed", "error", err)
		}
	}()

	if config.Export {
		return exportOnce(ctx, app, config)
	}
	return serve(ctx, app, config, logger)
}

func newLogger(config *cli.Config) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stderr
	closeLog := func() {}

	path := config.LogFile
	if path == "" && config.ShowDashboard {
		// the dashboard owns the terminal
		path = defaultDashboardLog
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = f
		closeLog = func() { f.Close() }
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: config.SlogLevel()})
	return slog.New(handler), closeLog, nil
}

func exportOnce(ctx context.Context, app *cli.App, config *cli.Config) error {
	progress := presenter.NewExportProgress(os.Stderr, "export")
	app.Messages.OnBatch = progress.OnBatch

	resp := app.Messages.Handle(ctx, application.Request{
		Action:   application.ActionDownload,
		Format:   config.Format,
		Filters:  config.Filter(),
		City:     config.City,
		Category: config.Category,
		PackSize: config.PackSize,
	})
	progress.Wait()

	switch resp.Status {
	case application.StatusError:
		return errors.New(resp.Message)
	case application.StatusEmpty:
		fmt.Fprintln(os.Stderr, resp.Message)
		return nil
	}
	for _, f := range resp.Files {
		fmt.Println(f)
	}
	return nil
}

func serve(ctx context.Context, app *cli.App, config *cli.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Addr:              app.Config.API.Listen,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	g.Go(func() error {
		logger.Info("server starting", "addr", srv.Addr, "version", common.PV.Short())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		app.Collect.Run(gctx)
		return nil
	})

	if app.Tap != nil {
		g.Go(func() error {
			return app.Tap.Run(gctx)
		})
	}

	if config.ShowDashboard {
		dashboard := presenter.NewDashboard()
		app.Collect.RegisterMetricsObserver(dashboard)
		g.Go(func() error {
			// quitting the dashboard stops everything
			defer cancel()
			return dashboard.Run(gctx)
		})
	} else {
		fmt.Fprintf(os.Stderr, "Catalog crawler listening on http://%s\n", srv.Addr)
	}

	err := g.Wait()
	logger.Info("shutdown complete", "metrics", app.Collect.GetMetrics())
	return err
}
