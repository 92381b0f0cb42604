package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/rocket/internal/config"
	"git.home.luguber.info/inful/rocket/internal/logfields"
	"git.home.luguber.info/inful/rocket/internal/metrics"
	"git.home.luguber.info/inful/rocket/internal/notify"
	"git.home.luguber.info/inful/rocket/internal/project"
	"git.home.luguber.info/inful/rocket/internal/serve"
	"git.home.luguber.info/inful/rocket/internal/watch"
)

const shutdownTimeout = 10 * time.Second

// runServe builds once, then serves the output directory. With --watch it
// also rebuilds on source changes; each rebuild re-reads the config so
// content-affecting settings apply without a restart. The listen address,
// output root, and live-reload switch are fixed at startup.
func runServe(logger *slog.Logger) error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return err
	}

	addr := CLI.Serve.Addr
	if addr == "" {
		addr = cfg.Serve.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	var pub *notify.Publisher
	if cfg.Notifications.Enabled {
		p, cerr := notify.Connect(cfg.Notifications.URL, cfg.Notifications.Subject, logger)
		if cerr != nil {
			logger.Warn("build notifications unavailable", logfields.Error(cerr))
		} else {
			pub = p
			defer pub.Close()
		}
	}

	build := func(c *config.Config) (*project.BuildReport, error) {
		builder := project.NewBuilder(project.Options{
			Config:  c,
			Logger:  logger,
			Metrics: recorder,
		})
		report, err := builder.Build(ctx)
		afterBuild(ctx, c, report, pub, logger)
		return report, err
	}

	if _, err := build(cfg); err != nil {
		return err
	}

	srv := serve.New(serve.Options{
		Addr:       addr,
		Root:       cfg.Output,
		LiveReload: cfg.Serve.LiveReload,
		Metrics:    metrics.HTTPHandler(reg),
		Logger:     logger,
	})

	if CLI.Serve.Watch {
		rebuild := func() {
			fresh, err := config.Load(CLI.Config)
			if err != nil {
				logger.Error("config reload failed, keeping previous configuration", logfields.Error(err))
				fresh = cfg
			} else {
				cfg = fresh
			}
			if _, err := build(fresh); err != nil {
				logger.Error("rebuild failed", logfields.Error(err))
				return
			}
			srv.NotifyReload()
		}

		every, _ := cfg.RebuildEvery()
		watcher, err := watch.New(watch.Options{
			Dirs:     []string{cfg.ContentDir, cfg.ThemeDir},
			Files:    []string{CLI.Config},
			Debounce: cfg.Debounce(),
			Every:    every,
			OnChange: rebuild,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		defer watcher.Close()
		go func() {
			if err := watcher.Run(ctx); err != nil {
				logger.Error("watcher stopped", logfields.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
