package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bluticconsent/internal/admin"
	"bluticconsent/internal/config"
	"bluticconsent/internal/consent"
	"bluticconsent/internal/inject"
	"bluticconsent/internal/templates"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

const siteTitle = "Blutic Demo Site"

var articles = []templates.Article{
	{Title: "Welcome", Summary: "This page gets the consent banner."},
	{Title: "Feed", Summary: "The JSON feed never does."},
}

func newHandler(cfg *config.Config, reg *prometheus.Registry, ready Readyable) (http.Handler, error) {
	if err := templates.Init(); err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}

	site := http.NewServeMux()
	site.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.Site.Execute(w, templates.SitePage{Title: siteTitle, Articles: articles}); err != nil {
			slog.ErrorContext(r.Context(), "site template execute error", "error", err)
			http.Error(w, "template error", http.StatusInternalServerError)
		}
	})
	site.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(articles); err != nil {
			slog.ErrorContext(r.Context(), "failed to write feed", "error", err)
		}
	})
	admin.NewHandler(cfg, siteTitle).Register(site)

	injector := inject.New(inject.Options{
		Params:        func(context.Context) consent.Config { return cfg.Consent() },
		Debug:         cfg.Blutic.Debug,
		AdminPrefixes: cfg.Admin.PathPrefixes,
		Queue:         inject.SlogQueue{},
		Metrics:       inject.NewMetrics(reg),
	})

	ro := &readyOnce{}
	if ready != nil {
		ro.Add(ready)
	}

	mux := http.NewServeMux()
	mux.Handle("/ready", ro)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/", injector.Wrap(site))
	return WithMiddleware(mux, reg), nil
}

func runServer(ctx context.Context, cfg *config.Config, ready Readyable, addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	handler, err := newHandler(cfg, reg, ready)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Serving bluticconsent", "address", addr, "enabled", cfg.Blutic.Enabled, "debug", cfg.Blutic.Debug)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		slog.Info("Shutting down")
		return gracefulShutdown(server)
	})
	return g.Wait()
}

func gracefulShutdown(svr *http.Server) error {
	// Give outstanding requests 25 seconds to complete (kubernetes has 30 second grace period)
	ctx, cancel := context.WithTimeout(context.Background(), 25*time.Second)
	defer cancel()

	if err := svr.Shutdown(ctx); err != nil {
		slog.Error("Server shutdown error", "error", err)
		// Force close after timeout
		if closeErr := svr.Close(); closeErr != nil {
			slog.Error("Server close error", "error", closeErr)
		}
		return err
	}
	return nil
}
