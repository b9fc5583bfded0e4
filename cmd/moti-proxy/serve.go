package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/moti-app/moti-proxy/internal/adapter/hosted"
	"github.com/moti-app/moti-proxy/internal/adapter/loopback"
	"github.com/moti-app/moti-proxy/internal/adapter/ollama"
	"github.com/moti-app/moti-proxy/internal/adapter/router"
	"github.com/moti-app/moti-proxy/internal/config"
	"github.com/moti-app/moti-proxy/internal/guard"
	"github.com/moti-app/moti-proxy/internal/health"
	"github.com/moti-app/moti-proxy/internal/httpserver"
	"github.com/moti-app/moti-proxy/internal/ledger"
	"github.com/moti-app/moti-proxy/internal/logging"
	"github.com/moti-app/moti-proxy/internal/metrics"
	"github.com/moti-app/moti-proxy/internal/persona"
	"github.com/moti-app/moti-proxy/internal/ratelimit"
	"github.com/moti-app/moti-proxy/internal/relay"
	"github.com/moti-app/moti-proxy/internal/version"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(root *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP relay (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*root)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, syncLogs, err := logging.New(logging.Options{
				Level:       cfg.LogLevel,
				File:        cfg.LogFile,
				Development: cfg.Environment == "dev",
			})
			if err != nil {
				return fmt.Errorf("init logging: %w", err)
			}
			defer func() { _ = syncLogs() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

// app is the wired process: everything serve needs to run and tear down.
type app struct {
	handler http.Handler
	relay   *relay.Service
	ledger  ledger.Store
}

func (a *app) Close() error {
	if a.ledger == nil {
		return nil
	}
	return a.ledger.Close()
}

func buildApp(cfg *config.Config, logger *zap.SugaredLogger) (*app, error) {
	p, err := persona.Load(cfg.PersonaFile)
	if err != nil {
		return nil, fmt.Errorf("load persona: %w", err)
	}

	history := guard.New(
		guard.WithCapacity(cfg.HistorySize),
		guard.WithNotice(p.Notice),
		guard.WithRecordAnnotated(cfg.RecordAnnotated),
	)

	providers, err := buildRouter(cfg, logger)
	if err != nil {
		return nil, err
	}

	store, err := openLedger(cfg.LedgerPath, logger)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	svc, err := relay.New(relay.Config{
		Router:      providers,
		Guard:       history,
		Persona:     p,
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.RequestTimeout,
		Metrics:     collector,
		Ledger:      store,
		Logger:      logger,
	})
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, err
	}

	srv := httpserver.New(httpserver.Options{
		Relay:          svc,
		Router:         providers,
		Ledger:         store,
		Metrics:        collector,
		Logger:         logger,
		Version:        version.Info(),
		MaxBodyBytes:   cfg.MaxBodyBytes,
		AllowedOrigins: cfg.AllowedOrigins,
		RateLimiter: ratelimit.New(ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             float64(cfg.RateLimitBurst),
		}),
		Health: health.New(health.Config{Probes: readinessProbes(cfg, store)}),
	})
	return &app{handler: srv.Router(), relay: svc, ledger: store}, nil
}

// buildRouter registers every backend the binary knows about. A backend that
// cannot start is registered as unavailable so selecting it reports why.
func buildRouter(cfg *config.Config, logger *zap.SugaredLogger) (*router.Router, error) {
	r := router.New()
	if err := r.RegisterAdapter("ollama", ollama.New(ollama.Config{
		Endpoint:       cfg.OllamaEndpoint,
		RequestTimeout: cfg.RequestTimeout,
	})); err != nil {
		return nil, err
	}

	hostedAdapter, err := hosted.New(hosted.Config{
		APIKey:         cfg.OpenAIAPIKey,
		BaseURL:        cfg.OpenAIBaseURL,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		logger.Infow("hosted provider unavailable", "provider", hosted.ProviderName, "error", err)
		if err := r.RegisterUnavailable(hosted.ProviderName, err); err != nil {
			return nil, err
		}
	} else if err := r.RegisterAdapter(hosted.ProviderName, hostedAdapter); err != nil {
		return nil, err
	}

	if err := r.RegisterAdapter("loopback", loopback.New()); err != nil {
		return nil, err
	}
	return r, nil
}

// readinessProbes covers the ledger and the configured provider's endpoint.
func readinessProbes(cfg *config.Config, store ledger.Store) []health.Probe {
	var probes []health.Probe
	if store != nil {
		probes = append(probes, health.LedgerProbe(store))
	}
	switch cfg.Provider {
	case "ollama":
		probes = append(probes, health.HTTPProbe("ollama", cfg.OllamaEndpoint+"/api/version", nil))
	case hosted.ProviderName:
		probes = append(probes, health.HTTPProbe(hosted.ProviderName, cfg.OpenAIBaseURL+"/models", nil))
	}
	return probes
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) error {
	a, err := buildApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warnw("close ledger", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      a.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("moti proxy listening",
			"addr", srv.Addr,
			"provider", a.relay.Provider(),
			"model", a.relay.Model(),
			"version", version.Info(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
