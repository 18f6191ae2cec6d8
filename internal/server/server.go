// Package server wires configuration into the running gateway: upstreams,
// credential pools, the request pipeline, HTTP routes, and background tasks.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Davincible/ai-gateway-go/internal/config"
	"github.com/Davincible/ai-gateway-go/internal/credential"
	"github.com/Davincible/ai-gateway-go/internal/handlers"
	"github.com/Davincible/ai-gateway-go/internal/injection"
	"github.com/Davincible/ai-gateway-go/internal/middleware"
	"github.com/Davincible/ai-gateway-go/internal/processor"
	"github.com/Davincible/ai-gateway-go/internal/providers"
	"github.com/Davincible/ai-gateway-go/internal/resilience"
	"github.com/Davincible/ai-gateway-go/internal/router"
	"github.com/Davincible/ai-gateway-go/internal/stream"
	"github.com/Davincible/ai-gateway-go/internal/telemetry"
)

const quotaCleanupInterval = time.Minute

type Server struct {
	config *config.Manager
	logger *slog.Logger
	server *http.Server

	pools    *credential.Registry
	stats    *telemetry.Stats
	notifier *stream.Notifier
}

func New(configManager *config.Manager, logger *slog.Logger) *Server {
	return &Server{
		config:   configManager,
		logger:   logger,
		pools:    credential.NewRegistry(),
		stats:    telemetry.NewStats(),
		notifier: stream.NewNotifier(),
	}
}

// Events exposes the UI-level stream event feed for embedding frontends.
func (s *Server) Events() *stream.Notifier {
	return s.notifier
}

func (s *Server) Start() error {
	cfg := s.config.Get()
	if cfg == nil {
		return fmt.Errorf("configuration not loaded")
	}

	mux, err := s.build(cfg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.startBackgroundTasks(ctx, cfg)

	s.logger.Info("Starting server", "address", addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Server error", "error", err)
		}
	}()

	<-ctx.Done()
	s.logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	s.logger.Info("Server exited")
	return nil
}

func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// build assembles the pipeline and routes from one config snapshot.
func (s *Server) build(cfg *config.Config) (http.Handler, error) {
	upstreams := make(map[string]processor.Upstream, len(cfg.Providers))
	for _, p := range cfg.Providers {
		upstream, err := providers.New(p.Kind, p.Name, providers.Options{
			BaseURL:    p.BaseURL,
			ProfileARN: p.ProfileARN,
		})
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
		upstreams[p.Name] = upstream

		pool, err := credential.NewPool(p.Name, credential.BalanceStrategy(p.Strategy), s.logger)
		if err != nil {
			return nil, fmt.Errorf("provider %q: %w", p.Name, err)
		}
		for _, spec := range p.Credentials {
			id := spec.UUID
			if id == "" {
				id = uuid.NewString()
			}
			pool.Add(credential.Credential{
				UUID:         id,
				ProviderType: p.Kind,
				Label:        spec.Label,
				AccessToken:  spec.AccessToken,
				BaseURL:      spec.BaseURL,
				Disabled:     spec.Disabled,
			})
		}
		s.pools.Register(pool)
	}

	rt := router.New(cfg.Routing.Default)
	rt.SetRules(cfg.Routing.Rules)
	rt.SetExclusions(cfg.Routing.Exclusions)
	mapper := router.NewModelMapper(cfg.Routing.Aliases)

	retrier := resilience.NewRetrier(cfg.Retry, s.logger)

	pipeline := processor.NewPipeline(s.logger,
		&processor.AuthStep{Key: cfg.APIKey},
		&processor.InjectionStep{Injector: injection.NewInjector(cfg.Injection)},
		&processor.RoutingStep{Router: rt, Mapper: mapper},
		&processor.ProviderStep{
			Upstreams: upstreams,
			Pools:     s.pools,
			Retrier:   retrier,
			Logger:    s.logger,
		},
	)
	completion := processor.NewPipeline(s.logger,
		&processor.TelemetryStep{Stats: s.stats, Counter: telemetry.NewTokenCounter()},
	)

	gateway := handlers.NewGateway(pipeline, completion, s.logger)
	gateway.Notifier = s.notifier
	health := handlers.NewHealthHandler(s.logger, s.stats, s.pools)
	middlewareSet := middleware.NewMiddlewareSet(s.config, s.logger)

	mux := chi.NewRouter()
	mux.Method(http.MethodGet, "/health", middlewareSet.HealthChain().Handler(health))

	chain := middlewareSet.DefaultChain()
	mux.Method(http.MethodPost, "/v1/chat/completions", chain.Handler(http.HandlerFunc(gateway.HandleChatCompletions)))
	mux.Method(http.MethodPost, "/v1/messages", chain.Handler(http.HandlerFunc(gateway.HandleMessages)))

	// Provider-pinned ingress bypasses routing rules.
	mux.Method(http.MethodPost, "/{provider}/v1/chat/completions", chain.Handler(http.HandlerFunc(gateway.HandleChatCompletions)))
	mux.Method(http.MethodPost, "/{provider}/v1/messages", chain.Handler(http.HandlerFunc(gateway.HandleMessages)))

	return mux, nil
}

// startBackgroundTasks runs quota cleanup and optional health probes until
// the context ends.
func (s *Server) startBackgroundTasks(ctx context.Context, cfg *config.Config) {
	for _, pool := range s.pools.Pools() {
		go pool.Quota().RunCleanup(ctx, quotaCleanupInterval)
	}

	if !cfg.Health.Enabled {
		return
	}

	probeConfig := credential.DefaultHealthCheckConfig()
	if cfg.Health.Interval != "" {
		if interval, err := time.ParseDuration(cfg.Health.Interval); err == nil {
			probeConfig.Interval = interval
		}
	}
	if cfg.Health.Path != "" {
		probeConfig.Path = cfg.Health.Path
	}

	for _, pool := range s.pools.Pools() {
		checker := credential.NewHealthChecker(probeConfig, pool, nil, s.logger)
		go checker.Run(ctx)
	}
}
