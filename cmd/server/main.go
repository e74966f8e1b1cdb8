// Lead Intelligence dashboard server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ashureev/leadintel/internal/api"
	"github.com/ashureev/leadintel/internal/chat"
	"github.com/ashureev/leadintel/internal/config"
	"github.com/ashureev/leadintel/internal/credential"
	"github.com/ashureev/leadintel/internal/health"
	"github.com/ashureev/leadintel/internal/identity"
	"github.com/ashureev/leadintel/internal/inference"
	"github.com/ashureev/leadintel/internal/live"
	"github.com/ashureev/leadintel/internal/middleware"
	"github.com/ashureev/leadintel/internal/provider"
	"github.com/ashureev/leadintel/internal/session"
	"github.com/ashureev/leadintel/internal/store"
	"github.com/ashureev/leadintel/internal/telemetry"
	"github.com/ashureev/leadintel/web"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped successfully")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.NewTracerProvider("leadintel", os.Stdout)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				slog.Warn("Failed to flush traces", "error", err)
			}
		}()
		slog.Info("Tracing enabled")
	}

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		return err
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	vault := credential.NewVault(repo, logger)
	chatClient := provider.NewChatClient(provider.ChatConfig{
		BaseURL:     cfg.Chat.BaseURL,
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
		MaxTokens:   cfg.Chat.MaxTokens,
		Timeout:     cfg.Chat.Timeout,
	}, nil, logger)
	inferenceClient := provider.NewInferenceClient(provider.InferenceConfig{
		BaseURL: cfg.Inference.BaseURL,
		Timeout: cfg.Inference.Timeout,
	}, nil, logger)

	chats := chat.NewRegistry(chat.Config{
		SystemPrompt: cfg.Chat.SystemPrompt,
		HistoryLimit: cfg.Chat.HistoryLimit,
	}, chatClient, vault, logger)
	inferences := inference.NewRegistry(inferenceClient, vault, logger)
	hub := live.NewHub()
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)

	// Initialize handlers.
	handler := api.NewHandler(api.Deps{
		Repo:       repo,
		Vault:      vault,
		Chats:      chats,
		Inferences: inferences,
		Hub:        hub,
		Config:     cfg,
	})
	healthHandler := api.NewHealthHandler(repo, 5*time.Second)
	wsHandler := live.NewWebSocketHandler(hub, handler.InitialFrames, handler.Touch, cfg.FrontendURL, cfg.IsDevelopment())

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg), identity.SessionHeaderName))

	// Public routes.
	healthHandler.RegisterHealth(r)
	if cfg.Telemetry.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Everything else runs with a device identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		handler.RegisterRoutes(r, limiter)
		r.Get("/ws/events", wsHandler.ServeHTTP)
		r.Handle("/*", web.SPAHandler())
	})

	// Provider calls have no deadline by default, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Start TTL worker.
	session.StartTTLWorker(ctx, cfg.Session.SweepInterval, cfg.Session.TTL,
		session.SweepFunc(func(ttl time.Duration) int {
			return len(chats.Evict(ttl, (*chat.Orchestrator).Busy))
		}),
		session.SweepFunc(func(ttl time.Duration) int {
			return len(inferences.Evict(ttl, (*inference.Orchestrator).Busy))
		}),
		session.SweepFunc(func(ttl time.Duration) int {
			return len(handler.Navigator().Evict(ttl, nil))
		}),
		limiter,
	)

	var (
		healthServer *health.Server
		healthLis    net.Listener
	)
	if cfg.GRPCHealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCHealthAddr)
		if err != nil {
			return err
		}
		healthServer = health.NewServer(repo, 5*time.Second, health.ServiceChat, health.ServiceInference)
		healthLis = lis
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if healthServer != nil {
		g.Go(func() error { return healthServer.Serve(healthLis) })
		g.Go(func() error {
			healthServer.Watch(gctx, 15*time.Second)
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			healthServer.Shutdown()
			return nil
		})
	}

	// Wait for shutdown signal or a failed listener.
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		hub.CloseAll()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() || cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
