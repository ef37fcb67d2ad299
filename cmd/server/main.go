// codevoice - voice and text driven coding assistant server
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/dhrumilbhut/codevoice/internal/agent"
	"github.com/dhrumilbhut/codevoice/internal/api"
	"github.com/dhrumilbhut/codevoice/internal/config"
	"github.com/dhrumilbhut/codevoice/internal/mcp"
	"github.com/dhrumilbhut/codevoice/internal/middleware"
	"github.com/dhrumilbhut/codevoice/internal/model"
	"github.com/dhrumilbhut/codevoice/internal/sandbox"
	"github.com/dhrumilbhut/codevoice/internal/speech"
	"github.com/dhrumilbhut/codevoice/internal/store"
	"github.com/dhrumilbhut/codevoice/internal/tools"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	guard, err := tools.NewGuard(cfg.ProjectsRoot)
	if err != nil {
		slog.Error("Failed to prepare projects root", "error", err)
		os.Exit(1)
	}
	slog.Info("Projects root ready", "root", guard.Root())

	// Commands run locally unless a Docker sandbox is configured.
	var runner tools.Runner
	if cfg.Sandbox == "docker" {
		dockerRunner, err := sandbox.NewDockerRunner(ctx, cfg.SandboxImage, guard.Root())
		if err != nil {
			slog.Error("Failed to initialize Docker sandbox", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := dockerRunner.Close(); closeErr != nil {
				slog.Error("Failed to remove sandbox container", "error", closeErr)
			}
		}()
		runner = dockerRunner
		slog.Info("Docker sandbox ready", "image", cfg.SandboxImage)
	}

	registry := tools.NewRegistry(guard, runner, cfg.CommandTimeout)
	planner := model.NewClient(cfg.ModelBaseURL, cfg.DefaultModel, cfg.ModelTimeout)

	// Speech-to-text is optional; without it /api/transcribe returns 404.
	var transcriber speech.Transcriber
	if cfg.SpeechAgentAddr != "" {
		speechClient, err := speech.NewClient(cfg.SpeechAgentAddr, logger)
		if err != nil {
			slog.Warn("Failed to connect to speech agent, transcription disabled", "error", err)
		} else {
			defer speechClient.Close()
			transcriber = speechClient
			slog.Info("Speech agent connected", "address", cfg.SpeechAgentAddr)
		}
	}

	var conversationLogger agent.ConversationLogger
	if cfg.ConversationLog.Enabled {
		conversationLogger, err = agent.NewConversationLogger(agent.ConversationLogConfig{
			Enabled:   cfg.ConversationLog.Enabled,
			Dir:       cfg.ConversationLog.Dir,
			QueueSize: cfg.ConversationLog.QueueSize,
		}, logger)
		if err != nil {
			slog.Error("Failed to initialize conversation logger", "error", err)
			os.Exit(1)
		}
		defer func() {
			if closeErr := conversationLogger.Close(); closeErr != nil {
				slog.Error("Failed to close conversation logger", "error", closeErr)
			}
		}()
	}

	// Initialize services and handlers.
	sink := api.NewWSSink()
	service := agent.NewService(planner, registry, cfg.MaxSteps, sink, conversationLogger)

	handler := api.NewHandler(service, repo, transcriber)
	wsHandler := api.NewWSHandler(service, sink)
	mcpServer := mcp.NewServer(registry, service)

	askLimiter := middleware.NewRateLimiter(cfg.RateLimit.Ask, cfg.RateLimit.Window)
	defer askLimiter.Close()
	mcpLimiter := middleware.NewRateLimiter(cfg.RateLimit.MCP, cfg.RateLimit.Window)
	defer mcpLimiter.Close()

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	corsOrigins := []string{"*"}
	if cfg.FrontendURL != "" {
		corsOrigins = []string{cfg.FrontendURL}
	}
	r.Use(middleware.CORS(corsOrigins))

	// Public routes.
	r.Get("/", handler.HandleRoot)
	r.Get("/healthz", handler.HandleHealth)
	r.Get("/api/runs", handler.HandleListRuns)
	r.Post("/api/transcribe", handler.HandleTranscribe)

	r.Group(func(r chi.Router) {
		r.Use(askLimiter.Limit)
		r.Post("/api/ask", handler.HandleAsk)
	})

	r.Group(func(r chi.Router) {
		r.Use(mcpLimiter.Limit)
		r.Post("/mcp/rpc", mcpServer.HandleRPC)
		r.Get("/mcp/info", mcpServer.HandleInfo)
	})

	// WebSocket endpoint.
	r.Get("/ws/assist", wsHandler.HandleAssist)

	// Create server. WriteTimeout stays 0 so long assistant runs can stream
	// over the websocket without being cut off.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start TTL worker for the run ledger.
	store.StartTTLWorker(ctx, repo, cfg.RunRecordTTL)
	slog.Info("TTL worker started", "run_record_ttl", cfg.RunRecordTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}
