package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vedran77/pulsefeed/internal/config"
	"github.com/vedran77/pulsefeed/internal/database"
	"github.com/vedran77/pulsefeed/internal/logging"
	postgresrepo "github.com/vedran77/pulsefeed/internal/repository/postgres"
	"github.com/vedran77/pulsefeed/internal/service"
	"github.com/vedran77/pulsefeed/internal/transport/http/handlers"
	"github.com/vedran77/pulsefeed/internal/transport/http/middleware"
	"github.com/vedran77/pulsefeed/internal/transport/ws"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.LogFormat, cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.Connect(ctx, cfg.DatabaseURL())
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("connected to database", zap.String("host", cfg.DBHost), zap.String("name", cfg.DBName))

	// Repositories
	accountRepo := postgresrepo.NewAccountRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)

	// WebSocket hub
	hub := ws.NewHub(logger)

	// Services
	authService := service.NewAuthService(accountRepo, cfg.JWTSecret)
	messageService := service.NewMessageService(messageRepo)
	messageService.SetNotifier(ws.NewHubNotifier(hub))

	// Handlers
	httpLogger := logger.Named("http")
	authHandler := handlers.NewAuthHandler(authService, httpLogger)
	messageHandler := handlers.NewMessageHandler(messageService, httpLogger)

	optionalAuth := middleware.OptionalAuth(cfg.JWTSecret)
	historyLimit := middleware.NewRateLimiter(cfg.HistoryRateLimit, cfg.HistoryRateBurst)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)

	// Conversations
	mux.Handle("GET /api/v1/conversations/{id}", historyLimit.Middleware(http.HandlerFunc(messageHandler.List)))
	mux.Handle("GET /api/v1/conversations/{id}/{before}", historyLimit.Middleware(http.HandlerFunc(messageHandler.List)))
	mux.Handle("POST /api/v1/conversations/{id}/messages", optionalAuth(http.HandlerFunc(messageHandler.Send)))

	// WebSocket
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, cfg.JWTSecret))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           middleware.CORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
