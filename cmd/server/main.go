package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/checkin-relay-go/internal/config"
	"github.com/openclaw/checkin-relay-go/internal/database"
	"github.com/openclaw/checkin-relay-go/internal/handler"
	"github.com/openclaw/checkin-relay-go/internal/jobs"
	"github.com/openclaw/checkin-relay-go/internal/middleware"
	"github.com/openclaw/checkin-relay-go/internal/redis"
	"github.com/openclaw/checkin-relay-go/internal/registry"
	"github.com/openclaw/checkin-relay-go/internal/relay"
	"github.com/openclaw/checkin-relay-go/internal/repository"
	"github.com/openclaw/checkin-relay-go/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	setLogLevel(cfg.LogLevel)

	if err := database.MigrateUp(cfg.DatabaseURL); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("redis connected")

	sessionRegistry := registry.New(cfg.SessionTTL())
	hub := relay.NewHub(sessionRegistry, cfg.MaxScannersPerSession)
	defer hub.Close()

	checkinRepo := repository.NewCheckinRepository(db.DB)
	checkinService := service.NewCheckinService(checkinRepo)
	rateLimiter := service.NewRateLimiter(redisClient.Client)

	createLimitMiddleware := middleware.NewIPRateLimitMiddleware(
		rateLimiter, cfg.CreateSessionPerMin, config.CreateSessionWindow, "session-create",
	)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)

	sessionHandler := handler.NewSessionHandler(sessionRegistry)
	checkinHandler := handler.NewCheckinHandler(sessionRegistry, checkinService)
	wsHandler := handler.NewWSHandler(hub)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"sessions":  sessionRegistry.Len(),
			"timestamp": time.Now().UnixMilli(),
		})
	})

	// The websocket route stays outside the request timeout; connections
	// live as long as the pairing does.
	r.Get("/ws", wsHandler.ServeHTTP)

	r.Route("/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
		r.Use(bodyLimitMiddleware.Handler)

		r.Route("/sessions", func(r chi.Router) {
			r.With(createLimitMiddleware.Handler).Post("/", sessionHandler.CreateSession)
			r.Post("/refresh", sessionHandler.RefreshSession)
		})

		r.Mount("/checkins", checkinHandler.Routes())
	})

	cleanupJob := jobs.NewCleanupJob(
		sessionRegistry, checkinRepo, cfg.CheckinRetention(), cfg.SweepInterval(),
	)
	cleanupJob.Start()
	defer cleanupJob.Stop()

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     r,
		ReadTimeout: 0, // websocket reads have their own deadlines
		IdleTimeout: config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
