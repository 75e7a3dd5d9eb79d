package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"average-calculator/internal/config"
	"average-calculator/internal/handler"
	"average-calculator/internal/metrics"
	"average-calculator/internal/middleware"
	"average-calculator/internal/repository"
	"average-calculator/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	setupLogging(cfg)

	if exp, ok := config.TokenExpiry(cfg.AuthToken); ok && time.Now().After(exp) {
		log.Warn().Time("expired_at", exp).Msg("AUTH_TOKEN is expired, upstream calls will likely be rejected")
	} else if cfg.AuthToken == "" {
		log.Warn().Msg("AUTH_TOKEN is empty, upstream calls are sent without credentials")
	}

	// storage
	var store repository.Store
	backend := "memory"
	if cfg.RedisAddr != "" {
		r, err := repository.NewRedisStore(cfg.RedisAddr, cfg.WindowSize)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect redis")
		}
		store = r
		backend = "redis"
	} else {
		store = repository.NewMemoryStore(cfg.WindowSize)
	}

	clock := clockwork.NewRealClock()
	budget := cfg.RequestTimeout.Duration()

	// metrics
	metricsRegistry := metrics.NewRegistry()

	// services
	breakers := service.NewCircuitBreakerPool(cfg.CircuitFailureThreshold, cfg.CircuitResetTimeout.Duration(), clock)
	fetcher := service.NewHTTPFetcher(cfg.UpstreamBaseURL, cfg.AuthToken, budget, breakers)
	numbers := service.NewNumbers(store, fetcher, budget, clock, metricsRegistry)

	// handlers
	router := handler.NewRouter(
		handler.NewNumbersHandler(numbers, metricsRegistry),
		handler.NewAdminHandler(store, breakers),
		handler.NewHealthHandler(store, backend),
		metricsRegistry.Handler(),
	)

	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	var limiter *middleware.ClientLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = middleware.NewClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.TrustProxy, clock)
		idle := cfg.RateLimitIdleTTL.Duration()
		limiter.StartCleanup(bgCtx, idle/2, idle)
	}

	// middleware chain, outermost last
	h := middleware.RateLimit(limiter, metricsRegistry)(router)
	h = middleware.Recover(h)
	h = middleware.Logging(h)
	h = middleware.RequestID(h)

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", cfg.ListenAddr()).
			Str("store", backend).
			Int("window_size", cfg.WindowSize).
			Dur("budget", budget).
			Str("upstream", cfg.UpstreamBaseURL).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")
	stopBackground()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server exited")
}

func setupLogging(cfg config.Config) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
