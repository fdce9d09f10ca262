package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	echoapi "go.echoid.dev/verify/api/echo"
	"go.echoid.dev/verify/config"
	"go.echoid.dev/verify/internal/server"
	"go.echoid.dev/verify/session"
	sessionmongo "go.echoid.dev/verify/session/mongodb"
	sessionredis "go.echoid.dev/verify/session/redis"
	"go.echoid.dev/verify/tracing"
	"go.echoid.dev/verify/verifier"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	initLogger(cfg)
	log.Info().
		Str("http_port", cfg.HTTPPort).
		Str("host_url", cfg.HostURL).
		Str("registry_backend", cfg.RegistryBackend).
		Int("session_ttl_min", cfg.SessionTTLMin).
		Msg("Starting verifier server")

	tp, err := tracing.InitTracerProvider(cfg.OtelServiceName)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize TracerProvider")
	}

	ctx := context.Background()
	registry, closeRegistry, err := buildRegistry(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize session registry")
	}

	svc := verifier.NewService(registry, nil, cfg.HostURL, cfg.AuthReason)
	httpServer := server.NewHTTPServer(cfg, echoapi.NewVerifierAPI(svc))

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("TracerProvider shutdown failed")
	}
	if closeRegistry != nil {
		if err := closeRegistry(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Registry shutdown failed")
		}
	}
	log.Info().Msg("Shutdown complete")
}

func initLogger(cfg *config.ServerConfig) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
		log.Warn().Str("configured_log_level", cfg.LogLevel).Msg("Invalid LOG_LEVEL, defaulting to info")
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}

// buildRegistry selects the session store backend. The returned close
// function may be nil when nothing needs tearing down.
func buildRegistry(ctx context.Context, cfg *config.ServerConfig) (session.Registry, func(context.Context) error, error) {
	ttl := time.Duration(cfg.SessionTTLMin) * time.Minute

	switch cfg.RegistryBackend {
	case config.BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, nil, err
		}
		return sessionredis.NewRegistry(rdb, cfg.RedisPrefix, ttl), func(context.Context) error {
			return rdb.Close()
		}, nil

	case config.BackendMongoDB:
		mongoClient, err := sessionmongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		registry, err := sessionmongo.NewRegistry(ctx, mongoClient.Database(cfg.MongoDBName), ttl)
		if err != nil {
			return nil, nil, err
		}
		return registry, mongoClient.Disconnect, nil

	default:
		registry := session.NewMemoryRegistry(ttl)
		return registry, func(context.Context) error {
			return registry.Close()
		}, nil
	}
}
