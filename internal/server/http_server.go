package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"

	echoapi "go.echoid.dev/verify/api/echo"
	"go.echoid.dev/verify/config"
)

// NewHTTPServer creates and configures the verifier Echo HTTP server.
// Middleware mirrors the reference deployment: permissive CORS for wallet
// apps, a body limit large enough for proof submissions, request logging
// and tracing.
func NewHTTPServer(cfg *config.ServerConfig, verifierAPI *echoapi.VerifierAPI) *http.Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(otelecho.Middleware(cfg.OtelServiceName))

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			event := log.Info()
			if err != nil {
				event = log.Error().Err(err)
			}
			event.
				Str("method", c.Request().Method).
				Str("path", c.Request().URL.Path).
				Int("status", c.Response().Status).
				Dur("latency", time.Since(start)).
				Str("ip", c.RealIP()).
				Msg("HTTP request")

			return err
		}
	})

	verifierAPI.RegisterRoutes(e)

	return &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      e,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}
