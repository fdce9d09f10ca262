// Package echo exposes the verifier service over HTTP.
package echo

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"go.echoid.dev/verify/api"
	"go.echoid.dev/verify/verifier"
)

// VerifierAPI struct to hold dependencies.
type VerifierAPI struct {
	service *verifier.Service
}

// NewVerifierAPI initializes the verifier HTTP API.
func NewVerifierAPI(service *verifier.Service) *VerifierAPI {
	return &VerifierAPI{service: service}
}

// RegisterRoutes registers the verification routes. /api/auth-request is an
// alias kept for wallets built against the older verifier sample.
func (va *VerifierAPI) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/sign-in", va.SignInHandler)
	e.GET("/api/auth-request", va.SignInHandler)
	e.POST("/api/callback", va.CallbackHandler)
	e.GET("/api/status", va.StatusHandler)
}

// SignInHandler issues a new authorization request with a fresh session.
func (va *VerifierAPI) SignInHandler(c echo.Context) error {
	request, err := va.service.IssueRequest(c.Request().Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to create auth request")
		return c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Status: api.StatusError,
			Error:  "failed to create auth request",
		})
	}

	return c.JSON(http.StatusOK, request)
}

// CallbackHandler ingests a proof submission. The session id comes from the
// query string or, failing that, the thread id inside the body. Always
// answers 200: partial or malformed submissions must not 5xx the verifier.
func (va *VerifierAPI) CallbackHandler(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to read callback body")
		body = nil
	}

	ack := va.service.IngestCallback(c.Request().Context(), c.QueryParam("sessionId"), body)

	return c.JSON(http.StatusOK, ack)
}

// StatusHandler reports the verification state of one session.
func (va *VerifierAPI) StatusHandler(c echo.Context) error {
	status, err := va.service.PollStatus(c.Request().Context(), c.QueryParam("sessionId"))
	if err != nil {
		if errors.Is(err, verifier.ErrMissingSessionID) {
			return c.JSON(http.StatusBadRequest, api.ErrorResponse{
				Status: api.StatusError,
				Error:  "sessionId required",
			})
		}

		log.Error().Err(err).Msg("Failed to poll session status")
		return c.JSON(http.StatusInternalServerError, api.ErrorResponse{
			Status: api.StatusError,
			Error:  "failed to load session",
		})
	}

	return c.JSON(http.StatusOK, status)
}
