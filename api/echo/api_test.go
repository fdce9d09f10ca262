package echo_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.echoid.dev/verify/api"
	echoapi "go.echoid.dev/verify/api/echo"
	"go.echoid.dev/verify/holder"
	"go.echoid.dev/verify/internal/zkmock"
	"go.echoid.dev/verify/protocol"
	"go.echoid.dev/verify/session"
	"go.echoid.dev/verify/verifier"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	registry := session.NewMemoryRegistry(0)
	t.Cleanup(func() { _ = registry.Close() })

	e := echo.New()
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	// The server's own URL becomes the callback host, so issued requests
	// point back at this instance.
	svc := verifier.NewService(registry, nil, srv.URL, "Proof verification")
	echoapi.NewVerifierAPI(svc).RegisterRoutes(e)

	return srv
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestSignInEndpoint(t *testing.T) {
	srv := newTestServer(t)

	var request protocol.AuthorizationRequest
	code := getJSON(t, srv.URL+"/api/sign-in", &request)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, protocol.AuthorizationRequestType, request.Type)
	assert.Equal(t, protocol.MediaTypePlainJSON, request.Typ)
	assert.NotEmpty(t, request.ThreadID)
	assert.Contains(t, request.Body.CallbackURL, srv.URL)
}

func TestAuthRequestAlias(t *testing.T) {
	srv := newTestServer(t)

	var request protocol.AuthorizationRequest
	code := getJSON(t, srv.URL+"/api/auth-request", &request)

	assert.Equal(t, http.StatusOK, code)
	assert.NotEmpty(t, request.ThreadID)
}

func TestStatusEndpoint_MissingSessionID(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var apiErr api.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&apiErr))
	assert.Equal(t, api.StatusError, apiErr.Status)
	assert.Equal(t, "sessionId required", apiErr.Error)
}

func TestCallbackEndpoint_AlwaysSucceeds(t *testing.T) {
	srv := newTestServer(t)

	for name, body := range map[string]string{
		"valid envelope": `{"thid":"S1","body":{"scope":[{"proof":{"pi_a":["1"]},"pub_signals":["1"]}]}}`,
		"flat":           `{"proof":{"pi_a":["1"]},"pub_signals":["1"]}`,
		"empty":          `{}`,
		"garbage":        `pi_a=broken`,
	} {
		t.Run(name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/callback?sessionId=cb-test", "application/json", strings.NewReader(body))
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var ack api.CallbackAck
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
			assert.Equal(t, api.StatusSuccess, ack.Status)
		})
	}
}

// Full protocol walk: issue, classify, approve with the mock prover, let the
// orchestrator POST the proof back, poll until verified.
func TestEndToEndVerificationFlow(t *testing.T) {
	srv := newTestServer(t)
	ctx := context.Background()

	var request protocol.AuthorizationRequest
	code := getJSON(t, srv.URL+"/api/sign-in", &request)
	require.Equal(t, http.StatusOK, code)
	sessionID := request.ThreadID

	var pending api.StatusResponse
	getJSON(t, srv.URL+"/api/status?sessionId="+sessionID, &pending)
	require.Equal(t, api.StatusPending, pending.Status)

	payload, err := json.Marshal(request)
	require.NoError(t, err)

	orchestrator := holder.NewOrchestrator(zkmock.Prover{}, nil, "")
	verificationReq, err := orchestrator.ProcessQRCode(ctx, string(payload))
	require.NoError(t, err)
	require.Equal(t, sessionID, verificationReq.SessionID)

	require.NoError(t, orchestrator.Approve(ctx, verificationReq.ID))

	var verified api.StatusResponse
	getJSON(t, srv.URL+"/api/status?sessionId="+sessionID, &verified)
	assert.Equal(t, api.StatusVerified, verified.Status)
	assert.NotEmpty(t, verified.PublicSignals)
	assert.NotEmpty(t, verified.Proof)
	assert.NotZero(t, verified.ReceivedAt)
}
