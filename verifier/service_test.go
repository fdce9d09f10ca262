package verifier_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.echoid.dev/verify/api"
	"go.echoid.dev/verify/protocol"
	"go.echoid.dev/verify/session"
	"go.echoid.dev/verify/verifier"
)

func newService(t *testing.T) *verifier.Service {
	t.Helper()
	registry := session.NewMemoryRegistry(0)
	t.Cleanup(func() { _ = registry.Close() })
	return verifier.NewService(registry, nil, "http://localhost:8080", "Proof verification")
}

// Scenario A: issue request, session created pending, poll returns pending.
func TestIssueRequestAndPoll(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	request, err := svc.IssueRequest(ctx)
	require.NoError(t, err)

	assert.Equal(t, protocol.AuthorizationRequestType, request.Type)
	assert.Equal(t, request.ID, request.ThreadID)
	assert.Contains(t, request.Body.CallbackURL, "/api/callback?sessionId="+request.ThreadID,
		"callback URL must embed the session id for async correlation")
	assert.True(t, strings.HasPrefix(request.Body.CallbackURL, "http://localhost:8080"))

	status, err := svc.PollStatus(ctx, request.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, api.StatusPending, status.Status)
	assert.Equal(t, request.ThreadID, status.SessionID)
}

// Scenario B: callback correlated by body thread id alone.
func TestIngestCallback_SessionFromThreadID(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	body := []byte(`{"thid":"S1","body":{"scope":[{"proof":{"pi_a":["1"]},"pub_signals":["1","2"]}]}}`)
	ack := svc.IngestCallback(ctx, "", body)

	assert.Equal(t, api.StatusSuccess, ack.Status)
	assert.Equal(t, "S1", ack.SessionID)

	status, err := svc.PollStatus(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, api.StatusVerified, status.Status)
	assert.Equal(t, []string{"1", "2"}, status.PublicSignals)
	assert.NotZero(t, status.ReceivedAt)
}

func TestIngestCallback_QuerySessionIDWinsOverThreadID(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	body := []byte(`{"thid":"from-body","proof":{"pi_a":["1"]},"pub_signals":["1"]}`)
	ack := svc.IngestCallback(ctx, "from-query", body)
	assert.Equal(t, "from-query", ack.SessionID)

	status, err := svc.PollStatus(ctx, "from-query")
	require.NoError(t, err)
	assert.Equal(t, api.StatusVerified, status.Status)
}

func TestIngestCallback_NoResolvableSessionID(t *testing.T) {
	svc := newService(t)

	ack := svc.IngestCallback(context.Background(), "", []byte(`{"proof":{"pi_a":["1"]}}`))

	assert.Equal(t, api.StatusSuccess, ack.Status, "availability beats strict rejection")
	assert.Empty(t, ack.SessionID)
}

func TestIngestCallback_MalformedBodyStillSucceeds(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	ack := svc.IngestCallback(ctx, "S2", []byte("definitely not json"))
	assert.Equal(t, api.StatusSuccess, ack.Status)
	assert.Equal(t, "S2", ack.SessionID)

	// The session still flips to verified with an empty payload recorded.
	status, err := svc.PollStatus(ctx, "S2")
	require.NoError(t, err)
	assert.Equal(t, api.StatusVerified, status.Status)
	assert.Empty(t, status.PublicSignals)
}

func TestPollStatus_MissingSessionID(t *testing.T) {
	svc := newService(t)

	_, err := svc.PollStatus(context.Background(), "")
	assert.ErrorIs(t, err, verifier.ErrMissingSessionID)
}

// Unknown sessions poll as pending: the session may simply not have
// propagated yet.
func TestPollStatus_UnknownSessionIsPending(t *testing.T) {
	svc := newService(t)

	status, err := svc.PollStatus(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.Equal(t, api.StatusPending, status.Status)
}

// Poll idempotence: repeated pending polls, then exactly one recordProof,
// then every later poll reports verified with the same payload.
func TestPollStatus_Idempotence(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	request, err := svc.IssueRequest(ctx)
	require.NoError(t, err)
	sessionID := request.ThreadID

	for i := 0; i < 3; i++ {
		status, err := svc.PollStatus(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, api.StatusPending, status.Status)
	}

	body := fmt.Sprintf(`{"thid":%q,"proof":{"pi_a":["7"]},"pub_signals":["7"]}`, sessionID)
	svc.IngestCallback(ctx, "", []byte(body))

	var last *api.StatusResponse
	for i := 0; i < 3; i++ {
		status, err := svc.PollStatus(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, api.StatusVerified, status.Status)
		if last != nil {
			assert.Equal(t, last.PublicSignals, status.PublicSignals)
			assert.Equal(t, last.ReceivedAt, status.ReceivedAt)
		}
		last = status
	}
}

// Last-write-wins: a second callback replaces the first payload.
func TestIngestCallback_LastWriteWins(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	svc.IngestCallback(ctx, "S1", []byte(`{"proof":{"v":1},"pub_signals":["1"]}`))
	svc.IngestCallback(ctx, "S1", []byte(`{"proof":{"v":2},"pub_signals":["2"]}`))

	status, err := svc.PollStatus(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, status.PublicSignals)
	assert.JSONEq(t, `{"v":2}`, string(status.Proof))
}

type rejectingVerifier struct{}

func (rejectingVerifier) Verify(context.Context, *protocol.CallbackSubmission) error {
	return errors.New("state not found on chain")
}

// The reference deployment records proofs even when verification fails,
// logging the bypass instead of rejecting the submission.
func TestIngestCallback_VerifierFailureStillRecords(t *testing.T) {
	registry := session.NewMemoryRegistry(0)
	t.Cleanup(func() { _ = registry.Close() })
	svc := verifier.NewService(registry, rejectingVerifier{}, "http://localhost:8080", "")

	ack := svc.IngestCallback(context.Background(), "S1", []byte(`{"proof":{"pi_a":["1"]},"pub_signals":["1"]}`))
	assert.Equal(t, api.StatusSuccess, ack.Status)

	status, err := svc.PollStatus(context.Background(), "S1")
	require.NoError(t, err)
	assert.Equal(t, api.StatusVerified, status.Status)
}
