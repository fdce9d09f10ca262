package holder_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.echoid.dev/verify/domain"
	"go.echoid.dev/verify/holder"
	"go.echoid.dev/verify/internal/zkmock"
	"go.echoid.dev/verify/protocol"
)

// countingProver wraps the mock prover and counts invocations; some tests
// also make it slow or failing.
type countingProver struct {
	calls int32
	delay time.Duration
	err   error
}

func (p *countingProver) Generate(ctx context.Context, req *domain.VerificationRequest) ([]domain.GeneratedProof, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return nil, p.err
	}
	return zkmock.Prover{}.Generate(ctx, req)
}

func requestPayload(t *testing.T, callbackURL string) string {
	t.Helper()
	msg := protocol.NewAuthorizationRequest("S1", callbackURL, "Proof verification")
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return string(raw)
}

func TestProcessQRCode(t *testing.T) {
	o := holder.NewOrchestrator(&countingProver{}, nil, "")

	req, err := o.ProcessQRCode(context.Background(), requestPayload(t, "http://verifier/api/callback?sessionId=S1"))
	require.NoError(t, err)

	assert.Equal(t, domain.RequestStatusPending, req.Status)
	assert.Equal(t, "S1", req.SessionID)
	assert.Len(t, o.Requests(), 1)
}

func TestProcessQRCode_InvalidPayloadIsRecoverable(t *testing.T) {
	o := holder.NewOrchestrator(&countingProver{}, nil, "")
	ctx := context.Background()

	_, err := o.ProcessQRCode(ctx, "junk")
	require.Error(t, err)

	// The orchestrator must keep accepting scans after a failure.
	_, err = o.ProcessQRCode(ctx, requestPayload(t, "http://verifier/cb"))
	assert.NoError(t, err)
}

func TestApprove_DeliversProofToCallback(t *testing.T) {
	received := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	prover := &countingProver{}
	o := holder.NewOrchestrator(prover, nil, "did:polygonid:polygon:main:wallet")
	ctx := context.Background()

	req, err := o.ProcessQRCode(ctx, requestPayload(t, srv.URL+"/api/callback?sessionId=S1"))
	require.NoError(t, err)
	require.NoError(t, o.Approve(ctx, req.ID))

	final, err := o.Request(req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, final.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&prover.calls))

	select {
	case body := <-received:
		sub, err := protocol.DecodeCallbackBody(body)
		require.NoError(t, err)
		assert.Equal(t, "S1", sub.SessionID)
		assert.False(t, sub.Empty())
	case <-time.After(time.Second):
		t.Fatal("no callback delivery observed")
	}
}

// Scenario E: a second approve on the same request is a no-op and exactly
// one proof is generated.
func TestApprove_Debounce(t *testing.T) {
	prover := &countingProver{delay: 50 * time.Millisecond}
	o := holder.NewOrchestrator(prover, nil, "")
	ctx := context.Background()

	req, err := o.ProcessQRCode(ctx, requestPayload(t, ""))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = o.Approve(ctx, req.ID)
		}(i)
	}
	wg.Wait()

	var succeeded, debounced int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, holder.ErrRequestNotPending):
			debounced++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, debounced)
	assert.Equal(t, int32(1), atomic.LoadInt32(&prover.calls), "exactly one proof generated")
}

func TestApprove_AfterTerminalStateFails(t *testing.T) {
	o := holder.NewOrchestrator(&countingProver{}, nil, "")
	ctx := context.Background()

	req, err := o.ProcessQRCode(ctx, requestPayload(t, ""))
	require.NoError(t, err)
	require.NoError(t, o.Approve(ctx, req.ID))

	assert.ErrorIs(t, o.Approve(ctx, req.ID), holder.ErrRequestNotPending)
	assert.ErrorIs(t, o.Reject(ctx, req.ID), holder.ErrRequestNotPending)
}

func TestApprove_CallbackFailureKeepsApprovedState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	o := holder.NewOrchestrator(&countingProver{}, nil, "")
	ctx := context.Background()

	req, err := o.ProcessQRCode(ctx, requestPayload(t, srv.URL+"/api/callback"))
	require.NoError(t, err)

	// Proof generation succeeded, so delivery failure must not surface.
	require.NoError(t, o.Approve(ctx, req.ID))

	final, err := o.Request(req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, final.Status)
}

func TestApprove_NoCallbackURL(t *testing.T) {
	o := holder.NewOrchestrator(&countingProver{}, nil, "")
	ctx := context.Background()

	req, err := o.ProcessQRCode(ctx, requestPayload(t, ""))
	require.NoError(t, err)
	require.NoError(t, o.Approve(ctx, req.ID))

	final, err := o.Request(req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, final.Status)
}

func TestApprove_ProofGenerationFailure(t *testing.T) {
	prover := &countingProver{err: errors.New("circuit unavailable")}
	o := holder.NewOrchestrator(prover, nil, "")
	ctx := context.Background()

	req, err := o.ProcessQRCode(ctx, requestPayload(t, ""))
	require.NoError(t, err)

	err = o.Approve(ctx, req.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit unavailable")

	final, err := o.Request(req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusFailed, final.Status, "failure visible, never approved")
}

func TestReject(t *testing.T) {
	prover := &countingProver{}
	o := holder.NewOrchestrator(prover, nil, "")
	ctx := context.Background()

	req, err := o.ProcessQRCode(ctx, requestPayload(t, "http://verifier/cb"))
	require.NoError(t, err)
	require.NoError(t, o.Reject(ctx, req.ID))

	final, err := o.Request(req.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusRejected, final.Status)
	assert.Equal(t, int32(0), atomic.LoadInt32(&prover.calls), "reject never generates a proof")
}

func TestUnknownRequest(t *testing.T) {
	o := holder.NewOrchestrator(&countingProver{}, nil, "")
	ctx := context.Background()

	assert.ErrorIs(t, o.Approve(ctx, "missing"), holder.ErrRequestNotFound)
	assert.ErrorIs(t, o.Reject(ctx, "missing"), holder.ErrRequestNotFound)
	_, err := o.Request("missing")
	assert.ErrorIs(t, err, holder.ErrRequestNotFound)
}
