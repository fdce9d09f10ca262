// Package holder drives the wallet side of a verification flow: classify the
// scanned payload, generate a proof through the injected capability, deliver
// the response to the verifier callback.
package holder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"go.echoid.dev/verify/domain"
	"go.echoid.dev/verify/protocol"
	"go.echoid.dev/verify/qr"
)

var (
	// ErrRequestNotFound means the request id is unknown to this wallet.
	ErrRequestNotFound = errors.New("verification request not found")
	// ErrRequestNotPending means the request already left the pending state;
	// duplicate scans and double taps of the approve button land here.
	ErrRequestNotPending = errors.New("verification request already handled")
)

// DefaultHolderDID identifies the wallet in proof responses when no identity
// was configured.
const DefaultHolderDID = "did:polygonid:polygon:main:user-wallet"

// Orchestrator owns the wallet-side request state machine. Transitions are
// forward only: pending -> generating -> approved | rejected | failed, and a
// request in generating or a terminal state rejects re-invocation.
type Orchestrator struct {
	mu       sync.Mutex
	requests map[string]*domain.VerificationRequest

	classifier *qr.Classifier
	prover     ProofGenerator
	callbacks  *CallbackClient
	holderDID  string
}

// NewOrchestrator creates a wallet orchestrator around the given proof
// capability. holderDID may be empty; responses then carry DefaultHolderDID.
func NewOrchestrator(prover ProofGenerator, callbacks *CallbackClient, holderDID string) *Orchestrator {
	if callbacks == nil {
		callbacks = NewCallbackClient(nil)
	}
	if holderDID == "" {
		holderDID = DefaultHolderDID
	}
	return &Orchestrator{
		requests:   make(map[string]*domain.VerificationRequest),
		classifier: &qr.Classifier{},
		prover:     prover,
		callbacks:  callbacks,
		holderDID:  holderDID,
	}
}

// ProcessQRCode classifies a scanned payload and registers the resulting
// request as pending. Classification failures are recoverable per scan; the
// caller surfaces them and keeps scanning.
func (o *Orchestrator) ProcessQRCode(_ context.Context, payload string) (*domain.VerificationRequest, error) {
	request, err := o.classifier.Classify(payload)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.requests[request.ID] = request
	o.mu.Unlock()

	log.Info().Str("request_id", request.ID).Str("session_id", request.SessionID).
		Str("purpose", request.Purpose).Msg("Verification request registered")

	return o.snapshot(request.ID)
}

// Approve generates proofs for the request and delivers the response to the
// verifier. Proof generation success is what flips the request to approved;
// a failed callback POST is logged and does not revert local state, so the
// wallet stays responsive under network partition.
func (o *Orchestrator) Approve(ctx context.Context, requestID string) error {
	req, err := o.transition(requestID, domain.RequestStatusGenerating)
	if err != nil {
		return err
	}

	proofs, err := o.prover.Generate(ctx, req)
	if err != nil {
		o.setStatus(requestID, domain.RequestStatusFailed)
		return fmt.Errorf("proof generation failed for request %s: %w", requestID, err)
	}

	response := protocol.NewProofResponse(req, o.holderDID, proofs)
	payload, err := json.Marshal(response)
	if err != nil {
		o.setStatus(requestID, domain.RequestStatusFailed)
		return fmt.Errorf("failed to encode proof response: %w", err)
	}

	if req.CallbackURL != "" {
		if err := o.callbacks.Submit(ctx, req.CallbackURL, payload); err != nil {
			log.Warn().Err(err).Str("request_id", requestID).
				Str("callback_url", req.CallbackURL).
				Msg("Proof generated but callback delivery failed")
		} else {
			log.Info().Str("request_id", requestID).Str("session_id", req.SessionID).
				Msg("Proof sent to callback URL")
		}
	} else {
		log.Info().Str("request_id", requestID).Msg("No callback URL, proof kept local")
	}

	o.setStatus(requestID, domain.RequestStatusApproved)
	return nil
}

// Reject declines the request. No proof generation, no callback POST.
func (o *Orchestrator) Reject(_ context.Context, requestID string) error {
	if _, err := o.transition(requestID, domain.RequestStatusRejected); err != nil {
		return err
	}
	log.Info().Str("request_id", requestID).Msg("Verification request rejected")
	return nil
}

// Request returns a copy of one registered request.
func (o *Orchestrator) Request(requestID string) (*domain.VerificationRequest, error) {
	return o.snapshot(requestID)
}

// Requests returns copies of all registered requests.
func (o *Orchestrator) Requests() []*domain.VerificationRequest {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]*domain.VerificationRequest, 0, len(o.requests))
	for _, req := range o.requests {
		cp := *req
		out = append(out, &cp)
	}
	return out
}

// transition atomically moves a pending request into next and returns a copy
// to work on outside the lock. Any non-pending state fails the debounce.
func (o *Orchestrator) transition(requestID string, next domain.RequestStatus) (*domain.VerificationRequest, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	req, ok := o.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if req.Status != domain.RequestStatusPending {
		return nil, ErrRequestNotPending
	}

	req.Status = next
	cp := *req
	return &cp, nil
}

func (o *Orchestrator) setStatus(requestID string, status domain.RequestStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if req, ok := o.requests[requestID]; ok {
		req.Status = status
	}
}

func (o *Orchestrator) snapshot(requestID string) (*domain.VerificationRequest, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	req, ok := o.requests[requestID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	cp := *req
	return &cp, nil
}
