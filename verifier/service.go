// Package verifier orchestrates the verifier side of the flow: issuing
// authorization requests, ingesting proof callbacks and answering status
// polls against the session registry.
package verifier

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"go.echoid.dev/verify/api"
	"go.echoid.dev/verify/protocol"
	"go.echoid.dev/verify/session"
)

// ErrMissingSessionID is returned by PollStatus when no session id was
// supplied. It maps to a client error, never a server error.
var ErrMissingSessionID = errors.New("sessionId required")

// ProofVerifier is the opaque cryptographic capability checking a submitted
// proof against the issued query and chain state.
type ProofVerifier interface {
	Verify(ctx context.Context, submission *protocol.CallbackSubmission) error
}

// AcceptAllVerifier treats receipt as acceptance. This mirrors the reference
// deployment, which records proofs even when full verification is
// unavailable; swap in a real ProofVerifier for production semantics.
type AcceptAllVerifier struct{}

// Verify implements ProofVerifier.
func (AcceptAllVerifier) Verify(context.Context, *protocol.CallbackSubmission) error {
	return nil
}

// Service exposes the three verifier operations over any transport.
type Service struct {
	registry session.Registry
	verifier ProofVerifier
	hostURL  string
	reason   string
}

// NewService creates a verifier service. hostURL is the absolute base used
// to build callback URLs. A nil verifier defaults to AcceptAllVerifier.
func NewService(registry session.Registry, verifier ProofVerifier, hostURL, reason string) *Service {
	if verifier == nil {
		verifier = AcceptAllVerifier{}
	}
	if reason == "" {
		reason = "Proof verification"
	}
	return &Service{
		registry: registry,
		verifier: verifier,
		hostURL:  hostURL,
		reason:   reason,
	}
}

// IssueRequest generates a session, registers it as pending and returns the
// authorization request message carrying the correlated callback URL.
func (s *Service) IssueRequest(ctx context.Context) (*protocol.AuthorizationRequest, error) {
	sessionID := protocol.NewSessionID()
	callbackURL := fmt.Sprintf("%s/api/callback?sessionId=%s", s.hostURL, sessionID)

	request := protocol.NewAuthorizationRequest(sessionID, callbackURL, s.reason)

	if err := s.registry.Create(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("failed to create session %s: %w", sessionID, err)
	}

	log.Info().Str("session_id", sessionID).Str("callback_url", callbackURL).
		Msg("Auth request created")

	return request, nil
}

// IngestCallback processes a proof submission. The effective session id is
// the query parameter when present, else the thread id from the body. The
// ack is always a success envelope: malformed submissions are logged and
// simply not recorded, keeping the endpoint available during integration.
func (s *Service) IngestCallback(ctx context.Context, querySessionID string, body []byte) *api.CallbackAck {
	submission, err := protocol.DecodeCallbackBody(body)
	if err != nil {
		log.Warn().Err(err).Msg("Callback body did not decode, storing best-effort state")
	}

	sessionID := querySessionID
	if sessionID == "" {
		sessionID = submission.SessionID
	}

	if sessionID == "" {
		log.Warn().Msg("Received callback without a resolvable session id")
		return &api.CallbackAck{
			Status:  api.StatusSuccess,
			Message: "Callback received but no session id was resolvable.",
		}
	}

	if err := s.verifier.Verify(ctx, submission); err != nil {
		// Reference behavior: record anyway, flag the bypass in the logs.
		log.Warn().Err(err).Str("session_id", sessionID).
			Msg("Proof verification failed, accepting submission anyway")
	}

	if err := s.registry.RecordProof(ctx, sessionID, submission.Proof, submission.PublicSignals); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Failed to record proof")
		return &api.CallbackAck{
			Status:    api.StatusSuccess,
			Message:   "Callback received but the proof could not be stored.",
			SessionID: sessionID,
		}
	}

	log.Info().Str("session_id", sessionID).Bool("empty_proof", submission.Empty()).
		Msg("Stored proof for session")

	return &api.CallbackAck{
		Status:    api.StatusSuccess,
		Message:   "Proof stored. Front end may poll /api/status to see this.",
		SessionID: sessionID,
	}
}

// PollStatus reports the state of one session. Unknown sessions come back
// pending because a session may not have propagated yet; only a missing
// session id is an error.
func (s *Service) PollStatus(ctx context.Context, sessionID string) (*api.StatusResponse, error) {
	if sessionID == "" {
		return nil, ErrMissingSessionID
	}

	rec, err := s.registry.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return &api.StatusResponse{
				Status:    api.StatusPending,
				Message:   "No proof received yet for this session.",
				SessionID: sessionID,
			}, nil
		}
		return nil, fmt.Errorf("failed to load session %s: %w", sessionID, err)
	}

	if rec.Status != session.StatusVerified {
		return &api.StatusResponse{
			Status:    api.StatusPending,
			Message:   "No proof received yet for this session.",
			SessionID: sessionID,
		}, nil
	}

	return &api.StatusResponse{
		Status:        api.StatusVerified,
		Proof:         rec.Proof,
		PublicSignals: rec.PublicSignals,
		ReceivedAt:    rec.ReceivedAt.UnixMilli(),
		SessionID:     sessionID,
	}, nil
}
