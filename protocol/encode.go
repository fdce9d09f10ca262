package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"go.echoid.dev/verify/domain"
)

// NewSessionID returns a fresh collision-resistant session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// NewAuthorizationRequest builds the wire message a verifier hands out.
// When sessionID is empty a fresh one is generated; id and thid both equal
// the session id so the response thread resolves back to the session.
func NewAuthorizationRequest(sessionID, callbackURL, reason string) *AuthorizationRequest {
	if sessionID == "" {
		sessionID = NewSessionID()
	}

	return &AuthorizationRequest{
		ID:       sessionID,
		Typ:      MediaTypePlainJSON,
		Type:     AuthorizationRequestType,
		ThreadID: sessionID,
		Body: AuthorizationRequestBody{
			CallbackURL: callbackURL,
			Reason:      reason,
			Scope:       []ProofQuery{},
			SessionID:   sessionID,
		},
	}
}

// NewProofResponse builds the holder's response message for req. Scope ids
// are one-based positions of the supplied proofs, thid carries the session
// id and the message is addressed to the requester's DID. Pure: neither req
// nor proofs are mutated.
func NewProofResponse(req *domain.VerificationRequest, from string, proofs []domain.GeneratedProof) *ProofResponse {
	scope := make([]ZKProofMessage, 0, len(proofs))
	for i, p := range proofs {
		scope = append(scope, ZKProofMessage{
			ID:         i + 1,
			CircuitID:  p.CircuitID,
			Proof:      p.Proof,
			PubSignals: p.PublicSignals,
		})
	}

	return &ProofResponse{
		ID:       req.ID + "-response",
		Typ:      MediaTypePlainJSON,
		Type:     ContractInvokeRequestType,
		ThreadID: req.SessionID,
		Body: ProofResponseBody{
			Message: "Verification completed successfully",
			Scope:   scope,
		},
		From: from,
		To:   req.Requester.DID,
	}
}

// callbackEnvelope matches both legal callback-body shapes at once: the full
// protocol envelope carries body.scope, the flat shape carries proof and
// pub_signals at the top level.
type callbackEnvelope struct {
	ThreadID   string          `json:"thid"`
	Body       *callbackBody   `json:"body"`
	Proof      json.RawMessage `json:"proof"`
	PubSignals []string        `json:"pub_signals"`
}

type callbackBody struct {
	Scope []ZKProofMessage `json:"scope"`
}

// DecodeCallbackBody normalizes a callback submission from either wire
// shape. Missing proof material is not an error: the submission comes back
// empty and the verifier stays available. Only unparseable JSON returns an
// error, and even then the empty submission is usable by the caller.
func DecodeCallbackBody(raw []byte) (*CallbackSubmission, error) {
	sub := &CallbackSubmission{}

	var env callbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return sub, fmt.Errorf("decode callback body: %w", err)
	}

	sub.SessionID = env.ThreadID

	switch {
	case env.Body != nil && len(env.Body.Scope) > 0:
		first := env.Body.Scope[0]
		sub.Proof = rawOrNil(first.Proof)
		sub.PublicSignals = first.PubSignals
	case len(rawOrNil(env.Proof)) > 0:
		sub.Proof = env.Proof
		sub.PublicSignals = env.PubSignals
	}

	return sub, nil
}

// rawOrNil collapses a JSON null to an absent value, matching the decode
// fallback order of the reference verifier.
func rawOrNil(raw json.RawMessage) json.RawMessage {
	if string(raw) == "null" {
		return nil
	}
	return raw
}
