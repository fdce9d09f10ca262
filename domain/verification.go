package domain

import (
	"encoding/json"
	"time"
)

// RequestStatus tracks the lifecycle of a holder-side verification request.
type RequestStatus string

const (
	// RequestStatusPending is the state right after a payload was classified.
	RequestStatusPending RequestStatus = "pending"
	// RequestStatusGenerating means proof generation is in flight. Transient:
	// a request in this state must not be approved or rejected again.
	RequestStatusGenerating RequestStatus = "generating"
	// RequestStatusApproved is terminal; the proof was generated.
	RequestStatusApproved RequestStatus = "approved"
	// RequestStatusRejected is terminal; the holder declined the request.
	RequestStatusRejected RequestStatus = "rejected"
	// RequestStatusFailed is terminal; proof generation failed.
	RequestStatusFailed RequestStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected || s == RequestStatusFailed
}

// Requester identifies the verifier that issued an authorization request.
type Requester struct {
	Name string `json:"name"`
	DID  string `json:"did"`
	Logo string `json:"logo,omitempty"`
}

// RequestedCredential is one credential proof asked for by the verifier.
type RequestedCredential struct {
	Type           string          `json:"type"`
	RequiredFields []string        `json:"requiredFields"`
	CircuitID      string          `json:"circuitId,omitempty"`
	Query          json.RawMessage `json:"query,omitempty"`
}

// VerificationRequest is the holder-side materialization of a scanned
// authorization request. SessionID correlates the eventual proof response
// with the verifier's registry entry; ID is local to the wallet.
type VerificationRequest struct {
	ID                   string                `json:"id"`
	SessionID            string                `json:"sessionId"`
	CallbackURL          string                `json:"callbackUrl,omitempty"`
	Requester            Requester             `json:"requester"`
	RequestedCredentials []RequestedCredential `json:"requestedCredentials"`
	Purpose              string                `json:"purpose"`
	CreatedAt            time.Time             `json:"createdAt"`
	Status               RequestStatus         `json:"status"`
	OriginalQRData       json.RawMessage       `json:"originalQRData,omitempty"`
}

// GeneratedProof is the output of the proof generation capability for a
// single proof query. Proof is the opaque serialized proof object (groth16
// shaped for the reference proof system: pi_a, pi_b, pi_c, protocol).
type GeneratedProof struct {
	CircuitID     string          `json:"circuitId"`
	Proof         json.RawMessage `json:"proof"`
	PublicSignals []string        `json:"publicSignals"`
}
