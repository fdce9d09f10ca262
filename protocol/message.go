// Package protocol implements the iden3comm plain-JSON wire messages
// exchanged between verifier and holder: authorization requests, proof
// responses and the callback submission envelope.
package protocol

import "encoding/json"

// MediaTypePlainJSON is the typ discriminator for plain-JSON iden3comm messages.
const MediaTypePlainJSON = "application/iden3comm-plain-json"

// Protocol message type URIs.
const (
	AuthorizationRequestType  = "https://iden3-communication.io/authorization/1.0/request"
	AuthorizationResponseType = "https://iden3-communication.io/authorization/1.0/response"
	ContractInvokeRequestType = "https://iden3-communication.io/proofs/1.0/contract-invoke-request"
)

// AuthorizationRequest is the message a verifier issues to start a
// verification flow. ThreadID doubles as the session correlation key.
type AuthorizationRequest struct {
	ID       string                   `json:"id"`
	Typ      string                   `json:"typ"`
	Type     string                   `json:"type"`
	ThreadID string                   `json:"thid,omitempty"`
	Body     AuthorizationRequestBody `json:"body"`
	From     string                   `json:"from,omitempty"`
	To       string                   `json:"to,omitempty"`
}

// AuthorizationRequestBody carries the callback endpoint and the proof scope.
// SessionID repeats the thread id; the reference verifier emits it and some
// wallets read it, so it stays on the wire.
type AuthorizationRequestBody struct {
	CallbackURL string          `json:"callbackUrl"`
	Reason      string          `json:"reason,omitempty"`
	Message     string          `json:"message,omitempty"`
	DIDDoc      json.RawMessage `json:"did_doc,omitempty"`
	Scope       []ProofQuery    `json:"scope"`
	SessionID   string          `json:"sessionId,omitempty"`
}

// ProofQuery is a single requested credential proof within the scope.
type ProofQuery struct {
	ID        int             `json:"id"`
	CircuitID string          `json:"circuitId"`
	Query     CredentialQuery `json:"query"`
}

// CredentialQuery constrains which credential may satisfy a proof query.
// AllowedIssuers accepts DID strings or the wildcard "*".
type CredentialQuery struct {
	AllowedIssuers    []string       `json:"allowedIssuers,omitempty"`
	Context           string         `json:"context,omitempty"`
	Type              string         `json:"type,omitempty"`
	CredentialSubject map[string]any `json:"credentialSubject,omitempty"`
	CredentialSchema  string         `json:"credentialSchema,omitempty"`
}

// ProofResponse is the holder's answer to an authorization request. Its
// thread id must equal the request's session id.
type ProofResponse struct {
	ID       string            `json:"id"`
	Typ      string            `json:"typ"`
	Type     string            `json:"type"`
	ThreadID string            `json:"thid,omitempty"`
	Body     ProofResponseBody `json:"body"`
	From     string            `json:"from,omitempty"`
	To       string            `json:"to,omitempty"`
}

// ProofResponseBody holds the generated proofs, one scope entry per query.
type ProofResponseBody struct {
	Message string           `json:"message,omitempty"`
	Scope   []ZKProofMessage `json:"scope"`
}

// ZKProofMessage is one zero-knowledge proof on the wire. Proof is opaque to
// this package; the reference system puts a groth16 object there.
type ZKProofMessage struct {
	ID         int             `json:"id"`
	CircuitID  string          `json:"circuitId"`
	Proof      json.RawMessage `json:"proof"`
	PubSignals []string        `json:"pub_signals"`
}

// CallbackSubmission is the normalized result of decoding a callback body,
// independent of which of the two legal wire shapes carried it.
type CallbackSubmission struct {
	SessionID     string
	Proof         json.RawMessage
	PublicSignals []string
}

// Empty reports whether the submission carries no proof material.
func (s *CallbackSubmission) Empty() bool {
	return len(s.Proof) == 0 && len(s.PublicSignals) == 0
}
