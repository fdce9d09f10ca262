// Package api defines the JSON shapes served by the verifier HTTP surface
// and consumed by the polling client.
package api

import "encoding/json"

// Session status values on the wire.
const (
	StatusPending  = "pending"
	StatusVerified = "verified"
	StatusSuccess  = "success"
	StatusError    = "error"
)

// CallbackAck acknowledges a proof submission. The callback endpoint always
// answers success, even for submissions it could not correlate or decode;
// availability wins over strict rejection there.
type CallbackAck struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// StatusResponse is the poll answer for one session. ReceivedAt is epoch
// milliseconds, matching what existing front-ends expect.
type StatusResponse struct {
	Status        string          `json:"status"`
	Proof         json.RawMessage `json:"proof,omitempty"`
	PublicSignals []string        `json:"publicSignals,omitempty"`
	ReceivedAt    int64           `json:"receivedAt,omitempty"`
	Message       string          `json:"message,omitempty"`
	SessionID     string          `json:"sessionId"`
}

// Verified reports whether the session resolved.
func (s *StatusResponse) Verified() bool {
	return s.Status == StatusVerified
}

// ErrorResponse is the client-error envelope.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}
