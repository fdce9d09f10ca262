// Package session holds the verifier-side registry mapping session ids to
// their verification state. The registry is the single source of truth for
// "has this session been answered yet"; the verifier service is its only
// writer and polling clients read copies.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrSessionNotFound is returned by Get for unknown session ids. Callers
// polling for status treat it as pending, not as a failure.
var ErrSessionNotFound = errors.New("session not found")

// Status of a session record.
type Status string

const (
	// StatusPending means the request was issued and no proof has arrived.
	StatusPending Status = "pending"
	// StatusVerified means a proof submission was recorded.
	StatusVerified Status = "verified"
)

// Record is the stored state of one verification session.
type Record struct {
	SessionID     string          `json:"sessionId" bson:"_id"`
	Verified      bool            `json:"verified" bson:"verified"`
	Proof         json.RawMessage `json:"proof,omitempty" bson:"proof,omitempty"`
	PublicSignals []string        `json:"publicSignals,omitempty" bson:"public_signals,omitempty"`
	ReceivedAt    time.Time       `json:"receivedAt,omitempty" bson:"received_at,omitempty"`
	Status        Status          `json:"status" bson:"status"`
}

// Registry stores session records. Implementations must make each operation
// atomic with respect to the others for a given key: a concurrent Get during
// RecordProof observes either the pre- or post-callback record, never a
// partial write.
type Registry interface {
	// Create inserts a pending record for sessionID. Calling it twice for
	// the same key silently overwrites, matching the reference verifier.
	Create(ctx context.Context, sessionID string) error

	// RecordProof stores a proof submission under sessionID with a fresh
	// receipt timestamp. Last-write-wins: repeated calls replace the prior
	// payload. The session need not have been created first; callbacks
	// correlated only by thread id still get recorded.
	RecordProof(ctx context.Context, sessionID string, proof json.RawMessage, publicSignals []string) error

	// Get returns a copy of the record for sessionID, or ErrSessionNotFound.
	Get(ctx context.Context, sessionID string) (*Record, error)
}
