// Package redis provides a Redis-backed session registry for verifiers that
// run more than one process behind a load balancer.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"go.echoid.dev/verify/session"
)

// Registry implements session.Registry on a Redis hash per session.
type Registry struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRegistry creates a Redis-backed registry. prefix namespaces the keys;
// ttl <= 0 keeps records for as long as Redis does.
func NewRegistry(client *redis.Client, prefix string, ttl time.Duration) *Registry {
	return &Registry{client: client, prefix: prefix, ttl: ttl}
}

func (r *Registry) key(sessionID string) string {
	return fmt.Sprintf("%s:session:%s", r.prefix, sessionID)
}

// Create implements session.Registry.Create.
func (r *Registry) Create(ctx context.Context, sessionID string) error {
	key := r.key(sessionID)

	entry := map[string]any{
		"verified": "0",
		"status":   string(session.StatusPending),
	}
	if err := r.client.HSet(ctx, key, entry).Err(); err != nil {
		return fmt.Errorf("failed to create session in redis: %w", err)
	}

	return r.expire(ctx, key)
}

// RecordProof implements session.Registry.RecordProof.
func (r *Registry) RecordProof(ctx context.Context, sessionID string, proof json.RawMessage, publicSignals []string) error {
	key := r.key(sessionID)

	signalsJSON, err := json.Marshal(publicSignals)
	if err != nil {
		return fmt.Errorf("failed to marshal public signals: %w", err)
	}

	entry := map[string]any{
		"verified":       "1",
		"status":         string(session.StatusVerified),
		"proof":          string(proof),
		"public_signals": string(signalsJSON),
		"received_at":    strconv.FormatInt(time.Now().UTC().UnixMilli(), 10),
	}
	if err := r.client.HSet(ctx, key, entry).Err(); err != nil {
		return fmt.Errorf("failed to record proof in redis: %w", err)
	}

	return r.expire(ctx, key)
}

// Get implements session.Registry.Get.
func (r *Registry) Get(ctx context.Context, sessionID string) (*session.Record, error) {
	res, err := r.client.HGetAll(ctx, r.key(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}
	if len(res) == 0 {
		return nil, session.ErrSessionNotFound
	}

	rec := &session.Record{
		SessionID: sessionID,
		Verified:  res["verified"] == "1",
		Status:    session.Status(res["status"]),
	}

	if proof, ok := res["proof"]; ok && proof != "" {
		rec.Proof = json.RawMessage(proof)
	}
	if signals, ok := res["public_signals"]; ok && signals != "" {
		if err := json.Unmarshal([]byte(signals), &rec.PublicSignals); err != nil {
			return nil, fmt.Errorf("failed to unmarshal public signals: %w", err)
		}
	}
	if ms, ok := res["received_at"]; ok && ms != "" {
		unixMs, err := strconv.ParseInt(ms, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to parse received_at: %w", err)
		}
		rec.ReceivedAt = time.UnixMilli(unixMs).UTC()
	}

	return rec, nil
}

func (r *Registry) expire(ctx context.Context, key string) error {
	if r.ttl <= 0 {
		return nil
	}
	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session expiry in redis: %w", err)
	}
	return nil
}
