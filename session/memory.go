package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryRegistry implements Registry using ttlcache. The default TTL is
// ttlcache.NoTTL so records live for the verifier's uptime, the reference
// behavior; pass a positive ttl to bound session lifetime instead.
type MemoryRegistry struct {
	cache *ttlcache.Cache[string, Record]
	ttl   time.Duration
}

// NewMemoryRegistry creates an in-memory registry. ttl <= 0 disables expiry.
func NewMemoryRegistry(ttl time.Duration) *MemoryRegistry {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, Record](ttl),
		ttlcache.WithDisableTouchOnHit[string, Record](),
	)
	go cache.Start()

	return &MemoryRegistry{cache: cache, ttl: ttl}
}

// Create implements Registry.Create.
func (r *MemoryRegistry) Create(_ context.Context, sessionID string) error {
	r.cache.Set(sessionID, Record{
		SessionID: sessionID,
		Status:    StatusPending,
	}, r.ttl)
	return nil
}

// RecordProof implements Registry.RecordProof. The whole record is replaced
// in a single cache write, which keeps last-write-wins atomic per key.
func (r *MemoryRegistry) RecordProof(_ context.Context, sessionID string, proof json.RawMessage, publicSignals []string) error {
	r.cache.Set(sessionID, Record{
		SessionID:     sessionID,
		Verified:      true,
		Proof:         append(json.RawMessage(nil), proof...),
		PublicSignals: append([]string(nil), publicSignals...),
		ReceivedAt:    time.Now().UTC(),
		Status:        StatusVerified,
	}, r.ttl)
	return nil
}

// Get implements Registry.Get.
func (r *MemoryRegistry) Get(_ context.Context, sessionID string) (*Record, error) {
	item := r.cache.Get(sessionID)
	if item == nil {
		return nil, ErrSessionNotFound
	}

	// Deep copy: readers must never be able to reach the stored slices.
	rec := item.Value()
	rec.Proof = append(json.RawMessage(nil), rec.Proof...)
	rec.PublicSignals = append([]string(nil), rec.PublicSignals...)
	return &rec, nil
}

// Len returns the number of live session records.
func (r *MemoryRegistry) Len() int {
	return r.cache.Len()
}

// Close stops the cache cleanup goroutine.
func (r *MemoryRegistry) Close() error {
	r.cache.Stop()
	return nil
}
