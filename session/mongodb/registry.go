// Package mongodb provides a MongoDB-backed session registry.
package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/v2/mongo/otelmongo"

	"go.echoid.dev/verify/session"
)

// SessionsCollection stores one document per verification session.
const SessionsCollection = "verification_sessions"

// Connect opens an instrumented MongoDB client and verifies the connection.
func Connect(ctx context.Context, uri string) (*mongo.Client, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb primary: %w", err)
	}

	return client, nil
}

// Registry implements session.Registry on a MongoDB collection. Each write
// replaces the whole document, so per-key atomicity comes from the single
// document update guarantee.
type Registry struct {
	collection *mongo.Collection
}

// sessionDoc is the stored shape. Proof is kept as a JSON string so opaque
// proof objects survive the round trip untouched.
type sessionDoc struct {
	SessionID     string    `bson:"_id"`
	Verified      bool      `bson:"verified"`
	Proof         string    `bson:"proof,omitempty"`
	PublicSignals []string  `bson:"public_signals,omitempty"`
	ReceivedAt    time.Time `bson:"received_at,omitempty"`
	Status        string    `bson:"status"`
}

// NewRegistry creates a mongo-backed registry. ttl > 0 installs a TTL index
// on received_at; zero keeps records indefinitely, the reference behavior.
func NewRegistry(ctx context.Context, db *mongo.Database, ttl time.Duration) (*Registry, error) {
	repo := &Registry{collection: db.Collection(SessionsCollection)}

	if ttl > 0 {
		index := mongo.IndexModel{
			Keys:    bson.D{{Key: "received_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
		}
		if _, err := repo.collection.Indexes().CreateOne(ctx, index); err != nil {
			log.Warn().Err(err).Msg("Issue creating TTL index for verification_sessions (might already exist)")
		}
	}

	return repo, nil
}

// Create implements session.Registry.Create.
func (r *Registry) Create(ctx context.Context, sessionID string) error {
	doc := sessionDoc{
		SessionID: sessionID,
		Status:    string(session.StatusPending),
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": sessionID}, doc, opts); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Error creating session in MongoDB")
		return err
	}
	return nil
}

// RecordProof implements session.Registry.RecordProof.
func (r *Registry) RecordProof(ctx context.Context, sessionID string, proof json.RawMessage, publicSignals []string) error {
	doc := sessionDoc{
		SessionID:     sessionID,
		Verified:      true,
		Proof:         string(proof),
		PublicSignals: publicSignals,
		ReceivedAt:    time.Now().UTC(),
		Status:        string(session.StatusVerified),
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.collection.ReplaceOne(ctx, bson.M{"_id": sessionID}, doc, opts); err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("Error recording proof in MongoDB")
		return err
	}
	return nil
}

// Get implements session.Registry.Get.
func (r *Registry) Get(ctx context.Context, sessionID string) (*session.Record, error) {
	var doc sessionDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, session.ErrSessionNotFound
		}
		log.Error().Err(err).Str("session_id", sessionID).Msg("Error getting session from MongoDB")
		return nil, err
	}

	rec := &session.Record{
		SessionID:     doc.SessionID,
		Verified:      doc.Verified,
		PublicSignals: doc.PublicSignals,
		ReceivedAt:    doc.ReceivedAt,
		Status:        session.Status(doc.Status),
	}
	if doc.Proof != "" {
		rec.Proof = json.RawMessage(doc.Proof)
	}
	return rec, nil
}
