package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rideops/fleet-backoffice/internal/core/domain"
)

const auditCollection = "audit_log"

// auditRetention bounds how long audit entries are kept.
const auditRetention = 180 * 24 * time.Hour

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	col *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{col: db.Collection(auditCollection)}
}

// Insert persists one audit entry.
func (r *AuditRepository) Insert(ctx context.Context, entry domain.AuditEntry) error {
	doc := bson.M{
		"resource":    entry.Resource,
		"entity_id":   entry.EntityID,
		"action":      string(entry.Action),
		"user_id":     entry.UserID,
		"role":        entry.Role,
		"at":          entry.At.UTC(),
		"recorded_at": time.Now().UTC(),
	}

	_, err := r.col.InsertOne(ctx, doc)
	return err
}

func (r *AuditRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "resource", Value: 1}, {Key: "entity_id", Value: 1}}},
		{
			Keys:    bson.D{{Key: "at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(auditRetention.Seconds())),
		},
	}
	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}
