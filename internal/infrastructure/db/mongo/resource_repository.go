package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rideops/fleet-backoffice/internal/core/domain"
	"github.com/rideops/fleet-backoffice/internal/core/ports"
	fleet "github.com/rideops/fleet-backoffice/pkg/domain"
)

// Collection describes how one fleet collection is searched and indexed.
type Collection struct {
	Name string
	// SearchFields are matched case-insensitively by ListFilter.Search.
	SearchFields []string
	// DateField is the field ListFilter.From and To apply to.
	DateField string
	Indexes   []mongo.IndexModel
}

// ResourceRepository stores one fleet entity type. Identifiers are ObjectID
// hex strings generated on insert.
type ResourceRepository[T any, PT fleet.Record[T]] struct {
	col  *mongo.Collection
	spec Collection
}

func NewResourceRepository[T any, PT fleet.Record[T]](db *mongo.Database, spec Collection) *ResourceRepository[T, PT] {
	if spec.DateField == "" {
		spec.DateField = "created_at"
	}
	return &ResourceRepository[T, PT]{col: db.Collection(spec.Name), spec: spec}
}

func (r *ResourceRepository[T, PT]) Insert(ctx context.Context, v *T) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	PT(v).SetID(fleet.ID(primitive.NewObjectID().Hex()))
	if _, err := r.col.InsertOne(ctx, v); err != nil {
		PT(v).SetID("")
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert %s: %w", r.spec.Name, err)
	}
	return nil
}

func (r *ResourceRepository[T, PT]) FindByID(ctx context.Context, id fleet.ID) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var v T
	if err := r.col.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&v); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find %s: %w", r.spec.Name, err)
	}
	return &v, nil
}

// List returns one page sorted newest first, and the total number of
// matching documents.
func (r *ResourceRepository[T, PT]) List(ctx context.Context, filter ports.ListFilter) ([]T, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := r.buildFilter(filter)

	total, err := r.col.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", r.spec.Name, err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((filter.Page - 1) * filter.Limit)).
		SetLimit(int64(filter.Limit))

	cur, err := r.col.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", r.spec.Name, err)
	}
	defer cur.Close(ctx)

	items := make([]T, 0, filter.Limit)
	if err := cur.All(ctx, &items); err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", r.spec.Name, err)
	}
	return items, total, nil
}

func (r *ResourceRepository[T, PT]) Replace(ctx context.Context, v *T) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.ReplaceOne(ctx, bson.M{"_id": PT(v).EntityID().String()}, v)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("replace %s: %w", r.spec.Name, err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ResourceRepository[T, PT]) Delete(ctx context.Context, id fleet.ID) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": id.String()})
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.spec.Name, err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *ResourceRepository[T, PT]) SetWhere(ctx context.Context, equals, fields map[string]any) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.UpdateMany(ctx, bson.M(equals), bson.M{"$set": bson.M(fields)})
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", r.spec.Name, err)
	}
	return res.ModifiedCount, nil
}

// EnsureIndexes creates the collection's indexes plus one on the date field.
func (r *ResourceRepository[T, PT]) EnsureIndexes(ctx context.Context) error {
	indexes := append([]mongo.IndexModel{
		{Keys: bson.D{{Key: r.spec.DateField, Value: -1}}},
	}, r.spec.Indexes...)

	_, err := r.col.Indexes().CreateMany(ctx, indexes)
	return err
}

func (r *ResourceRepository[T, PT]) buildFilter(filter ports.ListFilter) bson.M {
	query := bson.M{}
	for k, v := range filter.Equals {
		query[k] = v
	}

	if filter.Search != "" && len(r.spec.SearchFields) > 0 {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		or := make(bson.A, 0, len(r.spec.SearchFields))
		for _, f := range r.spec.SearchFields {
			or = append(or, bson.M{f: pattern})
		}
		query["$or"] = or
	}

	if !filter.From.IsZero() || !filter.To.IsZero() {
		rng := bson.M{}
		if !filter.From.IsZero() {
			rng["$gte"] = filter.From.UTC()
		}
		if !filter.To.IsZero() {
			rng["$lte"] = filter.To.UTC()
		}
		query[r.spec.DateField] = rng
	}

	return query
}
