package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/repository"
)

const (
	eventCollectionName          = "workout_events"
	migrationAuditCollectionName = "migration_audits"
)

// eventLogDocument holds both bounded event logs of one user.
type eventLogDocument struct {
	UserID    string                  `bson:"userId"`
	Lifecycle []domain.LifecycleEvent `bson:"lifecycle"`
	SetLogs   []domain.SetLogEvent    `bson:"setLogs"`
}

// mongoEventRepository implements repository.EventRepository.
type mongoEventRepository struct {
	events     *mongo.Collection
	migrations *mongo.Collection
	limit      int
}

// NewMongoEventRepository creates an event repository that keeps the most
// recent limit entries of each log.
func NewMongoEventRepository(db *mongo.Database, limit int) repository.EventRepository {
	return &mongoEventRepository{
		events:     db.Collection(eventCollectionName),
		migrations: db.Collection(migrationAuditCollectionName),
		limit:      limit,
	}
}

// push appends value to the array field and trims it with $slice.
func (r *mongoEventRepository) push(ctx context.Context, userID, field string, value interface{}) error {
	update := bson.M{
		"$push": bson.M{
			field: bson.M{
				"$each":  bson.A{value},
				"$slice": -r.limit,
			},
		},
	}
	_, err := r.events.UpdateOne(ctx, bson.M{"userId": userID}, update, options.Update().SetUpsert(true))
	return err
}

func (r *mongoEventRepository) AppendLifecycleEvent(ctx context.Context, event domain.LifecycleEvent) error {
	return r.push(ctx, event.UserID, "lifecycle", event)
}

func (r *mongoEventRepository) AppendSetLogEvent(ctx context.Context, event domain.SetLogEvent) error {
	return r.push(ctx, event.UserID, "setLogs", event)
}

func (r *mongoEventRepository) load(ctx context.Context, userID string) (*eventLogDocument, error) {
	var doc eventLogDocument
	err := r.events.FindOne(ctx, bson.M{"userId": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return &eventLogDocument{UserID: userID}, nil
		}
		return nil, err
	}
	return &doc, nil
}

func (r *mongoEventRepository) LifecycleEvents(ctx context.Context, userID string) ([]domain.LifecycleEvent, error) {
	doc, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return doc.Lifecycle, nil
}

func (r *mongoEventRepository) SetLogEvents(ctx context.Context, userID string) ([]domain.SetLogEvent, error) {
	doc, err := r.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return doc.SetLogs, nil
}

func (r *mongoEventRepository) SaveMigrationAudit(ctx context.Context, audit domain.MigrationAudit) error {
	_, err := r.migrations.InsertOne(ctx, audit)
	return err
}

// EnsureEventIndexes creates the unique owner index on the event logs.
func EnsureEventIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

// EnsureMigrationAuditIndexes indexes audits for per-user, newest-first lookups.
func EnsureMigrationAuditIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "ranAt", Value: -1}},
		Options: options.Index(),
	})
	return err
}
