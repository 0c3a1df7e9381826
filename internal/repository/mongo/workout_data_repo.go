// internal/repository/mongo/workout_data_repo.go
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

const workoutDataCollectionName = "workout_data"

// mongoWorkoutDataRepository implements repository.WorkoutDataRepository with
// one document per user.
type mongoWorkoutDataRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutDataRepository creates a new workout data repository.
func NewMongoWorkoutDataRepository(db *mongo.Database) repository.WorkoutDataRepository {
	return &mongoWorkoutDataRepository{
		collection: db.Collection(workoutDataCollectionName),
	}
}

// Load fetches the raw document first so decode failures can be told apart
// from transport failures.
func (r *mongoWorkoutDataRepository) Load(ctx context.Context, userID string) (*domain.UserWorkoutData, error) {
	raw, err := r.collection.FindOne(ctx, bson.M{"userId": userID}).Raw()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	var data domain.UserWorkoutData
	if err := bson.Unmarshal(raw, &data); err != nil {
		corrupt := &repository.CorruptError{UserID: userID, Err: err}
		if v, ok := raw.Lookup("version").AsInt64OK(); ok {
			corrupt.Version = v
		}
		return nil, corrupt
	}
	return &data, nil
}

// Save replaces the document only if it is still at the previous version.
// A stale writer finds no match, attempts an upsert, and trips the unique
// userId index.
func (r *mongoWorkoutDataRepository) Save(ctx context.Context, data *domain.UserWorkoutData) error {
	if data.UserID == "" {
		return errors.New("workout data requires a userId")
	}

	filter := bson.M{
		"userId":  data.UserID,
		"version": data.Version - 1,
	}
	_, err := r.collection.ReplaceOne(ctx, filter, data, options.Replace().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrVersionConflict
		}
		return err
	}
	return nil
}

// ListUserIDs returns the distinct owners of stored documents.
func (r *mongoWorkoutDataRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	values, err := r.collection.Distinct(ctx, "userId", bson.M{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// EnsureWorkoutDataIndexes creates the unique owner index. Call during startup.
func EnsureWorkoutDataIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}
