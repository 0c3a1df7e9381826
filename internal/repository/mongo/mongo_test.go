package mongo_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/repository"
	repomongo "fitforge/workout-engine/internal/repository/mongo"
)

// These tests need a reachable server and are skipped otherwise.
func connect(t *testing.T) (context.Context, string) {
	t.Helper()
	uri := os.Getenv("WORKOUT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("WORKOUT_TEST_MONGO_URI not set")
	}
	return context.Background(), uri
}

func TestMongoRepositories(t *testing.T) {
	ctx, uri := connect(t)

	client, err := repomongo.ConnectDB(ctx, uri)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repomongo.DisconnectDB(client) })

	db := client.Database(fmt.Sprintf("workout_engine_test_%d", time.Now().UnixNano()))
	t.Cleanup(func() { _ = db.Drop(context.Background()) })
	require.NoError(t, repomongo.EnsureIndexes(ctx, db))

	t.Run("workout data", func(t *testing.T) {
		repo := repomongo.NewMongoWorkoutDataRepository(db)

		_, err := repo.Load(ctx, "u1")
		require.ErrorIs(t, err, repository.ErrNotFound)

		doc := domain.NewUserWorkoutData("u1")
		doc.Version = 1
		require.NoError(t, repo.Save(ctx, doc))

		stale := domain.NewUserWorkoutData("u1")
		stale.Version = 1
		require.ErrorIs(t, repo.Save(ctx, stale), repository.ErrVersionConflict)

		doc.Version = 2
		require.NoError(t, repo.Save(ctx, doc))

		loaded, err := repo.Load(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded.Version)

		ids, err := repo.ListUserIDs(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"u1"}, ids)
	})

	t.Run("events", func(t *testing.T) {
		repo := repomongo.NewMongoEventRepository(db, 2)
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, repo.AppendSetLogEvent(ctx, domain.SetLogEvent{SessionID: "s1", UserID: "u1", SetID: id}))
		}
		events, err := repo.SetLogEvents(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "b", events[0].SetID)

		require.NoError(t, repo.SaveMigrationAudit(ctx, domain.MigrationAudit{UserID: "u1", RanAt: time.Now().UTC()}))
	})
}
