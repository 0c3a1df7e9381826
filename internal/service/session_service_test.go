package service_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/service"
)

func TestSessionService_PushScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := f.sessions.Create(ctx, "u1", "Push", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, session.SessionType)
	assert.Equal(t, domain.SourceNative, session.Source)
	assert.Zero(t, session.TotalVolume)
	assert.Empty(t, session.Exercises)

	res, err := f.sessions.LogSet(ctx, "u1", session.ID, "bench", "Bench Press", service.SetInput{Weight: 135, Reps: 10, FormScore: floatPtr(8)})
	require.NoError(t, err)
	assert.Equal(t, 1350.0, res.TotalVolume)
	assert.NotEmpty(t, res.SetID)

	res, err = f.sessions.LogSet(ctx, "u1", session.ID, "bench", "Bench Press", service.SetInput{Weight: 145, Reps: 8, FormScore: floatPtr(6), RPE: floatPtr(9)})
	require.NoError(t, err)
	assert.Equal(t, 2510.0, res.TotalVolume)

	f.clock.Advance(45 * time.Minute)
	summary, err := f.sessions.Complete(ctx, "u1", session.ID, intPtr(4), "felt strong")
	require.NoError(t, err)
	assert.Equal(t, 45, summary.Duration)
	assert.Equal(t, 2510.0, summary.TotalVolume)
	assert.Equal(t, 1, summary.ExerciseCount)
	assert.Equal(t, 2, summary.SetCount)
	assert.Equal(t, 499, summary.CaloriesBurned) // round(45*5.5 + 251)
	assert.Empty(t, summary.PersonalRecords)

	data, err := f.sessions.UserWorkoutData(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, data.Sessions, 1)
	stored := data.Sessions[0]
	assert.Equal(t, domain.SessionCompleted, stored.SessionType)
	require.NotNil(t, stored.EndTime)
	assert.Equal(t, 4, *stored.Rating)
	assert.Equal(t, "felt strong", stored.Notes)
	assert.Equal(t, []string{"chest", "shoulders", "triceps"}, stored.Exercises[0].MuscleGroups)
	assert.Equal(t, 2, stored.Progress.TotalSets)
	assert.Equal(t, 1, stored.Progress.TotalExercises)
	require.NotNil(t, stored.Exercises[0].AverageFormScore)
	assert.Equal(t, 7.0, *stored.Exercises[0].AverageFormScore)
	require.NotNil(t, stored.AverageRPE)
	assert.Equal(t, 9.0, *stored.AverageRPE)
	assert.Nil(t, stored.Exercises[0].ProgressiveOverload)

	assert.Equal(t, 1, data.Aggregations.TotalWorkouts)
	assert.Equal(t, 2510.0, data.Aggregations.TotalVolume)
	assert.Equal(t, 499, data.Aggregations.TotalCalories)
	assert.Equal(t, 45, data.Aggregations.TotalDuration)
	assert.Equal(t, 1, data.Aggregations.CurrentStreak)
	assert.Equal(t, "Push", data.Aggregations.FavoriteWorkoutType)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterSessions.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterSessions.WithLabelValues("completed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CounterSetsLogged))
	assert.Equal(t, 2510.0, testutil.ToFloat64(f.metrics.CounterVolumeLogged))

	lifecycle, err := f.events.LifecycleEvents(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, lifecycle, 2)
	assert.Equal(t, domain.EventSessionCreated, lifecycle[0].Event)
	assert.Equal(t, domain.EventSessionCompleted, lifecycle[1].Event)

	setLogs, err := f.events.SetLogEvents(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, setLogs, 2)
	assert.Equal(t, 2510.0, setLogs[1].TotalVolume)
}

func TestSessionService_CreateConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.sessions.Create(ctx, "u1", "Push", nil)
	require.NoError(t, err)
	before, err := f.sessions.ActiveSession(ctx, "u1")
	require.NoError(t, err)

	_, err = f.sessions.Create(ctx, "u1", "Pull", nil)
	require.ErrorIs(t, err, domain.ErrSessionConflict)
	var conflict *domain.SessionConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, first.ID, conflict.ActiveSessionID)

	after, err := f.sessions.ActiveSession(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	all, err := f.sessions.ListSessions(ctx, "u1", service.SessionFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSessionService_LogSetErrors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	completed, err := f.sessions.Create(ctx, "u1", "Push", nil)
	require.NoError(t, err)
	_, err = f.sessions.LogSet(ctx, "u1", completed.ID, "bench", "Bench Press", service.SetInput{Weight: 100, Reps: 5})
	require.NoError(t, err)
	_, err = f.sessions.Complete(ctx, "u1", completed.ID, nil, "")
	require.NoError(t, err)

	abandoned, err := f.sessions.Create(ctx, "u1", "Pull", nil)
	require.NoError(t, err)
	require.NoError(t, f.sessions.Abandon(ctx, "u1", abandoned.ID, "user cancelled"))

	before, err := f.sessions.UserWorkoutData(ctx, "u1")
	require.NoError(t, err)

	testCases := []struct {
		name      string
		sessionID string
		input     service.SetInput
		wantErr   error
	}{
		{"completed session", completed.ID, service.SetInput{Weight: 100, Reps: 5}, domain.ErrInvalidState},
		{"abandoned session", abandoned.ID, service.SetInput{Weight: 100, Reps: 5}, domain.ErrInvalidState},
		{"unknown session", "missing", service.SetInput{Weight: 100, Reps: 5}, domain.ErrSessionNotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.sessions.LogSet(ctx, "u1", tc.sessionID, "bench", "Bench Press", tc.input)
			require.ErrorIs(t, err, tc.wantErr)
		})
	}

	after, err := f.sessions.UserWorkoutData(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Sessions, after.Sessions)

	err = f.sessions.Abandon(ctx, "u1", completed.ID, "")
	require.ErrorIs(t, err, domain.ErrInvalidState)
	_, err = f.sessions.Complete(ctx, "u1", abandoned.ID, nil, "")
	require.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestSessionService_InvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.sessions.Create(ctx, "../u1", "Push", nil)
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.sessions.Create(ctx, "u1", "  ", nil)
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.sessions.Create(ctx, "u1", "Push", []domain.PlannedExercise{{ExerciseID: "bench"}})
	require.ErrorIs(t, err, domain.ErrValidation)

	session, err := f.sessions.Create(ctx, "u1", "Push", nil)
	require.NoError(t, err)

	_, err = f.sessions.LogSet(ctx, "u1", session.ID, "bench", "Bench Press", service.SetInput{Weight: -5, Reps: 5})
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.sessions.LogSet(ctx, "u1", session.ID, "bench", "Bench Press", service.SetInput{Weight: 50, Reps: 5, RPE: floatPtr(11)})
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.sessions.LogSet(ctx, "u1", session.ID, "", "Bench Press", service.SetInput{Weight: 50, Reps: 5})
	require.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.sessions.Complete(ctx, "u1", session.ID, intPtr(6), "")
	require.ErrorIs(t, err, domain.ErrValidation)

	active, err := f.sessions.ActiveSession(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, active.Exercises)
}

func TestSessionService_PlannedTargetsAndUnknownExercise(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	hook := logHook(t)

	planned := []domain.PlannedExercise{{ExerciseID: "squat", ExerciseName: "Back Squat", TargetSets: 5, TargetReps: 5, TargetRestSeconds: 180}}
	session, err := f.sessions.Create(ctx, "u1", "Legs", planned)
	require.NoError(t, err)

	_, err = f.sessions.LogSet(ctx, "u1", session.ID, "squat", "Back Squat", service.SetInput{Weight: 100, Reps: 5})
	require.NoError(t, err)
	_, err = f.sessions.LogSet(ctx, "u1", session.ID, "sled", "Sled Drag", service.SetInput{Weight: 90, Reps: 1})
	require.NoError(t, err)
	assert.True(t, hasEntry(hook, logrus.WarnLevel, "no muscle groups known for exercise"))

	active, err := f.sessions.ActiveSession(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active.Exercises, 2)

	squat := active.Exercises[0]
	assert.Equal(t, 5, squat.TargetSets)
	assert.Equal(t, 5, squat.TargetReps)
	assert.Equal(t, 180, squat.TargetRestSeconds)
	assert.Equal(t, 1, squat.Sets[0].SetNumber)

	sled := active.Exercises[1]
	assert.Equal(t, 1, sled.OrderIndex)
	assert.NotNil(t, sled.MuscleGroups)
	assert.Empty(t, sled.MuscleGroups)
	assert.Equal(t, 2, active.Progress.TotalExercises)
	assert.Equal(t, 590.0, active.TotalVolume)
}

func TestSessionService_PersonalRecordsAndOverload(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.sessions.Create(ctx, "u1", "Push", nil)
	require.NoError(t, err)
	_, err = f.sessions.LogSet(ctx, "u1", first.ID, "bench", "Bench Press", service.SetInput{Weight: 100, Reps: 10})
	require.NoError(t, err)
	summary, err := f.sessions.Complete(ctx, "u1", first.ID, nil, "")
	require.NoError(t, err)
	assert.Empty(t, summary.PersonalRecords, "first occurrence never yields a record")

	f.clock.Advance(48 * time.Hour)
	second, err := f.sessions.Create(ctx, "u1", "Push", nil)
	require.NoError(t, err)
	_, err = f.sessions.LogSet(ctx, "u1", second.ID, "bench-2", "bench press", service.SetInput{Weight: 110, Reps: 10})
	require.NoError(t, err)
	summary, err = f.sessions.Complete(ctx, "u1", second.ID, nil, "")
	require.NoError(t, err)

	require.Len(t, summary.PersonalRecords, 2)
	weight, volume := summary.PersonalRecords[0], summary.PersonalRecords[1]
	assert.Equal(t, domain.RecordWeight, weight.Type)
	assert.Equal(t, 100.0, weight.PreviousValue)
	assert.Equal(t, 110.0, weight.NewValue)
	assert.Equal(t, 10.0, weight.ImprovementPercentage)
	assert.Equal(t, domain.RecordVolume, volume.Type)
	assert.Equal(t, 1000.0, volume.PreviousValue)
	assert.Equal(t, 1100.0, volume.NewValue)

	data, err := f.sessions.UserWorkoutData(ctx, "u1")
	require.NoError(t, err)
	stored := data.FindSession(second.ID)
	require.NotNil(t, stored)
	overload := stored.Exercises[0].ProgressiveOverload
	require.NotNil(t, overload)
	assert.Equal(t, 100.0, overload.PreviousBestWeight)
	assert.Equal(t, 103.0, overload.RecommendedWeight)
	assert.Equal(t, 10, overload.RecommendedReps)
	assert.Equal(t, 10.0, overload.ProgressPercentage)

	assert.Equal(t, 2, data.Aggregations.TotalWorkouts)
	assert.Equal(t, 2, data.Aggregations.PersonalRecordCount)
	assert.Equal(t, 2, data.Aggregations.LongestStreak)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CounterPersonalRecords.WithLabelValues("weight")))
}

func TestSessionService_ConcurrentLogSetSameUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	session, err := f.sessions.Create(ctx, "u1", "Push", nil)
	require.NoError(t, err)

	const writers = 20
	var g errgroup.Group
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			_, err := f.sessions.LogSet(ctx, "u1", session.ID, "bench", "Bench Press", service.SetInput{Weight: 10, Reps: 1})
			return err
		})
	}
	require.NoError(t, g.Wait())

	active, err := f.sessions.ActiveSession(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active.Exercises, 1)
	assert.Len(t, active.Exercises[0].Sets, writers)
	assert.Equal(t, float64(writers*10), active.TotalVolume)

	numbers := map[int]bool{}
	for _, s := range active.Exercises[0].Sets {
		numbers[s.SetNumber] = true
	}
	assert.Len(t, numbers, writers)
}

func TestSessionService_ConcurrentCreateSameUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const callers = 10
	var g errgroup.Group
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		g.Go(func() error {
			_, results[i] = f.sessions.Create(ctx, "u1", "Push", nil)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	created := 0
	for _, err := range results {
		if err == nil {
			created++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrSessionConflict)
	}
	assert.Equal(t, 1, created)
}

func TestSessionService_ConcurrentUsersIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	users := []string{"u1", "u2", "u3", "u4"}
	var g errgroup.Group
	for _, userID := range users {
		g.Go(func() error {
			session, err := f.sessions.Create(ctx, userID, "Push", nil)
			if err != nil {
				return err
			}
			for i := 0; i < 3; i++ {
				if _, err := f.sessions.LogSet(ctx, userID, session.ID, "bench", "Bench Press", service.SetInput{Weight: 100, Reps: 5}); err != nil {
					return err
				}
			}
			_, err = f.sessions.Complete(ctx, userID, session.ID, nil, "")
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, userID := range users {
		data, err := f.sessions.UserWorkoutData(ctx, userID)
		require.NoError(t, err)
		require.Len(t, data.Sessions, 1, userID)
		for _, s := range data.Sessions {
			assert.Equal(t, userID, s.UserID)
		}
		assert.Equal(t, 1500.0, data.Sessions[0].TotalVolume)
		assert.Equal(t, 1, data.Aggregations.TotalWorkouts)
	}
}

func TestSessionService_CleanupStale(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	stale, err := f.sessions.Create(ctx, "u1", "Push", nil)
	require.NoError(t, err)
	_, err = f.sessions.Create(ctx, "u2", "Pull", nil)
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)
	n, err := f.sessions.CleanupStale(ctx, "u1", 24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(23 * time.Hour)
	n, err = f.sessions.CleanupStale(ctx, "u1", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	data, err := f.sessions.UserWorkoutData(ctx, "u1")
	require.NoError(t, err)
	abandoned := data.FindSession(stale.ID)
	require.NotNil(t, abandoned)
	assert.Equal(t, domain.SessionAbandoned, abandoned.SessionType)
	require.NotNil(t, abandoned.EndTime)
	assert.Zero(t, abandoned.Duration)
	assert.Zero(t, abandoned.CaloriesBurned)
	assert.Zero(t, data.Aggregations.TotalWorkouts)

	events, err := f.events.LifecycleEvents(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventSessionAbandoned, events[1].Event)
	assert.Equal(t, service.StaleReason, events[1].Reason)

	// u1 is clean now; only u2 is left.
	total, err := f.sessions.CleanupStaleAll(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	active, err := f.sessions.ActiveSession(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, active)

	_, err = f.sessions.CleanupStale(ctx, "u1", 0)
	require.ErrorIs(t, err, domain.ErrValidation)
}

func TestSessionService_ListSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	types := []string{"Push", "Pull", "Legs", "Push", "Pull"}
	ids := make([]string, len(types))
	for i, workoutType := range types {
		s, err := f.sessions.Create(ctx, "u1", workoutType, nil)
		require.NoError(t, err)
		ids[i] = s.ID
		_, err = f.sessions.LogSet(ctx, "u1", s.ID, "row", "Barbell Row", service.SetInput{Weight: 50, Reps: 10})
		require.NoError(t, err)
		if i == 2 {
			require.NoError(t, f.sessions.Abandon(ctx, "u1", s.ID, ""))
		} else {
			_, err = f.sessions.Complete(ctx, "u1", s.ID, nil, "")
			require.NoError(t, err)
		}
		f.clock.Advance(24 * time.Hour)
	}
	active, err := f.sessions.Create(ctx, "u1", "Core", nil)
	require.NoError(t, err)

	sessionIDs := func(sessions []domain.UnifiedWorkoutSession) []string {
		out := make([]string, 0, len(sessions))
		for _, s := range sessions {
			out = append(out, s.ID)
		}
		return out
	}
	from := baseTime.Add(24 * time.Hour)
	to := baseTime.Add(73 * time.Hour)

	testCases := []struct {
		name   string
		filter service.SessionFilter
		want   []string
	}{
		{"all newest first", service.SessionFilter{}, []string{active.ID, ids[4], ids[3], ids[2], ids[1], ids[0]}},
		{"completed only", service.SessionFilter{SessionType: domain.SessionCompleted}, []string{ids[4], ids[3], ids[1], ids[0]}},
		{"abandoned only", service.SessionFilter{SessionType: domain.SessionAbandoned}, []string{ids[2]}},
		{"workout type ignores case", service.SessionFilter{WorkoutType: "push"}, []string{ids[3], ids[0]}},
		{"date range", service.SessionFilter{From: &from, To: &to}, []string{ids[3], ids[2], ids[1]}},
		{"limit", service.SessionFilter{Limit: 2}, []string{active.ID, ids[4]}},
		{"offset and limit", service.SessionFilter{Offset: 2, Limit: 2}, []string{ids[3], ids[2]}},
		{"offset past end", service.SessionFilter{Offset: 10}, []string{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := f.sessions.ListSessions(ctx, "u1", tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, sessionIDs(got))
		})
	}

	_, err = f.sessions.ListSessions(ctx, "u1", service.SessionFilter{Limit: -1})
	require.ErrorIs(t, err, domain.ErrValidation)

	none, err := f.sessions.ListSessions(ctx, "nobody", service.SessionFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSessionService_QueriesOnEmptyUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	active, err := f.sessions.ActiveSession(ctx, "fresh")
	require.NoError(t, err)
	assert.Nil(t, active)

	agg, err := f.sessions.Aggregations(ctx, "fresh")
	require.NoError(t, err)
	assert.Zero(t, agg.TotalWorkouts)
	assert.NotNil(t, agg.StrongestMuscleGroups)
}

func TestSessionService_EventFailuresAreLogged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, withEvents(failingEvents{}))
	hook := logHook(t)

	session, err := f.sessions.Create(ctx, "u1", "Push", nil)
	require.NoError(t, err)
	_, err = f.sessions.LogSet(ctx, "u1", session.ID, "bench", "Bench Press", service.SetInput{Weight: 100, Reps: 5})
	require.NoError(t, err)

	assert.True(t, hasEntry(hook, logrus.ErrorLevel, "failed to append lifecycle event"))
	assert.True(t, hasEntry(hook, logrus.ErrorLevel, "failed to append set-log event"))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CounterEventFailures))
}

func TestSessionService_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.sessions.Create(ctx, "u1", "Push", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled), fmt.Sprintf("unexpected error %v", err))
}
