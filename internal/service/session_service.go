package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"fitforge/workout-engine/internal/analytics"
	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/repository"
	"fitforge/workout-engine/internal/telemetry"
)

// StaleReason is recorded on sessions abandoned by cleanup.
const StaleReason = "stale"

// SetInput carries the caller-supplied fields of one set. SetNumber 0 means
// the next number in the exercise.
type SetInput struct {
	SetNumber int
	Weight    float64
	Reps      int
	FormScore *float64
	RPE       *float64
	Equipment string
	IsWarmup  bool
	IsDropSet bool
	IsFailure bool
}

// LogSetResult is returned after a set is durably appended.
type LogSetResult struct {
	TotalVolume float64 `json:"totalVolume"`
	SetID       string  `json:"setId"`
}

// CompletionSummary describes a session that was just completed.
type CompletionSummary struct {
	SessionID       string                  `json:"sessionId"`
	Duration        int                     `json:"duration"`
	TotalVolume     float64                 `json:"totalVolume"`
	ExerciseCount   int                     `json:"exerciseCount"`
	SetCount        int                     `json:"setCount"`
	CaloriesBurned  int                     `json:"caloriesBurned"`
	PersonalRecords []domain.PersonalRecord `json:"personalRecords"`
}

// SessionFilter narrows ListSessions. Zero values do not filter; Limit 0
// returns every match.
type SessionFilter struct {
	SessionType domain.SessionType
	WorkoutType string
	From        *time.Time
	To          *time.Time
	Limit       int
	Offset      int
}

// --- Service Interface ---
type SessionService interface {
	Create(ctx context.Context, userID, workoutType string, planned []domain.PlannedExercise) (*domain.UnifiedWorkoutSession, error)
	LogSet(ctx context.Context, userID, sessionID, exerciseID, exerciseName string, input SetInput) (*LogSetResult, error)
	Complete(ctx context.Context, userID, sessionID string, rating *int, notes string) (*CompletionSummary, error)
	Abandon(ctx context.Context, userID, sessionID, reason string) error
	CleanupStale(ctx context.Context, userID string, maxAge time.Duration) (int, error)
	CleanupStaleAll(ctx context.Context, maxAge time.Duration) (int, error)

	ListSessions(ctx context.Context, userID string, filter SessionFilter) ([]domain.UnifiedWorkoutSession, error)
	ActiveSession(ctx context.Context, userID string) (*domain.UnifiedWorkoutSession, error)
	Aggregations(ctx context.Context, userID string) (*domain.Aggregations, error)
	UserWorkoutData(ctx context.Context, userID string) (*domain.UserWorkoutData, error)
}

// --- Service Implementation ---

type sessionService struct {
	store   RecordStore
	events  repository.EventRepository
	metrics *telemetry.Metrics
	muscles *domain.MuscleGroupTable
	now     func() time.Time
}

// NewSessionService creates the session lifecycle manager.
func NewSessionService(store RecordStore, events repository.EventRepository, metrics *telemetry.Metrics, opts ...Option) SessionService {
	o := newOptions(opts)
	return &sessionService{
		store:   store,
		events:  events,
		metrics: metrics,
		muscles: o.muscles,
		now:     o.now,
	}
}

func (s *sessionService) Create(ctx context.Context, userID, workoutType string, planned []domain.PlannedExercise) (*domain.UnifiedWorkoutSession, error) {
	workoutType = strings.TrimSpace(workoutType)
	if workoutType == "" {
		return nil, domain.NewValidationError("workoutType (required)")
	}
	for i := range planned {
		if err := planned[i].Validate(); err != nil {
			return nil, err
		}
	}

	var created domain.UnifiedWorkoutSession
	_, err := s.store.Update(ctx, userID, func(data *domain.UserWorkoutData) error {
		if active := data.ActiveSession(); active != nil {
			return &domain.SessionConflictError{ActiveSessionID: active.ID}
		}

		now := s.now().UTC()
		created = domain.UnifiedWorkoutSession{
			ID:               uuid.NewString(),
			UserID:           userID,
			SessionType:      domain.SessionActive,
			Source:           domain.SourceNative,
			StartTime:        now,
			LastModified:     now,
			WorkoutType:      workoutType,
			PlannedExercises: append([]domain.PlannedExercise(nil), planned...),
			Exercises:        []domain.WorkoutExercise{},
			Progress:         domain.SessionProgress{MuscleGroupsTargeted: []string{}},
			PersonalRecords:  []domain.PersonalRecord{},
		}
		data.Sessions = append(data.Sessions, created)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CounterSessions.WithLabelValues(string(domain.EventSessionCreated)).Inc()
	s.emitLifecycle(ctx, domain.LifecycleEvent{
		SessionID:   created.ID,
		UserID:      userID,
		Event:       domain.EventSessionCreated,
		WorkoutType: created.WorkoutType,
		At:          created.StartTime,
	})
	logrus.WithFields(logrus.Fields{
		"userId":      userID,
		"sessionId":   created.ID,
		"workoutType": created.WorkoutType,
	}).Info("workout session created")
	return &created, nil
}

// activeSession finds sessionID in data and checks that it can be mutated.
func activeSession(data *domain.UserWorkoutData, sessionID string) (*domain.UnifiedWorkoutSession, error) {
	session := data.FindSession(sessionID)
	if session == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, sessionID)
	}
	if session.SessionType != domain.SessionActive {
		return nil, fmt.Errorf("%w: session %s is %s", domain.ErrInvalidState, sessionID, session.SessionType)
	}
	return session, nil
}

func (s *sessionService) LogSet(ctx context.Context, userID, sessionID, exerciseID, exerciseName string, input SetInput) (*LogSetResult, error) {
	exerciseID = strings.TrimSpace(exerciseID)
	exerciseName = strings.TrimSpace(exerciseName)
	if exerciseID == "" || exerciseName == "" {
		return nil, domain.NewValidationError("exerciseId (required)", "exerciseName (required)")
	}

	var (
		result LogSetResult
		logged domain.SetData
	)
	_, err := s.store.Update(ctx, userID, func(data *domain.UserWorkoutData) error {
		session, err := activeSession(data, sessionID)
		if err != nil {
			return err
		}
		now := s.now().UTC()

		// 1. Find or create the exercise entry
		exercise := session.FindExercise(exerciseID)
		if exercise == nil {
			session.Exercises = append(session.Exercises, s.newExercise(session, exerciseID, exerciseName))
			exercise = &session.Exercises[len(session.Exercises)-1]
		}

		// 2. Build and check the set before touching the session
		setNumber := input.SetNumber
		if setNumber <= 0 {
			setNumber = len(exercise.Sets) + 1
		}
		logged = domain.SetData{
			SetID:     uuid.NewString(),
			SetNumber: setNumber,
			Weight:    input.Weight,
			Reps:      input.Reps,
			Volume:    analytics.SetVolume(input.Weight, input.Reps),
			FormScore: input.FormScore,
			RPE:       input.RPE,
			Equipment: input.Equipment,
			IsWarmup:  input.IsWarmup,
			IsDropSet: input.IsDropSet,
			IsFailure: input.IsFailure,
			Timestamp: now,
		}
		if err := logged.Validate(); err != nil {
			return err
		}

		// 3. Append and roll up
		exercise.Sets = append(exercise.Sets, logged)
		exercise.TotalVolume = analytics.ExerciseVolume(exercise)
		exercise.AverageFormScore = analytics.FormScoreAverage(exercise.Sets)
		session.TotalVolume = analytics.SessionVolume(session)
		session.Progress = sessionProgress(session)
		session.LastModified = now

		result = LogSetResult{TotalVolume: session.TotalVolume, SetID: logged.SetID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CounterSetsLogged.Inc()
	s.metrics.CounterVolumeLogged.Add(logged.Volume)
	s.emitSetLog(ctx, domain.SetLogEvent{
		SessionID:   sessionID,
		UserID:      userID,
		ExerciseID:  exerciseID,
		SetID:       logged.SetID,
		Weight:      logged.Weight,
		Reps:        logged.Reps,
		Volume:      logged.Volume,
		TotalVolume: result.TotalVolume,
		At:          logged.Timestamp,
	})
	return &result, nil
}

// newExercise starts an exercise entry, tagging muscle groups by name and
// copying targets from the matching planned exercise.
func (s *sessionService) newExercise(session *domain.UnifiedWorkoutSession, exerciseID, exerciseName string) domain.WorkoutExercise {
	groups, ok := s.muscles.Lookup(exerciseName)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"sessionId":    session.ID,
			"exerciseName": exerciseName,
		}).Warn("no muscle groups known for exercise")
	}

	exercise := domain.WorkoutExercise{
		ExerciseID:   exerciseID,
		ExerciseName: exerciseName,
		MuscleGroups: groups,
		OrderIndex:   len(session.Exercises),
		Sets:         []domain.SetData{},
	}
	if plan := session.FindPlanned(exerciseID); plan != nil {
		exercise.TargetSets = plan.TargetSets
		exercise.TargetReps = plan.TargetReps
		exercise.TargetRestSeconds = plan.TargetRestSeconds
	}
	return exercise
}

// sessionProgress recounts sets, exercises and the union of muscle groups.
func sessionProgress(session *domain.UnifiedWorkoutSession) domain.SessionProgress {
	seen := make(map[string]struct{})
	groups := []string{}
	for _, e := range session.Exercises {
		for _, g := range e.MuscleGroups {
			if _, ok := seen[g]; ok {
				continue
			}
			seen[g] = struct{}{}
			groups = append(groups, g)
		}
	}
	sort.Strings(groups)
	return domain.SessionProgress{
		TotalSets:            session.SetCount(),
		TotalExercises:       len(session.Exercises),
		MuscleGroupsTargeted: groups,
	}
}

func (s *sessionService) Complete(ctx context.Context, userID, sessionID string, rating *int, notes string) (*CompletionSummary, error) {
	if rating != nil && (*rating < 1 || *rating > 5) {
		return nil, domain.NewValidationError("rating (1-5)")
	}

	var summary CompletionSummary
	_, err := s.store.Update(ctx, userID, func(data *domain.UserWorkoutData) error {
		session, err := activeSession(data, sessionID)
		if err != nil {
			return err
		}

		// 1. Close the session
		end := s.now().UTC()
		if end.Before(session.StartTime) {
			end = session.StartTime
		}
		session.SessionType = domain.SessionCompleted
		session.EndTime = &end
		session.LastModified = end

		// 2. Duration and calories
		session.TotalVolume = analytics.SessionVolume(session)
		session.Duration = analytics.DurationMinutes(session.StartTime, end)
		session.CaloriesBurned = analytics.CaloriesBurned(session.Duration, session.TotalVolume)

		// 3. Personal records and overload targets against every other session
		session.PersonalRecords = analytics.DetectPersonalRecords(session, data.Sessions)
		analytics.ApplyOverload(session, data.Sessions)

		// 4. Session averages
		session.AverageFormScore, session.AverageRPE = analytics.SessionAverages(session)
		session.Rating = rating
		session.Notes = notes

		// 5. Aggregates over the full history
		data.Aggregations = analytics.ComputeAggregations(data.Sessions, end)

		summary = CompletionSummary{
			SessionID:       session.ID,
			Duration:        session.Duration,
			TotalVolume:     session.TotalVolume,
			ExerciseCount:   len(session.Exercises),
			SetCount:        session.SetCount(),
			CaloriesBurned:  session.CaloriesBurned,
			PersonalRecords: append([]domain.PersonalRecord{}, session.PersonalRecords...),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.CounterSessions.WithLabelValues(string(domain.EventSessionCompleted)).Inc()
	for _, pr := range summary.PersonalRecords {
		s.metrics.CounterPersonalRecords.WithLabelValues(string(pr.Type)).Inc()
	}
	s.emitLifecycle(ctx, domain.LifecycleEvent{
		SessionID: sessionID,
		UserID:    userID,
		Event:     domain.EventSessionCompleted,
		At:        s.now().UTC(),
	})
	logrus.WithFields(logrus.Fields{
		"userId":          userID,
		"sessionId":       sessionID,
		"duration":        summary.Duration,
		"totalVolume":     summary.TotalVolume,
		"personalRecords": len(summary.PersonalRecords),
	}).Info("workout session completed")
	return &summary, nil
}

// abandon closes an active session without computing any metrics.
func abandon(session *domain.UnifiedWorkoutSession, at time.Time) {
	if at.Before(session.StartTime) {
		at = session.StartTime
	}
	session.SessionType = domain.SessionAbandoned
	session.EndTime = &at
	session.LastModified = at
}

func (s *sessionService) Abandon(ctx context.Context, userID, sessionID, reason string) error {
	_, err := s.store.Update(ctx, userID, func(data *domain.UserWorkoutData) error {
		session, err := activeSession(data, sessionID)
		if err != nil {
			return err
		}
		abandon(session, s.now().UTC())
		return nil
	})
	if err != nil {
		return err
	}

	s.recordAbandoned(ctx, userID, sessionID, reason)
	return nil
}

func (s *sessionService) recordAbandoned(ctx context.Context, userID, sessionID, reason string) {
	s.metrics.CounterSessions.WithLabelValues(string(domain.EventSessionAbandoned)).Inc()
	s.emitLifecycle(ctx, domain.LifecycleEvent{
		SessionID: sessionID,
		UserID:    userID,
		Event:     domain.EventSessionAbandoned,
		Reason:    reason,
		At:        s.now().UTC(),
	})
	logrus.WithFields(logrus.Fields{
		"userId":    userID,
		"sessionId": sessionID,
		"reason":    reason,
	}).Info("workout session abandoned")
}

// CleanupStale abandons every active session that started more than maxAge ago.
func (s *sessionService) CleanupStale(ctx context.Context, userID string, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, domain.NewValidationError("maxAge (gt=0)")
	}

	var abandoned []string
	_, err := s.store.Update(ctx, userID, func(data *domain.UserWorkoutData) error {
		abandoned = abandoned[:0]
		now := s.now().UTC()
		for i := range data.Sessions {
			session := &data.Sessions[i]
			if session.SessionType == domain.SessionActive && now.Sub(session.StartTime) > maxAge {
				abandon(session, now)
				abandoned = append(abandoned, session.ID)
			}
		}
		if len(abandoned) == 0 {
			return errSkipSave
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, id := range abandoned {
		s.recordAbandoned(ctx, userID, id, StaleReason)
	}
	return len(abandoned), nil
}

// CleanupStaleAll runs CleanupStale for every stored user. A failing user
// does not stop the others; all failures are returned together.
func (s *sessionService) CleanupStaleAll(ctx context.Context, maxAge time.Duration) (int, error) {
	userIDs, err := s.store.ListUserIDs(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	var errs error
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return total, multierr.Append(errs, ctx.Err())
		}
		n, err := s.CleanupStale(ctx, userID, maxAge)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("cleanup %s: %w", userID, err))
			continue
		}
		total += n
	}
	return total, errs
}

// --- Queries ---

func (s *sessionService) ListSessions(ctx context.Context, userID string, filter SessionFilter) ([]domain.UnifiedWorkoutSession, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, domain.NewValidationError("limit (gte=0)", "offset (gte=0)")
	}
	data, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}

	matched := make([]domain.UnifiedWorkoutSession, 0, len(data.Sessions))
	for _, session := range data.Sessions {
		if filter.matches(&session) {
			matched = append(matched, session)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].StartTime.After(matched[j].StartTime)
	})

	if filter.Offset >= len(matched) {
		return []domain.UnifiedWorkoutSession{}, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (f SessionFilter) matches(session *domain.UnifiedWorkoutSession) bool {
	if f.SessionType != "" && session.SessionType != f.SessionType {
		return false
	}
	if f.WorkoutType != "" && !strings.EqualFold(f.WorkoutType, session.WorkoutType) {
		return false
	}
	if f.From != nil && session.StartTime.Before(*f.From) {
		return false
	}
	if f.To != nil && session.StartTime.After(*f.To) {
		return false
	}
	return true
}

func (s *sessionService) ActiveSession(ctx context.Context, userID string) (*domain.UnifiedWorkoutSession, error) {
	data, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := data.ActiveSession()
	if active == nil {
		return nil, nil
	}
	session := *active
	return &session, nil
}

func (s *sessionService) Aggregations(ctx context.Context, userID string) (*domain.Aggregations, error) {
	data, err := s.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &data.Aggregations, nil
}

func (s *sessionService) UserWorkoutData(ctx context.Context, userID string) (*domain.UserWorkoutData, error) {
	return s.store.Load(ctx, userID)
}

// --- Events ---

// emitLifecycle and emitSetLog record events after the document is saved.
// A failed append is logged and counted only.
func (s *sessionService) emitLifecycle(ctx context.Context, event domain.LifecycleEvent) {
	if err := s.events.AppendLifecycleEvent(ctx, event); err != nil {
		s.metrics.CounterEventFailures.Inc()
		logrus.WithFields(logrus.Fields{
			"userId":    event.UserID,
			"sessionId": event.SessionID,
			"event":     event.Event,
		}).WithError(err).Error("failed to append lifecycle event")
	}
}

func (s *sessionService) emitSetLog(ctx context.Context, event domain.SetLogEvent) {
	if err := s.events.AppendSetLogEvent(ctx, event); err != nil {
		s.metrics.CounterEventFailures.Inc()
		logrus.WithFields(logrus.Fields{
			"userId":    event.UserID,
			"sessionId": event.SessionID,
			"setId":     event.SetID,
		}).WithError(err).Error("failed to append set-log event")
	}
}
