package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"fitforge/workout-engine/internal/analytics"
	"fitforge/workout-engine/internal/domain"
)

// Names used in MigrationError.Source.
const (
	sourceStructured = "workout-sessions"
	sourceDailyLogs  = "workout-logs"
)

const defaultWorkoutType = "General"

// legacyIDSpace seeds the deterministic ids given to legacy records that
// carry none, so repeated migrations produce the same ids.
var legacyIDSpace = uuid.MustParse("5b0c9d8e-7f3a-4c21-9a57-3e1f0b6d2c44")

// legacySession is one entry of the structured per-user sessions file.
type legacySession struct {
	ID          string           `json:"id"`
	WorkoutType string           `json:"workoutType"`
	StartTime   *time.Time       `json:"startTime"`
	EndTime     *time.Time       `json:"endTime"`
	Duration    int              `json:"duration"` // minutes, used when endTime is missing
	Status      string           `json:"status"`
	Rating      *int             `json:"rating"`
	Notes       string           `json:"notes"`
	Exercises   []legacyExercise `json:"exercises"`
}

type legacyExercise struct {
	ID         string      `json:"exerciseId"`
	Name       string      `json:"exerciseName"`
	TargetSets int         `json:"targetSets"`
	TargetReps int         `json:"targetReps"`
	Sets       []legacySet `json:"sets"`
}

type legacySet struct {
	SetNumber int        `json:"setNumber"`
	Weight    float64    `json:"weight"`
	Reps      int        `json:"reps"`
	FormScore *float64   `json:"formScore"`
	RPE       *float64   `json:"rpe"`
	Equipment string     `json:"equipment"`
	IsWarmup  bool       `json:"isWarmup"`
	IsDropSet bool       `json:"isDropSet"`
	IsFailure bool       `json:"isFailure"`
	Timestamp *time.Time `json:"timestamp"`
}

// legacySetLog is one entry of a per-day log file.
type legacySetLog struct {
	SessionID    string `json:"sessionId"`
	WorkoutType  string `json:"workoutType"`
	ExerciseID   string `json:"exerciseId"`
	ExerciseName string `json:"exerciseName"`
	legacySet
}

// converter turns legacy records into unified sessions for one user.
type converter struct {
	userID  string
	muscles *domain.MuscleGroupTable
}

func legacyID(parts ...string) string {
	return uuid.NewSHA1(legacyIDSpace, []byte(strings.Join(parts, "|"))).String()
}

// exerciseKey derives an id for an exercise known only by name.
func exerciseKey(id, name string) string {
	if id = strings.TrimSpace(id); id != "" {
		return id
	}
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

func (c *converter) exercise(id, name string, order int) domain.WorkoutExercise {
	groups, _ := c.muscles.Lookup(name)
	return domain.WorkoutExercise{
		ExerciseID:   id,
		ExerciseName: name,
		MuscleGroups: groups,
		OrderIndex:   order,
		Sets:         []domain.SetData{},
	}
}

func (c *converter) set(sessionID string, e *domain.WorkoutExercise, in legacySet, fallback time.Time) (domain.SetData, error) {
	if in.Weight < 0 || in.Reps < 0 {
		return domain.SetData{}, fmt.Errorf("exercise %s: negative weight or reps", e.ExerciseID)
	}
	n := len(e.Sets) + 1
	number := in.SetNumber
	if number <= 0 {
		number = n
	}
	at := fallback
	if in.Timestamp != nil && !in.Timestamp.IsZero() {
		at = in.Timestamp.UTC()
	}
	set := domain.SetData{
		SetID:     fmt.Sprintf("%s-%s-%d", sessionID, e.ExerciseID, n),
		SetNumber: number,
		Weight:    in.Weight,
		Reps:      in.Reps,
		Volume:    analytics.SetVolume(in.Weight, in.Reps),
		FormScore: in.FormScore,
		RPE:       in.RPE,
		Equipment: in.Equipment,
		IsWarmup:  in.IsWarmup,
		IsDropSet: in.IsDropSet,
		IsFailure: in.IsFailure,
		Timestamp: at,
	}
	if err := set.Validate(); err != nil {
		return domain.SetData{}, fmt.Errorf("exercise %s set %d: %w", e.ExerciseID, n, err)
	}
	return set, nil
}

// finish fills every derived field of a converted terminal session and
// validates it.
func (c *converter) finish(s *domain.UnifiedWorkoutSession) error {
	for i := range s.Exercises {
		e := &s.Exercises[i]
		e.TotalVolume = analytics.ExerciseVolume(e)
		e.AverageFormScore = analytics.FormScoreAverage(e.Sets)
	}
	s.TotalVolume = analytics.SessionVolume(s)
	s.Progress = sessionProgress(s)
	s.LastModified = *s.EndTime
	if s.SessionType == domain.SessionCompleted {
		s.Duration = analytics.DurationMinutes(s.StartTime, *s.EndTime)
		s.CaloriesBurned = analytics.CaloriesBurned(s.Duration, s.TotalVolume)
		s.AverageFormScore, s.AverageRPE = analytics.SessionAverages(s)
	}
	return s.Validate()
}

// structuredSession converts one entry of the structured sessions file.
// Anything other than a completed status becomes abandoned.
func (c *converter) structuredSession(raw json.RawMessage) (domain.UnifiedWorkoutSession, error) {
	var in legacySession
	if err := json.Unmarshal(raw, &in); err != nil {
		return domain.UnifiedWorkoutSession{}, err
	}
	if in.StartTime == nil || in.StartTime.IsZero() {
		return domain.UnifiedWorkoutSession{}, errors.New("missing startTime")
	}

	start := in.StartTime.UTC()
	workoutType := strings.TrimSpace(in.WorkoutType)
	if workoutType == "" {
		workoutType = defaultWorkoutType
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = legacyID(c.userID, start.Format(time.RFC3339Nano), workoutType)
	}

	end := start
	switch {
	case in.EndTime != nil && !in.EndTime.IsZero():
		end = in.EndTime.UTC()
	case in.Duration > 0:
		end = start.Add(time.Duration(in.Duration) * time.Minute)
	}
	if end.Before(start) {
		return domain.UnifiedWorkoutSession{}, errors.New("endTime before startTime")
	}

	sessionType := domain.SessionAbandoned
	if strings.EqualFold(strings.TrimSpace(in.Status), string(domain.SessionCompleted)) {
		sessionType = domain.SessionCompleted
	}

	s := domain.UnifiedWorkoutSession{
		ID:              id,
		UserID:          c.userID,
		SessionType:     sessionType,
		Source:          domain.SourceLegacySession,
		StartTime:       start,
		EndTime:         &end,
		WorkoutType:     workoutType,
		Exercises:       []domain.WorkoutExercise{},
		PersonalRecords: []domain.PersonalRecord{},
		Notes:           in.Notes,
	}
	if in.Rating != nil && *in.Rating >= 1 && *in.Rating <= 5 {
		s.Rating = in.Rating
	}

	for _, le := range in.Exercises {
		name := strings.TrimSpace(le.Name)
		if name == "" {
			name = strings.TrimSpace(le.ID)
		}
		if name == "" {
			return domain.UnifiedWorkoutSession{}, errors.New("exercise without id or name")
		}
		exID := exerciseKey(le.ID, name)

		e := s.FindExercise(exID)
		if e == nil {
			s.Exercises = append(s.Exercises, c.exercise(exID, name, len(s.Exercises)))
			e = &s.Exercises[len(s.Exercises)-1]
			e.TargetSets, e.TargetReps = le.TargetSets, le.TargetReps
		}
		for _, ls := range le.Sets {
			set, err := c.set(id, e, ls, start)
			if err != nil {
				return domain.UnifiedWorkoutSession{}, err
			}
			e.Sets = append(e.Sets, set)
		}
	}

	if err := c.finish(&s); err != nil {
		return domain.UnifiedWorkoutSession{}, err
	}
	return s, nil
}

// logGroup gathers the entries of one legacy session id across day files.
type logGroup struct {
	sessionID string
	entries   []legacySetLog
}

// logSession folds one group of per-day entries into a completed session.
// ok is false when no entry names an exercise.
func (c *converter) logSession(g *logGroup) (s domain.UnifiedWorkoutSession, ok bool, err error) {
	s = domain.UnifiedWorkoutSession{
		ID:              g.sessionID,
		UserID:          c.userID,
		SessionType:     domain.SessionCompleted,
		Source:          domain.SourceLegacyLog,
		Exercises:       []domain.WorkoutExercise{},
		PersonalRecords: []domain.PersonalRecord{},
	}

	var start, end time.Time
	for _, entry := range g.entries {
		if entry.Timestamp == nil {
			continue
		}
		at := entry.Timestamp.UTC()
		if start.IsZero() || at.Before(start) {
			start = at
		}
		if at.After(end) {
			end = at
		}
		if s.WorkoutType == "" {
			s.WorkoutType = strings.TrimSpace(entry.WorkoutType)
		}
	}
	if start.IsZero() {
		return s, false, errors.New("no timestamped entries")
	}
	if s.WorkoutType == "" {
		s.WorkoutType = defaultWorkoutType
	}
	s.StartTime = start
	s.EndTime = &end

	for _, entry := range g.entries {
		name := strings.TrimSpace(entry.ExerciseName)
		if name == "" {
			name = strings.TrimSpace(entry.ExerciseID)
		}
		if name == "" {
			continue
		}
		exID := exerciseKey(entry.ExerciseID, name)
		e := s.FindExercise(exID)
		if e == nil {
			s.Exercises = append(s.Exercises, c.exercise(exID, name, len(s.Exercises)))
			e = &s.Exercises[len(s.Exercises)-1]
		}
		set, err := c.set(s.ID, e, entry.legacySet, start)
		if err != nil {
			return s, false, err
		}
		e.Sets = append(e.Sets, set)
	}
	if len(s.Exercises) == 0 {
		return s, false, nil
	}

	if err := c.finish(&s); err != nil {
		return s, false, err
	}
	return s, true, nil
}

// dedupKey identifies a session by start time and workout type. Times are
// compared at millisecond precision, which every store preserves.
func dedupKey(s *domain.UnifiedWorkoutSession) string {
	return s.StartTime.UTC().Truncate(time.Millisecond).Format(time.RFC3339Nano) + "|" + s.WorkoutType
}
