// internal/domain/workout.go
package domain

import (
	"time"
)

// SessionType tracks where a session is in its lifecycle.
type SessionType string

const (
	SessionActive    SessionType = "active"
	SessionCompleted SessionType = "completed"
	SessionAbandoned SessionType = "abandoned"
)

// IsTerminal reports whether no further mutation is allowed.
func (t SessionType) IsTerminal() bool {
	return t == SessionCompleted || t == SessionAbandoned
}

// SessionSource records where a session came from.
type SessionSource string

const (
	SourceNative        SessionSource = "native"
	SourceLegacySession SessionSource = "legacy-session"
	SourceLegacyLog     SessionSource = "legacy-log"
)

// SetData is one completed set. It is never modified after it is appended.
type SetData struct {
	SetID     string    `bson:"setId" json:"setId" validate:"required"`
	SetNumber int       `bson:"setNumber" json:"setNumber" validate:"gte=1"`
	Weight    float64   `bson:"weight" json:"weight" validate:"gte=0"`
	Reps      int       `bson:"reps" json:"reps" validate:"gte=0"`
	Volume    float64   `bson:"volume" json:"volume" validate:"gte=0"`
	FormScore *float64  `bson:"formScore,omitempty" json:"formScore,omitempty" validate:"omitempty,gte=0,lte=10"`
	RPE       *float64  `bson:"rpe,omitempty" json:"rpe,omitempty" validate:"omitempty,gte=1,lte=10"`
	Equipment string    `bson:"equipment,omitempty" json:"equipment,omitempty" validate:"max=64"`
	IsWarmup  bool      `bson:"isWarmup" json:"isWarmup"`
	IsDropSet bool      `bson:"isDropSet" json:"isDropSet"`
	IsFailure bool      `bson:"isFailure" json:"isFailure"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp" validate:"required"`
}

// ProgressiveOverload is attached to an exercise when the session completes and
// an earlier completed session contains the same exercise.
type ProgressiveOverload struct {
	PreviousBestWeight float64 `bson:"previousBestWeight" json:"previousBestWeight" validate:"gte=0"`
	PreviousBestVolume float64 `bson:"previousBestVolume" json:"previousBestVolume" validate:"gte=0"`
	RecommendedWeight  float64 `bson:"recommendedWeight" json:"recommendedWeight" validate:"gte=0"`
	RecommendedReps    int     `bson:"recommendedReps" json:"recommendedReps" validate:"gte=0"`
	ProgressPercentage float64 `bson:"progressPercentage" json:"progressPercentage"`
}

// WorkoutExercise is one exercise performed within a session.
type WorkoutExercise struct {
	ExerciseID          string               `bson:"exerciseId" json:"exerciseId" validate:"required,max=128"`
	ExerciseName        string               `bson:"exerciseName" json:"exerciseName" validate:"required,max=256"`
	MuscleGroups        []string             `bson:"muscleGroups" json:"muscleGroups"`
	OrderIndex          int                  `bson:"orderIndex" json:"orderIndex" validate:"gte=0"`
	Sets                []SetData            `bson:"sets" json:"sets" validate:"dive"`
	TargetSets          int                  `bson:"targetSets,omitempty" json:"targetSets,omitempty" validate:"gte=0"`
	TargetReps          int                  `bson:"targetReps,omitempty" json:"targetReps,omitempty" validate:"gte=0"`
	TargetRestSeconds   int                  `bson:"targetRestSeconds,omitempty" json:"targetRestSeconds,omitempty" validate:"gte=0"`
	AverageFormScore    *float64             `bson:"averageFormScore,omitempty" json:"averageFormScore,omitempty" validate:"omitempty,gte=0,lte=10"`
	TotalVolume         float64              `bson:"totalVolume" json:"totalVolume" validate:"gte=0"`
	ProgressiveOverload *ProgressiveOverload `bson:"progressiveOverload,omitempty" json:"progressiveOverload,omitempty"`
}

// MaxWeight returns the heaviest single set of the exercise.
func (e *WorkoutExercise) MaxWeight() float64 {
	var best float64
	for _, s := range e.Sets {
		if s.Weight > best {
			best = s.Weight
		}
	}
	return best
}

// PlannedExercise is an exercise the user intends to perform, given at create time.
type PlannedExercise struct {
	ExerciseID        string `bson:"exerciseId" json:"exerciseId" validate:"required,max=128"`
	ExerciseName      string `bson:"exerciseName" json:"exerciseName" validate:"required,max=256"`
	TargetSets        int    `bson:"targetSets,omitempty" json:"targetSets,omitempty" validate:"gte=0"`
	TargetReps        int    `bson:"targetReps,omitempty" json:"targetReps,omitempty" validate:"gte=0"`
	TargetRestSeconds int    `bson:"targetRestSeconds,omitempty" json:"targetRestSeconds,omitempty" validate:"gte=0"`
}

// SessionProgress holds the per-session counters updated on every logged set.
type SessionProgress struct {
	TotalSets            int      `bson:"totalSets" json:"totalSets" validate:"gte=0"`
	TotalExercises       int      `bson:"totalExercises" json:"totalExercises" validate:"gte=0"`
	MuscleGroupsTargeted []string `bson:"muscleGroupsTargeted" json:"muscleGroupsTargeted"`
}

// RecordType distinguishes what kind of personal record was beaten.
type RecordType string

const (
	RecordWeight RecordType = "weight"
	RecordVolume RecordType = "volume"
)

// PersonalRecord is produced when a completed session beats every earlier
// completed session for an exercise.
type PersonalRecord struct {
	SessionID             string     `bson:"sessionId" json:"sessionId"`
	ExerciseID            string     `bson:"exerciseId" json:"exerciseId"`
	ExerciseName          string     `bson:"exerciseName" json:"exerciseName" validate:"required"`
	Type                  RecordType `bson:"type" json:"type" validate:"oneof=weight volume"`
	PreviousValue         float64    `bson:"previousValue" json:"previousValue" validate:"gt=0"`
	NewValue              float64    `bson:"newValue" json:"newValue" validate:"gtfield=PreviousValue"`
	ImprovementPercentage float64    `bson:"improvementPercentage" json:"improvementPercentage"`
	AchievedAt            time.Time  `bson:"achievedAt" json:"achievedAt"`
}

// UnifiedWorkoutSession is the aggregate root of a single workout.
type UnifiedWorkoutSession struct {
	ID               string            `bson:"id" json:"id" validate:"required,max=128"`
	UserID           string            `bson:"userId" json:"userId" validate:"required,userid"`
	SessionType      SessionType       `bson:"sessionType" json:"sessionType" validate:"oneof=active completed abandoned"`
	Source           SessionSource     `bson:"source,omitempty" json:"source,omitempty" validate:"omitempty,oneof=native legacy-session legacy-log"`
	StartTime        time.Time         `bson:"startTime" json:"startTime" validate:"required"`
	EndTime          *time.Time        `bson:"endTime,omitempty" json:"endTime,omitempty"`
	LastModified     time.Time         `bson:"lastModified" json:"lastModified"`
	WorkoutType      string            `bson:"workoutType" json:"workoutType" validate:"required,max=128"`
	PlannedExercises []PlannedExercise `bson:"plannedExercises,omitempty" json:"plannedExercises,omitempty" validate:"dive"`
	Exercises        []WorkoutExercise `bson:"exercises" json:"exercises" validate:"dive"`
	TotalVolume      float64           `bson:"totalVolume" json:"totalVolume" validate:"gte=0"`
	Progress         SessionProgress   `bson:"progress" json:"progress"`
	Duration         int               `bson:"duration" json:"duration" validate:"gte=0"`
	CaloriesBurned   int               `bson:"caloriesBurned" json:"caloriesBurned" validate:"gte=0"`
	PersonalRecords  []PersonalRecord  `bson:"personalRecords" json:"personalRecords" validate:"dive"`
	Rating           *int              `bson:"rating,omitempty" json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	Notes            string            `bson:"notes,omitempty" json:"notes,omitempty" validate:"max=4096"`
	AverageFormScore *float64          `bson:"averageFormScore,omitempty" json:"averageFormScore,omitempty" validate:"omitempty,gte=0,lte=10"`
	AverageRPE       *float64          `bson:"averageRpe,omitempty" json:"averageRpe,omitempty" validate:"omitempty,gte=1,lte=10"`
}

// FindExercise returns the exercise entry with the given id, or nil.
func (s *UnifiedWorkoutSession) FindExercise(exerciseID string) *WorkoutExercise {
	for i := range s.Exercises {
		if s.Exercises[i].ExerciseID == exerciseID {
			return &s.Exercises[i]
		}
	}
	return nil
}

// FindPlanned returns the planned exercise with the given id, or nil.
func (s *UnifiedWorkoutSession) FindPlanned(exerciseID string) *PlannedExercise {
	for i := range s.PlannedExercises {
		if s.PlannedExercises[i].ExerciseID == exerciseID {
			return &s.PlannedExercises[i]
		}
	}
	return nil
}

// SetCount is the number of sets logged across all exercises.
func (s *UnifiedWorkoutSession) SetCount() int {
	n := 0
	for _, e := range s.Exercises {
		n += len(e.Sets)
	}
	return n
}
