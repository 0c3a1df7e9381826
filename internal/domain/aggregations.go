package domain

import (
	"time"
)

// MuscleGroupVolume is the cumulative volume attributed to one muscle group.
type MuscleGroupVolume struct {
	MuscleGroup string  `bson:"muscleGroup" json:"muscleGroup"`
	Volume      float64 `bson:"volume" json:"volume"`
}

// Aggregations is the per-user summary derived from completed sessions.
// It is only ever produced by recomputation.
type Aggregations struct {
	TotalWorkouts          int                 `bson:"totalWorkouts" json:"totalWorkouts" validate:"gte=0"`
	TotalVolume            float64             `bson:"totalVolume" json:"totalVolume" validate:"gte=0"`
	TotalCalories          int                 `bson:"totalCalories" json:"totalCalories" validate:"gte=0"`
	TotalDuration          int                 `bson:"totalDuration" json:"totalDuration" validate:"gte=0"`
	CurrentStreak          int                 `bson:"currentStreak" json:"currentStreak" validate:"gte=0"`
	LongestStreak          int                 `bson:"longestStreak" json:"longestStreak" validate:"gte=0"`
	AverageWorkoutsPerWeek float64             `bson:"averageWorkoutsPerWeek" json:"averageWorkoutsPerWeek" validate:"gte=0"`
	LastWorkoutDate        *time.Time          `bson:"lastWorkoutDate,omitempty" json:"lastWorkoutDate,omitempty"`
	FavoriteWorkoutType    string              `bson:"favoriteWorkoutType,omitempty" json:"favoriteWorkoutType,omitempty"`
	StrongestMuscleGroups  []MuscleGroupVolume `bson:"strongestMuscleGroups" json:"strongestMuscleGroups" validate:"max=3"`
	PersonalRecordCount    int                 `bson:"personalRecordCount" json:"personalRecordCount" validate:"gte=0"`
}

// UserWorkoutData is the per-user root document holding every session plus
// the derived aggregate snapshot.
type UserWorkoutData struct {
	UserID       string                  `bson:"userId" json:"userId" validate:"required,userid"`
	LastUpdated  time.Time               `bson:"lastUpdated" json:"lastUpdated"`
	Version      int64                   `bson:"version" json:"version" validate:"gte=0"`
	Sessions     []UnifiedWorkoutSession `bson:"sessions" json:"sessions" validate:"dive"`
	Aggregations Aggregations            `bson:"aggregations" json:"aggregations"`
}

// NewUserWorkoutData returns the zero-state document for a user.
func NewUserWorkoutData(userID string) *UserWorkoutData {
	return &UserWorkoutData{
		UserID:   userID,
		Sessions: []UnifiedWorkoutSession{},
		Aggregations: Aggregations{
			StrongestMuscleGroups: []MuscleGroupVolume{},
		},
	}
}

// FindSession returns the session with the given id, or nil.
func (d *UserWorkoutData) FindSession(sessionID string) *UnifiedWorkoutSession {
	for i := range d.Sessions {
		if d.Sessions[i].ID == sessionID {
			return &d.Sessions[i]
		}
	}
	return nil
}

// ActiveSession returns the user's active session, or nil.
func (d *UserWorkoutData) ActiveSession() *UnifiedWorkoutSession {
	for i := range d.Sessions {
		if d.Sessions[i].SessionType == SessionActive {
			return &d.Sessions[i]
		}
	}
	return nil
}

// CompletedSessions returns copies of every completed session.
func (d *UserWorkoutData) CompletedSessions() []UnifiedWorkoutSession {
	out := make([]UnifiedWorkoutSession, 0, len(d.Sessions))
	for _, s := range d.Sessions {
		if s.SessionType == SessionCompleted {
			out = append(out, s)
		}
	}
	return out
}
