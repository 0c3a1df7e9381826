package domain

import (
	"time"
)

// LifecycleEventType names a session state transition.
type LifecycleEventType string

const (
	EventSessionCreated   LifecycleEventType = "created"
	EventSessionCompleted LifecycleEventType = "completed"
	EventSessionAbandoned LifecycleEventType = "abandoned"
)

// LifecycleEvent is appended to the user's event log on every transition.
type LifecycleEvent struct {
	SessionID   string             `bson:"sessionId" json:"sessionId"`
	UserID      string             `bson:"userId" json:"userId"`
	Event       LifecycleEventType `bson:"event" json:"event"`
	WorkoutType string             `bson:"workoutType,omitempty" json:"workoutType,omitempty"`
	Reason      string             `bson:"reason,omitempty" json:"reason,omitempty"`
	At          time.Time          `bson:"at" json:"at"`
}

// SetLogEvent is appended to the user's event log for every logged set.
type SetLogEvent struct {
	SessionID   string    `bson:"sessionId" json:"sessionId"`
	UserID      string    `bson:"userId" json:"userId"`
	ExerciseID  string    `bson:"exerciseId" json:"exerciseId"`
	SetID       string    `bson:"setId" json:"setId"`
	Weight      float64   `bson:"weight" json:"weight"`
	Reps        int       `bson:"reps" json:"reps"`
	Volume      float64   `bson:"volume" json:"volume"`
	TotalVolume float64   `bson:"totalVolume" json:"totalVolume"`
	At          time.Time `bson:"at" json:"at"`
}

// MigrationAudit records the outcome of one legacy migration run.
type MigrationAudit struct {
	UserID            string           `bson:"userId" json:"userId"`
	RanAt             time.Time        `bson:"ranAt" json:"ranAt"`
	MigratedSessions  int              `bson:"migratedSessions" json:"migratedSessions"`
	MigratedLogs      int              `bson:"migratedLogs" json:"migratedLogs"`
	DuplicatesDropped int              `bson:"duplicatesDropped" json:"duplicatesDropped"`
	TotalSessions     int              `bson:"totalSessions" json:"totalSessions"`
	Errors            []MigrationError `bson:"errors" json:"errors"`
}
