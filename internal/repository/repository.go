package repository

import (
	"context"
	"fmt"
	"time"

	"fitforge/workout-engine/internal/domain"
)

// Error constants for the repository layer.
var (
	ErrNotFound   = RepositoryError("not found")
	ErrCorrupt    = RepositoryError("stored document is corrupt")
	ErrInvalidKey = RepositoryError("invalid user id for storage")

	// ErrVersionConflict is returned by Save when the stored document is not
	// at the version the caller loaded.
	ErrVersionConflict = RepositoryError("document was modified concurrently")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// CorruptError is returned by Load when a stored document exists but cannot
// be decoded. Version is the stored write counter when it could still be
// read, so a replacement document can be saved over the corrupt one.
type CorruptError struct {
	UserID  string
	Version int64
	Err     error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("%s: user %s: %v", ErrCorrupt, e.UserID, e.Err)
}

func (e *CorruptError) Is(target error) bool {
	return target == ErrCorrupt
}

func (e *CorruptError) Unwrap() error {
	return e.Err
}

// WorkoutDataRepository persists one UserWorkoutData document per user.
type WorkoutDataRepository interface {
	// Load returns ErrNotFound when the user has no document yet and a
	// *CorruptError when the stored bytes cannot be decoded.
	Load(ctx context.Context, userID string) (*domain.UserWorkoutData, error)
	// Save replaces the user's document atomically. data.Version must be one
	// more than the stored version (or 1 for a new document).
	Save(ctx context.Context, data *domain.UserWorkoutData) error
	// ListUserIDs returns every user that has a stored document.
	ListUserIDs(ctx context.Context) ([]string, error)
}

// EventRepository keeps the append-only event logs of a user. Lifecycle and
// set-log logs are trimmed to the most recent entries on every append.
type EventRepository interface {
	AppendLifecycleEvent(ctx context.Context, event domain.LifecycleEvent) error
	AppendSetLogEvent(ctx context.Context, event domain.SetLogEvent) error
	LifecycleEvents(ctx context.Context, userID string) ([]domain.LifecycleEvent, error)
	SetLogEvents(ctx context.Context, userID string) ([]domain.SetLogEvent, error)
	SaveMigrationAudit(ctx context.Context, audit domain.MigrationAudit) error
}

// LegacyDailyLog is the raw content of one per-day legacy log file.
type LegacyDailyLog struct {
	Name    string
	Day     time.Time
	Content []byte
}

// LegacySource reads the two historical on-disk formats. Both methods return
// empty results, not errors, when the user has no legacy data.
type LegacySource interface {
	// StructuredSessions returns the raw JSON array of legacy sessions.
	StructuredSessions(ctx context.Context, userID string) ([]byte, error)
	// DailyLogs returns every per-day log file of the user, oldest first.
	DailyLogs(ctx context.Context, userID string) ([]LegacyDailyLog, error)
}
