package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

const (
	snapshotDayLayout  = "2006-01-02"
	snapshotTimeLayout = "150405.000000000"
	snapshotPrefix     = "workout-data-"
	snapshotExt        = ".json"
)

// BackupStorage keeps immutable, point-in-time copies of user documents.
// Keys have the form YYYY-MM-DD/<userId>/workout-data-<HHMMSS.nnnnnnnnn>.json.
type BackupStorage interface {
	// PutSnapshot stores data under the key for (userID, at) and returns that
	// key. An existing snapshot is never overwritten.
	PutSnapshot(ctx context.Context, userID string, at time.Time, data []byte) (string, error)

	// ListSnapshots returns the user's snapshot keys for the calendar day of
	// day, oldest first.
	ListSnapshots(ctx context.Context, userID string, day time.Time) ([]string, error)

	// GetSnapshot returns the content stored under key.
	GetSnapshot(ctx context.Context, key string) ([]byte, error)
}

// Error constants for the storage layer.
var (
	ErrSnapshotNotFound = errors.New("snapshot not found")
	ErrSnapshotExists   = errors.New("snapshot already exists")
	ErrInvalidKey       = errors.New("invalid snapshot key")
)

// SnapshotKey builds the key for a snapshot of userID taken at at (UTC).
func SnapshotKey(userID string, at time.Time) string {
	at = at.UTC()
	return path.Join(dayPrefix(userID, at), snapshotPrefix+at.Format(snapshotTimeLayout)+snapshotExt)
}

func dayPrefix(userID string, day time.Time) string {
	return path.Join(day.UTC().Format(snapshotDayLayout), userID)
}

// ParseSnapshotKey splits a key into its owner and timestamp.
func ParseSnapshotKey(key string) (userID string, at time.Time, err error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	name := parts[2]
	if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotExt) {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotExt)

	at, err = time.Parse(snapshotDayLayout+" "+snapshotTimeLayout, parts[0]+" "+stamp)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %q: %v", ErrInvalidKey, key, err)
	}
	if parts[1] == "" || parts[1] == "." || parts[1] == ".." {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return parts[1], at, nil
}
