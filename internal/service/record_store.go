package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/repository"
	"fitforge/workout-engine/internal/storage"
	"fitforge/workout-engine/internal/telemetry"
)

// --- Error Definitions ---
var (
	ErrBackupsDisabled  = errors.New("backups are disabled")
	ErrSnapshotMismatch = errors.New("snapshot belongs to another user")
)

// errSkipSave lets an Update callback finish without writing anything.
var errSkipSave = errors.New("no changes to save")

// maxUpdateAttempts bounds retries after another writer bumped the version.
const maxUpdateAttempts = 3

// --- Service Interface ---

// RecordStore owns the per-user workout document: loading, validated saving,
// backup-on-write and the per-user serialization of read-modify-write cycles.
type RecordStore interface {
	// Load never fails because a document is absent or malformed; both yield
	// the user's zero state.
	Load(ctx context.Context, userID string) (*domain.UserWorkoutData, error)
	Save(ctx context.Context, data *domain.UserWorkoutData) error
	// Update loads the user's document, applies fn and saves the result while
	// holding the user's lock. Nothing is written when fn returns an error.
	Update(ctx context.Context, userID string, fn func(data *domain.UserWorkoutData) error) (*domain.UserWorkoutData, error)
	ListUserIDs(ctx context.Context) ([]string, error)
	Snapshots(ctx context.Context, userID string, day time.Time) ([]string, error)
	Restore(ctx context.Context, userID, key string) (*domain.UserWorkoutData, error)
}

// --- Service Implementation ---

type recordStore struct {
	repo    repository.WorkoutDataRepository
	backups storage.BackupStorage // nil disables snapshots
	metrics *telemetry.Metrics
	locks   *userLocks
	now     func() time.Time
}

// NewRecordStore creates a record store. backups may be nil.
func NewRecordStore(repo repository.WorkoutDataRepository, backups storage.BackupStorage, metrics *telemetry.Metrics, opts ...Option) RecordStore {
	o := newOptions(opts)
	return &recordStore{
		repo:    repo,
		backups: backups,
		metrics: metrics,
		locks:   newUserLocks(),
		now:     o.now,
	}
}

func (s *recordStore) Load(ctx context.Context, userID string) (*domain.UserWorkoutData, error) {
	if !domain.ValidUserID(userID) {
		return nil, domain.NewValidationError("userId (userid)")
	}

	data, err := s.repo.Load(ctx, userID)
	if err != nil {
		var corrupt *repository.CorruptError
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return domain.NewUserWorkoutData(userID), nil
		case errors.As(err, &corrupt):
			return s.degrade(userID, corrupt.Version, err), nil
		default:
			return nil, fmt.Errorf("load workout data for %s: %w", userID, err)
		}
	}

	if data.UserID != userID {
		return s.degrade(userID, data.Version, fmt.Errorf("document owned by %q", data.UserID)), nil
	}
	if err := data.Validate(); err != nil {
		return s.degrade(userID, data.Version, err), nil
	}
	normalize(data)
	return data, nil
}

// degrade replaces an unreadable document with zero state. The stored
// version is kept so the next save replaces the bad document.
func (s *recordStore) degrade(userID string, version int64, cause error) *domain.UserWorkoutData {
	logrus.WithFields(logrus.Fields{
		"userId":  userID,
		"version": version,
	}).WithError(cause).Warn("stored workout data is invalid, falling back to empty state")
	s.metrics.CounterCorruptDocs.Inc()

	data := domain.NewUserWorkoutData(userID)
	data.Version = version
	return data
}

// normalize replaces nil slices left by decoding with empty ones.
func normalize(data *domain.UserWorkoutData) {
	if data.Sessions == nil {
		data.Sessions = []domain.UnifiedWorkoutSession{}
	}
	if data.Aggregations.StrongestMuscleGroups == nil {
		data.Aggregations.StrongestMuscleGroups = []domain.MuscleGroupVolume{}
	}
	for i := range data.Sessions {
		sess := &data.Sessions[i]
		if sess.Exercises == nil {
			sess.Exercises = []domain.WorkoutExercise{}
		}
		if sess.PersonalRecords == nil {
			sess.PersonalRecords = []domain.PersonalRecord{}
		}
		if sess.Progress.MuscleGroupsTargeted == nil {
			sess.Progress.MuscleGroupsTargeted = []string{}
		}
	}
}

func (s *recordStore) Save(ctx context.Context, data *domain.UserWorkoutData) error {
	release, err := s.locks.acquire(ctx, data.UserID)
	if err != nil {
		return err
	}
	defer release()
	return s.save(ctx, data)
}

// save must be called with the user's lock held.
func (s *recordStore) save(ctx context.Context, data *domain.UserWorkoutData) error {
	// 1. Stamp
	now := s.now().UTC()
	prevUpdated := data.LastUpdated
	data.LastUpdated = now
	data.Version++

	// 2. Validate the whole document; nothing is written on failure
	if err := data.Validate(); err != nil {
		data.LastUpdated = prevUpdated
		data.Version--
		return err
	}

	// 3. Persist
	if err := s.repo.Save(ctx, data); err != nil {
		data.LastUpdated = prevUpdated
		data.Version--
		return err
	}

	// 4. Backup (side effect, never fails the write)
	s.backup(ctx, data, now)
	return nil
}

func (s *recordStore) backup(ctx context.Context, data *domain.UserWorkoutData, at time.Time) {
	if s.backups == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err == nil {
		_, err = s.backups.PutSnapshot(ctx, data.UserID, at, raw)
	}
	if err != nil {
		s.metrics.CounterBackupFailures.Inc()
		logrus.WithFields(logrus.Fields{
			"userId":  data.UserID,
			"version": data.Version,
		}).WithError(err).Error("failed to write workout data backup")
	}
}

func (s *recordStore) Update(ctx context.Context, userID string, fn func(data *domain.UserWorkoutData) error) (*domain.UserWorkoutData, error) {
	if !domain.ValidUserID(userID) {
		return nil, domain.NewValidationError("userId (userid)")
	}
	release, err := s.locks.acquire(ctx, userID)
	if err != nil {
		return nil, err
	}
	defer release()

	for attempt := 1; ; attempt++ {
		data, err := s.Load(ctx, userID)
		if err != nil {
			return nil, err
		}
		if err := fn(data); err != nil {
			if errors.Is(err, errSkipSave) {
				return data, nil
			}
			return nil, err
		}

		err = s.save(ctx, data)
		if errors.Is(err, repository.ErrVersionConflict) && attempt < maxUpdateAttempts {
			logrus.WithFields(logrus.Fields{
				"userId":  userID,
				"attempt": attempt,
			}).Warn("workout data changed underneath update, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}
		return data, nil
	}
}

func (s *recordStore) ListUserIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListUserIDs(ctx)
}

func (s *recordStore) Snapshots(ctx context.Context, userID string, day time.Time) ([]string, error) {
	if s.backups == nil {
		return nil, ErrBackupsDisabled
	}
	if !domain.ValidUserID(userID) {
		return nil, domain.NewValidationError("userId (userid)")
	}
	return s.backups.ListSnapshots(ctx, userID, day)
}

// Restore makes a snapshot the user's current document. The snapshot must
// pass the same validation as any other write.
func (s *recordStore) Restore(ctx context.Context, userID, key string) (*domain.UserWorkoutData, error) {
	if s.backups == nil {
		return nil, ErrBackupsDisabled
	}
	owner, _, err := storage.ParseSnapshotKey(key)
	if err != nil {
		return nil, err
	}
	if owner != userID {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotMismatch, key)
	}

	raw, err := s.backups.GetSnapshot(ctx, key)
	if err != nil {
		return nil, err
	}
	var snapshot domain.UserWorkoutData
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return nil, domain.NewValidationError(fmt.Sprintf("snapshot %s: %v", key, err))
	}
	if snapshot.UserID != userID {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotMismatch, key)
	}
	normalize(&snapshot)

	restored, err := s.Update(ctx, userID, func(data *domain.UserWorkoutData) error {
		version := data.Version
		*data = snapshot
		data.Version = version
		return nil
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"userId":  userID,
		"key":     key,
		"version": restored.Version,
	}).Info("workout data restored from snapshot")
	return restored, nil
}
