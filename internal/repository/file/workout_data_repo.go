package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/repository"
)

const workoutDataFileName = "workout-data.json"

// fileWorkoutDataRepository implements repository.WorkoutDataRepository with
// one JSON document per user under <root>/users/<userId>/.
type fileWorkoutDataRepository struct {
	root string
	mu   sync.Mutex // guards the version check-and-write
}

// NewFileWorkoutDataRepository creates a repository rooted at dir.
func NewFileWorkoutDataRepository(dir string) repository.WorkoutDataRepository {
	return &fileWorkoutDataRepository{root: dir}
}

func (r *fileWorkoutDataRepository) path(userID string) (string, error) {
	dir, err := userDir(r.root, userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, workoutDataFileName), nil
}

func (r *fileWorkoutDataRepository) Load(ctx context.Context, userID string) (*domain.UserWorkoutData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := r.path(userID)
	if err != nil {
		return nil, err
	}
	return readDocument(userID, p)
}

func readDocument(userID, p string) (*domain.UserWorkoutData, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	var data domain.UserWorkoutData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, &repository.CorruptError{UserID: userID, Err: fmt.Errorf("%s: %w", p, err)}
	}
	return &data, nil
}

func (r *fileWorkoutDataRepository) Save(ctx context.Context, data *domain.UserWorkoutData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := r.path(data.UserID)
	if err != nil {
		return err
	}

	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// A corrupt or missing file has no version to conflict with.
	if stored, err := readDocument(data.UserID, p); err == nil && stored.Version != data.Version-1 {
		return repository.ErrVersionConflict
	}
	return writeFileAtomic(p, raw)
}

func (r *fileWorkoutDataRepository) ListUserIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(r.root, "users"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || !domain.ValidUserID(e.Name()) {
			continue
		}
		if _, err := os.Stat(filepath.Join(r.root, "users", e.Name(), workoutDataFileName)); err == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}
