package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/repository"
)

const (
	lifecycleFileName = "lifecycle.json"
	setLogFileName    = "set-logs.json"
	auditTimeLayout   = "20060102T150405.000000000Z"
)

// fileEventRepository implements repository.EventRepository. Each log is a
// JSON array rewritten on append and trimmed to the newest limit entries.
type fileEventRepository struct {
	root  string
	limit int
	mu    sync.Mutex
}

// NewFileEventRepository creates an event repository rooted at dir.
func NewFileEventRepository(dir string, limit int) repository.EventRepository {
	return &fileEventRepository{root: dir, limit: limit}
}

func (r *fileEventRepository) eventPath(userID, name string) (string, error) {
	dir, err := userDir(r.root, userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "events", name), nil
}

func readLog[T any](p string) ([]T, error) {
	raw, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []T{}, nil
		}
		return nil, err
	}
	var entries []T
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", repository.ErrCorrupt, p, err)
	}
	return entries, nil
}

// appendLog adds entry to the log at p. A corrupt log is started afresh
// rather than blocking new events.
func appendLog[T any](p string, entry T, limit int) error {
	entries, err := readLog[T](p)
	if err != nil {
		if !errors.Is(err, repository.ErrCorrupt) {
			return err
		}
		entries = nil
	}
	entries = append(entries, entry)
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return writeFileAtomic(p, raw)
}

func (r *fileEventRepository) AppendLifecycleEvent(ctx context.Context, event domain.LifecycleEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := r.eventPath(event.UserID, lifecycleFileName)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return appendLog(p, event, r.limit)
}

func (r *fileEventRepository) AppendSetLogEvent(ctx context.Context, event domain.SetLogEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := r.eventPath(event.UserID, setLogFileName)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return appendLog(p, event, r.limit)
}

func (r *fileEventRepository) LifecycleEvents(ctx context.Context, userID string) ([]domain.LifecycleEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := r.eventPath(userID, lifecycleFileName)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return readLog[domain.LifecycleEvent](p)
}

func (r *fileEventRepository) SetLogEvents(ctx context.Context, userID string) ([]domain.SetLogEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := r.eventPath(userID, setLogFileName)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return readLog[domain.SetLogEvent](p)
}

// SaveMigrationAudit writes one file per run under migrations/.
func (r *fileEventRepository) SaveMigrationAudit(ctx context.Context, audit domain.MigrationAudit) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := userDir(r.root, audit.UserID)
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(audit, "", "  ")
	if err != nil {
		return err
	}
	name := audit.RanAt.UTC().Format(auditTimeLayout) + ".json"
	return writeFileAtomic(filepath.Join(dir, "migrations", name), raw)
}
