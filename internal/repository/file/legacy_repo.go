package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/repository"
)

const (
	legacySessionsDir = "workout-sessions"
	legacyLogsDir     = "workout-logs"
	legacyDayLayout   = "2006-01-02"
)

// legacySource implements repository.LegacySource over the historical
// directory layout:
//
//	<dir>/workout-sessions/<userId>.json
//	<dir>/workout-logs/<userId>/<YYYY-MM-DD>.json
type legacySource struct {
	dir string
}

// NewLegacySource reads legacy data from dir.
func NewLegacySource(dir string) repository.LegacySource {
	return &legacySource{dir: dir}
}

func (l *legacySource) StructuredSessions(ctx context.Context, userID string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !domain.ValidUserID(userID) {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidKey, userID)
	}
	raw, err := os.ReadFile(filepath.Join(l.dir, legacySessionsDir, userID+".json"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return raw, nil
}

// DailyLogs returns the user's log files sorted by name, which for the
// date-named files is oldest first. Day is zero when the name is not a date.
func (l *legacySource) DailyLogs(ctx context.Context, userID string) ([]repository.LegacyDailyLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !domain.ValidUserID(userID) {
		return nil, fmt.Errorf("%w: %q", repository.ErrInvalidKey, userID)
	}

	dir := filepath.Join(l.dir, legacyLogsDir, userID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []repository.LegacyDailyLog{}, nil
		}
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	logs := make([]repository.LegacyDailyLog, 0, len(names))
	for _, name := range names {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		entry := repository.LegacyDailyLog{Name: name, Content: content}
		if day, err := time.Parse(legacyDayLayout, strings.TrimSuffix(name, ".json")); err == nil {
			entry.Day = day
		}
		logs = append(logs, entry)
	}
	return logs, nil
}
