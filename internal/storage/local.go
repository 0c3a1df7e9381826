package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// localStorage implements BackupStorage on a local directory tree.
type localStorage struct {
	root string
}

// NewLocalStorage stores snapshots under dir.
func NewLocalStorage(dir string) BackupStorage {
	return &localStorage{root: dir}
}

func (s *localStorage) PutSnapshot(ctx context.Context, userID string, at time.Time, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	key := SnapshotKey(userID, at)
	if _, _, err := ParseSnapshotKey(key); err != nil {
		return "", err
	}
	p := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return "", err
	}

	// O_EXCL keeps snapshots immutable.
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrSnapshotExists, key)
		}
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(p)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return "", err
	}
	return key, nil
}

func (s *localStorage) ListSnapshots(ctx context.Context, userID string, day time.Time) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	prefix := dayPrefix(userID, day)
	entries, err := os.ReadDir(filepath.Join(s.root, filepath.FromSlash(prefix)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), snapshotPrefix) {
			continue
		}
		keys = append(keys, prefix+"/"+e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *localStorage) GetSnapshot(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, _, err := ParseSnapshotKey(key); err != nil {
		return nil, err
	}
	if !filepath.IsLocal(filepath.FromSlash(key)) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, key)
		}
		return nil, err
	}
	return data, nil
}
