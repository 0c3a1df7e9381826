// Package file implements the repository interfaces on the local filesystem,
// one directory per user.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"fitforge/workout-engine/internal/domain"
	"fitforge/workout-engine/internal/repository"
)

const (
	dirPerm  = 0o750
	filePerm = 0o600
)

// userDir returns the directory holding everything stored for userID.
func userDir(root, userID string) (string, error) {
	if !domain.ValidUserID(userID) {
		return "", fmt.Errorf("%w: %q", repository.ErrInvalidKey, userID)
	}
	return filepath.Join(root, "users", userID), nil
}

// writeFileAtomic writes data to a temp file in the target directory and
// renames it over path, so readers never observe a partial document.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, filePerm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
