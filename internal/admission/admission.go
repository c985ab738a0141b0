// Package admission implements per-file admission control (spec §5): at
// most one in-flight job may hold a given library file at a time,
// enforced with an on-disk advisory lock rather than an in-process map
// so the guarantee holds across daemon restarts and multiple processes.
package admission

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"

	"spindle/internal/corerr"
)

// Lock is a held per-file admission lock. Release must be called
// exactly once to free it.
type Lock struct {
	flock *flock.Flock
	path  string
}

// lockPath derives the advisory lock file's path from the library file
// it protects, grounded on five82-spindle's daemon.go PID-lock naming
// convention, placed alongside the target file instead of in a fixed
// runtime directory since any number of files may be admitted at once.
func lockPath(filePath string) string {
	dir := filepath.Dir(filePath)
	base := filepath.Base(filePath)
	return filepath.Join(dir, "."+base+".vpo.lock")
}

// TryAcquire attempts to admit filePath for exclusive processing. ok is
// false (with a nil error) when another process already holds the file.
func TryAcquire(filePath string) (lock *Lock, ok bool, err error) {
	path := lockPath(filePath)
	fl := flock.New(path)
	locked, lockErr := fl.TryLock()
	if lockErr != nil {
		return nil, false, corerr.New(corerr.FilesystemError, "admission", fmt.Sprintf("try-lock %s", path), lockErr)
	}
	if !locked {
		return nil, false, nil
	}
	return &Lock{flock: fl, path: path}, true, nil
}

// Release frees the admission lock; the lock file itself is left in
// place. It is safe to call on a nil Lock.
func (l *Lock) Release() error {
	if l == nil || l.flock == nil {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return corerr.New(corerr.FilesystemError, "admission", fmt.Sprintf("unlock %s", l.path), err)
	}
	return nil
}
