// Package atomicfile provides the atomic temp-output-then-rename
// pattern the Phase Executor uses to replace a library file (spec §5):
// write to a `.vpo_temp_<basename>` sibling, then rename it over the
// original. Rename fails with EXDEV when the staging and library
// directories are different filesystems/mounts; this package falls back
// to a copy-then-remove in that case.
package atomicfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"spindle/internal/corerr"
)

// TempPath derives the `.vpo_temp_<basename>` sibling path an in-progress
// write should target before it is renamed into place.
func TempPath(finalPath string) string {
	dir := filepath.Dir(finalPath)
	base := filepath.Base(finalPath)
	return filepath.Join(dir, ".vpo_temp_"+base)
}

// BackupPath derives the `.vpo-backup` sibling path a pre-mutation
// backup of finalPath should use.
func BackupPath(finalPath string) string {
	return finalPath + ".vpo-backup"
}

// Rename moves tempPath to finalPath, falling back to copy+remove when
// the two paths are on different devices (EXDEV).
func Rename(tempPath, finalPath string) error {
	err := os.Rename(tempPath, finalPath)
	if err == nil {
		return nil
	}
	if !errors.Is(err, unix.EXDEV) {
		return corerr.New(corerr.FilesystemError, "atomicfile", fmt.Sprintf("rename %s -> %s", tempPath, finalPath), err)
	}
	if copyErr := copyFile(tempPath, finalPath); copyErr != nil {
		return corerr.New(corerr.FilesystemError, "atomicfile", fmt.Sprintf("cross-device copy %s -> %s", tempPath, finalPath), copyErr)
	}
	if rmErr := os.Remove(tempPath); rmErr != nil {
		return corerr.New(corerr.FilesystemError, "atomicfile", fmt.Sprintf("remove staged temp %s", tempPath), rmErr)
	}
	return nil
}

// Backup copies srcPath to its BackupPath so a failed operation can be
// rolled back. It overwrites any previous backup of the same file.
func Backup(srcPath string) (string, error) {
	dst := BackupPath(srcPath)
	if err := copyFile(srcPath, dst); err != nil {
		return "", corerr.New(corerr.FilesystemError, "atomicfile", fmt.Sprintf("backup %s", srcPath), err)
	}
	return dst, nil
}

// Restore copies backupPath back over finalPath, undoing a failed
// in-place mutation, and removes the backup once restored.
func Restore(backupPath, finalPath string) error {
	if err := copyFile(backupPath, finalPath); err != nil {
		return corerr.New(corerr.FilesystemError, "atomicfile", fmt.Sprintf("restore %s from %s", finalPath, backupPath), err)
	}
	if err := os.Remove(backupPath); err != nil {
		return corerr.New(corerr.FilesystemError, "atomicfile", fmt.Sprintf("remove backup %s", backupPath), err)
	}
	return nil
}

// DiscardBackup removes a backup once an operation has committed
// successfully and the backup is no longer needed.
func DiscardBackup(backupPath string) error {
	if err := os.Remove(backupPath); err != nil && !os.IsNotExist(err) {
		return corerr.New(corerr.FilesystemError, "atomicfile", fmt.Sprintf("discard backup %s", backupPath), err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
