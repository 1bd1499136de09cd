package transfer

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
	"github.com/keysas-fr/keysas-io/pkg/log"
)

// maxConcurrentFileCopies bounds the per-file worker pool so a device with
// thousands of tiny files doesn't spawn thousands of goroutines at once;
// all workers still join before the scope (and the mount) is released.
const maxConcurrentFileCopies = 8

// CopyDeviceIn mounts devPath read-only and copies every regular file it
// contains into sasDir, sanitizing each destination filename per
// SanitizeFilename (spec §4.E, "Ingress"). The device is always unmounted
// before CopyDeviceIn returns, and the batch lock file is always removed.
func CopyDeviceIn(devPath, sasDir string) error {
	release, err := setBusy("in")
	if err != nil {
		return err
	}
	defer release()

	unlock, err := beginBatch(sasDir)
	if err != nil {
		return err
	}
	defer unlock()

	mp, err := Mount(devPath, IngressMountFlags)
	if err != nil {
		return err
	}
	defer mp.Close()

	return copyTreeIn(mp.Path, sasDir)
}

// copyTreeIn is the mount-agnostic half of CopyDeviceIn: it walks srcRoot
// and copies each regular file into dstDir, so it can be exercised in tests
// against a plain temp directory standing in for a mounted device.
func copyTreeIn(srcRoot, dstDir string) error {
	var entries []string
	err := filepath.WalkDir(srcRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			entries = append(entries, path)
		}
		return nil
	})
	if err != nil {
		return kerrors.New(kerrors.IoFatal, "transfer.copyTreeIn.walk", err)
	}

	var wg sync.WaitGroup
	sem := make(chan struct{}, maxConcurrentFileCopies)

	for _, srcPath := range entries {
		srcPath := srcPath
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			copyOneFileIn(srcPath, dstDir)
		}()
	}
	wg.Wait() // all workers join before the mount can be released
	return nil
}

// copyOneFileIn copies a single file into dstDir under its sanitized name.
// Per-file failure never aborts siblings: it is reported via a sibling
// ".ioerror" file instead of returning an error to the caller.
func copyOneFileIn(srcPath, dstDir string) {
	destName := SanitizeFilename(filepath.Base(srcPath))
	finalPath := filepath.Join(dstDir, destName)
	stagingPath := finalPath + ".part"

	if err := copyFileContents(srcPath, stagingPath); err != nil {
		reportIOError(finalPath, err)
		os.Remove(stagingPath)
		return
	}

	if err := os.Rename(stagingPath, finalPath); err != nil {
		reportIOError(finalPath, fmt.Errorf("rename staging to final: %w", err))
		os.Remove(stagingPath)
	}
}

// copyFileContents copies the contents of srcPath to dstPath, creating
// dstPath and truncating it if it already exists.
func copyFileContents(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer dst.Close()

	_, err = io.Copy(dst, src)
	return err
}

// reportIOError writes a sibling "<name>.ioerror" file containing the error
// text, the observable trace of a per-file transfer failure (spec §4.E).
func reportIOError(finalPath string, copyErr error) {
	log.Errorf("file copy failed: %s", copyErr)
	_ = os.WriteFile(finalPath+".ioerror", []byte(copyErr.Error()+"\n"), 0o644)
}
