package transfer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
	"github.com/keysas-fr/keysas-io/pkg/log"
)

// MoveDeviceOut mounts devPath read-write and moves every non-directory
// entry in sasDir onto the device: copy out, then delete the source (spec
// §4.E "Egress"). Subdirectories of sasDir are skipped and left in place.
// A copy failure aborts the remaining entries and unmounts immediately
// rather than risking a half-written device.
func MoveDeviceOut(devPath, sasDir string) error {
	release, err := setBusy("out")
	if err != nil {
		return err
	}
	defer release()

	mp, err := Mount(devPath, EgressMountFlags)
	if err != nil {
		return err
	}
	defer mp.Close()

	return moveTreeOut(sasDir, mp.Path)
}

// moveTreeOut is the mount-agnostic half of MoveDeviceOut.
func moveTreeOut(sasDir, dstRoot string) error {
	entries, err := os.ReadDir(sasDir)
	if err != nil {
		return kerrors.New(kerrors.IoFatal, "transfer.moveTreeOut.readdir", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		srcPath := filepath.Join(sasDir, entry.Name())
		dstPath := filepath.Join(dstRoot, entry.Name())

		if err := copyFileContents(srcPath, dstPath); err != nil {
			log.Errorf("egress copy failed, aborting batch: %s", fmt.Errorf("%s: %w", srcPath, err))
			os.Remove(dstPath)
			return kerrors.New(kerrors.IoTransient, "transfer.moveTreeOut.copy", err)
		}
		if err := os.Remove(srcPath); err != nil {
			return kerrors.New(kerrors.IoFatal, "transfer.moveTreeOut.remove_source", err)
		}
	}
	return nil
}
