package transfer

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
)

// candidateFilesystems are tried in order since the raw mount(2) syscall,
// unlike the `mount` CLI, has no "auto" filesystem type: USB sticks in the
// field are overwhelmingly vfat/exfat, with ext4/ntfs as a fallback.
var candidateFilesystems = []string{"vfat", "exfat", "ext4", "ntfs3", "ntfs"}

// MountPoint is a scoped resource: Close unmounts and removes the temporary
// mount directory unconditionally, so it is always used via defer from the
// line that creates it (spec §4.E "Lifetime contract").
type MountPoint struct {
	Path string
}

// Mount creates a fresh temporary directory and mounts devPath onto it with
// flags, trying each of candidateFilesystems until one succeeds.
func Mount(devPath string, flags uintptr) (*MountPoint, error) {
	dir, err := os.MkdirTemp("", "keysas-mnt-*")
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "transfer.Mount.mkdtemp", err)
	}

	var lastErr error
	for _, fstype := range candidateFilesystems {
		if err := unix.Mount(devPath, dir, fstype, flags, ""); err == nil {
			return &MountPoint{Path: dir}, nil
		} else {
			lastErr = err
		}
	}

	os.Remove(dir)
	return nil, kerrors.New(kerrors.IoFatal, "transfer.Mount",
		fmt.Errorf("no candidate filesystem matched %s: %w", devPath, lastErr))
}

// Close unmounts the device and removes the temporary mount directory. It
// is unconditional: called from a defer immediately after Mount succeeds,
// it runs on every exit path including an early return on a copy error.
func (m *MountPoint) Close() error {
	if err := unix.Unmount(m.Path, 0); err != nil {
		os.Remove(m.Path)
		return kerrors.New(kerrors.IoFatal, "transfer.MountPoint.Close.unmount", err)
	}
	if err := os.Remove(m.Path); err != nil {
		return kerrors.New(kerrors.IoFatal, "transfer.MountPoint.Close.rmdir", err)
	}
	return nil
}

// Ingress/egress mount flag sets per spec §4.E.
const (
	IngressMountFlags = unix.MS_RDONLY | unix.MS_NOSUID | unix.MS_NOEXEC | unix.MS_NODEV
	EgressMountFlags  = unix.MS_NOSUID | unix.MS_NOEXEC | unix.MS_NODEV
)
