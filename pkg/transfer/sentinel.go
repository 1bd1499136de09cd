package transfer

import (
	"os"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
)

// Sentinel file names (spec §4.E, §6). Creating one busy sentinel removes
// the other; these are the only cross-process signals to the UI backend,
// advisory rather than mutual-exclusion primitives.
const (
	lockFileName    = ".lock"
	ingressBusyFile = "keysas-in"
	egressBusyFile  = "keysas-out"

	// SentinelDir is the directory holding the cross-process busy sentinels.
	// It must be writable under the filesystem sandbox (spec §4.E, §6).
	SentinelDir = "/var/lock/keysas"
)

// beginBatch creates the global lock file marking "ingress in progress"
// inside sasDir, and returns a func that removes it. Callers
// defer the returned func immediately so the lock is released on every
// exit path, including a panic recovered upstream.
func beginBatch(sasDir string) (func(), error) {
	lockPath := sasDir + string(os.PathSeparator) + lockFileName
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "transfer.beginBatch", err)
	}
	f.Close()
	return func() { os.Remove(lockPath) }, nil
}

// setBusy creates the sentinel file for direction ("in" or "out") and
// removes the other one, reporting which mode is currently busy to
// observers without any shared memory or IPC (spec §4.E "Status files").
func setBusy(direction string) (func(), error) {
	if err := os.MkdirAll(SentinelDir, 0o755); err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "transfer.setBusy.mkdir", err)
	}

	var mine, other string
	if direction == "in" {
		mine, other = ingressBusyFile, egressBusyFile
	} else {
		mine, other = egressBusyFile, ingressBusyFile
	}

	minePath := SentinelDir + string(os.PathSeparator) + mine
	otherPath := SentinelDir + string(os.PathSeparator) + other

	os.Remove(otherPath)
	f, err := os.Create(minePath)
	if err != nil {
		return nil, kerrors.New(kerrors.IoFatal, "transfer.setBusy.create", err)
	}
	f.Close()

	return func() { os.Remove(minePath) }, nil
}
