// Package kerrors defines the error taxonomy shared by the keysas PKI and io
// daemon, matching the policy table of the core specification: each Kind
// carries its own propagation rule (log-and-skip, sidecar-and-skip, or exit)
// that callers branch on instead of matching error strings.
package kerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error by how its caller must react to it.
type Kind string

const (
	// BadInput: malformed udev event, out-of-range signature length,
	// non-UTF-8 payload. Policy: log at warn, skip the device, loop continues.
	BadInput Kind = "bad_input"

	// CryptoReject: signature parsed fine but verification failed, or the
	// two halves disagree. Policy: log at info, treat as an ingress candidate.
	CryptoReject Kind = "crypto_reject"

	// IoTransient: copy of a single file failed. Policy: write a .ioerror
	// sidecar, early-unmount, skip the remaining files.
	IoTransient Kind = "io_transient"

	// IoFatal: mount fails, unmount fails, or temp-dir creation fails.
	// Policy: log at error, emit a snapshot, skip the device.
	IoFatal Kind = "io_fatal"

	// ConfigFatal: CA cert unparseable, TCP/WebSocket bind fails, or
	// landlock rejects a hardened build. Policy: exit non-zero.
	ConfigFatal Kind = "config_fatal"

	// InvariantViolation: key-pair file asymmetry, OID mismatch on load.
	// Policy: refuse to start the affected operation, surface upward.
	InvariantViolation Kind = "invariant_violation"
)

// Error wraps an underlying cause with a Kind so callers can branch on
// policy via errors.As instead of string-matching messages.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with a Kind and the operation name that produced it.
// Returns nil if err is nil, so it is safe to use as `return kerrors.New(...)`
// at the end of a function that may or may not have failed.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err (or any error it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err, or "" if err does not carry one.
func KindOf(err error) Kind {
	var ke *Error
	if errors.As(err, &ke) {
		return ke.Kind
	}
	return ""
}
