package transfer

import (
	landlock "github.com/landlock-lsm/go-landlock/landlock"

	"github.com/keysas-fr/keysas-io/pkg/kerrors"
)

// EnforcementLevel reports how much of the requested Landlock ruleset the
// running kernel actually applied. Only FullyEnforced is a silent success;
// the others emit a warning (spec §4.E). Callers, not Confine itself, are
// responsible for that warning so the level is always observable by the
// caller instead of only ever reaching a log sink.
type EnforcementLevel string

const (
	FullyEnforced     EnforcementLevel = "fully_enforced"
	PartiallyEnforced EnforcementLevel = "partially_enforced"
	NotEnforced       EnforcementLevel = "not_enforced"
)

// Confine restricts the current process to read-only access under
// configDir and read-write access under each of rwDirs; every other
// filesystem path becomes inaccessible to the process for the rest of its
// lifetime. It must be called once, early, before any device is mounted.
//
// rwDirs must include every directory the process writes to at runtime:
// the ingress staging directory, the egress staging directory (spec §4.E's
// "designated output staging directory"), and the busy-sentinel directory
// (spec §6) — any directory left out will start failing writes with EPERM
// the moment the sandbox is actually enforced.
//
// The strict ABI v2 ruleset is attempted first so a fully capable kernel
// gets a hard failure (and thus a clean ConfigFatal exit) instead of a
// silently degraded sandbox. Only on failure is go-landlock's best-effort
// mode used, which never errors but may apply a weaker ruleset than asked
// for on an older kernel.
func Confine(configDir string, rwDirs ...string) (EnforcementLevel, error) {
	rules := make([]landlock.Rule, 0, len(rwDirs)+1)
	rules = append(rules, landlock.RODirs(configDir))
	for _, dir := range rwDirs {
		rules = append(rules, landlock.RWDirs(dir))
	}

	if err := landlock.V2.RestrictPaths(rules...); err == nil {
		return FullyEnforced, nil
	}

	if err := landlock.V2.BestEffort().RestrictPaths(rules...); err != nil {
		return NotEnforced, kerrors.New(kerrors.ConfigFatal, "transfer.Confine", err)
	}

	return PartiallyEnforced, nil
}
