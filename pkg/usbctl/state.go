package usbctl

import "sort"

// deviceSets holds the three disjoint device sets (spec §3 invariant,
// §5 "Shared resources"): owned exclusively by one controller goroutine,
// so no locking is needed.
type deviceSets struct {
	in, out, undef map[string]struct{}
}

func newDeviceSets() *deviceSets {
	return &deviceSets{
		in:    make(map[string]struct{}),
		out:   make(map[string]struct{}),
		undef: make(map[string]struct{}),
	}
}

func (s *deviceSets) contains(set map[string]struct{}, prod string) bool {
	_, ok := set[prod]
	return ok
}

// removeAll removes prod from all three sets, the state transition an
// unplug (remove event) performs (spec §4.F).
func (s *deviceSets) removeAll(prod string) {
	delete(s.in, prod)
	delete(s.out, prod)
	delete(s.undef, prod)
}

// resetAll clears every set: the defensive fallback when a remove event's
// identity cannot be extracted and the loop has lost track of which device
// is leaving (spec §4.F).
func (s *deviceSets) resetAll() {
	s.in = make(map[string]struct{})
	s.out = make(map[string]struct{})
	s.undef = make(map[string]struct{})
}

func (s *deviceSets) snapshot(yubi YubikeyStatus) Snapshot {
	return Snapshot{
		USBIn:    sortedKeys(s.in),
		USBOut:   sortedKeys(s.out),
		USBUndef: sortedKeys(s.undef),
		Yubikeys: yubi,
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
