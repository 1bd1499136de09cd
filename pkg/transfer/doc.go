// Package transfer implements the mount & transfer engine of spec §4.E: a
// filesystem-sandboxed component that mounts a USB block device read-only
// (ingress) or read-write (egress), copies files across the trust boundary,
// and guarantees unmount on every exit path.
package transfer
