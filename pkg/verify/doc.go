// Package verify implements the hybrid device signature verifier of spec
// §4.D: given the two CA certificates and a device identity, it decodes the
// signature blob written at offset 512 of the raw device (pkg/devsig) and
// checks both halves against the canonical "/out" message.
package verify
