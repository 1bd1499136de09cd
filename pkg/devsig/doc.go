// Package devsig codecs the hybrid device signature blob written into the
// reserved region of a raw block device, between offsets 512 and 8192
// (spec §4.C). The wire format is a 4-byte big-endian length prefix
// followed by an ASCII payload `base64(classical) | base64(pq)`.
package devsig
