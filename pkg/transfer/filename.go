package transfer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// diacriticStripper decomposes to NFD, drops all non-spacing marks, then
// recomposes to NFC, so "café.txt" becomes "cafe.txt" rather than leaving
// behind a dangling combining character.
var diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// SanitizeFilename implements the destination-filename rule of spec §4.E
// step 1: diacritics are stripped and '?' is replaced with '-', so that
// "café.txt" becomes "cafe.txt" and "a?b.bin" becomes "a-b.bin".
func SanitizeFilename(name string) string {
	stripped, _, err := transform.String(diacriticStripper, name)
	if err != nil {
		stripped = name
	}
	return strings.ReplaceAll(stripped, "?", "-")
}
