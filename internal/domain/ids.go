package domain

import "strings"

// Slots per opposing roster. Positions are numbered 1..RosterSize.
const RosterSize = 6

// ExpectedKitSize is the number of moves a unit is assumed to carry.
const ExpectedKitSize = 4

var nameStripper = strings.NewReplacer(" ", "", "-", "", ".", "", "'", "")

// NormalizeName canonicalizes a species/move/item/ability/tera identifier:
// lowercase with spaces, hyphens, periods and apostrophes removed, so
// "Great Tusk", "great-tusk" and "greattusk" all key the same entry.
func NormalizeName(name string) string {
	return nameStripper.Replace(strings.ToLower(strings.TrimSpace(name)))
}

// ValidSlot reports whether slot addresses a roster position.
func ValidSlot(slot int) bool {
	return slot >= 1 && slot <= RosterSize
}
