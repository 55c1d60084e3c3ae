// Package names splits sole-proprietor display names into legal name parts.
package names

import "strings"

// SplitProprietor splits a proprietorship display name into first and last
// name parts the way the legacy registry stores individuals.
//
// Two forms are recognised:
//
//	"Doe, John"        -> first "John", last "Doe" (comma form)
//	"John Doe"         -> first "John", last "Doe"
//	"John Doe Smith"   -> first "John", last "Doe Smith"
//
// In the space form the token before the first whitespace run is the first
// name and everything after it is the last name, since sole-proprietor
// display names lead with the given name. Single-token names land entirely
// in the last name, matching how the registry indexes mononyms.
func SplitProprietor(display string) (first, last string) {
	display = strings.TrimSpace(display)
	if display == "" {
		return "", ""
	}

	if comma := strings.Index(display, ","); comma >= 0 {
		last = strings.TrimSpace(display[:comma])
		first = strings.TrimSpace(display[comma+1:])
		return first, last
	}

	fields := strings.Fields(display)
	if len(fields) == 1 {
		return "", fields[0]
	}

	first = fields[0]
	last = strings.Join(fields[1:], " ")
	return first, last
}

// Normalize collapses interior whitespace and trims a name for
// case-insensitive comparison against legacy columns.
func Normalize(name string) string {
	return strings.ToUpper(strings.Join(strings.Fields(name), " "))
}
