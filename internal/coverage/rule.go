// Package coverage decides whether a partner serves a delivery address based
// on the partner's configured service regions.
package coverage

import (
	"strings"
	"unicode/utf8"
)

// Type is the granularity of a partner's coverage.
type Type string

const (
	TypeCountry Type = "country"
	TypeState   Type = "state"
	TypeCity    Type = "city"
)

// Location is the delivery address portion coverage is evaluated against.
type Location struct {
	City  string
	State string
}

// Rule is the parsed form of a service_regions list.
type Rule struct {
	Type    Type
	Allowed map[string]struct{}
}

// Parse infers the coverage type from the shape of the list. An empty list
// covers the whole country, a list made only of two-letter codes covers
// states and anything else is read as city names.
func Parse(regions []string) Rule {
	entries := make([]string, 0, len(regions))
	for _, region := range regions {
		if trimmed := strings.TrimSpace(region); trimmed != "" {
			entries = append(entries, trimmed)
		}
	}
	if len(entries) == 0 {
		return Rule{Type: TypeCountry}
	}

	if allStateCodes(entries) {
		allowed := make(map[string]struct{}, len(entries))
		for _, entry := range entries {
			allowed[normalizeState(entry)] = struct{}{}
		}
		return Rule{Type: TypeState, Allowed: allowed}
	}

	allowed := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		allowed[NormalizeCity(entry)] = struct{}{}
	}
	return Rule{Type: TypeCity, Allowed: allowed}
}

// Allows reports whether the rule covers loc.
func (r Rule) Allows(loc Location) bool {
	switch r.Type {
	case TypeCountry, "":
		return true
	case TypeState:
		_, ok := r.Allowed[normalizeState(loc.State)]
		return ok
	case TypeCity:
		_, ok := r.Allowed[NormalizeCity(loc.City)]
		return ok
	default:
		return false
	}
}

// Eligible parses regions and evaluates loc against the result.
func Eligible(regions []string, loc Location) bool {
	return Parse(regions).Allows(loc)
}

func allStateCodes(entries []string) bool {
	for _, entry := range entries {
		if utf8.RuneCountInString(entry) != 2 {
			return false
		}
	}
	return true
}
