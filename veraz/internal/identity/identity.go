// CLAUDE:SUMMARY Text normalization and unit-aware size parsing producing the canonical identity key.
// Package identity derives a retailer-agnostic product identity from the noisy
// free-text fields of a raw listing.
//
// Matching is exact-on-normalized rather than fuzzy: a false merge (two
// different products sharing one canonical row) corrupts every downstream
// price comparison, while a false split only dilutes cross-store coverage.
package identity

import (
	"regexp"
	"strconv"
	"strings"
)

// sizeRe accepts decimal comma or dot and the unit vocabulary used by the
// retailers we track (un = unidad).
var sizeRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(ml|g|kg|l|un)`)

var spaceRe = regexp.MustCompile(`\s+`)

// Key is the normalized identity tuple a canonical product is unique on.
// SizeValue is nil (and SizeUnit empty) when the size text is unparseable.
type Key struct {
	Brand     string
	Name      string
	SizeValue *float64
	SizeUnit  string
}

// NormalizeText lowercases and collapses internal whitespace.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return spaceRe.ReplaceAllString(s, " ")
}

// ParseSize extracts a (value, unit) pair from free-text size like "473 ml"
// or "1,5 L". Returns (nil, "") when no size pattern is present.
func ParseSize(raw string) (*float64, string) {
	m := sizeRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, ""
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return nil, ""
	}
	return &v, strings.ToLower(m[2])
}

// MakeKey builds the canonical identity key for a raw (brand, title, size).
func MakeKey(brand, title, sizeRaw string) Key {
	value, unit := ParseSize(sizeRaw)
	return Key{
		Brand:     NormalizeText(brand),
		Name:      NormalizeText(title),
		SizeValue: value,
		SizeUnit:  unit,
	}
}
