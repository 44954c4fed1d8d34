// CLAUDE:SUMMARY Pluggable ID generation: UUIDv7 default plus Prefixed combinator for type-scoped row IDs.
// Package idgen provides pluggable ID generation for veraz.
//
// Every store row carries a type-scoped identifier ("ret_", "lst_", "obs_",
// "run_" ...) built by composing Prefixed on top of the UUIDv7 default, making
// the ID strategy a startup-time decision rather than a compile-time one.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, globally unique.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
// Used for type-scoped identifiers (e.g. "obs_", "eval_", "run_").
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Default is the repository-wide default: UUIDv7.
var Default Generator = UUIDv7()

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// NewPrefixed produces a Default-generated ID with the given prefix.
func NewPrefixed(prefix string) string {
	return prefix + Default()
}

// Parse validates a UUID string and returns it or an error.
func Parse(s string) (string, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid UUID: %w", err)
	}
	return u.String(), nil
}
