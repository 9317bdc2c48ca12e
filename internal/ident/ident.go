// Package ident mints and validates the UUIDs used for message and session ids.
package ident

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var canonical = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// New returns a fresh random (v4) UUID in canonical lowercase form.
func New() string {
	return uuid.NewString()
}

// Valid reports whether s is a canonical 8-4-4-4-12 hex UUID. Case is ignored;
// surrounding whitespace, braces and the urn: prefix are not accepted.
func Valid(s string) bool {
	return canonical.MatchString(strings.ToLower(s))
}
