// Package uuid issues the identifiers used as primary keys across the
// ledger's tables. Keys are UUIDv7 so that rows created close together sort
// close together, which keeps the date-then-id ordering of transaction
// listings stable and index-friendly.
package uuid

import (
	googleuuid "github.com/google/uuid"
)

// New returns a UUIDv7 string for the current instant.
func New() string {
	id, err := googleuuid.NewV7()
	if err != nil {
		// NewV7 only fails when the random source does; a random v4 key
		// still satisfies uniqueness, it just loses time ordering.
		return googleuuid.New().String()
	}
	return id.String()
}

// Parse validates s and returns it in canonical form.
func Parse(s string) (string, error) {
	parsed, err := googleuuid.Parse(s)
	if err != nil {
		return "", err
	}
	return parsed.String(), nil
}

// IsValid reports whether s is a well-formed UUID.
func IsValid(s string) bool {
	_, err := googleuuid.Parse(s)
	return err == nil
}
