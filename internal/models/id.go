package models

import "github.com/google/uuid"

// IsID reports whether s is a record id: a UUID in the canonical
// hyphenated form.
func IsID(s string) bool {
	if len(s) != 36 {
		return false
	}
	_, err := uuid.Parse(s)
	return err == nil
}
