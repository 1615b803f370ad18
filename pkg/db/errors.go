package db

import "strings"

// IsUniqueViolation reports whether the provided error is a unique
// constraint violation. Postgres and sqlite phrase these differently,
// and only postgres includes the constraint name, so the optional
// identifiers are matched against whichever form the driver produced;
// callers pass both the constraint name and the qualified column.
func IsUniqueViolation(err error, identifiers ...string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") &&
		!strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if len(identifiers) == 0 {
		return true
	}
	for _, id := range identifiers {
		if id != "" && strings.Contains(msg, id) {
			return true
		}
	}
	return false
}
