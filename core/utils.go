package core

import (
	"strings"
	"time"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Now is the service clock: UTC at the microsecond precision postgres keeps, so a value
// returned from memory compares equal to the same value read back from the database.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
