package env

import (
	"os"
	"strings"
)

// Get returns the named environment variable, or fallback when it is unset.
// Values that are blank after trimming count as unset; an exported but empty
// LOG_FORMAT should not silence the default.
func Get(key, fallback string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return fallback
	}
	return val
}
