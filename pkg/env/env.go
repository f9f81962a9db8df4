// Package env reads the few settings needed before config.Load runs.
package env

import (
	"os"
	"strings"
)

// Prefix namespaces every marketplace variable.
const Prefix = "TECH4LOOP_"

// Get returns the prefixed variable, then the bare one, then fallback.
// PORT and LOG_FORMAT are commonly injected by the platform without a prefix.
func Get(key, fallback string) string {
	key = strings.TrimPrefix(key, Prefix)
	if val := strings.TrimSpace(os.Getenv(Prefix + key)); val != "" {
		return val
	}
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}
