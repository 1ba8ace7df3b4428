// Package environment reads configuration from environment variables.
//
// The Or helpers return a default when a variable is unset. The Override
// helpers layer the environment on top of values that were already loaded from
// a config file: the destination is only touched when the variable is set and
// non-empty, so file values survive when the environment is silent.
package environment

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// StringOr returns the named variable, or defaultValue when unset or empty.
func StringOr(name, defaultValue string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return defaultValue
}

// DurationOr parses the named variable as a time.Duration ("3s", "5m").
// Returns defaultValue when unset, empty, or malformed.
func DurationOr(name string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(name)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultValue
	}
	return d
}

// OverrideString sets *dst to the named variable when it is set.
func OverrideString(dst *string, name string) {
	if v := os.Getenv(name); v != "" {
		*dst = v
	}
}

// OverrideInt sets *dst to the named variable parsed as a decimal integer.
// A malformed value is an error and leaves *dst unchanged.
func OverrideInt(dst *int, name string) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s: invalid integer %q: %w", name, v, err)
	}
	*dst = n
	return nil
}

// OverrideDuration sets *dst to the named variable parsed as a duration. Bare
// integers are read as seconds so that POLL_INTERVAL=3 works.
func OverrideDuration(dst *time.Duration, name string) error {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: invalid duration %q: %w", name, v, err)
	}
	*dst = d
	return nil
}

// OverrideStringSlice sets *dst to the comma-separated elements of the named
// variable, trimmed, skipping empty elements.
func OverrideStringSlice(dst *[]string, name string) {
	v := os.Getenv(name)
	if v == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
