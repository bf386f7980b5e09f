package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField reads an optional duration field. Empty or blank
// means unset and parses to zero; negative values are rejected. path
// names the field in errors, e.g. "raids.tick".
func ParseDurationField(path, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	switch d, err := time.ParseDuration(raw); {
	case err != nil:
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	case d < 0:
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	default:
		return d, nil
	}
}

// ParseDurationOrDefault is ParseDurationField with a fallback: an
// unset field yields def instead of zero.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}
