package util

import (
	"log/slog"
	"os"
	"strings"
)

// ParseBoolValue reads a loose boolean: true/1/yes/on/si or false/0/no/off.
// ok is false for anything else.
func ParseBoolValue(raw string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on", "si", "sí":
		return true, true
	case "false", "0", "no", "off":
		return false, true
	}
	return false, false
}

// ParseBoolEnv returns the loose boolean in the environment variable key, or
// defaultValue when it is unset or unrecognized.
func ParseBoolEnv(key string, defaultValue bool) bool {
	raw, set := os.LookupEnv(key)
	if !set || strings.TrimSpace(raw) == "" {
		return defaultValue
	}
	v, ok := ParseBoolValue(raw)
	if !ok {
		slog.Warn("ParseBoolEnv: unrecognized boolean, using default", "key", key, "value", raw, "default", defaultValue)
		return defaultValue
	}
	return v
}
