package clix

import (
	"strings"

	"github.com/spf13/pflag"
)

// ParseList splits a comma-separated flag value, trimming blanks.
func ParseList(flags *pflag.FlagSet, name string) ([]string, error) {
	raw, err := flags.GetString(name)
	if err != nil {
		return nil, err
	}
	var out []string
	if raw != "" {
		// Trim space and filter out empty strings in one pass
		for _, t := range strings.Split(raw, ",") {
			trimmed := strings.TrimSpace(t)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out, nil
}

// StringOr returns the flag value when the user set it, otherwise fallback.
func StringOr(flags *pflag.FlagSet, name, fallback string) string {
	if !flags.Changed(name) {
		return fallback
	}
	v, err := flags.GetString(name)
	if err != nil {
		return fallback
	}
	return v
}

// IntOr returns the flag value when the user set it, otherwise fallback.
func IntOr(flags *pflag.FlagSet, name string, fallback int) int {
	if !flags.Changed(name) {
		return fallback
	}
	v, err := flags.GetInt(name)
	if err != nil {
		return fallback
	}
	return v
}
