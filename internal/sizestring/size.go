// Package sizestring normalizes the size-string grammar shared by resource
// validation and container resource limits: a number followed by a unit
// suffix (g|G|Gi, m|M|Mi), normalized to a lowercase single-letter unit.
package sizestring

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var pattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)([gGmM][iI]?)$`)

// Valid reports whether s matches the recognized size-string grammar.
func Valid(s string) bool {
	return pattern.MatchString(strings.TrimSpace(s))
}

// Normalize rewrites Gi/GI/gi/G to "g" and Mi/MI/mi/M to "m", lowercased.
// It returns an error if s does not match the grammar.
func Normalize(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	m := pattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", fmt.Errorf("invalid size string: %q", s)
	}
	number, unit := m[1], strings.ToLower(m[2])
	switch unit {
	case "gi", "g":
		unit = "g"
	case "mi", "m":
		unit = "m"
	}
	return number + unit, nil
}

// Bytes converts a normalized (or raw) size string into a byte count.
func Bytes(s string) (int64, error) {
	norm, err := Normalize(s)
	if err != nil {
		return 0, err
	}
	numPart := norm[:len(norm)-1]
	unit := norm[len(norm)-1]
	value, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size string %q: %w", s, err)
	}
	switch unit {
	case 'g':
		return int64(value * 1024 * 1024 * 1024), nil
	case 'm':
		return int64(value * 1024 * 1024), nil
	default:
		return 0, fmt.Errorf("unrecognized unit in %q", s)
	}
}

// NormalizeDefault normalizes s, falling back to def (assumed already valid)
// when s is empty.
func NormalizeDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		s = def
	}
	norm, err := Normalize(s)
	if err != nil {
		norm, _ = Normalize(def)
	}
	return norm
}
