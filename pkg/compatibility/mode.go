package compatibility

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMode is returned for a mode outside the seven defined values.
var ErrInvalidMode = errors.New("invalid compatibility mode")

// CompatibilityMode defines the type of compatibility checking
type CompatibilityMode int

const (
	CompatibilityModeNone CompatibilityMode = iota
	CompatibilityModeBackward
	CompatibilityModeForward
	CompatibilityModeFull
	CompatibilityModeBackwardTransitive
	CompatibilityModeForwardTransitive
	CompatibilityModeFullTransitive
)

var modeNames = []string{
	"NONE", "BACKWARD", "FORWARD", "FULL",
	"BACKWARD_TRANSITIVE", "FORWARD_TRANSITIVE", "FULL_TRANSITIVE",
}

func (m CompatibilityMode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("CompatibilityMode(%d)", int(m))
	}
	return modeNames[m]
}

// Valid reports whether m is one of the seven defined modes.
func (m CompatibilityMode) Valid() bool {
	return m >= CompatibilityModeNone && m <= CompatibilityModeFullTransitive
}

// IsTransitive reports whether m checks against every retained prior version.
func (m CompatibilityMode) IsTransitive() bool {
	switch m {
	case CompatibilityModeBackwardTransitive, CompatibilityModeForwardTransitive, CompatibilityModeFullTransitive:
		return true
	default:
		return false
	}
}

// Base returns the pairwise mode a transitive mode applies to each prior version.
func (m CompatibilityMode) Base() CompatibilityMode {
	switch m {
	case CompatibilityModeBackwardTransitive:
		return CompatibilityModeBackward
	case CompatibilityModeForwardTransitive:
		return CompatibilityModeForward
	case CompatibilityModeFullTransitive:
		return CompatibilityModeFull
	default:
		return m
	}
}

// Directions reports which directions a pairwise check in mode m evaluates.
func (m CompatibilityMode) Directions() (backward, forward bool) {
	switch m.Base() {
	case CompatibilityModeBackward:
		return true, false
	case CompatibilityModeForward:
		return false, true
	case CompatibilityModeFull:
		return true, true
	default:
		return false, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m CompatibilityMode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *CompatibilityMode) UnmarshalText(text []byte) error {
	parsed, err := ParseCompatibilityMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ParseCompatibilityMode converts a string to CompatibilityMode
func ParseCompatibilityMode(s string) (CompatibilityMode, error) {
	modes := map[string]CompatibilityMode{
		"NONE":                CompatibilityModeNone,
		"BACKWARD":            CompatibilityModeBackward,
		"FORWARD":             CompatibilityModeForward,
		"FULL":                CompatibilityModeFull,
		"BACKWARD_TRANSITIVE": CompatibilityModeBackwardTransitive,
		"FORWARD_TRANSITIVE":  CompatibilityModeForwardTransitive,
		"FULL_TRANSITIVE":     CompatibilityModeFullTransitive,
	}

	normalized := strings.ReplaceAll(strings.ToUpper(strings.TrimSpace(s)), "-", "_")
	if mode, ok := modes[normalized]; ok {
		return mode, nil
	}
	return CompatibilityModeNone, fmt.Errorf("%w: %s", ErrInvalidMode, s)
}
