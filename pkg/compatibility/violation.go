package compatibility

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ViolationKind classifies an incompatibility.
type ViolationKind string

const (
	KindFieldRemoved           ViolationKind = "FIELD_REMOVED"
	KindTypeChanged            ViolationKind = "TYPE_CHANGED"
	KindRequiredAdded          ViolationKind = "REQUIRED_ADDED"
	KindConstraintAdded        ViolationKind = "CONSTRAINT_ADDED"
	KindEnumValueRemoved       ViolationKind = "ENUM_VALUE_REMOVED"
	KindFormatChanged          ViolationKind = "FORMAT_CHANGED"
	KindFieldMadeRequired      ViolationKind = "FIELD_MADE_REQUIRED"
	KindArrayItemsChanged      ViolationKind = "ARRAY_ITEMS_CHANGED"
	KindMapValueChanged        ViolationKind = "MAP_VALUE_CHANGED"
	KindUnionTypesIncompatible ViolationKind = "UNION_TYPES_INCOMPATIBLE"
	KindNamespaceChanged       ViolationKind = "NAMESPACE_CHANGED"
	KindNameChanged            ViolationKind = "NAME_CHANGED"
)

const customKindPrefix = "CUSTOM:"

var knownKinds = map[ViolationKind]bool{
	KindFieldRemoved:           true,
	KindTypeChanged:            true,
	KindRequiredAdded:          true,
	KindConstraintAdded:        true,
	KindEnumValueRemoved:       true,
	KindFormatChanged:          true,
	KindFieldMadeRequired:      true,
	KindArrayItemsChanged:      true,
	KindMapValueChanged:        true,
	KindUnionTypesIncompatible: true,
	KindNamespaceChanged:       true,
	KindNameChanged:            true,
}

// Custom returns a format-specific kind outside the common catalogue.
func Custom(name string) ViolationKind {
	return ViolationKind(customKindPrefix + name)
}

// IsCustom reports whether k was built with Custom.
func (k ViolationKind) IsCustom() bool {
	return strings.HasPrefix(string(k), customKindPrefix)
}

// CustomName returns the name passed to Custom, or "" for catalogue kinds.
func (k ViolationKind) CustomName() string {
	if !k.IsCustom() {
		return ""
	}
	return strings.TrimPrefix(string(k), customKindPrefix)
}

// Valid reports whether k is a catalogue kind or a named custom kind.
func (k ViolationKind) Valid() bool {
	return knownKinds[k] || (k.IsCustom() && k.CustomName() != "")
}

// Severity indicates how serious a violation is. Only SeverityBreaking makes a result
// incompatible.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityBreaking
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityBreaking:
		return "BREAKING"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToUpper(string(text)) {
	case "INFO":
		*s = SeverityInfo
	case "WARNING":
		*s = SeverityWarning
	case "BREAKING":
		*s = SeverityBreaking
	default:
		return fmt.Errorf("unknown severity: %s", text)
	}
	return nil
}

// Violation represents a compatibility violation
type Violation struct {
	Kind        ViolationKind `json:"kind"`
	Path        string        `json:"path"`
	OldValue    interface{}   `json:"old_value,omitempty"`
	NewValue    interface{}   `json:"new_value,omitempty"`
	Severity    Severity      `json:"severity"`
	Description string        `json:"description"`
	// Version is the prior version the violation was found against. Empty for
	// violations produced by a direct pairwise check.
	Version    string `json:"version,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// IsBreaking reports whether v blocks registration.
func (v Violation) IsBreaking() bool {
	return v.Severity == SeverityBreaking
}

func (v Violation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", v.Severity, v.Kind)
	if v.Path != "" {
		fmt.Fprintf(&b, " at %s", v.Path)
	}
	if v.Version != "" {
		fmt.Fprintf(&b, " (vs %s)", v.Version)
	}
	if v.Description != "" {
		fmt.Fprintf(&b, ": %s", v.Description)
	}
	if v.OldValue != nil || v.NewValue != nil {
		fmt.Fprintf(&b, " (%s -> %s)", renderValue(v.OldValue), renderValue(v.NewValue))
	}
	return b.String()
}

func renderValue(v interface{}) string {
	if v == nil {
		return "none"
	}
	if s, ok := v.(string); ok {
		return s
	}
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

// ViolationBuilder helps construct violations fluently
type ViolationBuilder struct {
	violation Violation
}

// NewViolationBuilder creates a new violation builder. Severity defaults to breaking.
func NewViolationBuilder(kind ViolationKind) *ViolationBuilder {
	return &ViolationBuilder{
		violation: Violation{
			Kind:     kind,
			Severity: SeverityBreaking,
		},
	}
}

func (b *ViolationBuilder) WithSeverity(severity Severity) *ViolationBuilder {
	b.violation.Severity = severity
	return b
}

func (b *ViolationBuilder) WithPath(path string) *ViolationBuilder {
	b.violation.Path = path
	return b
}

func (b *ViolationBuilder) WithDescription(format string, args ...interface{}) *ViolationBuilder {
	b.violation.Description = fmt.Sprintf(format, args...)
	return b
}

func (b *ViolationBuilder) WithChange(oldValue, newValue interface{}) *ViolationBuilder {
	b.violation.OldValue = oldValue
	b.violation.NewValue = newValue
	return b
}

func (b *ViolationBuilder) WithSuggestion(suggestion string) *ViolationBuilder {
	b.violation.Suggestion = suggestion
	return b
}

func (b *ViolationBuilder) Build() Violation {
	return b.violation
}
