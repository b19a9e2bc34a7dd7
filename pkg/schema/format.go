package schema

import (
	"fmt"
	"strings"
)

// Format identifies the schema language of a Document.
type Format int

const (
	FormatJSONSchema Format = iota
	FormatAvro
	FormatProtobuf
)

var formatNames = []string{"JSON", "AVRO", "PROTOBUF"}

func (f Format) String() string {
	if f < 0 || int(f) >= len(formatNames) {
		return fmt.Sprintf("Format(%d)", int(f))
	}
	return formatNames[f]
}

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	return f >= FormatJSONSchema && f <= FormatProtobuf
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid schema format: %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	parsed, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFormat parses a format name. Matching is case-insensitive.
func ParseFormat(s string) (Format, error) {
	formatMap := map[string]Format{
		"JSON":        FormatJSONSchema,
		"JSONSCHEMA":  FormatJSONSchema,
		"JSON_SCHEMA": FormatJSONSchema,
		"AVRO":        FormatAvro,
		"PROTOBUF":    FormatProtobuf,
		"PROTO":       FormatProtobuf,
		"PROTOBUF3":   FormatProtobuf,
	}

	if format, ok := formatMap[strings.ToUpper(strings.TrimSpace(s))]; ok {
		return format, nil
	}
	return 0, fmt.Errorf("unknown schema format: %s", s)
}
