// Package checkers implements format-aware structural diffing for JSON Schema, Avro and
// Protobuf documents.
//
// Every checker answers one question: can a reader schema consume data produced by a
// writer schema? Backward compatibility runs the new schema as reader against the old
// schema as writer; forward compatibility swaps the two.
package checkers

import (
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// FormatChecker evaluates reader/writer compatibility for one schema format.
type FormatChecker interface {
	Format() schema.Format
	// CheckBackward reports the violations that stop reader from consuming data
	// written with writer. Structural problems are returned as errors.
	CheckBackward(reader, writer *schema.Document) ([]compatibility.Violation, error)
}

// For returns the checker for format.
func For(format schema.Format) (FormatChecker, error) {
	switch format {
	case schema.FormatJSONSchema:
		return JSONSchemaChecker{}, nil
	case schema.FormatAvro:
		return AvroChecker{}, nil
	case schema.FormatProtobuf:
		return ProtobufChecker{}, nil
	default:
		return nil, fmt.Errorf("no checker for schema format %s", format)
	}
}

// CheckForward reports the violations that stop older from consuming data written with
// newer. It is CheckBackward with the roles swapped.
func CheckForward(c FormatChecker, newer, older *schema.Document) ([]compatibility.Violation, error) {
	return c.CheckBackward(older, newer)
}

// Check runs the directions selected by mode between the new and old documents and
// returns the union of their violations, backward first.
func Check(c FormatChecker, newer, older *schema.Document, mode compatibility.CompatibilityMode) ([]compatibility.Violation, error) {
	backward, forward := mode.Directions()
	var violations []compatibility.Violation
	if backward {
		vs, err := c.CheckBackward(newer, older)
		if err != nil {
			return nil, err
		}
		violations = append(violations, vs...)
	}
	if forward {
		vs, err := CheckForward(c, newer, older)
		if err != nil {
			return nil, err
		}
		violations = append(violations, vs...)
	}
	return violations, nil
}

func checkPair(format schema.Format, reader, writer *schema.Document) error {
	if reader == nil || writer == nil {
		return fmt.Errorf("nil schema document")
	}
	if reader.Format() != format {
		return &schema.FormatMismatchError{Expected: format, Actual: reader.Format(), Subject: reader.Subject(), Version: reader.Version().String()}
	}
	return schema.CheckSameFormat(reader, writer)
}

// removalSeverity grades a field that the writer has and the reader dropped: the
// reader ignores it, so it never breaks, but a field without a default deserves review.
func removalSeverity(hadDefault bool) compatibility.Severity {
	if hadDefault {
		return compatibility.SeverityInfo
	}
	return compatibility.SeverityWarning
}

func joinPath(base, elem string) string {
	if base == "" {
		return elem
	}
	return base + "." + elem
}

func compactJSON(v interface{}) string {
	if v == nil {
		return "none"
	}
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}
