package schema

import (
	"errors"
	"fmt"
)

// ErrStructural is matched by every error that reflects malformed input rather than an
// incompatibility: unparsable bodies, mismatched formats and cyclic graphs where an order
// was required. Callers map it to a client error.
var ErrStructural = errors.New("structural schema error")

// ParseError reports a schema body that could not be parsed or failed validation.
type ParseError struct {
	Format  Format
	Subject string
	Version string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("failed to parse %s schema: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("failed to parse %s schema %s@%s: %v", e.Format, e.Subject, e.Version, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrStructural) succeed.
func (e *ParseError) Is(target error) bool { return target == ErrStructural }

// FormatMismatchError reports two documents of different formats being compared.
type FormatMismatchError struct {
	Expected Format
	Actual   Format
	Subject  string
	Version  string
}

func (e *FormatMismatchError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("format mismatch: expected %s, got %s", e.Expected, e.Actual)
	}
	return fmt.Sprintf("format mismatch for %s@%s: expected %s, got %s", e.Subject, e.Version, e.Expected, e.Actual)
}

// Is lets errors.Is(err, ErrStructural) succeed.
func (e *FormatMismatchError) Is(target error) bool { return target == ErrStructural }

// CheckSameFormat returns a FormatMismatchError when b is not of a's format.
func CheckSameFormat(a, b *Document) error {
	if a.Format() != b.Format() {
		return &FormatMismatchError{
			Expected: a.Format(),
			Actual:   b.Format(),
			Subject:  b.Subject(),
			Version:  b.Version().String(),
		}
	}
	return nil
}
