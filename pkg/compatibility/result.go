package compatibility

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// Result is the verdict of one compatibility check. It is never mutated after
// NewResult returns it.
type Result struct {
	Compatible       bool                     `json:"is_compatible"`
	Mode             CompatibilityMode        `json:"mode"`
	Violations       []Violation              `json:"violations"`
	ComparedVersions []schema.SemanticVersion `json:"compared_versions"`
	// SkippedVersions counts prior versions older than the transitive cap that were
	// not re-checked.
	SkippedVersions int           `json:"skipped_versions,omitempty"`
	Duration        time.Duration `json:"duration"`
	Summary         Summary       `json:"summary"`
}

// Summary provides an overview of violations
type Summary struct {
	TotalViolations int                   `json:"total_violations"`
	Breaking        int                   `json:"breaking"`
	Warnings        int                   `json:"warnings"`
	Infos           int                   `json:"infos"`
	ByKind          map[ViolationKind]int `json:"by_kind,omitempty"`
}

// NewResult builds a result. Compatibility is derived from the violations: any
// breaking violation makes the result incompatible.
func NewResult(mode CompatibilityMode, violations []Violation, compared []schema.SemanticVersion, duration time.Duration) *Result {
	if violations == nil {
		violations = []Violation{}
	}
	if compared == nil {
		compared = []schema.SemanticVersion{}
	}

	summary := generateSummary(violations)
	return &Result{
		Compatible:       summary.Breaking == 0,
		Mode:             mode,
		Violations:       violations,
		ComparedVersions: compared,
		Duration:         duration,
		Summary:          summary,
	}
}

// CompatibleResult returns a compatible result with no violations.
func CompatibleResult(mode CompatibilityMode, compared []schema.SemanticVersion, duration time.Duration) *Result {
	return NewResult(mode, nil, compared, duration)
}

func generateSummary(violations []Violation) Summary {
	summary := Summary{
		TotalViolations: len(violations),
	}

	for _, v := range violations {
		switch v.Severity {
		case SeverityBreaking:
			summary.Breaking++
		case SeverityWarning:
			summary.Warnings++
		case SeverityInfo:
			summary.Infos++
		}

		if summary.ByKind == nil {
			summary.ByKind = make(map[ViolationKind]int)
		}
		summary.ByKind[v.Kind]++
	}

	return summary
}

// WithDuration returns a copy of r carrying duration d. Slices are shared and must
// be treated as read-only.
func (r *Result) WithDuration(d time.Duration) *Result {
	cp := *r
	cp.Duration = d
	return &cp
}

// WithSkipped returns a copy of r recording n skipped prior versions.
func (r *Result) WithSkipped(n int) *Result {
	cp := *r
	cp.SkippedVersions = n
	return &cp
}

// BreakingViolations returns the violations that block registration.
func (r *Result) BreakingViolations() []Violation {
	return r.filter(SeverityBreaking)
}

// Warnings returns the warning-level violations.
func (r *Result) Warnings() []Violation {
	return r.filter(SeverityWarning)
}

// HasWarnings reports whether any warning-level violation was found.
func (r *Result) HasWarnings() bool {
	return r.Summary.Warnings > 0
}

func (r *Result) filter(severity Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == severity {
			out = append(out, v)
		}
	}
	return out
}

// Report renders the result for humans, one violation per line.
func (r *Result) Report() string {
	var b strings.Builder
	verdict := "compatible"
	if !r.Compatible {
		verdict = "INCOMPATIBLE"
	}
	fmt.Fprintf(&b, "%s check: %s", r.Mode, verdict)

	if len(r.ComparedVersions) > 0 {
		versions := make([]string, len(r.ComparedVersions))
		for i, v := range r.ComparedVersions {
			versions[i] = v.String()
		}
		fmt.Fprintf(&b, " (compared against %s)", strings.Join(versions, ", "))
	}
	b.WriteString("\n")

	if r.SkippedVersions > 0 {
		fmt.Fprintf(&b, "note: %d older version(s) beyond the history cap were not checked\n", r.SkippedVersions)
	}
	if len(r.Violations) > 0 {
		fmt.Fprintf(&b, "%d violation(s): %d breaking, %d warning(s), %d info\n",
			r.Summary.TotalViolations, r.Summary.Breaking, r.Summary.Warnings, r.Summary.Infos)
	}
	for _, v := range r.Violations {
		b.WriteString("  ")
		b.WriteString(v.String())
		b.WriteString("\n")
		if v.Suggestion != "" {
			fmt.Fprintf(&b, "    suggestion: %s\n", v.Suggestion)
		}
	}
	return b.String()
}

// HTTPStatus maps the outcome of a check to the status an API layer should return:
// 400 for structural errors and invalid modes, 409 for an incompatible result, 500 for any other error.
func HTTPStatus(result *Result, err error) int {
	switch {
	case err != nil && (errors.Is(err, schema.ErrStructural) || errors.Is(err, ErrInvalidMode)):
		return http.StatusBadRequest
	case err != nil:
		return http.StatusInternalServerError
	case result == nil:
		return http.StatusInternalServerError
	case !result.Compatible:
		return http.StatusConflict
	default:
		return http.StatusOK
	}
}
