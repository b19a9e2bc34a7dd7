package schema

import (
	"encoding/json"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
)

// UnifiedDiff renders a unified diff between two documents' bodies. JSON-based
// formats are pretty-printed first so that formatting differences do not show up.
func UnifiedDiff(from, to *Document) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(displayBody(from)),
		B:        difflib.SplitLines(displayBody(to)),
		FromFile: from.ID(),
		ToFile:   to.ID(),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("failed to render diff: %w", err)
	}
	return text, nil
}

func displayBody(d *Document) string {
	if d.format == FormatProtobuf {
		return d.body
	}
	var v interface{}
	if err := json.Unmarshal([]byte(d.body), &v); err != nil {
		return d.body
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return d.body
	}
	return string(out) + "\n"
}
