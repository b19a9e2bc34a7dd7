package dependencies

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// CycleError is returned when an acyclic order was required but the graph contains
// cycles. It is a structural error.
type CycleError struct {
	Cycles [][]NodeID
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, cycle := range e.Cycles {
		parts[i] = formatCycle(cycle)
	}
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(parts, "; "))
}

// Is reports true for schema.ErrStructural.
func (e *CycleError) Is(target error) bool {
	return target == schema.ErrStructural
}
