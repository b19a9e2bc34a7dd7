package dependencies

import (
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
)

// RiskLevel grades the blast radius of a change by how many schemas it reaches.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// RiskFromCount maps an impact radius to a risk level.
func RiskFromCount(n int) RiskLevel {
	switch {
	case n < 10:
		return RiskLow
	case n < 50:
		return RiskMedium
	case n < 200:
		return RiskHigh
	default:
		return RiskCritical
	}
}

// ImpactAnalysis represents the impact of changing one schema
type ImpactAnalysis struct {
	Node                 NodeID   `json:"node"`
	DirectDependents     []NodeID `json:"direct_dependents"`
	TransitiveDependents []NodeID `json:"transitive_dependents"`
	// ImpactRadius is the number of transitive dependents.
	ImpactRadius int `json:"impact_radius"`
	// MaxDepth is the longest reference chain from a dependent down to Node.
	MaxDepth int       `json:"max_depth"`
	Risk     RiskLevel `json:"risk"`
	// MigrationOrder lists Node and its dependents, dependencies first. It is empty
	// when the dependents form a cycle; Cycles then holds the cycles instead.
	MigrationOrder  []NodeID                  `json:"migration_order,omitempty"`
	Cycles          [][]NodeID                `json:"cycles,omitempty"`
	BreakingChanges []compatibility.Violation `json:"breaking_changes,omitempty"`
	Recommendations []string                  `json:"recommendations"`
}

// AnalyzeImpact computes what a change to node would affect. violations are the
// result of checking the change; only the breaking ones are kept.
func (g *DependencyGraph) AnalyzeImpact(node NodeID, violations []compatibility.Violation) *ImpactAnalysis {
	g.mu.RLock()
	defer g.mu.RUnlock()

	dependents, depths := g.dependentsLocked(node)
	analysis := &ImpactAnalysis{
		Node:                 node,
		DirectDependents:     g.dependentsOf(node),
		TransitiveDependents: dependents,
		ImpactRadius:         len(dependents),
		Risk:                 RiskFromCount(len(dependents)),
	}
	for _, d := range depths {
		if d > analysis.MaxDepth {
			analysis.MaxDepth = d
		}
	}
	for _, v := range violations {
		if v.IsBreaking() {
			analysis.BreakingChanges = append(analysis.BreakingChanges, v)
		}
	}

	affected := append([]NodeID{node}, dependents...)
	order, err := g.migrationPathLocked(affected)
	var cycleErr *CycleError
	switch {
	case errors.As(err, &cycleErr):
		analysis.Cycles = cycleErr.Cycles
	case err == nil:
		analysis.MigrationOrder = order
	}

	analysis.Recommendations = recommendations(analysis)
	return analysis
}

func recommendations(a *ImpactAnalysis) []string {
	var out []string
	switch a.Risk {
	case RiskLow:
		out = append(out, "Low risk change - proceed with standard testing")
	case RiskMedium:
		out = append(out,
			"Medium risk - roll out to a staging registry first",
			"Run integration tests for every dependent schema")
	case RiskHigh:
		out = append(out,
			"High risk - migrate dependents gradually in the listed order",
			"Prepare a rollback plan before registering the change")
	case RiskCritical:
		out = append(out,
			"Critical risk - consider whether the change is necessary",
			"Notify the owners of affected subjects in advance",
			"Split the change into smaller incremental versions")
	}

	seen := make(map[compatibility.ViolationKind]bool)
	for _, v := range a.BreakingChanges {
		if seen[v.Kind] {
			continue
		}
		seen[v.Kind] = true
		switch v.Kind {
		case compatibility.KindFieldRemoved:
			out = append(out, "Deprecate fields before removing them")
		case compatibility.KindTypeChanged:
			out = append(out, "Add a new field instead of changing the type of an existing one")
		case compatibility.KindRequiredAdded, compatibility.KindFieldMadeRequired:
			out = append(out, "Provide a default or backfill existing data before requiring a field")
		case compatibility.KindEnumValueRemoved:
			out = append(out, "Check stored data for uses of removed enum values")
		case compatibility.KindNameChanged, compatibility.KindNamespaceChanged:
			out = append(out, "Add an alias for the old name so existing readers still resolve it")
		}
	}

	if len(a.Cycles) > 0 {
		out = append(out, "Break the reference cycles before migrating; no safe order exists")
	}
	return out
}

// MigrationGuide renders the analysis as a markdown checklist.
func (a *ImpactAnalysis) MigrationGuide() string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Migration guide for %s\n\n", a.Node)
	fmt.Fprintf(&b, "- Risk: **%s**\n", a.Risk)
	fmt.Fprintf(&b, "- Impact radius: %d schema(s), %d direct\n", a.ImpactRadius, len(a.DirectDependents))
	if a.MaxDepth > 0 {
		fmt.Fprintf(&b, "- Deepest reference chain: %d\n", a.MaxDepth)
	}

	if len(a.BreakingChanges) > 0 {
		b.WriteString("\n## Breaking changes\n\n")
		for _, v := range a.BreakingChanges {
			fmt.Fprintf(&b, "- `%s` %s", v.Path, v.Kind)
			if v.Description != "" {
				fmt.Fprintf(&b, ": %s", v.Description)
			}
			b.WriteString("\n")
		}
	}

	switch {
	case len(a.Cycles) > 0:
		b.WriteString("\n## Reference cycles\n\n")
		for _, cycle := range a.Cycles {
			fmt.Fprintf(&b, "- %s\n", formatCycle(cycle))
		}
	case len(a.MigrationOrder) > 0:
		b.WriteString("\n## Migration order\n\n")
		for i, id := range a.MigrationOrder {
			fmt.Fprintf(&b, "%d. [ ] %s\n", i+1, id)
		}
	}

	if len(a.Recommendations) > 0 {
		b.WriteString("\n## Recommendations\n\n")
		for _, r := range a.Recommendations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return b.String()
}
