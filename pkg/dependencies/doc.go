// Package dependencies analyzes reference graphs between registered schemas.
//
// # Overview
//
// Schemas reference each other: protobuf files import other files, JSON Schemas
// $ref shared resources, Avro schemas reuse named types. The DependencyGraph records
// those references so that, before a breaking change is approved, callers can ask
// which schemas are affected and in what order they have to be migrated.
//
// Nodes are identified by subject and version. A reference without a version points
// at the symbolic latest node of its subject.
//
// # Usage Example
//
// Build a graph from registered documents:
//
//	graph, err := dependencies.BuildFromDocuments(docs)
//
// Impact of a change:
//
//	impact := graph.AnalyzeImpact(dependencies.NodeOf(doc), result.Violations)
//	fmt.Println(impact.MigrationGuide())
//
// Detect cycles:
//
//	for _, cycle := range graph.DetectCycles() {
//		fmt.Println(cycle)
//	}
//
// MigrationPath refuses to order a cyclic subset and returns a *CycleError instead,
// which matches schema.ErrStructural.
//
// # Related Packages
//
//   - pkg/engine: compatibility checks whose violations feed AnalyzeImpact
//   - pkg/schema: document references the graph is built from
package dependencies
