package dependencies

import (
	"fmt"

	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// BuildFromDocuments builds a graph with one node per document and one edge per
// declared reference. Protobuf references become imports; JSON Schema and Avro
// references become references. A reference without a subject is keyed by its name,
// and one without a version points at the subject's latest node.
func BuildFromDocuments(docs []*schema.Document, opts ...Option) (*DependencyGraph, error) {
	g := NewDependencyGraph(opts...)
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		if err := g.AddDocument(doc); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// AddDocument adds doc and its references to the graph. Re-adding a document
// replaces its outgoing edges, so the graph can follow re-registrations.
func (g *DependencyGraph) AddDocument(doc *schema.Document) error {
	from := NodeOf(doc)
	relation := RelationReferences
	if doc.Format() == schema.FormatProtobuf {
		relation = RelationImports
	}

	edges := make([]Edge, 0, len(doc.References()))
	for _, ref := range doc.References() {
		subject := ref.Subject
		if subject == "" {
			subject = ref.Name
		}
		if subject == "" {
			return fmt.Errorf("schema %s has a reference with neither subject nor name", from)
		}
		edges = append(edges, Edge{From: from, To: NewNodeID(subject, ref.Version), Relation: relation})
	}

	if err := g.AddNode(from); err != nil {
		return err
	}
	for _, to := range g.DirectDependencies(from) {
		g.RemoveEdge(from, to)
	}
	for _, e := range edges {
		if err := g.AddEdge(e); err != nil {
			return err
		}
	}
	return nil
}
