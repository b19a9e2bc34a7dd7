package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// schemaInput names a schema body on disk and the metadata needed to parse it.
type schemaInput struct {
	path    string
	format  string
	subject string
	version string
	// refs are "name=path" pairs.
	refs []string
}

// formatFromPath infers the schema format from a file extension.
func formatFromPath(path string) (schema.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return schema.FormatJSONSchema, nil
	case ".avsc", ".avro":
		return schema.FormatAvro, nil
	case ".proto":
		return schema.FormatProtobuf, nil
	default:
		return 0, fmt.Errorf("cannot infer schema format of %s; pass --format", path)
	}
}

// subjectName defaults the subject to the file name without its extension.
func (in schemaInput) subjectName() string {
	if in.subject != "" {
		return in.subject
	}
	return strings.TrimSuffix(filepath.Base(in.path), filepath.Ext(in.path))
}

func (in schemaInput) load() (*schema.Document, error) {
	if in.path == "" {
		return nil, fmt.Errorf("a schema file is required")
	}

	var (
		format schema.Format
		err    error
	)
	if in.format != "" {
		format, err = schema.ParseFormat(in.format)
	} else {
		format, err = formatFromPath(in.path)
	}
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(in.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	refs, err := loadReferences(in.refs)
	if err != nil {
		return nil, err
	}

	version := in.version
	if version == "" {
		version = "1.0.0"
	}

	return schema.ParseString(format, in.subjectName(), version, string(body), schema.WithReferences(refs...))
}

// loadReferences reads "name=path" pairs. A "#subject@version" suffix on the path
// names the registered schema the reference resolves to; otherwise the subject is
// the name and the version is left open.
func loadReferences(pairs []string) ([]schema.Reference, error) {
	refs := make([]schema.Reference, 0, len(pairs))
	for _, pair := range pairs {
		name, path, ok := strings.Cut(pair, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid reference %q, want name=path", pair)
		}
		ref := schema.Reference{Name: name, Subject: name}
		if p, target, found := strings.Cut(path, "#"); found {
			path = p
			subject, version, _ := strings.Cut(target, "@")
			if subject != "" {
				ref.Subject = subject
			}
			ref.Version = version
		}
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read reference %s: %w", name, err)
		}
		ref.Body = string(body)
		refs = append(refs, ref)
	}
	return refs, nil
}

// loadPrevious parses "version=path" pairs as earlier versions of in's subject.
func loadPrevious(in schemaInput, pairs []string) ([]*schema.Document, error) {
	docs := make([]*schema.Document, 0, len(pairs))
	for _, pair := range pairs {
		version, path, ok := strings.Cut(pair, "=")
		if !ok || version == "" || path == "" {
			return nil, fmt.Errorf("invalid previous version %q, want version=path", pair)
		}
		prev := in
		prev.subject = in.subjectName()
		prev.path = path
		prev.version = version
		if prev.format == "" {
			prev.format = formatNameOf(in.path)
		}
		doc, err := prev.load()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// formatNameOf returns the format name inferred from path, or "" when unknown.
func formatNameOf(path string) string {
	f, err := formatFromPath(path)
	if err != nil {
		return ""
	}
	return f.String()
}
