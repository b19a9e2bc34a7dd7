package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/bufbuild/protocompile"
	"github.com/gowebpki/jcs"
	"github.com/hamba/avro/v2"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
)

const (
	// ProtoRootFile is the file name the candidate protobuf body is compiled under.
	ProtoRootFile = "schema.proto"

	jsonSchemaBaseURL = "https://schemacompat.local/"
	jsonSchemaRootURL = jsonSchemaBaseURL + "schema.json"
)

// ParseOption configures Parse.
type ParseOption func(*parseOptions)

type parseOptions struct {
	references []Reference
}

// WithReferences supplies the documents the body depends on.
func WithReferences(refs ...Reference) ParseOption {
	return func(o *parseOptions) {
		o.references = append(o.references, refs...)
	}
}

// Parse parses and validates body as a schema of the given format. Any failure is
// returned as a *ParseError.
func Parse(format Format, subject string, version SemanticVersion, body string, opts ...ParseOption) (*Document, error) {
	var o parseOptions
	for _, opt := range opts {
		opt(&o)
	}

	fail := func(err error) (*Document, error) {
		return nil, &ParseError{Format: format, Subject: subject, Version: version.String(), Err: err}
	}

	if strings.TrimSpace(body) == "" {
		return fail(errors.New("empty schema body"))
	}
	seen := make(map[string]bool, len(o.references))
	for _, ref := range o.references {
		if ref.Name == "" {
			return fail(errors.New("reference without a name"))
		}
		if seen[ref.Name] {
			return fail(fmt.Errorf("duplicate reference %q", ref.Name))
		}
		seen[ref.Name] = true
	}

	var (
		content      Content
		canonical    []byte
		refCanonical map[string][]byte
		err          error
	)
	switch format {
	case FormatJSONSchema:
		content, canonical, refCanonical, err = parseJSONSchema(body, o.references)
	case FormatAvro:
		content, canonical, refCanonical, err = parseAvro(body, o.references)
	case FormatProtobuf:
		content, canonical, refCanonical, err = parseProtobuf(body, o.references)
	default:
		err = fmt.Errorf("unsupported schema format: %s", format)
	}
	if err != nil {
		return fail(err)
	}

	return &Document{
		format:     format,
		subject:    subject,
		version:    version,
		body:       body,
		content:    content,
		hash:       computeHash(format, canonical, o.references, refCanonical),
		references: append([]Reference(nil), o.references...),
	}, nil
}

// ParseString is Parse with the version given as a string.
func ParseString(format Format, subject, version, body string, opts ...ParseOption) (*Document, error) {
	v, err := ParseVersion(version)
	if err != nil {
		return nil, &ParseError{Format: format, Subject: subject, Version: version, Err: err}
	}
	return Parse(format, subject, v, body, opts...)
}

func canonicalJSON(body string) ([]byte, error) {
	out, err := jcs.Transform([]byte(body))
	if err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return out, nil
}

func parseJSONSchema(body string, refs []Reference) (Content, []byte, map[string][]byte, error) {
	var root interface{}
	if err := json.Unmarshal([]byte(body), &root); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid JSON: %w", err)
	}
	switch root.(type) {
	case map[string]interface{}, bool:
	default:
		return nil, nil, nil, fmt.Errorf("JSON Schema must be an object or boolean, got %T", root)
	}

	canonical, err := canonicalJSON(body)
	if err != nil {
		return nil, nil, nil, err
	}

	content := &JSONContent{Root: root, Resources: make(map[string]interface{}, len(refs))}
	refCanonical := make(map[string][]byte, len(refs))
	bodies := make(map[string]string, len(refs))
	for _, ref := range refs {
		u, err := resourceURL(ref.Name)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reference %q: %w", ref.Name, err)
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(ref.Body), &decoded); err != nil {
			return nil, nil, nil, fmt.Errorf("invalid JSON in reference %q: %w", ref.Name, err)
		}
		c, err := canonicalJSON(ref.Body)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reference %q: %w", ref.Name, err)
		}
		content.Resources[ref.Name] = decoded
		refCanonical[ref.Name] = c
		bodies[u] = ref.Body
	}

	compiler := jsonschema.NewCompiler()
	compiler.LoadURL = func(u string) (io.ReadCloser, error) {
		if b, ok := bodies[strings.SplitN(u, "#", 2)[0]]; ok {
			return io.NopCloser(strings.NewReader(b)), nil
		}
		return nil, fmt.Errorf("unresolved schema reference %q", u)
	}
	if err := compiler.AddResource(jsonSchemaRootURL, strings.NewReader(body)); err != nil {
		return nil, nil, nil, err
	}
	for u, b := range bodies {
		if err := compiler.AddResource(u, strings.NewReader(b)); err != nil {
			return nil, nil, nil, fmt.Errorf("reference %q: %w", u, err)
		}
	}
	if _, err := compiler.Compile(jsonSchemaRootURL); err != nil {
		return nil, nil, nil, err
	}

	return content, canonical, refCanonical, nil
}

func parseAvro(body string, refs []Reference) (Content, []byte, map[string][]byte, error) {
	cache := &avro.SchemaCache{}
	refCanonical := make(map[string][]byte, len(refs))
	for _, ref := range refs {
		if _, err := avro.ParseWithCache(ref.Body, "", cache); err != nil {
			return nil, nil, nil, fmt.Errorf("reference %q: %w", ref.Name, err)
		}
		c, err := canonicalJSON(ref.Body)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("reference %q: %w", ref.Name, err)
		}
		refCanonical[ref.Name] = c
	}

	s, err := avro.ParseWithCache(body, "", cache)
	if err != nil {
		return nil, nil, nil, err
	}
	canonical, err := canonicalJSON(body)
	if err != nil {
		return nil, nil, nil, err
	}
	return &AvroContent{Schema: s}, canonical, refCanonical, nil
}

func parseProtobuf(body string, refs []Reference) (Content, []byte, map[string][]byte, error) {
	files := map[string]string{ProtoRootFile: body}
	refCanonical := make(map[string][]byte, len(refs))
	for _, ref := range refs {
		if ref.Name == ProtoRootFile {
			return nil, nil, nil, fmt.Errorf("reference name %q is reserved", ref.Name)
		}
		files[ref.Name] = ref.Body
		refCanonical[ref.Name] = []byte(ref.Body)
	}

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{
			Accessor: protocompile.SourceAccessorFromMap(files),
		}),
	}
	result, err := compiler.Compile(context.Background(), ProtoRootFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if len(result) == 0 {
		return nil, nil, nil, errors.New("compilation produced no file descriptor")
	}
	fd := result[0]

	fdp := protodesc.ToFileDescriptorProto(fd)
	fdp.SourceCodeInfo = nil
	canonical, err := proto.MarshalOptions{Deterministic: true}.Marshal(fdp)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to serialize descriptor: %w", err)
	}

	return &ProtoContent{File: fd}, canonical, refCanonical, nil
}
