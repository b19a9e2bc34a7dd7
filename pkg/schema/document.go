package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"

	"github.com/hamba/avro/v2"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Hash is the SHA-256 digest of a document's canonical serialization.
type Hash [sha256.Size]byte

func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first twelve hex characters of the hash.
func (h Hash) Short() string {
	return h.String()[:12]
}

// IsZero reports whether h is unset.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// Reference is a schema that a document depends on: a protobuf import, a JSON Schema
// resource targeted by $ref, or an Avro schema declaring named types.
type Reference struct {
	// Name is how the body refers to the dependency (import path, $ref document name).
	Name    string `json:"name" yaml:"name"`
	Subject string `json:"subject" yaml:"subject"`
	Version string `json:"version" yaml:"version"`
	Body    string `json:"body,omitempty" yaml:"body,omitempty"`
}

// Content is the parsed, format-specific tree of a document. The set of
// implementations is closed: *JSONContent, *AvroContent and *ProtoContent.
type Content interface {
	Format() Format
	sealed()
}

// JSONContent is a decoded JSON Schema. Resources holds decoded referenced documents
// keyed by reference name.
type JSONContent struct {
	Root      interface{}
	Resources map[string]interface{}
}

func (*JSONContent) Format() Format { return FormatJSONSchema }
func (*JSONContent) sealed()        {}

// RootURL is the URL the root document is compiled under.
func (*JSONContent) RootURL() string { return jsonSchemaRootURL }

// Resolve resolves ref against the document URL base, the way the validator does,
// and returns the target document, its URL and the JSON Pointer fragment.
func (c *JSONContent) Resolve(base, ref string) (doc interface{}, docURL, fragment string, ok bool) {
	b, err := url.Parse(base)
	if err != nil {
		return nil, "", "", false
	}
	r, err := url.Parse(ref)
	if err != nil {
		return nil, "", "", false
	}
	abs := b.ResolveReference(r)
	fragment = abs.Fragment
	docURL = withoutFragment(abs)

	if docURL == jsonSchemaRootURL {
		return c.Root, docURL, fragment, true
	}
	for name, res := range c.Resources {
		if u, err := resourceURL(name); err == nil && u == docURL {
			return res, docURL, fragment, true
		}
	}
	return nil, docURL, fragment, false
}

// resourceURL is the URL a referenced JSON Schema resource is compiled under.
func resourceURL(name string) (string, error) {
	b, err := url.Parse(jsonSchemaBaseURL)
	if err != nil {
		return "", err
	}
	r, err := url.Parse(name)
	if err != nil {
		return "", err
	}
	return withoutFragment(b.ResolveReference(r)), nil
}

func withoutFragment(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

// AvroContent wraps a parsed Avro schema.
type AvroContent struct {
	Schema avro.Schema
}

func (*AvroContent) Format() Format { return FormatAvro }
func (*AvroContent) sealed()        {}

// ProtoContent wraps a linked protobuf file descriptor.
type ProtoContent struct {
	File protoreflect.FileDescriptor
}

func (*ProtoContent) Format() Format { return FormatProtobuf }
func (*ProtoContent) sealed()        {}

// Document is a parsed, format-tagged schema version. It is immutable.
type Document struct {
	format     Format
	subject    string
	version    SemanticVersion
	body       string
	content    Content
	hash       Hash
	references []Reference
}

func (d *Document) Format() Format           { return d.format }
func (d *Document) Subject() string          { return d.subject }
func (d *Document) Version() SemanticVersion { return d.version }
func (d *Document) Body() string             { return d.body }
func (d *Document) Content() Content         { return d.content }
func (d *Document) Hash() Hash               { return d.hash }

// References returns a copy of the document's references.
func (d *Document) References() []Reference {
	refs := make([]Reference, len(d.references))
	copy(refs, d.references)
	return refs
}

// ID returns "subject@version".
func (d *Document) ID() string {
	return d.subject + "@" + d.version.String()
}

// computeHash digests the format, the canonical body and each reference (sorted by
// name) so that identical inputs always produce the same identity.
func computeHash(format Format, canonical []byte, refs []Reference, refCanonical map[string][]byte) Hash {
	h := sha256.New()
	h.Write([]byte(format.String()))
	h.Write([]byte{0})
	h.Write(canonical)

	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	sort.Strings(names)
	for _, name := range names {
		sum := sha256.Sum256(refCanonical[name])
		h.Write([]byte{0})
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(sum[:])
	}

	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}
