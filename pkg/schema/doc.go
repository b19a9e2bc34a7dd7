// Package schema holds the parsed, format-tagged representation of a registered schema
// together with semantic version ordering.
//
// A Document is immutable once built by Parse. Its content hash is computed over a
// canonical serialization so that two bodies differing only in whitespace or key order
// share an identity.
package schema
