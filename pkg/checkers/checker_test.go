package checkers

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

func mustParse(t *testing.T, format schema.Format, version, body string, opts ...schema.ParseOption) *schema.Document {
	t.Helper()
	doc, err := schema.ParseString(format, "test-subject", version, body, opts...)
	require.NoError(t, err)
	return doc
}

func kinds(violations []compatibility.Violation) []compatibility.ViolationKind {
	out := make([]compatibility.ViolationKind, len(violations))
	for i, v := range violations {
		out[i] = v.Kind
	}
	return out
}

func hasBreaking(violations []compatibility.Violation) bool {
	for _, v := range violations {
		if v.IsBreaking() {
			return true
		}
	}
	return false
}

func TestFor(t *testing.T) {
	for _, format := range []schema.Format{schema.FormatJSONSchema, schema.FormatAvro, schema.FormatProtobuf} {
		c, err := For(format)
		require.NoError(t, err)
		assert.Equal(t, format, c.Format())
	}
	_, err := For(schema.Format(7))
	assert.Error(t, err)
}

func TestCheck_FormatMismatch(t *testing.T) {
	j := mustParse(t, schema.FormatJSONSchema, "1.0.0", `{"type": "string"}`)
	a := mustParse(t, schema.FormatAvro, "1.0.0", `"string"`)

	_, err := JSONSchemaChecker{}.CheckBackward(j, a)
	var mismatch *schema.FormatMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.ErrorIs(t, err, schema.ErrStructural)

	_, err = AvroChecker{}.CheckBackward(j, j)
	assert.ErrorIs(t, err, schema.ErrStructural)
}

func TestCheck_Directions(t *testing.T) {
	writer := mustParse(t, schema.FormatAvro, "1.0.0", `{"type": "record", "name": "R", "fields": [
		{"name": "x", "type": "string"}
	]}`)
	reader := mustParse(t, schema.FormatAvro, "2.0.0", `{"type": "record", "name": "R", "fields": []}`)
	c := AvroChecker{}

	backward, err := Check(c, reader, writer, compatibility.CompatibilityModeBackward)
	require.NoError(t, err)
	assert.False(t, hasBreaking(backward))

	forward, err := Check(c, reader, writer, compatibility.CompatibilityModeForward)
	require.NoError(t, err)
	assert.True(t, hasBreaking(forward))
	assert.Equal(t, []compatibility.ViolationKind{compatibility.KindRequiredAdded}, kinds(forward))

	full, err := Check(c, reader, writer, compatibility.CompatibilityModeFull)
	require.NoError(t, err)
	assert.Len(t, full, len(backward)+len(forward))

	none, err := Check(c, reader, writer, compatibility.CompatibilityModeNone)
	require.NoError(t, err)
	assert.Empty(t, none)
}
