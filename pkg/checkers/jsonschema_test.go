package checkers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

func checkJSON(t *testing.T, reader, writer string, opts ...schema.ParseOption) []compatibility.Violation {
	t.Helper()
	r := mustParse(t, schema.FormatJSONSchema, "2.0.0", reader, opts...)
	w := mustParse(t, schema.FormatJSONSchema, "1.0.0", writer, opts...)
	violations, err := JSONSchemaChecker{}.CheckBackward(r, w)
	require.NoError(t, err)
	return violations
}

func TestJSONSchema_RequiredAdded(t *testing.T) {
	violations := checkJSON(t,
		`{"required": ["id", "name", "email"]}`,
		`{"required": ["id", "name"]}`,
	)

	require.Len(t, violations, 1)
	assert.Equal(t, compatibility.KindRequiredAdded, violations[0].Kind)
	assert.Equal(t, "required.email", violations[0].Path)
	assert.Equal(t, compatibility.SeverityBreaking, violations[0].Severity)
}

func TestJSONSchema_RequiredWithDefaultIsSafe(t *testing.T) {
	violations := checkJSON(t,
		`{"properties": {"email": {"type": "string", "default": ""}}, "required": ["email"]}`,
		`{"properties": {}}`,
	)
	assert.Empty(t, violations)
}

func TestJSONSchema_FieldMadeRequired(t *testing.T) {
	violations := checkJSON(t,
		`{"properties": {"email": {"type": "string"}}, "required": ["email"]}`,
		`{"properties": {"email": {"type": "string"}}}`,
	)
	require.Len(t, violations, 1)
	assert.Equal(t, compatibility.KindFieldMadeRequired, violations[0].Kind)
	assert.Equal(t, "required.email", violations[0].Path)
}

func TestJSONSchema_FieldRemoval(t *testing.T) {
	tests := []struct {
		name     string
		reader   string
		writer   string
		severity compatibility.Severity
		kind     compatibility.ViolationKind
	}{
		{
			name:     "optional field removed",
			reader:   `{"properties": {"id": {"type": "string"}}}`,
			writer:   `{"properties": {"id": {"type": "string"}, "nick": {"type": "string"}}}`,
			severity: compatibility.SeverityWarning,
			kind:     compatibility.KindFieldRemoved,
		},
		{
			name:     "field with default removed",
			reader:   `{"properties": {"id": {"type": "string"}}}`,
			writer:   `{"properties": {"id": {"type": "string"}, "nick": {"type": "string", "default": "anon"}}}`,
			severity: compatibility.SeverityInfo,
			kind:     compatibility.KindFieldRemoved,
		},
		{
			name:     "removed field rejected by closed reader",
			reader:   `{"properties": {"id": {"type": "string"}}, "additionalProperties": false}`,
			writer:   `{"properties": {"id": {"type": "string"}, "nick": {"type": "string"}}, "additionalProperties": false}`,
			severity: compatibility.SeverityBreaking,
			kind:     compatibility.KindFieldRemoved,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := checkJSON(t, tt.reader, tt.writer)
			require.Len(t, violations, 1)
			assert.Equal(t, tt.kind, violations[0].Kind)
			assert.Equal(t, tt.severity, violations[0].Severity)
			assert.Equal(t, "properties.nick", violations[0].Path)
		})
	}
}

func TestJSONSchema_TypeChangedHasNoPromotion(t *testing.T) {
	violations := checkJSON(t,
		`{"properties": {"age": {"type": "number"}}}`,
		`{"properties": {"age": {"type": "integer"}}}`,
	)
	require.Len(t, violations, 1)
	assert.Equal(t, compatibility.KindTypeChanged, violations[0].Kind)
	assert.Equal(t, "properties.age", violations[0].Path)
	assert.Equal(t, "integer", violations[0].OldValue)
	assert.Equal(t, "number", violations[0].NewValue)
}

func TestJSONSchema_NestedPath(t *testing.T) {
	violations := checkJSON(t,
		`{"properties": {"user": {"type": "object", "properties": {"email": {"type": "integer"}}, "required": ["phone"]}}}`,
		`{"properties": {"user": {"type": "object", "properties": {"email": {"type": "string"}}}}}`,
	)
	require.Len(t, violations, 2)
	assert.Equal(t, "properties.user.email", violations[0].Path)
	assert.Equal(t, compatibility.KindTypeChanged, violations[0].Kind)
	assert.Equal(t, "required.user.phone", violations[1].Path)
	assert.Equal(t, compatibility.KindRequiredAdded, violations[1].Kind)
}

func TestJSONSchema_Constraints(t *testing.T) {
	tests := []struct {
		name   string
		reader string
		writer string
		kind   compatibility.ViolationKind
		path   string
	}{
		{"minimum raised", `{"type": "integer", "minimum": 10}`, `{"type": "integer", "minimum": 0}`, compatibility.KindConstraintAdded, "minimum"},
		{"maximum lowered", `{"type": "integer", "maximum": 10}`, `{"type": "integer", "maximum": 100}`, compatibility.KindConstraintAdded, "maximum"},
		{"maxLength added", `{"type": "string", "maxLength": 10}`, `{"type": "string"}`, compatibility.KindConstraintAdded, "maxLength"},
		{"maxLength shortened", `{"type": "string", "maxLength": 10}`, `{"type": "string", "maxLength": 20}`, compatibility.KindConstraintAdded, "maxLength"},
		{"pattern changed", `{"type": "string", "pattern": "^[a-z]+$"}`, `{"type": "string", "pattern": "^.*$"}`, compatibility.KindConstraintAdded, "pattern"},
		{"enum value removed", `{"enum": ["a", "b"]}`, `{"enum": ["a", "b", "c"]}`, compatibility.KindEnumValueRemoved, "enum"},
		{"enum added", `{"type": "string", "enum": ["a"]}`, `{"type": "string"}`, compatibility.KindConstraintAdded, "enum"},
		{"multipleOf added", `{"type": "number", "multipleOf": 5}`, `{"type": "number", "multipleOf": 2}`, compatibility.KindConstraintAdded, "multipleOf"},
		{"additionalProperties closed", `{"type": "object", "additionalProperties": false}`, `{"type": "object"}`, compatibility.KindConstraintAdded, "additionalProperties"},
		{"uniqueItems added", `{"type": "array", "uniqueItems": true}`, `{"type": "array"}`, compatibility.KindConstraintAdded, "uniqueItems"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := checkJSON(t, tt.reader, tt.writer)
			require.Len(t, violations, 1, "%v", violations)
			assert.Equal(t, tt.kind, violations[0].Kind)
			assert.Equal(t, tt.path, violations[0].Path)
			assert.True(t, violations[0].IsBreaking())
		})
	}
}

func TestJSONSchema_RelaxedConstraintsAreSilent(t *testing.T) {
	tests := []struct {
		name   string
		reader string
		writer string
	}{
		{"minimum lowered", `{"type": "integer", "minimum": 0}`, `{"type": "integer", "minimum": 10}`},
		{"maxLength removed", `{"type": "string"}`, `{"type": "string", "maxLength": 5}`},
		{"enum value added", `{"enum": ["a", "b", "c"]}`, `{"enum": ["a", "b"]}`},
		{"pattern removed", `{"type": "string"}`, `{"type": "string", "pattern": "^x$"}`},
		{"additionalProperties opened", `{"type": "object"}`, `{"type": "object", "additionalProperties": false}`},
		{"multipleOf divides", `{"type": "number", "multipleOf": 2}`, `{"type": "number", "multipleOf": 4}`},
		{"identical", `{"type": "object", "properties": {"a": {"type": "string"}}}`, `{"type": "object", "properties": {"a": {"type": "string"}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, checkJSON(t, tt.reader, tt.writer))
		})
	}
}

func TestJSONSchema_FormatChangedIsWarning(t *testing.T) {
	violations := checkJSON(t,
		`{"type": "string", "format": "email"}`,
		`{"type": "string"}`,
	)
	require.Len(t, violations, 1)
	assert.Equal(t, compatibility.KindFormatChanged, violations[0].Kind)
	assert.Equal(t, compatibility.SeverityWarning, violations[0].Severity)
}

func TestJSONSchema_ArrayItems(t *testing.T) {
	violations := checkJSON(t,
		`{"properties": {"tags": {"type": "array", "items": {"type": "integer"}}}}`,
		`{"properties": {"tags": {"type": "array", "items": {"type": "string"}}}}`,
	)
	require.Len(t, violations, 1)
	assert.Equal(t, compatibility.KindArrayItemsChanged, violations[0].Kind)
	assert.Equal(t, "properties.tags.items", violations[0].Path)
}

func TestJSONSchema_MapValues(t *testing.T) {
	violations := checkJSON(t,
		`{"type": "object", "additionalProperties": {"type": "integer"}}`,
		`{"type": "object", "additionalProperties": {"type": "string"}}`,
	)
	require.Len(t, violations, 1)
	assert.Equal(t, compatibility.KindMapValueChanged, violations[0].Kind)
}

func TestJSONSchema_LocalRefsResolved(t *testing.T) {
	reader := `{
	  "$defs": {"Address": {"type": "object", "properties": {"zip": {"type": "integer"}}}},
	  "properties": {"home": {"$ref": "#/$defs/Address"}}
	}`
	writer := `{
	  "definitions": {"Addr": {"type": "object", "properties": {"zip": {"type": "string"}}}},
	  "properties": {"home": {"$ref": "#/definitions/Addr"}}
	}`
	violations := checkJSON(t, reader, writer)
	require.Len(t, violations, 1)
	assert.Equal(t, compatibility.KindTypeChanged, violations[0].Kind)
	assert.Equal(t, "properties.home.zip", violations[0].Path)
}

func TestJSONSchema_ReferencedResourcesResolved(t *testing.T) {
	r := mustParse(t, schema.FormatJSONSchema, "2.0.0", `{"properties": {"home": {"$ref": "address.json"}}}`,
		schema.WithReferences(schema.Reference{Name: "address.json", Body: `{"type": "object", "required": ["zip"]}`}))
	w := mustParse(t, schema.FormatJSONSchema, "1.0.0", `{"properties": {"home": {"$ref": "address.json"}}}`,
		schema.WithReferences(schema.Reference{Name: "address.json", Body: `{"type": "object"}`}))

	violations, err := JSONSchemaChecker{}.CheckBackward(r, w)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, compatibility.KindRequiredAdded, violations[0].Kind)
	assert.Equal(t, "required.home.zip", violations[0].Path)
}

func TestJSONSchema_NestedResourcePathsResolved(t *testing.T) {
	body := `{"properties": {"home": {"$ref": "defs/address.json"}}}`
	tests := []struct {
		name   string
		reader []schema.Reference
		writer []schema.Reference
		path   string
	}{
		{
			name:   "reference name with a directory",
			reader: []schema.Reference{{Name: "defs/address.json", Body: `{"properties": {"zip": {"type": "integer"}}}`}},
			writer: []schema.Reference{{Name: "defs/address.json", Body: `{"properties": {"zip": {"type": "string"}}}`}},
			path:   "properties.home.zip",
		},
		{
			name: "relative reference between resources",
			reader: []schema.Reference{
				{Name: "defs/address.json", Body: `{"properties": {"geo": {"$ref": "geo.json#/$defs/Point"}}}`},
				{Name: "defs/geo.json", Body: `{"$defs": {"Point": {"properties": {"lat": {"type": "string"}}}}}`},
			},
			writer: []schema.Reference{
				{Name: "defs/address.json", Body: `{"properties": {"geo": {"$ref": "geo.json#/$defs/Point"}}}`},
				{Name: "defs/geo.json", Body: `{"$defs": {"Point": {"properties": {"lat": {"type": "number"}}}}}`},
			},
			path: "properties.home.geo.lat",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustParse(t, schema.FormatJSONSchema, "2.0.0", body, schema.WithReferences(tt.reader...))
			w := mustParse(t, schema.FormatJSONSchema, "1.0.0", body, schema.WithReferences(tt.writer...))

			violations, err := JSONSchemaChecker{}.CheckBackward(r, w)
			require.NoError(t, err)
			require.Len(t, violations, 1)
			assert.Equal(t, compatibility.KindTypeChanged, violations[0].Kind)
			assert.Equal(t, tt.path, violations[0].Path)
		})
	}
}

func TestJSONSchema_RecursiveRefsTerminate(t *testing.T) {
	body := `{
	  "$defs": {"Node": {"type": "object", "properties": {"next": {"$ref": "#/$defs/Node"}, "value": {"type": "string"}}}},
	  "$ref": "#/$defs/Node"
	}`
	changed := `{
	  "$defs": {"Node": {"type": "object", "properties": {"next": {"$ref": "#/$defs/Node"}, "value": {"type": "integer"}}}},
	  "$ref": "#/$defs/Node"
	}`
	violations := checkJSON(t, changed, body)
	require.NotEmpty(t, violations)
	assert.Equal(t, compatibility.KindTypeChanged, violations[0].Kind)
}

func TestJSONSchema_FalseSchema(t *testing.T) {
	violations := checkJSON(t, `false`, `{"type": "string"}`)
	require.Len(t, violations, 1)
	assert.Equal(t, compatibility.KindConstraintAdded, violations[0].Kind)
	assert.Empty(t, checkJSON(t, `{"type": "string"}`, `false`))
}

func TestJSONSchema_Asymmetry(t *testing.T) {
	withX := `{"properties": {"x": {"type": "string"}}, "required": ["x"]}`
	withoutX := `{"properties": {}}`

	assert.False(t, hasBreaking(checkJSON(t, withoutX, withX)), "reader ignores the extra field")
	assert.True(t, hasBreaking(checkJSON(t, withX, withoutX)), "reader requires a field the writer lacks")
}
