package checkers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

func checkProto(t *testing.T, reader, writer string) []compatibility.Violation {
	t.Helper()
	r := mustParse(t, schema.FormatProtobuf, "2.0.0", reader)
	w := mustParse(t, schema.FormatProtobuf, "1.0.0", writer)
	violations, err := ProtobufChecker{}.CheckBackward(r, w)
	require.NoError(t, err)
	return violations
}

func proto3(body string) string {
	return "syntax = \"proto3\";\npackage acme.users.v1;\n\n" + body
}

func TestProtobuf_FieldNumberReusedWithNewType(t *testing.T) {
	writer := proto3(`message User {
  string id = 1;
  string name = 2;
  string email = 3;
}`)
	reader := proto3(`message User {
  string id = 1;
  string name = 2;
  int32 email = 3;
}`)

	violations := checkProto(t, reader, writer)
	require.Len(t, violations, 1)
	v := violations[0]
	assert.Equal(t, compatibility.KindTypeChanged, v.Kind)
	assert.Equal(t, "messages.User.fields.3", v.Path)
	assert.Equal(t, "string", v.OldValue)
	assert.Equal(t, "int32", v.NewValue)
	assert.True(t, v.IsBreaking())

	forward, err := CheckForward(ProtobufChecker{},
		mustParse(t, schema.FormatProtobuf, "2.0.0", reader),
		mustParse(t, schema.FormatProtobuf, "1.0.0", writer))
	require.NoError(t, err)
	assert.Equal(t, []compatibility.ViolationKind{compatibility.KindTypeChanged}, kinds(forward))
}

func TestProtobuf_NumberReusedUnderNewName(t *testing.T) {
	violations := checkProto(t,
		proto3("message User {\n  int64 age = 3;\n}"),
		proto3("message User {\n  string email = 3;\n}"),
	)
	require.Len(t, violations, 1)
	assert.Equal(t, compatibility.KindTypeChanged, violations[0].Kind)
	assert.Contains(t, violations[0].Description, "field number 3 reused")
}

func TestProtobuf_WireCompatibleTypes(t *testing.T) {
	tests := []struct {
		writer, reader string
		ok             bool
	}{
		{"int32", "int64", true},
		{"uint32", "uint64", true},
		{"int64", "bool", true},
		{"sint32", "sint64", true},
		{"fixed32", "sfixed32", true},
		{"fixed64", "sfixed64", true},
		{"string", "bytes", true},
		{"int32", "sint32", false},
		{"fixed32", "fixed64", false},
		{"string", "int32", false},
		{"double", "float", false},
	}

	for _, tt := range tests {
		t.Run(tt.writer+" to "+tt.reader, func(t *testing.T) {
			violations := checkProto(t,
				proto3("message M {\n  "+tt.reader+" v = 1;\n}"),
				proto3("message M {\n  "+tt.writer+" v = 1;\n}"),
			)
			if tt.ok {
				assert.Empty(t, violations)
				return
			}
			assert.Equal(t, []compatibility.ViolationKind{compatibility.KindTypeChanged}, kinds(violations))
		})
	}
}

func TestProtobuf_FieldRenamedIsInfo(t *testing.T) {
	violations := checkProto(t,
		proto3("message User {\n  string email_address = 3;\n}"),
		proto3("message User {\n  string email = 3;\n}"),
	)
	require.Len(t, violations, 1)
	assert.Equal(t, compatibility.KindNameChanged, violations[0].Kind)
	assert.Equal(t, compatibility.SeverityInfo, violations[0].Severity)
	assert.False(t, hasBreaking(violations))
}

func TestProtobuf_FieldAddedAndRemoved(t *testing.T) {
	t.Run("added optional field", func(t *testing.T) {
		assert.Empty(t, checkProto(t,
			proto3("message User {\n  string id = 1;\n  string email = 2;\n}"),
			proto3("message User {\n  string id = 1;\n}"),
		))
	})

	t.Run("removed field", func(t *testing.T) {
		violations := checkProto(t,
			proto3("message User {\n  string id = 1;\n}"),
			proto3("message User {\n  string id = 1;\n  string email = 2;\n}"),
		)
		require.Len(t, violations, 1)
		assert.Equal(t, compatibility.KindFieldRemoved, violations[0].Kind)
		assert.Equal(t, compatibility.SeverityWarning, violations[0].Severity)
		assert.Equal(t, "messages.User.fields.2", violations[0].Path)
		assert.Contains(t, violations[0].Suggestion, "reserve field number 2")
	})

	t.Run("removed and reserved", func(t *testing.T) {
		violations := checkProto(t,
			proto3("message User {\n  reserved 2;\n  string id = 1;\n}"),
			proto3("message User {\n  string id = 1;\n  string email = 2;\n}"),
		)
		require.Len(t, violations, 1)
		assert.Empty(t, violations[0].Suggestion)
	})
}

func TestProtobuf_ReservedFieldReused(t *testing.T) {
	violations := checkProto(t,
		proto3("message User {\n  string id = 1;\n  string nickname = 2;\n}"),
		proto3("message User {\n  reserved 2;\n  reserved \"email\";\n  string id = 1;\n}"),
	)
	require.Len(t, violations, 1)
	assert.Equal(t, KindReservedFieldReused, violations[0].Kind)
	assert.True(t, violations[0].Kind.IsCustom())
	assert.True(t, violations[0].IsBreaking())
}

func TestProtobuf_Proto2Required(t *testing.T) {
	proto2 := func(body string) string {
		return "syntax = \"proto2\";\npackage acme.v1;\n\n" + body
	}

	t.Run("required added", func(t *testing.T) {
		violations := checkProto(t,
			proto2("message M {\n  optional string a = 1;\n  required string b = 2;\n}"),
			proto2("message M {\n  optional string a = 1;\n}"),
		)
		require.Len(t, violations, 1)
		assert.Equal(t, compatibility.KindRequiredAdded, violations[0].Kind)
		assert.Equal(t, "messages.M.fields.2", violations[0].Path)
	})

	t.Run("made required", func(t *testing.T) {
		violations := checkProto(t,
			proto2("message M {\n  required string a = 1;\n}"),
			proto2("message M {\n  optional string a = 1;\n}"),
		)
		assert.Equal(t, []compatibility.ViolationKind{compatibility.KindFieldMadeRequired}, kinds(violations))
	})
}

func TestProtobuf_CardinalityAndMaps(t *testing.T) {
	t.Run("singular to repeated", func(t *testing.T) {
		violations := checkProto(t,
			proto3("message M {\n  repeated string tags = 1;\n}"),
			proto3("message M {\n  string tags = 1;\n}"),
		)
		require.Len(t, violations, 1)
		assert.Equal(t, compatibility.KindTypeChanged, violations[0].Kind)
		assert.Equal(t, "singular", violations[0].OldValue)
		assert.Equal(t, "repeated", violations[0].NewValue)
	})

	t.Run("map value changed", func(t *testing.T) {
		violations := checkProto(t,
			proto3("message M {\n  map<string, int32> attrs = 1;\n}"),
			proto3("message M {\n  map<string, string> attrs = 1;\n}"),
		)
		require.Len(t, violations, 1)
		assert.Equal(t, compatibility.KindMapValueChanged, violations[0].Kind)
	})

	t.Run("map unchanged", func(t *testing.T) {
		body := proto3("message M {\n  map<string, int32> attrs = 1;\n}")
		assert.Empty(t, checkProto(t, body, body))
	})
}

func TestProtobuf_PresenceAndOneof(t *testing.T) {
	t.Run("presence", func(t *testing.T) {
		violations := checkProto(t,
			proto3("message M {\n  optional int32 count = 1;\n}"),
			proto3("message M {\n  int32 count = 1;\n}"),
		)
		require.Len(t, violations, 1)
		assert.Equal(t, KindPresenceChanged, violations[0].Kind)
		assert.Equal(t, compatibility.SeverityWarning, violations[0].Severity)
	})

	t.Run("moved into oneof", func(t *testing.T) {
		violations := checkProto(t,
			proto3("message M {\n  oneof contact {\n    string email = 1;\n    string phone = 2;\n  }\n}"),
			proto3("message M {\n  string email = 1;\n}"),
		)
		assert.Contains(t, kinds(violations), KindOneofChanged)
		assert.False(t, hasBreaking(violations))
	})
}

func TestProtobuf_MessageTypes(t *testing.T) {
	writer := proto3(`message Address { string city = 1; }
message Location { string city = 1; }
message User { Address address = 1; }`)

	t.Run("same message", func(t *testing.T) {
		assert.Empty(t, checkProto(t, writer, writer))
	})

	t.Run("different message", func(t *testing.T) {
		reader := proto3(`message Address { string city = 1; }
message Location { string city = 1; }
message User { Location address = 1; }`)
		violations := checkProto(t, reader, writer)
		require.Len(t, violations, 1)
		assert.Equal(t, compatibility.KindTypeChanged, violations[0].Kind)
		assert.Equal(t, "Address", violations[0].OldValue)
		assert.Equal(t, "Location", violations[0].NewValue)
	})

	t.Run("nested message field", func(t *testing.T) {
		reader := proto3(`message Address { int32 city = 1; }
message Location { string city = 1; }
message User { Address address = 1; }`)
		violations := checkProto(t, reader, writer)
		require.Len(t, violations, 1)
		assert.Equal(t, "messages.Address.fields.1", violations[0].Path)
	})

	t.Run("message removed", func(t *testing.T) {
		reader := proto3(`message Address { string city = 1; }
message User { Address address = 1; }`)
		violations := checkProto(t, reader, writer)
		assert.Equal(t, []compatibility.ViolationKind{KindMessageRemoved}, kinds(violations))
		assert.False(t, hasBreaking(violations))
	})
}

func TestProtobuf_Enums(t *testing.T) {
	writer := proto3("enum Status {\n  STATUS_UNSPECIFIED = 0;\n  STATUS_ACTIVE = 1;\n  STATUS_DELETED = 2;\n}")

	t.Run("value removed", func(t *testing.T) {
		violations := checkProto(t,
			proto3("enum Status {\n  STATUS_UNSPECIFIED = 0;\n  STATUS_ACTIVE = 1;\n}"),
			writer,
		)
		require.Len(t, violations, 1)
		assert.Equal(t, compatibility.KindEnumValueRemoved, violations[0].Kind)
		assert.Equal(t, "enums.Status.values.2", violations[0].Path)
		assert.True(t, violations[0].IsBreaking())
	})

	t.Run("value renamed", func(t *testing.T) {
		violations := checkProto(t,
			proto3("enum Status {\n  STATUS_UNSPECIFIED = 0;\n  STATUS_ACTIVE = 1;\n  STATUS_ARCHIVED = 2;\n}"),
			writer,
		)
		require.Len(t, violations, 1)
		assert.Equal(t, compatibility.KindNameChanged, violations[0].Kind)
		assert.Equal(t, compatibility.SeverityInfo, violations[0].Severity)
	})

	t.Run("value added", func(t *testing.T) {
		reader := proto3("enum Status {\n  STATUS_UNSPECIFIED = 0;\n  STATUS_ACTIVE = 1;\n  STATUS_DELETED = 2;\n  STATUS_BANNED = 3;\n}")
		assert.Empty(t, checkProto(t, reader, writer))
	})
}

func TestProtobuf_Services(t *testing.T) {
	writer := proto3(`message Req {}
message Resp {}
message Other {}
service Users {
  rpc Get(Req) returns (Resp);
  rpc Watch(Req) returns (stream Resp);
}`)

	t.Run("method removed", func(t *testing.T) {
		reader := proto3(`message Req {}
message Resp {}
message Other {}
service Users {
  rpc Get(Req) returns (Resp);
}`)
		violations := checkProto(t, reader, writer)
		require.Len(t, violations, 1)
		assert.Equal(t, KindMethodRemoved, violations[0].Kind)
		assert.Equal(t, "services.Users.Watch", violations[0].Path)
	})

	t.Run("signature changed", func(t *testing.T) {
		reader := proto3(`message Req {}
message Resp {}
message Other {}
service Users {
  rpc Get(Req) returns (Other);
  rpc Watch(Req) returns (Resp);
}`)
		violations := checkProto(t, reader, writer)
		require.Len(t, violations, 2)
		assert.Equal(t, "services.Users.Get.output", violations[0].Path)
		assert.Equal(t, "services.Users.Watch.streaming", violations[1].Path)
		assert.Equal(t, "server", violations[1].OldValue)
		assert.Equal(t, "unary", violations[1].NewValue)
	})
}

func TestProtobuf_PackageChanged(t *testing.T) {
	reader := "syntax = \"proto3\";\npackage acme.users.v2;\n\nmessage A { string x = 1; }\nmessage B { A a = 1; }\n"
	writer := "syntax = \"proto3\";\npackage acme.users.v1;\n\nmessage A { string x = 1; }\nmessage B { A a = 1; }\n"

	violations := checkProto(t, reader, writer)
	require.Len(t, violations, 1)
	assert.Equal(t, compatibility.KindNamespaceChanged, violations[0].Kind)
	assert.Equal(t, "package", violations[0].Path)
}
