package checkers

import (
	"fmt"
	"sort"
	"strings"

	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// Protobuf-specific violation kinds.
var (
	KindMessageRemoved      = compatibility.Custom("MESSAGE_REMOVED")
	KindEnumRemoved         = compatibility.Custom("ENUM_REMOVED")
	KindPresenceChanged     = compatibility.Custom("PRESENCE_CHANGED")
	KindOneofChanged        = compatibility.Custom("ONEOF_CHANGED")
	KindReservedFieldReused = compatibility.Custom("RESERVED_FIELD_REUSED")
	KindMethodRemoved       = compatibility.Custom("METHOD_REMOVED")
)

// ProtobufChecker compares protobuf files on wire-format terms: messages by name,
// fields by number.
type ProtobufChecker struct{}

func (ProtobufChecker) Format() schema.Format { return schema.FormatProtobuf }

// CheckBackward implements FormatChecker.
func (ProtobufChecker) CheckBackward(reader, writer *schema.Document) ([]compatibility.Violation, error) {
	if err := checkPair(schema.FormatProtobuf, reader, writer); err != nil {
		return nil, err
	}
	rc, ok := reader.Content().(*schema.ProtoContent)
	if !ok {
		return nil, fmt.Errorf("reader %s has no protobuf content", reader.ID())
	}
	wc, ok := writer.Content().(*schema.ProtoContent)
	if !ok {
		return nil, fmt.Errorf("writer %s has no protobuf content", writer.ID())
	}

	d := &protoDiff{readerPkg: rc.File.Package(), writerPkg: wc.File.Package()}
	if d.readerPkg != d.writerPkg {
		d.add(compatibility.NewViolationBuilder(compatibility.KindNamespaceChanged).
			WithPath("package").
			WithChange(string(d.writerPkg), string(d.readerPkg)).
			WithDescription("package changed from %q to %q; fully-qualified type names change", d.writerPkg, d.readerPkg).
			WithSuggestion("create a new package instead of renaming").
			Build())
	}
	d.compareMessages(rc.File.Messages(), wc.File.Messages(), "")
	d.compareEnums(rc.File.Enums(), wc.File.Enums(), "")
	d.compareServices(rc.File.Services(), wc.File.Services())
	return d.violations, nil
}

type protoDiff struct {
	violations []compatibility.Violation
	readerPkg  protoreflect.FullName
	writerPkg  protoreflect.FullName
}

func (d *protoDiff) add(v compatibility.Violation) {
	d.violations = append(d.violations, v)
}

// relativeName strips the file package so that a package rename does not cascade into
// every message reference.
func relativeName(name, pkg protoreflect.FullName) string {
	if pkg == "" {
		return string(name)
	}
	return strings.TrimPrefix(string(name), string(pkg)+".")
}

func nestedPath(parent, kind string, name protoreflect.Name) string {
	if parent == "" {
		return kind + "." + string(name)
	}
	return parent + "." + string(name)
}

func (d *protoDiff) compareMessages(r, w protoreflect.MessageDescriptors, parent string) {
	for i := 0; i < w.Len(); i++ {
		wm := w.Get(i)
		if wm.IsMapEntry() {
			continue
		}
		path := nestedPath(parent, "messages", wm.Name())
		rm := r.ByName(wm.Name())
		if rm == nil {
			d.add(compatibility.NewViolationBuilder(KindMessageRemoved).
				WithSeverity(compatibility.SeverityWarning).
				WithPath(path).
				WithChange(string(wm.Name()), nil).
				WithDescription("message %s removed", wm.Name()).
				Build())
			continue
		}
		d.compareMessage(rm, wm, path)
	}
}

func (d *protoDiff) compareMessage(r, w protoreflect.MessageDescriptor, path string) {
	rfields := sortedFields(r.Fields())
	for _, rf := range rfields {
		fieldPath := fmt.Sprintf("%s.fields.%d", path, rf.Number())
		wf := w.Fields().ByNumber(rf.Number())
		if wf == nil {
			d.readerOnlyField(rf, w, fieldPath)
			continue
		}
		d.compareField(rf, wf, fieldPath)
	}

	for _, wf := range sortedFields(w.Fields()) {
		if r.Fields().ByNumber(wf.Number()) != nil {
			continue
		}
		b := compatibility.NewViolationBuilder(compatibility.KindFieldRemoved).
			WithSeverity(removalSeverity(wf.HasDefault())).
			WithPath(fmt.Sprintf("%s.fields.%d", path, wf.Number())).
			WithChange(string(wf.Name()), nil).
			WithDescription("field %s = %d removed; readers will skip it as an unknown field", wf.Name(), wf.Number())
		if !r.ReservedRanges().Has(wf.Number()) {
			b.WithSuggestion(fmt.Sprintf("reserve field number %d and name %q", wf.Number(), wf.Name()))
		}
		d.add(b.Build())
	}

	d.compareMessages(r.Messages(), w.Messages(), path)
	d.compareEnums(r.Enums(), w.Enums(), path)
}

func sortedFields(fields protoreflect.FieldDescriptors) []protoreflect.FieldDescriptor {
	out := make([]protoreflect.FieldDescriptor, fields.Len())
	for i := range out {
		out[i] = fields.Get(i)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number() < out[j].Number() })
	return out
}

func (d *protoDiff) readerOnlyField(rf protoreflect.FieldDescriptor, w protoreflect.MessageDescriptor, path string) {
	if w.ReservedRanges().Has(rf.Number()) || w.ReservedNames().Has(rf.Name()) {
		d.add(compatibility.NewViolationBuilder(KindReservedFieldReused).
			WithPath(path).
			WithChange(nil, string(rf.Name())).
			WithDescription("field %s = %d reuses a number or name reserved by the writer", rf.Name(), rf.Number()).
			WithSuggestion("pick a new field number").
			Build())
		return
	}
	if rf.Cardinality() == protoreflect.Required && !rf.HasDefault() {
		d.add(compatibility.NewViolationBuilder(compatibility.KindRequiredAdded).
			WithPath(path).
			WithChange(nil, string(rf.Name())).
			WithDescription("required field %s = %d is absent from the writer", rf.Name(), rf.Number()).
			WithSuggestion("declare the new field optional").
			Build())
	}
}

// wireGroup buckets scalar kinds that share an encoding and may be exchanged.
func wireGroup(kind protoreflect.Kind) string {
	switch kind {
	case protoreflect.Int32Kind, protoreflect.Uint32Kind, protoreflect.Int64Kind,
		protoreflect.Uint64Kind, protoreflect.BoolKind, protoreflect.EnumKind:
		return "varint"
	case protoreflect.Sint32Kind, protoreflect.Sint64Kind:
		return "zigzag"
	case protoreflect.Fixed32Kind, protoreflect.Sfixed32Kind:
		return "fixed32"
	case protoreflect.Fixed64Kind, protoreflect.Sfixed64Kind:
		return "fixed64"
	case protoreflect.StringKind, protoreflect.BytesKind:
		return "bytes"
	default:
		return kind.String()
	}
}

func (d *protoDiff) fieldTypeName(f protoreflect.FieldDescriptor, pkg protoreflect.FullName) string {
	switch f.Kind() {
	case protoreflect.MessageKind, protoreflect.GroupKind:
		return relativeName(f.Message().FullName(), pkg)
	case protoreflect.EnumKind:
		return relativeName(f.Enum().FullName(), pkg)
	default:
		return f.Kind().String()
	}
}

func (d *protoDiff) typesCompatible(rf, wf protoreflect.FieldDescriptor) bool {
	rk, wk := rf.Kind(), wf.Kind()
	isMessage := func(k protoreflect.Kind) bool {
		return k == protoreflect.MessageKind || k == protoreflect.GroupKind
	}
	if isMessage(rk) || isMessage(wk) {
		return rk == wk && d.fieldTypeName(rf, d.readerPkg) == d.fieldTypeName(wf, d.writerPkg)
	}
	return wireGroup(rk) == wireGroup(wk)
}

func cardinalityName(f protoreflect.FieldDescriptor) string {
	switch {
	case f.IsMap():
		return "map"
	case f.IsList():
		return "repeated"
	default:
		return "singular"
	}
}

func (d *protoDiff) compareField(rf, wf protoreflect.FieldDescriptor, path string) {
	if rf.IsMap() != wf.IsMap() || rf.IsList() != wf.IsList() {
		d.add(compatibility.NewViolationBuilder(compatibility.KindTypeChanged).
			WithPath(path).
			WithChange(cardinalityName(wf), cardinalityName(rf)).
			WithDescription("field %d changed from %s to %s", rf.Number(), cardinalityName(wf), cardinalityName(rf)).
			Build())
		return
	}

	if rf.IsMap() {
		keyOK := wireGroup(rf.MapKey().Kind()) == wireGroup(wf.MapKey().Kind())
		valueOK := d.typesCompatible(rf.MapValue(), wf.MapValue())
		if !keyOK || !valueOK {
			old := fmt.Sprintf("map<%s, %s>", wf.MapKey().Kind(), d.fieldTypeName(wf.MapValue(), d.writerPkg))
			now := fmt.Sprintf("map<%s, %s>", rf.MapKey().Kind(), d.fieldTypeName(rf.MapValue(), d.readerPkg))
			d.add(compatibility.NewViolationBuilder(compatibility.KindMapValueChanged).
				WithPath(path).
				WithChange(old, now).
				WithDescription("field %d changed from %s to %s", rf.Number(), old, now).
				Build())
			return
		}
	} else if !d.typesCompatible(rf, wf) {
		oldType, newType := d.fieldTypeName(wf, d.writerPkg), d.fieldTypeName(rf, d.readerPkg)
		desc := fmt.Sprintf("field %d type changed from %s to %s", rf.Number(), oldType, newType)
		if rf.Name() != wf.Name() {
			desc = fmt.Sprintf("field number %d reused: was %s %s, now %s %s", rf.Number(), oldType, wf.Name(), newType, rf.Name())
		}
		d.add(compatibility.NewViolationBuilder(compatibility.KindTypeChanged).
			WithPath(path).
			WithChange(oldType, newType).
			WithDescription("%s", desc).
			WithSuggestion("add a new field with a new number and reserve the old one").
			Build())
		return
	}

	if rf.Name() != wf.Name() {
		d.add(compatibility.NewViolationBuilder(compatibility.KindNameChanged).
			WithSeverity(compatibility.SeverityInfo).
			WithPath(path).
			WithChange(string(wf.Name()), string(rf.Name())).
			WithDescription("field %d renamed from %s to %s; wire compatible, JSON names change", rf.Number(), wf.Name(), rf.Name()).
			Build())
	}

	if rf.Cardinality() == protoreflect.Required && wf.Cardinality() != protoreflect.Required {
		d.add(compatibility.NewViolationBuilder(compatibility.KindFieldMadeRequired).
			WithPath(path).
			WithChange("optional", "required").
			WithDescription("field %s = %d became required", rf.Name(), rf.Number()).
			Build())
	}

	if !rf.IsList() && !rf.IsMap() && rf.Kind() != protoreflect.MessageKind && rf.HasPresence() != wf.HasPresence() {
		d.add(compatibility.NewViolationBuilder(KindPresenceChanged).
			WithSeverity(compatibility.SeverityWarning).
			WithPath(path).
			WithChange(wf.HasPresence(), rf.HasPresence()).
			WithDescription("presence tracking of field %s = %d changed; generated accessors differ", rf.Name(), rf.Number()).
			Build())
	}

	rOneof, wOneof := oneofName(rf), oneofName(wf)
	if rOneof != wOneof {
		d.add(compatibility.NewViolationBuilder(KindOneofChanged).
			WithSeverity(compatibility.SeverityWarning).
			WithPath(path).
			WithChange(wOneof, rOneof).
			WithDescription("field %s = %d moved between oneofs", rf.Name(), rf.Number()).
			Build())
	}
}

func oneofName(f protoreflect.FieldDescriptor) string {
	o := f.ContainingOneof()
	if o == nil || o.IsSynthetic() {
		return ""
	}
	return string(o.Name())
}

func (d *protoDiff) compareEnums(r, w protoreflect.EnumDescriptors, parent string) {
	for i := 0; i < w.Len(); i++ {
		we := w.Get(i)
		path := nestedPath(parent, "enums", we.Name())
		re := r.ByName(we.Name())
		if re == nil {
			d.add(compatibility.NewViolationBuilder(KindEnumRemoved).
				WithSeverity(compatibility.SeverityWarning).
				WithPath(path).
				WithChange(string(we.Name()), nil).
				WithDescription("enum %s removed", we.Name()).
				Build())
			continue
		}

		values := we.Values()
		for j := 0; j < values.Len(); j++ {
			wv := values.Get(j)
			valuePath := fmt.Sprintf("%s.values.%d", path, wv.Number())
			rv := re.Values().ByNumber(wv.Number())
			if rv == nil {
				d.add(compatibility.NewViolationBuilder(compatibility.KindEnumValueRemoved).
					WithPath(valuePath).
					WithChange(string(wv.Name()), nil).
					WithDescription("enum value %s = %d removed", wv.Name(), wv.Number()).
					WithSuggestion("reserve the value number instead of deleting it").
					Build())
				continue
			}
			if rv.Name() != wv.Name() {
				d.add(compatibility.NewViolationBuilder(compatibility.KindNameChanged).
					WithSeverity(compatibility.SeverityInfo).
					WithPath(valuePath).
					WithChange(string(wv.Name()), string(rv.Name())).
					WithDescription("enum value %d renamed from %s to %s", wv.Number(), wv.Name(), rv.Name()).
					Build())
			}
		}
	}
}

func (d *protoDiff) compareServices(r, w protoreflect.ServiceDescriptors) {
	for i := 0; i < w.Len(); i++ {
		ws := w.Get(i)
		path := "services." + string(ws.Name())
		rs := r.ByName(ws.Name())
		if rs == nil {
			d.add(compatibility.NewViolationBuilder(KindMethodRemoved).
				WithSeverity(compatibility.SeverityWarning).
				WithPath(path).
				WithChange(string(ws.Name()), nil).
				WithDescription("service %s removed", ws.Name()).
				Build())
			continue
		}

		methods := ws.Methods()
		for j := 0; j < methods.Len(); j++ {
			wm := methods.Get(j)
			methodPath := path + "." + string(wm.Name())
			rm := rs.Methods().ByName(wm.Name())
			if rm == nil {
				d.add(compatibility.NewViolationBuilder(KindMethodRemoved).
					WithSeverity(compatibility.SeverityWarning).
					WithPath(methodPath).
					WithChange(string(wm.Name()), nil).
					WithDescription("method %s.%s removed", ws.Name(), wm.Name()).
					Build())
				continue
			}
			d.compareMethod(rm, wm, methodPath)
		}
	}
}

func (d *protoDiff) compareMethod(r, w protoreflect.MethodDescriptor, path string) {
	rin, win := relativeName(r.Input().FullName(), d.readerPkg), relativeName(w.Input().FullName(), d.writerPkg)
	if rin != win {
		d.add(compatibility.NewViolationBuilder(compatibility.KindTypeChanged).
			WithPath(path+".input").
			WithChange(win, rin).
			WithDescription("request type changed from %s to %s", win, rin).
			Build())
	}
	rout, wout := relativeName(r.Output().FullName(), d.readerPkg), relativeName(w.Output().FullName(), d.writerPkg)
	if rout != wout {
		d.add(compatibility.NewViolationBuilder(compatibility.KindTypeChanged).
			WithPath(path+".output").
			WithChange(wout, rout).
			WithDescription("response type changed from %s to %s", wout, rout).
			Build())
	}
	if r.IsStreamingClient() != w.IsStreamingClient() || r.IsStreamingServer() != w.IsStreamingServer() {
		d.add(compatibility.NewViolationBuilder(compatibility.KindTypeChanged).
			WithPath(path+".streaming").
			WithChange(streamingMode(w), streamingMode(r)).
			WithDescription("streaming mode changed from %s to %s", streamingMode(w), streamingMode(r)).
			Build())
	}
}

func streamingMode(m protoreflect.MethodDescriptor) string {
	switch {
	case m.IsStreamingClient() && m.IsStreamingServer():
		return "bidi"
	case m.IsStreamingClient():
		return "client"
	case m.IsStreamingServer():
		return "server"
	default:
		return "unary"
	}
}
