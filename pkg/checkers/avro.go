package checkers

import (
	"fmt"

	"github.com/hamba/avro/v2"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

// AvroChecker applies Avro schema resolution rules. Fields match by name (or reader
// alias) and primitive types may be promoted.
type AvroChecker struct{}

func (AvroChecker) Format() schema.Format { return schema.FormatAvro }

// CheckBackward implements FormatChecker.
func (AvroChecker) CheckBackward(reader, writer *schema.Document) ([]compatibility.Violation, error) {
	if err := checkPair(schema.FormatAvro, reader, writer); err != nil {
		return nil, err
	}
	rc, ok := reader.Content().(*schema.AvroContent)
	if !ok {
		return nil, fmt.Errorf("reader %s has no Avro content", reader.ID())
	}
	wc, ok := writer.Content().(*schema.AvroContent)
	if !ok {
		return nil, fmt.Errorf("writer %s has no Avro content", writer.ID())
	}

	d := &avroDiff{visiting: make(map[string]bool)}
	d.compare(rc.Schema, wc.Schema, "", compatibility.KindTypeChanged)
	return d.violations, nil
}

// avroPromotions lists, per writer type, the reader types it may be promoted to.
var avroPromotions = map[avro.Type][]avro.Type{
	avro.Int:    {avro.Long, avro.Float, avro.Double},
	avro.Long:   {avro.Float, avro.Double},
	avro.Float:  {avro.Double},
	avro.String: {avro.Bytes},
	avro.Bytes:  {avro.String},
}

func promotable(writer, reader avro.Type) bool {
	for _, t := range avroPromotions[writer] {
		if t == reader {
			return true
		}
	}
	return false
}

func deref(s avro.Schema) avro.Schema {
	for {
		ref, ok := s.(*avro.RefSchema)
		if !ok {
			return s
		}
		s = ref.Schema()
	}
}

func typeName(s avro.Schema) string {
	if named, ok := s.(avro.NamedSchema); ok {
		return named.FullName()
	}
	return string(s.Type())
}

type avroDiff struct {
	violations []compatibility.Violation
	visiting   map[string]bool
}

func (d *avroDiff) add(v compatibility.Violation) {
	d.violations = append(d.violations, v)
}

func (d *avroDiff) compare(r, w avro.Schema, path string, mismatchKind compatibility.ViolationKind) {
	r, w = deref(r), deref(w)

	wu, writerUnion := w.(*avro.UnionSchema)
	ru, readerUnion := r.(*avro.UnionSchema)
	switch {
	case writerUnion:
		// Every branch the writer may emit must resolve against the reader.
		for _, branch := range wu.Types() {
			target := r
			if readerUnion {
				target = matchBranch(ru.Types(), branch)
			} else if !branchMatches(r, branch) {
				target = nil
			}
			if target == nil {
				d.add(compatibility.NewViolationBuilder(compatibility.KindUnionTypesIncompatible).
					WithPath(orRoot(path)).
					WithChange(typeName(branch), nil).
					WithDescription("writer union branch %s has no compatible reader type", typeName(branch)).
					WithSuggestion("keep the branch in the reader union").
					Build())
				continue
			}
			d.compare(target, branch, path, mismatchKind)
		}
		return
	case readerUnion:
		target := matchBranch(ru.Types(), w)
		if target == nil {
			d.add(compatibility.NewViolationBuilder(compatibility.KindUnionTypesIncompatible).
				WithPath(orRoot(path)).
				WithChange(typeName(w), nil).
				WithDescription("reader union has no branch compatible with writer type %s", typeName(w)).
				Build())
			return
		}
		d.compare(target, w, path, mismatchKind)
		return
	}

	if !sameKind(r, w) {
		if promotable(w.Type(), r.Type()) {
			return
		}
		d.add(compatibility.NewViolationBuilder(mismatchKind).
			WithPath(orRoot(path)).
			WithChange(typeName(w), typeName(r)).
			WithDescription("type changed from %s to %s", typeName(w), typeName(r)).
			Build())
		return
	}

	switch rs := r.(type) {
	case *avro.RecordSchema:
		d.compareRecord(rs, w.(*avro.RecordSchema), path)
	case *avro.EnumSchema:
		d.compareEnum(rs, w.(*avro.EnumSchema), path)
	case *avro.FixedSchema:
		ws := w.(*avro.FixedSchema)
		d.compareNames(rs, ws, path)
		if rs.Size() != ws.Size() {
			d.add(compatibility.NewViolationBuilder(mismatchKind).
				WithPath(orRoot(path)).
				WithChange(ws.Size(), rs.Size()).
				WithDescription("fixed %s size changed from %d to %d", rs.FullName(), ws.Size(), rs.Size()).
				Build())
		}
	case *avro.ArraySchema:
		d.compare(rs.Items(), w.(*avro.ArraySchema).Items(), joinPath(path, "items"), compatibility.KindArrayItemsChanged)
	case *avro.MapSchema:
		d.compare(rs.Values(), w.(*avro.MapSchema).Values(), joinPath(path, "values"), compatibility.KindMapValueChanged)
	}
}

// sameKind reports whether r and w share an Avro type; records and errors are treated
// alike.
func sameKind(r, w avro.Schema) bool {
	rt, wt := r.Type(), w.Type()
	if rt == avro.Error {
		rt = avro.Record
	}
	if wt == avro.Error {
		wt = avro.Record
	}
	return rt == wt
}

func branchMatches(r, w avro.Schema) bool {
	r, w = deref(r), deref(w)
	if sameKind(r, w) {
		rn, rok := r.(avro.NamedSchema)
		wn, wok := w.(avro.NamedSchema)
		if rok && wok {
			return rn.FullName() == wn.FullName() || rn.Name() == wn.Name() || aliased(rn, wn)
		}
		return true
	}
	return promotable(w.Type(), r.Type())
}

// matchBranch picks the reader branch a writer value resolves to: the first exact
// match, otherwise the first promotable one.
func matchBranch(readers avro.Schemas, w avro.Schema) avro.Schema {
	w = deref(w)
	for _, r := range readers {
		r = deref(r)
		if sameKind(r, w) && branchMatches(r, w) {
			return r
		}
	}
	for _, r := range readers {
		if branchMatches(r, w) {
			return deref(r)
		}
	}
	return nil
}

func aliased(r, w avro.NamedSchema) bool {
	for _, alias := range r.Aliases() {
		if alias == w.FullName() || alias == w.Name() {
			return true
		}
	}
	return false
}

func (d *avroDiff) compareNames(r, w avro.NamedSchema, path string) {
	if r.FullName() == w.FullName() || aliased(r, w) {
		return
	}
	if r.Name() != w.Name() {
		d.add(compatibility.NewViolationBuilder(compatibility.KindNameChanged).
			WithPath(joinPath(path, "name")).
			WithChange(w.FullName(), r.FullName()).
			WithDescription("named type renamed from %s to %s", w.FullName(), r.FullName()).
			WithSuggestion("add the old name to the reader's aliases").
			Build())
		return
	}
	d.add(compatibility.NewViolationBuilder(compatibility.KindNamespaceChanged).
		WithPath(joinPath(path, "namespace")).
		WithChange(w.Namespace(), r.Namespace()).
		WithDescription("namespace of %s changed from %q to %q", r.Name(), w.Namespace(), r.Namespace()).
		WithSuggestion("add the old full name to the reader's aliases").
		Build())
}

func avroFieldPath(path, name string) string {
	if path == "" {
		return "fields." + name
	}
	return path + "." + name
}

func (d *avroDiff) compareRecord(r, w *avro.RecordSchema, path string) {
	d.compareNames(r, w, path)

	key := r.FullName() + "|" + w.FullName()
	if d.visiting[key] {
		return
	}
	d.visiting[key] = true
	defer delete(d.visiting, key)

	writerFields := make(map[string]*avro.Field, len(w.Fields()))
	for _, f := range w.Fields() {
		writerFields[f.Name()] = f
	}
	matched := make(map[string]bool, len(writerFields))

	for _, rf := range r.Fields() {
		fieldPath := avroFieldPath(path, rf.Name())
		wf := writerFields[rf.Name()]
		if wf == nil {
			for _, alias := range rf.Aliases() {
				if f, ok := writerFields[alias]; ok {
					wf = f
					break
				}
			}
		}
		if wf == nil {
			if rf.HasDefault() {
				continue
			}
			d.add(compatibility.NewViolationBuilder(compatibility.KindRequiredAdded).
				WithPath(fieldPath).
				WithChange(nil, typeName(rf.Type())).
				WithDescription("field %q has no default and is absent from the writer", rf.Name()).
				WithSuggestion("add a default value to the new field").
				Build())
			continue
		}
		matched[wf.Name()] = true
		d.compare(rf.Type(), wf.Type(), fieldPath, compatibility.KindTypeChanged)
	}

	for _, wf := range w.Fields() {
		if matched[wf.Name()] {
			continue
		}
		d.add(compatibility.NewViolationBuilder(compatibility.KindFieldRemoved).
			WithSeverity(removalSeverity(wf.HasDefault())).
			WithPath(avroFieldPath(path, wf.Name())).
			WithChange(typeName(wf.Type()), nil).
			WithDescription("field %q removed; readers will ignore it", wf.Name()).
			Build())
	}
}

func (d *avroDiff) compareEnum(r, w *avro.EnumSchema, path string) {
	d.compareNames(r, w, path)

	symbols := make(map[string]bool, len(r.Symbols()))
	for _, s := range r.Symbols() {
		symbols[s] = true
	}
	severity := compatibility.SeverityBreaking
	if r.Default() != "" {
		severity = compatibility.SeverityWarning
	}
	for _, s := range w.Symbols() {
		if symbols[s] {
			continue
		}
		b := compatibility.NewViolationBuilder(compatibility.KindEnumValueRemoved).
			WithSeverity(severity).
			WithPath(joinPath(path, "symbols")).
			WithChange(s, nil)
		if severity == compatibility.SeverityWarning {
			b.WithDescription("enum symbol %q removed; readers fall back to default %q", s, r.Default())
		} else {
			b.WithDescription("enum symbol %q removed and the reader enum has no default", s)
		}
		d.add(b.Build())
	}
}
