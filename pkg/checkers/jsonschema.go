package checkers

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

const maxRefHops = 32

// JSONSchemaChecker compares JSON Schema documents. JSON Schema has no implicit type
// promotion, so every type change breaks.
type JSONSchemaChecker struct{}

func (JSONSchemaChecker) Format() schema.Format { return schema.FormatJSONSchema }

// CheckBackward implements FormatChecker.
func (JSONSchemaChecker) CheckBackward(reader, writer *schema.Document) ([]compatibility.Violation, error) {
	if err := checkPair(schema.FormatJSONSchema, reader, writer); err != nil {
		return nil, err
	}
	rc, ok := reader.Content().(*schema.JSONContent)
	if !ok {
		return nil, fmt.Errorf("reader %s has no JSON Schema content", reader.ID())
	}
	wc, ok := writer.Content().(*schema.JSONContent)
	if !ok {
		return nil, fmt.Errorf("writer %s has no JSON Schema content", writer.ID())
	}

	d := &jsonDiff{visiting: make(map[string]bool)}
	d.compare(
		jsonNode{value: rc.Root, base: rc.RootURL(), content: rc},
		jsonNode{value: wc.Root, base: wc.RootURL(), content: wc},
		"", "", compatibility.KindTypeChanged,
	)
	return d.violations, nil
}

// jsonNode is a subschema together with the URL of the document it belongs to,
// which its $refs resolve against.
type jsonNode struct {
	value   interface{}
	base    string
	content *schema.JSONContent
	ref     string
}

// resolve follows $ref chains until a subschema without $ref is reached. Unresolvable
// references yield an empty schema, which accepts anything; parsing rejects those
// documents, so this only guards malformed content built by hand.
func (n jsonNode) resolve() jsonNode {
	for i := 0; i < maxRefHops; i++ {
		m, ok := n.value.(map[string]interface{})
		if !ok {
			return n
		}
		ref, ok := m["$ref"].(string)
		if !ok {
			return n
		}

		doc, docURL, fragment, ok := n.content.Resolve(n.base, ref)
		target := jsonNode{value: map[string]interface{}{}, base: n.base, content: n.content, ref: docURL + "#" + fragment}
		if !ok {
			return target
		}
		value, ok := jsonPointer(doc, fragment)
		if !ok {
			return target
		}
		target.value = value
		target.base = docURL
		n = target
	}
	return n
}

func jsonPointer(doc interface{}, pointer string) (interface{}, bool) {
	if pointer == "" || pointer == "/" {
		return doc, true
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, false
	}
	current := doc
	for _, token := range strings.Split(pointer[1:], "/") {
		token = strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")
		switch v := current.(type) {
		case map[string]interface{}:
			next, ok := v[token]
			if !ok {
				return nil, false
			}
			current = next
		case []interface{}:
			var idx int
			if _, err := fmt.Sscanf(token, "%d", &idx); err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func (n jsonNode) child(value interface{}) jsonNode {
	return jsonNode{value: value, base: n.base, content: n.content}
}

func (n jsonNode) object() map[string]interface{} {
	switch v := n.value.(type) {
	case map[string]interface{}:
		return v
	case bool:
		return map[string]interface{}{}
	default:
		return map[string]interface{}{}
	}
}

func (n jsonNode) isFalse() bool {
	b, ok := n.value.(bool)
	return ok && !b
}

type jsonDiff struct {
	violations []compatibility.Violation
	visiting   map[string]bool
}

func (d *jsonDiff) add(v compatibility.Violation) {
	d.violations = append(d.violations, v)
}

// compare evaluates reader against writer at one subschema. path is the display
// location ("properties.user.email"), fieldPath the dotted property names used for
// required.* locations, and mismatchKind the kind reported when the types differ.
func (d *jsonDiff) compare(r, w jsonNode, path, fieldPath string, mismatchKind compatibility.ViolationKind) {
	r = r.resolve()
	w = w.resolve()

	if r.ref != "" && w.ref != "" {
		key := r.ref + "|" + w.ref
		if d.visiting[key] {
			return
		}
		d.visiting[key] = true
		defer delete(d.visiting, key)
	}

	if w.isFalse() {
		return
	}
	if r.isFalse() {
		d.add(compatibility.NewViolationBuilder(compatibility.KindConstraintAdded).
			WithPath(orRoot(path)).
			WithDescription("reader rejects every value the writer may produce").
			Build())
		return
	}

	rm, wm := r.object(), w.object()
	if !d.compareTypes(rm, wm, path, mismatchKind) {
		return
	}
	d.compareEnum(rm, wm, path)
	d.compareConst(rm, wm, path)
	d.compareBounds(rm, wm, path)
	d.compareKeywords(rm, wm, path)
	d.compareProperties(r, w, rm, wm, path, fieldPath)
	d.compareAdditionalProperties(r, w, rm, wm, path, fieldPath)
	d.compareItems(r, w, rm, wm, path, fieldPath)
}

func orRoot(path string) string {
	if path == "" {
		return "$"
	}
	return path
}

func typeSet(m map[string]interface{}) []string {
	switch t := m["type"].(type) {
	case string:
		return []string{t}
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		sort.Strings(out)
		return out
	default:
		return nil
	}
}

// compareTypes returns false when the types differ and deeper comparison is moot.
func (d *jsonDiff) compareTypes(rm, wm map[string]interface{}, path string, mismatchKind compatibility.ViolationKind) bool {
	rt, wt := typeSet(rm), typeSet(wm)
	if rt == nil {
		return true
	}
	location := path
	if location == "" {
		location = "type"
	}
	if wt == nil {
		d.add(compatibility.NewViolationBuilder(compatibility.KindConstraintAdded).
			WithPath(location).
			WithChange(nil, typeValue(rt)).
			WithDescription("reader restricts type to %s but the writer is untyped", strings.Join(rt, "|")).
			Build())
		return false
	}
	if !reflect.DeepEqual(rt, wt) {
		d.add(compatibility.NewViolationBuilder(mismatchKind).
			WithPath(location).
			WithChange(typeValue(wt), typeValue(rt)).
			WithDescription("type changed from %s to %s", strings.Join(wt, "|"), strings.Join(rt, "|")).
			Build())
		return false
	}
	return true
}

func typeValue(types []string) interface{} {
	if len(types) == 1 {
		return types[0]
	}
	return types
}

func (d *jsonDiff) compareEnum(rm, wm map[string]interface{}, path string) {
	renum, rok := rm["enum"].([]interface{})
	if !rok {
		return
	}
	location := joinPath(path, "enum")
	wenum, wok := wm["enum"].([]interface{})
	if !wok {
		d.add(compatibility.NewViolationBuilder(compatibility.KindConstraintAdded).
			WithPath(location).
			WithChange(nil, renum).
			WithDescription("reader restricts values to an enumeration").
			Build())
		return
	}
	for _, value := range wenum {
		if !containsValue(renum, value) {
			d.add(compatibility.NewViolationBuilder(compatibility.KindEnumValueRemoved).
				WithPath(location).
				WithChange(value, nil).
				WithDescription("enum value %s is no longer accepted", compactJSON(value)).
				Build())
		}
	}
}

func (d *jsonDiff) compareConst(rm, wm map[string]interface{}, path string) {
	rc, ok := rm["const"]
	if !ok {
		return
	}
	wc, wok := wm["const"]
	if wok && reflect.DeepEqual(rc, wc) {
		return
	}
	var old interface{}
	if wok {
		old = wc
	}
	d.add(compatibility.NewViolationBuilder(compatibility.KindConstraintAdded).
		WithPath(joinPath(path, "const")).
		WithChange(old, rc).
		WithDescription("reader requires the constant value %s", compactJSON(rc)).
		Build())
}

var (
	lowerBounds = []string{"minimum", "exclusiveMinimum", "minLength", "minItems", "minProperties"}
	upperBounds = []string{"maximum", "exclusiveMaximum", "maxLength", "maxItems", "maxProperties"}
)

func (d *jsonDiff) compareBounds(rm, wm map[string]interface{}, path string) {
	for _, kw := range lowerBounds {
		rv, rok := number(rm[kw])
		if !rok {
			continue
		}
		wv, wok := number(wm[kw])
		if !wok || rv > wv {
			d.boundTightened(kw, path, wm[kw], rm[kw], wok)
		}
	}
	for _, kw := range upperBounds {
		rv, rok := number(rm[kw])
		if !rok {
			continue
		}
		wv, wok := number(wm[kw])
		if !wok || rv < wv {
			d.boundTightened(kw, path, wm[kw], rm[kw], wok)
		}
	}
	if rv, ok := number(rm["multipleOf"]); ok && rv != 0 {
		wv, wok := number(wm["multipleOf"])
		if !wok || !isMultiple(wv, rv) {
			d.boundTightened("multipleOf", path, wm["multipleOf"], rm["multipleOf"], wok)
		}
	}
}

func (d *jsonDiff) boundTightened(kw, path string, oldValue, newValue interface{}, hadOld bool) {
	desc := fmt.Sprintf("%s tightened from %s to %s", kw, compactJSON(oldValue), compactJSON(newValue))
	if !hadOld {
		desc = fmt.Sprintf("%s of %s added", kw, compactJSON(newValue))
		oldValue = nil
	}
	d.add(compatibility.NewViolationBuilder(compatibility.KindConstraintAdded).
		WithPath(joinPath(path, kw)).
		WithChange(oldValue, newValue).
		WithDescription("%s", desc).
		Build())
}

func (d *jsonDiff) compareKeywords(rm, wm map[string]interface{}, path string) {
	if rp, ok := rm["pattern"].(string); ok {
		wp, wok := wm["pattern"].(string)
		if !wok || wp != rp {
			var old interface{}
			if wok {
				old = wp
			}
			d.add(compatibility.NewViolationBuilder(compatibility.KindConstraintAdded).
				WithPath(joinPath(path, "pattern")).
				WithChange(old, rp).
				WithDescription("pattern narrowed to %q", rp).
				Build())
		}
	}

	if rf, ok := rm["format"].(string); ok {
		wf, _ := wm["format"].(string)
		if wf != rf {
			var old interface{}
			if wf != "" {
				old = wf
			}
			d.add(compatibility.NewViolationBuilder(compatibility.KindFormatChanged).
				WithSeverity(compatibility.SeverityWarning).
				WithPath(joinPath(path, "format")).
				WithChange(old, rf).
				WithDescription("string format changed to %q; validators asserting formats may reject old data", rf).
				Build())
		}
	}

	if ru, _ := rm["uniqueItems"].(bool); ru {
		if wu, _ := wm["uniqueItems"].(bool); !wu {
			d.add(compatibility.NewViolationBuilder(compatibility.KindConstraintAdded).
				WithPath(joinPath(path, "uniqueItems")).
				WithChange(false, true).
				WithDescription("array items must now be unique").
				Build())
		}
	}
}

func stringSet(v interface{}) map[string]bool {
	out := make(map[string]bool)
	if list, ok := v.([]interface{}); ok {
		for _, item := range list {
			if s, ok := item.(string); ok {
				out[s] = true
			}
		}
	}
	return out
}

func propertyMap(m map[string]interface{}) map[string]interface{} {
	props, _ := m["properties"].(map[string]interface{})
	return props
}

func (d *jsonDiff) compareProperties(r, w jsonNode, rm, wm map[string]interface{}, path, fieldPath string) {
	rprops, wprops := propertyMap(rm), propertyMap(wm)
	readerClosed := isClosed(rm)

	names := make(map[string]bool)
	for name := range rprops {
		names[name] = true
	}
	for name := range wprops {
		names[name] = true
	}
	for _, name := range sortedKeys(names) {
		childPath := propertyPath(path, name)
		childField := joinPath(fieldPath, name)
		rp, inReader := rprops[name]
		wp, inWriter := wprops[name]

		switch {
		case inReader && inWriter:
			d.compare(r.child(rp), w.child(wp), childPath, childField, compatibility.KindTypeChanged)
		case inWriter && readerClosed:
			d.add(compatibility.NewViolationBuilder(compatibility.KindFieldRemoved).
				WithPath(childPath).
				WithDescription("field %q is written but rejected by additionalProperties: false", childField).
				WithSuggestion("keep the property declared or allow additional properties").
				Build())
		case inWriter:
			d.add(compatibility.NewViolationBuilder(compatibility.KindFieldRemoved).
				WithSeverity(removalSeverity(hasDefault(w.child(wp)))).
				WithPath(childPath).
				WithDescription("field %q removed; readers will ignore it", childField).
				Build())
		}
	}

	rreq, wreq := stringSet(rm["required"]), stringSet(wm["required"])
	for _, name := range sortedKeys(rreq) {
		if wreq[name] {
			continue
		}
		if rp, ok := rprops[name]; ok && hasDefault(r.child(rp)) {
			continue
		}
		field := joinPath(fieldPath, name)
		location := "required." + field
		if _, declared := wprops[name]; declared {
			d.add(compatibility.NewViolationBuilder(compatibility.KindFieldMadeRequired).
				WithPath(location).
				WithChange("optional", "required").
				WithDescription("field %q became required; data written without it will be rejected", field).
				WithSuggestion("keep the field optional or give it a default").
				Build())
			continue
		}
		d.add(compatibility.NewViolationBuilder(compatibility.KindRequiredAdded).
			WithPath(location).
			WithChange(nil, name).
			WithDescription("required field %q has no default and is absent from the writer", field).
			WithSuggestion("make the field optional or provide a default").
			Build())
	}
}

func propertyPath(path, name string) string {
	if path == "" {
		return "properties." + name
	}
	return path + "." + name
}

func isClosed(m map[string]interface{}) bool {
	ap, ok := m["additionalProperties"].(bool)
	return ok && !ap
}

func hasDefault(n jsonNode) bool {
	_, ok := n.resolve().object()["default"]
	return ok
}

func (d *jsonDiff) compareAdditionalProperties(r, w jsonNode, rm, wm map[string]interface{}, path, fieldPath string) {
	rap, rok := rm["additionalProperties"]
	if !rok {
		return
	}
	location := joinPath(path, "additionalProperties")
	wap, wok := wm["additionalProperties"]
	writerOpen := !wok || wap == true

	switch rv := rap.(type) {
	case bool:
		if !rv && !isClosed(wm) {
			d.add(compatibility.NewViolationBuilder(compatibility.KindConstraintAdded).
				WithPath(location).
				WithChange(wap, false).
				WithDescription("additional properties are no longer allowed").
				Build())
		}
	case map[string]interface{}:
		if writerOpen {
			d.add(compatibility.NewViolationBuilder(compatibility.KindConstraintAdded).
				WithPath(location).
				WithChange(wap, rv).
				WithDescription("additional properties are now constrained by a schema").
				Build())
			return
		}
		if wv, ok := wap.(map[string]interface{}); ok {
			d.compare(r.child(rv), w.child(wv), location, joinPath(fieldPath, "additionalProperties"), compatibility.KindMapValueChanged)
		}
	}
}

func (d *jsonDiff) compareItems(r, w jsonNode, rm, wm map[string]interface{}, path, fieldPath string) {
	ri, rok := rm["items"]
	if !rok {
		return
	}
	location := joinPath(path, "items")
	wi, wok := wm["items"]
	if !wok {
		d.add(compatibility.NewViolationBuilder(compatibility.KindArrayItemsChanged).
			WithPath(location).
			WithDescription("array items are now constrained by a schema").
			Build())
		return
	}

	rlist, rIsList := ri.([]interface{})
	wlist, wIsList := wi.([]interface{})
	switch {
	case rIsList && wIsList:
		for i := range rlist {
			elem := fmt.Sprintf("%s.%d", location, i)
			if i >= len(wlist) {
				d.add(compatibility.NewViolationBuilder(compatibility.KindArrayItemsChanged).
					WithPath(elem).
					WithDescription("tuple position %d added", i).
					Build())
				continue
			}
			d.compare(r.child(rlist[i]), w.child(wlist[i]), elem, fmt.Sprintf("%s.%d", joinPath(fieldPath, "items"), i), compatibility.KindArrayItemsChanged)
		}
	case rIsList != wIsList:
		d.add(compatibility.NewViolationBuilder(compatibility.KindArrayItemsChanged).
			WithPath(location).
			WithDescription("array items changed between list and tuple form").
			Build())
	default:
		d.compare(r.child(ri), w.child(wi), location, joinPath(fieldPath, "items"), compatibility.KindArrayItemsChanged)
	}
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func isMultiple(value, divisor float64) bool {
	if divisor == 0 {
		return false
	}
	q := value / divisor
	return q == float64(int64(q))
}

func containsValue(list []interface{}, value interface{}) bool {
	for _, v := range list {
		if reflect.DeepEqual(v, value) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
