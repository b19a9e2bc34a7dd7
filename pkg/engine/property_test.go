package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/platinummonkey/schemacompat/pkg/checkers"
	"github.com/platinummonkey/schemacompat/pkg/compatibility"
	"github.com/platinummonkey/schemacompat/pkg/schema"
)

var (
	propertyNames = []string{"id", "name", "email", "age"}
	propertyTypes = []string{"string", "integer", "number", "boolean"}
)

// objectSchema builds a JSON Schema object. types[i] selects the type of
// propertyNames[i], zero meaning the property is absent.
func objectSchema(types []int, required []bool) string {
	props := make(map[string]interface{})
	var req []string
	for i, name := range propertyNames {
		if i >= len(types) || types[i] == 0 {
			continue
		}
		props[name] = map[string]interface{}{"type": propertyTypes[types[i]-1]}
		if i < len(required) && required[i] {
			req = append(req, name)
		}
	}
	body := map[string]interface{}{"type": "object", "properties": props}
	if len(req) > 0 {
		body["required"] = req
	}
	out, _ := json.Marshal(body)
	return string(out)
}

func genTypes() gopter.Gen {
	return gen.SliceOfN(len(propertyNames), gen.IntRange(0, len(propertyTypes)))
}

func genRequired() gopter.Gen {
	return gen.SliceOfN(len(propertyNames), gen.Bool())
}

func parseVersion(version string, types []int, required []bool) (*schema.Document, error) {
	return schema.ParseString(schema.FormatJSONSchema, testSubject, version, objectSchema(types, required))
}

func propertyParameters() *gopter.TestParameters {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	return parameters
}

var allModes = []compatibility.CompatibilityMode{
	compatibility.CompatibilityModeNone,
	compatibility.CompatibilityModeBackward,
	compatibility.CompatibilityModeForward,
	compatibility.CompatibilityModeFull,
	compatibility.CompatibilityModeBackwardTransitive,
	compatibility.CompatibilityModeForwardTransitive,
	compatibility.CompatibilityModeFullTransitive,
}

// TestProperty_Reflexive checks that a schema is compatible with itself in every
// mode, both through the engine and through the checker directly.
func TestProperty_Reflexive(t *testing.T) {
	e := newTestEngine(t)
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("schema is compatible with itself", prop.ForAll(
		func(types []int, required []bool) bool {
			doc, err := parseVersion("1.0.0", types, required)
			if err != nil {
				return false
			}
			checker, err := checkers.For(schema.FormatJSONSchema)
			if err != nil {
				return false
			}
			for _, mode := range allModes {
				result, err := e.Check(context.Background(), doc, mode, StaticHistory{doc})
				if err != nil || !result.Compatible || len(result.Violations) != 0 {
					return false
				}
				vs, err := checkers.Check(checker, doc, doc, mode.Base())
				if err != nil || len(vs) != 0 {
					return false
				}
			}
			return true
		},
		genTypes(), genRequired(),
	))

	properties.TestingRun(t)
}

// TestProperty_FullIsBothDirections checks Full(a, b) == Backward(a, b) && Forward(a, b).
func TestProperty_FullIsBothDirections(t *testing.T) {
	e := newTestEngine(t)
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("full equals backward and forward", prop.ForAll(
		func(oldTypes, newTypes []int, oldRequired, newRequired []bool) bool {
			old, err := parseVersion("1.0.0", oldTypes, oldRequired)
			if err != nil {
				return false
			}
			candidate, err := parseVersion("1.1.0", newTypes, newRequired)
			if err != nil {
				return false
			}
			verdict := func(mode compatibility.CompatibilityMode) (bool, error) {
				r, err := e.CheckPair(context.Background(), candidate, old, mode)
				if err != nil {
					return false, err
				}
				return r.Compatible, nil
			}
			full, err1 := verdict(compatibility.CompatibilityModeFull)
			backward, err2 := verdict(compatibility.CompatibilityModeBackward)
			forward, err3 := verdict(compatibility.CompatibilityModeForward)
			if err1 != nil || err2 != nil || err3 != nil {
				return false
			}
			return full == (backward && forward)
		},
		genTypes(), genTypes(), genRequired(), genRequired(),
	))

	properties.TestingRun(t)
}

// TestProperty_TransitiveIsSuperset checks that every violation a non-transitive
// check reports is also reported by the transitive check over the same history.
func TestProperty_TransitiveIsSuperset(t *testing.T) {
	e := newTestEngine(t)
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("transitive violations include latest-only violations", prop.ForAll(
		func(v1, v2, v3 []int, required []bool) bool {
			var history StaticHistory
			for i, types := range [][]int{v1, v2} {
				doc, err := parseVersion(fmt.Sprintf("1.%d.0", i), types, required)
				if err != nil {
					return false
				}
				history = append(history, doc)
			}
			candidate, err := parseVersion("2.0.0", v3, required)
			if err != nil {
				return false
			}

			for _, pair := range [][2]compatibility.CompatibilityMode{
				{compatibility.CompatibilityModeBackward, compatibility.CompatibilityModeBackwardTransitive},
				{compatibility.CompatibilityModeForward, compatibility.CompatibilityModeForwardTransitive},
				{compatibility.CompatibilityModeFull, compatibility.CompatibilityModeFullTransitive},
			} {
				latest, err := e.Check(context.Background(), candidate, pair[0], history)
				if err != nil {
					return false
				}
				all, err := e.Check(context.Background(), candidate, pair[1], history)
				if err != nil {
					return false
				}
				if !latest.Compatible && all.Compatible {
					return false
				}
				reported := make(map[string]int)
				for _, v := range all.Violations {
					reported[v.String()]++
				}
				for _, v := range latest.Violations {
					if reported[v.String()] == 0 {
						return false
					}
					reported[v.String()]--
				}
			}
			return true
		},
		genTypes(), genTypes(), genTypes(), genRequired(),
	))

	properties.TestingRun(t)
}

// TestProperty_CacheIsTransparent checks that cached and uncached engines agree.
func TestProperty_CacheIsTransparent(t *testing.T) {
	cached := newTestEngine(t)
	cfg := DefaultConfig()
	cfg.CacheEnabled = false
	uncached, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	properties := gopter.NewProperties(propertyParameters())

	properties.Property("cache does not change results", prop.ForAll(
		func(oldTypes, newTypes []int, required []bool) bool {
			old, err := parseVersion("1.0.0", oldTypes, required)
			if err != nil {
				return false
			}
			candidate, err := parseVersion("1.1.0", newTypes, required)
			if err != nil {
				return false
			}
			for _, mode := range allModes {
				for i := 0; i < 2; i++ {
					a, err := cached.Check(context.Background(), candidate, mode, StaticHistory{old})
					if err != nil {
						return false
					}
					b, err := uncached.Check(context.Background(), candidate, mode, StaticHistory{old})
					if err != nil {
						return false
					}
					if a.Compatible != b.Compatible || len(a.Violations) != len(b.Violations) {
						return false
					}
					for j := range a.Violations {
						if a.Violations[j].String() != b.Violations[j].String() {
							return false
						}
					}
				}
			}
			return true
		},
		genTypes(), genTypes(), genRequired(),
	))

	properties.TestingRun(t)
}
