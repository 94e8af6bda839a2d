package schema

import (
	"encoding/json"
	"fmt"

	"github.com/madspark/orchestrator/errs"
)

// ID names one of the structured-output contracts the registry knows how to
// validate.
type ID string

const (
	IdeaID            ID = "idea"
	EvaluationID       ID = "evaluation"
	AdvocacyID         ID = "advocacy"
	SkepticismID       ID = "skepticism"
	ImprovementID      ID = "improvement"
	DimensionScoresID  ID = "dimension_scores"
	InferenceID        ID = "inference"
)

// Registry holds every domain schema MadSpark's agents can request structured
// output against, keyed by a stable ID.
type Registry struct {
	schemas map[ID]*JSONSchema
}

// NewRegistry builds a Registry pre-populated with MadSpark's 7 domain
// contracts (spec.md §3, §4.A).
func NewRegistry() *Registry {
	r := &Registry{schemas: make(map[ID]*JSONSchema)}
	r.register(IdeaID, ideaSchema())
	r.register(EvaluationID, evaluationSchema())
	r.register(AdvocacyID, advocacySchema())
	r.register(SkepticismID, skepticismSchema())
	r.register(ImprovementID, improvementSchema())
	r.register(DimensionScoresID, dimensionScoresSchema())
	r.register(InferenceID, inferenceSchema())
	return r
}

func (r *Registry) register(id ID, s *JSONSchema) {
	r.schemas[id] = s
}

// Get returns the schema registered under id, or nil if none exists.
func (r *Registry) Get(id ID) *JSONSchema {
	return r.schemas[id]
}

// BatchSchemaJSON wraps the schema registered under id into
// {"items": [<schema>, ...]}, the envelope every agent operation's batch
// call asks the provider to fill (spec.md §4.F).
func (r *Registry) BatchSchemaJSON(id ID) ([]byte, error) {
	item := r.Get(id)
	if item == nil {
		return nil, fmt.Errorf("no schema registered for %q", id)
	}
	batch := NewObjectSchema().
		AddProperty("items", NewArraySchema(item)).
		AddRequired("items")
	return batch.ToJSON()
}

// Validate parses raw JSON against the schema registered under id. Unknown
// fields are ignored (forward-compatible with providers that echo extra
// keys); numeric fields declared with a Minimum/Maximum are clamped rather
// than rejected; a missing required field raises a SchemaMismatch error.
func (r *Registry) Validate(raw []byte, id ID) (map[string]any, error) {
	s := r.Get(id)
	if s == nil {
		return nil, errs.New(errs.SchemaMismatch, fmt.Sprintf("no schema registered for %q", id))
	}

	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errs.New(errs.SchemaMismatch, fmt.Sprintf("invalid JSON for %q", id)).WithCause(err)
	}

	for _, name := range s.Required {
		if _, ok := obj[name]; !ok {
			return nil, errs.New(errs.SchemaMismatch, fmt.Sprintf("%q missing required field %q", id, name))
		}
	}

	clampProperties(obj, s)
	return obj, nil
}

// clampProperties walks an object's declared numeric properties and clamps
// any value outside [Minimum, Maximum] rather than failing validation —
// models routinely stray a fraction outside a declared score range.
func clampProperties(obj map[string]any, s *JSONSchema) {
	for name, prop := range s.Properties {
		v, ok := obj[name]
		if !ok {
			continue
		}
		switch prop.Type {
		case TypeNumber, TypeInteger:
			if f, ok := v.(float64); ok {
				obj[name] = clampFloat(f, prop.Minimum, prop.Maximum)
			}
		case TypeArray:
			if prop.Items == nil {
				continue
			}
			items, ok := v.([]any)
			if !ok {
				continue
			}
			for i, item := range items {
				itemObj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				clampProperties(itemObj, prop.Items)
				items[i] = itemObj
			}
		}
	}
}

func clampFloat(v float64, min, max *float64) float64 {
	if min != nil && v < *min {
		return *min
	}
	if max != nil && v > *max {
		return *max
	}
	return v
}
