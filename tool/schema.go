package tool

import (
	"math"

	"github.com/cobaltline/foreman/fault"
)

// Field types understood by the schema validator.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeArray   = "array" // of strings
)

// Field is one typed tool input.
type Field struct {
	Name        string
	Type        string
	Description string
	Required    bool
	Enum        []string // string fields only
	Min, Max    *float64 // numeric fields only
}

// Schema is a tool's input contract: required vs. optional fields,
// constrained enumerations, and numeric ranges. It is enforced before tool
// body execution; malformed input is rejected before any side effect.
type Schema struct {
	Fields []Field
}

// Parameters renders the schema as a JSON Schema map for the provider.
func (s Schema) Parameters() map[string]any {
	props := make(map[string]any, len(s.Fields))
	var required []string
	for _, f := range s.Fields {
		p := map[string]any{"type": f.Type, "description": f.Description}
		if len(f.Enum) > 0 {
			p["enum"] = f.Enum
		}
		if f.Min != nil {
			p["minimum"] = *f.Min
		}
		if f.Max != nil {
			p["maximum"] = *f.Max
		}
		if f.Type == TypeArray {
			p["items"] = map[string]any{"type": "string"}
		}
		props[f.Name] = p
		if f.Required {
			required = append(required, f.Name)
		}
	}
	out := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// Validate checks args against the schema. Unknown arguments are ignored;
// the model is allowed to be chatty, not wrong.
func (s Schema) Validate(args map[string]any) error {
	for _, f := range s.Fields {
		v, present := args[f.Name]
		if !present || v == nil {
			if f.Required {
				return fault.New(fault.Validation, "missing required field %q", f.Name)
			}
			continue
		}
		if err := f.check(v); err != nil {
			return err
		}
	}
	return nil
}

func (f Field) check(v any) error {
	switch f.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return fault.New(fault.Validation, "field %q must be a string", f.Name)
		}
		if len(f.Enum) > 0 && !contains(f.Enum, s) {
			return fault.New(fault.Validation, "field %q must be one of %v, got %q", f.Name, f.Enum, s)
		}
	case TypeNumber, TypeInteger:
		n, ok := asNumber(v)
		if !ok {
			return fault.New(fault.Validation, "field %q must be a number", f.Name)
		}
		if f.Type == TypeInteger && n != math.Trunc(n) {
			return fault.New(fault.Validation, "field %q must be an integer", f.Name)
		}
		if f.Min != nil && n < *f.Min {
			return fault.New(fault.Validation, "field %q must be >= %v, got %v", f.Name, *f.Min, n)
		}
		if f.Max != nil && n > *f.Max {
			return fault.New(fault.Validation, "field %q must be <= %v, got %v", f.Name, *f.Max, n)
		}
	case TypeBoolean:
		if _, ok := v.(bool); !ok {
			return fault.New(fault.Validation, "field %q must be a boolean", f.Name)
		}
	case TypeArray:
		items, ok := v.([]any)
		if !ok {
			if _, isStrings := v.([]string); isStrings {
				return nil
			}
			return fault.New(fault.Validation, "field %q must be an array of strings", f.Name)
		}
		for _, item := range items {
			if _, ok := item.(string); !ok {
				return fault.New(fault.Validation, "field %q must contain only strings", f.Name)
			}
		}
	}
	return nil
}

// Argument accessors used by tool bodies after validation.

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func numberArg(args map[string]any, name string) (float64, bool) {
	return asNumber(args[name])
}

func boolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}

func stringSliceArg(args map[string]any, name string) []string {
	if ss, ok := args[name].([]string); ok {
		return ss
	}
	items, ok := args[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func ptr(f float64) *float64 { return &f }
