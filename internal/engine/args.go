package engine

import (
	"fmt"
	"math"
	"strings"
)

// ArgType classifies a declared argument value.
type ArgType string

const (
	ArgString ArgType = "string"
	ArgInt    ArgType = "int"
	ArgFloat  ArgType = "float"
	ArgBool   ArgType = "bool"
)

// ArgSpec declares one well-known argument key of an engine. Keys not
// declared by any spec are extension arguments and pass through the
// bag unvalidated.
type ArgSpec struct {
	Key      string
	Type     ArgType
	Required bool
	Default  any
	Doc      string
}

// Validate ensures the declaration itself is well-formed.
func (s ArgSpec) Validate(owner string) error {
	if strings.TrimSpace(s.Key) == "" {
		return fmt.Errorf("engine '%s' declares an argument with an empty key", owner)
	}
	switch s.Type {
	case ArgString, ArgInt, ArgFloat, ArgBool:
	default:
		return fmt.Errorf("engine '%s' argument '%s' has unknown type '%s'", owner, s.Key, s.Type)
	}
	if s.Required && s.Default != nil {
		return fmt.Errorf("engine '%s' argument '%s' is required and cannot have a default", owner, s.Key)
	}
	return nil
}

// Args is the partially typed argument bag passed to every adapter
// operation. Well-known keys are validated against the engine's
// declared specs; everything else rides along untouched for
// engine-specific use.
type Args map[string]any

// String returns the value for key as a string.
func (a Args) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// StringOr returns the value for key as a string, or def.
func (a Args) StringOr(key, def string) string {
	if v, ok := a.String(key); ok {
		return v
	}
	return def
}

// Int returns the value for key as an int. Whole floats convert, since
// JSON and YAML decoding produce float64 for numbers.
func (a Args) Int(key string) (int, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if math.Trunc(n) == n {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// IntOr returns the value for key as an int, or def.
func (a Args) IntOr(key string, def int) int {
	if v, ok := a.Int(key); ok {
		return v
	}
	return def
}

// Float returns the value for key as a float64.
func (a Args) Float(key string) (float64, bool) {
	v, ok := a[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// FloatOr returns the value for key as a float64, or def.
func (a Args) FloatOr(key string, def float64) float64 {
	if v, ok := a.Float(key); ok {
		return v
	}
	return def
}

// Bool returns the value for key as a bool.
func (a Args) Bool(key string) (bool, bool) {
	v, ok := a[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// BoolOr returns the value for key as a bool, or def.
func (a Args) BoolOr(key string, def bool) bool {
	if v, ok := a.Bool(key); ok {
		return v
	}
	return def
}

// Clone returns a shallow copy of the bag. Values are scalars by
// convention, so one level is enough.
func (a Args) Clone() Args {
	if a == nil {
		return nil
	}
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// Validate checks the bag against declared specs: required keys must be
// present and declared keys must hold the declared type. Unknown keys
// are permitted.
func (a Args) Validate(specs []ArgSpec) error {
	for _, spec := range specs {
		v, present := a[spec.Key]
		if !present {
			if spec.Required {
				return fmt.Errorf("missing required argument '%s'", spec.Key)
			}
			continue
		}
		if !typeMatches(v, spec.Type, a, spec.Key) {
			return fmt.Errorf("argument '%s' must be a %s, got %T", spec.Key, spec.Type, v)
		}
	}
	return nil
}

// ApplyDefaults returns a copy of the bag with declared defaults filled
// in for absent keys.
func (a Args) ApplyDefaults(specs []ArgSpec) Args {
	out := a.Clone()
	if out == nil {
		out = Args{}
	}
	for _, spec := range specs {
		if spec.Default == nil {
			continue
		}
		if _, present := out[spec.Key]; !present {
			out[spec.Key] = spec.Default
		}
	}
	return out
}

func typeMatches(v any, t ArgType, a Args, key string) bool {
	switch t {
	case ArgString:
		_, ok := v.(string)
		return ok
	case ArgInt:
		_, ok := a.Int(key)
		return ok
	case ArgFloat:
		_, ok := a.Float(key)
		return ok
	case ArgBool:
		_, ok := v.(bool)
		return ok
	default:
		return false
	}
}
