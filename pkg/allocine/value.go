package allocine

import (
	"fmt"

	"github.com/spf13/cast"
)

// Value wraps a decoded JSON value. Accessors never fail for absent fields: they return the
// provided default. Only a present value of an incompatible type is an error.
type Value struct {
	v any
}

// ValueOf wraps v.
func ValueOf(v any) Value {
	return Value{v: v}
}

// IsNull reports whether the value is absent or JSON null.
func (v Value) IsNull() bool {
	return v.v == nil
}

// IsObject reports whether the value is a JSON object.
func (v Value) IsObject() bool {
	_, ok := v.object()
	return ok
}

// Get returns the member key of an object value, or a null Value.
func (v Value) Get(key string) Value {
	m, ok := v.object()
	if !ok {
		return Value{}
	}
	return Value{v: m[key]}
}

// String coerces a scalar value to a string, returning def when the value is null.
func (v Value) String(def string) (string, error) {
	switch v.v.(type) {
	case nil:
		return def, nil
	case map[string]any, []any:
		return "", fmt.Errorf("expected a scalar, got %T", v.v)
	}
	s, err := cast.ToStringE(v.v)
	if err != nil {
		return "", fmt.Errorf("failed to cast.ToStringE: %w", err)
	}
	return s, nil
}

// Int coerces a numeric value to an int, returning def when the value is null.
func (v Value) Int(def int) (int, error) {
	switch v.v.(type) {
	case nil:
		return def, nil
	case bool, map[string]any, []any:
		return 0, fmt.Errorf("expected a number, got %T", v.v)
	}
	i, err := cast.ToIntE(v.v)
	if err != nil {
		return 0, fmt.Errorf("failed to cast.ToIntE: %w", err)
	}
	return i, nil
}

func (v Value) object() (map[string]any, bool) {
	switch m := v.v.(type) {
	case map[string]any:
		return m, true
	}
	return nil, false
}
