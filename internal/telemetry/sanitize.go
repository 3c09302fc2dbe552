package telemetry

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strings"
)

// Sanitize replaces NaN and infinite numbers in a generic JSON value with
// nil. Maps and slices are rewritten in place.
func Sanitize(v any) any {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return t
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return t
	case map[string]any:
		for k, e := range t {
			t[k] = Sanitize(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = Sanitize(e)
		}
		return t
	default:
		return v
	}
}

// encodePayload renders a payload as a JSON object. A nil payload becomes
// an empty object. Typed payloads holding non-finite numbers are encoded
// through their generic form so those numbers become null.
func encodePayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case nil:
		return json.RawMessage(`{}`), nil
	case json.RawMessage:
		return p, nil
	}

	b, err := json.Marshal(Sanitize(payload))
	var unsupported *json.UnsupportedValueError
	if errors.As(err, &unsupported) {
		b, err = json.Marshal(generic(reflect.ValueOf(payload)))
	}
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

var marshalerType = reflect.TypeFor[json.Marshaler]()

// generic converts v into maps, slices and scalars following its json
// tags, with non-finite floats replaced by nil.
func generic(v reflect.Value) any {
	if !v.IsValid() {
		return nil
	}
	if v.Type().Implements(marshalerType) && (v.Kind() != reflect.Pointer || !v.IsNil()) {
		return v.Interface()
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return generic(v.Elem())
	case reflect.Float32, reflect.Float64:
		return Sanitize(v.Float())
	case reflect.Struct:
		out := map[string]any{}
		genericFields(v, out)
		return out
	case reflect.Map:
		if v.IsNil() || v.Type().Key().Kind() != reflect.String {
			return v.Interface()
		}
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = generic(iter.Value())
		}
		return out
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && (v.IsNil() || v.Type().Elem().Kind() == reflect.Uint8) {
			return v.Interface()
		}
		out := make([]any, v.Len())
		for i := range out {
			out[i] = generic(v.Index(i))
		}
		return out
	default:
		return v.Interface()
	}
}

func genericFields(v reflect.Value, out map[string]any) {
	t := v.Type()
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() && !f.Anonymous {
			continue
		}

		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		fv := v.Field(i)

		if f.Anonymous && name == "" {
			if fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					continue
				}
				fv = fv.Elem()
			}
			if fv.Kind() == reflect.Struct {
				genericFields(fv, out)
				continue
			}
		}
		if !f.IsExported() {
			continue
		}

		if name == "" {
			name = f.Name
		}
		if strings.Contains(opts, "omitempty") && isEmpty(fv) {
			continue
		}
		out[name] = generic(fv)
	}
}

func isEmpty(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	default:
		return v.IsZero()
	}
}
