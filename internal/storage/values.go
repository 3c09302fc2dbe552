package storage

import (
	"encoding/json"
	"fmt"
)

// Values is a set of JSON-encoded values keyed by name.
type Values map[string]json.RawMessage

// Set stores v under key after marshalling it to JSON.
func (vs *Values) Set(key string, v any) error {
	if *vs == nil {
		*vs = Values{}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling %q: %w", key, err)
	}

	(*vs)[key] = json.RawMessage(b)
	return nil
}

// Get unmarshals the value at key into out.
// Returns (found=false, nil) if not present.
func (vs Values) Get(key string, out any) (bool, error) {
	raw, ok := vs[key]
	if !ok || len(raw) == 0 {
		return false, nil
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("unmarshalling %q: %w", key, err)
	}
	return true, nil
}

func (vs Values) Delete(keys ...string) {
	for _, k := range keys {
		delete(vs, k)
	}
}

func (vs Values) clone() Values {
	cp := make(Values, len(vs))
	for k, v := range vs {
		cp[k] = v
	}
	return cp
}
