package collector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"

	"github.com/pixil98/mindmaze/internal/telemetry"
)

// sanitizePayload rewrites numbers that do not fit a finite float64 to null.
// Other numbers keep their original text.
func sanitizePayload(raw json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return json.RawMessage(`{}`), nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}

	out, err := json.Marshal(telemetry.Sanitize(finiteNumbers(v)))
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return json.RawMessage(out), nil
}

func finiteNumbers(v any) any {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil
		}
		return t
	case map[string]any:
		for k, e := range t {
			t[k] = finiteNumbers(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = finiteNumbers(e)
		}
		return t
	default:
		return v
	}
}
