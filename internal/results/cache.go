package results

import (
	"fmt"
	"log/slog"

	"github.com/pixil98/mindmaze/internal/storage"
	"github.com/pixil98/mindmaze/internal/telemetry"
)

// SaveCached keeps s in the session store. It is removed together with the
// session once the final chunk is delivered.
func SaveCached(kv storage.KV, s *Summary) error {
	if err := kv.Set(telemetry.KeyCachedResults, s); err != nil {
		return fmt.Errorf("caching results: %w", err)
	}
	return nil
}

func LoadCached(kv storage.KV) (*Summary, bool, error) {
	var s Summary
	found, err := kv.Get(telemetry.KeyCachedResults, &s)
	if err != nil {
		return nil, false, fmt.Errorf("reading cached results: %w", err)
	}
	if !found {
		return nil, false, nil
	}
	return &s, true, nil
}

// Current returns the summary for records, falling back to the cached one
// when records hold no finished level. A freshly computed summary is cached.
func Current(kv storage.KV, records []telemetry.Record) (*Summary, bool) {
	if s, ok := Analyze(records); ok {
		if err := SaveCached(kv, s); err != nil {
			slog.Warn("caching results", "error", err)
		}
		return s, true
	}

	s, ok, err := LoadCached(kv)
	if err != nil {
		slog.Warn("loading cached results", "error", err)
		return nil, false
	}
	return s, ok
}
