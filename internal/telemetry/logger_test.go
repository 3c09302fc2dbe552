package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
	"github.com/pixil98/mindmaze/internal/storage"
)

// memKV is an in-memory storage.KV with switchable failures.
type memKV struct {
	mu     sync.Mutex
	values storage.Values
	getErr error
	setErr error
}

func newMemKV() *memKV {
	return &memKV{values: storage.Values{}}
}

func (m *memKV) Get(key string, out any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return false, m.getErr
	}
	return m.values.Get(key, out)
}

func (m *memKV) Set(key string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	return m.values.Set(key, v)
}

func (m *memKV) Delete(keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.values.Delete(keys...)
	return nil
}

func (m *memKV) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

func sequentialIDs(prefix string) func() string {
	var n int
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func fixedNow() time.Time {
	return time.UnixMilli(1_700_000_000_000)
}

func newTestLogger(kv storage.KV, opts ...LoggerOpt) *Logger {
	opts = append([]LoggerOpt{WithNow(fixedNow), WithIDGenerator(sequentialIDs("id"))}, opts...)
	return NewLogger(kv, opts...)
}

func TestNewLogger_FreshSession(t *testing.T) {
	kv := newMemKV()
	l := newTestLogger(kv)

	testutil.AssertEqual(t, "participant", l.ParticipantID(), "id-1")
	testutil.AssertEqual(t, "session", l.SessionID(), "id-2")
	testutil.AssertEqual(t, "resumed", l.Resumed(), false)

	var sid string
	found, _ := kv.Get(KeySessionID, &sid)
	testutil.AssertEqual(t, "session persisted", found, true)
	testutil.AssertEqual(t, "persisted session", sid, "id-2")
}

func TestLogger_LogEvent_SequenceIsContiguous(t *testing.T) {
	kv := newMemKV()
	l := newTestLogger(kv, WithFlushThreshold(0))

	for i := range 25 {
		if err := l.LogEvent("player_intent_input", map[string]any{"i": i}); err != nil {
			t.Fatalf("logging event %d: %v", i, err)
		}
	}

	events := l.Events()
	testutil.AssertEqual(t, "event count", len(events), 25)
	for i, e := range events {
		if e.EventSequenceID != i {
			t.Fatalf("event %d has sequence id %d", i, e.EventSequenceID)
		}
	}

	var stored []Record
	if _, err := kv.Get(KeyEventLog, &stored); err != nil {
		t.Fatalf("reading stored log: %v", err)
	}
	testutil.AssertEqual(t, "stored count", len(stored), 25)
}

func TestLogger_LogEvent_Envelope(t *testing.T) {
	l := newTestLogger(newMemKV())

	if err := l.LogEvent("level_start", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := l.Events()[0]
	testutil.AssertEqual(t, "participant", e.ParticipantID, "id-1")
	testutil.AssertEqual(t, "session", e.SessionID, "id-2")
	testutil.AssertEqual(t, "protocol", e.ProtocolVersion, ProtocolVersion)
	testutil.AssertEqual(t, "timestamp", e.ClientTimestamp, int64(1_700_000_000_000))
	testutil.AssertEqual(t, "type", e.EventType, "level_start")
	testutil.AssertEqual(t, "payload", string(e.EventPayload), "{}")
}

func TestLogger_LogEvent_Errors(t *testing.T) {
	tests := map[string]struct {
		eventType string
		payload   any
		expErr    string
	}{
		"missing type": {
			eventType: "",
			payload:   map[string]any{},
			expErr:    "missing event type",
		},
		"unencodable payload": {
			eventType: "level_start",
			payload:   make(chan int),
			expErr:    "encoding level_start payload",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			l := newTestLogger(newMemKV())

			err := l.LogEvent(tt.eventType, tt.payload)
			testutil.AssertErrorContains(t, err, tt.expErr)
			testutil.AssertEqual(t, "events", len(l.Events()), 0)
		})
	}
}

func TestLogger_LogEvent_StorageFailure(t *testing.T) {
	tests := map[string]struct {
		breakStore func(*memKV)
	}{
		"write fails": {
			breakStore: func(m *memKV) { m.setErr = errors.New("quota exceeded") },
		},
		"read fails": {
			breakStore: func(m *memKV) { m.getErr = errors.New("corrupt") },
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			kv := newMemKV()
			l := newTestLogger(kv)
			if err := l.LogEvent("level_start", nil); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			tt.breakStore(kv)

			for range 2 {
				if err := l.LogEvent("player_intent_input", nil); err != nil {
					t.Fatalf("storage failure must not surface: %v", err)
				}
			}

			events := l.Events()
			testutil.AssertEqual(t, "events", len(events), 3)
			testutil.AssertEqual(t, "last seq", events[2].EventSequenceID, 2)
		})
	}
}

func TestLogger_FlushThreshold(t *testing.T) {
	l := newTestLogger(newMemKV(), WithFlushThreshold(3))

	for range 2 {
		_ = l.LogEvent("player_intent_input", nil)
	}
	select {
	case <-l.Flush():
		t.Fatalf("flush signalled below threshold")
	default:
	}

	_ = l.LogEvent("player_intent_input", nil)
	select {
	case <-l.Flush():
	default:
		t.Fatalf("expected flush signal at threshold")
	}
}

func TestLogger_EndSession_Once(t *testing.T) {
	l := newTestLogger(newMemKV())

	if err := l.EndSession(ReasonCompleted, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := l.EndSession(ReasonUserClosed, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := l.Events()
	testutil.AssertEqual(t, "events", len(events), 1)

	var p SessionEndPayload
	if err := json.Unmarshal(events[0].EventPayload, &p); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	testutil.AssertEqual(t, "reason", p.Reason, ReasonCompleted)
}

func TestLogger_EndSession_Error(t *testing.T) {
	l := newTestLogger(newMemKV())

	if err := l.EndSession(ReasonError, errors.New("level 3 failed to load")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var p SessionEndPayload
	if err := json.Unmarshal(l.Events()[0].EventPayload, &p); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	testutil.AssertEqual(t, "reason", p.Reason, ReasonError)
	testutil.AssertEqual(t, "error", p.Error, "level 3 failed to load")
}

func TestNewLogger_Resume(t *testing.T) {
	kv := newMemKV()
	first := newTestLogger(kv)
	for range 3 {
		_ = first.LogEvent("player_intent_input", nil)
	}
	first.acknowledge(2)

	second := NewLogger(kv, WithIDGenerator(sequentialIDs("other")))
	testutil.AssertEqual(t, "resumed", second.Resumed(), true)
	testutil.AssertEqual(t, "participant", second.ParticipantID(), first.ParticipantID())
	testutil.AssertEqual(t, "session", second.SessionID(), first.SessionID())
	testutil.AssertEqual(t, "watermark", second.Watermark(), 2)

	if err := second.LogEvent("level_start", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events := second.Events()
	testutil.AssertEqual(t, "events", len(events), 4)
	testutil.AssertEqual(t, "next seq", events[3].EventSequenceID, 3)
}

func TestLogger_Purge(t *testing.T) {
	kv := newMemKV()
	l := newTestLogger(kv)
	_ = l.LogEvent("level_start", nil)
	_ = kv.Set(KeyCachedResults, "summary")

	purged, err := l.purge(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "purged", purged, true)

	for _, key := range []string{KeyEventLog, KeyLastSent, KeySessionID, KeyCachedResults} {
		testutil.AssertEqual(t, key+" present", kv.has(key), false)
	}
	testutil.AssertEqual(t, "participant present", kv.has(KeyParticipantID), true)

	err = l.LogEvent("level_start", nil)
	if !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}

	next := newTestLogger(kv)
	testutil.AssertEqual(t, "participant kept", next.ParticipantID(), l.ParticipantID())
	testutil.AssertEqual(t, "resumed", next.Resumed(), false)
	if next.SessionID() == l.SessionID() {
		t.Errorf("expected a new session id after purge")
	}
}

type pathMetrics struct {
	Level      string    `json:"level"`
	Efficiency float64   `json:"efficiency"`
	Samples    []float64 `json:"samples,omitempty"`
}

func TestSanitize(t *testing.T) {
	tests := map[string]struct {
		payload any
		exp     string
	}{
		"nan": {
			payload: map[string]any{"v": math.NaN()},
			exp:     `{"v":null}`,
		},
		"infinity in list": {
			payload: map[string]any{"v": []any{1.5, math.Inf(1), math.Inf(-1)}},
			exp:     `{"v":[1.5,null,null]}`,
		},
		"nested": {
			payload: map[string]any{"a": map[string]any{"b": float32(math.NaN()), "c": "ok"}},
			exp:     `{"a":{"b":null,"c":"ok"}}`,
		},
		"untouched": {
			payload: map[string]any{"n": 3, "s": "x"},
			exp:     `{"n":3,"s":"x"}`,
		},
		"typed struct": {
			payload: pathMetrics{Level: "level-2", Efficiency: math.NaN(), Samples: []float64{0.5, math.Inf(1)}},
			exp:     `{"efficiency":null,"level":"level-2","samples":[0.5,null]}`,
		},
		"typed struct pointer": {
			payload: &pathMetrics{Level: "level-3", Efficiency: math.Inf(-1)},
			exp:     `{"efficiency":null,"level":"level-3"}`,
		},
		"typed struct finite": {
			payload: pathMetrics{Level: "level-1", Efficiency: 0.75},
			exp:     `{"level":"level-1","efficiency":0.75}`,
		},
		"embedded struct": {
			payload: struct {
				pathMetrics
				Note string `json:"note"`
			}{pathMetrics: pathMetrics{Level: "level-4", Efficiency: math.NaN()}, Note: "stunned"},
			exp: `{"efficiency":null,"level":"level-4","note":"stunned"}`,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			raw, err := encodePayload(tt.payload)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			testutil.AssertEqual(t, "payload", string(raw), tt.exp)
		})
	}
}

func TestBatch_Validate(t *testing.T) {
	tests := map[string]struct {
		batch  Batch
		expErr string
	}{
		"valid": {
			batch: Batch{SessionID: "s", ParticipantID: "p", Events: []Record{{SessionID: "s", EventType: "level_start"}}},
		},
		"missing session": {
			batch:  Batch{ParticipantID: "p"},
			expErr: "sessionId is required",
		},
		"missing participant": {
			batch:  Batch{SessionID: "s"},
			expErr: "participantId is required",
		},
		"event without type": {
			batch:  Batch{SessionID: "s", ParticipantID: "p", Events: []Record{{SessionID: "s"}}},
			expErr: "event 0: eventType is required",
		},
		"foreign event": {
			batch:  Batch{SessionID: "s", ParticipantID: "p", Events: []Record{{SessionID: "t", EventType: "x"}}},
			expErr: "does not match batch",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := tt.batch.Validate()
			if tt.expErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			testutil.AssertErrorContains(t, err, tt.expErr)
		})
	}
}

func TestLogger_Purge_KeepsNewerEvents(t *testing.T) {
	kv := newMemKV()
	l := newTestLogger(kv)
	_ = l.LogEvent("level_start", nil)
	_ = l.LogEvent("stun_end", nil)

	purged, err := l.purge(1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "purged", purged, false)
	testutil.AssertEqual(t, "session present", kv.has(KeySessionID), true)
	testutil.AssertEqual(t, "events", len(l.Events()), 2)

	if err := l.LogEvent("level_end", nil); err != nil {
		t.Fatalf("expected the session to stay open, got %v", err)
	}
}
