package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pixil98/go-testutil"
)

type fakeTransport struct {
	mu      sync.Mutex
	errs    []error
	batches []*Batch
}

// Post fails with the queued errors in order, then succeeds.
func (f *fakeTransport) Post(_ context.Context, b *Batch) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return err
	}
	f.batches = append(f.batches, b)
	return nil
}

func (f *fakeTransport) sent() []*Batch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batches
}

type fakeBeacon struct {
	max      int
	err      error
	payloads [][]byte
}

func (f *fakeBeacon) Enqueue(data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, data)
	return nil
}

func (f *fakeBeacon) MaxPayload() int { return f.max }

func logN(t *testing.T, l *Logger, n int) {
	t.Helper()
	for range n {
		if err := l.LogEvent("player_intent_input", map[string]any{"key": "ArrowUp"}); err != nil {
			t.Fatalf("logging event: %v", err)
		}
	}
}

func seqIDs(b *Batch) []int {
	ids := make([]int, len(b.Events))
	for i, e := range b.Events {
		ids[i] = e.EventSequenceID
	}
	return ids
}

func TestShipper_Send_WatermarkIsIdempotent(t *testing.T) {
	l := newTestLogger(newMemKV())
	tr := &fakeTransport{}
	s := NewShipper(l, tr)

	logN(t, l, 3)

	if err := s.Send(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.Send(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	testutil.AssertEqual(t, "posts", len(tr.sent()), 1)
	testutil.AssertEqual(t, "batch size", len(tr.sent()[0].Events), 3)
	testutil.AssertEqual(t, "final", tr.sent()[0].IsFinalChunk, false)
	testutil.AssertEqual(t, "watermark", l.Watermark(), 3)

	logN(t, l, 2)
	if err := s.Send(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := seqIDs(tr.sent()[1])
	testutil.AssertEqual(t, "second batch size", len(got), 2)
	testutil.AssertEqual(t, "first seq", got[0], 3)
	testutil.AssertEqual(t, "watermark", l.Watermark(), 5)
}

func TestShipper_Send_RetriesAfterFailure(t *testing.T) {
	kv := newMemKV()
	l := newTestLogger(kv)
	tr := &fakeTransport{errs: []error{errors.New("503 service unavailable")}}
	s := NewShipper(l, tr)

	logN(t, l, 5)

	err := s.Send(context.Background(), false)
	testutil.AssertErrorContains(t, err, "delivering 5 events")
	testutil.AssertEqual(t, "watermark", l.Watermark(), 0)

	var stored int
	found, _ := kv.Get(KeyLastSent, &stored)
	testutil.AssertEqual(t, "watermark persisted", found, false)

	logN(t, l, 2)
	if err := s.Send(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := seqIDs(tr.sent()[0])
	testutil.AssertEqual(t, "batch size", len(got), 7)
	for i, id := range got {
		if id != i {
			t.Fatalf("event %d has sequence id %d", i, id)
		}
	}
	testutil.AssertEqual(t, "watermark", l.Watermark(), 7)
}

func TestShipper_Send_Incremental_Empty(t *testing.T) {
	kv := newMemKV()
	l := newTestLogger(kv)
	tr := &fakeTransport{}
	s := NewShipper(l, tr)

	if err := s.Send(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testutil.AssertEqual(t, "posts", len(tr.sent()), 0)
	testutil.AssertEqual(t, "session kept", kv.has(KeySessionID), true)
}

func TestShipper_Send_InProgress(t *testing.T) {
	l := newTestLogger(newMemKV())
	tr := &fakeTransport{}
	s := NewShipper(l, tr)
	logN(t, l, 1)

	s.sendMu.Lock()
	err := s.Send(context.Background(), false)
	s.sendMu.Unlock()

	if !errors.Is(err, ErrSendInProgress) {
		t.Fatalf("expected ErrSendInProgress, got %v", err)
	}
	testutil.AssertEqual(t, "posts", len(tr.sent()), 0)
}

func TestShipper_Send_Final(t *testing.T) {
	tests := map[string]struct {
		beacon    *fakeBeacon
		events    int
		expBeacon int
		expPosts  int
		expPurged bool
		postErr   error
		expErr    string
	}{
		"beacon preferred": {
			beacon:    &fakeBeacon{max: 64 << 10},
			events:    4,
			expBeacon: 1,
			expPurged: true,
		},
		"oversized batch uses post": {
			beacon:    &fakeBeacon{max: 16},
			events:    4,
			expPosts:  1,
			expPurged: true,
		},
		"beacon failure uses post": {
			beacon:    &fakeBeacon{max: 64 << 10, err: errors.New("not connected")},
			events:    4,
			expPosts:  1,
			expPurged: true,
		},
		"no beacon": {
			events:    4,
			expPosts:  1,
			expPurged: true,
		},
		"nothing pending purges": {
			beacon:    &fakeBeacon{max: 64 << 10},
			expPurged: true,
		},
		"post failure keeps session": {
			events:  4,
			postErr: errors.New("connection refused"),
			expErr:  "delivering 4 events",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			kv := newMemKV()
			l := newTestLogger(kv)
			tr := &fakeTransport{}
			if tt.postErr != nil {
				tr.errs = []error{tt.postErr}
			}

			var opts []ShipperOpt
			if tt.beacon != nil {
				opts = append(opts, WithBeacon(tt.beacon))
			}
			s := NewShipper(l, tr, opts...)

			logN(t, l, tt.events)

			err := s.Send(context.Background(), true)
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if tt.beacon != nil {
				testutil.AssertEqual(t, "beacon payloads", len(tt.beacon.payloads), tt.expBeacon)
			}
			testutil.AssertEqual(t, "posts", len(tr.sent()), tt.expPosts)
			testutil.AssertEqual(t, "session purged", !kv.has(KeySessionID), tt.expPurged)
			testutil.AssertEqual(t, "log purged", !kv.has(KeyEventLog), tt.expPurged || tt.events == 0)
			testutil.AssertEqual(t, "participant kept", kv.has(KeyParticipantID), true)

			for _, b := range tr.sent() {
				testutil.AssertEqual(t, "final chunk", b.IsFinalChunk, true)
			}
		})
	}
}

func TestShipper_Send_FinalBeaconBody(t *testing.T) {
	l := newTestLogger(newMemKV())
	b := &fakeBeacon{max: 64 << 10}
	s := NewShipper(l, &fakeTransport{}, WithBeacon(b))
	logN(t, l, 2)

	if err := s.Send(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var batch Batch
	if err := json.Unmarshal(b.payloads[0], &batch); err != nil {
		t.Fatalf("decoding beacon payload: %v", err)
	}
	testutil.AssertEqual(t, "session", batch.SessionID, l.SessionID())
	testutil.AssertEqual(t, "final", batch.IsFinalChunk, true)
	testutil.AssertEqual(t, "events", len(batch.Events), 2)
}

func TestShipper_Start_FinalSendOnStop(t *testing.T) {
	l := newTestLogger(newMemKV())
	tr := &fakeTransport{}
	s := NewShipper(l, tr, WithSendInterval(time.Hour))
	logN(t, l, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := tr.sent()
	testutil.AssertEqual(t, "posts", len(sent), 1)

	batch := sent[0]
	testutil.AssertEqual(t, "final", batch.IsFinalChunk, true)
	testutil.AssertEqual(t, "events", len(batch.Events), 3)

	last := batch.Events[2]
	testutil.AssertEqual(t, "last type", last.EventType, EventSessionEnd)

	var p SessionEndPayload
	if err := json.Unmarshal(last.EventPayload, &p); err != nil {
		t.Fatalf("decoding payload: %v", err)
	}
	testutil.AssertEqual(t, "reason", p.Reason, ReasonUserClosed)
}

func TestShipper_Start_FlushNudge(t *testing.T) {
	l := newTestLogger(newMemKV(), WithFlushThreshold(2))
	tr := &fakeTransport{}
	s := NewShipper(l, tr, WithSendInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	logN(t, l, 2)

	deadline := time.Now().Add(2 * time.Second)
	for l.Watermark() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	testutil.AssertEqual(t, "watermark", l.Watermark(), 2)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// loggingTransport records one more event while each of its first n posts is
// in flight.
type loggingTransport struct {
	fakeTransport
	logger *Logger
	n      int
}

func (lt *loggingTransport) Post(ctx context.Context, b *Batch) error {
	if lt.n > 0 {
		lt.n--
		if err := lt.logger.LogEvent("stun_end", map[string]any{"patrol": 1}); err != nil {
			return err
		}
	}
	return lt.fakeTransport.Post(ctx, b)
}

func TestShipper_Send_FinalDeliversLateEvents(t *testing.T) {
	tests := map[string]struct {
		late      int
		expPosts  int
		expPurged bool
		expErr    string
	}{
		"one late event": {
			late:      1,
			expPosts:  2,
			expPurged: true,
		},
		"events keep arriving": {
			late:     maxFinalRounds,
			expPosts: maxFinalRounds,
			expErr:   "events still arriving",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			kv := newMemKV()
			l := newTestLogger(kv)
			tr := &loggingTransport{logger: l, n: tt.late}
			s := NewShipper(l, tr)

			logN(t, l, 3)
			logged := 3 + tt.late

			err := s.Send(context.Background(), true)
			if tt.expErr != "" {
				testutil.AssertErrorContains(t, err, tt.expErr)
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var delivered []int
			for _, b := range tr.sent() {
				delivered = append(delivered, seqIDs(b)...)
			}
			testutil.AssertEqual(t, "posts", len(tr.sent()), tt.expPosts)
			testutil.AssertEqual(t, "session purged", !kv.has(KeySessionID), tt.expPurged)

			if tt.expPurged {
				testutil.AssertEqual(t, "delivered", len(delivered), logged)
				return
			}
			// The undelivered tail stays in the store.
			testutil.AssertEqual(t, "stored", len(l.Events()), logged)
			testutil.AssertEqual(t, "watermark", l.Watermark(), len(delivered))
		})
	}
}

func TestShipper_Start_WaitsForStopAfter(t *testing.T) {
	l := newTestLogger(newMemKV())
	tr := &fakeTransport{}
	s := NewShipper(l, tr, WithSendInterval(time.Hour))
	gate := make(chan struct{})
	s.StopAfter(gate)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	select {
	case <-done:
		t.Fatalf("shipper stopped before the gate closed")
	case <-time.After(50 * time.Millisecond):
	}

	logN(t, l, 2)
	close(gate)

	if err := <-done; err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sent := tr.sent()
	testutil.AssertEqual(t, "posts", len(sent), 1)
	testutil.AssertEqual(t, "events", len(sent[0].Events), 3)
}
