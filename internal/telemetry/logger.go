package telemetry

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pixil98/mindmaze/internal/storage"
)

// DefaultFlushThreshold is the number of unsent events that asks the
// shipper for an early send.
const DefaultFlushThreshold = 20

var (
	ErrMissingEventType = errors.New("missing event type")
	ErrSessionClosed    = errors.New("session closed")
)

// Logger is the append-only session log. Every event is written to the
// durable store before LogEvent returns; when the store fails the event is
// kept in memory for the life of the process.
type Logger struct {
	store          storage.KV
	now            func() time.Time
	newID          func() string
	flushThreshold int

	participantID string
	sessionID     string
	resumed       bool

	mu     sync.Mutex
	mirror []Record
	sent   int
	ended  bool
	closed bool

	flush chan struct{}
}

type LoggerOpt func(*Logger)

func WithNow(now func() time.Time) LoggerOpt {
	return func(l *Logger) {
		l.now = now
	}
}

func WithIDGenerator(newID func() string) LoggerOpt {
	return func(l *Logger) {
		l.newID = newID
	}
}

// WithFlushThreshold sets how many unsent events trigger an early send.
// Zero disables early sends.
func WithFlushThreshold(n int) LoggerOpt {
	return func(l *Logger) {
		l.flushThreshold = n
	}
}

// NewLogger opens the session kept in store, resuming an unpurged one so
// that its undelivered events are sent by this run.
func NewLogger(store storage.KV, opts ...LoggerOpt) *Logger {
	l := &Logger{
		store:          store,
		now:            time.Now,
		newID:          uuid.NewString,
		flushThreshold: DefaultFlushThreshold,
		flush:          make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(l)
	}

	l.participantID = l.loadOrCreateID(KeyParticipantID)

	var sid string
	found, err := store.Get(KeySessionID, &sid)
	if err != nil {
		slog.Warn("reading session id, starting a new session", "error", err)
	}
	if found && err == nil && sid != "" {
		l.sessionID = sid
		l.resumed = true
		l.mirror = l.readLog()
		l.sent = l.readWatermark(len(l.mirror))
		slog.Info("resuming telemetry session", "session", sid, "events", len(l.mirror), "unsent", len(l.mirror)-l.sent)
		return l
	}

	l.sessionID = l.newID()
	if err := store.Delete(KeyEventLog, KeyLastSent); err != nil {
		slog.Warn("clearing stale event log", "error", err)
	}
	if err := store.Set(KeySessionID, l.sessionID); err != nil {
		slog.Warn("persisting session id", "session", l.sessionID, "error", err)
	}

	return l
}

func (l *Logger) loadOrCreateID(key string) string {
	var id string
	found, err := l.store.Get(key, &id)
	if err == nil && found && id != "" {
		return id
	}

	id = l.newID()
	if err := l.store.Set(key, id); err != nil {
		slog.Warn("persisting identifier", "key", key, "error", err)
	}
	return id
}

func (l *Logger) readLog() []Record {
	var log []Record
	if _, err := l.store.Get(KeyEventLog, &log); err != nil {
		slog.Warn("reading event log", "session", l.sessionID, "error", err)
		return nil
	}
	return log
}

func (l *Logger) readWatermark(n int) int {
	var wm int
	if _, err := l.store.Get(KeyLastSent, &wm); err != nil {
		slog.Warn("reading delivery watermark", "session", l.sessionID, "error", err)
		return 0
	}
	return min(max(wm, 0), n)
}

func (l *Logger) SessionID() string     { return l.sessionID }
func (l *Logger) ParticipantID() string { return l.participantID }
func (l *Logger) Resumed() bool         { return l.resumed }

// Flush signals when enough unsent events have piled up to send early.
func (l *Logger) Flush() <-chan struct{} {
	return l.flush
}

// StartSession records experiment_session_start.
func (l *Logger) StartSession(info ClientInfo) error {
	return l.LogEvent(EventSessionStart, SessionStartPayload{ClientInfo: info, Resumed: l.resumed})
}

// EndSession records experiment_session_end. Only the first call per
// session records anything, and nothing is recorded after a purge.
func (l *Logger) EndSession(reason string, cause error) error {
	l.mu.Lock()
	if l.ended || l.closed {
		l.mu.Unlock()
		return nil
	}
	l.ended = true
	l.mu.Unlock()

	p := SessionEndPayload{Reason: reason}
	if cause != nil {
		p.Error = cause.Error()
	}
	return l.LogEvent(EventSessionEnd, p)
}

// LogEvent appends one record to the session log. Storage failures are
// logged and the record is still kept in memory.
func (l *Logger) LogEvent(eventType string, payload any) error {
	if eventType == "" {
		return ErrMissingEventType
	}

	raw, err := encodePayload(payload)
	if err != nil {
		return fmt.Errorf("encoding %s payload: %w", eventType, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrSessionClosed
	}

	log := l.loadLocked()
	log = append(log, Record{
		ParticipantID:   l.participantID,
		SessionID:       l.sessionID,
		ProtocolVersion: ProtocolVersion,
		EventSequenceID: len(log),
		ClientTimestamp: l.now().UnixMilli(),
		EventType:       eventType,
		EventPayload:    raw,
	})
	l.mirror = log

	if err := l.store.Set(KeyEventLog, log); err != nil {
		slog.Warn("persisting event log", "session", l.sessionID, "events", len(log), "error", err)
	}

	if l.flushThreshold > 0 && len(log)-l.sent >= l.flushThreshold {
		select {
		case l.flush <- struct{}{}:
		default:
		}
	}

	return nil
}

// loadLocked returns the stored log, or the in-memory copy when the store
// cannot be read or is behind it.
func (l *Logger) loadLocked() []Record {
	var log []Record
	_, err := l.store.Get(KeyEventLog, &log)
	if err != nil {
		slog.Warn("reading event log, using in-memory copy", "session", l.sessionID, "error", err)
		return l.mirror
	}
	if len(log) < len(l.mirror) {
		return l.mirror
	}
	return log
}

// Events returns a copy of the full session log.
func (l *Logger) Events() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	return slices.Clone(l.loadLocked())
}

// Watermark returns how many leading records have been delivered.
func (l *Logger) Watermark() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sent
}

// pending returns the undelivered suffix and the log length it was cut at.
func (l *Logger) pending(final bool) (*Batch, int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	log := l.loadLocked()

	wm := l.sent
	var stored int
	if found, err := l.store.Get(KeyLastSent, &stored); err == nil && found {
		wm = max(wm, stored)
	}
	wm = min(max(wm, 0), len(log))

	return &Batch{
		SessionID:     l.sessionID,
		ParticipantID: l.participantID,
		IsFinalChunk:  final,
		Events:        slices.Clone(log[wm:]),
	}, len(log)
}

// acknowledge advances the watermark to upto. It never moves backwards.
func (l *Logger) acknowledge(upto int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if upto <= l.sent {
		return
	}
	l.sent = upto
	if err := l.store.Set(KeyLastSent, upto); err != nil {
		slog.Warn("persisting delivery watermark", "session", l.sessionID, "watermark", upto, "error", err)
	}
}

// purge removes every trace of the session from the store once the final
// chunk covered the whole log. upto is the log length that chunk was cut at;
// when events were appended since, nothing is removed and false is returned
// so the tail can be sent. The participant id is kept.
func (l *Logger) purge(upto int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n := len(l.loadLocked()); n > upto {
		return false, nil
	}

	if err := l.store.Delete(KeyEventLog, KeyLastSent, KeySessionID, KeyCachedResults); err != nil {
		return false, fmt.Errorf("purging session %s: %w", l.sessionID, err)
	}
	l.mirror = nil
	l.sent = 0
	l.closed = true
	return true, nil
}
