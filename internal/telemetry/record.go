package telemetry

import (
	"encoding/json"
	"fmt"

	"github.com/pixil98/go-errors"
)

const ProtocolVersion = "1.0"

// Keys under which the logger keeps its state in the durable store.
const (
	KeyParticipantID = "participantId"
	KeySessionID     = "sessionId"
	KeyEventLog      = "eventLog"
	KeyLastSent      = "lastSentEventIndex"
	// KeyCachedResults holds the participant-facing results summary. It is
	// purged together with the session.
	KeyCachedResults = "cachedResults"
)

// Session lifecycle event types.
const (
	EventSessionStart = "experiment_session_start"
	EventSessionEnd   = "experiment_session_end"
)

const (
	ReasonCompleted  = "completed"
	ReasonUserClosed = "user_closed"
	ReasonError      = "error"
)

// Record is one telemetry event. EventSequenceID is the record's index in
// the session log.
type Record struct {
	ParticipantID   string          `json:"participantId"`
	SessionID       string          `json:"sessionId"`
	ProtocolVersion string          `json:"protocolVersion"`
	EventSequenceID int             `json:"eventSequenceId"`
	ClientTimestamp int64           `json:"clientTimestamp"`
	EventType       string          `json:"eventType"`
	EventPayload    json.RawMessage `json:"eventPayload"`
}

// Batch is the upload body for one delivery attempt.
type Batch struct {
	SessionID     string   `json:"sessionId"`
	ParticipantID string   `json:"participantId"`
	IsFinalChunk  bool     `json:"isFinalChunk"`
	Events        []Record `json:"events"`
}

func (b *Batch) Validate() error {
	el := errors.NewErrorList()

	if b.SessionID == "" {
		el.Add(fmt.Errorf("sessionId is required"))
	}
	if b.ParticipantID == "" {
		el.Add(fmt.Errorf("participantId is required"))
	}
	for i, r := range b.Events {
		if r.EventType == "" {
			el.Add(fmt.Errorf("event %d: eventType is required", i))
		}
		if r.SessionID != "" && r.SessionID != b.SessionID {
			el.Add(fmt.Errorf("event %d: sessionId %q does not match batch", i, r.SessionID))
		}
	}

	return el.Err()
}

type SessionStartPayload struct {
	ClientInfo ClientInfo `json:"clientInfo"`
	Resumed    bool       `json:"resumed,omitempty"`
}

type SessionEndPayload struct {
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}
