package collector

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/pixil98/go-errors"
	"github.com/pixil98/mindmaze/internal/telemetry"
)

// SessionLog is everything the collector holds for one session, ordered by
// sequence id.
type SessionLog struct {
	ParticipantID string             `json:"participantId"`
	Final         bool               `json:"final"`
	Events        []telemetry.Record `json:"events"`
}

func (s *SessionLog) Validate() error {
	el := errors.NewErrorList()

	if s.ParticipantID == "" {
		el.Add(fmt.Errorf("participantId is required"))
	}

	for i := 1; i < len(s.Events); i++ {
		if s.Events[i].EventSequenceID <= s.Events[i-1].EventSequenceID {
			el.Add(fmt.Errorf("event %d: sequence id %d out of order", i, s.Events[i].EventSequenceID))
		}
	}

	return el.Err()
}

func (s *SessionLog) clone() *SessionLog {
	return &SessionLog{
		ParticipantID: s.ParticipantID,
		Final:         s.Final,
		Events:        slices.Clone(s.Events),
	}
}

// merge adds the records whose sequence ids are not stored yet and returns
// them.
func (s *SessionLog) merge(records []telemetry.Record) []telemetry.Record {
	seen := make(map[int]bool, len(s.Events)+len(records))
	for _, e := range s.Events {
		seen[e.EventSequenceID] = true
	}

	var added []telemetry.Record
	for _, r := range records {
		if seen[r.EventSequenceID] {
			continue
		}
		seen[r.EventSequenceID] = true
		added = append(added, r)
	}

	if len(added) > 0 {
		s.Events = append(s.Events, added...)
		slices.SortFunc(s.Events, func(a, b telemetry.Record) int {
			return cmp.Compare(a.EventSequenceID, b.EventSequenceID)
		})
	}

	return added
}
