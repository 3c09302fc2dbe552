package collector

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pixil98/mindmaze/internal/telemetry"
)

func (c *Collector) Router() *mux.Router {
	r := mux.NewRouter()
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	api := r.PathPrefix("/api").Subrouter()
	api.MethodNotAllowedHandler = r.MethodNotAllowedHandler
	api.NotFoundHandler = r.NotFoundHandler
	api.HandleFunc("/log", c.handleLog).Methods(http.MethodPost)
	api.HandleFunc("/sessions", c.handleSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{sessionId}/events", c.handleEvents).Methods(http.MethodGet)
	api.Handle("/live", c.hub).Methods(http.MethodGet)

	return r
}

func (c *Collector) handleLog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, c.maxBody)

	var b telemetry.Batch
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "decoding batch: "+err.Error())
		return
	}

	res, err := c.Ingest(&b)
	switch {
	case errors.Is(err, ErrInvalidBatch):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("ingesting batch", "session", b.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "storing batch failed")
		return
	}

	slog.Debug("batch ingested", "session", b.SessionID, "accepted", res.Accepted, "duplicates", res.Duplicates, "final", b.IsFinalChunk)
	writeJSON(w, http.StatusOK, res)
}

type sessionSummary struct {
	SessionID     string `json:"sessionId"`
	ParticipantID string `json:"participantId"`
	Events        int    `json:"events"`
	Final         bool   `json:"final"`
}

func (c *Collector) handleSessions(w http.ResponseWriter, _ *http.Request) {
	ids := c.store.Ids()
	out := make([]sessionSummary, 0, len(ids))
	for _, id := range ids {
		s, ok := c.store.Get(id)
		if !ok {
			continue
		}
		out = append(out, sessionSummary{
			SessionID:     id,
			ParticipantID: s.ParticipantID,
			Events:        len(s.Events),
			Final:         s.Final,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (c *Collector) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	s, ok := c.store.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, s.Events)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
