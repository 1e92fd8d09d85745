package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/convo-recap/internal/db"
)

// statusPollInterval is how often the stream re-reads the run ledger.
const statusPollInterval = time.Second

// SSEWriter helps write Server-Sent Events
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	return &SSEWriter{w: w, flusher: flusher}, nil
}

// WriteEvent sends an SSE event
func (s *SSEWriter) WriteEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\n", event); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonData); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// WriteError sends an error event
func (s *SSEWriter) WriteError(message string) {
	s.WriteEvent("error", map[string]string{"error": message}) //nolint:errcheck
}

// WriteComplete sends a completion event
func (s *SSEWriter) WriteComplete(processingID, status string) {
	s.WriteEvent("complete", map[string]string{ //nolint:errcheck
		"processing_id": processingID,
		"status":        status,
	})
}

// handleStatusStream streams run status updates as SSE until the run reaches
// a terminal state or the client disconnects. Updates come from polling the
// ledger, so a stream watching a run owned by another process still works.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	processingID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		vErr := &ErrValidation{Field: "id", Message: "must be a UUID"}
		s.errorResponse(w, HTTPStatus(vErr), vErr.Error())
		return
	}

	run, err := s.runs.GetRun(r.Context(), processingID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if run == nil {
		nfErr := &ErrRunNotFound{ProcessingID: processingID}
		s.errorResponse(w, HTTPStatus(nfErr), nfErr.Error())
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := sse.WriteEvent("run_update", run); err != nil {
		return
	}
	if db.IsTerminal(run.Status) {
		sse.WriteComplete(processingID.String(), run.Status)
		return
	}

	lastStatus, lastProgress := run.Status, run.Progress
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}

		run, err := s.runs.GetRun(r.Context(), processingID)
		if err != nil {
			sse.WriteError("failed to load run")
			return
		}
		if run == nil {
			sse.WriteError("run disappeared")
			return
		}

		if run.Status != lastStatus || run.Progress != lastProgress {
			if err := sse.WriteEvent("run_update", run); err != nil {
				return
			}
			lastStatus, lastProgress = run.Status, run.Progress
		}

		if db.IsTerminal(run.Status) {
			sse.WriteComplete(processingID.String(), run.Status)
			return
		}
	}
}
