// ABOUTME: HTTP ingest surface for transport batches.
// ABOUTME: Decodes the envelope batch, runs the dispatcher, and returns the aggregate report.

package dispatch

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/2389/chatcore/internal/event"
)

// batchRequest is the wire shape the transport posts.
type batchRequest struct {
	Records []event.Envelope `json:"records"`
}

// NewHTTPHandler returns the ingest handler. A malformed batch body fails the
// whole batch with 400; per-item failures come back in the 200 report.
func NewHTTPHandler(d *Dispatcher, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ingest")

	mux := http.NewServeMux()

	mux.HandleFunc("/batch", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		var req batchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			logger.Error("rejecting malformed batch", "error", err)
			http.Error(w, "malformed batch", http.StatusBadRequest)
			return
		}

		result, err := d.ProcessBatch(r.Context(), req.Records)
		if err != nil {
			logger.Error("batch aborted", "error", err)
			http.Error(w, "batch aborted", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(result); err != nil {
			logger.Error("failed to write batch report", "error", err)
		}
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return mux
}
