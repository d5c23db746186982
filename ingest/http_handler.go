package ingest

import (
	"encoding/json"
	"net/http"

	"scouter/pkg/logger"
	"scouter/wire"
)

// HTTPHandler exposes the ingestion pipeline as a single POST endpoint
// accepting a JSON array of wire.Record values, the counterpart to
// transport.HTTPProducer's batch-as-array POST.
type HTTPHandler struct {
	pipeline *Pipeline
}

// NewHTTPHandler builds an HTTPHandler around pipeline.
func NewHTTPHandler(pipeline *Pipeline) *HTTPHandler {
	return &HTTPHandler{pipeline: pipeline}
}

type httpAck struct {
	Accepted int    `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// ServeHTTP decodes the batch and runs it through the pipeline, responding
// 207 when some records were rejected, 400 for a malformed body, and 200
// when every record in the batch was accepted.
func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var records []wire.Record
	if err := json.NewDecoder(r.Body).Decode(&records); err != nil {
		writeAck(w, http.StatusBadRequest, httpAck{Error: "malformed request body"})
		return
	}

	accepted, err := h.pipeline.Ingest(r.Context(), records)
	if err != nil {
		logger.Warn("ingest: http batch had rejected records", "accepted", accepted, "total", len(records), "error", err)
		writeAck(w, http.StatusMultiStatus, httpAck{Accepted: accepted, Error: err.Error()})
		return
	}
	writeAck(w, http.StatusOK, httpAck{Accepted: accepted})
}

func writeAck(w http.ResponseWriter, status int, ack httpAck) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ack)
}
