package ingest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scouter/wire"
)

func TestHTTPHandler_ServeHTTP_AcceptsBatch(t *testing.T) {
	db := &fakeDB{rows: []fakeRow{{values: []any{"e1", "space", "name", "1.0.0", "spc"}}}}
	handler := NewHTTPHandler(newTestPipeline(db))

	records := []wire.Record{wire.NewSPCRecord("space", "name", "1.0.0", time.Now(), "x", 1.0)}
	body, _ := json.Marshal(records)

	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var ack httpAck
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("failed to decode ack: %v", err)
	}
	if ack.Accepted != 1 {
		t.Errorf("expected accepted=1, got %d", ack.Accepted)
	}
}

func TestHTTPHandler_ServeHTTP_RejectsMalformedBody(t *testing.T) {
	handler := NewHTTPHandler(newTestPipeline(&fakeDB{}))
	req := httptest.NewRequest(http.MethodPost, "/ingest", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rec.Code)
	}
}

func TestHTTPHandler_ServeHTTP_RejectsNonPost(t *testing.T) {
	handler := NewHTTPHandler(newTestPipeline(&fakeDB{}))
	req := httptest.NewRequest(http.MethodGet, "/ingest", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405, got %d", rec.Code)
	}
}
