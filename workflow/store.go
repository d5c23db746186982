package workflow

import (
	"context"
	"encoding/json"
	"time"

	"scouter/pkg/apperror"
	"scouter/pkg/database"
	"scouter/profile"
)

// pendingRecord is one row of llm_drift_record, the FIFO queue ingest
// writes a sampled LLM interaction onto.
type pendingRecord struct {
	UID       string
	EntityID  string
	CreatedAt time.Time
}

// claimRecord atomically moves one pending record into processing, the
// same conditional-UPDATE single-flight pattern evaluator.claimProfile
// uses against the profile table.
func claimRecord(ctx context.Context, db database.DB, uid string, now time.Time) (bool, error) {
	tag, err := db.Exec(ctx,
		`UPDATE llm_drift_record SET status = 'processing', processing_started_at = $1, updated_at = $1
		 WHERE uid = $2 AND status != 'processing'`,
		now, uid)
	if err != nil {
		return false, apperror.Wrap(err, apperror.CodeInternal, "claim llm drift record failed")
	}
	return tag.RowsAffected() == 1, nil
}

// reclaimStaleRecords resets records stuck in processing past maxAge back
// to pending, so a crashed worker doesn't strand a record forever.
func reclaimStaleRecords(ctx context.Context, db database.DB, maxAge time.Duration, now time.Time) (int64, error) {
	tag, err := db.Exec(ctx,
		`UPDATE llm_drift_record SET status = 'pending', processing_started_at = NULL, updated_at = $1
		 WHERE status = 'processing' AND processing_started_at < $2`,
		now, now.Add(-maxAge))
	if err != nil {
		return 0, apperror.Wrap(err, apperror.CodeInternal, "stale record reclaim failed")
	}
	return tag.RowsAffected(), nil
}

// fetchPending loads up to limit records still awaiting execution, FIFO by
// created_at.
func fetchPending(ctx context.Context, db database.DB, limit int) ([]pendingRecord, error) {
	rows, err := db.Query(ctx,
		`SELECT uid, entity_id, created_at FROM llm_drift_record
		 WHERE status = 'pending'
		 ORDER BY created_at ASC
		 LIMIT $1`,
		limit)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "fetch pending llm drift records failed")
	}
	defer rows.Close()

	var out []pendingRecord
	for rows.Next() {
		var r pendingRecord
		if err := rows.Scan(&r.UID, &r.EntityID, &r.CreatedAt); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInternal, "scan pending llm drift record failed")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// finishRecord writes the terminal status (completed or failed) a run
// ended in and clears the processing latch.
func finishRecord(ctx context.Context, db database.DB, uid, status string, now time.Time) error {
	_, err := db.Exec(ctx,
		`UPDATE llm_drift_record SET status = $1, processing_started_at = NULL, updated_at = $2
		 WHERE uid = $3`,
		status, now, uid)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "finish llm drift record failed")
	}
	return nil
}

// loadLLMProfile loads the active LLM profile owning entityID. A record
// arrives with only an entity_id; the owning profile carries the
// Workflow and metric definitions needed to execute it.
func loadLLMProfile(ctx context.Context, db database.DB, entityID string) (*profile.Profile, error) {
	var uid string
	var llmRaw []byte
	err := db.QueryRow(ctx,
		`SELECT uid, llm FROM profile WHERE entity_id = $1 AND drift_type = 'llm' AND active = true LIMIT 1`,
		entityID).Scan(&uid, &llmRaw)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeNotFound, "no active llm profile for entity")
	}

	var llm profile.LLMProfile
	if err := json.Unmarshal(llmRaw, &llm); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInvalidProfile, "decode llm profile failed")
	}
	return &profile.Profile{UID: uid, EntityID: entityID, DriftType: profile.DriftLLM, LLM: &llm}, nil
}

// loadSampleContext loads the context map of the llm_sample row written
// alongside this queue entry; the writer inserts both in the same call
// with a shared (entity_id, created_at) pair.
func loadSampleContext(ctx context.Context, db database.DB, entityID string, createdAt time.Time) (map[string]any, error) {
	var raw []byte
	err := db.QueryRow(ctx,
		`SELECT context FROM llm_sample WHERE entity_id = $1 AND created_at = $2 LIMIT 1`,
		entityID, createdAt).Scan(&raw)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeNotFound, "llm sample not found for record")
	}

	var sampleContext map[string]any
	if err := json.Unmarshal(raw, &sampleContext); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeMalformedPayload, "decode llm sample context failed")
	}
	return sampleContext, nil
}

// persistMetric writes one terminal task's derived score as an llm_drift
// row, the table drift queries read alongside spc_drift/psi_drift/
// custom_metric.
func persistMetric(ctx context.Context, db database.DB, entityID, metric string, value float64, now time.Time) error {
	_, err := db.Exec(ctx,
		`INSERT INTO llm_drift (entity_id, metric, created_at, value) VALUES ($1, $2, $3, $4)`,
		entityID, metric, now, value)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "persist llm drift row failed")
	}
	return nil
}
