package evaluator

import (
	"context"
	"encoding/json"
	"time"

	"scouter/pkg/apperror"
	"scouter/pkg/database"
	"scouter/profile"
)

// claimProfile atomically transitions one pending profile into processing.
// The conditional WHERE clause makes this lost-update safe: if two
// schedulers race on the same uid, exactly one UPDATE affects a row and
// the other's RowsAffected comes back 0.
func claimProfile(ctx context.Context, db database.DB, uid string, now time.Time) (bool, error) {
	tag, err := db.Exec(ctx,
		`UPDATE profile SET status = 'processing', processing_started_at = $1, updated_at = $1
		 WHERE uid = $2 AND active = true AND status != 'processing'`,
		now, uid)
	if err != nil {
		return false, apperror.Wrap(err, apperror.CodeInternal, "claim profile failed")
	}
	return tag.RowsAffected() == 1, nil
}

// reclaimStale resets every profile stuck in processing past maxAge back
// to pending, so a worker that crashed mid-evaluation doesn't strand its
// profile forever.
func reclaimStale(ctx context.Context, db database.DB, maxAge time.Duration, now time.Time) (int64, error) {
	tag, err := db.Exec(ctx,
		`UPDATE profile SET status = 'pending', processing_started_at = NULL, updated_at = $1
		 WHERE status = 'processing' AND processing_started_at < $2`,
		now, now.Add(-maxAge))
	if err != nil {
		return 0, apperror.Wrap(err, apperror.CodeInternal, "stale reclaim failed")
	}
	return tag.RowsAffected(), nil
}

// fetchEligible loads up to limit active profiles whose next_run has
// elapsed, ordered so the most overdue profiles are claimed first.
func fetchEligible(ctx context.Context, db database.DB, now time.Time, limit int) ([]*profile.Profile, error) {
	rows, err := db.Query(ctx,
		`SELECT uid, entity_id, drift_type, scouter_version, created_at, updated_at, active,
		        schedule, next_run, previous_run, status, processing_started_at, spc, psi, custom, llm
		 FROM profile
		 WHERE active = true AND next_run <= $1 AND status != 'processing'
		 ORDER BY next_run ASC
		 LIMIT $2`,
		now, limit)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "fetch eligible profiles failed")
	}
	defer rows.Close()

	var out []*profile.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*profile.Profile, error) {
	var (
		p                            profile.Profile
		processingAt                 *time.Time
		spcRaw, psiRaw, customRaw, llmRaw []byte
	)
	if err := row.Scan(&p.UID, &p.EntityID, &p.DriftType, &p.ScouterVersion, &p.CreatedAt, &p.UpdatedAt,
		&p.Active, &p.Schedule, &p.NextRun, &p.PreviousRun, &p.Status, &processingAt,
		&spcRaw, &psiRaw, &customRaw, &llmRaw); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "scan profile row failed")
	}
	p.ProcessingAt = processingAt

	switch p.DriftType {
	case profile.DriftSPC:
		var spc profile.SPCProfile
		if err := json.Unmarshal(spcRaw, &spc); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidProfile, "decode spc baseline failed")
		}
		p.SPC = &spc
	case profile.DriftPSI:
		var psi profile.PSIProfile
		if err := json.Unmarshal(psiRaw, &psi); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidProfile, "decode psi baseline failed")
		}
		p.PSI = &psi
	case profile.DriftCustom:
		var custom profile.CustomProfile
		if err := json.Unmarshal(customRaw, &custom); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidProfile, "decode custom baseline failed")
		}
		p.Custom = &custom
	case profile.DriftLLM:
		var llm profile.LLMProfile
		if err := json.Unmarshal(llmRaw, &llm); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInvalidProfile, "decode llm baseline failed")
		}
		p.LLM = &llm
	}
	return &p, nil
}

// persistTick writes back the lifecycle fields a completed or failed
// evaluation advanced: status, next_run, previous_run, and the cleared
// processing latch.
func persistTick(ctx context.Context, db database.DB, p *profile.Profile) error {
	_, err := db.Exec(ctx,
		`UPDATE profile SET status = $1, next_run = $2, previous_run = $3,
		        processing_started_at = $4, updated_at = $5
		 WHERE uid = $6`,
		p.Status, p.NextRun, p.PreviousRun, p.ProcessingAt, p.UpdatedAt, p.UID)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "persist evaluation tick failed")
	}
	return nil
}
