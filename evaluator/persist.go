package evaluator

import (
	"context"
	"time"

	"scouter/drift"
	"scouter/pkg/apperror"
	"scouter/pkg/database"
)

func persistSPC(ctx context.Context, db database.DB, entityID string, r drift.SPCResult, now time.Time) error {
	_, err := db.Exec(ctx,
		`INSERT INTO spc_drift (entity_id, feature, created_at, mean, zone, kind)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entityID, r.Feature, now, r.Mean, r.Zone, string(r.Kind))
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "persist spc drift row failed")
	}
	return nil
}

func persistPSI(ctx context.Context, db database.DB, entityID string, r drift.PSIResult, now time.Time) error {
	_, err := db.Exec(ctx,
		`INSERT INTO psi_drift (entity_id, feature, created_at, value, threshold, fired)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entityID, r.Feature, now, r.Value, r.Threshold, r.Fired)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "persist psi drift row failed")
	}
	return nil
}

func persistCustom(ctx context.Context, db database.DB, entityID string, r drift.CustomResult, now time.Time) error {
	_, err := db.Exec(ctx,
		`INSERT INTO custom_metric (entity_id, metric, created_at, value, baseline, fired)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entityID, r.Metric, now, r.Value, r.Baseline, r.Fired)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "persist custom metric row failed")
	}
	return nil
}

// persistAlert inserts the audit row a fired result leaves behind,
// independent of whether any dispatcher later succeeds in notifying
// anyone about it.
func persistAlert(ctx context.Context, db database.DB, a Alert) error {
	_, err := db.Exec(ctx,
		`INSERT INTO drift_alerts (entity_id, drift_type, feature, kind, value, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.EntityID, string(a.DriftType), a.Feature, a.Kind, a.Value, a.CreatedAt)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "persist drift alert row failed")
	}
	return nil
}
