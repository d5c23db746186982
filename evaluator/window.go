package evaluator

import (
	"context"
	"time"

	"scouter/pkg/apperror"
	"scouter/pkg/database"
)

// readSPCWindow returns every spc_sample value recorded for (entityID,
// feature) in [since, until), oldest first, matching the order drift.SPC
// needs for its run-length checks.
func readSPCWindow(ctx context.Context, db database.DB, entityID, feature string, since, until time.Time) ([]float64, error) {
	rows, err := db.Query(ctx,
		`SELECT value FROM spc_sample
		 WHERE entity_id = $1 AND feature = $2 AND created_at >= $3 AND created_at < $4
		 ORDER BY created_at ASC`,
		entityID, feature, since, until)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "read spc window failed")
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInternal, "scan spc sample failed")
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// readPSIWindow sums every psi_sample bin count for (entityID, feature) in
// [since, until), keyed by bin id, the shape drift.PSI's observedCounts
// parameter expects.
func readPSIWindow(ctx context.Context, db database.DB, entityID, feature string, since, until time.Time) (map[int]int, error) {
	rows, err := db.Query(ctx,
		`SELECT bin_id, SUM(bin_count) FROM psi_sample
		 WHERE entity_id = $1 AND feature = $2 AND created_at >= $3 AND created_at < $4
		 GROUP BY bin_id`,
		entityID, feature, since, until)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeInternal, "read psi window failed")
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var binID, count int
		if err := rows.Scan(&binID, &count); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeInternal, "scan psi sample failed")
		}
		out[binID] = count
	}
	return out, rows.Err()
}

// readCustomWindow averages every custom_sample value for (entityID,
// metric) in [since, until). ok is false when the window has no
// observations, which the caller treats as nothing to evaluate rather
// than an error.
func readCustomWindow(ctx context.Context, db database.DB, entityID, metric string, since, until time.Time) (value float64, ok bool, err error) {
	var avg *float64
	row := db.QueryRow(ctx,
		`SELECT AVG(value) FROM custom_sample
		 WHERE entity_id = $1 AND metric = $2 AND created_at >= $3 AND created_at < $4`,
		entityID, metric, since, until)
	if err := row.Scan(&avg); err != nil {
		return 0, false, apperror.Wrap(err, apperror.CodeInternal, "read custom window failed")
	}
	if avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}
