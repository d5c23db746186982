package ingest

import (
	"context"
	"fmt"
	"time"

	"scouter/pkg/apperror"
	"scouter/pkg/database"
	"scouter/pkg/logger"
)

// partitionedTable names a table range-partitioned by day on created_at,
// plus the retention window after which old partitions are dropped.
type partitionedTable struct {
	name      string
	retention time.Duration
}

// partitionedTables lists every table ingestion writes to, with the
// retention windows called out in the data model (7-90 days depending on
// kind; drift/alert tables get the longer end since they're derived and
// much smaller per row).
var partitionedTables = []partitionedTable{
	{name: "spc_sample", retention: 30 * 24 * time.Hour},
	{name: "psi_sample", retention: 30 * 24 * time.Hour},
	{name: "custom_sample", retention: 30 * 24 * time.Hour},
	{name: "llm_sample", retention: 90 * 24 * time.Hour},
	{name: "spc_drift", retention: 90 * 24 * time.Hour},
	{name: "psi_drift", retention: 90 * 24 * time.Hour},
	{name: "custom_metric", retention: 90 * 24 * time.Hour},
	{name: "llm_drift", retention: 90 * 24 * time.Hour},
	{name: "drift_alerts", retention: 90 * 24 * time.Hour},
}

// PartitionMaintainer creates tomorrow's (and the next few days') daily
// range partitions ahead of need and, on each run, drops the one daily
// partition dated exactly one retention window before today. Partitions
// older than that (for example, from days on which no run happened) are
// not dropped. Ingestion itself only ever writes to partitions that
// already exist.
type PartitionMaintainer struct {
	db          database.DB
	leadDays    int
}

// NewPartitionMaintainer builds a maintainer that keeps leadDays of future
// partitions created ahead of the current day.
func NewPartitionMaintainer(db database.DB, leadDays int) *PartitionMaintainer {
	if leadDays <= 0 {
		leadDays = 3
	}
	return &PartitionMaintainer{db: db, leadDays: leadDays}
}

// Run creates upcoming partitions and prunes expired ones for every
// tracked table, logging but not aborting on a single table's failure so
// one bad partition doesn't block maintenance of the rest.
func (m *PartitionMaintainer) Run(ctx context.Context) error {
	now := time.Now().UTC()
	var firstErr error
	for _, t := range partitionedTables {
		if err := m.createAhead(ctx, t, now); err != nil {
			logger.Error("ingest: failed to create partition ahead", "table", t.name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
		if err := m.pruneExpired(ctx, t, now); err != nil {
			logger.Error("ingest: failed to prune expired partitions", "table", t.name, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *PartitionMaintainer) createAhead(ctx context.Context, t partitionedTable, now time.Time) error {
	for i := 0; i <= m.leadDays; i++ {
		day := now.AddDate(0, 0, i)
		partition := dailyPartitionName(t.name, day)
		lower := day.Format("2006-01-02")
		upper := day.AddDate(0, 0, 1).Format("2006-01-02")
		stmt := fmt.Sprintf(
			`CREATE TABLE IF NOT EXISTS %s PARTITION OF %s FOR VALUES FROM ('%s') TO ('%s')`,
			partition, t.name, lower, upper)
		if _, err := m.db.Exec(ctx, stmt); err != nil {
			return apperror.Wrap(err, apperror.CodeInternal, "failed to create partition "+partition)
		}
	}
	return nil
}

func (m *PartitionMaintainer) pruneExpired(ctx context.Context, t partitionedTable, now time.Time) error {
	cutoff := now.Add(-t.retention)
	partition := dailyPartitionName(t.name, cutoff)
	stmt := fmt.Sprintf(`DROP TABLE IF EXISTS %s`, partition)
	if _, err := m.db.Exec(ctx, stmt); err != nil {
		return apperror.Wrap(err, apperror.CodeInternal, "failed to drop partition "+partition)
	}
	return nil
}

func dailyPartitionName(table string, day time.Time) string {
	return fmt.Sprintf("%s_%s", table, day.Format("20060102"))
}
