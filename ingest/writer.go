package ingest

import (
	"context"
	"sort"

	"scouter/pkg/apperror"
	"scouter/pkg/database"
	"scouter/pkg/logger"
	"scouter/wire"
)

// Writer persists resolved records into their kind-specific partitioned
// table. Within one batch, rows are sorted by (entity_id, feature/metric,
// bin_id) before insertion so two concurrent batches touching overlapping
// keys always acquire row locks in the same order and cannot deadlock.
type Writer struct {
	db database.DB
}

// NewWriter builds a Writer backed by db.
func NewWriter(db database.DB) *Writer {
	return &Writer{db: db}
}

type resolvedRecord struct {
	entityID string
	record   wire.Record
}

// Write groups resolved, entity-tagged records by kind and inserts each
// group's rows into its table. SPC, PSI and Custom rows use ON CONFLICT DO
// NOTHING on the uniqueness key, so redelivery of an already-written
// record is a no-op rather than a duplicate row. LLM rows have no
// uniqueness key: a redelivered LLM record is inserted, and enqueued in
// llm_drift_record, again.
func (w *Writer) Write(ctx context.Context, resolved []resolvedRecord) error {
	byKind := map[wire.RecordType][]resolvedRecord{}
	for _, r := range resolved {
		byKind[r.record.RecordType] = append(byKind[r.record.RecordType], r)
	}

	for kind, rows := range byKind {
		var err error
		switch kind {
		case wire.RecordSPC:
			err = w.writeSPC(ctx, rows)
		case wire.RecordPSI:
			err = w.writePSI(ctx, rows)
		case wire.RecordCustom:
			err = w.writeCustom(ctx, rows)
		case wire.RecordLLM:
			err = w.writeLLM(ctx, rows)
		default:
			logger.Warn("ingest: dropping record of unknown kind", "kind", kind)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeSPC(ctx context.Context, rows []resolvedRecord) error {
	type row struct {
		entityID  string
		feature   string
		value     float64
		createdAt any
	}
	decoded := make([]row, 0, len(rows))
	for _, r := range rows {
		payload, err := r.record.DecodeSPC()
		if err != nil {
			return err
		}
		decoded = append(decoded, row{r.entityID, payload.Feature, payload.Value, r.record.CreatedAt})
	}
	sort.Slice(decoded, func(i, j int) bool {
		if decoded[i].entityID != decoded[j].entityID {
			return decoded[i].entityID < decoded[j].entityID
		}
		return decoded[i].feature < decoded[j].feature
	})
	for _, d := range decoded {
		_, err := w.db.Exec(ctx,
			`INSERT INTO spc_sample (entity_id, feature, value, created_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (entity_id, feature, created_at) DO NOTHING`,
			d.entityID, d.feature, d.value, d.createdAt)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeInternal, "failed to insert spc_sample")
		}
	}
	return nil
}

func (w *Writer) writePSI(ctx context.Context, rows []resolvedRecord) error {
	type row struct {
		entityID string
		feature  string
		binID    uint32
		binCount uint32
		created  any
	}
	decoded := make([]row, 0, len(rows))
	for _, r := range rows {
		payload, err := r.record.DecodePSI()
		if err != nil {
			return err
		}
		decoded = append(decoded, row{r.entityID, payload.Feature, payload.BinID, payload.BinCount, r.record.CreatedAt})
	}
	sort.Slice(decoded, func(i, j int) bool {
		if decoded[i].entityID != decoded[j].entityID {
			return decoded[i].entityID < decoded[j].entityID
		}
		if decoded[i].feature != decoded[j].feature {
			return decoded[i].feature < decoded[j].feature
		}
		return decoded[i].binID < decoded[j].binID
	})
	for _, d := range decoded {
		_, err := w.db.Exec(ctx,
			`INSERT INTO psi_sample (entity_id, feature, bin_id, bin_count, created_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (entity_id, feature, bin_id, created_at) DO NOTHING`,
			d.entityID, d.feature, d.binID, d.binCount, d.created)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeInternal, "failed to insert psi_sample")
		}
	}
	return nil
}

func (w *Writer) writeCustom(ctx context.Context, rows []resolvedRecord) error {
	type row struct {
		entityID string
		metric   string
		value    float64
		created  any
	}
	decoded := make([]row, 0, len(rows))
	for _, r := range rows {
		payload, err := r.record.DecodeCustom()
		if err != nil {
			return err
		}
		decoded = append(decoded, row{r.entityID, payload.Metric, payload.Value, r.record.CreatedAt})
	}
	sort.Slice(decoded, func(i, j int) bool {
		if decoded[i].entityID != decoded[j].entityID {
			return decoded[i].entityID < decoded[j].entityID
		}
		return decoded[i].metric < decoded[j].metric
	})
	for _, d := range decoded {
		_, err := w.db.Exec(ctx,
			`INSERT INTO custom_sample (entity_id, metric, value, created_at)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (entity_id, metric, created_at) DO NOTHING`,
			d.entityID, d.metric, d.value, d.created)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeInternal, "failed to insert custom_sample")
		}
	}
	return nil
}

func (w *Writer) writeLLM(ctx context.Context, rows []resolvedRecord) error {
	sort.Slice(rows, func(i, j int) bool { return rows[i].entityID < rows[j].entityID })
	for _, r := range rows {
		payload, err := r.record.DecodeLLM()
		if err != nil {
			return err
		}
		_, err = w.db.Exec(ctx,
			`INSERT INTO llm_sample (entity_id, context, prompt, created_at)
			 VALUES ($1, $2, $3, $4)`,
			r.entityID, payload.Context, payload.Prompt, r.record.CreatedAt)
		if err != nil {
			return apperror.Wrap(err, apperror.CodeInternal, "failed to insert llm_sample")
		}
		if _, err := w.db.Exec(ctx,
			`INSERT INTO llm_drift_record (entity_id, status, created_at) VALUES ($1, 'pending', $2)`,
			r.entityID, r.record.CreatedAt); err != nil {
			return apperror.Wrap(err, apperror.CodeInternal, "failed to enqueue llm_drift_record")
		}
	}
	return nil
}
