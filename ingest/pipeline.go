package ingest

import (
	"context"
	"time"

	"scouter/pkg/apperror"
	"scouter/pkg/metrics"
	"scouter/profile"
	"scouter/wire"
)

// Pipeline is the transport-agnostic core every consumer (HTTP, gRPC,
// Kafka, RabbitMQ, Redis) funnels a decoded batch through: validate,
// resolve entities, and write. Each transport consumer owns decoding the
// wire bytes for its own envelope; everything after that is shared here.
type Pipeline struct {
	resolver  *EntityResolver
	writer    *Writer
	metrics   *metrics.Metrics
	transport string
}

// NewPipeline builds a Pipeline labeled transport for metrics purposes.
func NewPipeline(resolver *EntityResolver, writer *Writer, m *metrics.Metrics, transport string) *Pipeline {
	return &Pipeline{resolver: resolver, writer: writer, metrics: m, transport: transport}
}

// Ingest validates, resolves, and persists records. It returns the number
// of records accepted and the first error encountered, continuing past
// per-record validation failures so one malformed record in a batch
// doesn't reject its siblings.
func (p *Pipeline) Ingest(ctx context.Context, records []wire.Record) (accepted int, err error) {
	start := time.Now()
	resolved := make([]resolvedRecord, 0, len(records))

	for _, r := range records {
		if p.metrics != nil {
			p.metrics.RecordSampleReceived(p.transport, r.DriftType)
		}
		if validateErr := r.Validate(); validateErr != nil {
			p.reject(r, "invalid_record")
			if err == nil {
				err = validateErr
			}
			continue
		}
		entity, resolveErr := p.resolver.Resolve(ctx, r.Space, r.Name, r.Version, profile.DriftType(r.DriftType))
		if resolveErr != nil {
			p.reject(r, "entity_resolution_failed")
			if err == nil {
				err = resolveErr
			}
			continue
		}
		resolved = append(resolved, resolvedRecord{entityID: entity.EntityID, record: r})
	}

	if len(resolved) > 0 {
		if writeErr := p.writer.Write(ctx, resolved); writeErr != nil {
			return 0, apperror.Wrap(writeErr, apperror.CodeInternal, "batch write failed")
		}
	}

	if p.metrics != nil {
		latency := time.Since(start)
		for _, r := range resolved {
			p.metrics.RecordSampleAccepted(p.transport, r.record.DriftType, latency)
		}
	}
	return len(resolved), err
}

func (p *Pipeline) reject(r wire.Record, reason string) {
	if p.metrics != nil {
		p.metrics.RecordSampleRejected(p.transport, reason)
	}
}
