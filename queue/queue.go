package queue

import (
	"context"
	"sync"
	"time"

	"scouter/pkg/apperror"
	"scouter/pkg/logger"
	"scouter/profile"
	"scouter/wire"
)

// DefaultCapacity is the default per-profile queue bound in records,
// counting accumulated-but-unmaterialized samples and materialized records
// still in the outbox. A batch the sender has taken out of the outbox and
// is sending does not count against it.
const DefaultCapacity = 10_000

// DefaultShutdownTimeout bounds how long shutdown waits for producer acks
// when the caller's context has no deadline. A send still in progress when
// it expires is not cancelled.
const DefaultShutdownTimeout = 10 * time.Second

// DefaultFlushInterval is the timed-flush period used when a caller does
// not configure one explicitly.
const DefaultFlushInterval = 5 * time.Second

// Mode selects how Insert* behaves when the queue is at capacity.
type Mode int

const (
	// ModeSync blocks the inserting goroutine until space frees up,
	// matching a synchronous transport's cooperative backpressure.
	ModeSync Mode = iota
	// ModeAsync returns apperror.ErrQueueFull immediately instead of
	// blocking, matching an asynchronous transport.
	ModeAsync
)

// Sink is the boundary between a Queue and its transport producer. A
// transport.Producer satisfies this without the queue package importing
// transport, avoiding a dependency cycle.
type Sink interface {
	Send(ctx context.Context, records []wire.Record) error
}

// Queue is bound to a single profile alias (one entity + drift type) and
// buffers inserted samples until a size threshold or timer flushes them
// into wire.Record batches handed to a Sink.
type Queue struct {
	entity         profile.Entity
	driftType      profile.DriftType
	allowedMetrics map[string]bool

	mode           Mode
	capacity       int
	flushThreshold int
	flushInterval  time.Duration
	sink           Sink

	mu     sync.Mutex
	cond   *sync.Cond
	acc    *accumulator
	outbox []wire.Record
	closed bool

	llmSampleRate int

	stopTicker chan struct{}
	senderDone chan struct{}
}

// Option configures a Queue at construction.
type Option func(*Queue)

// WithMode overrides the default ModeSync backpressure behavior.
func WithMode(m Mode) Option { return func(q *Queue) { q.mode = m } }

// WithCapacity overrides DefaultCapacity.
func WithCapacity(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithFlushThreshold overrides the buffered-sample count that triggers an
// immediate flush. Defaults to the SPC feature sample size when the
// profile carries an SPC baseline, otherwise DefaultCapacity/20.
func WithFlushThreshold(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.flushThreshold = n
		}
	}
}

// WithFlushInterval overrides DefaultFlushInterval.
func WithFlushInterval(d time.Duration) Option {
	return func(q *Queue) {
		if d > 0 {
			q.flushInterval = d
		}
	}
}

// WithLLMSampleRate overrides the 1-in-N LLM sampling rate (default 1,
// every insertion materialized).
func WithLLMSampleRate(n int) Option {
	return func(q *Queue) {
		if n > 0 {
			q.llmSampleRate = n
		}
	}
}

// New binds a Queue to one entity's profile. The profile's populated
// variant selects the drift type; SPC/PSI baselines are used to validate
// inserted feature names, Custom metric names, and LLM sample rate.
func New(entity profile.Entity, prof *profile.Profile, sink Sink, opts ...Option) (*Queue, error) {
	if prof == nil {
		return nil, apperror.New(apperror.CodeNilInput, "queue requires a non-nil profile")
	}
	if sink == nil {
		return nil, apperror.New(apperror.CodeNilInput, "queue requires a non-nil sink")
	}

	q := &Queue{
		entity:         entity,
		driftType:      prof.DriftType,
		capacity:       DefaultCapacity,
		flushInterval:  DefaultFlushInterval,
		flushThreshold: DefaultCapacity / 20,
		sink:           sink,
		stopTicker:     make(chan struct{}),
		senderDone:     make(chan struct{}),
		llmSampleRate:  1,
	}
	q.cond = sync.NewCond(&q.mu)

	var spc *profile.SPCProfile
	var psi *profile.PSIProfile
	switch prof.DriftType {
	case profile.DriftSPC:
		if prof.SPC == nil {
			return nil, apperror.New(apperror.CodeInvalidProfile, "spc drift type requires an spc baseline")
		}
		spc = prof.SPC
		for _, f := range spc.Features {
			if f.SampleSize > 0 {
				q.flushThreshold = f.SampleSize
				break
			}
		}
	case profile.DriftPSI:
		if prof.PSI == nil {
			return nil, apperror.New(apperror.CodeInvalidProfile, "psi drift type requires a psi baseline")
		}
		psi = prof.PSI
	case profile.DriftCustom:
		if prof.Custom == nil {
			return nil, apperror.New(apperror.CodeInvalidProfile, "custom drift type requires a custom baseline")
		}
		q.allowedMetrics = make(map[string]bool, len(prof.Custom.Metrics))
		for _, m := range prof.Custom.Metrics {
			q.allowedMetrics[m.Name] = true
		}
	case profile.DriftLLM:
		if prof.LLM == nil {
			return nil, apperror.New(apperror.CodeInvalidProfile, "llm drift type requires an llm baseline")
		}
		if prof.LLM.SampleRate > 0 {
			q.llmSampleRate = prof.LLM.SampleRate
		}
	default:
		return nil, apperror.NewWithField(apperror.CodeInvalidDriftType, "unknown drift type", string(prof.DriftType))
	}

	for _, opt := range opts {
		opt(q)
	}
	q.acc = newAccumulator(entity, prof.DriftType, spc, psi, q.llmSampleRate)

	go q.tickerLoop()
	go q.senderLoop()
	return q, nil
}

func (q *Queue) bufferedLocked() int {
	return q.acc.pending + len(q.outbox)
}

// waitForRoomLocked blocks (ModeSync) or returns apperror.ErrQueueFull
// (ModeAsync) while the queue is at capacity. Caller holds q.mu.
func (q *Queue) waitForRoomLocked() error {
	for q.bufferedLocked() >= q.capacity && !q.closed {
		if q.mode == ModeAsync {
			return apperror.ErrQueueFull
		}
		q.cond.Wait()
	}
	if q.closed {
		return apperror.New(apperror.CodeQueueFull, "queue is shutting down")
	}
	return nil
}

// InsertFeatures validates and buffers one SPC or PSI sample.
func (q *Queue) InsertFeatures(ctx context.Context, sample Features) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.waitForRoomLocked(); err != nil {
		return err
	}
	if err := q.acc.insertFeatures(sample, time.Now()); err != nil {
		return err
	}
	if q.acc.pending >= q.flushThreshold {
		q.flushLocked()
	}
	return nil
}

// InsertMetrics validates and buffers one Custom sample.
func (q *Queue) InsertMetrics(ctx context.Context, sample Metrics) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.waitForRoomLocked(); err != nil {
		return err
	}
	if err := q.acc.insertMetrics(sample, q.allowedMetrics, time.Now()); err != nil {
		return err
	}
	if q.acc.pending >= q.flushThreshold {
		q.flushLocked()
	}
	return nil
}

// InsertLLM offers one LLM interaction to the queue's sample-rate counter.
func (q *Queue) InsertLLM(ctx context.Context, rec LlmRecord) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.waitForRoomLocked(); err != nil {
		return err
	}
	q.acc.insertLLM(rec, time.Now())
	if q.acc.pending >= q.flushThreshold {
		q.flushLocked()
	}
	return nil
}

// flushLocked materializes buffered samples into the outbox. Caller holds
// q.mu.
func (q *Queue) flushLocked() {
	records := q.acc.materialize()
	if len(records) == 0 {
		return
	}
	q.outbox = append(q.outbox, records...)
	q.cond.Broadcast()
}

func (q *Queue) tickerLoop() {
	t := time.NewTicker(q.flushInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			q.mu.Lock()
			q.flushLocked()
			q.mu.Unlock()
		case <-q.stopTicker:
			return
		}
	}
}

// senderLoop drains the outbox to the sink. A send failure is logged and
// retried after a short backoff; the batch stays in the outbox so no
// record is lost, mirroring the at-least-once delivery the rest of the
// pipeline assumes.
func (q *Queue) senderLoop() {
	defer close(q.senderDone)
	backoff := 200 * time.Millisecond
	const maxBackoff = 10 * time.Second
	for {
		q.mu.Lock()
		for len(q.outbox) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.outbox) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		batch := q.outbox
		q.outbox = nil
		q.mu.Unlock()

		if err := q.sink.Send(context.Background(), batch); err != nil {
			logger.Error("queue: producer send failed, retrying", "error", err, "records", len(batch))
			time.Sleep(backoff)
			q.mu.Lock()
			q.outbox = append(batch, q.outbox...)
			q.cond.Broadcast()
			q.mu.Unlock()
			if backoff < maxBackoff {
				backoff *= 2
			}
			continue
		}
		backoff = 200 * time.Millisecond
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
	}
}

// Shutdown flushes all accumulators, stops the flush ticker, and waits up
// to timeout for the sender loop to drain the outbox and exit. On timeout
// it returns an error; the sender loop is not stopped and keeps sending
// (and retrying) what remains in the outbox.
func (q *Queue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	q.flushLocked()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
	close(q.stopTicker)

	timeout := DefaultShutdownTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if d := time.Until(deadline); d > 0 {
			timeout = d
		}
	}
	select {
	case <-q.senderDone:
		return nil
	case <-time.After(timeout):
		return apperror.New(apperror.CodeTimeout, "queue shutdown timed out waiting for producer acks")
	}
}

// Depth reports the number of buffered-plus-materialized records, for
// metrics and tests.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bufferedLocked()
}
