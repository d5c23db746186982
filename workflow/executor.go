package workflow

import (
	"context"
	"sync"
	"time"

	"scouter/pkg/apperror"
	"scouter/pkg/config"
	"scouter/pkg/database"
	"scouter/pkg/logger"
	"scouter/pkg/metrics"
	"scouter/profile"
)

const defaultStaleReclaimAfter = 15 * time.Minute

// Executor drains llm_drift_record FIFO by claim-and-advance, the same
// status machine shape evaluator.Scheduler runs against the profile
// table: reclaim-stale, fetch a batch, fan out to a fixed pool of M
// worker goroutines, the same task-channel-plus-worker-pool shape
// grounded in the teacher's Monte Carlo engine.
type Executor struct {
	db          database.DB
	judge       JudgeClient
	metrics     *metrics.Metrics
	concurrency int // M parallel records
	taskCap     int // per-workflow task concurrency cap
	taskTimeout time.Duration
	staleAfter  time.Duration
	batchSize   int
}

// NewExecutor builds an Executor from cfg, defaulting any unset knob to
// the values the workflow engine names: M=4, per-workflow task cap 4, a
// 60s per-task timeout.
func NewExecutor(db database.DB, judge JudgeClient, m *metrics.Metrics, cfg config.WorkflowConfig) *Executor {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	taskCap := cfg.TaskConcurrencyCap
	if taskCap <= 0 {
		taskCap = 4
	}
	taskTimeout := cfg.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = 60 * time.Second
	}
	return &Executor{
		db: db, judge: judge, metrics: m,
		concurrency: concurrency, taskCap: taskCap, taskTimeout: taskTimeout,
		staleAfter: defaultStaleReclaimAfter, batchSize: concurrency * 4,
	}
}

// Run polls for pending records every pollInterval until ctx is canceled.
func (e *Executor) Run(ctx context.Context, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if err := e.tick(ctx); err != nil && ctx.Err() == nil {
			logger.Error("workflow: executor tick failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (e *Executor) tick(ctx context.Context) error {
	now := time.Now()
	if _, err := reclaimStaleRecords(ctx, e.db, e.staleAfter, now); err != nil {
		return err
	}

	records, err := fetchPending(ctx, e.db, e.batchSize)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	work := make(chan pendingRecord, len(records))
	for _, r := range records {
		work <- r
	}
	close(work)

	var wg sync.WaitGroup
	for w := 0; w < e.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range work {
				if ctx.Err() != nil {
					return
				}
				e.runOne(ctx, r)
			}
		}()
	}
	wg.Wait()
	return nil
}

// runOne claims r and, only on a successful single-flight claim, executes
// its workflow and persists the terminal status.
func (e *Executor) runOne(ctx context.Context, r pendingRecord) {
	claimed, err := claimRecord(ctx, e.db, r.UID, time.Now())
	if err != nil {
		logger.Error("workflow: claim failed", "uid", r.UID, "error", err)
		return
	}
	if !claimed {
		return
	}

	runErr := e.execute(ctx, r)
	status := "completed"
	if runErr != nil {
		status = "failed"
		logger.Error("workflow: record failed", "uid", r.UID, "entity_id", r.EntityID, "error", runErr)
	}
	if e.metrics != nil {
		e.metrics.RecordWorkflowRun(runErr == nil)
	}
	if err := finishRecord(ctx, e.db, r.UID, status, time.Now()); err != nil {
		logger.Error("workflow: failed to persist record status", "uid", r.UID, "error", err)
	}
}

// execute materializes the owning profile's workflow DAG and runs it
// layer by layer. Every terminal task's score is persisted as soon as it
// completes, so a later failure never rolls back metrics a prior layer
// already emitted. Execution stops at the first failing task; spec does
// not call for automatic retry or for running layers a failed dependency
// could no longer feed correctly.
func (e *Executor) execute(ctx context.Context, r pendingRecord) error {
	p, err := loadLLMProfile(ctx, e.db, r.EntityID)
	if err != nil {
		return err
	}
	sampleContext, err := loadSampleContext(ctx, e.db, r.EntityID, r.CreatedAt)
	if err != nil {
		return err
	}

	dag, err := NewDAG(&p.LLM.Workflow)
	if err != nil {
		return err
	}
	terminal := make(map[string]bool)
	for _, id := range dag.TerminalTaskIDs() {
		terminal[id] = true
	}

	outputs := make(map[string]string, len(p.LLM.Workflow.Tasks))
	var mu sync.Mutex

	for _, layer := range dag.Layers {
		sem := make(chan struct{}, e.taskCap)
		var wg sync.WaitGroup
		errCh := make(chan error, len(layer))

		for _, id := range layer {
			task, ok := dag.Task(id)
			if !ok {
				continue
			}
			wg.Add(1)
			sem <- struct{}{}
			go func(task profile.Task) {
				defer wg.Done()
				defer func() { <-sem }()

				mu.Lock()
				bound, bindErr := bindParams(task, sampleContext, outputs)
				mu.Unlock()
				if bindErr != nil {
					errCh <- bindErr
					return
				}

				taskCtx, cancel := context.WithTimeout(ctx, e.taskTimeout)
				defer cancel()

				start := time.Now()
				resp, runErr := e.judge.Run(taskCtx, renderPrompt(task.Prompt, bound), task.ResponseType)
				if e.metrics != nil {
					e.metrics.RecordWorkflowTask(task.ID, runErr == nil, time.Since(start))
				}
				if runErr != nil {
					errCh <- apperror.Wrap(runErr, apperror.CodeJudgeUnavailable, "judge invocation failed for task "+task.ID)
					return
				}

				mu.Lock()
				outputs[task.ID] = taskOutput(resp)
				mu.Unlock()

				if terminal[task.ID] {
					if resp.Score == nil {
						errCh <- apperror.NewWithField(apperror.CodeTaskFailed, "terminal task returned no score", task.ID)
						return
					}
					if persistErr := persistMetric(ctx, e.db, r.EntityID, task.ID, float64(resp.Score.Score), time.Now()); persistErr != nil {
						errCh <- persistErr
						return
					}
				}
			}(task)
		}

		wg.Wait()
		close(errCh)
		for taskErr := range errCh {
			if taskErr != nil {
				return taskErr
			}
		}
	}
	return nil
}
