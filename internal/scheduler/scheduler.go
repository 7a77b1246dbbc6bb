package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// ContinueHandler is the re-invocation handler name used for chunk
// continuation. Invoker implementations route this name back to
// ContinueChunk.
const ContinueHandler = "batch-continue"

// Config tunes chunk processing. ChunkSize times worst-case per-item latency
// must stay under the host's execution-time ceiling; ItemPause throttles
// calls against the external API between items within a chunk.
type Config struct {
	ChunkSize     int
	ItemPause     time.Duration
	ReinvokeDelay time.Duration
}

// DefaultConfig returns conservative chunk tuning.
func DefaultConfig() Config {
	return Config{
		ChunkSize:     10,
		ItemPause:     500 * time.Millisecond,
		ReinvokeDelay: 5 * time.Second,
	}
}

// BatchScheduler drives the single batch job slot through its lifecycle:
// idle -> Start -> running -> (chunks) -> idle, with Cancel available at any
// point. All cross-invocation state lives in the JobStore; the scheduler
// itself is stateless and safe to reconstruct per invocation.
type BatchScheduler struct {
	store   JobStore
	invoker Invoker
	sink    StatusSink
	worker  Worker
	cfg     Config
	logger  *slog.Logger

	// sleepFunc waits between items within a chunk. Tests override this
	// to avoid real delays.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// New creates a BatchScheduler. The worker is invoked once per item; its
// error for one item never aborts the chunk.
func New(store JobStore, invoker Invoker, sink StatusSink, worker Worker, cfg Config, logger *slog.Logger) *BatchScheduler {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 1
	}

	return &BatchScheduler{
		store:     store,
		invoker:   invoker,
		sink:      sink,
		worker:    worker,
		cfg:       cfg,
		logger:    logger,
		sleepFunc: sleepContext,
	}
}

// Start claims the job slot for the given items and schedules the first
// chunk. Returns ErrAlreadyRunning when a running job holds the slot; the
// existing queue and cursor are left untouched in that case. A persist or
// schedule failure is fatal to the run and leaves the slot idle rather than
// dangling in running state with no pending re-invocation.
func (s *BatchScheduler) Start(ctx context.Context, items []WorkItem) error {
	existing, err := s.store.LoadJob(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: load job: %w", err)
	}

	if existing != nil && existing.State == StateRunning {
		return ErrAlreadyRunning
	}

	job := &Job{
		ID:        uuid.NewString(),
		Items:     items,
		Cursor:    0,
		State:     StateRunning,
		StartedAt: time.Now().UnixNano(),
	}

	if err := s.store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("scheduler: persist job: %w", err)
	}

	if err := s.schedule(); err != nil {
		// Tear the slot down so no orphaned running job survives.
		if clearErr := s.store.ClearJob(ctx); clearErr != nil {
			s.logger.Error("failed to clear job after schedule failure",
				slog.String("error", clearErr.Error()),
			)
		}

		return fmt.Errorf("scheduler: schedule first chunk: %w", err)
	}

	s.logger.Info("batch job started",
		slog.String("job_id", job.ID),
		slog.Int("items", len(items)),
		slog.Int("chunk_size", s.cfg.ChunkSize),
	)

	return nil
}

// ContinueChunk is the re-invocation entry point. It processes the next
// chunk of items and either reschedules or drains the job to idle. A stale
// or duplicate invocation while no job is running is a no-op.
func (s *BatchScheduler) ContinueChunk(ctx context.Context) error {
	job, err := s.store.LoadJob(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: load job: %w", err)
	}

	if job == nil || job.State != StateRunning {
		s.logger.Debug("ignoring stale continuation: no running job")
		return nil
	}

	end := min(job.Cursor+s.cfg.ChunkSize, len(job.Items))

	s.logger.Info("processing chunk",
		slog.String("job_id", job.ID),
		slog.Int("from", job.Cursor),
		slog.Int("to", end),
		slog.Int("total", len(job.Items)),
	)

	s.processItems(ctx, job.Items[job.Cursor:end])
	job.Cursor = end

	if job.Cursor < len(job.Items) {
		return s.persistAndReschedule(ctx, job)
	}

	return s.drain(ctx, job)
}

// Cancel stops the running job: the slot returns to idle, any pending
// re-invocation is removed, and every not-yet-processed item is marked
// canceled in the status sink. Already-processed item statuses are left
// untouched. Canceling with no running job is a no-op.
func (s *BatchScheduler) Cancel(ctx context.Context) error {
	job, err := s.store.LoadJob(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: load job: %w", err)
	}

	if job == nil || job.State != StateRunning {
		s.logger.Debug("cancel requested with no running job")
		return nil
	}

	if err := s.invoker.CancelAll(ContinueHandler); err != nil {
		s.logger.Warn("failed to cancel pending re-invocation",
			slog.String("error", err.Error()),
		)
	}

	now := time.Now().UnixNano()

	for _, item := range job.Remaining() {
		if err := s.sink.SetStatus(ctx, item.Key, StatusCanceled, "", now); err != nil {
			s.logger.Warn("failed to record canceled status",
				slog.String("item", item.Key),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.store.ClearJob(ctx); err != nil {
		return fmt.Errorf("scheduler: clear job on cancel: %w", err)
	}

	s.logger.Info("batch job canceled",
		slog.String("job_id", job.ID),
		slog.Int("processed", job.Cursor),
		slog.Int("canceled", len(job.Items)-job.Cursor),
	)

	return nil
}

// Resume reschedules the continuation for a job left running by a previous
// process (crash or restart). No-op when the slot is idle.
func (s *BatchScheduler) Resume(ctx context.Context) error {
	job, err := s.store.LoadJob(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: load job: %w", err)
	}

	if job == nil || job.State != StateRunning {
		return nil
	}

	s.logger.Info("resuming interrupted batch job",
		slog.String("job_id", job.ID),
		slog.Int("cursor", job.Cursor),
		slog.Int("total", len(job.Items)),
	)

	if err := s.schedule(); err != nil {
		return fmt.Errorf("scheduler: resume job: %w", err)
	}

	return nil
}

// Status returns the current job, or (nil, nil) when the slot is idle.
func (s *BatchScheduler) Status(ctx context.Context) (*Job, error) {
	return s.store.LoadJob(ctx)
}

// processItems runs the worker over one chunk. A worker error is recorded
// in the status sink keyed by the failing item and does not stop the chunk.
func (s *BatchScheduler) processItems(ctx context.Context, items []WorkItem) {
	for i, item := range items {
		summary, err := s.worker.Process(ctx, item)
		now := time.Now().UnixNano()

		if err != nil {
			s.logger.Warn("work item failed",
				slog.String("item", item.Key),
				slog.String("error", err.Error()),
			)

			s.recordStatus(ctx, item.Key, StatusError, err.Error(), now)
		} else {
			s.recordStatus(ctx, item.Key, StatusOK, summary, now)
		}

		// Throttle between items, not after the last one.
		if i < len(items)-1 && s.cfg.ItemPause > 0 {
			if sleepErr := s.sleepFunc(ctx, s.cfg.ItemPause); sleepErr != nil {
				return
			}
		}
	}
}

// persistAndReschedule saves the advanced cursor and arranges the next
// chunk. Failure of either step tears the slot down to idle.
func (s *BatchScheduler) persistAndReschedule(ctx context.Context, job *Job) error {
	if err := s.store.SaveJob(ctx, job); err != nil {
		return s.abort(ctx, job, fmt.Errorf("scheduler: persist cursor: %w", err))
	}

	if err := s.schedule(); err != nil {
		return s.abort(ctx, job, fmt.Errorf("scheduler: schedule next chunk: %w", err))
	}

	s.logger.Debug("chunk complete, rescheduled",
		slog.String("job_id", job.ID),
		slog.Int("cursor", job.Cursor),
	)

	return nil
}

// drain completes the job: clear the queue and return the slot to idle.
func (s *BatchScheduler) drain(ctx context.Context, job *Job) error {
	if err := s.store.ClearJob(ctx); err != nil {
		return fmt.Errorf("scheduler: clear drained job: %w", err)
	}

	s.logger.Info("batch job drained",
		slog.String("job_id", job.ID),
		slog.Int("items", len(job.Items)),
	)

	return nil
}

// abort clears the slot after a fatal scheduler-level failure so the state
// machine never strands a running job with no pending re-invocation.
func (s *BatchScheduler) abort(ctx context.Context, job *Job, cause error) error {
	if err := s.invoker.CancelAll(ContinueHandler); err != nil {
		s.logger.Warn("failed to cancel re-invocation during abort",
			slog.String("error", err.Error()),
		)
	}

	if err := s.store.ClearJob(ctx); err != nil {
		s.logger.Error("failed to clear job during abort",
			slog.String("job_id", job.ID),
			slog.String("error", err.Error()),
		)
	}

	return cause
}

// schedule arranges exactly one pending re-invocation, replacing any
// existing one for the continuation handler.
func (s *BatchScheduler) schedule() error {
	if err := s.invoker.CancelAll(ContinueHandler); err != nil {
		return fmt.Errorf("cancel stale re-invocations: %w", err)
	}

	return s.invoker.ScheduleAfter(ContinueHandler, s.cfg.ReinvokeDelay)
}

// recordStatus writes a per-item outcome, logging sink failures instead of
// propagating them: losing a status row must not fail the chunk.
func (s *BatchScheduler) recordStatus(ctx context.Context, key string, status ItemStatus, detail string, when int64) {
	if err := s.sink.SetStatus(ctx, key, status, detail, when); err != nil {
		s.logger.Warn("failed to record item status",
			slog.String("item", key),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}

// sleepContext waits for the given duration or until the context is
// canceled. Default sleepFunc for BatchScheduler.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
