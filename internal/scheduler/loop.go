package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/t77yq/macroflow/internal/executor"
	"github.com/t77yq/macroflow/internal/model"
	"github.com/t77yq/macroflow/internal/storage"
)

// DefaultInterval is the reference polling period.
const DefaultInterval = time.Minute

// Loop periodically scans the job store for due pending jobs and drains them
// through the executor. Jobs within one tick run sequentially in the store's
// deterministic order. Ticks never overlap: if a tick is still draining when
// the next one fires, the next one is skipped.
type Loop struct {
	logger   *zap.Logger
	jobs     *storage.JobStore
	executor *executor.Executor
	interval time.Duration
	cron     *cron.Cron
}

// cronLogger adapts zap.Logger to cron.Logger.
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err))
}

// NewLoop creates a scheduler loop. A non-positive interval falls back to
// DefaultInterval.
func NewLoop(logger *zap.Logger, jobs *storage.JobStore, exec *executor.Executor, interval time.Duration) *Loop {
	if interval <= 0 {
		interval = DefaultInterval
	}

	log := logger.Named("scheduler")
	cl := &cronLogger{logger: log.Named("cron")}

	return &Loop{
		logger:   log,
		jobs:     jobs,
		executor: exec,
		interval: interval,
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cl),
			cron.Recover(cl),
		)),
	}
}

// Start begins ticking. The loop runs until Stop is called.
func (l *Loop) Start() error {
	spec := fmt.Sprintf("@every %s", l.interval)
	if _, err := l.cron.AddFunc(spec, func() {
		l.Tick(context.Background())
	}); err != nil {
		return fmt.Errorf("failed to register tick: %w", err)
	}

	l.cron.Start()
	l.logger.Info("Scheduler loop started", zap.Duration("interval", l.interval))
	return nil
}

// Stop halts ticking and waits for an in-flight tick to finish.
func (l *Loop) Stop() {
	ctx := l.cron.Stop()
	<-ctx.Done()
	l.logger.Info("Scheduler loop stopped")
}

// Tick runs one scan-and-drain pass. A store error querying due jobs aborts
// only this tick; a failure on one job never aborts the remaining jobs.
func (l *Loop) Tick(ctx context.Context) {
	l.logger.Debug("Checking for scheduled jobs")

	jobs, err := l.jobs.FindDue(ctx, time.Now())
	if err != nil {
		l.logger.Error("Failed to query due jobs, skipping tick", zap.Error(err))
		return
	}

	for _, job := range jobs {
		l.drain(ctx, job)
	}
}

// drain moves one job through its lifecycle. The transition to running is
// persisted before any execution side effect begins, so a crash mid-execution
// leaves the job visibly running instead of silently re-eligible.
func (l *Loop) drain(ctx context.Context, job *model.ScheduledJob) {
	if err := l.jobs.Transition(ctx, job.ID, model.JobStatusPending, model.JobStatusRunning); err != nil {
		// Another drain already claimed it, or the store rejected the write.
		l.logger.Warn("Skipping job",
			zap.String("job_id", job.ID),
			zap.Error(err))
		return
	}

	l.logger.Info("Running scheduled job",
		zap.String("job_id", job.ID),
		zap.String("command", job.Command),
		zap.Time("run_at", job.RunAt))

	l.executor.Run(ctx, job.Command)

	// The lifecycle only moves forward: execution failures are recorded in
	// history, the job itself still completes and is never re-run.
	if err := l.jobs.Transition(ctx, job.ID, model.JobStatusRunning, model.JobStatusCompleted); err != nil {
		l.logger.Error("Failed to complete job",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
}
