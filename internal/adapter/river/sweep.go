package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// Sweeper is the slice of the lifecycle service the sweep workers need.
type Sweeper interface {
	AutoStartUsage(ctx context.Context) (int, error)
	AutoCompleteUsage(ctx context.Context) (int, error)
}

// AutoStartArgs triggers one auto-start sweep cycle.
type AutoStartArgs struct{}

// Kind returns the unique job type identifier used by River's job routing.
func (AutoStartArgs) Kind() string { return "sweep.auto_start" }

// AutoCompleteArgs triggers one auto-complete sweep cycle.
type AutoCompleteArgs struct{}

// Kind returns the unique job type identifier used by River's job routing.
func (AutoCompleteArgs) Kind() string { return "sweep.auto_complete" }

// AutoStartWorker runs the auto-start sweep when its periodic job fires.
type AutoStartWorker struct {
	river.WorkerDefaults[AutoStartArgs]
	sweeper Sweeper
}

// Work runs one auto-start cycle. A failed cycle returns the error so River
// retries; individual stuck rows are already skipped inside the sweep.
func (w *AutoStartWorker) Work(ctx context.Context, job *river.Job[AutoStartArgs]) error {
	started, err := w.sweeper.AutoStartUsage(ctx)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "auto-start sweep job done", "started", started, "job_id", job.ID)
	return nil
}

// AutoCompleteWorker runs the auto-complete sweep when its periodic job fires.
type AutoCompleteWorker struct {
	river.WorkerDefaults[AutoCompleteArgs]
	sweeper Sweeper
}

// Work runs one auto-complete cycle.
func (w *AutoCompleteWorker) Work(ctx context.Context, job *river.Job[AutoCompleteArgs]) error {
	completed, err := w.sweeper.AutoCompleteUsage(ctx)
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "auto-complete sweep job done", "completed", completed, "job_id", job.ID)
	return nil
}
