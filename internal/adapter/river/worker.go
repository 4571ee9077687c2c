package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// EventWorker consumes reservation lifecycle jobs from the River queue.
// Today it only records the event; holder notifications and billing export
// will hang off this worker once those systems exist.
type EventWorker struct {
	river.WorkerDefaults[EventJobArgs]
}

// Work processes a single event job.
func (w *EventWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	slog.InfoContext(ctx, "processing lifecycle event",
		"event", job.Args.Event,
		"reservation_id", job.Args.ReservationID,
		"facility_id", job.Args.FacilityID,
		"status", job.Args.Status,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
