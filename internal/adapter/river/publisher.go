package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/reserviq/reserviq/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// EventJobArgs carries the data needed to process a lifecycle event
// asynchronously. River serializes this as JSON into its job queue table. It
// includes a snapshot of the reservation at the time the event was
// published, so the worker never needs to query the database.
type EventJobArgs struct {
	Event         string `json:"event"`
	ReservationID string `json:"reservation_id"`
	FacilityID    string `json:"facility_id"`
	HolderID      string `json:"holder_id"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (EventJobArgs) Kind() string { return "reservation.event" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
// It is created unbound so the lifecycle service can be constructed before
// the River client (whose sweep workers need that service); Bind must be
// called before any traffic is served.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher with no client attached yet.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Bind attaches the River client. Not safe to call after Publish traffic
// has started.
func (p *Publisher) Bind(client *Client) {
	p.client = client
}

// Publish enqueues a lifecycle event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event, r domain.Reservation) error {
	if p.client == nil {
		return fmt.Errorf("publishing event %q: publisher is not bound to a river client", event)
	}

	_, err := p.client.Insert(ctx, EventJobArgs{
		Event:         string(event),
		ReservationID: r.ID,
		FacilityID:    r.FacilityID,
		HolderID:      r.HolderID,
		Status:        string(r.Status),
		PaymentStatus: string(r.PaymentStatus),
		StartTime:     r.StartTime.Format("2006-01-02T15:04:05Z"),
		EndTime:       r.EndTime.Format("2006-01-02T15:04:05Z"),
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing event job: %w", err)
	}
	return nil
}
