package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/reserviq/reserviq/internal/app"
	"github.com/reserviq/reserviq/internal/domain"
)

const timeFormat = "2006-01-02T15:04:05Z"

// ReservationResponse is the API representation of a reservation.
type ReservationResponse struct {
	ID            string `json:"id" doc:"Unique identifier"`
	FacilityID    string `json:"facility_id" doc:"Facility being reserved"`
	HolderID      string `json:"holder_id" doc:"User holding the reservation"`
	StartTime     string `json:"start_time" doc:"Scheduled start (ISO 8601)"`
	EndTime       string `json:"end_time" doc:"Scheduled end (ISO 8601)"`
	Status        string `json:"status" doc:"Lifecycle state"`
	PaymentStatus string `json:"payment_status" doc:"Payment gate state"`

	StartedAt   string `json:"started_at,omitempty" doc:"Actual usage start"`
	CompletedAt string `json:"completed_at,omitempty" doc:"Actual usage end"`
	NoShowAt    string `json:"no_show_at,omitempty" doc:"No-show timestamp"`
	CancelledAt string `json:"cancelled_at,omitempty" doc:"Cancellation timestamp"`
	ArchivedAt  string `json:"archived_at,omitempty" doc:"Archival timestamp"`

	UsageSeconds int64 `json:"usage_seconds,omitempty" doc:"Final usage duration, once completed"`

	CreatedAt string `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt string `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toReservationResponse(r domain.Reservation) ReservationResponse {
	resp := ReservationResponse{
		ID:            r.ID,
		FacilityID:    r.FacilityID,
		HolderID:      r.HolderID,
		StartTime:     r.StartTime.Format(timeFormat),
		EndTime:       r.EndTime.Format(timeFormat),
		Status:        string(r.Status),
		PaymentStatus: string(r.PaymentStatus),
		StartedAt:     formatOptional(r.StartedAt),
		CompletedAt:   formatOptional(r.CompletedAt),
		NoShowAt:      formatOptional(r.NoShowAt),
		CancelledAt:   formatOptional(r.CancelledAt),
		ArchivedAt:    formatOptional(r.ArchivedAt),
		CreatedAt:     r.CreatedAt.Format(timeFormat),
		UpdatedAt:     r.UpdatedAt.Format(timeFormat),
	}
	if d, ok := r.FinalDuration(); ok {
		resp.UsageSeconds = int64(d.Seconds())
	}
	return resp
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeFormat)
}

func toReservationResponses(reservations []domain.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, len(reservations))
	for i, r := range reservations {
		out[i] = toReservationResponse(r)
	}
	return out
}

// ActionResponse reports the outcome of a lifecycle or remediation action.
type ActionResponse struct {
	Success     bool                `json:"success"`
	Message     string              `json:"message"`
	Reservation ReservationResponse `json:"reservation"`
}

// --- Create Reservation ---

type CreateReservationInput struct {
	Body struct {
		FacilityID    string    `json:"facility_id" minLength:"1" maxLength:"100" doc:"Facility being reserved"`
		HolderID      string    `json:"holder_id" minLength:"1" maxLength:"100" doc:"User holding the reservation"`
		StartTime     time.Time `json:"start_time" doc:"Scheduled start"`
		EndTime       time.Time `json:"end_time" doc:"Scheduled end, must follow start"`
		Status        string    `json:"status,omitempty" default:"pending" enum:"pending,confirmed" doc:"Initial lifecycle state"`
		PaymentStatus string    `json:"payment_status,omitempty" default:"pending" enum:"pending,paid,expired" doc:"Initial payment gate state"`
	}
}

type CreateReservationOutput struct {
	Body ReservationResponse
}

// --- Get / List ---

type GetReservationInput struct {
	ID string `path:"id" doc:"Reservation ID"`
}

type GetReservationOutput struct {
	Body ReservationResponse
}

type ListReservationsInput struct {
	Status string `query:"status" required:"false" doc:"Filter by status"`
	Limit  int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListReservationsOutput struct {
	Body []ReservationResponse
}

// --- Audit trail ---

type AuditEntryResponse struct {
	Actor     string `json:"actor" doc:"Who performed the action"`
	Action    string `json:"action" doc:"What was done"`
	Note      string `json:"note,omitempty" doc:"Free-text note"`
	CreatedAt string `json:"created_at" doc:"When (ISO 8601)"`
}

type ListAuditOutput struct {
	Body []AuditEntryResponse
}

// --- Lifecycle actions ---

type ActorInput struct {
	ID   string `path:"id" doc:"Reservation ID"`
	Body struct {
		Actor string `json:"actor" minLength:"1" maxLength:"100" doc:"Staff member performing the action"`
		Note  string `json:"note,omitempty" maxLength:"500" doc:"Free-text note for the audit trail"`
	}
}

type StartUsageOutput struct {
	Body struct {
		Success        bool                `json:"success"`
		Message        string              `json:"message"`
		PaymentPending bool                `json:"payment_pending" doc:"True when usage started with payment still unsettled"`
		Reservation    ReservationResponse `json:"reservation"`
	}
}

type ActionOutput struct {
	Body ActionResponse
}

// --- Remediation ---

type RemediateInput struct {
	ID   string `path:"id" doc:"Reservation ID"`
	Body struct {
		Action  string `json:"action" enum:"extend_time,reduce_duration,mark_no_show,start_late" doc:"Corrective action for a late reservation"`
		Minutes int    `json:"minutes,omitempty" minimum:"0" doc:"Extension minutes or new total duration, depending on action"`
		Actor   string `json:"actor" minLength:"1" maxLength:"100" doc:"Staff member deciding"`
		Note    string `json:"note,omitempty" maxLength:"500" doc:"Free-text note for the audit trail"`
	}
}

// --- Usage views ---

type CurrentUsageOutput struct {
	Body []ReservationResponse
}

type ReadyUsageResponse struct {
	Reservation           ReservationResponse `json:"reservation"`
	Late                  bool                `json:"late" doc:"Past grace window without starting"`
	GraceRemainingSeconds int64               `json:"grace_remaining_seconds" doc:"Seconds until the grace window closes, zero once lapsed"`
}

type ReadyUsageOutput struct {
	Body []ReadyUsageResponse
}

// --- Sweeps ---

type SweepOutput struct {
	Body struct {
		Count int `json:"count" doc:"Reservations transitioned by this sweep cycle"`
	}
}

// Register adds all reservation API routes to the Huma API.
func Register(api huma.API, svc *app.LifecycleService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-reservation",
		Method:      http.MethodPost,
		Path:        "/api/v1/reservations",
		Summary:     "Create a new reservation",
		Tags:        []string{"Reservations"},
	}, func(ctx context.Context, input *CreateReservationInput) (*CreateReservationOutput, error) {
		r, err := svc.Create(ctx, app.CreateInput{
			FacilityID:    input.Body.FacilityID,
			HolderID:      input.Body.HolderID,
			StartTime:     input.Body.StartTime,
			EndTime:       input.Body.EndTime,
			Status:        domain.Status(input.Body.Status),
			PaymentStatus: domain.PaymentStatus(input.Body.PaymentStatus),
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateReservationOutput{Body: toReservationResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-reservation",
		Method:      http.MethodGet,
		Path:        "/api/v1/reservations/{id}",
		Summary:     "Get a reservation by ID",
		Tags:        []string{"Reservations"},
	}, func(ctx context.Context, input *GetReservationInput) (*GetReservationOutput, error) {
		r, err := svc.GetByID(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetReservationOutput{Body: toReservationResponse(r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-reservations",
		Method:      http.MethodGet,
		Path:        "/api/v1/reservations",
		Summary:     "List reservations",
		Tags:        []string{"Reservations"},
	}, func(ctx context.Context, input *ListReservationsInput) (*ListReservationsOutput, error) {
		filter := domain.ListFilter{
			Limit:  input.Limit,
			Offset: input.Offset,
		}
		if input.Status != "" {
			s := domain.Status(input.Status)
			filter.Status = &s
		}

		reservations, err := svc.List(ctx, filter)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ListReservationsOutput{Body: toReservationResponses(reservations)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-reservation-audit",
		Method:      http.MethodGet,
		Path:        "/api/v1/reservations/{id}/audit",
		Summary:     "Get a reservation's audit trail",
		Tags:        []string{"Reservations"},
	}, func(ctx context.Context, input *GetReservationInput) (*ListAuditOutput, error) {
		entries, err := svc.GetAudit(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := make([]AuditEntryResponse, len(entries))
		for i, e := range entries {
			out[i] = AuditEntryResponse{
				Actor:     e.Actor,
				Action:    string(e.Action),
				Note:      e.Note,
				CreatedAt: e.CreatedAt.Format(timeFormat),
			}
		}
		return &ListAuditOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "start-usage",
		Method:      http.MethodPost,
		Path:        "/api/v1/reservations/{id}/start",
		Summary:     "Record the actual start of occupancy",
		Tags:        []string{"Usage"},
	}, func(ctx context.Context, input *ActorInput) (*StartUsageOutput, error) {
		result, err := svc.StartUsage(ctx, input.ID, input.Body.Actor, input.Body.Note)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &StartUsageOutput{}
		out.Body.Success = true
		out.Body.Message = "usage started"
		if result.PaymentPending {
			out.Body.Message = "usage started; payment still pending"
		}
		out.Body.PaymentPending = result.PaymentPending
		out.Body.Reservation = toReservationResponse(result.Reservation)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-usage",
		Method:      http.MethodPost,
		Path:        "/api/v1/reservations/{id}/complete",
		Summary:     "Close an active usage session",
		Tags:        []string{"Usage"},
	}, actionHandler(svc.CompleteUsage, "usage completed"))

	huma.Register(api, huma.Operation{
		OperationID: "verify-usage",
		Method:      http.MethodPost,
		Path:        "/api/v1/reservations/{id}/verify",
		Summary:     "Record staff verification of a completed session",
		Tags:        []string{"Usage"},
	}, actionHandler(svc.VerifyUsage, "usage verified"))

	huma.Register(api, huma.Operation{
		OperationID: "cancel-reservation",
		Method:      http.MethodPost,
		Path:        "/api/v1/reservations/{id}/cancel",
		Summary:     "Cancel a reservation that has not started",
		Tags:        []string{"Reservations"},
	}, actionHandler(svc.Cancel, "reservation cancelled"))

	huma.Register(api, huma.Operation{
		OperationID: "archive-reservation",
		Method:      http.MethodPost,
		Path:        "/api/v1/reservations/{id}/archive",
		Summary:     "Archive a completed reservation",
		Tags:        []string{"Reservations"},
	}, actionHandler(svc.Archive, "reservation archived"))

	huma.Register(api, huma.Operation{
		OperationID: "remediate-reservation",
		Method:      http.MethodPost,
		Path:        "/api/v1/reservations/{id}/remediation",
		Summary:     "Apply a corrective action to a late reservation",
		Tags:        []string{"Usage"},
	}, func(ctx context.Context, input *RemediateInput) (*ActionOutput, error) {
		var (
			r   domain.Reservation
			err error
			msg string
		)
		switch input.Body.Action {
		case "extend_time":
			r, err = svc.ExtendTime(ctx, input.ID, input.Body.Actor, input.Body.Minutes, input.Body.Note)
			msg = "reservation extended"
		case "reduce_duration":
			r, err = svc.ReduceDuration(ctx, input.ID, input.Body.Actor, input.Body.Minutes, input.Body.Note)
			msg = "reservation duration reduced"
		case "mark_no_show":
			r, err = svc.MarkNoShow(ctx, input.ID, input.Body.Actor, input.Body.Note)
			msg = "reservation marked no-show"
		case "start_late":
			r, err = svc.StartLate(ctx, input.ID, input.Body.Actor, input.Body.Note)
			msg = "late start approved; start usage to begin the session"
		}
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ActionOutput{Body: ActionResponse{
			Success:     true,
			Message:     msg,
			Reservation: toReservationResponse(r),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "current-usage",
		Method:      http.MethodGet,
		Path:        "/api/v1/usage/current",
		Summary:     "List active sessions, oldest started first",
		Tags:        []string{"Usage"},
	}, func(ctx context.Context, _ *struct{}) (*CurrentUsageOutput, error) {
		reservations, err := svc.GetCurrentUsage(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CurrentUsageOutput{Body: toReservationResponses(reservations)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "ready-usage",
		Method:      http.MethodGet,
		Path:        "/api/v1/usage/ready",
		Summary:     "List upcoming reservations with late classification",
		Tags:        []string{"Usage"},
	}, func(ctx context.Context, _ *struct{}) (*ReadyUsageOutput, error) {
		ready, err := svc.GetReadyUsage(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := make([]ReadyUsageResponse, len(ready))
		for i, ru := range ready {
			out[i] = ReadyUsageResponse{
				Reservation:           toReservationResponse(ru.Reservation),
				Late:                  ru.Late,
				GraceRemainingSeconds: int64(ru.GraceRemaining.Seconds()),
			}
		}
		return &ReadyUsageOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pending-verifications",
		Method:      http.MethodGet,
		Path:        "/api/v1/usage/pending-verifications",
		Summary:     "List completed sessions awaiting staff verification",
		Tags:        []string{"Usage"},
	}, func(ctx context.Context, _ *struct{}) (*CurrentUsageOutput, error) {
		reservations, err := svc.GetPendingVerifications(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CurrentUsageOutput{Body: toReservationResponses(reservations)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sweep-auto-start",
		Method:      http.MethodPost,
		Path:        "/api/v1/sweeps/auto-start",
		Summary:     "Run the auto-start sweep once",
		Tags:        []string{"Sweeps"},
	}, func(ctx context.Context, _ *struct{}) (*SweepOutput, error) {
		count, err := svc.AutoStartUsage(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &SweepOutput{}
		out.Body.Count = count
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "sweep-auto-complete",
		Method:      http.MethodPost,
		Path:        "/api/v1/sweeps/auto-complete",
		Summary:     "Run the auto-complete sweep once",
		Tags:        []string{"Sweeps"},
	}, func(ctx context.Context, _ *struct{}) (*SweepOutput, error) {
		count, err := svc.AutoCompleteUsage(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &SweepOutput{}
		out.Body.Count = count
		return out, nil
	})
}

// actionHandler adapts the common (id, actor, note) service operations.
func actionHandler(
	op func(ctx context.Context, id, actor, note string) (domain.Reservation, error),
	message string,
) func(ctx context.Context, input *ActorInput) (*ActionOutput, error) {
	return func(ctx context.Context, input *ActorInput) (*ActionOutput, error) {
		r, err := op(ctx, input.ID, input.Body.Actor, input.Body.Note)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ActionOutput{Body: ActionResponse{
			Success:     true,
			Message:     message,
			Reservation: toReservationResponse(r),
		}}, nil
	}
}

// toHumaError translates domain errors to Huma HTTP errors, carrying the
// machine-readable kind as an error detail.
func toHumaError(err error) error {
	kind := domain.KindOf(err)
	detail := &huma.ErrorDetail{Location: "errorKind", Message: string(kind)}

	switch kind {
	case domain.KindNotFound:
		return huma.Error404NotFound("reservation not found")
	case domain.KindInvalidState:
		return huma.Error409Conflict(err.Error(), detail)
	case domain.KindGraceIneligible, domain.KindPaymentExpired:
		return huma.Error422UnprocessableEntity(err.Error(), detail)
	case domain.KindStoreUnavailable:
		return huma.Error503ServiceUnavailable("reservation store unavailable, retry shortly")
	}
	return huma.Error500InternalServerError("internal server error")
}
