package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/reserviq/reserviq/internal/domain"
)

// PaymentGate reads the payment collaborator's verdict straight from the
// reservation row. The payment system owns the column (its own sweep moves
// payments to expired); this side only ever reads it.
type PaymentGate struct {
	db *sql.DB
}

// Compile-time check: PaymentGate implements domain.PaymentGate.
var _ domain.PaymentGate = (*PaymentGate)(nil)

// NewPaymentGate creates a gate over the given database connection,
// typically the repository's via DB().
func NewPaymentGate(db *sql.DB) *PaymentGate {
	return &PaymentGate{db: db}
}

// PaymentStatus returns the stored payment status for a reservation.
func (g *PaymentGate) PaymentStatus(ctx context.Context, reservationID string) (domain.PaymentStatus, error) {
	var status string
	err := g.db.QueryRowContext(ctx,
		`SELECT payment_status FROM reservations WHERE id = ?`, reservationID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrReservationNotFound
	}
	if err != nil {
		return "", storeErr("reading payment status", err)
	}
	return domain.PaymentStatus(status), nil
}
