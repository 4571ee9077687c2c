package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/reserviq/reserviq/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// ReservationRepository implements domain.ReservationRepository using SQLite.
// The guarded updates encode the per-reservation critical section as
// compare-and-set writes on the status column.
type ReservationRepository struct {
	db *sql.DB
}

// Compile-time check: ReservationRepository implements the domain port.
var _ domain.ReservationRepository = (*ReservationRepository)(nil)

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*ReservationRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns
// a ready repository. Use this when the *sql.DB has been pre-configured
// (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*ReservationRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &ReservationRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *ReservationRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters
// (e.g., river, the payment gate).
func (r *ReservationRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

const reservationColumns = `id, facility_id, holder_id, start_time, end_time,
	status, payment_status, started_at, completed_at, no_show_at, cancelled_at,
	archived_at, created_at, updated_at`

func (r *ReservationRepository) Create(ctx context.Context, res domain.Reservation) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reservations (id, facility_id, holder_id, start_time, end_time,
		   status, payment_status, started_at, completed_at, no_show_at, cancelled_at,
		   archived_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID, res.FacilityID, res.HolderID,
		res.StartTime.UTC().Format(timeFormat),
		res.EndTime.UTC().Format(timeFormat),
		string(res.Status), string(res.PaymentStatus),
		formatNullableTime(res.StartedAt),
		formatNullableTime(res.CompletedAt),
		formatNullableTime(res.NoShowAt),
		formatNullableTime(res.CancelledAt),
		formatNullableTime(res.ArchivedAt),
		res.CreatedAt.Format(timeFormat),
		res.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		return storeErr("inserting reservation", err)
	}
	return nil
}

func (r *ReservationRepository) GetByID(ctx context.Context, id string) (domain.Reservation, error) {
	return scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id,
	))
}

func (r *ReservationRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	var args []any

	if filter.Status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*filter.Status))
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	return r.queryReservations(ctx, query, args...)
}

// UpdateStatusAndAudit performs the guarded read-modify-write: the UPDATE
// only matches while the row still holds the expected status, and the audit
// entry lands in the same transaction. Zero matched rows means either the
// reservation vanished or a concurrent caller already moved it on.
// payment_status is deliberately absent from the SET list: the payment sweep
// owns that column, and writing back a read here would revert its updates.
func (r *ReservationRepository) UpdateStatusAndAudit(ctx context.Context, expected domain.Status, res domain.Reservation, entry domain.AuditEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx,
		`UPDATE reservations
		 SET status = ?, started_at = ?, completed_at = ?,
		     no_show_at = ?, cancelled_at = ?, archived_at = ?, updated_at = ?
		 WHERE id = ? AND status = ?`,
		string(res.Status),
		formatNullableTime(res.StartedAt),
		formatNullableTime(res.CompletedAt),
		formatNullableTime(res.NoShowAt),
		formatNullableTime(res.CancelledAt),
		formatNullableTime(res.ArchivedAt),
		res.UpdatedAt.Format(timeFormat),
		res.ID, string(expected),
	)
	if err != nil {
		return storeErr("updating reservation status", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storeErr("checking rows affected", err)
	}
	if rows == 0 {
		return r.classifyGuardMiss(ctx, tx, res.ID, expected)
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeErr("committing status update", err)
	}
	return nil
}

// UpdateSchedule rewrites end_time for a not-yet-started reservation under
// the same compare-and-set discipline, additionally guarded by
// started_at IS NULL so a racing start invalidates pending remediation.
func (r *ReservationRepository) UpdateSchedule(ctx context.Context, id string, expected domain.Status, newEnd time.Time, entry domain.AuditEntry) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return storeErr("beginning transaction", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC().Format(timeFormat)
	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET end_time = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND started_at IS NULL`,
		newEnd.UTC().Format(timeFormat), now, id, string(expected),
	)
	if err != nil {
		return storeErr("updating reservation schedule", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return storeErr("checking rows affected", err)
	}
	if rows == 0 {
		return r.classifyGuardMiss(ctx, tx, id, expected)
	}

	if err := insertAudit(ctx, tx, entry); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeErr("committing schedule update", err)
	}
	return nil
}

// classifyGuardMiss distinguishes a missing row from a lost race after a
// guarded UPDATE matched nothing.
func (r *ReservationRepository) classifyGuardMiss(ctx context.Context, tx *sql.Tx, id string, expected domain.Status) error {
	var status string
	var startedAt sql.NullString
	err := tx.QueryRowContext(ctx,
		`SELECT status, started_at FROM reservations WHERE id = ?`, id,
	).Scan(&status, &startedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrReservationNotFound
	}
	if err != nil {
		return storeErr("re-reading reservation", err)
	}

	if domain.Status(status) == expected && startedAt.Valid {
		return &domain.NotRemediableError{ID: id, Status: domain.Status(status), Started: true}
	}
	return &domain.StaleStatusError{ID: id, Expected: expected, Actual: domain.Status(status)}
}

func (r *ReservationRepository) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_entries (reservation_id, actor, action, note, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ReservationID, entry.Actor, string(entry.Action), entry.Note,
		entry.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return storeErr("inserting audit entry", err)
	}
	return nil
}

func insertAudit(ctx context.Context, tx *sql.Tx, entry domain.AuditEntry) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO audit_entries (reservation_id, actor, action, note, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.ReservationID, entry.Actor, string(entry.Action), entry.Note,
		entry.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return storeErr("inserting audit entry", err)
	}
	return nil
}

func (r *ReservationRepository) ListAudit(ctx context.Context, reservationID string) ([]domain.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, reservation_id, actor, action, note, created_at
		 FROM audit_entries WHERE reservation_id = ?
		 ORDER BY created_at ASC, id ASC`, reservationID,
	)
	if err != nil {
		return nil, storeErr("listing audit entries", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var action, createdAt string
		if err := rows.Scan(&e.ID, &e.ReservationID, &e.Actor, &action, &e.Note, &createdAt); err != nil {
			return nil, storeErr("scanning audit entry", err)
		}
		e.Action = domain.AuditAction(action)
		e.CreatedAt, _ = time.Parse(timeFormat, createdAt)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (r *ReservationRepository) ListActive(ctx context.Context) ([]domain.Reservation, error) {
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE status = ? ORDER BY started_at ASC`,
		string(domain.StatusActive),
	)
}

func (r *ReservationRepository) ListReadyOrLate(ctx context.Context) ([]domain.Reservation, error) {
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE status IN (?, ?) ORDER BY start_time ASC`,
		string(domain.StatusConfirmed), string(domain.StatusReady),
	)
}

func (r *ReservationRepository) ListDueForStart(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE status IN (?, ?) AND start_time <= ? AND payment_status != ?
		 ORDER BY start_time ASC`,
		string(domain.StatusConfirmed), string(domain.StatusReady),
		now.UTC().Format(timeFormat), string(domain.PaymentExpired),
	)
}

func (r *ReservationRepository) ListOverdue(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE status = ? AND end_time <= ? ORDER BY end_time ASC`,
		string(domain.StatusActive), now.UTC().Format(timeFormat),
	)
}

func (r *ReservationRepository) ListPendingVerification(ctx context.Context) ([]domain.Reservation, error) {
	return r.queryReservations(ctx,
		`SELECT `+reservationColumns+` FROM reservations res
		 WHERE res.status = ?
		   AND NOT EXISTS (
		     SELECT 1 FROM audit_entries a
		     WHERE a.reservation_id = res.id AND a.action = ?
		   )
		 ORDER BY res.completed_at ASC`,
		string(domain.StatusCompleted), string(domain.AuditVerify),
	)
}

func (r *ReservationRepository) queryReservations(ctx context.Context, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("listing reservations", err)
	}
	defer rows.Close()

	var reservations []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		reservations = append(reservations, res)
	}

	return reservations, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanReservation(row scanner) (domain.Reservation, error) {
	var res domain.Reservation
	var status, paymentStatus, startTime, endTime, createdAt, updatedAt string
	var startedAt, completedAt, noShowAt, cancelledAt, archivedAt sql.NullString

	err := row.Scan(
		&res.ID, &res.FacilityID, &res.HolderID, &startTime, &endTime,
		&status, &paymentStatus, &startedAt, &completedAt, &noShowAt,
		&cancelledAt, &archivedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, storeErr("scanning reservation", err)
	}

	res.Status = domain.Status(status)
	res.PaymentStatus = domain.PaymentStatus(paymentStatus)
	res.StartTime, _ = time.Parse(timeFormat, startTime)
	res.EndTime, _ = time.Parse(timeFormat, endTime)
	res.StartedAt = parseNullableTime(startedAt)
	res.CompletedAt = parseNullableTime(completedAt)
	res.NoShowAt = parseNullableTime(noShowAt)
	res.CancelledAt = parseNullableTime(cancelledAt)
	res.ArchivedAt = parseNullableTime(archivedAt)
	res.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	res.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)

	return res, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeFormat)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// storeErr wraps an unexpected driver failure so callers can classify it as
// a transient store problem rather than a domain outcome.
func storeErr(op string, err error) error {
	return &domain.StoreUnavailableError{Err: fmt.Errorf("%s: %w", op, err)}
}
