package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/experience-booking/internal/model"
)

// BookingRepo provides persistence for bookings.  A booking row is
// only ever inserted or has its status column updated; rows are never
// deleted and the snapshot columns are never rewritten.  All writes
// happen inside a transaction owned by the booking service so the
// booking and its slot's remaining count move together.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, traveler_id, slot_id, guests, experience_title, price_per_guest_cents, total_cents, status, created_at, updated_at`

func scanBooking(row rowScanner) (model.Booking, error) {
	var (
		b                 model.Booking
		id, traveler, sid string
		status            string
	)
	err := row.Scan(&id, &traveler, &sid, &b.Guests, &b.ExperienceTitle,
		&b.PricePerGuestCents, &b.TotalCents, &status, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	if b.ID, err = uuid.Parse(id); err != nil {
		return model.Booking{}, err
	}
	if b.TravelerID, err = uuid.Parse(traveler); err != nil {
		return model.Booking{}, err
	}
	if b.SlotID, err = uuid.Parse(sid); err != nil {
		return model.Booking{}, err
	}
	b.Status = model.BookingStatus(status)
	return b, nil
}

// CreateTx inserts a new booking within the scope of an existing
// transaction and reads the row back to populate timestamps.  The
// caller must commit or roll back.
func (r *BookingRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Booking) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	const q = `INSERT INTO bookings (id, traveler_id, slot_id, guests, experience_title, price_per_guest_cents, total_cents, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, b.ID.String(), b.TravelerID.String(), b.SlotID.String(),
		b.Guests, b.ExperienceTitle, b.PricePerGuestCents, b.TotalCents, string(b.Status))
	if err != nil {
		return translateDBError(err)
	}
	const sel = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	got, err := scanBooking(tx.QueryRowContext(ctx, sel, b.ID.String()))
	if err != nil {
		return err
	}
	*b = got
	return nil
}

// GetByID fetches a booking without locking it.
func (r *BookingRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, err
}

// GetForUpdateTx reads the booking row under an exclusive lock so a
// status transition cannot race another transition of the same
// booking.  The booking lock is always taken before the slot lock;
// keeping that order everywhere avoids deadlocks between concurrent
// cancels.
func (r *BookingRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (model.Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ? FOR UPDATE`
	b, err := scanBooking(tx.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrBookingNotFound
	}
	return b, translateDBError(err)
}

// GuideForSlotTx resolves the guide who owns the experience the slot
// belongs to, inside the transaction, for ownership checks on status
// changes.
func (r *BookingRepo) GuideForSlotTx(ctx context.Context, tx *sql.Tx, slotID uuid.UUID) (uuid.UUID, error) {
	const q = `SELECT e.guide_id FROM slots s JOIN experiences e ON e.id = s.experience_id WHERE s.id = ?`
	var gid string
	if err := tx.QueryRowContext(ctx, q, slotID.String()).Scan(&gid); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return uuid.Nil, ErrSlotNotFound
		}
		return uuid.Nil, translateDBError(err)
	}
	return uuid.Parse(gid)
}

// UpdateStatusTx rewrites the status column within the transaction.
// The status value has already been validated by the state machine.
func (r *BookingRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, status model.BookingStatus) error {
	const q = `UPDATE bookings SET status = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, string(status), id.String())
	if err != nil {
		return translateDBError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// BookingDetail is a booking joined with its slot and experience for
// display.  Title and prices come from the booking snapshot, not from
// the live experience; the join supplies scheduling and ownership
// fields only.
type BookingDetail struct {
	ID                 uuid.UUID           `json:"id"`
	TravelerID         uuid.UUID           `json:"traveler_id"`
	TravelerName       string              `json:"traveler_name"`
	SlotID             uuid.UUID           `json:"slot_id"`
	ExperienceID       uuid.UUID           `json:"experience_id"`
	GuideID            uuid.UUID           `json:"guide_id"`
	ExperienceTitle    string              `json:"experience_title"`
	Date               string              `json:"date"`
	StartTime          string              `json:"start_time"`
	EndTime            string              `json:"end_time"`
	Guests             uint32              `json:"guests"`
	PricePerGuestCents uint32              `json:"price_per_guest_cents"`
	TotalCents         uint32              `json:"total_cents"`
	Status             model.BookingStatus `json:"status"`
	CreatedAt          time.Time           `json:"created_at"`
}

const bookingDetailQuery = `SELECT b.id, b.traveler_id, u.full_name, b.slot_id, s.experience_id, e.guide_id,
	       b.experience_title, s.date, s.start_time, s.end_time,
	       b.guests, b.price_per_guest_cents, b.total_cents, b.status, b.created_at
	FROM bookings b
	JOIN slots s ON s.id = b.slot_id
	JOIN experiences e ON e.id = s.experience_id
	JOIN users u ON u.id = b.traveler_id`

// list runs the detail query with the given WHERE fragment and
// ordering.  Every public listing below is a thin wrapper choosing the
// fragment for its audience.
func (r *BookingRepo) list(ctx context.Context, where string, order string, args ...interface{}) ([]BookingDetail, error) {
	q := bookingDetailQuery
	if where != "" {
		q += " WHERE " + where
	}
	q += " ORDER BY " + order
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BookingDetail, 0)
	for rows.Next() {
		var (
			d                        BookingDetail
			id, traveler, slot       string
			experience, guide, status string
			date                     time.Time
		)
		if err := rows.Scan(&id, &traveler, &d.TravelerName, &slot, &experience, &guide,
			&d.ExperienceTitle, &date, &d.StartTime, &d.EndTime,
			&d.Guests, &d.PricePerGuestCents, &d.TotalCents, &status, &d.CreatedAt); err != nil {
			return nil, err
		}
		if d.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if d.TravelerID, err = uuid.Parse(traveler); err != nil {
			return nil, err
		}
		if d.SlotID, err = uuid.Parse(slot); err != nil {
			return nil, err
		}
		if d.ExperienceID, err = uuid.Parse(experience); err != nil {
			return nil, err
		}
		if d.GuideID, err = uuid.Parse(guide); err != nil {
			return nil, err
		}
		d.Date = date.UTC().Format("2006-01-02")
		d.Status = model.BookingStatus(status)
		details = append(details, d)
	}
	return details, rows.Err()
}

// ListAll returns every booking, newest first.  Admin only.
func (r *BookingRepo) ListAll(ctx context.Context) ([]BookingDetail, error) {
	return r.list(ctx, "", "b.created_at DESC")
}

// ListByTraveler returns the tourist's own bookings, newest first.
func (r *BookingRepo) ListByTraveler(ctx context.Context, travelerID uuid.UUID) ([]BookingDetail, error) {
	return r.list(ctx, "b.traveler_id = ?", "b.created_at DESC", travelerID.String())
}

// ListByGuide returns bookings against any experience the guide owns.
func (r *BookingRepo) ListByGuide(ctx context.Context, guideID uuid.UUID) ([]BookingDetail, error) {
	return r.list(ctx, "e.guide_id = ?", "b.created_at DESC", guideID.String())
}

// ListBySlot returns all bookings placed against one slot.
func (r *BookingRepo) ListBySlot(ctx context.Context, slotID uuid.UUID) ([]BookingDetail, error) {
	return r.list(ctx, "b.slot_id = ?", "b.created_at DESC", slotID.String())
}

// ListUpcoming returns confirmed bookings whose slot date is today or
// later, soonest first, scoped by the same WHERE fragment the caller
// would use for a plain listing.  Pass an empty scope for admins.
func (r *BookingRepo) ListUpcoming(ctx context.Context, scope string, today time.Time, args ...interface{}) ([]BookingDetail, error) {
	where := "b.status = 'CONFIRMED' AND s.date >= ?"
	if scope != "" {
		where = scope + " AND " + where
	}
	args = append(args, today.UTC().Format("2006-01-02"))
	return r.list(ctx, where, "s.date ASC", args...)
}

// ListPast returns completed bookings or bookings whose slot date has
// passed, most recent slot first.
func (r *BookingRepo) ListPast(ctx context.Context, scope string, today time.Time, args ...interface{}) ([]BookingDetail, error) {
	where := "(b.status = 'COMPLETED' OR s.date < ?)"
	if scope != "" {
		where = scope + " AND " + where
	}
	args = append(args, today.UTC().Format("2006-01-02"))
	return r.list(ctx, where, "s.date DESC", args...)
}

// SumActiveGuestsTx returns the total guests across non-cancelled
// bookings of a slot, inside the transaction.  The booking service
// compares it with capacity - remaining after a cancel; the two must
// agree at every commit.
func (r *BookingRepo) SumActiveGuestsTx(ctx context.Context, tx *sql.Tx, slotID uuid.UUID) (uint32, error) {
	const q = `SELECT COALESCE(SUM(guests), 0) FROM bookings WHERE slot_id = ? AND status <> 'CANCELLED'`
	var total uint32
	err := tx.QueryRowContext(ctx, q, slotID.String()).Scan(&total)
	return total, translateDBError(err)
}
