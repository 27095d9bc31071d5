package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/experience-booking/internal/model"
)

// SlotRepo provides persistence for slots and acts as the inventory
// ledger: ReserveTx and ReleaseTx are the only code paths in the
// system that mutate slots.remaining, and both require a transaction
// in which they take an exclusive row lock (SELECT ... FOR UPDATE)
// before reading the value.  The lock is released at commit/rollback
// by the caller, which guarantees at-most-one successful decrement
// past zero even under simultaneous create attempts from independent
// processes.
type SlotRepo struct {
	db *sql.DB
}

// NewSlotRepo returns a new SlotRepo bound to the given database.
func NewSlotRepo(db *sql.DB) *SlotRepo { return &SlotRepo{db: db} }

// DB exposes the underlying handle so callers can open transactions.
func (r *SlotRepo) DB() *sql.DB { return r.db }

const slotColumns = `id, experience_id, date, start_time, end_time, capacity, remaining, price_cents, is_active, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSlot(row rowScanner) (model.Slot, error) {
	var (
		s       model.Slot
		id, eid string
	)
	err := row.Scan(&id, &eid, &s.Date, &s.StartTime, &s.EndTime,
		&s.Capacity, &s.Remaining, &s.PriceCents, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return model.Slot{}, err
	}
	if s.ID, err = uuid.Parse(id); err != nil {
		return model.Slot{}, err
	}
	if s.ExperienceID, err = uuid.Parse(eid); err != nil {
		return model.Slot{}, err
	}
	return s, nil
}

// Create inserts a new slot with remaining initialised to capacity.
// The (experience_id, date) pair is unique; a second slot for the same
// experience and date fails with ErrConflict.
func (r *SlotRepo) Create(ctx context.Context, s *model.Slot) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	const q = `INSERT INTO slots (id, experience_id, date, start_time, end_time, capacity, remaining, price_cents, is_active)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, s.ID.String(), s.ExperienceID.String(),
		s.Date.Format("2006-01-02"), s.StartTime, s.EndTime,
		s.Capacity, s.Capacity, s.PriceCents, s.IsActive)
	if err != nil {
		return translateDBError(err)
	}
	s.Remaining = s.Capacity
	const sel = `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	got, err := scanSlot(r.db.QueryRowContext(ctx, sel, s.ID.String()))
	if err != nil {
		return err
	}
	*s = got
	return nil
}

// GetByID returns a slot without locking it.  Use it for advisory
// reads only: any decision that mutates remaining must be re-made
// under lockForUpdateTx inside a transaction.
func (r *SlotRepo) GetByID(ctx context.Context, id uuid.UUID) (model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE id = ?`
	s, err := scanSlot(r.db.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Slot{}, ErrSlotNotFound
	}
	return s, err
}

// ListByExperience returns all slots of an experience ordered by date.
func (r *SlotRepo) ListByExperience(ctx context.Context, experienceID uuid.UUID) ([]model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE experience_id = ? ORDER BY date, start_time`
	rows, err := r.db.QueryContext(ctx, q, experienceID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	slots := make([]model.Slot, 0)
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// lockForUpdateTx reads the slot row under an exclusive lock.  Every
// remaining/capacity mutation below goes through here first so the
// read-modify-write is serialized by the store, not by this process.
func (r *SlotRepo) lockForUpdateTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (model.Slot, error) {
	const q = `SELECT ` + slotColumns + ` FROM slots WHERE id = ? FOR UPDATE`
	s, err := scanSlot(tx.QueryRowContext(ctx, q, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Slot{}, ErrSlotNotFound
	}
	return s, translateDBError(err)
}

// ReserveTx takes the row lock, re-validates the slot and decrements
// remaining by guests.  It fails with ErrSlotInactive when the slot is
// not active, ErrSlotInPast when the slot's date precedes today, and a
// CapacityError when remaining < guests.  The re-check under the lock
// is what closes the race between an advisory availability check and
// the reservation itself.  No row is written on any failure; the
// caller rolls the transaction back.
func (r *SlotRepo) ReserveTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, guests uint32, today time.Time) (model.Slot, error) {
	s, err := r.lockForUpdateTx(ctx, tx, id)
	if err != nil {
		return model.Slot{}, err
	}
	if !s.IsActive {
		return model.Slot{}, ErrSlotInactive
	}
	if s.Date.Before(today.Truncate(24 * time.Hour)) {
		return model.Slot{}, ErrSlotInPast
	}
	if s.Remaining < guests {
		return model.Slot{}, &CapacityError{Remaining: s.Remaining}
	}
	const q = `UPDATE slots SET remaining = remaining - ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, guests, id.String()); err != nil {
		return model.Slot{}, translateDBError(err)
	}
	s.Remaining -= guests
	return s, nil
}

// ReleaseTx takes the row lock and adds guests back to remaining,
// clamped so it never exceeds capacity.  The clamp makes a double
// release harmless; the state machine prevents one from happening in
// the first place by refusing to cancel twice.
func (r *SlotRepo) ReleaseTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, guests uint32) (model.Slot, error) {
	s, err := r.lockForUpdateTx(ctx, tx, id)
	if err != nil {
		return model.Slot{}, err
	}
	restored := s.Remaining + guests
	if restored > s.Capacity {
		restored = s.Capacity
	}
	const q = `UPDATE slots SET remaining = ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, restored, id.String()); err != nil {
		return model.Slot{}, translateDBError(err)
	}
	s.Remaining = restored
	return s, nil
}

// RaiseCapacityTx raises the capacity ceiling and grows remaining by
// the same delta, under the row lock.  Capacity can only be raised;
// lowering it could push remaining past consumed guests and is
// rejected with ErrValidation.
func (r *SlotRepo) RaiseCapacityTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, newCapacity uint32) (model.Slot, error) {
	s, err := r.lockForUpdateTx(ctx, tx, id)
	if err != nil {
		return model.Slot{}, err
	}
	if newCapacity <= s.Capacity {
		return model.Slot{}, ErrValidation
	}
	delta := newCapacity - s.Capacity
	const q = `UPDATE slots SET capacity = ?, remaining = remaining + ? WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q, newCapacity, delta, id.String()); err != nil {
		return model.Slot{}, translateDBError(err)
	}
	s.Capacity = newCapacity
	s.Remaining += delta
	return s, nil
}

// SetActive flips the slot's active flag.  Deactivation is the
// preferred way to withdraw a slot that already has bookings.
func (r *SlotRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	const q = `UPDATE slots SET is_active = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, active, id.String())
	if err != nil {
		return translateDBError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSlotNotFound
	}
	return nil
}

// Delete removes a slot.  The bookings FK is RESTRICT, so a slot that
// is referenced by any booking fails with ErrConflict; callers should
// deactivate instead.
func (r *SlotRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM slots WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id.String())
	if err != nil {
		return translateDBError(err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrSlotNotFound
	}
	return nil
}
