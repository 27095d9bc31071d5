// Package service contains the reservation orchestrator.  It owns the
// transactional boundary for every operation that touches a booking
// and its slot together: lock the rows, validate, mutate the ledger,
// write the booking, commit.  Nothing here performs network calls;
// notifications happen after commit in the handler layer and are never
// part of the transaction.
package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/experience-booking/internal/model"
	"github.com/iliyamo/experience-booking/internal/repository"
)

// Actor identifies who is performing a booking operation.  Role gates
// the operation through the permission table; ID is used for ownership
// checks (a tourist acts on their own bookings, a guide on bookings
// against their own experiences).
type Actor struct {
	ID   uuid.UUID
	Role model.Role
}

// BookingService coordinates the inventory ledger (SlotRepo) and the
// booking state machine.  Each exported method runs as one database
// transaction: on any validation failure nothing is mutated, and on
// success the slot's remaining count and the booking row are committed
// together.
type BookingService struct {
	db          *sql.DB
	slots       *repository.SlotRepo
	bookings    *repository.BookingRepo
	experiences *repository.ExperienceRepo

	now func() time.Time
}

// NewBookingService constructs a BookingService.  All dependencies
// must be non-nil.
func NewBookingService(db *sql.DB, slots *repository.SlotRepo, bookings *repository.BookingRepo, experiences *repository.ExperienceRepo) *BookingService {
	if db == nil || slots == nil || bookings == nil || experiences == nil {
		panic("nil dependency passed to NewBookingService")
	}
	return &BookingService{
		db:          db,
		slots:       slots,
		bookings:    bookings,
		experiences: experiences,
		now:         time.Now,
	}
}

// CreateBooking reserves capacity on a slot and creates a PENDING
// booking for the traveler, as one atomic unit.  The traveler is fixed
// up front (an admin booking on behalf of a tourist resolves the
// tourist before calling this); the snapshot columns are captured here
// and never rewritten.
//
// Validation happens twice: an advisory pass on an unlocked read
// rejects obviously bad requests without contending the slot row, and
// ReserveTx repeats every check under the exclusive lock.  Two
// concurrent requests for the last unit of capacity both pass the
// advisory check, but only the first to acquire the lock passes the
// re-check; the second fails with a CapacityError and nothing it did
// persists.
func (s *BookingService) CreateBooking(ctx context.Context, travelerID, slotID uuid.UUID, guests uint32) (model.Booking, error) {
	if guests < 1 {
		return model.Booking{}, fmt.Errorf("%w: guests must be at least 1", repository.ErrValidation)
	}

	slot, err := s.slots.GetByID(ctx, slotID)
	if err != nil {
		return model.Booking{}, err
	}
	if !slot.IsActive {
		return model.Booking{}, repository.ErrSlotInactive
	}
	exp, err := s.experiences.GetByID(ctx, slot.ExperienceID)
	if err != nil {
		return model.Booking{}, err
	}
	if !exp.IsActive {
		return model.Booking{}, repository.ErrSlotInactive
	}
	today := s.now().UTC()
	if slot.Date.Before(today.Truncate(24 * time.Hour)) {
		return model.Booking{}, repository.ErrSlotInPast
	}
	if slot.Remaining < guests {
		return model.Booking{}, &repository.CapacityError{Remaining: slot.Remaining}
	}
	if total := uint64(slot.PriceCents) * uint64(guests); total > math.MaxUint32 {
		return model.Booking{}, fmt.Errorf("%w: total price overflows", repository.ErrValidation)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	locked, err := s.slots.ReserveTx(ctx, tx, slotID, guests, today)
	if err != nil {
		return model.Booking{}, err
	}
	total := uint64(locked.PriceCents) * uint64(guests)
	if total > math.MaxUint32 {
		return model.Booking{}, fmt.Errorf("%w: total price overflows", repository.ErrValidation)
	}
	booking := model.Booking{
		TravelerID:         travelerID,
		SlotID:             slotID,
		Guests:             guests,
		ExperienceTitle:    exp.Title,
		PricePerGuestCents: locked.PriceCents,
		TotalCents:         uint32(total),
		Status:             model.StatusPending,
	}
	if err := s.bookings.CreateTx(ctx, tx, &booking); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, err
	}
	committed = true
	return booking, nil
}

// transitionTx applies the booking state machine inside an open
// transaction.  A transition into CANCELLED from any non-cancelled
// status releases the booking's guests back to the slot before the
// status is persisted, so the booking can never show CANCELLED while
// the slot still counts its guests as consumed, nor the other way
// round.  Every other transition touches the status column only.
//
// After a cancel, while both rows are still locked, the consumed
// count (capacity - remaining) is compared against the sum of guests
// across the slot's non-cancelled bookings.  Drift means some earlier
// write bypassed the ledger; it is logged, not failed, because the
// release clamp already tolerates degraded state and aborting here
// would leave the booking stuck.
func (s *BookingService) transitionTx(ctx context.Context, tx *sql.Tx, b model.Booking, target model.BookingStatus) (model.Booking, error) {
	if !b.Status.CanTransitionTo(target) {
		return model.Booking{}, fmt.Errorf("%w: %s -> %s", repository.ErrInvalidTransition, b.Status, target)
	}
	var released model.Slot
	if target == model.StatusCancelled {
		var err error
		released, err = s.slots.ReleaseTx(ctx, tx, b.SlotID, b.Guests)
		if err != nil {
			return model.Booking{}, err
		}
	}
	if err := s.bookings.UpdateStatusTx(ctx, tx, b.ID, target); err != nil {
		return model.Booking{}, err
	}
	if target == model.StatusCancelled {
		held, err := s.bookings.SumActiveGuestsTx(ctx, tx, b.SlotID)
		if err != nil {
			return model.Booking{}, err
		}
		if consumed := released.Capacity - released.Remaining; held != consumed {
			log.Printf("ledger drift on slot %s: capacity=%d remaining=%d but active bookings hold %d guests",
				b.SlotID, released.Capacity, released.Remaining, held)
		}
	}
	b.Status = target
	return b, nil
}

// UpdateBookingStatus transitions a booking to the target status on
// behalf of an admin or the guide who owns the underlying experience.
// The booking row is locked for the duration so concurrent transitions
// of the same booking serialize.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, bookingID uuid.UUID, actor Actor, target model.BookingStatus) (model.Booking, error) {
	if !model.Can(actor.Role, model.ActionBookingUpdateStatus) {
		return model.Booking{}, repository.ErrForbidden
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if actor.Role == model.RoleGuide {
		guideID, err := s.bookings.GuideForSlotTx(ctx, tx, b.SlotID)
		if err != nil {
			return model.Booking{}, err
		}
		if guideID != actor.ID {
			return model.Booking{}, repository.ErrForbidden
		}
	}
	updated, err := s.transitionTx(ctx, tx, b, target)
	if err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, err
	}
	committed = true
	return updated, nil
}

// CancelBooking cancels a non-terminal booking for an admin or the
// owning tourist and restores the slot's capacity in the same
// transaction.  Cancelling an already terminal booking fails with
// ErrAlreadyTerminal and changes nothing, including remaining.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID uuid.UUID, actor Actor) (model.Booking, error) {
	if !model.Can(actor.Role, model.ActionBookingCancel) {
		return model.Booking{}, repository.ErrForbidden
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Booking{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := s.bookings.GetForUpdateTx(ctx, tx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if actor.Role == model.RoleTourist && b.TravelerID != actor.ID {
		return model.Booking{}, repository.ErrForbidden
	}
	if b.Status.Terminal() {
		return model.Booking{}, fmt.Errorf("%w: status is %s", repository.ErrAlreadyTerminal, b.Status)
	}
	updated, err := s.transitionTx(ctx, tx, b, model.StatusCancelled)
	if err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Booking{}, err
	}
	committed = true
	return updated, nil
}

// GetBooking returns a booking for an admin or the owning tourist.
func (s *BookingService) GetBooking(ctx context.Context, bookingID uuid.UUID, actor Actor) (model.Booking, error) {
	if !model.Can(actor.Role, model.ActionBookingView) {
		return model.Booking{}, repository.ErrForbidden
	}
	b, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if actor.Role == model.RoleTourist && b.TravelerID != actor.ID {
		return model.Booking{}, repository.ErrForbidden
	}
	return b, nil
}
