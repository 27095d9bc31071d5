package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/experience-booking/internal/model"
	"github.com/iliyamo/experience-booking/internal/repository"
)

var (
	testNow      = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	futureDate   = time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC)
	pastDate     = time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	travelerID   = uuid.New()
	guideID      = uuid.New()
	slotID       = uuid.New()
	experienceID = uuid.New()
	bookingID    = uuid.New()
)

// newServiceTest wires a BookingService over a sqlmock database with a
// fixed clock.
func newServiceTest(t *testing.T) (*BookingService, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := NewBookingService(db,
		repository.NewSlotRepo(db),
		repository.NewBookingRepo(db),
		repository.NewExperienceRepo(db))
	svc.now = func() time.Time { return testNow }
	return svc, mock
}

var slotCols = []string{"id", "experience_id", "date", "start_time", "end_time",
	"capacity", "remaining", "price_cents", "is_active", "created_at", "updated_at"}

func slotRow(remaining uint32, active bool, date time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(slotCols).AddRow(slotID.String(), experienceID.String(),
		date, "10:00:00", "12:00:00", uint32(10), remaining, uint32(2500), active, testNow, testNow)
}

var expCols = []string{"id", "guide_id", "title", "description", "location",
	"is_active", "created_at", "updated_at"}

func expRow(active bool) *sqlmock.Rows {
	return sqlmock.NewRows(expCols).AddRow(experienceID.String(), guideID.String(),
		"Glacier Hike", "A walk on the ice", "Reykjavik", active, testNow, testNow)
}

var bookingCols = []string{"id", "traveler_id", "slot_id", "guests", "experience_title",
	"price_per_guest_cents", "total_cents", "status", "created_at", "updated_at"}

func bookingRow(guests uint32, status model.BookingStatus) *sqlmock.Rows {
	return sqlmock.NewRows(bookingCols).AddRow(bookingID.String(), travelerID.String(),
		slotID.String(), guests, "Glacier Hike", uint32(2500), 2500*guests, string(status), testNow, testNow)
}

// TestCreateBooking_Success reserves places for two guests and checks the
// committed booking carries the snapshot and the PENDING status.
func TestCreateBooking_Success(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\?").WillReturnRows(slotRow(5, true, futureDate))
	mock.ExpectQuery("SELECT .* FROM experiences WHERE id = \\?").WillReturnRows(expRow(true))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\? FOR UPDATE").WillReturnRows(slotRow(5, true, futureDate))
	mock.ExpectExec("UPDATE slots SET remaining = remaining - \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\?").WillReturnRows(bookingRow(2, model.StatusPending))
	mock.ExpectCommit()

	b, err := svc.CreateBooking(context.Background(), travelerID, slotID, 2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, "Glacier Hike", b.ExperienceTitle)
	assert.Equal(t, uint32(2500), b.PricePerGuestCents)
	assert.Equal(t, uint32(5000), b.TotalCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateBooking_ZeroGuests fails validation before touching the
// database.
func TestCreateBooking_ZeroGuests(t *testing.T) {
	svc, mock := newServiceTest(t)

	_, err := svc.CreateBooking(context.Background(), travelerID, slotID, 0)
	assert.ErrorIs(t, err, repository.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateBooking_InactiveSlot is rejected on the advisory read, no
// transaction is opened.
func TestCreateBooking_InactiveSlot(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\?").WillReturnRows(slotRow(5, false, futureDate))

	_, err := svc.CreateBooking(context.Background(), travelerID, slotID, 1)
	assert.ErrorIs(t, err, repository.ErrSlotInactive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateBooking_InactiveExperience: a slot may still be active
// while its experience was deactivated; the booking must be rejected.
func TestCreateBooking_InactiveExperience(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\?").WillReturnRows(slotRow(5, true, futureDate))
	mock.ExpectQuery("SELECT .* FROM experiences WHERE id = \\?").WillReturnRows(expRow(false))

	_, err := svc.CreateBooking(context.Background(), travelerID, slotID, 1)
	assert.ErrorIs(t, err, repository.ErrSlotInactive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateBooking_PastSlot is rejected when the slot date precedes
// today.
func TestCreateBooking_PastSlot(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\?").WillReturnRows(slotRow(5, true, pastDate))
	mock.ExpectQuery("SELECT .* FROM experiences WHERE id = \\?").WillReturnRows(expRow(true))

	_, err := svc.CreateBooking(context.Background(), travelerID, slotID, 1)
	assert.ErrorIs(t, err, repository.ErrSlotInPast)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateBooking_InsufficientCapacity is rejected on the advisory
// read and the error reports the actual remaining count.
func TestCreateBooking_InsufficientCapacity(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\?").WillReturnRows(slotRow(1, true, futureDate))
	mock.ExpectQuery("SELECT .* FROM experiences WHERE id = \\?").WillReturnRows(expRow(true))

	_, err := svc.CreateBooking(context.Background(), travelerID, slotID, 3)
	require.ErrorIs(t, err, repository.ErrInsufficientCapacity)
	var capErr *repository.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, uint32(1), capErr.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateBooking_ConcurrentCapacityRace models the loser of a race
// for the last places: the advisory read still shows enough capacity,
// but by the time the row lock is acquired a competing transaction has
// committed and remaining is short.  The re-check under the lock must
// reject and roll back without writing anything.
func TestCreateBooking_ConcurrentCapacityRace(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\?").WillReturnRows(slotRow(2, true, futureDate))
	mock.ExpectQuery("SELECT .* FROM experiences WHERE id = \\?").WillReturnRows(expRow(true))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\? FOR UPDATE").WillReturnRows(slotRow(1, true, futureDate))
	mock.ExpectRollback()

	_, err := svc.CreateBooking(context.Background(), travelerID, slotID, 2)
	var capErr *repository.CapacityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, uint32(1), capErr.Remaining)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCancelBooking_ReleasesCapacity cancels a confirmed booking as
// the owning tourist and verifies the guests are written back to the
// slot in the same transaction, with the ledger cross-check running
// before commit.
func TestCancelBooking_ReleasesCapacity(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\? FOR UPDATE").WillReturnRows(bookingRow(2, model.StatusConfirmed))
	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\? FOR UPDATE").WillReturnRows(slotRow(3, true, futureDate))
	mock.ExpectExec("UPDATE slots SET remaining = \\?").
		WithArgs(5, slotID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings SET status = \\?").
		WithArgs(string(model.StatusCancelled), bookingID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// capacity 10, remaining 5 after release: active bookings must hold 5
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(guests\\), 0\\) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(5))
	mock.ExpectCommit()

	b, err := svc.CancelBooking(context.Background(), bookingID, Actor{ID: travelerID, Role: model.RoleTourist})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCancelBooking_ReleaseClampedAtCapacity: releasing into a slot
// whose remaining was already restored by a capacity raise must not
// push remaining past capacity.
func TestCancelBooking_ReleaseClampedAtCapacity(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\? FOR UPDATE").WillReturnRows(bookingRow(4, model.StatusPending))
	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\? FOR UPDATE").WillReturnRows(slotRow(9, true, futureDate))
	mock.ExpectExec("UPDATE slots SET remaining = \\?").
		WithArgs(10, slotID.String()). // capacity is 10, not 13
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings SET status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(guests\\), 0\\) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(0))
	mock.ExpectCommit()

	_, err := svc.CancelBooking(context.Background(), bookingID, Actor{ID: travelerID, Role: model.RoleTourist})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCancelBooking_LedgerDriftTolerated: when the non-cancelled
// bookings of the slot disagree with capacity - remaining, the cancel
// still commits; drift is reported, never turned into a stuck booking.
func TestCancelBooking_LedgerDriftTolerated(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\? FOR UPDATE").WillReturnRows(bookingRow(2, model.StatusConfirmed))
	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\? FOR UPDATE").WillReturnRows(slotRow(3, true, futureDate))
	mock.ExpectExec("UPDATE slots SET remaining = \\?").
		WithArgs(5, slotID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings SET status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	// consumed is 5 but active bookings claim 7
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(guests\\), 0\\) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(7))
	mock.ExpectCommit()

	b, err := svc.CancelBooking(context.Background(), bookingID, Actor{ID: travelerID, Role: model.RoleTourist})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCancelBooking_AlreadyCancelled: a second cancel finds a terminal
// booking, fails, and must not touch the slot again.
func TestCancelBooking_AlreadyCancelled(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\? FOR UPDATE").WillReturnRows(bookingRow(2, model.StatusCancelled))
	mock.ExpectRollback()

	_, err := svc.CancelBooking(context.Background(), bookingID, Actor{ID: travelerID, Role: model.RoleTourist})
	assert.ErrorIs(t, err, repository.ErrAlreadyTerminal)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCancelBooking_NotOwner rejects a tourist cancelling someone
// else's booking.
func TestCancelBooking_NotOwner(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\? FOR UPDATE").WillReturnRows(bookingRow(2, model.StatusPending))
	mock.ExpectRollback()

	_, err := svc.CancelBooking(context.Background(), bookingID, Actor{ID: uuid.New(), Role: model.RoleTourist})
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCancelBooking_GuideMayNot: guides reject or complete through
// status updates, never through the cancel action.
func TestCancelBooking_GuideMayNot(t *testing.T) {
	svc, mock := newServiceTest(t)

	_, err := svc.CancelBooking(context.Background(), bookingID, Actor{ID: guideID, Role: model.RoleGuide})
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdateBookingStatus_GuideConfirms moves PENDING to CONFIRMED on
// behalf of the guide who owns the experience.
func TestUpdateBookingStatus_GuideConfirms(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\? FOR UPDATE").WillReturnRows(bookingRow(2, model.StatusPending))
	mock.ExpectQuery("SELECT e.guide_id FROM slots").
		WillReturnRows(sqlmock.NewRows([]string{"guide_id"}).AddRow(guideID.String()))
	mock.ExpectExec("UPDATE bookings SET status = \\?").
		WithArgs(string(model.StatusConfirmed), bookingID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, err := svc.UpdateBookingStatus(context.Background(), bookingID, Actor{ID: guideID, Role: model.RoleGuide}, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, b.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdateBookingStatus_GuideOfOtherExperience is rejected even
// though the guide role passes the permission table.
func TestUpdateBookingStatus_GuideOfOtherExperience(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\? FOR UPDATE").WillReturnRows(bookingRow(2, model.StatusPending))
	mock.ExpectQuery("SELECT e.guide_id FROM slots").
		WillReturnRows(sqlmock.NewRows([]string{"guide_id"}).AddRow(uuid.New().String()))
	mock.ExpectRollback()

	_, err := svc.UpdateBookingStatus(context.Background(), bookingID, Actor{ID: guideID, Role: model.RoleGuide}, model.StatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdateBookingStatus_GuideCancelReleases: rejecting a pending
// booking through a CANCELLED status update releases capacity exactly
// like a tourist cancel.
func TestUpdateBookingStatus_GuideCancelReleases(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\? FOR UPDATE").WillReturnRows(bookingRow(2, model.StatusPending))
	mock.ExpectQuery("SELECT e.guide_id FROM slots").
		WillReturnRows(sqlmock.NewRows([]string{"guide_id"}).AddRow(guideID.String()))
	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\? FOR UPDATE").WillReturnRows(slotRow(3, true, futureDate))
	mock.ExpectExec("UPDATE slots SET remaining = \\?").
		WithArgs(5, slotID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings SET status = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT COALESCE\\(SUM\\(guests\\), 0\\) FROM bookings").
		WillReturnRows(sqlmock.NewRows([]string{"total"}).AddRow(5))
	mock.ExpectCommit()

	_, err := svc.UpdateBookingStatus(context.Background(), bookingID, Actor{ID: guideID, Role: model.RoleGuide}, model.StatusCancelled)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdateBookingStatus_InvalidTransition rejects edges the state
// machine does not define.
func TestUpdateBookingStatus_InvalidTransition(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\? FOR UPDATE").WillReturnRows(bookingRow(2, model.StatusCompleted))
	mock.ExpectRollback()

	_, err := svc.UpdateBookingStatus(context.Background(), bookingID, Actor{Role: model.RoleAdmin}, model.StatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUpdateBookingStatus_TouristForbidden: tourists never drive the
// status machine directly.
func TestUpdateBookingStatus_TouristForbidden(t *testing.T) {
	svc, mock := newServiceTest(t)

	_, err := svc.UpdateBookingStatus(context.Background(), bookingID, Actor{ID: travelerID, Role: model.RoleTourist}, model.StatusConfirmed)
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestGetBooking_OwnerAndStranger: the owner reads their booking, a
// stranger gets forbidden.
func TestGetBooking_OwnerAndStranger(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\?").WillReturnRows(bookingRow(2, model.StatusPending))
	b, err := svc.GetBooking(context.Background(), bookingID, Actor{ID: travelerID, Role: model.RoleTourist})
	require.NoError(t, err)
	assert.Equal(t, travelerID, b.TravelerID)

	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\?").WillReturnRows(bookingRow(2, model.StatusPending))
	_, err = svc.GetBooking(context.Background(), bookingID, Actor{ID: uuid.New(), Role: model.RoleTourist})
	assert.ErrorIs(t, err, repository.ErrForbidden)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateBooking_TotalOverflowRejected: a price and guest count
// whose product exceeds the total column's range fail validation
// instead of snapshotting a wrapped-around total.
func TestCreateBooking_TotalOverflowRejected(t *testing.T) {
	svc, mock := newServiceTest(t)

	// 2,000,000 cents x 3,000 guests = 6e9, past uint32
	bigSlot := sqlmock.NewRows(slotCols).AddRow(slotID.String(), experienceID.String(),
		futureDate, "10:00:00", "12:00:00", uint32(10000), uint32(5000), uint32(2_000_000), true, testNow, testNow)
	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\?").WillReturnRows(bigSlot)
	mock.ExpectQuery("SELECT .* FROM experiences WHERE id = \\?").WillReturnRows(expRow(true))

	_, err := svc.CreateBooking(context.Background(), travelerID, slotID, 3000)
	assert.ErrorIs(t, err, repository.ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCreateBooking_CommitErrorSurfaces: a commit failure is returned
// to the caller, not swallowed.
func TestCreateBooking_CommitErrorSurfaces(t *testing.T) {
	svc, mock := newServiceTest(t)

	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\?").WillReturnRows(slotRow(5, true, futureDate))
	mock.ExpectQuery("SELECT .* FROM experiences WHERE id = \\?").WillReturnRows(expRow(true))
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .* FROM slots WHERE id = \\? FOR UPDATE").WillReturnRows(slotRow(5, true, futureDate))
	mock.ExpectExec("UPDATE slots SET remaining = remaining - \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT .* FROM bookings WHERE id = \\?").WillReturnRows(bookingRow(2, model.StatusPending))
	mock.ExpectCommit().WillReturnError(errors.New("commit failed"))

	_, err := svc.CreateBooking(context.Background(), travelerID, slotID, 2)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
