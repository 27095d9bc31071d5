package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/experience-booking/internal/metrics"
	"github.com/iliyamo/experience-booking/internal/model"
	"github.com/iliyamo/experience-booking/internal/queue"
	"github.com/iliyamo/experience-booking/internal/repository"
	"github.com/iliyamo/experience-booking/internal/service"
)

// BookingHandler serves the booking endpoints.  Mutations go through
// the booking service, which owns the transactions; listings read the
// booking repository directly.  Queue events are published after the
// transaction commits, from a detached goroutine, so a slow or down
// broker never holds a row lock or fails a committed booking.
type BookingHandler struct {
	Svc      *service.BookingService
	Bookings *repository.BookingRepo
	Slots    *repository.SlotRepo
	Exps     *repository.ExperienceRepo
	Users    *repository.UserRepo
}

func NewBookingHandler(svc *service.BookingService, b *repository.BookingRepo, s *repository.SlotRepo, e *repository.ExperienceRepo, u *repository.UserRepo) *BookingHandler {
	return &BookingHandler{Svc: svc, Bookings: b, Slots: s, Exps: e, Users: u}
}

type createBookingReq struct {
	SlotID     uuid.UUID `json:"slot_id"`
	Guests     uint32    `json:"guests"`
	TravelerID uuid.UUID `json:"traveler_id"` // admin only: book on behalf of this tourist
}

type updateStatusReq struct {
	Status string `json:"status"`
}

// Create places a booking.  Tourists always book for themselves; an
// admin may pass traveler_id to book on behalf of a tourist, and the
// traveler is resolved before the reservation starts so the booking
// row never changes hands afterwards.
func (h *BookingHandler) Create(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if !model.Can(actor.Role, model.ActionBookingCreate) {
		return c.JSON(http.StatusForbidden, errorBody{Code: "forbidden", Error: "role may not create bookings"})
	}
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.SlotID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "slot_id required"})
	}

	ctx := c.Request().Context()
	travelerID := actor.ID
	if actor.Role == model.RoleAdmin && req.TravelerID != uuid.Nil {
		traveler, err := h.Users.GetByID(ctx, req.TravelerID)
		if err != nil {
			return domainError(c, err)
		}
		if traveler.Role != model.RoleTourist {
			return c.JSON(http.StatusBadRequest, errorBody{Code: "validation_error", Error: "traveler_id must reference a tourist"})
		}
		travelerID = traveler.ID
	}

	b, err := h.Svc.CreateBooking(ctx, travelerID, req.SlotID, req.Guests)
	if err != nil {
		return domainError(c, err)
	}
	metrics.IncBookingCreated()
	go h.publishCreated(b)
	return c.JSON(http.StatusCreated, b)
}

// Get returns one booking.
func (h *BookingHandler) Get(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	b, err := h.Svc.GetBooking(c.Request().Context(), id, actor)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

// List returns bookings scoped to the caller: a tourist sees their
// own, a guide sees bookings against their experiences, an admin sees
// everything.
func (h *BookingHandler) List(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if !model.Can(actor.Role, model.ActionBookingList) {
		return c.JSON(http.StatusForbidden, errorBody{Code: "forbidden", Error: "role may not list bookings"})
	}
	ctx := c.Request().Context()
	var out []repository.BookingDetail
	switch actor.Role {
	case model.RoleAdmin:
		out, err = h.Bookings.ListAll(ctx)
	case model.RoleGuide:
		out, err = h.Bookings.ListByGuide(ctx, actor.ID)
	default:
		out, err = h.Bookings.ListByTraveler(ctx, actor.ID)
	}
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListBySlot returns every booking placed against one slot, for the
// guide who owns its experience or an admin.
func (h *BookingHandler) ListBySlot(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if !model.Can(actor.Role, model.ActionBookingListBySlot) {
		return c.JSON(http.StatusForbidden, errorBody{Code: "forbidden", Error: "role may not list slot bookings"})
	}
	slotID, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid slot id"})
	}
	ctx := c.Request().Context()
	slot, err := h.Slots.GetByID(ctx, slotID)
	if err != nil {
		return domainError(c, err)
	}
	if actor.Role == model.RoleGuide {
		exp, err := h.Exps.GetByID(ctx, slot.ExperienceID)
		if err != nil {
			return domainError(c, err)
		}
		if exp.GuideID != actor.ID {
			return c.JSON(http.StatusForbidden, errorBody{Code: "forbidden", Error: "not the owner"})
		}
	}
	out, err := h.Bookings.ListBySlot(ctx, slotID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// scopeFor maps the caller onto the WHERE fragment used by the
// upcoming/past listings.
func scopeFor(actor service.Actor) (string, []interface{}) {
	switch actor.Role {
	case model.RoleAdmin:
		return "", nil
	case model.RoleGuide:
		return "e.guide_id = ?", []interface{}{actor.ID.String()}
	default:
		return "b.traveler_id = ?", []interface{}{actor.ID.String()}
	}
}

// ListUpcoming returns the caller's confirmed bookings from today on.
func (h *BookingHandler) ListUpcoming(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if !model.Can(actor.Role, model.ActionBookingList) {
		return c.JSON(http.StatusForbidden, errorBody{Code: "forbidden", Error: "role may not list bookings"})
	}
	scope, args := scopeFor(actor)
	out, err := h.Bookings.ListUpcoming(c.Request().Context(), scope, time.Now().UTC(), args...)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListPast returns the caller's completed or dated-out bookings.
func (h *BookingHandler) ListPast(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if !model.Can(actor.Role, model.ActionBookingList) {
		return c.JSON(http.StatusForbidden, errorBody{Code: "forbidden", Error: "role may not list bookings"})
	}
	scope, args := scopeFor(actor)
	out, err := h.Bookings.ListPast(c.Request().Context(), scope, time.Now().UTC(), args...)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// UpdateStatus transitions a booking through the state machine, for
// the owning guide or an admin.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	var req updateStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	target, ok := model.ParseBookingStatus(req.Status)
	if !ok {
		return c.JSON(http.StatusBadRequest, errorBody{Code: "validation_error", Error: "unknown status"})
	}

	b, err := h.Svc.UpdateBookingStatus(c.Request().Context(), id, actor, target)
	if err != nil {
		return domainError(c, err)
	}
	metrics.IncStatusChanged(string(target))
	if target == model.StatusCancelled {
		metrics.IncBookingCancelled()
		go h.publishCancelled(b)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel cancels the caller's booking (or any booking, for an admin)
// and releases the held capacity.
func (h *BookingHandler) Cancel(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	b, err := h.Svc.CancelBooking(c.Request().Context(), id, actor)
	if err != nil {
		return domainError(c, err)
	}
	metrics.IncBookingCancelled()
	metrics.IncStatusChanged(string(model.StatusCancelled))
	go h.publishCancelled(b)
	return c.JSON(http.StatusOK, b)
}

// eventParties loads the slot, guide and traveler referenced by a
// booking.  The loads run outside any transaction; a failure only
// suppresses the notification.
func (h *BookingHandler) eventParties(ctx context.Context, b model.Booking) (model.Slot, model.User, model.User, bool) {
	slot, err := h.Slots.GetByID(ctx, b.SlotID)
	if err != nil {
		return model.Slot{}, model.User{}, model.User{}, false
	}
	exp, err := h.Exps.GetByID(ctx, slot.ExperienceID)
	if err != nil {
		return model.Slot{}, model.User{}, model.User{}, false
	}
	guide, err := h.Users.GetByID(ctx, exp.GuideID)
	if err != nil {
		return model.Slot{}, model.User{}, model.User{}, false
	}
	traveler, err := h.Users.GetByID(ctx, b.TravelerID)
	if err != nil {
		return model.Slot{}, model.User{}, model.User{}, false
	}
	return slot, guide, traveler, true
}

func (h *BookingHandler) publishCreated(b model.Booking) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slot, guide, traveler, ok := h.eventParties(ctx, b)
	if !ok {
		return
	}
	_ = queue.PublishBookingCreated(ctx, queue.BookingCreatedEvent{
		BookingID:       b.ID.String(),
		TravelerID:      b.TravelerID.String(),
		TravelerName:    traveler.FullName,
		TravelerEmail:   traveler.Email,
		GuideName:       guide.FullName,
		GuideEmail:      guide.Email,
		ExperienceTitle: b.ExperienceTitle,
		Date:            slot.Date.UTC().Format("2006-01-02"),
		StartTime:       slot.StartTime,
		EndTime:         slot.EndTime,
		Guests:          b.Guests,
		TotalCents:      b.TotalCents,
		CalendarEmail:   traveler.CalendarEmail,
		CreatedAt:       b.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (h *BookingHandler) publishCancelled(b model.Booking) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slot, guide, traveler, ok := h.eventParties(ctx, b)
	if !ok {
		return
	}
	_ = queue.PublishBookingCancelled(ctx, queue.BookingCancelledEvent{
		BookingID:       b.ID.String(),
		TravelerID:      b.TravelerID.String(),
		TravelerName:    traveler.FullName,
		TravelerEmail:   traveler.Email,
		GuideName:       guide.FullName,
		GuideEmail:      guide.Email,
		ExperienceTitle: b.ExperienceTitle,
		Date:            slot.Date.UTC().Format("2006-01-02"),
		Guests:          b.Guests,
		CancelledAt:     time.Now().UTC().Format(time.RFC3339),
	})
}
