package handler

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/experience-booking/internal/model"
	"github.com/iliyamo/experience-booking/internal/repository"
	"github.com/iliyamo/experience-booking/internal/service"
)

// SlotHandler serves slot management for guides and the public slot
// listing under an experience.
type SlotHandler struct {
	Slots       *repository.SlotRepo
	Experiences *repository.ExperienceRepo
}

func NewSlotHandler(s *repository.SlotRepo, e *repository.ExperienceRepo) *SlotHandler {
	return &SlotHandler{Slots: s, Experiences: e}
}

type createSlotReq struct {
	Date       string `json:"date"`       // YYYY-MM-DD
	StartTime  string `json:"start_time"` // HH:MM:SS
	EndTime    string `json:"end_time"`   // HH:MM:SS
	Capacity   uint32 `json:"capacity"`
	PriceCents uint32 `json:"price_cents"`
}

type raiseCapacityReq struct {
	Capacity uint32 `json:"capacity"`
}

type setActiveReq struct {
	IsActive bool `json:"is_active"`
}

// ownedExperience loads the experience and enforces guide ownership.
func (h *SlotHandler) ownedExperience(c echo.Context, actor service.Actor, id uuid.UUID) (model.Experience, bool) {
	e, err := h.Experiences.GetByID(c.Request().Context(), id)
	if err != nil {
		_ = domainError(c, err)
		return model.Experience{}, false
	}
	if actor.Role != model.RoleAdmin && e.GuideID != actor.ID {
		_ = c.JSON(http.StatusForbidden, echo.Map{"error": "not the owner"})
		return model.Experience{}, false
	}
	return e, true
}

// ownedSlot loads a slot and enforces that the caller owns its
// experience.
func (h *SlotHandler) ownedSlot(c echo.Context, actor service.Actor, id uuid.UUID) (model.Slot, bool) {
	s, err := h.Slots.GetByID(c.Request().Context(), id)
	if err != nil {
		_ = domainError(c, err)
		return model.Slot{}, false
	}
	if _, ok := h.ownedExperience(c, actor, s.ExperienceID); !ok {
		return model.Slot{}, false
	}
	return s, true
}

// Create opens a new slot under an experience.  Remaining starts at
// capacity.
func (h *SlotHandler) Create(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	expID, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid experience id"})
	}
	if _, ok := h.ownedExperience(c, actor, expID); !ok {
		return nil
	}
	var req createSlotReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date must be YYYY-MM-DD"})
	}
	if req.Capacity < 1 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be at least 1"})
	}
	if _, err := time.Parse("15:04:05", req.StartTime); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "start_time must be HH:MM:SS"})
	}
	if _, err := time.Parse("15:04:05", req.EndTime); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be HH:MM:SS"})
	}
	if req.EndTime <= req.StartTime {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "end_time must be after start_time"})
	}
	s := model.Slot{
		ExperienceID: expID,
		Date:         date,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		Capacity:     req.Capacity,
		PriceCents:   req.PriceCents,
		IsActive:     true,
	}
	if err := h.Slots.Create(c.Request().Context(), &s); err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusCreated, s)
}

// List returns the slots of an experience.
func (h *SlotHandler) List(c echo.Context) error {
	expID, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid experience id"})
	}
	if _, err := h.Experiences.GetByID(c.Request().Context(), expID); err != nil {
		return domainError(c, err)
	}
	out, err := h.Slots.ListByExperience(c.Request().Context(), expID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns a single slot by id.
func (h *SlotHandler) Get(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	s, err := h.Slots.GetByID(c.Request().Context(), id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, s)
}

// RaiseCapacity raises a slot's capacity under the row lock so the
// raise cannot interleave with an in-flight reservation.
func (h *SlotHandler) RaiseCapacity(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if _, ok := h.ownedSlot(c, actor, id); !ok {
		return nil
	}
	var req raiseCapacityReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx := c.Request().Context()
	tx, err := h.Slots.DB().BeginTx(ctx, nil)
	if err != nil {
		return domainError(c, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	s, err := h.Slots.RaiseCapacityTx(ctx, tx, id, req.Capacity)
	if err != nil {
		return domainError(c, err)
	}
	if err := tx.Commit(); err != nil {
		return domainError(c, err)
	}
	committed = true
	return c.JSON(http.StatusOK, s)
}

// SetActive flips the slot's active flag.
func (h *SlotHandler) SetActive(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if _, ok := h.ownedSlot(c, actor, id); !ok {
		return nil
	}
	var req setActiveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := h.Slots.SetActive(c.Request().Context(), id, req.IsActive); err != nil {
		return domainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a slot that has no bookings; booked slots are
// rejected with a conflict and should be deactivated instead.
func (h *SlotHandler) Delete(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	if _, ok := h.ownedSlot(c, actor, id); !ok {
		return nil
	}
	if err := h.Slots.Delete(c.Request().Context(), id); err != nil {
		return domainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
