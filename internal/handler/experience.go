package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/experience-booking/internal/model"
	"github.com/iliyamo/experience-booking/internal/repository"
)

// ExperienceHandler serves the guide-facing experience CRUD and the
// public browse surface.
type ExperienceHandler struct {
	Experiences *repository.ExperienceRepo
}

func NewExperienceHandler(e *repository.ExperienceRepo) *ExperienceHandler {
	return &ExperienceHandler{Experiences: e}
}

type experienceReq struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Location    string `json:"location"`
	IsActive    *bool  `json:"is_active"`
}

// Create registers a new experience owned by the calling guide.
func (h *ExperienceHandler) Create(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req experienceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Title == "" || req.Location == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title and location required"})
	}
	e := model.Experience{
		GuideID:     actor.ID,
		Title:       req.Title,
		Description: req.Description,
		Location:    req.Location,
		IsActive:    true,
	}
	if req.IsActive != nil {
		e.IsActive = *req.IsActive
	}
	if err := h.Experiences.Create(c.Request().Context(), &e); err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusCreated, e)
}

// List returns active experiences for browsing.  Admins see inactive
// ones too.
func (h *ExperienceHandler) List(c echo.Context) error {
	activeOnly := true
	if actor, err := currentActor(c); err == nil && actor.Role == model.RoleAdmin {
		activeOnly = false
	}
	out, err := h.Experiences.List(c.Request().Context(), activeOnly)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ListMine returns the calling guide's experiences, active or not.
func (h *ExperienceHandler) ListMine(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	out, err := h.Experiences.ListByGuide(c.Request().Context(), actor.ID)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns a single experience by id.
func (h *ExperienceHandler) Get(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	e, err := h.Experiences.GetByID(c.Request().Context(), id)
	if err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// Update rewrites an experience.  Only the owning guide or an admin
// may do so.
func (h *ExperienceHandler) Update(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	e, err := h.Experiences.GetByID(c.Request().Context(), id)
	if err != nil {
		return domainError(c, err)
	}
	if actor.Role != model.RoleAdmin && e.GuideID != actor.ID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the owner"})
	}
	var req experienceReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.Title != "" {
		e.Title = req.Title
	}
	if req.Description != "" {
		e.Description = req.Description
	}
	if req.Location != "" {
		e.Location = req.Location
	}
	if req.IsActive != nil {
		e.IsActive = *req.IsActive
	}
	if err := h.Experiences.Update(c.Request().Context(), &e); err != nil {
		return domainError(c, err)
	}
	return c.JSON(http.StatusOK, e)
}

// Delete removes an experience with no slots; experiences that already
// have slots are rejected with a conflict and should be deactivated.
func (h *ExperienceHandler) Delete(c echo.Context) error {
	actor, err := currentActor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, err := parseIDParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
	}
	e, err := h.Experiences.GetByID(c.Request().Context(), id)
	if err != nil {
		return domainError(c, err)
	}
	if actor.Role != model.RoleAdmin && e.GuideID != actor.ID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the owner"})
	}
	if err := h.Experiences.Delete(c.Request().Context(), id); err != nil {
		return domainError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
