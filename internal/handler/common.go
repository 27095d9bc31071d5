package handler // handler defines http handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/experience-booking/internal/metrics"
	"github.com/iliyamo/experience-booking/internal/model"
	"github.com/iliyamo/experience-booking/internal/repository"
	"github.com/iliyamo/experience-booking/internal/service"
)

// currentActor extracts the authenticated user's ID and role from the
// echo context.  Both are stored by the JWTAuth middleware; a missing
// or malformed value means the request slipped past authentication
// and is rejected.
func currentActor(c echo.Context) (service.Actor, error) {
	idStr, _ := c.Get("user_id").(string)
	id, err := uuid.Parse(idStr)
	if err != nil {
		return service.Actor{}, errors.New("invalid user_id in context")
	}
	role, ok := c.Get("role").(model.Role)
	if !ok {
		return service.Actor{}, errors.New("invalid role in context")
	}
	return service.Actor{ID: id, Role: role}, nil
}

// parseIDParam parses a UUID path parameter.
func parseIDParam(c echo.Context, name string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(name))
}

// errorBody is the uniform error response: a stable machine-readable
// code plus a human-readable message.  Capacity failures additionally
// carry the current remaining count.
type errorBody struct {
	Code      string  `json:"code"`
	Error     string  `json:"error"`
	Remaining *uint32 `json:"remaining,omitempty"`
}

// domainError maps the repository error taxonomy onto HTTP responses.
// Every error kind keeps a distinct, stable code so clients can branch
// without string matching.  Unrecognized errors become opaque 500s.
func domainError(c echo.Context, err error) error {
	var capErr *repository.CapacityError
	switch {
	case errors.Is(err, repository.ErrValidation):
		return c.JSON(http.StatusBadRequest, errorBody{Code: "validation_error", Error: err.Error()})
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrExperienceNotFound),
		errors.Is(err, repository.ErrSlotNotFound),
		errors.Is(err, repository.ErrBookingNotFound):
		return c.JSON(http.StatusNotFound, errorBody{Code: "not_found", Error: err.Error()})
	case errors.Is(err, repository.ErrSlotInactive):
		return c.JSON(http.StatusConflict, errorBody{Code: "slot_inactive", Error: err.Error()})
	case errors.Is(err, repository.ErrSlotInPast):
		return c.JSON(http.StatusBadRequest, errorBody{Code: "slot_in_the_past", Error: err.Error()})
	case errors.As(err, &capErr):
		metrics.IncCapacityRejected()
		return c.JSON(http.StatusConflict, errorBody{Code: "insufficient_capacity", Error: capErr.Error(), Remaining: &capErr.Remaining})
	case errors.Is(err, repository.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, errorBody{Code: "invalid_transition", Error: err.Error()})
	case errors.Is(err, repository.ErrAlreadyTerminal):
		return c.JSON(http.StatusConflict, errorBody{Code: "already_terminal", Error: err.Error()})
	case errors.Is(err, repository.ErrBusy):
		return c.JSON(http.StatusServiceUnavailable, errorBody{Code: "busy", Error: "slot is busy, retry the request"})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, errorBody{Code: "forbidden", Error: "forbidden"})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, errorBody{Code: "conflict", Error: "conflicting state"})
	default:
		return c.JSON(http.StatusInternalServerError, errorBody{Code: "internal_error", Error: "internal error"})
	}
}
