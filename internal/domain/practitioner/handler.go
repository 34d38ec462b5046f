package practitioner

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medsched/medsched/internal/domain/scheduling"
	"github.com/medsched/medsched/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/practitioners", h.ListPractitioners)
	api.GET("/practitioners/:id/schedule", h.GetSchedule)
	api.PUT("/practitioners/:id/schedule", h.PutSchedule)
	api.PUT("/practitioners/:id/availability/:date", h.PutAvailability)
	api.GET("/departments", h.ListDepartments)
}

type availabilityBody struct {
	Windows []scheduling.Interval `json:"windows"`
}

func fail(err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, scheduling.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, scheduling.ErrNotFound):
		status = http.StatusNotFound
	default:
		return echo.NewHTTPError(status, scheduling.ErrorBody{
			Code:    scheduling.Code(err),
			Message: "internal server error",
		}).SetInternal(err)
	}
	return echo.NewHTTPError(status, scheduling.ErrorBody{Code: scheduling.Code(err), Message: err.Error()})
}

func badRequest(msg string) error {
	return fail(fmt.Errorf("%w: %s", scheduling.ErrValidation, msg))
}

func practitionerID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid practitioner id")
	}
	return id, nil
}

func (h *Handler) PutSchedule(c echo.Context) error {
	id, err := practitionerID(c)
	if err != nil {
		return err
	}
	var req ScheduleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	p, err := h.svc.PutSchedule(c.Request().Context(), id, req)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) GetSchedule(c echo.Context) error {
	id, err := practitionerID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) PutAvailability(c echo.Context) error {
	id, err := practitionerID(c)
	if err != nil {
		return err
	}
	date, err := scheduling.ParseDate(c.Param("date"))
	if err != nil {
		return fail(err)
	}
	var body availabilityBody
	if err := c.Bind(&body); err != nil {
		return badRequest("invalid request body")
	}
	day, err := h.svc.SetAvailability(c.Request().Context(), id, date, body.Windows)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) ListPractitioners(c echo.Context) error {
	pg := pagination.FromContext(c)
	f := ListFilter{
		Department: c.QueryParam("department"),
		Search:     c.QueryParam("search"),
	}
	items, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, pagination.Page(c, items, total, pg))
}

func (h *Handler) ListDepartments(c echo.Context) error {
	deps, err := h.svc.Departments(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"departments": deps})
}
