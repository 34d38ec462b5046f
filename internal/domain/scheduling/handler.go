package scheduling

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medsched/medsched/pkg/pagination"
)

// ErrorBody is the JSON shape of every booking error response.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

type Handler struct {
	svc        *Service
	retryAfter time.Duration
}

// NewHandler serves svc. retryAfter is advertised on busy responses and is usually
// the lock wait bound.
func NewHandler(svc *Service, retryAfter time.Duration) *Handler {
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	return &Handler{svc: svc, retryAfter: retryAfter}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/practitioners/:id/slots", h.ListSlots)

	api.GET("/bookings", h.ListBookings)
	api.GET("/bookings/:id", h.GetBooking)
	api.POST("/bookings", h.CreateBooking)
	api.POST("/bookings/:id/cancel", h.CancelBooking)
	api.POST("/bookings/:id/reschedule", h.RescheduleBooking)
	api.POST("/bookings/:id/complete", h.CompleteBooking)
}

// fail maps service errors onto HTTP status codes and the ErrorBody shape.
func (h *Handler) fail(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrSlotUnavailable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, ErrSlotConflict), errors.Is(err, ErrInvalidStateTransition):
		status = http.StatusConflict
	case errors.Is(err, ErrBusy):
		status = http.StatusServiceUnavailable
		c.Response().Header().Set("Retry-After", strconv.Itoa(int(h.retryAfter/time.Second)))
	case errors.Is(err, context.Canceled):
		status = http.StatusRequestTimeout
	}

	body := ErrorBody{Code: Code(err), Message: err.Error(), Retryable: Retryable(err)}
	if status == http.StatusInternalServerError {
		body.Message = "internal server error"
		return echo.NewHTTPError(status, body).SetInternal(err)
	}
	return echo.NewHTTPError(status, body)
}

func badRequest(msg string) error {
	return echo.NewHTTPError(http.StatusBadRequest, ErrorBody{Code: Code(ErrValidation), Message: msg})
}

func (h *Handler) bookingID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, badRequest("invalid booking id")
	}
	return id, nil
}

// -- Slot Handlers --

func (h *Handler) ListSlots(c echo.Context) error {
	pid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return badRequest("invalid practitioner id")
	}
	date, err := ParseDate(c.QueryParam("date"))
	if err != nil {
		return h.fail(c, err)
	}
	listing, err := h.svc.ListSlots(c.Request().Context(), pid, date)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, listing)
}

// -- Booking Handlers --

func (h *Handler) CreateBooking(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	b, err := h.svc.Book(c.Request().Context(), req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBooking(c echo.Context) error {
	id, err := h.bookingID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.GetBooking(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBookings(c echo.Context) error {
	var f SearchFilter
	if v := c.QueryParam("practitioner_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest("invalid practitioner_id")
		}
		f.PractitionerID = id
	}
	if v := c.QueryParam("subject_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return badRequest("invalid subject_id")
		}
		f.SubjectID = id
	}
	f.Date = Date(c.QueryParam("date"))
	f.Status = Status(c.QueryParam("status"))

	pg := pagination.FromContext(c)
	items, total, err := h.svc.SearchBookings(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, pagination.Page(c, items, total, pg))
}

func (h *Handler) CancelBooking(c echo.Context) error {
	id, err := h.bookingID(c)
	if err != nil {
		return err
	}
	var req CancelRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return badRequest("invalid request body")
		}
	}
	b, err := h.svc.Cancel(c.Request().Context(), id, req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) RescheduleBooking(c echo.Context) error {
	id, err := h.bookingID(c)
	if err != nil {
		return err
	}
	var req RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	b, err := h.svc.Reschedule(c.Request().Context(), id, req)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) CompleteBooking(c echo.Context) error {
	id, err := h.bookingID(c)
	if err != nil {
		return err
	}
	b, err := h.svc.Complete(c.Request().Context(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, b)
}
