package subject

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/subjects", h.CreateSubject)
	api.GET("/subjects/:id", h.GetSubject)
}

func (h *Handler) CreateSubject(c echo.Context) error {
	var sub Subject
	if err := c.Bind(&sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := h.svc.Create(c.Request().Context(), &sub); err != nil {
		if errors.Is(err, ErrValidation) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create subject").SetInternal(err)
	}
	return c.JSON(http.StatusCreated, sub)
}

func (h *Handler) GetSubject(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	sub, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "subject not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get subject").SetInternal(err)
	}
	return c.JSON(http.StatusOK, sub)
}
