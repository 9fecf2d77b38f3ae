package queue

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/rme/rme/internal/platform/auth"
	"github.com/rme/rme/internal/platform/db"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("", auth.RequireRole("ADMIN", "DOCTOR", "NURSE", "STAFF", "CASHIER"))
	g.GET("/queue", h.ListQueue)
	g.POST("/queue/next", h.CallNext)
	g.POST("/queue/:id/done", h.Complete)
	g.POST("/queue/:id/skip", h.Skip)
}

func (h *Handler) ListQueue(c echo.Context) error {
	tenantID := db.TenantFromContext(c.Request().Context())

	tickets, err := h.svc.ListActive(c.Request().Context(), tenantID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if tickets == nil {
		tickets = []*Ticket{}
	}
	return c.JSON(http.StatusOK, tickets)
}

func (h *Handler) CallNext(c echo.Context) error {
	tenantID := db.TenantFromContext(c.Request().Context())

	t, err := h.svc.CallNext(c.Request().Context(), tenantID)
	if err != nil {
		if errors.Is(err, ErrEmptyQueue) {
			return echo.NewHTTPError(http.StatusNotFound, "no waiting tickets")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.transition(c, h.svc.Complete)
}

func (h *Handler) Skip(c echo.Context) error {
	return h.transition(c, h.svc.Skip)
}

func (h *Handler) transition(c echo.Context, fn func(ctx context.Context, tenantID, id uuid.UUID) (*Ticket, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	tenantID := db.TenantFromContext(c.Request().Context())

	t, err := fn(c.Request().Context(), tenantID, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrTicketNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "ticket not found")
		case errors.Is(err, ErrInvalidState):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, t)
}
