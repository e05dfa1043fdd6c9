package scheduling

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medportal/portal/internal/domain/availability"
	"github.com/medportal/portal/internal/platform/auth"
	"github.com/medportal/portal/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/appointments", h.ListAppointments)
	api.GET("/appointments/:id", h.GetAppointment)
	api.POST("/appointments", h.BookAppointment, auth.RequireRole(auth.RoleAdmin, auth.RolePatient))
	api.POST("/appointments/:id/cancel", h.CancelAppointment)

	clinical := auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor)
	api.POST("/appointments/:id/noshow", h.MarkNoShow, clinical)
	api.POST("/appointments/:id/fulfil", h.MarkFulfilled, clinical)
}

func (h *Handler) BookAppointment(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	ctx := c.Request().Context()
	sess, _ := auth.SessionFromContext(ctx)
	a, created, err := h.svc.BookAppointment(ctx, sess, req)
	if err != nil {
		return httpError(err)
	}
	if !created {
		return c.JSON(http.StatusOK, a)
	}
	return c.JSON(http.StatusCreated, a)
}

func (h *Handler) GetAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	sess, _ := auth.SessionFromContext(ctx)
	a, err := h.svc.GetAppointment(ctx, sess, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	pg := pagination.FromContext(c)
	ctx := c.Request().Context()
	sess, _ := auth.SessionFromContext(ctx)

	if d := c.QueryParam("doctor_id"); d != "" {
		doctorID, err := uuid.Parse(d)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid doctor_id")
		}
		items, total, err := h.svc.ListByDoctor(ctx, sess, doctorID, pg.Limit, pg.Offset)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithNext(c))
	}

	patientID := c.QueryParam("patient_id")
	if patientID == "" {
		if !sess.HasRole(auth.RolePatient) {
			return echo.NewHTTPError(http.StatusBadRequest, "patient_id or doctor_id is required")
		}
		patientID = sess.UserID
	}
	items, total, err := h.svc.ListByPatient(ctx, sess, patientID, pg.Limit, pg.Offset)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset).WithNext(c))
}

func (h *Handler) CancelAppointment(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	var req CancelRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if err := c.Validate(&req); err != nil {
			return err
		}
	}
	ctx := c.Request().Context()
	sess, _ := auth.SessionFromContext(ctx)
	a, err := h.svc.CancelAppointment(ctx, sess, id, req.Reason)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	return h.closeWith(c, h.svc.MarkNoShow)
}

func (h *Handler) MarkFulfilled(c echo.Context) error {
	return h.closeWith(c, h.svc.MarkFulfilled)
}

func (h *Handler) closeWith(c echo.Context, fn func(context.Context, auth.Session, uuid.UUID) (*Appointment, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	sess, _ := auth.SessionFromContext(ctx)
	a, err := fn(ctx, sess, id)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, a)
}

func httpError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrStaleAppointment):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
	return availability.HTTPError(err)
}
