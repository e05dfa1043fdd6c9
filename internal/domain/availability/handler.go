package availability

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/medportal/portal/internal/platform/auth"
	engine "github.com/medportal/portal/internal/platform/availability"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/availability")

	doc := g.Group("/doctor/:doctorId")
	doc.GET("/all", h.ListRecords)
	doc.GET("/month", h.GetMonth)
	doc.GET("/day/:date", h.GetDay)

	editor := auth.RequireRole(auth.RoleAdmin, auth.RoleDoctor)
	doc.POST("/recurring", h.SaveRecurring, editor)
	doc.POST("/date", h.SaveDate, editor)
	doc.DELETE("/date/:date", h.RemoveDate, editor)

	g.GET("/search", h.Search)
}

// -- Request bodies --

type SlotInput struct {
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"required,hhmm"`
}

type WeekdayInput struct {
	DayOfWeek string      `json:"day_of_week" validate:"required,oneof=MONDAY TUESDAY WEDNESDAY THURSDAY FRIDAY SATURDAY SUNDAY"`
	TimeSlots []SlotInput `json:"time_slots" validate:"dive"`
}

type RecurringRequest struct {
	Days []WeekdayInput `json:"days" validate:"required,len=7,dive"`
}

type DateRequest struct {
	Date      string      `json:"date" validate:"required,isodate"`
	TimeSlots []SlotInput `json:"time_slots" validate:"dive"`
}

func toSlots(in []SlotInput) ([]engine.TimeSlot, error) {
	if in == nil {
		return nil, nil
	}
	out := make([]engine.TimeSlot, 0, len(in))
	for _, s := range in {
		r, err := engine.NewTimeRange(s.StartTime, s.EndTime)
		if err != nil {
			return nil, err
		}
		out = append(out, engine.FreeSlot(r))
	}
	return out, nil
}

// -- Handlers --

func (h *Handler) ListRecords(c echo.Context) error {
	records, err := h.svc.ListRecords(c.Request().Context(), c.Param("doctorId"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) GetMonth(c echo.Context) error {
	anchor := h.svc.Today()
	if m := c.QueryParam("month"); m != "" {
		var err error
		if anchor, err = engine.ParseMonth(m); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "month must be YYYY-MM")
		}
	}
	view, err := h.svc.ResolveMonth(c.Request().Context(), c.Param("doctorId"), anchor)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, view)
}

func (h *Handler) GetDay(c echo.Context) error {
	date, err := engine.ParseDate(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	day, ok, err := h.svc.ResolveDay(c.Request().Context(), c.Param("doctorId"), date)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "doctor does not work on "+date.String())
	}
	return c.JSON(http.StatusOK, day)
}

func (h *Handler) SaveRecurring(c echo.Context) error {
	var req RecurringRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	days := make([]WeekdaySlots, 0, len(req.Days))
	for _, d := range req.Days {
		slots, err := toSlots(d.TimeSlots)
		if err != nil {
			return httpError(err)
		}
		days = append(days, WeekdaySlots{DayOfWeek: engine.DayOfWeek(d.DayOfWeek), TimeSlots: slots})
	}

	ctx := c.Request().Context()
	sess, _ := auth.SessionFromContext(ctx)
	records, err := h.svc.SaveWeeklySchedule(ctx, sess, c.Param("doctorId"), days)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) SaveDate(c echo.Context) error {
	var req DateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}
	date, err := engine.ParseDate(req.Date)
	if err != nil {
		return httpError(err)
	}
	slots, err := toSlots(req.TimeSlots)
	if err != nil {
		return httpError(err)
	}

	ctx := c.Request().Context()
	sess, _ := auth.SessionFromContext(ctx)
	rec, err := h.svc.SaveDateOverride(ctx, sess, c.Param("doctorId"), date, slots)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func (h *Handler) RemoveDate(c echo.Context) error {
	date, err := engine.ParseDate(c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
	}
	ctx := c.Request().Context()
	sess, _ := auth.SessionFromContext(ctx)
	if err := h.svc.RemoveDateOverride(ctx, sess, c.Param("doctorId"), date); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Search(c echo.Context) error {
	var criteria engine.Criteria
	if s := c.QueryParam("date"); s != "" {
		date, err := engine.ParseDate(s)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		criteria.Date = &date
	}
	criteria.NamePrefix = c.QueryParam("name")

	matches, err := h.svc.Search(c.Request().Context(), criteria)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, matches)
}

// httpError maps service errors onto status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, engine.ErrValidation), errors.Is(err, engine.ErrEmptyQuery):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, engine.ErrSlotConflict), errors.Is(err, engine.ErrDuplicateBooking):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrBookingNotFound), errors.Is(err, ErrRecordNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "you may only manage your own schedule")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}

// HTTPError exposes the mapping for handlers in other packages that call
// into the availability service.
func HTTPError(err error) error { return httpError(err) }
