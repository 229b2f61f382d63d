package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/lib/pq"

	"github.com/communitycal/bookingcore/internal/datekey"
	"github.com/communitycal/bookingcore/internal/dto"
	"github.com/communitycal/bookingcore/internal/feed"
	"github.com/communitycal/bookingcore/internal/models"
	"github.com/communitycal/bookingcore/internal/service"
)

type ScheduleHandler struct {
	svc service.ScheduleService
}

func NewScheduleHandler(svc service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{svc: svc}
}

func (h *ScheduleHandler) RegisterRoutes(e *echo.Echo) {
	events := e.Group("/api/v1/events")
	events.POST("", h.CreateEvent)
	events.GET("", h.ListEvents)
	events.GET("/:id", h.GetEvent)
	events.PUT("/:id", h.UpdateEvent)
	events.GET("/:id/occurrences", h.ListOccurrences)
	events.GET("/:id/occurrences.ics", h.OccurrenceFeed)
	events.PUT("/:id/overrides/:date", h.PutOverride)
	events.DELETE("/:id/overrides/:date", h.DeleteOverride)
	events.GET("/:id/overrides", h.ListOverrides)
	events.POST("/:id/units", h.EnsureUnits)

	e.GET("/api/v1/occurrences", h.ListAllOccurrences)
}

func (h *ScheduleHandler) CreateEvent(c echo.Context) error {
	var req dto.EventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	event := eventFromRequest(&req)
	if err := h.svc.CreateEvent(c.Request().Context(), event); err != nil {
		return mapScheduleErr(err)
	}
	return c.JSON(http.StatusCreated, event)
}

func (h *ScheduleHandler) UpdateEvent(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	existing, err := h.svc.GetEvent(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}

	var req dto.EventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	updated := eventFromRequest(&req)
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt
	if updated.SlotOfferMinutes <= 0 {
		updated.SlotOfferMinutes = existing.SlotOfferMinutes
	}
	if updated.RSVPOfferMinutes <= 0 {
		updated.RSVPOfferMinutes = existing.RSVPOfferMinutes
	}
	if updated.Timezone == "" {
		updated.Timezone = existing.Timezone
	}

	if err := h.svc.UpdateEvent(c.Request().Context(), updated); err != nil {
		return mapScheduleErr(err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (h *ScheduleHandler) GetEvent(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	event, err := h.svc.GetEvent(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}
	return c.JSON(http.StatusOK, event)
}

func (h *ScheduleHandler) ListEvents(c echo.Context) error {
	events, err := h.svc.ListEvents(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, events)
}

func (h *ScheduleHandler) ListOccurrences(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	start, end, err := windowParams(c)
	if err != nil {
		return err
	}
	includeCancelled := c.QueryParam("include_cancelled") == "true"

	merged, err := h.svc.ExpandOccurrences(c.Request().Context(), id, start, end, includeCancelled)
	if err != nil {
		return mapScheduleErr(err)
	}
	return c.JSON(http.StatusOK, dto.ToOccurrenceListResponse(merged))
}

func (h *ScheduleHandler) ListAllOccurrences(c echo.Context) error {
	start, end, err := windowParams(c)
	if err != nil {
		return err
	}
	res, err := h.svc.ExpandWindow(c.Request().Context(), start, end)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, dto.ToBatchOccurrenceResponse(res))
}

func (h *ScheduleHandler) OccurrenceFeed(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	start, end, err := windowParams(c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	event, err := h.svc.GetEvent(ctx, id)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "event not found")
	}
	merged, err := h.svc.ExpandOccurrences(ctx, id, start, end, true)
	if err != nil {
		return mapScheduleErr(err)
	}

	return c.Blob(http.StatusOK, "text/calendar; charset=utf-8",
		[]byte(feed.BuildCalendar(event, merged)))
}

func (h *ScheduleHandler) PutOverride(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var req dto.OverrideRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	override := &models.OccurrenceOverride{
		EventID:   id,
		DateKey:   c.Param("date"),
		Status:    models.OverrideStatus(req.Status),
		StartTime: req.StartTime,
		FlyerURL:  req.FlyerURL,
		Notes:     req.Notes,
	}
	if err := h.svc.PutOverride(c.Request().Context(), override); err != nil {
		return mapScheduleErr(err)
	}
	return c.JSON(http.StatusOK, override)
}

func (h *ScheduleHandler) DeleteOverride(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.svc.DeleteOverride(c.Request().Context(), id, c.Param("date")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *ScheduleHandler) ListOverrides(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	overrides, err := h.svc.ListOverrides(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, overrides)
}

func (h *ScheduleHandler) EnsureUnits(c echo.Context) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	start, end, err := windowParams(c)
	if err != nil {
		return err
	}
	units, err := h.svc.EnsureUnits(c.Request().Context(), id, start, end)
	if err != nil {
		return mapScheduleErr(err)
	}
	return c.JSON(http.StatusOK, units)
}

func eventFromRequest(req *dto.EventRequest) *models.Event {
	return &models.Event{
		Name:             req.Name,
		Venue:            req.Venue,
		Timezone:         req.Timezone,
		AnchorDate:       req.AnchorDate,
		Weekday:          req.Weekday,
		RecurrenceRule:   req.RecurrenceRule,
		CustomDates:      pq.StringArray(req.CustomDates),
		MaxOccurrences:   req.MaxOccurrences,
		SlotCount:        req.SlotCount,
		SlotMinutes:      req.SlotMinutes,
		HasRSVP:          req.HasRSVP,
		RSVPCapacity:     req.RSVPCapacity,
		SlotOfferMinutes: req.SlotOfferMinutes,
		RSVPOfferMinutes: req.RSVPOfferMinutes,
	}
}

func paramID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

func windowParams(c echo.Context) (datekey.Key, datekey.Key, error) {
	start, err := datekey.Parse(c.QueryParam("start"))
	if err != nil {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "start must be YYYY-MM-DD")
	}
	end, err := datekey.Parse(c.QueryParam("end"))
	if err != nil {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "end must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return "", "", echo.NewHTTPError(http.StatusBadRequest, "end must not precede start")
	}
	return start, end, nil
}

func mapScheduleErr(err error) error {
	switch {
	case errors.Is(err, service.ErrEventNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
