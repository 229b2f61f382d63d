package handler

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/communitycal/bookingcore/internal/dto"
	"github.com/communitycal/bookingcore/internal/models"
	"github.com/communitycal/bookingcore/internal/service"
)

type BookingHandler struct {
	bookingSvc  service.BookingService
	waitlistSvc service.WaitlistService
}

func NewBookingHandler(bookingSvc service.BookingService, waitlistSvc service.WaitlistService) *BookingHandler {
	return &BookingHandler{bookingSvc: bookingSvc, waitlistSvc: waitlistSvc}
}

func (h *BookingHandler) RegisterRoutes(e *echo.Echo) {
	units := e.Group("/api/v1/units")
	units.POST("/:id/claims", h.ClaimUnit)
	units.POST("/:id/bookings", h.BookCapacity)
	units.GET("/:id/claims", h.ListClaims)

	claims := e.Group("/api/v1/claims")
	claims.GET("/:id", h.GetClaim)
	claims.DELETE("/:id", h.CancelClaim)
	claims.POST("/:id/confirm", h.ConfirmOffer)
	claims.POST("/:id/decline", h.DeclineOffer)
	claims.POST("/:id/settle", h.SettleClaim)

	e.GET("/api/v1/events/:id/dates/:date/availability", h.Availability)
	e.POST("/api/v1/sweeps", h.Sweep)
}

func (h *BookingHandler) ClaimUnit(c echo.Context) error {
	unitID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	holder, err := holderFromRequest(c)
	if err != nil {
		return err
	}

	claim, err := h.bookingSvc.ClaimUnit(c.Request().Context(), unitID, holder)
	if err != nil {
		return mapBookingErr(err)
	}
	return c.JSON(http.StatusCreated, dto.ToClaimResponse(claim))
}

func (h *BookingHandler) BookCapacity(c echo.Context) error {
	unitID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	holder, err := holderFromRequest(c)
	if err != nil {
		return err
	}

	claim, err := h.bookingSvc.BookCapacity(c.Request().Context(), unitID, holder)
	if err != nil {
		return mapBookingErr(err)
	}
	return c.JSON(http.StatusCreated, dto.ToClaimResponse(claim))
}

func (h *BookingHandler) CancelClaim(c echo.Context) error {
	claimID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	claim, err := h.bookingSvc.CancelClaim(c.Request().Context(), claimID)
	if err != nil {
		return mapBookingErr(err)
	}
	return c.JSON(http.StatusOK, dto.ToClaimResponse(claim))
}

func (h *BookingHandler) ConfirmOffer(c echo.Context) error {
	claimID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	claim, err := h.waitlistSvc.ConfirmOffer(c.Request().Context(), claimID)
	if err != nil {
		return mapBookingErr(err)
	}
	return c.JSON(http.StatusOK, dto.ToClaimResponse(claim))
}

func (h *BookingHandler) DeclineOffer(c echo.Context) error {
	claimID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	claim, err := h.waitlistSvc.DeclineOffer(c.Request().Context(), claimID)
	if err != nil {
		return mapBookingErr(err)
	}
	return c.JSON(http.StatusOK, dto.ToClaimResponse(claim))
}

func (h *BookingHandler) SettleClaim(c echo.Context) error {
	claimID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var req dto.SettleRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	claim, err := h.bookingSvc.SettleClaim(c.Request().Context(), claimID, models.ClaimStatus(req.Outcome))
	if err != nil {
		return mapBookingErr(err)
	}
	return c.JSON(http.StatusOK, dto.ToClaimResponse(claim))
}

func (h *BookingHandler) GetClaim(c echo.Context) error {
	claimID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	claim, err := h.bookingSvc.GetClaim(c.Request().Context(), claimID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "claim not found")
	}
	return c.JSON(http.StatusOK, dto.ToClaimResponse(claim))
}

func (h *BookingHandler) ListClaims(c echo.Context) error {
	unitID, err := paramID(c, "id")
	if err != nil {
		return err
	}

	var status *models.ClaimStatus
	if s := c.QueryParam("status"); s != "" {
		cs := models.ClaimStatus(s)
		status = &cs
	}

	claims, err := h.bookingSvc.ListClaims(c.Request().Context(), unitID, status)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	resp := make([]dto.ClaimResponse, len(claims))
	for i := range claims {
		resp[i] = dto.ToClaimResponse(&claims[i])
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *BookingHandler) Availability(c echo.Context) error {
	eventID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	statuses, err := h.bookingSvc.UnitAvailability(c.Request().Context(), eventID, c.Param("date"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, statuses)
}

func (h *BookingHandler) Sweep(c echo.Context) error {
	var req dto.SweepRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	promoted, err := h.waitlistSvc.SweepExpiredOffers(c.Request().Context(), req.UnitID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, dto.SweepResponse{PromotedClaimIDs: promoted})
}

// holderFromRequest resolves the claiming identity: a member id, or a fresh
// uuid token for a guest who has none.
func holderFromRequest(c echo.Context) (service.Holder, error) {
	var req dto.ClaimRequest
	if err := c.Bind(&req); err != nil {
		return service.Holder{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.MemberID != "" {
		return service.Holder{Kind: models.HolderMember, ID: req.MemberID}, nil
	}
	if req.GuestName != "" {
		return service.Holder{Kind: models.HolderGuest, ID: "guest-" + uuid.NewString()}, nil
	}
	return service.Holder{}, echo.NewHTTPError(http.StatusBadRequest, "member_id or guest_name is required")
}

func mapBookingErr(err error) error {
	switch {
	case errors.Is(err, service.ErrEventNotFound),
		errors.Is(err, service.ErrUnitNotFound),
		errors.Is(err, service.ErrClaimNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrOfferExpired):
		return echo.NewHTTPError(http.StatusGone, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
