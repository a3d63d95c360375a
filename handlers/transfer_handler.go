package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wanjalasam/bus_booking/apperr"
	"github.com/wanjalasam/bus_booking/services"
)

type TransferHandler struct {
	transfers *services.TransferService
}

func NewTransferHandler(transfers *services.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type RequestTransferRequest struct {
	BookingID    string `json:"booking_id" validate:"required,uuid"`
	ToRouteID    string `json:"to_route_id" validate:"required,uuid"`
	ToTravelDate string `json:"to_travel_date" validate:"required,datetime=2006-01-02"`
	ToSeat       string `json:"to_seat" validate:"required,max=10"`
}

func (h *TransferHandler) Request(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondErr(c, err)
	}

	var req RequestTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ValidationErr("cannot parse JSON"))
	}
	if err := validate.Struct(req); err != nil {
		return respondErr(c, apperr.ValidationErr(err.Error()))
	}

	bookingID, err := parseUUIDParamValue(req.BookingID)
	if err != nil {
		return respondErr(c, err)
	}
	toRouteID, err := parseUUIDParamValue(req.ToRouteID)
	if err != nil {
		return respondErr(c, err)
	}
	toDate, _ := time.Parse("2006-01-02", req.ToTravelDate)

	transfer, err := h.transfers.RequestTransfer(c.Context(), userID, services.TransferRequest{
		BookingID:    bookingID,
		ToRouteID:    toRouteID,
		ToTravelDate: toDate,
		ToSeat:       req.ToSeat,
	})
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(transfer)
}

type ReviewTransferRequest struct {
	Action       string `json:"action" validate:"required,oneof=APPROVE REJECT"`
	SeatOverride string `json:"seat_override,omitempty" validate:"omitempty,max=10"`
	Notes        string `json:"notes,omitempty"`
}

func (h *TransferHandler) Review(c *fiber.Ctx) error {
	staffID, err := currentUserID(c)
	if err != nil {
		return respondErr(c, err)
	}
	transferID, err := parseUUIDParam(c, "transferId")
	if err != nil {
		return respondErr(c, err)
	}

	var req ReviewTransferRequest
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ValidationErr("cannot parse JSON"))
	}
	if err := validate.Struct(req); err != nil {
		return respondErr(c, apperr.ValidationErr(err.Error()))
	}

	transfer, err := h.transfers.ReviewTransfer(c.Context(), staffID, transferID,
		services.ReviewAction(req.Action), req.SeatOverride, req.Notes)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(transfer)
}

func (h *TransferHandler) Cancel(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondErr(c, err)
	}
	transferID, err := parseUUIDParam(c, "transferId")
	if err != nil {
		return respondErr(c, err)
	}

	transfer, err := h.transfers.CancelTransfer(c.Context(), userID, transferID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(transfer)
}
