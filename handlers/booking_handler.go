package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/wanjalasam/bus_booking/apperr"
	"github.com/wanjalasam/bus_booking/models"
	"github.com/wanjalasam/bus_booking/services"
	"gorm.io/gorm"
)

// BookingHandler covers the thin booking-creation surface around the engine.
// The seat guard it shares with transfer execution is the interesting part;
// the rest is plumbing.
type BookingHandler struct {
	db    *gorm.DB
	seats *services.SeatService
}

func NewBookingHandler(db *gorm.DB, seats *services.SeatService) *BookingHandler {
	return &BookingHandler{db: db, seats: seats}
}

type CreateBookingRequest struct {
	RouteID    string `json:"route_id" validate:"required,uuid"`
	TravelDate string `json:"travel_date" validate:"required,datetime=2006-01-02"`
	SeatNumber string `json:"seat_number" validate:"required,max=10"`
}

func (h *BookingHandler) Create(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondErr(c, err)
	}

	var req CreateBookingRequest
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ValidationErr("cannot parse JSON"))
	}
	if err := validate.Struct(req); err != nil {
		return respondErr(c, apperr.ValidationErr(err.Error()))
	}

	routeID, err := parseUUIDParamValue(req.RouteID)
	if err != nil {
		return respondErr(c, err)
	}
	travelDate, _ := time.Parse("2006-01-02", req.TravelDate)
	if !travelDate.After(time.Now()) {
		return respondErr(c, apperr.ValidationErr("travel date must be in the future"))
	}

	var route models.Route
	if err := h.db.First(&route, "id = ? AND active = ?", routeID, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondErr(c, apperr.NotFoundErr("route not found"))
		}
		return respondErr(c, apperr.Wrap(err, "failed to load route"))
	}

	free, err := h.seats.CheckSeatAvailability(c.Context(), routeID, travelDate, req.SeatNumber)
	if err != nil {
		return respondErr(c, err)
	}
	if !free {
		return respondErr(c, apperr.ConflictErr("seat is already taken"))
	}

	booking := models.Booking{
		UserID:      userID,
		RouteID:     routeID,
		TravelDate:  travelDate,
		SeatNumber:  req.SeatNumber,
		Status:      models.BookingPending,
		TotalAmount: route.BasePrice,
		ActualPrice: route.BasePrice,
	}
	// The partial unique index backs up the availability check; a lost race
	// surfaces here as a constraint violation.
	if err := h.db.Create(&booking).Error; err != nil {
		return respondErr(c, apperr.ConflictErr("seat is already taken"))
	}

	return c.Status(fiber.StatusCreated).JSON(booking)
}

func (h *BookingHandler) GetMine(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondErr(c, err)
	}

	var bookings []models.Booking
	h.db.Where("user_id = ?", userID).Order("travel_date desc").Find(&bookings)
	return c.JSON(bookings)
}
