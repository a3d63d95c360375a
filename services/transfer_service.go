package services

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wanjalasam/bus_booking/apperr"
	"github.com/wanjalasam/bus_booking/models"
)

// TransferService runs the booking-transfer state machine:
// PENDING -> {REJECTED, APPROVED, CANCELLED}; APPROVED -> COMPLETED.
// A positive price difference gates execution on the difference payment
// reaching COMPLETED; the seat never moves before the money does.
type TransferService struct {
	store    Store
	seats    *SeatService
	payments *PaymentService
	feed     Broadcaster
	now      func() time.Time
}

func NewTransferService(store Store, seats *SeatService, payments *PaymentService, feed Broadcaster, now func() time.Time) *TransferService {
	if now == nil {
		now = time.Now
	}
	s := &TransferService{store: store, seats: seats, payments: payments, feed: feed, now: now}
	payments.SetTransferExecutor(s.executeApproved)
	return s
}

type TransferRequest struct {
	BookingID    uuid.UUID
	ToRouteID    uuid.UUID
	ToTravelDate time.Time
	ToSeat       string
}

// RequestTransfer validates and prices a customer's transfer request.
func (s *TransferService) RequestTransfer(ctx context.Context, userID uuid.UUID, req TransferRequest) (*models.BookingTransfer, error) {
	booking, err := s.store.GetBooking(ctx, req.BookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, apperr.ForbiddenErr("this is not your booking")
	}
	if booking.Status != models.BookingConfirmed {
		return nil, apperr.ConflictErr("Only confirmed bookings can be transferred")
	}
	if !booking.TravelDate.After(s.now()) {
		return nil, apperr.ValidationErr("cannot transfer a booking whose travel date has passed")
	}
	if !req.ToTravelDate.After(s.now()) {
		return nil, apperr.ValidationErr("target travel date must be in the future")
	}

	toRoute, err := s.store.GetRoute(ctx, req.ToRouteID)
	if err != nil {
		return nil, err
	}
	if !toRoute.Active {
		return nil, apperr.ValidationErr("target route is not active")
	}

	newAmount, err := s.CalculatePriceDifference(ctx, booking, toRoute, req.ToTravelDate)
	if err != nil {
		return nil, err
	}

	transfer := &models.BookingTransfer{
		BookingID:       booking.ID,
		UserID:          userID,
		FromRouteID:     booking.RouteID,
		ToRouteID:       req.ToRouteID,
		FromTravelDate:  booking.TravelDate,
		ToTravelDate:    req.ToTravelDate,
		FromSeat:        booking.SeatNumber,
		ToSeat:          req.ToSeat,
		OriginalAmount:  booking.TotalAmount,
		NewAmount:       newAmount,
		PriceDifference: roundMoney(newAmount - booking.TotalAmount),
		Status:          models.TransferPending,
		RequestedAt:     s.now(),
	}
	if err := s.store.CreateTransferIfVacant(ctx, transfer); err != nil {
		return nil, err
	}

	if s.feed != nil {
		s.feed.TransferStatusChanged(transfer.ID, transfer.Status)
	}
	return transfer, nil
}

// CalculatePriceDifference reprices the booking at the target route and date.
// Same route: the target route's base price plus any active date-scoped
// variation. Different route: the undiscounted base price, ignoring whatever
// stopover discount the original booking carried.
func (s *TransferService) CalculatePriceDifference(ctx context.Context, booking *models.Booking, toRoute *models.Route, toDate time.Time) (float64, error) {
	if toRoute.ID != booking.RouteID {
		return roundMoney(toRoute.BasePrice), nil
	}

	variations, err := s.store.ActiveVariations(ctx, toRoute.ID)
	if err != nil {
		return 0, err
	}

	price := toRoute.BasePrice
	if v := matchVariation(variations, toDate); v != nil {
		switch v.Kind {
		case models.VariationPercentage:
			price += toRoute.BasePrice * v.Amount / 100
		case models.VariationFlat:
			price += v.Amount
		}
	}
	return roundMoney(price), nil
}

// matchVariation picks the applicable variation for a travel date. Weekday
// name matches beat explicit date lists, which beat date ranges.
func matchVariation(variations []models.PriceVariation, date time.Time) *models.PriceVariation {
	weekday := date.Weekday().String()
	day := date.Format("2006-01-02")

	for i := range variations {
		if containsField(variations[i].DaysOfWeek, weekday) {
			return &variations[i]
		}
	}
	for i := range variations {
		if containsField(variations[i].Dates, day) {
			return &variations[i]
		}
	}
	for i := range variations {
		v := &variations[i]
		if v.StartDate != nil && v.EndDate != nil && !date.Before(*v.StartDate) && !date.After(*v.EndDate) {
			return v
		}
	}
	return nil
}

func containsField(csv, want string) bool {
	for _, f := range strings.Split(csv, ",") {
		if strings.EqualFold(strings.TrimSpace(f), want) {
			return true
		}
	}
	return false
}

func roundMoney(x float64) float64 {
	return math.Round(x*100) / 100
}

type ReviewAction string

const (
	ReviewApprove ReviewAction = "APPROVE"
	ReviewReject  ReviewAction = "REJECT"
)

// ReviewTransfer is the staff decision. Approval re-checks the seat and then
// branches on the price difference: an amount still owed parks the transfer
// as APPROVED behind a pending difference payment, a downgrade queues a
// manual refund and executes, and an even swap executes immediately.
func (s *TransferService) ReviewTransfer(ctx context.Context, staffID, transferID uuid.UUID, action ReviewAction, seatOverride, notes string) (*models.BookingTransfer, error) {
	transfer, err := s.store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.Status != models.TransferPending {
		return nil, apperr.ConflictErr("transfer has already been reviewed")
	}

	now := s.now()
	transfer.ReviewedBy = &staffID
	transfer.ReviewedAt = &now
	if notes != "" {
		transfer.ReviewNotes = &notes
	}

	if action == ReviewReject {
		transfer.Status = models.TransferRejected
		if err := s.store.SaveTransfer(ctx, transfer); err != nil {
			return nil, err
		}
		if s.feed != nil {
			s.feed.TransferStatusChanged(transfer.ID, transfer.Status)
		}
		return transfer, nil
	}

	if seatOverride != "" {
		transfer.ToSeat = seatOverride
	}
	free, err := s.seats.CheckSeatAvailability(ctx, transfer.ToRouteID, transfer.ToTravelDate, transfer.ToSeat)
	if err != nil {
		return nil, err
	}
	if !free {
		return nil, apperr.ConflictErr("seat is already taken on the target route and date")
	}

	transfer.Status = models.TransferApproved
	if err := s.store.SaveTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	if s.feed != nil {
		s.feed.TransferStatusChanged(transfer.ID, transfer.Status)
	}

	switch {
	case transfer.PriceDifference > 0:
		// The seat does not move until this payment completes.
		if _, err := s.payments.CreateTransferDifferencePayment(ctx, transfer); err != nil {
			return nil, err
		}
		return transfer, nil
	case transfer.PriceDifference < 0:
		if err := s.payments.RefundForTransfer(ctx, transfer, -transfer.PriceDifference, staffID); err != nil {
			return nil, err
		}
	}

	if err := s.execute(ctx, transfer); err != nil {
		return nil, err
	}
	return transfer, nil
}

// executeApproved is invoked by the payment orchestrator when a transfer's
// difference payment reaches COMPLETED.
func (s *TransferService) executeApproved(ctx context.Context, transferID uuid.UUID) error {
	transfer, err := s.store.GetTransfer(ctx, transferID)
	if err != nil {
		return err
	}
	if transfer.Status != models.TransferApproved {
		return apperr.ConflictErr("transfer is not approved")
	}
	return s.execute(ctx, transfer)
}

// execute performs the seat/route/date swap. The seat history row, the
// booking update, and the transfer completion commit as one unit in the
// storage layer; a partial write is a correctness violation.
func (s *TransferService) execute(ctx context.Context, transfer *models.BookingTransfer) error {
	now := s.now()
	transfer.Status = models.TransferCompleted
	transfer.CompletedAt = &now

	history := &models.SeatHistory{
		BookingID:     transfer.BookingID,
		TransferID:    transfer.ID,
		OldRouteID:    transfer.FromRouteID,
		NewRouteID:    transfer.ToRouteID,
		OldTravelDate: transfer.FromTravelDate,
		NewTravelDate: transfer.ToTravelDate,
		OldSeat:       transfer.FromSeat,
		NewSeat:       transfer.ToSeat,
	}
	if err := s.store.UpdateBookingForTransfer(ctx, transfer, history); err != nil {
		return err
	}
	if s.feed != nil {
		s.feed.TransferStatusChanged(transfer.ID, transfer.Status)
	}
	return nil
}

// CancelTransfer lets the requesting customer withdraw a transfer that has
// not been reviewed yet.
func (s *TransferService) CancelTransfer(ctx context.Context, userID, transferID uuid.UUID) (*models.BookingTransfer, error) {
	transfer, err := s.store.GetTransfer(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if transfer.UserID != userID {
		return nil, apperr.ForbiddenErr("this is not your transfer request")
	}
	if transfer.Status != models.TransferPending {
		return nil, apperr.ConflictErr("only pending transfers can be cancelled")
	}

	transfer.Status = models.TransferCancelled
	if err := s.store.SaveTransfer(ctx, transfer); err != nil {
		return nil, err
	}
	if s.feed != nil {
		s.feed.TransferStatusChanged(transfer.ID, transfer.Status)
	}
	return transfer, nil
}
