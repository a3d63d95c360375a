package services

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SeatService is the availability guard shared by booking creation and
// transfer execution. The check is advisory only: the storage layer backs it
// with a partial unique index over active bookings, so a lost check-then-act
// race still cannot sell one seat twice.
type SeatService struct {
	store Store
}

func NewSeatService(store Store) *SeatService {
	return &SeatService{store: store}
}

// CheckSeatAvailability returns false exactly when a booking with status
// PENDING or CONFIRMED already holds the (route, date, seat) triple.
func (s *SeatService) CheckSeatAvailability(ctx context.Context, routeID uuid.UUID, travelDate time.Time, seat string) (bool, error) {
	taken, err := s.store.SeatTaken(ctx, routeID, travelDate, seat)
	if err != nil {
		return false, err
	}
	return !taken, nil
}
