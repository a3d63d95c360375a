package models

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

type Booking struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	RouteID    uuid.UUID `gorm:"type:uuid;not null" json:"route_id"`
	TravelDate time.Time `gorm:"type:date;not null" json:"travel_date"`
	SeatNumber string    `gorm:"size:10;not null" json:"seat_number"`

	Status BookingStatus `gorm:"size:20;not null;default:'PENDING'" json:"status"`

	// TotalAmount is what the customer owes; ActualPrice is the fare after
	// any stopover discount applied at booking time.
	TotalAmount float64 `gorm:"type:numeric(12,2);not null" json:"total_amount"`
	ActualPrice float64 `gorm:"type:numeric(12,2);not null" json:"actual_price"`

	User  User  `gorm:"foreignkey:UserID" json:"-"`
	Route Route `gorm:"foreignkey:RouteID" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
