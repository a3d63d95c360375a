package models

import (
	"time"

	"github.com/google/uuid"
)

type TransferStatus string

const (
	TransferPending   TransferStatus = "PENDING"
	TransferApproved  TransferStatus = "APPROVED"
	TransferRejected  TransferStatus = "REJECTED"
	TransferCompleted TransferStatus = "COMPLETED"
	TransferCancelled TransferStatus = "CANCELLED"
)

func (s TransferStatus) IsTerminal() bool {
	return s == TransferRejected || s == TransferCompleted || s == TransferCancelled
}

type BookingTransfer struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BookingID uuid.UUID `gorm:"type:uuid;not null;index" json:"booking_id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null" json:"user_id"`

	FromRouteID    uuid.UUID `gorm:"type:uuid;not null" json:"from_route_id"`
	ToRouteID      uuid.UUID `gorm:"type:uuid;not null" json:"to_route_id"`
	FromTravelDate time.Time `gorm:"type:date;not null" json:"from_travel_date"`
	ToTravelDate   time.Time `gorm:"type:date;not null" json:"to_travel_date"`
	FromSeat       string    `gorm:"size:10;not null" json:"from_seat"`
	ToSeat         string    `gorm:"size:10;not null" json:"to_seat"`

	OriginalAmount  float64 `gorm:"type:numeric(12,2);not null" json:"original_amount"`
	NewAmount       float64 `gorm:"type:numeric(12,2);not null" json:"new_amount"`
	PriceDifference float64 `gorm:"type:numeric(12,2);not null" json:"price_difference"`

	Status      TransferStatus `gorm:"size:20;not null;default:'PENDING'" json:"status"`
	ReviewedBy  *uuid.UUID     `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewNotes *string        `gorm:"type:text" json:"review_notes,omitempty"`

	RequestedAt time.Time  `gorm:"not null" json:"requested_at"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SeatHistory is the audit record written exactly once per executed transfer.
type SeatHistory struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BookingID  uuid.UUID `gorm:"type:uuid;not null;index" json:"booking_id"`
	TransferID uuid.UUID `gorm:"type:uuid;not null;unique" json:"transfer_id"`

	OldRouteID    uuid.UUID `gorm:"type:uuid;not null" json:"old_route_id"`
	NewRouteID    uuid.UUID `gorm:"type:uuid;not null" json:"new_route_id"`
	OldTravelDate time.Time `gorm:"type:date;not null" json:"old_travel_date"`
	NewTravelDate time.Time `gorm:"type:date;not null" json:"new_travel_date"`
	OldSeat       string    `gorm:"size:10;not null" json:"old_seat"`
	NewSeat       string    `gorm:"size:10;not null" json:"new_seat"`

	CreatedAt time.Time `json:"created_at"`
}
