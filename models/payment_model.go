package models

import (
	"time"

	"github.com/google/uuid"
)

type PaymentMethod string

const (
	MethodMpesa  PaymentMethod = "MOBILE_MONEY_A"
	MethodAirtel PaymentMethod = "MOBILE_MONEY_B"
	MethodCard   PaymentMethod = "CARD"
	MethodCash   PaymentMethod = "CASH"
)

func (m PaymentMethod) IsOnline() bool {
	return m == MethodMpesa || m == MethodAirtel || m == MethodCard
}

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch PaymentMethod(s) {
	case MethodMpesa, MethodAirtel, MethodCard, MethodCash:
		return PaymentMethod(s), true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
	PaymentRefunded  PaymentStatus = "REFUNDED"
)

// IsTerminal reports whether gateway-driven transitions may no longer touch
// this status. REFUNDED is reached only from COMPLETED through the manual
// settlement path.
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentCompleted || s == PaymentFailed || s == PaymentRefunded
}

type PaymentPurpose string

const (
	PurposeBooking  PaymentPurpose = "BOOKING"
	PurposeTransfer PaymentPurpose = "TRANSFER_DIFFERENCE"
)

type Payment struct {
	ID         uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BookingID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"booking_id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null" json:"user_id"`
	TransferID *uuid.UUID `gorm:"type:uuid;unique" json:"transfer_id,omitempty"`

	Amount   float64 `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency string  `gorm:"size:3;not null" json:"currency"`

	Method  PaymentMethod  `gorm:"size:20;not null" json:"method"`
	Purpose PaymentPurpose `gorm:"size:30;not null;default:'BOOKING'" json:"purpose"`
	Status  PaymentStatus  `gorm:"size:20;not null" json:"status"`

	// Reference is the client-generated idempotency key sent to the rail.
	// TransactionID is assigned by the provider and stays nil until the
	// adapter responds.
	Reference     string  `gorm:"size:64;not null;uniqueIndex" json:"reference"`
	TransactionID *string `gorm:"size:255;uniqueIndex" json:"transaction_id,omitempty"`

	FailureReason *string  `gorm:"size:255" json:"failure_reason,omitempty"`
	RefundAmount  *float64 `gorm:"type:numeric(12,2)" json:"refund_amount,omitempty"`
	RefundReason  *string  `gorm:"type:text" json:"refund_reason,omitempty"`

	Events []PaymentEvent `gorm:"foreignkey:PaymentID" json:"events,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PaymentEvent is one entry of a payment's append-only history. Rows are
// created on initiate, on every webhook or poll outcome, and on manual staff
// actions; they are never updated or deleted.
type PaymentEvent struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PaymentID uuid.UUID `gorm:"type:uuid;not null;index" json:"payment_id"`
	Type      string    `gorm:"size:40;not null" json:"type"`
	Payload   string    `gorm:"type:text" json:"payload"`
	At        time.Time `gorm:"not null" json:"at"`
}
