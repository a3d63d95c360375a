package models

import (
	"time"

	"github.com/google/uuid"
)

type RefundTaskStatus string

const (
	RefundQueued  RefundTaskStatus = "QUEUED"
	RefundSettled RefundTaskStatus = "SETTLED"
)

// RefundTask queues a downward price adjustment for manual settlement. No
// gateway-mediated refund exists; a staff member moves the money and marks
// the task settled.
type RefundTask struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	PaymentID uuid.UUID `gorm:"type:uuid;not null;index" json:"payment_id"`
	Amount    float64   `gorm:"type:numeric(12,2);not null" json:"amount"`
	Reason    string    `gorm:"type:text;not null" json:"reason"`

	Status    RefundTaskStatus `gorm:"size:20;not null;default:'QUEUED'" json:"status"`
	SettledBy *uuid.UUID       `gorm:"type:uuid" json:"settled_by,omitempty"`
	SettledAt *time.Time       `json:"settled_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
