package models

import (
	"time"

	"github.com/google/uuid"
)

// WebhookLog is an append-only record of every inbound gateway notification
// and its outcome. Writing it is best effort; a failed insert never blocks
// reconciliation.
type WebhookLog struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Gateway   string     `gorm:"size:40;not null;index" json:"gateway"`
	PaymentID *uuid.UUID `gorm:"type:uuid;index" json:"payment_id,omitempty"`
	Payload   string     `gorm:"type:text;not null" json:"payload"`
	Outcome   string     `gorm:"size:255;not null" json:"outcome"`
	CreatedAt time.Time  `json:"created_at"`
}
