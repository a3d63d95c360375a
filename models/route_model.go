package models

import (
	"time"

	"github.com/google/uuid"
)

type Route struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Name        string    `gorm:"size:120;not null" json:"name"`
	Origin      string    `gorm:"size:120;not null" json:"origin"`
	Destination string    `gorm:"size:120;not null" json:"destination"`
	BasePrice   float64   `gorm:"type:numeric(12,2);not null" json:"base_price"`
	Currency    string    `gorm:"size:3;not null;default:'KES'" json:"currency"`
	Active      bool      `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type VariationKind string

const (
	VariationPercentage VariationKind = "PERCENTAGE"
	VariationFlat       VariationKind = "FLAT"
)

// PriceVariation is a date-scoped fare adjustment on a route, e.g. a weekend
// or holiday surcharge. A variation matches a travel date by weekday name,
// by an explicit date list, or by a date range, checked in that order.
type PriceVariation struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	RouteID uuid.UUID `gorm:"type:uuid;not null;index" json:"route_id"`
	Name    string    `gorm:"size:120;not null" json:"name"`

	Kind   VariationKind `gorm:"size:20;not null" json:"kind"`
	Amount float64       `gorm:"type:numeric(12,2);not null" json:"amount"`

	// DaysOfWeek is a comma-separated list of weekday names ("Saturday,Sunday").
	// Dates is a comma-separated list of explicit YYYY-MM-DD dates.
	DaysOfWeek string     `gorm:"size:120" json:"days_of_week"`
	Dates      string     `gorm:"type:text" json:"dates"`
	StartDate  *time.Time `gorm:"type:date" json:"start_date,omitempty"`
	EndDate    *time.Time `gorm:"type:date" json:"end_date,omitempty"`

	Active bool `gorm:"not null;default:true" json:"active"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
