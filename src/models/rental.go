package models

import (
	"rentals/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Rental struct {
	ProductID         uuid.UUID `gorm:"type:uuid;index" json:"product_id"`
	InventoryItemID   uuid.UUID `gorm:"type:uuid;index" json:"inventory_item_id"`
	CustomerID        uuid.UUID `gorm:"type:uuid;index" json:"customer_id"`
	ShippingAddressID uuid.UUID `gorm:"type:uuid" json:"shipping_address_id"`

	BookingDate time.Time  `json:"booking_date"`
	StartDate   time.Time  `gorm:"index" json:"start_date"`
	EndDate     time.Time  `gorm:"index" json:"end_date"`
	ActualStart *time.Time `json:"actual_start_date,omitempty"`
	ActualEnd   *time.Time `json:"actual_return_date,omitempty"`

	RentalPrice     float64  `json:"rental_price"`
	DailyRate       float64  `json:"daily_rate"`
	SecurityDeposit float64  `json:"security_deposit"`
	LateFee         *float64 `json:"late_fee,omitempty"`
	DamageFee       *float64 `json:"damage_fee,omitempty"`

	Status       types.RentalStatus `gorm:"default:'pending';index" json:"status"`
	RentalNumber string             `gorm:"uniqueIndex" json:"rental_number"`
	Notes        string             `json:"notes,omitempty"`

	Height       string `json:"height,omitempty"`
	Chest        string `json:"chest,omitempty"`
	Waist        string `json:"waist,omitempty"`
	Hip          string `json:"hip,omitempty"`
	Shoulder     string `json:"shoulder,omitempty"`
	SleeveLength string `json:"sleeve_length,omitempty"`
	Inseam       string `json:"inseam,omitempty"`

	Timeline []RentalTimeline `gorm:"foreignKey:rental_id;constraint:OnDelete:CASCADE" json:"timeline,omitempty"`

	types.Base
}

func (r *Rental) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Version == 0 {
		r.Version = 1
	}
	return nil
}

// RentalDays is inclusive of both endpoints: a one-day rental starts and
// ends on the same date.
func (r *Rental) RentalDays() int {
	days := int(r.EndDate.Sub(r.StartDate).Hours()/24) + 1
	if days < 1 {
		return 1
	}
	return days
}

func (r *Rental) TotalAmount() float64 {
	total := r.RentalPrice + r.SecurityDeposit
	if r.LateFee != nil {
		total += *r.LateFee
	}
	if r.DamageFee != nil {
		total += *r.DamageFee
	}
	return total
}

// IsOverdue is derived, never stored. A rental past its end date counts as
// overdue regardless of whether the sweep has stamped the stored status yet.
func (r *Rental) IsOverdue(now time.Time) bool {
	if r.Status == types.RENTAL_RETURNED || r.Status == types.RENTAL_CANCELLED {
		return false
	}
	return now.After(r.EndDate)
}
