package types

import (
	"time"

	"github.com/google/uuid"
)

// APIResponseRental is the composite read model: the local record plus
// whatever the product and customer services answered. Enrichment fields are
// nil when the owning service had no record or could not be reached.
type APIResponseRental struct {
	ID                uuid.UUID `json:"id"`
	RentalNumber      string    `json:"rental_number"`
	ProductID         uuid.UUID `json:"product_id"`
	InventoryItemID   uuid.UUID `json:"inventory_item_id"`
	CustomerID        uuid.UUID `json:"customer_id"`
	ShippingAddressID uuid.UUID `json:"shipping_address_id"`

	BookingDate      time.Time  `json:"booking_date"`
	StartDate        time.Time  `json:"start_date"`
	EndDate          time.Time  `json:"end_date"`
	ActualStartDate  *time.Time `json:"actual_start_date,omitempty"`
	ActualReturnDate *time.Time `json:"actual_return_date,omitempty"`

	RentalPrice     float64  `json:"rental_price"`
	DailyRate       float64  `json:"daily_rate"`
	SecurityDeposit float64  `json:"security_deposit"`
	LateFee         *float64 `json:"late_fee,omitempty"`
	DamageFee       *float64 `json:"damage_fee,omitempty"`

	Status      RentalStatus `json:"status"`
	RentalDays  int          `json:"rental_days"`
	TotalAmount float64      `json:"total_amount"`
	IsOverdue   bool         `json:"is_overdue"`
	Notes       string       `json:"notes,omitempty"`

	Height       string `json:"height,omitempty"`
	Chest        string `json:"chest,omitempty"`
	Waist        string `json:"waist,omitempty"`
	Hip          string `json:"hip,omitempty"`
	Shoulder     string `json:"shoulder,omitempty"`
	SleeveLength string `json:"sleeve_length,omitempty"`
	Inseam       string `json:"inseam,omitempty"`

	Product         *RentalProduct         `json:"product"`
	InventoryItem   *RentalInventoryItem   `json:"inventory_item"`
	Customer        *RentalCustomer        `json:"customer"`
	ShippingAddress *RentalCustomerAddress `json:"shipping_address"`

	CreatedAt time.Time `json:"created_at"`
	CreatedBy string    `json:"created_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	Version   int       `json:"version"`
}
