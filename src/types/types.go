package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is the shape shared by every aggregate this service owns: audit
// quadruple, soft-delete triple and the optimistic concurrency version token.
// gorm.DeletedAt keeps soft-deleted rows out of every query without
// per-query filtering.
type Base struct {
	ID        uuid.UUID      `gorm:"primarykey;type:uuid" json:"id"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at,omitempty"`
	CreatedBy string         `json:"created_by,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at,omitempty"`
	UpdatedBy string         `json:"updated_by,omitempty"`
	IsDeleted bool           `gorm:"default:false" json:"-"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	DeletedBy string         `json:"-"`
	Version   int            `gorm:"default:1" json:"version"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type RentalStatus string

const (
	RENTAL_PENDING   RentalStatus = "pending"
	RENTAL_ACTIVE    RentalStatus = "active"
	RENTAL_OVERDUE   RentalStatus = "overdue"
	RENTAL_RETURNED  RentalStatus = "returned"
	RENTAL_CANCELLED RentalStatus = "cancelled"
	RENTAL_COMPLETED RentalStatus = "completed"
)

// Timeline rows snapshot the status as an integer code so the ledger stays
// readable even if the string enum is ever renamed.
var rentalStatusCodes = map[RentalStatus]int{
	RENTAL_PENDING:   1,
	RENTAL_ACTIVE:    2,
	RENTAL_OVERDUE:   3,
	RENTAL_RETURNED:  4,
	RENTAL_CANCELLED: 5,
	RENTAL_COMPLETED: 6,
}

func (s RentalStatus) Code() int {
	return rentalStatusCodes[s]
}

func (s RentalStatus) Valid() bool {
	_, ok := rentalStatusCodes[s]
	return ok
}

func RentalStatusFromCode(code int) RentalStatus {
	for s, c := range rentalStatusCodes {
		if c == code {
			return s
		}
	}
	return ""
}

type Claims struct {
	Username    string   `json:"username"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

type SimpleRequestParams struct {
	ID string `uri:"id" binding:"required,uuid"`
}

type CreateRentalRequestBody struct {
	ProductID         string   `json:"product_id" binding:"required,uuid"`
	InventoryItemID   string   `json:"inventory_item_id" binding:"required,uuid"`
	CustomerID        string   `json:"customer_id" binding:"required,uuid"`
	ShippingAddressID string   `json:"shipping_address_id" binding:"required,uuid"`
	BookingDate       *string  `json:"booking_date,omitempty" binding:"omitempty,rentaldate"`
	StartDate         string   `json:"start_date" binding:"required,rentaldate,ltedate=EndDate"`
	EndDate           string   `json:"end_date" binding:"required,rentaldate"`
	RentalPrice       float64  `json:"rental_price" binding:"min=0"`
	DailyRate         float64  `json:"daily_rate" binding:"min=0"`
	SecurityDeposit   float64  `json:"security_deposit" binding:"min=0"`
	LateFee           *float64 `json:"late_fee,omitempty" binding:"omitempty,min=0"`
	DamageFee         *float64 `json:"damage_fee,omitempty" binding:"omitempty,min=0"`
	Notes             string   `json:"notes,omitempty"`

	Height       string `json:"height,omitempty"`
	Chest        string `json:"chest,omitempty"`
	Waist        string `json:"waist,omitempty"`
	Hip          string `json:"hip,omitempty"`
	Shoulder     string `json:"shoulder,omitempty"`
	SleeveLength string `json:"sleeve_length,omitempty"`
	Inseam       string `json:"inseam,omitempty"`
}

type UpdateRentalRequestBody struct {
	StartDate       *string  `json:"start_date,omitempty" binding:"omitempty,rentaldate"`
	EndDate         *string  `json:"end_date,omitempty" binding:"omitempty,rentaldate"`
	BookingDate     *string  `json:"booking_date,omitempty" binding:"omitempty,rentaldate"`
	RentalPrice     *float64 `json:"rental_price,omitempty" binding:"omitempty,min=0"`
	DailyRate       *float64 `json:"daily_rate,omitempty" binding:"omitempty,min=0"`
	SecurityDeposit *float64 `json:"security_deposit,omitempty" binding:"omitempty,min=0"`
	LateFee         *float64 `json:"late_fee,omitempty" binding:"omitempty,min=0"`
	DamageFee       *float64 `json:"damage_fee,omitempty" binding:"omitempty,min=0"`
	Notes           *string  `json:"notes,omitempty"`

	Height       *string `json:"height,omitempty"`
	Chest        *string `json:"chest,omitempty"`
	Waist        *string `json:"waist,omitempty"`
	Hip          *string `json:"hip,omitempty"`
	Shoulder     *string `json:"shoulder,omitempty"`
	SleeveLength *string `json:"sleeve_length,omitempty"`
	Inseam       *string `json:"inseam,omitempty"`

	// Version the caller last read. A stale value means somebody else wrote
	// in between and the update is rejected.
	Version int `json:"version" binding:"required,min=1"`
}

type UpdateRentalStatusRequestBody struct {
	Status           string  `json:"status" binding:"required"`
	Notes            string  `json:"notes,omitempty"`
	ActualStartDate  *string `json:"actual_start_date,omitempty" binding:"omitempty,rentaldate"`
	ActualReturnDate *string `json:"actual_return_date,omitempty" binding:"omitempty,rentaldate"`
	Version          int     `json:"version" binding:"required,min=1"`
}

type RentalQueryFilters struct {
	Status     string `form:"status,omitempty"`
	CustomerID string `form:"customer,omitempty" binding:"omitempty,uuid"`
	ProductID  string `form:"product,omitempty" binding:"omitempty,uuid"`
	From       string `form:"from,omitempty" binding:"omitempty,rentaldate"`
	To         string `form:"to,omitempty" binding:"omitempty,rentaldate"`
	Page       int    `form:"page,default=1" binding:"min=1"`
	PerPage    int    `form:"per_page,default=20" binding:"min=1,max=100"`
}

// Contract of the product service, as consumed here. Only the fields this
// service reads are declared.
type RentalProduct struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	CategoryName string    `json:"category_name,omitempty"`
	Description  string    `json:"description,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
}

type RentalInventoryItem struct {
	ID     uuid.UUID `json:"id"`
	Status string    `json:"status"`
	Size   string    `json:"size,omitempty"`
	Color  string    `json:"color,omitempty"`
}

const (
	INVENTORY_AVAILABLE = "available"
	INVENTORY_RESERVED  = "reserved"
	INVENTORY_RENTED    = "rented"
)

// Contract of the customer service, as consumed here.
type RentalCustomer struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	PhoneNumber string    `json:"phone_number,omitempty"`
	Email       string    `json:"email,omitempty"`
}

type RentalCustomerAddress struct {
	ID         uuid.UUID `json:"id"`
	Line1      string    `json:"line1"`
	Line2      string    `json:"line2,omitempty"`
	City       string    `json:"city,omitempty"`
	State      string    `json:"state,omitempty"`
	PostalCode string    `json:"postal_code,omitempty"`
}

type APIResponseTimeline struct {
	ID        uuid.UUID `json:"id"`
	RentalID  uuid.UUID `json:"rental_id"`
	ChangedAt time.Time `json:"changed_at"`
	Status    int       `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	ChangedBy string    `json:"changed_by,omitempty"`
}

type NotificationType string

const (
	NOTIFICATION_RENTAL_CREATED        NotificationType = "rental_created"
	NOTIFICATION_RENTAL_STATUS_CHANGED NotificationType = "rental_status_changed"
)

// SendNotificationRequestBody is the event handed to the notification
// service. Delivery is the collaborator's problem.
type SendNotificationRequestBody struct {
	Type     NotificationType `json:"type"`
	Rental   JSONB            `json:"rental"`
	Metadata JSONB            `json:"metadata,omitempty"`
}
