package common

import (
	"context"
	"fmt"
	"time"

	"rentals/src/lib"
	"rentals/src/models"
	"rentals/src/types"

	"golang.org/x/sync/errgroup"
)

// RentalEnrichment carries the tri-state outcome of each remote lookup so
// the handler can decide between tolerant and strict composition.
type RentalEnrichment struct {
	Product         lib.Lookup[types.RentalProduct]
	InventoryItem   lib.Lookup[types.RentalInventoryItem]
	Customer        lib.Lookup[types.RentalCustomer]
	ShippingAddress lib.Lookup[types.RentalCustomerAddress]
}

// Unavailable reports which remote enrichments failed because a service was
// unreachable, as opposed to cleanly answering "not found".
func (e *RentalEnrichment) Unavailable() []string {
	var out []string
	if e.Product.State == lib.LookupUnavailable {
		out = append(out, "product")
	}
	if e.InventoryItem.State == lib.LookupUnavailable {
		out = append(out, "inventory_item")
	}
	if e.Customer.State == lib.LookupUnavailable {
		out = append(out, "customer")
	}
	if e.ShippingAddress.State == lib.LookupUnavailable {
		out = append(out, "shipping_address")
	}
	return out
}

// EnrichRental fans out to the product and customer services in parallel.
// The lookups are independent; only their individual outcomes matter.
func EnrichRental(ctx context.Context, rental *models.Rental, products *lib.ProductsClient, customers *lib.CustomersClient) *RentalEnrichment {
	enrichment := &RentalEnrichment{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		enrichment.Product = products.GetProductByID(gctx, rental.ProductID)
		return nil
	})
	g.Go(func() error {
		enrichment.InventoryItem = products.GetInventoryItemByID(gctx, rental.InventoryItemID)
		return nil
	})
	g.Go(func() error {
		enrichment.Customer = customers.GetCustomerByID(gctx, rental.CustomerID)
		return nil
	})
	g.Go(func() error {
		enrichment.ShippingAddress = customers.GetAddressByID(gctx, rental.ShippingAddressID)
		return nil
	})
	g.Wait()
	return enrichment
}

// BuildRentalResponse merges the local record with the enrichment outcome.
// Failed lookups surface as nil fields, never as a hard failure here.
func BuildRentalResponse(rental *models.Rental, enrichment *RentalEnrichment, now time.Time) *types.APIResponseRental {
	resp := &types.APIResponseRental{
		ID:                rental.ID,
		RentalNumber:      rental.RentalNumber,
		ProductID:         rental.ProductID,
		InventoryItemID:   rental.InventoryItemID,
		CustomerID:        rental.CustomerID,
		ShippingAddressID: rental.ShippingAddressID,
		BookingDate:       rental.BookingDate,
		StartDate:         rental.StartDate,
		EndDate:           rental.EndDate,
		ActualStartDate:   rental.ActualStart,
		ActualReturnDate:  rental.ActualEnd,
		RentalPrice:       rental.RentalPrice,
		DailyRate:         rental.DailyRate,
		SecurityDeposit:   rental.SecurityDeposit,
		LateFee:           rental.LateFee,
		DamageFee:         rental.DamageFee,
		Status:            rental.Status,
		RentalDays:        rental.RentalDays(),
		TotalAmount:       rental.TotalAmount(),
		IsOverdue:         rental.IsOverdue(now),
		Notes:             rental.Notes,
		Height:            rental.Height,
		Chest:             rental.Chest,
		Waist:             rental.Waist,
		Hip:               rental.Hip,
		Shoulder:          rental.Shoulder,
		SleeveLength:      rental.SleeveLength,
		Inseam:            rental.Inseam,
		CreatedAt:         rental.CreatedAt,
		CreatedBy:         rental.CreatedBy,
		UpdatedAt:         rental.UpdatedAt,
		UpdatedBy:         rental.UpdatedBy,
		Version:           rental.Version,
	}
	if enrichment != nil {
		resp.Product = enrichment.Product.Value
		resp.InventoryItem = enrichment.InventoryItem.Value
		resp.Customer = enrichment.Customer.Value
		resp.ShippingAddress = enrichment.ShippingAddress.Value
	}
	return resp
}

// NewStatusChangedEvent builds the notification payload for a transition,
// enriched best-effort with names the notification templates use.
func NewStatusChangedEvent(rental *models.Rental, enrichment *RentalEnrichment) *types.SendNotificationRequestBody {
	payload := types.JSONB{
		"rental_id":     rental.ID.String(),
		"rental_number": rental.RentalNumber,
		"status":        string(rental.Status),
		"start_date":    rental.StartDate.Format("2006-01-02"),
		"end_date":      rental.EndDate.Format("2006-01-02"),
		"link":          fmt.Sprintf("/rentals/manage/%s", rental.ID),
	}
	if enrichment != nil {
		if c := enrichment.Customer.Value; c != nil {
			payload["customer_name"] = c.Name
			payload["customer_phone"] = c.PhoneNumber
		}
		if p := enrichment.Product.Value; p != nil {
			payload["product_name"] = p.Name
			payload["category_name"] = p.CategoryName
		}
		if i := enrichment.InventoryItem.Value; i != nil {
			payload["size"] = i.Size
			payload["color"] = i.Color
		}
	}
	return &types.SendNotificationRequestBody{
		Type:   types.NOTIFICATION_RENTAL_STATUS_CHANGED,
		Rental: payload,
	}
}
