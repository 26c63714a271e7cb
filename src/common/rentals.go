package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rentals/src/config"
	"rentals/src/db"
	"rentals/src/lib"
	"rentals/src/models"
	"rentals/src/types"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Legal status transitions. Forward progression plus cancellation; returned,
// cancelled and completed are terminal. Completed stays in the enum with no
// inbound edge until the settlement flow lands.
var transitions = map[types.RentalStatus][]types.RentalStatus{
	types.RENTAL_PENDING:   {types.RENTAL_ACTIVE, types.RENTAL_CANCELLED},
	types.RENTAL_ACTIVE:    {types.RENTAL_RETURNED, types.RENTAL_OVERDUE, types.RENTAL_CANCELLED},
	types.RENTAL_OVERDUE:   {types.RENTAL_RETURNED},
	types.RENTAL_RETURNED:  {},
	types.RENTAL_CANCELLED: {},
	types.RENTAL_COMPLETED: {},
}

func CanTransition(from, to types.RentalStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextRentalNumber generates the human-readable number: RNT-YYYYMMDD-NNNNN,
// sequence scoped to the creation day.
func NextRentalNumber(tx *gorm.DB, now time.Time) (string, error) {
	today := now.UTC().Truncate(24 * time.Hour)
	var countToday int64
	err := tx.
		Model(&models.Rental{}).
		Where("created_at >= ? AND created_at < ?", today, today.Add(24*time.Hour)).
		Count(&countToday).
		Error
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("RNT-%s-%05d", today.Format("20060102"), countToday+1), nil
}

// CreateRental persists a new Pending rental together with its first
// timeline entry in one transaction.
func CreateRental(actor string, rental *models.Rental, notes string) error {
	d := db.GetDb()
	return d.Transaction(func(tx *gorm.DB) error {
		var overlapping int64
		err := tx.
			Model(&models.Rental{}).
			Where("inventory_item_id = ?", rental.InventoryItemID).
			Where("status NOT IN ?", []types.RentalStatus{types.RENTAL_CANCELLED, types.RENTAL_RETURNED, types.RENTAL_PENDING}).
			Where("start_date <= ? AND end_date >= ?", rental.EndDate, rental.StartDate).
			Count(&overlapping).
			Error
		if err != nil {
			return err
		}
		if overlapping > 0 {
			return types.NewValidationError(map[string]string{
				"inventory_item_id": "inventory item is already reserved for the selected dates",
			})
		}

		number, err := NextRentalNumber(tx, time.Now().UTC())
		if err != nil {
			return err
		}
		rental.RentalNumber = number
		rental.Status = types.RENTAL_PENDING
		rental.CreatedBy = actor
		rental.UpdatedBy = actor
		if err := tx.Create(rental).Error; err != nil {
			return err
		}

		if notes == "" {
			notes = "Marked as pending"
		}
		entry := models.RentalTimeline{
			RentalID:  rental.ID,
			Status:    rental.Status.Code(),
			Notes:     notes,
			CreatedBy: actor,
		}
		return tx.Create(&entry).Error
	})
}

func GetRental(id uuid.UUID) (*models.Rental, error) {
	d := db.GetDb()
	var rental models.Rental
	err := d.
		Model(&models.Rental{}).
		Where("id = ?", id).
		First(&rental).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewNotFoundError("rental", id.String())
	}
	if err != nil {
		return nil, err
	}
	return &rental, nil
}

// ListRentals returns a filtered page plus the unpaged total.
func ListRentals(filters *types.RentalQueryFilters) ([]models.Rental, int64, error) {
	d := db.GetDb()
	query := d.Model(&models.Rental{})
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.CustomerID != "" {
		query = query.Where("customer_id = ?", filters.CustomerID)
	}
	if filters.ProductID != "" {
		query = query.Where("product_id = ?", filters.ProductID)
	}
	if filters.From != "" {
		query = query.Where("start_date >= ?", mustParseDate(filters.From))
	}
	if filters.To != "" {
		query = query.Where("end_date <= ?", mustParseDate(filters.To))
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return nil, 0, err
	}
	var rentals []models.Rental
	err := query.
		Order("booking_date desc").
		Offset((filters.Page - 1) * filters.PerPage).
		Limit(filters.PerPage).
		Find(&rentals).
		Error
	if err != nil {
		return nil, 0, err
	}
	return rentals, count, nil
}

// UpdateRental applies a non-status update. No ledger entry: only status
// changes are timeline events. The version token guards against concurrent
// writers; a stale token is rejected, never overwritten.
func UpdateRental(actor string, id uuid.UUID, body *types.UpdateRentalRequestBody) (*models.Rental, error) {
	d := db.GetDb()
	var updated models.Rental
	err := d.Transaction(func(tx *gorm.DB) error {
		var rental models.Rental
		err := tx.Where("id = ?", id).First(&rental).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NewNotFoundError("rental", id.String())
		}
		if err != nil {
			return err
		}
		if rental.Status != types.RENTAL_PENDING {
			return types.NewValidationError(map[string]string{
				"status": "only rentals with status 'pending' can be updated",
			})
		}

		updates := map[string]any{
			"updated_by": actor,
			"version":    body.Version + 1,
		}
		startDate, endDate := rental.StartDate, rental.EndDate
		if body.StartDate != nil {
			startDate = mustParseDate(*body.StartDate)
			updates["start_date"] = startDate
		}
		if body.EndDate != nil {
			endDate = mustParseDate(*body.EndDate)
			updates["end_date"] = endDate
		}
		if endDate.Before(startDate) {
			return types.NewValidationError(map[string]string{
				"end_date": "end date must not be before start date",
			})
		}
		if body.BookingDate != nil {
			updates["booking_date"] = mustParseDate(*body.BookingDate)
		}
		if body.RentalPrice != nil {
			updates["rental_price"] = *body.RentalPrice
		}
		if body.DailyRate != nil {
			updates["daily_rate"] = *body.DailyRate
		}
		if body.SecurityDeposit != nil {
			updates["security_deposit"] = *body.SecurityDeposit
		}
		if body.LateFee != nil {
			updates["late_fee"] = *body.LateFee
		}
		if body.DamageFee != nil {
			updates["damage_fee"] = *body.DamageFee
		}
		if body.Notes != nil {
			updates["notes"] = *body.Notes
		}
		for column, value := range map[string]*string{
			"height":        body.Height,
			"chest":         body.Chest,
			"waist":         body.Waist,
			"hip":           body.Hip,
			"shoulder":      body.Shoulder,
			"sleeve_length": body.SleeveLength,
			"inseam":        body.Inseam,
		} {
			if value != nil {
				updates[column] = *value
			}
		}

		res := tx.
			Model(&models.Rental{}).
			Where("id = ? AND version = ?", id, body.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrConcurrencyConflict
		}
		return tx.Where("id = ?", id).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

type StatusChange struct {
	Next        types.RentalStatus
	Notes       string
	ActualStart *time.Time
	ActualEnd   *time.Time
	Version     int
}

// ChangeRentalStatus moves a rental through the state machine. Exactly one
// timeline entry is appended in the same transaction as the status write.
func ChangeRentalStatus(actor string, id uuid.UUID, change *StatusChange) (*models.Rental, error) {
	d := db.GetDb()
	var updated models.Rental
	err := d.Transaction(func(tx *gorm.DB) error {
		var rental models.Rental
		err := tx.Where("id = ?", id).First(&rental).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NewNotFoundError("rental", id.String())
		}
		if err != nil {
			return err
		}
		if !CanTransition(rental.Status, change.Next) {
			return &types.InvalidTransitionError{From: rental.Status, To: change.Next}
		}

		updates := map[string]any{
			"status":     change.Next,
			"updated_by": actor,
			"version":    change.Version + 1,
		}
		switch change.Next {
		case types.RENTAL_ACTIVE:
			if change.ActualStart == nil {
				return types.NewValidationError(map[string]string{
					"actual_start_date": "required when marking as active",
				})
			}
			updates["actual_start"] = *change.ActualStart
		case types.RENTAL_RETURNED:
			if change.ActualEnd == nil {
				return types.NewValidationError(map[string]string{
					"actual_return_date": "required when marking as returned",
				})
			}
			updates["actual_end"] = *change.ActualEnd
		}
		if change.Notes != "" {
			updates["notes"] = change.Notes
		}

		res := tx.
			Model(&models.Rental{}).
			Where("id = ? AND version = ?", id, change.Version).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return types.ErrConcurrencyConflict
		}

		entry := models.RentalTimeline{
			RentalID:  id,
			Status:    change.Next.Code(),
			Notes:     change.Notes,
			CreatedBy: actor,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).First(&updated).Error
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteRental soft-deletes by default, keeping the timeline as history. The
// hard variant is an administrative override that cascades the ledger.
func DeleteRental(actor string, id uuid.UUID, hard bool) error {
	d := db.GetDb()
	return d.Transaction(func(tx *gorm.DB) error {
		var rental models.Rental
		err := tx.Where("id = ?", id).First(&rental).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return types.NewNotFoundError("rental", id.String())
		}
		if err != nil {
			return err
		}
		if hard {
			if err := tx.Where("rental_id = ?", id).Delete(&models.RentalTimeline{}).Error; err != nil {
				return err
			}
			return tx.Unscoped().Delete(&models.Rental{}, "id = ?", id).Error
		}
		err = tx.
			Model(&models.Rental{}).
			Where("id = ?", id).
			Updates(map[string]any{"is_deleted": true, "deleted_by": actor}).
			Error
		if err != nil {
			return err
		}
		return tx.Delete(&models.Rental{}, "id = ?", id).Error
	})
}

// ListTimeline returns the ledger oldest-first. It reads the timeline table
// directly so history survives a soft delete of the rental.
func ListTimeline(rentalID uuid.UUID) ([]models.RentalTimeline, error) {
	d := db.GetDb()
	var exists int64
	err := d.
		Unscoped().
		Model(&models.Rental{}).
		Where("id = ?", rentalID).
		Count(&exists).
		Error
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, types.NewNotFoundError("rental", rentalID.String())
	}
	var entries []models.RentalTimeline
	err = d.
		Model(&models.RentalTimeline{}).
		Where("rental_id = ?", rentalID).
		Order("created_at asc").
		Find(&entries).
		Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// SyncInventoryStatus mirrors a rental transition onto the inventory item in
// the product service. Best effort: the rental write has already committed.
func SyncInventoryStatus(rental *models.Rental, products *lib.ProductsClient) {
	var next string
	switch rental.Status {
	case types.RENTAL_ACTIVE:
		next = types.INVENTORY_RENTED
	case types.RENTAL_RETURNED, types.RENTAL_CANCELLED:
		next = types.INVENTORY_AVAILABLE
	default:
		return
	}
	go func() {
		notes := fmt.Sprintf("Rental %s is now %s", rental.RentalNumber, rental.Status)
		if err := products.UpdateInventoryItemStatus(context.Background(), rental.InventoryItemID, next, notes); err != nil {
			log.Printf("[inventory] Error syncing item %s: %s\n", rental.InventoryItemID, err.Error())
		}
	}()
}

func mustParseDate(s string) time.Time {
	t, _ := time.Parse(config.DATE_PARSE_FORMAT, s)
	return t
}
