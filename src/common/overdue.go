package common

import (
	"context"
	"log"
	"time"

	"rentals/src/config"
	"rentals/src/db"
	"rentals/src/lib"
	"rentals/src/models"
	"rentals/src/types"

	"gorm.io/gorm"
)

const (
	SchedulerActor = "scheduler"

	OverdueSweepNote = "Auto-marked as overdue by system"
	PendingSweepNote = "Auto-cancelled by system after exceeding pending age"
	overdueSweepLock = "overdue-rentals"
	pendingSweepLock = "cancel-stale-pending"
)

// SweepOverdueRentals finds open rentals past their end date and marks them
// Overdue. The whole sweep commits in one transaction: a crash loses the run,
// never half of it. Overdue itself (and the terminal states) are excluded
// from the selection so an immediate re-run appends nothing.
func SweepOverdueRentals(products *lib.ProductsClient, customers *lib.CustomersClient, notify *lib.NotificationsClient) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.SweepTimeout())
	defer cancel()

	ok, err := lib.AcquireJobLock(ctx, overdueSweepLock, 2*config.SweepTimeout())
	if err != nil {
		return 0, err
	}
	if !ok {
		log.Printf("[%s] Another instance holds the lock, skipping this tick\n", overdueSweepLock)
		return 0, nil
	}
	defer lib.ReleaseJobLock(context.WithoutCancel(ctx), overdueSweepLock)

	now := time.Now().UTC()
	var marked []models.Rental
	d := db.GetDb()
	err = d.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []models.Rental
		err := tx.
			Model(&models.Rental{}).
			Where("end_date < ?", now).
			Where("status NOT IN ?", []types.RentalStatus{
				types.RENTAL_RETURNED,
				types.RENTAL_CANCELLED,
				types.RENTAL_OVERDUE,
				types.RENTAL_COMPLETED,
			}).
			Find(&candidates).
			Error
		if err != nil {
			return err
		}
		log.Printf("[%s] Found %d rentals past end date and not returned/cancelled\n", overdueSweepLock, len(candidates))

		for _, rental := range candidates {
			if !CanTransition(rental.Status, types.RENTAL_OVERDUE) {
				// Pending rentals past their end date belong to the
				// stale-pending sweep.
				log.Printf("[%s] Skipping rental %s in status %s\n", overdueSweepLock, rental.RentalNumber, rental.Status)
				continue
			}
			res := tx.
				Model(&models.Rental{}).
				Where("id = ? AND version = ?", rental.ID, rental.Version).
				Updates(map[string]any{
					"status":     types.RENTAL_OVERDUE,
					"updated_by": SchedulerActor,
					"version":    rental.Version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				// Lost the race to a concurrent writer, next tick retries.
				log.Printf("[%s] Version conflict on rental %s, skipping\n", overdueSweepLock, rental.RentalNumber)
				continue
			}
			entry := models.RentalTimeline{
				RentalID:  rental.ID,
				Status:    types.RENTAL_OVERDUE.Code(),
				Notes:     OverdueSweepNote,
				CreatedBy: SchedulerActor,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			rental.Status = types.RENTAL_OVERDUE
			marked = append(marked, rental)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	// Notifications go out only after the commit. Best effort: a failed send
	// never unwinds the status change.
	for i := range marked {
		dispatchStatusChanged(ctx, &marked[i], products, customers, notify)
	}
	log.Printf("[%s] Sweep completed, %d rentals marked as overdue\n", overdueSweepLock, len(marked))
	return len(marked), nil
}

// CancelStalePendingRentals cancels rentals that never progressed past
// Pending within the configured age.
func CancelStalePendingRentals(products *lib.ProductsClient, customers *lib.CustomersClient, notify *lib.NotificationsClient) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.SweepTimeout())
	defer cancel()

	ok, err := lib.AcquireJobLock(ctx, pendingSweepLock, 2*config.SweepTimeout())
	if err != nil {
		return 0, err
	}
	if !ok {
		log.Printf("[%s] Another instance holds the lock, skipping this tick\n", pendingSweepLock)
		return 0, nil
	}
	defer lib.ReleaseJobLock(context.WithoutCancel(ctx), pendingSweepLock)

	threshold := time.Now().UTC().Add(-config.PendingMaxAge())
	var cancelled []models.Rental
	d := db.GetDb()
	err = d.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []models.Rental
		err := tx.
			Model(&models.Rental{}).
			Where("status = ?", types.RENTAL_PENDING).
			Where("created_at < ?", threshold).
			Find(&candidates).
			Error
		if err != nil {
			return err
		}
		log.Printf("[%s] Found %d stale pending rentals\n", pendingSweepLock, len(candidates))

		for _, rental := range candidates {
			res := tx.
				Model(&models.Rental{}).
				Where("id = ? AND version = ?", rental.ID, rental.Version).
				Updates(map[string]any{
					"status":     types.RENTAL_CANCELLED,
					"updated_by": SchedulerActor,
					"version":    rental.Version + 1,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				log.Printf("[%s] Version conflict on rental %s, skipping\n", pendingSweepLock, rental.RentalNumber)
				continue
			}
			entry := models.RentalTimeline{
				RentalID:  rental.ID,
				Status:    types.RENTAL_CANCELLED.Code(),
				Notes:     PendingSweepNote,
				CreatedBy: SchedulerActor,
			}
			if err := tx.Create(&entry).Error; err != nil {
				return err
			}
			rental.Status = types.RENTAL_CANCELLED
			cancelled = append(cancelled, rental)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for i := range cancelled {
		dispatchStatusChanged(ctx, &cancelled[i], products, customers, notify)
	}
	log.Printf("[%s] Sweep completed, %d rentals cancelled\n", pendingSweepLock, len(cancelled))
	return len(cancelled), nil
}

func dispatchStatusChanged(ctx context.Context, rental *models.Rental, products *lib.ProductsClient, customers *lib.CustomersClient, notify *lib.NotificationsClient) {
	if notify == nil {
		return
	}
	var enrichment *RentalEnrichment
	if products != nil && customers != nil {
		enrichment = EnrichRental(ctx, rental, products, customers)
	}
	notify.SendAsync(NewStatusChangedEvent(rental, enrichment))
}
