package boot

import (
	"log"

	"rentals/src/common"
	"rentals/src/config"
	"rentals/src/db"
	"rentals/src/lib"
	"rentals/src/models"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.Rental{},
		&models.RentalTimeline{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitScheduler registers the background sweeps. The sweeps call the same
// transition logic the request handlers use, with an explicit service
// credential instead of a borrowed caller token.
func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}

	products := lib.NewProductsClient(lib.ServiceTokenProvider{})
	customers := lib.NewCustomersClient(lib.ServiceTokenProvider{})
	notify := lib.NewNotificationsClient(lib.ServiceTokenProvider{})

	if _, err := lib.CreateIntervalJob("overdue-rentals", config.SweepInterval(), func() {
		if _, err := common.SweepOverdueRentals(products, customers, notify); err != nil {
			log.Printf("[overdue-rentals] Sweep aborted: %s\n", err.Error())
		}
	}); err != nil {
		log.Printf("Error registering overdue sweep: %s\n", err.Error())
	}

	if _, err := lib.CreateIntervalJob("cancel-stale-pending", config.SweepInterval(), func() {
		if _, err := common.CancelStalePendingRentals(products, customers, notify); err != nil {
			log.Printf("[cancel-stale-pending] Sweep aborted: %s\n", err.Error())
		}
	}); err != nil {
		log.Printf("Error registering stale-pending sweep: %s\n", err.Error())
	}

	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	if err := sched.Shutdown(); err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
	}
}
