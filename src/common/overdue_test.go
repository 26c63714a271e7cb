package common

import (
	"testing"
	"time"

	"rentals/src/db"
	"rentals/src/models"
	"rentals/src/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

type SweepTestSuite struct {
	suite.Suite
	DB *gorm.DB
}

func (s *SweepTestSuite) SetupTest() {
	s.DB = newTestDB()
	db.NewDB(s.DB)
}

func (s *SweepTestSuite) seedRental(status types.RentalStatus, endDate time.Time) *models.Rental {
	rental := newRentalFixture()
	rental.Status = status
	rental.StartDate = endDate.AddDate(0, 0, -2)
	rental.EndDate = endDate
	rental.RentalNumber = "RNT-TEST-" + uuid.NewString()[:8]
	if err := s.DB.Create(rental).Error; err != nil {
		s.T().Fatalf("Could not seed rental: %s", err.Error())
	}
	return rental
}

func (s *SweepTestSuite) TestSweepOverdueRentals() {
	now := time.Now().UTC()
	pastDue := s.seedRental(types.RENTAL_ACTIVE, now.AddDate(0, 0, -1))
	current := s.seedRental(types.RENTAL_ACTIVE, now.AddDate(0, 0, 5))
	pendingPastDue := s.seedRental(types.RENTAL_PENDING, now.AddDate(0, 0, -1))
	returnedPastDue := s.seedRental(types.RENTAL_RETURNED, now.AddDate(0, 0, -3))

	marked, err := SweepOverdueRentals(nil, nil, nil)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), 1, marked)

	var got models.Rental
	assert.Nil(s.T(), s.DB.Where("id = ?", pastDue.ID).First(&got).Error)
	assert.Equal(s.T(), types.RENTAL_OVERDUE, got.Status)
	assert.Equal(s.T(), 2, got.Version)
	assert.Equal(s.T(), SchedulerActor, got.UpdatedBy)

	var entry models.RentalTimeline
	assert.Nil(s.T(), s.DB.Where("rental_id = ?", pastDue.ID).First(&entry).Error)
	assert.Equal(s.T(), types.RENTAL_OVERDUE.Code(), entry.Status)
	assert.Equal(s.T(), OverdueSweepNote, entry.Notes)
	assert.Equal(s.T(), SchedulerActor, entry.CreatedBy)

	for _, untouched := range []*models.Rental{current, pendingPastDue, returnedPastDue} {
		var r models.Rental
		assert.Nil(s.T(), s.DB.Where("id = ?", untouched.ID).First(&r).Error)
		assert.Equal(s.T(), untouched.Status, r.Status)
		assert.Equal(s.T(), 1, r.Version)
	}

	s.Run("Should append nothing on an immediate re-run", func() {
		marked, err := SweepOverdueRentals(nil, nil, nil)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), 0, marked)

		var entries int64
		s.DB.Model(&models.RentalTimeline{}).Where("rental_id = ?", pastDue.ID).Count(&entries)
		assert.EqualValues(s.T(), 1, entries)
	})
}

func (s *SweepTestSuite) TestCancelStalePendingRentals() {
	now := time.Now().UTC()
	stale := s.seedRental(types.RENTAL_PENDING, now.AddDate(0, 0, 10))
	fresh := s.seedRental(types.RENTAL_PENDING, now.AddDate(0, 0, 10))

	// Age the first booking past the pending cutoff.
	old := now.AddDate(0, 0, -6)
	assert.Nil(s.T(), s.DB.
		Model(&models.Rental{}).
		Where("id = ?", stale.ID).
		Update("created_at", old).
		Error)

	cancelled, err := CancelStalePendingRentals(nil, nil, nil)
	assert.Nil(s.T(), err)
	assert.Equal(s.T(), 1, cancelled)

	var got models.Rental
	assert.Nil(s.T(), s.DB.Where("id = ?", stale.ID).First(&got).Error)
	assert.Equal(s.T(), types.RENTAL_CANCELLED, got.Status)
	assert.Equal(s.T(), 2, got.Version)

	var entry models.RentalTimeline
	assert.Nil(s.T(), s.DB.Where("rental_id = ?", stale.ID).First(&entry).Error)
	assert.Equal(s.T(), PendingSweepNote, entry.Notes)
	assert.Equal(s.T(), SchedulerActor, entry.CreatedBy)

	var untouched models.Rental
	assert.Nil(s.T(), s.DB.Where("id = ?", fresh.ID).First(&untouched).Error)
	assert.Equal(s.T(), types.RENTAL_PENDING, untouched.Status)

	s.Run("Should cancel nothing on an immediate re-run", func() {
		cancelled, err := CancelStalePendingRentals(nil, nil, nil)
		assert.Nil(s.T(), err)
		assert.Equal(s.T(), 0, cancelled)
	})
}

func TestSweepSuite(t *testing.T) {
	suite.Run(t, new(SweepTestSuite))
}
