package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RentalTimeline is the append-only ledger of status changes. Rows are
// created once per transition and never updated; they are removed only when
// the owning rental is hard-deleted.
type RentalTimeline struct {
	ID        uuid.UUID `gorm:"primarykey;type:uuid" json:"id"`
	RentalID  uuid.UUID `gorm:"type:uuid;index" json:"rental_id"`
	Status    int       `json:"status"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"changed_at"`
	CreatedBy string    `json:"changed_by,omitempty"`
}

func (t *RentalTimeline) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
