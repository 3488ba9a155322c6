package models

import (
	"time"

	"finledger/internal/uuid"

	"gorm.io/gorm"
)

// Base is embedded by every ledger model. Deletion is soft everywhere: a
// retracted transaction keeps its row so balances can be audited against the
// full log.
type Base struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

// BeforeCreate assigns a time-ordered UUIDv7 key to new rows.
func (b *Base) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	return nil
}
