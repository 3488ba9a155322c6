package models

import (
	"time"

	"finledger/internal/period"
)

// RecurringTransaction is a template the scheduler materializes into concrete
// transactions. LastCreatedDate is the high-water mark of generation: it only
// advances when an occurrence was successfully written to the ledger, so a
// failed occurrence is retried on the next tick instead of silently skipped.
type RecurringTransaction struct {
	Base
	Name            string          `gorm:"not null" json:"name"`
	Type            TransactionType `gorm:"not null" json:"type"`
	Amount          int64           `gorm:"not null" json:"amount"`
	AccountFromID   *string         `gorm:"type:uuid" json:"account_from_id,omitempty"`
	AccountToID     *string         `gorm:"type:uuid" json:"account_to_id,omitempty"`
	CategoryID      *string         `gorm:"type:uuid" json:"category_id,omitempty"`
	Frequency       period.Period   `gorm:"not null" json:"frequency"`
	StartDate       time.Time       `gorm:"not null" json:"start_date"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	IsActive        bool            `gorm:"default:true" json:"is_active"`
	LastCreatedDate *time.Time      `json:"last_created_date,omitempty"`

	// Relationships
	AccountFrom *Account  `gorm:"foreignKey:AccountFromID" json:"account_from,omitempty"`
	AccountTo   *Account  `gorm:"foreignKey:AccountToID" json:"account_to,omitempty"`
	Category    *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}
