package models

import (
	"time"

	"finledger/internal/period"
)

// Budget represents a spending limit for a category subtree. SpentAmount and
// UsagePercentage are derived by the budget service per read and never stored.
type Budget struct {
	Base
	Name       string        `gorm:"not null" json:"name"`
	CategoryID string        `gorm:"type:uuid;not null" json:"category_id"`
	Amount     int64         `gorm:"not null" json:"amount"`
	Period     period.Period `gorm:"not null" json:"period"`
	StartDate  time.Time     `gorm:"not null" json:"start_date"`
	EndDate    *time.Time    `json:"end_date,omitempty"`
	IsActive   bool          `gorm:"default:true" json:"is_active"`

	// Relationships
	Category Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

// BudgetProgress contains derived spending data for a budget's current window.
type BudgetProgress struct {
	BudgetID        string    `json:"budget_id"`
	Amount          int64     `json:"amount"`
	SpentAmount     int64     `json:"spent_amount"`
	Remaining       int64     `json:"remaining"`
	UsagePercentage float64   `json:"usage_percentage"`
	PeriodStart     time.Time `json:"period_start"`
	PeriodEnd       time.Time `json:"period_end"`
	IsOverBudget    bool      `json:"is_over_budget"`
}
