package models

import "time"

// SavingsGoal tracks progress toward a target amount. When AccountID is set,
// CurrentAmount is derived from the ledger by the goal service; otherwise it
// only moves through explicit contributions. IsAchieved/AchievedAt form a
// one-way latch: once the target is reached they are never reset, even if
// the balance later drops.
type SavingsGoal struct {
	Base
	Name          string     `gorm:"not null" json:"name"`
	TargetAmount  int64      `gorm:"not null" json:"target_amount"`
	CurrentAmount int64      `gorm:"not null;default:0" json:"current_amount"`
	TargetDate    *time.Time `json:"target_date,omitempty"`
	AccountID     *string    `gorm:"type:uuid;index" json:"account_id,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	IsAchieved    bool       `gorm:"default:false" json:"is_achieved"`
	AchievedAt    *time.Time `json:"achieved_at,omitempty"`

	// Relationships
	Account *Account `gorm:"foreignKey:AccountID" json:"account,omitempty"`
}
