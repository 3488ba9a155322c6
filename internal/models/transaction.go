package models

import "time"

// TransactionType represents the type of transaction
type TransactionType string

const (
	TransactionTypeExpense    TransactionType = "expense"
	TransactionTypeIncome     TransactionType = "income"
	TransactionTypeTransfer   TransactionType = "transfer"
	TransactionTypeCorrection TransactionType = "correction"
)

// Transaction is one entry of the append-mostly ledger. Amount is always a
// positive magnitude; direction is carried by which account references are
// set: AccountFromID is debited by Amount, AccountToID credited by Amount.
// Corrections encode a negative delta with AccountFromID and a positive one
// with AccountToID, so retraction never has to recompute a sign.
type Transaction struct {
	Base
	Date          time.Time       `gorm:"not null;index" json:"date"`
	Type          TransactionType `gorm:"not null" json:"type"`
	Amount        int64           `gorm:"not null" json:"amount"`
	AccountFromID *string         `gorm:"type:uuid;index" json:"account_from_id,omitempty"`
	AccountToID   *string         `gorm:"type:uuid;index" json:"account_to_id,omitempty"`
	CategoryID    *string         `gorm:"type:uuid;index" json:"category_id,omitempty"`
	SubcategoryID *string         `gorm:"type:uuid" json:"subcategory_id,omitempty"`
	Description   string          `json:"description,omitempty"`
	Notes         string          `json:"notes,omitempty"`

	// Planned transactions are recorded but have no balance or aggregate
	// effect until realized.
	IsPlanned bool `gorm:"default:false" json:"is_planned"`

	// Set on transactions materialized by the recurrence scheduler.
	IsRecurring bool    `gorm:"default:false" json:"is_recurring"`
	RecurringID *string `gorm:"type:uuid;index" json:"recurring_id,omitempty"`

	// Relationships
	AccountFrom *Account  `gorm:"foreignKey:AccountFromID" json:"account_from,omitempty"`
	AccountTo   *Account  `gorm:"foreignKey:AccountToID" json:"account_to,omitempty"`
	Category    *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Subcategory *Category `gorm:"foreignKey:SubcategoryID" json:"subcategory,omitempty"`
	Tags        []Tag     `gorm:"many2many:transaction_tags" json:"tags,omitempty"`
}

// Affects reports whether the transaction currently contributes to account
// balances. Planned entries are inert until realized.
func (t *Transaction) Affects() bool {
	return !t.IsPlanned
}

// EffectOn returns the signed contribution of this transaction to the given
// account's balance, or 0 when the account is not involved or the
// transaction is planned.
func (t *Transaction) EffectOn(accountID string) int64 {
	if t.IsPlanned {
		return 0
	}
	var effect int64
	if t.AccountFromID != nil && *t.AccountFromID == accountID {
		effect -= t.Amount
	}
	if t.AccountToID != nil && *t.AccountToID == accountID {
		effect += t.Amount
	}
	return effect
}
