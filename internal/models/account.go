package models

// AccountType represents the type of account
type AccountType string

const (
	AccountTypeCash       AccountType = "cash"
	AccountTypeDebitCard  AccountType = "debit_card"
	AccountTypeCreditCard AccountType = "credit_card"
	AccountTypeSavings    AccountType = "savings"
	AccountTypeInvestment AccountType = "investment"
)

// Account represents a financial account. CurrentBalance is derived from the
// transaction log; only the ledger service writes it. Currency is fixed at
// creation. All amounts are int64 minor units of the account currency.
type Account struct {
	Base
	Name           string      `gorm:"not null" json:"name"`
	Type           AccountType `gorm:"not null" json:"type"`
	InitialBalance int64       `gorm:"not null;default:0" json:"initial_balance"`
	CurrentBalance int64       `gorm:"not null;default:0" json:"current_balance"`
	CreditLimit    *int64      `json:"credit_limit,omitempty"`
	Currency       string      `gorm:"not null;default:'KZT'" json:"currency"`
	Color          string      `json:"color,omitempty"`
	Icon           string      `json:"icon,omitempty"`
	IsActive       bool        `gorm:"default:true" json:"is_active"`

	// Relationships
	OutgoingTransactions []Transaction `gorm:"foreignKey:AccountFromID" json:"-"`
	IncomingTransactions []Transaction `gorm:"foreignKey:AccountToID" json:"-"`
}
