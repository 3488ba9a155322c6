package models

// Tag represents a free-form label attached to transactions.
type Tag struct {
	Base
	Name  string `gorm:"not null;uniqueIndex" json:"name"`
	Color string `json:"color,omitempty"`

	Transactions []Transaction `gorm:"many2many:transaction_tags" json:"-"`
}
