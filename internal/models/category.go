package models

// CategoryType represents the type of category
type CategoryType string

const (
	CategoryTypeExpense  CategoryType = "expense"
	CategoryTypeIncome   CategoryType = "income"
	CategoryTypeTransfer CategoryType = "transfer"
)

// Category represents a transaction category. Categories form a tree via
// ParentID. Path is the id chain from the root to this node ("r/c/self/"),
// Level its depth; both are maintained by the category service so a subtree
// rollup is a prefix match on Path instead of a recursive join.
type Category struct {
	Base
	Name     string       `gorm:"not null" json:"name"`
	Type     CategoryType `gorm:"not null" json:"type"`
	ParentID *string      `gorm:"type:uuid" json:"parent_id,omitempty"`
	Icon     string       `json:"icon,omitempty"`
	Color    string       `json:"color,omitempty"`
	IsActive bool         `gorm:"default:true" json:"is_active"`
	Path     string       `gorm:"index" json:"path"`
	Level    int          `json:"level"`

	// Relationships
	Parent   *Category  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
	Budgets  []Budget   `gorm:"foreignKey:CategoryID" json:"budgets,omitempty"`
}
