package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"finledger/internal/models"
	"finledger/internal/period"
)

var fixtureSeq int

// nextName returns a unique name so fixtures never trip unique indexes.
func nextName(prefix string) string {
	fixtureSeq++
	return fmt.Sprintf("%s-%d", prefix, fixtureSeq)
}

// CreateTestAccount creates an active cash account with the given balance in
// minor units.
func CreateTestAccount(t *testing.T, db *gorm.DB, balance int64) *models.Account {
	t.Helper()

	account := &models.Account{
		Name:           nextName("account"),
		Type:           models.AccountTypeCash,
		InitialBalance: balance,
		CurrentBalance: balance,
		Currency:       "KZT",
		IsActive:       true,
	}
	if err := db.Create(account).Error; err != nil {
		t.Fatalf("failed to create test account: %v", err)
	}
	return account
}

// CreateTestAccountWithCurrency creates an account in a specific currency.
func CreateTestAccountWithCurrency(t *testing.T, db *gorm.DB, balance int64, currency string) *models.Account {
	t.Helper()

	account := CreateTestAccount(t, db, balance)
	if err := db.Model(account).Update("currency", currency).Error; err != nil {
		t.Fatalf("failed to set account currency: %v", err)
	}
	account.Currency = currency
	return account
}

// CreateTestCategory creates an active root category of the given type with
// its path initialized the way the category service does it.
func CreateTestCategory(t *testing.T, db *gorm.DB, categoryType models.CategoryType) *models.Category {
	t.Helper()

	category := &models.Category{
		Name:     nextName("category"),
		Type:     categoryType,
		IsActive: true,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test category: %v", err)
	}
	category.Path = category.ID + "/"
	if err := db.Model(category).Update("path", category.Path).Error; err != nil {
		t.Fatalf("failed to set category path: %v", err)
	}
	return category
}

// CreateTestSubcategory creates a child category under the given parent.
func CreateTestSubcategory(t *testing.T, db *gorm.DB, parent *models.Category) *models.Category {
	t.Helper()

	category := &models.Category{
		Name:     nextName("subcategory"),
		Type:     parent.Type,
		ParentID: &parent.ID,
		Level:    parent.Level + 1,
		IsActive: true,
	}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("failed to create test subcategory: %v", err)
	}
	category.Path = parent.Path + category.ID + "/"
	if err := db.Model(category).Update("path", category.Path).Error; err != nil {
		t.Fatalf("failed to set subcategory path: %v", err)
	}
	return category
}

// CreateTestTag creates a tag.
func CreateTestTag(t *testing.T, db *gorm.DB) *models.Tag {
	t.Helper()

	tag := &models.Tag{Name: nextName("tag")}
	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("failed to create test tag: %v", err)
	}
	return tag
}

// CreateTestBudget creates an active monthly budget over the given category.
func CreateTestBudget(t *testing.T, db *gorm.DB, categoryID string, amount int64, startDate time.Time) *models.Budget {
	t.Helper()

	budget := &models.Budget{
		Name:       nextName("budget"),
		CategoryID: categoryID,
		Amount:     amount,
		Period:     period.Monthly,
		StartDate:  period.Date(startDate),
		IsActive:   true,
	}
	if err := db.Create(budget).Error; err != nil {
		t.Fatalf("failed to create test budget: %v", err)
	}
	return budget
}

// CreateTestGoal creates an unlinked savings goal.
func CreateTestGoal(t *testing.T, db *gorm.DB, targetAmount int64) *models.SavingsGoal {
	t.Helper()

	goal := &models.SavingsGoal{
		Name:         nextName("goal"),
		TargetAmount: targetAmount,
	}
	if err := db.Create(goal).Error; err != nil {
		t.Fatalf("failed to create test goal: %v", err)
	}
	return goal
}

// CreateTestRecurring creates an active monthly expense template.
func CreateTestRecurring(t *testing.T, db *gorm.DB, accountFromID, categoryID string, amount int64, startDate time.Time) *models.RecurringTransaction {
	t.Helper()

	rt := &models.RecurringTransaction{
		Name:          nextName("recurring"),
		Type:          models.TransactionTypeExpense,
		Amount:        amount,
		AccountFromID: &accountFromID,
		CategoryID:    &categoryID,
		Frequency:     period.Monthly,
		StartDate:     period.Date(startDate),
		IsActive:      true,
	}
	if err := db.Create(rt).Error; err != nil {
		t.Fatalf("failed to create test recurring transaction: %v", err)
	}
	return rt
}
