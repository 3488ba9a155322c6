package testutil_test

import (
	"testing"
	"time"

	"finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	// Verify all tables exist by doing a simple count query on each model.
	var count int64
	for _, table := range []string{"accounts", "categories", "tags", "transactions", "budgets", "savings_goals", "recurring_transactions"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	account := testutil.CreateTestAccount(t, db, 5000)
	if account.ID == "" {
		t.Fatal("account should have an ID")
	}
	if account.CurrentBalance != 5000 {
		t.Errorf("expected balance 5000, got %d", account.CurrentBalance)
	}

	category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
	if category.Path != category.ID+"/" {
		t.Errorf("expected root path %q, got %q", category.ID+"/", category.Path)
	}

	sub := testutil.CreateTestSubcategory(t, db, category)
	if sub.Level != 1 {
		t.Errorf("expected level 1, got %d", sub.Level)
	}
	if sub.Path != category.Path+sub.ID+"/" {
		t.Errorf("unexpected subcategory path %q", sub.Path)
	}

	budget := testutil.CreateTestBudget(t, db, category.ID, 10000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if budget.Amount != 10000 {
		t.Errorf("expected budget amount 10000, got %d", budget.Amount)
	}

	goal := testutil.CreateTestGoal(t, db, 50000)
	if goal.IsAchieved {
		t.Error("new goal should not be achieved")
	}

	rt := testutil.CreateTestRecurring(t, db, account.ID, category.ID, 1500, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	if rt.LastCreatedDate != nil {
		t.Error("new template should have no last created date")
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrAccountNotFound, "custom message")
	testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
