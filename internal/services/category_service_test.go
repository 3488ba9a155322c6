package services

import (
	"testing"
	"time"

	"finledger/internal/models"
	"finledger/internal/testutil"
)

func TestCreateCategory(t *testing.T) {
	t.Run("root_category", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catSvc := NewCategoryService(db)

		category, err := catSvc.CreateCategory("Food", models.CategoryTypeExpense, nil, "🍔", "#FF0000")
		testutil.AssertNoError(t, err)
		if category.Level != 0 {
			t.Errorf("expected level 0, got %d", category.Level)
		}
		if category.Path != category.ID+"/" {
			t.Errorf("expected path %q, got %q", category.ID+"/", category.Path)
		}
	})

	t.Run("child_extends_parent_path", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catSvc := NewCategoryService(db)

		parent, err := catSvc.CreateCategory("Food", models.CategoryTypeExpense, nil, "", "")
		testutil.AssertNoError(t, err)
		child, err := catSvc.CreateCategory("Groceries", models.CategoryTypeExpense, &parent.ID, "", "")
		testutil.AssertNoError(t, err)

		if child.Level != 1 {
			t.Errorf("expected level 1, got %d", child.Level)
		}
		if child.Path != parent.Path+child.ID+"/" {
			t.Errorf("expected path %q, got %q", parent.Path+child.ID+"/", child.Path)
		}
	})

	t.Run("type_must_match_parent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catSvc := NewCategoryService(db)

		parent, err := catSvc.CreateCategory("Food", models.CategoryTypeExpense, nil, "", "")
		testutil.AssertNoError(t, err)
		_, err = catSvc.CreateCategory("Salary", models.CategoryTypeIncome, &parent.ID, "", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catSvc := NewCategoryService(db)

		_, err := catSvc.CreateCategory("", models.CategoryTypeExpense, nil, "", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestUpdateCategory(t *testing.T) {
	t.Run("reparent_rewrites_subtree_paths", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catSvc := NewCategoryService(db)

		// food -> groceries -> produce, plus a second root "household".
		food, err := catSvc.CreateCategory("Food", models.CategoryTypeExpense, nil, "", "")
		testutil.AssertNoError(t, err)
		groceries, err := catSvc.CreateCategory("Groceries", models.CategoryTypeExpense, &food.ID, "", "")
		testutil.AssertNoError(t, err)
		produce, err := catSvc.CreateCategory("Produce", models.CategoryTypeExpense, &groceries.ID, "", "")
		testutil.AssertNoError(t, err)
		household, err := catSvc.CreateCategory("Household", models.CategoryTypeExpense, nil, "", "")
		testutil.AssertNoError(t, err)

		moved, err := catSvc.UpdateCategory(groceries.ID, nil, nil, nil, &household.ID, nil)
		testutil.AssertNoError(t, err)
		if moved.Path != household.Path+groceries.ID+"/" {
			t.Errorf("expected rebased path, got %q", moved.Path)
		}
		if moved.Level != 1 {
			t.Errorf("expected level 1, got %d", moved.Level)
		}

		// The grandchild keeps its relative position under the new root.
		reloaded, err := catSvc.GetCategoryByID(produce.ID)
		testutil.AssertNoError(t, err)
		wantPath := household.Path + groceries.ID + "/" + produce.ID + "/"
		if reloaded.Path != wantPath {
			t.Errorf("expected descendant path %q, got %q", wantPath, reloaded.Path)
		}
		if reloaded.Level != 2 {
			t.Errorf("expected descendant level 2, got %d", reloaded.Level)
		}
	})

	t.Run("reparent_under_own_descendant_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catSvc := NewCategoryService(db)

		food, err := catSvc.CreateCategory("Food", models.CategoryTypeExpense, nil, "", "")
		testutil.AssertNoError(t, err)
		groceries, err := catSvc.CreateCategory("Groceries", models.CategoryTypeExpense, &food.ID, "", "")
		testutil.AssertNoError(t, err)

		_, err = catSvc.UpdateCategory(food.ID, nil, nil, nil, &groceries.ID, nil)
		testutil.AssertAppError(t, err, "CATEGORY_CYCLE")
	})

	t.Run("reparent_under_self_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catSvc := NewCategoryService(db)

		food, err := catSvc.CreateCategory("Food", models.CategoryTypeExpense, nil, "", "")
		testutil.AssertNoError(t, err)

		_, err = catSvc.UpdateCategory(food.ID, nil, nil, nil, &food.ID, nil)
		testutil.AssertAppError(t, err, "CATEGORY_CYCLE")
	})

	t.Run("rename_and_deactivate", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catSvc := NewCategoryService(db)

		food, err := catSvc.CreateCategory("Food", models.CategoryTypeExpense, nil, "", "")
		testutil.AssertNoError(t, err)

		name := "Dining"
		inactive := false
		updated, err := catSvc.UpdateCategory(food.ID, &name, nil, nil, nil, &inactive)
		testutil.AssertNoError(t, err)
		if updated.Name != "Dining" || updated.IsActive {
			t.Errorf("unexpected state after update: %+v", updated)
		}
	})
}

func TestDeleteCategory(t *testing.T) {
	t.Run("unused_category_is_removed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catSvc := NewCategoryService(db)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		testutil.AssertNoError(t, catSvc.DeleteCategory(category.ID))
		_, err := catSvc.GetCategoryByID(category.ID)
		testutil.AssertAppError(t, err, "CATEGORY_NOT_FOUND")
	})

	t.Run("referenced_category_is_protected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catSvc := NewCategoryService(db)
		ledger := NewLedgerService(db)
		account := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)

		_, err := ledger.Apply(TransactionDraft{
			Type:          models.TransactionTypeExpense,
			Amount:        1000,
			AccountFromID: &account.ID,
			CategoryID:    &category.ID,
			Date:          time.Now().UTC(),
			Description:   "anchor",
		})
		testutil.AssertNoError(t, err)

		testutil.AssertAppError(t, catSvc.DeleteCategory(category.ID), "CATEGORY_IN_USE")
	})

	t.Run("category_with_children_is_protected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catSvc := NewCategoryService(db)
		parent := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		testutil.CreateTestSubcategory(t, db, parent)

		testutil.AssertAppError(t, catSvc.DeleteCategory(parent.ID), "CATEGORY_HAS_CHILDREN")
	})
}

func TestSubtreeIDs(t *testing.T) {
	t.Run("includes_self_and_descendants", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		catSvc := NewCategoryService(db)

		food, err := catSvc.CreateCategory("Food", models.CategoryTypeExpense, nil, "", "")
		testutil.AssertNoError(t, err)
		groceries, err := catSvc.CreateCategory("Groceries", models.CategoryTypeExpense, &food.ID, "", "")
		testutil.AssertNoError(t, err)
		produce, err := catSvc.CreateCategory("Produce", models.CategoryTypeExpense, &groceries.ID, "", "")
		testutil.AssertNoError(t, err)
		// Unrelated root must stay out.
		_, err = catSvc.CreateCategory("Household", models.CategoryTypeExpense, nil, "", "")
		testutil.AssertNoError(t, err)

		ids, err := catSvc.SubtreeIDs(food.ID)
		testutil.AssertNoError(t, err)
		if len(ids) != 3 {
			t.Fatalf("expected 3 ids, got %d", len(ids))
		}
		want := map[string]bool{food.ID: true, groceries.ID: true, produce.ID: true}
		for _, id := range ids {
			if !want[id] {
				t.Errorf("unexpected id %s in subtree", id)
			}
		}
	})
}
