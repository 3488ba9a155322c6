package services

import (
	"testing"
	"time"

	"finledger/internal/models"
	"finledger/internal/testutil"
)

func TestCreateTag(t *testing.T) {
	t.Run("creates_tag", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		tagSvc := NewTagService(db)

		tag, err := tagSvc.CreateTag("vacation", "#00FF00")
		testutil.AssertNoError(t, err)
		if tag.Name != "vacation" {
			t.Errorf("expected name vacation, got %s", tag.Name)
		}
	})

	t.Run("duplicate_name_is_case_insensitive", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		tagSvc := NewTagService(db)

		_, err := tagSvc.CreateTag("Vacation", "")
		testutil.AssertNoError(t, err)
		_, err = tagSvc.CreateTag("VACATION", "")
		testutil.AssertAppError(t, err, "DUPLICATE_TAG")
	})

	t.Run("empty_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		tagSvc := NewTagService(db)

		_, err := tagSvc.CreateTag("", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestUpdateTag(t *testing.T) {
	t.Run("rename_to_taken_name_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		tagSvc := NewTagService(db)

		_, err := tagSvc.CreateTag("travel", "")
		testutil.AssertNoError(t, err)
		other, err := tagSvc.CreateTag("food", "")
		testutil.AssertNoError(t, err)

		taken := "Travel"
		_, err = tagSvc.UpdateTag(other.ID, &taken, nil)
		testutil.AssertAppError(t, err, "DUPLICATE_TAG")
	})

	t.Run("rename_keeping_own_name", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		tagSvc := NewTagService(db)

		tag, err := tagSvc.CreateTag("travel", "")
		testutil.AssertNoError(t, err)

		same := "travel"
		color := "#123456"
		updated, err := tagSvc.UpdateTag(tag.ID, &same, &color)
		testutil.AssertNoError(t, err)
		if updated.Color != "#123456" {
			t.Errorf("expected color update, got %s", updated.Color)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		tagSvc := NewTagService(db)

		name := "x"
		_, err := tagSvc.UpdateTag("00000000-0000-0000-0000-000000000000", &name, nil)
		testutil.AssertAppError(t, err, "TAG_NOT_FOUND")
	})
}

func TestDeleteTag(t *testing.T) {
	t.Run("unused_tag_is_removed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		tagSvc := NewTagService(db)
		tag := testutil.CreateTestTag(t, db)

		testutil.AssertNoError(t, tagSvc.DeleteTag(tag.ID))
		tags, err := tagSvc.GetTags()
		testutil.AssertNoError(t, err)
		if len(tags) != 0 {
			t.Errorf("expected no tags, got %d", len(tags))
		}
	})

	t.Run("attached_tag_is_protected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		tagSvc := NewTagService(db)
		ledger := NewLedgerService(db)
		account := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		tag := testutil.CreateTestTag(t, db)

		_, err := ledger.Apply(TransactionDraft{
			Type:          models.TransactionTypeExpense,
			Amount:        1000,
			AccountFromID: &account.ID,
			CategoryID:    &category.ID,
			Date:          time.Now().UTC(),
			Description:   "tagged",
			TagIDs:        []string{tag.ID},
		})
		testutil.AssertNoError(t, err)

		testutil.AssertAppError(t, tagSvc.DeleteTag(tag.ID), "TAG_IN_USE")
	})
}
