package services

import (
	"testing"
	"time"

	"gorm.io/gorm"

	"finledger/internal/models"
	"finledger/internal/pagination"
	"finledger/internal/testutil"
)

// seedSearchData creates a small transaction log with known contents:
// a grocery expense, a salary income, and a tagged transfer.
func seedSearchData(t *testing.T, db *gorm.DB, ledger LedgerServicer) (groceries, salary, transfer *models.Transaction, account *models.Account, expenseCat *models.Category, tag *models.Tag) {
	t.Helper()
	account = testutil.CreateTestAccount(t, db, 100000)
	other := testutil.CreateTestAccount(t, db, 50000)
	expenseCat = testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
	incomeCat := testutil.CreateTestCategory(t, db, models.CategoryTypeIncome)
	tag = testutil.CreateTestTag(t, db)

	var err error
	groceries, err = ledger.Apply(TransactionDraft{
		Type:          models.TransactionTypeExpense,
		Amount:        4500,
		AccountFromID: &account.ID,
		CategoryID:    &expenseCat.ID,
		Date:          time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Description:   "Weekly groceries",
		Notes:         "farmers market",
	})
	testutil.AssertNoError(t, err)

	salary, err = ledger.Apply(TransactionDraft{
		Type:        models.TransactionTypeIncome,
		Amount:      300000,
		AccountToID: &account.ID,
		CategoryID:  &incomeCat.ID,
		Date:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Description: "March salary",
	})
	testutil.AssertNoError(t, err)

	transfer, err = ledger.Apply(TransactionDraft{
		Type:          models.TransactionTypeTransfer,
		Amount:        20000,
		AccountFromID: &account.ID,
		AccountToID:   &other.ID,
		Date:          time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Description:   "Savings top-up",
		TagIDs:        []string{tag.ID},
	})
	testutil.AssertNoError(t, err)
	return
}

func TestSearch(t *testing.T) {
	t.Run("free_text_is_case_insensitive", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		searchSvc := NewSearchService(db)
		groceries, _, _, _, _, _ := seedSearchData(t, db, ledger)

		page, err := searchSvc.Search(SearchFilter{Query: "GROCER"}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.Total != 1 || len(page.Data) != 1 {
			t.Fatalf("expected 1 match, got total=%d len=%d", page.Total, len(page.Data))
		}
		if page.Data[0].ID != groceries.ID {
			t.Errorf("expected the groceries transaction, got %s", page.Data[0].Description)
		}
	})

	t.Run("free_text_matches_notes", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		searchSvc := NewSearchService(db)
		seedSearchData(t, db, ledger)

		page, err := searchSvc.Search(SearchFilter{Query: "farmers"}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.Total != 1 {
			t.Errorf("expected 1 match on notes, got %d", page.Total)
		}
	})

	t.Run("amount_range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		searchSvc := NewSearchService(db)
		_, _, transfer, _, _, _ := seedSearchData(t, db, ledger)

		min, max := int64(10000), int64(50000)
		page, err := searchSvc.Search(SearchFilter{MinAmount: &min, MaxAmount: &max}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.Total != 1 || page.Data[0].ID != transfer.ID {
			t.Errorf("expected only the 20000 transfer, got total=%d", page.Total)
		}
	})

	t.Run("date_range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		searchSvc := NewSearchService(db)
		seedSearchData(t, db, ledger)

		start := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
		end := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
		page, err := searchSvc.Search(SearchFilter{StartDate: &start, EndDate: &end}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.Total != 1 {
			t.Errorf("expected 1 match between Mar 4 and Mar 9, got %d", page.Total)
		}
	})

	t.Run("filter_by_tag", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		searchSvc := NewSearchService(db)
		_, _, transfer, _, _, tag := seedSearchData(t, db, ledger)

		page, err := searchSvc.Search(SearchFilter{TagIDs: []string{tag.ID}}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.Total != 1 || page.Data[0].ID != transfer.ID {
			t.Fatalf("expected only the tagged transfer, got total=%d", page.Total)
		}
		if len(page.Data[0].Tags) != 1 {
			t.Errorf("expected tags preloaded, got %d", len(page.Data[0].Tags))
		}
	})

	t.Run("filter_by_type_and_account", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		searchSvc := NewSearchService(db)
		_, salary, _, account, _, _ := seedSearchData(t, db, ledger)

		page, err := searchSvc.Search(SearchFilter{
			Types:      []models.TransactionType{models.TransactionTypeIncome},
			AccountIDs: []string{account.ID},
		}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.Total != 1 || page.Data[0].ID != salary.ID {
			t.Errorf("expected only the salary income, got total=%d", page.Total)
		}
	})

	t.Run("subtree_category_match", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		searchSvc := NewSearchService(db)
		account := testutil.CreateTestAccount(t, db, 100000)
		parent := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		child := testutil.CreateTestSubcategory(t, db, parent)

		tx, err := ledger.Apply(TransactionDraft{
			Type:          models.TransactionTypeExpense,
			Amount:        1000,
			AccountFromID: &account.ID,
			CategoryID:    &parent.ID,
			SubcategoryID: &child.ID,
			Date:          time.Now().UTC(),
			Description:   "lunch",
		})
		testutil.AssertNoError(t, err)

		// Filtering by the child id matches via the subcategory column.
		page, err := searchSvc.Search(SearchFilter{CategoryIDs: []string{child.ID}}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.Total != 1 || page.Data[0].ID != tx.ID {
			t.Errorf("expected subcategory match, got total=%d", page.Total)
		}
	})

	t.Run("ordered_newest_first_with_total", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		searchSvc := NewSearchService(db)
		seedSearchData(t, db, ledger)

		page, err := searchSvc.Search(SearchFilter{}, pagination.PageRequest{Limit: 2})
		testutil.AssertNoError(t, err)
		if page.Total != 3 {
			t.Errorf("total must count all matches, got %d", page.Total)
		}
		if len(page.Data) != 2 {
			t.Fatalf("expected page of 2, got %d", len(page.Data))
		}
		if page.Data[0].Date.Before(page.Data[1].Date) {
			t.Error("expected newest first")
		}

		rest, err := searchSvc.Search(SearchFilter{}, pagination.PageRequest{Limit: 2, Offset: 2})
		testutil.AssertNoError(t, err)
		if len(rest.Data) != 1 {
			t.Errorf("expected 1 item on the second page, got %d", len(rest.Data))
		}
	})

	t.Run("no_matches", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		searchSvc := NewSearchService(db)
		seedSearchData(t, db, ledger)

		page, err := searchSvc.Search(SearchFilter{Query: "nonexistent"}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.Total != 0 || len(page.Data) != 0 {
			t.Errorf("expected empty result, got total=%d len=%d", page.Total, len(page.Data))
		}
	})
}
