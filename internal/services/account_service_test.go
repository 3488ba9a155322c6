package services

import (
	"testing"
	"time"

	"finledger/internal/models"
	"finledger/internal/pagination"
	"finledger/internal/testutil"
)

func TestCreateAccount(t *testing.T) {
	t.Run("opening_balance_is_the_baseline", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)

		account, err := acctSvc.CreateAccount("Wallet", models.AccountTypeCash, 25000, nil, "KZT", "", "")
		testutil.AssertNoError(t, err)
		if account.InitialBalance != 25000 || account.CurrentBalance != 25000 {
			t.Errorf("expected initial=current=25000, got %d/%d", account.InitialBalance, account.CurrentBalance)
		}

		// The opening balance is a baseline, not a transaction.
		var count int64
		testutil.AssertNoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
		if count != 0 {
			t.Errorf("expected no transactions, got %d", count)
		}
	})

	t.Run("defaults_currency", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)

		account, err := acctSvc.CreateAccount("Wallet", models.AccountTypeCash, 0, nil, "", "", "")
		testutil.AssertNoError(t, err)
		if account.Currency != "KZT" {
			t.Errorf("expected default currency KZT, got %s", account.Currency)
		}
	})

	t.Run("invalid_currency", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)

		_, err := acctSvc.CreateAccount("Wallet", models.AccountTypeCash, 0, nil, "ZZZ", "", "")
		testutil.AssertAppError(t, err, "INVALID_CURRENCY")
	})

	t.Run("negative_opening_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)

		_, err := acctSvc.CreateAccount("Wallet", models.AccountTypeCash, -100, nil, "KZT", "", "")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestGetAccounts(t *testing.T) {
	t.Run("hides_inactive_by_default", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		testutil.CreateTestAccount(t, db, 0)
		inactive := testutil.CreateTestAccount(t, db, 0)
		testutil.AssertNoError(t, db.Model(&models.Account{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

		page, err := acctSvc.GetAccounts(false, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if page.Total != 1 {
			t.Errorf("expected 1 active account, got %d", page.Total)
		}

		all, err := acctSvc.GetAccounts(true, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if all.Total != 2 {
			t.Errorf("expected 2 accounts with inactive included, got %d", all.Total)
		}
	})
}

func TestUpdateAccount(t *testing.T) {
	t.Run("updates_mutable_fields_only", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		account := testutil.CreateTestAccount(t, db, 5000)

		name := "Renamed"
		limit := int64(100000)
		updated, err := acctSvc.UpdateAccount(account.ID, AccountUpdateFields{Name: &name, CreditLimit: &limit})
		testutil.AssertNoError(t, err)
		if updated.Name != "Renamed" {
			t.Errorf("expected renamed account, got %s", updated.Name)
		}
		if updated.CreditLimit == nil || *updated.CreditLimit != 100000 {
			t.Errorf("expected credit limit 100000, got %v", updated.CreditLimit)
		}
		if updated.CurrentBalance != 5000 {
			t.Errorf("balance must be untouched, got %d", updated.CurrentBalance)
		}
	})

	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)

		name := "x"
		_, err := acctSvc.UpdateAccount("00000000-0000-0000-0000-000000000000", AccountUpdateFields{Name: &name})
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})
}

func TestDeleteAccount(t *testing.T) {
	t.Run("unused_zero_balance_is_removed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		account := testutil.CreateTestAccount(t, db, 0)

		testutil.AssertNoError(t, acctSvc.DeleteAccount(account.ID))
		_, err := acctSvc.GetAccountByID(account.ID)
		testutil.AssertAppError(t, err, "ACCOUNT_NOT_FOUND")
	})

	t.Run("unused_with_balance_is_protected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
		account := testutil.CreateTestAccount(t, db, 5000)

		err := acctSvc.DeleteAccount(account.ID)
		testutil.AssertAppError(t, err, "NON_ZERO_BALANCE")
	})

	t.Run("referenced_account_is_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		acctSvc := NewAccountService(db)
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

		err = acctSvc.DeleteAccount(account.ID)
		testutil.AssertAppError(t, err, "ACCOUNT_IN_USE")

		// The account survives untouched; retiring it is an explicit update.
		reloaded, err := acctSvc.GetAccountByID(account.ID)
		testutil.AssertNoError(t, err)
		if !reloaded.IsActive {
			t.Error("rejected delete must not deactivate the account")
		}

		inactive := false
		_, err = acctSvc.UpdateAccount(account.ID, AccountUpdateFields{IsActive: &inactive})
		testutil.AssertNoError(t, err)
		reloaded, err = acctSvc.GetAccountByID(account.ID)
		testutil.AssertNoError(t, err)
		if reloaded.IsActive {
			t.Error("expected account inactive after explicit update")
		}
	})
}
