package services

import (
	"sync"
	"testing"
	"time"

	"finledger/internal/models"
	"finledger/internal/period"
	"finledger/internal/testutil"
)

func TestProcess(t *testing.T) {
	t.Run("catch_up_materializes_missed_occurrences", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		recSvc := NewRecurringService(db, ledger)
		account := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		rt := testutil.CreateTestRecurring(t, db, account.ID, category.ID, 1000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		last := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		testutil.AssertNoError(t, db.Model(rt).Update("last_created_date", last).Error)

		result, err := recSvc.Process(rt.ID, time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC))
		testutil.AssertNoError(t, err)

		if result.Created != 3 {
			t.Fatalf("expected 3 created occurrences (Feb, Mar, Apr), got %d", result.Created)
		}
		want := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
		if result.LastCreatedDate == nil || !result.LastCreatedDate.Equal(want) {
			t.Errorf("expected last created date 2024-04-01, got %v", result.LastCreatedDate)
		}

		var dates []time.Time
		var transactions []models.Transaction
		testutil.AssertNoError(t, db.Order("date").Find(&transactions).Error)
		for _, tx := range transactions {
			dates = append(dates, tx.Date)
			if !tx.IsRecurring || tx.RecurringID == nil || *tx.RecurringID != rt.ID {
				t.Errorf("generated transaction should reference its template: %+v", tx)
			}
		}
		expected := []time.Time{
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		}
		if len(dates) != len(expected) {
			t.Fatalf("expected %d transactions, got %d", len(expected), len(dates))
		}
		for i := range expected {
			if !dates[i].Equal(expected[i]) {
				t.Errorf("occurrence %d: expected %s, got %s", i, expected[i].Format("2006-01-02"), dates[i].Format("2006-01-02"))
			}
		}

		// Balance reflects all three occurrences.
		acctSvc := NewAccountService(db)
		if got := balanceOf(t, acctSvc, account.ID); got != 97000 {
			t.Errorf("expected balance 97000, got %d", got)
		}
	})

	t.Run("idempotent_second_tick", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		recSvc := NewRecurringService(db, ledger)
		account := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		rt := testutil.CreateTestRecurring(t, db, account.ID, category.ID, 1000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

		today := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
		first, err := recSvc.Process(rt.ID, today)
		testutil.AssertNoError(t, err)
		if first.Created != 3 {
			t.Fatalf("expected 3 created (Jan, Feb, Mar), got %d", first.Created)
		}

		second, err := recSvc.Process(rt.ID, today)
		testutil.AssertNoError(t, err)
		if second.Created != 0 {
			t.Errorf("second tick must create nothing, got %d", second.Created)
		}

		var count int64
		testutil.AssertNoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
		if count != 3 {
			t.Errorf("expected 3 transactions total, got %d", count)
		}
	})

	t.Run("day_of_month_clamps", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		recSvc := NewRecurringService(db, ledger)
		account := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		rt := testutil.CreateTestRecurring(t, db, account.ID, category.ID, 1000, time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))

		result, err := recSvc.Process(rt.ID, time.Date(2024, 4, 10, 0, 0, 0, 0, time.UTC))
		testutil.AssertNoError(t, err)
		if result.Created != 3 {
			t.Fatalf("expected 3 created (Jan 31, Feb 29, Mar 31), got %d", result.Created)
		}

		var transactions []models.Transaction
		testutil.AssertNoError(t, db.Order("date").Find(&transactions).Error)
		expected := []time.Time{
			time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		}
		if len(transactions) != len(expected) {
			t.Fatalf("expected %d transactions, got %d", len(expected), len(transactions))
		}
		for i, want := range expected {
			if !transactions[i].Date.Equal(want) {
				t.Errorf("occurrence %d: expected %s, got %s", i, want.Format("2006-01-02"), transactions[i].Date.Format("2006-01-02"))
			}
		}
	})

	t.Run("failure_does_not_advance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		recSvc := NewRecurringService(db, ledger)
		account := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		rt := testutil.CreateTestRecurring(t, db, account.ID, category.ID, 1000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

		// Deactivating the account makes every occurrence fail.
		testutil.AssertNoError(t, db.Model(&models.Account{}).Where("id = ?", account.ID).Update("is_active", false).Error)

		result, err := recSvc.Process(rt.ID, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
		testutil.AssertNoError(t, err)
		if result.Created != 0 {
			t.Errorf("expected nothing created, got %d", result.Created)
		}
		if result.FailedDate == nil || !result.FailedDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
			t.Errorf("expected failure on the first occurrence, got %v", result.FailedDate)
		}
		if result.Error == "" {
			t.Error("expected failure detail")
		}

		// High-water mark untouched: reactivation retries from the start.
		reloaded, err := recSvc.GetRecurringByID(rt.ID)
		testutil.AssertNoError(t, err)
		if reloaded.LastCreatedDate != nil {
			t.Errorf("expected last created date unchanged, got %v", reloaded.LastCreatedDate)
		}

		testutil.AssertNoError(t, db.Model(&models.Account{}).Where("id = ?", account.ID).Update("is_active", true).Error)
		retry, err := recSvc.Process(rt.ID, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC))
		testutil.AssertNoError(t, err)
		if retry.Created != 3 {
			t.Errorf("expected retry to materialize all 3, got %d", retry.Created)
		}
	})

	t.Run("respects_end_date", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		recSvc := NewRecurringService(db, ledger)
		account := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		rt := testutil.CreateTestRecurring(t, db, account.ID, category.ID, 1000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		end := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
		testutil.AssertNoError(t, db.Model(rt).Update("end_date", end).Error)

		result, err := recSvc.Process(rt.ID, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
		testutil.AssertNoError(t, err)
		if result.Created != 2 {
			t.Errorf("expected 2 created (Jan 1, Feb 1), got %d", result.Created)
		}
	})

	t.Run("inactive_template", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		recSvc := NewRecurringService(db, NewLedgerService(db))
		account := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		rt := testutil.CreateTestRecurring(t, db, account.ID, category.ID, 1000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		testutil.AssertNoError(t, db.Model(rt).Update("is_active", false).Error)

		_, err := recSvc.Process(rt.ID, time.Now())
		testutil.AssertAppError(t, err, "RECURRING_INACTIVE")
	})

	t.Run("concurrent_ticks_create_once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		recSvc := NewRecurringService(db, ledger)
		account := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		rt := testutil.CreateTestRecurring(t, db, account.ID, category.ID, 1000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

		today := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = recSvc.Process(rt.ID, today)
			}()
		}
		wg.Wait()

		var count int64
		testutil.AssertNoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
		if count != 2 {
			t.Errorf("expected exactly 2 transactions despite concurrent ticks, got %d", count)
		}
	})
}

func TestProcessAll(t *testing.T) {
	t.Run("failures_do_not_abort_batch", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		recSvc := NewRecurringService(db, ledger)
		good := testutil.CreateTestAccount(t, db, 100000)
		bad := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		goodRt := testutil.CreateTestRecurring(t, db, good.ID, category.ID, 1000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		badRt := testutil.CreateTestRecurring(t, db, bad.ID, category.ID, 1000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
		testutil.AssertNoError(t, db.Model(&models.Account{}).Where("id = ?", bad.ID).Update("is_active", false).Error)

		results, err := recSvc.ProcessAll(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
		testutil.AssertNoError(t, err)
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}

		byID := map[string]TickResult{}
		for _, r := range results {
			byID[r.RecurringID] = r
		}
		if byID[goodRt.ID].Created != 1 {
			t.Errorf("expected healthy template to create 1, got %d", byID[goodRt.ID].Created)
		}
		if byID[badRt.ID].Created != 0 || byID[badRt.ID].Error == "" {
			t.Errorf("expected failing template to report its error, got %+v", byID[badRt.ID])
		}
	})
}

func TestPreview(t *testing.T) {
	t.Run("lists_without_writing", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		recSvc := NewRecurringService(db, NewLedgerService(db))
		account := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		start := period.Date(time.Now().UTC())
		rt := testutil.CreateTestRecurring(t, db, account.ID, category.ID, 1000, start)

		dates, err := recSvc.Preview(rt.ID, 2)
		testutil.AssertNoError(t, err)
		if len(dates) == 0 {
			t.Fatal("expected upcoming dates")
		}
		if !dates[0].Equal(start) {
			t.Errorf("expected first occurrence at start date %s, got %s", start.Format("2006-01-02"), dates[0].Format("2006-01-02"))
		}

		var count int64
		testutil.AssertNoError(t, db.Model(&models.Transaction{}).Count(&count).Error)
		if count != 0 {
			t.Errorf("preview must not create transactions, found %d", count)
		}
	})
}

func TestDeleteRecurring(t *testing.T) {
	t.Run("no_history_is_removed", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		recSvc := NewRecurringService(db, NewLedgerService(db))
		account := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		rt := testutil.CreateTestRecurring(t, db, account.ID, category.ID, 1000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

		deactivated, err := recSvc.DeleteRecurring(rt.ID)
		testutil.AssertNoError(t, err)
		if deactivated {
			t.Error("expected hard delete for unused template")
		}
		_, err = recSvc.GetRecurringByID(rt.ID)
		testutil.AssertAppError(t, err, "RECURRING_NOT_FOUND")
	})

	t.Run("with_history_is_deactivated", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db)
		recSvc := NewRecurringService(db, ledger)
		account := testutil.CreateTestAccount(t, db, 100000)
		category := testutil.CreateTestCategory(t, db, models.CategoryTypeExpense)
		rt := testutil.CreateTestRecurring(t, db, account.ID, category.ID, 1000, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

		_, err := recSvc.Process(rt.ID, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
		testutil.AssertNoError(t, err)

		deactivated, err := recSvc.DeleteRecurring(rt.ID)
		testutil.AssertNoError(t, err)
		if !deactivated {
			t.Error("expected deactivation for template with history")
		}
		reloaded, err := recSvc.GetRecurringByID(rt.ID)
		testutil.AssertNoError(t, err)
		if reloaded.IsActive {
			t.Error("expected template inactive")
		}
	})
}
