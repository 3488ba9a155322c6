package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/pagination"
	"finledger/internal/period"
)

// ledgerService is the balance engine. It owns every write to
// Account.CurrentBalance and guarantees that a transaction's effect on all
// involved accounts commits or rolls back as one unit.
type ledgerService struct {
	db    *gorm.DB
	locks *accountLocks

	subMu       sync.RWMutex
	subscribers []func(accountIDs []string)
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB) LedgerServicer {
	return &ledgerService{db: db, locks: newAccountLocks()}
}

// Subscribe registers a callback invoked after every committed mutation with
// the ids of the accounts whose balance changed.
func (s *ledgerService) Subscribe(fn func(accountIDs []string)) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *ledgerService) notify(accountIDs []string) {
	if len(accountIDs) == 0 {
		return
	}
	s.subMu.RLock()
	subs := s.subscribers
	s.subMu.RUnlock()
	for _, fn := range subs {
		fn(accountIDs)
	}
}

// validateDraft checks the shape of a draft against the kind table: which
// account sides must be set and whether a category is required.
func validateDraft(draft *TransactionDraft) error {
	if draft.Amount <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if draft.Date.IsZero() {
		draft.Date = time.Now()
	}
	draft.Date = period.Date(draft.Date)

	from := draft.AccountFromID != nil && *draft.AccountFromID != ""
	to := draft.AccountToID != nil && *draft.AccountToID != ""

	switch draft.Type {
	case models.TransactionTypeExpense:
		if !from || to {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "expense requires account_from_id and no account_to_id")
		}
		if draft.CategoryID == nil || *draft.CategoryID == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "expense requires category_id")
		}
	case models.TransactionTypeIncome:
		if !to || from {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "income requires account_to_id and no account_from_id")
		}
		if draft.CategoryID == nil || *draft.CategoryID == "" {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "income requires category_id")
		}
	case models.TransactionTypeTransfer:
		if !from || !to {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "transfer requires both account_from_id and account_to_id")
		}
		if *draft.AccountFromID == *draft.AccountToID {
			return apperrors.ErrSameAccountTransfer
		}
	case models.TransactionTypeCorrection:
		if from == to {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "correction requires exactly one account reference")
		}
	default:
		return apperrors.ErrInvalidTransactionType
	}
	return nil
}

// draftAccountIDs returns the account ids a draft touches.
func draftAccountIDs(draft TransactionDraft) []string {
	var ids []string
	if draft.AccountFromID != nil && *draft.AccountFromID != "" {
		ids = append(ids, *draft.AccountFromID)
	}
	if draft.AccountToID != nil && *draft.AccountToID != "" {
		ids = append(ids, *draft.AccountToID)
	}
	return ids
}

func transactionAccountIDs(t *models.Transaction) []string {
	var ids []string
	if t.AccountFromID != nil {
		ids = append(ids, *t.AccountFromID)
	}
	if t.AccountToID != nil {
		ids = append(ids, *t.AccountToID)
	}
	return ids
}

// fetchActiveAccount loads an account that must exist and be active.
func fetchActiveAccount(tx *gorm.DB, accountID string) (*models.Account, error) {
	var account models.Account
	if err := tx.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if !account.IsActive {
		return nil, apperrors.ErrAccountInactive
	}
	return &account, nil
}

// checkReferences validates every entity a draft points at: accounts exist
// and are active, transfer accounts share a currency, the category and
// subcategory exist and are active, tags exist.
func (s *ledgerService) checkReferences(tx *gorm.DB, draft TransactionDraft) ([]models.Tag, error) {
	var from, to *models.Account
	var err error

	if draft.AccountFromID != nil && *draft.AccountFromID != "" {
		if from, err = fetchActiveAccount(tx, *draft.AccountFromID); err != nil {
			return nil, err
		}
	}
	if draft.AccountToID != nil && *draft.AccountToID != "" {
		if to, err = fetchActiveAccount(tx, *draft.AccountToID); err != nil {
			return nil, err
		}
	}
	if draft.Type == models.TransactionTypeTransfer && from != nil && to != nil && from.Currency != to.Currency {
		return nil, apperrors.ErrCurrencyMismatch
	}

	for _, catID := range []*string{draft.CategoryID, draft.SubcategoryID} {
		if catID == nil || *catID == "" {
			continue
		}
		var category models.Category
		if err := tx.Where("id = ?", *catID).First(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrCategoryNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if !category.IsActive {
			return nil, apperrors.ErrCategoryInactive
		}
	}

	var tags []models.Tag
	if len(draft.TagIDs) > 0 {
		if err := tx.Where("id IN ?", draft.TagIDs).Find(&tags).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if len(tags) != len(draft.TagIDs) {
			return nil, apperrors.ErrTagNotFound
		}
	}
	return tags, nil
}

// shiftBalance moves an account balance by delta within the transaction.
func shiftBalance(tx *gorm.DB, accountID string, delta int64) error {
	if delta == 0 {
		return nil
	}
	res := tx.Model(&models.Account{}).Where("id = ?", accountID).
		Update("current_balance", gorm.Expr("current_balance + ?", delta))
	if res.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrAccountNotFound
	}
	return nil
}

// applyEffects applies (sign=+1) or reverses (sign=-1) a transaction's effect
// on the balances of its accounts.
func applyEffects(tx *gorm.DB, t *models.Transaction, sign int64) error {
	if !t.Affects() {
		return nil
	}
	if t.AccountFromID != nil {
		if err := shiftBalance(tx, *t.AccountFromID, -sign*t.Amount); err != nil {
			return err
		}
	}
	if t.AccountToID != nil {
		if err := shiftBalance(tx, *t.AccountToID, sign*t.Amount); err != nil {
			return err
		}
	}
	return nil
}

// apply persists a validated draft and its balance effects inside tx. The
// caller holds the account locks.
func (s *ledgerService) apply(tx *gorm.DB, draft TransactionDraft) (*models.Transaction, error) {
	tags, err := s.checkReferences(tx, draft)
	if err != nil {
		return nil, err
	}

	transaction := &models.Transaction{
		Date:          draft.Date,
		Type:          draft.Type,
		Amount:        draft.Amount,
		AccountFromID: normalizeID(draft.AccountFromID),
		AccountToID:   normalizeID(draft.AccountToID),
		CategoryID:    normalizeID(draft.CategoryID),
		SubcategoryID: normalizeID(draft.SubcategoryID),
		Description:   draft.Description,
		Notes:         draft.Notes,
		IsPlanned:     draft.IsPlanned,
		IsRecurring:   draft.IsRecurring,
		RecurringID:   normalizeID(draft.RecurringID),
	}
	if err := tx.Create(transaction).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(tags) > 0 {
		if err := tx.Model(transaction).Association("Tags").Append(tags); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		transaction.Tags = tags
	}
	if err := applyEffects(tx, transaction, +1); err != nil {
		return nil, err
	}
	return transaction, nil
}

func normalizeID(id *string) *string {
	if id == nil || *id == "" {
		return nil
	}
	return id
}

// Apply validates the draft and commits the transaction together with its
// balance effects.
func (s *ledgerService) Apply(draft TransactionDraft) (*models.Transaction, error) {
	return s.ApplyAndRecord(draft, nil)
}

// ApplyAndRecord commits the draft and runs record inside the same database
// transaction, so the caller's bookkeeping either lands with the transaction
// or not at all. The recurring scheduler uses this to advance its high-water
// mark atomically with the occurrence it materializes.
func (s *ledgerService) ApplyAndRecord(draft TransactionDraft, record func(tx *gorm.DB) error) (*models.Transaction, error) {
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}

	release := s.locks.Acquire(draftAccountIDs(draft)...)
	defer release()

	var result *models.Transaction
	err := withRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			var txErr error
			result, txErr = s.apply(tx, draft)
			if txErr != nil {
				return txErr
			}
			if record != nil {
				return record(tx)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.notify(draftAccountIDs(draft))
	return result, nil
}

// GetTransactionByID retrieves a transaction by ID.
func (s *ledgerService) GetTransactionByID(transactionID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.Preload("Tags").Where("id = ?", transactionID).First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrTransactionNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &transaction, nil
}

// GetTransactions retrieves a paginated list ordered by date then id, newest first.
func (s *ledgerService) GetTransactions(page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := s.db.Model(&models.Transaction{})
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Preload("Tags").
		Scopes(pagination.Paginate(page)).
		Order("date DESC").Order("id DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Limit, page.Offset, total)
	return &result, nil
}

// Retract reverses exactly the effect Apply recorded, then soft-deletes the
// transaction. The stored account sides and magnitude are used as recorded,
// never recomputed.
func (s *ledgerService) Retract(transactionID string) error {
	transaction, err := s.GetTransactionByID(transactionID)
	if err != nil {
		return err
	}

	ids := transactionAccountIDs(transaction)
	release := s.locks.Acquire(ids...)
	defer release()

	err = withRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			res := tx.Delete(&models.Transaction{}, "id = ?", transaction.ID)
			if res.Error != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
			}
			// A concurrent retract already removed the row; rolling back here
			// keeps the effect from being reversed twice.
			if res.RowsAffected == 0 {
				return apperrors.ErrTransactionNotFound
			}
			return applyEffects(tx, transaction, -1)
		})
	})
	if err != nil {
		return err
	}
	s.notify(ids)
	return nil
}

// Update retracts the old effect and applies the new draft atomically. When
// the new draft fails validation the whole unit rolls back and the old
// transaction stays effective.
func (s *ledgerService) Update(transactionID string, draft TransactionDraft) (*models.Transaction, error) {
	if err := validateDraft(&draft); err != nil {
		return nil, err
	}

	old, err := s.GetTransactionByID(transactionID)
	if err != nil {
		return nil, err
	}

	ids := append(transactionAccountIDs(old), draftAccountIDs(draft)...)
	release := s.locks.Acquire(ids...)
	defer release()

	var result *models.Transaction
	err = withRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			res := tx.Delete(&models.Transaction{}, "id = ?", old.ID)
			if res.Error != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
			}
			if res.RowsAffected == 0 {
				return apperrors.ErrTransactionNotFound
			}
			if err := applyEffects(tx, old, -1); err != nil {
				return err
			}
			var txErr error
			result, txErr = s.apply(tx, draft)
			return txErr
		})
	})
	if err != nil {
		return nil, err
	}
	s.notify(ids)
	return result, nil
}

// AdjustBalance sets an account's balance to newBalance by synthesizing a
// correction transaction for the difference. A zero difference records
// nothing and still reports the triple.
func (s *ledgerService) AdjustBalance(accountID string, newBalance int64, description string) (*AdjustmentResult, error) {
	release := s.locks.Acquire(accountID)
	defer release()

	var result *AdjustmentResult
	err := withRetry(func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			account, err := fetchActiveAccount(tx, accountID)
			if err != nil {
				return err
			}

			difference := newBalance - account.CurrentBalance
			result = &AdjustmentResult{
				OldBalance: account.CurrentBalance,
				NewBalance: newBalance,
				Difference: difference,
			}
			if difference == 0 {
				return nil
			}

			if description == "" {
				description = fmt.Sprintf("Balance adjustment by %+d", difference)
			}
			draft := TransactionDraft{
				Date:        period.Date(time.Now()),
				Type:        models.TransactionTypeCorrection,
				Amount:      difference,
				Description: description,
			}
			if difference > 0 {
				draft.AccountToID = &accountID
			} else {
				draft.Amount = -difference
				draft.AccountFromID = &accountID
			}

			result.Transaction, err = s.apply(tx, draft)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	if result.Difference != 0 {
		s.notify([]string{accountID})
	}
	return result, nil
}

// Realize flips a planned transaction into an effective one and applies its
// balance effect. Realizing an already effective transaction is a no-op.
func (s *ledgerService) Realize(transactionID string) (*models.Transaction, error) {
	transaction, err := s.GetTransactionByID(transactionID)
	if err != nil {
		return nil, err
	}
	if !transaction.IsPlanned {
		return transaction, nil
	}

	ids := transactionAccountIDs(transaction)
	release := s.locks.Acquire(ids...)
	defer release()

	var applied bool
	err = withRetry(func() error {
		applied = false
		return s.db.Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Transaction{}).
				Where("id = ? AND is_planned = ?", transaction.ID, true).
				Update("is_planned", false)
			if res.Error != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
			}
			// Zero rows means another caller realized or removed it first;
			// the effect must land at most once.
			if res.RowsAffected == 0 {
				return nil
			}
			applied = true
			return applyEffects(tx, transaction, +1)
		})
	})
	if err != nil {
		return nil, err
	}
	transaction.IsPlanned = false
	if applied {
		s.notify(ids)
	}
	return transaction, nil
}

// VerifyBalances recomputes every account balance from the transaction log
// and fails loudly on divergence. Intended for startup checks and tests.
func (s *ledgerService) VerifyBalances() error {
	var accounts []models.Account
	if err := s.db.Find(&accounts).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for _, account := range accounts {
		var in, out int64
		if err := s.db.Model(&models.Transaction{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("account_to_id = ? AND is_planned = ?", account.ID, false).
			Scan(&in).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := s.db.Model(&models.Transaction{}).
			Select("COALESCE(SUM(amount), 0)").
			Where("account_from_id = ? AND is_planned = ?", account.ID, false).
			Scan(&out).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		expected := account.InitialBalance + in - out
		if expected != account.CurrentBalance {
			return apperrors.WithMessage(apperrors.ErrInvariantViolation,
				fmt.Sprintf("account %s: stored balance %d, log says %d", account.ID, account.CurrentBalance, expected))
		}
	}
	return nil
}
