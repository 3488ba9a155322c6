package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/money"
	"finledger/internal/pagination"
)

// accountService handles account-related business logic.
type accountService struct {
	db *gorm.DB
}

// NewAccountService creates a new AccountServicer.
func NewAccountService(db *gorm.DB) AccountServicer {
	return &accountService{db: db}
}

// CreateAccount creates a new account. The opening balance becomes both the
// initial and current balance: the balance invariant treats it as the
// baseline, so no synthetic transaction is recorded for it.
func (s *accountService) CreateAccount(name string, accountType models.AccountType, initialBalance int64, creditLimit *int64, currency, color, icon string) (*models.Account, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "account name is required")
	}
	if initialBalance < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "initial balance cannot be negative")
	}
	if currency == "" {
		currency = "KZT"
	}
	if !money.ValidCurrency(currency) {
		return nil, apperrors.ErrInvalidCurrency
	}

	account := &models.Account{
		Name:           name,
		Type:           accountType,
		InitialBalance: initialBalance,
		CurrentBalance: initialBalance,
		CreditLimit:    creditLimit,
		Currency:       currency,
		Color:          color,
		Icon:           icon,
		IsActive:       true,
	}

	if err := s.db.Create(account).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return account, nil
}

// GetAccounts retrieves a paginated list of accounts.
func (s *accountService) GetAccounts(includeInactive bool, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error) {
	page.Defaults()

	base := s.db.Model(&models.Account{})
	if !includeInactive {
		base = base.Where("is_active = ?", true)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var accounts []models.Account
	if err := base.Scopes(pagination.Paginate(page)).Order("created_at").Find(&accounts).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(accounts, page.Limit, page.Offset, total)
	return &result, nil
}

// GetAccountByID retrieves an account by ID.
func (s *accountService) GetAccountByID(accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrAccountNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

// UpdateAccount updates an existing account. Balance and currency are not
// updatable here: the former belongs to the ledger service, the latter is
// fixed at creation.
func (s *accountService) UpdateAccount(accountID string, fields AccountUpdateFields) (*models.Account, error) {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if fields.Name != nil && *fields.Name != "" {
		updates["name"] = *fields.Name
	}
	if fields.Color != nil {
		updates["color"] = *fields.Color
	}
	if fields.Icon != nil {
		updates["icon"] = *fields.Icon
	}
	if fields.IsActive != nil {
		updates["is_active"] = *fields.IsActive
	}
	if fields.CreditLimit != nil {
		updates["credit_limit"] = *fields.CreditLimit
	}

	if len(updates) > 0 {
		if err := s.db.Model(account).Updates(updates).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return account, nil
}

// DeleteAccount removes an account without history, after requiring a zero
// balance. Accounts referenced by transactions are never deleted; the
// transaction log keeps its referential integrity and the caller deactivates
// explicitly via UpdateAccount when retiring the account is the intent.
func (s *accountService) DeleteAccount(accountID string) error {
	account, err := s.GetAccountByID(accountID)
	if err != nil {
		return err
	}

	var count int64
	if err := s.db.Model(&models.Transaction{}).
		Where("account_from_id = ? OR account_to_id = ?", accountID, accountID).
		Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return apperrors.ErrAccountInUse
	}

	if account.CurrentBalance != 0 {
		return apperrors.ErrNonZeroBalance
	}

	if err := s.db.Delete(account).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}
