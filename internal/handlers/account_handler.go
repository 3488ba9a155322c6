package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/money"
	"finledger/internal/pagination"
	"finledger/internal/services"
)

// AccountHandler handles account-related requests.
type AccountHandler struct {
	accountService  services.AccountServicer
	ledgerService   services.LedgerServicer
	defaultCurrency string
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accountService services.AccountServicer, ledgerService services.LedgerServicer, defaultCurrency string) *AccountHandler {
	return &AccountHandler{
		accountService:  accountService,
		ledgerService:   ledgerService,
		defaultCurrency: defaultCurrency,
	}
}

// CreateAccountRequest represents the request payload for creating an account.
// Monetary fields are decimal strings in the account currency.
type CreateAccountRequest struct {
	Name           string  `json:"name" binding:"required,min=1,max=100"`
	Type           string  `json:"type" binding:"required,account_type"`
	InitialBalance string  `json:"initial_balance"`
	CreditLimit    *string `json:"credit_limit"`
	Currency       string  `json:"currency" binding:"omitempty,iso4217"`
	Color          string  `json:"color" binding:"omitempty,hex_color"`
	Icon           string  `json:"icon" binding:"max=50"`
}

// UpdateAccountRequest represents the request payload for updating an account.
// Balance and currency are absent: balances only move through the ledger.
type UpdateAccountRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1,max=100"`
	Color       *string `json:"color" binding:"omitempty,hex_color"`
	Icon        *string `json:"icon" binding:"omitempty,max=50"`
	IsActive    *bool   `json:"is_active"`
	CreditLimit *string `json:"credit_limit"`
}

// AdjustBalanceRequest sets the account balance to a new observed value.
type AdjustBalanceRequest struct {
	NewBalance  string `json:"new_balance" binding:"required"`
	Description string `json:"description" binding:"max=500"`
}

// CreateAccount handles the creation of a new account.
func (h *AccountHandler) CreateAccount(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	currency := req.Currency
	if currency == "" {
		currency = h.defaultCurrency
	}

	initialBalance := int64(0)
	if req.InitialBalance != "" {
		parsed, err := money.Parse(req.InitialBalance, currency)
		if err != nil {
			respondWithError(c, err)
			return
		}
		initialBalance = parsed
	}

	var creditLimit *int64
	if req.CreditLimit != nil && *req.CreditLimit != "" {
		parsed, err := money.Parse(*req.CreditLimit, currency)
		if err != nil {
			respondWithError(c, err)
			return
		}
		creditLimit = &parsed
	}

	account, err := h.accountService.CreateAccount(
		req.Name,
		models.AccountType(req.Type),
		initialBalance,
		creditLimit,
		currency,
		req.Color,
		req.Icon,
	)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": account})
}

// GetAccounts handles the retrieval of accounts.
func (h *AccountHandler) GetAccounts(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	includeInactive := c.Query("include_inactive") == "true"

	result, err := h.accountService.GetAccounts(includeInactive, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetAccount handles the retrieval of a single account.
func (h *AccountHandler) GetAccount(c *gin.Context) {
	account, err := h.accountService.GetAccountByID(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// UpdateAccount handles updating an account's descriptive fields.
func (h *AccountHandler) UpdateAccount(c *gin.Context) {
	var req UpdateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	fields := services.AccountUpdateFields{
		Name:     req.Name,
		Color:    req.Color,
		Icon:     req.Icon,
		IsActive: req.IsActive,
	}
	if req.CreditLimit != nil && *req.CreditLimit != "" {
		account, err := h.accountService.GetAccountByID(c.Param("id"))
		if err != nil {
			respondWithError(c, err)
			return
		}
		parsed, err := money.Parse(*req.CreditLimit, account.Currency)
		if err != nil {
			respondWithError(c, err)
			return
		}
		fields.CreditLimit = &parsed
	}

	account, err := h.accountService.UpdateAccount(c.Param("id"), fields)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": account})
}

// DeleteAccount handles account deletion. Accounts with transaction history
// are protected; retire those by setting is_active=false via update.
func (h *AccountHandler) DeleteAccount(c *gin.Context) {
	if err := h.accountService.DeleteAccount(c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// AdjustBalance reconciles the account to an observed balance by recording a
// correction for the difference.
func (h *AccountHandler) AdjustBalance(c *gin.Context) {
	var req AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	account, err := h.accountService.GetAccountByID(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	newBalance, err := money.Parse(req.NewBalance, account.Currency)
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.ledgerService.AdjustBalance(account.ID, newBalance, req.Description)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
