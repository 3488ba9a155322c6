package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/money"
	"finledger/internal/pagination"
	"finledger/internal/services"
)

// TransactionHandler handles transaction-related requests.
type TransactionHandler struct {
	ledgerService   services.LedgerServicer
	searchService   services.SearchServicer
	accountService  services.AccountServicer
	defaultCurrency string
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(ledgerService services.LedgerServicer, searchService services.SearchServicer, accountService services.AccountServicer, defaultCurrency string) *TransactionHandler {
	return &TransactionHandler{
		ledgerService:   ledgerService,
		searchService:   searchService,
		accountService:  accountService,
		defaultCurrency: defaultCurrency,
	}
}

// TransactionRequest represents the request payload for creating or updating
// a transaction. Amount is a positive decimal string in the currency of the
// involved accounts.
type TransactionRequest struct {
	Date          string   `json:"date" binding:"required"`
	Type          string   `json:"type" binding:"required,transaction_type"`
	Amount        string   `json:"amount" binding:"required"`
	AccountFromID *string  `json:"account_from_id"`
	AccountToID   *string  `json:"account_to_id"`
	CategoryID    *string  `json:"category_id"`
	SubcategoryID *string  `json:"subcategory_id"`
	Description   string   `json:"description" binding:"max=500"`
	Notes         string   `json:"notes" binding:"max=2000"`
	TagIDs        []string `json:"tag_ids"`
	IsPlanned     bool     `json:"is_planned"`
}

// draftCurrency resolves the currency a request amount is denominated in
// from whichever account side the request references.
func (h *TransactionHandler) draftCurrency(accountFromID, accountToID *string) (string, error) {
	id := accountFromID
	if id == nil || *id == "" {
		id = accountToID
	}
	if id == nil || *id == "" {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "transaction must reference an account")
	}
	account, err := h.accountService.GetAccountByID(*id)
	if err != nil {
		return "", err
	}
	return account.Currency, nil
}

// buildDraft converts a request payload into a transaction draft.
func (h *TransactionHandler) buildDraft(req TransactionRequest) (services.TransactionDraft, error) {
	var draft services.TransactionDraft

	date, err := parseDate(req.Date)
	if err != nil {
		return draft, err
	}

	currency, err := h.draftCurrency(req.AccountFromID, req.AccountToID)
	if err != nil {
		return draft, err
	}
	amount, err := money.Parse(req.Amount, currency)
	if err != nil {
		return draft, err
	}

	return services.TransactionDraft{
		Date:          date,
		Type:          models.TransactionType(req.Type),
		Amount:        amount,
		AccountFromID: req.AccountFromID,
		AccountToID:   req.AccountToID,
		CategoryID:    req.CategoryID,
		SubcategoryID: req.SubcategoryID,
		Description:   req.Description,
		Notes:         req.Notes,
		TagIDs:        req.TagIDs,
		IsPlanned:     req.IsPlanned,
	}, nil
}

// CreateTransaction records a new transaction and applies its effect.
func (h *TransactionHandler) CreateTransaction(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	draft, err := h.buildDraft(req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.ledgerService.Apply(draft)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": transaction})
}

// GetTransactions returns the transaction log, newest first.
func (h *TransactionHandler) GetTransactions(c *gin.Context) {
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.ledgerService.GetTransactions(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetTransaction returns a single transaction.
func (h *TransactionHandler) GetTransaction(c *gin.Context) {
	transaction, err := h.ledgerService.GetTransactionByID(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// UpdateTransaction replaces a transaction: the old balance effect is
// retracted and the new one applied atomically.
func (h *TransactionHandler) UpdateTransaction(c *gin.Context) {
	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	draft, err := h.buildDraft(req)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transaction, err := h.ledgerService.Update(c.Param("id"), draft)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// DeleteTransaction retracts a transaction and reverses its balance effect.
func (h *TransactionHandler) DeleteTransaction(c *gin.Context) {
	if err := h.ledgerService.Retract(c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// RealizeTransaction flips a planned transaction into an effective one.
func (h *TransactionHandler) RealizeTransaction(c *gin.Context) {
	transaction, err := h.ledgerService.Realize(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transaction": transaction})
}

// splitIDs parses a comma-separated query value into an id slice.
func splitIDs(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// buildSearchFilter parses the search query parameters shared by the search
// and export endpoints.
func buildSearchFilter(c *gin.Context, defaultCurrency string) (services.SearchFilter, error) {
	var filter services.SearchFilter

	filter.Query = c.Query("q")

	start, err := parseOptionalDate(ptrOrNil(c.Query("start_date")))
	if err != nil {
		return filter, err
	}
	filter.StartDate = start

	end, err := parseOptionalDate(ptrOrNil(c.Query("end_date")))
	if err != nil {
		return filter, err
	}
	filter.EndDate = end

	if v := c.Query("min_amount"); v != "" {
		amount, err := money.Parse(v, defaultCurrency)
		if err != nil {
			return filter, err
		}
		filter.MinAmount = &amount
	}
	if v := c.Query("max_amount"); v != "" {
		amount, err := money.Parse(v, defaultCurrency)
		if err != nil {
			return filter, err
		}
		filter.MaxAmount = &amount
	}

	filter.AccountIDs = splitIDs(c.Query("account_ids"))
	filter.CategoryIDs = splitIDs(c.Query("category_ids"))
	filter.TagIDs = splitIDs(c.Query("tag_ids"))

	for _, t := range splitIDs(c.Query("types")) {
		switch models.TransactionType(t) {
		case models.TransactionTypeExpense, models.TransactionTypeIncome,
			models.TransactionTypeTransfer, models.TransactionTypeCorrection:
			filter.Types = append(filter.Types, models.TransactionType(t))
		default:
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid transaction type: "+t)
		}
	}

	return filter, nil
}

// SearchTransactions runs a multi-predicate search over the ledger.
func (h *TransactionHandler) SearchTransactions(c *gin.Context) {
	filter, err := buildSearchFilter(c, h.defaultCurrency)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.searchService.Search(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ptrOrNil returns nil for the empty string, otherwise a pointer to it.
func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
