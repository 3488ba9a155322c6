package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/money"
	"finledger/internal/period"
	"finledger/internal/services"
)

// RecurringHandler handles recurrence-template requests.
type RecurringHandler struct {
	recurringService services.RecurringServicer
	accountService   services.AccountServicer
	defaultCurrency  string
}

// NewRecurringHandler creates a new RecurringHandler.
func NewRecurringHandler(recurringService services.RecurringServicer, accountService services.AccountServicer, defaultCurrency string) *RecurringHandler {
	return &RecurringHandler{
		recurringService: recurringService,
		accountService:   accountService,
		defaultCurrency:  defaultCurrency,
	}
}

// CreateRecurringRequest represents the request payload for creating a
// recurrence template.
type CreateRecurringRequest struct {
	Name          string  `json:"name" binding:"required,min=1,max=100"`
	Type          string  `json:"type" binding:"required,transaction_type"`
	Amount        string  `json:"amount" binding:"required"`
	AccountFromID *string `json:"account_from_id"`
	AccountToID   *string `json:"account_to_id"`
	CategoryID    *string `json:"category_id"`
	Frequency     string  `json:"frequency" binding:"required,budget_period"`
	StartDate     string  `json:"start_date" binding:"required"`
	EndDate       *string `json:"end_date"`
}

// UpdateRecurringRequest represents the request payload for updating a
// template. Changes only affect occurrences generated after the update.
type UpdateRecurringRequest struct {
	Name          *string `json:"name" binding:"omitempty,min=1,max=100"`
	Type          *string `json:"type" binding:"omitempty,transaction_type"`
	Amount        *string `json:"amount"`
	AccountFromID *string `json:"account_from_id"`
	AccountToID   *string `json:"account_to_id"`
	CategoryID    *string `json:"category_id"`
	Frequency     *string `json:"frequency" binding:"omitempty,budget_period"`
	EndDate       *string `json:"end_date"`
	IsActive      *bool   `json:"is_active"`
}

// templateCurrency resolves the currency of a template's amount from the
// referenced accounts, falling back to the instance default.
func (h *RecurringHandler) templateCurrency(accountFromID, accountToID *string) (string, error) {
	id := accountFromID
	if id == nil || *id == "" {
		id = accountToID
	}
	if id == nil || *id == "" {
		return h.defaultCurrency, nil
	}
	account, err := h.accountService.GetAccountByID(*id)
	if err != nil {
		return "", err
	}
	return account.Currency, nil
}

// CreateRecurring handles the creation of a new recurrence template.
func (h *RecurringHandler) CreateRecurring(c *gin.Context) {
	var req CreateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	currency, err := h.templateCurrency(req.AccountFromID, req.AccountToID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	amount, err := money.Parse(req.Amount, currency)
	if err != nil {
		respondWithError(c, err)
		return
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		respondWithError(c, err)
		return
	}
	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	rt, err := h.recurringService.CreateRecurring(
		req.Name,
		models.TransactionType(req.Type),
		amount,
		req.AccountFromID,
		req.AccountToID,
		req.CategoryID,
		period.Period(req.Frequency),
		startDate,
		endDate,
	)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"recurring_transaction": rt})
}

// GetRecurring handles the retrieval of recurrence templates.
func (h *RecurringHandler) GetRecurring(c *gin.Context) {
	activeOnly := c.Query("active_only") == "true"

	templates, err := h.recurringService.GetRecurring(activeOnly)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recurring_transactions": templates})
}

// GetRecurringByID handles the retrieval of a single template.
func (h *RecurringHandler) GetRecurringByID(c *gin.Context) {
	rt, err := h.recurringService.GetRecurringByID(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recurring_transaction": rt})
}

// UpdateRecurring handles updating a template.
func (h *RecurringHandler) UpdateRecurring(c *gin.Context) {
	var req UpdateRecurringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	fields := services.RecurringUpdateFields{
		Name:          req.Name,
		AccountFromID: req.AccountFromID,
		AccountToID:   req.AccountToID,
		CategoryID:    req.CategoryID,
		IsActive:      req.IsActive,
	}
	if req.Type != nil {
		t := models.TransactionType(*req.Type)
		fields.Type = &t
	}
	if req.Frequency != nil {
		f := period.Period(*req.Frequency)
		fields.Frequency = &f
	}
	if req.Amount != nil && *req.Amount != "" {
		currency, err := h.templateCurrency(req.AccountFromID, req.AccountToID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		parsed, err := money.Parse(*req.Amount, currency)
		if err != nil {
			respondWithError(c, err)
			return
		}
		fields.Amount = &parsed
	}
	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		respondWithError(c, err)
		return
	}
	fields.EndDate = endDate

	rt, err := h.recurringService.UpdateRecurring(c.Param("id"), fields)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recurring_transaction": rt})
}

// DeleteRecurring handles template deletion. Templates with generated
// history are deactivated instead of removed.
func (h *RecurringHandler) DeleteRecurring(c *gin.Context) {
	deactivated, err := h.recurringService.DeleteRecurring(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	if deactivated {
		c.JSON(http.StatusOK, gin.H{"deactivated": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// SetActive toggles a template on or off.
func (h *RecurringHandler) SetActive(c *gin.Context) {
	var req struct {
		IsActive *bool `json:"is_active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	rt, err := h.recurringService.SetActive(c.Param("id"), *req.IsActive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recurring_transaction": rt})
}

// Process materializes every due occurrence of one template.
func (h *RecurringHandler) Process(c *gin.Context) {
	result, err := h.recurringService.Process(c.Param("id"), time.Now().UTC())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ProcessAll ticks every active template.
func (h *RecurringHandler) ProcessAll(c *gin.Context) {
	results, err := h.recurringService.ProcessAll(time.Now().UTC())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Preview lists upcoming occurrence dates without writing anything.
func (h *RecurringHandler) Preview(c *gin.Context) {
	months := 3
	if v := c.Query("months"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 || parsed > 24 {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "months must be between 1 and 24"))
			return
		}
		months = parsed
	}

	dates, err := h.recurringService.Preview(c.Param("id"), months)
	if err != nil {
		respondWithError(c, err)
		return
	}

	formatted := make([]string, 0, len(dates))
	for _, d := range dates {
		formatted = append(formatted, d.Format("2006-01-02"))
	}
	c.JSON(http.StatusOK, gin.H{"dates": formatted})
}
