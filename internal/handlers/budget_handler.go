package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "finledger/internal/errors"
	"finledger/internal/money"
	"finledger/internal/period"
	"finledger/internal/services"
)

// BudgetHandler handles budget-related requests.
type BudgetHandler struct {
	budgetService   services.BudgetServicer
	defaultCurrency string
}

// NewBudgetHandler creates a new BudgetHandler.
func NewBudgetHandler(budgetService services.BudgetServicer, defaultCurrency string) *BudgetHandler {
	return &BudgetHandler{budgetService: budgetService, defaultCurrency: defaultCurrency}
}

// CreateBudgetRequest represents the request payload for creating a budget.
type CreateBudgetRequest struct {
	Name       string  `json:"name" binding:"required,min=1,max=100"`
	CategoryID string  `json:"category_id" binding:"required"`
	Amount     string  `json:"amount" binding:"required"`
	Period     string  `json:"period" binding:"required,budget_period"`
	StartDate  string  `json:"start_date" binding:"required"`
	EndDate    *string `json:"end_date"`
}

// UpdateBudgetRequest represents the request payload for updating a budget.
type UpdateBudgetRequest struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=100"`
	Amount   *string `json:"amount"`
	IsActive *bool   `json:"is_active"`
	EndDate  *string `json:"end_date"`
}

// CreateBudget handles the creation of a new budget.
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	var req CreateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	amount, err := money.Parse(req.Amount, h.defaultCurrency)
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

	budget, err := h.budgetService.CreateBudget(req.Name, req.CategoryID, amount, period.Period(req.Period), startDate, endDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"budget": budget})
}

// GetBudgets handles the retrieval of budgets.
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	includeInactive := c.Query("include_inactive") == "true"

	budgets, err := h.budgetService.GetBudgets(includeInactive)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budgets": budgets})
}

// GetBudget handles the retrieval of a single budget.
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	budget, err := h.budgetService.GetBudgetByID(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// UpdateBudget handles updating a budget.
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	var req UpdateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var amount *int64
	if req.Amount != nil && *req.Amount != "" {
		parsed, err := money.Parse(*req.Amount, h.defaultCurrency)
		if err != nil {
			respondWithError(c, err)
			return
		}
		amount = &parsed
	}

	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	budget, err := h.budgetService.UpdateBudget(c.Param("id"), req.Name, amount, req.IsActive, endDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// DeleteBudget handles budget deletion.
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	if err := h.budgetService.DeleteBudget(c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetBudgetProgress returns derived spending for the window containing the
// reference date (query parameter "date", default today).
func (h *BudgetHandler) GetBudgetProgress(c *gin.Context) {
	ref := time.Now().UTC()
	if v := c.Query("date"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			respondWithError(c, err)
			return
		}
		ref = parsed
	}

	progress, err := h.budgetService.Progress(c.Param("id"), ref)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, progress)
}
