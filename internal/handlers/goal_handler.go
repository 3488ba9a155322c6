package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "finledger/internal/errors"
	"finledger/internal/money"
	"finledger/internal/services"
)

// GoalHandler handles savings-goal requests.
type GoalHandler struct {
	goalService     services.GoalServicer
	defaultCurrency string
}

// NewGoalHandler creates a new GoalHandler.
func NewGoalHandler(goalService services.GoalServicer, defaultCurrency string) *GoalHandler {
	return &GoalHandler{goalService: goalService, defaultCurrency: defaultCurrency}
}

// CreateGoalRequest represents the request payload for creating a savings goal.
type CreateGoalRequest struct {
	Name         string  `json:"name" binding:"required,min=1,max=100"`
	TargetAmount string  `json:"target_amount" binding:"required"`
	TargetDate   *string `json:"target_date"`
	AccountID    *string `json:"account_id"`
	Notes        string  `json:"notes" binding:"max=2000"`
}

// UpdateGoalRequest represents the request payload for updating a savings goal.
type UpdateGoalRequest struct {
	Name         *string `json:"name" binding:"omitempty,min=1,max=100"`
	TargetAmount *string `json:"target_amount"`
	TargetDate   *string `json:"target_date"`
	Notes        *string `json:"notes" binding:"omitempty,max=2000"`
}

// ContributeRequest represents a manual contribution to a goal.
type ContributeRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// CreateGoal handles the creation of a new savings goal.
func (h *GoalHandler) CreateGoal(c *gin.Context) {
	var req CreateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	targetAmount, err := money.Parse(req.TargetAmount, h.defaultCurrency)
	if err != nil {
		respondWithError(c, err)
		return
	}

	targetDate, err := parseOptionalDate(req.TargetDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := h.goalService.CreateGoal(req.Name, targetAmount, targetDate, req.AccountID, req.Notes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"goal": goal})
}

// GetGoals handles the retrieval of savings goals.
func (h *GoalHandler) GetGoals(c *gin.Context) {
	includeAchieved := c.Query("include_achieved") != "false"

	goals, err := h.goalService.GetGoals(includeAchieved)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goals": goals})
}

// GetGoal handles the retrieval of a single savings goal.
func (h *GoalHandler) GetGoal(c *gin.Context) {
	goal, err := h.goalService.GetGoalByID(c.Param("id"))
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// UpdateGoal handles updating a savings goal.
func (h *GoalHandler) UpdateGoal(c *gin.Context) {
	var req UpdateGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var targetAmount *int64
	if req.TargetAmount != nil && *req.TargetAmount != "" {
		parsed, err := money.Parse(*req.TargetAmount, h.defaultCurrency)
		if err != nil {
			respondWithError(c, err)
			return
		}
		targetAmount = &parsed
	}

	targetDate, err := parseOptionalDate(req.TargetDate)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := h.goalService.UpdateGoal(c.Param("id"), req.Name, targetAmount, targetDate, req.Notes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}

// DeleteGoal handles goal deletion.
func (h *GoalHandler) DeleteGoal(c *gin.Context) {
	if err := h.goalService.DeleteGoal(c.Param("id")); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// Contribute adds a manual contribution to a goal.
func (h *GoalHandler) Contribute(c *gin.Context) {
	var req ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	amount, err := money.Parse(req.Amount, h.defaultCurrency)
	if err != nil {
		respondWithError(c, err)
		return
	}

	goal, err := h.goalService.Contribute(c.Param("id"), amount)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"goal": goal})
}
