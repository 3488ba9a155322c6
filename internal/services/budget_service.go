package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/period"
)

type budgetService struct {
	db         *gorm.DB
	categories CategoryServicer
}

// NewBudgetService creates a new BudgetServicer.
func NewBudgetService(db *gorm.DB, categories CategoryServicer) BudgetServicer {
	return &budgetService{db: db, categories: categories}
}

// CreateBudget creates a spending limit over an expense category subtree.
func (s *budgetService) CreateBudget(name, categoryID string, amount int64, p period.Period, startDate time.Time, endDate *time.Time) (*models.Budget, error) {
	if amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget amount must be positive")
	}
	if !p.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid budget period")
	}

	category, err := s.categories.GetCategoryByID(categoryID)
	if err != nil {
		return nil, err
	}
	if category.Type != models.CategoryTypeExpense {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budgets can only target expense categories")
	}
	if !category.IsActive {
		return nil, apperrors.ErrCategoryInactive
	}

	startDate = period.Date(startDate)
	if endDate != nil {
		d := period.Date(*endDate)
		if d.Before(startDate) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must not precede start date")
		}
		endDate = &d
	}

	budget := &models.Budget{
		Name:       name,
		CategoryID: categoryID,
		Amount:     amount,
		Period:     p,
		StartDate:  startDate,
		EndDate:    endDate,
		IsActive:   true,
	}
	if err := s.db.Create(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return budget, nil
}

// GetBudgets retrieves budgets, skipping inactive ones unless asked.
func (s *budgetService) GetBudgets(includeInactive bool) ([]models.Budget, error) {
	query := s.db.Preload("Category").Order("start_date DESC")
	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}

	var budgets []models.Budget
	if err := query.Find(&budgets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return budgets, nil
}

// GetBudgetByID retrieves a specific budget.
func (s *budgetService) GetBudgetByID(budgetID string) (*models.Budget, error) {
	var budget models.Budget
	if err := s.db.Preload("Category").First(&budget, "id = ?", budgetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrBudgetNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &budget, nil
}

// UpdateBudget updates mutable budget fields. The category, period, and start
// date are fixed at creation so historical windows keep their meaning.
func (s *budgetService) UpdateBudget(budgetID string, name *string, amount *int64, isActive *bool, endDate *time.Time) (*models.Budget, error) {
	budget, err := s.GetBudgetByID(budgetID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		budget.Name = *name
	}
	if amount != nil {
		if *amount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "budget amount must be positive")
		}
		budget.Amount = *amount
	}
	if isActive != nil {
		budget.IsActive = *isActive
	}
	if endDate != nil {
		d := period.Date(*endDate)
		if d.Before(budget.StartDate) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must not precede start date")
		}
		budget.EndDate = &d
	}

	if err := s.db.Save(budget).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return budget, nil
}

// DeleteBudget removes a budget. Budgets hold no ledger state, so deletion is
// always safe.
func (s *budgetService) DeleteBudget(budgetID string) error {
	result := s.db.Delete(&models.Budget{}, "id = ?", budgetID)
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrBudgetNotFound
	}
	return nil
}

// Progress derives spending against the budget for the window containing ref.
// Spending rolls up the whole category subtree and counts only effective
// expense transactions inside the half-open window.
func (s *budgetService) Progress(budgetID string, ref time.Time) (*models.BudgetProgress, error) {
	budget, err := s.GetBudgetByID(budgetID)
	if err != nil {
		return nil, err
	}

	window, ok := period.CurrentWindow(budget.StartDate, budget.Period, ref, budget.EndDate)
	if !ok {
		return nil, apperrors.ErrBudgetExpired
	}

	subtree, err := s.categories.SubtreeIDs(budget.CategoryID)
	if err != nil {
		return nil, err
	}

	var spent int64
	err = s.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("type = ?", models.TransactionTypeExpense).
		Where("is_planned = ?", false).
		Where("category_id IN ? OR subcategory_id IN ?", subtree, subtree).
		Where("date >= ? AND date < ?", window.Start, window.End).
		Scan(&spent).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	progress := &models.BudgetProgress{
		BudgetID:     budget.ID,
		Amount:       budget.Amount,
		SpentAmount:  spent,
		Remaining:    budget.Amount - spent,
		PeriodStart:  window.Start,
		PeriodEnd:    window.End,
		IsOverBudget: spent > budget.Amount,
	}
	if budget.Amount > 0 {
		progress.UsagePercentage = float64(spent) / float64(budget.Amount) * 100
	}
	return progress, nil
}
