package services

import (
	"errors"
	"time"

	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/logger"
	"finledger/internal/models"
)

type goalService struct {
	db *gorm.DB
}

// NewGoalService creates a new GoalServicer. Wire it to the ledger's commit
// notifications so linked goals track activity on their account:
//
//	ledger.Subscribe(goals.RefreshForAccounts)
func NewGoalService(db *gorm.DB) GoalServicer {
	return &goalService{db: db}
}

// CreateGoal creates a savings goal, optionally linked to an account. A
// linked goal starts from the contributions already recorded against the
// account; money that was only ever part of the opening balance does not
// count.
func (s *goalService) CreateGoal(name string, targetAmount int64, targetDate *time.Time, accountID *string, notes string) (*models.SavingsGoal, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "goal name is required")
	}
	if targetAmount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target amount must be positive")
	}

	goal := &models.SavingsGoal{
		Name:         name,
		TargetAmount: targetAmount,
		TargetDate:   targetDate,
		AccountID:    accountID,
		Notes:        notes,
	}

	if accountID != nil {
		var account models.Account
		if err := s.db.First(&account, "id = ?", *accountID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperrors.ErrAccountNotFound
			}
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if !account.IsActive {
			return nil, apperrors.ErrAccountInactive
		}
		total, err := s.contributionTotal(*accountID, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		goal.CurrentAmount = total
	}
	latchAchievement(goal, time.Now().UTC())

	if err := s.db.Create(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goal, nil
}

// GetGoals retrieves savings goals, optionally including achieved ones.
func (s *goalService) GetGoals(includeAchieved bool) ([]models.SavingsGoal, error) {
	query := s.db.Preload("Account").Order("created_at DESC")
	if !includeAchieved {
		query = query.Where("is_achieved = ?", false)
	}

	var goals []models.SavingsGoal
	if err := query.Find(&goals).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goals, nil
}

// GetGoalByID retrieves a specific savings goal.
func (s *goalService) GetGoalByID(goalID string) (*models.SavingsGoal, error) {
	var goal models.SavingsGoal
	if err := s.db.Preload("Account").First(&goal, "id = ?", goalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrGoalNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &goal, nil
}

// UpdateGoal updates goal fields. Raising the target after achievement does
// not clear the latch; the goal stays achieved.
func (s *goalService) UpdateGoal(goalID string, name *string, targetAmount *int64, targetDate *time.Time, notes *string) (*models.SavingsGoal, error) {
	goal, err := s.GetGoalByID(goalID)
	if err != nil {
		return nil, err
	}

	if name != nil {
		goal.Name = *name
	}
	if targetAmount != nil {
		if *targetAmount <= 0 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "target amount must be positive")
		}
		goal.TargetAmount = *targetAmount
	}
	if targetDate != nil {
		goal.TargetDate = targetDate
	}
	if notes != nil {
		goal.Notes = *notes
	}
	latchAchievement(goal, time.Now().UTC())

	if err := s.db.Save(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goal, nil
}

// DeleteGoal removes a savings goal. Goals hold no ledger state.
func (s *goalService) DeleteGoal(goalID string) error {
	result := s.db.Delete(&models.SavingsGoal{}, "id = ?", goalID)
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrGoalNotFound
	}
	return nil
}

// Contribute adds a manual contribution to an unlinked goal. Linked goals
// accrue from their account's recorded income and transfers instead, so a
// manual contribution is rejected; record the money movement on the account
// and the goal follows.
func (s *goalService) Contribute(goalID string, amount int64) (*models.SavingsGoal, error) {
	if amount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "contribution amount must be positive")
	}

	goal, err := s.GetGoalByID(goalID)
	if err != nil {
		return nil, err
	}
	if goal.AccountID != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "linked goals accrue from account activity; record a transaction on the account instead")
	}

	goal.CurrentAmount += amount
	latchAchievement(goal, time.Now().UTC())
	if err := s.db.Save(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goal, nil
}

// Refresh recomputes a linked goal's current amount from the transaction log
// and latches achievement. Unlinked goals are returned unchanged.
func (s *goalService) Refresh(goalID string) (*models.SavingsGoal, error) {
	goal, err := s.GetGoalByID(goalID)
	if err != nil {
		return nil, err
	}
	if goal.AccountID == nil {
		return goal, nil
	}

	total, err := s.contributionTotal(*goal.AccountID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	goal.CurrentAmount = total
	latchAchievement(goal, time.Now().UTC())

	if err := s.db.Save(goal).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return goal, nil
}

// contributionTotal sums the account's recorded contributions up to asOf:
// income and transfers in minus expenses and transfers out. Corrections are
// balance repairs, not savings activity, and planned rows have not happened
// yet; neither counts. The account's initial balance never appears in the
// transaction log, so it is excluded by construction.
func (s *goalService) contributionTotal(accountID string, asOf time.Time) (int64, error) {
	inTypes := []models.TransactionType{models.TransactionTypeIncome, models.TransactionTypeTransfer}
	outTypes := []models.TransactionType{models.TransactionTypeExpense, models.TransactionTypeTransfer}

	var in, out int64
	err := s.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_to_id = ? AND type IN ? AND is_planned = ? AND date <= ?", accountID, inTypes, false, asOf).
		Scan(&in).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	err = s.db.Model(&models.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("account_from_id = ? AND type IN ? AND is_planned = ? AND date <= ?", accountID, outTypes, false, asOf).
		Scan(&out).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return in - out, nil
}

// RefreshForAccounts refreshes every goal linked to one of the given
// accounts. It is called from the ledger's commit notification, so failures
// are logged rather than propagated.
func (s *goalService) RefreshForAccounts(accountIDs []string) {
	if len(accountIDs) == 0 {
		return
	}

	var goals []models.SavingsGoal
	if err := s.db.Where("account_id IN ?", accountIDs).Find(&goals).Error; err != nil {
		logger.Get().Errorw("failed to load goals for refresh", "error", err)
		return
	}
	for _, goal := range goals {
		if _, err := s.Refresh(goal.ID); err != nil {
			logger.Get().Errorw("failed to refresh goal", "goal_id", goal.ID, "error", err)
		}
	}
}

// latchAchievement marks the goal achieved when the target is reached. The
// latch is one-way: a later drop below the target leaves it set.
func latchAchievement(goal *models.SavingsGoal, now time.Time) {
	if goal.IsAchieved || goal.CurrentAmount < goal.TargetAmount {
		return
	}
	goal.IsAchieved = true
	goal.AchievedAt = &now
}
