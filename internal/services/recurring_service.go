package services

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/logger"
	"finledger/internal/models"
	"finledger/internal/period"
)

// processAllWorkers bounds how many templates ProcessAll ticks concurrently.
const processAllWorkers = 4

type recurringService struct {
	db     *gorm.DB
	ledger LedgerServicer

	// mu guards ticks so a template is never processed by two callers at
	// once; the date check inside Process keeps the tick idempotent.
	mu      sync.Mutex
	tickMus map[string]*sync.Mutex
}

// NewRecurringService creates a new RecurringServicer.
func NewRecurringService(db *gorm.DB, ledger LedgerServicer) RecurringServicer {
	return &recurringService{
		db:      db,
		ledger:  ledger,
		tickMus: make(map[string]*sync.Mutex),
	}
}

func (s *recurringService) tickMu(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.tickMus[id]
	if !ok {
		mu = &sync.Mutex{}
		s.tickMus[id] = mu
	}
	return mu
}

// occurrenceDraft builds the transaction draft for one occurrence.
func occurrenceDraft(rt *models.RecurringTransaction, date time.Time) TransactionDraft {
	id := rt.ID
	return TransactionDraft{
		Date:          date,
		Type:          rt.Type,
		Amount:        rt.Amount,
		AccountFromID: rt.AccountFromID,
		AccountToID:   rt.AccountToID,
		CategoryID:    rt.CategoryID,
		Description:   rt.Name,
		IsRecurring:   true,
		RecurringID:   &id,
	}
}

// CreateRecurring creates a recurrence template. The draft it would generate
// is validated up front so a broken template is rejected at creation rather
// than on its first tick.
func (s *recurringService) CreateRecurring(name string, t models.TransactionType, amount int64, accountFromID, accountToID, categoryID *string, freq period.Period, startDate time.Time, endDate *time.Time) (*models.RecurringTransaction, error) {
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "template name is required")
	}
	if !freq.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid frequency")
	}

	startDate = period.Date(startDate)
	if endDate != nil {
		d := period.Date(*endDate)
		if d.Before(startDate) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must not precede start date")
		}
		endDate = &d
	}

	rt := &models.RecurringTransaction{
		Name:          name,
		Type:          t,
		Amount:        amount,
		AccountFromID: normalizeID(accountFromID),
		AccountToID:   normalizeID(accountToID),
		CategoryID:    normalizeID(categoryID),
		Frequency:     freq,
		StartDate:     startDate,
		EndDate:       endDate,
		IsActive:      true,
	}

	sample := occurrenceDraft(rt, startDate)
	if err := validateDraft(&sample); err != nil {
		return nil, err
	}

	if err := s.db.Create(rt).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rt, nil
}

// GetRecurring retrieves recurrence templates.
func (s *recurringService) GetRecurring(activeOnly bool) ([]models.RecurringTransaction, error) {
	query := s.db.Preload("AccountFrom").Preload("AccountTo").Preload("Category").Order("start_date")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var templates []models.RecurringTransaction
	if err := query.Find(&templates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return templates, nil
}

// GetRecurringByID retrieves a specific template.
func (s *recurringService) GetRecurringByID(id string) (*models.RecurringTransaction, error) {
	var rt models.RecurringTransaction
	if err := s.db.Preload("AccountFrom").Preload("AccountTo").Preload("Category").First(&rt, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrRecurringNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &rt, nil
}

// UpdateRecurring updates template fields. Changes only affect occurrences
// generated after the update; already materialized transactions are
// untouched. The start date is fixed so the clamping anchor never moves.
func (s *recurringService) UpdateRecurring(id string, fields RecurringUpdateFields) (*models.RecurringTransaction, error) {
	rt, err := s.GetRecurringByID(id)
	if err != nil {
		return nil, err
	}

	if fields.Name != nil {
		rt.Name = *fields.Name
	}
	if fields.Type != nil {
		rt.Type = *fields.Type
	}
	if fields.Amount != nil {
		rt.Amount = *fields.Amount
	}
	if fields.AccountFromID != nil {
		rt.AccountFromID = normalizeID(fields.AccountFromID)
	}
	if fields.AccountToID != nil {
		rt.AccountToID = normalizeID(fields.AccountToID)
	}
	if fields.CategoryID != nil {
		rt.CategoryID = normalizeID(fields.CategoryID)
	}
	if fields.Frequency != nil {
		if !fields.Frequency.Valid() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid frequency")
		}
		rt.Frequency = *fields.Frequency
	}
	if fields.EndDate != nil {
		d := period.Date(*fields.EndDate)
		if d.Before(rt.StartDate) {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must not precede start date")
		}
		rt.EndDate = &d
	}
	if fields.IsActive != nil {
		rt.IsActive = *fields.IsActive
	}

	sample := occurrenceDraft(rt, rt.StartDate)
	if err := validateDraft(&sample); err != nil {
		return nil, err
	}

	if err := s.db.Save(rt).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rt, nil
}

// SetActive toggles a template without touching its schedule state. A
// reactivated template resumes from its last created date, so paused spans
// are generated on the next tick.
func (s *recurringService) SetActive(id string, active bool) (*models.RecurringTransaction, error) {
	rt, err := s.GetRecurringByID(id)
	if err != nil {
		return nil, err
	}
	rt.IsActive = active
	if err := s.db.Save(rt).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rt, nil
}

// DeleteRecurring removes a template that never generated a transaction.
// Templates with materialized history are deactivated instead so the
// generated transactions keep a valid reference.
func (s *recurringService) DeleteRecurring(id string) (bool, error) {
	rt, err := s.GetRecurringByID(id)
	if err != nil {
		return false, err
	}

	var count int64
	if err := s.db.Model(&models.Transaction{}).Where("recurring_id = ?", id).Count(&count).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	if count > 0 {
		rt.IsActive = false
		if err := s.db.Save(rt).Error; err != nil {
			return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return true, nil
	}

	if err := s.db.Delete(rt).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return false, nil
}

// nextOccurrence returns the first occurrence of the template strictly after
// its last created date, or the start date when nothing was generated yet.
// Occurrences are always stepped from the start date so day-of-month
// clamping never drifts.
func nextOccurrence(rt *models.RecurringTransaction) (time.Time, int) {
	if rt.LastCreatedDate == nil {
		return rt.StartDate, 0
	}
	last := period.Date(*rt.LastCreatedDate)
	n := 1
	for {
		due := period.Step(rt.StartDate, rt.Frequency, n)
		if due.After(last) {
			return due, n
		}
		n++
	}
}

// Process materializes every due occurrence of one template up to today,
// oldest first. Each occurrence and the advance of the last created date
// commit in one database transaction, so a crash between them cannot leave
// an occurrence behind to be materialized twice. A failed occurrence is
// retried on the next tick and the tick is idempotent: running it twice
// creates nothing the second time.
func (s *recurringService) Process(id string, today time.Time) (*TickResult, error) {
	mu := s.tickMu(id)
	mu.Lock()
	defer mu.Unlock()

	rt, err := s.GetRecurringByID(id)
	if err != nil {
		return nil, err
	}
	if !rt.IsActive {
		return nil, apperrors.ErrRecurringInactive
	}

	todayDate := period.Date(today)
	result := &TickResult{RecurringID: rt.ID, LastCreatedDate: rt.LastCreatedDate}

	due, n := nextOccurrence(rt)
	for !due.After(todayDate) {
		if rt.EndDate != nil && due.After(*rt.EndDate) {
			break
		}

		created := due
		_, err := s.ledger.ApplyAndRecord(occurrenceDraft(rt, due), func(tx *gorm.DB) error {
			res := tx.Model(&models.RecurringTransaction{}).
				Where("id = ?", rt.ID).
				Update("last_created_date", created)
			if res.Error != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, res.Error)
			}
			return nil
		})
		if err != nil {
			failed := due
			result.FailedDate = &failed
			result.Error = err.Error()
			logger.Get().Warnw("recurring occurrence failed",
				"recurring_id", rt.ID, "due", due.Format("2006-01-02"), "error", err)
			break
		}

		rt.LastCreatedDate = &created
		result.Created++
		result.LastCreatedDate = &created

		n++
		due = period.Step(rt.StartDate, rt.Frequency, n)
	}

	return result, nil
}

// ProcessAll ticks every active template. Templates are processed
// concurrently with a bounded worker pool; a failure in one template is
// reported in its TickResult and never aborts the batch.
func (s *recurringService) ProcessAll(today time.Time) ([]TickResult, error) {
	templates, err := s.GetRecurring(true)
	if err != nil {
		return nil, err
	}

	results := make([]TickResult, len(templates))
	var g errgroup.Group
	g.SetLimit(processAllWorkers)

	for i, rt := range templates {
		i, rt := i, rt
		g.Go(func() error {
			res, err := s.Process(rt.ID, today)
			if err != nil {
				results[i] = TickResult{RecurringID: rt.ID, Error: err.Error()}
				return nil
			}
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()

	return results, nil
}

// Preview lists the occurrence dates the template would generate over the
// coming months without writing anything.
func (s *recurringService) Preview(id string, monthsAhead int) ([]time.Time, error) {
	if monthsAhead <= 0 {
		monthsAhead = 3
	}

	rt, err := s.GetRecurringByID(id)
	if err != nil {
		return nil, err
	}

	horizon := period.Date(time.Now().UTC()).AddDate(0, monthsAhead, 0)
	dates := []time.Time{}

	due, n := nextOccurrence(rt)
	for !due.After(horizon) {
		if rt.EndDate != nil && due.After(*rt.EndDate) {
			break
		}
		dates = append(dates, due)
		n++
		due = period.Step(rt.StartDate, rt.Frequency, n)
	}
	return dates, nil
}
