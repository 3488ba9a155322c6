package services

import (
	"strings"

	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/pagination"
)

// searchService is the read-only query layer over the transaction log. It
// never mutates; the aggregation engines and the UI both go through it.
type searchService struct {
	db *gorm.DB
}

// NewSearchService creates a new SearchServicer.
func NewSearchService(db *gorm.DB) SearchServicer {
	return &searchService{db: db}
}

// applyFilter composes the WHERE clause for a search. Every non-empty filter
// group is ANDed; the text query matches description, notes, category name,
// and either account name, case-insensitively.
func applyFilter(q *gorm.DB, f SearchFilter) *gorm.DB {
	q = q.Joins("LEFT JOIN categories cat ON cat.id = transactions.category_id").
		Joins("LEFT JOIN accounts acc_from ON acc_from.id = transactions.account_from_id").
		Joins("LEFT JOIN accounts acc_to ON acc_to.id = transactions.account_to_id")

	if f.Query != "" {
		needle := "%" + strings.ToLower(f.Query) + "%"
		q = q.Where(
			"LOWER(transactions.description) LIKE ? OR LOWER(transactions.notes) LIKE ? OR LOWER(cat.name) LIKE ? OR LOWER(acc_from.name) LIKE ? OR LOWER(acc_to.name) LIKE ?",
			needle, needle, needle, needle, needle,
		)
	}
	if f.StartDate != nil {
		q = q.Where("transactions.date >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("transactions.date <= ?", *f.EndDate)
	}
	if f.MinAmount != nil {
		q = q.Where("transactions.amount >= ?", *f.MinAmount)
	}
	if f.MaxAmount != nil {
		q = q.Where("transactions.amount <= ?", *f.MaxAmount)
	}
	if len(f.AccountIDs) > 0 {
		q = q.Where("transactions.account_from_id IN ? OR transactions.account_to_id IN ?", f.AccountIDs, f.AccountIDs)
	}
	if len(f.CategoryIDs) > 0 {
		q = q.Where("transactions.category_id IN ? OR transactions.subcategory_id IN ?", f.CategoryIDs, f.CategoryIDs)
	}
	if len(f.Types) > 0 {
		q = q.Where("transactions.type IN ?", f.Types)
	}
	if len(f.TagIDs) > 0 {
		q = q.Where("EXISTS (SELECT 1 FROM transaction_tags tt WHERE tt.transaction_id = transactions.id AND tt.tag_id IN ?)", f.TagIDs)
	}
	return q
}

// Search returns transactions matching the filter ordered by date descending
// with id descending as the tie-breaker, plus the pre-pagination total.
func (s *searchService) Search(filter SearchFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error) {
	page.Defaults()

	base := applyFilter(s.db.Model(&models.Transaction{}), filter)

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.Transaction
	if err := base.Session(&gorm.Session{}).
		Preload("Tags").
		Scopes(pagination.Paginate(page)).
		Order("transactions.date DESC").Order("transactions.id DESC").
		Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Limit, page.Offset, total)
	return &result, nil
}
