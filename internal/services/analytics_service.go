package services

import (
	"math"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/period"
)

const (
	// dashboardDays is the trailing window the dashboard aggregates over.
	dashboardDays = 30
	// breakdownLimit caps the category breakdown slices.
	breakdownLimit = 5
	// topExpensesDefault and topExpensesMax bound the top-expenses listing.
	topExpensesDefault = 10
	topExpensesMax     = 50
)

type analyticsService struct {
	db *gorm.DB
}

// NewAnalyticsService creates a new AnalyticsServicer.
func NewAnalyticsService(db *gorm.DB) AnalyticsServicer {
	return &analyticsService{db: db}
}

// rootCategoryID extracts the top-level ancestor from a stored category path.
// Paths are id chains of the form "rootID/.../selfID/".
func rootCategoryID(path string) string {
	if i := strings.IndexByte(path, '/'); i > 0 {
		return path[:i]
	}
	return path
}

// Dashboard aggregates effective ledger activity over the trailing 30 days
// ending at ref: income and expense totals, the net between them, the sum of
// active account balances, a per-day expense series, and the top expense
// categories rolled up to their top-level ancestor.
func (s *analyticsService) Dashboard(ref time.Time) (*DashboardStats, error) {
	end := period.Date(ref).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -dashboardDays)

	var transactions []models.Transaction
	err := s.db.
		Where("type IN ?", []models.TransactionType{models.TransactionTypeIncome, models.TransactionTypeExpense}).
		Where("is_planned = ?", false).
		Where("date >= ? AND date < ?", start, end).
		Find(&transactions).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	stats := &DashboardStats{
		DailyExpenses:     []DailyExpenseItem{},
		CategoryBreakdown: []CategoryBreakdownItem{},
	}

	daily := make(map[string]int64)
	byCategory := make(map[string]int64)
	for _, t := range transactions {
		switch t.Type {
		case models.TransactionTypeIncome:
			stats.TotalIncome += t.Amount
		case models.TransactionTypeExpense:
			stats.TotalExpense += t.Amount
			daily[t.Date.Format("2006-01-02")] += t.Amount
			if t.CategoryID != nil {
				byCategory[*t.CategoryID] += t.Amount
			}
		}
	}
	stats.NetBalance = stats.TotalIncome - stats.TotalExpense

	err = s.db.Model(&models.Account{}).
		Where("is_active = ?", true).
		Select("COALESCE(SUM(current_balance), 0)").
		Scan(&stats.TotalBalance).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		stats.DailyExpenses = append(stats.DailyExpenses, DailyExpenseItem{Date: key, Amount: daily[key]})
	}

	breakdown, err := s.rollupToRoots(byCategory)
	if err != nil {
		return nil, err
	}
	stats.CategoryBreakdown = breakdown

	return stats, nil
}

// rollupToRoots merges per-category expense totals into their top-level
// ancestors and returns the largest slices, biggest first.
func (s *analyticsService) rollupToRoots(byCategory map[string]int64) ([]CategoryBreakdownItem, error) {
	if len(byCategory) == 0 {
		return []CategoryBreakdownItem{}, nil
	}

	ids := make([]string, 0, len(byCategory))
	for id := range byCategory {
		ids = append(ids, id)
	}
	var categories []models.Category
	if err := s.db.Where("id IN ?", ids).Find(&categories).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	rootTotals := make(map[string]int64)
	for _, c := range categories {
		rootTotals[rootCategoryID(c.Path)] += byCategory[c.ID]
	}

	rootIDs := make([]string, 0, len(rootTotals))
	for id := range rootTotals {
		rootIDs = append(rootIDs, id)
	}
	var roots []models.Category
	if err := s.db.Where("id IN ?", rootIDs).Find(&roots).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	items := make([]CategoryBreakdownItem, 0, len(roots))
	for _, root := range roots {
		items = append(items, CategoryBreakdownItem{
			CategoryName: root.Name,
			Amount:       rootTotals[root.ID],
			Color:        root.Color,
			Icon:         root.Icon,
		})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Amount != items[j].Amount {
			return items[i].Amount > items[j].Amount
		}
		return items[i].CategoryName < items[j].CategoryName
	})
	if len(items) > breakdownLimit {
		items = items[:breakdownLimit]
	}
	return items, nil
}

// Trends buckets effective income and expense activity of the trailing
// months into daily, weekly, or monthly points, oldest first.
func (s *analyticsService) Trends(p period.Period, months int, ref time.Time) ([]TrendPoint, error) {
	if !p.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid trend period")
	}
	if months <= 0 {
		months = 6
	}

	end := period.Date(ref).AddDate(0, 0, 1)
	start := period.Date(ref).AddDate(0, -months, 0)

	var transactions []models.Transaction
	err := s.db.
		Where("type IN ?", []models.TransactionType{models.TransactionTypeIncome, models.TransactionTypeExpense}).
		Where("is_planned = ?", false).
		Where("date >= ? AND date < ?", start, end).
		Find(&transactions).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	buckets := make(map[string]*TrendPoint)
	for _, t := range transactions {
		key := period.BucketKey(t.Date, p)
		point, ok := buckets[key]
		if !ok {
			point = &TrendPoint{Period: key}
			buckets[key] = point
		}
		switch t.Type {
		case models.TransactionTypeIncome:
			point.Income += t.Amount
		case models.TransactionTypeExpense:
			point.Expenses += t.Amount
		}
		point.TransactionCount++
	}

	points := make([]TrendPoint, 0, len(buckets))
	for _, point := range buckets {
		points = append(points, *point)
	}
	// Bucket keys are zero-padded, so lexicographic order is chronological.
	sort.Slice(points, func(i, j int) bool { return points[i].Period < points[j].Period })
	return points, nil
}

// Forecast projects recurring income and expenses per calendar month from
// the active templates, starting with the month containing ref.
func (s *analyticsService) Forecast(monthsAhead int, ref time.Time) ([]ForecastPoint, error) {
	if monthsAhead <= 0 {
		monthsAhead = 3
	}

	var templates []models.RecurringTransaction
	if err := s.db.Where("is_active = ?", true).Find(&templates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	refDate := period.Date(ref)
	firstMonth := time.Date(refDate.Year(), refDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	horizon := firstMonth.AddDate(0, monthsAhead, 0)

	points := make([]ForecastPoint, monthsAhead)
	for i := range points {
		points[i].Month = firstMonth.AddDate(0, i, 0).Format("2006-01")
	}

	for _, rt := range templates {
		for n := 0; ; n++ {
			due := period.Step(rt.StartDate, rt.Frequency, n)
			if !due.Before(horizon) {
				break
			}
			if rt.EndDate != nil && due.After(*rt.EndDate) {
				break
			}
			if due.Before(firstMonth) {
				continue
			}
			idx := (due.Year()-firstMonth.Year())*12 + int(due.Month()-firstMonth.Month())
			switch rt.Type {
			case models.TransactionTypeIncome:
				points[idx].Income += rt.Amount
			case models.TransactionTypeExpense:
				points[idx].Expense += rt.Amount
			}
		}
	}

	for i := range points {
		points[i].Net = points[i].Income - points[i].Expense
	}
	return points, nil
}

// MonthlyComparison reports income against expenses for each of the trailing
// calendar months up to and including the month of ref, newest first. The
// savings rate is net over income as a percentage rounded to one decimal;
// a month without income reports zero rather than dividing by it.
func (s *analyticsService) MonthlyComparison(months int, ref time.Time) ([]MonthlyComparisonPoint, error) {
	if months <= 0 {
		months = 6
	}

	refDate := period.Date(ref)
	currentMonth := time.Date(refDate.Year(), refDate.Month(), 1, 0, 0, 0, 0, time.UTC)
	start := currentMonth.AddDate(0, -(months - 1), 0)
	end := currentMonth.AddDate(0, 1, 0)

	var transactions []models.Transaction
	err := s.db.
		Where("type IN ?", []models.TransactionType{models.TransactionTypeIncome, models.TransactionTypeExpense}).
		Where("is_planned = ?", false).
		Where("date >= ? AND date < ?", start, end).
		Find(&transactions).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	byMonth := make(map[string]*MonthlyComparisonPoint, months)
	points := make([]MonthlyComparisonPoint, 0, months)
	for i := months - 1; i >= 0; i-- {
		key := currentMonth.AddDate(0, -i, 0).Format("2006-01")
		points = append(points, MonthlyComparisonPoint{Month: key})
	}
	for i := range points {
		byMonth[points[i].Month] = &points[i]
	}

	for _, t := range transactions {
		point := byMonth[t.Date.Format("2006-01")]
		if point == nil {
			continue
		}
		switch t.Type {
		case models.TransactionTypeIncome:
			point.Income += t.Amount
		case models.TransactionTypeExpense:
			point.Expenses += t.Amount
		}
	}

	for i := range points {
		points[i].Net = points[i].Income - points[i].Expenses
		if points[i].Income > 0 {
			rate := float64(points[i].Net) / float64(points[i].Income) * 100
			points[i].SavingsRate = math.Round(rate*10) / 10
		}
	}

	// Newest first.
	sort.Slice(points, func(i, j int) bool { return points[i].Month > points[j].Month })
	return points, nil
}

// TopExpenses returns the largest effective expenses of the trailing days
// ending at ref, biggest first, with category and source account resolved
// for display.
func (s *analyticsService) TopExpenses(limit, days int, ref time.Time) ([]TopExpenseItem, error) {
	if limit <= 0 {
		limit = topExpensesDefault
	}
	if limit > topExpensesMax {
		limit = topExpensesMax
	}
	if days <= 0 {
		days = dashboardDays
	}

	end := period.Date(ref).AddDate(0, 0, 1)
	start := end.AddDate(0, 0, -days)

	var transactions []models.Transaction
	err := s.db.
		Where("type = ?", models.TransactionTypeExpense).
		Where("is_planned = ?", false).
		Where("date >= ? AND date < ?", start, end).
		Order("amount DESC").Order("date DESC").
		Limit(limit).
		Find(&transactions).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	categories, accounts, err := s.resolveNames(transactions)
	if err != nil {
		return nil, err
	}

	items := make([]TopExpenseItem, 0, len(transactions))
	for _, t := range transactions {
		item := TopExpenseItem{
			TransactionID: t.ID,
			Date:          t.Date.Format("2006-01-02"),
			Amount:        t.Amount,
			Description:   t.Description,
		}
		if t.CategoryID != nil {
			if c, ok := categories[*t.CategoryID]; ok {
				item.CategoryName = c.Name
				item.CategoryIcon = c.Icon
				item.CategoryColor = c.Color
			}
		}
		if t.AccountFromID != nil {
			if a, ok := accounts[*t.AccountFromID]; ok {
				item.AccountName = a.Name
			}
		}
		items = append(items, item)
	}
	return items, nil
}

// resolveNames batch-loads the categories and source accounts referenced by
// the transactions.
func (s *analyticsService) resolveNames(transactions []models.Transaction) (map[string]models.Category, map[string]models.Account, error) {
	categoryIDs := make([]string, 0, len(transactions))
	accountIDs := make([]string, 0, len(transactions))
	for _, t := range transactions {
		if t.CategoryID != nil {
			categoryIDs = append(categoryIDs, *t.CategoryID)
		}
		if t.AccountFromID != nil {
			accountIDs = append(accountIDs, *t.AccountFromID)
		}
	}

	categories := make(map[string]models.Category)
	if len(categoryIDs) > 0 {
		var rows []models.Category
		if err := s.db.Where("id IN ?", categoryIDs).Find(&rows).Error; err != nil {
			return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, c := range rows {
			categories[c.ID] = c
		}
	}
	accounts := make(map[string]models.Account)
	if len(accountIDs) > 0 {
		var rows []models.Account
		if err := s.db.Where("id IN ?", accountIDs).Find(&rows).Error; err != nil {
			return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		for _, a := range rows {
			accounts[a.ID] = a
		}
	}
	return categories, accounts, nil
}

// Heatmap aggregates effective expenses per calendar day of one month. Each
// day's intensity is its share of the busiest day, 0-100, so a client can
// shade a calendar without knowing the amounts' scale.
func (s *analyticsService) Heatmap(year, month int) (*ExpenseHeatmap, error) {
	if month < 1 || month > 12 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "month must be between 1 and 12")
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var transactions []models.Transaction
	err := s.db.
		Where("type = ?", models.TransactionTypeExpense).
		Where("is_planned = ?", false).
		Where("date >= ? AND date < ?", start, end).
		Find(&transactions).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	daily := make(map[string]int64)
	heatmap := &ExpenseHeatmap{Year: year, Month: month, Days: []HeatmapDay{}}
	for _, t := range transactions {
		daily[t.Date.Format("2006-01-02")] += t.Amount
		heatmap.Total += t.Amount
	}
	for _, amount := range daily {
		if amount > heatmap.MaxAmount {
			heatmap.MaxAmount = amount
		}
	}

	for day := start; day.Before(end); day = day.AddDate(0, 0, 1) {
		key := day.Format("2006-01-02")
		entry := HeatmapDay{Date: key, Amount: daily[key]}
		if heatmap.MaxAmount > 0 {
			entry.Intensity = int(entry.Amount * 100 / heatmap.MaxAmount)
		}
		heatmap.Days = append(heatmap.Days, entry)
	}
	return heatmap, nil
}
