package services

import (
	"time"

	"gorm.io/gorm"

	"finledger/internal/models"
	"finledger/internal/pagination"
	"finledger/internal/period"
)

// AccountUpdateFields holds optional fields for updating an account.
// Balance-affecting fields are deliberately absent: CurrentBalance only moves
// through the ledger service and Currency is fixed at creation.
type AccountUpdateFields struct {
	Name        *string
	Color       *string
	Icon        *string
	IsActive    *bool
	CreditLimit *int64
}

// AccountServicer defines the contract for account-related business logic.
type AccountServicer interface {
	CreateAccount(name string, accountType models.AccountType, initialBalance int64, creditLimit *int64, currency, color, icon string) (*models.Account, error)
	GetAccounts(includeInactive bool, page pagination.PageRequest) (*pagination.PageResponse[models.Account], error)
	GetAccountByID(accountID string) (*models.Account, error)
	UpdateAccount(accountID string, fields AccountUpdateFields) (*models.Account, error)
	// DeleteAccount removes an account with zero balance and no transactions.
	// Accounts with history are protected: deletion fails with ACCOUNT_IN_USE
	// and the caller deactivates explicitly via UpdateAccount instead.
	DeleteAccount(accountID string) error
}

// CategoryServicer defines the contract for category-related business logic.
type CategoryServicer interface {
	CreateCategory(name string, categoryType models.CategoryType, parentID *string, icon, color string) (*models.Category, error)
	GetCategories(categoryType *models.CategoryType, includeInactive bool) ([]models.Category, error)
	GetCategoryByID(categoryID string) (*models.Category, error)
	UpdateCategory(categoryID string, name, icon, color *string, parentID *string, isActive *bool) (*models.Category, error)
	DeleteCategory(categoryID string) error
	// SubtreeIDs returns the ids of the category and all its descendants,
	// resolved by a prefix match on the stored path.
	SubtreeIDs(categoryID string) ([]string, error)
}

// TagServicer defines the contract for tag-related business logic.
type TagServicer interface {
	CreateTag(name, color string) (*models.Tag, error)
	GetTags() ([]models.Tag, error)
	UpdateTag(tagID string, name, color *string) (*models.Tag, error)
	DeleteTag(tagID string) error
}

// TransactionDraft carries the caller-supplied fields of a transaction.
// Amount is a positive magnitude in minor units of the involved accounts'
// currency; direction follows from the type and the account references.
type TransactionDraft struct {
	Date          time.Time
	Type          models.TransactionType
	Amount        int64
	AccountFromID *string
	AccountToID   *string
	CategoryID    *string
	SubcategoryID *string
	Description   string
	Notes         string
	TagIDs        []string
	IsPlanned     bool
	IsRecurring   bool
	RecurringID   *string
}

// AdjustmentResult reports the outcome of a balance adjustment. Transaction
// is nil when the difference was zero and no correction was recorded.
type AdjustmentResult struct {
	OldBalance  int64               `json:"old_balance"`
	NewBalance  int64               `json:"new_balance"`
	Difference  int64               `json:"difference"`
	Transaction *models.Transaction `json:"transaction,omitempty"`
}

// LedgerServicer is the balance engine: the only writer of account balances.
// Every mutating call is atomic over the full set of accounts it touches.
type LedgerServicer interface {
	Apply(draft TransactionDraft) (*models.Transaction, error)
	// ApplyAndRecord additionally runs record inside the commit's database
	// transaction, for callers whose own bookkeeping must move with it.
	ApplyAndRecord(draft TransactionDraft, record func(tx *gorm.DB) error) (*models.Transaction, error)
	Retract(transactionID string) error
	// Update retracts the old effect and applies the new draft as one atomic
	// unit; if the new draft is rejected the old effect stays in place.
	Update(transactionID string, draft TransactionDraft) (*models.Transaction, error)
	AdjustBalance(accountID string, newBalance int64, description string) (*AdjustmentResult, error)
	// Realize flips a planned transaction into an effective one.
	Realize(transactionID string) (*models.Transaction, error)
	GetTransactionByID(transactionID string) (*models.Transaction, error)
	GetTransactions(page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
	// VerifyBalances recomputes every account balance from the log and fails
	// with INVARIANT_VIOLATION on any divergence.
	VerifyBalances() error
	// Subscribe registers a callback invoked after every committed mutation
	// with the ids of the accounts whose balance changed.
	Subscribe(fn func(accountIDs []string))
}

// SearchFilter combines free text with structured predicates; all non-empty
// groups are ANDed together.
type SearchFilter struct {
	Query       string
	StartDate   *time.Time
	EndDate     *time.Time
	MinAmount   *int64
	MaxAmount   *int64
	AccountIDs  []string
	CategoryIDs []string
	TagIDs      []string
	Types       []models.TransactionType
}

// SearchServicer is the read-only query layer over the transaction log.
type SearchServicer interface {
	// Search returns matches ordered by date descending, id descending, with
	// the pre-pagination total.
	Search(filter SearchFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Transaction], error)
}

// ImportResult reports a bulk import: rows that landed and, per failed row,
// why it was skipped.
type ImportResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors,omitempty"`
}

// ExportServicer moves transaction data in and out in bulk. Exports render
// the matches of a search filter for download; the full result set is
// exported, pagination never applies. Imports accept the same row shape back,
// resolving accounts, categories and tags by name.
type ExportServicer interface {
	ExportCSV(filter SearchFilter) ([]byte, error)
	ExportJSON(filter SearchFilter) ([]byte, error)
	// ImportCSV ingests rows exported by ExportCSV. Rows naming an unknown
	// account are skipped and reported; categories and tags are created on
	// first use.
	ImportCSV(data []byte) (*ImportResult, error)
	ImportJSON(data []byte) (*ImportResult, error)
}

// BudgetServicer defines the contract for budget-related business logic.
type BudgetServicer interface {
	CreateBudget(name, categoryID string, amount int64, p period.Period, startDate time.Time, endDate *time.Time) (*models.Budget, error)
	GetBudgets(includeInactive bool) ([]models.Budget, error)
	GetBudgetByID(budgetID string) (*models.Budget, error)
	UpdateBudget(budgetID string, name *string, amount *int64, isActive *bool, endDate *time.Time) (*models.Budget, error)
	DeleteBudget(budgetID string) error
	// Progress derives spending for the window containing ref.
	Progress(budgetID string, ref time.Time) (*models.BudgetProgress, error)
}

// GoalServicer defines the contract for savings-goal business logic.
type GoalServicer interface {
	CreateGoal(name string, targetAmount int64, targetDate *time.Time, accountID *string, notes string) (*models.SavingsGoal, error)
	GetGoals(includeAchieved bool) ([]models.SavingsGoal, error)
	GetGoalByID(goalID string) (*models.SavingsGoal, error)
	UpdateGoal(goalID string, name *string, targetAmount *int64, targetDate *time.Time, notes *string) (*models.SavingsGoal, error)
	DeleteGoal(goalID string) error
	// Contribute adds an explicit manual contribution to an unlinked goal.
	// Linked goals track their account's recorded activity and reject it.
	Contribute(goalID string, amount int64) (*models.SavingsGoal, error)
	// Refresh recomputes a linked goal's CurrentAmount from the transaction
	// log and latches achievement.
	Refresh(goalID string) (*models.SavingsGoal, error)
	// RefreshForAccounts refreshes every goal linked to one of the accounts.
	RefreshForAccounts(accountIDs []string)
}

// TickResult reports one recurrence tick for a single template.
type TickResult struct {
	RecurringID     string     `json:"recurring_id"`
	Created         int        `json:"created"`
	LastCreatedDate *time.Time `json:"last_created_date,omitempty"`
	FailedDate      *time.Time `json:"failed_date,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// RecurringServicer defines the contract for the recurrence scheduler.
type RecurringServicer interface {
	CreateRecurring(name string, t models.TransactionType, amount int64, accountFromID, accountToID, categoryID *string, freq period.Period, startDate time.Time, endDate *time.Time) (*models.RecurringTransaction, error)
	GetRecurring(activeOnly bool) ([]models.RecurringTransaction, error)
	GetRecurringByID(id string) (*models.RecurringTransaction, error)
	UpdateRecurring(id string, fields RecurringUpdateFields) (*models.RecurringTransaction, error)
	SetActive(id string, active bool) (*models.RecurringTransaction, error)
	// DeleteRecurring removes a template with no materialized transactions;
	// templates with history are deactivated instead.
	DeleteRecurring(id string) (deactivated bool, err error)
	// Process materializes every due occurrence up to today, oldest first.
	Process(id string, today time.Time) (*TickResult, error)
	// ProcessAll ticks every active template; per-template failures never
	// abort the batch.
	ProcessAll(today time.Time) ([]TickResult, error)
	Preview(id string, monthsAhead int) ([]time.Time, error)
}

// RecurringUpdateFields holds optional fields for updating a template.
type RecurringUpdateFields struct {
	Name          *string
	Type          *models.TransactionType
	Amount        *int64
	AccountFromID *string
	AccountToID   *string
	CategoryID    *string
	Frequency     *period.Period
	EndDate       *time.Time
	IsActive      *bool
}

// DailyExpenseItem is one point of the dashboard daily series.
type DailyExpenseItem struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
}

// CategoryBreakdownItem is one slice of the dashboard expense breakdown,
// grouped by top-level category.
type CategoryBreakdownItem struct {
	CategoryName string `json:"category_name"`
	Amount       int64  `json:"amount"`
	Color        string `json:"color,omitempty"`
	Icon         string `json:"icon,omitempty"`
}

// DashboardStats aggregates ledger state over a trailing window.
type DashboardStats struct {
	TotalIncome       int64                   `json:"total_income"`
	TotalExpense      int64                   `json:"total_expense"`
	NetBalance        int64                   `json:"net_balance"`
	TotalBalance      int64                   `json:"total_balance"`
	DailyExpenses     []DailyExpenseItem      `json:"daily_expenses"`
	CategoryBreakdown []CategoryBreakdownItem `json:"category_breakdown"`
}

// TrendPoint is one bucket of a trend series.
type TrendPoint struct {
	Period           string `json:"period"`
	Income           int64  `json:"income"`
	Expenses         int64  `json:"expenses"`
	TransactionCount int    `json:"transaction_count"`
}

// ForecastPoint projects one month of recurring income and expenses.
type ForecastPoint struct {
	Month   string `json:"month"`
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
	Net     int64  `json:"net"`
}

// MonthlyComparisonPoint is one month of the income-versus-expense
// comparison. SavingsRate is net over income as a percentage, rounded to one
// decimal, zero when the month had no income.
type MonthlyComparisonPoint struct {
	Month       string  `json:"month"`
	Income      int64   `json:"income"`
	Expenses    int64   `json:"expenses"`
	Net         int64   `json:"net"`
	SavingsRate float64 `json:"savings_rate"`
}

// TopExpenseItem is one of the largest expenses of a trailing window, with
// its category and source account resolved for display.
type TopExpenseItem struct {
	TransactionID string `json:"transaction_id"`
	Date          string `json:"date"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
	CategoryName  string `json:"category_name,omitempty"`
	CategoryIcon  string `json:"category_icon,omitempty"`
	CategoryColor string `json:"category_color,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
}

// HeatmapDay is one calendar day of the expense heatmap. Intensity is the
// day's share of the month's busiest day, 0-100.
type HeatmapDay struct {
	Date      string `json:"date"`
	Amount    int64  `json:"amount"`
	Intensity int    `json:"intensity"`
}

// ExpenseHeatmap is the per-day expense distribution of one month.
type ExpenseHeatmap struct {
	Year      int          `json:"year"`
	Month     int          `json:"month"`
	Days      []HeatmapDay `json:"days"`
	MaxAmount int64        `json:"max_amount"`
	Total     int64        `json:"total"`
}

// AnalyticsServicer computes read-only aggregates from the ledger store.
type AnalyticsServicer interface {
	Dashboard(ref time.Time) (*DashboardStats, error)
	Trends(p period.Period, months int, ref time.Time) ([]TrendPoint, error)
	Forecast(monthsAhead int, ref time.Time) ([]ForecastPoint, error)
	// MonthlyComparison reports per-month income, expenses, net and savings
	// rate for the trailing months, newest first. Transfers and corrections
	// move money between views of the same wealth and are excluded.
	MonthlyComparison(months int, ref time.Time) ([]MonthlyComparisonPoint, error)
	// TopExpenses lists the largest effective expenses of the trailing days.
	TopExpenses(limit, days int, ref time.Time) ([]TopExpenseItem, error)
	Heatmap(year, month int) (*ExpenseHeatmap, error)
}
