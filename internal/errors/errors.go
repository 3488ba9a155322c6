// Package errors provides custom error types for the finledger API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}

	// ErrConcurrencyConflict is surfaced after internal retries are exhausted.
	// Callers may retry the whole request.
	ErrConcurrencyConflict = &AppError{Code: "CONCURRENCY_CONFLICT", Message: "The operation conflicted with a concurrent update, please retry", StatusCode: http.StatusConflict}

	// ErrInvariantViolation means a stored balance and the transaction log
	// disagree. It is never swallowed: it indicates a bug, not bad input.
	ErrInvariantViolation = &AppError{Code: "INVARIANT_VIOLATION", Message: "Ledger invariant violated", StatusCode: http.StatusInternalServerError}
)

// Account errors.
var (
	ErrAccountNotFound     = &AppError{Code: "ACCOUNT_NOT_FOUND", Message: "Account not found", StatusCode: http.StatusNotFound}
	ErrAccountInactive     = &AppError{Code: "ACCOUNT_INACTIVE", Message: "Account is inactive", StatusCode: http.StatusBadRequest}
	ErrAccountInUse        = &AppError{Code: "ACCOUNT_IN_USE", Message: "Account has transactions and can only be deactivated", StatusCode: http.StatusConflict}
	ErrNonZeroBalance      = &AppError{Code: "NON_ZERO_BALANCE", Message: "Account balance must be zero before deletion", StatusCode: http.StatusBadRequest}
	ErrCurrencyMismatch    = &AppError{Code: "CURRENCY_MISMATCH", Message: "Transfer accounts must share a currency", StatusCode: http.StatusBadRequest}
	ErrInvalidCurrency     = &AppError{Code: "INVALID_CURRENCY", Message: "Unknown ISO 4217 currency code", StatusCode: http.StatusBadRequest}
	ErrSameAccountTransfer = &AppError{Code: "SAME_ACCOUNT_TRANSFER", Message: "Cannot transfer to the same account", StatusCode: http.StatusBadRequest}
)

// Category errors.
var (
	ErrCategoryNotFound    = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Category not found", StatusCode: http.StatusNotFound}
	ErrCategoryInactive    = &AppError{Code: "CATEGORY_INACTIVE", Message: "Category is inactive", StatusCode: http.StatusBadRequest}
	ErrCategoryInUse       = &AppError{Code: "CATEGORY_IN_USE", Message: "Category is used by existing transactions", StatusCode: http.StatusConflict}
	ErrCategoryHasChildren = &AppError{Code: "CATEGORY_HAS_CHILDREN", Message: "Category has child categories", StatusCode: http.StatusConflict}
	ErrCategoryCycle       = &AppError{Code: "CATEGORY_CYCLE", Message: "Category cannot be its own ancestor", StatusCode: http.StatusBadRequest}
)

// Tag errors.
var (
	ErrTagNotFound  = &AppError{Code: "TAG_NOT_FOUND", Message: "Tag not found", StatusCode: http.StatusNotFound}
	ErrTagInUse     = &AppError{Code: "TAG_IN_USE", Message: "Tag is used by existing transactions", StatusCode: http.StatusConflict}
	ErrDuplicateTag = &AppError{Code: "DUPLICATE_TAG", Message: "A tag with this name already exists", StatusCode: http.StatusConflict}
)

// Transaction errors.
var (
	ErrTransactionNotFound    = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Transaction not found", StatusCode: http.StatusNotFound}
	ErrInvalidTransactionType = &AppError{Code: "INVALID_TRANSACTION_TYPE", Message: "Unsupported transaction type", StatusCode: http.StatusBadRequest}
)

// Budget errors.
var (
	ErrBudgetNotFound = &AppError{Code: "BUDGET_NOT_FOUND", Message: "Budget not found", StatusCode: http.StatusNotFound}
	ErrBudgetExpired  = &AppError{Code: "BUDGET_EXPIRED", Message: "Budget has no window containing the reference date", StatusCode: http.StatusBadRequest}
)

// Savings goal errors.
var (
	ErrGoalNotFound = &AppError{Code: "GOAL_NOT_FOUND", Message: "Savings goal not found", StatusCode: http.StatusNotFound}
)

// Recurring transaction errors.
var (
	ErrRecurringNotFound = &AppError{Code: "RECURRING_NOT_FOUND", Message: "Recurring transaction not found", StatusCode: http.StatusNotFound}
	ErrRecurringInactive = &AppError{Code: "RECURRING_INACTIVE", Message: "Recurring transaction is inactive", StatusCode: http.StatusBadRequest}
)
