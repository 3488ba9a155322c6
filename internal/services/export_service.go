package services

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "finledger/internal/errors"
	"finledger/internal/models"
	"finledger/internal/money"
)

type exportService struct {
	db         *gorm.DB
	ledger     LedgerServicer
	categories CategoryServicer
	tags       TagServicer
}

// NewExportService creates a new ExportServicer. Imports replay rows through
// the ledger, so the service needs the same collaborators a caller recording
// transactions by hand would use.
func NewExportService(db *gorm.DB, ledger LedgerServicer, categories CategoryServicer, tags TagServicer) ExportServicer {
	return &exportService{db: db, ledger: ledger, categories: categories, tags: tags}
}

// matches loads every transaction matching the filter with the references
// needed to render names and currencies, in export order.
func (s *exportService) matches(filter SearchFilter) ([]models.Transaction, error) {
	var transactions []models.Transaction
	err := applyFilter(s.db.Model(&models.Transaction{}), filter).
		Preload("AccountFrom").Preload("AccountTo").
		Preload("Category").Preload("Subcategory").Preload("Tags").
		Order("transactions.date DESC").Order("transactions.id DESC").
		Find(&transactions).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return transactions, nil
}

// currency picks the display currency for a transaction from whichever
// account side is present.
func currency(t *models.Transaction) string {
	if t.AccountFrom != nil {
		return t.AccountFrom.Currency
	}
	if t.AccountTo != nil {
		return t.AccountTo.Currency
	}
	return ""
}

func accountName(a *models.Account) string {
	if a == nil {
		return ""
	}
	return a.Name
}

func categoryName(c *models.Category) string {
	if c == nil {
		return ""
	}
	return c.Name
}

// ExportCSV renders the matching transactions as CSV, newest first, with
// reference names instead of ids. The amount column is a plain decimal so
// the file round-trips through ImportCSV; the trailing display_amount adds
// the currency grammar for humans.
func (s *exportService) ExportCSV(filter SearchFilter) ([]byte, error) {
	transactions, err := s.matches(filter)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"date", "type", "amount", "currency", "account_from", "account_to", "category", "subcategory", "description", "notes", "tags", "planned", "display_amount"}
	if err := w.Write(header); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for i := range transactions {
		t := &transactions[i]
		cur := currency(t)

		tagNames := make([]string, 0, len(t.Tags))
		for _, tag := range t.Tags {
			tagNames = append(tagNames, tag.Name)
		}

		planned := ""
		if t.IsPlanned {
			planned = "yes"
		}

		row := []string{
			t.Date.Format("2006-01-02"),
			string(t.Type),
			money.Format(t.Amount, cur),
			cur,
			accountName(t.AccountFrom),
			accountName(t.AccountTo),
			categoryName(t.Category),
			categoryName(t.Subcategory),
			t.Description,
			t.Notes,
			strings.Join(tagNames, ";"),
			planned,
			money.Display(t.Amount, cur),
		}
		if err := w.Write(row); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return buf.Bytes(), nil
}

// exportedTransaction is the JSON export shape: flat, with names resolved
// and both raw minor units and a formatted amount.
type exportedTransaction struct {
	ID          string   `json:"id"`
	Date        string   `json:"date"`
	Type        string   `json:"type"`
	Amount      int64    `json:"amount"`
	Formatted   string   `json:"formatted_amount"`
	Currency    string   `json:"currency"`
	AccountFrom string   `json:"account_from,omitempty"`
	AccountTo   string   `json:"account_to,omitempty"`
	Category    string   `json:"category,omitempty"`
	Subcategory string   `json:"subcategory,omitempty"`
	Description string   `json:"description,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	IsPlanned   bool     `json:"is_planned,omitempty"`
}

// ExportJSON renders the matching transactions as a JSON array, newest first.
func (s *exportService) ExportJSON(filter SearchFilter) ([]byte, error) {
	transactions, err := s.matches(filter)
	if err != nil {
		return nil, err
	}

	exported := make([]exportedTransaction, 0, len(transactions))
	for i := range transactions {
		t := &transactions[i]
		cur := currency(t)

		var tagNames []string
		for _, tag := range t.Tags {
			tagNames = append(tagNames, tag.Name)
		}

		exported = append(exported, exportedTransaction{
			ID:          t.ID,
			Date:        t.Date.Format(time.RFC3339),
			Type:        string(t.Type),
			Amount:      t.Amount,
			Formatted:   money.Format(t.Amount, cur),
			Currency:    cur,
			AccountFrom: accountName(t.AccountFrom),
			AccountTo:   accountName(t.AccountTo),
			Category:    categoryName(t.Category),
			Subcategory: categoryName(t.Subcategory),
			Description: t.Description,
			Notes:       t.Notes,
			Tags:        tagNames,
			IsPlanned:   t.IsPlanned,
		})
	}

	data, err := json.MarshalIndent(exported, "", "  ")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return data, nil
}

// importRow is the common row shape of both import formats: names instead of
// ids, a decimal amount in the account's currency.
type importRow struct {
	Date        string   `json:"date"`
	Type        string   `json:"type"`
	Amount      string   `json:"amount"`
	AccountFrom string   `json:"account_from"`
	AccountTo   string   `json:"account_to"`
	Category    string   `json:"category"`
	Subcategory string   `json:"subcategory"`
	Description string   `json:"description"`
	Notes       string   `json:"notes"`
	Tags        []string `json:"tags"`
	Planned     bool     `json:"planned"`
}

// ImportCSV ingests a CSV in the ExportCSV layout. Columns are matched by
// header name, so extra columns like display_amount are tolerated.
func (s *exportService) ImportCSV(data []byte) (*ImportResult, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "malformed CSV: "+err.Error())
	}
	if len(records) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "import file has no header row")
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	rows := make([]importRow, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := importRow{
			Date:        field(rec, "date"),
			Type:        field(rec, "type"),
			Amount:      field(rec, "amount"),
			AccountFrom: field(rec, "account_from"),
			AccountTo:   field(rec, "account_to"),
			Category:    field(rec, "category"),
			Subcategory: field(rec, "subcategory"),
			Description: field(rec, "description"),
			Notes:       field(rec, "notes"),
		}
		if tags := field(rec, "tags"); tags != "" {
			for _, name := range strings.Split(tags, ";") {
				if name = strings.TrimSpace(name); name != "" {
					row.Tags = append(row.Tags, name)
				}
			}
		}
		planned := strings.ToLower(field(rec, "planned"))
		row.Planned = planned == "yes" || planned == "true"
		rows = append(rows, row)
	}
	return s.importRows(rows), nil
}

// ImportJSON ingests a JSON array of import rows.
func (s *exportService) ImportJSON(data []byte) (*ImportResult, error) {
	var rows []importRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "malformed JSON: "+err.Error())
	}
	return s.importRows(rows), nil
}

// importRows replays each row through the ledger. A bad row is reported and
// skipped; it never aborts the rest of the batch.
func (s *exportService) importRows(rows []importRow) *ImportResult {
	result := &ImportResult{}
	for i, row := range rows {
		if err := s.importOne(row); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row %d: %s", i+1, importErrorMessage(err)))
			continue
		}
		result.Imported++
	}
	return result
}

// importErrorMessage strips the wrapper noise from ledger errors so the
// per-row report stays readable.
func importErrorMessage(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func (s *exportService) importOne(row importRow) error {
	date, err := parseImportDate(row.Date)
	if err != nil {
		return err
	}

	draft := TransactionDraft{
		Date:        date,
		Type:        models.TransactionType(strings.ToLower(row.Type)),
		Description: row.Description,
		Notes:       row.Notes,
		IsPlanned:   row.Planned,
	}

	var cur string
	if row.AccountFrom != "" {
		account, err := s.accountByName(row.AccountFrom)
		if err != nil {
			return err
		}
		draft.AccountFromID = &account.ID
		cur = account.Currency
	}
	if row.AccountTo != "" {
		account, err := s.accountByName(row.AccountTo)
		if err != nil {
			return err
		}
		draft.AccountToID = &account.ID
		if cur == "" {
			cur = account.Currency
		}
	}
	if cur == "" {
		return fmt.Errorf("row references no account")
	}

	draft.Amount, err = money.Parse(row.Amount, cur)
	if err != nil {
		return err
	}

	// Transfers and corrections carry no category; for the rest, unknown
	// category names are created on first use so a file from another system
	// lands without manual setup.
	if row.Category != "" &&
		(draft.Type == models.TransactionTypeExpense || draft.Type == models.TransactionTypeIncome) {
		categoryType := models.CategoryTypeExpense
		if draft.Type == models.TransactionTypeIncome {
			categoryType = models.CategoryTypeIncome
		}
		category, err := s.categoryByName(row.Category, categoryType, nil)
		if err != nil {
			return err
		}
		draft.CategoryID = &category.ID

		if row.Subcategory != "" {
			sub, err := s.categoryByName(row.Subcategory, categoryType, &category.ID)
			if err != nil {
				return err
			}
			draft.SubcategoryID = &sub.ID
		}
	}

	for _, name := range row.Tags {
		tag, err := s.tagByName(name)
		if err != nil {
			return err
		}
		draft.TagIDs = append(draft.TagIDs, tag.ID)
	}

	_, err = s.ledger.Apply(draft)
	return err
}

func parseImportDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("missing date")
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if date, err := time.Parse(layout, value); err == nil {
			return date.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", value)
}

// accountByName resolves an account by its exact name. Accounts are never
// created by an import; a row naming an unknown account is the caller's
// mistake to fix.
func (s *exportService) accountByName(name string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("name = ?", name).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("unknown account %q", name)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &account, nil
}

func (s *exportService) categoryByName(name string, categoryType models.CategoryType, parentID *string) (*models.Category, error) {
	query := s.db.Where("name = ? AND type = ?", name, categoryType)
	if parentID != nil {
		query = query.Where("parent_id = ?", *parentID)
	}
	var category models.Category
	err := query.First(&category).Error
	if err == nil {
		return &category, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.categories.CreateCategory(name, categoryType, parentID, "", "")
}

func (s *exportService) tagByName(name string) (*models.Tag, error) {
	var tag models.Tag
	err := s.db.Where("LOWER(name) = ?", strings.ToLower(name)).First(&tag).Error
	if err == nil {
		return &tag, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.tags.CreateTag(name, "")
}
