package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/gsPatrick/finance-os/internal/apperr"
	"github.com/gsPatrick/finance-os/internal/ledger"
	"github.com/gsPatrick/finance-os/models"
)

// InvoiceResolver finds or creates the invoice covering a credit-card
// transaction date. Implemented by InvoiceService; declared here so the
// transaction service names only the capability it needs.
type InvoiceResolver interface {
	ResolveForDate(tx *gorm.DB, userID, accountID uint, date time.Time, explicitInvoiceID *uint) (*models.Invoice, error)
}

// TransactionService manages the lifecycle of transactions and series:
// creation (including recurring/installment generation), updates and
// deletion with impact consistency, and the scheduled due-clearing run.
type TransactionService struct {
	db       *gorm.DB
	invoices InvoiceResolver
	now      func() time.Time
}

// NewTransactionService wires a transaction service.
func NewTransactionService(db *gorm.DB, invoices InvoiceResolver, now func() time.Time) *TransactionService {
	if now == nil {
		now = time.Now
	}
	return &TransactionService{db: db, invoices: invoices, now: now}
}

// CreateTransactionInput is the payload for creating a transaction or a
// series. Series flags are mutually exclusive; the configuration fields
// of each mode require their flag.
type CreateTransactionInput struct {
	AccountID   uint                   `json:"accountId"`
	CategoryID  *uint                  `json:"categoryId"`
	InvoiceID   *uint                  `json:"invoiceId"`
	Description string                 `json:"description"`
	Amount      decimal.Decimal        `json:"amount"`
	Type        models.TransactionType `json:"type"`
	Date        time.Time              `json:"date"`
	Observation string                 `json:"observation"`

	// Forecast entries stay pending even when dated in the past.
	Forecast bool `json:"forecast"`

	Recurring          bool              `json:"recurring"`
	Frequency          *models.Frequency `json:"frequency"`
	RecurringStartDate *time.Time        `json:"recurringStartDate"`
	Installment        bool              `json:"installment"`
	InstallmentCount   *int              `json:"installmentCount"`
	InstallmentUnit    *models.Frequency `json:"installmentUnit"`
}

// CreateTransaction creates the master transaction and, for series, its
// future occurrences, atomically. Credit-card expenses resolve their
// invoice per occurrence date; occurrences dated today or earlier are
// created cleared with impact applied immediately.
func (s *TransactionService) CreateTransaction(userID uint, in CreateTransactionInput) (*models.Transaction, error) {
	if !in.Amount.IsPositive() {
		return nil, apperr.BadRequest("amount must be positive")
	}
	if in.Type != models.TransactionTypeIncome && in.Type != models.TransactionTypeExpense {
		return nil, apperr.BadRequest("type must be income or expense")
	}
	if err := validateSeriesConfig(&in); err != nil {
		return nil, err
	}

	var account models.Account
	err := s.db.Where("id = ? AND user_id = ?", in.AccountID, userID).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("account not found")
	} else if err != nil {
		return nil, err
	}

	if in.CategoryID != nil {
		var category models.Category
		err := s.db.Where("id = ? AND user_id = ?", *in.CategoryID, userID).First(&category).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("category not found")
		} else if err != nil {
			return nil, err
		}
	}

	today := dateOnly(s.now())
	date := dateOnly(in.Date)
	isCardExpense := account.IsCreditCard() && in.Type == models.TransactionTypeExpense
	if in.InvoiceID != nil && !isCardExpense {
		return nil, apperr.BadRequest("only credit-card expenses can reference an invoice")
	}

	amount := in.Amount
	if in.Installment {
		// The stored amount of every member of an installment series is the
		// per-installment share of the total.
		amount = in.Amount.DivRound(decimal.NewFromInt(int64(*in.InstallmentCount)), 2)
	}

	var masterID uint
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var invoice *models.Invoice
		if isCardExpense {
			var err error
			invoice, err = s.invoices.ResolveForDate(tx, userID, account.ID, date, in.InvoiceID)
			if err != nil {
				return err
			}
		}

		status := models.TransactionStatusPending
		switch {
		case !date.After(today) && !in.Forecast:
			status = models.TransactionStatusCleared
		case in.Recurring || in.Installment:
			status = models.TransactionStatusScheduled
		}

		master := models.Transaction{
			UserID:      userID,
			AccountID:   account.ID,
			CategoryID:  in.CategoryID,
			Description: in.Description,
			Amount:      amount,
			Type:        in.Type,
			Date:        date,
			Status:      status,
			Observation: in.Observation,
			Recurring:   in.Recurring,
			Installment: in.Installment,
		}
		if invoice != nil {
			master.InvoiceID = &invoice.ID
		}
		if in.Recurring {
			master.Frequency = in.Frequency
			start := date
			if in.RecurringStartDate != nil {
				start = dateOnly(*in.RecurringStartDate)
			}
			master.RecurringStartDate = &start
		}
		if in.Installment {
			master.InstallmentCount = in.InstallmentCount
			master.InstallmentUnit = in.InstallmentUnit
			if *in.InstallmentCount > 1 {
				first := 1
				master.InstallmentCurrent = &first
			}
		}
		if err := tx.Create(&master).Error; err != nil {
			return err
		}
		masterID = master.ID

		if master.IsCleared() {
			if err := ledger.Apply(tx, &master, &account, invoice); err != nil {
				return err
			}
		}

		if in.Recurring || in.Installment {
			return s.generateSeries(tx, &account, &master, &in, today)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetTransaction(userID, masterID)
}

// generateSeries creates the future occurrences of a series inside the
// creation scope. Recurring series stop at the occurrence cap or two
// years past the master date; installment series produce exactly
// count-1 children numbered from 2.
func (s *TransactionService) generateSeries(tx *gorm.DB, account *models.Account, master *models.Transaction, in *CreateTransactionInput, today time.Time) error {
	limit := recurringOccurrencesLimit
	unit := models.Frequency("")
	if in.Recurring {
		unit = *in.Frequency
	}
	if in.Installment {
		limit = *in.InstallmentCount - 1
		unit = *in.InstallmentUnit
	}

	horizon := master.Date.AddDate(recurringHorizonYears, 0, 0)
	isCardExpense := account.IsCreditCard() && in.Type == models.TransactionTypeExpense
	current := master.Date
	occurrence := 1

	for i := 0; i < limit; i++ {
		current = nextDate(current, unit)
		if current.IsZero() {
			break
		}
		if in.Recurring && current.After(horizon) {
			break
		}

		description := in.Description
		var installmentCurrent *int
		if in.Installment {
			occurrence++
			if occurrence > *in.InstallmentCount || occurrence > maxInstallments {
				break
			}
			n := occurrence
			installmentCurrent = &n
			description = fmt.Sprintf("%s (%d/%d)", in.Description, occurrence, *in.InstallmentCount)
		}

		status := models.TransactionStatusScheduled
		if !current.After(today) {
			status = models.TransactionStatusCleared
		}

		var childInvoice *models.Invoice
		if isCardExpense {
			var err error
			childInvoice, err = s.invoices.ResolveForDate(tx, master.UserID, account.ID, current, nil)
			if err != nil {
				return err
			}
		}

		child := models.Transaction{
			UserID:             master.UserID,
			AccountID:          account.ID,
			CategoryID:         in.CategoryID,
			ParentID:           &master.ID,
			Description:        description,
			Amount:             master.Amount,
			Type:               in.Type,
			Date:               current,
			Status:             status,
			Observation:        in.Observation,
			InstallmentCurrent: installmentCurrent,
		}
		if childInvoice != nil {
			child.InvoiceID = &childInvoice.ID
		}
		if err := tx.Create(&child).Error; err != nil {
			return err
		}

		// Retroactive occurrences settle immediately.
		if status == models.TransactionStatusCleared {
			if err := ledger.Apply(tx, &child, account, childInvoice); err != nil {
				return err
			}
		}
	}
	return nil
}

// ListTransactionsOptions filters and paginates transaction listings.
type ListTransactionsOptions struct {
	Type       *models.TransactionType
	Status     *models.TransactionStatus
	AccountID  *uint
	CategoryID *uint
	InvoiceID  *uint
	StartDate  *time.Time
	EndDate    *time.Time
	Search     string
	Limit      int
	Offset     int
}

// ListTransactions returns the user's transactions newest first.
func (s *TransactionService) ListTransactions(userID uint, opts ListTransactionsOptions) ([]models.Transaction, int64, error) {
	q := s.db.Model(&models.Transaction{}).Where("transactions.user_id = ?", userID)
	if opts.Type != nil {
		q = q.Where("transactions.type = ?", *opts.Type)
	}
	if opts.Status != nil {
		q = q.Where("transactions.status = ?", *opts.Status)
	}
	if opts.AccountID != nil {
		q = q.Where("transactions.account_id = ?", *opts.AccountID)
	}
	if opts.CategoryID != nil {
		q = q.Where("transactions.category_id = ?", *opts.CategoryID)
	}
	if opts.InvoiceID != nil {
		q = q.Where("transactions.invoice_id = ?", *opts.InvoiceID)
	}
	if opts.StartDate != nil {
		q = q.Where("transactions.date >= ?", dateOnly(*opts.StartDate))
	}
	if opts.EndDate != nil {
		q = q.Where("transactions.date <= ?", dateOnly(*opts.EndDate))
	}
	if opts.Search != "" {
		pattern := "%" + opts.Search + "%"
		q = q.Where("LOWER(transactions.description) LIKE LOWER(?) OR LOWER(transactions.observation) LIKE LOWER(?)",
			pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var transactions []models.Transaction
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit).Offset(opts.Offset)
	}
	err := q.Preload("Account").Preload("Category").
		Order("date DESC, created_at DESC").
		Find(&transactions).Error
	return transactions, total, err
}

// GetTransaction returns one transaction with its relations, children
// ordered by date.
func (s *TransactionService) GetTransaction(userID, transactionID uint) (*models.Transaction, error) {
	var trn models.Transaction
	err := s.db.Preload("Account").Preload("Category").Preload("Parent").
		Preload("Children", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC") }).
		Where("id = ? AND user_id = ?", transactionID, userID).
		First(&trn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("transaction not found")
	} else if err != nil {
		return nil, err
	}
	return &trn, nil
}

// UpdateTransactionInput patches a transaction. Nil fields are left
// untouched; DetachInvoice clears the invoice reference.
type UpdateTransactionInput struct {
	Description   *string                   `json:"description"`
	Amount        *decimal.Decimal          `json:"amount"`
	Type          *models.TransactionType   `json:"type"`
	Date          *time.Time                `json:"date"`
	Status        *models.TransactionStatus `json:"status"`
	AccountID     *uint                     `json:"accountId"`
	CategoryID    *uint                     `json:"categoryId"`
	InvoiceID     *uint                     `json:"invoiceId"`
	DetachInvoice bool                      `json:"detachInvoice"`
	Observation   *string                   `json:"observation"`

	Recurring          *bool             `json:"recurring"`
	Frequency          *models.Frequency `json:"frequency"`
	RecurringStartDate *time.Time        `json:"recurringStartDate"`
	Installment        *bool             `json:"installment"`
	InstallmentCount   *int              `json:"installmentCount"`
	InstallmentCurrent *int              `json:"installmentCurrent"`
	InstallmentUnit    *models.Frequency `json:"installmentUnit"`
}

// UpdateTransaction updates a transaction atomically. When a cleared
// transaction's financial identity (status, amount, type, account or
// invoice) changes, the old impact is reverted before the update and the
// new impact applied after it. Series configuration is immutable on
// occurrences.
func (s *TransactionService) UpdateTransaction(userID, transactionID uint, in UpdateTransactionInput) (*models.Transaction, error) {
	var trn models.Transaction
	err := s.db.Preload("Account").Preload("Invoice").
		Where("id = ? AND user_id = ?", transactionID, userID).
		First(&trn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("transaction not found")
	} else if err != nil {
		return nil, err
	}

	if in.Amount != nil && !in.Amount.IsPositive() {
		return nil, apperr.BadRequest("amount must be positive")
	}
	if in.Type != nil && *in.Type != models.TransactionTypeIncome && *in.Type != models.TransactionTypeExpense {
		return nil, apperr.BadRequest("type must be income or expense")
	}
	if in.Status != nil {
		switch *in.Status {
		case models.TransactionStatusPending, models.TransactionStatusScheduled, models.TransactionStatusCleared:
		default:
			return nil, apperr.BadRequest("status must be pending, scheduled or cleared")
		}
	}
	if err := rejectSeriesFieldsOnChild(&trn, &in); err != nil {
		return nil, err
	}
	// Series configuration of a mode the master does not have is dropped,
	// not persisted.
	if !trn.Recurring {
		in.Frequency = nil
		in.RecurringStartDate = nil
	}
	if !trn.Installment {
		in.InstallmentCount = nil
		in.InstallmentCurrent = nil
		in.InstallmentUnit = nil
	}

	oldStatus := trn.Status
	oldAmount := trn.Amount
	oldType := trn.Type
	oldAccountID := trn.AccountID
	oldInvoiceID := trn.InvoiceID

	newStatus := oldStatus
	if in.Status != nil {
		newStatus = *in.Status
	}
	newAmount := oldAmount
	if in.Amount != nil {
		newAmount = *in.Amount
	}
	newType := oldType
	if in.Type != nil {
		newType = *in.Type
	}
	newAccountID := oldAccountID
	if in.AccountID != nil {
		newAccountID = *in.AccountID
	}
	newInvoiceID := oldInvoiceID
	if in.DetachInvoice {
		newInvoiceID = nil
	} else if in.InvoiceID != nil {
		newInvoiceID = in.InvoiceID
	}

	financialChange := newStatus != oldStatus ||
		!newAmount.Equal(oldAmount) ||
		newType != oldType ||
		newAccountID != oldAccountID ||
		!uintPtrEqual(newInvoiceID, oldInvoiceID)

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if oldStatus == models.TransactionStatusCleared && financialChange {
			if err := ledger.Revert(tx, &trn, trn.Account, trn.Invoice); err != nil {
				return err
			}
		}

		targetAccount := trn.Account
		if newAccountID != oldAccountID {
			targetAccount = &models.Account{}
			err := tx.Where("id = ? AND user_id = ?", newAccountID, userID).First(targetAccount).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.NotFound("target account not found")
			} else if err != nil {
				return err
			}
		}

		// A retained invoice reference is re-checked when the account moves,
		// so an invoice never points at a transaction on another card.
		targetInvoice := trn.Invoice
		if !uintPtrEqual(newInvoiceID, oldInvoiceID) || (newAccountID != oldAccountID && newInvoiceID != nil) {
			if newInvoiceID == nil {
				targetInvoice = nil
			} else {
				targetInvoice = &models.Invoice{}
				err := tx.Where("id = ? AND user_id = ?", *newInvoiceID, userID).First(targetInvoice).Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return apperr.NotFound("target invoice not found")
				} else if err != nil {
					return err
				}
				if targetInvoice.AccountID != targetAccount.ID {
					return apperr.BadRequest("invoice does not belong to the transaction's account")
				}
			}
		}

		updates := s.buildTransactionUpdates(&in, newStatus, newAmount, newType, newAccountID, newInvoiceID,
			oldStatus, oldAmount, oldType, oldAccountID, oldInvoiceID)
		if len(updates) > 0 {
			if err := tx.Model(&trn).Updates(updates).Error; err != nil {
				return err
			}
		}

		trn.Status = newStatus
		trn.Amount = newAmount
		trn.Type = newType
		trn.AccountID = newAccountID
		trn.InvoiceID = newInvoiceID

		if newStatus == models.TransactionStatusCleared &&
			(oldStatus != models.TransactionStatusCleared || financialChange) {
			if targetAccount == nil {
				return apperr.Internal("target account missing while applying financial impact")
			}
			if err := ledger.Apply(tx, &trn, targetAccount, targetInvoice); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetTransaction(userID, transactionID)
}

// buildTransactionUpdates assembles the column map for an update patch.
func (s *TransactionService) buildTransactionUpdates(in *UpdateTransactionInput,
	newStatus models.TransactionStatus, newAmount decimal.Decimal, newType models.TransactionType,
	newAccountID uint, newInvoiceID *uint,
	oldStatus models.TransactionStatus, oldAmount decimal.Decimal, oldType models.TransactionType,
	oldAccountID uint, oldInvoiceID *uint) map[string]interface{} {

	updates := map[string]interface{}{}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if !newAmount.Equal(oldAmount) {
		updates["amount"] = newAmount
	}
	if newType != oldType {
		updates["type"] = newType
	}
	if in.Date != nil {
		updates["date"] = dateOnly(*in.Date)
	}
	if newStatus != oldStatus {
		updates["status"] = newStatus
	}
	if newAccountID != oldAccountID {
		updates["account_id"] = newAccountID
	}
	if !uintPtrEqual(newInvoiceID, oldInvoiceID) {
		updates["invoice_id"] = newInvoiceID
	}
	if in.CategoryID != nil {
		updates["category_id"] = *in.CategoryID
	}
	if in.Observation != nil {
		updates["observation"] = *in.Observation
	}
	if in.Recurring != nil {
		updates["recurring"] = *in.Recurring
	}
	if in.Frequency != nil {
		updates["frequency"] = *in.Frequency
	}
	if in.RecurringStartDate != nil {
		updates["recurring_start_date"] = dateOnly(*in.RecurringStartDate)
	}
	if in.Installment != nil {
		updates["installment"] = *in.Installment
	}
	if in.InstallmentCount != nil {
		updates["installment_count"] = *in.InstallmentCount
	}
	if in.InstallmentCurrent != nil {
		updates["installment_current"] = *in.InstallmentCurrent
	}
	if in.InstallmentUnit != nil {
		updates["installment_unit"] = *in.InstallmentUnit
	}
	return updates
}

// DeleteTransaction removes a transaction, reverting its impact when
// cleared. A series master requires deleteSeries and removes the whole
// series atomically, reverting each cleared occurrence first.
func (s *TransactionService) DeleteTransaction(userID, transactionID uint, deleteSeries bool) error {
	var trn models.Transaction
	err := s.db.Preload("Account").Preload("Invoice").Preload("Children").
		Where("id = ? AND user_id = ?", transactionID, userID).
		First(&trn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound("transaction not found")
	} else if err != nil {
		return err
	}

	if trn.IsSeriesMaster() && !deleteSeries {
		return apperr.BadRequest("deleting a series master requires deleteSeries=true")
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if trn.IsCleared() {
			if err := ledger.Revert(tx, &trn, trn.Account, trn.Invoice); err != nil {
				return err
			}
		}

		if trn.IsSeriesMaster() && len(trn.Children) > 0 {
			for i := range trn.Children {
				child := &trn.Children[i]
				if child.IsCleared() {
					if err := ledger.Revert(tx, child, nil, nil); err != nil {
						return err
					}
				}
			}
			if err := tx.Where("parent_id = ?", trn.ID).Delete(&models.Transaction{}).Error; err != nil {
				return err
			}
			slog.Info("series deleted", "master_id", trn.ID, "children", len(trn.Children))
		}

		return tx.Delete(&trn).Error
	})
}

// ClearDueTransactions settles every pending or scheduled transaction
// whose date has arrived. Each transaction clears in its own scope so
// one failure does not block the batch; failures are logged and skipped.
// Returns the number of transactions cleared.
func (s *TransactionService) ClearDueTransactions() (int, error) {
	today := dateOnly(s.now())

	var due []models.Transaction
	err := s.db.Preload("Account").Preload("Invoice").
		Where("status IN ? AND date <= ?",
			[]models.TransactionStatus{models.TransactionStatusPending, models.TransactionStatusScheduled}, today).
		Find(&due).Error
	if err != nil {
		return 0, err
	}

	cleared := 0
	for i := range due {
		trn := &due[i]
		err := s.db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(trn).Update("status", models.TransactionStatusCleared).Error; err != nil {
				return err
			}
			return ledger.Apply(tx, trn, trn.Account, trn.Invoice)
		})
		if err != nil {
			slog.Error("failed to clear due transaction", "transaction_id", trn.ID, "error", err)
			continue
		}
		cleared++
	}

	slog.Info("due-transaction clearing run finished", "cleared", cleared, "due", len(due))
	return cleared, nil
}

// uintPtrEqual compares two optional ids.
func uintPtrEqual(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
