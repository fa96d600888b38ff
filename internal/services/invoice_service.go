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

// futureInvoicesOnClose is how many upcoming invoices are pre-generated
// when an invoice closes.
const futureInvoicesOnClose = 2

// InvoiceService owns the credit-card invoice lifecycle: period
// resolution, manual CRUD, the scheduled closing process and payment
// settlement.
type InvoiceService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewInvoiceService wires an invoice service. now is injectable so
// day-of-month dependent operations are deterministic under test.
func NewInvoiceService(db *gorm.DB, now func() time.Time) *InvoiceService {
	if now == nil {
		now = time.Now
	}
	return &InvoiceService{db: db, now: now}
}

// CreateInvoiceInput is the payload for manual invoice creation and for
// the pre-generation step of the closing process.
type CreateInvoiceInput struct {
	AccountID   uint       `json:"accountId" binding:"required"`
	Month       int        `json:"month" binding:"required,min=1,max=12"`
	Year        int        `json:"year" binding:"required"`
	DueDate     *time.Time `json:"dueDate"`
	ClosingDate *time.Time `json:"closingDate"`
}

// CreateInvoice creates the invoice for one (account, year, month)
// period. The account must be a credit card owned by the user, and the
// period must not already have an invoice (Conflict otherwise). When the
// explicit dates are absent they are derived from the card's
// closingDay/dueDay, clamped to the last day of the month. Runs inside
// tx when one is given.
func (s *InvoiceService) CreateInvoice(tx *gorm.DB, userID uint, in CreateInvoiceInput) (*models.Invoice, error) {
	if tx == nil {
		tx = s.db
	}

	var card models.Account
	err := tx.Where("id = ? AND user_id = ? AND type = ?", in.AccountID, userID, models.AccountTypeCreditCard).
		First(&card).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("credit card not found")
	} else if err != nil {
		return nil, err
	}

	var existing models.Invoice
	err = tx.Where("account_id = ? AND user_id = ? AND year = ? AND month = ?", in.AccountID, userID, in.Year, in.Month).
		First(&existing).Error
	if err == nil {
		return nil, apperr.Conflict("an invoice for %d/%d already exists for this card", in.Month, in.Year)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	dueDate := in.DueDate
	closingDate := in.ClosingDate
	if dueDate == nil && card.DueDay != nil {
		d := clampDay(in.Year, time.Month(in.Month), *card.DueDay)
		dueDate = &d
	}
	if closingDate == nil && card.ClosingDay != nil {
		d := clampDay(in.Year, time.Month(in.Month), *card.ClosingDay)
		closingDate = &d
	}
	if dueDate == nil || closingDate == nil {
		return nil, apperr.BadRequest("due and closing dates are required, or configure closingDay/dueDay on the card")
	}

	invoice := models.Invoice{
		UserID:        userID,
		AccountID:     in.AccountID,
		Month:         in.Month,
		Year:          in.Year,
		DueDate:       dateOnly(*dueDate),
		ClosingDate:   dateOnly(*closingDate),
		Total:         decimal.Zero,
		PaidAmount:    decimal.Zero,
		Status:        models.InvoiceStatusOpen,
		PaymentStatus: models.PaymentStatusUnpaid,
	}
	if err := tx.Create(&invoice).Error; err != nil {
		return nil, err
	}
	return &invoice, nil
}

// ResolveForDate finds the invoice covering a transaction date, creating
// it from the card configuration when absent. An explicit invoice id must
// already exist for the account or the resolution fails as NotFound.
// Implements the InvoiceResolver collaborator of the transaction service.
func (s *InvoiceService) ResolveForDate(tx *gorm.DB, userID, accountID uint, date time.Time, explicitInvoiceID *uint) (*models.Invoice, error) {
	if tx == nil {
		tx = s.db
	}

	if explicitInvoiceID != nil {
		var invoice models.Invoice
		err := tx.Where("id = ? AND user_id = ? AND account_id = ?", *explicitInvoiceID, userID, accountID).
			First(&invoice).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("invoice %d not found for this card", *explicitInvoiceID)
		} else if err != nil {
			return nil, err
		}
		return &invoice, nil
	}

	day := dateOnly(date)
	year, month := day.Year(), int(day.Month())

	var invoice models.Invoice
	err := tx.Where("account_id = ? AND user_id = ? AND year = ? AND month = ?", accountID, userID, year, month).
		First(&invoice).Error
	if err == nil {
		return &invoice, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var card models.Account
	if err := tx.First(&card, accountID).Error; err != nil {
		return nil, apperr.NotFound("credit card not found")
	}
	if card.ClosingDay == nil || card.DueDay == nil {
		return nil, apperr.BadRequest("card %q has no closingDay/dueDay configured, cannot create invoice for %d/%d", card.Name, month, year)
	}

	created := models.Invoice{
		UserID:        userID,
		AccountID:     accountID,
		Month:         month,
		Year:          year,
		DueDate:       clampDay(year, day.Month(), *card.DueDay),
		ClosingDate:   clampDay(year, day.Month(), *card.ClosingDay),
		Total:         decimal.Zero,
		PaidAmount:    decimal.Zero,
		Status:        models.InvoiceStatusOpen,
		PaymentStatus: models.PaymentStatusUnpaid,
	}
	if err := tx.Create(&created).Error; err != nil {
		return nil, err
	}
	slog.Info("invoice created automatically", "account_id", accountID, "month", month, "year", year, "invoice_id", created.ID)
	return &created, nil
}

// ListInvoicesOptions filters and paginates invoice listings.
type ListInvoicesOptions struct {
	AccountID *uint
	Status    *models.InvoiceStatus
	StartDate *time.Time
	EndDate   *time.Time
	Limit     int
	Offset    int
}

// ListInvoices returns the user's invoices newest period first, with the
// owning card preloaded.
func (s *InvoiceService) ListInvoices(userID uint, opts ListInvoicesOptions) ([]models.Invoice, int64, error) {
	q := s.db.Model(&models.Invoice{}).Where("user_id = ?", userID)
	if opts.AccountID != nil {
		q = q.Where("account_id = ?", *opts.AccountID)
	}
	if opts.Status != nil {
		q = q.Where("status = ?", *opts.Status)
	}
	if opts.StartDate != nil {
		q = q.Where("due_date >= ?", dateOnly(*opts.StartDate))
	}
	if opts.EndDate != nil {
		q = q.Where("due_date <= ?", dateOnly(*opts.EndDate))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []models.Invoice
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit).Offset(opts.Offset)
	}
	err := q.Preload("CreditCard").Order("year DESC, month DESC").Find(&invoices).Error
	return invoices, total, err
}

// GetInvoice returns one invoice owned by the user.
func (s *InvoiceService) GetInvoice(userID, invoiceID uint) (*models.Invoice, error) {
	var invoice models.Invoice
	err := s.db.Preload("CreditCard").
		Where("id = ? AND user_id = ?", invoiceID, userID).
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("invoice not found")
	} else if err != nil {
		return nil, err
	}
	return &invoice, nil
}

// InvoiceTransactions returns the transactions attached to an invoice,
// oldest first.
func (s *InvoiceService) InvoiceTransactions(userID, invoiceID uint) ([]models.Transaction, error) {
	if _, err := s.GetInvoice(userID, invoiceID); err != nil {
		return nil, err
	}
	var transactions []models.Transaction
	err := s.db.Preload("Account").Preload("Category").
		Where("invoice_id = ? AND user_id = ?", invoiceID, userID).
		Order("date ASC, created_at ASC").
		Find(&transactions).Error
	return transactions, err
}

// UpdateInvoiceInput patches the mutable fields of an invoice. The
// period identity (account/month/year) and the derived total are never
// writable through this path.
type UpdateInvoiceInput struct {
	Status     *models.InvoiceStatus `json:"status"`
	PaidAmount *decimal.Decimal      `json:"paidAmount"`
	DueDate    *time.Time            `json:"dueDate"`
}

// UpdateInvoice applies a direct status/paidAmount edit, keeping the
// paymentStatus derivation consistent with the payment processor.
func (s *InvoiceService) UpdateInvoice(userID, invoiceID uint, in UpdateInvoiceInput) (*models.Invoice, error) {
	if in.Status != nil {
		switch *in.Status {
		case models.InvoiceStatusOpen, models.InvoiceStatusClosed, models.InvoiceStatusPaid:
		default:
			return nil, apperr.BadRequest("status must be open, closed or paid")
		}
	}

	invoice, err := s.GetInvoice(userID, invoiceID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.PaidAmount != nil {
		if in.PaidAmount.IsNegative() {
			return nil, apperr.BadRequest("paidAmount cannot be negative")
		}
		updates["paid_amount"] = *in.PaidAmount
		updates["payment_status"] = derivePaymentStatus(*in.PaidAmount, invoice.Total)
	}
	if in.Status != nil {
		updates["status"] = *in.Status
		if *in.Status == models.InvoiceStatusPaid {
			updates["payment_status"] = models.PaymentStatusPaid
		} else if invoice.Status == models.InvoiceStatusPaid {
			paid := invoice.PaidAmount
			if in.PaidAmount != nil {
				paid = *in.PaidAmount
			}
			updates["payment_status"] = derivePaymentStatus(paid, invoice.Total)
		}
	}
	if in.DueDate != nil {
		updates["due_date"] = dateOnly(*in.DueDate)
	}

	if len(updates) > 0 {
		if err := s.db.Model(invoice).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetInvoice(userID, invoiceID)
}

// DeleteInvoice removes an invoice. Paid invoices are immutable history
// and cannot be deleted.
func (s *InvoiceService) DeleteInvoice(userID, invoiceID uint) error {
	invoice, err := s.GetInvoice(userID, invoiceID)
	if err != nil {
		return err
	}
	if invoice.Status == models.InvoiceStatusPaid {
		return apperr.BadRequest("a paid invoice cannot be deleted")
	}
	return s.db.Delete(invoice).Error
}

// CloseInvoices finalizes the open invoice of every credit card whose
// closing day is today, and pre-generates the next invoices. Each card
// closes inside its own transaction scope: one card's failure rolls back
// only that card and leaves its invoice open for the next run. Returns
// the number of invoices closed.
func (s *InvoiceService) CloseInvoices() (int, error) {
	today := dateOnly(s.now())
	closed := 0

	var cards []models.Account
	err := s.db.Where("type = ? AND closing_day = ?", models.AccountTypeCreditCard, today.Day()).
		Find(&cards).Error
	if err != nil {
		return 0, err
	}

	for _, card := range cards {
		card := card
		err := s.db.Transaction(func(tx *gorm.DB) error {
			return s.closeCardInvoice(tx, &card, today, &closed)
		})
		if err != nil {
			slog.Error("invoice closing failed, card rolled back",
				"account_id", card.ID, "account", card.Name, "error", err)
		}
	}

	slog.Info("invoice closing run finished", "closed", closed, "cards_due", len(cards))
	return closed, nil
}

// closeCardInvoice runs the per-card closing steps inside tx.
func (s *InvoiceService) closeCardInvoice(tx *gorm.DB, card *models.Account, today time.Time, closed *int) error {
	var invoice models.Invoice
	err := tx.Where("account_id = ? AND user_id = ? AND status = ?", card.ID, card.UserID, models.InvoiceStatusOpen).
		Order("year ASC, month ASC").
		First(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Configuration gap: the card reached its closing day with no open
		// invoice to finalize.
		slog.Warn("no open invoice to close", "account_id", card.ID, "account", card.Name)
		return nil
	} else if err != nil {
		return err
	}

	// The oldest open invoice may be one pre-generated by an earlier run
	// today; its period has not ended yet.
	if invoice.ClosingDate.After(today) {
		return nil
	}

	// The invoice covers (previous closing date, this closing date].
	periodEnd := clampDay(invoice.Year, time.Month(invoice.Month), *card.ClosingDay)
	prevYear, prevMonth := previousPeriod(invoice.Year, time.Month(invoice.Month))
	periodStart := clampDay(prevYear, prevMonth, *card.ClosingDay).AddDate(0, 0, 1)

	var expenses []models.Transaction
	err = tx.Where("user_id = ? AND account_id = ? AND type = ? AND status = ?",
		card.UserID, card.ID, models.TransactionTypeExpense, models.TransactionStatusCleared).
		Where("date BETWEEN ? AND ?", periodStart, periodEnd).
		Where("invoice_id IS NULL OR invoice_id = ?", invoice.ID).
		Find(&expenses).Error
	if err != nil {
		return err
	}

	total := decimal.Zero
	for i := range expenses {
		t := &expenses[i]
		if t.InvoiceID == nil || *t.InvoiceID != invoice.ID {
			if err := tx.Model(t).Update("invoice_id", invoice.ID).Error; err != nil {
				return err
			}
		}
		total = total.Add(t.Amount)
	}

	// Authoritative recomputation: overrides whatever the incremental
	// impact path accumulated during the month.
	err = tx.Model(&invoice).Updates(map[string]interface{}{
		"status": models.InvoiceStatusClosed,
		"total":  total,
	}).Error
	if err != nil {
		return err
	}
	*closed++
	slog.Info("invoice closed",
		"invoice_id", invoice.ID, "account", card.Name,
		"period_start", periodStart.Format("2006-01-02"),
		"period_end", periodEnd.Format("2006-01-02"),
		"total", total.String())

	nextYear, nextMonth := invoice.Year, time.Month(invoice.Month)
	for i := 0; i < futureInvoicesOnClose; i++ {
		nextYear, nextMonth = nextPeriod(nextYear, nextMonth)
		_, err := s.CreateInvoice(tx, card.UserID, CreateInvoiceInput{
			AccountID: card.ID,
			Month:     int(nextMonth),
			Year:      nextYear,
		})
		if apperr.HasStatus(err, 409) {
			continue // already pre-generated by an earlier run
		}
		if err != nil {
			return fmt.Errorf("pre-generating invoice %d/%d: %w", nextMonth, nextYear, err)
		}
	}
	return nil
}

// PayInvoiceInput is a payment registered against a closed invoice.
type PayInvoiceInput struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	AccountID uint            `json:"accountId" binding:"required"`
	Date      *time.Time      `json:"date"`
}

// RegisterPayment settles part or all of a closed invoice from a cash
// account: a cleared settlement expense is created on the paying account,
// its impact applied, and the invoice's paidAmount/paymentStatus updated.
// A fully paid invoice advances to the paid status.
func (s *InvoiceService) RegisterPayment(userID, invoiceID uint, in PayInvoiceInput) (*models.Invoice, error) {
	invoice, err := s.GetInvoice(userID, invoiceID)
	if err != nil {
		return nil, err
	}
	if !invoice.Payable() {
		return nil, apperr.BadRequest("invoice is not payable in status %q", invoice.Status)
	}
	if !in.Amount.IsPositive() {
		return nil, apperr.BadRequest("payment amount must be positive")
	}

	var payingAccount models.Account
	err = s.db.Where("id = ? AND user_id = ?", in.AccountID, userID).First(&payingAccount).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("paying account not found")
	} else if err != nil {
		return nil, err
	}
	if payingAccount.Type != models.AccountTypeCash {
		return nil, apperr.BadRequest("invoices can only be paid from a cash account")
	}

	paymentDate := dateOnly(s.now())
	if in.Date != nil {
		paymentDate = dateOnly(*in.Date)
	}

	cardName := ""
	if invoice.CreditCard != nil {
		cardName = invoice.CreditCard.Name
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		settlement := models.Transaction{
			UserID:      userID,
			AccountID:   in.AccountID,
			InvoiceID:   &invoice.ID,
			Description: fmt.Sprintf("Invoice payment %s (%d/%d)", cardName, invoice.Month, invoice.Year),
			Amount:      in.Amount,
			Type:        models.TransactionTypeExpense,
			Date:        paymentDate,
			Status:      models.TransactionStatusCleared,
			Observation: fmt.Sprintf("Payment for invoice %d", invoice.ID),
		}
		if err := tx.Create(&settlement).Error; err != nil {
			return err
		}
		if err := ledger.Apply(tx, &settlement, &payingAccount, nil); err != nil {
			return err
		}

		newPaid := invoice.PaidAmount.Add(in.Amount)
		newPaymentStatus := derivePaymentStatus(newPaid, invoice.Total)
		updates := map[string]interface{}{
			"paid_amount":    newPaid,
			"payment_status": newPaymentStatus,
		}
		if newPaymentStatus == models.PaymentStatusPaid {
			updates["status"] = models.InvoiceStatusPaid
		}
		return tx.Model(&models.Invoice{}).Where("id = ?", invoice.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}

	return s.GetInvoice(userID, invoiceID)
}

// derivePaymentStatus maps a paid amount against the invoice total.
func derivePaymentStatus(paid, total decimal.Decimal) models.PaymentStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return models.PaymentStatusPaid
	case paid.IsPositive():
		return models.PaymentStatusPartial
	default:
		return models.PaymentStatusUnpaid
	}
}

// previousPeriod steps one month back from (year, month).
func previousPeriod(year int, month time.Month) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return t.Year(), t.Month()
}

// nextPeriod steps one month forward from (year, month).
func nextPeriod(year int, month time.Month) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return t.Year(), t.Month()
}
