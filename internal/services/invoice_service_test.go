package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsPatrick/finance-os/internal/apperr"
	"github.com/gsPatrick/finance-os/models"
)

func TestCreateInvoiceDerivesDatesFromCard(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 1))
	card := env.createCard(t, 10, 20)

	invoice, err := env.invoices.CreateInvoice(nil, env.user.ID, CreateInvoiceInput{
		AccountID: card.ID,
		Month:     4,
		Year:      2025,
	})
	require.NoError(t, err)
	assert.Equal(t, date(2025, time.April, 10), invoice.ClosingDate)
	assert.Equal(t, date(2025, time.April, 20), invoice.DueDate)
	assert.Equal(t, models.InvoiceStatusOpen, invoice.Status)
	assert.Equal(t, models.PaymentStatusUnpaid, invoice.PaymentStatus)
	assert.True(t, invoice.Total.IsZero())
}

func TestCreateInvoiceDuplicatePeriodConflicts(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 1))
	card := env.createCard(t, 10, 20)

	in := CreateInvoiceInput{AccountID: card.ID, Month: 4, Year: 2025}
	_, err := env.invoices.CreateInvoice(nil, env.user.ID, in)
	require.NoError(t, err)

	_, err = env.invoices.CreateInvoice(nil, env.user.ID, in)
	require.Error(t, err)
	assert.Equal(t, 409, apperr.StatusOf(err))
}

func TestCreateInvoiceRequiresCard(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 1))
	cash := env.createCashAccount(t, "0")

	_, err := env.invoices.CreateInvoice(nil, env.user.ID, CreateInvoiceInput{
		AccountID: cash.ID, Month: 4, Year: 2025,
	})
	assert.Equal(t, 404, apperr.StatusOf(err))

	_, err = env.invoices.CreateInvoice(nil, env.user.ID, CreateInvoiceInput{
		AccountID: 999, Month: 4, Year: 2025,
	})
	assert.Equal(t, 404, apperr.StatusOf(err))
}

func TestResolveForDateCreatesClampedInvoice(t *testing.T) {
	env := newTestEnv(t, date(2025, time.February, 15))
	card := env.createCard(t, 31, 31)

	invoice, err := env.invoices.ResolveForDate(nil, env.user.ID, card.ID, date(2025, time.February, 10), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, invoice.Month)
	assert.Equal(t, 2025, invoice.Year)
	// Day 31 does not exist in February; both dates clamp to the 28th.
	assert.Equal(t, date(2025, time.February, 28), invoice.ClosingDate)
	assert.Equal(t, date(2025, time.February, 28), invoice.DueDate)

	// Resolving the same date again reuses the invoice.
	again, err := env.invoices.ResolveForDate(nil, env.user.ID, card.ID, date(2025, time.February, 20), nil)
	require.NoError(t, err)
	assert.Equal(t, invoice.ID, again.ID)

	var count int64
	require.NoError(t, env.db.Model(&models.Invoice{}).Where("account_id = ?", card.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestResolveForDateExplicitIDMustExist(t *testing.T) {
	env := newTestEnv(t, date(2025, time.February, 15))
	card := env.createCard(t, 10, 20)

	_, err := env.invoices.ResolveForDate(nil, env.user.ID, card.ID, date(2025, time.February, 10), ptr(uint(777)))
	require.Error(t, err)
	assert.Equal(t, 404, apperr.StatusOf(err))
}

func TestResolveForDateUnconfiguredCardFails(t *testing.T) {
	env := newTestEnv(t, date(2025, time.February, 15))
	limit := dec("1000")
	card := models.Account{
		UserID: env.user.ID, Name: "Bare Card", Type: models.AccountTypeCreditCard, CreditLimit: &limit,
	}
	require.NoError(t, env.db.Create(&card).Error)

	_, err := env.invoices.ResolveForDate(nil, env.user.ID, card.ID, date(2025, time.February, 10), nil)
	require.Error(t, err)
	assert.Equal(t, 400, apperr.StatusOf(err))
}

func TestCloseInvoices(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 10))
	card := env.createCard(t, 10, 20)

	// Two expenses created through the normal path, incrementing the open
	// invoice's total as they clear.
	for _, amount := range []string{"50", "30"} {
		_, err := env.transactions.CreateTransaction(env.user.ID, CreateTransactionInput{
			AccountID: card.ID, Description: "purchase", Amount: dec(amount),
			Type: models.TransactionTypeExpense, Date: date(2025, time.March, 3),
		})
		require.NoError(t, err)
	}
	// One cleared expense in the period that never got an invoice.
	stray := models.Transaction{
		UserID: env.user.ID, AccountID: card.ID, Description: "imported purchase",
		Amount: dec("20"), Type: models.TransactionTypeExpense,
		Date: date(2025, time.March, 5), Status: models.TransactionStatusCleared,
	}
	require.NoError(t, env.db.Create(&stray).Error)

	closed, err := env.invoices.CloseInvoices()
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	var march models.Invoice
	require.NoError(t, env.db.Where("account_id = ? AND year = 2025 AND month = 3", card.ID).First(&march).Error)
	assert.Equal(t, models.InvoiceStatusClosed, march.Status)
	assert.True(t, march.Total.Equal(dec("100")), "total: %s", march.Total)

	// The stray expense was pulled into the closing invoice.
	var gotStray models.Transaction
	require.NoError(t, env.db.First(&gotStray, stray.ID).Error)
	require.NotNil(t, gotStray.InvoiceID)
	assert.Equal(t, march.ID, *gotStray.InvoiceID)

	// The next two invoices are pre-generated open.
	var future []models.Invoice
	require.NoError(t, env.db.Where("account_id = ? AND status = ?", card.ID, models.InvoiceStatusOpen).
		Order("year, month").Find(&future).Error)
	require.Len(t, future, 2)
	assert.Equal(t, 4, future[0].Month)
	assert.Equal(t, 5, future[1].Month)
	assert.True(t, future[0].ClosingDate.Equal(date(2025, time.April, 10)))
	assert.True(t, future[1].DueDate.Equal(date(2025, time.May, 20)))
}

func TestCloseInvoicesNeverDuplicatesPeriods(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 10))
	card := env.createCard(t, 10, 20)

	_, err := env.transactions.CreateTransaction(env.user.ID, CreateTransactionInput{
		AccountID: card.ID, Description: "purchase", Amount: dec("100"),
		Type: models.TransactionTypeExpense, Date: date(2025, time.March, 3),
	})
	require.NoError(t, err)

	closed, err := env.invoices.CloseInvoices()
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	// The second run finds only the pre-generated invoices, whose periods
	// have not ended, and closes nothing.
	closed, err = env.invoices.CloseInvoices()
	require.NoError(t, err)
	assert.Zero(t, closed)

	// The closed total is not double-counted.
	var march models.Invoice
	require.NoError(t, env.db.Where("account_id = ? AND year = 2025 AND month = 3", card.ID).First(&march).Error)
	assert.True(t, march.Total.Equal(dec("100")), "total: %s", march.Total)

	var april models.Invoice
	require.NoError(t, env.db.Where("account_id = ? AND year = 2025 AND month = 4", card.ID).First(&april).Error)
	assert.Equal(t, models.InvoiceStatusOpen, april.Status)

	var count int64
	require.NoError(t, env.db.Model(&models.Invoice{}).Where("account_id = ?", card.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count, "march plus the two pre-generated invoices")

	// Every (account, year, month) period still holds exactly one invoice.
	type period struct{ Year, Month, N int }
	var periods []period
	require.NoError(t, env.db.Model(&models.Invoice{}).
		Select("year, month, COUNT(*) AS n").
		Where("account_id = ?", card.ID).
		Group("year, month").Find(&periods).Error)
	for _, p := range periods {
		assert.Equal(t, 1, p.N, "period %d/%d", p.Month, p.Year)
	}
}

func TestCloseInvoicesSkipsCardsNotDueToday(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 10))
	card := env.createCard(t, 25, 5)

	_, err := env.invoices.CreateInvoice(nil, env.user.ID, CreateInvoiceInput{
		AccountID: card.ID, Month: 3, Year: 2025,
	})
	require.NoError(t, err)

	closed, err := env.invoices.CloseInvoices()
	require.NoError(t, err)
	assert.Zero(t, closed)
}

func TestRegisterPaymentFullSettlement(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 10))
	card := env.createCard(t, 10, 20)
	wallet := env.createCashAccount(t, "500")

	_, err := env.transactions.CreateTransaction(env.user.ID, CreateTransactionInput{
		AccountID: card.ID, Description: "purchase", Amount: dec("100"),
		Type: models.TransactionTypeExpense, Date: date(2025, time.March, 3),
	})
	require.NoError(t, err)
	_, err = env.invoices.CloseInvoices()
	require.NoError(t, err)

	var march models.Invoice
	require.NoError(t, env.db.Where("account_id = ? AND year = 2025 AND month = 3", card.ID).First(&march).Error)

	paid, err := env.invoices.RegisterPayment(env.user.ID, march.ID, PayInvoiceInput{
		Amount:    dec("100"),
		AccountID: wallet.ID,
		Date:      ptr(date(2025, time.March, 20)),
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, paid.Status)
	assert.Equal(t, models.PaymentStatusPaid, paid.PaymentStatus)
	assert.True(t, paid.PaidAmount.Equal(dec("100")))

	got := env.reloadAccount(t, wallet.ID)
	assert.True(t, got.Balance.Equal(dec("400")), "balance: %s", got.Balance)

	// The settlement expense lives on the paying account, already cleared.
	var settlement models.Transaction
	require.NoError(t, env.db.Where("account_id = ? AND invoice_id = ?", wallet.ID, march.ID).First(&settlement).Error)
	assert.Equal(t, models.TransactionStatusCleared, settlement.Status)
	assert.Equal(t, models.TransactionTypeExpense, settlement.Type)
	assert.True(t, settlement.Amount.Equal(dec("100")))
	assert.True(t, settlement.Date.Equal(date(2025, time.March, 20)))
}

func TestRegisterPaymentPartialThenFull(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 10))
	card := env.createCard(t, 10, 20)
	wallet := env.createCashAccount(t, "500")

	_, err := env.transactions.CreateTransaction(env.user.ID, CreateTransactionInput{
		AccountID: card.ID, Description: "purchase", Amount: dec("100"),
		Type: models.TransactionTypeExpense, Date: date(2025, time.March, 3),
	})
	require.NoError(t, err)
	_, err = env.invoices.CloseInvoices()
	require.NoError(t, err)

	var march models.Invoice
	require.NoError(t, env.db.Where("account_id = ? AND year = 2025 AND month = 3", card.ID).First(&march).Error)

	partial, err := env.invoices.RegisterPayment(env.user.ID, march.ID, PayInvoiceInput{
		Amount: dec("40"), AccountID: wallet.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusClosed, partial.Status)
	assert.Equal(t, models.PaymentStatusPartial, partial.PaymentStatus)
	assert.True(t, partial.PaidAmount.Equal(dec("40")))

	full, err := env.invoices.RegisterPayment(env.user.ID, march.ID, PayInvoiceInput{
		Amount: dec("60"), AccountID: wallet.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, full.Status)
	assert.Equal(t, models.PaymentStatusPaid, full.PaymentStatus)
	assert.True(t, full.PaidAmount.Equal(dec("100")))

	got := env.reloadAccount(t, wallet.ID)
	assert.True(t, got.Balance.Equal(dec("400")), "balance: %s", got.Balance)
}

func TestRegisterPaymentRejections(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 10))
	card := env.createCard(t, 10, 20)
	wallet := env.createCashAccount(t, "500")

	open, err := env.invoices.CreateInvoice(nil, env.user.ID, CreateInvoiceInput{
		AccountID: card.ID, Month: 4, Year: 2025,
	})
	require.NoError(t, err)

	// Open invoices are not payable.
	_, err = env.invoices.RegisterPayment(env.user.ID, open.ID, PayInvoiceInput{
		Amount: dec("10"), AccountID: wallet.ID,
	})
	assert.Equal(t, 400, apperr.StatusOf(err))

	require.NoError(t, env.db.Model(open).Update("status", models.InvoiceStatusClosed).Error)

	_, err = env.invoices.RegisterPayment(env.user.ID, open.ID, PayInvoiceInput{
		Amount: dec("0"), AccountID: wallet.ID,
	})
	assert.Equal(t, 400, apperr.StatusOf(err))

	_, err = env.invoices.RegisterPayment(env.user.ID, open.ID, PayInvoiceInput{
		Amount: dec("10"), AccountID: 999,
	})
	assert.Equal(t, 404, apperr.StatusOf(err))

	// Paying a card invoice from another card is not allowed.
	otherCard := env.createCard(t, 5, 15)
	_, err = env.invoices.RegisterPayment(env.user.ID, open.ID, PayInvoiceInput{
		Amount: dec("10"), AccountID: otherCard.ID,
	})
	assert.Equal(t, 400, apperr.StatusOf(err))

	_, err = env.invoices.RegisterPayment(env.user.ID, 999, PayInvoiceInput{
		Amount: dec("10"), AccountID: wallet.ID,
	})
	assert.Equal(t, 404, apperr.StatusOf(err))
}

func TestUpdateInvoiceDerivesPaymentStatus(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 10))
	card := env.createCard(t, 10, 20)

	invoice, err := env.invoices.CreateInvoice(nil, env.user.ID, CreateInvoiceInput{
		AccountID: card.ID, Month: 4, Year: 2025,
	})
	require.NoError(t, err)
	require.NoError(t, env.db.Model(invoice).Update("total", dec("100")).Error)

	updated, err := env.invoices.UpdateInvoice(env.user.ID, invoice.ID, UpdateInvoiceInput{
		PaidAmount: ptr(dec("30")),
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPartial, updated.PaymentStatus)

	updated, err = env.invoices.UpdateInvoice(env.user.ID, invoice.ID, UpdateInvoiceInput{
		PaidAmount: ptr(dec("100")),
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPaid, updated.PaymentStatus)

	_, err = env.invoices.UpdateInvoice(env.user.ID, invoice.ID, UpdateInvoiceInput{
		PaidAmount: ptr(dec("-1")),
	})
	assert.Equal(t, 400, apperr.StatusOf(err))
}

func TestUpdateInvoiceRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 10))
	card := env.createCard(t, 10, 20)

	invoice, err := env.invoices.CreateInvoice(nil, env.user.ID, CreateInvoiceInput{
		AccountID: card.ID, Month: 4, Year: 2025,
	})
	require.NoError(t, err)

	_, err = env.invoices.UpdateInvoice(env.user.ID, invoice.ID, UpdateInvoiceInput{
		Status: ptr(models.InvoiceStatus("void")),
	})
	require.Error(t, err)
	assert.Equal(t, 400, apperr.StatusOf(err))

	got, err := env.invoices.GetInvoice(env.user.ID, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusOpen, got.Status)
}

func TestDeleteInvoice(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 10))
	card := env.createCard(t, 10, 20)

	invoice, err := env.invoices.CreateInvoice(nil, env.user.ID, CreateInvoiceInput{
		AccountID: card.ID, Month: 4, Year: 2025,
	})
	require.NoError(t, err)

	require.NoError(t, env.db.Model(invoice).Update("status", models.InvoiceStatusPaid).Error)
	err = env.invoices.DeleteInvoice(env.user.ID, invoice.ID)
	assert.Equal(t, 400, apperr.StatusOf(err))

	require.NoError(t, env.db.Model(invoice).Update("status", models.InvoiceStatusOpen).Error)
	require.NoError(t, env.invoices.DeleteInvoice(env.user.ID, invoice.ID))

	_, err = env.invoices.GetInvoice(env.user.ID, invoice.ID)
	assert.Equal(t, 404, apperr.StatusOf(err))
}
