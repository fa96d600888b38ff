package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/gsPatrick/finance-os/models"
)

// newTestDB opens an isolated in-memory database migrated with the full
// schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Account{},
		&models.Category{},
		&models.Invoice{},
		&models.Transaction{},
	))
	return db
}

// testEnv bundles the services under test with a frozen clock.
type testEnv struct {
	db           *gorm.DB
	invoices     *InvoiceService
	transactions *TransactionService
	now          time.Time
	user         models.User
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	db := newTestDB(t)
	clock := func() time.Time { return now }
	invoices := NewInvoiceService(db, clock)
	transactions := NewTransactionService(db, invoices, clock)

	user := models.User{Name: "Test User", Email: "user@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&user).Error)

	return &testEnv{
		db:           db,
		invoices:     invoices,
		transactions: transactions,
		now:          now,
		user:         user,
	}
}

func (e *testEnv) createCashAccount(t *testing.T, balance string) *models.Account {
	t.Helper()
	account := models.Account{
		UserID:  e.user.ID,
		Name:    "Wallet",
		Type:    models.AccountTypeCash,
		Balance: dec(balance),
	}
	require.NoError(t, e.db.Create(&account).Error)
	return &account
}

func (e *testEnv) createCard(t *testing.T, closingDay, dueDay int) *models.Account {
	t.Helper()
	limit := dec("5000")
	account := models.Account{
		UserID:      e.user.ID,
		Name:        "Platinum",
		Type:        models.AccountTypeCreditCard,
		CreditLimit: &limit,
		ClosingDay:  &closingDay,
		DueDay:      &dueDay,
	}
	require.NoError(t, e.db.Create(&account).Error)
	return &account
}

func (e *testEnv) reloadAccount(t *testing.T, id uint) *models.Account {
	t.Helper()
	var account models.Account
	require.NoError(t, e.db.First(&account, id).Error)
	return &account
}

func (e *testEnv) reloadInvoice(t *testing.T, id uint) *models.Invoice {
	t.Helper()
	var invoice models.Invoice
	require.NoError(t, e.db.First(&invoice, id).Error)
	return &invoice
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T {
	return &v
}
