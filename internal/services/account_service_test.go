package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gsPatrick/finance-os/internal/apperr"
	"github.com/gsPatrick/finance-os/models"
)

func TestCreateAccountFieldSplit(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 1))
	svc := NewAccountService(env.db)

	cash, err := svc.CreateAccount(env.user.ID, CreateAccountInput{
		Name: "Wallet", Type: models.AccountTypeCash, InitialBalance: ptr(dec("100")),
	})
	require.NoError(t, err)
	assert.True(t, cash.Balance.Equal(dec("100")))

	_, err = svc.CreateAccount(env.user.ID, CreateAccountInput{
		Name: "Wallet 2", Type: models.AccountTypeCash, ClosingDay: ptr(10),
	})
	assert.Equal(t, 400, apperr.StatusOf(err))

	_, err = svc.CreateAccount(env.user.ID, CreateAccountInput{
		Name: "Card", Type: models.AccountTypeCreditCard, InitialBalance: ptr(dec("100")),
	})
	assert.Equal(t, 400, apperr.StatusOf(err))

	_, err = svc.CreateAccount(env.user.ID, CreateAccountInput{
		Name: "Card", Type: models.AccountTypeCreditCard, ClosingDay: ptr(32), DueDay: ptr(10),
	})
	assert.Equal(t, 400, apperr.StatusOf(err))

	card, err := svc.CreateAccount(env.user.ID, CreateAccountInput{
		Name: "Card", Type: models.AccountTypeCreditCard,
		CreditLimit: ptr(dec("5000")), ClosingDay: ptr(10), DueDay: ptr(20),
	})
	require.NoError(t, err)
	assert.True(t, card.IsCreditCard())
	assert.True(t, card.Balance.IsZero())
}

func TestUpdateAccountCardFieldsOnCashRejected(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 1))
	svc := NewAccountService(env.db)
	cash := env.createCashAccount(t, "0")

	_, err := svc.UpdateAccount(env.user.ID, cash.ID, UpdateAccountInput{ClosingDay: ptr(10)})
	assert.Equal(t, 400, apperr.StatusOf(err))

	renamed, err := svc.UpdateAccount(env.user.ID, cash.ID, UpdateAccountInput{Name: ptr("Main Wallet")})
	require.NoError(t, err)
	assert.Equal(t, "Main Wallet", renamed.Name)
}

func TestDeleteAccountBlockedByTransactions(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 15))
	svc := NewAccountService(env.db)
	account := env.createCashAccount(t, "0")

	trn, err := env.transactions.CreateTransaction(env.user.ID, CreateTransactionInput{
		AccountID: account.ID, Description: "x", Amount: dec("10"),
		Type: models.TransactionTypeIncome, Date: env.now,
	})
	require.NoError(t, err)

	err = svc.DeleteAccount(env.user.ID, account.ID)
	assert.Equal(t, 400, apperr.StatusOf(err))

	require.NoError(t, env.transactions.DeleteTransaction(env.user.ID, trn.ID, false))
	require.NoError(t, svc.DeleteAccount(env.user.ID, account.ID))
}

func TestAccountOwnershipScoping(t *testing.T) {
	env := newTestEnv(t, date(2025, time.March, 1))
	svc := NewAccountService(env.db)
	account := env.createCashAccount(t, "0")

	other := models.User{Name: "Other", Email: "other@example.com", PasswordHash: "x"}
	require.NoError(t, env.db.Create(&other).Error)

	_, err := svc.GetAccount(other.ID, account.ID)
	assert.Equal(t, 404, apperr.StatusOf(err))
}
