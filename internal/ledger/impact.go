// Package ledger applies and reverts the financial impact of a single
// cleared transaction: cash balances move by the signed amount, and
// credit-card expenses attached to an invoice move the invoice total.
package ledger

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/gsPatrick/finance-os/internal/apperr"
	"github.com/gsPatrick/finance-os/models"
)

// Apply records the impact of trn. Must be called exactly once per
// transition into cleared status, inside the same transaction scope as
// the triggering mutation. account and invoice may be nil, in which case
// they are loaded from tx; a missing account is an internal fault, a
// missing invoice is tolerated with a warning (the invoice total is a
// derived cache repaired at the next closing).
func Apply(tx *gorm.DB, trn *models.Transaction, account *models.Account, invoice *models.Invoice) error {
	return shift(tx, trn, account, invoice, false)
}

// Revert undoes a previously applied impact. Must be called exactly once
// before a cleared transaction's amount/type/account/invoice changes or
// before its deletion.
func Revert(tx *gorm.DB, trn *models.Transaction, account *models.Account, invoice *models.Invoice) error {
	return shift(tx, trn, account, invoice, true)
}

func shift(tx *gorm.DB, trn *models.Transaction, account *models.Account, invoice *models.Invoice, revert bool) error {
	if account == nil {
		account = &models.Account{}
		if err := tx.First(account, trn.AccountID).Error; err != nil {
			slog.Error("impact: account not found", "transaction_id", trn.ID, "account_id", trn.AccountID, "error", err)
			return apperr.Internal("account %d not found while applying financial impact", trn.AccountID)
		}
	}

	switch {
	case account.Type == models.AccountTypeCash:
		delta := trn.Amount
		if trn.Type == models.TransactionTypeExpense {
			delta = delta.Neg()
		}
		if revert {
			delta = delta.Neg()
		}
		if err := tx.Model(&models.Account{}).Where("id = ?", account.ID).
			UpdateColumn("balance", gorm.Expr("balance + ?", delta)).Error; err != nil {
			return err
		}
		account.Balance = account.Balance.Add(delta)
		slog.Info("impact: cash balance updated",
			"account_id", account.ID, "transaction_id", trn.ID, "delta", delta.String())

	case account.Type == models.AccountTypeCreditCard && trn.Type == models.TransactionTypeExpense:
		if trn.InvoiceID == nil {
			return nil
		}
		if invoice == nil {
			invoice = &models.Invoice{}
			if err := tx.First(invoice, *trn.InvoiceID).Error; err != nil {
				// Soft-consistency gap: the transaction itself is the source
				// of truth and the total is recomputed at closing.
				slog.Warn("impact: invoice not found, total not updated",
					"transaction_id", trn.ID, "invoice_id", *trn.InvoiceID)
				return nil
			}
		}
		delta := trn.Amount
		if revert {
			delta = delta.Neg()
		}
		if err := tx.Model(&models.Invoice{}).Where("id = ?", invoice.ID).
			UpdateColumn("total", gorm.Expr("total + ?", delta)).Error; err != nil {
			return err
		}
		invoice.Total = invoice.Total.Add(delta)
		slog.Info("impact: invoice total updated",
			"invoice_id", invoice.ID, "transaction_id", trn.ID, "delta", delta.String())
	}

	return nil
}
