package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AccountType distinguishes cash accounts from credit cards.
type AccountType string

const (
	AccountTypeCash       AccountType = "cash"
	AccountTypeCreditCard AccountType = "credit_card"
)

// Account is either a cash account carrying a balance, or a credit card
// carrying a limit and the closing/due day configuration used to build
// monthly invoices. Card-only fields are nil on cash accounts and the
// balance is meaningful only on cash accounts.
type Account struct {
	gorm.Model
	UserID      uint            `json:"userId" gorm:"not null;index"`
	User        User            `json:"-" gorm:"foreignKey:UserID"`
	Name        string          `json:"name" gorm:"not null"`
	Type        AccountType     `json:"type" gorm:"not null;index"`
	Balance     decimal.Decimal `json:"balance" gorm:"type:decimal(15,2);default:0"`
	Brand       string          `json:"brand"`
	FinalDigits string          `json:"finalDigits"`
	Color       string          `json:"color"`
	Icon        string          `json:"icon"`

	// Credit-card configuration. ClosingDay and DueDay are days of month
	// (1-31), clamped to the last day of shorter months when an invoice
	// period is resolved.
	CreditLimit *decimal.Decimal `json:"creditLimit" gorm:"type:decimal(15,2)"`
	ClosingDay  *int             `json:"closingDay"`
	DueDay      *int             `json:"dueDay"`
}

// IsCreditCard reports whether the account is a credit card.
func (a *Account) IsCreditCard() bool {
	return a.Type == AccountTypeCreditCard
}
