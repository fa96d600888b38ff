package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType is the direction of a transaction.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// TransactionStatus tracks whether a transaction's financial impact has
// been applied. Only cleared transactions affect balances and invoices.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusScheduled TransactionStatus = "scheduled"
	TransactionStatusCleared   TransactionStatus = "cleared"
)

// Frequency is the interval between occurrences of a recurring series,
// and doubles as the unit between installments.
type Frequency string

const (
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyBiweekly  Frequency = "biweekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyBimonthly Frequency = "bimonthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Transaction is a single categorized movement on an account. A series
// master (Recurring or Installment set, ParentID nil) additionally holds
// the series configuration; generated occurrences reference the master
// through ParentID and never carry series configuration themselves.
type Transaction struct {
	gorm.Model
	UserID      uint              `json:"userId" gorm:"not null;index:idx_transactions_user_date"`
	AccountID   uint              `json:"accountId" gorm:"not null;index"`
	CategoryID  *uint             `json:"categoryId" gorm:"index"`
	InvoiceID   *uint             `json:"invoiceId" gorm:"index"`
	ParentID    *uint             `json:"parentId" gorm:"index"`
	Description string            `json:"description" gorm:"not null"`
	Amount      decimal.Decimal   `json:"amount" gorm:"type:decimal(15,2);not null"`
	Type        TransactionType   `json:"type" gorm:"not null;index"`
	Date        time.Time         `json:"date" gorm:"type:date;not null;index:idx_transactions_user_date"`
	Status      TransactionStatus `json:"status" gorm:"not null;default:'pending';index"`
	Observation string            `json:"observation"`

	// Recurring series configuration, master only.
	Recurring          bool       `json:"recurring" gorm:"not null;default:false"`
	Frequency          *Frequency `json:"frequency"`
	RecurringStartDate *time.Time `json:"recurringStartDate" gorm:"type:date"`

	// Installment series configuration. Count and Unit live on the master;
	// InstallmentCurrent is the 1-based position within the series and is
	// set on every member of a multi-installment series.
	Installment        bool       `json:"installment" gorm:"not null;default:false"`
	InstallmentCount   *int       `json:"installmentCount"`
	InstallmentCurrent *int       `json:"installmentCurrent"`
	InstallmentUnit    *Frequency `json:"installmentUnit"`

	Account  *Account      `json:"account,omitempty" gorm:"foreignKey:AccountID"`
	Category *Category     `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	Invoice  *Invoice      `json:"invoice,omitempty" gorm:"foreignKey:InvoiceID"`
	Parent   *Transaction  `json:"parent,omitempty" gorm:"foreignKey:ParentID"`
	Children []Transaction `json:"children,omitempty" gorm:"foreignKey:ParentID"`
}

// IsSeriesMaster reports whether the transaction is the first of a
// recurring or installment series and therefore owns its children.
func (t *Transaction) IsSeriesMaster() bool {
	return t.Recurring || t.Installment
}

// IsCleared reports whether the transaction's impact has been applied.
func (t *Transaction) IsCleared() bool {
	return t.Status == TransactionStatusCleared
}
