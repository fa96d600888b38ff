package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InvoiceStatus is the lifecycle state of a credit-card invoice:
// open while accumulating expenses, closed after its period ends,
// paid once fully settled.
type InvoiceStatus string

const (
	InvoiceStatusOpen   InvoiceStatus = "open"
	InvoiceStatusClosed InvoiceStatus = "closed"
	InvoiceStatusPaid   InvoiceStatus = "paid"
)

// PaymentStatus tracks how much of a closed invoice has been settled.
type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "unpaid"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// Invoice aggregates the credit-card expenses of one billing period.
// At most one invoice exists per (account, year, month); the unique
// index enforces it at the store level.
type Invoice struct {
	gorm.Model
	UserID    uint `json:"userId" gorm:"not null;index"`
	User      User `json:"-" gorm:"foreignKey:UserID"`
	AccountID uint `json:"accountId" gorm:"not null;uniqueIndex:idx_invoices_period"`
	Month     int  `json:"month" gorm:"not null;uniqueIndex:idx_invoices_period;check:month >= 1 AND month <= 12"`
	Year      int  `json:"year" gorm:"not null;uniqueIndex:idx_invoices_period"`

	DueDate     time.Time `json:"dueDate" gorm:"type:date;not null"`
	ClosingDate time.Time `json:"closingDate" gorm:"type:date;not null"`

	// Total is incrementally maintained by the impact applier while the
	// invoice is open, and authoritatively recomputed at closing.
	Total         decimal.Decimal `json:"total" gorm:"type:decimal(15,2);default:0"`
	PaidAmount    decimal.Decimal `json:"paidAmount" gorm:"type:decimal(15,2);default:0"`
	Status        InvoiceStatus   `json:"status" gorm:"not null;default:'open';index"`
	PaymentStatus PaymentStatus   `json:"paymentStatus" gorm:"not null;default:'unpaid'"`

	CreditCard   *Account      `json:"creditCard,omitempty" gorm:"foreignKey:AccountID"`
	Transactions []Transaction `json:"transactions,omitempty" gorm:"foreignKey:InvoiceID"`
}

// Payable reports whether the invoice can receive a payment.
func (i *Invoice) Payable() bool {
	return i.Status == InvoiceStatusClosed
}
