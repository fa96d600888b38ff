package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/gsPatrick/finance-os/internal/middleware"
	"github.com/gsPatrick/finance-os/internal/services"
	"github.com/gsPatrick/finance-os/models"
)

// TransactionHandler exposes the transaction lifecycle over HTTP.
type TransactionHandler struct {
	transactions *services.TransactionService
}

func NewTransactionHandler(transactions *services.TransactionService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// createTransactionRequest is the wire payload. Dates are strings so a
// malformed date yields a 400 rather than a JSON binding error.
type createTransactionRequest struct {
	AccountID   uint            `json:"accountId" binding:"required"`
	CategoryID  *uint           `json:"categoryId"`
	InvoiceID   *uint           `json:"invoiceId"`
	Description string          `json:"description" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Type        string          `json:"type" binding:"required,oneof=income expense"`
	Date        string          `json:"date" binding:"required"`
	Observation string          `json:"observation"`
	Forecast    bool            `json:"forecast"`

	Recurring          bool    `json:"recurring"`
	Frequency          *string `json:"frequency"`
	RecurringStartDate *string `json:"recurringStartDate"`
	Installment        bool    `json:"installment"`
	InstallmentCount   *int    `json:"installmentCount"`
	InstallmentUnit    *string `json:"installmentUnit"`
}

func (h *TransactionHandler) Create(c *gin.Context) {
	var req createTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := parseDate(req.Date)
	if err != nil {
		respondError(c, err)
		return
	}

	in := services.CreateTransactionInput{
		AccountID:        req.AccountID,
		CategoryID:       req.CategoryID,
		InvoiceID:        req.InvoiceID,
		Description:      req.Description,
		Amount:           req.Amount,
		Type:             models.TransactionType(req.Type),
		Date:             date,
		Observation:      req.Observation,
		Forecast:         req.Forecast,
		Recurring:        req.Recurring,
		Installment:      req.Installment,
		InstallmentCount: req.InstallmentCount,
	}
	if req.Frequency != nil {
		f := models.Frequency(*req.Frequency)
		in.Frequency = &f
	}
	if req.InstallmentUnit != nil {
		u := models.Frequency(*req.InstallmentUnit)
		in.InstallmentUnit = &u
	}
	if req.RecurringStartDate != nil {
		start, err := parseDate(*req.RecurringStartDate)
		if err != nil {
			respondError(c, err)
			return
		}
		in.RecurringStartDate = &start
	}

	trn, err := h.transactions.CreateTransaction(middleware.UserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trn)
}

func (h *TransactionHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	page, limit, offset := pageParams(c)

	opts := services.ListTransactionsOptions{
		Search: c.Query("search"),
		Limit:  limit,
		Offset: offset,
	}
	if v := c.Query("type"); v != "" {
		t := models.TransactionType(v)
		opts.Type = &t
	}
	if v := c.Query("status"); v != "" {
		s := models.TransactionStatus(v)
		opts.Status = &s
	}
	var err error
	if opts.AccountID, err = uintQuery(c, "accountId"); err != nil {
		respondError(c, err)
		return
	}
	if opts.CategoryID, err = uintQuery(c, "categoryId"); err != nil {
		respondError(c, err)
		return
	}
	if opts.InvoiceID, err = uintQuery(c, "invoiceId"); err != nil {
		respondError(c, err)
		return
	}
	if opts.StartDate, err = parseOptionalDate(c.Query("startDate")); err != nil {
		respondError(c, err)
		return
	}
	if opts.EndDate, err = parseOptionalDate(c.Query("endDate")); err != nil {
		respondError(c, err)
		return
	}

	rows, total, err := h.transactions.ListTransactions(userID, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(rows, total, page, limit))
}

func (h *TransactionHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	trn, err := h.transactions.GetTransaction(middleware.UserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trn)
}

type updateTransactionRequest struct {
	Description   *string          `json:"description"`
	Amount        *decimal.Decimal `json:"amount"`
	Type          *string          `json:"type" binding:"omitempty,oneof=income expense"`
	Date          *string          `json:"date"`
	Status        *string          `json:"status" binding:"omitempty,oneof=pending scheduled cleared"`
	AccountID     *uint            `json:"accountId"`
	CategoryID    *uint            `json:"categoryId"`
	InvoiceID     *uint            `json:"invoiceId"`
	DetachInvoice bool             `json:"detachInvoice"`
	Observation   *string          `json:"observation"`

	Recurring          *bool   `json:"recurring"`
	Frequency          *string `json:"frequency"`
	RecurringStartDate *string `json:"recurringStartDate"`
	Installment        *bool   `json:"installment"`
	InstallmentCount   *int    `json:"installmentCount"`
	InstallmentCurrent *int    `json:"installmentCurrent"`
	InstallmentUnit    *string `json:"installmentUnit"`
}

func (h *TransactionHandler) Update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var req updateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := services.UpdateTransactionInput{
		Description:        req.Description,
		Amount:             req.Amount,
		AccountID:          req.AccountID,
		CategoryID:         req.CategoryID,
		InvoiceID:          req.InvoiceID,
		DetachInvoice:      req.DetachInvoice,
		Observation:        req.Observation,
		Recurring:          req.Recurring,
		Installment:        req.Installment,
		InstallmentCount:   req.InstallmentCount,
		InstallmentCurrent: req.InstallmentCurrent,
	}
	if req.Type != nil {
		t := models.TransactionType(*req.Type)
		in.Type = &t
	}
	if req.Status != nil {
		s := models.TransactionStatus(*req.Status)
		in.Status = &s
	}
	if req.Frequency != nil {
		f := models.Frequency(*req.Frequency)
		in.Frequency = &f
	}
	if req.InstallmentUnit != nil {
		u := models.Frequency(*req.InstallmentUnit)
		in.InstallmentUnit = &u
	}
	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			respondError(c, err)
			return
		}
		in.Date = &date
	}
	if req.RecurringStartDate != nil {
		start, err := parseDate(*req.RecurringStartDate)
		if err != nil {
			respondError(c, err)
			return
		}
		in.RecurringStartDate = &start
	}

	trn, err := h.transactions.UpdateTransaction(middleware.UserID(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trn)
}

func (h *TransactionHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	deleteSeries := c.Query("deleteSeries") == "true"

	if err := h.transactions.DeleteTransaction(middleware.UserID(c), id, deleteSeries); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "transaction deleted"})
}
