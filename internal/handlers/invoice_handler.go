package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/gsPatrick/finance-os/internal/middleware"
	"github.com/gsPatrick/finance-os/internal/services"
	"github.com/gsPatrick/finance-os/models"
)

// InvoiceHandler exposes the invoice lifecycle over HTTP.
type InvoiceHandler struct {
	invoices *services.InvoiceService
}

func NewInvoiceHandler(invoices *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

func (h *InvoiceHandler) List(c *gin.Context) {
	userID := middleware.UserID(c)
	page, limit, offset := pageParams(c)

	opts := services.ListInvoicesOptions{Limit: limit, Offset: offset}
	if v := c.Query("status"); v != "" {
		s := models.InvoiceStatus(v)
		opts.Status = &s
	}
	var err error
	if opts.AccountID, err = uintQuery(c, "accountId"); err != nil {
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

	rows, total, err := h.invoices.ListInvoices(userID, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, paginated(rows, total, page, limit))
}

func (h *InvoiceHandler) Get(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	invoice, err := h.invoices.GetInvoice(middleware.UserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

type createInvoiceRequest struct {
	AccountID   uint   `json:"accountId" binding:"required"`
	Month       int    `json:"month" binding:"required,min=1,max=12"`
	Year        int    `json:"year" binding:"required"`
	DueDate     string `json:"dueDate"`
	ClosingDate string `json:"closingDate"`
}

func (h *InvoiceHandler) Create(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := services.CreateInvoiceInput{
		AccountID: req.AccountID,
		Month:     req.Month,
		Year:      req.Year,
	}
	var err error
	if in.DueDate, err = parseOptionalDate(req.DueDate); err != nil {
		respondError(c, err)
		return
	}
	if in.ClosingDate, err = parseOptionalDate(req.ClosingDate); err != nil {
		respondError(c, err)
		return
	}

	invoice, err := h.invoices.CreateInvoice(nil, middleware.UserID(c), in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, invoice)
}

type updateInvoiceRequest struct {
	Status     *string          `json:"status" binding:"omitempty,oneof=open closed paid"`
	PaidAmount *decimal.Decimal `json:"paidAmount"`
	DueDate    *string          `json:"dueDate"`
}

func (h *InvoiceHandler) Update(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var req updateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := services.UpdateInvoiceInput{PaidAmount: req.PaidAmount}
	if req.Status != nil {
		s := models.InvoiceStatus(*req.Status)
		in.Status = &s
	}
	if req.DueDate != nil {
		due, err := parseDate(*req.DueDate)
		if err != nil {
			respondError(c, err)
			return
		}
		in.DueDate = &due
	}

	invoice, err := h.invoices.UpdateInvoice(middleware.UserID(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}

func (h *InvoiceHandler) Delete(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if err := h.invoices.DeleteInvoice(middleware.UserID(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "invoice deleted"})
}

func (h *InvoiceHandler) Transactions(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	rows, err := h.invoices.InvoiceTransactions(middleware.UserID(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": rows})
}

type payInvoiceRequest struct {
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	AccountID uint            `json:"accountId" binding:"required"`
	Date      string          `json:"date"`
}

func (h *InvoiceHandler) Pay(c *gin.Context) {
	id, err := idParam(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}

	var req payInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := services.PayInvoiceInput{
		Amount:    req.Amount,
		AccountID: req.AccountID,
	}
	if in.Date, err = parseOptionalDate(req.Date); err != nil {
		respondError(c, err)
		return
	}

	invoice, err := h.invoices.RegisterPayment(middleware.UserID(c), id, in)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, invoice)
}
