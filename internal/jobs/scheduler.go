// Package jobs runs the scheduled batch operations on a timer. The
// scheduler only triggers the exported service operations; tests invoke
// those operations directly.
package jobs

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/gsPatrick/finance-os/internal/services"
)

// Scheduler triggers the due-transaction clearing and invoice closing
// runs. Jobs are registered on a single cron runner, so ticks never
// overlap.
type Scheduler struct {
	cron         *cron.Cron
	transactions *services.TransactionService
	invoices     *services.InvoiceService
}

// New builds a scheduler over the two batch operations.
func New(transactions *services.TransactionService, invoices *services.InvoiceService) *Scheduler {
	return &Scheduler{
		cron:         cron.New(),
		transactions: transactions,
		invoices:     invoices,
	}
}

// Start registers the jobs with their cron expressions and launches the
// timer.
func (s *Scheduler) Start(clearDueSpec, closeInvoicesSpec string) error {
	if _, err := s.cron.AddFunc(clearDueSpec, s.runClearDue); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(closeInvoicesSpec, s.runCloseInvoices); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("scheduler started", "clear_due", clearDueSpec, "close_invoices", closeInvoicesSpec)
	return nil
}

// Stop halts the timer, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

func (s *Scheduler) runClearDue() {
	runID := uuid.NewString()
	start := time.Now()
	slog.Info("clear-due run starting", "run_id", runID)

	count, err := s.transactions.ClearDueTransactions()
	if err != nil {
		slog.Error("clear-due run failed", "run_id", runID, "error", err)
		return
	}
	slog.Info("clear-due run done", "run_id", runID, "cleared", count, "duration", time.Since(start))
}

func (s *Scheduler) runCloseInvoices() {
	runID := uuid.NewString()
	start := time.Now()
	slog.Info("invoice-closing run starting", "run_id", runID)

	count, err := s.invoices.CloseInvoices()
	if err != nil {
		slog.Error("invoice-closing run failed", "run_id", runID, "error", err)
		return
	}
	slog.Info("invoice-closing run done", "run_id", runID, "closed", count, "duration", time.Since(start))
}
