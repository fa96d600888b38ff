package main

import (
	"log/slog"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/gsPatrick/finance-os/config"
	"github.com/gsPatrick/finance-os/internal/handlers"
	"github.com/gsPatrick/finance-os/internal/jobs"
	"github.com/gsPatrick/finance-os/internal/routes"
	"github.com/gsPatrick/finance-os/internal/services"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	db, err := config.ConnectDB(cfg)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	if err := config.Migrate(db); err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
	slog.Info("connected to database")

	rdb := config.ConnectRedis(cfg)

	// Composition root: every collaborator is wired here, once.
	invoiceService := services.NewInvoiceService(db, nil)
	transactionService := services.NewTransactionService(db, invoiceService, nil)
	accountService := services.NewAccountService(db)
	categoryService := services.NewCategoryService(db)
	authService := services.NewAuthService(db, cfg.JWTSecret)

	h := routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		Accounts:     handlers.NewAccountHandler(accountService),
		Categories:   handlers.NewCategoryHandler(categoryService),
		Transactions: handlers.NewTransactionHandler(transactionService),
		Invoices:     handlers.NewInvoiceHandler(invoiceService),
	}

	if cfg.SchedulerOn {
		scheduler := jobs.New(transactionService, invoiceService)
		if err := scheduler.Start(cfg.ClearDueSpec, cfg.CloseInvoiceSpec); err != nil {
			slog.Error("scheduler failed to start", "error", err)
			os.Exit(1)
		}
		defer scheduler.Stop()
	}

	r := gin.Default()
	routes.Setup(r, h, db, rdb, cfg.JWTSecret)

	slog.Info("server listening", "port", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
