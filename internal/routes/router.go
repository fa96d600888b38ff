package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/gsPatrick/finance-os/internal/handlers"
	"github.com/gsPatrick/finance-os/internal/middleware"
)

// Handlers groups everything the router wires. The composition root
// builds all of these once at startup.
type Handlers struct {
	Auth         *handlers.AuthHandler
	Accounts     *handlers.AccountHandler
	Categories   *handlers.CategoryHandler
	Transactions *handlers.TransactionHandler
	Invoices     *handlers.InvoiceHandler
}

// Setup registers all application routes. Everything under /api requires
// a valid token.
func Setup(r *gin.Engine, h Handlers, db *gorm.DB, rdb *redis.Client, jwtSecret string) {
	auth := r.Group("/api/auth")
	{
		auth.POST("/register", h.Auth.Register)
		auth.POST("/login", h.Auth.Login)
	}

	api := r.Group("/api")
	api.Use(middleware.Auth(db, rdb, jwtSecret))
	{
		accounts := api.Group("/accounts")
		{
			accounts.GET("", h.Accounts.List)
			accounts.POST("", h.Accounts.Create)
			accounts.GET("/:id", h.Accounts.Get)
			accounts.PUT("/:id", h.Accounts.Update)
			accounts.DELETE("/:id", h.Accounts.Delete)
		}

		categories := api.Group("/categories")
		{
			categories.GET("", h.Categories.List)
			categories.POST("", h.Categories.Create)
			categories.GET("/:id", h.Categories.Get)
			categories.PUT("/:id", h.Categories.Update)
			categories.DELETE("/:id", h.Categories.Delete)
		}

		transactions := api.Group("/transactions")
		{
			transactions.GET("", h.Transactions.List)
			transactions.POST("", h.Transactions.Create)
			transactions.GET("/:id", h.Transactions.Get)
			transactions.PUT("/:id", h.Transactions.Update)
			transactions.DELETE("/:id", h.Transactions.Delete)
		}

		invoices := api.Group("/invoices")
		{
			invoices.GET("", h.Invoices.List)
			invoices.POST("", h.Invoices.Create)
			invoices.GET("/:id", h.Invoices.Get)
			invoices.PUT("/:id", h.Invoices.Update)
			invoices.DELETE("/:id", h.Invoices.Delete)
			invoices.GET("/:id/transactions", h.Invoices.Transactions)
			invoices.POST("/:id/pay", h.Invoices.Pay)
		}
	}
}
