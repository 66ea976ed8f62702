package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/cankoseoglu/fax-web-app/internal/config"
	"github.com/cankoseoglu/fax-web-app/internal/handlers"
	"github.com/cankoseoglu/fax-web-app/internal/middleware"
	"github.com/cankoseoglu/fax-web-app/internal/services"
)

// Register wires up all HTTP routes.
func Register(app *fiber.App, cfg *config.Config, txns *services.TransactionService, pricing *services.PricingService, payment services.PaymentGateway, fax services.FaxGateway) {
	transactionHandler := handlers.NewTransactionHandler(txns, pricing)
	webhookHandler := handlers.NewWebhookHandler(txns, payment, fax)
	adminHandler := handlers.NewAdminHandler(txns, cfg)

	api := app.Group("/api")

	api.Get("/price", transactionHandler.Price)

	api.Post("/transactions", transactionHandler.Create)
	api.Get("/transactions/:id", transactionHandler.Get)

	webhooks := api.Group("/webhooks")
	webhooks.Post("/payment", webhookHandler.Payment)
	webhooks.Post("/fax", webhookHandler.Fax)

	admin := api.Group("/admin")
	admin.Post("/login", adminHandler.Login)
	admin.Get("/transactions", middleware.AdminAuthMiddleware(cfg), adminHandler.ListTransactions)
}
