package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/cankoseoglu/fax-web-app/internal/config"
	"github.com/cankoseoglu/fax-web-app/internal/database"
	"github.com/cankoseoglu/fax-web-app/internal/routes"
	"github.com/cankoseoglu/fax-web-app/internal/services"
)

func main() {
	cfg := config.Load()
	db := database.Connect(cfg.DatabaseURL)

	pricing, err := services.NewPricingService(cfg)
	if err != nil {
		log.Fatalf("invalid pricing configuration: %v", err)
	}

	payment := services.NewPaymentService(cfg)
	fax := services.NewFaxService(cfg)
	txns := services.NewTransactionService(db, pricing, payment, fax)

	app := fiber.New(fiber.Config{
		AppName:   "Fax Service",
		BodyLimit: 32 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(logger.New())

	routes.Register(app, cfg, txns, pricing, payment, fax)

	if cfg.PendingTTL > 0 {
		reconciler := services.NewReconciler(txns, cfg.PendingTTL, cfg.ReconcileInterval)
		go reconciler.Run(context.Background())
	}

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
