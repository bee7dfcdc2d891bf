package main

import (
	"context"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/example/thtstore/internal/config"
	"github.com/example/thtstore/internal/database"
	"github.com/example/thtstore/internal/realtime"
	"github.com/example/thtstore/internal/routes"
	"github.com/example/thtstore/internal/services"
)

func main() {
	cfg := config.Load()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	db := database.Connect(cfg.DatabaseURL)

	mailq := services.NewMailQueue(cfg, logger)
	defer mailq.Close()

	if err := mailq.Ping(context.Background()); err != nil {
		logger.WithError(err).Warn("redis unreachable, emails will not be delivered until it recovers")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go mailq.Run(ctx)

	hub := realtime.NewHub(logger)

	app := fiber.New(fiber.Config{
		AppName: "THT Store Backend",
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if fe, ok := err.(*fiber.Error); ok {
				code = fe.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
			})
		},
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.AllowedOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Signature",
	}))

	if err := routes.Register(app, db, cfg, logger, mailq, hub); err != nil {
		log.Fatalf("route registration failed: %v", err)
	}

	log.Printf("Starting server on :%s", cfg.AppPort)
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Fatalf("fiber.Listen error: %v", err)
	}
}
