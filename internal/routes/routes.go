package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/example/thtstore/internal/config"
	"github.com/example/thtstore/internal/handlers"
	"github.com/example/thtstore/internal/middleware"
	"github.com/example/thtstore/internal/realtime"
	"github.com/example/thtstore/internal/repository"
	"github.com/example/thtstore/internal/services"
)

// Register wires all HTTP routes onto the app.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, log *logrus.Logger, mailq *services.MailQueue, hub *realtime.Hub) error {
	txnRepo := repository.NewTransactionRepo(db)
	payments, err := services.NewPaymentService(txnRepo, mailq, hub, cfg, log)
	if err != nil {
		return err
	}

	authHandler := handlers.NewAuthHandler(db, cfg, mailq, log)
	resetHandler := handlers.NewPasswordResetHandler(db, mailq, log)
	catalogHandler := handlers.NewCatalogHandler(db)
	productHandler := handlers.NewProductHandler(db)
	cartHandler := handlers.NewCartHandler(db)
	orderHandler := handlers.NewOrderHandler(db)
	profileHandler := handlers.NewProfileHandler(db)
	paymentHandler := handlers.NewPaymentHandler(payments, log)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	app.Use("/ws", realtime.UpgradeRequired)
	app.Get("/ws", hub.Handler())

	api := app.Group("/api")
	auth := middleware.AuthMiddleware(cfg)
	admin := middleware.RequireAdmin()

	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	authGroup.Post("/verify-email", authHandler.VerifyEmail)
	authGroup.Post("/login", authHandler.Login)
	authGroup.Get("/me", auth, authHandler.Me)
	authGroup.Post("/forgot-password", resetHandler.ForgotPassword)
	authGroup.Post("/verify-reset-code", resetHandler.VerifyResetCode)
	authGroup.Post("/reset-password", resetHandler.ResetPassword)

	categories := api.Group("/categories")
	categories.Get("/", catalogHandler.ListCategories)
	categories.Get("/:id", catalogHandler.GetCategory)
	categories.Post("/", auth, admin, catalogHandler.CreateCategory)
	categories.Put("/:id", auth, admin, catalogHandler.UpdateCategory)
	categories.Delete("/:id", auth, admin, catalogHandler.DeleteCategory)

	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)
	products.Post("/", auth, admin, productHandler.CreateProduct)
	products.Put("/:id", auth, admin, productHandler.UpdateProduct)
	products.Delete("/:id", auth, admin, productHandler.DeleteProduct)

	cart := api.Group("/cart", auth)
	cart.Get("/", cartHandler.GetCart)
	cart.Post("/items", cartHandler.AddItem)
	cart.Put("/items/:productId", cartHandler.UpdateItem)
	cart.Delete("/items/:productId", cartHandler.RemoveItem)
	cart.Delete("/", cartHandler.ClearCart)

	orders := api.Group("/orders", auth)
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/", orderHandler.ListOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Post("/:id/cancel", orderHandler.CancelOrder)

	adminGroup := api.Group("/admin", auth, admin)
	adminGroup.Get("/orders", orderHandler.AdminListOrders)
	adminGroup.Put("/orders/:id/status", orderHandler.AdminUpdateOrderStatus)

	profile := api.Group("/profile", auth)
	profile.Get("/", profileHandler.GetProfile)
	profile.Put("/", profileHandler.UpdateProfile)
	profile.Put("/password", profileHandler.ChangePassword)

	paymentsGroup := api.Group("/payments")
	paymentsGroup.Post("/transactions", paymentHandler.CreateTransaction)
	paymentsGroup.Post("/webhook", middleware.WebhookSignature(cfg.WebhookSecret, log), paymentHandler.Webhook)
	paymentsGroup.Get("/transactions/:transactionId", paymentHandler.GetTransaction)

	return nil
}
