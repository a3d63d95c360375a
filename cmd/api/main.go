package main

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/wanjalasam/bus_booking/apperr"
	configs "github.com/wanjalasam/bus_booking/configs"
	"github.com/wanjalasam/bus_booking/database"
	"github.com/wanjalasam/bus_booking/gateways"
	"github.com/wanjalasam/bus_booking/handlers"
	"github.com/wanjalasam/bus_booking/jobs"
	"github.com/wanjalasam/bus_booking/models"
	"github.com/wanjalasam/bus_booking/notifications"
	"github.com/wanjalasam/bus_booking/routes"
	"github.com/wanjalasam/bus_booking/services"
	"github.com/wanjalasam/bus_booking/websocket"
)

func main() {
	db, err := database.Connect()
	if err != nil {
		log.Fatalf("🔥 Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("🔥 Failed to run migrations: %v", err)
	}
	if err := database.SeedAdmin(db); err != nil {
		log.Fatalf("🔥 Failed to seed admin user: %v", err)
	}

	registry, err := gateways.NewRegistry(gatewayConfig())
	if err != nil {
		log.Fatalf("🔥 Payment gateway configuration is invalid: %v", err)
	}
	log.Println("✅ Payment gateways configured successfully.")

	store := database.NewGormStore(db)

	sms := notifications.NewSMSService(
		configs.ConfigDefault("SMS_BASE_URL", "https://api.africastalking.com/version1"),
		configs.Config("SMS_USERNAME"),
		configs.Config("SMS_API_KEY"),
		configs.ConfigDefault("SMS_SENDER_ID", "BUSLINE"),
		func(id uuid.UUID) (*models.User, error) {
			var user models.User
			if err := db.First(&user, "id = ?", id).Error; err != nil {
				return nil, err
			}
			return &user, nil
		},
	)
	tickets := notifications.NewTicketClient(
		configs.Config("TICKET_SERVICE_URL"),
		configs.Config("TICKET_SERVICE_KEY"),
	)

	hub := websocket.NewHub()
	go hub.Run()

	payments := services.NewPaymentService(store, registry, sms, tickets, hub, time.Now)
	reconciler := services.NewReconcileService(store, registry, payments, time.Now)
	seats := services.NewSeatService(store)
	transfers := services.NewTransferService(store, seats, payments, hub, time.Now)

	c := cron.New()
	sweep := jobs.NewReconcileJob(store, payments)
	c.AddFunc("*/2 * * * *", sweep.SweepPendingPayments)
	go c.Start()
	log.Println("✅ Cron job for payment reconciliation scheduled successfully.")

	app := newApp()

	routes.AuthRoutes(app, handlers.NewAuthHandler(db))
	routes.BookingRoutes(app, handlers.NewBookingHandler(db, seats))
	routes.PaymentRoutes(app, handlers.NewPaymentHandler(payments, reconciler), handlers.NewWebhookHandler(reconciler))
	routes.TransferRoutes(app, handlers.NewTransferHandler(transfers))
	routes.FeedRoutes(app, handlers.NewFeedHandler(hub))

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})

	log.Println("✅ Server is running on port 8080")
	if err := app.Listen(":8080"); err != nil {
		log.Fatalf("🔥 Server failed to start: %v", err)
	}
}

func newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		Prefork:           false,
		AppName:           "Bus Booking",
		CaseSensitive:     true,
		StrictRouting:     true,
		EnablePrintRoutes: true,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if appErr, ok := apperr.As(err); ok {
				return c.Status(apperr.HTTPStatus(err)).JSON(fiber.Map{
					"error":     apperr.PublicMessage(err),
					"code":      string(appErr.Kind),
					"retryable": appErr.Retryable,
				})
			}
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			log.Printf("[ERROR] %v | Path: %s | Method: %s", err, c.Path(), c.Method())
			return c.Status(code).JSON(fiber.Map{
				"status":  "error",
				"code":    code,
				"message": err.Error(),
			})
		},
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:  "*",
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowMethods:  "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		ExposeHeaders: "Content-Length, Authorization",
		MaxAge:        86400,
	}))
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Africa/Nairobi",
		Format:     "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "Welcome to Bus Booking API",
		})
	})

	return app
}

func gatewayConfig() gateways.Config {
	return gateways.Config{
		Mpesa: gateways.MpesaConfig{
			BaseURL:       configs.ConfigDefault("MPESA_BASE_URL", "https://uat.buni.kcbgroup.com"),
			TokenURL:      configs.Config("MPESA_TOKEN_URL"),
			APIKey:        configs.Config("MPESA_API_KEY"),
			APISecret:     configs.Config("MPESA_API_SECRET"),
			ShortCode:     configs.Config("MPESA_SHORT_CODE"),
			RouteCode:     configs.ConfigDefault("MPESA_ROUTE_CODE", "207"),
			CallbackURL:   configs.Config("MPESA_CALLBACK_URL"),
			WebhookSecret: configs.Config("MPESA_WEBHOOK_SECRET"),
		},
		Airtel: gateways.AirtelConfig{
			BaseURL:       configs.ConfigDefault("AIRTEL_BASE_URL", "https://openapiuat.airtel.africa"),
			ClientID:      configs.Config("AIRTEL_CLIENT_ID"),
			ClientSecret:  configs.Config("AIRTEL_CLIENT_SECRET"),
			WebhookSecret: configs.Config("AIRTEL_WEBHOOK_SECRET"),
		},
		Card: gateways.CardConfig{
			BaseURL:       configs.ConfigDefault("CARD_BASE_URL", "https://api.paystack.co"),
			SecretKey:     configs.Config("CARD_SECRET_KEY"),
			CallbackURL:   configs.Config("CARD_CALLBACK_URL"),
			WebhookSecret: configs.Config("CARD_WEBHOOK_SECRET"),
		},
	}
}
