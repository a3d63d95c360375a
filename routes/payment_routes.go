package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wanjalasam/bus_booking/handlers"
	"github.com/wanjalasam/bus_booking/middleware"
)

func PaymentRoutes(app *fiber.App, payments *handlers.PaymentHandler, webhooks *handlers.WebhookHandler) {
	api := app.Group("/api/v1")

	// Webhooks authenticate with signatures, not JWTs.
	api.Post("/webhooks/:gateway", webhooks.Receive)

	p := api.Group("/payments", middleware.Protected())
	p.Post("/initiate", payments.Initiate)
	p.Get("/:paymentId/status", payments.PollStatus)

	staff := api.Group("/staff/payments", middleware.Protected(), middleware.StaffRequired())
	staff.Post("/:paymentId/confirm-cash", payments.ConfirmCash)
	staff.Post("/refunds/:taskId/settle", payments.SettleRefund)
	staff.Get("/:paymentId/webhook-logs", payments.WebhookLogs)
}
