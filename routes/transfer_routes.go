package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wanjalasam/bus_booking/handlers"
	"github.com/wanjalasam/bus_booking/middleware"
)

func TransferRoutes(app *fiber.App, transfers *handlers.TransferHandler) {
	api := app.Group("/api/v1")

	t := api.Group("/transfers", middleware.Protected())
	t.Post("", transfers.Request)
	t.Post("/:transferId/cancel", transfers.Cancel)

	staff := api.Group("/staff/transfers", middleware.Protected(), middleware.StaffRequired())
	staff.Post("/:transferId/review", transfers.Review)
}
