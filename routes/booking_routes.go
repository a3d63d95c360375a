package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wanjalasam/bus_booking/handlers"
	"github.com/wanjalasam/bus_booking/middleware"
)

func BookingRoutes(app *fiber.App, bookings *handlers.BookingHandler) {
	api := app.Group("/api/v1")

	b := api.Group("/bookings", middleware.Protected())
	b.Post("", bookings.Create)
	b.Get("", bookings.GetMine)
}
