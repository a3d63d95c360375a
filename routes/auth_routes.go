package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wanjalasam/bus_booking/handlers"
)

func AuthRoutes(app *fiber.App, auth *handlers.AuthHandler) {
	api := app.Group("/api/v1/auth")
	api.Post("/register", auth.Register)
	api.Post("/login", auth.Login)
}
