package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/wanjalasam/bus_booking/apperr"
)

var validate = validator.New()

// currentUserID pulls the authenticated user out of the JWT claims.
func currentUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, apperr.ForbiddenErr("missing authentication")
	}
	claims := token.Claims.(jwt.MapClaims)
	raw, _ := claims["user_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.ForbiddenErr("invalid authentication token")
	}
	return id, nil
}

// respondErr renders every boundary error as the structured
// {error, code, retryable} payload. Raw internal errors never reach the
// client.
func respondErr(c *fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)
	body := fiber.Map{
		"error": apperr.PublicMessage(err),
	}
	if ae, ok := apperr.As(err); ok {
		body["code"] = string(ae.Kind)
		if ae.Retryable {
			body["retryable"] = true
		}
	}
	return c.Status(status).JSON(body)
}

func parseUUIDParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperr.ValidationErr("invalid " + name + " format")
	}
	return id, nil
}

func parseUUIDParamValue(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.ValidationErr("invalid id format")
	}
	return id, nil
}
