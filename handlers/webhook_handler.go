package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/wanjalasam/bus_booking/services"
)

type WebhookHandler struct {
	reconciler *services.ReconcileService
}

func NewWebhookHandler(reconciler *services.ReconcileService) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

// Receive handles POST /webhooks/:gateway. The raw body is passed through
// untouched so signature verification sees exactly what the provider signed.
func (h *WebhookHandler) Receive(c *fiber.Ctx) error {
	gateway := c.Params("gateway")
	signature := extractSignature(c)

	result, err := h.reconciler.Reconcile(c.Context(), gateway, c.Body(), signature)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(result)
}

// extractSignature accepts either a dedicated signature header or an
// authorization-style bearer header; which one a provider sends is
// gateway-dependent.
func extractSignature(c *fiber.Ctx) string {
	if sig := c.Get("X-Signature"); sig != "" {
		return sig
	}
	if sig := c.Get("X-Webhook-Signature"); sig != "" {
		return sig
	}
	auth := c.Get("Authorization")
	return strings.TrimPrefix(auth, "Bearer ")
}
