package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/wanjalasam/bus_booking/apperr"
	"github.com/wanjalasam/bus_booking/models"
	"github.com/wanjalasam/bus_booking/services"
)

type PaymentHandler struct {
	payments   *services.PaymentService
	reconciler *services.ReconcileService
}

func NewPaymentHandler(payments *services.PaymentService, reconciler *services.ReconcileService) *PaymentHandler {
	return &PaymentHandler{payments: payments, reconciler: reconciler}
}

type InitiatePaymentRequest struct {
	BookingID   string `json:"booking_id" validate:"required,uuid"`
	Method      string `json:"method" validate:"required"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

func (h *PaymentHandler) Initiate(c *fiber.Ctx) error {
	userID, err := currentUserID(c)
	if err != nil {
		return respondErr(c, err)
	}

	var req InitiatePaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return respondErr(c, apperr.ValidationErr("cannot parse JSON"))
	}
	if err := validate.Struct(req); err != nil {
		return respondErr(c, apperr.ValidationErr(err.Error()))
	}

	method, ok := models.ParsePaymentMethod(req.Method)
	if !ok {
		return respondErr(c, apperr.ValidationErr("unsupported payment method"))
	}
	bookingID, err := parseUUIDParamValue(req.BookingID)
	if err != nil {
		return respondErr(c, err)
	}

	result, err := h.payments.Initiate(c.Context(), bookingID, userID, method, req.PhoneNumber)
	if err != nil {
		return respondErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *PaymentHandler) PollStatus(c *fiber.Ctx) error {
	paymentID, err := parseUUIDParam(c, "paymentId")
	if err != nil {
		return respondErr(c, err)
	}

	payment, err := h.payments.PollStatus(c.Context(), paymentID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(payment)
}

func (h *PaymentHandler) ConfirmCash(c *fiber.Ctx) error {
	staffID, err := currentUserID(c)
	if err != nil {
		return respondErr(c, err)
	}
	paymentID, err := parseUUIDParam(c, "paymentId")
	if err != nil {
		return respondErr(c, err)
	}

	payment, err := h.payments.ConfirmCashPayment(c.Context(), paymentID, staffID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(payment)
}

func (h *PaymentHandler) SettleRefund(c *fiber.Ctx) error {
	staffID, err := currentUserID(c)
	if err != nil {
		return respondErr(c, err)
	}
	taskID, err := parseUUIDParam(c, "taskId")
	if err != nil {
		return respondErr(c, err)
	}

	task, err := h.payments.SettleRefundTask(c.Context(), taskID, staffID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(task)
}

func (h *PaymentHandler) WebhookLogs(c *fiber.Ctx) error {
	paymentID, err := parseUUIDParam(c, "paymentId")
	if err != nil {
		return respondErr(c, err)
	}

	logs, err := h.reconciler.Logs(c.Context(), paymentID)
	if err != nil {
		return respondErr(c, err)
	}
	return c.JSON(logs)
}
