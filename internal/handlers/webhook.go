package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/cankoseoglu/fax-web-app/internal/services"
)

// Signature headers for incoming webhooks.
const (
	paymentSignatureHeader = "X-Payment-Signature"
	faxSignatureHeader     = "X-Fax-Signature"
)

// WebhookHandler receives the asynchronous callbacks from the payment
// processor and the fax carrier and feeds verified events into the
// orchestrator.
type WebhookHandler struct {
	svc     *services.TransactionService
	payment services.PaymentGateway
	fax     services.FaxGateway
}

// NewWebhookHandler constructs WebhookHandler.
func NewWebhookHandler(svc *services.TransactionService, payment services.PaymentGateway, fax services.FaxGateway) *WebhookHandler {
	return &WebhookHandler{svc: svc, payment: payment, fax: fax}
}

// Payment handles the payment gateway callback. The response is sent as
// soon as signature verification and the compare-and-set are done; the fax
// submission itself runs in the background so gateway-side retry timers
// never race a slow carrier call.
func (h *WebhookHandler) Payment(c *fiber.Ctx) error {
	payload := c.Body()

	event, err := h.payment.VerifyWebhook(payload, c.Get(paymentSignatureHeader))
	if err != nil {
		log.Printf("[Payment] Webhook rejected: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "webhook signature verification failed",
		})
	}

	txn, err := h.svc.HandlePaymentEvent(c.Context(), event)
	if err != nil {
		log.Printf("[Payment] Webhook processing failed: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "failed to process payment event")
	}

	if txn != nil {
		go h.svc.DispatchFax(context.Background(), txn)
	}

	return c.JSON(fiber.Map{"received": true})
}

// Fax handles the carrier's delivery-status callback. Events that no
// stored transaction correlates with are logged and answered with a 404;
// nothing is transitioned.
func (h *WebhookHandler) Fax(c *fiber.Ctx) error {
	event, err := h.fax.ParseWebhook(c.Body(), c.Get(faxSignatureHeader))
	if err != nil {
		if errors.Is(err, services.ErrSignatureInvalid) {
			log.Printf("[Fax] Webhook rejected: %v", err)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "webhook signature verification failed",
			})
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := h.svc.HandleFaxEvent(c.Context(), event); err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "unknown fax id")
		}
		log.Printf("[Fax] Webhook processing failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to update fax status",
		})
	}

	return c.JSON(fiber.Map{"success": true})
}
