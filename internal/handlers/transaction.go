package handlers

import (
	"errors"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/cankoseoglu/fax-web-app/internal/services"
)

// TransactionHandler exposes the client-facing fax submission and status
// polling endpoints, plus the pure pricing lookup.
type TransactionHandler struct {
	svc     *services.TransactionService
	pricing *services.PricingService
}

// NewTransactionHandler constructs TransactionHandler.
func NewTransactionHandler(svc *services.TransactionService, pricing *services.PricingService) *TransactionHandler {
	return &TransactionHandler{svc: svc, pricing: pricing}
}

// Create accepts a multipart form with countryCode, recipientNumber and one
// or more document files, opens a payment session and stores the
// transaction as pending.
func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form required")
	}

	countryCode := formValue(form.Value, "countryCode")
	recipientNumber := formValue(form.Value, "recipientNumber")

	files := form.File["documents"]
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "at least one document is required")
	}

	// pageCount is derived from the upload: one page per file. A client
	// that also sends the field must agree with what it uploaded.
	if declared := formValue(form.Value, "pageCount"); declared != "" {
		count, err := strconv.Atoi(declared)
		if err != nil || count != len(files) {
			return fiber.NewError(fiber.StatusBadRequest, "pageCount does not match uploaded documents")
		}
	}

	documents := make([][]byte, 0, len(files))
	for _, file := range files {
		opened, err := file.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable document "+file.Filename)
		}
		content, err := io.ReadAll(opened)
		opened.Close()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "unreadable document "+file.Filename)
		}
		documents = append(documents, content)
	}

	txn, err := h.svc.Create(c.Context(), services.CreateParams{
		CountryCode:     countryCode,
		RecipientNumber: recipientNumber,
		Documents:       documents,
	})
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	return c.JSON(fiber.Map{
		"id":               txn.ID,
		"paymentSessionId": txn.PaymentSessionID,
	})
}

// Get returns the current state of a transaction for client polling.
func (h *TransactionHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, "transaction not found")
	}

	txn, err := h.svc.Get(c.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "transaction not found")
		}
		return err
	}

	response := fiber.Map{
		"status":          txn.Status,
		"amount":          txn.Amount,
		"recipientNumber": txn.RecipientNumber,
		"pageCount":       txn.PageCount,
		"countryCode":     txn.CountryCode,
		"createdAt":       txn.CreatedAt,
	}
	if txn.Error != "" {
		response["error"] = txn.Error
	}

	return c.JSON(response)
}

// Price quotes the total for a country/page combination without side
// effects.
func (h *TransactionHandler) Price(c *fiber.Ctx) error {
	pages, err := strconv.Atoi(c.Query("pages"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid pages")
	}

	total, err := h.pricing.Quote(c.Query("country"), pages)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	return c.JSON(fiber.Map{"total": total.InexactFloat64()})
}

func formValue(values map[string][]string, key string) string {
	if v, ok := values[key]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}
