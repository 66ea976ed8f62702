package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cankoseoglu/fax-web-app/internal/config"
	"github.com/cankoseoglu/fax-web-app/internal/services"
	"github.com/cankoseoglu/fax-web-app/internal/utils"
)

// AdminHandler manages the operator-only endpoints.
type AdminHandler struct {
	svc *services.TransactionService
	cfg *config.Config
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(svc *services.TransactionService, cfg *config.Config) *AdminHandler {
	return &AdminHandler{svc: svc, cfg: cfg}
}

type adminLoginRequest struct {
	APIKey string `json:"apiKey"`
}

// Login exchanges the operator key for a bearer token.
func (h *AdminHandler) Login(c *fiber.Ctx) error {
	var req adminLoginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if h.cfg.AdminKeyHash == "" || !utils.CheckSecret(h.cfg.AdminKeyHash, req.APIKey) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid operator key")
	}

	token, err := utils.GenerateAdminToken(h.cfg.JWTSecret, h.cfg.TokenExpires)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"token": token})
}

// ListTransactions returns transaction history, optionally filtered by
// status and country.
func (h *AdminHandler) ListTransactions(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	filter := services.ListFilter{
		Status:      strings.TrimSpace(c.Query("status")),
		CountryCode: strings.TrimSpace(c.Query("country")),
	}

	txns, total, err := h.svc.List(c.Context(), filter, pg.Limit, pg.Offset)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    txns,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}
