package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/altave/settlement-service/internal/gateway"
	"github.com/altave/settlement-service/internal/model"
	"github.com/altave/settlement-service/internal/settlement"
	"github.com/altave/settlement-service/internal/settlement/dto"
)

type SettlementHandler struct {
	uc     settlement.UseCase
	logger *zap.Logger
}

func NewSettlementHandler(uc settlement.UseCase, logger *zap.Logger) *SettlementHandler {
	return &SettlementHandler{uc: uc, logger: logger}
}

func (h *SettlementHandler) Register(app *fiber.App) {
	api := app.Group("/api/v1")
	api.Post("/checkout", h.Checkout)
	api.Get("/transactions/:id", h.GetTransaction)
	api.Post("/transactions/:id/release", h.Release)
	api.Post("/transactions/:id/dispute", h.Dispute)

	app.Post("/webhooks/gateway", h.GatewayWebhook)
}

func (h *SettlementHandler) Checkout(c *fiber.Ctx) error {
	var input dto.CheckoutInput
	if err := c.BodyParser(&input); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "BAD_REQUEST", "malformed request body")
	}

	result, err := h.uc.Checkout(c.Context(), &input)
	if err != nil {
		return h.checkoutError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (h *SettlementHandler) GetTransaction(c *fiber.Ctx) error {
	txn, items, err := h.uc.Get(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, model.ErrTransactionNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "NOT_FOUND", "transaction not found")
		}
		return h.internalError(c, err)
	}
	return c.JSON(fiber.Map{"transaction": txn, "items": items})
}

func (h *SettlementHandler) Release(c *fiber.Ctx) error {
	txn, err := h.uc.Release(c.Context(), c.Params("id"))
	if err != nil {
		return h.transitionError(c, err)
	}
	return c.JSON(fiber.Map{"transaction": txn})
}

func (h *SettlementHandler) Dispute(c *fiber.Ctx) error {
	txn, err := h.uc.Dispute(c.Context(), c.Params("id"))
	if err != nil {
		return h.transitionError(c, err)
	}
	return c.JSON(fiber.Map{"transaction": txn})
}

// GatewayWebhook acks processed and duplicate deliveries alike; the gateway
// retries anything else.
func (h *SettlementHandler) GatewayWebhook(c *fiber.Ctx) error {
	var ev gateway.Event
	if err := c.BodyParser(&ev); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "BAD_REQUEST", "malformed event payload")
	}
	if err := ev.Validate(); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "BAD_EVENT", err.Error())
	}

	if err := h.uc.HandleGatewayEvent(c.Context(), &ev); err != nil {
		h.logger.Error("webhook processing failed",
			zap.String("event_id", ev.ID), zap.String("event_type", string(ev.Type)), zap.Error(err))
		return errorJSON(c, fiber.StatusInternalServerError, "PROCESSING_FAILED", "event could not be processed")
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (h *SettlementHandler) checkoutError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrOutOfStock):
		return errorJSON(c, fiber.StatusConflict, "OUT_OF_STOCK", err.Error())
	case errors.Is(err, model.ErrProductUnavailable):
		return errorJSON(c, fiber.StatusUnprocessableEntity, "PRODUCT_UNAVAILABLE", err.Error())
	case errors.Is(err, model.ErrProductNotFound):
		return errorJSON(c, fiber.StatusUnprocessableEntity, "PRODUCT_NOT_FOUND", err.Error())
	case errors.Is(err, model.ErrCrossSellerCart),
		errors.Is(err, model.ErrEmptyCart),
		errors.Is(err, model.ErrInvalidQuantity),
		errors.Is(err, model.ErrInvalidParty):
		return errorJSON(c, fiber.StatusBadRequest, "INVALID_CHECKOUT", err.Error())
	case errors.Is(err, model.ErrPaymentDeclined):
		return errorJSON(c, fiber.StatusPaymentRequired, "PAYMENT_DECLINED", err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *SettlementHandler) transitionError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, model.ErrTransactionNotFound):
		return errorJSON(c, fiber.StatusNotFound, "NOT_FOUND", "transaction not found")
	case errors.Is(err, model.ErrInvalidEscrowTransition),
		errors.Is(err, model.ErrInvalidPayoutTransition),
		errors.Is(err, model.ErrEscrowNotReleased):
		return errorJSON(c, fiber.StatusConflict, "INVALID_TRANSITION", err.Error())
	default:
		return h.internalError(c, err)
	}
}

func (h *SettlementHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL", "internal error")
}

func errorJSON(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
}
