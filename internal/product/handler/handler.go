package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/altave/settlement-service/internal/model"
	"github.com/altave/settlement-service/internal/product"
	"github.com/altave/settlement-service/internal/product/dto"
)

type ProductHandler struct {
	uc     product.UseCase
	logger *zap.Logger
}

func NewProductHandler(uc product.UseCase, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{uc: uc, logger: logger}
}

func (h *ProductHandler) Register(app *fiber.App) {
	api := app.Group("/api/v1")
	api.Post("/products", h.CreateListing)
	api.Get("/products/:id", h.GetListing)
}

func (h *ProductHandler) CreateListing(c *fiber.Ctx) error {
	var input dto.CreateListingInput
	if err := c.BodyParser(&input); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "BAD_REQUEST", "malformed request body")
	}

	p, err := h.uc.CreateListing(c.Context(), &input)
	if err != nil {
		if errors.Is(err, model.ErrInvalidListing) {
			return errorJSON(c, fiber.StatusBadRequest, "INVALID_LISTING", err.Error())
		}
		return h.internalError(c, err)
	}

	resp, err := dto.NewListingResponse(p)
	if err != nil {
		return h.internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *ProductHandler) GetListing(c *fiber.Ctx) error {
	p, err := h.uc.GetListing(c.Context(), c.Params("id"))
	if err != nil {
		if errors.Is(err, model.ErrProductNotFound) {
			return errorJSON(c, fiber.StatusNotFound, "NOT_FOUND", "product not found")
		}
		return h.internalError(c, err)
	}

	resp, err := dto.NewListingResponse(p)
	if err != nil {
		return h.internalError(c, err)
	}
	return c.JSON(resp)
}

func (h *ProductHandler) internalError(c *fiber.Ctx, err error) error {
	h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return errorJSON(c, fiber.StatusInternalServerError, "INTERNAL", "internal error")
}

func errorJSON(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg, "code": code})
}
