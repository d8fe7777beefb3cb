package cart

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pet-shop-storefront/internal/product"
	"github.com/wichananm65/pet-shop-storefront/internal/user"
)

// Handler delegates cart operations to the cart service.
// This keeps cart-specific HTTP routing isolated.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

// RegisterRoutes mounts the cart routes. They accept either a signed-in user
// or a guest token, so they sit behind the optional JWT middleware.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/api/v1/cart", h.getCart)
	app.Delete("/api/v1/cart", h.clearCart)
	app.Post("/api/v1/cart/items", h.addItem)
	app.Patch("/api/v1/cart/items/:productId<int>", h.updateItem)
	app.Delete("/api/v1/cart/items/:productId<int>", h.removeItem)
	app.Post("/api/v1/cart/merge", h.merge)
}

type addItemRequest struct {
	ProductID int    `json:"productID"`
	Quantity  int    `json:"quantity"`
	SKU       string `json:"sku,omitempty"`
}

type updateItemRequest struct {
	Quantity int    `json:"quantity"`
	SKU      string `json:"sku,omitempty"`
}

// OwnerFromCtx prefers the authenticated user and falls back to the guest
// token header.
func OwnerFromCtx(c *fiber.Ctx) (Owner, error) {
	if id, err := user.GetUserIDFromCtx(c); err == nil && id > 0 {
		return UserOwner(id), nil
	}
	if tok := user.GuestTokenFromCtx(c); tok != "" {
		return GuestOwner(tok), nil
	}
	return Owner{}, ErrInvalidOwner
}

func (h *Handler) getCart(c *fiber.Ctx) error {
	owner, err := OwnerFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}
	cart, err := h.service.Get(c.UserContext(), owner)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) addItem(c *fiber.Ctx) error {
	payload := new(addItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.Quantity == 0 {
		payload.Quantity = 1
	}
	owner, err := OwnerFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}

	cart, err := h.service.AddItem(c.UserContext(), owner, AddItemInput{
		ProductID: payload.ProductID,
		Quantity:  payload.Quantity,
		SKU:       payload.SKU,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(cart)
}

func (h *Handler) updateItem(c *fiber.Ctx) error {
	productID, err := strconv.Atoi(c.Params("productId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid productId"})
	}
	payload := new(updateItemRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	owner, err := OwnerFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}

	cart, err := h.service.UpdateItem(c.UserContext(), owner, productID, payload.SKU, payload.Quantity)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) removeItem(c *fiber.Ctx) error {
	productID, err := strconv.Atoi(c.Params("productId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid productId"})
	}
	owner, err := OwnerFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}

	cart, err := h.service.RemoveItem(c.UserContext(), owner, productID, c.Query("sku"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cart)
}

func (h *Handler) clearCart(c *fiber.Ctx) error {
	owner, err := OwnerFromCtx(c)
	if err != nil {
		return writeError(c, err)
	}
	if _, err := h.service.Clear(c.UserContext(), owner); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) merge(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	tok := user.GuestTokenFromCtx(c)
	if tok == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "missing guest token"})
	}
	cart, err := h.service.Merge(c.UserContext(), tok, userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(cart)
}

func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrInvalidOwner):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "missing owner identity"})
	case errors.Is(err, ErrInvalidQuantity):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	case errors.Is(err, product.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "product not found"})
	case errors.Is(err, ErrVariantNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "variant not found"})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrItemNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": err.Error()})
	default:
		slog.ErrorContext(c.UserContext(), "cart request failed", "method", c.Method(), "path", c.Path(), "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}
}
