package order

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pet-shop-storefront/internal/user"
)

// Handler exposes order history. Orders are created and settled by checkout,
// never through these routes.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Get("/api/v1/orders", h.getOrders)
	app.Get("/api/v1/orders/:id", h.getOrder)
}

type orderDetail struct {
	Order
	Transactions []Transaction `json:"transactions"`
}

// getOrders returns the signed-in user's orders, newest first. Guests only
// see single orders by id.
func (h *Handler) getOrders(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	orders, err := h.service.ListByUser(c.UserContext(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(orders)
}

func (h *Handler) getOrder(c *fiber.Ctx) error {
	userID, _ := user.GetUserIDFromCtx(c)
	guest := user.GuestTokenFromCtx(c)
	if userID <= 0 && guest == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}

	o, err := h.service.GetForOwner(c.UserContext(), c.Params("id"), userID, guest)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "order not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	txns, err := h.service.Transactions(c.UserContext(), o.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
	return c.JSON(orderDetail{Order: o, Transactions: txns})
}
