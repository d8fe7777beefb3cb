package address

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pet-shop-storefront/internal/order"
	"github.com/wichananm65/pet-shop-storefront/internal/user"
)

// Handler delegates address operations to the address service.
type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{service: s}
}

func (h *Handler) RegisterProtectedRoutes(app fiber.Router) {
	app.Get("/api/v1/address", h.getAddresses)
	app.Post("/api/v1/address", h.addAddress)
	app.Patch("/api/v1/address", h.updateAddress)
	app.Delete("/api/v1/address", h.deleteAddress)
}

type addressRequest struct {
	AddressID int    `json:"addressId"`
	Label     string `json:"label"`
	order.ShippingAddress
}

type addressDeleteRequest struct {
	AddressID int `json:"addressId"`
}

func writeError(c *fiber.Ctx, err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": verr.Error()})
	case errors.Is(err, ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"message": "address not found"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": err.Error()})
	}
}

func (h *Handler) getAddresses(c *fiber.Ctx) error {
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	addrs, err := h.service.List(c.UserContext(), userID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(addrs)
}

func (h *Handler) addAddress(c *fiber.Ctx) error {
	payload := new(addressRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	addr, err := h.service.Add(c.UserContext(), Address{UserID: userID, Label: payload.Label, ShippingAddress: payload.ShippingAddress})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(addr)
}

func (h *Handler) updateAddress(c *fiber.Ctx) error {
	payload := new(addressRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.AddressID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid addressId"})
	}
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	addr, err := h.service.Update(c.UserContext(), Address{
		AddressID: payload.AddressID, UserID: userID, Label: payload.Label, ShippingAddress: payload.ShippingAddress,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(addr)
}

func (h *Handler) deleteAddress(c *fiber.Ctx) error {
	payload := new(addressDeleteRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	if payload.AddressID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "invalid addressId"})
	}
	userID, err := user.GetUserIDFromCtx(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "unauthorized"})
	}
	if err := h.service.Delete(c.UserContext(), userID, payload.AddressID); err != nil {
		return writeError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
