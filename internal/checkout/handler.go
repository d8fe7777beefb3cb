package checkout

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pet-shop-storefront/internal/address"
	"github.com/wichananm65/pet-shop-storefront/internal/cart"
	"github.com/wichananm65/pet-shop-storefront/internal/gateway"
	"github.com/wichananm65/pet-shop-storefront/internal/order"
	"github.com/wichananm65/pet-shop-storefront/internal/pricing"
	"github.com/wichananm65/pet-shop-storefront/internal/product"
	"github.com/wichananm65/pet-shop-storefront/internal/user"
)

// Handler maps the public checkout routes onto the two configured gateways.
// Gateway A confirms by capturing a remote order, gateway B by a signed
// payment id.
type Handler struct {
	service  *Service
	gatewayA string
	gatewayB string
}

func NewHandler(s *Service, gatewayA, gatewayB string) *Handler {
	return &Handler{service: s, gatewayA: gatewayA, gatewayB: gatewayB}
}

func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Post("/checkout/gatewayA/create", h.create(h.gatewayA, false))
	app.Post("/checkout/gatewayA/verify", h.verifyCapture)
	app.Post("/checkout/gatewayB/create", h.create(h.gatewayB, true))
	app.Post("/checkout/gatewayB/verify", h.verifySignature)
}

type createRequest struct {
	AddressID       int                    `json:"addressId"`
	ShippingAddress *order.ShippingAddress `json:"shippingAddress"`
}

type createResponse struct {
	ID            string `json:"id"`
	RemoteOrderID string `json:"remoteOrderId"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	TotalAmount   int64  `json:"totalAmount"`
	PublicKey     string `json:"publicKey,omitempty"`
}

type captureRequest struct {
	RemoteOrderID string `json:"remoteOrderId"`
	// OrderID is the name the PayPal JS SDK uses in onApprove.
	OrderID string `json:"orderID"`
}

type signatureRequest struct {
	OrderID   string `json:"razorpay_order_id"`
	PaymentID string `json:"razorpay_payment_id"`
	Signature string `json:"razorpay_signature"`
}

func identityFromCtx(c *fiber.Ctx) Identity {
	id, _ := user.GetUserIDFromCtx(c)
	return Identity{UserID: id, GuestToken: user.GuestTokenFromCtx(c)}
}

func (h *Handler) create(gatewayName string, withPublicKey bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payload := new(createRequest)
		if len(c.Body()) > 0 {
			if err := c.BodyParser(payload); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
			}
		}
		res, err := h.service.Create(c.UserContext(), Request{
			Identity:  identityFromCtx(c),
			Gateway:   gatewayName,
			AddressID: payload.AddressID,
			Shipping:  payload.ShippingAddress,
		})
		if err != nil {
			return writeError(c, err)
		}
		out := createResponse{
			ID:            res.Order.ID,
			RemoteOrderID: res.RemoteOrderID,
			Amount:        res.Amount.StringFixed(2),
			Currency:      res.Currency,
			TotalAmount:   res.Order.TotalAmount,
		}
		if withPublicKey {
			out.PublicKey = res.PublicKey
		}
		return c.Status(fiber.StatusCreated).JSON(out)
	}
}

func (h *Handler) verifyCapture(c *fiber.Ctx) error {
	payload := new(captureRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	remoteID := strings.TrimSpace(payload.RemoteOrderID)
	if remoteID == "" {
		remoteID = strings.TrimSpace(payload.OrderID)
	}
	o, err := h.service.Finalize(c.UserContext(), h.gatewayA, gateway.Confirmation{
		RemoteOrderID: remoteID,
		Source:        gateway.SourceClient,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "message": "payment captured", "orderId": o.ID})
}

func (h *Handler) verifySignature(c *fiber.Ctx) error {
	payload := new(signatureRequest)
	if err := c.BodyParser(payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": err.Error()})
	}
	o, err := h.service.Finalize(c.UserContext(), h.gatewayB, gateway.Confirmation{
		RemoteOrderID: strings.TrimSpace(payload.OrderID),
		PaymentID:     strings.TrimSpace(payload.PaymentID),
		Signature:     strings.TrimSpace(payload.Signature),
		Source:        gateway.SourceClient,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "orderId": o.ID})
}

// StatusFor maps checkout errors onto HTTP status codes.
func StatusFor(err error) int {
	var (
		verr  *ValidationError
		averr *address.ValidationError
	)
	switch {
	case errors.As(err, &verr), errors.As(err, &averr),
		errors.Is(err, cart.ErrInvalidOwner), errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, ErrEmptyCart), errors.Is(err, pricing.ErrEmptyOrder), errors.Is(err, pricing.ErrAmountOverflow),
		errors.Is(err, gateway.ErrInvalidSignature), errors.Is(err, gateway.ErrPaymentNotCompleted):
		return fiber.StatusBadRequest
	case errors.Is(err, order.ErrNotFound), errors.Is(err, product.ErrNotFound),
		errors.Is(err, address.ErrNotFound), errors.Is(err, gateway.ErrUnknownGateway):
		return fiber.StatusNotFound
	case errors.Is(err, order.ErrNotPending):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

func writeError(c *fiber.Ctx, err error) error {
	status := StatusFor(err)
	msg := err.Error()
	var gerr *gateway.Error
	switch {
	case errors.Is(err, gateway.ErrOutcomeUnknown):
		msg = "payment outcome unknown, please retry"
	case errors.As(err, &gerr):
		msg = "payment gateway error"
	case status == fiber.StatusInternalServerError:
		msg = "internal error"
	}
	return c.Status(status).JSON(fiber.Map{"message": msg})
}
