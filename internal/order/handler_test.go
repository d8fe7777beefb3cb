package order

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/wichananm65/pet-shop-storefront/internal/user"
)

func makeAppWithOrderHandler(h *Handler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if v := c.Get("X-User-ID"); v != "" {
			if id, err := strconv.Atoi(v); err == nil {
				c.Locals("user", &jwt.Token{Claims: jwt.MapClaims{"user_id": id}})
			}
		}
		return c.Next()
	})
	h.RegisterRoutes(app)
	return app
}

func TestOrderRoutes(t *testing.T) {
	svc := NewService(NewInMemoryRepository(), 0)
	openTestOrder(t, svc, "o-1", "order_1")
	guest := "guest-abc"
	if _, err := svc.Open(context.Background(), Order{
		ID: "o-guest", GuestToken: &guest, CartOwner: CartOwner{GuestToken: &guest},
		TotalAmount: 100, Currency: "INR", Gateway: "paypal",
		PaymentDetails: PaymentDetails{GatewayOrderID: "PP-9"},
	}); err != nil {
		t.Fatalf("open guest order: %v", err)
	}
	app := makeAppWithOrderHandler(NewHandler(svc))

	res, _ := app.Test(httptest.NewRequest("GET", "/api/v1/orders", nil))
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous history, got %d", res.StatusCode)
	}

	req := httptest.NewRequest("GET", "/api/v1/orders", nil)
	req.Header.Set("X-User-ID", "7")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	var list []Order
	if err := json.NewDecoder(res.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list) != 1 || list[0].ID != "o-1" {
		t.Fatalf("unexpected history %+v", list)
	}

	req = httptest.NewRequest("GET", "/api/v1/orders/o-1", nil)
	req.Header.Set("X-User-ID", "8")
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404 for another user's order, got %d", res.StatusCode)
	}

	req = httptest.NewRequest("GET", "/api/v1/orders/o-guest", nil)
	req.Header.Set(user.GuestTokenHeader, guest)
	res, _ = app.Test(req)
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected guest to read own order, got %d", res.StatusCode)
	}
	var detail struct {
		ID            string        `json:"id"`
		PaymentStatus PaymentStatus `json:"paymentStatus"`
		Transactions  []Transaction `json:"transactions"`
	}
	if err := json.NewDecoder(res.Body).Decode(&detail); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if detail.ID != "o-guest" || detail.PaymentStatus != PaymentPending || len(detail.Transactions) != 0 {
		t.Fatalf("unexpected detail %+v", detail)
	}
}
