package user

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "test-secret"

func makeApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(testSecret))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		id, err := GetUserIDFromCtx(c)
		if err != nil {
			return c.SendString("guest:" + GuestTokenFromCtx(c))
		}
		return c.JSON(fiber.Map{"userId": id})
	})
	return app
}

func signed(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func TestMiddleware_AuthenticatedUser(t *testing.T) {
	app := makeApp()
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed(t, jwt.MapClaims{"user_id": 42}))

	res, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := io.ReadAll(res.Body)
	if res.StatusCode != fiber.StatusOK || !strings.Contains(string(b), `"userId":42`) {
		t.Fatalf("expected user 42, got %d %s", res.StatusCode, string(b))
	}
}

func TestMiddleware_GuestPassesThrough(t *testing.T) {
	app := makeApp()
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(GuestTokenHeader, "  guest-abc  ")

	res, _ := app.Test(req)
	b, _ := io.ReadAll(res.Body)
	if res.StatusCode != fiber.StatusOK || string(b) != "guest:guest-abc" {
		t.Fatalf("expected guest passthrough, got %d %s", res.StatusCode, string(b))
	}
}

func TestMiddleware_BadTokenRejected(t *testing.T) {
	app := makeApp()
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")

	res, _ := app.Test(req)
	if res.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.StatusCode)
	}
}

func TestGuestTokenFromCtx_TooLong(t *testing.T) {
	app := makeApp()
	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set(GuestTokenHeader, strings.Repeat("x", maxGuestTokenLen+1))

	res, _ := app.Test(req)
	b, _ := io.ReadAll(res.Body)
	if string(b) != "guest:" {
		t.Fatalf("expected oversized token to be dropped, got %s", string(b))
	}
}
