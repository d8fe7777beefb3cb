// Package webhook receives provider-initiated payment notifications and
// replays them through checkout finalization.
package webhook

import (
	"context"
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/wichananm65/pet-shop-storefront/internal/gateway"
	"github.com/wichananm65/pet-shop-storefront/internal/gateway/paypal"
	"github.com/wichananm65/pet-shop-storefront/internal/metrics"
	"github.com/wichananm65/pet-shop-storefront/internal/order"
)

type Finalizer interface {
	Finalize(ctx context.Context, gatewayName string, conf gateway.Confirmation) (order.Order, error)
}

// Handler answers 200 for everything it understood or chose to ignore, so the
// provider stops retrying. Only failures worth a retry answer 500.
//
// Event signatures are NOT verified: any POST to the route is trusted.
type Handler struct {
	finalizer Finalizer
	gateway   string
	dedupe    Deduper
	metrics   *metrics.Metrics
	log       *slog.Logger
}

func NewHandler(f Finalizer, gatewayName string, dedupe Deduper, m *metrics.Metrics, log *slog.Logger) *Handler {
	if dedupe == nil {
		dedupe = NewMemoryDeduper()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Handler{finalizer: f, gateway: gatewayName, dedupe: dedupe, metrics: m, log: log}
}

func (h *Handler) RegisterRoutes(app fiber.Router) {
	app.Post("/webhooks/gatewayA", h.receive)
}

func (h *Handler) receive(c *fiber.Ctx) error {
	ctx := c.UserContext()
	ev, err := paypal.ParseWebhookEvent(c.Body())
	if err != nil {
		h.metrics.Webhook("unknown", "malformed")
		h.log.WarnContext(ctx, "malformed webhook ignored", "error", err)
		return c.SendString("OK")
	}
	log := h.log.With("event_id", ev.ID, "event_type", ev.EventType)

	seen, err := h.seen(ctx, ev.ID)
	if err != nil {
		log.WarnContext(ctx, "webhook dedupe lookup failed", "error", err)
	}
	if seen {
		h.metrics.Webhook(ev.EventType, "duplicate")
		return c.SendString("OK")
	}

	switch ev.EventType {
	case paypal.EventCaptureCompleted, paypal.EventCaptureDenied:
	default:
		h.metrics.Webhook(ev.EventType, "ignored")
		log.DebugContext(ctx, "webhook event ignored")
		return c.SendString("OK")
	}

	remoteID := ev.RemoteOrderID()
	capture, err := ev.Capture()
	if err != nil || remoteID == "" {
		h.metrics.Webhook(ev.EventType, "malformed")
		log.WarnContext(ctx, "capture event without order reference", "error", err)
		return c.SendString("OK")
	}

	_, err = h.finalizer.Finalize(ctx, h.gateway, gateway.Confirmation{
		RemoteOrderID: remoteID,
		Capture:       &capture,
		Source:        gateway.SourceWebhook,
	})
	switch {
	case err == nil:
		h.metrics.Webhook(ev.EventType, "processed")
	case errors.Is(err, order.ErrNotFound),
		errors.Is(err, order.ErrNotPending),
		errors.Is(err, gateway.ErrPaymentNotCompleted):
		h.metrics.Webhook(ev.EventType, "rejected")
		log.InfoContext(ctx, "webhook did not settle order", "gateway_order_id", remoteID, "reason", err.Error())
	default:
		h.metrics.Webhook(ev.EventType, "error")
		log.ErrorContext(ctx, "webhook processing failed", "gateway_order_id", remoteID, "error", err)
		return c.Status(fiber.StatusInternalServerError).SendString("retry")
	}

	if ev.ID != "" {
		if err := h.dedupe.Mark(ctx, ev.ID); err != nil {
			log.WarnContext(ctx, "webhook dedupe mark failed", "error", err)
		}
	}
	return c.SendString("OK")
}

func (h *Handler) seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	return h.dedupe.Seen(ctx, eventID)
}
