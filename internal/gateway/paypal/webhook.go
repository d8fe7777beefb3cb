package paypal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wichananm65/pet-shop-storefront/internal/gateway"
)

const (
	EventCaptureCompleted = "PAYMENT.CAPTURE.COMPLETED"
	EventCaptureDenied    = "PAYMENT.CAPTURE.DENIED"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

// WebhookEvent is the subset of a PayPal webhook notification the receiver
// acts on. For capture events the resource is the capture itself.
type WebhookEvent struct {
	ID           string          `json:"id"`
	EventType    string          `json:"event_type"`
	ResourceType string          `json:"resource_type"`
	Resource     webhookResource `json:"resource"`
}

type webhookResource struct {
	captureResource
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.EventType == "" {
		return WebhookEvent{}, fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	}
	return ev, nil
}

// RemoteOrderID is the order the captured payment belongs to.
func (e WebhookEvent) RemoteOrderID() string {
	return e.Resource.SupplementaryData.RelatedIDs.OrderID
}

// Capture converts the event resource into a capture. Only meaningful for
// PAYMENT.CAPTURE.* events.
func (e WebhookEvent) Capture() (gateway.Capture, error) {
	if e.Resource.ID == "" {
		return gateway.Capture{}, fmt.Errorf("%w: capture without id", ErrMalformedEvent)
	}
	return toCapture(e.Resource.captureResource)
}
