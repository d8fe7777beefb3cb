// Package gateway defines the contract every payment provider adapter
// implements, plus the shared error values and HTTP plumbing they use.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidSignature    = errors.New("invalid payment signature")
	ErrPaymentNotCompleted = errors.New("payment not completed")
	// ErrOutcomeUnknown means a capture was issued but its result could not
	// be established. The payment must not be captured again blindly.
	ErrOutcomeUnknown = errors.New("payment outcome unknown")
	ErrUnknownGateway = errors.New("unknown payment gateway")
)

// Source tells the adapter who delivered a confirmation.
type Source string

const (
	SourceClient  Source = "client"
	SourceWebhook Source = "webhook"
)

// RemoteOrder is the provider-side payment intent created at checkout.
type RemoteOrder struct {
	ID       string
	Amount   decimal.Decimal
	Currency string
	Status   string
}

// Capture is a confirmed collection of funds. ID is the provider's
// transaction id and the ledger's idempotency key.
type Capture struct {
	ID       string
	Amount   decimal.Decimal
	Currency string
	Status   string
}

// Confirmation carries whatever the provider needs to confirm a payment:
// a remote order id for capture-style gateways, payment id and signature for
// signature-style gateways, or an already completed capture from a webhook.
type Confirmation struct {
	RemoteOrderID string
	PaymentID     string
	Signature     string
	Capture       *Capture
	Source        Source
}

type Adapter interface {
	Name() string
	// Currency is the currency the provider charges in.
	Currency() string
	// PublicKey is handed to the browser SDK. Empty when not needed.
	PublicKey() string
	// CreateRemoteOrder opens a payment intent. reference is our order id.
	CreateRemoteOrder(ctx context.Context, amount decimal.Decimal, currency, reference string) (RemoteOrder, error)
	// Confirm captures or verifies a payment. It returns ErrInvalidSignature,
	// ErrPaymentNotCompleted, ErrOutcomeUnknown or an *Error.
	Confirm(ctx context.Context, c Confirmation) (Capture, error)
}

// Error is a provider call failure. It never carries credentials.
type Error struct {
	Gateway    string
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Gateway, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Gateway, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Registry resolves adapters by name.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Name()] = a
	}
	return r
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownGateway, name)
	}
	return a, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
