// Package checkout turns a cart into a Pending order at a payment gateway and
// settles it once the gateway confirms the payment. Client confirmations and
// webhooks both go through Finalize.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/address"
	"github.com/wichananm65/pet-shop-storefront/internal/cart"
	"github.com/wichananm65/pet-shop-storefront/internal/events"
	"github.com/wichananm65/pet-shop-storefront/internal/gateway"
	"github.com/wichananm65/pet-shop-storefront/internal/metrics"
	"github.com/wichananm65/pet-shop-storefront/internal/order"
	"github.com/wichananm65/pet-shop-storefront/internal/pricing"
)

var ErrEmptyCart = errors.New("cart is empty")

// ValidationError is a request the caller has to fix. Its message is safe to
// show verbatim.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

type CartStore interface {
	Get(ctx context.Context, owner cart.Owner) (cart.Cart, error)
	Delete(ctx context.Context, owner cart.Owner) error
}

type Quoter interface {
	Resolve(ctx context.Context, c cart.Cart) (pricing.Quote, error)
}

type AddressBook interface {
	Get(ctx context.Context, userID, addressID int) (address.Address, error)
}

// Identity is the caller of a checkout: a signed-in user, a guest, or a user
// who still holds a guest token from before sign-in.
type Identity struct {
	UserID     int
	GuestToken string
}

type Request struct {
	Identity  Identity
	Gateway   string
	AddressID int
	Shipping  *order.ShippingAddress
}

type Result struct {
	Order         order.Order
	RemoteOrderID string
	Amount        decimal.Decimal
	Currency      string
	PublicKey     string
}

type Deps struct {
	Carts     CartStore
	Quoter    Quoter
	Converter *pricing.Converter
	Gateways  *gateway.Registry
	Orders    *order.Service
	Addresses AddressBook
	Events    events.Publisher
	Metrics   *metrics.Metrics
	Log       *slog.Logger
	// ConfirmTimeout bounds a confirmation once it is detached from the
	// request.
	ConfirmTimeout time.Duration
}

type Service struct {
	carts          CartStore
	quoter         Quoter
	converter      *pricing.Converter
	gateways       *gateway.Registry
	orders         *order.Service
	addresses      AddressBook
	events         events.Publisher
	metrics        *metrics.Metrics
	log            *slog.Logger
	confirmTimeout time.Duration
}

func NewService(d Deps) *Service {
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.ConfirmTimeout <= 0 {
		d.ConfirmTimeout = 30 * time.Second
	}
	return &Service{
		carts:          d.Carts,
		quoter:         d.Quoter,
		converter:      d.Converter,
		gateways:       d.Gateways,
		orders:         d.Orders,
		addresses:      d.Addresses,
		events:         d.Events,
		metrics:        d.Metrics,
		log:            d.Log,
		confirmTimeout: d.ConfirmTimeout,
	}
}

// Create prices the caller's cart, opens a payment intent at the gateway and
// stores the Pending order. The user cart wins; the guest cart is used only
// when the user cart is missing or empty. A gateway failure stores nothing.
func (s *Service) Create(ctx context.Context, req Request) (Result, error) {
	id := req.Identity
	id.GuestToken = strings.TrimSpace(id.GuestToken)
	if id.UserID <= 0 && id.GuestToken == "" {
		return Result{}, &ValidationError{Field: "owner", Reason: "sign in or send a guest token"}
	}
	adapter, err := s.gateways.Get(req.Gateway)
	if err != nil {
		return Result{}, err
	}
	shipping, err := s.shippingAddress(ctx, id, req)
	if err != nil {
		return Result{}, err
	}

	owner, c, err := s.checkoutCart(ctx, id)
	if err != nil {
		s.metrics.Checkout(adapter.Name(), "empty_cart")
		return Result{}, err
	}
	quote, err := s.quoter.Resolve(ctx, c)
	if err != nil {
		if errors.Is(err, pricing.ErrEmptyOrder) {
			s.metrics.Checkout(adapter.Name(), "empty_order")
		}
		return Result{}, err
	}

	currency := adapter.Currency()
	amount, err := s.converter.Convert(quote.Total, currency)
	if err != nil {
		return Result{}, err
	}

	orderID := uuid.NewString()
	remote, err := adapter.CreateRemoteOrder(ctx, amount, currency, orderID)
	if err != nil {
		s.metrics.Checkout(adapter.Name(), "gateway_error")
		s.log.ErrorContext(ctx, "create remote order failed",
			"order_id", orderID, "gateway", adapter.Name(), "error", err)
		return Result{}, err
	}

	o := order.Order{
		ID:              orderID,
		CartOwner:       cartOwner(owner),
		Lines:           orderLines(quote.Lines),
		TotalAmount:     quote.Total,
		Currency:        s.converter.Native(),
		ShippingAddress: shipping,
		Gateway:         adapter.Name(),
		PaymentDetails: order.PaymentDetails{
			GatewayOrderID:  remote.ID,
			ChargedAmount:   amount,
			ChargedCurrency: currency,
		},
	}
	if id.UserID > 0 {
		uid := id.UserID
		o.UserID = &uid
	}
	if id.GuestToken != "" {
		tok := id.GuestToken
		o.GuestToken = &tok
	}

	created, err := s.orders.Open(ctx, o)
	if err != nil {
		s.log.ErrorContext(ctx, "persist pending order failed",
			"order_id", orderID, "gateway", adapter.Name(), "gateway_order_id", remote.ID, "error", err)
		return Result{}, err
	}
	s.metrics.Checkout(adapter.Name(), "created")
	s.log.InfoContext(ctx, "checkout created",
		"order_id", created.ID, "gateway", adapter.Name(), "gateway_order_id", remote.ID,
		"total", created.TotalAmount, "charged", amount.String(), "charged_currency", currency)

	return Result{
		Order:         created,
		RemoteOrderID: remote.ID,
		Amount:        amount,
		Currency:      currency,
		PublicKey:     adapter.PublicKey(),
	}, nil
}

func (s *Service) shippingAddress(ctx context.Context, id Identity, req Request) (order.ShippingAddress, error) {
	if req.AddressID > 0 {
		if id.UserID <= 0 {
			return order.ShippingAddress{}, &ValidationError{Field: "addressId", Reason: "saved addresses require sign in"}
		}
		a, err := s.addresses.Get(ctx, id.UserID, req.AddressID)
		if err != nil {
			return order.ShippingAddress{}, err
		}
		return a.ShippingAddress, nil
	}
	if req.Shipping == nil {
		return order.ShippingAddress{}, &ValidationError{Field: "shippingAddress", Reason: "required"}
	}
	if missing := req.Shipping.Missing(); len(missing) > 0 {
		return order.ShippingAddress{}, &ValidationError{Field: "shippingAddress", Reason: "missing " + strings.Join(missing, ", ")}
	}
	return *req.Shipping, nil
}

func (s *Service) checkoutCart(ctx context.Context, id Identity) (cart.Owner, cart.Cart, error) {
	var candidates []cart.Owner
	if id.UserID > 0 {
		candidates = append(candidates, cart.UserOwner(id.UserID))
	}
	if id.GuestToken != "" {
		candidates = append(candidates, cart.GuestOwner(id.GuestToken))
	}
	for _, owner := range candidates {
		c, err := s.carts.Get(ctx, owner)
		if err != nil {
			return cart.Owner{}, cart.Cart{}, err
		}
		if !c.IsEmpty() {
			return owner, c, nil
		}
	}
	return cart.Owner{}, cart.Cart{}, ErrEmptyCart
}

// Finalize settles the order behind a gateway confirmation. A Paid order is
// not confirmed again, so duplicate confirmations from the client and the
// webhook are harmless; its ledger entry is rewritten idempotently in case an
// earlier attempt stopped between the status flip and the transaction insert.
// The gateway call and the ledger write run detached from ctx: once a capture
// is issued, a client disconnect must not lose its result.
func (s *Service) Finalize(ctx context.Context, gatewayName string, conf gateway.Confirmation) (order.Order, error) {
	adapter, err := s.gateways.Get(gatewayName)
	if err != nil {
		return order.Order{}, err
	}
	source := string(conf.Source)
	if source == "" {
		source = string(gateway.SourceClient)
	}
	if conf.RemoteOrderID == "" {
		return order.Order{}, &ValidationError{Field: "remoteOrderId", Reason: "required"}
	}

	o, err := s.orders.GetByGatewayOrderID(ctx, adapter.Name(), conf.RemoteOrderID)
	if err != nil {
		return order.Order{}, err
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.confirmTimeout)
	defer cancel()
	log := s.log.With("order_id", o.ID, "gateway", adapter.Name(), "gateway_order_id", conf.RemoteOrderID, "source", source)

	switch o.PaymentStatus {
	case order.PaymentPaid:
		if o.PaymentDetails.CaptureID == "" {
			s.metrics.Settlement(adapter.Name(), source, "already_paid")
			return o, nil
		}
		return s.settle(ctx, dctx, log, adapter.Name(), source, o, o.PaymentDetails)
	case order.PaymentFailed:
		s.metrics.Settlement(adapter.Name(), source, "already_failed")
		return o, order.ErrNotPending
	}

	capture, err := adapter.Confirm(dctx, conf)
	if err == nil {
		err = chargeMismatch(o.PaymentDetails, capture)
	}
	switch {
	case err == nil:
	case errors.Is(err, gateway.ErrInvalidSignature):
		// a forged confirmation must not be able to fail a real order
		s.metrics.Settlement(adapter.Name(), source, "invalid_signature")
		log.WarnContext(ctx, "payment signature rejected")
		return o, err
	case errors.Is(err, gateway.ErrPaymentNotCompleted):
		s.metrics.Settlement(adapter.Name(), source, "not_completed")
		log.WarnContext(ctx, "payment not completed", "error", err)
		if _, ferr := s.orders.Fail(dctx, o.ID, err.Error()); ferr != nil && !errors.Is(ferr, order.ErrNotPending) {
			log.ErrorContext(ctx, "mark order failed", "error", ferr)
		}
		return o, err
	default:
		s.metrics.Settlement(adapter.Name(), source, "gateway_error")
		log.ErrorContext(ctx, "payment confirmation failed", "error", err)
		return o, err
	}

	details := order.PaymentDetails{
		CaptureID:       capture.ID,
		Signature:       conf.Signature,
		ChargedAmount:   capture.Amount,
		ChargedCurrency: capture.Currency,
	}
	if details.ChargedAmount.IsZero() {
		details.ChargedAmount = o.PaymentDetails.ChargedAmount
	}
	if details.ChargedCurrency == "" {
		details.ChargedCurrency = o.PaymentDetails.ChargedCurrency
	}

	return s.settle(ctx, dctx, log, adapter.Name(), source, o, details)
}

// settle writes the Paid status and the ledger entry. The cart is deleted and
// the event published only when this call wrote something.
func (s *Service) settle(ctx, dctx context.Context, log *slog.Logger, gw, source string, o order.Order, details order.PaymentDetails) (order.Order, error) {
	paid, changed, err := s.orders.Settle(dctx, o, details)
	if err != nil {
		s.metrics.Settlement(gw, source, "ledger_error")
		log.ErrorContext(ctx, "settle order failed", "capture_id", details.CaptureID, "error", err)
		return o, err
	}
	if !changed {
		s.metrics.Settlement(gw, source, "already_paid")
		return paid, nil
	}
	s.metrics.Settlement(gw, source, "paid")
	log.InfoContext(ctx, "order paid", "capture_id", details.CaptureID, "amount", paid.TotalAmount)

	if owner, ok := ownerOf(paid.CartOwner); ok {
		if err := s.carts.Delete(dctx, owner); err != nil {
			log.ErrorContext(ctx, "delete cart after payment", "error", err)
		}
	}
	ev := events.OrderPaid{
		OrderID:              paid.ID,
		UserID:               paid.UserID,
		Gateway:              paid.Gateway,
		GatewayTransactionID: details.CaptureID,
		Amount:               paid.TotalAmount,
		Currency:             paid.Currency,
		PaidAt:               paid.UpdatedAt,
	}
	if err := s.events.PublishOrderPaid(dctx, ev); err != nil {
		log.WarnContext(ctx, "publish order paid event", "error", err)
	}
	return paid, nil
}

// chargeMismatch rejects a capture for another amount or currency than the
// one charged at checkout. Fields the gateway does not echo are not compared.
func chargeMismatch(charged order.PaymentDetails, c gateway.Capture) error {
	if c.Currency != "" && charged.ChargedCurrency != "" && !strings.EqualFold(c.Currency, charged.ChargedCurrency) {
		return fmt.Errorf("captured in %s, charged in %s: %w", c.Currency, charged.ChargedCurrency, gateway.ErrPaymentNotCompleted)
	}
	if !c.Amount.IsZero() && !charged.ChargedAmount.IsZero() && !c.Amount.Equal(charged.ChargedAmount) {
		return fmt.Errorf("captured %s, charged %s: %w", c.Amount, charged.ChargedAmount, gateway.ErrPaymentNotCompleted)
	}
	return nil
}

func cartOwner(o cart.Owner) order.CartOwner {
	if o.IsUser() {
		id := o.UserID
		return order.CartOwner{UserID: &id}
	}
	tok := o.GuestToken
	return order.CartOwner{GuestToken: &tok}
}

func ownerOf(c order.CartOwner) (cart.Owner, bool) {
	switch {
	case c.UserID != nil && *c.UserID > 0:
		return cart.UserOwner(*c.UserID), true
	case c.GuestToken != nil && *c.GuestToken != "":
		return cart.GuestOwner(*c.GuestToken), true
	}
	return cart.Owner{}, false
}

func orderLines(lines []pricing.Line) []order.Line {
	out := make([]order.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, order.Line{
			ProductID:   l.ProductID,
			Name:        l.Name,
			SKU:         l.SKU,
			VariantName: l.VariantName,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal,
		})
	}
	return out
}
