package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/pet-shop-storefront/internal/address"
	"github.com/wichananm65/pet-shop-storefront/internal/cart"
	"github.com/wichananm65/pet-shop-storefront/internal/events"
	"github.com/wichananm65/pet-shop-storefront/internal/gateway"
	"github.com/wichananm65/pet-shop-storefront/internal/gateway/razorpay"
	"github.com/wichananm65/pet-shop-storefront/internal/metrics"
	"github.com/wichananm65/pet-shop-storefront/internal/order"
	"github.com/wichananm65/pet-shop-storefront/internal/pricing"
	"github.com/wichananm65/pet-shop-storefront/internal/product"
)

const rzpSecret = "rzp_secret"

func intPtr(v int) *int { return &v }

// fakeCapture is a capture-style gateway charging in USD.
type fakeCapture struct {
	mu        sync.Mutex
	seq       int
	createErr error
	confirms  atomic.Int32
	confirm   func(ctx context.Context, c gateway.Confirmation) (gateway.Capture, error)
}

func (f *fakeCapture) Name() string      { return "paypal" }
func (f *fakeCapture) Currency() string  { return "USD" }
func (f *fakeCapture) PublicKey() string { return "client-id" }

func (f *fakeCapture) CreateRemoteOrder(_ context.Context, amount decimal.Decimal, currency, _ string) (gateway.RemoteOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return gateway.RemoteOrder{}, f.createErr
	}
	f.seq++
	return gateway.RemoteOrder{ID: fmt.Sprintf("PP-%d", f.seq), Amount: amount, Currency: currency, Status: "CREATED"}, nil
}

func (f *fakeCapture) Confirm(ctx context.Context, c gateway.Confirmation) (gateway.Capture, error) {
	f.confirms.Add(1)
	if f.confirm != nil {
		return f.confirm(ctx, c)
	}
	if c.Capture != nil {
		return *c.Capture, nil
	}
	return gateway.Capture{ID: "CAP-" + c.RemoteOrderID, Amount: decimal.RequireFromString("24.10"), Currency: "USD", Status: "COMPLETED"}, nil
}

// fakeRazorpayAPI answers POST /v1/orders with sequential order ids.
func fakeRazorpayAPI(t *testing.T) *httptest.Server {
	var seq atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := seq.Add(1)
		_, _ = io.WriteString(w, fmt.Sprintf(`{"id":"order_%d","amount":200000,"currency":"INR","status":"created"}`, n))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type env struct {
	svc      *Service
	carts    *cart.Service
	cartRepo *cart.InMemoryRepository
	catalog  *product.InMemoryRepository
	orders   *order.Service
	events   *events.Recorder
	capture  *fakeCapture
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvWithOrders(t, order.NewInMemoryRepository())
}

func newEnvWithOrders(t *testing.T, orderRepo order.Repository) *env {
	t.Helper()
	catalog := product.NewInMemoryRepository([]product.Product{
		{ID: 1, Name: "Cat Food", Price: intPtr(1000)},
		{ID: 2, Name: "Free Sample"},
	})
	cartRepo := cart.NewInMemoryRepository()
	carts := cart.NewService(cartRepo, catalog)
	orders := order.NewService(orderRepo, 0)
	rec := &events.Recorder{}
	capture := &fakeCapture{}
	rzp := razorpay.New(razorpay.Config{KeyID: "rzp_test_key", KeySecret: rzpSecret, BaseURL: fakeRazorpayAPI(t).URL}, nil)
	book := address.NewService(address.NewInMemoryRepository(map[int][]address.Address{
		7: {{AddressID: 1, Label: "Home", ShippingAddress: testShipping()}},
	}))

	svc := NewService(Deps{
		Carts:     carts,
		Quoter:    pricing.NewResolver(catalog, 4),
		Converter: pricing.NewConverter("INR", map[string]float64{"USD": 83}),
		Gateways:  gateway.NewRegistry(capture, rzp),
		Orders:    orders,
		Addresses: book,
		Events:    rec,
		Metrics:   metrics.New(),
	})
	return &env{svc: svc, carts: carts, cartRepo: cartRepo, catalog: catalog, orders: orders, events: rec, capture: capture}
}

func testShipping() order.ShippingAddress {
	return order.ShippingAddress{FullName: "Asha Rao", Phone: "555", Line1: "1 Main", City: "Pune", PostalCode: "411001", Country: "IN"}
}

func (e *env) add(t *testing.T, owner cart.Owner, productID, qty int) {
	t.Helper()
	_, err := e.carts.AddItem(context.Background(), owner, cart.AddItemInput{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
}

func userRequest(gw string) Request {
	s := testShipping()
	return Request{Identity: Identity{UserID: 7}, Gateway: gw, Shipping: &s}
}

func TestScenario_PayWithSignatureGateway(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.add(t, cart.UserOwner(7), 1, 2)

	res, err := e.svc.Create(ctx, userRequest(razorpay.Name))
	require.NoError(t, err)
	assert.Equal(t, int64(2000), res.Order.TotalAmount)
	assert.Equal(t, "INR", res.Currency)
	assert.True(t, res.Amount.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, "rzp_test_key", res.PublicKey)
	assert.Equal(t, order.PaymentPending, res.Order.PaymentStatus)

	paid, err := e.svc.Finalize(ctx, razorpay.Name, gateway.Confirmation{
		RemoteOrderID: res.RemoteOrderID,
		PaymentID:     "pay_1",
		Signature:     razorpay.Sign(rzpSecret, res.RemoteOrderID, "pay_1"),
	})
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, "pay_1", paid.PaymentDetails.CaptureID)
	assert.True(t, paid.PaymentDetails.ChargedAmount.Equal(decimal.NewFromInt(2000)))

	txns, err := e.orders.Transactions(ctx, paid.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, int64(2000), txns[0].Amount)
	assert.Equal(t, "pay_1", txns[0].GatewayTransactionID)

	assert.Zero(t, e.cartRepo.Len(), "cart is deleted once paid")
	require.Len(t, e.events.Events(), 1)
	assert.Equal(t, paid.ID, e.events.Events()[0].OrderID)
}

func TestFinalize_SecondConfirmationIsNoop(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.add(t, cart.UserOwner(7), 1, 2)
	res, err := e.svc.Create(ctx, userRequest("paypal"))
	require.NoError(t, err)

	_, err = e.svc.Finalize(ctx, "paypal", gateway.Confirmation{RemoteOrderID: res.RemoteOrderID, Source: gateway.SourceClient})
	require.NoError(t, err)

	capture := gateway.Capture{ID: "CAP-" + res.RemoteOrderID, Status: "COMPLETED"}
	again, err := e.svc.Finalize(ctx, "paypal", gateway.Confirmation{RemoteOrderID: res.RemoteOrderID, Capture: &capture, Source: gateway.SourceWebhook})
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, again.PaymentStatus)
	assert.Equal(t, int32(1), e.capture.confirms.Load(), "paid order is not confirmed again")

	txns, err := e.orders.Transactions(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
	assert.Len(t, e.events.Events(), 1)
}

// interruptedRepo loses the ledger write of the first settlement, as a crash
// between the status update and the transaction insert would.
type interruptedRepo struct {
	*order.InMemoryRepository
	interrupted atomic.Bool
}

func (r *interruptedRepo) MarkPaid(ctx context.Context, id string, details order.PaymentDetails, txn order.Transaction) (order.Order, bool, error) {
	if r.interrupted.CompareAndSwap(false, true) {
		if err := r.MarkPaidWithoutTransaction(id, details); err != nil {
			return order.Order{}, false, err
		}
		return order.Order{}, false, errors.New("connection reset by peer")
	}
	return r.InMemoryRepository.MarkPaid(ctx, id, details, txn)
}

func TestFinalize_RedeliveryCompletesInterruptedSettlement(t *testing.T) {
	e := newEnvWithOrders(t, &interruptedRepo{InMemoryRepository: order.NewInMemoryRepository()})
	ctx := context.Background()
	e.add(t, cart.UserOwner(7), 1, 2)
	res, err := e.svc.Create(ctx, userRequest("paypal"))
	require.NoError(t, err)

	_, err = e.svc.Finalize(ctx, "paypal", gateway.Confirmation{RemoteOrderID: res.RemoteOrderID, Source: gateway.SourceClient})
	require.Error(t, err)

	o, err := e.orders.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	require.Equal(t, order.PaymentPaid, o.PaymentStatus)
	txns, err := e.orders.Transactions(ctx, o.ID)
	require.NoError(t, err)
	require.Empty(t, txns)
	require.Equal(t, 1, e.cartRepo.Len())
	require.Empty(t, e.events.Events())

	capture := gateway.Capture{ID: "CAP-" + res.RemoteOrderID, Amount: decimal.RequireFromString("24.10"), Currency: "USD", Status: "COMPLETED"}
	paid, err := e.svc.Finalize(ctx, "paypal", gateway.Confirmation{RemoteOrderID: res.RemoteOrderID, Capture: &capture, Source: gateway.SourceWebhook})
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, paid.PaymentStatus)
	assert.Equal(t, int32(1), e.capture.confirms.Load(), "paid order is not confirmed again")

	txns, err = e.orders.Transactions(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "CAP-"+res.RemoteOrderID, txns[0].GatewayTransactionID)
	assert.Zero(t, e.cartRepo.Len(), "cart is deleted once the ledger is complete")
	assert.Len(t, e.events.Events(), 1)

	_, err = e.svc.Finalize(ctx, "paypal", gateway.Confirmation{RemoteOrderID: res.RemoteOrderID, Capture: &capture, Source: gateway.SourceWebhook})
	require.NoError(t, err)
	txns, _ = e.orders.Transactions(ctx, o.ID)
	assert.Len(t, txns, 1)
	assert.Len(t, e.events.Events(), 1)
}

func TestFinalize_ConcurrentClientAndWebhook(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.add(t, cart.UserOwner(7), 1, 2)
	res, err := e.svc.Create(ctx, userRequest("paypal"))
	require.NoError(t, err)

	capture := gateway.Capture{ID: "CAP-" + res.RemoteOrderID, Amount: decimal.RequireFromString("24.10"), Currency: "USD", Status: "COMPLETED"}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conf := gateway.Confirmation{RemoteOrderID: res.RemoteOrderID, Source: gateway.SourceClient}
			if i%2 == 1 {
				conf.Capture = &capture
				conf.Source = gateway.SourceWebhook
			}
			o, err := e.svc.Finalize(ctx, "paypal", conf)
			assert.NoError(t, err)
			assert.Equal(t, order.PaymentPaid, o.PaymentStatus)
		}(i)
	}
	wg.Wait()

	txns, err := e.orders.Transactions(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Len(t, txns, 1)
	assert.Len(t, e.events.Events(), 1)
}

func TestFinalize_TamperedSignatureKeepsPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.add(t, cart.UserOwner(7), 1, 2)
	res, err := e.svc.Create(ctx, userRequest(razorpay.Name))
	require.NoError(t, err)

	_, err = e.svc.Finalize(ctx, razorpay.Name, gateway.Confirmation{
		RemoteOrderID: res.RemoteOrderID,
		PaymentID:     "pay_tampered",
		Signature:     razorpay.Sign(rzpSecret, res.RemoteOrderID, "pay_1"),
	})
	assert.ErrorIs(t, err, gateway.ErrInvalidSignature)

	o, err := e.orders.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
	assert.Equal(t, 1, e.cartRepo.Len(), "cart kept for retry")

	txns, _ := e.orders.Transactions(ctx, res.Order.ID)
	assert.Empty(t, txns)
}

func TestFinalize_NotCompletedFailsOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.add(t, cart.UserOwner(7), 1, 1)
	e.capture.confirm = func(context.Context, gateway.Confirmation) (gateway.Capture, error) {
		return gateway.Capture{}, fmt.Errorf("order not approved: %w", gateway.ErrPaymentNotCompleted)
	}
	res, err := e.svc.Create(ctx, userRequest("paypal"))
	require.NoError(t, err)

	_, err = e.svc.Finalize(ctx, "paypal", gateway.Confirmation{RemoteOrderID: res.RemoteOrderID})
	assert.ErrorIs(t, err, gateway.ErrPaymentNotCompleted)

	o, err := e.orders.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.PaymentFailed, o.PaymentStatus)
	assert.Equal(t, 1, e.cartRepo.Len())

	_, err = e.svc.Finalize(ctx, "paypal", gateway.Confirmation{RemoteOrderID: res.RemoteOrderID})
	assert.ErrorIs(t, err, order.ErrNotPending)
}

func TestFinalize_CaptureMismatchFailsOrder(t *testing.T) {
	tests := []struct {
		name    string
		capture gateway.Capture
	}{
		{"amount", gateway.Capture{ID: "CAP-1", Amount: decimal.RequireFromString("0.01"), Currency: "USD", Status: "COMPLETED"}},
		{"currency", gateway.Capture{ID: "CAP-1", Amount: decimal.RequireFromString("24.10"), Currency: "EUR", Status: "COMPLETED"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			ctx := context.Background()
			e.add(t, cart.UserOwner(7), 1, 2)
			e.capture.confirm = func(context.Context, gateway.Confirmation) (gateway.Capture, error) {
				return tt.capture, nil
			}
			res, err := e.svc.Create(ctx, userRequest("paypal"))
			require.NoError(t, err)

			_, err = e.svc.Finalize(ctx, "paypal", gateway.Confirmation{RemoteOrderID: res.RemoteOrderID})
			assert.ErrorIs(t, err, gateway.ErrPaymentNotCompleted)

			o, err := e.orders.Get(ctx, res.Order.ID)
			require.NoError(t, err)
			assert.Equal(t, order.PaymentFailed, o.PaymentStatus)
			txns, _ := e.orders.Transactions(ctx, o.ID)
			assert.Empty(t, txns)
			assert.Equal(t, 1, e.cartRepo.Len())
			assert.Empty(t, e.events.Events())
		})
	}
}

func TestFinalize_OutcomeUnknownLeavesPending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.add(t, cart.UserOwner(7), 1, 1)
	e.capture.confirm = func(context.Context, gateway.Confirmation) (gateway.Capture, error) {
		return gateway.Capture{}, gateway.ErrOutcomeUnknown
	}
	res, err := e.svc.Create(ctx, userRequest("paypal"))
	require.NoError(t, err)

	_, err = e.svc.Finalize(ctx, "paypal", gateway.Confirmation{RemoteOrderID: res.RemoteOrderID})
	assert.ErrorIs(t, err, gateway.ErrOutcomeUnknown)

	o, _ := e.orders.Get(ctx, res.Order.ID)
	assert.Equal(t, order.PaymentPending, o.PaymentStatus)
}

func TestFinalize_SurvivesCancelledRequest(t *testing.T) {
	e := newEnv(t)
	e.add(t, cart.UserOwner(7), 1, 2)
	res, err := e.svc.Create(context.Background(), userRequest("paypal"))
	require.NoError(t, err)

	e.capture.confirm = func(ctx context.Context, c gateway.Confirmation) (gateway.Capture, error) {
		if ctx.Err() != nil {
			return gateway.Capture{}, ctx.Err()
		}
		return gateway.Capture{ID: "CAP-1", Status: "COMPLETED"}, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o, err := e.svc.Finalize(ctx, "paypal", gateway.Confirmation{RemoteOrderID: res.RemoteOrderID})
	require.NoError(t, err)
	assert.Equal(t, order.PaymentPaid, o.PaymentStatus)
	assert.Equal(t, "USD", o.PaymentDetails.ChargedCurrency, "falls back to the amount charged at checkout")
	assert.True(t, o.PaymentDetails.ChargedAmount.Equal(decimal.RequireFromString("24.1")))
}

func TestFinalize_UnknownOrder(t *testing.T) {
	e := newEnv(t)
	_, err := e.svc.Finalize(context.Background(), "paypal", gateway.Confirmation{RemoteOrderID: "PP-404"})
	assert.ErrorIs(t, err, order.ErrNotFound)

	_, err = e.svc.Finalize(context.Background(), "paypal", gateway.Confirmation{})
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestCreate_EmptyCartCreatesNoOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.svc.Create(ctx, userRequest("paypal"))
	assert.ErrorIs(t, err, ErrEmptyCart)

	e.add(t, cart.UserOwner(7), 2, 3)
	_, err = e.svc.Create(ctx, userRequest("paypal"))
	assert.ErrorIs(t, err, pricing.ErrEmptyOrder)

	orders, err := e.orders.ListByUser(ctx, 7)
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Zero(t, e.capture.seq, "gateway never called")
}

func TestCreate_PricesAreFrozen(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.add(t, cart.UserOwner(7), 1, 2)
	res, err := e.svc.Create(ctx, userRequest(razorpay.Name))
	require.NoError(t, err)

	p, err := e.catalog.GetByID(ctx, 1)
	require.NoError(t, err)
	p.Price = intPtr(5000)
	_, err = e.catalog.Update(ctx, p)
	require.NoError(t, err)

	o, err := e.orders.Get(ctx, res.Order.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), o.TotalAmount)
	assert.Equal(t, int64(1000), o.Lines[0].UnitPrice)

	paid, err := e.svc.Finalize(ctx, razorpay.Name, gateway.Confirmation{
		RemoteOrderID: res.RemoteOrderID, PaymentID: "pay_9",
		Signature: razorpay.Sign(rzpSecret, res.RemoteOrderID, "pay_9"),
	})
	require.NoError(t, err)
	txns, _ := e.orders.Transactions(ctx, paid.ID)
	require.Len(t, txns, 1)
	assert.Equal(t, int64(2000), txns[0].Amount)
}

func TestCreate_ConvertsForForeignCurrencyGateway(t *testing.T) {
	e := newEnv(t)
	e.add(t, cart.UserOwner(7), 1, 2)

	res, err := e.svc.Create(context.Background(), userRequest("paypal"))
	require.NoError(t, err)
	assert.Equal(t, "USD", res.Currency)
	assert.Equal(t, "24.10", res.Amount.StringFixed(2))
	assert.Equal(t, int64(2000), res.Order.TotalAmount)
	assert.Equal(t, "INR", res.Order.Currency)
	assert.Equal(t, "USD", res.Order.PaymentDetails.ChargedCurrency)
}

func TestCreate_GuestCartFallback(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.add(t, cart.GuestOwner("guest-1"), 1, 1)
	e.add(t, cart.UserOwner(7), 1, 1)
	_, err := e.carts.Clear(ctx, cart.UserOwner(7))
	require.NoError(t, err)

	req := userRequest(razorpay.Name)
	req.Identity.GuestToken = "guest-1"
	res, err := e.svc.Create(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, res.Order.CartOwner.GuestToken)
	assert.Equal(t, "guest-1", *res.Order.CartOwner.GuestToken)
	assert.Nil(t, res.Order.CartOwner.UserID)

	_, err = e.svc.Finalize(ctx, razorpay.Name, gateway.Confirmation{
		RemoteOrderID: res.RemoteOrderID, PaymentID: "pay_2",
		Signature: razorpay.Sign(rzpSecret, res.RemoteOrderID, "pay_2"),
	})
	require.NoError(t, err)

	_, err = e.cartRepo.Get(ctx, cart.GuestOwner("guest-1"))
	assert.ErrorIs(t, err, cart.ErrNotFound, "guest cart deleted")
	_, err = e.cartRepo.Get(ctx, cart.UserOwner(7))
	assert.NoError(t, err, "user cart untouched")
}

func TestCreate_UserCartPreferred(t *testing.T) {
	e := newEnv(t)
	e.add(t, cart.GuestOwner("guest-1"), 1, 5)
	e.add(t, cart.UserOwner(7), 1, 1)

	req := userRequest("paypal")
	req.Identity.GuestToken = "guest-1"
	res, err := e.svc.Create(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), res.Order.TotalAmount)
	require.NotNil(t, res.Order.CartOwner.UserID)
}

func TestCreate_GatewayFailureStoresNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.add(t, cart.UserOwner(7), 1, 1)
	e.capture.createErr = &gateway.Error{Gateway: "paypal", Op: "create order", StatusCode: 503, Err: errors.New("unavailable")}

	_, err := e.svc.Create(ctx, userRequest("paypal"))
	var gerr *gateway.Error
	require.ErrorAs(t, err, &gerr)

	orders, _ := e.orders.ListByUser(ctx, 7)
	assert.Empty(t, orders)
}

func TestCreate_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.add(t, cart.UserOwner(7), 1, 1)
	var verr *ValidationError

	_, err := e.svc.Create(ctx, Request{Gateway: "paypal"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "owner", verr.Field)

	_, err = e.svc.Create(ctx, Request{Identity: Identity{UserID: 7}, Gateway: "paypal"})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "shippingAddress", verr.Field)

	bad := testShipping()
	bad.City = " "
	_, err = e.svc.Create(ctx, Request{Identity: Identity{UserID: 7}, Gateway: "paypal", Shipping: &bad})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Error(), "city")

	_, err = e.svc.Create(ctx, Request{Identity: Identity{GuestToken: "g"}, Gateway: "paypal", AddressID: 1})
	require.ErrorAs(t, err, &verr)

	_, err = e.svc.Create(ctx, Request{Identity: Identity{UserID: 7}, Gateway: "paypal", AddressID: 99})
	assert.ErrorIs(t, err, address.ErrNotFound)

	_, err = e.svc.Create(ctx, Request{Identity: Identity{UserID: 7}, Gateway: "stripe", Shipping: &bad})
	assert.ErrorIs(t, err, gateway.ErrUnknownGateway)
}

func TestCreate_SavedAddress(t *testing.T) {
	e := newEnv(t)
	e.add(t, cart.UserOwner(7), 1, 1)

	res, err := e.svc.Create(context.Background(), Request{Identity: Identity{UserID: 7}, Gateway: "paypal", AddressID: 1})
	require.NoError(t, err)
	assert.Equal(t, testShipping(), res.Order.ShippingAddress)
}
