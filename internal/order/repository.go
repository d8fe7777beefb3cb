package order

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Repository defines persistence operations for orders and their ledger
// rows. Only the order Service calls the payment transitions.
type Repository interface {
	// Create stores a new order. A second order for the same gateway order
	// id returns ErrDuplicate.
	Create(ctx context.Context, o Order) (Order, error)
	GetByID(ctx context.Context, id string) (Order, error)
	GetByGatewayOrderID(ctx context.Context, gateway, gatewayOrderID string) (Order, error)
	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID int) ([]Order, error)

	// MarkPaid moves the order from Pending to Paid, stores details and
	// inserts txn. The returned bool reports whether anything was written.
	// For an order already Paid under the same capture id it only inserts
	// txn if the ledger lacks it. An order in any other state yields
	// ErrNotPending.
	MarkPaid(ctx context.Context, id string, details PaymentDetails, txn Transaction) (Order, bool, error)
	// MarkFailed moves the order from Pending to Failed. A Failed order is
	// returned unchanged; a Paid one yields ErrNotPending.
	MarkFailed(ctx context.Context, id, reason string) (Order, error)

	ListTransactions(ctx context.Context, orderID string) ([]Transaction, error)
}

// InMemoryRepository is used for tests and local scenarios. The mutex makes
// the conditional transitions as atomic as the SQL version.
type InMemoryRepository struct {
	mu     sync.Mutex
	orders map[string]Order
	// gateway + "/" + gateway order id -> order id
	byGateway map[string]string
	// gateway transaction id -> transaction
	txns map[string]Transaction
	now  func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		orders:    make(map[string]Order),
		byGateway: make(map[string]string),
		txns:      make(map[string]Transaction),
		now:       time.Now,
	}
}

func gatewayKey(gateway, id string) string { return gateway + "/" + id }

func (r *InMemoryRepository) Create(_ context.Context, o Order) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := gatewayKey(o.Gateway, o.PaymentDetails.GatewayOrderID)
	if _, ok := r.byGateway[key]; ok {
		return Order{}, ErrDuplicate
	}
	if _, ok := r.orders[o.ID]; ok {
		return Order{}, ErrDuplicate
	}
	r.orders[o.ID] = cloneOrder(o)
	r.byGateway[key] = o.ID
	return cloneOrder(o), nil
}

func (r *InMemoryRepository) GetByID(_ context.Context, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *InMemoryRepository) GetByGatewayOrderID(_ context.Context, gateway, gatewayOrderID string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byGateway[gatewayKey(gateway, gatewayOrderID)]
	if !ok {
		return Order{}, ErrNotFound
	}
	return cloneOrder(r.orders[id]), nil
}

func (r *InMemoryRepository) ListByUser(_ context.Context, userID int) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Order, 0)
	for _, o := range r.orders {
		if o.UserID != nil && *o.UserID == userID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) MarkPaid(_ context.Context, id string, details PaymentDetails, txn Transaction) (Order, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, false, ErrNotFound
	}
	switch o.PaymentStatus {
	case PaymentPaid:
		if o.PaymentDetails.CaptureID != txn.GatewayTransactionID {
			return cloneOrder(o), false, nil
		}
		return cloneOrder(o), r.insertTxn(txn), nil
	case PaymentPending:
	default:
		return cloneOrder(o), false, ErrNotPending
	}

	o.PaymentStatus = PaymentPaid
	o.PaymentDetails = details
	o.UpdatedAt = r.now().UTC()
	r.orders[id] = o
	r.insertTxn(txn)
	return cloneOrder(o), true, nil
}

// MarkPaidWithoutTransaction flips the status but skips the ledger insert,
// leaving the state a crash between the two writes of a non-transactional
// store leaves behind.
func (r *InMemoryRepository) MarkPaidWithoutTransaction(id string, details PaymentDetails) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return ErrNotFound
	}
	if o.PaymentStatus != PaymentPending {
		return ErrNotPending
	}
	o.PaymentStatus = PaymentPaid
	o.PaymentDetails = details
	o.UpdatedAt = r.now().UTC()
	r.orders[id] = o
	return nil
}

func (r *InMemoryRepository) insertTxn(txn Transaction) bool {
	if _, dup := r.txns[txn.GatewayTransactionID]; dup {
		return false
	}
	r.txns[txn.GatewayTransactionID] = txn
	return true
}

func (r *InMemoryRepository) MarkFailed(_ context.Context, id, reason string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	switch o.PaymentStatus {
	case PaymentFailed:
		return cloneOrder(o), nil
	case PaymentPaid:
		return cloneOrder(o), ErrNotPending
	}
	o.PaymentStatus = PaymentFailed
	o.FailureReason = reason
	o.UpdatedAt = r.now().UTC()
	r.orders[id] = o
	return cloneOrder(o), nil
}

func (r *InMemoryRepository) ListTransactions(_ context.Context, orderID string) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Transaction, 0)
	for _, t := range r.txns {
		if t.OrderID == orderID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func cloneOrder(o Order) Order {
	o.Lines = append([]Line(nil), o.Lines...)
	if o.Lines == nil {
		o.Lines = []Line{}
	}
	return o
}
