package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service is the only writer of payment status and transactions.
type Service struct {
	repo       Repository
	feePercent float64
	now        func() time.Time
}

func NewService(r Repository, feePercent float64) *Service {
	return &Service{repo: r, feePercent: feePercent, now: time.Now}
}

// Open persists a new Pending order. ID and gateway order id must already be
// set, since the gateway was told about the order before it is stored.
func (s *Service) Open(ctx context.Context, o Order) (Order, error) {
	if o.ID == "" || o.PaymentDetails.GatewayOrderID == "" {
		return Order{}, errors.New("order id and gateway order id are required")
	}
	if o.TotalAmount <= 0 {
		return Order{}, fmt.Errorf("order %s has non-positive total %d", o.ID, o.TotalAmount)
	}
	now := s.now().UTC()
	o.PaymentStatus = PaymentPending
	o.Status = StatusProcessing
	o.CreatedAt = now
	o.UpdatedAt = now
	return s.repo.Create(ctx, o)
}

// Settle marks the order Paid and appends its transaction. The bool is false
// when the order was already Paid, in which case nothing is written.
func (s *Service) Settle(ctx context.Context, o Order, details PaymentDetails) (Order, bool, error) {
	if details.CaptureID == "" {
		return Order{}, false, errors.New("capture id is required to settle")
	}
	details.GatewayOrderID = o.PaymentDetails.GatewayOrderID
	txn := Transaction{
		ID:                   uuid.NewString(),
		OrderID:              o.ID,
		Gateway:              o.Gateway,
		GatewayTransactionID: details.CaptureID,
		Amount:               o.TotalAmount,
		Currency:             o.Currency,
		Status:               TransactionSucceeded,
		Breakdown:            NewBreakdown(o.TotalAmount, s.feePercent),
		CreatedAt:            s.now().UTC(),
	}
	return s.repo.MarkPaid(ctx, o.ID, details, txn)
}

func (s *Service) Fail(ctx context.Context, id, reason string) (Order, error) {
	return s.repo.MarkFailed(ctx, id, reason)
}

func (s *Service) Get(ctx context.Context, id string) (Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByGatewayOrderID(ctx context.Context, gateway, gatewayOrderID string) (Order, error) {
	return s.repo.GetByGatewayOrderID(ctx, gateway, gatewayOrderID)
}

// GetForOwner hides orders of other customers behind ErrNotFound.
func (s *Service) GetForOwner(ctx context.Context, id string, userID int, guestToken string) (Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !o.OwnedBy(userID, guestToken) {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (s *Service) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Transactions(ctx context.Context, orderID string) ([]Transaction, error) {
	return s.repo.ListTransactions(ctx, orderID)
}
