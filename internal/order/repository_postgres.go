package order

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const (
	orderColumns = `id, user_id, guest_token, cart_owner, lines, total_amount, currency, shipping_address,
		gateway, gateway_order_id, payment_details, payment_status, status, failure_reason, created_at, updated_at`

	insertOrderQuery = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$15)
		RETURNING ` + orderColumns

	// The payment_status predicate makes the transition a compare-and-swap:
	// of two concurrent settlements only one gets a row back.
	markPaidQuery = `UPDATE orders
		SET payment_status = 'Paid', payment_details = $2, updated_at = now()
		WHERE id = $1 AND payment_status = 'Pending'
		RETURNING ` + orderColumns

	markFailedQuery = `UPDATE orders
		SET payment_status = 'Failed', failure_reason = $2, updated_at = now()
		WHERE id = $1 AND payment_status = 'Pending'
		RETURNING ` + orderColumns

	insertTransactionQuery = `INSERT INTO transactions
		(id, order_id, gateway, gateway_transaction_id, amount, currency, status, breakdown, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (gateway_transaction_id) DO NOTHING`

	uniqueViolation = "23505"
)

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) Create(ctx context.Context, o Order) (Order, error) {
	cartOwner, err := json.Marshal(o.CartOwner)
	if err != nil {
		return Order{}, err
	}
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return Order{}, err
	}
	shipping, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return Order{}, err
	}
	details, err := json.Marshal(o.PaymentDetails)
	if err != nil {
		return Order{}, err
	}

	row := r.db.QueryRowContext(ctx, insertOrderQuery,
		o.ID, o.UserID, o.GuestToken, cartOwner, lines, o.TotalAmount, o.Currency, shipping,
		o.Gateway, o.PaymentDetails.GatewayOrderID, details, o.PaymentStatus, o.Status, o.FailureReason, o.CreatedAt)
	created, err := scanOrder(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Order{}, ErrDuplicate
		}
		return Order{}, fmt.Errorf("failed to insert order: %w", err)
	}
	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByGatewayOrderID(ctx context.Context, gateway, gatewayOrderID string) (Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE gateway = $1 AND gateway_order_id = $2`, gateway, gatewayOrderID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *PostgresRepository) MarkPaid(ctx context.Context, id string, details PaymentDetails, txn Transaction) (Order, bool, error) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return Order{}, false, err
	}
	breakdown, err := json.Marshal(txn.Breakdown)
	if err != nil {
		return Order{}, false, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return Order{}, false, err
	}
	defer func() { _ = tx.Rollback() }()

	paid, err := scanOrder(tx.QueryRowContext(ctx, markPaidQuery, id, detailsJSON))
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		current, gerr := r.GetByID(ctx, id)
		if gerr != nil {
			return Order{}, false, gerr
		}
		if current.PaymentStatus == PaymentPaid {
			return current, false, nil
		}
		return current, false, ErrNotPending
	}
	if err != nil {
		return Order{}, false, fmt.Errorf("failed to mark order paid: %w", err)
	}

	if _, err := tx.ExecContext(ctx, insertTransactionQuery,
		txn.ID, txn.OrderID, txn.Gateway, txn.GatewayTransactionID, txn.Amount, txn.Currency, txn.Status, breakdown, txn.CreatedAt); err != nil {
		return Order{}, false, fmt.Errorf("failed to insert transaction: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Order{}, false, err
	}
	return paid, true, nil
}

func (r *PostgresRepository) MarkFailed(ctx context.Context, id, reason string) (Order, error) {
	failed, err := scanOrder(r.db.QueryRowContext(ctx, markFailedQuery, id, reason))
	if errors.Is(err, sql.ErrNoRows) {
		current, gerr := r.GetByID(ctx, id)
		if gerr != nil {
			return Order{}, gerr
		}
		if current.PaymentStatus == PaymentFailed {
			return current, nil
		}
		return current, ErrNotPending
	}
	if err != nil {
		return Order{}, fmt.Errorf("failed to mark order failed: %w", err)
	}
	return failed, nil
}

func (r *PostgresRepository) ListTransactions(ctx context.Context, orderID string) ([]Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, order_id, gateway, gateway_transaction_id, amount, currency, status, breakdown, created_at
		FROM transactions WHERE order_id = $1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	txns := make([]Transaction, 0)
	for rows.Next() {
		var (
			t         Transaction
			breakdown []byte
		)
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Gateway, &t.GatewayTransactionID, &t.Amount, &t.Currency, &t.Status, &breakdown, &t.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(breakdown, &t.Breakdown); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
		txns = append(txns, t)
	}
	return txns, rows.Err()
}

func scanOrder(row rowScanner) (Order, error) {
	var (
		o                                          Order
		userID                                     sql.NullInt64
		guest                                      sql.NullString
		cartOwner, lines, shipping, details        []byte
		gatewayOrderID, paymentStatus, status, why string
	)
	if err := row.Scan(&o.ID, &userID, &guest, &cartOwner, &lines, &o.TotalAmount, &o.Currency, &shipping,
		&o.Gateway, &gatewayOrderID, &details, &paymentStatus, &status, &why, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	if userID.Valid {
		id := int(userID.Int64)
		o.UserID = &id
	}
	if guest.Valid {
		o.GuestToken = &guest.String
	}
	o.PaymentStatus = PaymentStatus(paymentStatus)
	o.Status = Status(status)
	o.FailureReason = why

	for _, part := range []struct {
		raw []byte
		dst any
	}{
		{cartOwner, &o.CartOwner},
		{lines, &o.Lines},
		{shipping, &o.ShippingAddress},
		{details, &o.PaymentDetails},
	} {
		if len(part.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(part.raw, part.dst); err != nil {
			return Order{}, fmt.Errorf("decode order %s: %w", o.ID, err)
		}
	}
	o.PaymentDetails.GatewayOrderID = gatewayOrderID
	if o.Lines == nil {
		o.Lines = []Line{}
	}
	return o, nil
}
