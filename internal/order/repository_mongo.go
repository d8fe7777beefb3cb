package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoRepository keeps orders and transactions in two collections. The
// client must be created with database.Registry so decimals keep their exact
// value.
type MongoRepository struct {
	orders       *mongo.Collection
	transactions *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		orders:       db.Collection("orders"),
		transactions: db.Collection("transactions"),
	}
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	if _, err := m.orders.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "gateway", Value: 1}, {Key: "paymentDetails.gatewayOrderId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
		},
	}); err != nil {
		return fmt.Errorf("failed to create order indexes: %w", err)
	}
	if _, err := m.transactions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "gatewayTransactionId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "orderId", Value: 1}},
		},
	}); err != nil {
		return fmt.Errorf("failed to create transaction indexes: %w", err)
	}
	return nil
}

func (m *MongoRepository) Create(ctx context.Context, o Order) (Order, error) {
	if o.Lines == nil {
		o.Lines = []Line{}
	}
	if _, err := m.orders.InsertOne(ctx, o); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return Order{}, ErrDuplicate
		}
		return Order{}, fmt.Errorf("failed to insert order: %w", err)
	}
	return o, nil
}

func (m *MongoRepository) GetByID(ctx context.Context, id string) (Order, error) {
	return m.findOne(ctx, bson.M{"_id": id})
}

func (m *MongoRepository) GetByGatewayOrderID(ctx context.Context, gateway, gatewayOrderID string) (Order, error) {
	return m.findOne(ctx, bson.M{"gateway": gateway, "paymentDetails.gatewayOrderId": gatewayOrderID})
}

func (m *MongoRepository) findOne(ctx context.Context, filter bson.M) (Order, error) {
	var o Order
	if err := m.orders.FindOne(ctx, filter).Decode(&o); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("failed to get order: %w", err)
	}
	return cloneOrder(o), nil
}

func (m *MongoRepository) ListByUser(ctx context.Context, userID int) ([]Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cur, err := m.orders.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	orders := make([]Order, 0)
	if err := cur.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}

// MarkPaid flips the status with a filtered FindOneAndUpdate, then records
// the transaction. The transaction insert is keyed on the gateway transaction
// id, so a retry after a crash between the two writes completes the ledger
// without doubling it and reports the repair as a change.
func (m *MongoRepository) MarkPaid(ctx context.Context, id string, details PaymentDetails, txn Transaction) (Order, bool, error) {
	now := time.Now().UTC()
	update := bson.M{"$set": bson.M{
		"paymentStatus":  PaymentPaid,
		"paymentDetails": details,
		"updatedAt":      now,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var paid Order
	err := m.orders.FindOneAndUpdate(ctx, bson.M{"_id": id, "paymentStatus": PaymentPending}, update, opts).Decode(&paid)
	if errors.Is(err, mongo.ErrNoDocuments) {
		current, gerr := m.GetByID(ctx, id)
		if gerr != nil {
			return Order{}, false, gerr
		}
		if current.PaymentStatus != PaymentPaid {
			return current, false, ErrNotPending
		}
		if current.PaymentDetails.CaptureID != txn.GatewayTransactionID {
			return current, false, nil
		}
		inserted, err := m.insertTransaction(ctx, txn)
		if err != nil {
			return Order{}, false, err
		}
		return current, inserted, nil
	}
	if err != nil {
		return Order{}, false, fmt.Errorf("failed to mark order paid: %w", err)
	}
	if _, err := m.insertTransaction(ctx, txn); err != nil {
		return Order{}, false, err
	}
	return cloneOrder(paid), true, nil
}

func (m *MongoRepository) insertTransaction(ctx context.Context, txn Transaction) (bool, error) {
	if _, err := m.transactions.InsertOne(ctx, txn); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return true, nil
}

func (m *MongoRepository) MarkFailed(ctx context.Context, id, reason string) (Order, error) {
	update := bson.M{"$set": bson.M{
		"paymentStatus": PaymentFailed,
		"failureReason": reason,
		"updatedAt":     time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var failed Order
	err := m.orders.FindOneAndUpdate(ctx, bson.M{"_id": id, "paymentStatus": PaymentPending}, update, opts).Decode(&failed)
	if errors.Is(err, mongo.ErrNoDocuments) {
		current, gerr := m.GetByID(ctx, id)
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
	return cloneOrder(failed), nil
}

func (m *MongoRepository) ListTransactions(ctx context.Context, orderID string) ([]Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := m.transactions.Find(ctx, bson.M{"orderId": orderID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	txns := make([]Transaction, 0)
	if err := cur.All(ctx, &txns); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return txns, nil
}
