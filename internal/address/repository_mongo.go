package address

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const addressSequence = "addresses"

// MongoRepository keeps integer address ids so both stores answer the same
// routes. Ids come from a counter document bumped with $inc.
type MongoRepository struct {
	collection *mongo.Collection
	counters   *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{
		collection: db.Collection("addresses"),
		counters:   db.Collection("counters"),
	}
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "userId", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create address indexes: %w", err)
	}
	return nil
}

func (m *MongoRepository) nextID(ctx context.Context) (int, error) {
	var seq struct {
		Value int `bson:"value"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := m.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": addressSequence},
		bson.M{"$inc": bson.M{"value": 1}},
		opts,
	).Decode(&seq)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate address id: %w", err)
	}
	return seq.Value, nil
}

func (m *MongoRepository) List(ctx context.Context, userID int) ([]Address, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := m.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	out := make([]Address, 0)
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode addresses: %w", err)
	}
	return out, nil
}

func (m *MongoRepository) Get(ctx context.Context, userID, addressID int) (Address, error) {
	var a Address
	err := m.collection.FindOne(ctx, bson.M{"_id": addressID, "userId": userID}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Address{}, ErrNotFound
	}
	if err != nil {
		return Address{}, fmt.Errorf("failed to get address: %w", err)
	}
	return a, nil
}

func (m *MongoRepository) Add(ctx context.Context, a Address) (Address, error) {
	id, err := m.nextID(ctx)
	if err != nil {
		return Address{}, err
	}
	a.AddressID = id
	a.CreatedAt = time.Now().UTC()
	if _, err := m.collection.InsertOne(ctx, a); err != nil {
		return Address{}, fmt.Errorf("failed to insert address: %w", err)
	}
	return a, nil
}

func (m *MongoRepository) Update(ctx context.Context, a Address) (Address, error) {
	current, err := m.Get(ctx, a.UserID, a.AddressID)
	if err != nil {
		return Address{}, err
	}
	a.CreatedAt = current.CreatedAt
	res, err := m.collection.ReplaceOne(ctx, bson.M{"_id": a.AddressID, "userId": a.UserID}, a)
	if err != nil {
		return Address{}, fmt.Errorf("failed to update address: %w", err)
	}
	if res.MatchedCount == 0 {
		return Address{}, ErrNotFound
	}
	return a, nil
}

func (m *MongoRepository) Delete(ctx context.Context, userID, addressID int) error {
	res, err := m.collection.DeleteOne(ctx, bson.M{"_id": addressID, "userId": userID})
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
