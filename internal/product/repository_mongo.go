package product

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection("products")}
}

func (m *MongoRepository) GetByID(ctx context.Context, id int) (Product, error) {
	var p Product
	if err := m.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

func (m *MongoRepository) ListByIDs(ctx context.Context, ids []int) ([]Product, error) {
	if len(ids) == 0 {
		return []Product{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cur, err := m.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	out := make([]Product, 0, len(ids))
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return out, nil
}

func (m *MongoRepository) Update(ctx context.Context, p Product) (Product, error) {
	p.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	res, err := m.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		return Product{}, fmt.Errorf("failed to update product: %w", err)
	}
	if res.MatchedCount == 0 {
		return Product{}, ErrNotFound
	}
	return p, nil
}
