package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection("carts")}
}

func ownerFilter(o Owner) bson.M {
	if o.IsUser() {
		return bson.M{"userId": o.UserID}
	}
	return bson.M{"guestToken": o.GuestToken}
}

func (m *MongoRepository) Get(ctx context.Context, owner Owner) (Cart, error) {
	if err := owner.Validate(); err != nil {
		return Cart{}, err
	}
	var c Cart
	if err := m.collection.FindOne(ctx, ownerFilter(owner)).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return Cart{}, ErrNotFound
		}
		return Cart{}, fmt.Errorf("failed to get cart: %w", err)
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c, nil
}

// Save upserts on the owner key; the owner field itself comes from the filter
// on insert, so the other owner field is never written.
func (m *MongoRepository) Save(ctx context.Context, c Cart) (Cart, error) {
	if err := c.Validate(); err != nil {
		return Cart{}, err
	}
	now := time.Now().UTC()
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	if c.Items == nil {
		c.Items = []Item{}
	}

	update := bson.M{
		"$set":         bson.M{"items": c.Items, "updatedAt": now},
		"$setOnInsert": bson.M{"_id": id, "createdAt": now},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var saved Cart
	if err := m.collection.FindOneAndUpdate(ctx, ownerFilter(c.Owner()), update, opts).Decode(&saved); err != nil {
		return Cart{}, fmt.Errorf("failed to upsert cart: %w", err)
	}
	return saved, nil
}

func (m *MongoRepository) Delete(ctx context.Context, owner Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	if _, err := m.collection.DeleteOne(ctx, ownerFilter(owner)); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

// CreateIndexes installs the two partial unique indexes that let user carts
// and guest carts coexist in one collection.
func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"userId": bson.M{"$exists": true}}),
		},
		{
			Keys: bson.D{{Key: "guestToken", Value: 1}},
			Options: options.Index().SetUnique(true).
				SetPartialFilterExpression(bson.M{"guestToken": bson.M{"$exists": true}}),
		},
		{
			Keys:    bson.D{{Key: "updatedAt", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(90 * 24 * 60 * 60),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
