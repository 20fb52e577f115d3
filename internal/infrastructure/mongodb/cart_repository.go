package mongodb

import (
	"context"
	"fmt"
	"time"

	domain "github.com/orderstack/storefront/internal/domain/cart"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CartRepository stores one document per cart line. Mutations are targeted
// upserts on (user_id, product_id), never a whole-cart read-modify-write, so
// concurrent adds from the same user cannot lose updates.
type CartRepository struct {
	coll *mongo.Collection
}

type cartLineDoc struct {
	UserID    string    `bson:"user_id"`
	ProductID string    `bson:"product_id"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"added_at"`
}

func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID},
		options.Find().SetSort(bson.D{{Key: "added_at", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("cart get: %w", err)
	}
	defer cur.Close(ctx)

	c := domain.Empty(userID)
	for cur.Next(ctx) {
		var doc cartLineDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("cart decode: %w", err)
		}
		c.Lines = append(c.Lines, domain.Line{
			ProductID: doc.ProductID,
			Quantity:  doc.Quantity,
			AddedAt:   doc.AddedAt,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("cart get: %w", err)
	}
	return c, nil
}

func (r *CartRepository) UpsertLine(ctx context.Context, userID, productID string, qty int) error {
	if qty < 1 {
		return domain.ErrInvalidQuantity
	}

	filter := bson.M{"user_id": userID, "product_id": productID}
	update := bson.M{
		"$inc": bson.M{"quantity": qty},
		"$set": bson.M{"added_at": time.Now().UTC()},
	}
	_, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("cart upsert line: %w", err)
	}
	return nil
}

func (r *CartRepository) SetLineQuantity(ctx context.Context, userID, productID string, qty int) error {
	if qty <= 0 {
		return r.RemoveLine(ctx, userID, productID)
	}

	filter := bson.M{"user_id": userID, "product_id": productID}
	_, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"quantity": qty}})
	if err != nil {
		return fmt.Errorf("cart set quantity: %w", err)
	}
	return nil
}

func (r *CartRepository) RemoveLine(ctx context.Context, userID, productID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID, "product_id": productID})
	if err != nil {
		return fmt.Errorf("cart remove line: %w", err)
	}
	return nil
}

func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	_, err := r.coll.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("cart clear: %w", err)
	}
	return nil
}
