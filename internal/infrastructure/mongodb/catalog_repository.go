package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/orderstack/storefront/internal/domain/catalog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CatalogRepository struct {
	coll *mongo.Collection
}

type productDoc struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	UnitPrice int64     `bson:"unit_price"`
	Stock     int       `bson:"stock"`
	Images    []string  `bson:"images,omitempty"`
	Active    bool      `bson:"active"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func (r *CatalogRepository) Get(ctx context.Context, productID string) (*domain.Product, error) {
	var doc productDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": productID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, &domain.NotFoundError{ProductID: productID}
	}
	if err != nil {
		return nil, fmt.Errorf("catalog get: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *CatalogRepository) Save(ctx context.Context, p *domain.Product) error {
	if p == nil || p.ID == "" {
		return nil
	}

	// Stock changes go through AdjustStock only; Save sets stock solely when
	// inserting a product that did not exist yet.
	update := bson.M{
		"$set": bson.M{
			"name":       p.Name,
			"unit_price": p.UnitPrice,
			"images":     p.Images,
			"active":     p.Active,
			"updated_at": time.Now().UTC(),
		},
		"$setOnInsert": bson.M{"stock": p.Stock},
	}
	_, err := r.coll.UpdateOne(ctx, bson.M{"_id": p.ID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("catalog save: %w", err)
	}
	return nil
}

// AdjustStock is a single conditional FindOneAndUpdate: for a negative delta
// the filter requires stock >= |delta|, so the decrement and the availability
// check are one store operation and concurrent checkouts for the same product
// serialize server-side.
func (r *CatalogRepository) AdjustStock(ctx context.Context, productID string, delta int) (int, error) {
	filter := bson.M{"_id": productID}
	if delta < 0 {
		filter["stock"] = bson.M{"$gte": -delta}
	}
	update := bson.M{
		"$inc": bson.M{"stock": delta},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}

	var doc productDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// No match: either the product is unknown or the stock guard failed.
		current, getErr := r.Get(ctx, productID)
		if getErr != nil {
			return 0, getErr
		}
		return 0, &domain.InsufficientStockError{
			ProductID: productID,
			Requested: -delta,
			Available: current.Stock,
		}
	}
	if err != nil {
		return 0, fmt.Errorf("catalog adjust stock: %w", err)
	}
	return doc.Stock, nil
}

func (d *productDoc) toDomain() *domain.Product {
	return &domain.Product{
		ID:        d.ID,
		Name:      d.Name,
		UnitPrice: d.UnitPrice,
		Stock:     d.Stock,
		Images:    d.Images,
		Active:    d.Active,
		UpdatedAt: d.UpdatedAt,
	}
}
