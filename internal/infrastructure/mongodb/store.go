package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	collProducts  = "products"
	collCartItems = "cart_items"
	collOrders    = "orders"
)

// Store is the lifetime-scoped mongo handle. It is constructed once at
// startup, handed to each repository, and closed by the shutdown sequence;
// there is no lazily-initialized global connection.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect establishes the client, verifies the server is reachable, and
// ensures the indexes the repositories rely on.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := &Store{client: client, db: client.Database(database)}
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *Store) Catalog() *CatalogRepository {
	return &CatalogRepository{coll: s.db.Collection(collProducts)}
}

func (s *Store) Carts() *CartRepository {
	return &CartRepository{coll: s.db.Collection(collCartItems)}
}

func (s *Store) Orders() *OrderRepository {
	return &OrderRepository{coll: s.db.Collection(collOrders)}
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	// One document per cart line; the unique index is what makes the
	// (user_id, product_id) upsert race-free.
	_, err := s.db.Collection(collCartItems).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "product_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo ensure cart index: %w", err)
	}

	_, err = s.db.Collection(collOrders).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("mongo ensure order indexes: %w", err)
	}
	return nil
}
