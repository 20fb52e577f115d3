package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/orderstack/storefront/internal/domain/order"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OrderRepository persists orders as single documents embedding the line-item
// snapshot inline, which is what keeps totals immutable against later catalog
// edits. Status writes are compare-and-set on the expected prior value.
type OrderRepository struct {
	coll *mongo.Collection
}

type orderItemDoc struct {
	ProductID   string   `bson:"product_id"`
	ProductName string   `bson:"product_name"`
	UnitPrice   int64    `bson:"unit_price"`
	Quantity    int      `bson:"quantity"`
	Images      []string `bson:"images,omitempty"`
}

type orderDoc struct {
	ID              string         `bson:"_id"`
	UserID          string         `bson:"user_id"`
	Items           []orderItemDoc `bson:"items"`
	TotalAmount     int64          `bson:"total_amount"`
	Status          string         `bson:"status"`
	PaymentStatus   string         `bson:"payment_status"`
	ShippingAddress string         `bson:"shipping_address"`
	PaymentMethod   string         `bson:"payment_method"`
	Note            string         `bson:"note,omitempty"`
	CreatedAt       time.Time      `bson:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at"`
}

func (r *OrderRepository) Insert(ctx context.Context, o *domain.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("order insert: id is required")
	}

	_, err := r.coll.InsertOne(ctx, toDoc(o))
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("order insert: %w", err)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*domain.Order, error) {
	var doc orderDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("order get: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *OrderRepository) CompareAndSetStatus(ctx context.Context, id string, expect, next domain.Status) error {
	return r.compareAndSet(ctx, id, bson.M{"status": string(expect)}, bson.M{"status": string(next)})
}

func (r *OrderRepository) CompareAndSetPaymentStatus(ctx context.Context, id string, expect, next domain.PaymentStatus) error {
	return r.compareAndSet(ctx, id, bson.M{"payment_status": string(expect)}, bson.M{"payment_status": string(next)})
}

func (r *OrderRepository) compareAndSet(ctx context.Context, id string, guard, set bson.M) error {
	filter := bson.M{"_id": id}
	for k, v := range guard {
		filter[k] = v
	}
	set["updated_at"] = time.Now().UTC()

	res, err := r.coll.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("order update: %w", err)
	}
	if res.MatchedCount == 0 {
		// Distinguish an unknown order from a guard mismatch.
		if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Err(); errors.Is(err, mongo.ErrNoDocuments) {
			return domain.ErrNotFound
		} else if err != nil {
			return fmt.Errorf("order update: %w", err)
		}
		return domain.ErrConflict
	}
	return nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string, page, pageSize int) (*domain.Page, error) {
	return r.list(ctx, bson.M{"user_id": userID}, page, pageSize)
}

func (r *OrderRepository) ListAll(ctx context.Context, filter domain.ListFilter, page, pageSize int) (*domain.Page, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = string(filter.Status)
	}
	return r.list(ctx, query, page, pageSize)
}

func (r *OrderRepository) list(ctx context.Context, query bson.M, page, pageSize int) (*domain.Page, error) {
	page, pageSize = domain.ClampPage(page, pageSize)

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("order count: %w", err)
	}

	cur, err := r.coll.Find(ctx, query, options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64((page-1)*pageSize)).
		SetLimit(int64(pageSize)),
	)
	if err != nil {
		return nil, fmt.Errorf("order list: %w", err)
	}
	defer cur.Close(ctx)

	orders := make([]*domain.Order, 0, pageSize)
	for cur.Next(ctx) {
		var doc orderDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("order decode: %w", err)
		}
		orders = append(orders, doc.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("order list: %w", err)
	}

	return &domain.Page{
		Orders:   orders,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Pages:    domain.PageCount(total, pageSize),
	}, nil
}

func toDoc(o *domain.Order) *orderDoc {
	items := make([]orderItemDoc, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDoc{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Images:      it.Images,
		})
	}
	return &orderDoc{
		ID:              o.ID,
		UserID:          o.UserID,
		Items:           items,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		PaymentStatus:   string(o.PaymentStatus),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		Note:            o.Note,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (d *orderDoc) toDomain() *domain.Order {
	items := make([]domain.Item, 0, len(d.Items))
	for _, it := range d.Items {
		items = append(items, domain.Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Images:      it.Images,
		})
	}
	return &domain.Order{
		ID:              d.ID,
		UserID:          d.UserID,
		Items:           items,
		TotalAmount:     d.TotalAmount,
		Status:          domain.Status(d.Status),
		PaymentStatus:   domain.PaymentStatus(d.PaymentStatus),
		ShippingAddress: d.ShippingAddress,
		PaymentMethod:   d.PaymentMethod,
		Note:            d.Note,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}
