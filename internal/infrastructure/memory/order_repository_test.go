package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	domain "github.com/orderstack/storefront/internal/domain/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrder(t *testing.T, id, userID string) *domain.Order {
	t.Helper()
	o, err := domain.New(id, userID, []domain.Item{
		{ProductID: "p1", ProductName: "Widget", UnitPrice: 10000, Quantity: 2},
	}, "addr", "card", "")
	require.NoError(t, err)
	return o
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	r := NewOrderRepository()
	o := newOrder(t, "o1", "u1")

	require.NoError(t, r.Insert(ctx, o))

	got, err := r.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(20000), got.TotalAmount)

	assert.ErrorIs(t, r.Insert(ctx, o), domain.ErrConflict)

	_, err = r.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCompareAndSetStatus(t *testing.T) {
	ctx := context.Background()
	r := NewOrderRepository()
	require.NoError(t, r.Insert(ctx, newOrder(t, "o1", "u1")))

	require.NoError(t, r.CompareAndSetStatus(ctx, "o1", domain.StatusPending, domain.StatusConfirmed))

	// Guard mismatch: the order is no longer pending.
	err := r.CompareAndSetStatus(ctx, "o1", domain.StatusPending, domain.StatusCancelled)
	assert.ErrorIs(t, err, domain.ErrConflict)

	err = r.CompareAndSetStatus(ctx, "missing", domain.StatusPending, domain.StatusConfirmed)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := r.Get(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, got.Status)
}

func TestCompareAndSetPaymentStatus(t *testing.T) {
	ctx := context.Background()
	r := NewOrderRepository()
	require.NoError(t, r.Insert(ctx, newOrder(t, "o1", "u1")))

	require.NoError(t, r.CompareAndSetPaymentStatus(ctx, "o1", domain.PaymentPending, domain.PaymentPaid))
	err := r.CompareAndSetPaymentStatus(ctx, "o1", domain.PaymentPending, domain.PaymentFailed)
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestListByUserPagination(t *testing.T) {
	ctx := context.Background()
	r := NewOrderRepository()
	for i := 0; i < 5; i++ {
		o := newOrder(t, fmt.Sprintf("o%d", i), "u1")
		o.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, r.Insert(ctx, o))
	}
	require.NoError(t, r.Insert(ctx, newOrder(t, "other", "u2")))

	p, err := r.ListByUser(ctx, "u1", 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.Total)
	assert.Equal(t, 3, p.Pages)
	assert.Len(t, p.Orders, 2)
	assert.Equal(t, "o4", p.Orders[0].ID, "newest first")

	p, err = r.ListByUser(ctx, "u1", 3, 2)
	require.NoError(t, err)
	assert.Len(t, p.Orders, 1)

	p, err = r.ListByUser(ctx, "u1", 9, 2)
	require.NoError(t, err)
	assert.Empty(t, p.Orders)
}

func TestListAllStatusFilter(t *testing.T) {
	ctx := context.Background()
	r := NewOrderRepository()
	require.NoError(t, r.Insert(ctx, newOrder(t, "o1", "u1")))
	require.NoError(t, r.Insert(ctx, newOrder(t, "o2", "u2")))
	require.NoError(t, r.CompareAndSetStatus(ctx, "o2", domain.StatusPending, domain.StatusConfirmed))

	p, err := r.ListAll(ctx, domain.ListFilter{Status: domain.StatusConfirmed}, 1, 10)
	require.NoError(t, err)
	require.Len(t, p.Orders, 1)
	assert.Equal(t, "o2", p.Orders[0].ID)

	p, err = r.ListAll(ctx, domain.ListFilter{}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Total)
}
