package memory

import (
	"context"
	"sync"
	"testing"

	domain "github.com/orderstack/storefront/internal/domain/cart"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAbsentCartReturnsEmptySentinel(t *testing.T) {
	r := NewCartRepository()
	c, err := r.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.True(t, c.IsEmpty())
}

func TestUpsertLineMergesQuantity(t *testing.T) {
	ctx := context.Background()
	r := NewCartRepository()

	require.NoError(t, r.UpsertLine(ctx, "u1", "p1", 2))
	require.NoError(t, r.UpsertLine(ctx, "u1", "p1", 3))

	c, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 5, c.Lines[0].Quantity)
}

func TestUpsertLineRejectsNonPositiveQuantity(t *testing.T) {
	r := NewCartRepository()
	err := r.UpsertLine(context.Background(), "u1", "p1", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestSetLineQuantity(t *testing.T) {
	ctx := context.Background()
	r := NewCartRepository()
	require.NoError(t, r.UpsertLine(ctx, "u1", "p1", 2))

	require.NoError(t, r.SetLineQuantity(ctx, "u1", "p1", 7))
	c, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 7, c.Lines[0].Quantity)

	// Zero or negative removes the line.
	require.NoError(t, r.SetLineQuantity(ctx, "u1", "p1", 0))
	c, err = r.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

func TestClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewCartRepository()

	require.NoError(t, r.Clear(ctx, "nobody"))

	require.NoError(t, r.UpsertLine(ctx, "u1", "p1", 1))
	require.NoError(t, r.Clear(ctx, "u1"))
	require.NoError(t, r.Clear(ctx, "u1"))

	c, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
}

// Concurrent adds for the same line must not lose updates.
func TestUpsertLineConcurrentAdds(t *testing.T) {
	const adds = 100
	ctx := context.Background()
	r := NewCartRepository()

	var wg sync.WaitGroup
	for i := 0; i < adds; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = r.UpsertLine(ctx, "u1", "p1", 1)
		}()
	}
	wg.Wait()

	c, err := r.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, adds, c.Lines[0].Quantity)
}
