package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wichananm65/pet-shop-storefront/internal/cart"
	"github.com/wichananm65/pet-shop-storefront/internal/product"
)

func intPtr(v int) *int { return &v }

func userCart(items ...cart.Item) cart.Cart {
	id := 1
	return cart.Cart{UserID: &id, Items: items}
}

func newCatalog() *product.InMemoryRepository {
	return product.NewInMemoryRepository([]product.Product{
		{ID: 1, Name: "Cat Food", Price: intPtr(1000)},
		{ID: 2, Name: "Collar", Price: intPtr(300), DiscountPrice: intPtr(250), Variants: []product.Variant{
			{SKU: "COL-L", Name: "Large", Price: intPtr(400)},
			{SKU: "COL-S", Name: "Small"},
		}},
		{ID: 3, Name: "Free Sample"},
	})
}

func TestResolve_PricePriority(t *testing.T) {
	r := NewResolver(newCatalog(), 0)
	q, err := r.Resolve(context.Background(), userCart(
		cart.Item{ProductID: 1, Quantity: 2},
		cart.Item{ProductID: 2, Quantity: 1},
		cart.Item{ProductID: 2, Quantity: 1, Variant: &cart.Variant{SKU: "COL-L", Name: "Large"}},
		cart.Item{ProductID: 2, Quantity: 1, Variant: &cart.Variant{SKU: "COL-S", Name: "Small"}},
	))
	require.NoError(t, err)
	require.Len(t, q.Lines, 4)

	assert.Equal(t, int64(1000), q.Lines[0].UnitPrice, "base price")
	assert.Equal(t, int64(250), q.Lines[1].UnitPrice, "discount beats base")
	assert.Equal(t, int64(400), q.Lines[2].UnitPrice, "variant beats discount")
	assert.Equal(t, "Large", q.Lines[2].VariantName)
	assert.Equal(t, int64(250), q.Lines[3].UnitPrice, "priceless variant falls back")
	assert.Equal(t, int64(2000+250+400+250), q.Total)
}

func TestResolve_CartVariantPriceUsedWhenCatalogDropsVariant(t *testing.T) {
	r := NewResolver(newCatalog(), 0)
	q, err := r.Resolve(context.Background(), userCart(
		cart.Item{ProductID: 2, Quantity: 3, Variant: &cart.Variant{SKU: "GONE", Price: intPtr(120)}},
	))
	require.NoError(t, err)
	assert.Equal(t, int64(360), q.Total)
}

func TestResolve_SkipsUnpricedAndMissing(t *testing.T) {
	r := NewResolver(newCatalog(), 0)
	q, err := r.Resolve(context.Background(), userCart(
		cart.Item{ProductID: 3, Quantity: 1},
		cart.Item{ProductID: 99, Quantity: 1},
		cart.Item{ProductID: 1, Quantity: 1},
	))
	require.NoError(t, err)
	require.Len(t, q.Lines, 1)
	assert.Equal(t, 1, q.Lines[0].ProductID)
	assert.Equal(t, 2, q.Excluded)
	assert.Equal(t, int64(1000), q.Total)
}

func TestResolve_EmptyOrder(t *testing.T) {
	r := NewResolver(newCatalog(), 0)

	_, err := r.Resolve(context.Background(), userCart(cart.Item{ProductID: 3, Quantity: 4}))
	assert.ErrorIs(t, err, ErrEmptyOrder)

	_, err = r.Resolve(context.Background(), userCart())
	assert.ErrorIs(t, err, ErrEmptyOrder)
}

type failingCatalog struct{}

func (failingCatalog) GetByID(context.Context, int) (product.Product, error) {
	return product.Product{}, errors.New("connection refused")
}

func TestResolve_CatalogFailureIsNotSwallowed(t *testing.T) {
	r := NewResolver(failingCatalog{}, 2)
	_, err := r.Resolve(context.Background(), userCart(cart.Item{ProductID: 1, Quantity: 1}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrEmptyOrder)
}

func TestResolve_RejectsAmountOverflow(t *testing.T) {
	catalog := product.NewInMemoryRepository([]product.Product{
		{ID: 1, Name: "Treat", Price: intPtr(4)},
		{ID: 2, Name: "Cage", Price: intPtr(1 << 40)},
	})
	r := NewResolver(catalog, 0)

	_, err := r.Resolve(context.Background(), userCart(cart.Item{ProductID: 1, Quantity: 1<<62 + 1}))
	assert.ErrorIs(t, err, ErrAmountOverflow, "a wrapped line total must not be charged")

	_, err = r.Resolve(context.Background(), userCart(
		cart.Item{ProductID: 2, Quantity: 1 << 22},
		cart.Item{ProductID: 2, Quantity: 1 << 22, Variant: &cart.Variant{SKU: "X", Price: intPtr(1 << 40)}},
	))
	assert.ErrorIs(t, err, ErrAmountOverflow, "the running total must not wrap either")
}
