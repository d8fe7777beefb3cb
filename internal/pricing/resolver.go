package pricing

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/wichananm65/pet-shop-storefront/internal/cart"
	"github.com/wichananm65/pet-shop-storefront/internal/product"
	"golang.org/x/sync/errgroup"
)

var (
	ErrEmptyOrder = errors.New("order has no purchasable lines")
	// ErrAmountOverflow is a cart whose total does not fit the amount type.
	ErrAmountOverflow = errors.New("order amount out of range")
)

// CatalogReader is the catalog lookup the resolver prices against.
type CatalogReader interface {
	GetByID(ctx context.Context, id int) (product.Product, error)
}

// Line is one priced cart line. UnitPrice is frozen into the order at
// creation time.
type Line struct {
	ProductID   int    `json:"productID"`
	Name        string `json:"productName"`
	SKU         string `json:"sku,omitempty"`
	VariantName string `json:"variantName,omitempty"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	LineTotal   int64  `json:"lineTotal"`
}

type Quote struct {
	Lines []Line `json:"lines"`
	Total int64  `json:"total"`
	// Excluded counts cart lines dropped for lacking a price or a product.
	Excluded int `json:"excluded"`
}

type Resolver struct {
	catalog       CatalogReader
	maxConcurrent int
}

func NewResolver(catalog CatalogReader, maxConcurrent int) *Resolver {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Resolver{catalog: catalog, maxConcurrent: maxConcurrent}
}

// Resolve prices every line of c against the current catalog. Lines whose
// product is gone or has no defined price are skipped. A total of zero or
// less yields ErrEmptyOrder.
func (r *Resolver) Resolve(ctx context.Context, c cart.Cart) (Quote, error) {
	products := make([]*product.Product, len(c.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)

	for idx := range c.Items {
		g.Go(func() error {
			p, err := r.catalog.GetByID(gctx, c.Items[idx].ProductID)
			if errors.Is(err, product.ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get product %d: %w", c.Items[idx].ProductID, err)
			}
			products[idx] = &p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Quote{}, err
	}

	q := Quote{Lines: make([]Line, 0, len(c.Items))}
	for idx, it := range c.Items {
		p := products[idx]
		if p == nil || it.Quantity <= 0 {
			q.Excluded++
			continue
		}
		price, ok := UnitPrice(*p, it)
		if !ok {
			q.Excluded++
			continue
		}
		if price > 0 && int64(it.Quantity) > math.MaxInt64/price {
			return Quote{}, fmt.Errorf("product %d x %d: %w", p.ID, it.Quantity, ErrAmountOverflow)
		}
		line := Line{
			ProductID: p.ID,
			Name:      p.Name,
			SKU:       it.SKU(),
			UnitPrice: price,
			Quantity:  it.Quantity,
			LineTotal: price * int64(it.Quantity),
		}
		if it.Variant != nil {
			line.VariantName = it.Variant.Name
		}
		if line.LineTotal > 0 && q.Total > math.MaxInt64-line.LineTotal {
			return Quote{}, fmt.Errorf("product %d: %w", p.ID, ErrAmountOverflow)
		}
		q.Lines = append(q.Lines, line)
		q.Total += line.LineTotal
	}

	if q.Total <= 0 {
		return Quote{}, ErrEmptyOrder
	}
	return q, nil
}

// UnitPrice picks the variant price, then the discount price, then the base
// price. The catalog variant wins over the price copied into the cart line.
func UnitPrice(p product.Product, it cart.Item) (int64, bool) {
	if sku := it.SKU(); sku != "" {
		if v, ok := p.FindVariant(sku); ok && v.Price != nil {
			return int64(*v.Price), true
		}
		if it.Variant.Price != nil {
			return int64(*it.Variant.Price), true
		}
	}
	if p.DiscountPrice != nil && *p.DiscountPrice > 0 {
		return int64(*p.DiscountPrice), true
	}
	if p.Price != nil {
		return int64(*p.Price), true
	}
	return 0, false
}
