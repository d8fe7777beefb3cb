package product

import (
	"context"
	"errors"
	"sort"
	"sync"
)

var (
	ErrNotFound = errors.New("product not found")
)

// Repository is the read side of the catalog used by cart and pricing, plus
// Update for the back office price edits that must never leak into orders.
type Repository interface {
	GetByID(ctx context.Context, id int) (Product, error)
	// ListByIDs returns the products present in ids. Missing ids are skipped.
	ListByIDs(ctx context.Context, ids []int) ([]Product, error)
	Update(ctx context.Context, p Product) (Product, error)
}

// InMemoryRepository is a simple in-memory implementation useful for tests and
// seeding local data.
type InMemoryRepository struct {
	mu      sync.RWMutex
	storage map[int]Product
}

func NewInMemoryRepository(seed []Product) *InMemoryRepository {
	r := &InMemoryRepository{storage: make(map[int]Product, len(seed))}
	for _, p := range seed {
		r.storage[p.ID] = clone(p)
	}
	return r
}

func (r *InMemoryRepository) GetByID(_ context.Context, id int) (Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.storage[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return clone(p), nil
}

func (r *InMemoryRepository) ListByIDs(_ context.Context, ids []int) ([]Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.storage[id]; ok {
			out = append(out, clone(p))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) Update(_ context.Context, p Product) (Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.storage[p.ID]; !ok {
		return Product{}, ErrNotFound
	}
	r.storage[p.ID] = clone(p)
	return p, nil
}

// clone detaches pointer fields so callers cannot mutate stored products.
func clone(p Product) Product {
	if p.Price != nil {
		v := *p.Price
		p.Price = &v
	}
	if p.DiscountPrice != nil {
		v := *p.DiscountPrice
		p.DiscountPrice = &v
	}
	if p.Variants != nil {
		vs := make([]Variant, len(p.Variants))
		for i, v := range p.Variants {
			if v.Price != nil {
				pv := *v.Price
				v.Price = &pv
			}
			vs[i] = v
		}
		p.Variants = vs
	}
	return p
}
