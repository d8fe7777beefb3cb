package cart

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Repository persists whole carts. Mutations are read-modify-write in the
// service, so two concurrent adds for one owner may lose an update.
type Repository interface {
	// Get returns ErrNotFound when the owner has no cart row.
	Get(ctx context.Context, owner Owner) (Cart, error)
	// Save creates or replaces the owner's cart.
	Save(ctx context.Context, c Cart) (Cart, error)
	// Delete removes the owner's cart row. Deleting a missing cart is not an error.
	Delete(ctx context.Context, owner Owner) error
}

// InMemoryRepository is used for tests and local scenarios.
type InMemoryRepository struct {
	mu    sync.RWMutex
	carts map[string]Cart
}

func NewInMemoryRepository(seed ...Cart) *InMemoryRepository {
	r := &InMemoryRepository{carts: make(map[string]Cart, len(seed))}
	for _, c := range seed {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		r.carts[c.Owner().Key()] = cloneCart(c)
	}
	return r
}

func (r *InMemoryRepository) Get(_ context.Context, owner Owner) (Cart, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.carts[owner.Key()]
	if !ok {
		return Cart{}, ErrNotFound
	}
	return cloneCart(c), nil
}

func (r *InMemoryRepository) Save(_ context.Context, c Cart) (Cart, error) {
	if err := c.Validate(); err != nil {
		return Cart{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	key := c.Owner().Key()
	if existing, ok := r.carts[key]; ok {
		c.ID = existing.ID
		c.CreatedAt = existing.CreatedAt
	} else if c.ID == "" {
		c.ID = uuid.NewString()
	}
	r.carts[key] = cloneCart(c)
	return cloneCart(c), nil
}

func (r *InMemoryRepository) Delete(_ context.Context, owner Owner) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.carts, owner.Key())
	return nil
}

// Len reports how many carts are stored.
func (r *InMemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.carts)
}

func cloneCart(c Cart) Cart {
	items := make([]Item, len(c.Items))
	for i, it := range c.Items {
		if it.Variant != nil {
			v := *it.Variant
			it.Variant = &v
		}
		items[i] = it
	}
	c.Items = items
	return c
}
