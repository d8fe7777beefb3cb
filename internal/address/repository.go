package address

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("address not found")
)

type Repository interface {
	List(ctx context.Context, userID int) ([]Address, error)
	Get(ctx context.Context, userID, addressID int) (Address, error)
	Add(ctx context.Context, a Address) (Address, error)
	Update(ctx context.Context, a Address) (Address, error)
	Delete(ctx context.Context, userID, addressID int) error
}

// InMemoryRepository for tests
type InMemoryRepository struct {
	mu     sync.Mutex
	data   map[int][]Address // keyed by userID
	nextID int
}

func NewInMemoryRepository(seed map[int][]Address) *InMemoryRepository {
	r := &InMemoryRepository{data: make(map[int][]Address)}
	for userID, addrs := range seed {
		for _, a := range addrs {
			a.UserID = userID
			if a.AddressID > r.nextID {
				r.nextID = a.AddressID
			}
			r.data[userID] = append(r.data[userID], a)
		}
	}
	return r
}

func (r *InMemoryRepository) List(_ context.Context, userID int) ([]Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append(make([]Address, 0, len(r.data[userID])), r.data[userID]...), nil
}

func (r *InMemoryRepository) Get(_ context.Context, userID, addressID int) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.data[userID] {
		if a.AddressID == addressID {
			return a, nil
		}
	}
	return Address{}, ErrNotFound
}

func (r *InMemoryRepository) Add(_ context.Context, a Address) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	a.AddressID = r.nextID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	r.data[a.UserID] = append(r.data[a.UserID], a)
	return a, nil
}

func (r *InMemoryRepository) Update(_ context.Context, a Address) (Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cur := range r.data[a.UserID] {
		if cur.AddressID == a.AddressID {
			a.CreatedAt = cur.CreatedAt
			r.data[a.UserID][i] = a
			return a, nil
		}
	}
	return Address{}, ErrNotFound
}

func (r *InMemoryRepository) Delete(_ context.Context, userID, addressID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	addrs := r.data[userID]
	for i, a := range addrs {
		if a.AddressID == addressID {
			r.data[userID] = append(addrs[:i:i], addrs[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}
