package address

import (
	"context"
	"fmt"
	"strings"
)

// ValidationError lists the shipping fields a request left blank.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return "missing address fields: " + strings.Join(e.Missing, ", ")
}

// Service orchestrates the saved address book.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, userID int) ([]Address, error) {
	if userID <= 0 {
		return nil, ErrNotFound
	}
	return s.repo.List(ctx, userID)
}

// Get returns one of the user's addresses. Another user's address id is
// reported as not found.
func (s *Service) Get(ctx context.Context, userID, addressID int) (Address, error) {
	if userID <= 0 || addressID <= 0 {
		return Address{}, ErrNotFound
	}
	a, err := s.repo.Get(ctx, userID, addressID)
	if err != nil {
		return Address{}, fmt.Errorf("address %d: %w", addressID, err)
	}
	return a, nil
}

func (s *Service) Add(ctx context.Context, a Address) (Address, error) {
	if a.UserID <= 0 {
		return Address{}, ErrNotFound
	}
	if missing := a.Missing(); len(missing) > 0 {
		return Address{}, &ValidationError{Missing: missing}
	}
	return s.repo.Add(ctx, a)
}

func (s *Service) Update(ctx context.Context, a Address) (Address, error) {
	if a.UserID <= 0 || a.AddressID <= 0 {
		return Address{}, ErrNotFound
	}
	if missing := a.Missing(); len(missing) > 0 {
		return Address{}, &ValidationError{Missing: missing}
	}
	return s.repo.Update(ctx, a)
}

func (s *Service) Delete(ctx context.Context, userID, addressID int) error {
	if userID <= 0 || addressID <= 0 {
		return ErrNotFound
	}
	return s.repo.Delete(ctx, userID, addressID)
}
