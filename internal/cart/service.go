package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wichananm65/pet-shop-storefront/internal/product"
)

// ProductLookup is the slice of the catalog the cart needs to validate adds.
type ProductLookup interface {
	GetByID(ctx context.Context, id int) (product.Product, error)
}

// Service orchestrates cart operations.
type Service struct {
	repo     Repository
	products ProductLookup
	now      func() time.Time
}

func NewService(repo Repository, products ProductLookup) *Service {
	return &Service{repo: repo, products: products, now: time.Now}
}

// AddItemInput describes one add-to-cart call. SKU selects a product variant.
type AddItemInput struct {
	ProductID int
	Quantity  int
	SKU       string
}

// Get returns the owner's cart, or an empty cart when none exists. It never
// creates a row.
func (s *Service) Get(ctx context.Context, owner Owner) (Cart, error) {
	if err := owner.Validate(); err != nil {
		return Cart{}, err
	}
	c, err := s.repo.Get(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		return newCart(owner), nil
	}
	return c, err
}

// AddItem merges into an existing line with the same product and SKU by
// summing quantities, or appends a new line. The cart row is created on the
// first add. An unknown product or variant leaves the cart untouched.
func (s *Service) AddItem(ctx context.Context, owner Owner, in AddItemInput) (Cart, error) {
	if err := owner.Validate(); err != nil {
		return Cart{}, err
	}
	if in.Quantity <= 0 || in.Quantity > MaxQuantity {
		return Cart{}, ErrInvalidQuantity
	}
	if in.ProductID <= 0 {
		return Cart{}, product.ErrNotFound
	}

	p, err := s.products.GetByID(ctx, in.ProductID)
	if err != nil {
		return Cart{}, fmt.Errorf("add product %d: %w", in.ProductID, err)
	}
	var variant *Variant
	if in.SKU != "" {
		v, ok := p.FindVariant(in.SKU)
		if !ok {
			return Cart{}, fmt.Errorf("product %d sku %q: %w", in.ProductID, in.SKU, ErrVariantNotFound)
		}
		variant = &Variant{SKU: v.SKU, Name: v.Name, Price: v.Price}
	}

	c, err := s.Get(ctx, owner)
	if err != nil {
		return Cart{}, err
	}
	now := s.now().UTC()
	if i := c.find(in.ProductID, in.SKU); i >= 0 {
		if c.Items[i].Quantity+in.Quantity > MaxQuantity {
			return Cart{}, ErrInvalidQuantity
		}
		c.Items[i].Quantity += in.Quantity
	} else {
		c.Items = append(c.Items, Item{
			ProductID: in.ProductID,
			Variant:   variant,
			Quantity:  in.Quantity,
			AddedAt:   now,
		})
	}
	c.UpdatedAt = now
	return s.repo.Save(ctx, c)
}

// UpdateItem sets the quantity of one line. A quantity of zero or less
// removes the line, never the cart.
func (s *Service) UpdateItem(ctx context.Context, owner Owner, productID int, sku string, qty int) (Cart, error) {
	if qty > MaxQuantity {
		return Cart{}, ErrInvalidQuantity
	}
	c, err := s.existing(ctx, owner)
	if err != nil {
		return Cart{}, err
	}
	i := c.find(productID, sku)
	if i < 0 {
		return Cart{}, ErrItemNotFound
	}
	if qty <= 0 {
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
	} else {
		c.Items[i].Quantity = qty
	}
	c.UpdatedAt = s.now().UTC()
	return s.repo.Save(ctx, c)
}

func (s *Service) RemoveItem(ctx context.Context, owner Owner, productID int, sku string) (Cart, error) {
	return s.UpdateItem(ctx, owner, productID, sku, 0)
}

// Clear empties the cart but keeps the row.
func (s *Service) Clear(ctx context.Context, owner Owner) (Cart, error) {
	c, err := s.existing(ctx, owner)
	if errors.Is(err, ErrNotFound) {
		return newCart(owner), nil
	}
	if err != nil {
		return Cart{}, err
	}
	c.Items = []Item{}
	c.UpdatedAt = s.now().UTC()
	return s.repo.Save(ctx, c)
}

// Delete removes the cart row. Settlement calls it once the order is paid.
func (s *Service) Delete(ctx context.Context, owner Owner) error {
	if err := owner.Validate(); err != nil {
		return err
	}
	return s.repo.Delete(ctx, owner)
}

// Merge moves the guest cart lines into the user's cart after sign-in and
// deletes the guest cart, so the lines never live under both keys.
func (s *Service) Merge(ctx context.Context, guestToken string, userID int) (Cart, error) {
	guest := GuestOwner(guestToken)
	userOwner := UserOwner(userID)
	if err := guest.Validate(); err != nil {
		return Cart{}, err
	}
	if err := userOwner.Validate(); err != nil {
		return Cart{}, err
	}

	gc, err := s.repo.Get(ctx, guest)
	if errors.Is(err, ErrNotFound) {
		return s.Get(ctx, userOwner)
	}
	if err != nil {
		return Cart{}, err
	}

	uc, err := s.Get(ctx, userOwner)
	if err != nil {
		return Cart{}, err
	}
	for _, it := range gc.Items {
		if it.Quantity > MaxQuantity {
			return Cart{}, ErrInvalidQuantity
		}
		if i := uc.find(it.ProductID, it.SKU()); i >= 0 {
			if uc.Items[i].Quantity+it.Quantity > MaxQuantity {
				return Cart{}, ErrInvalidQuantity
			}
			uc.Items[i].Quantity += it.Quantity
		} else {
			uc.Items = append(uc.Items, it)
		}
	}
	uc.UpdatedAt = s.now().UTC()
	saved, err := s.repo.Save(ctx, uc)
	if err != nil {
		return Cart{}, err
	}
	if err := s.repo.Delete(ctx, guest); err != nil {
		return Cart{}, err
	}
	return saved, nil
}

func (s *Service) existing(ctx context.Context, owner Owner) (Cart, error) {
	if err := owner.Validate(); err != nil {
		return Cart{}, err
	}
	return s.repo.Get(ctx, owner)
}
