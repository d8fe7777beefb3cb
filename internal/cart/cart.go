package cart

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound        = errors.New("cart not found")
	ErrItemNotFound    = errors.New("item not found in cart")
	ErrVariantNotFound = errors.New("variant not found")
	ErrInvalidOwner    = errors.New("cart must belong to exactly one of user or guest token")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer no larger than 999")
)

// MaxQuantity bounds one cart line.
const MaxQuantity = 999

// Owner identifies whose cart is addressed. Exactly one field is set.
type Owner struct {
	UserID     int
	GuestToken string
}

func UserOwner(id int) Owner         { return Owner{UserID: id} }
func GuestOwner(token string) Owner { return Owner{GuestToken: token} }

func (o Owner) Validate() error {
	hasUser := o.UserID > 0
	hasGuest := o.GuestToken != ""
	if hasUser == hasGuest {
		return ErrInvalidOwner
	}
	return nil
}

func (o Owner) IsUser() bool { return o.UserID > 0 }

// Key is the stable string form of the owner, used for cache keys and logs.
func (o Owner) Key() string {
	if o.IsUser() {
		return fmt.Sprintf("user:%d", o.UserID)
	}
	return "guest:" + o.GuestToken
}

// Variant is the variant descriptor copied from the catalog when the line was
// added. Price is informational; pricing re-reads the catalog.
type Variant struct {
	SKU   string `json:"sku" bson:"sku"`
	Name  string `json:"name" bson:"name"`
	Price *int   `json:"price,omitempty" bson:"price,omitempty"`
}

type Item struct {
	ProductID int       `json:"productID" bson:"productId"`
	Variant   *Variant  `json:"variant,omitempty" bson:"variant,omitempty"`
	Quantity  int       `json:"quantity" bson:"quantity"`
	AddedAt   time.Time `json:"addedAt" bson:"addedAt"`
}

// SKU returns the variant SKU of the line, or "" for plain products.
func (i Item) SKU() string {
	if i.Variant == nil {
		return ""
	}
	return i.Variant.SKU
}

// Cart is keyed by exactly one of UserID or GuestToken, never both.
type Cart struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty"`
	UserID     *int      `json:"userId,omitempty" bson:"userId,omitempty"`
	GuestToken *string   `json:"guestToken,omitempty" bson:"guestToken,omitempty"`
	Items      []Item    `json:"items" bson:"items"`
	CreatedAt  time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" bson:"updatedAt"`
}

func newCart(o Owner) Cart {
	c := Cart{Items: []Item{}}
	if o.IsUser() {
		id := o.UserID
		c.UserID = &id
	} else {
		tok := o.GuestToken
		c.GuestToken = &tok
	}
	return c
}

func (c Cart) Owner() Owner {
	if c.UserID != nil {
		return UserOwner(*c.UserID)
	}
	if c.GuestToken != nil {
		return GuestOwner(*c.GuestToken)
	}
	return Owner{}
}

// Validate enforces cart exclusivity and line sanity before persisting.
func (c Cart) Validate() error {
	if (c.UserID == nil) == (c.GuestToken == nil) {
		return ErrInvalidOwner
	}
	if err := c.Owner().Validate(); err != nil {
		return err
	}
	for _, it := range c.Items {
		if it.Quantity <= 0 || it.Quantity > MaxQuantity {
			return ErrInvalidQuantity
		}
	}
	return nil
}

func (c Cart) IsEmpty() bool { return len(c.Items) == 0 }

func (c Cart) find(productID int, sku string) int {
	for i, it := range c.Items {
		if it.ProductID == productID && it.SKU() == sku {
			return i
		}
	}
	return -1
}
