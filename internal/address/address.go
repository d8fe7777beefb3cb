package address

import (
	"time"

	"github.com/wichananm65/pet-shop-storefront/internal/order"
)

// Address is a saved shipping address. Checkout copies it into the order, so
// editing or deleting it later never changes a placed order.
type Address struct {
	AddressID int    `json:"addressId" bson:"_id"`
	UserID    int    `json:"userId" bson:"userId"`
	Label     string `json:"label,omitempty" bson:"label,omitempty"`

	order.ShippingAddress `bson:",inline"`

	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}
