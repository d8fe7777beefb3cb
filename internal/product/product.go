package product

// Product is the catalog view the storefront prices carts against.
// Price and DiscountPrice are nullable: a product without any defined price
// cannot be sold and is dropped from orders by the pricing resolver.
type Product struct {
	ID            int       `json:"productID" bson:"_id"`
	Name          string    `json:"productName" bson:"name"`
	Price         *int      `json:"productPrice,omitempty" bson:"price,omitempty"`
	DiscountPrice *int      `json:"discountPrice,omitempty" bson:"discountPrice,omitempty"`
	Variants      []Variant `json:"variants,omitempty" bson:"variants,omitempty"`
	Category      *string   `json:"category,omitempty" bson:"category,omitempty"`
	Img           *string   `json:"productImg,omitempty" bson:"img,omitempty"`
	UpdatedAt     string    `json:"updatedAt,omitempty" bson:"updatedAt,omitempty"`
}

// Variant is a sellable option of a product (size, flavour, ...). A non-nil
// Price overrides the product price for lines that pick this variant.
type Variant struct {
	SKU   string `json:"sku" bson:"sku"`
	Name  string `json:"name" bson:"name"`
	Price *int   `json:"price,omitempty" bson:"price,omitempty"`
}

// FindVariant returns the variant with the given SKU.
func (p Product) FindVariant(sku string) (Variant, bool) {
	for _, v := range p.Variants {
		if v.SKU == sku {
			return v, true
		}
	}
	return Variant{}, false
}
