package order

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrNotPending is returned when a payment transition is requested for an
	// order that already left Pending in another direction.
	ErrNotPending = errors.New("order is no longer pending")
	ErrDuplicate  = errors.New("order already exists for this gateway order")
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "Pending"
	PaymentPaid    PaymentStatus = "Paid"
	PaymentFailed  PaymentStatus = "Failed"
)

type Status string

const (
	StatusProcessing     Status = "Processing"
	StatusShipped        Status = "Shipped"
	StatusOutForDelivery Status = "Out for Delivery"
	StatusDelivered      Status = "Delivered"
	StatusCancelled      Status = "Cancelled"
)

// Line is a cart line frozen at checkout. UnitPrice never changes after the
// order is created.
type Line struct {
	ProductID   int    `json:"productID" bson:"productId"`
	Name        string `json:"productName" bson:"name"`
	SKU         string `json:"sku,omitempty" bson:"sku,omitempty"`
	VariantName string `json:"variantName,omitempty" bson:"variantName,omitempty"`
	UnitPrice   int64  `json:"unitPrice" bson:"unitPrice"`
	Quantity    int    `json:"quantity" bson:"quantity"`
	LineTotal   int64  `json:"lineTotal" bson:"lineTotal"`
}

type ShippingAddress struct {
	FullName   string `json:"fullName" bson:"fullName"`
	Phone      string `json:"phone" bson:"phone"`
	Line1      string `json:"line1" bson:"line1"`
	Line2      string `json:"line2,omitempty" bson:"line2,omitempty"`
	City       string `json:"city" bson:"city"`
	State      string `json:"state,omitempty" bson:"state,omitempty"`
	PostalCode string `json:"postalCode" bson:"postalCode"`
	Country    string `json:"country" bson:"country"`
}

// Missing lists the required address fields that are blank.
func (a ShippingAddress) Missing() []string {
	var missing []string
	for _, f := range []struct{ name, v string }{
		{"fullName", a.FullName},
		{"phone", a.Phone},
		{"line1", a.Line1},
		{"city", a.City},
		{"postalCode", a.PostalCode},
		{"country", a.Country},
	} {
		if strings.TrimSpace(f.v) == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// CartOwner records which cart supplied the order, so settlement deletes
// that cart and not the other one the customer may have.
type CartOwner struct {
	UserID     *int    `json:"userId,omitempty" bson:"userId,omitempty"`
	GuestToken *string `json:"guestToken,omitempty" bson:"guestToken,omitempty"`
}

type PaymentDetails struct {
	GatewayOrderID  string          `json:"gatewayOrderId" bson:"gatewayOrderId"`
	CaptureID       string          `json:"captureId,omitempty" bson:"captureId,omitempty"`
	Signature       string          `json:"signature,omitempty" bson:"signature,omitempty"`
	ChargedAmount   decimal.Decimal `json:"chargedAmount" bson:"chargedAmount"`
	ChargedCurrency string          `json:"chargedCurrency" bson:"chargedCurrency"`
}

type Order struct {
	ID              string          `json:"id" bson:"_id"`
	UserID          *int            `json:"userId,omitempty" bson:"userId,omitempty"`
	GuestToken      *string         `json:"guestToken,omitempty" bson:"guestToken,omitempty"`
	CartOwner       CartOwner       `json:"cartOwner" bson:"cartOwner"`
	Lines           []Line          `json:"lines" bson:"lines"`
	TotalAmount     int64           `json:"totalAmount" bson:"totalAmount"`
	Currency        string          `json:"currency" bson:"currency"`
	ShippingAddress ShippingAddress `json:"shippingAddress" bson:"shippingAddress"`
	Gateway         string          `json:"gateway" bson:"gateway"`
	PaymentDetails  PaymentDetails  `json:"paymentDetails" bson:"paymentDetails"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus" bson:"paymentStatus"`
	Status          Status          `json:"status" bson:"status"`
	FailureReason   string          `json:"failureReason,omitempty" bson:"failureReason,omitempty"`
	CreatedAt       time.Time       `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt" bson:"updatedAt"`
}

// OwnedBy reports whether the order belongs to the given user or guest.
func (o Order) OwnedBy(userID int, guestToken string) bool {
	if userID > 0 && o.UserID != nil && *o.UserID == userID {
		return true
	}
	return guestToken != "" && o.GuestToken != nil && *o.GuestToken == guestToken
}

const TransactionSucceeded = "Succeeded"

type Breakdown struct {
	Subtotal    decimal.Decimal `json:"subtotal" bson:"subtotal"`
	PlatformFee decimal.Decimal `json:"platformFee" bson:"platformFee"`
}

// NewBreakdown splits amount into the merchant subtotal and the platform fee
// taken at feePercent.
func NewBreakdown(amount int64, feePercent float64) Breakdown {
	total := decimal.NewFromInt(amount)
	fee := total.Mul(decimal.NewFromFloat(feePercent)).Div(decimal.NewFromInt(100)).Round(2)
	return Breakdown{Subtotal: total.Sub(fee), PlatformFee: fee}
}

// Transaction is the ledger row of one successful capture. It is never
// updated or deleted.
type Transaction struct {
	ID                   string    `json:"id" bson:"_id"`
	OrderID              string    `json:"orderId" bson:"orderId"`
	Gateway              string    `json:"gateway" bson:"gateway"`
	GatewayTransactionID string    `json:"gatewayTransactionId" bson:"gatewayTransactionId"`
	Amount               int64     `json:"amount" bson:"amount"`
	Currency             string    `json:"currency" bson:"currency"`
	Status               string    `json:"status" bson:"status"`
	Breakdown            Breakdown `json:"breakdown" bson:"breakdown"`
	CreatedAt            time.Time `json:"createdAt" bson:"createdAt"`
}
