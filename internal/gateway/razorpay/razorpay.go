// Package razorpay is the signature-style gateway: the order is created up
// front and the browser checkout returns a payment id signed with the key
// secret.
package razorpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/gateway"
)

const (
	Name    = "razorpay"
	BaseURL = "https://api.razorpay.com"
)

type Config struct {
	KeyID     string
	KeySecret string
	Currency  string
	BaseURL   string
}

type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

func New(cfg Config, httpClient *http.Client) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = BaseURL
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, baseURL: strings.TrimRight(base, "/"), http: httpClient}
}

func (c *Client) Name() string      { return Name }
func (c *Client) Currency() string  { return c.cfg.Currency }
func (c *Client) PublicKey() string { return c.cfg.KeyID }

type createOrderRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type apiError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateRemoteOrder opens an order for amount, sent in the currency's
// smallest unit.
func (c *Client) CreateRemoteOrder(ctx context.Context, amount decimal.Decimal, currency, reference string) (gateway.RemoteOrder, error) {
	payload, err := json.Marshal(createOrderRequest{
		Amount:   amount.Shift(2).Round(0).IntPart(),
		Currency: currency,
		Receipt:  reference,
	})
	if err != nil {
		return gateway.RemoteOrder{}, c.fail(0, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return gateway.RemoteOrder{}, c.fail(0, err)
	}
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return gateway.RemoteOrder{}, c.fail(0, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gateway.RemoteOrder{}, c.fail(resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		if jerr := json.Unmarshal(body, &ae); jerr == nil && ae.Error.Code != "" {
			return gateway.RemoteOrder{}, c.fail(resp.StatusCode, fmt.Errorf("%s: %s", ae.Error.Code, ae.Error.Description))
		}
		return gateway.RemoteOrder{}, c.fail(resp.StatusCode, fmt.Errorf("unexpected response %s", resp.Status))
	}

	var out orderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return gateway.RemoteOrder{}, c.fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if out.ID == "" {
		return gateway.RemoteOrder{}, c.fail(resp.StatusCode, errors.New("response without order id"))
	}
	return gateway.RemoteOrder{
		ID:       out.ID,
		Amount:   decimal.New(out.Amount, -2),
		Currency: out.Currency,
		Status:   out.Status,
	}, nil
}

// Confirm checks the checkout signature. No network call is made; the
// amount is the one the order was created with.
func (c *Client) Confirm(_ context.Context, conf gateway.Confirmation) (gateway.Capture, error) {
	if conf.RemoteOrderID == "" || conf.PaymentID == "" || conf.Signature == "" {
		return gateway.Capture{}, fmt.Errorf("missing order id, payment id or signature: %w", gateway.ErrInvalidSignature)
	}
	if !Verify(c.cfg.KeySecret, conf.RemoteOrderID, conf.PaymentID, conf.Signature) {
		return gateway.Capture{}, gateway.ErrInvalidSignature
	}
	return gateway.Capture{ID: conf.PaymentID, Currency: c.cfg.Currency, Status: "captured"}, nil
}

// Sign returns the hex HMAC-SHA256 of "orderID|paymentID" keyed by secret.
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func Verify(secret, orderID, paymentID, signature string) bool {
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

func (c *Client) fail(status int, err error) error {
	return &gateway.Error{Gateway: Name, Op: "create order", StatusCode: status, Err: err}
}
