// Package paypal is the capture-style gateway: a client-credential token per
// call, an order with intent CAPTURE, then a capture by order id.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/wichananm65/pet-shop-storefront/internal/gateway"
)

const (
	Name = "paypal"

	SandboxURL = "https://api-m.sandbox.paypal.com"
	LiveURL    = "https://api-m.paypal.com"

	statusCompleted     = "COMPLETED"
	issueAlreadyCapture = "ORDER_ALREADY_CAPTURED"
	issueNotApproved    = "ORDER_NOT_APPROVED"
)

type Config struct {
	ClientID     string
	ClientSecret string
	// Mode is "sandbox" or "live". Ignored when BaseURL is set.
	Mode     string
	Currency string
	BaseURL  string
}

type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
}

func New(cfg Config, httpClient *http.Client) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = SandboxURL
		if cfg.Mode == "live" {
			base = LiveURL
		}
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, baseURL: strings.TrimRight(base, "/"), http: httpClient}
}

func (c *Client) Name() string      { return Name }
func (c *Client) Currency() string  { return c.cfg.Currency }
func (c *Client) PublicKey() string { return c.cfg.ClientID }

type money struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type purchaseUnit struct {
	ReferenceID string `json:"reference_id,omitempty"`
	CustomID    string `json:"custom_id,omitempty"`
	Amount      *money `json:"amount,omitempty"`
	Payments    *struct {
		Captures []captureResource `json:"captures"`
	} `json:"payments,omitempty"`
}

type createOrderRequest struct {
	Intent        string         `json:"intent"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type orderResponse struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	PurchaseUnits []purchaseUnit `json:"purchase_units"`
}

type captureResource struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Amount money  `json:"amount"`
}

type apiError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Details []struct {
		Issue       string `json:"issue"`
		Description string `json:"description"`
	} `json:"details"`
}

func (e *apiError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s", e.Name, e.Details[0].Issue)
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *apiError) hasIssue(issue string) bool {
	for _, d := range e.Details {
		if d.Issue == issue {
			return true
		}
	}
	return false
}

// accessToken exchanges the client credentials for a bearer token. The token
// lives only as long as the calling operation.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", c.fail("token", 0, err)
	}
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(req, "token", &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", c.fail("token", 0, errors.New("empty access token"))
	}
	return out.AccessToken, nil
}

func (c *Client) CreateRemoteOrder(ctx context.Context, amount decimal.Decimal, currency, reference string) (gateway.RemoteOrder, error) {
	tok, err := c.accessToken(ctx)
	if err != nil {
		return gateway.RemoteOrder{}, err
	}
	body := createOrderRequest{
		Intent: "CAPTURE",
		PurchaseUnits: []purchaseUnit{{
			ReferenceID: reference,
			CustomID:    reference,
			Amount:      &money{CurrencyCode: currency, Value: amount.StringFixed(2)},
		}},
	}
	req, err := c.jsonRequest(ctx, http.MethodPost, "/v2/checkout/orders", tok, body)
	if err != nil {
		return gateway.RemoteOrder{}, c.fail("create order", 0, err)
	}
	var out orderResponse
	if err := c.do(req, "create order", &out); err != nil {
		return gateway.RemoteOrder{}, err
	}
	if out.ID == "" {
		return gateway.RemoteOrder{}, c.fail("create order", 0, errors.New("response without order id"))
	}
	return gateway.RemoteOrder{ID: out.ID, Amount: amount, Currency: currency, Status: out.Status}, nil
}

// Confirm captures the remote order. A webhook confirmation already carries
// the completed capture and is accepted as is: webhook signatures are not
// verified. If the capture times out or the order was captured before, the
// order is re-read instead of capturing again.
func (c *Client) Confirm(ctx context.Context, conf gateway.Confirmation) (gateway.Capture, error) {
	if conf.Capture != nil {
		if conf.Capture.Status != statusCompleted {
			return gateway.Capture{}, fmt.Errorf("capture %s is %s: %w", conf.Capture.ID, conf.Capture.Status, gateway.ErrPaymentNotCompleted)
		}
		return *conf.Capture, nil
	}
	if conf.RemoteOrderID == "" {
		return gateway.Capture{}, fmt.Errorf("missing order id: %w", gateway.ErrPaymentNotCompleted)
	}

	tok, err := c.accessToken(ctx)
	if err != nil {
		return gateway.Capture{}, err
	}
	path := "/v2/checkout/orders/" + url.PathEscape(conf.RemoteOrderID) + "/capture"
	req, err := c.jsonRequest(ctx, http.MethodPost, path, tok, nil)
	if err != nil {
		return gateway.Capture{}, c.fail("capture", 0, err)
	}
	// PayPal dedupes retried captures carrying the same request id.
	req.Header.Set("PayPal-Request-Id", "capture-"+conf.RemoteOrderID)

	var out orderResponse
	err = c.do(req, "capture", &out)
	if err != nil {
		var ae *apiError
		switch {
		case errors.As(err, &ae) && ae.hasIssue(issueAlreadyCapture):
			return c.lookupCapture(ctx, tok, conf.RemoteOrderID)
		case errors.As(err, &ae) && ae.hasIssue(issueNotApproved):
			return gateway.Capture{}, fmt.Errorf("order %s not approved by payer: %w", conf.RemoteOrderID, gateway.ErrPaymentNotCompleted)
		case gateway.IsTimeout(err):
			capture, lerr := c.lookupCapture(context.WithoutCancel(ctx), tok, conf.RemoteOrderID)
			if lerr != nil {
				return gateway.Capture{}, fmt.Errorf("capture %s: %w", conf.RemoteOrderID, gateway.ErrOutcomeUnknown)
			}
			return capture, nil
		}
		return gateway.Capture{}, err
	}
	return completedCapture(out)
}

// lookupCapture reads the order and returns its completed capture.
func (c *Client) lookupCapture(ctx context.Context, tok, orderID string) (gateway.Capture, error) {
	req, err := c.jsonRequest(ctx, http.MethodGet, "/v2/checkout/orders/"+url.PathEscape(orderID), tok, nil)
	if err != nil {
		return gateway.Capture{}, c.fail("get order", 0, err)
	}
	var out orderResponse
	if err := c.do(req, "get order", &out); err != nil {
		return gateway.Capture{}, err
	}
	return completedCapture(out)
}

func completedCapture(o orderResponse) (gateway.Capture, error) {
	if o.Status != statusCompleted {
		return gateway.Capture{}, fmt.Errorf("order %s is %s: %w", o.ID, o.Status, gateway.ErrPaymentNotCompleted)
	}
	for _, pu := range o.PurchaseUnits {
		if pu.Payments == nil {
			continue
		}
		for _, cr := range pu.Payments.Captures {
			if cr.Status != statusCompleted {
				continue
			}
			return toCapture(cr)
		}
	}
	return gateway.Capture{}, fmt.Errorf("order %s has no completed capture: %w", o.ID, gateway.ErrPaymentNotCompleted)
}

func toCapture(cr captureResource) (gateway.Capture, error) {
	amount, err := decimal.NewFromString(cr.Amount.Value)
	if err != nil && cr.Amount.Value != "" {
		return gateway.Capture{}, &gateway.Error{Gateway: Name, Op: "capture", Err: fmt.Errorf("bad amount %q: %w", cr.Amount.Value, err)}
	}
	return gateway.Capture{
		ID:       cr.ID,
		Amount:   amount,
		Currency: cr.Amount.CurrencyCode,
		Status:   cr.Status,
	}, nil
}

func (c *Client) jsonRequest(ctx context.Context, method, path, tok string, body any) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		r = bytes.NewReader(b)
	} else if method == http.MethodPost {
		r = strings.NewReader("{}")
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
	return req, nil
}

// do sends req and decodes a 2xx body into out. Provider errors come back as
// *gateway.Error wrapping *apiError when the body is parseable.
func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(op, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return c.fail(op, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		ae := &apiError{}
		if jerr := json.Unmarshal(body, ae); jerr != nil || ae.Name == "" {
			return c.fail(op, resp.StatusCode, fmt.Errorf("unexpected response %s", resp.Status))
		}
		return c.fail(op, resp.StatusCode, ae)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return c.fail(op, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (c *Client) fail(op string, status int, err error) error {
	return &gateway.Error{Gateway: Name, Op: op, StatusCode: status, Err: err}
}
