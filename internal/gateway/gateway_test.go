package gateway

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubAdapter struct {
	calls int
	err   error
}

func (s *stubAdapter) Name() string      { return "stub" }
func (s *stubAdapter) Currency() string  { return "INR" }
func (s *stubAdapter) PublicKey() string { return "" }

func (s *stubAdapter) CreateRemoteOrder(context.Context, decimal.Decimal, string, string) (RemoteOrder, error) {
	s.calls++
	if s.err != nil {
		return RemoteOrder{}, s.err
	}
	return RemoteOrder{ID: "r-1"}, nil
}

func (s *stubAdapter) Confirm(context.Context, Confirmation) (Capture, error) {
	s.calls++
	return Capture{}, s.err
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(&stubAdapter{})
	a, err := r.Get("stub")
	require.NoError(t, err)
	assert.Equal(t, "stub", a.Name())

	_, err = r.Get("bitcoin")
	assert.ErrorIs(t, err, ErrUnknownGateway)
	assert.Equal(t, []string{"stub"}, r.Names())
}

func TestBreakerOpensOnProviderOutage(t *testing.T) {
	stub := &stubAdapter{err: &Error{Gateway: "stub", Op: "create order", StatusCode: http.StatusBadGateway, Err: errors.New("down")}}
	a := WithBreaker(stub, nil)

	for i := 0; i < 5; i++ {
		_, err := a.CreateRemoteOrder(context.Background(), decimal.NewFromInt(1), "INR", "o")
		require.Error(t, err)
	}
	_, err := a.CreateRemoteOrder(context.Background(), decimal.NewFromInt(1), "INR", "o")
	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, 5, stub.calls, "open breaker must not reach the provider")

	_, _ = a.Confirm(context.Background(), Confirmation{})
	assert.Equal(t, 6, stub.calls, "confirm bypasses the breaker")
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	stub := &stubAdapter{err: &Error{Gateway: "stub", StatusCode: http.StatusBadRequest, Err: errors.New("bad amount")}}
	a := WithBreaker(stub, nil)

	for i := 0; i < 8; i++ {
		_, _ = a.CreateRemoteOrder(context.Background(), decimal.NewFromInt(1), "INR", "o")
	}
	assert.Equal(t, 8, stub.calls)
}

func TestErrorMessage(t *testing.T) {
	err := &Error{Gateway: "paypal", Op: "capture", StatusCode: 500, Err: errors.New("boom")}
	assert.Equal(t, "paypal capture: status 500: boom", err.Error())
	assert.ErrorIs(t, err, err.Err)
}
