package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// breakerAdapter trips after consecutive create-order failures. Confirm is
// passed through unwrapped.
type breakerAdapter struct {
	Adapter
	cb *gobreaker.CircuitBreaker[RemoteOrder]
}

// WithBreaker wraps a's CreateRemoteOrder in a circuit breaker.
func WithBreaker(a Adapter, log *slog.Logger) Adapter {
	if log == nil {
		log = slog.Default()
	}
	st := gobreaker.Settings{
		Name:        a.Name(),
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		// declines and bad input are not provider outages
		IsSuccessful: func(err error) bool {
			var gerr *Error
			if !errors.As(err, &gerr) {
				return true
			}
			return gerr.StatusCode > 0 && gerr.StatusCode < 500
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("gateway breaker state changed", "gateway", name, "from", from.String(), "to", to.String())
		},
	}
	return &breakerAdapter{Adapter: a, cb: gobreaker.NewCircuitBreaker[RemoteOrder](st)}
}

func (b *breakerAdapter) CreateRemoteOrder(ctx context.Context, amount decimal.Decimal, currency, reference string) (RemoteOrder, error) {
	ro, err := b.cb.Execute(func() (RemoteOrder, error) {
		return b.Adapter.CreateRemoteOrder(ctx, amount, currency, reference)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return RemoteOrder{}, &Error{Gateway: b.Name(), Op: "create order", Err: err}
	}
	return ro, err
}
