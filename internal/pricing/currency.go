package pricing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// Converter turns native-currency totals into a gateway's charge currency.
// Rates are fixed at start-up and expressed as native units per one unit of
// the foreign currency.
type Converter struct {
	native string
	rates  map[string]decimal.Decimal
}

func NewConverter(native string, rates map[string]float64) *Converter {
	c := &Converter{native: strings.ToUpper(native), rates: make(map[string]decimal.Decimal, len(rates))}
	for cur, r := range rates {
		c.rates[strings.ToUpper(cur)] = decimal.NewFromFloat(r)
	}
	return c
}

func (c *Converter) Native() string { return c.native }

// Convert returns amount expressed in currency to, rounded to two decimals.
func (c *Converter) Convert(amount int64, to string) (decimal.Decimal, error) {
	to = strings.ToUpper(to)
	if to == c.native {
		return decimal.NewFromInt(amount), nil
	}
	rate, ok := c.rates[to]
	if !ok || !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, to)
	}
	return decimal.NewFromInt(amount).Div(rate).Round(2), nil
}
