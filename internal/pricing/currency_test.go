package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvert(t *testing.T) {
	c := NewConverter("inr", map[string]float64{"usd": 83})

	same, err := c.Convert(2000, "INR")
	require.NoError(t, err)
	assert.Equal(t, "2000", same.String())

	usd, err := c.Convert(2000, "USD")
	require.NoError(t, err)
	assert.Equal(t, "24.1", usd.String())
	assert.Equal(t, "24.10", usd.StringFixed(2))

	_, err = c.Convert(2000, "EUR")
	assert.ErrorIs(t, err, ErrUnsupportedCurrency)
}
