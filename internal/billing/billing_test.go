package billing

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nazlim/orderdesk/internal/entity"
)

func TestTaxRounding(t *testing.T) {
	assert.Equal(t, 700.0, Tax(3500, 20))
	assert.Equal(t, 0.0, Tax(3500, 0))
	// 33.33 * 18% = 5.9994 → 6.00
	assert.Equal(t, 6.0, Tax(33.33, 18))
}

func TestTotalsConsistency(t *testing.T) {
	subtotals := []float64{3500, 0.01, 1234.56, 99999.99}
	for _, subtotal := range subtotals {
		tax := Tax(subtotal, 20)
		total := Round2(subtotal + tax)
		assert.Equal(t, total, Round2(subtotal+tax))
	}
}

func TestInvoiceNumberShape(t *testing.T) {
	at := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	number := InvoiceNumber(at)
	assert.True(t, strings.HasPrefix(number, "INV-2026-"))

	other := InvoiceNumber(at.Add(time.Millisecond))
	assert.NotEqual(t, number, other)
}

func TestSumItems(t *testing.T) {
	items := []entity.OrderItem{
		{Quantity: 3, UnitPrice: 100},
		{Quantity: 1, UnitPrice: 50},
	}
	total := SumItems(items)
	assert.Equal(t, 350.0, total)
	assert.Equal(t, 300.0, items[0].LineTotal)
	assert.Equal(t, 50.0, items[1].LineTotal)
}

func TestMergeOrderItemsTakesLatestPrice(t *testing.T) {
	older := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	orders := []entity.Order{
		{
			CreatedAt: older,
			Items: []entity.OrderItem{
				{ProductID: 1, ProductName: "Widget", Quantity: 2, UnitPrice: 90},
				{ProductID: 2, ProductName: "Gadget", Quantity: 1, UnitPrice: 40},
			},
		},
		{
			CreatedAt: newer,
			Items: []entity.OrderItem{
				{ProductID: 1, ProductName: "Widget v2", Quantity: 3, UnitPrice: 100},
			},
		},
	}

	lines := MergeOrderItems(orders)
	require.Len(t, lines, 2)

	assert.Equal(t, int64(1), lines[0].ProductID)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.Equal(t, 100.0, lines[0].UnitPrice)
	assert.Equal(t, "Widget v2", lines[0].ProductName)
	assert.Equal(t, 500.0, lines[0].LineTotal)

	assert.Equal(t, int64(2), lines[1].ProductID)
	assert.Equal(t, 1, lines[1].Quantity)
	assert.Equal(t, 40.0, lines[1].UnitPrice)
}

func TestOutstandingBalanceFloorsAtZero(t *testing.T) {
	assert.Equal(t, 1200.0, OutstandingBalance(4200, 3000))
	assert.Equal(t, 0.0, OutstandingBalance(4200, 4200))
	assert.Equal(t, 0.0, OutstandingBalance(4200, 4300))
	assert.Equal(t, 0.0, OutstandingBalance(0, 0))
}

func TestRate(t *testing.T) {
	assert.Equal(t, 0.0, Rate(0, 0))
	assert.Equal(t, 100.0, Rate(5, 5))
	assert.Equal(t, 33.3, Rate(1, 3))
	assert.Equal(t, 66.7, Rate(2, 3))
}
