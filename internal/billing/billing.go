// Package billing holds the pure arithmetic behind invoicing: currency
// rounding, tax computation, invoice numbering, and the per-product rollup of
// delivered orders into invoice lines.
package billing

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/nazlim/orderdesk/internal/entity"
)

// Round2 rounds to currency precision (two decimals).
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Tax computes the tax amount for a subtotal at the given percent rate,
// rounded to currency precision.
func Tax(subtotal, ratePercent float64) float64 {
	return Round2(subtotal * ratePercent / 100)
}

// InvoiceNumber builds a deterministic, collision-resistant invoice number:
// year plus a millisecond suffix. Collisions are handled by the caller
// retrying with a fresh timestamp.
func InvoiceNumber(at time.Time) string {
	return fmt.Sprintf("INV-%d-%d", at.Year(), at.UnixMilli()%1_000_000_000)
}

// OrderNumber builds a human-readable order number.
func OrderNumber(at time.Time) string {
	return fmt.Sprintf("ORD-%d-%d", at.Year(), at.UnixMilli()%1_000_000_000)
}

// LineTotal computes quantity × unit price at currency precision.
func LineTotal(quantity int, unitPrice float64) float64 {
	return Round2(float64(quantity) * unitPrice)
}

// SumItems recomputes each line total and returns the order total.
func SumItems(items []entity.OrderItem) float64 {
	var total float64
	for i := range items {
		items[i].LineTotal = LineTotal(items[i].Quantity, items[i].UnitPrice)
		total += items[i].LineTotal
	}
	return Round2(total)
}

// MergeOrderItems folds the items of the selected orders into one invoice
// line per distinct product: quantities are summed and the unit price is
// taken from the most recent order, ties broken by the later order date. The
// product name is snapshotted from that same order.
func MergeOrderItems(orders []entity.Order) []entity.InvoiceItem {
	type rollup struct {
		productID   int64
		productName string
		quantity    int
		unitPrice   float64
		priceDate   time.Time
	}

	merged := make(map[int64]*rollup)
	for _, order := range orders {
		for _, item := range order.Items {
			r, ok := merged[item.ProductID]
			if !ok {
				r = &rollup{productID: item.ProductID}
				merged[item.ProductID] = r
			}
			r.quantity += item.Quantity
			if !order.CreatedAt.Before(r.priceDate) {
				r.unitPrice = item.UnitPrice
				r.productName = item.ProductName
				r.priceDate = order.CreatedAt
			}
		}
	}

	ids := make([]int64, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	lines := make([]entity.InvoiceItem, 0, len(ids))
	for _, id := range ids {
		r := merged[id]
		lines = append(lines, entity.InvoiceItem{
			ProductID:   r.productID,
			ProductName: r.productName,
			Quantity:    r.quantity,
			UnitPrice:   r.unitPrice,
			LineTotal:   LineTotal(r.quantity, r.unitPrice),
		})
	}
	return lines
}

// OutstandingBalance floors invoiced-minus-paid at zero; surplus payments are
// a bookkeeping edge case, never customer debt.
func OutstandingBalance(invoiced, paid float64) float64 {
	balance := Round2(invoiced - paid)
	if balance < 0 {
		return 0
	}
	return balance
}

// Rate returns delivered ÷ total as a percentage with one decimal, zero when
// total is zero.
func Rate(delivered, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(delivered)/float64(total)*1000) / 10
}
