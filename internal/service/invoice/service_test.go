package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nazlim/orderdesk/internal/config"
	"github.com/nazlim/orderdesk/internal/entity"
	"github.com/nazlim/orderdesk/internal/lifecycle"
	repo "github.com/nazlim/orderdesk/internal/repository/invoice"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

// memStore keeps orders and invoices in memory and reproduces the
// conditional-claim semantics of the real repository, including full
// rollback when any selected order is already claimed.
type memStore struct {
	orders   map[int64]*entity.Order
	invoices map[int64]*entity.Invoice
	nextID   int64

	failCreate []error // consumed front to back before real create logic
}

func newMemStore() *memStore {
	return &memStore{
		orders:   make(map[int64]*entity.Order),
		invoices: make(map[int64]*entity.Invoice),
		nextID:   1,
	}
}

func (m *memStore) putOrder(o entity.Order) {
	m.orders[o.ID] = &o
}

func (m *memStore) UninvoicedDelivered(_ context.Context) ([]entity.Order, error) {
	var out []entity.Order
	for _, o := range m.orders {
		if o.Status == string(lifecycle.StatusDelivered) && o.InvoiceID == nil {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memStore) OrdersForCustomer(_ context.Context, customerID int64, orderIDs []int64) ([]entity.Order, error) {
	var out []entity.Order
	for _, id := range orderIDs {
		o, ok := m.orders[id]
		if !ok || o.CustomerID != customerID {
			continue
		}
		out = append(out, *o)
	}
	return out, nil
}

func (m *memStore) CreateWithClaim(_ context.Context, inv *entity.Invoice, items []entity.InvoiceItem, orderIDs []int64) error {
	if len(m.failCreate) > 0 {
		err := m.failCreate[0]
		m.failCreate = m.failCreate[1:]
		if err != nil {
			return err
		}
	}
	for _, other := range m.invoices {
		if other.Number == inv.Number {
			return repo.ErrDuplicateNumber
		}
	}
	for _, id := range orderIDs {
		o, ok := m.orders[id]
		if !ok || o.Status != string(lifecycle.StatusDelivered) || o.InvoiceID != nil {
			return repo.ErrOrderClaimed
		}
	}
	inv.ID = m.nextID
	m.nextID++
	for i := range items {
		items[i].InvoiceID = inv.ID
	}
	inv.Items = items
	stored := *inv
	m.invoices[inv.ID] = &stored
	for _, id := range orderIDs {
		invoiceID := inv.ID
		m.orders[id].InvoiceID = &invoiceID
	}
	return nil
}

func (m *memStore) Get(_ context.Context, id int64) (*entity.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := *inv
	return &out, nil
}

func (m *memStore) ListByCustomer(_ context.Context, customerID int64) ([]entity.Invoice, error) {
	var out []entity.Invoice
	for _, inv := range m.invoices {
		if inv.CustomerID == customerID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id int64, from, to string) error {
	inv, ok := m.invoices[id]
	if !ok || inv.Status != from {
		return repo.ErrStatusConflict
	}
	inv.Status = to
	return nil
}

func testConfig() config.Config {
	cfg := config.Config{}
	cfg.Billing.TaxRatePercent = 20
	cfg.Billing.DueDays = 30
	cfg.Billing.NumberRetries = 3
	return cfg
}

func newTestService(store Store) *Service {
	return newService(store, testConfig(), zap.NewNop())
}

func deliveredOrder(id, customerID int64, number string, items []entity.OrderItem) entity.Order {
	var total float64
	for i := range items {
		items[i].OrderID = id
		items[i].LineTotal = float64(items[i].Quantity) * items[i].UnitPrice
		total += items[i].LineTotal
	}
	now := time.Now().UTC()
	return entity.Order{
		ID:          id,
		Number:      number,
		CustomerID:  customerID,
		Status:      string(lifecycle.StatusDelivered),
		TotalAmount: total,
		Items:       items,
		DeliveredAt: &now,
		CreatedAt:   now,
	}
}

func TestGroupDeliveredOrders(t *testing.T) {
	store := newMemStore()
	store.putOrder(deliveredOrder(1, 10, "ORD-1", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 2, UnitPrice: 50},
	}))
	store.putOrder(deliveredOrder(2, 10, "ORD-2", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 3, UnitPrice: 50},
		{ProductID: 2, ProductName: "Gadget", Quantity: 1, UnitPrice: 100},
	}))
	store.putOrder(deliveredOrder(3, 20, "ORD-3", []entity.OrderItem{
		{ProductID: 2, ProductName: "Gadget", Quantity: 2, UnitPrice: 100},
	}))

	// Pending orders and already-invoiced orders stay out of the projection.
	pending := deliveredOrder(4, 10, "ORD-4", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 1, UnitPrice: 50},
	})
	pending.Status = string(lifecycle.StatusPending)
	pending.DeliveredAt = nil
	store.putOrder(pending)

	claimed := deliveredOrder(5, 10, "ORD-5", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 1, UnitPrice: 50},
	})
	invoiceID := int64(99)
	claimed.InvoiceID = &invoiceID
	store.putOrder(claimed)

	svc := newTestService(store)
	groups, err := svc.GroupDeliveredOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, groups, 2)

	first := groups[0]
	assert.Equal(t, int64(10), first.CustomerID)
	assert.Equal(t, 2, first.OrderCount)
	assert.InDelta(t, 350.0, first.TotalAmount, 0.001)
	require.Len(t, first.Products, 2)
	assert.Equal(t, int64(1), first.Products[0].ProductID)
	assert.Equal(t, 5, first.Products[0].Quantity)
	assert.InDelta(t, 250.0, first.Products[0].Amount, 0.001)
	assert.Equal(t, int64(2), first.Products[1].ProductID)
	assert.Equal(t, 1, first.Products[1].Quantity)

	second := groups[1]
	assert.Equal(t, int64(20), second.CustomerID)
	assert.Equal(t, 1, second.OrderCount)
	assert.InDelta(t, 200.0, second.TotalAmount, 0.001)
}

func TestCreateBulkInvoice(t *testing.T) {
	store := newMemStore()
	store.putOrder(deliveredOrder(1, 10, "ORD-1", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 2, UnitPrice: 50},
	}))
	store.putOrder(deliveredOrder(2, 10, "ORD-2", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 3, UnitPrice: 50},
		{ProductID: 2, ProductName: "Gadget", Quantity: 1, UnitPrice: 100},
	}))

	svc := newTestService(store)
	inv, err := svc.CreateBulkInvoice(context.Background(), 10, []int64{1, 2}, "12 Harbor St")
	require.NoError(t, err)

	assert.Equal(t, entity.InvoiceStatusGenerated, inv.Status)
	assert.InDelta(t, 350.0, inv.SubtotalAmount, 0.001)
	assert.InDelta(t, 70.0, inv.TaxAmount, 0.001)
	assert.InDelta(t, 420.0, inv.TotalAmount, 0.001)
	assert.Equal(t, "Bulk invoice for 2 delivered orders", inv.Description)
	assert.Equal(t, "12 Harbor St", inv.ShippingAddress)
	assert.Regexp(t, `^INV-\d{4}-\d+$`, inv.Number)

	// Items are merged per product across the selected orders.
	require.Len(t, inv.Items, 2)
	assert.Equal(t, 5, inv.Items[0].Quantity)
	assert.InDelta(t, 250.0, inv.Items[0].LineTotal, 0.001)

	// Both orders are claimed.
	for _, id := range []int64{1, 2} {
		require.NotNil(t, store.orders[id].InvoiceID)
		assert.Equal(t, inv.ID, *store.orders[id].InvoiceID)
	}
}

func TestCreateBulkInvoiceRejectsUndeliveredOrder(t *testing.T) {
	store := newMemStore()
	order := deliveredOrder(1, 10, "ORD-1", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 1, UnitPrice: 50},
	})
	order.Status = string(lifecycle.StatusShipping)
	order.DeliveredAt = nil
	store.putOrder(order)

	svc := newTestService(store)
	_, err := svc.CreateBulkInvoice(context.Background(), 10, []int64{1}, "")
	require.Error(t, err)
	assert.True(t, errorbank.HasCode(err, errorbank.CodeOrderNotDelivered))
}

func TestCreateBulkInvoiceRejectsInvoicedOrder(t *testing.T) {
	store := newMemStore()
	order := deliveredOrder(1, 10, "ORD-1", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 1, UnitPrice: 50},
	})
	invoiceID := int64(7)
	order.InvoiceID = &invoiceID
	store.putOrder(order)

	svc := newTestService(store)
	_, err := svc.CreateBulkInvoice(context.Background(), 10, []int64{1}, "")
	require.Error(t, err)
	assert.True(t, errorbank.HasCode(err, errorbank.CodeOrderAlreadyInvoiced))
}

func TestCreateBulkInvoiceMissingOrder(t *testing.T) {
	store := newMemStore()
	store.putOrder(deliveredOrder(1, 10, "ORD-1", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 1, UnitPrice: 50},
	}))
	// Order 2 belongs to a different customer.
	store.putOrder(deliveredOrder(2, 20, "ORD-2", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 1, UnitPrice: 50},
	}))

	svc := newTestService(store)
	_, err := svc.CreateBulkInvoice(context.Background(), 10, []int64{1, 2}, "")
	require.Error(t, err)

	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindNotFound, appErr.Kind())
}

func TestCreateBulkInvoiceEmptySelection(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.CreateBulkInvoice(context.Background(), 10, nil, "")
	require.Error(t, err)

	_, err = svc.CreateBulkInvoice(context.Background(), 0, []int64{1}, "")
	require.Error(t, err)
}

func TestCreateBulkInvoiceConcurrentClaim(t *testing.T) {
	store := newMemStore()
	store.putOrder(deliveredOrder(1, 10, "ORD-1", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 1, UnitPrice: 50},
	}))
	store.failCreate = []error{repo.ErrOrderClaimed}

	svc := newTestService(store)
	_, err := svc.CreateBulkInvoice(context.Background(), 10, []int64{1}, "")
	require.Error(t, err)
	assert.True(t, errorbank.HasCode(err, errorbank.CodeOrderAlreadyInvoiced))

	// The order is still claimable afterwards.
	assert.Nil(t, store.orders[1].InvoiceID)
}

func TestCreateBulkInvoiceRetriesNumberCollision(t *testing.T) {
	store := newMemStore()
	store.putOrder(deliveredOrder(1, 10, "ORD-1", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 1, UnitPrice: 50},
	}))
	store.failCreate = []error{repo.ErrDuplicateNumber, repo.ErrDuplicateNumber}

	svc := newTestService(store)
	inv, err := svc.CreateBulkInvoice(context.Background(), 10, []int64{1}, "")
	require.NoError(t, err)
	assert.NotZero(t, inv.ID)
}

func TestCreateBulkInvoiceNumberExhaustion(t *testing.T) {
	store := newMemStore()
	store.putOrder(deliveredOrder(1, 10, "ORD-1", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 1, UnitPrice: 50},
	}))
	store.failCreate = []error{repo.ErrDuplicateNumber, repo.ErrDuplicateNumber, repo.ErrDuplicateNumber}

	svc := newTestService(store)
	_, err := svc.CreateBulkInvoice(context.Background(), 10, []int64{1}, "")
	require.Error(t, err)
	assert.True(t, errorbank.HasCode(err, errorbank.CodeInvoiceNumberExhausted))
	assert.Nil(t, store.orders[1].InvoiceID)
}

func TestInvoiceStatusTransitions(t *testing.T) {
	store := newMemStore()
	store.putOrder(deliveredOrder(1, 10, "ORD-1", []entity.OrderItem{
		{ProductID: 1, ProductName: "Widget", Quantity: 1, UnitPrice: 50},
	}))

	svc := newTestService(store)
	inv, err := svc.CreateBulkInvoice(context.Background(), 10, []int64{1}, "")
	require.NoError(t, err)

	require.NoError(t, svc.MarkPaid(context.Background(), inv.ID))

	got, err := svc.Get(context.Background(), inv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.InvoiceStatusPaid, got.Status)

	// Paid invoices cannot be cancelled or re-paid.
	err = svc.Cancel(context.Background(), inv.ID)
	require.Error(t, err)
	err = svc.MarkPaid(context.Background(), inv.ID)
	require.Error(t, err)
}
