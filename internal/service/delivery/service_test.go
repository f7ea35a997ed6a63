package delivery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nazlim/orderdesk/internal/entity"
	"github.com/nazlim/orderdesk/internal/lifecycle"
	repo "github.com/nazlim/orderdesk/internal/repository/delivery"
	orderrepo "github.com/nazlim/orderdesk/internal/repository/order"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

type memStore struct {
	slips  map[int64]*entity.DeliverySlip
	nextID int64
}

func newMemStore() *memStore {
	return &memStore{slips: make(map[int64]*entity.DeliverySlip), nextID: 1}
}

func (m *memStore) Create(_ context.Context, slip *entity.DeliverySlip, items []entity.DeliverySlipItem) error {
	slip.ID = m.nextID
	m.nextID++
	for i := range items {
		items[i].SlipID = slip.ID
	}
	slip.Items = items
	stored := *slip
	m.slips[slip.ID] = &stored
	return nil
}

func (m *memStore) Get(_ context.Context, id int64) (*entity.DeliverySlip, error) {
	slip, ok := m.slips[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	out := *slip
	return &out, nil
}

func (m *memStore) ListByOrder(_ context.Context, orderID int64) ([]entity.DeliverySlip, error) {
	var out []entity.DeliverySlip
	for _, slip := range m.slips {
		if slip.OrderID == orderID {
			out = append(out, *slip)
		}
	}
	return out, nil
}

func (m *memStore) Mutate(_ context.Context, id int64, fn func(*entity.DeliverySlip) error) (*entity.DeliverySlip, error) {
	slip, ok := m.slips[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	work := *slip
	if err := fn(&work); err != nil {
		return nil, err
	}
	*slip = work
	out := work
	return &out, nil
}

type memOrders struct {
	orders map[int64]*entity.Order
}

func (m *memOrders) Get(_ context.Context, id int64) (*entity.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, orderrepo.ErrNotFound
	}
	out := *order
	return &out, nil
}

func newTestService(store Store, orders OrderStore) *Service {
	return newService(store, orders, zap.NewNop())
}

func shippingOrder(id int64) *entity.Order {
	return &entity.Order{
		ID:     id,
		Number: "ORD-1",
		Status: string(lifecycle.StatusShipping),
	}
}

func TestCreateSlip(t *testing.T) {
	store := newMemStore()
	orders := &memOrders{orders: map[int64]*entity.Order{1: shippingOrder(1)}}

	svc := newTestService(store, orders)
	slip, err := svc.CreateSlip(context.Background(), CreateInput{
		OrderID:    1,
		DriverName: "M. Driver",
		Items: []ItemInput{
			{ProductID: 1, ProductName: "Widget", OrderedQuantity: 5},
			{ProductID: 2, ProductName: "Gadget", OrderedQuantity: 2, DeliveredQuantity: 1},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, entity.SlipStatusPrepared, slip.Status)
	require.Len(t, slip.Items, 2)
	// Unspecified delivered quantity defaults to the ordered quantity.
	assert.Equal(t, 5, slip.Items[0].DeliveredQuantity)
	// Partial deliveries keep the lower figure.
	assert.Equal(t, 1, slip.Items[1].DeliveredQuantity)
}

func TestCreateSlipRequiresShippingOrder(t *testing.T) {
	order := shippingOrder(1)
	order.Status = string(lifecycle.StatusProduction)
	orders := &memOrders{orders: map[int64]*entity.Order{1: order}}

	svc := newTestService(newMemStore(), orders)
	_, err := svc.CreateSlip(context.Background(), CreateInput{
		OrderID: 1,
		Items:   []ItemInput{{ProductID: 1, OrderedQuantity: 1}},
	})
	require.Error(t, err)
	assert.True(t, errorbank.HasCode(err, errorbank.CodeInvalidStatus))
}

func TestCreateSlipUnknownOrder(t *testing.T) {
	svc := newTestService(newMemStore(), &memOrders{orders: map[int64]*entity.Order{}})
	_, err := svc.CreateSlip(context.Background(), CreateInput{
		OrderID: 99,
		Items:   []ItemInput{{ProductID: 1, OrderedQuantity: 1}},
	})
	require.Error(t, err)

	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindNotFound, appErr.Kind())
}

func TestMarkDelivered(t *testing.T) {
	store := newMemStore()
	orders := &memOrders{orders: map[int64]*entity.Order{1: shippingOrder(1)}}
	svc := newTestService(store, orders)

	slip, err := svc.CreateSlip(context.Background(), CreateInput{
		OrderID: 1,
		Items:   []ItemInput{{ProductID: 1, OrderedQuantity: 1}},
	})
	require.NoError(t, err)

	// Recipient is mandatory proof of handover.
	_, err = svc.MarkDelivered(context.Background(), slip.ID, "", "")
	require.Error(t, err)
	assert.True(t, errorbank.HasCode(err, errorbank.CodeMissingRecipient))

	delivered, err := svc.MarkDelivered(context.Background(), slip.ID, "J. Doe", "sig-bytes")
	require.NoError(t, err)
	assert.Equal(t, entity.SlipStatusDelivered, delivered.Status)
	assert.Equal(t, "J. Doe", delivered.RecipientName)
	require.NotNil(t, delivered.DeliveredAt)

	// A second handover on the same slip is rejected.
	_, err = svc.MarkDelivered(context.Background(), slip.ID, "Someone Else", "")
	require.Error(t, err)
}

func TestAttachInvoice(t *testing.T) {
	store := newMemStore()
	orders := &memOrders{orders: map[int64]*entity.Order{1: shippingOrder(1)}}
	svc := newTestService(store, orders)

	slip, err := svc.CreateSlip(context.Background(), CreateInput{
		OrderID: 1,
		Items:   []ItemInput{{ProductID: 1, OrderedQuantity: 1}},
	})
	require.NoError(t, err)

	// Prepared slips cannot be invoiced yet.
	_, err = svc.AttachInvoice(context.Background(), slip.ID, 7)
	require.Error(t, err)

	_, err = svc.MarkDelivered(context.Background(), slip.ID, "J. Doe", "")
	require.NoError(t, err)

	linked, err := svc.AttachInvoice(context.Background(), slip.ID, 7)
	require.NoError(t, err)
	require.NotNil(t, linked.InvoiceID)
	assert.Equal(t, int64(7), *linked.InvoiceID)
}

func TestMarkReturned(t *testing.T) {
	store := newMemStore()
	orders := &memOrders{orders: map[int64]*entity.Order{1: shippingOrder(1)}}
	svc := newTestService(store, orders)

	slip, err := svc.CreateSlip(context.Background(), CreateInput{
		OrderID: 1,
		Items:   []ItemInput{{ProductID: 1, OrderedQuantity: 1}},
	})
	require.NoError(t, err)

	returned, err := svc.MarkReturned(context.Background(), slip.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.SlipStatusReturned, returned.Status)

	_, err = svc.MarkReturned(context.Background(), slip.ID)
	require.Error(t, err)
}
