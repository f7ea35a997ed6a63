package order

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nazlim/orderdesk/internal/cache"
	"github.com/nazlim/orderdesk/internal/config"
	"github.com/nazlim/orderdesk/internal/entity"
	"github.com/nazlim/orderdesk/internal/messaging"
	repo "github.com/nazlim/orderdesk/internal/repository/order"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

// memStore is an in-memory Store with transaction-like rollback semantics:
// mutations are applied to a copy and committed only when the callback
// succeeds.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*entity.Order
	items  map[int64][]entity.OrderItem
}

func newMemStore() *memStore {
	return &memStore{
		nextID: 1,
		orders: make(map[int64]*entity.Order),
		items:  make(map[int64][]entity.OrderItem),
	}
}

func (m *memStore) Create(_ context.Context, order *entity.Order, items []entity.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = m.nextID
	m.nextID++
	for i := range items {
		items[i].OrderID = order.ID
	}
	clone := *order
	m.orders[order.ID] = &clone
	m.items[order.ID] = append([]entity.OrderItem(nil), items...)
	order.Items = items
	return nil
}

func (m *memStore) Get(_ context.Context, id int64) (*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	clone := *order
	clone.Items = append([]entity.OrderItem(nil), m.items[id]...)
	return &clone, nil
}

func (m *memStore) ListByStatus(_ context.Context, status string) ([]entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []entity.Order
	for id, order := range m.orders {
		if status != "" && order.Status != status {
			continue
		}
		clone := *order
		clone.Items = append([]entity.OrderItem(nil), m.items[id]...)
		out = append(out, clone)
	}
	return out, nil
}

func (m *memStore) Mutate(_ context.Context, id int64, fn func(*entity.Order) error) (*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	work := *order
	work.Items = append([]entity.OrderItem(nil), m.items[id]...)
	if err := fn(&work); err != nil {
		return nil, err
	}
	committed := work
	committed.Items = nil
	m.orders[id] = &committed
	return &work, nil
}

func (m *memStore) ReplaceItems(_ context.Context, id int64, build func(*entity.Order, []entity.OrderItem) ([]entity.OrderItem, error)) (*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	work := *order
	replacement, err := build(&work, append([]entity.OrderItem(nil), m.items[id]...))
	if err != nil {
		return nil, err
	}
	for i := range replacement {
		replacement[i].OrderID = id
	}
	m.orders[id] = &work
	m.items[id] = append([]entity.OrderItem(nil), replacement...)
	result := work
	result.Items = replacement
	return &result, nil
}

type capturePublisher struct {
	mu     sync.Mutex
	events []Event
}

func (c *capturePublisher) Publish(_ context.Context, _ []byte, value []byte) error {
	var event Event
	if err := json.Unmarshal(value, &event); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturePublisher) Consume(ctx context.Context, _ messaging.Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (c *capturePublisher) Topic() string { return "orders.lifecycle" }

func (c *capturePublisher) byType(eventType string) []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, e := range c.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func testConfig(policy string) config.Config {
	return config.Config{
		Cache:     config.Cache{DefaultTTL: time.Minute},
		Lifecycle: config.Lifecycle{Policy: policy},
		Messaging: config.Messaging{
			Enabled: true,
			Kafka:   config.Kafka{Topic: "orders.lifecycle"},
		},
	}
}

func newTestService(policy string) (*Service, *memStore, *capturePublisher) {
	store := newMemStore()
	publisher := &capturePublisher{}
	svc := newService(store, cache.Noop(), testConfig(policy), zap.NewNop(), publisher)
	return svc, store, publisher
}

func createTestOrder(t *testing.T, svc *Service) *entity.Order {
	t.Helper()
	order, err := svc.Create(context.Background(), CreateInput{
		CustomerID: 1,
		UserID:     7,
		Items: []ItemInput{
			{ProductID: 1, ProductName: "Widget", Quantity: 3, UnitPrice: 100},
			{ProductID: 2, ProductName: "Gadget", Quantity: 1, UnitPrice: 50},
		},
	})
	require.NoError(t, err)
	return order
}

func TestCreateComputesTotals(t *testing.T) {
	svc, _, _ := newTestService("strict")
	order := createTestOrder(t, svc)

	assert.Equal(t, 350.0, order.TotalAmount)
	assert.Equal(t, "pending", order.Status)
	assert.Nil(t, order.ProductionStartedAt)
	assert.Nil(t, order.DeliveredAt)
	assert.NotEmpty(t, order.Number)
}

func TestCreateRejectsBadItems(t *testing.T) {
	svc, _, _ := newTestService("strict")
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateInput{CustomerID: 1})
	assert.Error(t, err)

	_, err = svc.Create(ctx, CreateInput{
		CustomerID: 1,
		Items:      []ItemInput{{ProductID: 1, Quantity: 0, UnitPrice: 10}},
	})
	assert.Error(t, err)
}

func TestFullLifecycleStampsMilestonesInOrder(t *testing.T) {
	svc, _, publisher := newTestService("strict")
	ctx := context.Background()
	order := createTestOrder(t, svc)

	for _, target := range []string{"production", "production_ready", "shipping"} {
		var err error
		order, err = svc.Transition(ctx, order.ID, target, TransitionInput{})
		require.NoError(t, err, "transition to %s", target)
	}

	order, err := svc.Transition(ctx, order.ID, "delivered", TransitionInput{Recipient: "Ali Veli"})
	require.NoError(t, err)

	assert.Equal(t, "delivered", order.Status)
	assert.Equal(t, "Ali Veli", order.RecipientName)
	require.NotNil(t, order.ProductionStartedAt)
	require.NotNil(t, order.ProductionCompletedAt)
	require.NotNil(t, order.ShippedAt)
	require.NotNil(t, order.DeliveredAt)
	assert.True(t, !order.ProductionCompletedAt.Before(*order.ProductionStartedAt))
	assert.True(t, !order.ShippedAt.Before(*order.ProductionCompletedAt))
	assert.True(t, !order.DeliveredAt.Before(*order.ShippedAt))

	delivered := publisher.byType(EventOrderDelivered)
	require.Len(t, delivered, 1)
	assert.Equal(t, order.ID, delivered[0].OrderID)
	assert.Equal(t, "Ali Veli", delivered[0].Recipient)
	assert.Len(t, delivered[0].Items, 2)
}

func TestDeliveredRequiresRecipient(t *testing.T) {
	svc, _, _ := newTestService("lenient")
	ctx := context.Background()
	order := createTestOrder(t, svc)

	_, err := svc.Transition(ctx, order.ID, "delivered", TransitionInput{})
	assert.True(t, errorbank.HasCode(err, errorbank.CodeMissingRecipient))

	reloaded, err := svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "pending", reloaded.Status)
	assert.Nil(t, reloaded.DeliveredAt)
}

func TestUnknownStatusRejected(t *testing.T) {
	svc, _, _ := newTestService("strict")
	order := createTestOrder(t, svc)

	_, err := svc.Transition(context.Background(), order.ID, "archived", TransitionInput{})
	assert.True(t, errorbank.HasCode(err, errorbank.CodeInvalidStatus))
}

func TestStrictPolicyBlocksSkips(t *testing.T) {
	svc, _, _ := newTestService("strict")
	order := createTestOrder(t, svc)

	_, err := svc.Transition(context.Background(), order.ID, "delivered", TransitionInput{Recipient: "Ali Veli"})
	assert.True(t, errorbank.HasCode(err, errorbank.CodeInvalidStatus))
}

func TestLenientPolicyAllowsSkips(t *testing.T) {
	svc, _, _ := newTestService("lenient")
	order := createTestOrder(t, svc)

	order, err := svc.Transition(context.Background(), order.ID, "delivered", TransitionInput{Recipient: "Ali Veli"})
	require.NoError(t, err)
	assert.Equal(t, "delivered", order.Status)
	assert.NotNil(t, order.DeliveredAt)
	assert.Nil(t, order.ShippedAt)
}

func TestTerminalStatesRejectFurtherTransitions(t *testing.T) {
	svc, _, _ := newTestService("lenient")
	ctx := context.Background()

	delivered := createTestOrder(t, svc)
	_, err := svc.Transition(ctx, delivered.ID, "delivered", TransitionInput{Recipient: "Ali Veli"})
	require.NoError(t, err)

	cancelled := createTestOrder(t, svc)
	_, err = svc.Transition(ctx, cancelled.ID, "cancelled", TransitionInput{})
	require.NoError(t, err)

	for _, id := range []int64{delivered.ID, cancelled.ID} {
		for _, target := range []string{"pending", "production", "production_ready", "shipping", "delivered", "cancelled"} {
			_, err := svc.Transition(ctx, id, target, TransitionInput{Recipient: "Ali Veli"})
			assert.True(t, errorbank.HasCode(err, errorbank.CodeOrderLocked),
				"order %d should reject transition to %s", id, target)
		}
	}
}

func TestCancelPreservesMilestones(t *testing.T) {
	svc, _, _ := newTestService("strict")
	ctx := context.Background()
	order := createTestOrder(t, svc)

	order, err := svc.Transition(ctx, order.ID, "production", TransitionInput{})
	require.NoError(t, err)
	require.NotNil(t, order.ProductionStartedAt)

	order, err = svc.Transition(ctx, order.ID, "cancelled", TransitionInput{})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", order.Status)
	assert.NotNil(t, order.ProductionStartedAt)
}

func TestUpdateItemsRecomputesTotal(t *testing.T) {
	svc, _, _ := newTestService("strict")
	ctx := context.Background()
	order := createTestOrder(t, svc)

	order, err := svc.UpdateItems(ctx, order.ID, []ItemInput{
		{ProductID: 3, ProductName: "Sprocket", Quantity: 2, UnitPrice: 25},
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, order.TotalAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 50.0, order.Items[0].LineTotal)
}

func TestUpdateItemsLockedAfterShipping(t *testing.T) {
	svc, store, _ := newTestService("strict")
	ctx := context.Background()
	order := createTestOrder(t, svc)

	for _, target := range []string{"production", "production_ready", "shipping"} {
		var err error
		order, err = svc.Transition(ctx, order.ID, target, TransitionInput{})
		require.NoError(t, err)
	}

	_, err := svc.UpdateItems(ctx, order.ID, []ItemInput{
		{ProductID: 9, ProductName: "Bolt", Quantity: 1, UnitPrice: 5},
	})
	assert.True(t, errorbank.HasCode(err, errorbank.CodeOrderLocked))

	// Items unchanged after the rejected edit.
	items := store.items[order.ID]
	require.Len(t, items, 2)
	assert.Equal(t, int64(1), items[0].ProductID)
}

func TestLockTimeoutSurfacedAsRetryable(t *testing.T) {
	svc, _, _ := newTestService("strict")
	svc.store = lockTimeoutStore{}

	_, err := svc.Transition(context.Background(), 1, "production", TransitionInput{})
	assert.True(t, errorbank.HasCode(err, errorbank.CodeLockTimeout))
}

type lockTimeoutStore struct{}

func (lockTimeoutStore) Create(context.Context, *entity.Order, []entity.OrderItem) error {
	return repo.ErrLockTimeout
}

func (lockTimeoutStore) Get(context.Context, int64) (*entity.Order, error) {
	return nil, repo.ErrLockTimeout
}

func (lockTimeoutStore) ListByStatus(context.Context, string) ([]entity.Order, error) {
	return nil, repo.ErrLockTimeout
}

func (lockTimeoutStore) Mutate(context.Context, int64, func(*entity.Order) error) (*entity.Order, error) {
	return nil, repo.ErrLockTimeout
}

func (lockTimeoutStore) ReplaceItems(context.Context, int64, func(*entity.Order, []entity.OrderItem) ([]entity.OrderItem, error)) (*entity.Order, error) {
	return nil, repo.ErrLockTimeout
}
