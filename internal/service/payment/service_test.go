package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nazlim/orderdesk/internal/config"
	"github.com/nazlim/orderdesk/internal/entity"
	repo "github.com/nazlim/orderdesk/internal/repository/payment"
	"github.com/nazlim/orderdesk/pkg/errorbank"
)

type memStore struct {
	invoices     map[int64]*entity.Invoice
	payments     []entity.Payment
	transactions []entity.AccountTransaction
	nextID       int64
}

func newMemStore() *memStore {
	return &memStore{invoices: make(map[int64]*entity.Invoice), nextID: 1}
}

func (m *memStore) putInvoice(inv entity.Invoice) {
	m.invoices[inv.ID] = &inv
}

func (m *memStore) Create(_ context.Context, p *entity.Payment, txn *entity.AccountTransaction) error {
	p.ID = m.nextID
	m.nextID++
	m.payments = append(m.payments, *p)
	if txn != nil {
		txn.PaymentID = &p.ID
		m.transactions = append(m.transactions, *txn)
	}
	return nil
}

func (m *memStore) InvoiceCustomer(_ context.Context, invoiceID int64) (int64, error) {
	inv, ok := m.invoices[invoiceID]
	if !ok {
		return 0, repo.ErrInvoiceNotFound
	}
	return inv.CustomerID, nil
}

func (m *memStore) InvoicedTotal(_ context.Context, customerID int64) (float64, error) {
	var total float64
	for _, inv := range m.invoices {
		if inv.CustomerID == customerID && inv.Status != entity.InvoiceStatusCancelled {
			total += inv.TotalAmount
		}
	}
	return total, nil
}

func (m *memStore) CompletedPaymentsTotal(_ context.Context, customerID int64) (float64, error) {
	var total float64
	for _, p := range m.payments {
		if p.CustomerID == customerID && p.Status == entity.PaymentStatusCompleted {
			total += p.Amount
		}
	}
	return total, nil
}

func (m *memStore) OverdueInvoices(_ context.Context, customerID int64, cutoff time.Time) ([]entity.Invoice, error) {
	var out []entity.Invoice
	for _, inv := range m.invoices {
		if inv.CustomerID != customerID {
			continue
		}
		if inv.Status == entity.InvoiceStatusPaid || inv.Status == entity.InvoiceStatusCancelled {
			continue
		}
		if inv.CreatedAt.Before(cutoff) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *memStore) ListByCustomer(_ context.Context, customerID int64) ([]entity.Payment, error) {
	var out []entity.Payment
	for _, p := range m.payments {
		if p.CustomerID == customerID {
			out = append(out, p)
		}
	}
	return out, nil
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

func TestRecordPayment(t *testing.T) {
	store := newMemStore()
	store.putInvoice(entity.Invoice{ID: 1, CustomerID: 10, Status: entity.InvoiceStatusGenerated, TotalAmount: 420})

	svc := newTestService(store)
	invoiceID := int64(1)
	p, err := svc.Record(context.Background(), RecordInput{
		CustomerID:  10,
		InvoiceID:   &invoiceID,
		Amount:      150,
		Method:      entity.PaymentMethodTransfer,
		Description: "first installment",
	})
	require.NoError(t, err)

	assert.Equal(t, entity.PaymentStatusCompleted, p.Status)
	assert.InDelta(t, 150.0, p.Amount, 0.001)

	// A credit transaction is booked alongside the payment.
	require.Len(t, store.transactions, 1)
	txn := store.transactions[0]
	assert.Equal(t, entity.TransactionCredit, txn.Kind)
	assert.InDelta(t, 150.0, txn.Amount, 0.001)
	require.NotNil(t, txn.PaymentID)
	assert.Equal(t, p.ID, *txn.PaymentID)
}

func TestRecordPaymentValidation(t *testing.T) {
	svc := newTestService(newMemStore())

	_, err := svc.Record(context.Background(), RecordInput{CustomerID: 10, Amount: 0, Method: entity.PaymentMethodCash})
	require.Error(t, err)
	assert.True(t, errorbank.HasCode(err, errorbank.CodeInvalidAmount))

	_, err = svc.Record(context.Background(), RecordInput{CustomerID: 10, Amount: -5, Method: entity.PaymentMethodCash})
	require.Error(t, err)
	assert.True(t, errorbank.HasCode(err, errorbank.CodeInvalidAmount))

	_, err = svc.Record(context.Background(), RecordInput{CustomerID: 10, Amount: 5, Method: "barter"})
	require.Error(t, err)
}

func TestRecordPaymentInvoiceMismatch(t *testing.T) {
	store := newMemStore()
	store.putInvoice(entity.Invoice{ID: 1, CustomerID: 20, Status: entity.InvoiceStatusGenerated, TotalAmount: 100})

	svc := newTestService(store)
	invoiceID := int64(1)
	_, err := svc.Record(context.Background(), RecordInput{
		CustomerID: 10,
		InvoiceID:  &invoiceID,
		Amount:     100,
		Method:     entity.PaymentMethodCash,
	})
	require.Error(t, err)
	assert.True(t, errorbank.HasCode(err, errorbank.CodeInvoiceCustomerMismatch))
	assert.Empty(t, store.payments)
}

func TestRecordPaymentUnknownInvoice(t *testing.T) {
	svc := newTestService(newMemStore())
	invoiceID := int64(404)
	_, err := svc.Record(context.Background(), RecordInput{
		CustomerID: 10,
		InvoiceID:  &invoiceID,
		Amount:     100,
		Method:     entity.PaymentMethodCash,
	})
	require.Error(t, err)

	var appErr *errorbank.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, errorbank.KindNotFound, appErr.Kind())
}

func TestOutstandingBalance(t *testing.T) {
	store := newMemStore()
	store.putInvoice(entity.Invoice{ID: 1, CustomerID: 10, Status: entity.InvoiceStatusGenerated, TotalAmount: 420})
	store.putInvoice(entity.Invoice{ID: 2, CustomerID: 10, Status: entity.InvoiceStatusGenerated, TotalAmount: 80})
	// Cancelled invoices never count toward debt.
	store.putInvoice(entity.Invoice{ID: 3, CustomerID: 10, Status: entity.InvoiceStatusCancelled, TotalAmount: 1000})

	svc := newTestService(store)

	balance, err := svc.OutstandingBalance(context.Background(), 10)
	require.NoError(t, err)
	assert.InDelta(t, 500.0, balance, 0.001)

	_, err = svc.Record(context.Background(), RecordInput{CustomerID: 10, Amount: 300, Method: entity.PaymentMethodCash})
	require.NoError(t, err)

	balance, err = svc.OutstandingBalance(context.Background(), 10)
	require.NoError(t, err)
	assert.InDelta(t, 200.0, balance, 0.001)
}

func TestOutstandingBalanceFloorsAtZero(t *testing.T) {
	store := newMemStore()
	store.putInvoice(entity.Invoice{ID: 1, CustomerID: 10, Status: entity.InvoiceStatusGenerated, TotalAmount: 100})

	svc := newTestService(store)
	_, err := svc.Record(context.Background(), RecordInput{CustomerID: 10, Amount: 250, Method: entity.PaymentMethodTransfer})
	require.NoError(t, err)

	balance, err := svc.OutstandingBalance(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestOverdueInvoices(t *testing.T) {
	now := time.Now().UTC()
	store := newMemStore()
	store.putInvoice(entity.Invoice{ID: 1, CustomerID: 10, Status: entity.InvoiceStatusGenerated, CreatedAt: now.AddDate(0, 0, -45)})
	store.putInvoice(entity.Invoice{ID: 2, CustomerID: 10, Status: entity.InvoiceStatusGenerated, CreatedAt: now.AddDate(0, 0, -5)})
	store.putInvoice(entity.Invoice{ID: 3, CustomerID: 10, Status: entity.InvoiceStatusPaid, CreatedAt: now.AddDate(0, 0, -60)})
	store.putInvoice(entity.Invoice{ID: 4, CustomerID: 10, Status: entity.InvoiceStatusCancelled, CreatedAt: now.AddDate(0, 0, -60)})

	svc := newTestService(store)

	// Default grace window from config (30 days).
	overdue, err := svc.OverdueInvoices(context.Background(), 10, 0)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, int64(1), overdue[0].ID)

	// Tighter per-call window pulls in the younger invoice too.
	overdue, err = svc.OverdueInvoices(context.Background(), 10, 3)
	require.NoError(t, err)
	assert.Len(t, overdue, 2)
}
