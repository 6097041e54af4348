package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tableside/internal/cart"
	"tableside/internal/checkout"
	"tableside/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu        sync.Mutex
	created   []models.NewOrderRequest
	nextID    uint
	createErr error
	statusErr error
	approvals int
}

func (b *fakeBackend) CreateOrder(ctx context.Context, req models.NewOrderRequest) (*models.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return nil, b.createErr
	}
	b.created = append(b.created, req)
	b.nextID++
	order := &models.Order{
		ID:       b.nextID + 100,
		Code:     "ORD-TEST",
		TableID:  req.TableID,
		Category: req.Category,
		Items:    req.Items,
		Status:   models.OrderStatusPending,
	}
	total, err := order.ComputeTotal()
	if err != nil {
		return nil, err
	}
	order.Total = total
	return order, nil
}

func (b *fakeBackend) AddPayment(ctx context.Context, req models.PaymentRequest, key string) (*models.Payment, error) {
	return &models.Payment{ID: 1, OrderID: req.OrderID, Method: req.Method, AmountPaid: req.AmountPaid, Status: req.Status}, nil
}

func (b *fakeBackend) UpdateOrderStatus(ctx context.Context, orderID uint, status models.OrderStatus) (*models.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.statusErr != nil {
		return nil, b.statusErr
	}
	return &models.Order{ID: orderID, Status: status}, nil
}

func (b *fakeBackend) ApproveOrder(ctx context.Context, req models.PaymentRequest, key string) (*models.Approval, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.approvals++
	return &models.Approval{
		Order:   models.Order{ID: req.OrderID, Status: models.OrderStatusConfirmed},
		Payment: models.Payment{ID: 1, OrderID: req.OrderID, Method: req.Method, AmountPaid: req.AmountPaid, Status: req.Status},
	}, nil
}

var (
	brochette = models.MenuItem{ID: 1, Name: "Brochette", UnitPrice: 1500, Available: true}
	isombe    = models.MenuItem{ID: 2, Name: "Isombe", UnitPrice: 1000, Available: true}
)

func newSession(t *testing.T, opts ...checkout.Option) (*Session, *fakeBackend) {
	t.Helper()
	backend := &fakeBackend{}
	s := New(backend, checkout.NewApprover(backend, opts...), 7, nil)
	require.NoError(t, s.AddItem(3, "Mains", brochette, 2))
	require.NoError(t, s.AddItem(3, "Mains", isombe, 1))
	return s, backend
}

func payFull(t *testing.T, s *Session, tableID uint, category string) *checkout.PaymentForm {
	t.Helper()
	form, err := s.PaymentForm(tableID, category)
	require.NoError(t, err)
	require.NoError(t, form.SelectMode(models.PaymentModeFull))
	require.NoError(t, form.SelectMethod(models.PaymentMethodCash))
	return form
}

func TestSubmit(t *testing.T) {
	s, backend := newSession(t)

	order, err := s.Submit(context.Background(), 3, "Mains")
	require.NoError(t, err)

	require.Len(t, backend.created, 1)
	req := backend.created[0]
	assert.Equal(t, uint(3), req.TableID)
	assert.Equal(t, uint(7), req.UserID)
	assert.Equal(t, "Mains", req.Category)
	assert.Equal(t, []models.OrderItem{
		{ItemID: 1, Name: "Brochette", Quantity: 2, Price: 1500},
		{ItemID: 2, Name: "Isombe", Quantity: 1, Price: 1000},
	}, req.Items)
	assert.Equal(t, models.Amount(4000), order.Total)

	linked, ok := s.Order(3, "Mains")
	require.True(t, ok)
	assert.Equal(t, order.ID, linked.ID)
}

func TestSubmit_Twice(t *testing.T) {
	s, backend := newSession(t)

	first, err := s.Submit(context.Background(), 3, "Mains")
	require.NoError(t, err)
	second, err := s.Submit(context.Background(), 3, "Mains")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, backend.created, 1)
}

func TestSubmit_UnknownCell(t *testing.T) {
	s, backend := newSession(t)

	_, err := s.Submit(context.Background(), 3, "Drinks")
	assert.ErrorIs(t, err, cart.ErrCellNotFound)
	assert.Empty(t, backend.created)
}

func TestSubmit_BackendErrorLeavesCellEditable(t *testing.T) {
	s, backend := newSession(t)
	backend.createErr = errors.New("Table not found")

	_, err := s.Submit(context.Background(), 3, "Mains")
	require.EqualError(t, err, "Table not found")

	_, ok := s.Order(3, "Mains")
	assert.False(t, ok)
	assert.NoError(t, s.AddItem(3, "Mains", isombe, 1))
}

func TestSubmittedCellIsLocked(t *testing.T) {
	s, _ := newSession(t)
	_, err := s.Submit(context.Background(), 3, "Mains")
	require.NoError(t, err)

	assert.ErrorIs(t, s.AddItem(3, "Mains", isombe, 1), ErrCellSubmitted)
	assert.ErrorIs(t, s.SetQuantity(3, "Mains", 1, 5), ErrCellSubmitted)
	assert.NoError(t, s.AddItem(3, "Drinks", models.MenuItem{ID: 9, Name: "Primus", UnitPrice: 1500, Available: true}, 1))
}

func TestPaymentForm_RequiresSubmit(t *testing.T) {
	s, _ := newSession(t)

	_, err := s.PaymentForm(3, "Mains")
	assert.ErrorIs(t, err, ErrNotSubmitted)
}

func TestApprove_MarksCellPaid(t *testing.T) {
	s, backend := newSession(t)
	_, err := s.Submit(context.Background(), 3, "Mains")
	require.NoError(t, err)

	form := payFull(t, s, 3, "Mains")
	assert.Equal(t, models.Amount(4000), form.AmountPaid())

	result, err := s.Approve(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, result.Order.Status)
	assert.Equal(t, 1, backend.approvals)

	s.Read(func(orders *cart.TableOrders) {
		cell, ok := orders.Cell(3, "Mains")
		require.True(t, ok)
		assert.Equal(t, cart.StatusPaid, cell.Status)
	})

	order, _ := s.Order(3, "Mains")
	assert.Equal(t, models.OrderStatusConfirmed, order.Status)

	_, err = s.PaymentForm(3, "Mains")
	assert.Error(t, err)
}

func TestApprove_FailureLeavesCellPending(t *testing.T) {
	s, backend := newSession(t, checkout.WithAtomicApproval(false))
	backend.statusErr = errors.New("bad gateway")
	_, err := s.Submit(context.Background(), 3, "Mains")
	require.NoError(t, err)

	form := payFull(t, s, 3, "Mains")
	_, err = s.Approve(context.Background(), form)
	require.Error(t, err)

	s.Read(func(orders *cart.TableOrders) {
		cell, _ := orders.Cell(3, "Mains")
		assert.Equal(t, cart.StatusPending, cell.Status)
	})
	require.Equal(t, []uint{form.OrderID()}, s.Unconfirmed())

	backend.statusErr = nil
	_, err = s.Resume(context.Background(), form.OrderID())
	require.NoError(t, err)

	s.Read(func(orders *cart.TableOrders) {
		cell, _ := orders.Cell(3, "Mains")
		assert.Equal(t, cart.StatusPaid, cell.Status)
	})
	assert.Empty(t, s.Unconfirmed())
}

func TestApprove_UnknownOrder(t *testing.T) {
	s, backend := newSession(t)

	form := checkout.NewPaymentForm(999, 4000)
	_, err := s.Approve(context.Background(), form)
	assert.ErrorIs(t, err, ErrUnknownOrder)
	assert.Zero(t, backend.approvals)
}

func TestClearPaid(t *testing.T) {
	s, _ := newSession(t)
	require.NoError(t, s.AddItem(3, "Drinks", models.MenuItem{ID: 9, Name: "Primus", UnitPrice: 1500, Available: true}, 1))
	_, err := s.Submit(context.Background(), 3, "Mains")
	require.NoError(t, err)
	_, err = s.Approve(context.Background(), payFull(t, s, 3, "Mains"))
	require.NoError(t, err)

	assert.Equal(t, 1, s.ClearPaid(3))

	_, ok := s.Order(3, "Mains")
	assert.False(t, ok)
	s.Read(func(orders *cart.TableOrders) {
		assert.Equal(t, []string{"Drinks"}, orders.Categories(3))
	})
	assert.NoError(t, s.AddItem(3, "Mains", isombe, 1))
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) CreateOrder(ctx context.Context, req models.NewOrderRequest) (*models.Order, error) {
	args := m.Called(ctx, req)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockBackend) AddPayment(ctx context.Context, req models.PaymentRequest, key string) (*models.Payment, error) {
	args := m.Called(ctx, req, key)
	payment, _ := args.Get(0).(*models.Payment)
	return payment, args.Error(1)
}

func (m *mockBackend) UpdateOrderStatus(ctx context.Context, orderID uint, status models.OrderStatus) (*models.Order, error) {
	args := m.Called(ctx, orderID, status)
	order, _ := args.Get(0).(*models.Order)
	return order, args.Error(1)
}

func (m *mockBackend) ApproveOrder(ctx context.Context, req models.PaymentRequest, key string) (*models.Approval, error) {
	args := m.Called(ctx, req, key)
	approval, _ := args.Get(0).(*models.Approval)
	return approval, args.Error(1)
}

func TestSubmit_BackendTotalIsAuthoritative(t *testing.T) {
	backend := &mockBackend{}
	s := New(backend, checkout.NewApprover(backend), 7, nil)
	require.NoError(t, s.AddItem(3, "Mains", brochette, 2))

	backend.On("CreateOrder", mock.Anything, mock.MatchedBy(func(req models.NewOrderRequest) bool {
		return req.TableID == 3 && req.Category == "Mains" && len(req.Items) == 1
	})).Return(&models.Order{ID: 55, Code: "ORD-55", Status: models.OrderStatusPending, Total: 3200}, nil).Once()

	_, err := s.Submit(context.Background(), 3, "Mains")
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), 3, "Mains")
	require.NoError(t, err)

	form, err := s.PaymentForm(3, "Mains")
	require.NoError(t, err)
	assert.Equal(t, models.Amount(3200), form.Total())

	backend.On("ApproveOrder", mock.Anything, mock.MatchedBy(func(req models.PaymentRequest) bool {
		return req.OrderID == 55 && req.AmountPaid == 3200
	}), form.IdempotencyKey()).Return(&models.Approval{
		Order:   models.Order{ID: 55, Status: models.OrderStatusConfirmed},
		Payment: models.Payment{ID: 9, OrderID: 55, AmountPaid: 3200, Method: models.PaymentMethodCard, Status: models.PaymentStatusPaid},
	}, nil).Once()

	require.NoError(t, form.SelectMode(models.PaymentModeFull))
	require.NoError(t, form.SelectMethod(models.PaymentMethodCard))
	_, err = s.Approve(context.Background(), form)
	require.NoError(t, err)

	backend.AssertExpectations(t)
	backend.AssertNotCalled(t, "AddPayment", mock.Anything, mock.Anything, mock.Anything)
}
