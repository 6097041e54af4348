// Package session ties an ordering session's cart to the backend: it
// submits category cells as orders and marks them paid once approved.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tableside/internal/cart"
	"tableside/internal/checkout"
	"tableside/internal/models"

	"go.uber.org/zap"
)

var (
	ErrCellSubmitted  = errors.New("category has been sent to the backend and can no longer change")
	ErrNotSubmitted   = errors.New("category has not been submitted yet")
	ErrSubmitInFlight = errors.New("category is already being submitted")
	ErrUnknownOrder   = errors.New("order does not belong to this session")
)

// Backend is the part of the API a session needs
type Backend interface {
	checkout.Gateway
	CreateOrder(ctx context.Context, req models.NewOrderRequest) (*models.Order, error)
}

type cellKey struct {
	table    uint
	category string
}

// Session owns one cart. Its methods may be called from several goroutines.
type Session struct {
	backend  Backend
	approver *checkout.Approver
	userID   uint
	logger   *zap.Logger

	mu         sync.Mutex
	orders     *cart.TableOrders
	submitted  map[cellKey]*models.Order
	byOrder    map[uint]cellKey
	submitting map[cellKey]bool
}

// New starts a session with an empty cart
func New(backend Backend, approver *checkout.Approver, userID uint, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		backend:    backend,
		approver:   approver,
		userID:     userID,
		logger:     logger,
		orders:     cart.New(),
		submitted:  make(map[cellKey]*models.Order),
		byOrder:    make(map[uint]cellKey),
		submitting: make(map[cellKey]bool),
	}
}

// Read runs fn with the cart locked. fn must not keep the pointer.
func (s *Session) Read(fn func(orders *cart.TableOrders)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.orders)
}

// AddItem adds to a cell that has not been submitted
func (s *Session) AddItem(tableID uint, category string, item models.MenuItem, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(tableID, category); err != nil {
		return err
	}
	return s.orders.AddItem(tableID, category, item, qty)
}

// SetQuantity changes a line of a cell that has not been submitted
func (s *Session) SetQuantity(tableID uint, category string, itemID uint, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkEditable(tableID, category); err != nil {
		return err
	}
	return s.orders.SetQuantity(tableID, category, itemID, qty)
}

// Submit sends a PENDING cell to the backend as a new order. Submitting the
// same cell again returns the order created the first time.
func (s *Session) Submit(ctx context.Context, tableID uint, category string) (*models.Order, error) {
	key := cellKey{tableID, category}

	s.mu.Lock()
	if order, ok := s.submitted[key]; ok {
		s.mu.Unlock()
		copied := *order
		return &copied, nil
	}
	if s.submitting[key] {
		s.mu.Unlock()
		return nil, ErrSubmitInFlight
	}
	cell, ok := s.orders.Cell(tableID, category)
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", category, cart.ErrCellNotFound)
	}
	if cell.Status == cart.StatusPaid {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", category, cart.ErrCellPaid)
	}
	s.submitting[key] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.submitting, key)
		s.mu.Unlock()
	}()

	req := models.NewOrderRequest{
		TableID:  tableID,
		UserID:   s.userID,
		Category: category,
		Items:    make([]models.OrderItem, 0, len(cell.Items)),
	}
	for _, line := range cell.Items {
		req.Items = append(req.Items, models.OrderItem{
			ItemID:   line.ItemID,
			Name:     line.Name,
			Quantity: line.Quantity,
			Price:    line.UnitPrice,
		})
	}

	order, err := s.backend.CreateOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	if local := cart.Total(cell); order.Total != local {
		s.logger.Warn("backend total differs from cart total",
			zap.Uint("order_id", order.ID),
			zap.Int64("cart_total", int64(local)),
			zap.Int64("order_total", int64(order.Total)))
	}

	s.mu.Lock()
	s.submitted[key] = order
	s.byOrder[order.ID] = key
	s.mu.Unlock()

	s.logger.Info("order submitted",
		zap.Uint("order_id", order.ID),
		zap.String("order_code", order.Code),
		zap.Uint("table_id", tableID),
		zap.String("category", category))
	copied := *order
	return &copied, nil
}

// Order returns the backend order a cell was submitted as
func (s *Session) Order(tableID uint, category string) (*models.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.submitted[cellKey{tableID, category}]
	if !ok {
		return nil, false
	}
	copied := *order
	return &copied, true
}

// PaymentForm starts checkout for a submitted cell, using the backend's
// total.
func (s *Session) PaymentForm(tableID uint, category string) (*checkout.PaymentForm, error) {
	order, ok := s.Order(tableID, category)
	if !ok {
		return nil, fmt.Errorf("%s: %w", category, ErrNotSubmitted)
	}
	if order.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("order %s is already %s", order.Code, order.Status)
	}
	return checkout.NewPaymentForm(order.ID, order.Total), nil
}

// Approve settles the form's order and marks its cell PAID.
func (s *Session) Approve(ctx context.Context, form *checkout.PaymentForm) (*checkout.Result, error) {
	s.mu.Lock()
	_, known := s.byOrder[form.OrderID()]
	s.mu.Unlock()
	if !known {
		return nil, ErrUnknownOrder
	}

	result, err := s.approver.Approve(ctx, form)
	if err != nil {
		return nil, err
	}
	s.settle(result)
	return result, nil
}

// Resume finishes an approval whose payment was recorded but whose
// confirmation failed, then marks the cell PAID.
func (s *Session) Resume(ctx context.Context, orderID uint) (*checkout.Result, error) {
	result, err := s.approver.Resume(ctx, orderID)
	if err != nil {
		return nil, err
	}
	s.settle(result)
	return result, nil
}

// Unconfirmed lists orders with a recorded payment still awaiting confirmation
func (s *Session) Unconfirmed() []uint {
	return s.approver.Unconfirmed()
}

// ClearPaid removes a table's settled cells so it can order again
func (s *Session) ClearPaid(tableID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, category := range s.orders.Categories(tableID) {
		cell, _ := s.orders.Cell(tableID, category)
		if cell.Status != cart.StatusPaid {
			continue
		}
		key := cellKey{tableID, category}
		if order, ok := s.submitted[key]; ok {
			delete(s.byOrder, order.ID)
			delete(s.submitted, key)
		}
	}
	return s.orders.ClearPaid(tableID)
}

func (s *Session) settle(result *checkout.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key, ok := s.byOrder[result.Payment.OrderID]
	if !ok && result.Order != nil {
		key, ok = s.byOrder[result.Order.ID]
	}
	if !ok {
		return
	}
	if order := s.submitted[key]; order != nil {
		order.Status = models.OrderStatusConfirmed
	}
	if err := s.orders.MarkPaid(key.table, key.category); err != nil && !errors.Is(err, cart.ErrCellPaid) {
		s.logger.Error("failed to mark cell paid",
			zap.Uint("table_id", key.table),
			zap.String("category", key.category),
			zap.Error(err))
	}
}

func (s *Session) checkEditable(tableID uint, category string) error {
	key := cellKey{tableID, category}
	if _, ok := s.submitted[key]; ok {
		return fmt.Errorf("%s: %w", category, ErrCellSubmitted)
	}
	if s.submitting[key] {
		return fmt.Errorf("%s: %w", category, ErrSubmitInFlight)
	}
	return nil
}
