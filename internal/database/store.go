package database

import (
	"fmt"
	"strings"

	"tableside/internal/models"

	"github.com/google/uuid"
	"github.com/jinzhu/gorm"
)

// Store implements the backend's ordering and payment rules on top of gorm.
// Every write that touches more than one row runs in a transaction.
type Store struct {
	db       *gorm.DB
	accepted map[models.PaymentMethod]bool
}

// NewStore creates a store that accepts the given payment methods
func NewStore(db *gorm.DB, accepted []models.PaymentMethod) *Store {
	s := &Store{db: db, accepted: make(map[models.PaymentMethod]bool, len(accepted))}
	for _, m := range accepted {
		s.accepted[m] = true
	}
	return s
}

// DB exposes the underlying connection
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Ping checks the database connection
func (s *Store) Ping() error {
	return s.db.DB().Ping()
}

func (s *Store) ListCategories() ([]models.Category, error) {
	var categories []models.Category
	if err := s.db.Order("id asc").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

func (s *Store) ListTables() ([]models.Table, error) {
	var tables []models.Table
	if err := s.db.Order("id asc").Find(&tables).Error; err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	return tables, nil
}

func (s *Store) ListMenuItems() ([]models.MenuItem, error) {
	var items []models.MenuItem
	if err := s.db.Order("id asc").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list menu items: %w", err)
	}
	return items, nil
}

// SetItemAvailability marks a menu item as available or sold out
func (s *Store) SetItemAvailability(itemID uint, available bool) (*models.MenuItem, error) {
	var item models.MenuItem
	if err := s.db.First(&item, itemID).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, notFound("Menu item %d not found", itemID)
		}
		return nil, fmt.Errorf("failed to load menu item: %w", err)
	}
	if err := s.db.Model(&item).Update("available", available).Error; err != nil {
		return nil, fmt.Errorf("failed to update menu item: %w", err)
	}
	item.Available = available
	return &item, nil
}

// ListOrders returns orders with their items, optionally filtered by status
func (s *Store) ListOrders(status models.OrderStatus) ([]models.Order, error) {
	query := s.db.Preload("Items").Order("id asc")
	if status != "" {
		if !status.Valid() {
			return nil, invalid("Unknown order status %q", status)
		}
		query = query.Where("status = ?", status)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetOrder loads one order with its items
func (s *Store) GetOrder(orderID uint) (*models.Order, error) {
	return findOrder(s.db, orderID)
}

// CreateOrder stores a new pending order. Items that name a catalog item
// take their name and price from the catalog.
func (s *Store) CreateOrder(req models.NewOrderRequest) (*models.Order, error) {
	if req.TableID == 0 {
		return nil, invalid("Table is required")
	}
	if len(req.Items) == 0 {
		return nil, invalid("Order must contain at least one item")
	}

	var order *models.Order
	err := transaction(s.db, func(tx *gorm.DB) error {
		var table models.Table
		if err := tx.First(&table, req.TableID).Error; err != nil {
			if gorm.IsRecordNotFoundError(err) {
				return notFound("Table %d not found", req.TableID)
			}
			return fmt.Errorf("failed to load table: %w", err)
		}

		items := make([]models.OrderItem, 0, len(req.Items))
		for _, in := range req.Items {
			item, err := resolveItem(tx, in)
			if err != nil {
				return err
			}
			items = append(items, item)
		}

		order = &models.Order{
			Code:     newOrderCode(),
			TableID:  req.TableID,
			UserID:   req.UserID,
			Category: strings.TrimSpace(req.Category),
			Items:    items,
			Status:   models.OrderStatusPending,
		}
		total, err := order.ComputeTotal()
		if err != nil {
			return invalid("Order total is too large")
		}
		order.Total = total

		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		if table.Status == models.TableStatusAvailable {
			if err := tx.Model(&table).Update("status", models.TableStatusOccupied).Error; err != nil {
				return fmt.Errorf("failed to update table: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// UpdateOrderStatus moves a pending order to confirmed or cancelled.
// Confirming requires a recorded payment. Confirming an already confirmed
// order returns it unchanged, so a lost response can be retried.
func (s *Store) UpdateOrderStatus(orderID uint, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, invalid("Unknown order status %q", status)
	}

	var order *models.Order
	err := transaction(s.db, func(tx *gorm.DB) error {
		var err error
		order, err = findOrder(tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == status && status == models.OrderStatusConfirmed {
			return nil
		}
		if order.Status != models.OrderStatusPending {
			return conflict("Order %s is already %s", order.Code, order.Status)
		}

		switch status {
		case models.OrderStatusPending:
			return nil
		case models.OrderStatusConfirmed:
			var payments int
			if err := tx.Model(&models.Payment{}).Where("order_id = ?", orderID).Count(&payments).Error; err != nil {
				return fmt.Errorf("failed to count payments: %w", err)
			}
			if payments == 0 {
				return conflict("Order %s has no recorded payment", order.Code)
			}
		}
		return setStatus(tx, order, status)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

// AddPayment records a payment against a pending order
func (s *Store) AddPayment(req models.PaymentRequest) (*models.Payment, error) {
	var payment *models.Payment
	err := transaction(s.db, func(tx *gorm.DB) error {
		var err error
		payment, _, err = s.recordPayment(tx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// ApproveOrder records the payment and confirms the order in one
// transaction. If any rule fails nothing is written.
func (s *Store) ApproveOrder(req models.PaymentRequest) (*models.Approval, error) {
	var approval *models.Approval
	err := transaction(s.db, func(tx *gorm.DB) error {
		payment, order, err := s.recordPayment(tx, req)
		if err != nil {
			return err
		}
		if err := setStatus(tx, order, models.OrderStatusConfirmed); err != nil {
			return err
		}
		approval = &models.Approval{Order: *order, Payment: *payment}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return approval, nil
}

// GetPayment loads a payment by ID
func (s *Store) GetPayment(paymentID uint) (*models.Payment, error) {
	var payment models.Payment
	if err := s.db.First(&payment, paymentID).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, notFound("Payment %d not found", paymentID)
		}
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	return &payment, nil
}

// ListPayments returns payments, optionally for one order
func (s *Store) ListPayments(orderID uint) ([]models.Payment, error) {
	query := s.db.Order("id asc")
	if orderID != 0 {
		query = query.Where("order_id = ?", orderID)
	}
	var payments []models.Payment
	if err := query.Find(&payments).Error; err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (s *Store) recordPayment(tx *gorm.DB, req models.PaymentRequest) (*models.Payment, *models.Order, error) {
	order, err := findOrder(tx, req.OrderID)
	if err != nil {
		return nil, nil, err
	}
	if order.Status != models.OrderStatusPending {
		return nil, nil, conflict("Order %s is already %s", order.Code, order.Status)
	}
	if err := s.validatePayment(req, order.Total); err != nil {
		return nil, nil, err
	}

	var existing int
	if err := tx.Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&existing).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to count payments: %w", err)
	}
	if existing > 0 {
		return nil, nil, conflict("Order %s already has a recorded payment", order.Code)
	}

	payment := &models.Payment{
		OrderID:    order.ID,
		Method:     req.Method,
		AmountPaid: req.AmountPaid,
		Status:     req.Status,
		Reference:  uuid.NewString(),
	}
	if req.Status == models.PaymentStatusPartial {
		payment.PartialReason = strings.TrimSpace(req.PartialReason)
	}
	if err := tx.Create(payment).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to record payment: %w", err)
	}
	return payment, order, nil
}

func (s *Store) validatePayment(req models.PaymentRequest, total models.Amount) error {
	if !req.Method.Valid() {
		return invalid("Unknown payment method %q", req.Method)
	}
	if !s.accepted[req.Method] {
		return invalid("Payment method %s is not accepted", req.Method.Label())
	}

	switch req.Status {
	case models.PaymentStatusPaid:
		if req.AmountPaid != total {
			return invalid("Amount paid must equal the order total of %s", models.FormatRWF(total))
		}
	case models.PaymentStatusPartial:
		if req.AmountPaid <= 0 || req.AmountPaid >= total {
			return invalid("Partial amount must be between 0 and %s", models.FormatRWF(total))
		}
		if strings.TrimSpace(req.PartialReason) == "" {
			return invalid("Partial payment requires a reason")
		}
	default:
		return invalid("Unknown payment status %q", req.Status)
	}
	return nil
}

func findOrder(db *gorm.DB, orderID uint) (*models.Order, error) {
	var order models.Order
	if err := db.Preload("Items").First(&order, orderID).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return nil, notFound("Order %d not found", orderID)
		}
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

func setStatus(tx *gorm.DB, order *models.Order, status models.OrderStatus) error {
	if err := tx.Model(&models.Order{ID: order.ID}).Update("status", status).Error; err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	order.Status = status
	return nil
}

func resolveItem(tx *gorm.DB, in models.OrderItem) (models.OrderItem, error) {
	if in.Quantity < 1 {
		return models.OrderItem{}, invalid("Quantity for %q must be at least 1", in.Name)
	}
	if in.ItemID == 0 {
		if strings.TrimSpace(in.Name) == "" || in.Price <= 0 {
			return models.OrderItem{}, invalid("Items outside the catalog need a name and a price")
		}
		return checkLine(models.OrderItem{Name: in.Name, Quantity: in.Quantity, Price: in.Price})
	}

	var item models.MenuItem
	if err := tx.First(&item, in.ItemID).Error; err != nil {
		if gorm.IsRecordNotFoundError(err) {
			return models.OrderItem{}, notFound("Menu item %d not found", in.ItemID)
		}
		return models.OrderItem{}, fmt.Errorf("failed to load menu item: %w", err)
	}
	if !item.Available {
		return models.OrderItem{}, conflict("%s is not available", item.Name)
	}
	return checkLine(models.OrderItem{ItemID: item.ID, Name: item.Name, Quantity: in.Quantity, Price: item.UnitPrice})
}

func checkLine(item models.OrderItem) (models.OrderItem, error) {
	if _, err := item.Price.MulQuantity(item.Quantity); err != nil {
		return models.OrderItem{}, invalid("Quantity %d of %q is too large", item.Quantity, item.Name)
	}
	return item, nil
}

func newOrderCode() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:8])
}
