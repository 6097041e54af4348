package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"tableside/internal/models"
)

// Health checks that the backend is up
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
	return err
}

// ListCategories returns the menu categories
func (c *Client) ListCategories(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	if _, err := c.do(ctx, http.MethodGet, "/menu/categories/list", nil, nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// ListTables returns the dining tables
func (c *Client) ListTables(ctx context.Context) ([]models.Table, error) {
	var tables []models.Table
	if _, err := c.do(ctx, http.MethodGet, "/tables/list", nil, nil, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// ListMenuItems returns every menu item, available or not
func (c *Client) ListMenuItems(ctx context.Context) ([]models.MenuItem, error) {
	var items []models.MenuItem
	if _, err := c.do(ctx, http.MethodGet, "/menu/items/list", nil, nil, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// SetItemAvailability marks a menu item available or sold out
func (c *Client) SetItemAvailability(ctx context.Context, itemID uint, available bool) (*models.MenuItem, error) {
	var item models.MenuItem
	body := models.AvailabilityUpdate{ItemID: itemID, Available: available}
	if _, err := c.do(ctx, http.MethodPut, "/menu/items/availability", body, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListOrders returns orders, filtered by status when it is not empty
func (c *Client) ListOrders(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	path := "/orders/list"
	if status != "" {
		path += "?" + url.Values{"status": {string(status)}}.Encode()
	}
	var orders []models.Order
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// CreateOrder submits a new pending order
func (c *Client) CreateOrder(ctx context.Context, req models.NewOrderRequest) (*models.Order, error) {
	var order models.Order
	if _, err := c.do(ctx, http.MethodPost, "/orders/add", req, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateOrderStatus changes an order's status
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID uint, status models.OrderStatus) (*models.Order, error) {
	var order models.Order
	body := models.StatusUpdate{OrderID: orderID, Status: status}
	if _, err := c.do(ctx, http.MethodPut, "/orders/update-status", body, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// AddPayment records a payment. A non-empty key lets the backend recognise
// a replayed request.
func (c *Client) AddPayment(ctx context.Context, req models.PaymentRequest, idempotencyKey string) (*models.Payment, error) {
	var payment models.Payment
	if _, err := c.do(ctx, http.MethodPost, "/payments/add", req, keyHeader(idempotencyKey), &payment); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ApproveOrder records the payment and confirms the order in one call
func (c *Client) ApproveOrder(ctx context.Context, req models.PaymentRequest, idempotencyKey string) (*models.Approval, error) {
	var approval models.Approval
	if _, err := c.do(ctx, http.MethodPost, "/orders/approve", req, keyHeader(idempotencyKey), &approval); err != nil {
		return nil, err
	}
	return &approval, nil
}

// ListPayments returns the payments for one order, or all payments when
// orderID is zero
func (c *Client) ListPayments(ctx context.Context, orderID uint) ([]models.Payment, error) {
	path := "/payments/list"
	if orderID != 0 {
		path += "?order_id=" + strconv.FormatUint(uint64(orderID), 10)
	}
	var payments []models.Payment
	if _, err := c.do(ctx, http.MethodGet, path, nil, nil, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

// IdempotencyHeader carries the key that deduplicates payment requests
const IdempotencyHeader = "Idempotency-Key"

func keyHeader(key string) map[string]string {
	if key == "" {
		return nil
	}
	return map[string]string{IdempotencyHeader: key}
}
