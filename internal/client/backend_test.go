package client_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"tableside/internal/api"
	"tableside/internal/checkout"
	"tableside/internal/client"
	"tableside/internal/config"
	"tableside/internal/database"
	"tableside/internal/idempotency"
	"tableside/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBackend(t *testing.T) (*client.Client, *database.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.Seed(db, &database.SeedData{
		Categories: []models.Category{{Name: "Mains"}},
		Tables:     []database.SeedTable{{Name: "Table 1", Seats: 4}},
		MenuItems:  []database.SeedMenuItem{{Name: "Isombe", Category: "Mains", Price: 3000}},
	}))
	keys, err := idempotency.NewGormStore(db, time.Hour)
	require.NoError(t, err)

	store := database.NewStore(db, models.PaymentMethods)
	server := api.NewServer(store, keys)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	t.Cleanup(server.Hub().Close)

	return client.New(ts.URL), store
}

func placeOrder(t *testing.T, c *client.Client) *models.Order {
	t.Helper()
	order, err := c.CreateOrder(context.Background(), models.NewOrderRequest{
		TableID:  1,
		UserID:   1,
		Category: "Mains",
		Items:    []models.OrderItem{{ItemID: 1, Name: "Isombe", Quantity: 2, Price: 3000}},
	})
	require.NoError(t, err)
	return order
}

func TestApproverAgainstBackend_Atomic(t *testing.T) {
	c, _ := startBackend(t)
	order := placeOrder(t, c)

	form := checkout.NewPaymentForm(order.ID, order.Total)
	require.NoError(t, form.SelectMode(models.PaymentModeFull))
	require.NoError(t, form.SelectMethod(models.PaymentMethodCard))

	result, err := checkout.NewApprover(c).Approve(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, result.Order.Status)
	assert.Equal(t, models.Amount(6000), result.Payment.AmountPaid)

	pending, err := c.ListOrders(context.Background(), models.OrderStatusPending)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApproverAgainstBackend_InSteps(t *testing.T) {
	c, store := startBackend(t)
	order := placeOrder(t, c)

	form := checkout.NewPaymentForm(order.ID, order.Total)
	require.NoError(t, form.SelectMode(models.PaymentModePartial))
	require.NoError(t, form.SelectMethod(models.PaymentMethodMobile))
	require.NoError(t, form.SetAmount(2000))
	require.NoError(t, form.SetPartialReason("Rest at the end of the month"))

	result, err := checkout.NewApprover(c, checkout.WithAtomicApproval(false)).Approve(context.Background(), form)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusConfirmed, result.Order.Status)

	payments, err := store.ListPayments(order.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "Rest at the end of the month", payments[0].PartialReason)
}

func TestApproverAgainstBackend_RejectionSurfacesMessage(t *testing.T) {
	c, _ := startBackend(t)
	order := placeOrder(t, c)

	// The form believes the total is lower than the backend's.
	form := checkout.NewPaymentForm(order.ID, 5000)
	require.NoError(t, form.SelectMode(models.PaymentModeFull))
	require.NoError(t, form.SelectMethod(models.PaymentMethodCash))

	_, err := checkout.NewApprover(c).Approve(context.Background(), form)

	var approvalErr *checkout.ApprovalError
	require.True(t, errors.As(err, &approvalErr))
	assert.False(t, approvalErr.PaymentRecorded)
	assert.True(t, client.IsKind(err, client.KindBackend))
	assert.Contains(t, err.Error(), "Amount paid must equal the order total of 6,000 RWF")
}

func TestPaymentReplayThroughClient(t *testing.T) {
	c, store := startBackend(t)
	order := placeOrder(t, c)
	req := models.PaymentRequest{OrderID: order.ID, Method: models.PaymentMethodCash, AmountPaid: 6000, Status: models.PaymentStatusPaid}

	first, err := c.AddPayment(context.Background(), req, "same-key")
	require.NoError(t, err)
	second, err := c.AddPayment(context.Background(), req, "same-key")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	payments, err := store.ListPayments(order.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
}
