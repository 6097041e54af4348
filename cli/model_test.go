package main

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"tableside/internal/api"
	"tableside/internal/cart"
	"tableside/internal/catalog"
	"tableside/internal/checkout"
	"tableside/internal/client"
	"tableside/internal/config"
	"tableside/internal/database"
	"tableside/internal/idempotency"
	"tableside/internal/models"
	"tableside/internal/session"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModel(t *testing.T) Model {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(config.DatabaseConfig{Driver: "sqlite3", DSN: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	require.NoError(t, database.Seed(db, &database.SeedData{
		Categories: []models.Category{{Name: "Mains"}, {Name: "Drinks"}},
		Tables:     []database.SeedTable{{Name: "Terrace 1", Seats: 4}},
		MenuItems: []database.SeedMenuItem{
			{Name: "Isombe", Category: "Mains", Price: 3000},
			{Name: "Primus", Category: "Drinks", Price: 1500},
		},
	}))
	keys, err := idempotency.NewGormStore(db, time.Hour)
	require.NoError(t, err)

	server := api.NewServer(database.NewStore(db, models.PaymentMethods), keys)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)
	t.Cleanup(server.Hub().Close)

	c := client.New(ts.URL)
	m := initialModel(context.Background(), deps{
		client:      c,
		catalog:     catalog.New(c, nil),
		session:     session.New(c, checkout.NewApprover(c), 1, nil),
		methods:     models.PaymentMethods,
		receiptsDir: t.TempDir(),
		maxAge:      time.Minute,
		timeout:     5 * time.Second,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return run(t, next.(Model), loadCatalog(m))
}

func press(m Model, key string) (Model, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	next, _ := m.Update(cmd())
	return next.(Model)
}

func TestCatalogLoads(t *testing.T) {
	m := newTestModel(t)

	assert.False(t, m.loading)
	assert.Empty(t, m.error)
	require.Len(t, m.tableList.Items(), 1)
	assert.Equal(t, "Terrace 1", m.tableList.Items()[0].(tableItem).Title())
}

func TestTableSummary(t *testing.T) {
	m := newTestModel(t)
	assert.Equal(t, "Tables", m.tableList.Title)

	table := m.tableList.Items()[0].(tableItem).table
	mains := m.catalog.Items("Mains")
	require.NotEmpty(t, mains)
	require.NoError(t, m.session.AddItem(table.ID, "Mains", mains[0], 2))

	m.syncTables()
	assert.Equal(t, "Tables (1 open)", m.tableList.Title)
	summary := m.tableList.Items()[0].(tableItem)
	assert.Equal(t, 1, summary.categories)
	assert.Equal(t, mains[0].UnitPrice.Times(2), summary.unpaid)
}

func TestOrderAndApproveFlow(t *testing.T) {
	m := newTestModel(t)

	m, cmd := press(m, "enter")
	assert.Equal(t, viewCategories, m.currentView)
	m = run(t, m, cmd)

	m.categoryList.Select(0)
	m, _ = press(m, "enter")
	require.Equal(t, viewItems, m.currentView)
	assert.Equal(t, "Mains", m.category)

	m, _ = press(m, "enter")
	m, _ = press(m, "enter")
	assert.Equal(t, "Added Isombe", m.status)

	m, _ = press(m, "c")
	require.Equal(t, viewCart, m.currentView)
	require.Len(t, m.cartView.Rows(), 1)
	assert.Equal(t, "Mains", m.cartView.Rows()[0][0])
	assert.Equal(t, "6,000 RWF", m.cartView.Rows()[0][4])

	m, _ = press(m, "enter")
	require.Equal(t, viewCell, m.currentView)

	m, _ = press(m, "p")
	assert.Equal(t, viewCell, m.currentView, "payment needs a submitted order")
	assert.NotEmpty(t, m.error)

	m, cmd = press(m, "s")
	assert.True(t, m.loading)
	m = run(t, m, cmd)
	require.Empty(t, m.error)
	assert.Contains(t, m.status, "ORD-")

	m, _ = press(m, "p")
	require.Equal(t, viewPayment, m.currentView)
	m, _ = press(m, "f")
	m, _ = press(m, "1")
	assert.True(t, m.form.CanApprove())
	assert.Contains(t, m.View(), "Ready to approve")

	m, cmd = press(m, "enter")
	m = run(t, m, cmd)
	require.Empty(t, m.error)
	assert.Equal(t, viewCell, m.currentView)
	assert.Contains(t, m.status, "6,000 RWF paid by Cash")

	cell, ok := m.cell()
	require.True(t, ok)
	assert.Equal(t, cart.StatusPaid, cell.Status)

	m, cmd = press(m, "r")
	m = run(t, m, cmd)
	require.Empty(t, m.error)
	assert.Contains(t, m.status, "Receipt written to ")
	path := m.status[len("Receipt written to "):]
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Status: PAID")
}

func TestPartialPaymentForm(t *testing.T) {
	m := newTestModel(t)
	m.tableID = 1
	m.category = "Mains"
	require.NoError(t, m.session.AddItem(1, "Mains", models.MenuItem{ID: 1, Name: "Isombe", UnitPrice: 3000, Available: true}, 2))

	m.currentView = viewCell
	m, cmd := press(m, "s")
	m = run(t, m, cmd)
	require.Empty(t, m.error)

	m, _ = press(m, "p")
	m, _ = press(m, "p")
	m, _ = press(m, "2")
	assert.Equal(t, models.PaymentModePartial, m.form.Mode())

	m, _ = press(m, "enter")
	assert.NotEmpty(t, m.error, "partial payment without amount must not approve")
	assert.Equal(t, viewPayment, m.currentView)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	assert.Equal(t, focusAmount, m.focus)
	m, _ = press(m, "4000")
	assert.Equal(t, models.Amount(4000), m.form.AmountPaid())
	assert.Equal(t, models.Amount(2000), m.form.RemainingBalance())

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = next.(Model)
	m, _ = press(m, "Rest tomorrow")
	assert.True(t, m.form.CanApprove())

	m, cmd = press(m, "enter")
	m = run(t, m, cmd)
	require.Empty(t, m.error)
	assert.Contains(t, m.status, "4,000 RWF paid by Card")
}

func TestToggleAvailability(t *testing.T) {
	m := newTestModel(t)
	m.tableID = 1
	m.category = "Drinks"
	m.currentView = viewItems
	m.syncItems()
	require.Len(t, m.itemList.Items(), 1)

	m, cmd := press(m, "t")
	m = run(t, m, cmd)
	require.Empty(t, m.error)

	item := m.itemList.Items()[0].(menuItem)
	assert.False(t, item.item.Available)
	assert.Contains(t, item.Description(), "unavailable")

	m, _ = press(m, "enter")
	assert.NotEmpty(t, m.error)
}

func TestOrdersView(t *testing.T) {
	m := newTestModel(t)

	m, cmd := press(m, "o")
	require.Equal(t, viewOrders, m.currentView)
	m = run(t, m, cmd)
	assert.Empty(t, m.error)
	assert.Empty(t, m.orderList.Items())

	m, _ = press(m, "u")
	assert.NotEmpty(t, m.error)

	m, _ = press(m, "esc")
	assert.Equal(t, viewTables, m.currentView)
}

func TestConvertOrdersToItems(t *testing.T) {
	orders := []models.Order{
		{ID: 1, Code: "ORD-1", Status: models.OrderStatusPending, Total: 3000},
		{ID: 2, Code: "ORD-2", Status: models.OrderStatusConfirmed, Total: 4000},
		{ID: 3, Code: "ORD-3", Status: models.OrderStatusPending, Total: 5000},
	}

	items := convertOrdersToItems(orders, []uint{1, 2})

	require.Len(t, items, 3)
	assert.True(t, items[0].(orderItem).unconfirmed)
	assert.False(t, items[1].(orderItem).unconfirmed)
	assert.False(t, items[2].(orderItem).unconfirmed)
	assert.Contains(t, items[0].(orderItem).Description(), "UNCONFIRMED")
	assert.Contains(t, items[1].(orderItem).Description(), "CONFIRMED")
}

func TestApprovalMessage(t *testing.T) {
	recorded := &checkout.ApprovalError{OrderID: 7, Stage: checkout.StageConfirm, PaymentRecorded: true, Err: errors.New("timeout")}
	assert.Contains(t, approvalMessage(recorded), "order 7 is not confirmed")

	rejected := &checkout.ApprovalError{OrderID: 7, Stage: checkout.StageApprove, Err: &client.APIError{Kind: client.KindBackend, Message: "Order already confirmed"}}
	assert.Equal(t, "Order already confirmed", approvalMessage(rejected))
}
