package receipt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tableside/internal/cart"
	"tableside/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var table4 = models.Table{ID: 4, Name: "Terrace 4"}

func sampleOrders(t *testing.T) *cart.TableOrders {
	t.Helper()
	orders := cart.New()
	require.NoError(t, orders.AddItem(4, "Drinks", models.MenuItem{ID: 1, Name: "Primus", UnitPrice: 1500, Available: true}, 2))
	require.NoError(t, orders.AddItem(4, "Drinks", models.MenuItem{ID: 2, Name: "Fanta Citron", UnitPrice: 1000, Available: true}, 1))
	require.NoError(t, orders.AddItem(4, "Mains", models.MenuItem{ID: 3, Name: "Brochette de chevre grillee", UnitPrice: 12500, Available: true}, 1))
	return orders
}

func TestCell_Deterministic(t *testing.T) {
	orders := sampleOrders(t)
	cell, ok := orders.Cell(4, "Drinks")
	require.True(t, ok)

	first := Cell(table4, "Drinks", cell, "2026-10-19 20:15")
	second := Cell(table4, "Drinks", cell, "2026-10-19 20:15")

	assert.Equal(t, first, second)
}

func TestCell_LinesAndTotal(t *testing.T) {
	orders := sampleOrders(t)
	cell, _ := orders.Cell(4, "Drinks")

	out := Cell(table4, "Drinks", cell, "2026-10-19")

	assert.Equal(t, 1, strings.Count(out, "Primus"))
	assert.Equal(t, 1, strings.Count(out, "Fanta Citron"))
	assert.Contains(t, out, "Terrace 4 - Drinks")
	assert.Contains(t, out, "Status: PENDING")

	lastTotal := ""
	for _, l := range strings.Split(out, "\n") {
		if strings.HasPrefix(l, "TOTAL") {
			lastTotal = l
		}
	}
	assert.True(t, strings.HasSuffix(lastTotal, models.FormatRWF(cart.Total(cell))))
	assert.True(t, strings.HasSuffix(lastTotal, "4,000 RWF"))
}

func TestCell_FixedWidth(t *testing.T) {
	orders := sampleOrders(t)
	cell, _ := orders.Cell(4, "Mains")

	out := Cell(table4, "Mains", cell, "2026-10-19")
	for _, l := range strings.Split(strings.TrimRight(out, "\n"), "\n") {
		if strings.HasPrefix(l, "Date") || strings.HasPrefix(l, "Status") {
			continue
		}
		assert.LessOrEqual(t, len([]rune(l)), Width, "line %q", l)
	}
	assert.Contains(t, out, "Brochette de chevr~")
}

func TestTable(t *testing.T) {
	orders := sampleOrders(t)
	require.NoError(t, orders.MarkPaid(4, "Drinks"))

	out := Table(table4, orders, "2026-10-19")

	assert.Equal(t, out, Table(table4, orders, "2026-10-19"))
	assert.Contains(t, out, "Drinks [PAID]")
	assert.Contains(t, out, "Mains [PENDING]")
	assert.Less(t, strings.Index(out, "Drinks"), strings.Index(out, "Mains"))
	assert.Regexp(t, `(?m)^TOTAL\s+16,500 RWF$`, out)
	assert.Regexp(t, `(?m)^Unpaid\s+12,500 RWF$`, out)
}

func TestInvoice(t *testing.T) {
	order := models.Order{
		ID:       9,
		Code:     "ORD-7F3A",
		TableID:  4,
		Category: "Mains",
		Status:   models.OrderStatusConfirmed,
		Items: []models.OrderItem{
			{Name: "Isombe", Quantity: 2, Price: 3000},
			{Name: "Ugali", Quantity: 1, Price: 4000},
		},
	}
	payments := []models.Payment{
		{Method: models.PaymentMethodMobile, AmountPaid: 6000, Status: models.PaymentStatusPartial, PartialReason: "Rest tomorrow"},
	}

	out := Invoice(order, payments, "2026-10-19")

	assert.Equal(t, out, Invoice(order, payments, "2026-10-19"))
	assert.Contains(t, out, "INVOICE ORD-7F3A")
	assert.Regexp(t, `(?m)^TOTAL\s+10,000 RWF$`, out)
	assert.Regexp(t, `(?m)^Paid \(Mobile money\)\s+6,000 RWF$`, out)
	assert.Regexp(t, `(?m)^Balance\s+4,000 RWF$`, out)
	assert.Contains(t, out, "Reason: Rest tomorrow")
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "receipts")

	path, err := WriteFile(dir, "table 4/drinks", "hello\n")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "table_4_drinks.txt"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\n", string(data))
}
