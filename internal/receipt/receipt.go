// Package receipt renders carts and settled orders as fixed-width receipt
// text. Output depends only on the arguments, so rendering the same input
// twice yields identical bytes.
package receipt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tableside/internal/cart"
	"tableside/internal/models"
)

// Width is the receipt width in characters.
const Width = 42

const (
	nameWidth   = 20
	qtyWidth    = 5
	amountWidth = Width - nameWidth - qtyWidth
)

// Cell renders the items of one category at one table.
func Cell(table models.Table, category string, cell cart.CategoryCell, orderDate string) string {
	var b strings.Builder
	rule(&b, '=')
	center(&b, fmt.Sprintf("%s - %s", table.Label(), category))
	field(&b, "Date", orderDate)
	field(&b, "Status", string(cell.Status))
	rule(&b, '-')
	lines(&b, cell.Items)
	rule(&b, '-')
	total(&b, "TOTAL", cart.Total(cell))
	rule(&b, '=')
	return b.String()
}

// Table renders every category of a table followed by the grand total and
// the amount still unpaid.
func Table(table models.Table, orders *cart.TableOrders, orderDate string) string {
	var b strings.Builder
	rule(&b, '=')
	center(&b, table.Label())
	field(&b, "Date", orderDate)
	for _, category := range orders.Categories(table.ID) {
		cell, _ := orders.Cell(table.ID, category)
		rule(&b, '-')
		center(&b, fmt.Sprintf("%s [%s]", category, cell.Status))
		lines(&b, cell.Items)
		total(&b, "Subtotal", cart.Total(cell))
	}
	rule(&b, '-')
	total(&b, "TOTAL", orders.TableTotal(table.ID))
	total(&b, "Unpaid", orders.PendingTotal(table.ID))
	rule(&b, '=')
	return b.String()
}

// Invoice renders a backend order with the payments recorded against it.
func Invoice(order models.Order, payments []models.Payment, orderDate string) string {
	var b strings.Builder
	rule(&b, '=')
	center(&b, "INVOICE "+order.Code)
	field(&b, "Date", orderDate)
	field(&b, "Table", fmt.Sprintf("%d", order.TableID))
	if order.Category != "" {
		field(&b, "Category", order.Category)
	}
	field(&b, "Status", string(order.Status))
	rule(&b, '-')
	for _, item := range order.Items {
		line(&b, item.Name, item.Quantity, item.Price.Times(item.Quantity))
	}
	rule(&b, '-')
	orderTotal, err := order.ComputeTotal()
	if err != nil {
		orderTotal = order.Total
	}
	total(&b, "TOTAL", orderTotal)

	var paid models.Amount
	for _, p := range payments {
		label := "Paid (" + p.Method.Label() + ")"
		total(&b, label, p.AmountPaid)
		if p.PartialReason != "" {
			field(&b, "Reason", p.PartialReason)
		}
		paid += p.AmountPaid
	}
	if len(payments) > 0 {
		balance := orderTotal - paid
		if balance < 0 {
			balance = 0
		}
		total(&b, "Balance", balance)
	}
	rule(&b, '=')
	return b.String()
}

// WriteFile stores a rendered receipt as dir/name.txt and returns its path.
func WriteFile(dir, name, content string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create receipt directory: %w", err)
	}
	path := filepath.Join(dir, sanitize(name)+".txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write receipt: %w", err)
	}
	return path, nil
}

func lines(b *strings.Builder, items []cart.LineItem) {
	for _, item := range items {
		line(b, item.Name, item.Quantity, item.Subtotal())
	}
}

func line(b *strings.Builder, name string, qty int, amount models.Amount) {
	fmt.Fprintf(b, "%-*s%*s%*s\n",
		nameWidth, truncate(name, nameWidth-1),
		qtyWidth, fmt.Sprintf("x%d", qty),
		amountWidth, models.FormatRWF(amount))
}

func total(b *strings.Builder, label string, amount models.Amount) {
	value := models.FormatRWF(amount)
	fmt.Fprintf(b, "%-*s%s\n", Width-len(value), label, value)
}

func field(b *strings.Builder, key, value string) {
	fmt.Fprintf(b, "%s: %s\n", key, value)
}

func center(b *strings.Builder, text string) {
	text = truncate(text, Width)
	pad := (Width - len([]rune(text))) / 2
	b.WriteString(strings.Repeat(" ", pad))
	b.WriteString(text)
	b.WriteByte('\n')
}

func rule(b *strings.Builder, r rune) {
	b.WriteString(strings.Repeat(string(r), Width))
	b.WriteByte('\n')
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}
