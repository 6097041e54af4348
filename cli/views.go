package main

import (
	"fmt"
	"strings"

	"tableside/internal/cart"
	"tableside/internal/models"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
)

// Styling
var (
	docStyle = lipgloss.NewStyle().Margin(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#0a84ff")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#30d158")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#ff453a")).
			Padding(0, 1)

	helpStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// tableItem is a dining table in the table list
type tableItem struct {
	table      models.Table
	categories int
	unpaid     models.Amount
}

func (i tableItem) Title() string       { return i.table.Label() }
func (i tableItem) FilterValue() string { return i.table.Label() }
func (i tableItem) Description() string {
	desc := fmt.Sprintf("%d seats - %s", i.table.Seats, i.table.Status)
	if i.categories > 0 {
		desc += fmt.Sprintf(" - %d categories, %s unpaid", i.categories, models.FormatRWF(i.unpaid))
	}
	return desc
}

// categoryItem is a menu category
type categoryItem struct {
	category models.Category
	count    int
}

func (i categoryItem) Title() string       { return i.category.Name }
func (i categoryItem) FilterValue() string { return i.category.Name }
func (i categoryItem) Description() string {
	if i.category.Description != "" {
		return fmt.Sprintf("%s - %d items", i.category.Description, i.count)
	}
	return fmt.Sprintf("%d items", i.count)
}

// menuItem is a catalog item; filtering the list searches by name
type menuItem struct {
	item models.MenuItem
}

func (i menuItem) Title() string       { return i.item.Name }
func (i menuItem) FilterValue() string { return i.item.Name }
func (i menuItem) Description() string {
	if !i.item.Available {
		return models.FormatRWF(i.item.UnitPrice) + " - unavailable"
	}
	return models.FormatRWF(i.item.UnitPrice)
}

// orderItem represents an order in the list
type orderItem struct {
	order       models.Order
	unconfirmed bool
}

func (i orderItem) Title() string {
	return fmt.Sprintf("%s (table %d, %s)", i.order.Code, i.order.TableID, i.order.Category)
}
func (i orderItem) FilterValue() string { return i.order.Code }
func (i orderItem) Description() string {
	status := strings.ToUpper(string(i.order.Status))
	if i.unconfirmed {
		status = "UNCONFIRMED"
	}
	return fmt.Sprintf("%d items - %s - %s", len(i.order.Items), models.FormatRWF(i.order.Total), status)
}

// convertOrdersToItems converts API orders to list items
func convertOrdersToItems(orders []models.Order, unconfirmed []uint) []list.Item {
	pending := make(map[uint]bool, len(unconfirmed))
	for _, id := range unconfirmed {
		pending[id] = true
	}
	items := make([]list.Item, len(orders))
	for i, order := range orders {
		items[i] = orderItem{
			order:       order,
			unconfirmed: pending[order.ID] && order.Status == models.OrderStatusPending,
		}
	}
	return items
}

// View renders the UI
func (m Model) View() string {
	var body, help string
	switch m.currentView {
	case viewTables:
		body = m.tableList.View()
		help = "enter: order - c: cart - o: orders - r: reload menu - /: search - q: quit"
	case viewCategories:
		body = m.categoryList.View()
		help = "enter: open category - c: cart - esc: back"
	case viewItems:
		body = m.itemList.View()
		help = "enter: add one - t: toggle availability - /: search - c: cart - esc: back"
	case viewCart:
		body = m.cartViewString()
		help = "enter: open category - p: print table receipt - x: clear paid - esc: back"
	case viewCell:
		body = m.cellViewString()
		help = "+/-: quantity - a: add items - s: send order - p: pay - r: receipt - i: invoice - esc: back"
	case viewPayment:
		body = m.paymentViewString()
		help = "f: full - p: partial - n: no mode - 1-9: method - tab: next field - enter: approve - esc: cancel"
	case viewOrders:
		body = m.orderList.View()
		help = "u: resume unconfirmed - r: refresh - /: search - esc: back"
	default:
		body = "Loading..."
	}

	view := body + "\n\n"
	if m.loading {
		view += m.spinner.View() + " Working...\n"
	}
	if m.status != "" {
		view += successStyle.Render(m.status) + "\n"
	}
	if m.error != "" {
		view += errorStyle.Render(m.error) + "\n"
	}
	view += helpStyle.Render(help)
	return docStyle.Render(view)
}

func (m Model) cartViewString() string {
	t := m.table()
	var tableTotal, unpaid models.Amount
	m.session.Read(func(orders *cart.TableOrders) {
		tableTotal = orders.TableTotal(t.ID)
		unpaid = orders.PendingTotal(t.ID)
	})

	view := titleStyle.Render("Cart - "+t.Label()) + "\n\n"
	if len(m.cartView.Rows()) == 0 {
		return view + "No items ordered yet\n"
	}
	view += m.cartView.View() + "\n\n"
	view += fmt.Sprintf("Total: %s\n", models.FormatRWF(tableTotal))
	view += fmt.Sprintf("Unpaid: %s\n", models.FormatRWF(unpaid))
	return view
}

func (m Model) cellViewString() string {
	view := titleStyle.Render(fmt.Sprintf("%s - %s", m.table().Label(), m.category)) + "\n\n"
	cell, ok := m.cell()
	if !ok {
		return view + "No items ordered in this category\n"
	}

	view += fmt.Sprintf("Status: %s\n", cell.Status)
	if order, ok := m.session.Order(m.tableID, m.category); ok {
		view += infoStyle.Render(fmt.Sprintf("Order %s - %s - %s", order.Code, order.Status, models.FormatRWF(order.Total))) + "\n"
	}
	view += "\n" + m.cellView.View() + "\n\n"
	view += fmt.Sprintf("Total: %s\n", models.FormatRWF(cart.Total(cell)))
	return view
}

func (m Model) paymentViewString() string {
	f := m.form
	if f == nil {
		return "No payment in progress"
	}

	view := titleStyle.Render(fmt.Sprintf("Payment - order %d", f.OrderID())) + "\n\n"
	view += fmt.Sprintf("Order total: %s\n\n", models.FormatRWF(f.Total()))

	mode := "none"
	if f.Mode() != models.PaymentModeNone {
		mode = string(f.Mode())
	}
	view += fmt.Sprintf("Mode: %s\n", mode)

	view += "Method:"
	for i, method := range m.methods {
		marker := " "
		if f.Method() == method {
			marker = "*"
		}
		view += fmt.Sprintf("  [%d]%s%s", i+1, marker, method.Label())
	}
	view += "\n\n"

	switch f.Mode() {
	case models.PaymentModeFull:
		view += fmt.Sprintf("Amount paid: %s\n", models.FormatRWF(f.AmountPaid()))
	case models.PaymentModePartial:
		view += "Amount paid: " + m.amountInput.View() + "\n"
		view += "Reason:      " + m.reasonInput.View() + "\n"
		view += fmt.Sprintf("Remaining balance: %s\n", models.FormatRWF(f.RemainingBalance()))
	}

	view += "\n"
	if f.CanApprove() {
		view += successStyle.Render("Ready to approve") + "\n"
	} else {
		view += infoStyle.Render(string(f.State())) + "\n"
	}
	return view
}
