package main

import (
	"context"
	"fmt"
	"time"

	"tableside/internal/checkout"
	"tableside/internal/client"
	"tableside/internal/models"
	"tableside/internal/receipt"

	tea "github.com/charmbracelet/bubbletea"
)

// Custom message types for the tea.Model
type catalogMsg struct {
	refreshed bool
	err       error
}

type eventMsg struct {
	event models.Event
	err   error
}

type submittedMsg struct {
	result client.Result[*models.Order]
}

type approvedMsg struct {
	result client.Result[*checkout.Result]
}

type ordersMsg struct {
	result client.Result[[]models.Order]
}

type receiptMsg struct {
	path string
	err  error
}

type errorMsg struct {
	err string
}

const receiptDate = "2006-01-02 15:04"

// loadCatalog fetches categories, tables and items from the API
func loadCatalog(m Model) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		err := m.catalog.Refresh(ctx)
		return catalogMsg{refreshed: err == nil, err: err}
	}
}

// refreshIfStale reloads the catalog when a view opens on old data
func refreshIfStale(m Model) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		refreshed, err := m.catalog.RefreshIfStale(ctx, m.maxAge)
		return catalogMsg{refreshed: refreshed, err: err}
	}
}

// submitCell sends the selected category to the backend as an order
func submitCell(m Model, tableID uint, category string) tea.Cmd {
	return func() tea.Msg {
		return submittedMsg{result: client.Do(m.ctx, func(ctx context.Context) (*models.Order, error) {
			return m.session.Submit(ctx, tableID, category)
		})}
	}
}

// approvePayment runs the approval for a validated form
func approvePayment(m Model, form *checkout.PaymentForm) tea.Cmd {
	return func() tea.Msg {
		return approvedMsg{result: client.Do(m.ctx, func(ctx context.Context) (*checkout.Result, error) {
			return m.session.Approve(ctx, form)
		})}
	}
}

// resumeApproval confirms an order whose payment is already recorded
func resumeApproval(m Model, orderID uint) tea.Cmd {
	return func() tea.Msg {
		return approvedMsg{result: client.Do(m.ctx, func(ctx context.Context) (*checkout.Result, error) {
			return m.session.Resume(ctx, orderID)
		})}
	}
}

// toggleAvailability flips an item's availability and reloads the catalog
func toggleAvailability(m Model, item models.MenuItem) tea.Cmd {
	return func() tea.Msg {
		res := client.Do(m.ctx, func(ctx context.Context) (*models.MenuItem, error) {
			return m.client.SetItemAvailability(ctx, item.ID, !item.Available)
		})
		if !res.OK() {
			return errorMsg{err: fmt.Sprintf("Error updating %s: %s", item.Name, res.Message())}
		}
		ctx, cancel := context.WithTimeout(m.ctx, m.timeout)
		defer cancel()
		err := m.catalog.Refresh(ctx)
		return catalogMsg{refreshed: err == nil, err: err}
	}
}

// fetchOrders retrieves orders from the API
func fetchOrders(m Model) tea.Cmd {
	return func() tea.Msg {
		return ordersMsg{result: client.Do(m.ctx, func(ctx context.Context) ([]models.Order, error) {
			return m.client.ListOrders(ctx, "")
		})}
	}
}

// writeReceipt stores a rendered receipt under the receipts directory
func writeReceipt(dir, name, content string) tea.Cmd {
	return func() tea.Msg {
		path, err := receipt.WriteFile(dir, name, content)
		return receiptMsg{path: path, err: err}
	}
}

// writeInvoice fetches the payments of an order and stores its invoice
func writeInvoice(m Model, order models.Order) tea.Cmd {
	return func() tea.Msg {
		res := client.Do(m.ctx, func(ctx context.Context) ([]models.Payment, error) {
			return m.client.ListPayments(ctx, order.ID)
		})
		if !res.OK() {
			return errorMsg{err: fmt.Sprintf("Error fetching payments: %s", res.Message())}
		}
		content := receipt.Invoice(order, res.Data, time.Now().Format(receiptDate))
		path, err := receipt.WriteFile(m.receiptsDir, "invoice_"+order.Code, content)
		return receiptMsg{path: path, err: err}
	}
}

// watchEvents subscribes to backend events and forwards them to the program.
// The catalog refreshes itself on catalog changes before the event is sent.
func watchEvents(ctx context.Context, m Model, send func(tea.Msg)) error {
	events, err := m.client.Subscribe(ctx)
	if err != nil {
		return err
	}
	go m.catalog.Watch(ctx, events, func(evt models.Event, err error) {
		send(eventMsg{event: evt, err: err})
	})
	return nil
}
