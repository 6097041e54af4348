package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"tableside/internal/cart"
	"tableside/internal/catalog"
	"tableside/internal/checkout"
	"tableside/internal/client"
	"tableside/internal/models"
	"tableside/internal/receipt"
	"tableside/internal/session"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

const (
	viewTables     = "tables"
	viewCategories = "categories"
	viewItems      = "items"
	viewCart       = "cart"
	viewCell       = "cell"
	viewPayment    = "payment"
	viewOrders     = "orders"
)

const (
	focusNone = iota
	focusAmount
	focusReason
)

// Model defines the application state
type Model struct {
	ctx         context.Context
	client      *client.Client
	catalog     *catalog.Catalog
	session     *session.Session
	methods     []models.PaymentMethod
	receiptsDir string
	maxAge      time.Duration
	timeout     time.Duration
	logger      *zap.Logger

	tableList    list.Model
	categoryList list.Model
	itemList     list.Model
	orderList    list.Model
	cartView     table.Model
	cellView     table.Model
	amountInput  textinput.Model
	reasonInput  textinput.Model
	spinner      spinner.Model

	currentView string
	tableID     uint
	category    string
	form        *checkout.PaymentForm
	focus       int
	loading     bool
	status      string
	error       string
}

// deps are the collaborators a Model drives
type deps struct {
	client      *client.Client
	catalog     *catalog.Catalog
	session     *session.Session
	methods     []models.PaymentMethod
	receiptsDir string
	maxAge      time.Duration
	timeout     time.Duration
	logger      *zap.Logger
}

func newList(title string) list.Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	return l
}

// Initialize the model
func initialModel(ctx context.Context, d deps) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	cartView := table.New(
		table.WithColumns([]table.Column{
			{Title: "Category", Width: 16},
			{Title: "Status", Width: 9},
			{Title: "Lines", Width: 6},
			{Title: "Units", Width: 6},
			{Title: "Total", Width: 14},
			{Title: "Order", Width: 14},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	cellView := table.New(
		table.WithColumns([]table.Column{
			{Title: "Item", Width: 24},
			{Title: "Qty", Width: 5},
			{Title: "Unit price", Width: 12},
			{Title: "Subtotal", Width: 14},
		}),
		table.WithFocused(true),
		table.WithHeight(8),
	)

	amount := textinput.New()
	amount.Placeholder = "Amount paid (RWF)"
	amount.CharLimit = 12
	amount.Width = 20

	reason := textinput.New()
	reason.Placeholder = "Reason for partial payment"
	reason.CharLimit = 156
	reason.Width = 40

	if d.logger == nil {
		d.logger = zap.NewNop()
	}

	return Model{
		ctx:          ctx,
		client:       d.client,
		catalog:      d.catalog,
		session:      d.session,
		methods:      d.methods,
		receiptsDir:  d.receiptsDir,
		maxAge:       d.maxAge,
		timeout:      d.timeout,
		logger:       d.logger,
		tableList:    newList("Tables"),
		categoryList: newList("Categories"),
		itemList:     newList("Menu"),
		orderList:    newList("Orders"),
		cartView:     cartView,
		cellView:     cellView,
		amountInput:  amount,
		reasonInput:  reason,
		spinner:      s,
		currentView:  viewTables,
		loading:      true,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadCatalog(m))
}

// Update handles UI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		h, v := docStyle.GetFrameSize()
		for _, l := range []*list.Model{&m.tableList, &m.categoryList, &m.itemList, &m.orderList} {
			l.SetSize(msg.Width-h, msg.Height-v-4)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		if m.loading {
			return m, nil
		}
		if !m.filtering() {
			if next, cmd, handled := m.handleKey(msg); handled {
				return next, cmd
			}
		}

	case catalogMsg:
		m.loading = false
		if msg.err != nil {
			m.error = fmt.Sprintf("Error loading catalog: %v", msg.err)
			return m, nil
		}
		if msg.refreshed {
			m.syncCatalog()
		}
		return m, nil

	case eventMsg:
		return m.handleEvent(msg)

	case submittedMsg:
		m.loading = false
		if !msg.result.OK() {
			m.error = fmt.Sprintf("Error submitting order: %s", msg.result.Message())
			return m, nil
		}
		m.clearMessages()
		order := msg.result.Data
		m.status = fmt.Sprintf("Order %s sent for %s", order.Code, models.FormatRWF(order.Total))
		m.syncCell()
		return m, nil

	case approvedMsg:
		m.loading = false
		if !msg.result.OK() {
			m.error = approvalMessage(msg.result.Err)
			return m, nil
		}
		m.clearMessages()
		res := msg.result.Data
		m.status = fmt.Sprintf("Order %d approved: %s paid by %s",
			res.Payment.OrderID, models.FormatRWF(res.Payment.AmountPaid), res.Payment.Method.Label())
		m.form = nil
		if m.currentView == viewPayment {
			m.currentView = viewCell
		}
		m.syncCell()
		if m.currentView == viewOrders {
			return m, fetchOrders(m)
		}
		return m, nil

	case ordersMsg:
		m.loading = false
		if !msg.result.OK() {
			m.error = fmt.Sprintf("Error fetching orders: %s", msg.result.Message())
			return m, nil
		}
		m.orderList.SetItems(convertOrdersToItems(msg.result.Data, m.session.Unconfirmed()))
		return m, nil

	case receiptMsg:
		if msg.err != nil {
			m.error = msg.err.Error()
			return m, nil
		}
		m.clearMessages()
		m.status = "Receipt written to " + msg.path
		return m, nil

	case errorMsg:
		m.loading = false
		m.error = msg.err
		return m, nil
	}

	return m.updateComponent(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	key := msg.String()
	switch m.currentView {
	case viewTables:
		switch key {
		case "q":
			return m, tea.Quit, true
		case "enter":
			selected, ok := m.tableList.SelectedItem().(tableItem)
			if !ok {
				return m, nil, true
			}
			m.clearMessages()
			m.tableID = selected.table.ID
			m.currentView = viewCategories
			m.syncCategories()
			return m, refreshIfStale(m), true
		case "c":
			if selected, ok := m.tableList.SelectedItem().(tableItem); ok {
				m.tableID = selected.table.ID
				m.openCart()
			}
			return m, nil, true
		case "o":
			m.clearMessages()
			m.currentView = viewOrders
			m.loading = true
			return m, fetchOrders(m), true
		case "r":
			m.loading = true
			return m, loadCatalog(m), true
		}

	case viewCategories:
		switch key {
		case "enter":
			selected, ok := m.categoryList.SelectedItem().(categoryItem)
			if !ok {
				return m, nil, true
			}
			m.clearMessages()
			m.category = selected.category.Name
			m.currentView = viewItems
			m.syncItems()
			return m, refreshIfStale(m), true
		case "c":
			m.openCart()
			return m, nil, true
		case "esc":
			m.currentView = viewTables
			m.syncTables()
			return m, refreshIfStale(m), true
		}

	case viewItems:
		switch key {
		case "enter":
			selected, ok := m.itemList.SelectedItem().(menuItem)
			if !ok {
				return m, nil, true
			}
			m.clearMessages()
			if err := m.session.AddItem(m.tableID, m.category, selected.item, 1); err != nil {
				m.error = err.Error()
				return m, nil, true
			}
			m.status = "Added " + selected.item.Name
			return m, nil, true
		case "t":
			selected, ok := m.itemList.SelectedItem().(menuItem)
			if !ok {
				return m, nil, true
			}
			m.clearMessages()
			m.loading = true
			return m, toggleAvailability(m, selected.item), true
		case "c":
			m.openCart()
			return m, nil, true
		case "esc":
			m.currentView = viewCategories
			m.syncCategories()
			return m, nil, true
		}

	case viewCart:
		switch key {
		case "enter":
			row := m.cartView.SelectedRow()
			if row == nil {
				return m, nil, true
			}
			m.clearMessages()
			m.category = row[0]
			m.currentView = viewCell
			m.syncCell()
			return m, nil, true
		case "p":
			tbl := m.table()
			var content string
			m.session.Read(func(orders *cart.TableOrders) {
				content = receipt.Table(tbl, orders, time.Now().Format(receiptDate))
			})
			return m, writeReceipt(m.receiptsDir, tbl.Label(), content), true
		case "x":
			n := m.session.ClearPaid(m.tableID)
			m.clearMessages()
			m.status = fmt.Sprintf("Cleared %d paid categories", n)
			m.syncCart()
			return m, nil, true
		case "esc":
			m.currentView = viewCategories
			m.syncCategories()
			return m, nil, true
		}

	case viewCell:
		return m.handleCellKey(key)

	case viewPayment:
		return m.handlePaymentKey(msg)

	case viewOrders:
		switch key {
		case "r":
			m.loading = true
			return m, fetchOrders(m), true
		case "u":
			selected, ok := m.orderList.SelectedItem().(orderItem)
			if !ok || !selected.unconfirmed {
				m.error = "Select an order marked UNCONFIRMED to resume it"
				return m, nil, true
			}
			m.loading = true
			return m, resumeApproval(m, selected.order.ID), true
		case "esc":
			m.currentView = viewTables
			m.syncTables()
			return m, nil, true
		}
	}
	return m, nil, false
}

func (m Model) handleCellKey(key string) (Model, tea.Cmd, bool) {
	switch key {
	case "+", "=", "-":
		line, ok := m.selectedLine()
		if !ok {
			return m, nil, true
		}
		qty := line.Quantity + 1
		if key == "-" {
			qty = line.Quantity - 1
		}
		m.clearMessages()
		if err := m.session.SetQuantity(m.tableID, m.category, line.ItemID, qty); err != nil {
			m.error = err.Error()
		}
		m.syncCell()
		return m, nil, true
	case "a":
		m.currentView = viewItems
		m.syncItems()
		return m, nil, true
	case "s":
		m.clearMessages()
		m.loading = true
		return m, submitCell(m, m.tableID, m.category), true
	case "p":
		form, err := m.session.PaymentForm(m.tableID, m.category)
		if err != nil {
			m.error = err.Error()
			return m, nil, true
		}
		m.clearMessages()
		m.openPayment(form)
		return m, nil, true
	case "r":
		cell, ok := m.cell()
		if !ok {
			return m, nil, true
		}
		tbl := m.table()
		content := receipt.Cell(tbl, m.category, cell, time.Now().Format(receiptDate))
		return m, writeReceipt(m.receiptsDir, tbl.Label()+"_"+m.category, content), true
	case "i":
		order, ok := m.session.Order(m.tableID, m.category)
		if !ok {
			m.error = session.ErrNotSubmitted.Error()
			return m, nil, true
		}
		return m, writeInvoice(m, *order), true
	case "esc":
		m.openCart()
		return m, nil, true
	}
	return m, nil, false
}

func (m Model) handlePaymentKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	key := msg.String()
	switch key {
	case "esc":
		m.form = nil
		m.currentView = viewCell
		m.syncCell()
		return m, nil, true
	case "tab":
		m.cycleFocus()
		return m, nil, true
	case "enter":
		if err := m.form.Validate(); err != nil {
			m.error = err.Error()
			return m, nil, true
		}
		m.clearMessages()
		m.loading = true
		return m, approvePayment(m, m.form), true
	}
	if m.focus != focusNone {
		return m, nil, false
	}

	var err error
	switch key {
	case "f":
		err = m.form.SelectMode(models.PaymentModeFull)
	case "p":
		err = m.form.SelectMode(models.PaymentModePartial)
	case "n":
		err = m.form.SelectMode(models.PaymentModeNone)
	default:
		i, convErr := strconv.Atoi(key)
		if convErr != nil || i < 1 || i > len(m.methods) {
			return m, nil, true
		}
		err = m.form.SelectMethod(m.methods[i-1])
	}
	if err != nil {
		m.error = err.Error()
		return m, nil, true
	}
	m.error = ""
	m.amountInput.SetValue("")
	m.reasonInput.SetValue("")
	if m.form.Mode() == models.PaymentModePartial {
		m.amountInput.SetValue(strconv.FormatInt(int64(m.form.AmountPaid()), 10))
		m.reasonInput.SetValue(m.form.PartialReason())
	}
	return m, nil, true
}

func (m Model) handleEvent(msg eventMsg) (tea.Model, tea.Cmd) {
	m.logger.Debug("backend event", zap.String("type", string(msg.event.Type)), zap.Uint("order_id", msg.event.OrderID))
	if msg.err != nil {
		m.error = fmt.Sprintf("Error refreshing catalog: %v", msg.err)
		return m, nil
	}
	switch msg.event.Type {
	case models.EventCatalogChanged:
		m.syncCatalog()
	case models.EventOrderCreated, models.EventOrderConfirmed, models.EventPaymentRecorded:
		if m.currentView == viewOrders && !m.loading {
			return m, fetchOrders(m)
		}
	}
	return m, nil
}

func (m Model) updateComponent(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case viewTables:
		m.tableList, cmd = m.tableList.Update(msg)
	case viewCategories:
		m.categoryList, cmd = m.categoryList.Update(msg)
	case viewItems:
		m.itemList, cmd = m.itemList.Update(msg)
	case viewOrders:
		m.orderList, cmd = m.orderList.Update(msg)
	case viewCart:
		m.cartView, cmd = m.cartView.Update(msg)
	case viewCell:
		m.cellView, cmd = m.cellView.Update(msg)
	case viewPayment:
		switch m.focus {
		case focusAmount:
			m.amountInput, cmd = m.amountInput.Update(msg)
			m.applyAmount()
		case focusReason:
			m.reasonInput, cmd = m.reasonInput.Update(msg)
			if err := m.form.SetPartialReason(m.reasonInput.Value()); err != nil {
				m.error = err.Error()
			}
		}
	}
	return m, cmd
}

func (m *Model) applyAmount() {
	value := m.amountInput.Value()
	if value == "" {
		m.error = ""
		_ = m.form.SetAmount(0)
		return
	}
	amount, err := models.ParseAmount(value)
	if err != nil {
		m.error = "Amount must be a whole number of RWF"
		_ = m.form.SetAmount(0)
		return
	}
	if err := m.form.SetAmount(amount); err != nil {
		m.error = err.Error()
		return
	}
	m.error = ""
}

func (m *Model) cycleFocus() {
	if m.form.Mode() != models.PaymentModePartial {
		m.focus = focusNone
	} else {
		m.focus = (m.focus + 1) % 3
	}
	m.amountInput.Blur()
	m.reasonInput.Blur()
	switch m.focus {
	case focusAmount:
		m.amountInput.Focus()
	case focusReason:
		m.reasonInput.Focus()
	}
}

func (m *Model) openPayment(form *checkout.PaymentForm) {
	m.form = form
	m.focus = focusNone
	m.amountInput.SetValue("")
	m.reasonInput.SetValue("")
	m.amountInput.Blur()
	m.reasonInput.Blur()
	m.currentView = viewPayment
}

func (m *Model) openCart() {
	m.clearMessages()
	m.currentView = viewCart
	m.syncCart()
}

func (m *Model) clearMessages() {
	m.status = ""
	m.error = ""
}

func (m Model) filtering() bool {
	switch m.currentView {
	case viewTables:
		return m.tableList.FilterState() == list.Filtering
	case viewCategories:
		return m.categoryList.FilterState() == list.Filtering
	case viewItems:
		return m.itemList.FilterState() == list.Filtering
	case viewOrders:
		return m.orderList.FilterState() == list.Filtering
	}
	return false
}

func (m Model) table() models.Table {
	if t, ok := m.catalog.Table(m.tableID); ok {
		return t
	}
	return models.Table{ID: m.tableID}
}

func (m Model) cell() (cart.CategoryCell, bool) {
	var (
		cell cart.CategoryCell
		ok   bool
	)
	m.session.Read(func(orders *cart.TableOrders) {
		cell, ok = orders.Cell(m.tableID, m.category)
	})
	return cell, ok
}

func (m Model) selectedLine() (cart.LineItem, bool) {
	cell, ok := m.cell()
	if !ok {
		return cart.LineItem{}, false
	}
	i := m.cellView.Cursor()
	if i < 0 || i >= len(cell.Items) {
		return cart.LineItem{}, false
	}
	return cell.Items[i], true
}

func (m *Model) syncCatalog() {
	m.syncTables()
	m.syncCategories()
	if m.category != "" {
		m.syncItems()
	}
}

func (m *Model) syncTables() {
	tables := m.catalog.Tables()
	var (
		snapshot map[uint]map[string]cart.CategoryCell
		open     int
	)
	m.session.Read(func(orders *cart.TableOrders) {
		snapshot = orders.Snapshot()
		if !orders.Empty() {
			open = orders.Len()
		}
	})

	items := make([]list.Item, len(tables))
	for i, t := range tables {
		cells := snapshot[t.ID]
		var unpaid models.Amount
		for _, cell := range cells {
			if cell.Status == cart.StatusPending {
				unpaid += cart.Total(cell)
			}
		}
		items[i] = tableItem{table: t, categories: len(cells), unpaid: unpaid}
	}
	m.tableList.Title = "Tables"
	if open > 0 {
		m.tableList.Title = fmt.Sprintf("Tables (%d open)", open)
	}
	m.tableList.SetItems(items)
}

func (m *Model) syncCategories() {
	categories := m.catalog.Categories()
	items := make([]list.Item, len(categories))
	for i, c := range categories {
		items[i] = categoryItem{category: c, count: len(m.catalog.Items(c.Name))}
	}
	m.categoryList.Title = "Categories - " + m.table().Label()
	m.categoryList.SetItems(items)
}

func (m *Model) syncItems() {
	menu := m.catalog.Items(m.category)
	items := make([]list.Item, len(menu))
	for i, it := range menu {
		items[i] = menuItem{item: it}
	}
	m.itemList.Title = m.category
	m.itemList.SetItems(items)
}

func (m *Model) syncCart() {
	var entries []cart.LedgerEntry
	m.session.Read(func(orders *cart.TableOrders) {
		entries = orders.Ledger(m.tableID)
	})
	rows := make([]table.Row, len(entries))
	for i, e := range entries {
		code := "-"
		if order, ok := m.session.Order(m.tableID, e.Category); ok {
			code = order.Code
		}
		rows[i] = table.Row{
			e.Category,
			string(e.Status),
			strconv.Itoa(e.Lines),
			strconv.Itoa(e.Units),
			models.FormatRWF(e.Total),
			code,
		}
	}
	m.cartView.SetRows(rows)
	if m.cartView.Cursor() >= len(rows) {
		m.cartView.SetCursor(0)
	}
}

func (m *Model) syncCell() {
	cell, ok := m.cell()
	if !ok {
		m.cellView.SetRows(nil)
		return
	}
	rows := make([]table.Row, len(cell.Items))
	for i, line := range cell.Items {
		rows[i] = table.Row{
			line.Name,
			strconv.Itoa(line.Quantity),
			models.FormatRWF(line.UnitPrice),
			models.FormatRWF(line.Subtotal()),
		}
	}
	m.cellView.SetRows(rows)
	if m.cellView.Cursor() >= len(rows) {
		m.cellView.SetCursor(0)
	}
}

// approvalMessage turns an approval failure into the line shown to the cashier
func approvalMessage(err error) string {
	var aerr *checkout.ApprovalError
	if errors.As(err, &aerr) && aerr.PaymentRecorded {
		return fmt.Sprintf("Payment recorded but order %d is not confirmed yet. Resume it from the orders view (o, then u).", aerr.OrderID)
	}
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
