// Package cart holds the in-session order cart: items ordered per table and
// per menu category, with their payment status and totals.
package cart

import (
	"fmt"
	"strings"

	"tableside/internal/models"
)

// CellStatus is the payment status of a category cell
type CellStatus string

const (
	StatusPending CellStatus = "PENDING"
	StatusPaid    CellStatus = "PAID"
)

// LineItem is one catalog item with its ordered quantity
type LineItem struct {
	ItemID    uint
	Name      string
	UnitPrice models.Amount
	Quantity  int
}

// Subtotal returns unit price times quantity.
func (l LineItem) Subtotal() models.Amount {
	return l.UnitPrice.Times(l.Quantity)
}

// CategoryCell is the ordered line items of one category at one table.
type CategoryCell struct {
	Status CellStatus
	Items  []LineItem
}

// clone copies the cell so callers cannot mutate the aggregate through it.
func (c *CategoryCell) clone() CategoryCell {
	items := make([]LineItem, len(c.Items))
	copy(items, c.Items)
	return CategoryCell{Status: c.Status, Items: items}
}

func (c *CategoryCell) indexOf(itemID uint) int {
	for i, line := range c.Items {
		if line.ItemID == itemID {
			return i
		}
	}
	return -1
}

type tableCells struct {
	cells map[string]*CategoryCell
	order []string
}

// TableOrders is the cart of an ordering session, keyed by table then by
// category name. Empty cells and empty tables are never retained.
//
// A TableOrders belongs to a single session and is not safe for concurrent use.
type TableOrders struct {
	tables map[uint]*tableCells
	order  []uint
}

// New creates an empty cart
func New() *TableOrders {
	return &TableOrders{tables: make(map[uint]*tableCells)}
}

// AddItem adds qty units of item to the (table, category) cell. An item
// already present in the cell has its quantity increased; otherwise a new
// line is appended. The first add to a category creates a PENDING cell.
func (t *TableOrders) AddItem(tableID uint, category string, item models.MenuItem, qty int) error {
	if err := validateAdd(tableID, category, qty); err != nil {
		return err
	}
	if !item.Available {
		return fmt.Errorf("%s: %w", item.Name, ErrItemUnavailable)
	}

	cell, exists := t.lookup(tableID, category)
	if exists && cell.Status == StatusPaid {
		return fmt.Errorf("%s: %w", category, ErrCellPaid)
	}
	if !exists {
		cell = t.createCell(tableID, category)
	}

	if i := cell.indexOf(item.ID); i >= 0 {
		cell.Items[i].Quantity += qty
		return nil
	}
	cell.Items = append(cell.Items, LineItem{
		ItemID:    item.ID,
		Name:      item.Name,
		UnitPrice: item.UnitPrice,
		Quantity:  qty,
	})
	return nil
}

// SetQuantity replaces the quantity of a line in place. A quantity of zero
// or less removes the line, and removing the last line removes the cell.
func (t *TableOrders) SetQuantity(tableID uint, category string, itemID uint, newQty int) error {
	cell, exists := t.lookup(tableID, category)
	if !exists {
		return fmt.Errorf("%s: %w", category, ErrCellNotFound)
	}
	if cell.Status == StatusPaid {
		return fmt.Errorf("%s: %w", category, ErrCellPaid)
	}
	i := cell.indexOf(itemID)
	if i < 0 {
		return fmt.Errorf("item %d: %w", itemID, ErrItemNotFound)
	}

	if newQty > 0 {
		cell.Items[i].Quantity = newQty
		return nil
	}

	cell.Items = append(cell.Items[:i], cell.Items[i+1:]...)
	if len(cell.Items) == 0 {
		t.removeCategory(tableID, category)
	}
	return nil
}

// MarkPaid moves a cell from PENDING to PAID. There is no way back.
func (t *TableOrders) MarkPaid(tableID uint, category string) error {
	cell, exists := t.lookup(tableID, category)
	if !exists {
		return fmt.Errorf("%s: %w", category, ErrCellNotFound)
	}
	if cell.Status == StatusPaid {
		return fmt.Errorf("%s: %w", category, ErrCellPaid)
	}
	cell.Status = StatusPaid
	return nil
}

// ClearPaid drops the settled cells of a table and returns how many were
// removed.
func (t *TableOrders) ClearPaid(tableID uint) int {
	tc, ok := t.tables[tableID]
	if !ok {
		return 0
	}
	var paid []string
	for _, name := range tc.order {
		if tc.cells[name].Status == StatusPaid {
			paid = append(paid, name)
		}
	}
	for _, name := range paid {
		t.removeCategory(tableID, name)
	}
	return len(paid)
}

// Cell returns a copy of the (table, category) cell.
func (t *TableOrders) Cell(tableID uint, category string) (CategoryCell, bool) {
	cell, ok := t.lookup(tableID, category)
	if !ok {
		return CategoryCell{}, false
	}
	return cell.clone(), true
}

// Categories returns the category names of a table in the order they were
// first ordered.
func (t *TableOrders) Categories(tableID uint) []string {
	tc, ok := t.tables[tableID]
	if !ok {
		return nil
	}
	out := make([]string, len(tc.order))
	copy(out, tc.order)
	return out
}

// Tables returns the IDs of tables that have at least one cell.
func (t *TableOrders) Tables() []uint {
	out := make([]uint, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of cells across all tables.
func (t *TableOrders) Len() int {
	n := 0
	for _, tc := range t.tables {
		n += len(tc.cells)
	}
	return n
}

// Snapshot returns a deep copy of the whole cart.
func (t *TableOrders) Snapshot() map[uint]map[string]CategoryCell {
	out := make(map[uint]map[string]CategoryCell, len(t.tables))
	for id, tc := range t.tables {
		cells := make(map[string]CategoryCell, len(tc.cells))
		for name, cell := range tc.cells {
			cells[name] = cell.clone()
		}
		out[id] = cells
	}
	return out
}

// Empty reports whether nothing is ordered at all.
func (t *TableOrders) Empty() bool {
	return len(t.tables) == 0
}

func (t *TableOrders) lookup(tableID uint, category string) (*CategoryCell, bool) {
	tc, ok := t.tables[tableID]
	if !ok {
		return nil, false
	}
	cell, ok := tc.cells[category]
	return cell, ok
}

func (t *TableOrders) createCell(tableID uint, category string) *CategoryCell {
	tc, ok := t.tables[tableID]
	if !ok {
		tc = &tableCells{cells: make(map[string]*CategoryCell)}
		t.tables[tableID] = tc
		t.order = append(t.order, tableID)
	}
	cell := &CategoryCell{Status: StatusPending}
	tc.cells[category] = cell
	tc.order = append(tc.order, category)
	return cell
}

// removeCategory deletes a cell, and the table entry once it has no cells.
func (t *TableOrders) removeCategory(tableID uint, category string) {
	tc, ok := t.tables[tableID]
	if !ok {
		return
	}
	delete(tc.cells, category)
	tc.order = without(tc.order, category)
	if len(tc.cells) == 0 {
		delete(t.tables, tableID)
		t.order = without(t.order, tableID)
	}
}

func without[T comparable](s []T, v T) []T {
	out := s[:0]
	for _, x := range s {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

func validateAdd(tableID uint, category string, qty int) error {
	if tableID == 0 {
		return &ValidationError{Field: "table", Message: "a table must be selected"}
	}
	if strings.TrimSpace(category) == "" {
		return &ValidationError{Field: "category", Message: "a category must be selected"}
	}
	if qty < 1 {
		return &ValidationError{Field: "quantity", Message: "quantity must be at least 1"}
	}
	return nil
}
