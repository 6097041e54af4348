package cart

import "tableside/internal/models"

// Total returns the sum of unit price times quantity over the cell's items.
// It is recomputed on every call.
func Total(cell CategoryCell) models.Amount {
	var total models.Amount
	for _, line := range cell.Items {
		total += line.Subtotal()
	}
	return total
}

// LedgerEntry summarises one category of a table
type LedgerEntry struct {
	Category string
	Status   CellStatus
	Lines    int
	Units    int
	Total    models.Amount
}

// Ledger returns one entry per category of the table, in cell order.
func (t *TableOrders) Ledger(tableID uint) []LedgerEntry {
	tc, ok := t.tables[tableID]
	if !ok {
		return nil
	}
	entries := make([]LedgerEntry, 0, len(tc.order))
	for _, name := range tc.order {
		cell := tc.cells[name]
		entry := LedgerEntry{
			Category: name,
			Status:   cell.Status,
			Lines:    len(cell.Items),
			Total:    Total(*cell),
		}
		for _, line := range cell.Items {
			entry.Units += line.Quantity
		}
		entries = append(entries, entry)
	}
	return entries
}

// TableTotal sums every cell of the table regardless of status.
func (t *TableOrders) TableTotal(tableID uint) models.Amount {
	var total models.Amount
	for _, e := range t.Ledger(tableID) {
		total += e.Total
	}
	return total
}

// PendingTotal sums the cells of the table that are not yet paid.
func (t *TableOrders) PendingTotal(tableID uint) models.Amount {
	var total models.Amount
	for _, e := range t.Ledger(tableID) {
		if e.Status == StatusPending {
			total += e.Total
		}
	}
	return total
}
