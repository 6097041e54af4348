package models

import (
	"fmt"
	"strings"
)

// Category is a menu category such as "Drinks" or "Main course". Cart cells
// are keyed by the category name.
type Category struct {
	ID          uint   `gorm:"primary_key" json:"id"`
	Name        string `gorm:"unique_index;not null" json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// TableStatus represents the occupancy of a dining table
type TableStatus string

const (
	TableStatusAvailable TableStatus = "available"
	TableStatusOccupied  TableStatus = "occupied"
	TableStatusReserved  TableStatus = "reserved"
)

// Table is a dining table orders are placed against
type Table struct {
	ID     uint        `gorm:"primary_key" json:"id"`
	Name   string      `gorm:"unique_index;not null" json:"name" yaml:"name"`
	Seats  int         `json:"seats" yaml:"seats"`
	Status TableStatus `json:"status" yaml:"status"`
}

// TableName avoids clashing with the SQL keyword
func (Table) TableName() string {
	return "dining_tables"
}

// Label returns the name shown on screens and receipts.
func (t Table) Label() string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("Table %d", t.ID)
}

// MenuItem is a sellable catalog item. The client treats it as immutable
// for the duration of a session.
type MenuItem struct {
	ID           uint   `gorm:"primary_key" json:"id"`
	Name         string `gorm:"not null" json:"name" yaml:"name"`
	UnitPrice    Amount `gorm:"column:unit_price;not null" json:"price" yaml:"price"`
	CategoryName string `gorm:"column:category_name;index" json:"category_name" yaml:"category"`
	Available    bool   `json:"available" yaml:"available"`
}

// ValidateMenuItem validates a menu item before it is stored
func ValidateMenuItem(item *MenuItem) error {
	if strings.TrimSpace(item.Name) == "" {
		return fmt.Errorf("menu item name is required")
	}
	if item.UnitPrice <= 0 {
		return fmt.Errorf("menu item price must be greater than 0")
	}
	if strings.TrimSpace(item.CategoryName) == "" {
		return fmt.Errorf("menu item category is required")
	}
	return nil
}

// IsInCategory checks if the item belongs to a category, ignoring case.
func (mi *MenuItem) IsInCategory(category string) bool {
	return strings.EqualFold(mi.CategoryName, category)
}

// AvailabilityUpdate is the body of PUT /menu/items/availability
type AvailabilityUpdate struct {
	ItemID    uint `json:"item_id"`
	Available bool `json:"available"`
}
