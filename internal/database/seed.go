package database

import (
	"fmt"
	"os"

	"tableside/internal/models"

	"github.com/jinzhu/gorm"
	"gopkg.in/yaml.v3"
)

// SeedData is the layout of the seed file
type SeedData struct {
	Categories []models.Category `yaml:"categories"`
	Tables     []SeedTable       `yaml:"tables"`
	MenuItems  []SeedMenuItem    `yaml:"menu_items"`
}

// SeedTable is a dining table entry in the seed file
type SeedTable struct {
	Name   string             `yaml:"name"`
	Seats  int                `yaml:"seats"`
	Status models.TableStatus `yaml:"status"`
}

// SeedMenuItem is a menu item entry in the seed file. Items are available
// unless the file says otherwise.
type SeedMenuItem struct {
	Name      string        `yaml:"name"`
	Category  string        `yaml:"category"`
	Price     models.Amount `yaml:"price"`
	Available *bool         `yaml:"available"`
}

// LoadSeedFile parses a YAML seed file
func LoadSeedFile(path string) (*SeedData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var data SeedData
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return &data, nil
}

// Seed inserts the seed data into an empty catalog. It does nothing when
// menu items already exist.
func Seed(db *gorm.DB, data *SeedData) error {
	var count int
	if err := db.Model(&models.MenuItem{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count menu items: %w", err)
	}
	if count > 0 {
		return nil
	}

	return transaction(db, func(tx *gorm.DB) error {
		for i := range data.Categories {
			category := data.Categories[i]
			if err := tx.Create(&category).Error; err != nil {
				return fmt.Errorf("failed to seed category %q: %w", category.Name, err)
			}
		}

		for _, t := range data.Tables {
			table := models.Table{Name: t.Name, Seats: t.Seats, Status: t.Status}
			if table.Status == "" {
				table.Status = models.TableStatusAvailable
			}
			if err := tx.Create(&table).Error; err != nil {
				return fmt.Errorf("failed to seed table %q: %w", t.Name, err)
			}
		}

		for _, m := range data.MenuItems {
			item := models.MenuItem{
				Name:         m.Name,
				UnitPrice:    m.Price,
				CategoryName: m.Category,
				Available:    m.Available == nil || *m.Available,
			}
			if err := models.ValidateMenuItem(&item); err != nil {
				return fmt.Errorf("invalid seed item %q: %w", m.Name, err)
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to seed menu item %q: %w", m.Name, err)
			}
		}
		return nil
	})
}

// transaction runs fn inside a database transaction, rolling back on error
// or panic.
func transaction(db *gorm.DB, fn func(tx *gorm.DB) error) (err error) {
	tx := db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
