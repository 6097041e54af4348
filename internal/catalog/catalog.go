// Package catalog caches the read-only menu data the ordering screens pick
// from: categories, tables and menu items.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"tableside/internal/models"

	"go.uber.org/zap"
)

// Source fetches catalog data from the backend
type Source interface {
	ListCategories(ctx context.Context) ([]models.Category, error)
	ListTables(ctx context.Context) ([]models.Table, error)
	ListMenuItems(ctx context.Context) ([]models.MenuItem, error)
}

// Catalog is a fetch-and-cache view of the backend catalog. Reads never
// block on the network; the last successful refresh wins.
type Catalog struct {
	source Source
	logger *zap.Logger
	now    func() time.Time

	mu         sync.RWMutex
	categories []models.Category
	tables     []models.Table
	items      []models.MenuItem
	loadedAt   time.Time
}

// New creates an empty catalog backed by source
func New(source Source, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{source: source, logger: logger, now: time.Now}
}

// Load fetches the catalog for the first time
func (c *Catalog) Load(ctx context.Context) error {
	return c.Refresh(ctx)
}

// Refresh refetches everything. On error the previous data is kept.
func (c *Catalog) Refresh(ctx context.Context) error {
	categories, err := c.source.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	tables, err := c.source.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tables: %w", err)
	}
	items, err := c.source.ListMenuItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to load menu items: %w", err)
	}

	c.mu.Lock()
	c.categories = categories
	c.tables = tables
	c.items = items
	c.loadedAt = c.now()
	c.mu.Unlock()

	c.logger.Debug("catalog refreshed",
		zap.Int("categories", len(categories)),
		zap.Int("tables", len(tables)),
		zap.Int("items", len(items)))
	return nil
}

// RefreshIfStale refreshes when the data is older than maxAge or was never
// loaded. It reports whether a refresh happened.
func (c *Catalog) RefreshIfStale(ctx context.Context, maxAge time.Duration) (bool, error) {
	c.mu.RLock()
	loadedAt := c.loadedAt
	c.mu.RUnlock()

	if !loadedAt.IsZero() && c.now().Sub(loadedAt) < maxAge {
		return false, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Watch refreshes the catalog whenever a catalog.changed event arrives and
// passes every event, with any refresh error, to notify. It returns when ctx
// is done or events is closed.
func (c *Catalog) Watch(ctx context.Context, events <-chan models.Event, notify func(models.Event, error)) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			var err error
			if evt.Type == models.EventCatalogChanged {
				if err = c.Refresh(ctx); err != nil {
					c.logger.Warn("catalog refresh after change failed", zap.Error(err))
				}
			}
			if notify != nil {
				notify(evt, err)
			}
		}
	}
}

// LoadedAt returns when the catalog was last refreshed
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

// Categories returns the categories in backend order
func (c *Catalog) Categories() []models.Category {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Category(nil), c.categories...)
}

// Tables returns the dining tables in backend order
func (c *Catalog) Tables() []models.Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.Table(nil), c.tables...)
}

// Table looks up a table by ID
func (c *Catalog) Table(id uint) (models.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tables {
		if t.ID == id {
			return t, true
		}
	}
	return models.Table{}, false
}

// Item looks up a menu item by ID
func (c *Catalog) Item(id uint) (models.MenuItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if item.ID == id {
			return item, true
		}
	}
	return models.MenuItem{}, false
}

// Items returns the menu items of a category, including unavailable ones.
func (c *Catalog) Items(category string) []models.MenuItem {
	return c.Search(category, "")
}

// Search returns the items of a category whose name contains query,
// ignoring case. An empty category matches every category.
func (c *Catalog) Search(category, query string) []models.MenuItem {
	query = strings.ToLower(strings.TrimSpace(query))

	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.MenuItem
	for i := range c.items {
		item := c.items[i]
		if category != "" && !item.IsInCategory(category) {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(item.Name), query) {
			continue
		}
		out = append(out, item)
	}
	return out
}
