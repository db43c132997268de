// internal/models/registry.go
package models

import (
	"strconv"

	"polychat/internal/config"
)

// Catalog holds the fixed, ordered list of models configured at startup
type Catalog struct {
	models map[string]Model
	order  []string // Preserve order for consistent display
}

// NewCatalog creates a catalog from config. Entries without an ID and
// duplicate IDs are skipped; a missing name falls back to the ID.
func NewCatalog(cfg *config.Config) *Catalog {
	list := make([]Model, 0, len(cfg.Models))
	for _, mc := range cfg.Models {
		list = append(list, Model{ID: mc.ID, Name: mc.Name})
	}
	return CatalogOf(list...)
}

// CatalogOf builds a catalog directly from descriptors
func CatalogOf(models ...Model) *Catalog {
	c := &Catalog{
		models: make(map[string]Model),
		order:  []string{},
	}
	for _, m := range models {
		c.add(m)
	}
	return c
}

func (c *Catalog) add(m Model) {
	if m.ID == "" {
		return
	}
	if _, dup := c.models[m.ID]; dup {
		return
	}
	if m.Name == "" {
		m.Name = m.ID
	}
	c.models[m.ID] = m
	c.order = append(c.order, m.ID)
}

// Get returns a model by ID
func (c *Catalog) Get(id string) (Model, bool) {
	m, ok := c.models[id]
	return m, ok
}

// Lookup resolves either a model ID or a 1-based position in the catalog
func (c *Catalog) Lookup(ref string) (Model, bool) {
	if m, ok := c.models[ref]; ok {
		return m, true
	}
	n, err := strconv.Atoi(ref)
	if err != nil || n < 1 || n > len(c.order) {
		return Model{}, false
	}
	return c.models[c.order[n-1]], true
}

// All returns all models in order
func (c *Catalog) All() []Model {
	result := make([]Model, 0, len(c.order))
	for _, id := range c.order {
		result = append(result, c.models[id])
	}
	return result
}

// Count returns number of models in the catalog
func (c *Catalog) Count() int {
	return len(c.order)
}
