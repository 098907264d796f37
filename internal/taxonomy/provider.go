package taxonomy

import (
	"fmt"
	"sync"

	"callscore/internal/models"
)

// Store is the read side of the checklist tables the provider loads from.
type Store interface {
	GetActiveCategories() ([]models.Category, error)
	GetActiveItems() ([]models.ChecklistItem, error)
}

// Provider hands out the current taxonomy snapshot. Refresh is the only
// mutation boundary; everything else sees an immutable value, so an
// administrative taxonomy edit never shifts scores mid-computation.
type Provider struct {
	store Store

	mu      sync.RWMutex
	current *Taxonomy
}

// NewProvider creates a provider and loads the initial snapshot.
func NewProvider(store Store) (*Provider, error) {
	p := &Provider{store: store}
	if err := p.Refresh(); err != nil {
		return nil, err
	}
	return p, nil
}

// Refresh reloads the snapshot from the store.
func (p *Provider) Refresh() error {
	categories, err := p.store.GetActiveCategories()
	if err != nil {
		return fmt.Errorf("failed to load checklist categories: %w", err)
	}
	items, err := p.store.GetActiveItems()
	if err != nil {
		return fmt.Errorf("failed to load checklist items: %w", err)
	}
	t, err := New(categories, items)
	if err != nil {
		return fmt.Errorf("invalid checklist configuration: %w", err)
	}

	p.mu.Lock()
	p.current = t
	p.mu.Unlock()
	return nil
}

// Current returns the latest snapshot.
func (p *Provider) Current() *Taxonomy {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}
