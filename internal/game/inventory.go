package game

import (
	"slices"
	"strings"
	"sync"
)

// Inventory holds the items the player picked up, in pickup order.
type Inventory struct {
	mu    sync.Mutex
	items []string
}

// Add appends item.
func (inv *Inventory) Add(item string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	inv.items = append(inv.items, item)
}

// Has reports whether an item with this name is held, ignoring case.
func (inv *Inventory) Has(item string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return slices.ContainsFunc(inv.items, func(it string) bool {
		return strings.EqualFold(it, item)
	})
}

// Items returns a copy of the held items.
func (inv *Inventory) Items() []string {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return slices.Clone(inv.items)
}

// Len returns the number of held items.
func (inv *Inventory) Len() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return len(inv.items)
}
