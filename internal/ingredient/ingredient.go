// Package ingredient is the demo CRUD resource served next to the analyzer.
package ingredient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("ingredient: not found")
	ErrInvalid  = errors.New("ingredient: invalid")
)

type Ingredient struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit,omitempty"`
}

// Validate trims the name and unit and rejects empty names and negative
// quantities.
func (i *Ingredient) Validate() error {
	i.Name = strings.TrimSpace(i.Name)
	i.Unit = strings.TrimSpace(i.Unit)
	if i.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if i.Quantity < 0 {
		return fmt.Errorf("%w: quantity must not be negative", ErrInvalid)
	}
	return nil
}

type Store interface {
	List(ctx context.Context) ([]Ingredient, error)
	Get(ctx context.Context, id string) (Ingredient, error)
	Create(ctx context.Context, in Ingredient) (Ingredient, error)
	Update(ctx context.Context, in Ingredient) (Ingredient, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps ingredients in process. List is ordered by name.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Ingredient
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Ingredient)}
}

func (m *MemoryStore) List(ctx context.Context) ([]Ingredient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Ingredient, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Name == out[b].Name {
			return out[a].ID < out[b].ID
		}
		return out[a].Name < out[b].Name
	})
	return out, nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (Ingredient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[id]
	if !ok {
		return Ingredient{}, ErrNotFound
	}
	return it, nil
}

func (m *MemoryStore) Create(ctx context.Context, in Ingredient) (Ingredient, error) {
	if err := in.Validate(); err != nil {
		return Ingredient{}, err
	}
	in.ID = uuid.NewString()

	m.mu.Lock()
	m.items[in.ID] = in
	m.mu.Unlock()
	return in, nil
}

func (m *MemoryStore) Update(ctx context.Context, in Ingredient) (Ingredient, error) {
	if err := in.Validate(); err != nil {
		return Ingredient{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[in.ID]; !ok {
		return Ingredient{}, ErrNotFound
	}
	m.items[in.ID] = in
	return in, nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}
