// Package store provides TableStore implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/cashback-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory keeps every saved version of every table in memory.
type Memory struct {
	mu       sync.RWMutex
	versions map[string][]Version

	// FailSaves makes SaveTable return this error; used to exercise the
	// non-fatal persistence path.
	FailSaves error
}

// Version is one saved snapshot of a table.
type Version struct {
	Table   generic.Table
	Message string
}

func NewMemory() *Memory {
	return &Memory{versions: make(map[string][]Version)}
}

// LoadTable returns the latest version, or an empty table.
func (m *Memory) LoadTable(_ context.Context, name string) (generic.Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	vs := m.versions[name]
	if len(vs) == 0 {
		return generic.Table{}, nil
	}
	return vs[len(vs)-1].Table.Clone(), nil
}

// SaveTable appends a new version.
func (m *Memory) SaveTable(_ context.Context, name string, table generic.Table, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSaves != nil {
		return m.FailSaves
	}
	m.versions[name] = append(m.versions[name], Version{Table: table.Clone(), Message: message})
	return nil
}

// Versions returns the save history for a table, oldest first.
func (m *Memory) Versions(name string) []Version {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]Version, len(m.versions[name]))
	copy(result, m.versions[name])
	return result
}

// Seed stores a table without going through the ledger, e.g. to load
// legacy exports in tests.
func (m *Memory) Seed(name string, table generic.Table) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.versions[name] = append(m.versions[name], Version{Table: table.Clone(), Message: "seed"})
}

var _ generic.TableStore = (*Memory)(nil)
