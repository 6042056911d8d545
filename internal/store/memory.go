package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Adapter over the declared Schema. Rows are copied
// on the way in and on the way out.
type Memory struct {
	mu     sync.RWMutex
	tables map[string][]Row
}

var _ Adapter = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	m := &Memory{tables: make(map[string][]Row, len(Schema))}
	for _, t := range Schema {
		m.tables[t.Name] = nil
	}
	return m
}

// Select implements Adapter.
func (m *Memory) Select(ctx context.Context, table string, q Query) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := def.CheckColumns(nil, q.Filters, q.OrderBy); err != nil {
		return nil, err
	}

	m.mu.RLock()
	var out []Row
	for _, r := range m.tables[table] {
		if Matches(r, q.Filters) {
			out = append(out, r.Clone())
		}
	}
	m.mu.RUnlock()

	if q.OrderBy != "" {
		slices.SortStableFunc(out, func(a, b Row) int {
			c := compareNullable(a[q.OrderBy], b[q.OrderBy])
			if q.Desc {
				return -c
			}
			return c
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// compareNullable sorts nil values first, matching SQLite's NULL ordering.
func compareNullable(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return compare(a, b)
}

// Insert implements Adapter.
func (m *Memory) Insert(ctx context.Context, table string, payload Row) (Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := def.CheckColumns(payload, nil, ""); err != nil {
		return nil, err
	}

	row := def.withDefaults(payload.Clone())
	if row == nil {
		row = def.withDefaults(Row{})
	}
	if row.ID() == "" {
		row["id"] = uuid.NewString()
	}
	if err := checkNotNull(def, row); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkUnique(def, m.tables[table], row, -1); err != nil {
		return nil, err
	}
	m.tables[table] = append(m.tables[table], row)
	return row.Clone(), nil
}

// Update implements Adapter.
func (m *Memory) Update(ctx context.Context, table string, filters []Filter, payload Row) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := def.CheckColumns(payload, filters, ""); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rows := m.tables[table]
	candidate := slices.Clone(rows)
	var touched []int
	for i, r := range rows {
		if !Matches(r, filters) {
			continue
		}
		n := r.Merge(payload)
		if err := checkNotNull(def, n); err != nil {
			return nil, err
		}
		candidate[i] = n
		touched = append(touched, i)
	}
	for _, i := range touched {
		if err := checkUnique(def, candidate, candidate[i], i); err != nil {
			return nil, err
		}
	}
	// Commit only after every row passed its constraints.
	m.tables[table] = candidate
	updated := make([]Row, 0, len(touched))
	for _, i := range touched {
		updated = append(updated, candidate[i].Clone())
	}
	return updated, nil
}

// Delete implements Adapter.
func (m *Memory) Delete(ctx context.Context, table string, filters []Filter) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	def, err := LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := def.CheckColumns(nil, filters, ""); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []Row
	kept := m.tables[table][:0]
	for _, r := range m.tables[table] {
		if Matches(r, filters) {
			removed = append(removed, r.Clone())
			continue
		}
		kept = append(kept, r)
	}
	m.tables[table] = kept
	return removed, nil
}

// Len returns the number of rows in table. Intended for tests.
func (m *Memory) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

// Snapshot returns a deep copy of every table. Intended for tests that
// assert a call left the store untouched.
func (m *Memory) Snapshot() map[string][]Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]Row, len(m.tables))
	for name, rows := range m.tables {
		cp := make([]Row, len(rows))
		for i, r := range rows {
			cp[i] = r.Clone()
		}
		out[name] = cp
	}
	return out
}

func checkNotNull(def TableDef, row Row) error {
	for _, c := range def.Columns {
		if c.NotNull && row[c.Name] == nil {
			return fmt.Errorf("%w: NOT NULL %s.%s", ErrConstraint, def.Name, c.Name)
		}
	}
	return nil
}

// checkUnique reports a constraint error when row collides on a unique
// column with any element of rows other than the one at index self.
func checkUnique(def TableDef, rows []Row, row Row, self int) error {
	for _, c := range def.Columns {
		if !c.Unique {
			continue
		}
		v := row[c.Name]
		if v == nil {
			continue
		}
		for i, other := range rows {
			if i == self {
				continue
			}
			if other[c.Name] != nil && compare(other[c.Name], v) == 0 {
				return fmt.Errorf("%w: UNIQUE %s.%s", ErrConstraint, def.Name, c.Name)
			}
		}
	}
	return nil
}
