package sqlite

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kaysia/kasa/internal/core"
	"github.com/kaysia/kasa/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestModule(t *testing.T) *Module {
	t.Helper()

	dir := t.TempDir()
	m := &Module{config: Config{Path: filepath.Join(dir, "test.db")}}
	m.config.defaults()

	app := core.NewAppContext(slog.Default(), dir)
	require.NoError(t, m.Provision(app))
	require.NoError(t, m.Validate())

	t.Cleanup(func() {
		_ = m.Stop(context.Background())
	})
	return m
}

func TestProvision_RegistersAdapterService(t *testing.T) {
	dir := t.TempDir()
	app := core.NewAppContext(slog.Default(), dir)
	m := &Module{}
	require.NoError(t, m.Provision(app))
	t.Cleanup(func() { _ = m.Stop(context.Background()) })

	svc, ok := app.Service(store.ServiceName)
	require.True(t, ok)
	assert.Implements(t, (*store.Adapter)(nil), svc)
	assert.Equal(t, filepath.Join(dir, defaultDBFile), m.config.Path)
}

func TestAdapter_InsertSelect(t *testing.T) {
	m := newTestModule(t)
	a := m.Adapter()
	ctx := context.Background()

	row, err := a.Insert(ctx, store.TableDebts, store.Row{
		"amount":   500.0,
		"creditor": "ACME",
		"due_date": "2024-02-10",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, row.ID())
	assert.Equal(t, "pending", row.String("status"))
	assert.InDelta(t, 500.0, row.Float("amount"), 1e-9)
	assert.Nil(t, row["paid_at"])

	got, ok, err := store.First(ctx, a, store.TableDebts, store.Eq("id", row.ID()))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, row, got)
}

func TestAdapter_RangeAndOrdering(t *testing.T) {
	m := newTestModule(t)
	a := m.Adapter()
	ctx := context.Background()

	for i, d := range []string{"2024-03-05", "2024-01-15", "2024-02-01", "2024-02-29"} {
		_, err := a.Insert(ctx, store.TableExpenses, store.Row{
			"amount":   float64(10 * (i + 1)),
			"category": "Food",
			"date":     d,
		})
		require.NoError(t, err)
	}

	rows, err := a.Select(ctx, store.TableExpenses, store.Where(
		store.Gte("date", "2024-02-01"),
		store.Lte("date", "2024-02-29"),
	).Ordered("date", true))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "2024-02-29", rows[0].String("date"))
	assert.Equal(t, "2024-02-01", rows[1].String("date"))
	assert.InDelta(t, 0.0, rows[0].Float("tax_amount"), 1e-9)

	rows, err = a.Select(ctx, store.TableExpenses, store.Query{Limit: 3})
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestAdapter_UpdateDelete(t *testing.T) {
	m := newTestModule(t)
	a := m.Adapter()
	ctx := context.Background()

	d, err := a.Insert(ctx, store.TableDebts, store.Row{"amount": 50.0, "creditor": "Bank", "due_date": "2024-02-10"})
	require.NoError(t, err)

	updated, err := a.Update(ctx, store.TableDebts,
		[]store.Filter{store.Eq("id", d.ID())},
		store.Row{"status": "paid", "paid_at": "2024-02-06", "paid_amount": 50.0},
	)
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, "paid", updated[0].String("status"))
	assert.Equal(t, "2024-02-06", updated[0].String("paid_at"))

	none, err := a.Update(ctx, store.TableDebts, []store.Filter{store.Eq("id", "missing")}, store.Row{"status": "paid"})
	require.NoError(t, err)
	assert.Empty(t, none)

	removed, err := a.Delete(ctx, store.TableDebts, []store.Filter{store.Eq("id", d.ID())})
	require.NoError(t, err)
	assert.Len(t, removed, 1)

	rows, err := a.Select(ctx, store.TableDebts, store.Query{})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAdapter_NullFilters(t *testing.T) {
	m := newTestModule(t)
	a := m.Adapter()
	ctx := context.Background()

	_, err := a.Insert(ctx, store.TableDebts, store.Row{"amount": 1.0, "creditor": "a", "due_date": "2024-01-01"})
	require.NoError(t, err)
	_, err = a.Insert(ctx, store.TableDebts, store.Row{"amount": 2.0, "creditor": "b", "due_date": "2024-01-02", "paid_at": "2024-01-02"})
	require.NoError(t, err)

	rows, err := a.Select(ctx, store.TableDebts, store.Where(store.Eq("paid_at", nil)))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].String("creditor"))
}

func TestAdapter_JSONColumnsRoundTrip(t *testing.T) {
	m := newTestModule(t)
	a := m.Adapter()
	ctx := context.Background()

	row, err := a.Insert(ctx, store.TableAuditLogs, store.Row{
		"seq":          1,
		"action_type":  "create_debt",
		"after_state":  map[string]any{"amount": 500.0, "creditor": "ACME"},
		"before_state": nil,
		"created_at":   "2024-02-06T10:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"amount": 500.0, "creditor": "ACME"}, row["after_state"])
	assert.Nil(t, row["before_state"])
	assert.Equal(t, int64(1), row["seq"])
}

func TestAdapter_Constraints(t *testing.T) {
	m := newTestModule(t)
	a := m.Adapter()
	ctx := context.Background()

	_, err := a.Insert(ctx, store.TableCategories, store.Row{"name": "Rent"})
	require.NoError(t, err)
	_, err = a.Insert(ctx, store.TableCategories, store.Row{"name": "Rent"})
	require.ErrorIs(t, err, store.ErrConstraint)

	_, err = a.Insert(ctx, store.TableDebts, store.Row{"amount": 1.0})
	require.ErrorIs(t, err, store.ErrConstraint)
}

func TestAdapter_RejectsUnknownIdentifiers(t *testing.T) {
	m := newTestModule(t)
	a := m.Adapter()
	ctx := context.Background()

	_, err := a.Select(ctx, "debts; DROP TABLE debts", store.Query{})
	require.ErrorIs(t, err, store.ErrUnknownTable)

	_, err = a.Select(ctx, store.TableDebts, store.Query{OrderBy: "1; --"})
	require.ErrorIs(t, err, store.ErrUnknownColumn)

	_, err = a.Update(ctx, store.TableDebts, nil, store.Row{"bogus": 1})
	require.ErrorIs(t, err, store.ErrUnknownColumn)
}

func TestAdapter_ConcurrentInserts(t *testing.T) {
	m := newTestModule(t)
	a := m.Adapter()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Insert(ctx, store.TableIncomes, store.Row{
				"amount": float64(i),
				"source": "client",
				"date":   "2024-02-01",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	rows, err := a.Select(ctx, store.TableIncomes, store.Query{})
	require.NoError(t, err)
	assert.Len(t, rows, 20)
}

func TestMigrate_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kasa.db")
	ctx := context.Background()

	_, db, err := Open(ctx, Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, migrate(ctx, db))
	require.NoError(t, db.Close())

	_, db, err = Open(ctx, Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	var version int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_version").Scan(&version))
	assert.Equal(t, schemaVersion, version)
}

func TestOpen_CreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "kasa.db")
	a, db, err := Open(context.Background(), Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	assert.NotNil(t, a)
}

func TestConfig_Validate(t *testing.T) {
	c := Config{BusyTimeout: -1}
	require.Error(t, c.validate())

	c = Config{}
	c.defaults()
	assert.True(t, c.walEnabled())
	assert.Equal(t, defaultBusyTimeout, c.BusyTimeout)
}
