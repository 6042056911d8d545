package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/kaysia/kasa/internal/store"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Adapter implements store.Adapter on a SQLite database. Identifiers are
// checked against store.Schema before any statement is built; values are
// always bound as parameters.
type Adapter struct {
	db *sql.DB
}

var (
	_ store.Adapter = (*Adapter)(nil)
	_ store.Pinger  = (*Adapter)(nil)
)

// NewAdapter wraps an already migrated database.
func NewAdapter(db *sql.DB) *Adapter {
	return &Adapter{db: db}
}

// Ping implements store.Pinger.
func (a *Adapter) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// Select implements store.Adapter.
func (a *Adapter) Select(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	def, err := store.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := def.CheckColumns(nil, q.Filters, q.OrderBy); err != nil {
		return nil, err
	}

	where, args := whereClause(q.Filters)
	stmt := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(def.ColumnNames(), ", "), def.Name, where)
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Desc {
			dir = "DESC"
		}
		stmt += fmt.Sprintf(" ORDER BY %s %s", q.OrderBy, dir)
	}
	if q.Limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify("select", table, err)
	}
	return scanRows(def, rows)
}

// Insert implements store.Adapter.
func (a *Adapter) Insert(ctx context.Context, table string, payload store.Row) (store.Row, error) {
	def, err := store.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := def.CheckColumns(payload, nil, ""); err != nil {
		return nil, err
	}

	row := payload.Clone()
	if row == nil {
		row = store.Row{}
	}
	if row.ID() == "" {
		row["id"] = uuid.NewString()
	}

	cols := sortedKeys(row)
	args := make([]any, len(cols))
	for i, c := range cols {
		col, _ := def.Column(c)
		if args[i], err = bindValue(col, row[c]); err != nil {
			return nil, err
		}
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		def.Name, strings.Join(cols, ", "), placeholders, strings.Join(def.ColumnNames(), ", "))

	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify("insert", table, err)
	}
	out, err := scanRows(def, rows)
	if err != nil {
		return nil, classify("insert", table, err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("sqlite: insert %s: returned %d rows", table, len(out))
	}
	return out[0], nil
}

// Update implements store.Adapter.
func (a *Adapter) Update(ctx context.Context, table string, filters []store.Filter, payload store.Row) ([]store.Row, error) {
	def, err := store.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := def.CheckColumns(payload, filters, ""); err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return a.Select(ctx, table, store.Query{Filters: filters})
	}

	cols := sortedKeys(payload)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+len(filters))
	for i, c := range cols {
		col, _ := def.Column(c)
		v, err := bindValue(col, payload[c])
		if err != nil {
			return nil, err
		}
		sets[i] = c + " = ?"
		args = append(args, v)
	}
	where, whereArgs := whereClause(filters)
	args = append(args, whereArgs...)
	stmt := fmt.Sprintf("UPDATE %s SET %s%s RETURNING %s",
		def.Name, strings.Join(sets, ", "), where, strings.Join(def.ColumnNames(), ", "))

	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify("update", table, err)
	}
	out, err := scanRows(def, rows)
	if err != nil {
		return nil, classify("update", table, err)
	}
	return out, nil
}

// Delete implements store.Adapter.
func (a *Adapter) Delete(ctx context.Context, table string, filters []store.Filter) ([]store.Row, error) {
	def, err := store.LookupTable(table)
	if err != nil {
		return nil, err
	}
	if err := def.CheckColumns(nil, filters, ""); err != nil {
		return nil, err
	}

	where, args := whereClause(filters)
	stmt := fmt.Sprintf("DELETE FROM %s%s RETURNING %s", def.Name, where, strings.Join(def.ColumnNames(), ", "))
	rows, err := a.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, classify("delete", table, err)
	}
	return scanRows(def, rows)
}

// whereClause renders filters whose columns and operators were already
// validated by TableDef.CheckColumns.
func whereClause(filters []store.Filter) (string, []any) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, len(filters))
	var args []any
	for i, f := range filters {
		if f.Value == nil {
			switch f.Op {
			case store.OpEq:
				parts[i] = f.Column + " IS NULL"
			case store.OpNeq:
				parts[i] = f.Column + " IS NOT NULL"
			default:
				parts[i] = "0"
			}
			continue
		}
		op, _ := f.Op.SQL()
		parts[i] = fmt.Sprintf("%s %s ?", f.Column, op)
		args = append(args, f.Value)
	}
	return " WHERE " + strings.Join(parts, " AND "), args
}

func scanRows(def store.TableDef, rows *sql.Rows) ([]store.Row, error) {
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlite: columns: %w", err)
	}

	var out []store.Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite: scan %s: %w", def.Name, err)
		}
		row := make(store.Row, len(cols))
		for i, name := range cols {
			col, _ := def.Column(name)
			row[name] = loadValue(col, vals[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// bindValue converts a row value into a driver argument. JSON columns are
// serialized to text.
func bindValue(col store.Column, v any) (any, error) {
	if v == nil || col.Kind != store.KindJSON {
		return v, nil
	}
	switch x := v.(type) {
	case string:
		return x, nil
	case json.RawMessage:
		return string(x), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("sqlite: encode %s: %w", col.Name, err)
	}
	return string(b), nil
}

func loadValue(col store.Column, v any) any {
	if b, ok := v.([]byte); ok {
		v = string(b)
	}
	if col.Kind == store.KindJSON {
		if s, ok := v.(string); ok {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				return decoded
			}
		}
	}
	if col.Kind == store.KindReal {
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	}
	return v
}

// classify maps SQLite constraint failures onto store.ErrConstraint.
func classify(op, table string, err error) error {
	var serr *msqlite.Error
	if errors.As(err, &serr) && serr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("sqlite: %s %s: %w: %s", op, table, store.ErrConstraint, serr.Error())
	}
	return fmt.Errorf("sqlite: %s %s: %w", op, table, err)
}

func sortedKeys(r store.Row) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
