package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/kaysia/kasa/internal/store"
)

const schemaVersion = 1

// indexStatements back the range scans the ledger tools issue.
var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_debts_due ON debts(status, due_date)`,
	`CREATE INDEX IF NOT EXISTS idx_incomes_date ON incomes(date)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date, category)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_logs_seq ON audit_logs(seq)`,
}

// schemaStatements derives the DDL for every table of the data contract,
// followed by the indexes. All use IF NOT EXISTS for idempotent re-application.
func schemaStatements() []string {
	stmts := make([]string, 0, len(store.Schema)+len(indexStatements))
	for _, t := range store.Schema {
		stmts = append(stmts, createTable(t))
	}
	return append(stmts, indexStatements...)
}

func createTable(t store.TableDef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", t.Name)
	for i, c := range t.Columns {
		fmt.Fprintf(&b, "\t%s %s", c.Name, sqlType(c.Kind))
		if c.Name == "id" {
			b.WriteString(" PRIMARY KEY")
		} else if c.Unique {
			b.WriteString(" UNIQUE")
		}
		if c.NotNull {
			b.WriteString(" NOT NULL")
		}
		if c.HasDefault() {
			b.WriteString(" DEFAULT " + sqlLiteral(c.Default))
		}
		if i < len(t.Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	return b.String()
}

func sqlType(k store.Kind) string {
	switch k {
	case store.KindReal:
		return "REAL"
	case store.KindInteger:
		return "INTEGER"
	default:
		return "TEXT"
	}
}

func sqlLiteral(v any) string {
	switch x := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	default:
		return "NULL"
	}
}

// migrate creates or updates the database schema to the latest version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}
	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}
	return nil
}
