package store

import (
	"fmt"
	"slices"
)

// Kind is the storage class of a column.
type Kind int

const (
	KindText Kind = iota
	KindReal
	KindInteger
	// KindJSON columns hold structured values serialized as JSON text.
	KindJSON
)

// Column declares one column of a table.
type Column struct {
	Name    string
	Kind    Kind
	NotNull bool
	Unique  bool
	Default any
	hasDflt bool
}

// HasDefault reports whether the column declares a default value.
func (c Column) HasDefault() bool { return c.hasDflt }

// TableDef declares a table of the data contract.
type TableDef struct {
	Name    string
	Columns []Column
}

// Column returns the named column definition.
func (t TableDef) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the declared column names in declaration order.
func (t TableDef) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// CheckColumns returns ErrUnknownColumn if any key of row, filter column or
// the ordering column is not declared by t.
func (t TableDef) CheckColumns(row Row, filters []Filter, orderBy string) error {
	for k := range row {
		if _, ok := t.Column(k); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, k)
		}
	}
	for _, f := range filters {
		if _, ok := t.Column(f.Column); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, f.Column)
		}
		if _, err := f.Op.SQL(); err != nil {
			return err
		}
	}
	if orderBy != "" {
		if _, ok := t.Column(orderBy); !ok {
			return fmt.Errorf("%w: %s.%s", ErrUnknownColumn, t.Name, orderBy)
		}
	}
	return nil
}

// withDefaults fills declared defaults for columns missing from row.
func (t TableDef) withDefaults(row Row) Row {
	for _, c := range t.Columns {
		if _, ok := row[c.Name]; !ok && c.hasDflt {
			row[c.Name] = c.Default
		}
	}
	return row
}

func text(name string) Column { return Column{Name: name, Kind: KindText} }
func number(name string) Column { return Column{Name: name, Kind: KindReal} }
func integer(name string) Column { return Column{Name: name, Kind: KindInteger} }
func jsonCol(name string) Column { return Column{Name: name, Kind: KindJSON} }

func (c Column) notNull() Column { c.NotNull = true; return c }
func (c Column) unique() Column { c.Unique = true; return c }
func (c Column) dflt(v any) Column { c.Default = v; c.hasDflt = true; return c }
func primary() Column { return text("id").notNull().unique() }

// Schema is the bookkeeping data contract: only the fields the assistant
// tools read or write.
var Schema = []TableDef{
	{Name: TableDebts, Columns: []Column{
		primary(),
		number("amount").notNull(),
		text("creditor").notNull(),
		text("category"),
		text("created_date"),
		text("due_date").notNull(),
		text("description"),
		text("status").notNull().dflt("pending"),
		text("paid_at"),
		number("paid_amount"),
	}},
	{Name: TableIncomes, Columns: []Column{
		primary(),
		number("amount").notNull(),
		text("source").notNull(),
		text("category"),
		text("date").notNull(),
		text("description"),
		number("tax_rate").dflt(0.0),
		number("tax_amount").dflt(0.0),
		text("created_at"),
	}},
	{Name: TableExpenses, Columns: []Column{
		primary(),
		number("amount").notNull(),
		text("recipient"),
		text("category").notNull(),
		text("date").notNull(),
		text("description"),
		text("payment_method"),
		number("tax_rate").dflt(0.0),
		number("tax_amount").dflt(0.0),
		text("created_at"),
	}},
	{Name: TableCategories, Columns: []Column{
		primary(),
		text("name").notNull().unique(),
		text("type").dflt("expense"),
		number("monthly_limit").dflt(0.0),
	}},
	{Name: TableRecurringExpenses, Columns: []Column{
		primary(),
		text("name").notNull(),
		text("provider").notNull(),
		number("amount").notNull(),
		integer("day_of_month").notNull(),
		text("category").notNull(),
		number("tax_rate").dflt(0.0),
		text("status").dflt("active"),
		text("last_paid_date"),
	}},
	{Name: TableSavings, Columns: []Column{
		primary(),
		text("name").notNull(),
		number("target_amount").notNull(),
		number("current_amount").notNull().dflt(0.0),
		text("deadline"),
		text("category").notNull(),
		text("icon_color"),
	}},
	{Name: TableAuditLogs, Columns: []Column{
		primary(),
		integer("seq").notNull().unique(),
		text("action_type").notNull(),
		text("entity_id"),
		jsonCol("before_state"),
		jsonCol("after_state"),
		text("reason"),
		text("created_at").notNull(),
		text("prev_hash"),
		text("hash"),
	}},
}

// LookupTable returns the definition of the named table.
func LookupTable(name string) (TableDef, error) {
	i := slices.IndexFunc(Schema, func(t TableDef) bool { return t.Name == name })
	if i < 0 {
		return TableDef{}, fmt.Errorf("%w: %s", ErrUnknownTable, name)
	}
	return Schema[i], nil
}
