// Package store defines the row-level data store contract the assistant tools
// run against. The bookkeeping tables live in an external relational store;
// this package only fixes the shape of the four operations the tools need and
// the error classes adapters report.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Table names of the bookkeeping data contract.
const (
	TableDebts             = "debts"
	TableIncomes           = "incomes"
	TableExpenses          = "expenses"
	TableCategories        = "categories"
	TableRecurringExpenses = "recurring_expenses"
	TableSavings           = "savings"
	TableAuditLogs         = "audit_logs"
)

var (
	// ErrUnknownTable is returned when an operation names a table outside the contract.
	ErrUnknownTable = errors.New("unknown table")

	// ErrUnknownColumn is returned when a filter, ordering or payload names
	// a column the table does not declare.
	ErrUnknownColumn = errors.New("unknown column")

	// ErrConstraint is returned when a write violates a uniqueness or
	// not-null constraint.
	ErrConstraint = errors.New("constraint violation")
)

// ServiceName is the core service name under which store modules publish
// their Adapter.
const ServiceName = "store.adapter"

// Provider is implemented by modules that own an Adapter.
type Provider interface {
	Adapter() Adapter
}

// Adapter is the row-level interface to the external store.
// Implementations must be safe for concurrent use.
type Adapter interface {
	// Select returns the rows of table matching q.
	Select(ctx context.Context, table string, q Query) ([]Row, error)

	// Insert stores payload as a new row and returns the stored row.
	// An "id" is assigned when the payload does not carry one.
	Insert(ctx context.Context, table string, payload Row) (Row, error)

	// Update applies payload to every row matching filters and returns
	// the updated rows.
	Update(ctx context.Context, table string, filters []Filter, payload Row) ([]Row, error)

	// Delete removes every row matching filters and returns the removed rows.
	Delete(ctx context.Context, table string, filters []Filter) ([]Row, error)
}

// Pinger is implemented by adapters backed by a connection that can be
// health-checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Op is a comparison operator used in filters.
type Op string

// Supported filter operators.
const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

// SQL returns the SQL comparison operator for op.
func (op Op) SQL() (string, error) {
	switch op {
	case OpEq:
		return "=", nil
	case OpNeq:
		return "<>", nil
	case OpGt:
		return ">", nil
	case OpGte:
		return ">=", nil
	case OpLt:
		return "<", nil
	case OpLte:
		return "<=", nil
	default:
		return "", fmt.Errorf("store: unsupported operator %q", string(op))
	}
}

// Filter restricts an operation to rows whose Column compares to Value.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

// Eq is shorthand for an equality filter.
func Eq(column string, value any) Filter { return Filter{Column: column, Op: OpEq, Value: value} }

// Gte is shorthand for a greater-or-equal filter.
func Gte(column string, value any) Filter { return Filter{Column: column, Op: OpGte, Value: value} }

// Lte is shorthand for a less-or-equal filter.
func Lte(column string, value any) Filter { return Filter{Column: column, Op: OpLte, Value: value} }

// Gt is shorthand for a strictly-greater filter.
func Gt(column string, value any) Filter { return Filter{Column: column, Op: OpGt, Value: value} }

// Query describes a Select.
type Query struct {
	Filters []Filter
	OrderBy string
	Desc    bool
	// Limit caps the number of rows returned; zero means no limit.
	Limit int
}

// Where builds a Query from filters.
func Where(filters ...Filter) Query {
	return Query{Filters: filters}
}

// Ordered returns a copy of q ordered by column.
func (q Query) Ordered(column string, desc bool) Query {
	q.OrderBy = column
	q.Desc = desc
	return q
}

// First selects the first row matching filters. The boolean reports whether
// a row was found.
func First(ctx context.Context, a Adapter, table string, filters ...Filter) (Row, bool, error) {
	q := Where(filters...)
	q.Limit = 1
	rows, err := a.Select(ctx, table, q)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}
