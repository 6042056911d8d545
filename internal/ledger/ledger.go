// Package ledger is the closed catalogue of bookkeeping tools the assistant
// can invoke: read tools over debts, cashflow, budgets, savings and taxes,
// and write tools that go through the propose-then-apply protocol and leave
// one audit entry per applied mutation.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/tax"
	"github.com/kaysia/kasa/internal/tool"
)

// DefaultCurrency prefixes amounts in proposal messages.
const DefaultCurrency = "₺"

// Debt statuses.
const (
	DebtPending = "pending"
	DebtPaid    = "paid"
	DebtOverdue = "overdue"
)

// ErrNoStore is returned by New when Deps carries no store adapter.
var ErrNoStore = errors.New("ledger: store adapter is required")

// Deps are the collaborators threaded into every tool.
type Deps struct {
	Store store.Adapter
	// Audit receives applied mutations. A nil recorder disables auditing.
	Audit *audit.Recorder
	// Now defaults to time.Now.
	Now func() time.Time
	// Location fixes what "today" means. Defaults to time.Local.
	Location *time.Location
	// Brackets defaults to tax.DefaultBrackets.
	Brackets tax.Brackets
	// Currency defaults to DefaultCurrency.
	Currency string
}

// Ledger builds the tool catalogue over one set of Deps.
type Ledger struct {
	deps Deps
}

// New validates deps and fills defaults.
func New(deps Deps) (*Ledger, error) {
	if deps.Store == nil {
		return nil, ErrNoStore
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if len(deps.Brackets) == 0 {
		deps.Brackets = tax.DefaultBrackets
	}
	if err := deps.Brackets.Validate(); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	if deps.Currency == "" {
		deps.Currency = DefaultCurrency
	}
	return &Ledger{deps: deps}, nil
}

// Tools returns every tool of the catalogue. The list is fixed at compile
// time; each entry carries its own typed arguments.
func (l *Ledger) Tools() []tool.Tool {
	return []tool.Tool{
		l.getDebtSummary(),
		l.getCashflow(),
		l.getUpcomingPayments(),
		l.getBudgetStatus(),
		l.getCalendarEvents(),
		l.getSavingsStatus(),
		l.getTaxSummary(),
		l.getTaxDeadlines(),

		l.markDebtPaid(),
		l.updateDebtDueDate(),
		l.createDebt(),
		l.createExpense(),
		l.createIncome(),
		l.createRecurringInvoice(),
		l.markInvoicePaid(),
		l.createSavingsGoal(),
		l.adjustSavingsBalance(),
		l.setBudgetLimit(),
	}
}

// Register adds every ledger tool to reg.
func Register(reg *tool.Registry, deps Deps) error {
	l, err := New(deps)
	if err != nil {
		return err
	}
	for _, t := range l.Tools() {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("ledger: %w", err)
		}
	}
	return nil
}

// NewRegistry returns a sealed registry holding the ledger catalogue.
func NewRegistry(deps Deps) (*tool.Registry, error) {
	reg := tool.NewRegistry()
	if err := Register(reg, deps); err != nil {
		return nil, err
	}
	reg.Seal()
	return reg, nil
}

func (l *Ledger) now() time.Time { return l.deps.Now().In(l.deps.Location) }

// today is midnight of the current day in the ledger's location.
func (l *Ledger) today() time.Time {
	y, m, d := l.now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, l.deps.Location)
}

func (l *Ledger) todayDate() string { return l.today().Format(time.DateOnly) }

func (l *Ledger) timestamp() string { return l.deps.Now().UTC().Format(time.RFC3339) }

// money formats an amount for proposal messages.
func (l *Ledger) money(v float64) string {
	s := strconv.FormatFloat(tax.Round2(v), 'f', 2, 64)
	s = strings.TrimSuffix(s, ".00")
	return l.deps.Currency + s
}

// monthBounds returns the first and last calendar day of month.
func monthBounds(year, month int) (string, string) {
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return start.Format(time.DateOnly), end.Format(time.DateOnly)
}

func period(year, month int) string { return fmt.Sprintf("%d/%d", month, year) }

// daysBetween counts calendar days from a to b; both are YYYY-MM-DD.
func daysBetween(a, b string) (int, bool) {
	ta, err1 := time.Parse(time.DateOnly, a)
	tb, err2 := time.Parse(time.DateOnly, b)
	if err1 != nil || err2 != nil {
		return 0, false
	}
	return int(math.Round(tb.Sub(ta).Hours() / 24)), true
}

func sum(rows []store.Row, col string) float64 {
	var total float64
	for _, r := range rows {
		total += r.Float(col)
	}
	return total
}

// list keeps empty results encoding as [] rather than null.
func list(rs []store.Row) []store.Row {
	if rs == nil {
		return []store.Row{}
	}
	return rs
}

func (l *Ledger) selectRows(ctx context.Context, table string, q store.Query) ([]store.Row, error) {
	rs, err := l.deps.Store.Select(ctx, table, q)
	if err != nil {
		return nil, tool.StoreFailure("select "+table, err)
	}
	return rs, nil
}

// find reads the row with id or reports it as not found.
func (l *Ledger) find(ctx context.Context, table, entity, id string) (store.Row, error) {
	row, ok, err := store.First(ctx, l.deps.Store, table, store.Eq("id", id))
	if err != nil {
		return nil, tool.StoreFailure("select "+table, err)
	}
	if !ok {
		return nil, tool.NotFound(entity, id)
	}
	return row, nil
}

func (l *Ledger) insert(ctx context.Context, table string, row store.Row) (store.Row, error) {
	out, err := l.deps.Store.Insert(ctx, table, row)
	if err != nil {
		return nil, tool.StoreFailure("insert "+table, err)
	}
	return out, nil
}

// updateOne patches the row with id. A row that vanished between the
// before-state read and the write is reported as not found.
func (l *Ledger) updateOne(ctx context.Context, table, entity, id string, patch store.Row) (store.Row, error) {
	out, err := l.deps.Store.Update(ctx, table, []store.Filter{store.Eq("id", id)}, patch)
	if err != nil {
		return nil, tool.StoreFailure("update "+table, err)
	}
	if len(out) == 0 {
		return nil, tool.NotFound(entity, id)
	}
	return out[0], nil
}

// vatSplit derives the stored amount and VAT portion. Included amounts are
// backed out with the inclusive formula; otherwise VAT is added on top.
func vatSplit(amount, rate float64, included bool) (gross, vat float64, err error) {
	if rate == 0 {
		return amount, 0, nil
	}
	if included {
		_, vat, err = tax.InclusiveVAT(amount, rate)
		if err != nil {
			return 0, 0, tool.Invalid("taxRate", "%s", err)
		}
		return amount, tax.Round2(vat), nil
	}
	vat, err = tax.ExclusiveVAT(amount, rate)
	if err != nil {
		return 0, 0, tool.Invalid("taxRate", "%s", err)
	}
	vat = tax.Round2(vat)
	return amount + vat, vat, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// nullable stores empty optional text as NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
