package ledger_test

import (
	"testing"

	"github.com/kaysia/kasa/internal/ledger"
	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDebtSummary(t *testing.T) {
	f := newFixture(t)
	f.seedDebt(t, 100, "Overdue Ltd", "2024-02-01")
	f.seedDebt(t, 200, "Today Ltd", "2024-02-06")
	f.seedDebt(t, 300, "Week Ltd", "2024-02-13")
	f.seedDebt(t, 400, "Later Ltd", "2024-03-20")
	f.seed(t, store.TableDebts, store.Row{"amount": 999.0, "creditor": "Paid Ltd", "due_date": "2024-02-07", "status": ledger.DebtPaid})

	env := f.invoke(t, "getDebtSummary", nil)
	require.Equal(t, tool.StatusSuccess, env.Status, env.Message)
	assert.InDelta(t, 1000.0, env.Payload["totalDebt"], 1e-9)
	assert.Equal(t, 1, env.Payload["overdueCount"])
	assert.Equal(t, 2, env.Payload["upcomingCount"])

	debts := env.Payload["debts"].([]store.Row)
	require.Len(t, debts, 4)
	assert.Equal(t, "Overdue Ltd", debts[0].String("creditor"))
	assert.Equal(t, "Later Ltd", debts[3].String("creditor"))
}

func TestGetCashflow_FullCalendarMonth(t *testing.T) {
	f := newFixture(t)
	for _, d := range []string{"2024-01-31", "2024-02-01", "2024-02-29", "2024-03-01"} {
		f.seed(t, store.TableIncomes, store.Row{"amount": 1000.0, "source": "client", "date": d})
		f.seed(t, store.TableExpenses, store.Row{"amount": 250.0, "category": "Food", "date": d})
	}

	env := f.invoke(t, "getCashflow", map[string]any{"month": 2, "year": 2024})
	require.Equal(t, tool.StatusSuccess, env.Status, env.Message)
	assert.Equal(t, "2/2024", env.Payload["period"])
	assert.InDelta(t, 2000.0, env.Payload["totalIncome"], 1e-9)
	assert.InDelta(t, 500.0, env.Payload["totalExpense"], 1e-9)
	assert.InDelta(t, 1500.0, env.Payload["net"], 1e-9)

	details := env.Payload["details"].(map[string]any)
	assert.Len(t, details["incomes"], 2)
	assert.Len(t, details["expenses"], 2)
}

func TestGetCashflow_RequiresMonthAndYear(t *testing.T) {
	f := newFixture(t)
	env := f.invoke(t, "getCashflow", map[string]any{"month": 13, "year": 2024})
	assert.Equal(t, tool.KindValidation, env.Kind)

	env = f.invoke(t, "getCashflow", map[string]any{"month": 2})
	assert.Equal(t, tool.KindValidation, env.Kind)
	assert.Contains(t, env.Message, "year")
}

func TestGetUpcomingPayments_InclusiveWindow(t *testing.T) {
	f := newFixture(t)
	f.seedDebt(t, 1, "yesterday", "2024-02-05")
	f.seedDebt(t, 2, "today", "2024-02-06")
	f.seedDebt(t, 3, "edge", "2024-02-13")
	f.seedDebt(t, 4, "beyond", "2024-02-14")
	f.seed(t, store.TableDebts, store.Row{"amount": 5.0, "creditor": "paid", "due_date": "2024-02-07", "status": ledger.DebtPaid})

	env := f.invoke(t, "getUpcomingPayments", nil)
	require.Equal(t, tool.StatusSuccess, env.Status, env.Message)
	assert.Equal(t, 7, env.Payload["daysLookingAhead"])
	payments := env.Payload["payments"].([]store.Row)
	require.Len(t, payments, 2)
	assert.Equal(t, "today", payments[0].String("creditor"))
	assert.Equal(t, "edge", payments[1].String("creditor"))

	env = f.invoke(t, "getUpcomingPayments", map[string]any{"days": 0})
	require.Len(t, env.Payload["payments"], 1)

	env = f.invoke(t, "getUpcomingPayments", map[string]any{"days": -1})
	assert.Equal(t, tool.KindValidation, env.Kind)
}

func TestGetBudgetStatus_ExcludesZeroLimits(t *testing.T) {
	f := newFixture(t)
	f.seed(t, store.TableCategories, store.Row{"name": "Food", "monthly_limit": 1000.0})
	f.seed(t, store.TableCategories, store.Row{"name": "Rent", "monthly_limit": 0.0})
	f.seed(t, store.TableCategories, store.Row{"name": "Fuel"})
	f.seed(t, store.TableExpenses, store.Row{"amount": 333.0, "category": "Food", "date": "2024-02-03"})
	f.seed(t, store.TableExpenses, store.Row{"amount": 500.0, "category": "Rent", "date": "2024-02-01"})
	f.seed(t, store.TableExpenses, store.Row{"amount": 999.0, "category": "Food", "date": "2024-01-31"})

	env := f.invoke(t, "getBudgetStatus", nil)
	require.Equal(t, tool.StatusSuccess, env.Status, env.Message)
	assert.Equal(t, "2/2024", env.Payload["period"])
	assert.Equal(t, []ledger.BudgetLine{
		{Category: "Food", Limit: 1000, Spent: 333, Remaining: 667, Percentage: 33},
	}, env.Payload["budgets"])
}

func TestGetCalendarEvents(t *testing.T) {
	f := newFixture(t)
	f.seed(t, store.TableIncomes, store.Row{"amount": 100.0, "source": "Client", "date": "2024-02-03"})
	f.seed(t, store.TableExpenses, store.Row{"amount": 40.0, "category": "Food", "recipient": "Market", "date": "2024-02-03"})
	f.seedDebt(t, 500, "Supplier", "2024-02-15")
	f.seed(t, store.TableRecurringExpenses, store.Row{
		"name": "Rent", "provider": "Landlord", "amount": 12000.0, "day_of_month": 31, "category": "rent",
		"last_paid_date": "2024-01-31",
	})
	f.seed(t, store.TableIncomes, store.Row{"amount": 1.0, "source": "Outside", "date": "2024-03-02"})

	env := f.invoke(t, "getCalendarEvents", map[string]any{"from": "2024-01-20", "to": "2024-02-29"})
	require.Equal(t, tool.StatusSuccess, env.Status, env.Message)
	events := env.Payload["events"].([]ledger.Event)

	var got []string
	for _, e := range events {
		got = append(got, e.Date+" "+e.Type+" "+e.Title+" "+e.Status)
	}
	assert.Equal(t, []string{
		"2024-01-31 invoice Rent paid",
		"2024-02-03 expense Market ",
		"2024-02-03 income Client ",
		"2024-02-15 debt Supplier pending",
		"2024-02-29 invoice Rent unpaid",
	}, got)

	env = f.invoke(t, "getCalendarEvents", map[string]any{"from": "2024-03-01", "to": "2024-02-01"})
	assert.Equal(t, tool.KindValidation, env.Kind)
}

func TestGetSavingsStatus(t *testing.T) {
	f := newFixture(t)
	f.seed(t, store.TableSavings, store.Row{"name": "Car", "target_amount": 1000.0, "current_amount": 250.0, "category": "vehicle"})
	f.seed(t, store.TableSavings, store.Row{"name": "Buffer", "target_amount": 3000.0, "current_amount": 750.0, "category": "emergency"})

	env := f.invoke(t, "getSavingsStatus", nil)
	require.Equal(t, tool.StatusSuccess, env.Status, env.Message)
	assert.InDelta(t, 1000.0, env.Payload["totalSaved"], 1e-9)
	assert.InDelta(t, 4000.0, env.Payload["totalTarget"], 1e-9)
	assert.InDelta(t, 25.0, env.Payload["overallProgress"], 1e-9)

	goals := env.Payload["goals"].([]map[string]any)
	require.Len(t, goals, 2)
	assert.Equal(t, "Buffer", goals[0]["name"])
	assert.InDelta(t, 750.0, goals[1]["remaining"], 1e-9)
}

func TestGetTaxSummary(t *testing.T) {
	f := newFixture(t)
	f.seed(t, store.TableIncomes, store.Row{"amount": 240000.0, "source": "Client", "date": "2024-02-10", "tax_rate": 20.0, "tax_amount": 40000.0})
	f.seed(t, store.TableExpenses, store.Row{"amount": 1200.0, "category": "Office", "date": "2024-02-11", "tax_rate": 20.0, "tax_amount": 200.0})
	f.seed(t, store.TableIncomes, store.Row{"amount": 5000.0, "source": "Old", "date": "2023-12-31"})

	env := f.invoke(t, "getTaxSummary", nil)
	require.Equal(t, tool.StatusSuccess, env.Status, env.Message)
	s := env.Payload["summary"].(ledger.TaxSummary)
	assert.Equal(t, "2024", s.Period)
	assert.InDelta(t, 40000.0, s.CollectedVAT, 1e-9)
	assert.InDelta(t, 200.0, s.DeductibleVAT, 1e-9)
	assert.InDelta(t, 39800.0, s.NetVAT, 1e-9)
	// Profit net of VAT: 200000 - 1000.
	assert.InDelta(t, 199000.0, s.IncomeTax.Profit, 1e-9)
	assert.InDelta(t, 158000*0.15+41000*0.20, s.IncomeTax.Tax, 1e-6)

	env = f.invoke(t, "getTaxSummary", map[string]any{"year": 2023, "month": 12})
	s = env.Payload["summary"].(ledger.TaxSummary)
	assert.Equal(t, "12/2023", s.Period)
	assert.InDelta(t, 5000.0, s.TotalIncome, 1e-9)
}

func TestGetTaxDeadlines(t *testing.T) {
	f := newFixture(t)
	env := f.invoke(t, "getTaxDeadlines", nil)
	require.Equal(t, tool.StatusSuccess, env.Status, env.Message)
	assert.Contains(t, jsonOf(t, env), `"date":"2024-02-28"`)
}
