package ledger

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/tool"
)

// maxCalendarDays bounds the span of one getCalendarEvents call.
const maxCalendarDays = 366

// Event kinds of the calendar.
const (
	EventIncome  = "income"
	EventExpense = "expense"
	EventDebt    = "debt"
	EventInvoice = "invoice"
)

// Event is one dated item of the calendar.
type Event struct {
	Date   string  `json:"date"`
	Type   string  `json:"type"`
	Title  string  `json:"title"`
	Amount float64 `json:"amount"`
	ID     string  `json:"id"`
	Status string  `json:"status,omitempty"`
}

// RangeArgs is an inclusive date range.
type RangeArgs struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (l *Ledger) getCalendarEvents() tool.Tool {
	return &tool.Read[RangeArgs]{
		Name:        "getCalendarEvents",
		Description: "List incomes, expenses, debt due dates and recurring invoice due days between two dates (inclusive), sorted by date.",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["from", "to"],
			"properties": {
				"from": {"type": "string", "format": "date"},
				"to": {"type": "string", "format": "date"}
			}
		}`),
		Decode: func(a *tool.Args) (RangeArgs, error) {
			r := RangeArgs{From: a.Date("from"), To: a.Date("to")}
			if r.From == "" || r.To == "" {
				return r, nil
			}
			days, _ := daysBetween(r.From, r.To)
			switch {
			case days < 0:
				return r, tool.Invalid("to", "must not be before from")
			case days > maxCalendarDays:
				return r, tool.Invalid("to", "range must not exceed %d days", maxCalendarDays)
			}
			return r, nil
		},
		Run: func(ctx context.Context, a RangeArgs) (tool.Envelope, error) {
			events, err := l.calendar(ctx, a.From, a.To)
			if err != nil {
				return tool.Envelope{}, err
			}
			return tool.Success("", map[string]any{
				"from":   a.From,
				"to":     a.To,
				"events": events,
			}), nil
		},
	}
}

func (l *Ledger) calendar(ctx context.Context, from, to string) ([]Event, error) {
	incomes, expenses, err := l.rangeRows(ctx, from, to)
	if err != nil {
		return nil, err
	}
	debts, err := l.selectRows(ctx, store.TableDebts, store.Where(
		store.Gte("due_date", from),
		store.Lte("due_date", to),
	))
	if err != nil {
		return nil, err
	}
	invoices, err := l.selectRows(ctx, store.TableRecurringExpenses, store.Query{})
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(incomes)+len(expenses)+len(debts))
	for _, r := range incomes {
		events = append(events, Event{Date: r.String("date"), Type: EventIncome, Title: r.String("source"), Amount: r.Float("amount"), ID: r.ID()})
	}
	for _, r := range expenses {
		events = append(events, Event{Date: r.String("date"), Type: EventExpense, Title: orDefault(r.String("recipient"), r.String("category")), Amount: r.Float("amount"), ID: r.ID()})
	}
	for _, r := range debts {
		events = append(events, Event{Date: r.String("due_date"), Type: EventDebt, Title: r.String("creditor"), Amount: r.Float("amount"), ID: r.ID(), Status: r.String("status")})
	}
	for _, r := range invoices {
		events = append(events, invoiceEvents(r, from, to)...)
	}

	slices.SortFunc(events, func(a, b Event) int {
		return cmp.Or(
			cmp.Compare(a.Date, b.Date),
			cmp.Compare(a.Type, b.Type),
			cmp.Compare(a.Title, b.Title),
		)
	})
	return events, nil
}

// invoiceEvents places a recurring invoice on its due day in every month
// touched by [from, to]. Days past a month's end fall on its last day.
func invoiceEvents(inv store.Row, from, to string) []Event {
	start, err1 := time.Parse(time.DateOnly, from)
	end, err2 := time.Parse(time.DateOnly, to)
	if err1 != nil || err2 != nil {
		return nil
	}
	day := inv.Int("day_of_month")
	lastPaid := inv.String("last_paid_date")

	var out []Event
	for m := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(end); m = m.AddDate(0, 1, 0) {
		last := m.AddDate(0, 1, -1).Day()
		due := m.AddDate(0, 0, min(day, last)-1)
		if due.Before(start) || due.After(end) {
			continue
		}
		status := "unpaid"
		if len(lastPaid) >= 7 && lastPaid[:7] == m.Format("2006-01") {
			status = InvoicePaid
		}
		out = append(out, Event{
			Date:   due.Format(time.DateOnly),
			Type:   EventInvoice,
			Title:  inv.String("name"),
			Amount: inv.Float("amount"),
			ID:     inv.ID(),
			Status: status,
		})
	}
	return out
}
