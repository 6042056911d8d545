package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/tool"
)

// PeriodArgs name a calendar month.
type PeriodArgs struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func (l *Ledger) getCashflow() tool.Tool {
	return &tool.Read[PeriodArgs]{
		Name:        "getCashflow",
		Description: "Get income and expense totals and rows for a calendar month.",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["month", "year"],
			"properties": {
				"month": {"type": "integer", "minimum": 1, "maximum": 12, "description": "Month number (1-12)"},
				"year": {"type": "integer", "minimum": 1900, "maximum": 9999, "description": "Year (e.g. 2024)"}
			}
		}`),
		Decode: func(a *tool.Args) (PeriodArgs, error) {
			return PeriodArgs{Month: a.Int("month", 1, 12), Year: a.Int("year", 1900, 9999)}, nil
		},
		Run: func(ctx context.Context, a PeriodArgs) (tool.Envelope, error) {
			incomes, expenses, err := l.monthRows(ctx, a.Year, a.Month)
			if err != nil {
				return tool.Envelope{}, err
			}
			totalIncome := sum(incomes, "amount")
			totalExpense := sum(expenses, "amount")
			return tool.Success("", map[string]any{
				"period":       period(a.Year, a.Month),
				"totalIncome":  totalIncome,
				"totalExpense": totalExpense,
				"net":          totalIncome - totalExpense,
				"details": map[string]any{
					"incomes":  list(incomes),
					"expenses": list(expenses),
				},
			}), nil
		},
	}
}

// monthRows returns the incomes and expenses dated within the month.
func (l *Ledger) monthRows(ctx context.Context, year, month int) (incomes, expenses []store.Row, err error) {
	start, end := monthBounds(year, month)
	return l.rangeRows(ctx, start, end)
}

func (l *Ledger) rangeRows(ctx context.Context, from, to string) (incomes, expenses []store.Row, err error) {
	q := store.Where(store.Gte("date", from), store.Lte("date", to)).Ordered("date", false)
	if incomes, err = l.selectRows(ctx, store.TableIncomes, q); err != nil {
		return nil, nil, err
	}
	if expenses, err = l.selectRows(ctx, store.TableExpenses, q); err != nil {
		return nil, nil, err
	}
	return incomes, expenses, nil
}

// CreateExpenseArgs are the arguments of createExpense.
type CreateExpenseArgs struct {
	Amount        float64 `json:"amount"`
	Category      string  `json:"category"`
	Recipient     string  `json:"recipient,omitempty"`
	Note          string  `json:"note,omitempty"`
	Date          string  `json:"date"`
	PaymentMethod string  `json:"paymentMethod,omitempty"`
	TaxRate       float64 `json:"taxRate"`
	TaxIncluded   bool    `json:"taxIncluded"`
}

func (l *Ledger) createExpense() tool.Tool {
	return &tool.Write[CreateExpenseArgs]{
		Name:        "createExpense",
		Description: "Record a new expense. With a tax rate the VAT portion is derived, backed out of the amount when taxIncluded is true (the default).",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["amount", "category", "date"],
			"properties": {
				"amount": {"type": "number", "minimum": 0, "description": "Amount, greater than zero"},
				"category": {"type": "string", "minLength": 1},
				"recipient": {"type": "string", "description": "Who was paid"},
				"note": {"type": "string"},
				"date": {"type": "string", "format": "date"},
				"paymentMethod": {"type": "string"},
				"taxRate": {"type": "number", "minimum": 0, "maximum": 100, "description": "VAT rate in percent"},
				"taxIncluded": {"type": "boolean", "default": true}
			}
		}`),
		Decode: func(a *tool.Args) (CreateExpenseArgs, error) {
			return CreateExpenseArgs{
				Amount:        a.Positive("amount"),
				Category:      a.String("category"),
				Recipient:     a.OptString("recipient", ""),
				Note:          a.OptString("note", ""),
				Date:          a.Date("date"),
				PaymentMethod: a.OptString("paymentMethod", ""),
				TaxRate:       a.NumberIn("taxRate", 0, 0, 100),
				TaxIncluded:   a.OptBool("taxIncluded", true),
			}, nil
		},
		Propose: func(_ context.Context, a CreateExpenseArgs) (string, error) {
			gross, vat, err := vatSplit(a.Amount, a.TaxRate, a.TaxIncluded)
			if err != nil {
				return "", err
			}
			msg := fmt.Sprintf("PREVIEW: Create expense of %s for %s (%s) on %s.",
				l.money(gross), orDefault(a.Recipient, "Unknown"), a.Category, a.Date)
			if vat > 0 {
				msg += fmt.Sprintf(" Deductible VAT: %s.", l.money(vat))
			}
			return msg, nil
		},
		Apply: func(ctx context.Context, a CreateExpenseArgs) (tool.Applied, error) {
			gross, vat, err := vatSplit(a.Amount, a.TaxRate, a.TaxIncluded)
			if err != nil {
				return tool.Applied{}, err
			}
			row, err := l.insert(ctx, store.TableExpenses, store.Row{
				"amount":         gross,
				"category":       a.Category,
				"recipient":      orDefault(a.Recipient, "Unknown"),
				"description":    nullable(a.Note),
				"date":           a.Date,
				"payment_method": nullable(a.PaymentMethod),
				"tax_rate":       a.TaxRate,
				"tax_amount":     vat,
				"created_at":     l.timestamp(),
			})
			if err != nil {
				return tool.Applied{}, err
			}
			return tool.Applied{
				Message: "Expense created successfully.",
				Record:  row,
				Audit: audit.Entry{
					ActionType: "create_expense",
					EntityID:   row.ID(),
					Reason:     "Created via assistant",
				},
			}, nil
		},
		Audit: l.deps.Audit,
	}
}

// CreateIncomeArgs are the arguments of createIncome.
type CreateIncomeArgs struct {
	Amount      float64 `json:"amount"`
	Source      string  `json:"source"`
	Category    string  `json:"category"`
	Note        string  `json:"note,omitempty"`
	Date        string  `json:"date"`
	TaxRate     float64 `json:"taxRate"`
	TaxIncluded bool    `json:"taxIncluded"`
}

func (l *Ledger) createIncome() tool.Tool {
	return &tool.Write[CreateIncomeArgs]{
		Name:        "createIncome",
		Description: "Record a new income. With a tax rate the collected VAT portion is derived like for expenses.",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["amount", "source", "date"],
			"properties": {
				"amount": {"type": "number", "minimum": 0, "description": "Amount, greater than zero"},
				"source": {"type": "string", "minLength": 1},
				"category": {"type": "string", "description": "Defaults to General"},
				"note": {"type": "string"},
				"date": {"type": "string", "format": "date"},
				"taxRate": {"type": "number", "minimum": 0, "maximum": 100},
				"taxIncluded": {"type": "boolean", "default": true}
			}
		}`),
		Decode: func(a *tool.Args) (CreateIncomeArgs, error) {
			return CreateIncomeArgs{
				Amount:      a.Positive("amount"),
				Source:      a.String("source"),
				Category:    orDefault(a.OptString("category", ""), "General"),
				Note:        a.OptString("note", ""),
				Date:        a.Date("date"),
				TaxRate:     a.NumberIn("taxRate", 0, 0, 100),
				TaxIncluded: a.OptBool("taxIncluded", true),
			}, nil
		},
		Propose: func(_ context.Context, a CreateIncomeArgs) (string, error) {
			gross, _, err := vatSplit(a.Amount, a.TaxRate, a.TaxIncluded)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("PREVIEW: Create income of %s from %s (%s) on %s.",
				l.money(gross), a.Source, a.Category, a.Date), nil
		},
		Apply: func(ctx context.Context, a CreateIncomeArgs) (tool.Applied, error) {
			gross, vat, err := vatSplit(a.Amount, a.TaxRate, a.TaxIncluded)
			if err != nil {
				return tool.Applied{}, err
			}
			row, err := l.insert(ctx, store.TableIncomes, store.Row{
				"amount":      gross,
				"source":      a.Source,
				"category":    a.Category,
				"description": nullable(a.Note),
				"date":        a.Date,
				"tax_rate":    a.TaxRate,
				"tax_amount":  vat,
				"created_at":  l.timestamp(),
			})
			if err != nil {
				return tool.Applied{}, err
			}
			return tool.Applied{
				Message: "Income created successfully.",
				Record:  row,
				Audit: audit.Entry{
					ActionType: "create_income",
					EntityID:   row.ID(),
					Reason:     "Created via assistant",
				},
			}, nil
		},
		Audit: l.deps.Audit,
	}
}
