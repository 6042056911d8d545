package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/tax"
	"github.com/kaysia/kasa/internal/tool"
)

// TaxPeriodArgs select a year, or one month of it when Month is set.
type TaxPeriodArgs struct {
	Year  int `json:"year"`
	Month int `json:"month,omitempty"`
}

func (a TaxPeriodArgs) bounds() (from, to, label string) {
	if a.Month == 0 {
		return fmt.Sprintf("%04d-01-01", a.Year), fmt.Sprintf("%04d-12-31", a.Year), fmt.Sprint(a.Year)
	}
	from, to = monthBounds(a.Year, a.Month)
	return from, to, period(a.Year, a.Month)
}

// TaxSummary is the payload of getTaxSummary.
type TaxSummary struct {
	Period       string  `json:"period"`
	TotalIncome  float64 `json:"totalIncome"`
	TotalExpense float64 `json:"totalExpense"`
	// CollectedVAT is the VAT contained in incomes.
	CollectedVAT float64 `json:"collectedVat"`
	// DeductibleVAT is the VAT contained in expenses.
	DeductibleVAT float64 `json:"deductibleVat"`
	// NetVAT is payable when positive and carried forward when negative.
	NetVAT    float64      `json:"netVat"`
	IncomeTax tax.Estimate `json:"incomeTax"`
}

// summarize estimates taxes over the rows. Income tax is assessed on
// amounts net of VAT.
func summarize(label string, incomes, expenses []store.Row, brackets tax.Brackets) TaxSummary {
	s := TaxSummary{
		Period:        label,
		TotalIncome:   sum(incomes, "amount"),
		TotalExpense:  sum(expenses, "amount"),
		CollectedVAT:  tax.Round2(sum(incomes, "tax_amount")),
		DeductibleVAT: tax.Round2(sum(expenses, "tax_amount")),
	}
	s.NetVAT = tax.Round2(s.CollectedVAT - s.DeductibleVAT)
	s.IncomeTax = tax.EstimateIncomeTax(s.TotalIncome-s.CollectedVAT, s.TotalExpense-s.DeductibleVAT, brackets)
	return s
}

func (l *Ledger) getTaxSummary() tool.Tool {
	return &tool.Read[TaxPeriodArgs]{
		Name:        "getTaxSummary",
		Description: "Summarize VAT collected and deductible and estimate progressive income tax for a year (default current) or one month of it.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"year": {"type": "integer", "minimum": 1900, "maximum": 9999},
				"month": {"type": "integer", "minimum": 1, "maximum": 12, "description": "Restrict to one month"}
			}
		}`),
		Decode: func(a *tool.Args) (TaxPeriodArgs, error) {
			return TaxPeriodArgs{
				Year:  a.OptInt("year", l.now().Year(), 1900, 9999),
				Month: a.OptInt("month", 0, 1, 12),
			}, nil
		},
		Run: func(ctx context.Context, a TaxPeriodArgs) (tool.Envelope, error) {
			from, to, label := a.bounds()
			incomes, expenses, err := l.rangeRows(ctx, from, to)
			if err != nil {
				return tool.Envelope{}, err
			}
			s := summarize(label, incomes, expenses, l.deps.Brackets)
			return tool.Success("", map[string]any{"summary": s}), nil
		},
	}
}

func (l *Ledger) getTaxDeadlines() tool.Tool {
	return &tool.Read[tool.NoArgs]{
		Name:        "getTaxDeadlines",
		Description: "List the next monthly VAT, provisional tax and annual income tax deadlines with the days remaining.",
		Schema:      tool.EmptySchema,
		Decode:      tool.DecodeNone,
		Run: func(context.Context, tool.NoArgs) (tool.Envelope, error) {
			return tool.Success("", map[string]any{"deadlines": tax.NextDeadlines(l.now())}), nil
		},
	}
}
