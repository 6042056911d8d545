package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/tool"
)

// BudgetLine is one category of getBudgetStatus.
type BudgetLine struct {
	Category   string  `json:"category"`
	Limit      float64 `json:"limit"`
	Spent      float64 `json:"spent"`
	Remaining  float64 `json:"remaining"`
	Percentage int     `json:"percentage"`
}

// budgetLines computes usage for every category carrying a positive limit.
// Categories without a limit are not budgets and are left out.
func budgetLines(categories, expenses []store.Row) []BudgetLine {
	spent := make(map[string]float64)
	for _, e := range expenses {
		spent[e.String("category")] += e.Float("amount")
	}
	out := make([]BudgetLine, 0, len(categories))
	for _, c := range categories {
		limit := c.Float("monthly_limit")
		if limit <= 0 {
			continue
		}
		s := spent[c.String("name")]
		out = append(out, BudgetLine{
			Category:   c.String("name"),
			Limit:      limit,
			Spent:      s,
			Remaining:  limit - s,
			Percentage: int(math.Round(s / limit * 100)),
		})
	}
	return out
}

func (l *Ledger) getBudgetStatus() tool.Tool {
	return &tool.Read[PeriodArgs]{
		Name:        "getBudgetStatus",
		Description: "Get spent versus limit for every category with a monthly budget. Defaults to the current month.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"month": {"type": "integer", "minimum": 1, "maximum": 12, "description": "Month (1-12)"},
				"year": {"type": "integer", "minimum": 1900, "maximum": 9999}
			}
		}`),
		Decode: func(a *tool.Args) (PeriodArgs, error) {
			now := l.now()
			return PeriodArgs{
				Month: a.OptInt("month", int(now.Month()), 1, 12),
				Year:  a.OptInt("year", now.Year(), 1900, 9999),
			}, nil
		},
		Run: func(ctx context.Context, a PeriodArgs) (tool.Envelope, error) {
			start, end := monthBounds(a.Year, a.Month)
			expenses, err := l.selectRows(ctx, store.TableExpenses, store.Where(
				store.Gte("date", start),
				store.Lte("date", end),
			))
			if err != nil {
				return tool.Envelope{}, err
			}
			categories, err := l.selectRows(ctx, store.TableCategories,
				store.Where(store.Gt("monthly_limit", 0.0)).Ordered("name", false))
			if err != nil {
				return tool.Envelope{}, err
			}
			return tool.Success("", map[string]any{
				"period":  period(a.Year, a.Month),
				"budgets": budgetLines(categories, expenses),
			}), nil
		},
	}
}

// SetBudgetArgs are the arguments of setBudgetLimit.
type SetBudgetArgs struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

func (l *Ledger) setBudgetLimit() tool.Tool {
	return &tool.Write[SetBudgetArgs]{
		Name:        "setBudgetLimit",
		Overwrites:  true,
		Description: "Set the monthly budget limit of a category, creating the category when missing. A limit of 0 removes the budget.",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["category", "amount"],
			"properties": {
				"category": {"type": "string", "minLength": 1, "description": "Category name"},
				"amount": {"type": "number", "minimum": 0, "description": "Limit amount"}
			}
		}`),
		Decode: func(a *tool.Args) (SetBudgetArgs, error) {
			return SetBudgetArgs{Category: a.String("category"), Amount: a.NonNegative("amount")}, nil
		},
		Propose: func(ctx context.Context, a SetBudgetArgs) (string, error) {
			existing, ok, err := store.First(ctx, l.deps.Store, store.TableCategories, store.Eq("name", a.Category))
			if err != nil {
				return "", tool.StoreFailure("select categories", err)
			}
			if !ok {
				return fmt.Sprintf("PREVIEW: Create category '%s' with a monthly budget limit of %s.", a.Category, l.money(a.Amount)), nil
			}
			return fmt.Sprintf("PREVIEW: Set monthly budget limit for '%s' from %s to %s.",
				a.Category, l.money(existing.Float("monthly_limit")), l.money(a.Amount)), nil
		},
		Apply: func(ctx context.Context, a SetBudgetArgs) (tool.Applied, error) {
			existing, ok, err := store.First(ctx, l.deps.Store, store.TableCategories, store.Eq("name", a.Category))
			if err != nil {
				return tool.Applied{}, tool.StoreFailure("select categories", err)
			}
			if !ok {
				row, err := l.insert(ctx, store.TableCategories, store.Row{
					"name":          a.Category,
					"type":          "expense",
					"monthly_limit": a.Amount,
				})
				if err != nil {
					return tool.Applied{}, err
				}
				return tool.Applied{
					Message: fmt.Sprintf("Budget set for %s.", a.Category),
					Record:  row,
					Audit: audit.Entry{
						ActionType: "set_budget",
						EntityID:   row.ID(),
						Reason:     "Set budget for " + a.Category,
					},
				}, nil
			}

			row, err := l.updateOne(ctx, store.TableCategories, "category", existing.ID(), store.Row{"monthly_limit": a.Amount})
			if err != nil {
				return tool.Applied{}, err
			}
			return tool.Applied{
				Message: fmt.Sprintf("Budget updated for %s.", a.Category),
				Record:  row,
				Audit: audit.Entry{
					ActionType:  "set_budget",
					EntityID:    existing.ID(),
					BeforeState: existing,
					Reason:      "Updated budget for " + a.Category,
				},
			}, nil
		},
		Audit: l.deps.Audit,
	}
}
