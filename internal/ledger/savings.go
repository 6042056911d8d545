package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/tax"
	"github.com/kaysia/kasa/internal/tool"
)

// SavingsCategories is the closed set of savings goal categories.
var SavingsCategories = []string{"emergency", "investment", "holiday", "technology", "vehicle", "other"}

var categoryColors = map[string]string{
	"emergency":  "red",
	"investment": "green",
	"holiday":    "blue",
	"technology": "purple",
	"vehicle":    "orange",
	"other":      "gray",
}

// progress is current/target in percent with one decimal.
func progress(current, target float64) float64 {
	if target <= 0 {
		return 0
	}
	return math.Round(current/target*1000) / 10
}

func (l *Ledger) getSavingsStatus() tool.Tool {
	return &tool.Read[tool.NoArgs]{
		Name:        "getSavingsStatus",
		Description: "List savings goals with their progress and the overall totals.",
		Schema:      tool.EmptySchema,
		Decode:      tool.DecodeNone,
		Run: func(ctx context.Context, _ tool.NoArgs) (tool.Envelope, error) {
			goals, err := l.selectRows(ctx, store.TableSavings, store.Query{OrderBy: "name"})
			if err != nil {
				return tool.Envelope{}, err
			}
			out := make([]map[string]any, len(goals))
			for i, g := range goals {
				out[i] = map[string]any{
					"id":            g.ID(),
					"name":          g.String("name"),
					"category":      g.String("category"),
					"targetAmount":  g.Float("target_amount"),
					"currentAmount": g.Float("current_amount"),
					"remaining":     math.Max(g.Float("target_amount")-g.Float("current_amount"), 0),
					"progress":      progress(g.Float("current_amount"), g.Float("target_amount")),
					"deadline":      g["deadline"],
				}
			}
			saved := sum(goals, "current_amount")
			target := sum(goals, "target_amount")
			return tool.Success("", map[string]any{
				"totalSaved":      saved,
				"totalTarget":     target,
				"overallProgress": progress(saved, target),
				"goals":           out,
			}), nil
		},
	}
}

// CreateSavingsArgs are the arguments of createSavingsGoal.
type CreateSavingsArgs struct {
	Name          string  `json:"name"`
	TargetAmount  float64 `json:"targetAmount"`
	CurrentAmount float64 `json:"currentAmount"`
	Deadline      string  `json:"deadline,omitempty"`
	Category      string  `json:"category"`
}

func (l *Ledger) createSavingsGoal() tool.Tool {
	return &tool.Write[CreateSavingsArgs]{
		Name:        "createSavingsGoal",
		Description: "Create a savings goal.",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["name", "targetAmount", "category"],
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"targetAmount": {"type": "number", "minimum": 0, "description": "Target, greater than zero"},
				"currentAmount": {"type": "number", "minimum": 0, "default": 0},
				"deadline": {"type": "string", "format": "date"},
				"category": {"type": "string", "enum": ["emergency", "investment", "holiday", "technology", "vehicle", "other"]}
			}
		}`),
		Decode: func(a *tool.Args) (CreateSavingsArgs, error) {
			out := CreateSavingsArgs{
				Name:         a.String("name"),
				TargetAmount: a.Positive("targetAmount"),
				Deadline:     a.OptDate("deadline", ""),
				Category:     a.Enum("category", SavingsCategories...),
			}
			if a.Has("currentAmount") {
				out.CurrentAmount = a.NonNegative("currentAmount")
			}
			return out, nil
		},
		Propose: func(_ context.Context, a CreateSavingsArgs) (string, error) {
			msg := fmt.Sprintf("PREVIEW: Create savings goal '%s' (%s) with target %s, starting at %s",
				a.Name, a.Category, l.money(a.TargetAmount), l.money(a.CurrentAmount))
			if a.Deadline != "" {
				msg += ", deadline " + a.Deadline
			}
			return msg + ".", nil
		},
		Apply: func(ctx context.Context, a CreateSavingsArgs) (tool.Applied, error) {
			row, err := l.insert(ctx, store.TableSavings, store.Row{
				"name":           a.Name,
				"target_amount":  a.TargetAmount,
				"current_amount": a.CurrentAmount,
				"deadline":       nullable(a.Deadline),
				"category":       a.Category,
				"icon_color":     categoryColors[a.Category],
			})
			if err != nil {
				return tool.Applied{}, err
			}
			return tool.Applied{
				Message: "Savings goal created successfully.",
				Record:  row,
				Audit: audit.Entry{
					ActionType: "create_savings_goal",
					EntityID:   row.ID(),
					Reason:     "Created via assistant",
				},
			}, nil
		},
		Audit: l.deps.Audit,
	}
}

// AdjustSavingsArgs are the arguments of adjustSavingsBalance.
type AdjustSavingsArgs struct {
	GoalID string  `json:"goalId"`
	Delta  float64 `json:"delta"`
	Reason string  `json:"reason,omitempty"`
}

// adjusted returns the new balance or a validation error when it would go
// below zero.
func adjusted(goal store.Row, delta float64) (float64, error) {
	next := tax.Round2(goal.Float("current_amount") + delta)
	if next < 0 {
		return 0, tool.Invalid("delta", "would take the balance of %s below zero (current %v)", goal.String("name"), goal.Float("current_amount"))
	}
	return next, nil
}

func (l *Ledger) adjustSavingsBalance() tool.Tool {
	return &tool.Write[AdjustSavingsArgs]{
		Name:        "adjustSavingsBalance",
		Overwrites:  true,
		Description: "Deposit into (positive delta) or withdraw from (negative delta) a savings goal. The balance never goes below zero.",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["goalId", "delta"],
			"properties": {
				"goalId": {"type": "string", "format": "uuid"},
				"delta": {"type": "number", "description": "Amount to add, negative to withdraw; must not be zero"},
				"reason": {"type": "string"}
			}
		}`),
		Decode: func(a *tool.Args) (AdjustSavingsArgs, error) {
			out := AdjustSavingsArgs{
				GoalID: a.ID("goalId"),
				Delta:  a.Number("delta"),
				Reason: a.OptString("reason", ""),
			}
			if a.Has("delta") && out.Delta == 0 {
				return out, tool.Invalid("delta", "must not be zero")
			}
			return out, nil
		},
		Propose: func(ctx context.Context, a AdjustSavingsArgs) (string, error) {
			goal, err := l.find(ctx, store.TableSavings, "savings goal", a.GoalID)
			if err != nil {
				return "", err
			}
			next, err := adjusted(goal, a.Delta)
			if err != nil {
				return "", err
			}
			verb := "Deposit"
			if a.Delta < 0 {
				verb = "Withdraw"
			}
			return fmt.Sprintf("PREVIEW: %s %s on savings goal '%s'; balance goes from %s to %s.",
				verb, l.money(math.Abs(a.Delta)), goal.String("name"), l.money(goal.Float("current_amount")), l.money(next)), nil
		},
		Apply: func(ctx context.Context, a AdjustSavingsArgs) (tool.Applied, error) {
			before, err := l.find(ctx, store.TableSavings, "savings goal", a.GoalID)
			if err != nil {
				return tool.Applied{}, err
			}
			next, err := adjusted(before, a.Delta)
			if err != nil {
				return tool.Applied{}, err
			}
			after, err := l.updateOne(ctx, store.TableSavings, "savings goal", a.GoalID, store.Row{"current_amount": next})
			if err != nil {
				return tool.Applied{}, err
			}
			return tool.Applied{
				Message: "Savings balance updated.",
				Record:  after,
				Updated: true,
				Audit: audit.Entry{
					ActionType:  "adjust_savings_balance",
					EntityID:    a.GoalID,
					BeforeState: before,
					Reason:      orDefault(a.Reason, "Adjusted via assistant"),
				},
			}, nil
		},
		Audit: l.deps.Audit,
	}
}
