package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/tool"
)

// upcomingWindow is the look-ahead, in days, of the debt summary's
// upcoming count.
const upcomingWindow = 7

func (l *Ledger) getDebtSummary() tool.Tool {
	return &tool.Read[tool.NoArgs]{
		Name:        "getDebtSummary",
		Description: "Get a summary of all pending debts, including overdue and upcoming (next 7 days) counts.",
		Schema:      tool.EmptySchema,
		Decode:      tool.DecodeNone,
		Run: func(ctx context.Context, _ tool.NoArgs) (tool.Envelope, error) {
			debts, err := l.selectRows(ctx, store.TableDebts,
				store.Where(store.Eq("status", DebtPending)).Ordered("due_date", false))
			if err != nil {
				return tool.Envelope{}, err
			}

			today := l.todayDate()
			var overdue, upcoming int
			for _, d := range debts {
				days, ok := daysBetween(today, d.String("due_date"))
				switch {
				case !ok:
				case days < 0:
					overdue++
				case days <= upcomingWindow:
					upcoming++
				}
			}
			return tool.Success("", map[string]any{
				"totalDebt":     sum(debts, "amount"),
				"overdueCount":  overdue,
				"upcomingCount": upcoming,
				"debts":         list(debts),
			}), nil
		},
	}
}

// UpcomingArgs selects the look-ahead window of getUpcomingPayments.
type UpcomingArgs struct {
	Days int `json:"days"`
}

func (l *Ledger) getUpcomingPayments() tool.Tool {
	return &tool.Read[UpcomingArgs]{
		Name:        "getUpcomingPayments",
		Description: "Get pending debts due between today and today plus the given number of days, both inclusive.",
		Schema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"days": {"type": "integer", "minimum": 0, "maximum": 3650, "default": 7, "description": "Number of days to look ahead (default 7)"}
			}
		}`),
		Decode: func(a *tool.Args) (UpcomingArgs, error) {
			return UpcomingArgs{Days: a.OptInt("days", upcomingWindow, 0, 3650)}, nil
		},
		Run: func(ctx context.Context, a UpcomingArgs) (tool.Envelope, error) {
			from := l.today()
			to := from.AddDate(0, 0, a.Days)
			payments, err := l.selectRows(ctx, store.TableDebts, store.Where(
				store.Eq("status", DebtPending),
				store.Gte("due_date", from.Format(time.DateOnly)),
				store.Lte("due_date", to.Format(time.DateOnly)),
			).Ordered("due_date", false))
			if err != nil {
				return tool.Envelope{}, err
			}
			return tool.Success("", map[string]any{
				"daysLookingAhead": a.Days,
				"payments":         list(payments),
			}), nil
		},
	}
}

// MarkDebtPaidArgs are the arguments of markDebtPaid.
type MarkDebtPaidArgs struct {
	DebtID string  `json:"debtId"`
	PaidAt string  `json:"paidAt"`
	Amount float64 `json:"amount"`
}

func (l *Ledger) markDebtPaid() tool.Tool {
	return &tool.Write[MarkDebtPaidArgs]{
		Name:        "markDebtPaid",
		Overwrites:  true,
		Description: "Mark a specific debt as paid.",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["debtId", "paidAt", "amount"],
			"properties": {
				"debtId": {"type": "string", "format": "uuid", "description": "UUID of the debt"},
				"paidAt": {"type": "string", "format": "date", "description": "Payment date (YYYY-MM-DD)"},
				"amount": {"type": "number", "minimum": 0, "description": "Amount paid, greater than zero"}
			}
		}`),
		Decode: func(a *tool.Args) (MarkDebtPaidArgs, error) {
			return MarkDebtPaidArgs{
				DebtID: a.ID("debtId"),
				PaidAt: a.Date("paidAt"),
				Amount: a.Positive("amount"),
			}, nil
		},
		Propose: func(ctx context.Context, a MarkDebtPaidArgs) (string, error) {
			debt, err := l.find(ctx, store.TableDebts, "debt", a.DebtID)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("PREVIEW: Mark debt %s (%s, %s) as paid on %s with amount %s.",
				a.DebtID, debt.String("creditor"), l.money(debt.Float("amount")), a.PaidAt, l.money(a.Amount)), nil
		},
		Apply: func(ctx context.Context, a MarkDebtPaidArgs) (tool.Applied, error) {
			before, err := l.find(ctx, store.TableDebts, "debt", a.DebtID)
			if err != nil {
				return tool.Applied{}, err
			}
			after, err := l.updateOne(ctx, store.TableDebts, "debt", a.DebtID, store.Row{
				"status":      DebtPaid,
				"paid_at":     a.PaidAt,
				"paid_amount": a.Amount,
			})
			if err != nil {
				return tool.Applied{}, err
			}
			return tool.Applied{
				Message: "Debt marked as paid.",
				Record:  after,
				Updated: true,
				Audit: audit.Entry{
					ActionType:  "mark_debt_paid",
					EntityID:    a.DebtID,
					BeforeState: before,
					Reason:      "Marked as paid via assistant",
				},
			}, nil
		},
		Audit: l.deps.Audit,
	}
}

// UpdateDueDateArgs are the arguments of updateDebtDueDate.
type UpdateDueDateArgs struct {
	DebtID     string `json:"debtId"`
	NewDueDate string `json:"newDueDate"`
	Reason     string `json:"reason"`
}

func (l *Ledger) updateDebtDueDate() tool.Tool {
	return &tool.Write[UpdateDueDateArgs]{
		Name:        "updateDebtDueDate",
		Overwrites:  true,
		Description: "Move the due date of a debt.",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["debtId", "newDueDate", "reason"],
			"properties": {
				"debtId": {"type": "string", "format": "uuid", "description": "UUID of the debt"},
				"newDueDate": {"type": "string", "format": "date", "description": "New due date (YYYY-MM-DD)"},
				"reason": {"type": "string", "minLength": 1, "description": "Reason for the change"}
			}
		}`),
		Decode: func(a *tool.Args) (UpdateDueDateArgs, error) {
			return UpdateDueDateArgs{
				DebtID:     a.ID("debtId"),
				NewDueDate: a.Date("newDueDate"),
				Reason:     a.String("reason"),
			}, nil
		},
		Propose: func(ctx context.Context, a UpdateDueDateArgs) (string, error) {
			debt, err := l.find(ctx, store.TableDebts, "debt", a.DebtID)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("PREVIEW: Move the due date of debt %s (%s) from %s to %s. Reason: %s",
				a.DebtID, debt.String("creditor"), debt.String("due_date"), a.NewDueDate, a.Reason), nil
		},
		Apply: func(ctx context.Context, a UpdateDueDateArgs) (tool.Applied, error) {
			before, err := l.find(ctx, store.TableDebts, "debt", a.DebtID)
			if err != nil {
				return tool.Applied{}, err
			}
			after, err := l.updateOne(ctx, store.TableDebts, "debt", a.DebtID, store.Row{"due_date": a.NewDueDate})
			if err != nil {
				return tool.Applied{}, err
			}
			return tool.Applied{
				Message: "Due date updated.",
				Record:  after,
				Updated: true,
				Audit: audit.Entry{
					ActionType:  "update_due_date",
					EntityID:    a.DebtID,
					BeforeState: before,
					Reason:      a.Reason,
				},
			}, nil
		},
		Audit: l.deps.Audit,
	}
}

// CreateDebtArgs are the arguments of createDebt.
type CreateDebtArgs struct {
	Amount      float64 `json:"amount"`
	Creditor    string  `json:"creditor"`
	Category    string  `json:"category,omitempty"`
	DueDate     string  `json:"dueDate"`
	CreatedDate string  `json:"createdDate"`
	Description string  `json:"description,omitempty"`
}

func (l *Ledger) createDebt() tool.Tool {
	return &tool.Write[CreateDebtArgs]{
		Name:        "createDebt",
		Description: "Record a new pending debt.",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["amount", "creditor", "dueDate"],
			"properties": {
				"amount": {"type": "number", "minimum": 0, "description": "Amount owed, greater than zero"},
				"creditor": {"type": "string", "minLength": 1},
				"category": {"type": "string"},
				"dueDate": {"type": "string", "format": "date"},
				"createdDate": {"type": "string", "format": "date", "description": "Defaults to today"},
				"description": {"type": "string"}
			}
		}`),
		Decode: func(a *tool.Args) (CreateDebtArgs, error) {
			return CreateDebtArgs{
				Amount:      a.Positive("amount"),
				Creditor:    a.String("creditor"),
				Category:    a.OptString("category", ""),
				DueDate:     a.Date("dueDate"),
				CreatedDate: a.OptDate("createdDate", l.todayDate()),
				Description: a.OptString("description", ""),
			}, nil
		},
		Propose: func(_ context.Context, a CreateDebtArgs) (string, error) {
			return fmt.Sprintf("PREVIEW: Record a debt of %s to %s due on %s.", l.money(a.Amount), a.Creditor, a.DueDate), nil
		},
		Apply: func(ctx context.Context, a CreateDebtArgs) (tool.Applied, error) {
			row, err := l.insert(ctx, store.TableDebts, store.Row{
				"amount":       a.Amount,
				"creditor":     a.Creditor,
				"category":     nullable(a.Category),
				"due_date":     a.DueDate,
				"created_date": a.CreatedDate,
				"description":  nullable(a.Description),
				"status":       DebtPending,
			})
			if err != nil {
				return tool.Applied{}, err
			}
			return tool.Applied{
				Message: "Debt created successfully.",
				Record:  row,
				Audit: audit.Entry{
					ActionType: "create_debt",
					EntityID:   row.ID(),
					Reason:     "Created via assistant",
				},
			}, nil
		},
		Audit: l.deps.Audit,
	}
}
