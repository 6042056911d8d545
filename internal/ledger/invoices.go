package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/store"
	"github.com/kaysia/kasa/internal/tool"
)

// Recurring invoice statuses.
const (
	InvoiceActive = "active"
	InvoicePaid   = "paid"
)

// InvoiceCategories is the closed set of recurring invoice categories.
var InvoiceCategories = []string{"energy", "water", "telecom", "rent", "tax", "other"}

// InvoiceTaxRates are the VAT rates an invoice may carry, in percent.
var InvoiceTaxRates = []float64{0, 1, 10, 20}

// CreateInvoiceArgs are the arguments of createRecurringInvoice.
type CreateInvoiceArgs struct {
	Name       string  `json:"name"`
	Provider   string  `json:"provider"`
	Amount     float64 `json:"amount"`
	DayOfMonth int     `json:"dayOfMonth"`
	Category   string  `json:"category"`
	TaxRate    float64 `json:"taxRate"`
}

func (l *Ledger) createRecurringInvoice() tool.Tool {
	return &tool.Write[CreateInvoiceArgs]{
		Name:        "createRecurringInvoice",
		Description: "Register a recurring monthly invoice such as rent or a utility bill.",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["name", "provider", "amount", "dayOfMonth", "category", "taxRate"],
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"provider": {"type": "string", "minLength": 1},
				"amount": {"type": "number", "minimum": 0, "description": "Monthly amount including VAT"},
				"dayOfMonth": {"type": "integer", "minimum": 1, "maximum": 31},
				"category": {"type": "string", "enum": ["energy", "water", "telecom", "rent", "tax", "other"]},
				"taxRate": {"type": "number", "enum": [0, 1, 10, 20], "description": "VAT rate in percent included in the amount"}
			}
		}`),
		Decode: func(a *tool.Args) (CreateInvoiceArgs, error) {
			return CreateInvoiceArgs{
				Name:       a.String("name"),
				Provider:   a.String("provider"),
				Amount:     a.Positive("amount"),
				DayOfMonth: a.Int("dayOfMonth", 1, 31),
				Category:   a.Enum("category", InvoiceCategories...),
				TaxRate:    a.NumberEnum("taxRate", InvoiceTaxRates...),
			}, nil
		},
		Propose: func(_ context.Context, a CreateInvoiceArgs) (string, error) {
			return fmt.Sprintf("PREVIEW: Register recurring invoice '%s' from %s for %s due on day %d of every month (%s, VAT %v%% included).",
				a.Name, a.Provider, l.money(a.Amount), a.DayOfMonth, a.Category, a.TaxRate), nil
		},
		Apply: func(ctx context.Context, a CreateInvoiceArgs) (tool.Applied, error) {
			row, err := l.insert(ctx, store.TableRecurringExpenses, store.Row{
				"name":         a.Name,
				"provider":     a.Provider,
				"amount":       a.Amount,
				"day_of_month": a.DayOfMonth,
				"category":     a.Category,
				"tax_rate":     a.TaxRate,
				"status":       InvoiceActive,
			})
			if err != nil {
				return tool.Applied{}, err
			}
			return tool.Applied{
				Message: "Recurring invoice created successfully.",
				Record:  row,
				Audit: audit.Entry{
					ActionType: "create_recurring_invoice",
					EntityID:   row.ID(),
					Reason:     "Created via assistant",
				},
			}, nil
		},
		Audit: l.deps.Audit,
	}
}

// MarkInvoicePaidArgs are the arguments of markInvoicePaid.
type MarkInvoicePaidArgs struct {
	InvoiceID string `json:"invoiceId"`
	PaidAt    string `json:"paidAt"`
}

// checkUnpaid rejects a second payment of an invoice within the month of
// paidAt. Dates are validated YYYY-MM-DD strings, so the month is a prefix.
func checkUnpaid(inv store.Row, paidAt string) error {
	last := inv.String("last_paid_date")
	if len(last) >= 7 && len(paidAt) >= 7 && last[:7] == paidAt[:7] {
		return tool.Invalid("paidAt", "invoice %s was already paid on %s", inv.ID(), last)
	}
	return nil
}

// invoiceExpense is the expense row booked for a paid invoice. The invoice
// amount includes VAT, which is backed out as deductible.
func invoiceExpense(inv store.Row, paidAt, createdAt string) (store.Row, error) {
	gross, vat, err := vatSplit(inv.Float("amount"), inv.Float("tax_rate"), true)
	if err != nil {
		return nil, err
	}
	return store.Row{
		"amount":         gross,
		"recipient":      inv.String("provider"),
		"category":       inv.String("category"),
		"date":           paidAt,
		"description":    inv.String("name") + " (invoice payment)",
		"payment_method": "cash",
		"tax_rate":       inv.Float("tax_rate"),
		"tax_amount":     vat,
		"created_at":     createdAt,
	}, nil
}

func (l *Ledger) markInvoicePaid() tool.Tool {
	return &tool.Write[MarkInvoicePaidArgs]{
		Name:        "markInvoicePaid",
		Overwrites:  true,
		Description: "Mark a recurring invoice as paid for this month and book the matching expense with its deductible VAT.",
		Schema: json.RawMessage(`{
			"type": "object",
			"required": ["invoiceId"],
			"properties": {
				"invoiceId": {"type": "string", "format": "uuid", "description": "UUID of the recurring invoice"},
				"paidAt": {"type": "string", "format": "date", "description": "Payment date, defaults to today"}
			}
		}`),
		Decode: func(a *tool.Args) (MarkInvoicePaidArgs, error) {
			return MarkInvoicePaidArgs{
				InvoiceID: a.ID("invoiceId"),
				PaidAt:    a.OptDate("paidAt", l.todayDate()),
			}, nil
		},
		Propose: func(ctx context.Context, a MarkInvoicePaidArgs) (string, error) {
			inv, err := l.find(ctx, store.TableRecurringExpenses, "invoice", a.InvoiceID)
			if err != nil {
				return "", err
			}
			if err := checkUnpaid(inv, a.PaidAt); err != nil {
				return "", err
			}
			exp, err := invoiceExpense(inv, a.PaidAt, "")
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("PREVIEW: Mark invoice '%s' (%s) as paid on %s and book an expense of %s with %s deductible VAT.",
				inv.String("name"), inv.String("provider"), a.PaidAt, l.money(exp.Float("amount")), l.money(exp.Float("tax_amount"))), nil
		},
		Apply: func(ctx context.Context, a MarkInvoicePaidArgs) (tool.Applied, error) {
			before, err := l.find(ctx, store.TableRecurringExpenses, "invoice", a.InvoiceID)
			if err != nil {
				return tool.Applied{}, err
			}
			if err := checkUnpaid(before, a.PaidAt); err != nil {
				return tool.Applied{}, err
			}
			exp, err := invoiceExpense(before, a.PaidAt, l.timestamp())
			if err != nil {
				return tool.Applied{}, err
			}

			// Once the first write is issued the payment completes or is
			// reverted regardless of the caller.
			ctx = context.WithoutCancel(ctx)
			invoice, err := l.updateOne(ctx, store.TableRecurringExpenses, "invoice", a.InvoiceID, store.Row{
				"status":         InvoicePaid,
				"last_paid_date": a.PaidAt,
			})
			if err != nil {
				return tool.Applied{}, err
			}
			expense, err := l.insert(ctx, store.TableExpenses, exp)
			if err != nil {
				// Put the invoice back so the failure leaves no half-applied payment.
				_, rerr := l.deps.Store.Update(ctx, store.TableRecurringExpenses,
					[]store.Filter{store.Eq("id", a.InvoiceID)},
					store.Row{"status": before["status"], "last_paid_date": before["last_paid_date"]})
				return tool.Applied{}, errors.Join(err, rerr)
			}

			record := map[string]any{"invoice": invoice, "expense": expense}
			return tool.Applied{
				Message: "Invoice marked as paid and expense recorded.",
				Record:  record,
				Updated: true,
				Audit: audit.Entry{
					ActionType:  "mark_invoice_paid",
					EntityID:    a.InvoiceID,
					BeforeState: before,
					Reason:      "Invoice paid via assistant",
				},
			}, nil
		},
		Audit: l.deps.Audit,
	}
}
