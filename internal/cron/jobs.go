package cron

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/kaysia/kasa/internal/audit"
	"github.com/kaysia/kasa/internal/tool"
)

// Invoker runs a tool by name. *tool.Dispatcher implements it.
type Invoker interface {
	Invoke(ctx context.Context, name string, raw json.RawMessage) tool.Envelope
}

// Verifier checks the audit chain. *audit.Journal implements it.
type Verifier interface {
	Verify(ctx context.Context) (audit.VerifyReport, error)
}

// ReminderCall is one read tool the reminder digest runs.
type ReminderCall struct {
	Tool      string
	Arguments json.RawMessage
}

// Digest is the outcome of one reminder run.
type Digest struct {
	Tool    string
	Status  tool.Status
	Message string
	// Counts holds the length of every list in the payload, keyed by
	// payload field (e.g. "payments": 3).
	Counts map[string]int
	// Envelope is the full tool result.
	Envelope tool.Envelope
}

// ReminderJob runs read tools through the dispatcher and reports what is
// due. It never calls mutating tools.
type ReminderJob struct {
	Invoker      Invoker
	Calls        []ReminderCall
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "0 9 * * *"
	// Notify receives each digest after it is logged. Optional.
	Notify func(ctx context.Context, d Digest)
}

var _ Job = (*ReminderJob)(nil)

// DefaultReminderCalls are the reminder tools run when none are configured.
func DefaultReminderCalls(days int) []ReminderCall {
	return []ReminderCall{
		{Tool: "getUpcomingPayments", Arguments: json.RawMessage(fmt.Sprintf(`{"days":%d}`, days))},
		{Tool: "getTaxDeadlines"},
	}
}

// Name implements Job.
func (j *ReminderJob) Name() string { return "reminders" }

// Schedule implements Job.
func (j *ReminderJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 9 * * *"
}

// Run invokes each call and logs a digest line per tool. Tool errors are
// collected; later calls still run.
func (j *ReminderJob) Run(ctx context.Context) error {
	var errs []error
	for _, c := range j.Calls {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cron: reminders cancelled: %w", err)
		}
		env := j.Invoker.Invoke(ctx, c.Tool, c.Arguments)
		d := Digest{Tool: c.Tool, Status: env.Status, Message: env.Message, Counts: counts(env.Payload), Envelope: env}

		if env.Status == tool.StatusError {
			errs = append(errs, fmt.Errorf("cron: reminder %s: %s", c.Tool, env.Message))
		} else {
			attrs := []any{"tool", c.Tool}
			for k, n := range d.Counts {
				attrs = append(attrs, k, n)
			}
			j.Logger.Info("cron: reminder digest", attrs...)
		}
		if j.Notify != nil {
			j.Notify(ctx, d)
		}
	}
	return errors.Join(errs...)
}

func counts(payload map[string]any) map[string]int {
	out := make(map[string]int)
	for k, v := range payload {
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice {
			out[k] = rv.Len()
		}
	}
	return out
}

// AuditVerifyJob re-verifies the audit chain and fails loudly when it is
// broken.
type AuditVerifyJob struct {
	Verifier     Verifier
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "30 3 * * *"
}

var _ Job = (*AuditVerifyJob)(nil)

// Name implements Job.
func (j *AuditVerifyJob) Name() string { return "audit_verify" }

// Schedule implements Job.
func (j *AuditVerifyJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "30 3 * * *"
}

// ErrChainBroken is returned when verification finds a tampered entry.
var ErrChainBroken = errors.New("audit chain broken")

// Run implements Job.
func (j *AuditVerifyJob) Run(ctx context.Context) error {
	rep, err := j.Verifier.Verify(ctx)
	if err != nil {
		return fmt.Errorf("cron: audit verify: %w", err)
	}
	if !rep.Valid {
		return fmt.Errorf("cron: %w at seq %d: %s", ErrChainBroken, rep.BrokeAt, rep.Reason)
	}
	j.Logger.Info("cron: audit chain verified", "entries", rep.Entries, "head_seq", rep.HeadSeq)
	return nil
}
