package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaysia/kasa/internal/audit"
)

// Applied is what a write tool reports after a successful mutation.
type Applied struct {
	Message string
	Record  any
	// Updated selects the updatedRecord envelope field instead of record.
	Updated bool
	// Audit describes the mutation. AfterState defaults to Record.
	Audit audit.Entry
}

// Write declares a mutating tool over typed arguments A. The dryRun
// argument is added to Schema automatically.
type Write[A any] struct {
	Name        string
	Description string
	Schema      json.RawMessage
	// Overwrites marks tools that change existing rows.
	Overwrites  bool

	// Decode builds A from schema-validated arguments. Violations may be
	// recorded on args instead of returned.
	Decode func(args *Args) (A, error)

	// Propose describes what Apply would do. It must not write; it may
	// read the store to phrase the message.
	Propose func(ctx context.Context, a A) (string, error)

	// Apply performs the mutation. The before-state read and the write
	// happen here, in that order. Compensating writes after a partial
	// failure must not depend on ctx staying alive.
	Apply func(ctx context.Context, a A) (Applied, error)

	// Audit receives one entry per successful Apply.
	Audit *audit.Recorder
}

var _ Tool = (*Write[struct{}])(nil)

// Definition implements Tool.
func (w *Write[A]) Definition() Definition {
	schema, err := withDryRun(w.Schema)
	if err != nil {
		schema = w.Schema
	}
	return Definition{Name: w.Name, Description: w.Description, Schema: schema, Mutating: true, Destructive: w.Overwrites}
}

// Invoke implements Tool. This is the untrusted boundary: an absent dryRun
// means ModePropose.
func (w *Write[A]) Invoke(ctx context.Context, args *Args) (Envelope, error) {
	mode, err := args.Mode()
	if err != nil {
		return Envelope{}, err
	}
	a, err := decode(w.Decode, args)
	if err != nil {
		return Envelope{}, err
	}
	return w.Run(ctx, mode, a)
}

// Run executes the protocol for already-typed arguments. A proposal never
// touches the store or the audit log; an apply writes exactly one audit
// entry once the mutation succeeded.
func (w *Write[A]) Run(ctx context.Context, mode Mode, a A) (Envelope, error) {
	switch mode {
	case ModePropose:
		msg, err := w.Propose(ctx, a)
		if err != nil {
			return Envelope{}, err
		}
		return Envelope{Status: StatusProposed, Action: w.Name, Params: a, Message: msg}, nil

	case ModeApply:
		res, err := w.Apply(ctx, a)
		if err != nil {
			return Envelope{}, err
		}
		entry := res.Audit
		if entry.AfterState == nil {
			entry.AfterState = res.Record
		}
		// The mutation is committed; a caller that went away must not
		// cost the audit entry.
		w.Audit.Record(context.WithoutCancel(ctx), entry)

		env := Envelope{Status: StatusSuccess, Message: res.Message}
		if res.Updated {
			env.UpdatedRecord = res.Record
		} else {
			env.Record = res.Record
		}
		return env, nil

	default:
		return Envelope{}, fmt.Errorf("tool %s: invalid mode %s", w.Name, mode)
	}
}

// Read declares a query tool over typed arguments A. Read tools never
// mutate and never audit.
type Read[A any] struct {
	Name        string
	Description string
	Schema      json.RawMessage
	Decode      func(args *Args) (A, error)
	Run         func(ctx context.Context, a A) (Envelope, error)
}

var _ Tool = (*Read[struct{}])(nil)

// Definition implements Tool.
func (r *Read[A]) Definition() Definition {
	return Definition{Name: r.Name, Description: r.Description, Schema: r.Schema}
}

// Invoke implements Tool.
func (r *Read[A]) Invoke(ctx context.Context, args *Args) (Envelope, error) {
	a, err := decode(r.Decode, args)
	if err != nil {
		return Envelope{}, err
	}
	env, err := r.Run(ctx, a)
	if err != nil {
		return Envelope{}, err
	}
	if env.Status == "" {
		env.Status = StatusSuccess
	}
	return env, nil
}

// NoArgs is the argument type of tools without parameters.
type NoArgs struct{}

// DecodeNone is the Decode function for NoArgs tools.
func DecodeNone(*Args) (NoArgs, error) { return NoArgs{}, nil }

// EmptySchema is the schema of tools without parameters.
var EmptySchema = json.RawMessage(`{"type":"object","properties":{}}`)

func decode[A any](fn func(*Args) (A, error), args *Args) (A, error) {
	var zero A
	if fn == nil {
		return zero, args.Err()
	}
	a, err := fn(args)
	if verr := args.Err(); verr != nil || err != nil {
		return zero, errors.Join(verr, err)
	}
	return a, nil
}

// withDryRun adds the dryRun property to an object schema.
func withDryRun(schema json.RawMessage) (json.RawMessage, error) {
	var m map[string]any
	if err := json.Unmarshal(schema, &m); err != nil {
		return nil, err
	}
	props, _ := m["properties"].(map[string]any)
	if props == nil {
		props = map[string]any{}
	}
	props[dryRunField] = map[string]any{
		"type":        "boolean",
		"default":     true,
		"description": "When true (the default) only describe the change. Set to false to apply it after the user confirmed.",
	}
	m["properties"] = props
	return json.Marshal(m)
}
