// Package tool implements the assistant's invocation core: a closed, sealed
// registry of schema-validated tools, typed argument decoding, the
// propose-then-apply protocol for write tools and a dispatcher that always
// answers with an Envelope.
package tool

import (
	"context"
	"encoding/json"
)

// Definition describes a tool to callers. It is immutable once registered.
type Definition struct {
	Name        string
	Description string
	// Schema is the JSON Schema of the argument object.
	Schema json.RawMessage
	// Mutating is true for write tools, whose schema carries dryRun.
	Mutating bool
	// Destructive is true for write tools that overwrite existing rows
	// rather than only adding new ones.
	Destructive bool
}

// Tool is a named operation the dispatcher can route to. Implementations
// are normally built with Read or Write rather than by hand.
type Tool interface {
	Definition() Definition

	// Invoke runs the tool on arguments that already passed schema
	// validation. Returned errors become error envelopes.
	Invoke(ctx context.Context, args *Args) (Envelope, error)
}
