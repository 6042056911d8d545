package tool

import "fmt"

// Mode states a write tool's intent explicitly. The zero value is invalid so
// that every typed call site has to choose.
type Mode int

const (
	// ModeUnset is the invalid zero value.
	ModeUnset Mode = iota
	// ModePropose computes and describes the mutation without applying it.
	ModePropose
	// ModeApply performs the mutation and records it in the audit log.
	ModeApply
)

func (m Mode) String() string {
	switch m {
	case ModePropose:
		return "propose"
	case ModeApply:
		return "apply"
	default:
		return "unset"
	}
}

// dryRunField is the boundary argument that selects the mode.
const dryRunField = "dryRun"

// ModeFromDryRun maps the untrusted dryRun argument onto a Mode. An absent
// or null value proposes; anything other than a boolean is rejected.
func ModeFromDryRun(v any, present bool) (Mode, error) {
	if !present || v == nil {
		return ModePropose, nil
	}
	b, ok := v.(bool)
	if !ok {
		return ModeUnset, &ValidationError{Field: dryRunField, Reason: fmt.Sprintf("must be a boolean, got %T", v)}
	}
	if b {
		return ModePropose, nil
	}
	return ModeApply, nil
}
