package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Args holds schema-validated arguments and decodes them into typed values.
// Getters never panic: a violation is recorded as a *ValidationError, the
// zero value is returned and Err reports every violation at the end.
type Args struct {
	values map[string]any
	errs   []error
}

// ParseArgs decodes raw into an argument object. Absent or null input is
// the empty object; any other non-object is a validation error.
func ParseArgs(raw json.RawMessage) (*Args, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return NewArgs(nil), nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &ValidationError{Reason: "arguments are not valid JSON: " + err.Error()}
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ValidationError{Reason: "arguments must be a JSON object"}
	}
	return NewArgs(obj), nil
}

// NewArgs wraps an already decoded argument object.
func NewArgs(values map[string]any) *Args {
	if values == nil {
		values = map[string]any{}
	}
	return &Args{values: values}
}

// Err returns the violations recorded so far, or nil.
func (a *Args) Err() error { return joinValidation(a.errs) }

// Has reports whether name is present and not null.
func (a *Args) Has(name string) bool {
	v, ok := a.values[name]
	return ok && v != nil
}

// Mode maps the dryRun argument onto a Mode.
func (a *Args) Mode() (Mode, error) {
	v, ok := a.values[dryRunField]
	return ModeFromDryRun(v, ok)
}

func (a *Args) fail(field, format string, args ...any) {
	a.errs = append(a.errs, Invalid(field, format, args...))
}

// String returns a required, non-blank string.
func (a *Args) String(name string) string {
	if !a.Has(name) {
		a.fail(name, "is required")
		return ""
	}
	s, ok := a.values[name].(string)
	if !ok {
		a.fail(name, "must be a string")
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		a.fail(name, "must not be empty")
	}
	return s
}

// OptString returns an optional string, trimmed; def when absent.
func (a *Args) OptString(name, def string) string {
	if !a.Has(name) {
		return def
	}
	s, ok := a.values[name].(string)
	if !ok {
		a.fail(name, "must be a string")
		return def
	}
	return strings.TrimSpace(s)
}

// Number returns a required finite number.
func (a *Args) Number(name string) float64 {
	if !a.Has(name) {
		a.fail(name, "is required")
		return 0
	}
	f, err := toNumber(a.values[name])
	if err != nil {
		a.fail(name, "%s", err)
		return 0
	}
	return f
}

// OptNumber returns an optional finite number; def when absent.
func (a *Args) OptNumber(name string, def float64) float64 {
	if !a.Has(name) {
		return def
	}
	return a.Number(name)
}

// Positive returns a required number greater than zero.
func (a *Args) Positive(name string) float64 {
	f := a.Number(name)
	if a.Has(name) && f <= 0 && a.lastFieldOK(name) {
		a.fail(name, "must be greater than zero, got %v", f)
	}
	return f
}

// NonNegative returns a required number that is zero or more.
func (a *Args) NonNegative(name string) float64 {
	f := a.Number(name)
	if a.Has(name) && f < 0 && a.lastFieldOK(name) {
		a.fail(name, "must not be negative, got %v", f)
	}
	return f
}

// NumberIn returns an optional number within [lo, hi]; def when absent.
func (a *Args) NumberIn(name string, def, lo, hi float64) float64 {
	if !a.Has(name) {
		return def
	}
	f := a.Number(name)
	if a.lastFieldOK(name) && (f < lo || f > hi) {
		a.fail(name, "must be between %v and %v, got %v", lo, hi, f)
	}
	return f
}

// Int returns a required integer within [lo, hi].
func (a *Args) Int(name string, lo, hi int) int {
	if !a.Has(name) {
		a.fail(name, "is required")
		return 0
	}
	return a.intValue(name, lo, hi)
}

// OptInt returns an optional integer within [lo, hi]; def when absent.
func (a *Args) OptInt(name string, def, lo, hi int) int {
	if !a.Has(name) {
		return def
	}
	return a.intValue(name, lo, hi)
}

func (a *Args) intValue(name string, lo, hi int) int {
	f, err := toNumber(a.values[name])
	if err != nil {
		a.fail(name, "%s", err)
		return 0
	}
	if f != math.Trunc(f) {
		a.fail(name, "must be an integer, got %v", f)
		return 0
	}
	if f < float64(lo) || f > float64(hi) {
		a.fail(name, "must be between %d and %d, got %v", lo, hi, f)
		return 0
	}
	return int(f)
}

// OptBool returns an optional boolean; def when absent.
func (a *Args) OptBool(name string, def bool) bool {
	if !a.Has(name) {
		return def
	}
	b, ok := a.values[name].(bool)
	if !ok {
		a.fail(name, "must be a boolean")
		return def
	}
	return b
}

// Date returns a required calendar date in YYYY-MM-DD form.
func (a *Args) Date(name string) string {
	s := a.String(name)
	if s == "" {
		return ""
	}
	return a.checkDate(name, s)
}

// OptDate returns an optional calendar date; def when absent.
func (a *Args) OptDate(name, def string) string {
	if !a.Has(name) {
		return def
	}
	return a.Date(name)
}

func (a *Args) checkDate(name, s string) string {
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		a.fail(name, "must be a calendar date (YYYY-MM-DD), got %q", s)
		return ""
	}
	return s
}

// ID returns a required UUID in canonical lower-case form.
func (a *Args) ID(name string) string {
	s := a.String(name)
	if s == "" {
		return ""
	}
	u, err := uuid.Parse(s)
	if err != nil || len(s) != 36 {
		a.fail(name, "must be a UUID, got %q", s)
		return ""
	}
	return u.String()
}

// Enum returns a required string restricted to allowed.
func (a *Args) Enum(name string, allowed ...string) string {
	s := a.String(name)
	if s == "" {
		return ""
	}
	if !slices.Contains(allowed, s) {
		a.fail(name, "must be one of %s, got %q", strings.Join(allowed, ", "), s)
		return ""
	}
	return s
}

// OptEnum returns an optional string restricted to allowed; def when absent.
func (a *Args) OptEnum(name, def string, allowed ...string) string {
	if !a.Has(name) {
		return def
	}
	return a.Enum(name, allowed...)
}

// NumberEnum returns a required number restricted to allowed.
func (a *Args) NumberEnum(name string, allowed ...float64) float64 {
	f := a.Number(name)
	if a.Has(name) && a.lastFieldOK(name) && !slices.Contains(allowed, f) {
		a.fail(name, "must be one of %v, got %v", allowed, f)
	}
	return f
}

// lastFieldOK reports whether no violation has been recorded for name yet.
func (a *Args) lastFieldOK(name string) bool {
	for _, err := range a.errs {
		if ve, ok := err.(*ValidationError); ok && ve.Field == name {
			return false
		}
	}
	return true
}

func toNumber(v any) (float64, error) {
	var f float64
	switch n := v.(type) {
	case json.Number:
		var err error
		f, err = n.Float64()
		if err != nil {
			return 0, fmt.Errorf("must be a finite number, got %s", n.String())
		}
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return 0, fmt.Errorf("must be a number, got %T", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("must be a finite number, got %v", f)
	}
	return f, nil
}
